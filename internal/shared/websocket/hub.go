package websocket

import (
	"context"
	"time"

	"bidhaus/internal/shared/logger"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 1024
)

// Hub keeps the registry of live session connections and moves bytes in
// and out of them. It does not know about rooms: fan-out recipients are
// resolved by the caller per delivery, so a session joining after an
// event was emitted never receives it. One goroutine owns all maps, so
// deliveries for one auction keep the order they were enqueued in.
type Hub struct {
	// Live clients keyed by session ID.
	sessions map[string]*Client
	// Register requests from new connections.
	register chan *Client
	// Unregister requests from closing connections.
	unregister chan *Client
	// Outbound envelopes addressed to explicit session IDs.
	outbound chan *Envelope
	// InboundMessages is listened to by module-specific handlers.
	InboundMessages chan *ClientMessage
	// OnDisconnect, when set, runs inside the hub goroutine after a
	// client is removed. Used to release room membership.
	OnDisconnect func(sessionID string)
}

// Client represents a ws individual connection
type Client struct {
	Hub *Hub
	// The websocket connection.
	Conn *websocket.Conn
	// Buffered channel of outbound messages.
	Send chan []byte
	// SessionID identifies this connection to the room registry.
	SessionID string
	// BidderID is set once the auth collaborator has resolved the
	// session's credentials; uuid.Nil until then.
	BidderID uuid.UUID
}

// Envelope carries one serialized event to a set of sessions.
type Envelope struct {
	SessionIDs []string
	Data       []byte
}

// ClientMessage wraps a client and the raw message it sent.
type ClientMessage struct {
	Client *Client
	Data   []byte
}

func NewHub() *Hub {
	return &Hub{
		sessions:        make(map[string]*Client),
		register:        make(chan *Client),
		unregister:      make(chan *Client),
		outbound:        make(chan *Envelope, 256),
		InboundMessages: make(chan *ClientMessage),
	}
}

// Run starts the hub listening in their channels
func (h *Hub) Run(ctx context.Context) {
	log.Info("Websocket Hub started")
	for {
		select {
		case <-ctx.Done():
			log.Info("WebSocket Hub shutting down due to context cancellation")
			return
		case client := <-h.register:
			h.sessions[client.SessionID] = client
			log.Info("Client registered",
				zap.String("sessionID", client.SessionID),
				zap.String("remote_addr", client.Conn.RemoteAddr().String()),
				zap.Int("total_clients", len(h.sessions)),
			)

		case client := <-h.unregister:
			if current, ok := h.sessions[client.SessionID]; ok && current == client {
				delete(h.sessions, client.SessionID)
				close(client.Send)
				log.Info("Client unregistered",
					zap.String("sessionID", client.SessionID),
					zap.Int("total_clients", len(h.sessions)),
				)
				if h.OnDisconnect != nil {
					h.OnDisconnect(client.SessionID)
				}
			}

		case env := <-h.outbound:
			for _, sessionID := range env.SessionIDs {
				client, ok := h.sessions[sessionID]
				if !ok {
					// Disconnected sessions are silently dropped; the
					// persisted history is the source of truth for them.
					continue
				}
				select {
				case client.Send <- env.Data:
				default:
					// Client cannot keep up, drop it.
					delete(h.sessions, sessionID)
					close(client.Send)
					log.Warn("Failed to send message to client, unregistering",
						zap.String("sessionID", sessionID),
					)
					if h.OnDisconnect != nil {
						h.OnDisconnect(sessionID)
					}
				}
			}
		}
	}
}

// RegisterClient register a new client in the hub
func (h *Hub) RegisterClient(client *Client) {
	select {
	case h.register <- client:
		log.Debug("Client queued for registration", zap.String("sessionID", client.SessionID))
	default:
		log.Error("Register channel is full, client registration failed",
			zap.String("sessionID", client.SessionID),
		)
		_ = client.Conn.Close()
	}
}

// UnregisterClient delete a client from the hub
func (h *Hub) UnregisterClient(client *Client) {
	select {
	case h.unregister <- client:
		log.Debug("Client queued for unregistration", zap.String("sessionID", client.SessionID))
	default:
		log.Error("Unregister channel is full, client unregistration failed",
			zap.String("sessionID", client.SessionID),
		)
	}
}

// Send queues one serialized event for the given sessions. Recipients are
// fixed at the moment of the call.
func (h *Hub) Send(sessionIDs []string, data []byte) {
	if len(sessionIDs) == 0 {
		return
	}
	select {
	case h.outbound <- &Envelope{SessionIDs: sessionIDs, Data: data}:
	default:
		log.Error("Outbound channel is full, message dropped",
			zap.Int("recipients", len(sessionIDs)),
		)
	}
}

// SendToSession queues one serialized event for a single session.
func (h *Hub) SendToSession(sessionID string, data []byte) {
	h.Send([]string{sessionID}, data)
}

// ReadPump reads messages from the WebSocket connection and forwards them
// to the hub's InboundMessages channel. Runs in its own goroutine per client.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.Hub.UnregisterClient(c)
		c.Conn.Close()
		log.Info("ReadPump stopped for client", zap.String("sessionID", c.SessionID))
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	log.Info("ReadPump started for client",
		zap.String("sessionID", c.SessionID),
		zap.String("remote_addr", c.Conn.RemoteAddr().String()),
	)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Error("WebSocket read error",
					zap.String("sessionID", c.SessionID),
					zap.Error(err),
				)
			} else {
				log.Info("WebSocket connection closed by peer",
					zap.String("sessionID", c.SessionID),
					zap.Error(err),
				)
			}
			break
		}

		select {
		case c.Hub.InboundMessages <- &ClientMessage{Client: c, Data: message}:
		default:
			log.Error("Hub InboundMessages channel is full, dropping message",
				zap.String("sessionID", c.SessionID),
				zap.ByteString("message", message),
			)
		}
	}
}

// WritePump pumps messages from the hub to the websocket connection. A
// goroutine running WritePump is started for each connection; it is the
// single writer to the connection.
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Hub.UnregisterClient(c)
		c.Conn.Close()
		log.Info("WritePump stopped for client", zap.String("sessionID", c.SessionID))
	}()

	for {
		select {
		case <-ctx.Done():
			err := c.Conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			if err != nil {
				log.Error("Failed to send close control message",
					zap.String("sessionID", c.SessionID),
					zap.Error(err),
				)
			}
			return

		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The Hub closed the channel.
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				log.Error("Failed to write message to client",
					zap.String("sessionID", c.SessionID),
					zap.Error(err),
				)
				return
			}

		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Error("Failed to write ping message to client",
					zap.String("sessionID", c.SessionID),
					zap.Error(err),
				)
				return
			}
		}
	}
}
