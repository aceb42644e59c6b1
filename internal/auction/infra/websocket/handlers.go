package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"bidhaus/internal/auction/actor"
	"bidhaus/internal/auction/domain"
	"bidhaus/internal/shared/logger"
	"bidhaus/internal/shared/websocket"
	userdomain "bidhaus/internal/user/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// Relay is the optional cross-process event transport behind the gateway.
type Relay interface {
	Publish(event domain.RoomEvent) error
	Events() <-chan domain.RoomEvent
}

// Gateway relays inbound session messages to the room registry and fans
// actor events out to the sessions of each room. It implements
// actor.Emitter; recipients are resolved against the registry at the
// moment of each broadcast, so late joiners never see earlier events.
type Gateway struct {
	hub      *websocket.Hub
	users    userdomain.UserRepository
	relay    Relay // nil in single-process operation
	registry *actor.Registry

	mu    sync.Mutex
	lanes map[string]chan *websocket.ClientMessage
}

// Per-session inbound lane sizing. Join handling does repository lookups,
// so lanes keep one slow session from stalling every other session's
// intake; a lane worker exits once its session has been quiet for a while.
const (
	laneBuffer      = 32
	laneIdleTimeout = time.Minute
)

func NewGateway(hub *websocket.Hub, users userdomain.UserRepository, relay Relay) *Gateway {
	return &Gateway{
		hub:   hub,
		users: users,
		relay: relay,
		lanes: make(map[string]chan *websocket.ClientMessage),
	}
}

// Bind attaches the room registry. Called once at wiring time; the
// registry itself needs the gateway as its emitter, hence the two steps.
func (g *Gateway) Bind(registry *actor.Registry) {
	g.registry = registry
	g.hub.OnDisconnect = registry.Leave
}

// Outcome implements actor.Emitter.
func (g *Gateway) Outcome(sessionID string, outcome domain.Outcome) {
	msg := ServerOutcomeMessage{BaseMessage: BaseMessage{Type: MessageTypeServerOutcome}, Payload: outcome}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error("failed to marshal outcome message", zap.Error(err))
		return
	}
	g.hub.SendToSession(sessionID, data)
}

// Room implements actor.Emitter.
func (g *Gateway) Room(event domain.RoomEvent) {
	g.deliverLocal(event)
	if g.relay != nil {
		if err := g.relay.Publish(event); err != nil {
			log.Warn("failed to relay room event",
				zap.String("auctionID", event.AuctionID.String()),
				zap.Error(err),
			)
		}
	}
}

// ListenForMessages consumes the hub inbound channel and dispatches each
// client message. Runs until ctx is cancelled.
func (g *Gateway) ListenForMessages(ctx context.Context) {
	log.Info("Gateway started listening for inbound messages from hub")
	for {
		select {
		case <-ctx.Done():
			log.Info("Gateway stopped listening for inbound messages from hub")
			return
		case msg := <-g.hub.InboundMessages:
			g.dispatch(ctx, msg)
		}
	}
}

// dispatch hands the message to its session's lane. One worker per lane
// keeps a session's join and bids in the order the session sent them,
// without one session's repository lookups blocking the others.
func (g *Gateway) dispatch(ctx context.Context, msg *websocket.ClientMessage) {
	g.mu.Lock()
	defer g.mu.Unlock()
	lane, ok := g.lanes[msg.Client.SessionID]
	if !ok {
		lane = make(chan *websocket.ClientMessage, laneBuffer)
		g.lanes[msg.Client.SessionID] = lane
		go g.runLane(ctx, msg.Client.SessionID, lane)
	}
	select {
	case lane <- msg:
	default:
		log.Warn("session lane full, dropping message",
			zap.String("sessionID", msg.Client.SessionID),
		)
	}
}

func (g *Gateway) runLane(ctx context.Context, sessionID string, lane chan *websocket.ClientMessage) {
	idle := time.NewTimer(laneIdleTimeout)
	defer idle.Stop()
	for {
		select {
		case <-ctx.Done():
			g.mu.Lock()
			delete(g.lanes, sessionID)
			g.mu.Unlock()
			return
		case msg := <-lane:
			g.processMessage(ctx, msg.Client, msg.Data)
			if !idle.Stop() {
				select {
				case <-idle.C:
				default:
				}
			}
			idle.Reset(laneIdleTimeout)
		case <-idle.C:
			// The dispatch lock makes this exit atomic with respect to new
			// sends: a message enqueued before removal is still seen here.
			g.mu.Lock()
			if len(lane) > 0 {
				g.mu.Unlock()
				idle.Reset(laneIdleTimeout)
				continue
			}
			delete(g.lanes, sessionID)
			g.mu.Unlock()
			return
		}
	}
}

// ListenForRelayEvents re-broadcasts events published by peer server
// instances into the local rooms. No-op when no relay is configured.
func (g *Gateway) ListenForRelayEvents(ctx context.Context) {
	if g.relay == nil {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-g.relay.Events():
			g.deliverLocal(event)
		}
	}
}

func (g *Gateway) deliverLocal(event domain.RoomEvent) {
	msg := ServerRoomEventMessage{BaseMessage: BaseMessage{Type: MessageTypeServerRoomEvent}, Payload: event}
	data, err := json.Marshal(msg)
	if err != nil {
		log.Error("failed to marshal room event", zap.Error(err))
		return
	}
	g.hub.Send(g.registry.Members(event.AuctionID), data)
}

// processMessage dispatch the message by this type
func (g *Gateway) processMessage(ctx context.Context, client *websocket.Client, data []byte) {
	var baseMsg BaseMessage
	if err := json.Unmarshal(data, &baseMsg); err != nil {
		g.sendErrorToClient(client, "invalid message format")
		return
	}
	switch baseMsg.Type {
	case MessageTypeClientJoin:
		g.handleJoin(ctx, client, data)
	case MessageTypeClientLeave:
		g.registry.Leave(client.SessionID)
	case MessageTypeClientBid:
		g.handleBid(ctx, client, data)
	default:
		g.sendErrorToClient(client, "unknown message type")
	}
}

func (g *Gateway) handleJoin(ctx context.Context, client *websocket.Client, data []byte) {
	var joinMsg ClientJoinMessage
	if err := json.Unmarshal(data, &joinMsg); err != nil {
		g.sendErrorToClient(client, "invalid join message format")
		return
	}

	if joinMsg.Payload.Token != "" {
		user, err := g.users.GetByToken(ctx, joinMsg.Payload.Token)
		if err != nil {
			if errors.Is(err, userdomain.ErrUnknownToken) {
				g.sendErrorToClient(client, "invalid token")
				return
			}
			log.Error("auth lookup failed", zap.Error(err))
			g.sendErrorToClient(client, "authentication unavailable")
			return
		}
		client.BidderID = user.ID
	}

	snapshot, err := g.registry.Join(ctx, client.SessionID, joinMsg.Payload.AuctionID)
	if err != nil {
		g.sendErrorToClient(client, domain.ReasonFor(err))
		return
	}

	reply := ServerSnapshotMessage{BaseMessage: BaseMessage{Type: MessageTypeServerSnapshot}, Payload: snapshot}
	payload, err := json.Marshal(reply)
	if err != nil {
		g.sendErrorToClient(client, "failed to serialize snapshot")
		return
	}
	g.hub.SendToSession(client.SessionID, payload)
}

func (g *Gateway) handleBid(ctx context.Context, client *websocket.Client, data []byte) {
	var bidMsg ClientBidMessage
	if err := json.Unmarshal(data, &bidMsg); err != nil {
		g.sendErrorToClient(client, "invalid bid message format")
		return
	}

	if client.BidderID == uuid.Nil {
		g.reject(client, domain.ErrNotAuthenticated)
		return
	}

	submittedAt := bidMsg.Payload.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = time.Now()
	}

	err := g.registry.SubmitBid(ctx, client.SessionID, client.BidderID, bidMsg.Payload.Amount, submittedAt)
	if err != nil {
		// Validation rejections travel back as outcome events from the
		// actor; errors here mean the bid never reached a lane.
		g.reject(client, err)
	}
}

func (g *Gateway) reject(client *websocket.Client, err error) {
	g.Outcome(client.SessionID, domain.Outcome{
		Accepted: false,
		Reason:   domain.ReasonFor(err),
	})
}

// sendErrorToClient serializes and sends an error msg to a specific client
func (g *Gateway) sendErrorToClient(client *websocket.Client, errorMessage string) {
	errMsg := ServerErrorMessage{
		BaseMessage: BaseMessage{Type: MessageTypeServerError},
	}
	errMsg.Payload.Error = errorMessage
	data, err := json.Marshal(errMsg)
	if err != nil {
		log.Error("failed to marshal ServerErrorMessage", zap.Error(err))
		return
	}
	// Only the hub goroutine touches client Send channels; writing the
	// channel from here races its close on unregister.
	g.hub.SendToSession(client.SessionID, data)
}
