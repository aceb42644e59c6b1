package websocket

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"bidhaus/internal/auction/actor"
	"bidhaus/internal/auction/domain"
	"bidhaus/internal/shared/websocket"
	userdomain "bidhaus/internal/user/domain"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

// memCatalog serves a fixed set of auctions. The map is never written
// after construction, so concurrent reads need no lock.
type memCatalog struct {
	auctions map[uuid.UUID]*domain.Auction
}

func newMemCatalog(auctions ...*domain.Auction) *memCatalog {
	c := &memCatalog{auctions: make(map[uuid.UUID]*domain.Auction)}
	for _, a := range auctions {
		c.auctions[a.ID] = a
	}
	return c
}

func (c *memCatalog) GetByID(_ context.Context, id uuid.UUID) (*domain.Auction, error) {
	a, ok := c.auctions[id]
	if !ok {
		return nil, domain.ErrAuctionNotFound
	}
	clone := *a
	return &clone, nil
}

func (c *memCatalog) GetActive(_ context.Context) ([]*domain.Auction, error) { return nil, nil }

func (c *memCatalog) Save(_ context.Context, _ *domain.Auction) error { return nil }

func (c *memCatalog) UpdateStatus(_ context.Context, _ uuid.UUID, _ domain.AuctionStatus) error {
	return nil
}

type memBids struct{}

func (memBids) Save(_ context.Context, _ *domain.Bid) error { return nil }

func (memBids) GetLatestByAuction(_ context.Context, _ uuid.UUID) (*domain.Bid, error) {
	return nil, nil
}

func (memBids) ListByAuction(_ context.Context, _ uuid.UUID) ([]*domain.Bid, error) {
	return nil, nil
}

type noopSink struct{}

func (noopSink) RecordBid(_ *domain.Bid) {}

func (noopSink) RecordTransition(_ uuid.UUID, _ domain.AuctionStatus, _ func()) {}

// fakeUsers resolves tokens from a fixed map. Lookups for a token with a
// gate block until the gate is closed, standing in for a slow repository.
type fakeUsers struct {
	mu    sync.Mutex
	users map[string]*userdomain.User
	gates map[string]chan struct{}
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{
		users: make(map[string]*userdomain.User),
		gates: make(map[string]chan struct{}),
	}
}

func (f *fakeUsers) GetByToken(_ context.Context, token string) (*userdomain.User, error) {
	f.mu.Lock()
	gate := f.gates[token]
	user, ok := f.users[token]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	if !ok {
		return nil, userdomain.ErrUnknownToken
	}
	return user, nil
}

func newTestGateway(t *testing.T, users *fakeUsers, auctions ...*domain.Auction) *Gateway {
	t.Helper()
	hub := websocket.NewHub()
	g := NewGateway(hub, users, nil)
	r := actor.NewRegistry(newMemCatalog(auctions...), memBids{}, noopSink{}, g, true)
	g.Bind(r)
	t.Cleanup(r.Shutdown)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go g.ListenForMessages(ctx)
	return g
}

func newTestClient(hub *websocket.Hub, sessionID string) *websocket.Client {
	return &websocket.Client{Hub: hub, Send: make(chan []byte, 8), SessionID: sessionID}
}

func openAuction(endIn time.Duration) *domain.Auction {
	a := domain.NewAuction(uuid.New(), "vintage synth", 0, 0,
		time.Now().Add(-time.Minute), time.Now().Add(endIn), 0)
	a.Status = domain.StatusOpen
	return a
}

func joinPayload(t *testing.T, auctionID uuid.UUID, token string) []byte {
	t.Helper()
	msg := ClientJoinMessage{BaseMessage: BaseMessage{Type: MessageTypeClientJoin}}
	msg.Payload.AuctionID = auctionID
	msg.Payload.Token = token
	data, err := json.Marshal(msg)
	assert.Nil(t, err)
	return data
}

func bidPayload(t *testing.T, amount float64) []byte {
	t.Helper()
	msg := ClientBidMessage{BaseMessage: BaseMessage{Type: MessageTypeClientBid}}
	msg.Payload.Amount = amount
	data, err := json.Marshal(msg)
	assert.Nil(t, err)
	return data
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("condition not reached before timeout")
}

// A session can disconnect between sending a bad message and the gateway
// replying; the hub has closed its Send channel by then. The error reply
// must go through the hub, where a gone session is a silent drop, not a
// write to a closed channel.
func TestErrorReplyToDisconnectedSession(t *testing.T) {
	g := newTestGateway(t, newFakeUsers())

	client := newTestClient(g.hub, "gone")
	close(client.Send)

	g.processMessage(context.Background(), client, []byte("not json at all"))
	g.processMessage(context.Background(), client, []byte(`{"type":"mystery"}`))
}

// One session's slow auth lookup must not stall message intake for the
// others, and each session's own messages keep their order: the bid sent
// right after the join sees the membership the join created.
func TestSlowSessionDoesNotStallOthers(t *testing.T) {
	auction := openAuction(time.Hour)

	users := newFakeUsers()
	gate := make(chan struct{})
	users.gates["slow"] = gate
	users.users["slow"] = &userdomain.User{ID: uuid.New(), DisplayName: "snail"}

	g := newTestGateway(t, users, auction)

	slow := newTestClient(g.hub, "slow-sess")
	fast := newTestClient(g.hub, "fast-sess")
	fast.BidderID = uuid.New()

	g.hub.InboundMessages <- &websocket.ClientMessage{Client: slow, Data: joinPayload(t, auction.ID, "slow")}
	g.hub.InboundMessages <- &websocket.ClientMessage{Client: fast, Data: joinPayload(t, auction.ID, "")}
	g.hub.InboundMessages <- &websocket.ClientMessage{Client: fast, Data: bidPayload(t, 100)}

	// The fast session joins and its bid lands while the slow lookup is
	// still pending.
	waitFor(t, time.Second, func() bool {
		snap, err := g.registry.Peek(context.Background(), auction.ID)
		return err == nil && snap.Highest != nil
	})
	members := g.registry.Members(auction.ID)
	check.Equal(t, []string{"fast-sess"}, members)

	close(gate)
	waitFor(t, time.Second, func() bool {
		return len(g.registry.Members(auction.ID)) == 2
	})
}
