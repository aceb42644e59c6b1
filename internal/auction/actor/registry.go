package actor

import (
	"context"
	"sync"
	"time"

	"bidhaus/internal/auction/domain"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Registry routes sessions and bid submissions to the right auction
// actor, creating actors lazily from the catalog on first reference, and
// tracks which sessions are joined to which room. The membership map is
// the only structure shared across rooms; the lock guards membership
// operations only, never bid processing.
type Registry struct {
	catalog           domain.AuctionRepository
	bids              domain.BidRepository
	sink              domain.Sink
	emitter           Emitter
	preventSelfOutbid bool

	mu       sync.Mutex
	actors   map[uuid.UUID]*Actor
	sessions map[string]uuid.UUID          // session -> joined room
	rooms    map[uuid.UUID]map[string]bool // room -> member sessions
	terminal map[uuid.UUID]domain.Snapshot // settled auctions, read-only
}

func NewRegistry(catalog domain.AuctionRepository, bids domain.BidRepository, sink domain.Sink, emitter Emitter, preventSelfOutbid bool) *Registry {
	return &Registry{
		catalog:           catalog,
		bids:              bids,
		sink:              sink,
		emitter:           emitter,
		preventSelfOutbid: preventSelfOutbid,
		actors:            make(map[uuid.UUID]*Actor),
		sessions:          make(map[string]uuid.UUID),
		rooms:             make(map[uuid.UUID]map[string]bool),
		terminal:          make(map[uuid.UUID]domain.Snapshot),
	}
}

// Join registers the session in the auction's room and returns the
// current public snapshot so the client can render immediately. Joining a
// new room implicitly leaves the previous one.
func (r *Registry) Join(ctx context.Context, sessionID string, auctionID uuid.UUID) (domain.Snapshot, error) {
	snap, err := r.Peek(ctx, auctionID)
	if err != nil {
		return domain.Snapshot{}, err
	}

	r.mu.Lock()
	if prev, ok := r.sessions[sessionID]; ok && prev != auctionID {
		r.removeMemberLocked(sessionID, prev)
	}
	r.sessions[sessionID] = auctionID
	if _, ok := r.rooms[auctionID]; !ok {
		r.rooms[auctionID] = make(map[string]bool)
	}
	r.rooms[auctionID][sessionID] = true
	r.mu.Unlock()

	log.Info("Session joined room",
		zap.String("sessionID", sessionID),
		zap.String("auctionID", auctionID.String()),
	)
	return snap, nil
}

// Leave removes the session's room membership. Idempotent: leaving twice,
// or without having joined, is a no-op.
func (r *Registry) Leave(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	auctionID, ok := r.sessions[sessionID]
	if !ok {
		return
	}
	delete(r.sessions, sessionID)
	r.removeMemberLocked(sessionID, auctionID)
	log.Info("Session left room",
		zap.String("sessionID", sessionID),
		zap.String("auctionID", auctionID.String()),
	)
}

// SubmitBid forwards a bid from the session to its joined auction's actor.
func (r *Registry) SubmitBid(ctx context.Context, sessionID string, bidderID uuid.UUID, amount float64, submittedAt time.Time) error {
	r.mu.Lock()
	auctionID, joined := r.sessions[sessionID]
	r.mu.Unlock()
	if !joined {
		return domain.ErrNotInRoom
	}

	act, err := r.actorFor(ctx, auctionID)
	if err != nil {
		if _, settled := r.terminalSnapshot(auctionID); settled {
			return domain.ErrAuctionNotOpen
		}
		return err
	}
	return act.Submit(sessionID, bidderID, amount, submittedAt)
}

// Peek returns the auction's current public snapshot without joining.
func (r *Registry) Peek(ctx context.Context, auctionID uuid.UUID) (domain.Snapshot, error) {
	if snap, ok := r.terminalSnapshot(auctionID); ok {
		return snap, nil
	}
	act, err := r.actorFor(ctx, auctionID)
	if err != nil {
		// actorFor may have just learned from the catalog that the
		// auction is settled and cached its terminal snapshot.
		if snap, ok := r.terminalSnapshot(auctionID); ok {
			return snap, nil
		}
		return domain.Snapshot{}, err
	}
	snap, err := act.Snapshot()
	if err != nil {
		// The actor settled between lookup and query.
		if terminal, ok := r.terminalSnapshot(auctionID); ok {
			return terminal, nil
		}
		return domain.Snapshot{}, err
	}
	return snap, nil
}

// Members returns the sessions joined to the room at the moment of the
// call. The broadcast gateway resolves recipients through this, which is
// what keeps broadcasts from being delivered retroactively to late joiners.
func (r *Registry) Members(auctionID uuid.UUID) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	members := r.rooms[auctionID]
	out := make([]string, 0, len(members))
	for sessionID := range members {
		out = append(out, sessionID)
	}
	return out
}

// Close requests an explicit administrative close of the auction.
func (r *Registry) Close(auctionID uuid.UUID) error {
	r.mu.Lock()
	act, ok := r.actors[auctionID]
	r.mu.Unlock()
	if !ok {
		return domain.ErrAuctionNotFound
	}
	act.Close()
	return nil
}

// Shutdown stops every live actor. Unpersisted in-flight state is
// recovered from the sink's durable copy on the next start.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	actors := make([]*Actor, 0, len(r.actors))
	for _, act := range r.actors {
		actors = append(actors, act)
	}
	r.actors = make(map[uuid.UUID]*Actor)
	r.mu.Unlock()
	for _, act := range actors {
		act.Stop()
	}
}

// actorFor returns the live actor for the auction, creating it lazily
// from the catalog. Creation replays the latest persisted bid to rebuild
// the highest bid and sequence number before any new bid is accepted.
func (r *Registry) actorFor(ctx context.Context, auctionID uuid.UUID) (*Actor, error) {
	r.mu.Lock()
	if act, ok := r.actors[auctionID]; ok {
		r.mu.Unlock()
		return act, nil
	}
	if _, settled := r.terminal[auctionID]; settled {
		// Never resurrect a settled auction, even if the catalog row has
		// not caught up with the sink yet.
		r.mu.Unlock()
		return nil, domain.ErrAuctionNotFound
	}
	r.mu.Unlock()

	auction, err := r.catalog.GetByID(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if auction.Status == domain.StatusSettled {
		snap := auction.Snapshot()
		r.mu.Lock()
		r.terminal[auctionID] = snap
		r.mu.Unlock()
		return nil, domain.ErrAuctionNotFound
	}

	latest, err := r.bids.GetLatestByAuction(ctx, auctionID)
	if err != nil {
		return nil, err
	}
	if latest != nil {
		auction.Highest = latest
		// Soft-close extensions live in actor memory, not the catalog row.
		// Each extension sets the deadline to AcceptedAt+SoftClose, so the
		// last accepted bid is enough to rebuild the extended end time.
		if auction.SoftClose > 0 {
			if extended := latest.AcceptedAt.Add(auction.SoftClose); extended.After(auction.EndTime) {
				auction.EndTime = extended
			}
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Another caller may have won the race.
	if act, ok := r.actors[auctionID]; ok {
		return act, nil
	}
	act := New(auction, r.emitter, r.sink, r.preventSelfOutbid, r.onSettled)
	r.actors[auctionID] = act
	go act.Run()
	return act, nil
}

// onSettled releases the actor and retains only the read-only terminal
// snapshot, freeing per-auction resources. Runs in the actor goroutine.
func (r *Registry) onSettled(auctionID uuid.UUID, terminal domain.Snapshot) {
	r.mu.Lock()
	delete(r.actors, auctionID)
	r.terminal[auctionID] = terminal
	r.mu.Unlock()
	log.Info("Auction actor released after settlement",
		zap.String("auctionID", auctionID.String()),
	)
}

func (r *Registry) terminalSnapshot(auctionID uuid.UUID) (domain.Snapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap, ok := r.terminal[auctionID]
	return snap, ok
}

func (r *Registry) removeMemberLocked(sessionID string, auctionID uuid.UUID) {
	if members, ok := r.rooms[auctionID]; ok {
		delete(members, sessionID)
		if len(members) == 0 {
			delete(r.rooms, auctionID)
		}
	}
}
