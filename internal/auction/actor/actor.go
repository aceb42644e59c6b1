package actor

import (
	"time"

	"bidhaus/internal/auction/domain"
	"bidhaus/internal/shared/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// Emitter delivers outcome events to single sessions and room events to
// every session currently in the auction's room. Implemented by the
// websocket gateway and by test fakes.
type Emitter interface {
	Outcome(sessionID string, outcome domain.Outcome)
	Room(event domain.RoomEvent)
}

// submission is one bid attempt queued into the actor's lane.
type submission struct {
	sessionID   string
	bidderID    uuid.UUID
	amount      float64
	submittedAt time.Time
}

type controlKind int

const (
	ctrlOpen controlKind = iota
	ctrlClose
	ctrlSettle
	ctrlSnapshot
)

type controlMsg struct {
	kind  controlKind
	reply chan domain.Snapshot
}

// Actor is the sole owner of one auction's state. It processes bid
// submissions one at a time in arrival order, emits exactly one outcome
// per submission plus room broadcasts on state changes, and dispatches
// persistence asynchronously. Two bids submitted concurrently from
// different sessions are always given a deterministic total order here,
// before any durable write is attempted.
type Actor struct {
	auction           *domain.Auction
	emitter           Emitter
	sink              domain.Sink
	preventSelfOutbid bool

	submissions chan submission
	controls    chan controlMsg
	stop        chan struct{}
	done        chan struct{}

	// onSettled runs in the actor goroutine right before it exits; the
	// registry uses it to release the actor and retain the terminal snapshot.
	onSettled func(auctionID uuid.UUID, terminal domain.Snapshot)
}

func New(auction *domain.Auction, emitter Emitter, sink domain.Sink, preventSelfOutbid bool, onSettled func(uuid.UUID, domain.Snapshot)) *Actor {
	return &Actor{
		auction:           auction,
		emitter:           emitter,
		sink:              sink,
		preventSelfOutbid: preventSelfOutbid,
		submissions:       make(chan submission, 256),
		controls:          make(chan controlMsg),
		stop:              make(chan struct{}),
		done:              make(chan struct{}),
		onSettled:         onSettled,
	}
}

// Run is the actor's processing lane. It owns the open/close timers, so
// closing does not depend on receiving further external input.
func (a *Actor) Run() {
	defer close(a.done)

	openTimer := time.NewTimer(time.Until(a.auction.StartTime))
	if a.auction.Status != domain.StatusPending {
		openTimer.Stop()
	}
	closeTimer := time.NewTimer(time.Until(a.auction.EndTime))
	defer openTimer.Stop()
	defer closeTimer.Stop()

	log.Info("Auction actor started",
		zap.String("auctionID", a.auction.ID.String()),
		zap.String("status", string(a.auction.Status)),
		zap.Time("endTime", a.auction.EndTime),
	)

	for {
		select {
		case <-a.stop:
			return

		case sub := <-a.submissions:
			a.process(sub, closeTimer)

		case msg := <-a.controls:
			switch msg.kind {
			case ctrlOpen:
				a.open()
			case ctrlClose:
				a.close()
			case ctrlSettle:
				a.settle()
				return
			case ctrlSnapshot:
				msg.reply <- a.auction.Snapshot()
			}

		case <-openTimer.C:
			a.open()

		case <-closeTimer.C:
			// Bids already enqueued before the timer fired are processed,
			// and may still be accepted, before the close takes effect.
			a.drain(closeTimer)
			a.close()
		}
	}
}

// Submit enqueues one bid attempt into the actor's lane. The wait is
// bounded by the cost of in-memory validation, never by I/O.
func (a *Actor) Submit(sessionID string, bidderID uuid.UUID, amount float64, submittedAt time.Time) error {
	select {
	case a.submissions <- submission{sessionID: sessionID, bidderID: bidderID, amount: amount, submittedAt: submittedAt}:
		return nil
	case <-a.done:
		return domain.ErrAuctionNotOpen
	}
}

// Snapshot returns the current public state, answered by the actor
// goroutine so no state is read outside the lane.
func (a *Actor) Snapshot() (domain.Snapshot, error) {
	reply := make(chan domain.Snapshot, 1)
	select {
	case a.controls <- controlMsg{kind: ctrlSnapshot, reply: reply}:
		return <-reply, nil
	case <-a.done:
		return domain.Snapshot{}, domain.ErrAuctionNotFound
	}
}

// Open requests an explicit administrative open.
func (a *Actor) Open() {
	a.control(ctrlOpen)
}

// Close requests an explicit administrative close.
func (a *Actor) Close() {
	a.control(ctrlClose)
}

// Stop terminates the actor without settling. Used on shutdown.
func (a *Actor) Stop() {
	close(a.stop)
	<-a.done
}

// Done is closed when the actor's goroutine has exited.
func (a *Actor) Done() <-chan struct{} {
	return a.done
}

func (a *Actor) control(kind controlKind) {
	select {
	case a.controls <- controlMsg{kind: kind}:
	case <-a.done:
	}
}

func (a *Actor) process(sub submission, closeTimer *time.Timer) {
	endBefore := a.auction.EndTime

	bid, err := a.auction.PlaceBid(sub.bidderID, sub.amount, sub.submittedAt, a.preventSelfOutbid)
	if err != nil {
		log.Debug("Bid rejected",
			zap.String("auctionID", a.auction.ID.String()),
			zap.String("bidderID", sub.bidderID.String()),
			zap.Float64("amount", sub.amount),
			zap.String("reason", domain.ReasonFor(err)),
		)
		a.emitter.Outcome(sub.sessionID, domain.Outcome{
			AuctionID: a.auction.ID,
			Accepted:  false,
			Reason:    domain.ReasonFor(err),
		})
		return
	}

	log.Info("Bid accepted",
		zap.String("auctionID", a.auction.ID.String()),
		zap.String("bidID", bid.ID.String()),
		zap.String("bidderID", bid.BidderID.String()),
		zap.Float64("amount", bid.Amount),
		zap.Int64("sequence", bid.Sequence),
	)

	// Outcome and broadcast go out before the durable write is even
	// scheduled; slow storage must not stall the room.
	a.emitter.Outcome(sub.sessionID, domain.Outcome{
		AuctionID: a.auction.ID,
		Accepted:  true,
		Bid:       bid,
	})
	a.emitter.Room(domain.RoomEvent{
		Type:      domain.EventNewHighestBid,
		AuctionID: a.auction.ID,
		Status:    a.auction.Status,
		Bid:       bid,
		EndTime:   a.auction.EndTime,
	})
	a.sink.RecordBid(bid)

	if a.auction.EndTime.After(endBefore) {
		resetTimer(closeTimer, time.Until(a.auction.EndTime))
	}
}

func (a *Actor) open() {
	if err := a.auction.Open(); err != nil {
		return
	}
	log.Info("Auction opened", zap.String("auctionID", a.auction.ID.String()))
	a.emitter.Room(domain.RoomEvent{
		Type:      domain.EventAuctionOpened,
		AuctionID: a.auction.ID,
		Status:    a.auction.Status,
		EndTime:   a.auction.EndTime,
	})
	a.sink.RecordTransition(a.auction.ID, domain.StatusOpen, nil)
}

func (a *Actor) close() {
	if err := a.auction.Close(); err != nil {
		return
	}
	log.Info("Auction closed",
		zap.String("auctionID", a.auction.ID.String()),
		zap.Int64("finalSequence", finalSequence(a.auction)),
	)
	a.emitter.Room(domain.RoomEvent{
		Type:      domain.EventAuctionClosed,
		AuctionID: a.auction.ID,
		Status:    a.auction.Status,
		Bid:       a.auction.Highest,
		EndTime:   a.auction.EndTime,
	})
	// Settlement waits for the sink to confirm the durable write of the
	// final state; the confirmation re-enters the lane as a control message.
	a.sink.RecordTransition(a.auction.ID, domain.StatusClosed, func() {
		select {
		case a.controls <- controlMsg{kind: ctrlSettle}:
		case <-a.done:
		}
	})
}

func (a *Actor) settle() {
	if err := a.auction.Settle(); err != nil {
		return
	}
	log.Info("Auction settled", zap.String("auctionID", a.auction.ID.String()))
	a.sink.RecordTransition(a.auction.ID, domain.StatusSettled, nil)
	if a.onSettled != nil {
		a.onSettled(a.auction.ID, a.auction.Snapshot())
	}
}

// drain processes every submission already queued without blocking.
func (a *Actor) drain(closeTimer *time.Timer) {
	for {
		select {
		case sub := <-a.submissions:
			a.process(sub, closeTimer)
		default:
			return
		}
	}
}

func resetTimer(t *time.Timer, d time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(d)
}

func finalSequence(a *domain.Auction) int64 {
	if a.Highest == nil {
		return 0
	}
	return a.Highest.Sequence
}
