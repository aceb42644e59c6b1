package persistence

import (
	"context"
	"time"

	"bidhaus/internal/auction/domain"
	"bidhaus/internal/shared/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

const maxAttempts = 5

// Sink is the asynchronous persistence collaborator. Accepted bids and
// state transitions are queued here and written out by a single worker
// with its own retry policy; the bidding decision is never blocked on a
// durable write. A write that keeps failing is an operational alert, not
// a bidding-protocol error.
type Sink struct {
	auctions domain.AuctionRepository
	bids     domain.BidRepository

	jobs       chan job
	retryDelay time.Duration
	done       chan struct{}
}

type job struct {
	bid        *domain.Bid
	transition *transition
}

type transition struct {
	auctionID uuid.UUID
	status    domain.AuctionStatus
	confirmed func()
}

func NewSink(auctions domain.AuctionRepository, bids domain.BidRepository, queueSize int) *Sink {
	if queueSize <= 0 {
		queueSize = 1024
	}
	return &Sink{
		auctions:   auctions,
		bids:       bids,
		jobs:       make(chan job, queueSize),
		retryDelay: 200 * time.Millisecond,
		done:       make(chan struct{}),
	}
}

// RecordBid implements domain.Sink.
func (s *Sink) RecordBid(bid *domain.Bid) {
	s.enqueue(job{bid: bid})
}

// RecordTransition implements domain.Sink.
func (s *Sink) RecordTransition(auctionID uuid.UUID, status domain.AuctionStatus, confirmed func()) {
	s.enqueue(job{transition: &transition{auctionID: auctionID, status: status, confirmed: confirmed}})
}

func (s *Sink) enqueue(j job) {
	select {
	case s.jobs <- j:
	default:
		// Backpressure beyond the queue would stall bidding; drop and
		// alert instead. Recovery replays from the last durable write.
		log.Error("Persistence queue full, dropping write")
	}
}

// Run consumes the queue until ctx is cancelled, then drains what is
// already queued.
func (s *Sink) Run(ctx context.Context) {
	defer close(s.done)
	log.Info("Persistence sink started")
	for {
		select {
		case <-ctx.Done():
			s.drain()
			log.Info("Persistence sink stopped")
			return
		case j := <-s.jobs:
			s.write(ctx, j)
		}
	}
}

// Done is closed once Run has exited.
func (s *Sink) Done() <-chan struct{} {
	return s.done
}

func (s *Sink) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for {
		select {
		case j := <-s.jobs:
			s.write(ctx, j)
		default:
			return
		}
	}
}

func (s *Sink) write(ctx context.Context, j job) {
	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if j.bid != nil {
			err = s.bids.Save(ctx, j.bid)
		} else {
			err = s.auctions.UpdateStatus(ctx, j.transition.auctionID, j.transition.status)
		}
		if err == nil {
			if j.transition != nil && j.transition.confirmed != nil {
				j.transition.confirmed()
			}
			return
		}
		log.Warn("Persistence write failed, retrying",
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
		select {
		case <-ctx.Done():
			return
		case <-time.After(s.retryDelay * time.Duration(attempt)):
		}
	}
	log.Error("Persistence write abandoned after retries", zap.Error(err))
}
