package domain

import (
	"time"

	"bidhaus/internal/shared/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var log = logger.GetLogger()

// AuctionStatus represents the lifecycle state of an auction
type AuctionStatus string

const (
	StatusPending AuctionStatus = "pending"
	StatusOpen    AuctionStatus = "open"
	StatusClosed  AuctionStatus = "closed"
	StatusSettled AuctionStatus = "settled"
)

// Auction is the authoritative state of one auction. It carries no lock:
// after creation it is owned and mutated exclusively by that auction's
// actor goroutine, every other component sees only snapshots or events.
type Auction struct {
	ID            uuid.UUID
	Title         string
	StartingPrice float64
	MinIncrement  float64 // 0 means any amount above the current highest
	StartTime     time.Time
	EndTime       time.Time
	SoftClose     time.Duration // anti-sniping window, 0 disables extension
	Status        AuctionStatus
	Highest       *Bid // nil until the first bid is accepted
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Snapshot is the read-only public view of an auction handed to sessions
// on join and retained after settlement.
type Snapshot struct {
	AuctionID     uuid.UUID     `json:"auction_id"`
	Title         string        `json:"title"`
	Status        AuctionStatus `json:"status"`
	StartingPrice float64       `json:"starting_price"`
	MinIncrement  float64       `json:"min_increment"`
	StartTime     time.Time     `json:"start_time"`
	EndTime       time.Time     `json:"end_time"`
	Highest       *Bid          `json:"highest_bid,omitempty"`
}

func NewAuction(id uuid.UUID, title string, startingPrice, minIncrement float64, startTime, endTime time.Time, softClose time.Duration) *Auction {
	return &Auction{
		ID:            id,
		Title:         title,
		StartingPrice: startingPrice,
		MinIncrement:  minIncrement,
		StartTime:     startTime,
		EndTime:       endTime,
		SoftClose:     softClose,
		Status:        StatusPending,
	}
}

func (a *Auction) Snapshot() Snapshot {
	return Snapshot{
		AuctionID:     a.ID,
		Title:         a.Title,
		Status:        a.Status,
		StartingPrice: a.StartingPrice,
		MinIncrement:  a.MinIncrement,
		StartTime:     a.StartTime,
		EndTime:       a.EndTime,
		Highest:       a.Highest,
	}
}

// PlaceBid validates one bid against the current state and, on acceptance,
// assigns identity, sequence number and acceptance time, and makes it the
// new highest bid. The caller guarantees serialization.
func (a *Auction) PlaceBid(bidderID uuid.UUID, amount float64, submittedAt time.Time, preventSelfOutbid bool) (*Bid, error) {
	if a.Status != StatusOpen {
		return nil, ErrAuctionNotOpen
	}
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if a.Highest == nil {
		if amount < a.StartingPrice {
			return nil, ErrBidTooLow
		}
	} else {
		if a.MinIncrement > 0 {
			if amount < a.Highest.Amount+a.MinIncrement {
				return nil, ErrBidTooLow
			}
		} else if amount <= a.Highest.Amount {
			return nil, ErrBidTooLow
		}
		if preventSelfOutbid && bidderID == a.Highest.BidderID {
			return nil, ErrSelfOutbid
		}
	}

	now := time.Now()
	seq := int64(1)
	if a.Highest != nil {
		seq = a.Highest.Sequence + 1
	}
	bid := NewBid(uuid.New(), a.ID, bidderID, amount, submittedAt, now, seq)
	a.Highest = bid
	a.UpdatedAt = now

	if a.SoftClose > 0 && now.Add(a.SoftClose).After(a.EndTime) {
		originalEnd := a.EndTime
		a.EndTime = now.Add(a.SoftClose)
		log.Info("Auction end time extended",
			zap.String("auctionID", a.ID.String()),
			zap.Time("originalEndTime", originalEnd),
			zap.Time("newEndTime", a.EndTime),
		)
	}

	return bid, nil
}

// Open moves a pending auction into bidding.
func (a *Auction) Open() error {
	if a.Status != StatusPending {
		log.Warn("Attempted to open auction that is not pending",
			zap.String("auctionID", a.ID.String()),
			zap.String("status", string(a.Status)),
		)
		return ErrAuctionNotPending
	}
	a.Status = StatusOpen
	a.UpdatedAt = time.Now()
	return nil
}

// Close ends bidding. Further submissions are rejected with ErrAuctionNotOpen.
func (a *Auction) Close() error {
	if a.Status != StatusOpen {
		log.Warn("Attempted to close auction that is not open",
			zap.String("auctionID", a.ID.String()),
			zap.String("status", string(a.Status)),
		)
		return ErrAuctionNotOpen
	}
	a.Status = StatusClosed
	a.UpdatedAt = time.Now()
	return nil
}

// Settle marks the final outcome as durably recorded. Terminal.
func (a *Auction) Settle() error {
	if a.Status != StatusClosed {
		log.Warn("Attempted to settle auction that is not closed",
			zap.String("auctionID", a.ID.String()),
			zap.String("status", string(a.Status)),
		)
		return ErrAuctionNotClosed
	}
	a.Status = StatusSettled
	a.UpdatedAt = time.Now()
	return nil
}
