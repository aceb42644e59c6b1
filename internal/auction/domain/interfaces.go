package domain

import (
	"context"

	"github.com/google/uuid"
)

// AuctionRepository is the catalog collaborator: it supplies auction
// definitions at actor-creation time and records status transitions.
type AuctionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Auction, error)
	GetActive(ctx context.Context) ([]*Auction, error)
	Save(ctx context.Context, auction *Auction) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status AuctionStatus) error
}

type BidRepository interface {
	Save(ctx context.Context, bid *Bid) error
	GetLatestByAuction(ctx context.Context, auctionID uuid.UUID) (*Bid, error)
	ListByAuction(ctx context.Context, auctionID uuid.UUID) ([]*Bid, error)
}

// Sink durably records accepted bids and auction transitions. Both calls
// are fire-and-forget: they must never block the caller, and bidding
// correctness never depends on their completion. The confirmed callback,
// when non-nil, fires once the transition is durable; the actor uses it
// to drive the closed -> settled transition.
type Sink interface {
	RecordBid(bid *Bid)
	RecordTransition(auctionID uuid.UUID, status AuctionStatus, confirmed func())
}
