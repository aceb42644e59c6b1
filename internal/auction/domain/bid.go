package domain

import (
	"time"

	"github.com/google/uuid"
)

// Bid is an immutable record of one accepted bid. Identity, sequence
// number and acceptance time are assigned by the auction actor, never by
// the submitter; the sequence number is what gives bids a total order
// within one auction.
type Bid struct {
	ID          uuid.UUID `json:"id"`
	AuctionID   uuid.UUID `json:"auction_id"`
	BidderID    uuid.UUID `json:"bidder_id"`
	Amount      float64   `json:"amount"`
	SubmittedAt time.Time `json:"submitted_at"` // client-supplied, advisory only
	AcceptedAt  time.Time `json:"accepted_at"`  // actor-assigned
	Sequence    int64     `json:"sequence"`
}

// NewBid creates a new Bid instance
func NewBid(id, auctionID, bidderID uuid.UUID, amount float64, submittedAt, acceptedAt time.Time, sequence int64) *Bid {
	return &Bid{
		ID:          id,
		AuctionID:   auctionID,
		BidderID:    bidderID,
		Amount:      amount,
		SubmittedAt: submittedAt,
		AcceptedAt:  acceptedAt,
		Sequence:    sequence,
	}
}
