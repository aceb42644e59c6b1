package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies room-scoped notifications emitted by auction actors.
type EventType string

const (
	EventAuctionOpened EventType = "auction_opened"
	EventNewHighestBid EventType = "new_highest_bid"
	EventAuctionClosed EventType = "auction_closed"
)

// Outcome is the direct accept/reject reply addressed to the one session
// that submitted a bid.
type Outcome struct {
	AuctionID uuid.UUID `json:"auction_id"`
	Accepted  bool      `json:"accepted"`
	Bid       *Bid      `json:"bid,omitempty"`
	Reason    string    `json:"reason,omitempty"`
}

// RoomEvent is a state-change notification addressed to every session in
// an auction's room. Events for one auction are emitted, and must be
// delivered, in actor order.
type RoomEvent struct {
	Type      EventType     `json:"type"`
	AuctionID uuid.UUID     `json:"auction_id"`
	Status    AuctionStatus `json:"status"`
	Bid       *Bid          `json:"bid,omitempty"` // new highest or final bid
	EndTime   time.Time     `json:"end_time"`
}
