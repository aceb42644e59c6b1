package websocket

import (
	"time"

	"bidhaus/internal/auction/domain"

	"github.com/google/uuid"
)

// MessageType defines ws type message
type MessageType string

const (
	MessageTypeClientJoin  MessageType = "client_join"  // client msg to join an auction room
	MessageTypeClientLeave MessageType = "client_leave" // client msg to leave the current room
	MessageTypeClientBid   MessageType = "client_bid"   // client msg to submit a bid

	MessageTypeServerSnapshot  MessageType = "server_snapshot"   // room state sent on join
	MessageTypeServerOutcome   MessageType = "server_outcome"    // direct accept/reject reply
	MessageTypeServerRoomEvent MessageType = "server_room_event" // room broadcast
	MessageTypeServerError     MessageType = "server_error"      // transport or protocol error
)

// BaseMessage is base struct for all the WS messages, includes a Type field for identify the message type
type BaseMessage struct {
	Type MessageType `json:"type"`
}

// ClientJoinMessage asks to join an auction's room. The token is resolved
// to a bidder identity by the auth collaborator; it may be empty for
// spectators, who can watch but not bid.
type ClientJoinMessage struct {
	BaseMessage
	Payload struct {
		AuctionID uuid.UUID `json:"auction_id"`
		Token     string    `json:"token,omitempty"`
	} `json:"payload"`
}

// ClientBidMessage submits a bid against the joined auction. SubmittedAt
// is advisory; the authoritative acceptance time is actor-assigned.
type ClientBidMessage struct {
	BaseMessage
	Payload struct {
		Amount      float64   `json:"amount"`
		SubmittedAt time.Time `json:"submitted_at,omitempty"`
	} `json:"payload"`
}

type ServerSnapshotMessage struct {
	BaseMessage
	Payload domain.Snapshot `json:"payload"`
}

type ServerOutcomeMessage struct {
	BaseMessage
	Payload domain.Outcome `json:"payload"`
}

type ServerRoomEventMessage struct {
	BaseMessage
	Payload domain.RoomEvent `json:"payload"`
}

type ServerErrorMessage struct {
	BaseMessage
	Payload struct {
		Error string `json:"error"`
	} `json:"payload"`
}
