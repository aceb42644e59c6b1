package domain

import "errors"

var (
	ErrAuctionNotFound   = errors.New("auction not found")
	ErrAuctionNotOpen    = errors.New("auction is not open for bidding")
	ErrBidTooLow         = errors.New("bid amount is too low")
	ErrSelfOutbid        = errors.New("bidder already holds the highest bid")
	ErrNotInRoom         = errors.New("session has not joined an auction")
	ErrInvalidAmount     = errors.New("bid amount must be greater than zero")
	ErrAuctionNotPending = errors.New("auction is not pending")
	ErrAuctionNotClosed  = errors.New("auction is not closed")
	ErrNotAuthenticated  = errors.New("session has no resolved bidder identity")
)

// ReasonFor maps a rejection error to the wire-level reason code sent
// back to the submitting session.
func ReasonFor(err error) string {
	switch {
	case errors.Is(err, ErrAuctionNotFound):
		return "auction_not_found"
	case errors.Is(err, ErrAuctionNotOpen):
		return "auction_not_open"
	case errors.Is(err, ErrBidTooLow):
		return "bid_too_low"
	case errors.Is(err, ErrSelfOutbid):
		return "self_outbid"
	case errors.Is(err, ErrNotInRoom):
		return "not_in_room"
	case errors.Is(err, ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, ErrNotAuthenticated):
		return "not_authenticated"
	default:
		return "internal_error"
	}
}
