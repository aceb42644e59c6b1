package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/peterldowns/testy/assert"
	"github.com/peterldowns/testy/check"
)

func openAuction(startingPrice, minIncrement float64) *Auction {
	a := NewAuction(uuid.New(), "vintage synth", startingPrice, minIncrement,
		time.Now().Add(-time.Minute), time.Now().Add(time.Hour), 0)
	a.Status = StatusOpen
	return a
}

func TestPlaceBidAssignsSequenceAndHighest(t *testing.T) {
	a := openAuction(0, 10)
	bidderA := uuid.New()
	bidderB := uuid.New()

	bid, err := a.PlaceBid(bidderA, 100, time.Now(), true)
	assert.Nil(t, err)
	check.Equal(t, int64(1), bid.Sequence)
	check.Equal(t, 100.0, a.Highest.Amount)
	check.Equal(t, bidderA, a.Highest.BidderID)

	// 105 < 100 + 10
	_, err = a.PlaceBid(bidderB, 105, time.Now(), true)
	check.True(t, errors.Is(err, ErrBidTooLow))
	check.Equal(t, int64(1), a.Highest.Sequence)

	bid, err = a.PlaceBid(bidderB, 115, time.Now(), true)
	assert.Nil(t, err)
	check.Equal(t, int64(2), bid.Sequence)
	check.Equal(t, 115.0, a.Highest.Amount)
	check.Equal(t, bidderB, a.Highest.BidderID)
}

func TestPlaceBidDefaultIncrement(t *testing.T) {
	// minIncrement 0 means any amount strictly above the current highest.
	a := openAuction(0, 0)
	bidderA := uuid.New()
	bidderB := uuid.New()

	_, err := a.PlaceBid(bidderA, 50, time.Now(), true)
	assert.Nil(t, err)

	_, err = a.PlaceBid(bidderB, 50, time.Now(), true)
	check.True(t, errors.Is(err, ErrBidTooLow))

	_, err = a.PlaceBid(bidderB, 50.01, time.Now(), true)
	check.Nil(t, err)
}

func TestPlaceBidStartingPrice(t *testing.T) {
	a := openAuction(200, 0)

	_, err := a.PlaceBid(uuid.New(), 150, time.Now(), true)
	check.True(t, errors.Is(err, ErrBidTooLow))

	_, err = a.PlaceBid(uuid.New(), 200, time.Now(), true)
	check.Nil(t, err)
}

func TestPlaceBidSelfOutbid(t *testing.T) {
	a := openAuction(0, 0)
	bidder := uuid.New()

	_, err := a.PlaceBid(bidder, 115, time.Now(), true)
	assert.Nil(t, err)

	_, err = a.PlaceBid(bidder, 130, time.Now(), true)
	check.True(t, errors.Is(err, ErrSelfOutbid))

	// Policy disabled: outbidding yourself is allowed.
	bid, err := a.PlaceBid(bidder, 130, time.Now(), false)
	assert.Nil(t, err)
	check.Equal(t, int64(2), bid.Sequence)
}

func TestPlaceBidRejectsWhenNotOpen(t *testing.T) {
	for _, status := range []AuctionStatus{StatusPending, StatusClosed, StatusSettled} {
		a := openAuction(0, 0)
		a.Status = status
		_, err := a.PlaceBid(uuid.New(), 100, time.Now(), true)
		check.True(t, errors.Is(err, ErrAuctionNotOpen))
	}
}

func TestPlaceBidRejectsInvalidAmount(t *testing.T) {
	a := openAuction(0, 0)
	_, err := a.PlaceBid(uuid.New(), 0, time.Now(), true)
	check.True(t, errors.Is(err, ErrInvalidAmount))
	_, err = a.PlaceBid(uuid.New(), -5, time.Now(), true)
	check.True(t, errors.Is(err, ErrInvalidAmount))
}

func TestPlaceBidSoftCloseExtension(t *testing.T) {
	a := NewAuction(uuid.New(), "vintage synth", 0, 0,
		time.Now().Add(-time.Minute), time.Now().Add(10*time.Millisecond), 500*time.Millisecond)
	a.Status = StatusOpen
	originalEnd := a.EndTime

	_, err := a.PlaceBid(uuid.New(), 10, time.Now(), true)
	assert.Nil(t, err)
	check.True(t, a.EndTime.After(originalEnd))
}

func TestLifecycleTransitions(t *testing.T) {
	a := NewAuction(uuid.New(), "vintage synth", 0, 0,
		time.Now(), time.Now().Add(time.Hour), 0)
	check.Equal(t, StatusPending, a.Status)

	check.True(t, errors.Is(a.Close(), ErrAuctionNotOpen))
	check.True(t, errors.Is(a.Settle(), ErrAuctionNotClosed))

	assert.Nil(t, a.Open())
	check.Equal(t, StatusOpen, a.Status)
	check.True(t, errors.Is(a.Open(), ErrAuctionNotPending))

	assert.Nil(t, a.Close())
	check.Equal(t, StatusClosed, a.Status)

	assert.Nil(t, a.Settle())
	check.Equal(t, StatusSettled, a.Status)
	check.True(t, errors.Is(a.Settle(), ErrAuctionNotClosed))
}
