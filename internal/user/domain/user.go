package domain

import (
	"context"
	"errors"

	"github.com/google/uuid"
)

var ErrUnknownToken = errors.New("no user for token")

// User identifies a bidder resolved by the auth collaborator.
type User struct {
	ID          uuid.UUID
	DisplayName string
}

// UserRepository resolves bidder identity from session credentials. The
// bidding core trusts a resolved ID and performs no authentication itself.
type UserRepository interface {
	GetByToken(ctx context.Context, token string) (*User, error)
}
