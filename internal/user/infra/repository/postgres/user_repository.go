package postgres

import (
	"context"
	"errors"

	"bidhaus/internal/user/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UserRepository implements domain.UserRepository over Postgres.
type UserRepository struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

func (r *UserRepository) GetByToken(ctx context.Context, token string) (*domain.User, error) {
	query := `SELECT id, display_name FROM users WHERE token = $1`

	user := &domain.User{}
	err := r.pool.QueryRow(ctx, query, token).Scan(&user.ID, &user.DisplayName)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUnknownToken
		}
		return nil, err
	}
	return user, nil
}
