package postgres

import (
	"context"
	"errors"
	"time"

	"bidhaus/internal/auction/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AuctionRepository implements domain.AuctionRepository over Postgres.
type AuctionRepository struct {
	pool *pgxpool.Pool
}

func NewAuctionRepository(pool *pgxpool.Pool) *AuctionRepository {
	return &AuctionRepository{pool: pool}
}

const auctionColumns = `id, title, starting_price, min_increment, start_time, end_time, soft_close, status, created_at, updated_at`

// Save inserts or updates an auction definition. Used by catalog tooling
// and tests; runtime status changes go through UpdateStatus.
func (r *AuctionRepository) Save(ctx context.Context, auction *domain.Auction) error {
	query := `
        INSERT INTO auctions (id, title, starting_price, min_increment, start_time, end_time, soft_close, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
        ON CONFLICT (id) DO UPDATE
        SET
            title = EXCLUDED.title,
            starting_price = EXCLUDED.starting_price,
            min_increment = EXCLUDED.min_increment,
            start_time = EXCLUDED.start_time,
            end_time = EXCLUDED.end_time,
            soft_close = EXCLUDED.soft_close,
            status = EXCLUDED.status,
            updated_at = NOW();
    `
	_, err := r.pool.Exec(ctx, query,
		auction.ID,
		auction.Title,
		auction.StartingPrice,
		auction.MinIncrement,
		auction.StartTime,
		auction.EndTime,
		auction.SoftClose.Nanoseconds(),
		auction.Status,
	)
	return err
}

func (r *AuctionRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE id = $1`
	auction, err := scanAuction(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAuctionNotFound
		}
		return nil, err
	}
	return auction, nil
}

func (r *AuctionRepository) GetActive(ctx context.Context) ([]*domain.Auction, error) {
	query := `SELECT ` + auctionColumns + ` FROM auctions WHERE status = $1 OR status = $2 ORDER BY end_time ASC`
	rows, err := r.pool.Query(ctx, query, domain.StatusPending, domain.StatusOpen)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var auctions []*domain.Auction
	for rows.Next() {
		auction, err := scanAuction(rows)
		if err != nil {
			return nil, err
		}
		auctions = append(auctions, auction)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return auctions, nil
}

func (r *AuctionRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.AuctionStatus) error {
	query := `UPDATE auctions SET status = $2, updated_at = NOW() WHERE id = $1`
	_, err := r.pool.Exec(ctx, query, id, status)
	return err
}

func scanAuction(row pgx.Row) (*domain.Auction, error) {
	auction := &domain.Auction{}
	var softCloseNanos int64
	err := row.Scan(
		&auction.ID,
		&auction.Title,
		&auction.StartingPrice,
		&auction.MinIncrement,
		&auction.StartTime,
		&auction.EndTime,
		&softCloseNanos,
		&auction.Status,
		&auction.CreatedAt,
		&auction.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	auction.SoftClose = time.Duration(softCloseNanos)
	return auction, nil
}
