package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/domain"
)

// TickStore implements domain.TickStore over the option_ticks table.
type TickStore struct {
	pool *pgxpool.Pool
}

// NewTickStore creates a TickStore backed by the given connection pool.
func NewTickStore(pool *pgxpool.Pool) *TickStore {
	return &TickStore{pool: pool}
}

const tickInsert = `
	INSERT INTO option_ticks (
		time, source_exchange, underlying_asset, strike_price, option_type,
		expiration_timestamp, bid_price, ask_price, bid_iv, ask_iv
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

// InsertBatch writes every quote as one row, all tagged with the flush
// wall-clock time, using a single pgx batch round trip.
func (s *TickStore) InsertBatch(ctx context.Context, flushedAt time.Time, quotes []domain.Quote) error {
	if len(quotes) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, q := range quotes {
		batch.Queue(tickInsert,
			flushedAt, string(q.SourceExchange), q.UnderlyingAsset,
			q.StrikePrice, q.OptionType, q.ExpirationTimestamp,
			q.BidPrice, q.AskPrice, q.BidIV, q.AskIV,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range quotes {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert tick batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListVenueSince returns all ticks for a venue with time >= since, ordered
// by time ascending. It feeds the historical strategy recommender.
func (s *TickStore) ListVenueSince(ctx context.Context, venue domain.Venue, since time.Time) ([]domain.TickRow, error) {
	const query = `
		SELECT time, source_exchange, underlying_asset, strike_price,
			option_type, expiration_timestamp, bid_price, ask_price,
			bid_iv, ask_iv
		FROM option_ticks
		WHERE source_exchange = $1 AND time >= $2
		ORDER BY time ASC`

	rows, err := s.pool.Query(ctx, query, string(venue), since)
	if err != nil {
		return nil, fmt.Errorf("postgres: list ticks for %s: %w", venue, err)
	}
	defer rows.Close()

	var ticks []domain.TickRow
	for rows.Next() {
		var r domain.TickRow
		var venueStr string
		if err := rows.Scan(
			&r.Time, &venueStr, &r.UnderlyingAsset, &r.StrikePrice,
			&r.OptionType, &r.ExpirationTimestamp, &r.BidPrice, &r.AskPrice,
			&r.BidIV, &r.AskIV,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan tick row: %w", err)
		}
		r.SourceExchange = domain.Venue(venueStr)
		ticks = append(ticks, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterate tick rows: %w", err)
	}
	return ticks, nil
}

// Compile-time interface check.
var _ domain.TickStore = (*TickStore)(nil)
