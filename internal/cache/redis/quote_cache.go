package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/domain"
)

// QuoteCache implements domain.QuoteCache using plain Redis string slots.
// Two slots are overwritten per quote:
//
//	latest_quote:<underlying_asset>:<source_exchange>
//	latest_quote:<instrument>:<source_exchange>
//
// The first serves per-underlying lookups (the documented primary key
// scheme); the second keys by the full instrument identity for consumers
// that need a specific contract. No history is kept, only the latest value.
type QuoteCache struct {
	rdb *redis.Client
	ttl time.Duration // 0 means slots never expire
}

// NewQuoteCache creates a QuoteCache backed by the given Client. A non-zero
// ttl makes slots expire after the venue has gone quiet for that long.
func NewQuoteCache(c *Client, ttl time.Duration) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying(), ttl: ttl}
}

func underlyingKey(underlying string, venue domain.Venue) string {
	return fmt.Sprintf("latest_quote:%s:%s", underlying, venue)
}

func instrumentKey(instrument string, venue domain.Venue) string {
	return fmt.Sprintf("latest_quote:%s:%s", instrument, venue)
}

// SetLatest overwrites both latest-quote slots with the serialized quote in
// one pipelined round trip.
func (qc *QuoteCache) SetLatest(ctx context.Context, q domain.Quote) error {
	payload, err := json.Marshal(q)
	if err != nil {
		return fmt.Errorf("redis: marshal quote: %w", err)
	}

	pipe := qc.rdb.Pipeline()
	pipe.Set(ctx, underlyingKey(q.UnderlyingAsset, q.SourceExchange), payload, qc.ttl)
	pipe.Set(ctx, instrumentKey(q.Instrument(), q.SourceExchange), payload, qc.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set latest quote %s: %w", q.Instrument(), err)
	}
	return nil
}

// GetLatest returns the latest cached quote for an underlying at a venue.
// It returns domain.ErrNotFound when the slot has never been written.
func (qc *QuoteCache) GetLatest(ctx context.Context, underlying string, venue domain.Venue) (domain.Quote, error) {
	data, err := qc.rdb.Get(ctx, underlyingKey(underlying, venue)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Quote{}, domain.ErrNotFound
		}
		return domain.Quote{}, fmt.Errorf("redis: get latest quote %s/%s: %w", underlying, venue, err)
	}

	var q domain.Quote
	if err := json.Unmarshal(data, &q); err != nil {
		return domain.Quote{}, fmt.Errorf("redis: decode latest quote %s/%s: %w", underlying, venue, err)
	}
	return q, nil
}

// LatestByInstrument returns the latest cached quote for a full instrument
// identity at a venue.
func (qc *QuoteCache) LatestByInstrument(ctx context.Context, instrument string, venue domain.Venue) (domain.Quote, error) {
	data, err := qc.rdb.Get(ctx, instrumentKey(instrument, venue)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return domain.Quote{}, domain.ErrNotFound
		}
		return domain.Quote{}, fmt.Errorf("redis: get latest quote %s/%s: %w", instrument, venue, err)
	}

	var q domain.Quote
	if err := json.Unmarshal(data, &q); err != nil {
		return domain.Quote{}, fmt.Errorf("redis: decode latest quote %s/%s: %w", instrument, venue, err)
	}
	return q, nil
}

// Compile-time interface check.
var _ domain.QuoteCache = (*QuoteCache)(nil)
