package domain

import (
	"context"
	"io"
	"time"
)

// QuoteCache is the hot-path store: a keyed overwrite-only slot per
// (underlying, venue) holding the latest serialized quote. Implemented by
// the Redis adapter. A nil or unavailable cache is tolerated; hot-path
// failures never block the durable path.
type QuoteCache interface {
	// SetLatest overwrites the latest-quote slots for the quote's underlying
	// and full instrument identity.
	SetLatest(ctx context.Context, q Quote) error
	// GetLatest returns the latest quote for an underlying at a venue.
	// Returns ErrNotFound when no quote has been cached yet.
	GetLatest(ctx context.Context, underlying string, venue Venue) (Quote, error)
}

// TickRow is one durable row of the option_ticks table. Time is assigned at
// flush, not taken from the quote's own timestamp.
type TickRow struct {
	Time                time.Time
	SourceExchange      Venue
	UnderlyingAsset     string
	StrikePrice         float64
	OptionType          string
	ExpirationTimestamp string
	BidPrice            *float64
	AskPrice            *float64
	BidIV               *float64
	AskIV               *float64
}

// TickStore is the durable append-only quote store. InsertBatch performs one
// multi-row write; ListVenueSince feeds the historical recommender.
type TickStore interface {
	InsertBatch(ctx context.Context, flushedAt time.Time, quotes []Quote) error
	ListVenueSince(ctx context.Context, venue Venue, since time.Time) ([]TickRow, error)
}

// BlobWriter uploads serialized batches to cold storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

// Broadcaster fans a serialized message out to all active subscribers.
// Delivery is best-effort: a failing subscriber is dropped, the caller never
// sees an error.
type Broadcaster interface {
	Broadcast(payload []byte)
}
