package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/domain"
	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/market"
)

type recordingWriter struct {
	quotes []domain.Quote
}

func (w *recordingWriter) Write(ctx context.Context, q domain.Quote) {
	w.quotes = append(w.quotes, q)
}

type recordingPublisher struct {
	quotes      []domain.Quote
	suggestions []domain.TradeSuggestion
}

func (p *recordingPublisher) BroadcastQuote(q domain.Quote) {
	p.quotes = append(p.quotes, q)
}

func (p *recordingPublisher) BroadcastSuggestion(s domain.TradeSuggestion) {
	p.suggestions = append(p.suggestions, s)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestAnalyzer(t *testing.T) (*Analyzer, *market.Store, *recordingWriter, *recordingPublisher) {
	t.Helper()
	store := market.New(0)
	w := &recordingWriter{}
	p := &recordingPublisher{}
	a := NewAnalyzer(store, w, p, nil, Defaults(), testLogger())
	return a, store, w, p
}

func venueQuote(venue domain.Venue, mutate func(*domain.Quote)) domain.Quote {
	q := domain.Quote{
		SourceExchange:      venue,
		UnderlyingAsset:     "BTC",
		StrikePrice:         100000,
		OptionType:          "C",
		ExpirationTimestamp: "29DEC26",
		Timestamp:           1700000000000,
	}
	if mutate != nil {
		mutate(&q)
	}
	return q
}

func TestArbitrageDetection(t *testing.T) {
	a, _, _, pub := newTestAnalyzer(t)
	ctx := context.Background()

	// Deribit (venue A) bids 0.055, Derive (venue B) asks 0.050: buy B, sell A.
	a.IngestQuote(ctx, venueQuote(domain.VenueDeribit, func(q *domain.Quote) {
		q.BidPrice = domain.Float64Ptr(0.055)
	}))
	a.IngestQuote(ctx, venueQuote(domain.VenueDerive, func(q *domain.Quote) {
		q.AskPrice = domain.Float64Ptr(0.050)
		q.AskIV = domain.Float64Ptr(60)
	}))

	require.Len(t, pub.suggestions, 1)
	s := pub.suggestions[0]
	assert.Equal(t, domain.SuggestionArbitrage, s.Type)
	assert.Equal(t, "Buy Derive / Sell Deribit", s.Action)
	assert.InDelta(t, 100*(0.055-0.050)/0.050, s.Spread, 0.01)
	assert.InDelta(t, (0.055-0.050)*1000, s.ProfitEstimate, 0.01)
	assert.NotEmpty(t, s.ID)
	assert.NotZero(t, s.Timestamp)
	require.NotNil(t, s.GammaImpact)
	assert.Greater(t, *s.GammaImpact, 0.0)
	assert.Equal(t, "BTC-29DEC26-100000-C", s.Instrument)
}

func TestArbitrageTakesPriorityOverSkew(t *testing.T) {
	a, _, _, pub := newTestAnalyzer(t)
	ctx := context.Background()

	// Both conditions hold: crossed prices and a >1pt IV gap. Only the
	// arbitrage suggestion may fire.
	a.IngestQuote(ctx, venueQuote(domain.VenueDeribit, func(q *domain.Quote) {
		q.BidPrice = domain.Float64Ptr(0.06)
		q.BidIV = domain.Float64Ptr(70)
	}))
	a.IngestQuote(ctx, venueQuote(domain.VenueDerive, func(q *domain.Quote) {
		q.AskPrice = domain.Float64Ptr(0.05)
		q.AskIV = domain.Float64Ptr(55)
	}))

	require.Len(t, pub.suggestions, 1)
	assert.Equal(t, domain.SuggestionArbitrage, pub.suggestions[0].Type)
}

func TestSkewDetectionWithoutArbitrage(t *testing.T) {
	a, _, _, pub := newTestAnalyzer(t)
	ctx := context.Background()

	a.IngestQuote(ctx, venueQuote(domain.VenueDeribit, func(q *domain.Quote) {
		q.BidPrice = domain.Float64Ptr(0.05)
		q.BidIV = domain.Float64Ptr(62.5)
	}))
	a.IngestQuote(ctx, venueQuote(domain.VenueDerive, func(q *domain.Quote) {
		q.AskPrice = domain.Float64Ptr(0.05) // not crossed
		q.AskIV = domain.Float64Ptr(60)
	}))

	require.Len(t, pub.suggestions, 1)
	s := pub.suggestions[0]
	assert.Equal(t, domain.SuggestionVolatilitySkew, s.Type)
	assert.Equal(t, "Sell Deribit / Buy Derive", s.Action)
	assert.InDelta(t, 2.5, s.Spread, 0.001)
	assert.Equal(t, 150.0, s.ProfitEstimate)
}

func TestSkewBelowThresholdIsSilent(t *testing.T) {
	a, _, _, pub := newTestAnalyzer(t)
	ctx := context.Background()

	a.IngestQuote(ctx, venueQuote(domain.VenueDeribit, func(q *domain.Quote) {
		q.BidIV = domain.Float64Ptr(60.5)
	}))
	a.IngestQuote(ctx, venueQuote(domain.VenueDerive, func(q *domain.Quote) {
		q.AskIV = domain.Float64Ptr(60)
	}))

	assert.Empty(t, pub.suggestions)
}

func TestNoDetectionWithSingleVenue(t *testing.T) {
	a, _, _, pub := newTestAnalyzer(t)
	ctx := context.Background()

	a.IngestQuote(ctx, venueQuote(domain.VenueDeribit, func(q *domain.Quote) {
		q.BidPrice = domain.Float64Ptr(0.06)
		q.BidIV = domain.Float64Ptr(90)
	}))

	assert.Empty(t, pub.suggestions)
	assert.Len(t, pub.quotes, 1) // the raw quote still streams out
}

func TestMalformedPayloadHasNoSideEffects(t *testing.T) {
	a, store, w, pub := newTestAnalyzer(t)
	ctx := context.Background()

	a.Ingest(ctx, []byte("{not json"))
	a.Ingest(ctx, []byte(`{"source_exchange":"Deribit"}`)) // schema-invalid

	assert.Zero(t, store.Len())
	assert.Empty(t, w.quotes)
	assert.Empty(t, pub.quotes)
	assert.Empty(t, pub.suggestions)
}

func TestIngestSerializedQuote(t *testing.T) {
	a, store, w, pub := newTestAnalyzer(t)

	a.Ingest(context.Background(), []byte(`{
		"source_exchange": "Deribit",
		"underlying_asset": "BTC",
		"strike_price": 100000.4,
		"option_type": "C",
		"expiration_timestamp": "29DEC26",
		"bid_price": 0.05,
		"timestamp": 1700000000000
	}`))

	assert.Equal(t, 1, store.Len())
	require.Len(t, w.quotes, 1)
	require.Len(t, pub.quotes, 1)
	// Truncated strike in the derived identity.
	assert.Equal(t, "BTC-29DEC26-100000-C", w.quotes[0].Instrument())
}

func TestReingestIdenticalQuoteIsIdempotentInStore(t *testing.T) {
	a, store, w, _ := newTestAnalyzer(t)
	ctx := context.Background()

	q := venueQuote(domain.VenueDeribit, func(q *domain.Quote) {
		q.BidPrice = domain.Float64Ptr(0.05)
	})
	a.IngestQuote(ctx, q)
	a.IngestQuote(ctx, q)

	// Store content unchanged; persistence sees exactly one write per call.
	assert.Equal(t, 1, store.Len())
	snap := store.Snapshot(q.Instrument())
	assert.Len(t, snap, 1)
	assert.Len(t, w.quotes, 2)
}

func TestArbitrageUsesDefaultIVWhenAbsent(t *testing.T) {
	a, _, _, pub := newTestAnalyzer(t)
	ctx := context.Background()

	a.IngestQuote(ctx, venueQuote(domain.VenueDeribit, func(q *domain.Quote) {
		q.BidPrice = domain.Float64Ptr(0.055)
	}))
	a.IngestQuote(ctx, venueQuote(domain.VenueDerive, func(q *domain.Quote) {
		q.AskPrice = domain.Float64Ptr(0.050) // no ask_iv on purpose
	}))

	require.Len(t, pub.suggestions, 1)
	require.NotNil(t, pub.suggestions[0].GammaImpact)
	assert.Greater(t, *pub.suggestions[0].GammaImpact, 0.0)
}
