package derive

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/domain"
)

func TestNormalizeExpiry(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"20261229", "29DEC26", true},
		{"20260101", "1JAN26", true},
		{"20260915", "15SEP26", true},
		{"29DEC26", "29DEC26", true},
		{"", "", false},
	}
	for _, tc := range cases {
		got, ok := NormalizeExpiry(tc.in)
		assert.Equal(t, tc.ok, ok, tc.in)
		if ok {
			assert.Equal(t, tc.want, got, tc.in)
		}
	}
}

func TestPollOnceNormalizesTickers(t *testing.T) {
	payload := map[string]any{
		"result": map[string]any{
			"tickers": map[string]any{
				"BTC-20261229-100000-C": map[string]any{
					"best_bid_price": "0.0512",
					"best_ask_price": "0.0543",
					"option_pricing": map[string]any{
						"bid_iv": "0.48",
						"ask_iv": "0.52",
					},
				},
				// No ask side, unquoted IVs.
				"BTC-20261229-120000-P": map[string]any{
					"best_bid_price": "0.02",
					"best_ask_price": "0",
					"option_pricing": map[string]any{
						"bid_iv": "",
						"ask_iv": "",
					},
				},
				// Malformed name is skipped.
				"BTC-PERP": map[string]any{
					"best_bid_price": "64000",
					"best_ask_price": "64010",
				},
			},
		},
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/public/get_tickers", r.URL.Path)

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "option", body["instrument_type"])
		assert.Equal(t, "BTC", body["currency"])

		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(payload))
	}))
	defer srv.Close()

	var got []domain.Quote
	sink := func(_ context.Context, q domain.Quote) { got = append(got, q) }

	c := New(Config{BaseURL: srv.URL}, sink, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	fixed := time.UnixMilli(1_700_000_000_000)
	c.now = func() time.Time { return fixed }

	require.NoError(t, c.pollOnce(context.Background()))
	require.Len(t, got, 2)

	byInstrument := map[string]domain.Quote{}
	for _, q := range got {
		byInstrument[q.Instrument()] = q
	}

	call, ok := byInstrument["BTC-29DEC26-100000-C"]
	require.True(t, ok)
	assert.Equal(t, domain.VenueDerive, call.SourceExchange)
	assert.Equal(t, "BTC", call.UnderlyingAsset)
	require.NotNil(t, call.BidPrice)
	assert.InDelta(t, 0.0512, *call.BidPrice, 1e-9)
	require.NotNil(t, call.AskIV)
	assert.InDelta(t, 52.0, *call.AskIV, 1e-9)
	assert.Equal(t, fixed.UnixMilli(), call.Timestamp)

	put, ok := byInstrument["BTC-29DEC26-120000-P"]
	require.True(t, ok)
	assert.Nil(t, put.AskPrice)
	assert.Nil(t, put.BidIV)
	assert.Nil(t, put.AskIV)
	require.NotNil(t, put.BidPrice)
	assert.InDelta(t, 0.02, *put.BidPrice, 1e-9)
}

func TestRunEmitsErrorStatusAndKeepsPolling(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	var statuses []string
	statusFn := func(venue domain.Venue, status string) {
		assert.Equal(t, domain.VenueDerive, venue)
		statuses = append(statuses, status)
	}

	c := New(Config{
		BaseURL:         srv.URL,
		ErrorRetryDelay: time.Millisecond,
		PollInterval:    time.Millisecond,
	}, func(context.Context, domain.Quote) {}, statusFn, slog.New(slog.NewTextHandler(io.Discard, nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := c.Run(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.GreaterOrEqual(t, len(statuses), 3)
	assert.Equal(t, domain.StatusConnected, statuses[0])
	for _, s := range statuses[1:] {
		assert.Equal(t, domain.StatusError, s)
	}
}
