package market

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/domain"
)

func quote(venue domain.Venue, strike float64, ts int64) domain.Quote {
	return domain.Quote{
		SourceExchange:      venue,
		UnderlyingAsset:     "BTC",
		StrikePrice:         strike,
		OptionType:          "C",
		ExpirationTimestamp: "29DEC26",
		BidPrice:            domain.Float64Ptr(0.05),
		Timestamp:           ts,
	}
}

func TestUpsertAndSnapshot(t *testing.T) {
	s := New(0)

	key := s.Upsert(quote(domain.VenueDeribit, 100000, 1))
	assert.Equal(t, "BTC-29DEC26-100000-C", key)

	s.Upsert(quote(domain.VenueDerive, 100000, 2))

	snap := s.Snapshot(key)
	require.Len(t, snap, 2)
	assert.Equal(t, int64(1), snap[domain.VenueDeribit].Timestamp)
	assert.Equal(t, int64(2), snap[domain.VenueDerive].Timestamp)
}

func TestLastWriteWins(t *testing.T) {
	s := New(0)

	key := s.Upsert(quote(domain.VenueDeribit, 100000, 1))
	s.Upsert(quote(domain.VenueDeribit, 100000, 2))

	snap := s.Snapshot(key)
	require.Len(t, snap, 1)
	assert.Equal(t, int64(2), snap[domain.VenueDeribit].Timestamp)
	assert.Equal(t, 1, s.Len())
}

func TestStrikeTruncationJoinsVenues(t *testing.T) {
	s := New(0)

	keyA := s.Upsert(quote(domain.VenueDeribit, 100000.0, 1))
	keyB := s.Upsert(quote(domain.VenueDerive, 100000.4, 2))

	assert.Equal(t, keyA, keyB)
	assert.Len(t, s.Snapshot(keyA), 2)
}

func TestSnapshotUnknownInstrument(t *testing.T) {
	s := New(0)
	snap := s.Snapshot("BTC-29DEC26-100000-C")
	assert.NotNil(t, snap)
	assert.Empty(t, snap)
}

func TestSnapshotFiltersStaleQuotes(t *testing.T) {
	s := New(time.Minute)
	now := time.Now()
	s.now = func() time.Time { return now }

	fresh := quote(domain.VenueDeribit, 100000, now.Add(-30*time.Second).UnixMilli())
	stale := quote(domain.VenueDerive, 100000, now.Add(-2*time.Minute).UnixMilli())
	key := s.Upsert(fresh)
	s.Upsert(stale)

	snap := s.Snapshot(key)
	require.Len(t, snap, 1)
	_, ok := snap[domain.VenueDeribit]
	assert.True(t, ok)
}

func TestConcurrentUpsert(t *testing.T) {
	s := New(0)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				q := quote(domain.Venue(fmt.Sprintf("venue-%d", n)), 100000, int64(j+1))
				key := s.Upsert(q)
				_ = s.Snapshot(key)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, s.Len())
	assert.Len(t, s.Snapshot("BTC-29DEC26-100000-C"), 8)
}
