package persist

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/domain"
)

type fakeCache struct {
	mu      sync.Mutex
	sets    int
	failAll bool
}

func (c *fakeCache) SetLatest(ctx context.Context, q domain.Quote) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failAll {
		return errors.New("cache down")
	}
	c.sets++
	return nil
}

func (c *fakeCache) GetLatest(ctx context.Context, underlying string, venue domain.Venue) (domain.Quote, error) {
	return domain.Quote{}, domain.ErrNotFound
}

type fakeStore struct {
	mu      sync.Mutex
	batches [][]domain.Quote
	times   []time.Time
	fail    bool
}

func (s *fakeStore) InsertBatch(ctx context.Context, flushedAt time.Time, quotes []domain.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("insert failed")
	}
	cp := make([]domain.Quote, len(quotes))
	copy(cp, quotes)
	s.batches = append(s.batches, cp)
	s.times = append(s.times, flushedAt)
	return nil
}

func (s *fakeStore) ListVenueSince(ctx context.Context, venue domain.Venue, since time.Time) ([]domain.TickRow, error) {
	return nil, nil
}

func (s *fakeStore) flushCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.batches)
}

func (s *fakeStore) totalRows() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

func testQuote(i int) domain.Quote {
	return domain.Quote{
		SourceExchange:      domain.VenueDeribit,
		UnderlyingAsset:     "BTC",
		StrikePrice:         100000,
		OptionType:          "C",
		ExpirationTimestamp: "29DEC26",
		Timestamp:           int64(i + 1),
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSizeThresholdTriggersSingleFlush(t *testing.T) {
	store := &fakeStore{}
	p := New(nil, store, nil, Config{BatchSize: 100, FlushInterval: time.Hour}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Run(ctx)
	}()

	for i := 0; i < 100; i++ {
		p.Write(ctx, testQuote(i))
	}

	require.Eventually(t, func() bool { return store.flushCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 100, store.totalRows())
	assert.Zero(t, p.Buffered())

	cancel()
	<-done
	// No second flush: the buffer was already empty at shutdown.
	assert.Equal(t, 1, store.flushCount())
}

func TestIntervalTriggersFlushOfPartialBatch(t *testing.T) {
	store := &fakeStore{}
	p := New(nil, store, nil, Config{BatchSize: 100, FlushInterval: 30 * time.Millisecond}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	p.Write(ctx, testQuote(0))

	require.Eventually(t, func() bool { return store.flushCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, store.totalRows())
}

func TestShutdownFlushesRemainingBuffer(t *testing.T) {
	store := &fakeStore{}
	p := New(nil, store, nil, Config{BatchSize: 100, FlushInterval: time.Hour}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = p.Run(ctx)
	}()

	for i := 0; i < 7; i++ {
		p.Write(ctx, testQuote(i))
	}
	assert.Equal(t, 7, p.Buffered())

	cancel()
	<-done

	assert.Equal(t, 1, store.flushCount())
	assert.Equal(t, 7, store.totalRows())
	assert.Zero(t, p.Buffered())
}

func TestInsertFailureDropsBatchAndContinues(t *testing.T) {
	store := &fakeStore{fail: true}
	p := New(nil, store, nil, Config{BatchSize: 2, FlushInterval: time.Hour}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	p.Write(ctx, testQuote(0))
	p.Write(ctx, testQuote(1))

	require.Eventually(t, func() bool { return p.Buffered() == 0 }, 2*time.Second, 10*time.Millisecond)

	// The failed batch is gone; later writes still flow.
	store.mu.Lock()
	store.fail = false
	store.mu.Unlock()

	p.Write(ctx, testQuote(2))
	p.Write(ctx, testQuote(3))

	require.Eventually(t, func() bool { return store.flushCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, store.totalRows())
}

func TestCacheFailureDoesNotBlockDurablePath(t *testing.T) {
	cache := &fakeCache{failAll: true}
	store := &fakeStore{}
	p := New(cache, store, nil, Config{BatchSize: 1, FlushInterval: time.Hour}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = p.Run(ctx) }()

	p.Write(ctx, testQuote(0))

	require.Eventually(t, func() bool { return store.flushCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, store.totalRows())
}

func TestHotPathWritesEveryQuote(t *testing.T) {
	cache := &fakeCache{}
	p := New(cache, nil, nil, Config{}, testLogger())

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		p.Write(ctx, testQuote(i))
	}

	cache.mu.Lock()
	defer cache.mu.Unlock()
	assert.Equal(t, 5, cache.sets)
	// No durable path configured: nothing buffers.
	assert.Zero(t, p.Buffered())
}
