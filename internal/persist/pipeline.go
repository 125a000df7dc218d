// Package persist implements the tiered quote persistence pipeline: an
// immediate overwrite into the hot cache plus a buffered batch insert into
// the durable tick store. Both paths are best-effort and independent; a
// failure in one never blocks or corrupts the other.
package persist

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/domain"
)

// Archiver receives flushed batches for cold storage. Optional.
type Archiver interface {
	ArchiveBatch(ctx context.Context, flushedAt time.Time, quotes []domain.Quote) error
}

// Config holds pipeline tuning parameters.
type Config struct {
	// BatchSize triggers a flush when the buffer reaches this many quotes.
	BatchSize int
	// FlushInterval triggers a flush when this much wall-clock time has
	// passed since the last one, regardless of buffer size.
	FlushInterval time.Duration
	// FlushTimeout bounds the final durable write during shutdown.
	FlushTimeout time.Duration
}

// Pipeline dual-writes accepted quotes. Write is cheap and non-blocking for
// ingestion callers: the durable insert happens on the flush task, which is
// woken either by the size threshold or by the interval ticker. The two
// triggers feed one mutex-guarded flush routine, so a buffer swap and its
// insert are never concurrent with another flush.
type Pipeline struct {
	cache    domain.QuoteCache // nil when the hot path is disabled
	store    domain.TickStore  // nil when the durable path is disabled
	archiver Archiver          // nil when cold storage is disabled
	logger   *slog.Logger

	batchSize     int
	flushInterval time.Duration
	flushTimeout  time.Duration

	bufMu sync.Mutex
	buf   []domain.Quote

	flushMu sync.Mutex
	flushCh chan struct{}

	now func() time.Time
}

// New creates a Pipeline. Either cache or store may be nil; the remaining
// path keeps working.
func New(cache domain.QuoteCache, store domain.TickStore, archiver Archiver, cfg Config, logger *slog.Logger) *Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = 5 * time.Second
	}
	if cfg.FlushTimeout <= 0 {
		cfg.FlushTimeout = 10 * time.Second
	}
	return &Pipeline{
		cache:         cache,
		store:         store,
		archiver:      archiver,
		logger:        logger.With(slog.String("component", "persist")),
		batchSize:     cfg.BatchSize,
		flushInterval: cfg.FlushInterval,
		flushTimeout:  cfg.FlushTimeout,
		buf:           make([]domain.Quote, 0, cfg.BatchSize),
		flushCh:       make(chan struct{}, 1),
		now:           time.Now,
	}
}

// Write persists one accepted quote on both paths. Hot-cache failures are
// logged and skipped; the durable buffer append always proceeds. When the
// buffer reaches the batch threshold the flush task is signalled without
// blocking the caller.
func (p *Pipeline) Write(ctx context.Context, q domain.Quote) {
	if p.cache != nil {
		if err := p.cache.SetLatest(ctx, q); err != nil {
			p.logger.Warn("hot-path write skipped",
				slog.String("instrument", q.Instrument()),
				slog.String("error", err.Error()),
			)
		}
	}

	if p.store == nil && p.archiver == nil {
		return
	}

	p.bufMu.Lock()
	p.buf = append(p.buf, q)
	full := len(p.buf) >= p.batchSize
	p.bufMu.Unlock()

	if full {
		select {
		case p.flushCh <- struct{}{}:
		default:
			// A flush signal is already pending.
		}
	}
}

// Buffered returns the number of quotes awaiting durable write.
func (p *Pipeline) Buffered() int {
	p.bufMu.Lock()
	defer p.bufMu.Unlock()
	return len(p.buf)
}

// Run owns the interval trigger. It blocks until ctx is cancelled, then
// performs one final flush so buffered quotes are not lost on a controlled
// shutdown. It always returns nil on clean cancellation.
func (p *Pipeline) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.flushInterval)
	defer ticker.Stop()

	p.logger.Info("flush task started",
		slog.Int("batch_size", p.batchSize),
		slog.Duration("flush_interval", p.flushInterval),
	)

	for {
		select {
		case <-ctx.Done():
			// Final flush runs on a detached context: the run context is
			// already cancelled at this point.
			flushCtx, cancel := context.WithTimeout(context.Background(), p.flushTimeout)
			p.flush(flushCtx)
			cancel()
			p.logger.Info("flush task stopped")
			return nil
		case <-ticker.C:
			p.flush(ctx)
		case <-p.flushCh:
			p.flush(ctx)
		}
	}
}

// flush atomically swaps out the buffer and performs a single multi-row
// insert tagged with the flush wall-clock time. Insert failures are logged
// and the batch is dropped; there is no retry or dead-letter.
func (p *Pipeline) flush(ctx context.Context) {
	p.flushMu.Lock()
	defer p.flushMu.Unlock()

	p.bufMu.Lock()
	if len(p.buf) == 0 {
		p.bufMu.Unlock()
		return
	}
	batch := p.buf
	p.buf = make([]domain.Quote, 0, p.batchSize)
	p.bufMu.Unlock()

	flushedAt := p.now().UTC()

	if p.store != nil {
		if err := p.store.InsertBatch(ctx, flushedAt, batch); err != nil {
			p.logger.Error("durable flush failed, dropping batch",
				slog.Int("batch_size", len(batch)),
				slog.String("error", err.Error()),
			)
		} else {
			p.logger.Debug("flushed batch",
				slog.Int("batch_size", len(batch)),
				slog.Time("flushed_at", flushedAt),
			)
		}
	}

	if p.archiver != nil {
		if err := p.archiver.ArchiveBatch(ctx, flushedAt, batch); err != nil {
			p.logger.Warn("batch archive failed",
				slog.Int("batch_size", len(batch)),
				slog.String("error", err.Error()),
			)
		}
	}
}
