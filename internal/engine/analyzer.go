package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/domain"
	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/market"
)

// QuoteWriter is the persistence entry consumed per accepted quote.
type QuoteWriter interface {
	Write(ctx context.Context, q domain.Quote)
}

// Publisher fans quotes and suggestions out to subscribers.
type Publisher interface {
	BroadcastQuote(q domain.Quote)
	BroadcastSuggestion(s domain.TradeSuggestion)
}

// Alerter receives emitted suggestions for out-of-band notification
// channels. Optional.
type Alerter interface {
	SuggestionAlert(ctx context.Context, s domain.TradeSuggestion)
}

// Analyzer is the ingestion entry point. For each accepted quote it updates
// the quote store, dual-writes persistence, broadcasts the raw quote, and
// runs the detection rules for the quote's instrument, emitting at most one
// suggestion per update.
type Analyzer struct {
	store   *market.Store
	writer  QuoteWriter
	pub     Publisher
	alerter Alerter
	rules   []Rule
	cfg     Config
	logger  *slog.Logger
	now     func() time.Time
}

// NewAnalyzer wires the analyzer with the default rule order: arbitrage
// first, volatility skew second. Adding a detector is a rule append, not a
// rewrite. writer and alerter may be nil.
func NewAnalyzer(store *market.Store, writer QuoteWriter, pub Publisher, alerter Alerter, cfg Config, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		store:   store,
		writer:  writer,
		pub:     pub,
		alerter: alerter,
		rules: []Rule{
			NewArbitrageRule(cfg),
			NewSkewRule(cfg),
		},
		cfg:    cfg,
		logger: logger.With(slog.String("component", "analyzer")),
		now:    time.Now,
	}
}

// Ingest accepts one serialized quote payload. Malformed or schema-invalid
// payloads are dropped silently: no store update, no persistence, no
// broadcast. This is the tolerance policy for best-effort venue feeds, not
// an error condition.
func (a *Analyzer) Ingest(ctx context.Context, raw []byte) {
	q, err := domain.ParseQuote(raw)
	if err != nil {
		a.logger.Debug("dropping malformed quote", slog.String("error", err.Error()))
		return
	}
	a.IngestQuote(ctx, q)
}

// IngestQuote accepts one normalized quote value. Invalid quotes are dropped
// silently, matching Ingest.
func (a *Analyzer) IngestQuote(ctx context.Context, q domain.Quote) {
	if err := q.Validate(); err != nil {
		a.logger.Debug("dropping invalid quote", slog.String("error", err.Error()))
		return
	}

	instrument := a.store.Upsert(q)

	if a.writer != nil {
		a.writer.Write(ctx, q)
	}
	if a.pub != nil {
		a.pub.BroadcastQuote(q)
	}

	a.detect(ctx, instrument)
}

// detect reads the instrument's per-venue snapshot and evaluates the rules
// in priority order, stopping at the first match. Detection requires quotes
// from both reference venues.
func (a *Analyzer) detect(ctx context.Context, instrument string) {
	snap := a.store.Snapshot(instrument)

	quoteA, okA := snap[a.cfg.VenueA]
	quoteB, okB := snap[a.cfg.VenueB]
	if !okA || !okB {
		return
	}

	for _, rule := range a.rules {
		s, ok := rule.Detect(instrument, quoteA, quoteB)
		if !ok {
			continue
		}

		s.ID = uuid.NewString()
		s.Timestamp = a.now().UnixMilli()

		a.logger.Info("suggestion emitted",
			slog.String("rule", rule.Name()),
			slog.String("instrument", instrument),
			slog.Float64("spread", s.Spread),
		)

		if a.pub != nil {
			a.pub.BroadcastSuggestion(s)
		}
		if a.alerter != nil {
			a.alerter.SuggestionAlert(ctx, s)
		}
		return
	}
}
