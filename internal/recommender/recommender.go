// Package recommender periodically compares the latest implied volatility
// of each option series against its recent historical mean and emits
// premium-selling or premium-buying strategy suggestions.
package recommender

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/domain"
)

// Publisher pushes a suggestion to connected subscribers.
type Publisher interface {
	BroadcastSuggestion(s domain.TradeSuggestion)
}

// Alerter delivers a suggestion to out-of-band channels. May be nil.
type Alerter interface {
	SuggestionAlert(ctx context.Context, s domain.TradeSuggestion)
}

// Config holds the evaluation parameters.
type Config struct {
	// Venue whose history backs the IV mean.
	Venue domain.Venue
	// Interval between evaluation passes.
	Interval time.Duration
	// Window of history to average over.
	Window time.Duration
	// ThresholdPts is the IV deviation, in percentage points, that
	// triggers a suggestion.
	ThresholdPts float64
	// MinSamples is the minimum number of rows a series needs before its
	// mean is considered meaningful.
	MinSamples int
	// ProfitPerPoint scales the deviation into a rough profit estimate.
	ProfitPerPoint float64
}

// Defaults returns the stock evaluation parameters.
func Defaults() Config {
	return Config{
		Venue:          domain.VenueDeribit,
		Interval:       15 * time.Second,
		Window:         4 * time.Hour,
		ThresholdPts:   5.0,
		MinSamples:     50,
		ProfitPerPoint: 10.0,
	}
}

// Engine runs the recommendation loop.
type Engine struct {
	cfg     Config
	store   domain.TickStore
	pub     Publisher
	alerter Alerter
	logger  *slog.Logger
	now     func() time.Time
}

// New creates the engine. store and pub are required; alerter may be nil.
func New(cfg Config, store domain.TickStore, pub Publisher, alerter Alerter, logger *slog.Logger) *Engine {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if cfg.Window <= 0 {
		cfg.Window = 4 * time.Hour
	}
	if cfg.Venue == "" {
		cfg.Venue = domain.VenueDeribit
	}
	if cfg.ThresholdPts <= 0 {
		cfg.ThresholdPts = 5.0
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 50
	}
	if cfg.ProfitPerPoint <= 0 {
		cfg.ProfitPerPoint = 10.0
	}
	return &Engine{
		cfg:     cfg,
		store:   store,
		pub:     pub,
		alerter: alerter,
		logger:  logger.With(slog.String("component", "recommender")),
		now:     time.Now,
	}
}

// Run evaluates on every tick until ctx is cancelled. Store failures are
// logged and retried on the next tick.
func (e *Engine) Run(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			suggestions, err := e.Evaluate(ctx)
			if err != nil {
				e.logger.Error("evaluation failed", slog.String("error", err.Error()))
				continue
			}
			for _, s := range suggestions {
				e.pub.BroadcastSuggestion(s)
				if e.alerter != nil {
					e.alerter.SuggestionAlert(ctx, s)
				}
			}
		}
	}
}

// series groups ticks sharing an underlying and expiry.
type series struct {
	underlying string
	expiry     string
}

// Evaluate runs one pass over the history window and returns all series
// whose latest IV deviates from the window mean by more than the threshold.
func (e *Engine) Evaluate(ctx context.Context) ([]domain.TradeSuggestion, error) {
	now := e.now()
	rows, err := e.store.ListVenueSince(ctx, e.cfg.Venue, now.Add(-e.cfg.Window))
	if err != nil {
		return nil, fmt.Errorf("recommender: list history: %w", err)
	}

	grouped := map[series][]domain.TickRow{}
	for _, row := range rows {
		if row.AskIV == nil {
			continue
		}
		key := series{underlying: row.UnderlyingAsset, expiry: row.ExpirationTimestamp}
		grouped[key] = append(grouped[key], row)
	}

	keys := make([]series, 0, len(grouped))
	for key := range grouped {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].underlying != keys[j].underlying {
			return keys[i].underlying < keys[j].underlying
		}
		return keys[i].expiry < keys[j].expiry
	})

	var out []domain.TradeSuggestion
	for _, key := range keys {
		if s, ok := e.evaluateSeries(key, grouped[key], now); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func (e *Engine) evaluateSeries(key series, rows []domain.TickRow, now time.Time) (domain.TradeSuggestion, bool) {
	if len(rows) < e.cfg.MinSamples {
		return domain.TradeSuggestion{}, false
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].Time.Before(rows[j].Time) })

	var sum float64
	for _, row := range rows {
		sum += *row.AskIV
	}
	mean := sum / float64(len(rows))
	latest := *rows[len(rows)-1].AskIV
	diff := latest - mean

	if math.Abs(diff) <= e.cfg.ThresholdPts {
		return domain.TradeSuggestion{}, false
	}

	strategy := "Iron Condor / Short Strangle"
	action := "Sell Premium"
	if diff < 0 {
		strategy = "Long Straddle / Strangle"
		action = "Buy Premium"
	}

	return domain.TradeSuggestion{
		ID:             uuid.NewString(),
		Instrument:     fmt.Sprintf("%s-%s", key.underlying, key.expiry),
		Type:           domain.SuggestionStrategy,
		Action:         action,
		Spread:         round2(diff),
		ProfitEstimate: round2(math.Abs(diff) * e.cfg.ProfitPerPoint),
		Reasoning: fmt.Sprintf("Consider %s: latest ask IV %.2f is %.2f points %s the %s mean of %.2f",
			strategy, latest, math.Abs(round2(diff)), direction(diff), e.cfg.Window, mean),
		Timestamp: now.UnixMilli(),
	}, true
}

func direction(diff float64) string {
	if diff < 0 {
		return "below"
	}
	return "above"
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
