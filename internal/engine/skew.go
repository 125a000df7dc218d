package engine

import (
	"fmt"

	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/domain"
)

// SkewRule fires when venue A bids volatility more than the threshold above
// venue B's offer: sell the richer vol on A, buy it back on B. It ranks
// below the arbitrage rule, so it is only consulted when no price arbitrage
// exists on the same pair.
type SkewRule struct {
	cfg Config
}

// NewSkewRule creates the rule with the given detection parameters.
func NewSkewRule(cfg Config) *SkewRule {
	return &SkewRule{cfg: cfg}
}

// Name identifies the rule.
func (r *SkewRule) Name() string { return "volatility_skew" }

// Detect compares A.bid_iv against B.ask_iv in IV points. The profit
// estimate is a fixed configured placeholder.
func (r *SkewRule) Detect(instrument string, a, b domain.Quote) (domain.TradeSuggestion, bool) {
	if a.BidIV == nil || b.AskIV == nil {
		return domain.TradeSuggestion{}, false
	}
	diff := *a.BidIV - *b.AskIV
	if diff <= r.cfg.SkewThresholdPts {
		return domain.TradeSuggestion{}, false
	}

	return domain.TradeSuggestion{
		Instrument:     instrument,
		Type:           domain.SuggestionVolatilitySkew,
		Action:         fmt.Sprintf("Sell %s / Buy %s", r.cfg.VenueA, r.cfg.VenueB),
		Spread:         round2(diff),
		ProfitEstimate: r.cfg.SkewProfitEstimate,
	}, true
}
