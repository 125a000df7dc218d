package engine

import (
	"fmt"

	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/domain"
	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/risk"
)

// ArbitrageRule fires when venue B's ask crosses under venue A's bid: buy
// the contract on B, sell it on A, pocket the spread. Suggestions are
// enriched with the dollar-gamma exposure of the position.
type ArbitrageRule struct {
	cfg Config
}

// NewArbitrageRule creates the rule with the given detection parameters.
func NewArbitrageRule(cfg Config) *ArbitrageRule {
	return &ArbitrageRule{cfg: cfg}
}

// Name identifies the rule.
func (r *ArbitrageRule) Name() string { return "arbitrage" }

// Detect compares B.ask against A.bid. Both sides must be quoted; crossed
// books within a single venue are irrelevant here, only the cross-venue gap
// matters.
func (r *ArbitrageRule) Detect(instrument string, a, b domain.Quote) (domain.TradeSuggestion, bool) {
	if b.AskPrice == nil || a.BidPrice == nil {
		return domain.TradeSuggestion{}, false
	}
	buyAt := *b.AskPrice
	sellAt := *a.BidPrice
	if buyAt <= 0 || buyAt >= sellAt {
		return domain.TradeSuggestion{}, false
	}

	spread := sellAt - buyAt

	// Missing IV falls back to the configured default rather than skipping
	// enrichment; time to expiry uses the fixed approximation.
	ivPct := r.cfg.DefaultIVPct
	if b.AskIV != nil {
		ivPct = *b.AskIV
	}
	// Spot is approximated by the strike (at-the-money assumption); the
	// feed does not carry an underlying index price.
	gamma := risk.GammaExposure(
		b.StrikePrice, b.StrikePrice,
		r.cfg.ExpiryDaysApprox, ivPct, r.cfg.ContractSize,
	)

	return domain.TradeSuggestion{
		Instrument:     instrument,
		Type:           domain.SuggestionArbitrage,
		Action:         fmt.Sprintf("Buy %s / Sell %s", r.cfg.VenueB, r.cfg.VenueA),
		Spread:         round2(spread / buyAt * 100),
		ProfitEstimate: round2(spread * r.cfg.NotionalUnit),
		GammaImpact:    domain.Float64Ptr(gamma),
	}, true
}
