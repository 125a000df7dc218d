// Package engine turns concurrent venue quote updates into trade
// suggestions. The analyzer is the pipeline entry point: it validates and
// stores each quote, hands it to persistence and broadcast, then evaluates
// the detection rules for the quote's instrument.
package engine

import (
	"math"

	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/domain"
)

// Config holds detection parameters. The placeholder constants (7-day expiry
// approximation, fixed skew profit estimate, default IV) are stand-ins from
// the base design and deliberately configurable.
type Config struct {
	// VenueA and VenueB are the two designated reference venues. Detection
	// requires a quote from each.
	VenueA domain.Venue
	VenueB domain.Venue

	// NotionalUnit scales an arbitrage spread into a profit estimate.
	NotionalUnit float64
	// SkewThresholdPts is the minimum A.bid_iv - B.ask_iv gap (in IV points)
	// for a skew suggestion.
	SkewThresholdPts float64
	// SkewProfitEstimate is the fixed profit figure for skew suggestions.
	SkewProfitEstimate float64
	// DefaultIVPct substitutes for a missing ask IV in gamma enrichment.
	DefaultIVPct float64
	// ExpiryDaysApprox approximates time-to-expiry for gamma enrichment; a
	// production build would parse the venue expiration token instead.
	ExpiryDaysApprox float64
	// ContractSize is the per-contract size used for gamma enrichment.
	ContractSize float64
}

// Defaults returns the base detection parameters.
func Defaults() Config {
	return Config{
		VenueA:             domain.VenueDeribit,
		VenueB:             domain.VenueDerive,
		NotionalUnit:       1000,
		SkewThresholdPts:   1.0,
		SkewProfitEstimate: 150.0,
		DefaultIVPct:       50.0,
		ExpiryDaysApprox:   7,
		ContractSize:       1,
	}
}

// Rule inspects the reference-venue quote pair for one instrument and
// returns at most one suggestion. Rules are evaluated in registration order
// and evaluation stops at the first match, so ordering encodes priority.
// The returned suggestion has no ID or timestamp; the analyzer stamps both.
type Rule interface {
	Name() string
	Detect(instrument string, a, b domain.Quote) (domain.TradeSuggestion, bool)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
