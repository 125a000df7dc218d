// Package risk computes the gamma-based exposure metric used to size
// detected opportunities.
package risk

import (
	"math"

	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/domain"
)

// daysPerYear converts a day count to the year fraction used by the model.
const daysPerYear = 365.0

// normPDF is the standard normal density.
func normPDF(x float64) float64 {
	return math.Exp(-0.5*x*x) / math.Sqrt(2*math.Pi)
}

// bsGamma returns the Black-Scholes gamma with the risk-free rate fixed at
// zero, the quoting convention for crypto options (see Deribit's inverse
// contract pricing). Degenerate inputs (T <= 0 or sigma <= 0) yield 0.
func bsGamma(spot, strike, yearFrac, sigma float64) float64 {
	if yearFrac <= 0 || sigma <= 0 || spot <= 0 || strike <= 0 {
		return 0
	}
	sqrtT := math.Sqrt(yearFrac)
	d1 := (math.Log(spot/strike) + 0.5*sigma*sigma*yearFrac) / (sigma * sqrtT)
	return normPDF(d1) / (spot * sigma * sqrtT)
}

// GammaExposure returns the dollar gamma of a position for a 1% underlying
// move: gamma * contractSize * spot * 0.01, rounded to 6 decimal places.
// daysToExpiry is converted to a year fraction and ivPct is a percentage
// (e.g. 50 for 50%). Inputs with zero time value or zero volatility return 0.
func GammaExposure(spot, strike, daysToExpiry, ivPct, contractSize float64) float64 {
	g := bsGamma(spot, strike, daysToExpiry/daysPerYear, ivPct/100)
	return round6(g * contractSize * spot * 0.01)
}

// GammaExposureBatch applies GammaExposure element-wise over parallel input
// slices. All slices must have the same length; the degenerate-input rule is
// applied per element.
func GammaExposureBatch(spots, strikes, days, ivPcts, sizes []float64) ([]float64, error) {
	n := len(spots)
	if len(strikes) != n || len(days) != n || len(ivPcts) != n || len(sizes) != n {
		return nil, domain.ErrLengthMismatch
	}
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		out[i] = GammaExposure(spots[i], strikes[i], days[i], ivPcts[i], sizes[i])
	}
	return out, nil
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}
