// Package domain defines the core types shared across the aggregator: the
// normalized option quote, the cross-venue instrument identity, trade
// suggestions, and the interfaces implemented by cache/store adapters.
package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Venue identifies a quote source exchange.
type Venue string

const (
	VenueDeribit     Venue = "Deribit"
	VenueDerive      Venue = "Derive"
	VenueHyperliquid Venue = "Hyperliquid"
)

// Quote is a single venue's priced state of one option instrument, normalized
// into the common schema all adapters emit. Bid/ask prices and IVs are
// pointers because venues routinely quote one side only; a crossed book
// (bid > ask) is legal and is not rejected.
type Quote struct {
	SourceExchange      Venue              `json:"source_exchange"`
	UnderlyingAsset     string             `json:"underlying_asset"`
	StrikePrice         float64            `json:"strike_price"`
	OptionType          string             `json:"option_type"`          // "C" or "P"
	ExpirationTimestamp string             `json:"expiration_timestamp"` // venue-format token, e.g. "29DEC26"
	BidPrice            *float64           `json:"bid_price,omitempty"`
	AskPrice            *float64           `json:"ask_price,omitempty"`
	BidIV               *float64           `json:"bid_iv,omitempty"`
	AskIV               *float64           `json:"ask_iv,omitempty"`
	Greeks              map[string]float64 `json:"greeks,omitempty"`
	Timestamp           int64              `json:"timestamp"` // ms since epoch
}

// Instrument derives the canonical cross-venue identity for the quote:
// UNDERLYING-EXPIRY-STRIKE-RIGHT with the strike truncated to an integer.
// Sub-unit strike differences therefore collapse onto the same instrument,
// which is the intended join behavior.
func (q Quote) Instrument() string {
	return fmt.Sprintf("%s-%s-%d-%s",
		q.UnderlyingAsset, q.ExpirationTimestamp, int64(q.StrikePrice), q.OptionType)
}

// Validate checks the minimum required fields for a quote to enter the
// pipeline. Optional prices/IVs are not inspected.
func (q Quote) Validate() error {
	if strings.TrimSpace(string(q.SourceExchange)) == "" {
		return fmt.Errorf("%w: missing source_exchange", ErrInvalidQuote)
	}
	if strings.TrimSpace(q.UnderlyingAsset) == "" {
		return fmt.Errorf("%w: missing underlying_asset", ErrInvalidQuote)
	}
	if q.StrikePrice <= 0 {
		return fmt.Errorf("%w: strike_price must be positive", ErrInvalidQuote)
	}
	if q.OptionType != "C" && q.OptionType != "P" {
		return fmt.Errorf("%w: option_type must be C or P", ErrInvalidQuote)
	}
	if strings.TrimSpace(q.ExpirationTimestamp) == "" {
		return fmt.Errorf("%w: missing expiration_timestamp", ErrInvalidQuote)
	}
	if q.Timestamp <= 0 {
		return fmt.Errorf("%w: missing timestamp", ErrInvalidQuote)
	}
	return nil
}

// ParseQuote decodes and validates a serialized quote payload.
func ParseQuote(raw []byte) (Quote, error) {
	var q Quote
	if err := json.Unmarshal(raw, &q); err != nil {
		return Quote{}, fmt.Errorf("%w: %v", ErrInvalidQuote, err)
	}
	if err := q.Validate(); err != nil {
		return Quote{}, err
	}
	return q, nil
}

// Float64Ptr is a convenience for building quotes with optional sides.
func Float64Ptr(v float64) *float64 { return &v }
