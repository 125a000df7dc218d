package domain

import "encoding/json"

// Suggestion categories. Arbitrage and volatility skew come from the live
// detection engine; strategy recommendations come from the periodic
// historical-analysis loop.
const (
	SuggestionArbitrage      = "Arbitrage"
	SuggestionVolatilitySkew = "Volatility Skew"
	SuggestionStrategy       = "Strategy-Recommendation"
)

// TradeSuggestion is a detected cross-venue opportunity. It is immutable once
// created: emitted to subscribers exactly once and never stored or mutated by
// the core. Spread is a percentage for arbitrage and an IV-point difference
// for skew and strategy suggestions.
type TradeSuggestion struct {
	ID             string   `json:"id"`
	Instrument     string   `json:"instrument"`
	Type           string   `json:"type"`
	Action         string   `json:"action"`
	Spread         float64  `json:"spread"`
	ProfitEstimate float64  `json:"profit_estimate"`
	GammaImpact    *float64 `json:"gamma_impact,omitempty"`
	Reasoning      string   `json:"reasoning,omitempty"`
	Timestamp      int64    `json:"timestamp"` // ms since epoch
}

// Venue connectivity states carried by status events.
const (
	StatusConnected    = "Connected"
	StatusUpdated      = "Updated"
	StatusError        = "Error"
	StatusReconnecting = "Reconnecting"
)

// VenueStatus reports a venue's connectivity to subscribers.
type VenueStatus struct {
	Type   string `json:"type"` // always "status"
	Venue  Venue  `json:"venue"`
	Status string `json:"status"`
}

// suggestionEnvelope wraps a suggestion with its type discriminator. Raw
// quotes are broadcast flattened (no envelope) so the orderbook view can
// consume them directly.
type suggestionEnvelope struct {
	Type string          `json:"type"` // always "suggestion"
	Data TradeSuggestion `json:"data"`
}

// EncodeSuggestion serializes the standard suggestion envelope.
func EncodeSuggestion(s TradeSuggestion) ([]byte, error) {
	return json.Marshal(suggestionEnvelope{Type: "suggestion", Data: s})
}

// EncodeStatus serializes a venue status event.
func EncodeStatus(venue Venue, status string) ([]byte, error) {
	return json.Marshal(VenueStatus{Type: "status", Venue: venue, Status: status})
}
