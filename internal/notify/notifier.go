// Package notify delivers trade suggestions to out-of-band operator
// channels (Telegram, Discord). Delivery is best-effort: a failing channel
// is logged and skipped, and alerting never blocks the detection path.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/domain"
)

// Alert is a formatted notification ready for a channel to render.
type Alert struct {
	Title string
	Body  string
}

// Sender is one delivery channel.
type Sender interface {
	Send(ctx context.Context, a Alert) error
	// Name identifies the channel in logs (e.g. "telegram").
	Name() string
}

// Alerter fans suggestions out to all configured senders, filtered by
// suggestion type.
type Alerter struct {
	senders []Sender
	types   map[string]bool
	logger  *slog.Logger
}

// NewAlerter creates an Alerter. Only suggestions whose Type appears in
// types are delivered; an empty types list allows everything.
func NewAlerter(senders []Sender, types []string, logger *slog.Logger) *Alerter {
	allowed := make(map[string]bool, len(types))
	for _, t := range types {
		allowed[strings.TrimSpace(t)] = true
	}
	return &Alerter{
		senders: senders,
		types:   allowed,
		logger:  logger.With(slog.String("component", "alerter")),
	}
}

// SuggestionAlert formats and dispatches one suggestion. Channel failures
// are logged, never returned.
func (a *Alerter) SuggestionAlert(ctx context.Context, s domain.TradeSuggestion) {
	if len(a.types) > 0 && !a.types[s.Type] {
		a.logger.DebugContext(ctx, "suggestion type filtered out",
			slog.String("type", s.Type),
		)
		return
	}

	alert := FormatSuggestion(s)
	for _, sender := range a.senders {
		if err := sender.Send(ctx, alert); err != nil {
			a.logger.ErrorContext(ctx, "alert delivery failed",
				slog.String("sender", sender.Name()),
				slog.String("error", err.Error()),
			)
			continue
		}
		a.logger.DebugContext(ctx, "alert delivered",
			slog.String("sender", sender.Name()),
			slog.String("instrument", s.Instrument),
		)
	}
}

// FormatSuggestion renders a suggestion into a channel-agnostic alert.
func FormatSuggestion(s domain.TradeSuggestion) Alert {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", s.Action)
	switch s.Type {
	case domain.SuggestionArbitrage:
		fmt.Fprintf(&b, "Spread: %.2f%% | Est. profit: $%.2f\n", s.Spread, s.ProfitEstimate)
	default:
		fmt.Fprintf(&b, "IV deviation: %.2f pts | Est. edge: $%.2f\n", s.Spread, s.ProfitEstimate)
	}
	if s.GammaImpact != nil {
		fmt.Fprintf(&b, "Gamma impact: $%.2f per 1%% move\n", *s.GammaImpact)
	}
	b.WriteString(s.Reasoning)

	return Alert{
		Title: fmt.Sprintf("[%s] %s", s.Type, s.Instrument),
		Body:  b.String(),
	}
}
