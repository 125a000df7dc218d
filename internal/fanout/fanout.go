// Package fanout implements the broadcast contract: deliver a serialized
// message to every active subscriber, dropping subscribers whose delivery
// fails so one bad connection cannot stall or poison the rest.
package fanout

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/domain"
)

// encodeQuote flattens the quote at the top level; quote frames carry no
// envelope so orderbook consumers read them directly.
func encodeQuote(q domain.Quote) ([]byte, error) {
	return json.Marshal(q)
}

// Subscriber is a message sink. Send must be safe for sequential calls from
// the broadcaster; per-subscriber delivery order matches Broadcast call
// order. A Send error marks the subscriber dead.
type Subscriber interface {
	Send(payload []byte) error
	Close() error
}

// Fanout maintains the set of active subscribers. It is safe for concurrent
// use; removal-on-failure is performed against a snapshot of the set so it
// never races the iteration.
type Fanout struct {
	mu     sync.RWMutex
	subs   map[Subscriber]struct{}
	logger *slog.Logger
}

// New creates an empty Fanout.
func New(logger *slog.Logger) *Fanout {
	return &Fanout{
		subs:   make(map[Subscriber]struct{}),
		logger: logger.With(slog.String("component", "fanout")),
	}
}

// Subscribe adds a subscriber to the active set.
func (f *Fanout) Subscribe(s Subscriber) {
	f.mu.Lock()
	f.subs[s] = struct{}{}
	total := len(f.subs)
	f.mu.Unlock()

	f.logger.Info("subscriber added", slog.Int("total", total))
}

// Unsubscribe removes a subscriber. It is a no-op when the subscriber is not
// in the set, so it is safe to call from both delivery failures and normal
// disconnects.
func (f *Fanout) Unsubscribe(s Subscriber) {
	f.mu.Lock()
	_, ok := f.subs[s]
	delete(f.subs, s)
	total := len(f.subs)
	f.mu.Unlock()

	if ok {
		f.logger.Info("subscriber removed", slog.Int("total", total))
	}
}

// Count returns the number of active subscribers.
func (f *Fanout) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// Broadcast delivers payload to every active subscriber. A subscriber whose
// Send fails is closed and removed from the set; the failure is not
// propagated to the caller and does not affect delivery to the rest.
func (f *Fanout) Broadcast(payload []byte) {
	f.mu.RLock()
	snapshot := make([]Subscriber, 0, len(f.subs))
	for s := range f.subs {
		snapshot = append(snapshot, s)
	}
	f.mu.RUnlock()

	for _, s := range snapshot {
		if err := s.Send(payload); err != nil {
			f.logger.Warn("dropping failed subscriber", slog.String("error", err.Error()))
			_ = s.Close()
			f.Unsubscribe(s)
		}
	}
}

// BroadcastQuote sends a flattened raw quote to all subscribers.
func (f *Fanout) BroadcastQuote(q domain.Quote) {
	payload, err := encodeQuote(q)
	if err != nil {
		f.logger.Warn("encode quote failed", slog.String("error", err.Error()))
		return
	}
	f.Broadcast(payload)
}

// BroadcastSuggestion sends a suggestion wrapped in the standard envelope.
func (f *Fanout) BroadcastSuggestion(s domain.TradeSuggestion) {
	payload, err := domain.EncodeSuggestion(s)
	if err != nil {
		f.logger.Warn("encode suggestion failed", slog.String("error", err.Error()))
		return
	}
	f.Broadcast(payload)
}

// BroadcastStatus sends a venue connectivity event.
func (f *Fanout) BroadcastStatus(venue domain.Venue, status string) {
	payload, err := domain.EncodeStatus(venue, status)
	if err != nil {
		f.logger.Warn("encode status failed", slog.String("error", err.Error()))
		return
	}
	f.Broadcast(payload)
}

// Compile-time interface check.
var _ domain.Broadcaster = (*Fanout)(nil)
