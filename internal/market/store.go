// Package market holds the in-memory quote store: the per-instrument,
// per-venue view of the latest quotes that the detection engine reads.
package market

import (
	"sync"
	"time"

	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/domain"
)

// Store maps instrument identity -> venue -> latest quote. Last-write-wins
// per (instrument, venue); no history is retained. Entries live for the
// process lifetime unless a max age is configured, in which case Snapshot
// filters out quotes older than the cutoff so a silently disconnected venue
// cannot trigger detections forever.
type Store struct {
	mu     sync.RWMutex
	quotes map[string]map[domain.Venue]domain.Quote

	// maxAge of zero disables staleness filtering.
	maxAge time.Duration
	now    func() time.Time
}

// New creates an empty Store. maxAge bounds how old a quote may be and still
// appear in snapshots; pass 0 to keep quotes visible indefinitely.
func New(maxAge time.Duration) *Store {
	return &Store{
		quotes: make(map[string]map[domain.Venue]domain.Quote),
		maxAge: maxAge,
		now:    time.Now,
	}
}

// Upsert replaces the (instrument, venue) entry unconditionally and returns
// the instrument identity the quote was filed under.
func (s *Store) Upsert(q domain.Quote) string {
	instrument := q.Instrument()

	s.mu.Lock()
	defer s.mu.Unlock()

	byVenue, ok := s.quotes[instrument]
	if !ok {
		byVenue = make(map[domain.Venue]domain.Quote, 2)
		s.quotes[instrument] = byVenue
	}
	byVenue[q.SourceExchange] = q
	return instrument
}

// Snapshot returns a copy of the current per-venue view for an instrument.
// The map is never nil. Cross-venue freshness is best-effort: entries may be
// milliseconds apart in wall-clock terms.
func (s *Store) Snapshot(instrument string) map[domain.Venue]domain.Quote {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[domain.Venue]domain.Quote, len(s.quotes[instrument]))
	var cutoff int64
	if s.maxAge > 0 {
		cutoff = s.now().Add(-s.maxAge).UnixMilli()
	}
	for venue, q := range s.quotes[instrument] {
		if cutoff > 0 && q.Timestamp < cutoff {
			continue
		}
		out[venue] = q
	}
	return out
}

// Len returns the number of distinct instruments currently tracked.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.quotes)
}
