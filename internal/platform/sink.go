// Package platform holds the callback contracts shared by the venue
// ingestion adapters.
package platform

import (
	"context"

	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/domain"
)

// QuoteSink receives each normalized quote.
type QuoteSink func(ctx context.Context, q domain.Quote)

// StatusFunc receives venue connectivity transitions.
type StatusFunc func(venue domain.Venue, status string)
