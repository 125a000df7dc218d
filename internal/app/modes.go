package app

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/config"
	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/domain"
	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/engine"
	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/market"
	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/persist"
	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/platform"
	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/platform/deribit"
	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/platform/derive"
	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/recommender"
	"github.com/0xEmpoleon/crypto-rfq-aggregator-hype/internal/server"
)

// FullMode runs everything: venue adapters, detection, persistence, the
// strategy recommender, and the WebSocket server.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)

	pipeline := a.startPersistence(ctx, g, deps)
	analyzer := a.buildAnalyzer(deps, pipeline)
	a.startVenueAdapters(ctx, g, deps, analyzer)

	if a.cfg.Recommender.Enabled {
		a.startRecommender(ctx, g, deps)
	}
	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, deps)
	}

	return g.Wait()
}

// IngestMode runs the ingestion and persistence path without the WebSocket
// server or the recommender. Suggestions still go to the alert channels.
func (a *App) IngestMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting ingest mode")

	g, ctx := errgroup.WithContext(ctx)

	pipeline := a.startPersistence(ctx, g, deps)
	analyzer := a.buildAnalyzer(deps, pipeline)
	a.startVenueAdapters(ctx, g, deps, analyzer)

	return g.Wait()
}

// ServerMode serves WebSocket subscribers and the recommender from existing
// history without polling any venue.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)

	if a.cfg.Recommender.Enabled {
		a.startRecommender(ctx, g, deps)
	}
	a.startServer(ctx, g, deps)

	return g.Wait()
}

// startPersistence launches the batched dual-write pipeline.
func (a *App) startPersistence(ctx context.Context, g *errgroup.Group, deps *Dependencies) *persist.Pipeline {
	pipeline := persist.New(deps.QuoteCache, deps.TickStore, deps.Archiver, persist.Config{
		BatchSize:     a.cfg.Persist.BatchSize,
		FlushInterval: a.cfg.Persist.FlushInterval.Duration,
		FlushTimeout:  a.cfg.Persist.FlushTimeout.Duration,
	}, a.logger)

	g.Go(func() error {
		return pipeline.Run(ctx)
	})
	return pipeline
}

// buildAnalyzer assembles the detection engine around the in-memory quote
// store, the persistence pipeline, and the broadcast fan-out.
func (a *App) buildAnalyzer(deps *Dependencies, pipeline *persist.Pipeline) *engine.Analyzer {
	store := market.New(a.cfg.Detection.MaxQuoteAge.Duration)

	engCfg := engine.Config{
		VenueA:             domain.Venue(a.cfg.Detection.VenueA),
		VenueB:             domain.Venue(a.cfg.Detection.VenueB),
		NotionalUnit:       a.cfg.Detection.NotionalUnit,
		SkewThresholdPts:   a.cfg.Detection.SkewThresholdPts,
		SkewProfitEstimate: a.cfg.Detection.SkewProfitEstimate,
		DefaultIVPct:       a.cfg.Detection.DefaultIVPct,
		ExpiryDaysApprox:   a.cfg.Detection.ExpiryDaysApprox,
		ContractSize:       a.cfg.Detection.ContractSize,
	}
	return engine.NewAnalyzer(store, pipeline, deps.Fanout, deps.Alerter, engCfg, a.logger)
}

// startVenueAdapters launches a polling adapter per enabled venue. Each
// adapter feeds the analyzer and reports connectivity through the hub and
// the fan-out.
func (a *App) startVenueAdapters(ctx context.Context, g *errgroup.Group, deps *Dependencies, analyzer *engine.Analyzer) {
	sink := platform.QuoteSink(analyzer.IngestQuote)
	status := platform.StatusFunc(func(venue domain.Venue, status string) {
		deps.Hub.RecordStatus(venue, status)
		deps.Fanout.BroadcastStatus(venue, status)
	})

	if a.cfg.Deribit.Enabled {
		client := deribit.New(venueConfigDeribit(a.cfg.Deribit), sink, status, a.logger)
		g.Go(func() error {
			return client.Run(ctx)
		})
	}
	if a.cfg.Derive.Enabled {
		client := derive.New(venueConfigDerive(a.cfg.Derive), sink, status, a.logger)
		g.Go(func() error {
			return client.Run(ctx)
		})
	}
}

func venueConfigDeribit(vc config.VenueConfig) deribit.Config {
	return deribit.Config{
		BaseURL:         vc.BaseURL,
		Currencies:      vc.Currencies,
		PollInterval:    vc.PollInterval.Duration,
		ErrorRetryDelay: vc.ErrorRetryDelay.Duration,
		TopInstruments:  vc.TopInstruments,
	}
}

func venueConfigDerive(vc config.VenueConfig) derive.Config {
	return derive.Config{
		BaseURL:         vc.BaseURL,
		Currencies:      vc.Currencies,
		PollInterval:    vc.PollInterval.Duration,
		ErrorRetryDelay: vc.ErrorRetryDelay.Duration,
	}
}

// startRecommender launches the historical-IV strategy loop.
func (a *App) startRecommender(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	eng := recommender.New(recommender.Config{
		Venue:          domain.Venue(a.cfg.Recommender.Venue),
		Interval:       a.cfg.Recommender.Interval.Duration,
		Window:         a.cfg.Recommender.Window.Duration,
		ThresholdPts:   a.cfg.Recommender.ThresholdPts,
		MinSamples:     a.cfg.Recommender.MinSamples,
		ProfitPerPoint: a.cfg.Recommender.ProfitPerPoint,
	}, deps.TickStore, deps.Fanout, deps.Alerter, a.logger)

	g.Go(func() error {
		return eng.Run(ctx)
	})
}

// startServer launches the WebSocket/HTTP listener.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	srv := server.New(server.Config{
		Addr:            fmt.Sprintf(":%d", a.cfg.Server.Port),
		ShutdownTimeout: a.cfg.Server.ShutdownTimeout.Duration,
	}, deps.Hub, a.logger)

	g.Go(func() error {
		return srv.Run(ctx)
	})
}
