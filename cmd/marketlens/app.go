package main

import (
	"fmt"

	"go.uber.org/zap"

	"MarketLens/internal/cache"
	"MarketLens/internal/collector"
	"MarketLens/internal/config"
	"MarketLens/internal/market"
	"MarketLens/internal/recorder"
)

// app holds the wired components shared by every subcommand.
type app struct {
	cfg       *config.Config
	logger    *zap.Logger
	collector *collector.Collector
	recorder  recorder.Recorder
}

func newApp(cfg *config.Config, logger *zap.Logger) (*app, error) {
	classes, err := cfg.SessionClasses()
	if err != nil {
		return nil, err
	}
	clock, err := cfg.Clock()
	if err != nil {
		return nil, fmt.Errorf("market clock: %w", err)
	}

	// Init fetcher
	var fetcher collector.Fetcher
	switch cfg.Upstream.Provider {
	case "mock":
		fetcher = &collector.MockFetcher{Price: 100}
	default:
		opts := []collector.YahooOption{
			collector.WithTimeout(cfg.Upstream.Timeout),
			collector.WithRateLimit(cfg.Upstream.RateLimit, cfg.Upstream.Burst),
			collector.WithProxy(cfg.Upstream.Proxy),
			collector.WithLogger(logger),
		}
		if cfg.Upstream.BaseURL != "" {
			opts = append(opts, collector.WithBaseURL(cfg.Upstream.BaseURL))
		}
		if cfg.Upstream.SessionURL != "" {
			opts = append(opts, collector.WithSessionURL(cfg.Upstream.SessionURL))
		}
		fetcher = collector.NewYahooFetcher(opts...)
	}
	logger.Info("data source", zap.String("fetcher", fetcher.Name()))

	// Init recorder
	var rec recorder.Recorder = recorder.NewNoopRecorder()
	if cfg.Database.Driver == "sqlite" && cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, logger)
		if err != nil {
			logger.Warn("init sqlite recorder failed, using noop", zap.Error(err))
		} else {
			rec = sr
		}
	}

	col := collector.NewCollector(fetcher, market.NewClassifier(classes), clock, collector.Config{
		Workers:         cfg.Orchestrator.Workers,
		Timeout:         cfg.Orchestrator.CallTimeout,
		BatchSize:       cfg.Orchestrator.BatchSize,
		HistoryDays:     cfg.Orchestrator.HistoryDays,
		RiskFreeRate:    cfg.Options.RiskFreeRate,
		TermExpirations: cfg.Options.TermExpirations,
		SkewDistance:    cfg.Options.SkewDistance,
		TopStrikes:      cfg.Options.TopStrikes,
		Policy: cache.Policy{
			TwentyFourHourTTL: cfg.Cache.TwentyFourHourTTL,
			OpenSessionTTL:    cfg.Cache.OpenSessionTTL,
		},
	}, rec, logger)

	return &app{cfg: cfg, logger: logger, collector: col, recorder: rec}, nil
}

func (a *app) Close() {
	if err := a.recorder.Close(); err != nil {
		a.logger.Error("close recorder", zap.Error(err))
	}
}
