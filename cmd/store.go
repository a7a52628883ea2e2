package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/cleardeed/diligence-cli/internal/analyzer"
	"github.com/cleardeed/diligence-cli/internal/cost"
	"github.com/cleardeed/diligence-cli/internal/engine"
	"github.com/cleardeed/diligence-cli/internal/resilience"
	"github.com/cleardeed/diligence-cli/internal/rules"
	"github.com/cleardeed/diligence-cli/internal/store"
	"github.com/cleardeed/diligence-cli/pkg/llmsvc"
	"github.com/cleardeed/diligence-cli/pkg/retrieval"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "diligence.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &cfg.Store.Pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initEngine wires the analyzers over one rule catalog. The augmentation
// pass is attached only when enabled; without it the engine runs rules only
// and the returned tracker is nil.
func initEngine(st store.Store) (*engine.Engine, *cost.Tracker) {
	cat := rules.Default()

	var aug *analyzer.Augmenter
	var tracker *cost.Tracker
	if cfg.Analysis.Augment {
		retrievalClient := retrieval.NewClient(cfg.Retrieval.Key,
			retrieval.WithBaseURL(cfg.Retrieval.BaseURL),
			retrieval.WithRateLimit(cfg.Retrieval.RatePerSecond))
		llmClient := llmsvc.NewClient(cfg.Anthropic.Key,
			llmsvc.WithModel(cfg.Anthropic.Model),
			llmsvc.WithMaxTokens(int64(cfg.Anthropic.MaxTokens)))

		retryCfg := resilience.FromRetryConfig(
			cfg.Analysis.Retry.MaxAttempts,
			cfg.Analysis.Retry.InitialBackoffMs,
			cfg.Analysis.Retry.MaxBackoffMs,
			cfg.Analysis.Retry.Multiplier,
			cfg.Analysis.Retry.JitterFraction)
		circuitCfg := resilience.FromCircuitConfig(
			cfg.Analysis.Circuit.FailureThreshold,
			cfg.Analysis.Circuit.ResetTimeoutSecs)

		tracker = cost.NewTracker(cost.NewCalculator(cost.DefaultRates()), cfg.Anthropic.Model)

		aug = analyzer.NewAugmenter(retrievalClient, llmClient, cat,
			time.Duration(cfg.Analysis.QueryTimeoutSecs)*time.Second,
			analyzer.WithTopK(cfg.Retrieval.TopK),
			analyzer.WithRetry(retryCfg),
			analyzer.WithCircuitBreaker(circuitCfg),
			analyzer.WithUsageTracker(tracker))
	}

	return engine.New(st,
		analyzer.NewTitleAnalyzer(cat, aug),
		analyzer.NewContractAnalyzer(cat, aug),
		analyzer.NewCrossDocAnalyzer(cat, aug)), tracker
}

func validateAndInit(ctx context.Context, mode string) (store.Store, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}
