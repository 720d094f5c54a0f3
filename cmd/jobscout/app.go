package main

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"

	"jobscout/internal/config"
	"jobscout/internal/dedup"
	"jobscout/internal/discovery"
	"jobscout/internal/extractor"
	"jobscout/internal/fetcher"
	"jobscout/internal/llm"
	"jobscout/internal/logging"
	"jobscout/internal/notify"
	"jobscout/internal/persistence"
	"jobscout/internal/pipeline"
	"jobscout/internal/quota"
	"jobscout/internal/recovery"
	"jobscout/internal/scoring"
	"jobscout/internal/scraper"
	"jobscout/internal/scraper/engines"
	"jobscout/internal/store"
	"jobscout/internal/store/postgres"
	"jobscout/internal/store/sqlite"
	"jobscout/pkg/utils"
)

// app holds the services shared by the subcommands. Fields beyond cfg, logger,
// repo and queue are populated by withPipeline.
type app struct {
	cfg    *config.Config
	logger logging.Logger
	repo   store.Repository
	queue  *recovery.Queue

	redis    *redis.Client
	quota    *quota.Tracker
	llm      *llm.Manager
	provider scraper.Provider
	gateway  *persistence.Gateway
	pipeline *pipeline.Pipeline
}

func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := logging.GetGlobalLogger()

	repo, err := openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:    cfg,
		logger: logger,
		repo:   repo,
		queue:  recovery.NewQueue(cfg.Persistence.RecoveryPath, logger),
	}
	a.gateway = persistence.NewFromConfig(cfg, repo, a.queue, logger)

	if err := a.withQuota(ctx); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func openStore(ctx context.Context, cfg *config.Config) (store.Repository, error) {
	switch cfg.Database.Driver {
	case "postgres":
		repo, err := postgres.Open(ctx, postgres.Options{URL: cfg.Database.URL, MaxConns: cfg.Database.MaxConns})
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		return repo, nil
	default:
		repo, err := sqlite.Open(ctx, sqlite.Options{Path: cfg.Database.Path, BusyTimeout: cfg.Database.BusyTimeout})
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", cfg.Database.Path, err)
		}
		return repo, nil
	}
}

// redisClient connects lazily; only the redis quota backend and run store need it
func (a *app) redisClient(ctx context.Context) (*redis.Client, error) {
	if a.redis != nil {
		return a.redis, nil
	}
	client, err := utils.NewRedisClient(ctx, utils.RedisOptions{
		URL:      a.cfg.Redis.URL,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
		Timeout:  a.cfg.Redis.Timeout,
	})
	if err != nil {
		return nil, err
	}
	a.redis = client
	return client, nil
}

func (a *app) withQuota(ctx context.Context) error {
	var counter quota.Counter
	switch a.cfg.Quota.Backend {
	case "memory":
		counter = quota.NewMemoryCounter()
	case "redis":
		client, err := a.redisClient(ctx)
		if err != nil {
			return fmt.Errorf("quota backend: %w", err)
		}
		counter = quota.NewRedisCounter(client, 0)
	default:
		counter = quota.NewDatabaseCounter(a.repo)
	}

	a.quota = quota.NewTracker(counter, quota.Options{
		ProviderLimit: a.cfg.Quota.ProviderLimit,
		SafetyMargin:  a.cfg.Quota.SafetyMargin,
		Period:        quota.Period(a.cfg.Quota.Period),
		Logger:        a.logger,
	})
	return nil
}

// withPipeline builds the fetch provider, the scoring chain and the pipeline
func (a *app) withPipeline(ctx context.Context) error {
	source, err := discovery.NewFromConfig(a.cfg, a.logger)
	if err != nil {
		return err
	}

	provider, err := engines.NewProvider(a.cfg)
	if err != nil {
		return fmt.Errorf("create fetch provider: %w", err)
	}
	a.provider = provider

	var analyzer scoring.Analyzer
	if a.cfg.AIEnabled() {
		a.llm = llm.NewManager(a.cfg)
		if err := a.llm.Start(ctx); err != nil {
			a.logger.Warn("LLM manager unavailable, scoring with rules", map[string]interface{}{
				"error": err.Error(),
			})
			a.llm = nil
		} else {
			analyzer = a.llm
		}
	}

	notifier, err := notify.NewFromConfig(a.cfg, a.logger)
	if err != nil {
		return err
	}

	a.pipeline = pipeline.New(pipeline.Deps{
		Source: source,
		Dedup:  dedup.New(a.repo, a.logger),
		Fetcher: fetcher.New(provider, a.quota, a.repo, fetcher.Options{
			Policy:      fetcher.PolicyFromConfig(a.cfg),
			CareerPaths: a.cfg.Scraper.CareerPaths,
			Logger:      a.logger,
		}),
		Extractor: extractor.New(a.logger),
		Scorer:    scoring.New(a.cfg, analyzer, a.logger),
		Gateway:   a.gateway,
		Jobs:      a.repo,
		History:   a.repo,
		Notifier:  notifier,
	}, a.cfg.Matching.Criteria, nil, a.logger)

	return nil
}

func (a *app) close() {
	if a.provider != nil {
		if err := a.provider.Close(); err != nil {
			a.logger.Warn("Failed to close fetch provider", map[string]interface{}{"error": err.Error()})
		}
	}
	if a.llm != nil {
		a.llm.Stop()
	}
	if a.redis != nil {
		a.redis.Close()
	}
	if a.repo != nil {
		if err := a.repo.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "close store: %v\n", err)
		}
	}
}
