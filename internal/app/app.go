// Package app wires the configured stores, providers and pipeline components together.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Chative-creator-core/server/internal/agent/analytics"
	"github.com/Chative-creator-core/server/internal/agent/executor"
	"github.com/Chative-creator-core/server/internal/agent/generation"
	"github.com/Chative-creator-core/server/internal/agent/memory"
	"github.com/Chative-creator-core/server/internal/agent/planner"
	"github.com/Chative-creator-core/server/internal/agent/policy"
	"github.com/Chative-creator-core/server/internal/agent/registry"
	"github.com/Chative-creator-core/server/internal/agent/repo"
	"github.com/Chative-creator-core/server/internal/agent/tools"
	"github.com/Chative-creator-core/server/internal/config"
	"github.com/Chative-creator-core/server/internal/metrics"
	logx "github.com/Chative-creator-core/server/pkg/logger"
)

const metricsNamespace = "creator_copilot"

type App struct {
	Executor *executor.Executor
	Policy   *policy.Engine
	Registry *registry.Registry
	Planner  *planner.Planner
	Store    *repo.Store

	closers []func() error
}

// New connects to Redis and Postgres, migrates the schema and builds the pipeline.
// Catalog, rule and prompt defects fail here, never at request time.
func New(ctx context.Context, cfg config.AppConfig, reg prometheus.Registerer) (*App, error) {
	a := &App{}
	ok := false
	defer func() {
		if !ok {
			_ = a.Close()
		}
	}()

	rdb, err := cfg.Redis.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialise redis: %w", err)
	}
	a.closers = append(a.closers, rdb.Close)
	logx.Debug().Msg("Connected to Redis")

	db, err := cfg.Postgres.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialise postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("postgres handle: %w", err)
	}
	a.closers = append(a.closers, sqlDB.Close)

	a.Store = repo.NewStore(db)
	if err := a.Store.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}

	collector := metrics.NewCollector(metricsNamespace, reg)

	conversations := repo.NewRedisConversationRepository(rdb, cfg.Memory.TTL, cfg.Memory.MaxMessages)
	composer := memory.NewComposer(conversations, a.Store, cfg.Memory, collector)

	creds := analytics.NewCredentialManager(a.Store, analytics.NewOAuthRefresher(cfg.OAuth), collector)
	provider := analytics.NewHTTPClient(cfg.Analytics.BaseURL, cfg.Analytics.Timeout, cfg.Analytics.RPS, cfg.Analytics.Burst,
		analytics.WithDataURL(cfg.Analytics.DataURL))
	fetcher := analytics.NewFetcher(provider, creds, a.Store, cfg.Analytics.LagDays)

	a.Registry, err = tools.NewRegistry(tools.Deps{Analytics: fetcher, Library: a.Store, Memory: composer})
	if err != nil {
		return nil, fmt.Errorf("tool catalog: %w", err)
	}

	rules, err := planner.LoadRules(cfg.Planner.RulesFile)
	if err != nil {
		return nil, fmt.Errorf("planner rules: %w", err)
	}
	if err := rules.CheckTools(a.Registry); err != nil {
		return nil, err
	}
	a.Planner = planner.New(rules)

	a.Policy = policy.NewEngine(rdb, cfg.Quota, a.Registry, policy.WithMetrics(collector))

	chat, err := generation.NewGeminiModel(ctx, generation.GeminiConfig{
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
		Model:   cfg.Response,
	})
	if err != nil {
		return nil, err
	}
	gen, err := generation.NewChatGenerator(chat, cfg.Response.Model, cfg.Prompt, generation.WithMetrics(collector))
	if err != nil {
		return nil, err
	}
	if err := gen.CheckPrompts(rules.Prompts()); err != nil {
		return nil, err
	}

	a.Executor, err = executor.New(executor.Deps{
		Policy:      a.Policy,
		Planner:     a.Planner,
		Registry:    a.Registry,
		Memory:      composer,
		Channels:    a.Store,
		Credentials: creds,
		Generator:   gen,
	}, executor.WithMetrics(collector), executor.WithTimeout(cfg.Executor.Timeout))
	if err != nil {
		return nil, err
	}

	logx.Info().Str("rules_version", rules.Version).Str("catalog_version", registry.CatalogVersion).
		Int("tools", len(a.Registry.Names())).Msg("pipeline ready")
	ok = true
	return a, nil
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
