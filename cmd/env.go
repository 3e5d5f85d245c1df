package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/coding-eval/internal/cases"
	"github.com/sells-group/coding-eval/internal/evaluate"
	"github.com/sells-group/coding-eval/internal/improve"
	"github.com/sells-group/coding-eval/internal/ingest"
	"github.com/sells-group/coding-eval/internal/ledger"
	"github.com/sells-group/coding-eval/internal/model"
	"github.com/sells-group/coding-eval/internal/modelsvc"
	"github.com/sells-group/coding-eval/internal/monitoring"
	"github.com/sells-group/coding-eval/internal/prompts"
	"github.com/sells-group/coding-eval/internal/resilience"
	"github.com/sells-group/coding-eval/internal/store"
	anthropicpkg "github.com/sells-group/coding-eval/pkg/anthropic"
)

// sessionEnv holds the in-memory session and its collaborators. Every
// command builds one; Close releases the store.
type sessionEnv struct {
	Store    *store.Guarded
	Cases    *cases.Repository
	Ledger   *ledger.Ledger
	Library  *prompts.Library
	Settings *prompts.Settings
	Flags    *improve.FlagSet
	Model    *modelsvc.Service
	Ingester *ingest.Ingester
	Runner   *evaluate.Runner
	Improver *evaluate.Improver
	Health   *monitoring.Collector
}

// Close releases resources held by the session.
func (e *sessionEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "coding-eval.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "memory":
		return store.NewMemory(), nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initModel() *modelsvc.Service {
	var client anthropicpkg.Client
	if cfg.Anthropic.Key != "" {
		var opts []anthropicpkg.Option
		if cfg.Anthropic.BaseURL != "" {
			opts = append(opts, anthropicpkg.WithBaseURL(cfg.Anthropic.BaseURL))
		}
		client = anthropicpkg.NewClient(cfg.Anthropic.Key, opts...)
	} else {
		zap.L().Debug("CODEEVAL_ANTHROPIC_KEY not set, model calls disabled")
	}
	return modelsvc.New(client, modelsvc.Config{
		APIKey:            cfg.Anthropic.Key,
		Model:             cfg.Anthropic.Model,
		ExtractModel:      cfg.Anthropic.ExtractModel,
		MaxTokens:         cfg.Anthropic.MaxTokens,
		RequestsPerMinute: cfg.Anthropic.RequestsPerMinute,
	})
}

// initEnv validates the config for mode, opens the store and loads the
// session from it. An unreachable store is not fatal: the session starts
// empty and every write reports local_only until the store comes back.
func initEnv(ctx context.Context, mode string) (*sessionEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	inner, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := inner.Migrate(ctx); err != nil {
		zap.L().Warn("store migrate failed, continuing with local state only", zap.Error(err))
	}

	st := store.NewGuarded(inner, resilience.NewCircuitBreaker(resilience.BreakerConfig{
		Name:             "store",
		FailureThreshold: cfg.Breaker.FailureThreshold,
		ResetTimeout:     time.Duration(cfg.Breaker.ResetTimeoutSecs) * time.Second,
	}))

	env := &sessionEnv{
		Store:    st,
		Cases:    cases.New(st),
		Ledger:   ledger.New(st),
		Library:  prompts.New(st),
		Settings: prompts.NewSettings(st),
		Flags:    improve.NewFlagSet(),
		Model:    initModel(),
	}

	loads := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"cases", env.Cases.Load},
		{"runs", env.Ledger.Load},
		{"prompts", env.Library.Load},
		{"settings", func(ctx context.Context) error {
			return env.Settings.Load(ctx, model.SettingModel, model.SettingActivePrompt)
		}},
	}
	for _, l := range loads {
		if err := l.fn(ctx); err != nil {
			zap.L().Warn("session load failed", zap.String("part", l.name), zap.Error(err))
		}
	}

	env.Ingester = ingest.New(env.Cases, env.Model, ingest.Options{
		Charset:     cfg.Ingest.Charset,
		Concurrency: cfg.Eval.Concurrency,
	})
	env.Runner = evaluate.NewRunner(env.Cases, env.Ledger, env.Model, evaluate.Options{
		DefaultModel: env.Model.DefaultModel(),
		Concurrency:  cfg.Eval.Concurrency,
	})
	orch := improve.NewOrchestrator(env.Model, improve.PayloadOptions{
		DetailRuns:   cfg.Eval.DetailRuns,
		ExcerptChars: cfg.Eval.ExcerptChars,
	})
	env.Improver = evaluate.NewImprover(orch, env.Library, env.Settings, env.Ledger, env.Cases, env.Flags)
	env.Health = monitoring.NewCollector(monitoring.Sources{
		Cases:    env.Cases,
		Runs:     env.Ledger,
		Prompts:  env.Library,
		Flags:    env.Flags,
		Store:    st,
		InFlight: env.Runner.InFlight,
		Ready:    env.Model.Ready,
	})

	zap.L().Debug("session loaded",
		zap.Int("cases", env.Cases.Len()),
		zap.Int("runs", env.Ledger.Len()),
		zap.Int("prompts", env.Library.Len()),
	)
	return env, nil
}

// activePrompt resolves name, falling back to the active prompt setting.
func (e *sessionEnv) activePrompt(name string) (model.SavedPrompt, error) {
	if name == "" {
		name = e.Settings.GetOr(model.SettingActivePrompt, prompts.DefaultName)
	}
	return e.Library.Resolve(name)
}

// activeModel returns requested, or the model setting, or the configured
// default.
func (e *sessionEnv) activeModel(requested string) string {
	if requested != "" {
		return requested
	}
	return e.Settings.GetOr(model.SettingModel, e.Model.DefaultModel())
}
