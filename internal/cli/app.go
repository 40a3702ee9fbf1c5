package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/xiaot623/gogo/contentflow/internal/adapter/agentclient"
	"github.com/xiaot623/gogo/contentflow/internal/adapter/llm"
	"github.com/xiaot623/gogo/contentflow/internal/adapter/tracker"
	"github.com/xiaot623/gogo/contentflow/internal/config"
	"github.com/xiaot623/gogo/contentflow/internal/notify"
	"github.com/xiaot623/gogo/contentflow/internal/planner"
	"github.com/xiaot623/gogo/contentflow/internal/repository"
	"github.com/xiaot623/gogo/contentflow/internal/service"
	"github.com/xiaot623/gogo/contentflow/internal/steps"
	"github.com/xiaot623/gogo/contentflow/policy"
)

// app holds the components shared by the commands.
type app struct {
	cfg        *config.Config
	store      *repository.SQLiteStore
	registry   *steps.Registry
	classifier *planner.ExampleClassifier
	planner    *planner.Planner
	policy     *policy.Engine
	service    *service.Service
}

func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newRegistry registers the built-in executors, replacing those bound to a
// remote endpoint.
func newRegistry(cfg *config.Config) (*steps.Registry, error) {
	reg := steps.NewRegistry()
	remote := make(map[string]bool, len(cfg.StepEndpoints))
	for step := range cfg.StepEndpoints {
		remote[step] = true
	}

	llmClient := llm.NewLLMClient(cfg.LiteLLMURL, cfg.LiteLLMAPIKey, cfg.LLMTimeout)
	if err := steps.NewBuiltins(llmClient, cfg.LLMModel).Register(reg, remote); err != nil {
		return nil, fmt.Errorf("failed to register builtin steps: %w", err)
	}
	if err := steps.RegisterRemotes(reg, agentclient.NewClient(cfg.StepTimeout), cfg.StepEndpoints); err != nil {
		return nil, fmt.Errorf("failed to register remote steps: %w", err)
	}
	return reg, nil
}

func newPlanner(cfg *config.Config, reg *steps.Registry) (*planner.ExampleClassifier, *planner.Planner, error) {
	catalog := planner.DefaultCatalog()
	if cfg.CatalogPath != "" {
		c, err := planner.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return nil, nil, err
		}
		catalog = c
	}
	classifier := planner.NewExampleClassifier(catalog)
	return classifier, planner.New(classifier, reg.Has), nil
}

func newPolicy(ctx context.Context, cfg *config.Config) (*policy.Engine, error) {
	opts := policy.Options{
		MaxPerDay:  cfg.MaxPerDay,
		MaxRetry:   cfg.MaxRetry,
		StepLimits: cfg.StepDailyLimits,
		Location:   cfg.Location(),
	}
	if cfg.PolicyFile != "" {
		rules, err := os.ReadFile(cfg.PolicyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read policy file: %w", err)
		}
		opts.Rules = string(rules)
	}
	return policy.NewEngine(ctx, opts)
}

// newApp wires the store, planner, policy and supervisor. Progress goes to sink.
func newApp(ctx context.Context, cfg *config.Config, sink notify.Sink) (*app, error) {
	reg, err := newRegistry(cfg)
	if err != nil {
		return nil, err
	}
	classifier, p, err := newPlanner(cfg, reg)
	if err != nil {
		return nil, err
	}
	engine, err := newPolicy(ctx, cfg)
	if err != nil {
		return nil, err
	}

	db, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	var t notify.Tracker
	if cfg.TrackerURL != "" {
		t = tracker.NewClient(cfg.TrackerURL, cfg.TrackerToken)
	}

	return &app{
		cfg:        cfg,
		store:      db,
		registry:   reg,
		classifier: classifier,
		planner:    p,
		policy:     engine,
		service:    service.New(db, p, engine, reg, sink, t),
	}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}
