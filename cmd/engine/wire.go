// Package main implements cmd/engine (spec.md 6's CLI surface): run,
// status, backfill, and replay --date, wired with github.com/urfave/cli/v2
// — the teacher's own CLI dependency, used the same way cmd/neuratrade-cli
// wires its cli.App with nested Commands.
package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"

	"github.com/nyxtrader/decisioncore/internal/agent"
	"github.com/nyxtrader/decisioncore/internal/ai"
	"github.com/nyxtrader/decisioncore/internal/collaborators"
	"github.com/nyxtrader/decisioncore/internal/config"
	"github.com/nyxtrader/decisioncore/internal/core"
	"github.com/nyxtrader/decisioncore/internal/indicators"
	"github.com/nyxtrader/decisioncore/internal/logging"
	"github.com/nyxtrader/decisioncore/internal/marketclock"
	"github.com/nyxtrader/decisioncore/internal/news"
	"github.com/nyxtrader/decisioncore/internal/overnight"
	"github.com/nyxtrader/decisioncore/internal/risk"
	"github.com/nyxtrader/decisioncore/internal/scheduler"
	"github.com/nyxtrader/decisioncore/internal/store"
	"github.com/nyxtrader/decisioncore/internal/universe"
	"github.com/nyxtrader/decisioncore/internal/workerpool"
)

// exit codes, spec.md 6: 0 clean shutdown, 2 configuration error, 3 broker
// probe failure, 1 anything else.
const (
	exitOK            = 0
	exitGeneralError  = 1
	exitConfigError   = 2
	exitBrokerFailure = 3
)

// universeCachePath is UniverseManager's on-disk cache location
// (spec.md 6's persisted artifact layout: universe_cache.json).
const universeCachePath = "data/universe_cache.json"

// cliError carries the exit code a failure should produce past urfave/cli's
// own error-printing machinery (main translates it with os.Exit(exitCodeOf(err))).
type cliError struct {
	code int
	err  error
}

func (e *cliError) Error() string { return e.err.Error() }
func (e *cliError) Unwrap() error { return e.err }

func configErr(err error) error { return &cliError{code: exitConfigError, err: err} }
func brokerErr(err error) error { return &cliError{code: exitBrokerFailure, err: err} }

// engine bundles every wired collaborator a subcommand might need. Built
// once per invocation by wireEngine and torn down by its own close().
type engine struct {
	cfg    *config.Config
	logger *logging.StandardLogger

	store     *store.Store
	gate      *risk.Gate
	indic     *indicators.Engine
	clock     *marketclock.Clock
	broker    *collaborators.PaperBroker
	universe  *universe.Manager
	newsMgr   *news.Manager
	pool      *workerpool.Pool
	tradingAI ai.Model
	overnight *overnight.Pipeline
	agent     *agent.TradingAgent
	scheduler *scheduler.Scheduler
}

// wireEngine loads configuration and constructs every collaborator in the
// dependency order the spec's component graph requires. It does not start
// any background goroutines (workerpool.Start, scheduler.Run) — callers do
// that once they know which subcommand is running.
func wireEngine(configPath string) (*engine, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, configErr(err)
	}
	if cfg.Trading.Timezone == "" {
		return nil, configErr(fmt.Errorf("config: trading.timezone is required"))
	}

	logger := logging.NewStandardLogger(cfg.LogLevel, cfg.Environment)

	st, err := store.Open(cfg.Database, logger)
	if err != nil {
		return nil, configErr(fmt.Errorf("opening store: %w", err))
	}

	gate := risk.New(cfg.Risk, logger)
	indic := indicators.New(indicators.DefaultConfig(), logger)

	clock, err := marketclock.New(cfg.Trading.Timezone, nil, nil)
	if err != nil {
		return nil, configErr(fmt.Errorf("building market clock: %w", err))
	}

	broker := collaborators.NewPaperBroker(decimal.NewFromFloat(cfg.Broker.InitialCash))
	if err := collaborators.ProbePaperMode(context.Background(), broker); err != nil {
		return nil, brokerErr(fmt.Errorf("broker probe: %w", err))
	}

	um := universe.New(cfg.Universe.MaxSymbols, universeCachePath,
		time.Duration(cfg.Universe.CacheHours)*time.Hour, logger)

	pool := workerpool.New(workerpool.Config{Workers: cfg.News.MaxConcurrency, QueueSize: cfg.News.MaxConcurrency * 4})

	aiRegistry := buildAIRegistry(cfg, logger)
	router := ai.NewRouter(aiRegistry)
	policyEngine := ai.NewPolicyEngine(router)
	for _, p := range ai.PresetPolicies() {
		if err := policyEngine.RegisterPolicy(p); err != nil {
			return nil, configErr(fmt.Errorf("registering routing policy %s: %w", p.ID, err))
		}
	}
	aiClient := ai.NewClient(aiRegistry, ai.WithClientLogger(logger.Logger()))

	cycleModel := ai.NewCollaborator(aiClient, policyEngine, "scheduled-cycle")
	overnightModel := ai.NewCollaborator(aiClient, policyEngine, "overnight-analysis")
	parser := ai.NewResponseParser()

	newsMgr := news.New(st, news.NewLLMSynthesizer(overnightModel), pool, logger)

	ovn := overnight.New(st, newsMgr, broker, overnightModel, parser, nil, logger, overnight.DefaultConfig())

	agentCfg := agent.DefaultConfig()
	agentCfg.Profile = core.ProfileModerate
	tradingAgent := agent.New(broker, st, gate, cycleModel, parser, indic, logger, agentCfg)

	sched := scheduler.New(clock, pool, logger)

	return &engine{
		cfg:       cfg,
		logger:    logger,
		store:     st,
		gate:      gate,
		indic:     indic,
		clock:     clock,
		broker:    broker,
		universe:  um,
		newsMgr:   newsMgr,
		pool:      pool,
		tradingAI: cycleModel,
		overnight: ovn,
		agent:     tradingAgent,
		scheduler: sched,
	}, nil
}

func (e *engine) close() {
	if err := e.store.Close(); err != nil {
		e.logger.WithError(err).Warn("closing store")
	}
	_ = e.logger.Sync()
}

// buildAIRegistry wires Redis-backed model-registry caching when a redis
// endpoint is configured, matching internal/ai/registry.go's WithRedis
// option; a bare registry (no caching) otherwise.
func buildAIRegistry(cfg *config.Config, logger *logging.StandardLogger) *ai.Registry {
	opts := []ai.RegistryOption{ai.WithLogger(logger.Logger())}
	if cfg.Redis.Host != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		opts = append(opts, ai.WithRedis(rdb))
	}
	return ai.NewRegistry(opts...)
}

// configPathFlag is shared by every subcommand.
var configPathFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	Usage:   "path to the YAML configuration document",
	EnvVars: []string{"DECISIONCORE_CONFIG"},
}

func exitCodeOf(err error) int {
	if err == nil {
		return exitOK
	}
	var ce *cliError
	if errors.As(err, &ce) {
		return ce.code
	}
	return exitGeneralError
}
