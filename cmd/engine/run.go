package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/nyxtrader/decisioncore/internal/core"
	"github.com/nyxtrader/decisioncore/internal/scheduler"
)

func runCommand() *cli.Command {
	return &cli.Command{
		Name:  "run",
		Usage: "start the scheduler loop and run until terminated",
		Flags: []cli.Flag{configPathFlag},
		Action: func(c *cli.Context) error {
			e, err := wireEngine(c.String("config"))
			if err != nil {
				return err
			}
			defer e.close()

			e.registerTasks()

			if err := e.pool.Start(); err != nil {
				return fmt.Errorf("starting worker pool: %w", err)
			}
			defer e.pool.Stop()

			ctx, cancel := context.WithCancel(context.Background())
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
			go func() {
				<-sigCh
				e.logger.Info("received shutdown signal")
				cancel()
			}()

			e.logger.LogStartup("decisioncore-engine", version, e.cfg.Server.Port)
			err = e.scheduler.Run(ctx)
			e.logger.LogShutdown("decisioncore-engine", "context cancelled")
			if err != nil && err != context.Canceled {
				return err
			}
			return nil
		},
	}
}

// registerTasks wires spec.md 4.I's task table: the scheduled trading
// cycle during market hours, evening deep learning once per evening
// analysis window, the weekly self-critique, and the morning handoff.
func (e *engine) registerTasks() {
	e.scheduler.RegisterTask(scheduler.TaskSpec{
		Name:     "trading_cycle",
		States:   []core.MarketState{core.StateActiveTrading, core.StateMarketClosing},
		Schedule: scheduler.Every{Interval: time.Duration(e.cfg.Trading.CycleIntervalSeconds) * time.Second},
		Priority: 0,
		Run: func(ctx context.Context) error {
			watchlist, err := e.trackedSymbols(ctx)
			if err != nil {
				return fmt.Errorf("building universe: %w", err)
			}
			tradingDate := time.Now().In(e.clock.Location()).Format("2006-01-02")
			state := e.clock.NowState(ctx, time.Now())
			_, err = e.agent.RunCycle(ctx, watchlist, state, tradingDate)
			return err
		},
	})

	e.scheduler.RegisterTask(scheduler.TaskSpec{
		Name:           "evening_deep_learning",
		States:         []core.MarketState{core.StateEveningAnalysis},
		Schedule:       scheduler.DailyAt{Hour: 16, Min: 30},
		Priority:       0,
		BackgroundSafe: true,
		Run: func(ctx context.Context) error {
			return e.runEveningDeepLearning(ctx)
		},
	})

	e.scheduler.RegisterTask(scheduler.TaskSpec{
		Name:           "weekly_self_critique",
		States:         []core.MarketState{core.StateEveningAnalysis, core.StateOvernightSleep},
		Schedule:       scheduler.WeeklyAt{Weekday: time.Friday, Hour: 18, Min: 0},
		Priority:       1,
		BackgroundSafe: true,
		Run: func(ctx context.Context) error {
			_, err := e.overnight.WeeklySelfCritique(ctx, time.Now())
			return err
		},
	})

	e.scheduler.RegisterTask(scheduler.TaskSpec{
		Name:     "morning_handoff",
		States:   []core.MarketState{core.StatePremarketPrep},
		Schedule: scheduler.DailyAt{Hour: 6, Min: 0},
		Priority: 0,
		Run: func(ctx context.Context) error {
			tradingDate := time.Now().In(e.clock.Location()).Format("2006-01-02")
			watchlist, err := e.trackedSymbols(ctx)
			if err != nil {
				return fmt.Errorf("building universe: %w", err)
			}
			_, err = e.overnight.MorningHandoff(ctx, tradingDate, watchlist)
			return err
		},
	})
}

// trackedSymbols asks UniverseManager to build (or reuse the cached)
// tracked-symbol set from currently held positions and the static
// watchlist, since the engine has no wired DiscoverySource.
func (e *engine) trackedSymbols(ctx context.Context) ([]string, error) {
	account, err := e.broker.GetAccount(ctx)
	if err != nil {
		return nil, err
	}
	holdings := make([]string, 0, len(account.Positions))
	for _, p := range account.Positions {
		if p.Qty != 0 {
			holdings = append(holdings, p.Symbol)
		}
	}
	entries, err := e.universe.Build(ctx, holdings, e.cfg.Universe.StaticWatchlist)
	if err != nil {
		return nil, err
	}
	symbols := make([]string, len(entries))
	for i, entry := range entries {
		symbols[i] = entry.Symbol
	}
	return symbols, nil
}

// runEveningDeepLearning runs overnight.EveningDeepLearning once per
// tracked symbol, sequentially — spec.md 4.K gives this no concurrency
// budget of its own, unlike NewsTimeline's bounded pool.
func (e *engine) runEveningDeepLearning(ctx context.Context) error {
	tradingDate := time.Now().In(e.clock.Location()).Format("2006-01-02")
	symbols, err := e.trackedSymbols(ctx)
	if err != nil {
		return err
	}
	for _, symbol := range symbols {
		prompt := fmt.Sprintf("Perform a deep end-of-day analysis of %s for %s.", symbol, tradingDate)
		if _, err := e.overnight.EveningDeepLearning(ctx, symbol, tradingDate, prompt); err != nil {
			e.logger.WithSymbol(symbol).WithError(err).Warn("evening deep learning failed")
		}
	}
	return nil
}
