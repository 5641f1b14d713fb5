package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
)

// backfillCommand rebuilds the UniverseManager's on-disk cache and then
// re-runs the morning handoff summary for today's trading date, so a
// stale cache never silently lingers after
// a config change (new watchlist symbols, a raised MaxSymbols).
func backfillCommand() *cli.Command {
	return &cli.Command{
		Name:  "backfill",
		Usage: "rebuild the universe cache and today's morning handoff summary",
		Flags: []cli.Flag{configPathFlag},
		Action: func(c *cli.Context) error {
			e, err := wireEngine(c.String("config"))
			if err != nil {
				return err
			}
			defer e.close()

			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			if err := os.Remove(universeCachePath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("removing stale universe cache: %w", err)
			}

			symbols, err := e.trackedSymbols(ctx)
			if err != nil {
				return fmt.Errorf("rebuilding universe: %w", err)
			}
			fmt.Printf("universe rebuilt: %d symbols tracked\n", len(symbols))

			tradingDate := time.Now().In(e.clock.Location()).Format("2006-01-02")
			summary, err := e.overnight.MorningHandoff(ctx, tradingDate, symbols)
			if err != nil {
				return fmt.Errorf("rebuilding morning handoff: %w", err)
			}
			fmt.Printf("morning handoff: %d synthesis entries, %d gap candidates\n",
				len(summary.Synthesis), len(summary.GapCandidates))

			return nil
		},
	}
}
