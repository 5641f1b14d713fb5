package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"
)

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "print MarketClock state and collaborator reachability",
		Flags: []cli.Flag{configPathFlag},
		Action: func(c *cli.Context) error {
			e, err := wireEngine(c.String("config"))
			if err != nil {
				return err
			}
			defer e.close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			now := time.Now()
			state := e.clock.NowState(ctx, now)
			fmt.Printf("market state:   %s\n", state)
			fmt.Printf("tradeable:      %v\n", e.clock.IsTradeable(ctx, now))
			fmt.Printf("timezone:       %s\n", e.cfg.Trading.Timezone)

			account, err := e.broker.GetAccount(ctx)
			if err != nil {
				fmt.Printf("broker:         UNREACHABLE (%v)\n", err)
			} else {
				isPaper, err := e.broker.IsPaperTrading(ctx)
				if err != nil {
					fmt.Printf("broker:         UNREACHABLE (%v)\n", err)
				} else {
					fmt.Printf("broker:         reachable, paper=%v, equity=%s, positions=%d\n",
						isPaper, account.Equity.String(), len(account.Positions))
				}
			}

			fmt.Printf("worker pool:    %d/%d queued, running=%v\n",
				e.pool.GetQueueDepth(), e.pool.GetQueueCapacity(), e.pool.IsRunning())

			return nil
		},
	}
}
