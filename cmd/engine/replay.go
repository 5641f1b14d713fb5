package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/nyxtrader/decisioncore/internal/ai"
	"github.com/nyxtrader/decisioncore/internal/core"
)

// replayCommand offline-reparses a day's recorded decisions (spec.md 6):
// each stored LLMRawResponse is fed back through ai.ResponseParser so a
// parser regression or prompt-format change can be diagnosed against
// what was actually stored, without calling the Model again.
func replayCommand() *cli.Command {
	return &cli.Command{
		Name:  "replay",
		Usage: "offline-reparse a day's recorded decisions for debugging",
		Flags: []cli.Flag{
			configPathFlag,
			&cli.StringFlag{Name: "date", Usage: "trading date to replay, YYYY-MM-DD", Required: true},
		},
		Action: func(c *cli.Context) error {
			e, err := wireEngine(c.String("config"))
			if err != nil {
				return err
			}
			defer e.close()

			tradingDate := c.String("date")
			dayStart, err := time.ParseInLocation("2006-01-02", tradingDate, e.clock.Location())
			if err != nil {
				return configErr(fmt.Errorf("invalid --date %q: %w", tradingDate, err))
			}
			dayEnd := dayStart.Add(24 * time.Hour)

			ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()

			decisions, err := e.store.DecisionsOnOrAfter(ctx, dayStart)
			if err != nil {
				return fmt.Errorf("loading decisions for %s: %w", tradingDate, err)
			}

			parser := ai.NewResponseParser()
			mismatches := 0
			replayed := 0
			for _, d := range decisions {
				if d.Timestamp.After(dayEnd) {
					continue
				}
				replayed++
				if d.LLMRawResponse == "" {
					continue
				}
				result := parser.Parse(d.LLMRawResponse, d.QueryType, d.Trigger, core.FormatStandardDecision)
				if result.Outcome != ai.OutcomeOK || result.Decision == nil {
					fmt.Printf("[%s] %s: reparse failed (%s): %s\n", d.ID, d.Symbol, result.Outcome, result.FailureReason)
					mismatches++
					continue
				}
				if result.Decision.Action != d.Action || result.Decision.Confidence != d.Confidence {
					fmt.Printf("[%s] %s: stored action=%s confidence=%d, reparsed action=%s confidence=%d\n",
						d.ID, d.Symbol, d.Action, d.Confidence, result.Decision.Action, result.Decision.Confidence)
					mismatches++
				}
			}

			fmt.Printf("replayed %d decisions for %s, %d mismatches\n", replayed, tradingDate, mismatches)
			return nil
		},
	}
}
