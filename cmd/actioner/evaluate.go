package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/hma-go/actioner/actioner/engine"
	"github.com/hma-go/actioner/actioner/event"

	cli "github.com/urfave/cli/v2"
)

var evaluateCmd = &cli.Command{
	Name:      "evaluate",
	Usage:     "process a single batch of match notifications from a JSON file (or stdin), and print the summary",
	ArgsUsage: "[<batch.json>]",
	Flags:     engineFlags,
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		// logs go to stderr, so the summary on stdout stays parseable
		logger := configLogger(cctx, os.Stderr)

		var raw []byte
		var err error
		if p := cctx.Args().First(); p != "" && p != "-" {
			raw, err = os.ReadFile(p)
		} else {
			raw, err = io.ReadAll(os.Stdin)
		}
		if err != nil {
			return err
		}
		envs, err := parseBatch(raw)
		if err != nil {
			return err
		}

		eng, err := NewEngine(ctx, configFromCLI(cctx, logger))
		if err != nil {
			return err
		}
		defer func() {
			_ = eng.Dispatcher.Actions.Close()
			_ = eng.Dispatcher.Reactions.Close()
		}()

		summary := eng.ProcessBatch(ctx, envs)
		out, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		if summary.Status == engine.BatchFailed {
			return fmt.Errorf("all %d records failed", summary.Total)
		}
		return nil
	},
}

// Accepts a batch invocation document (`{"Records": [...]}`), or a JSON array of match messages.
func parseBatch(raw []byte) ([]event.Envelope, error) {
	var inv event.BatchInvocation
	if err := json.Unmarshal(raw, &inv); err == nil && inv.Records != nil {
		return inv.Envelopes(), nil
	}
	var msgs []json.RawMessage
	if err := json.Unmarshal(raw, &msgs); err != nil {
		return nil, fmt.Errorf("batch must be an invocation object or an array of match messages: %w", err)
	}
	envs := make([]event.Envelope, 0, len(msgs))
	for i, m := range msgs {
		envs = append(envs, event.Envelope{ID: fmt.Sprintf("record-%d", i), Body: m})
	}
	return envs, nil
}
