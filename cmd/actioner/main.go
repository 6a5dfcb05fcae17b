package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
	_ "go.uber.org/automaxprocs"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "actioner",
		Usage:   "match action evaluator daemon",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			Value:   "info",
			EnvVars: []string{"ACTIONER_LOG_LEVEL", "LOG_LEVEL"},
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
		evaluateCmd,
		policyCmd,
	}

	return app.Run(args)
}

// flags shared by every command which evaluates matches
var engineFlags = []cli.Flag{
	&cli.StringFlag{
		Name:    "actions-queue-url",
		Usage:   "locator of outbound actions queue (redis://host:port/db?stream=NAME, nats://host:port/SUBJECT, mem://NAME)",
		EnvVars: []string{"ACTIONS_QUEUE_URL"},
	},
	&cli.StringFlag{
		Name:    "reactions-queue-url",
		Usage:   "locator of outbound reactions queue",
		EnvVars: []string{"REACTIONS_QUEUE_URL"},
	},
	&cli.StringFlag{
		Name:    "policy-file",
		Usage:   "path to JSON policy document (rules, actions, reaction settings)",
		EnvVars: []string{"ACTIONER_POLICY_FILE"},
	},
	&cli.StringFlag{
		Name:    "policy-redis-url",
		Usage:   "redis server URL to load the policy document from (instead of a file)",
		EnvVars: []string{"ACTIONER_POLICY_REDIS_URL"},
	},
	&cli.StringFlag{
		Name:    "policy-redis-key",
		Usage:   "redis key holding the policy document",
		Value:   "actioner/policy",
		EnvVars: []string{"ACTIONER_POLICY_REDIS_KEY"},
	},
	&cli.DurationFlag{
		Name:    "policy-reload-interval",
		Usage:   "how long a loaded policy is used before reloading; zero means load once",
		Value:   0,
		EnvVars: []string{"ACTIONER_POLICY_RELOAD_INTERVAL"},
	},
	&cli.IntFlag{
		Name:    "parallelism",
		Usage:   "max records processed concurrently within a batch (default: GOMAXPROCS)",
		EnvVars: []string{"ACTIONER_PARALLELISM"},
	},
	&cli.Float64Flag{
		Name:    "publish-rate-limit",
		Usage:   "max outbound messages per second, per queue; zero for no limit",
		EnvVars: []string{"ACTIONER_PUBLISH_RATE_LIMIT"},
	},
	&cli.IntFlag{
		Name:    "publish-max-tries",
		Usage:   "attempts per outbound message before it counts as failed",
		Value:   4,
		EnvVars: []string{"ACTIONER_PUBLISH_MAX_TRIES"},
	},
	&cli.DurationFlag{
		Name:    "publish-timeout",
		Usage:   "deadline for each individual publish attempt",
		Value:   5 * time.Second,
		EnvVars: []string{"ACTIONER_PUBLISH_TIMEOUT"},
	},
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the service: consume the inbound match stream, and serve the match API",
	Flags: append([]cli.Flag{
		&cli.StringFlag{
			Name:    "inbound-redis-url",
			Usage:   "redis server URL for the inbound match notification stream",
			Value:   "redis://localhost:6379/0",
			EnvVars: []string{"ACTIONER_INBOUND_REDIS_URL", "REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "inbound-stream",
			Value:   "hma-matches",
			EnvVars: []string{"ACTIONER_INBOUND_STREAM"},
		},
		&cli.StringFlag{
			Name:    "inbound-group",
			Value:   "actioner",
			EnvVars: []string{"ACTIONER_INBOUND_GROUP"},
		},
		&cli.StringFlag{
			Name:    "inbound-consumer",
			Usage:   "consumer name within the group; must be stable across restarts for unacknowledged records to be retried",
			EnvVars: []string{"ACTIONER_INBOUND_CONSUMER"},
		},
		&cli.IntFlag{
			Name:    "batch-size",
			Usage:   "max inbound records per batch",
			Value:   10,
			EnvVars: []string{"ACTIONER_BATCH_SIZE"},
		},
		&cli.DurationFlag{
			Name:    "reclaim-interval",
			Usage:   "how often to look for unacknowledged inbound records to retry; zero disables retries until restart",
			Value:   time.Minute,
			EnvVars: []string{"ACTIONER_RECLAIM_INTERVAL"},
		},
		&cli.DurationFlag{
			Name:    "reclaim-min-idle",
			Usage:   "how long an inbound record must stay unacknowledged before it is retried",
			Value:   2 * time.Minute,
			EnvVars: []string{"ACTIONER_RECLAIM_MIN_IDLE"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "match record database (sqlite:// or postgresql://); match API is disabled if not set",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
			Value:   20,
		},
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   ":3989",
			EnvVars: []string{"ACTIONER_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3988",
			EnvVars: []string{"ACTIONER_METRICS_LISTEN"},
		},
	}, engineFlags...),
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		logger := configLogger(cctx, os.Stdout)
		defer configOTEL("actioner")()

		srv, err := NewServer(ctx, configFromCLI(cctx, logger))
		if err != nil {
			return err
		}
		defer srv.Close()

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("failed to run actioner service: %w", err)
		}
		return nil
	},
}

func configFromCLI(cctx *cli.Context, logger *slog.Logger) Config {
	return Config{
		Logger:               logger,
		ActionsQueueURL:      cctx.String("actions-queue-url"),
		ReactionsQueueURL:    cctx.String("reactions-queue-url"),
		PolicyFile:           cctx.String("policy-file"),
		PolicyRedisURL:       cctx.String("policy-redis-url"),
		PolicyRedisKey:       cctx.String("policy-redis-key"),
		PolicyReloadInterval: cctx.Duration("policy-reload-interval"),
		Parallelism:          cctx.Int("parallelism"),
		PublishRateLimit:     cctx.Float64("publish-rate-limit"),
		PublishMaxTries:      cctx.Int("publish-max-tries"),
		PublishTimeout:       cctx.Duration("publish-timeout"),
		InboundRedisURL:      cctx.String("inbound-redis-url"),
		InboundStream:        cctx.String("inbound-stream"),
		InboundGroup:         cctx.String("inbound-group"),
		InboundConsumer:      cctx.String("inbound-consumer"),
		BatchSize:            cctx.Int("batch-size"),
		ReclaimInterval:      cctx.Duration("reclaim-interval"),
		ReclaimMinIdle:       cctx.Duration("reclaim-min-idle"),
		DatabaseURL:          cctx.String("database-url"),
		MaxDBConnections:     cctx.Int("max-db-connections"),
		Bind:                 cctx.String("bind"),
	}
}

func configLogger(cctx *cli.Context, w *os.File) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cctx.String("log-level")) {
	case "error":
		level = slog.LevelError
	case "warn":
		level = slog.LevelWarn
	case "debug":
		level = slog.LevelDebug
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}
