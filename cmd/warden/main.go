package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "warden",
		Usage:   "group moderation daemon",
		Version: versioninfo.Short(),
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "event-stream-host",
			Usage:   "websocket endpoint of the chat platform's event stream",
			Value:   "ws://localhost:6700/event",
			EnvVars: []string{"WARDEN_EVENT_STREAM_HOST"},
		},
		&cli.StringFlag{
			Name:    "api-host",
			Usage:   "HTTP endpoint of the chat platform's action API",
			Value:   "http://localhost:6700",
			EnvVars: []string{"WARDEN_API_HOST"},
		},
		&cli.StringFlag{
			Name:    "access-token",
			Usage:   "access token for the chat platform API",
			EnvVars: []string{"WARDEN_ACCESS_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "self-id",
			Usage:   "the bot's own account id (its events are ignored)",
			EnvVars: []string{"WARDEN_SELF_ID"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "sqlite path for persistent group settings; empty keeps settings in memory",
			Value:   "data/warden/settings.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL; enables redis-backed settings and counters",
			EnvVars: []string{"WARDEN_REDIS_URL", "REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "lexicon-file",
			Usage:   "JSON file with the builtin banned-word list",
			EnvVars: []string{"WARDEN_LEXICON_FILE"},
		},
		&cli.StringFlag{
			Name:    "slack-webhook-url",
			Usage:   "webhook URL for operator notifications",
			EnvVars: []string{"WARDEN_SLACK_WEBHOOK_URL", "SLACK_WEBHOOK_URL"},
		},
		&cli.StringFlag{
			Name:    "ban-time-range",
			Usage:   "min~max seconds for randomly chosen vote-ban durations",
			Value:   "60~600",
			EnvVars: []string{"WARDEN_BAN_TIME_RANGE"},
		},
		&cli.DurationFlag{
			Name:    "vote-ttl",
			Usage:   "how long a ban vote stays open",
			Value:   DefaultVoteTTL,
			EnvVars: []string{"WARDEN_VOTE_TTL"},
		},
		&cli.IntFlag{
			Name:    "vote-threshold",
			Usage:   "votes on one side that resolve a ban vote early",
			Value:   DefaultVoteThreshold,
			EnvVars: []string{"WARDEN_VOTE_THRESHOLD"},
		},
		&cli.IntFlag{
			Name:    "api-rate-limit",
			Usage:   "max moderation actions per second against the platform API",
			Value:   8,
			EnvVars: []string{"WARDEN_API_RATE_LIMIT"},
		},
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for the admin HTTP API",
			Value:   ":3999",
			EnvVars: []string{"WARDEN_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3998",
			EnvVars: []string{"WARDEN_METRICS_LISTEN"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := context.Background()
		logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
		slog.SetDefault(logger)

		configOTEL("warden")

		srv, err := NewServer(Config{
			Logger:          logger,
			EventStreamHost: cctx.String("event-stream-host"),
			APIHost:         cctx.String("api-host"),
			AccessToken:     cctx.String("access-token"),
			SelfID:          cctx.String("self-id"),
			DatabaseURL:     cctx.String("database-url"),
			RedisURL:        cctx.String("redis-url"),
			LexiconFile:     cctx.String("lexicon-file"),
			SlackWebhookURL: cctx.String("slack-webhook-url"),
			BanTimeRange:    cctx.String("ban-time-range"),
			VoteTTL:         cctx.Duration("vote-ttl"),
			VoteThreshold:   cctx.Int("vote-threshold"),
			APIRateLimit:    cctx.Int("api-rate-limit"),
		})
		if err != nil {
			return err
		}

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()
		go func() {
			if err := srv.RunAdminAPI(cctx.String("bind")); err != nil {
				slog.Error("failed to start admin API", "error", err)
				panic(fmt.Errorf("failed to start admin API: %w", err))
			}
		}()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("failed to run moderation service: %w", err)
		}
		return nil
	},
}
