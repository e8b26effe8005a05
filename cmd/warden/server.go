package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	slogGorm "github.com/orandin/slog-gorm"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/groupwarden/groupwarden/actuator"
	"github.com/groupwarden/groupwarden/admission"
	"github.com/groupwarden/groupwarden/consumer"
	"github.com/groupwarden/groupwarden/countstore"
	"github.com/groupwarden/groupwarden/engine"
	"github.com/groupwarden/groupwarden/flood"
	"github.com/groupwarden/groupwarden/settings"
	"github.com/groupwarden/groupwarden/vote"
	"github.com/groupwarden/groupwarden/wordguard"
)

const (
	DefaultVoteTTL       = 60 * time.Second
	DefaultVoteThreshold = 5
)

type Server struct {
	logger   *slog.Logger
	engine   *engine.Engine
	consumer *consumer.StreamConsumer
}

type Config struct {
	Logger          *slog.Logger
	EventStreamHost string
	APIHost         string
	AccessToken     string
	SelfID          string
	DatabaseURL     string
	RedisURL        string
	LexiconFile     string
	SlackWebhookURL string
	BanTimeRange    string
	VoteTTL         time.Duration
	VoteThreshold   int
	APIRateLimit    int
}

func NewServer(config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	}

	if !strings.HasPrefix(config.EventStreamHost, "ws") {
		return nil, fmt.Errorf("specified event stream host must include 'ws://' or 'wss://'")
	}

	engineConfig := engine.DefaultConfig()
	if config.VoteTTL > 0 {
		engineConfig.VoteTTL = config.VoteTTL
	}
	if config.VoteThreshold > 0 {
		engineConfig.VoteThreshold = config.VoteThreshold
	}
	if config.BanTimeRange != "" {
		min, max, err := engine.ParseBanTimeRange(config.BanTimeRange)
		if err != nil {
			return nil, fmt.Errorf("invalid ban-time-range: %w", err)
		}
		engineConfig.MinBanTime = min
		engineConfig.MaxBanTime = max
	}

	settingsStore, counters, err := setupStores(config, logger)
	if err != nil {
		return nil, err
	}

	var lexicon *wordguard.Lexicon
	if config.LexiconFile != "" {
		lexicon, err = wordguard.LoadLexicon(config.LexiconFile)
		if err != nil {
			return nil, fmt.Errorf("loading builtin lexicon: %w", err)
		}
		logger.Info("loaded builtin banned-word lexicon", "path", config.LexiconFile, "words", len(lexicon.Words))
	}

	var notifier engine.Notifier
	if config.SlackWebhookURL != "" {
		notifier = &engine.SlackNotifier{SlackWebhookURL: config.SlackWebhookURL}
	}

	client := actuator.NewOneBotClient(config.APIHost, config.AccessToken, config.APIRateLimit)
	mod := settings.NewModeration(settingsStore, logger)

	eng := &engine.Engine{
		Logger:    logger,
		SelfID:    config.SelfID,
		Config:    engineConfig,
		Settings:  mod,
		Counters:  counters,
		Flood:     flood.NewDetector(config.SelfID),
		Votes:     vote.NewConsensus(client, logger),
		Admission: admission.NewPolicy(mod, logger),
		Lexicon:   lexicon,
		Actuator:  client,
		Notifier:  notifier,
	}
	eng.Votes.OnSettled = eng.AnnounceVoteSettled

	s := &Server{
		logger: logger,
		engine: eng,
		consumer: &consumer.StreamConsumer{
			Logger: logger,
			Engine: eng,
			Host:   config.EventStreamHost,
			Token:  config.AccessToken,
		},
	}

	return s, nil
}

// setupStores picks storage backends: redis when a redis URL is configured,
// sqlite-backed settings behind a local cache when a database URL is
// configured, in-memory otherwise.
func setupStores(config Config, logger *slog.Logger) (settings.Store, countstore.CountStore, error) {
	if config.RedisURL != "" {
		opt, err := redis.ParseURL(config.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing redis URL: %v", err)
		}
		rdb := redis.NewClient(opt)
		if _, err := rdb.Ping(context.TODO()).Result(); err != nil {
			return nil, nil, fmt.Errorf("redis ping failed: %v", err)
		}

		st, err := settings.NewRedisStore(config.RedisURL, 5*time.Minute)
		if err != nil {
			return nil, nil, fmt.Errorf("initializing redis settings store: %v", err)
		}
		counters, err := countstore.NewRedisCountStore(config.RedisURL)
		if err != nil {
			return nil, nil, fmt.Errorf("initializing redis countstore: %v", err)
		}
		logger.Info("using redis stores", "url", opt.Addr)
		return st, counters, nil
	}

	if config.DatabaseURL != "" {
		db, err := setupDatabase(config.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		st, err := settings.NewGormStore(db)
		if err != nil {
			return nil, nil, fmt.Errorf("initializing sqlite settings store: %v", err)
		}
		logger.Info("using sqlite settings store", "url", config.DatabaseURL)
		return settings.NewCachedStore(st, 10_000, 5*time.Minute), countstore.NewMemCountStore(), nil
	}

	logger.Info("using in-memory stores")
	return settings.NewMemStore(), countstore.NewMemCountStore(), nil
}

func setupDatabase(dburl string) (*gorm.DB, error) {
	path := strings.TrimPrefix(dburl, "sqlite://")
	if path != ":memory:" {
		os.MkdirAll(filepath.Dir(path), os.ModePerm)
	}
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		SkipDefaultTransaction: true,
		TranslateError:         true,
		Logger:                 slogGorm.New(),
	})
	if err != nil {
		return nil, err
	}
	sqldb, err := db.DB()
	if err != nil {
		return nil, err
	}
	// sqlite tolerates exactly one writer
	sqldb.SetMaxOpenConns(1)
	return db, nil
}

func (s *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

// Run consumes the event stream until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.consumer.Run(ctx)
}
