package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hma-go/actioner/actioner/engine"
	"github.com/hma-go/actioner/actioner/matchstore"
	"github.com/hma-go/actioner/actioner/queue"
	"github.com/hma-go/actioner/actioner/rulestore"
	"github.com/hma-go/actioner/actioner/util"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	slogecho "github.com/samber/slog-echo"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type Server struct {
	logger   *slog.Logger
	engine   *engine.Engine
	consumer inboundConsumer
	matches  *matchstore.Store
	echo     *echo.Echo
	httpd    *http.Server

	reclaimInterval time.Duration
	reclaimMinIdle  time.Duration
}

type Config struct {
	Logger               *slog.Logger
	ActionsQueueURL      string
	ReactionsQueueURL    string
	PolicyFile           string
	PolicyRedisURL       string
	PolicyRedisKey       string
	PolicyReloadInterval time.Duration
	Parallelism          int
	PublishRateLimit     float64
	PublishMaxTries      int
	PublishTimeout       time.Duration
	InboundRedisURL      string
	InboundStream        string
	InboundGroup         string
	InboundConsumer      string
	BatchSize            int
	ReclaimInterval      time.Duration
	ReclaimMinIdle       time.Duration
	DatabaseURL          string
	MaxDBConnections     int
	Bind                 string
}

// Wires up an engine (policy store, publishers, dispatcher) from config. Missing queue locators or policy source are reported as ErrConfigMissing.
func NewEngine(ctx context.Context, config Config) (*engine.Engine, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if config.ActionsQueueURL == "" {
		return nil, fmt.Errorf("%w: actions queue locator (ACTIONS_QUEUE_URL)", engine.ErrConfigMissing)
	}
	if config.ReactionsQueueURL == "" {
		return nil, fmt.Errorf("%w: reactions queue locator (REACTIONS_QUEUE_URL)", engine.ErrConfigMissing)
	}

	store, err := policyStore(config, logger)
	if err != nil {
		return nil, err
	}

	actions, err := openPublisher(ctx, config.ActionsQueueURL, config.PublishRateLimit, logger)
	if err != nil {
		return nil, fmt.Errorf("actions queue: %w", err)
	}
	reactions, err := openPublisher(ctx, config.ReactionsQueueURL, config.PublishRateLimit, logger)
	if err != nil {
		_ = actions.Close()
		return nil, fmt.Errorf("reactions queue: %w", err)
	}

	disp := engine.NewDispatcher(logger, actions, reactions)
	if config.PublishMaxTries > 0 {
		disp.Retry.MaxTries = uint(config.PublishMaxTries)
	}
	if config.PublishTimeout > 0 {
		disp.Retry.AttemptTimeout = config.PublishTimeout
	}

	// fail fast on a bad or missing policy, instead of failing every record
	if _, err := store.Load(ctx); err != nil {
		_ = actions.Close()
		_ = reactions.Close()
		return nil, fmt.Errorf("loading policy: %w", err)
	}

	return &engine.Engine{
		Logger:      logger,
		Policy:      store,
		Dispatcher:  disp,
		Parallelism: config.Parallelism,
	}, nil
}

func policyStore(config Config, logger *slog.Logger) (rulestore.Store, error) {
	var inner rulestore.Store
	switch {
	case config.PolicyFile != "":
		inner = &rulestore.FileStore{Path: config.PolicyFile}
	case config.PolicyRedisURL != "":
		rs, err := rulestore.NewRedisStore(config.PolicyRedisURL, config.PolicyRedisKey, time.Minute)
		if err != nil {
			return nil, fmt.Errorf("initializing redis policy store: %w", err)
		}
		inner = rs
	default:
		return nil, fmt.Errorf("%w: policy source (ACTIONER_POLICY_FILE or ACTIONER_POLICY_REDIS_URL)", engine.ErrConfigMissing)
	}
	retrying := rulestore.NewRetryingStore(inner, util.DefaultRetryPolicy(), logger)
	return rulestore.NewCachedStore(retrying, config.PolicyReloadInterval), nil
}

func openPublisher(ctx context.Context, locator string, rateLimit float64, logger *slog.Logger) (queue.Publisher, error) {
	pub, err := queue.Open(ctx, locator, logger)
	if err != nil {
		return nil, err
	}
	if rateLimit > 0 {
		return queue.NewLimitedPublisher(pub, rateLimit, int(rateLimit)+1), nil
	}
	return pub, nil
}

func NewServer(ctx context.Context, config Config) (*Server, error) {
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
		config.Logger = logger
	}

	eng, err := NewEngine(ctx, config)
	if err != nil {
		return nil, err
	}
	srv := &Server{
		logger:          logger,
		engine:          eng,
		reclaimInterval: config.ReclaimInterval,
		reclaimMinIdle:  config.ReclaimMinIdle,
	}

	if config.DatabaseURL != "" {
		db, err := matchstore.SetupDatabase(config.DatabaseURL, config.MaxDBConnections, logger)
		if err != nil {
			srv.Close()
			return nil, fmt.Errorf("opening match database: %w", err)
		}
		ms, err := matchstore.NewStore(db)
		if err != nil {
			srv.Close()
			return nil, err
		}
		srv.matches = ms
		eng.Recorder = ms
	}

	opt, err := redis.ParseURL(config.InboundRedisURL)
	if err != nil {
		srv.Close()
		return nil, fmt.Errorf("parsing inbound redis URL: %w", err)
	}
	rdb := redis.NewClient(opt)
	if _, err := rdb.Ping(ctx).Result(); err != nil {
		srv.Close()
		return nil, fmt.Errorf("inbound redis ping failed: %w", err)
	}
	consumerName := config.InboundConsumer
	if consumerName == "" {
		consumerName, _ = os.Hostname()
	}
	consumer, err := queue.NewRedisConsumer(ctx, rdb, queue.ConsumerConfig{
		Stream:   config.InboundStream,
		Group:    config.InboundGroup,
		Consumer: consumerName,
		Batch:    int64(config.BatchSize),
		Block:    5 * time.Second,
	}, logger)
	if err != nil {
		srv.Close()
		return nil, err
	}
	srv.consumer = consumer

	srv.setupAPI(config.Bind)
	return srv, nil
}

func (s *Server) setupAPI(bind string) {
	e := echo.New()
	e.HideBanner = true
	e.Use(slogecho.New(s.logger))
	e.Use(middleware.Recover())
	e.Use(middleware.BodyLimit("1M"))
	e.Use(echoprometheus.NewMiddleware("actioner"))
	e.HTTPErrorHandler = s.errorHandler

	e.GET("/_health", s.HandleHealthCheck)
	if s.matches != nil {
		e.GET("/matches", s.HandleMatches)
		e.GET("/matches/details", s.HandleMatchDetails)
	}
	s.echo = e
	s.httpd = &http.Server{
		Handler:        otelhttp.NewHandler(e, "actioner-api"),
		Addr:           bind,
		WriteTimeout:   time.Minute,
		ReadTimeout:    time.Minute,
		MaxHeaderBytes: 1024 * 1024,
	}
}

// Runs the inbound consumer and the HTTP API until an OS exit signal, or the consumer fails.
func (s *Server) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		s.logger.Info("starting HTTP API", "bind", s.httpd.Addr)
		if err := s.httpd.ListenAndServe(); err != nil {
			if !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("HTTP server shutting down unexpectedly", "err", err)
			}
		}
	}()

	consumerErr := make(chan error, 1)
	go func() {
		consumerErr <- s.RunConsumer(ctx)
	}()

	exitSignals := make(chan os.Signal, 1)
	signal.Notify(exitSignals, syscall.SIGINT, syscall.SIGTERM)

	var err error
	select {
	case sig := <-exitSignals:
		s.logger.Info("received OS exit signal", "signal", sig)
		cancel()
		err = <-consumerErr
	case err = <-consumerErr:
		s.logger.Error("inbound consumer exited", "err", err)
	}

	if serr := s.Shutdown(); serr != nil {
		s.logger.Error("HTTP server shutdown error", "err", serr)
	}
	s.logger.Info("graceful shutdown complete")
	return err
}

func (s *Server) RunMetrics(listen string) error {
	http.Handle("/metrics", promhttp.Handler())
	return http.ListenAndServe(listen, nil)
}

func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return s.httpd.Shutdown(ctx)
}

// Releases queue connections. Safe to call on a partially constructed server.
func (s *Server) Close() {
	if s.consumer != nil {
		if err := s.consumer.Close(); err != nil {
			s.logger.Warn("closing inbound consumer", "err", err)
		}
	}
	if s.engine != nil && s.engine.Dispatcher != nil {
		for _, p := range []queue.Publisher{s.engine.Dispatcher.Actions, s.engine.Dispatcher.Reactions} {
			if err := p.Close(); err != nil {
				s.logger.Warn("closing publisher", "err", err)
			}
		}
	}
}
