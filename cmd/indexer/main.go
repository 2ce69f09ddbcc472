package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/emperorhan/zklite-indexer/internal/admin"
	"github.com/emperorhan/zklite-indexer/internal/alert"
	"github.com/emperorhan/zklite-indexer/internal/chain/ethereum/rpc"
	"github.com/emperorhan/zklite-indexer/internal/chain/ratelimit"
	"github.com/emperorhan/zklite-indexer/internal/chain/zksynclite/api"
	"github.com/emperorhan/zklite-indexer/internal/circuitbreaker"
	"github.com/emperorhan/zklite-indexer/internal/config"
	"github.com/emperorhan/zklite-indexer/internal/domain/model"
	"github.com/emperorhan/zklite-indexer/internal/pipeline"
	"github.com/emperorhan/zklite-indexer/internal/pipeline/decoder"
	"github.com/emperorhan/zklite-indexer/internal/pipeline/fetcher"
	"github.com/emperorhan/zklite-indexer/internal/pipeline/ingester"
	"github.com/emperorhan/zklite-indexer/internal/pipeline/normalizer"
	"github.com/emperorhan/zklite-indexer/internal/price"
	"github.com/emperorhan/zklite-indexer/internal/store"
	"github.com/emperorhan/zklite-indexer/internal/store/postgres"
	redispkg "github.com/emperorhan/zklite-indexer/internal/store/redis"
	"github.com/emperorhan/zklite-indexer/internal/token"
	"github.com/emperorhan/zklite-indexer/internal/tracing"
	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"
)

const (
	serviceName  = "zklite-indexer"
	alertTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := newLogger(cfg.Log.Level, os.Stdout)
	slog.SetDefault(logger)

	logger.Info("starting "+serviceName,
		"api_url", cfg.ZkSyncLite.APIURL,
		"eth_rpc", cfg.Ethereum.RPCURL,
		"db_url", maskCredentials(cfg.DB.URL),
		"redis_enabled", cfg.Redis.URL != "",
		"watched_addresses", len(cfg.Pipeline.WatchedAddresses),
		"sync_interval", cfg.Pipeline.SyncInterval,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := tracing.Init(ctx, tracing.Config{
		ServiceName: serviceName,
		Endpoint:    cfg.Tracing.Endpoint,
		Insecure:    cfg.Tracing.Insecure,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			logger.Warn("tracing shutdown error", "error", err)
		}
	}()
	if cfg.Tracing.Endpoint != "" {
		logger.Info("tracing enabled", "endpoint", cfg.Tracing.Endpoint)
	}

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("indexer exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("indexer shut down gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := postgres.New(ctx, postgres.Config{
		URL:                cfg.DB.URL,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetime:    cfg.DB.ConnMaxLifetime,
		StatementTimeoutMS: cfg.DB.StatementTimeoutMS,
	})
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer db.Close()
	logger.Info("connected to database")

	if err := db.RunMigrations(ctx, cfg.DB.MigrationsDir); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	var (
		txRepo      = postgres.NewTransactionRepo(db)
		rangeRepo   = postgres.NewQueryRangeRepo(db)
		eventRepo   = postgres.NewLedgerEventRepo(db)
		tokenRepo   = postgres.NewTokenRepo(db)
		watchedRepo = postgres.NewWatchedAddressRepo(db)
	)

	if err := seedWatchedAddresses(ctx, watchedRepo, cfg.Pipeline.WatchedAddresses, logger); err != nil {
		return err
	}

	alerter := newAlerter(cfg.Alert, logger)
	remote := newRemoteClient(cfg.ZkSyncLite, alerter, logger)

	ethRPC := rpc.NewClient(cfg.Ethereum.RPCURL, logger)
	ethRPC.SetRateLimiter(ratelimit.NewLimiter(cfg.Ethereum.RPS, cfg.Ethereum.Burst, model.ChainEthereum.String()))

	registry, err := token.NewRegistry(tokenRepo, token.NewInspector(ethRPC), cfg.Pipeline.TokenCacheSize, logger)
	if err != nil {
		return fmt.Errorf("create token registry: %w", err)
	}
	directory := token.NewDirectory(remote, registry, token.DirectoryConfig{
		PageLimit:       cfg.ZkSyncLite.PageLimit,
		RefreshInterval: cfg.Pipeline.TokenRefreshInterval,
	}, logger)

	norm := normalizer.New(directory, logger)

	notifier, stream, err := resolveProgressNotifier(ctx, cfg.Redis, logger)
	if err != nil {
		return err
	}
	checker := &healthChecker{db: db}
	if stream != nil {
		defer func() {
			if err := stream.Close(); err != nil {
				logger.Warn("redis close error", "error", err)
			}
		}()
		checker.redis = stream
	}

	prices, err := price.ParseStatic(cfg.Price.StaticUSD)
	if err != nil {
		return fmt.Errorf("parse PRICE_STATIC_USD: %w", err)
	}

	decoderSvc := decoder.NewService(db, txRepo, eventRepo, watchedRepo, logger,
		decoder.WithProgressNotifier(notifier, cfg.Pipeline.DecodeProgressEvery))

	health := pipeline.NewSyncHealth(pipeline.DefaultUnhealthyThreshold, pipeline.DefaultDegradedLatencyThreshold)
	checker.sync = health
	p := pipeline.New(pipeline.Config{FetchWorkers: cfg.Pipeline.FetchWorkers}, pipeline.Dependencies{
		Pager:      fetcher.New(remote, norm, cfg.ZkSyncLite.PageLimit, logger),
		Ingester:   ingester.New(db, txRepo, rangeRepo, logger),
		Remote:     remote,
		Normalizer: norm,
		Tokens:     directory,
		Prices:     prices,
		Decoder:    decoderSvc,
		TxRepo:     txRepo,
		RangeRepo:  rangeRepo,
		Alerter:    alerter,
	}, health, logger)

	// Run-once mode cancels the servers after the single sync cycle.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return serveHTTP(gCtx, "health", cfg.Server.HealthPort, newHealthHandler(checker, health, logger), logger)
	})

	if cfg.Server.AdminPort != 0 {
		limiter := admin.NewRateLimitMiddleware(logger)
		defer limiter.Stop()

		srv := admin.NewServer(watchedRepo, txRepo, eventRepo, p, logger, admin.WithHealthProvider(health))
		handler := admin.AuditMiddleware(logger, limiter.Wrap(srv.Handler()))
		if cfg.Server.AdminUser != "" {
			handler = basicAuthMiddleware("admin", cfg.Server.AdminUser, cfg.Server.AdminPassword, handler)
		}
		g.Go(func() error {
			return serveHTTP(gCtx, "admin", cfg.Server.AdminPort, handler, logger)
		})
	}

	startDBPoolStatsPump(gCtx, db, cfg.DB.PoolStatsInterval, logger)

	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("sync loop panicked: %v\n%s", r, debug.Stack())
			}
		}()
		if cfg.Pipeline.SyncInterval <= 0 {
			defer cancel()
		}
		return runSyncLoop(gCtx, p, watchedRepo, cfg.Pipeline.SyncInterval, cfg.Pipeline.SyncTimeout, logger)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func newLogger(level string, w io.Writer) *slog.Logger {
	logLevel := slog.LevelInfo
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	}
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: logLevel}))
}

// newAlerter builds the alert fan-out. With no channel configured it
// accepts and drops every alert.
func newAlerter(cfg config.AlertConfig, logger *slog.Logger) *alert.MultiAlerter {
	var channels []alert.Alerter
	if cfg.SlackWebhookURL != "" {
		channels = append(channels, alert.NewSlackAlerter(cfg.SlackWebhookURL))
	}
	if cfg.WebhookURL != "" {
		channels = append(channels, alert.NewWebhookAlerter(cfg.WebhookURL))
	}
	multi := alert.NewMultiAlerter(cfg.Cooldown, logger, channels...)
	if multi.Len() > 0 {
		logger.Info("alerting enabled", "channels", multi.Len(), "cooldown", cfg.Cooldown)
	}
	return multi
}

func newRemoteClient(cfg config.ZkSyncLiteConfig, alerter alert.Alerter, logger *slog.Logger) *api.Client {
	client := api.NewClient(api.Config{
		BaseURL:        cfg.APIURL,
		Timeout:        cfg.RequestTimeout,
		BackoffUnit:    cfg.BackoffUnit,
		BackoffCeiling: cfg.BackoffCeiling,
	}, logger)
	client.SetRateLimiter(ratelimit.NewLimiter(cfg.RPS, cfg.Burst, model.ChainZkSyncLite.String()))

	breakerLogger := logger.With("component", "zksynclite_breaker")
	client.SetCircuitBreaker(circuitbreaker.New(circuitbreaker.Config{
		Name:             model.ChainZkSyncLite.String(),
		FailureThreshold: cfg.BreakerThreshold,
		OpenTimeout:      cfg.BreakerOpenTimeout,
		OnStateChange: func(from, to circuitbreaker.State) {
			breakerLogger.Warn("circuit breaker state changed", "from", from.String(), "to", to.String())
			if to == circuitbreaker.StateOpen {
				go sendBreakerAlert(alerter, cfg, breakerLogger)
			}
		},
	}))
	return client
}

// sendBreakerAlert is detached from the request that tripped the breaker
// and carries its own deadline.
func sendBreakerAlert(alerter alert.Alerter, cfg config.ZkSyncLiteConfig, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), alertTimeout)
	defer cancel()
	err := alerter.Send(ctx, alert.Alert{
		Type:    alert.AlertTypeBreakerOpen,
		Source:  model.ChainZkSyncLite.String(),
		Title:   "zkSync Lite API circuit breaker open",
		Message: fmt.Sprintf("requests are rejected for %s after %d consecutive failures", cfg.BreakerOpenTimeout, cfg.BreakerThreshold),
		Fields:  map[string]string{"api_url": cfg.APIURL},
	})
	if err != nil {
		logger.Warn("breaker alert delivery failed", "error", err)
	}
}

// resolveProgressNotifier publishes decode progress to Redis when a URL is
// configured and logs it otherwise. The stream is nil in the latter case;
// the caller owns closing it.
func resolveProgressNotifier(ctx context.Context, cfg config.RedisConfig, logger *slog.Logger) (decoder.ProgressNotifier, *redispkg.Stream, error) {
	redisURL := strings.TrimSpace(cfg.URL)
	if redisURL == "" {
		return decoder.NewLogNotifier(logger), nil, nil
	}

	stream, err := redispkg.NewStream(ctx, redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("initialize redis progress stream: %w", err)
	}
	logger.Info("redis decode progress enabled", "redis_url", maskCredentials(redisURL), "stream", cfg.ProgressStream)
	return stream.ProgressNotifier(cfg.ProgressStream), stream, nil
}

// seedWatchedAddresses stores the configured addresses as active, env-sourced
// watched addresses. Addresses added through the admin API are left alone.
func seedWatchedAddresses(ctx context.Context, repo store.WatchedAddressRepository, addresses []string, logger *slog.Logger) error {
	for _, raw := range addresses {
		if !common.IsHexAddress(raw) {
			return fmt.Errorf("upsert watched address %s: not a hex address", raw)
		}
		wa := &model.WatchedAddress{
			Address:  common.HexToAddress(raw).Hex(),
			IsActive: true,
			Source:   model.AddressSourceEnv,
		}
		if err := repo.Upsert(ctx, wa); err != nil {
			return fmt.Errorf("upsert watched address %s: %w", raw, err)
		}
	}
	if len(addresses) > 0 {
		logger.Info("synced watched addresses from env", "count", len(addresses))
	}
	return nil
}

type syncer interface {
	Sync(ctx context.Context, addresses []common.Address, now time.Time) error
}

type activeAddressLister interface {
	GetActive(ctx context.Context) ([]model.WatchedAddress, error)
}

// runSyncLoop syncs the active watched addresses every interval. A zero
// interval runs a single cycle and returns its error. In loop mode a failed
// cycle is logged and the loop keeps going; the pipeline's health tracker
// carries the failure.
func runSyncLoop(
	ctx context.Context,
	s syncer,
	lister activeAddressLister,
	interval, timeout time.Duration,
	logger *slog.Logger,
) error {
	cycle := func() error {
		cycleCtx, cancel := ctx, context.CancelFunc(func() {})
		if timeout > 0 {
			cycleCtx, cancel = context.WithTimeout(ctx, timeout)
		}
		defer cancel()

		addresses, err := activeAddresses(cycleCtx, lister, logger)
		if err != nil {
			return err
		}
		if len(addresses) == 0 {
			logger.Info("no active watched addresses; nothing to sync")
			return nil
		}
		return s.Sync(cycleCtx, addresses, time.Now())
	}

	if interval <= 0 {
		return cycle()
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if err := cycle(); err != nil && ctx.Err() == nil {
			logger.Warn("sync cycle failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func activeAddresses(ctx context.Context, lister activeAddressLister, logger *slog.Logger) ([]common.Address, error) {
	watched, err := lister.GetActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("get watched addresses: %w", err)
	}
	addresses := make([]common.Address, 0, len(watched))
	for _, w := range watched {
		if !common.IsHexAddress(w.Address) {
			logger.Warn("ignoring invalid watched address", "address", w.Address)
			continue
		}
		addresses = append(addresses, common.HexToAddress(w.Address))
	}
	return addresses, nil
}

// maskCredentials hides the userinfo part of a connection URL.
func maskCredentials(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	u.User = nil
	return strings.Replace(u.String(), "://", "://***@", 1)
}
