package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/emperorhan/zklite-indexer/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	readinessTimeout = 2 * time.Second
	shutdownTimeout  = 5 * time.Second
)

type pinger interface {
	PingContext(ctx context.Context) error
}

// healthChecker backs /readyz: the database (and Redis, when progress
// publishing is on) must answer and the sync loop must not be unhealthy.
type healthChecker struct {
	db    pinger
	redis pinger // optional
	sync  *pipeline.SyncHealth
}

func (h *healthChecker) check(ctx context.Context) error {
	if h.db == nil {
		return errors.New("database not initialized")
	}
	ctx, cancel := context.WithTimeout(ctx, readinessTimeout)
	defer cancel()
	if err := h.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping: %w", err)
	}
	if h.redis != nil {
		if err := h.redis.PingContext(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	if h.sync != nil && !h.sync.Healthy() {
		snap := h.sync.Snapshot()
		return fmt.Errorf("sync unhealthy after %d consecutive failures: %s", snap.ConsecutiveFailures, snap.LastError)
	}
	return nil
}

type healthSnapshotter interface {
	Snapshot() pipeline.HealthSnapshot
}

func newHealthHandler(checker *healthChecker, health healthSnapshotter, logger *slog.Logger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(health.Snapshot()); err != nil {
			logger.Warn("failed to write health response", "error", err)
		}
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := checker.check(r.Context()); err != nil {
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func basicAuthMiddleware(realm, user, password string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), []byte(password)) != 1 {
			w.Header().Set("WWW-Authenticate", fmt.Sprintf("Basic realm=%q", realm))
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func serveHTTP(ctx context.Context, name string, port int, handler http.Handler, logger *slog.Logger) error {
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("http server shutdown error", "server", name, "error", err)
		}
	}()

	logger.Info("http server started", "server", name, "port", port)
	if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("%s server: %w", name, err)
	}
	return nil
}

type poolStatsReporter interface {
	ReportPoolStats()
}

func collectDBPoolStats(db poolStatsReporter) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("db pool stats collection panicked: %v", r)
		}
	}()
	if db == nil {
		return errors.New("db stats provider is nil")
	}
	db.ReportPoolStats()
	return nil
}

// startDBPoolStatsPump samples pool stats immediately and then every
// interval until ctx is done. A non-positive interval disables it.
func startDBPoolStatsPump(ctx context.Context, db poolStatsReporter, interval time.Duration, logger *slog.Logger) {
	if db == nil || interval <= 0 {
		return
	}

	collect := func() {
		if err := collectDBPoolStats(db); err != nil {
			logger.Warn("db pool stats collection failed", "error", err)
		}
	}
	collect()

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				collect()
			}
		}
	}()
}
