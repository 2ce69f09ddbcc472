package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/emperorhan/zklite-indexer/internal/metrics"
	_ "github.com/lib/pq"
)

const (
	maxStatementTimeoutMS = 3_600_000

	// DefaultQueryTimeout bounds single reads outside a page transaction.
	DefaultQueryTimeout = 30 * time.Second

	// LongQueryTimeout bounds a single migration file.
	LongQueryTimeout = 5 * time.Minute

	defaultConnMaxIdleTime = 2 * time.Minute
	migrationLockTimeout   = "10s"
)

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, d)
}

// DB is the connection pool shared by every repository. It satisfies
// store.TxBeginner.
type DB struct {
	*sql.DB
	logger *slog.Logger
}

type Config struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	// StatementTimeoutMS is applied to every pooled session; 0 keeps the
	// server default.
	StatementTimeoutMS int
}

// New opens the pool and verifies the connection.
func New(ctx context.Context, cfg Config) (*DB, error) {
	if cfg.StatementTimeoutMS < 0 || cfg.StatementTimeoutMS > maxStatementTimeoutMS {
		return nil, fmt.Errorf("statement timeout %dms out of allowed range [0, %d]", cfg.StatementTimeoutMS, maxStatementTimeoutMS)
	}

	dsn := cfg.URL
	if cfg.StatementTimeoutMS > 0 {
		var err error
		if dsn, err = withStatementTimeout(dsn, cfg.StatementTimeoutMS); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	idle := cfg.ConnMaxIdleTime
	if idle <= 0 {
		idle = defaultConnMaxIdleTime
	}
	db.SetConnMaxIdleTime(idle)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}

	return &DB{DB: db, logger: slog.Default().With("component", "postgres")}, nil
}

// withStatementTimeout sets the session statement_timeout through the
// libpq "options" parameter, for both URL and key=value connection strings.
func withStatementTimeout(dsn string, timeoutMS int) (string, error) {
	option := fmt.Sprintf("-c statement_timeout=%d", timeoutMS)

	if !strings.HasPrefix(dsn, "postgres://") && !strings.HasPrefix(dsn, "postgresql://") {
		return strings.TrimSpace(dsn + fmt.Sprintf(" options='%s'", option)), nil
	}

	u, err := url.Parse(dsn)
	if err != nil {
		return "", fmt.Errorf("parse db url: %w", err)
	}
	q := u.Query()
	if existing := q.Get("options"); existing != "" {
		option = existing + " " + option
	}
	q.Set("options", option)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// ReportPoolStats publishes the connection pool gauges.
func (db *DB) ReportPoolStats() {
	stats := db.Stats()
	metrics.DBPoolOpen.Set(float64(stats.OpenConnections))
	metrics.DBPoolInUse.Set(float64(stats.InUse))
	metrics.DBPoolIdle.Set(float64(stats.Idle))
}

// RunMigrations applies the *.up.sql files of dir in lexical order. Applied
// files are recorded in schema_migrations and skipped on later runs.
func (db *DB) RunMigrations(ctx context.Context, dir string) error {
	if _, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    VARCHAR(255) PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.up.sql"))
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no migrations found in %s", dir)
	}
	slices.Sort(files)

	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return err
	}

	for _, f := range files {
		version := filepath.Base(f)
		if applied[version] {
			continue
		}

		content, err := os.ReadFile(f)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", version, err)
		}

		start := time.Now()
		if err := db.applyMigration(ctx, version, string(content)); err != nil {
			return err
		}
		db.logger.Info("migration applied", "version", version, "elapsed", time.Since(start))
	}
	return nil
}

func (db *DB) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := db.QueryContext(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, fmt.Errorf("list applied migrations: %w", err)
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var version string
		if err := rows.Scan(&version); err != nil {
			return nil, fmt.Errorf("scan applied migration: %w", err)
		}
		applied[version] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list applied migrations rows: %w", err)
	}
	return applied, nil
}

// applyMigration runs one file and records it in the same transaction, so a
// failed file is retried on the next start.
func (db *DB) applyMigration(ctx context.Context, version, content string) error {
	ctx, cancel := withTimeout(ctx, LongQueryTimeout)
	defer cancel()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration %s: %w", version, err)
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, "SET LOCAL lock_timeout = '"+migrationLockTimeout+"'"); err != nil {
		return fmt.Errorf("set lock_timeout for migration %s: %w", version, err)
	}
	if _, err := tx.ExecContext(ctx, content); err != nil {
		return fmt.Errorf("exec migration %s: %w", version, err)
	}
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO schema_migrations (version) VALUES ($1)", version,
	); err != nil {
		return fmt.Errorf("record migration %s: %w", version, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration %s: %w", version, err)
	}
	return nil
}
