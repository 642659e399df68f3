package database

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/m3rciful/menubot/core/logger"
)

const (
	connectTimeout = 5 * time.Second
	readyPoll      = 2 * time.Second
)

// Connect opens and pings the database with a short timeout and sizes the
// pool. sqlite always gets a single connection.
func Connect(cfg Config) (*sqlx.DB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return ConnectContext(ctx, cfg)
}

func ConnectContext(ctx context.Context, cfg Config) (*sqlx.DB, error) {
	if !cfg.Enabled() {
		return nil, fmt.Errorf("db connect: driver %q has no connection", cfg.Driver)
	}
	if err := ensureDir(cfg); err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}

	start := time.Now()
	db, err := sqlx.ConnectContext(ctx, cfg.Driver, cfg.DataSource())
	took := logger.RoundMS(time.Since(start))
	if err != nil {
		logger.DB.LogAttrs(ctx, slog.LevelError, "db connect failed",
			append(target(cfg, "db.connect"), slog.Duration("duration", took), slog.String("err", err.Error()))...)
		return nil, fmt.Errorf("db connect: %w", err)
	}

	pool := poolSize(cfg)
	db.SetMaxOpenConns(pool)
	db.SetMaxIdleConns(pool)
	logger.DB.LogAttrs(ctx, slog.LevelInfo, "db connected",
		append(target(cfg, "db.connect"), slog.Int("pool_open", pool), slog.Duration("duration", took))...)
	return db, nil
}

func target(cfg Config, event string) []slog.Attr {
	return []slog.Attr{
		slog.String("event", event),
		slog.String("driver", cfg.Driver),
		slog.String("addr", cfg.Address()),
	}
}

func poolSize(cfg Config) int {
	if cfg.Driver == DriverSQLite || cfg.MaxConnections <= 0 {
		return 1
	}
	return cfg.MaxConnections
}

// ensureDir creates the parent directory of a sqlite file.
func ensureDir(cfg Config) error {
	if cfg.Driver != DriverSQLite {
		return nil
	}
	if dir := filepath.Dir(cfg.Path); dir != "." {
		return os.MkdirAll(dir, 0o755)
	}
	return nil
}

// WaitForPostgres pings dsn every couple of seconds until it answers or
// timeout passes.
func WaitForPostgres(dsn string, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	tick := time.NewTicker(readyPoll)
	defer tick.Stop()
	for attempt := 1; ; attempt++ {
		err := pingOnce(ctx, dsn)
		if err == nil {
			return nil
		}
		logger.DB.LogAttrs(ctx, slog.LevelDebug, "db not ready",
			slog.String("event", "db.wait"),
			slog.Int("attempt", attempt),
			slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout reached waiting for database: %w", err)
		case <-tick.C:
		}
	}
}

func pingOnce(ctx context.Context, dsn string) error {
	db, err := sqlx.Open(DriverPostgres, dsn)
	if err != nil {
		return err
	}
	defer db.Close()
	return db.PingContext(ctx)
}
