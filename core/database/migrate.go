package database

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/m3rciful/menubot/core/logger"
	"github.com/m3rciful/menubot/migrations"
)

const previewFiles = 6

// RunMigrations brings the schema for cfg.Driver up to date. The memory
// driver has no schema and is a no-op.
func RunMigrations(cfg Config) error {
	if !cfg.Enabled() {
		return nil
	}
	if err := ensureDir(cfg); err != nil {
		return fmt.Errorf("prepare sqlite path: %w", err)
	}
	if cfg.Driver == DriverPostgres {
		if err := WaitForPostgres(cfg.DataSource(), 30*time.Second); err != nil {
			migrateFailed("db not ready", err)
			return fmt.Errorf("database not ready: %w", err)
		}
	}

	fsys, origin, err := schemaFS(cfg)
	if err != nil {
		migrateFailed("migrations source failed", err)
		return err
	}
	files, _ := fs.Glob(fsys, "*.up.sql")
	logFiles(slog.LevelDebug, "migrations resolved", files,
		slog.String("event", "resolve"),
		slog.String("driver", cfg.Driver),
		slog.String("source", origin),
	)

	src, err := iofs.New(fsys, ".")
	if err != nil {
		migrateFailed("migrations source failed", err)
		return fmt.Errorf("open migrations: %w", err)
	}
	m, err := migrate.NewWithSourceInstance("iofs", src, cfg.MigrateURL())
	if err != nil {
		migrateFailed("init failed", err)
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}
	defer m.Close()

	from, _, _ := m.Version()
	start := time.Now()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		migrateFailed("migration failed", err)
		return fmt.Errorf("migration execution failed: %w", err)
	}
	to, _, _ := m.Version()

	applied := appliedBetween(files, uint64(from), uint64(to))
	if len(applied) > 0 {
		logFiles(slog.LevelDebug, "applied files", applied, slog.String("event", "apply"))
	}
	logger.MIG.LogAttrs(logger.Background(), slog.LevelInfo, "migrations summary",
		slog.String("event", "summary"),
		slog.String("driver", cfg.Driver),
		slog.Uint64("from_ver", uint64(from)),
		slog.Uint64("to_ver", uint64(to)),
		slog.Int("files", len(applied)),
		slog.Duration("duration", time.Since(start)),
	)
	return nil
}

// schemaFS returns the migrations for cfg.Driver: the MigrationsDir override
// when set, the embedded copy otherwise.
func schemaFS(cfg Config) (fs.FS, string, error) {
	if cfg.MigrationsDir == "" {
		sub, err := fs.Sub(migrations.FS, cfg.Driver)
		if err != nil {
			return nil, "", fmt.Errorf("embedded migrations for %s: %w", cfg.Driver, err)
		}
		return sub, "embedded", nil
	}
	dir, err := filepath.Abs(filepath.Join(cfg.MigrationsDir, cfg.Driver))
	if err != nil {
		return nil, "", fmt.Errorf("resolve migrations path: %w", err)
	}
	if _, err := os.Stat(dir); err != nil {
		return nil, "", fmt.Errorf("migrations dir: %w", err)
	}
	return os.DirFS(dir), dir, nil
}

func migrateFailed(msg string, err error) {
	logger.MIG.LogAttrs(logger.Background(), slog.LevelError, msg,
		slog.String("event", "db.migrate"),
		slog.String("status", "fail"),
		slog.String("err", logger.SanitizeLimit(err.Error(), 256)),
	)
}

func logFiles(level slog.Level, msg string, files []string, attrs ...slog.Attr) {
	preview, truncated := logger.SummarizeStrings(files, previewFiles)
	attrs = append(attrs, slog.Int("files_total", len(files)))
	if preview != "" {
		attrs = append(attrs, slog.String("files_preview", preview))
	}
	if truncated {
		attrs = append(attrs, slog.Bool("files_truncated", true))
	}
	logger.MIG.LogAttrs(logger.Background(), level, msg, attrs...)
}

// appliedBetween lists the files with versions in (from, to].
func appliedBetween(files []string, from, to uint64) []string {
	var out []string
	for _, f := range files {
		prefix, _, _ := strings.Cut(f, "_")
		v, err := strconv.ParseUint(prefix, 10, 64)
		if err == nil && v > from && v <= to {
			out = append(out, f)
		}
	}
	return out
}
