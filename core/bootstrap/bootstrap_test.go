package bootstrap

import (
	"errors"
	"testing"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/menubot/core/config"
	coredatabase "github.com/m3rciful/menubot/core/database"
)

func noLogger(*coreconfig.Config) error { return nil }

func TestRunMemorySkipsDatabase(t *testing.T) {
	res, err := Run(Options{
		Config:     &coreconfig.Config{},
		LoggerInit: noLogger,
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			t.Fatal("connect called for memory driver")
			return nil, nil
		},
		Migrate: func(coredatabase.Config) error {
			t.Fatal("migrate called for memory driver")
			return nil
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if res.DB != nil {
		t.Fatal("expected no database")
	}
	if err := res.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestRunMigratesBeforeConnect(t *testing.T) {
	var steps []string
	boom := errors.New("boom")
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{Driver: "sqlite", Path: t.TempDir() + "/x.db"},
		LoggerInit: noLogger,
		Migrate: func(cfg coredatabase.Config) error {
			steps = append(steps, "migrate:"+cfg.Driver)
			return nil
		},
		Connect: func(coredatabase.Config) (*sqlx.DB, error) {
			steps = append(steps, "connect")
			return nil, boom
		},
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v", err)
	}
	if len(steps) != 2 || steps[0] != "migrate:sqlite" || steps[1] != "connect" {
		t.Fatalf("steps = %v", steps)
	}
}

func TestRunRejectsNilConfigAndBadDriver(t *testing.T) {
	if _, err := Run(Options{}); err == nil {
		t.Fatal("nil config accepted")
	}
	_, err := Run(Options{
		Config:     &coreconfig.Config{},
		Database:   coredatabase.Config{Driver: "oracle"},
		LoggerInit: noLogger,
	})
	if err == nil {
		t.Fatal("bad driver accepted")
	}
}
