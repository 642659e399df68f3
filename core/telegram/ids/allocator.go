// Package ids assigns short, stable numeric identifiers to screen type names.
//
// Identifiers are what transition buttons carry in their callback data, so an
// identifier handed out once must resolve to the same name after a restart.
// The name → id table only ever grows.
package ids

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/m3rciful/menubot/core/logger"
)

// Store persists the identifier table.
type Store interface {
	Load(ctx context.Context) (map[string]int, error)
	Save(ctx context.Context, table map[string]int) error
}

// Allocator hands out identifiers for screen type names.
// It is safe for concurrent use.
type Allocator struct {
	store Store

	mu       sync.Mutex
	loaded   bool
	table    map[string]int
	high     int
	degraded bool
}

// NewAllocator returns an allocator backed by store. A nil store keeps the
// table in memory only.
func NewAllocator(store Store) *Allocator {
	return &Allocator{store: store}
}

// IDFor returns the identifier for name, allocating and persisting a new one
// when the name has not been seen before. Empty names map to 0.
func (a *Allocator) IDFor(ctx context.Context, name string) int {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.loadLocked(ctx)
	if id, ok := a.table[name]; ok {
		return id
	}

	a.high++
	id := a.high
	a.table[name] = id

	if a.store != nil {
		if err := a.store.Save(ctx, a.snapshotLocked()); err != nil {
			a.degraded = true
			logger.IDS.LogAttrs(ctx, slog.LevelError, "ids.persist",
				slog.String("status", "fail"),
				slog.String("screen", name),
				slog.Int("screen_id", id),
				slog.String("err", err.Error()),
			)
			return id
		}
	}
	logger.IDS.LogAttrs(ctx, slog.LevelInfo, "ids.allocate",
		slog.String("status", "ok"),
		slog.String("screen", name),
		slog.Int("screen_id", id),
	)
	return id
}

// Lookup returns the identifier for name without allocating.
func (a *Allocator) Lookup(ctx context.Context, name string) (int, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loadLocked(ctx)
	id, ok := a.table[strings.TrimSpace(name)]
	return id, ok
}

// NameOf is the reverse lookup, mostly useful for logs.
func (a *Allocator) NameOf(id int) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for name, v := range a.table {
		if v == id {
			return name, true
		}
	}
	return "", false
}

// Degraded reports whether an allocation could not be persisted.
// Identifiers already served stay valid for the process lifetime.
func (a *Allocator) Degraded() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.degraded
}

// Snapshot returns a copy of the in-memory table.
func (a *Allocator) Snapshot() map[string]int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snapshotLocked()
}

// Names returns the known names ordered by identifier.
func (a *Allocator) Names() []string {
	snap := a.Snapshot()
	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool { return snap[names[i]] < snap[names[j]] })
	return names
}

func (a *Allocator) loadLocked(ctx context.Context) {
	if a.loaded {
		return
	}
	a.loaded = true
	a.table = make(map[string]int)
	if a.store == nil {
		return
	}

	table, err := a.store.Load(ctx)
	if err != nil {
		logger.IDS.LogAttrs(ctx, slog.LevelWarn, "ids.load",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
	}
	for name, id := range table {
		name = strings.TrimSpace(name)
		if name == "" || id <= 0 {
			continue
		}
		a.table[name] = id
		if id > a.high {
			a.high = id
		}
	}
	logger.IDS.LogAttrs(ctx, slog.LevelDebug, "ids.load",
		slog.String("status", "ok"),
		slog.Int("count", len(a.table)),
		slog.Int("high", a.high),
	)
}

func (a *Allocator) snapshotLocked() map[string]int {
	out := make(map[string]int, len(a.table))
	for k, v := range a.table {
		out[k] = v
	}
	return out
}
