package ids

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

type failingStore struct {
	mu    sync.Mutex
	saves int
}

func (s *failingStore) Load(context.Context) (map[string]int, error) {
	return map[string]int{"MainMenu": 4}, nil
}

func (s *failingStore) Save(context.Context, map[string]int) error {
	s.mu.Lock()
	s.saves++
	s.mu.Unlock()
	return errors.New("disk full")
}

type countingStore struct {
	FileStore
	loads int
}

func (s *countingStore) Load(ctx context.Context) (map[string]int, error) {
	s.loads++
	return s.FileStore.Load(ctx)
}

func TestAllocatorStableAcrossRestarts(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "screen_ids.json")

	first := NewAllocator(NewFileStore(path))
	if id := first.IDFor(ctx, "A"); id != 1 {
		t.Fatalf("A = %d, want 1", id)
	}
	if id := first.IDFor(ctx, "B"); id != 2 {
		t.Fatalf("B = %d, want 2", id)
	}

	second := NewAllocator(NewFileStore(path))
	if id := second.IDFor(ctx, "C"); id != 3 {
		t.Fatalf("C = %d, want 3", id)
	}
	if id := second.IDFor(ctx, "A"); id != 1 {
		t.Fatalf("A changed after restart: %d", id)
	}
	if id := second.IDFor(ctx, "B"); id != 2 {
		t.Fatalf("B changed after restart: %d", id)
	}
}

func TestAllocatorStabilityProperty(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 50
	properties := gopter.NewProperties(parameters)

	properties.Property("a name keeps its id across any number of restarts", prop.ForAll(
		func(names []string, restarts int) bool {
			dir, err := os.MkdirTemp("", "ids")
			if err != nil {
				return false
			}
			defer os.RemoveAll(dir)
			path := filepath.Join(dir, "ids.json")
			ctx := context.Background()

			seen := make(map[string]int)
			for run := 0; run <= restarts; run++ {
				alloc := NewAllocator(NewFileStore(path))
				for _, n := range names {
					id := alloc.IDFor(ctx, n)
					if prev, ok := seen[n]; ok && prev != id {
						return false
					}
					seen[n] = id
				}
			}
			used := make(map[int]string)
			for n, id := range seen {
				if other, dup := used[id]; dup && other != n {
					return false
				}
				used[id] = n
			}
			return true
		},
		gen.SliceOf(gen.RegexMatch("[A-Z][a-z]{0,6}")),
		gen.IntRange(1, 3),
	))

	properties.TestingRun(t)
}

func TestAllocatorCachesWithinProcess(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{FileStore: FileStore{Path: filepath.Join(t.TempDir(), "ids.json")}}
	alloc := NewAllocator(store)
	for i := 0; i < 5; i++ {
		if id := alloc.IDFor(ctx, "Settings"); id != 1 {
			t.Fatalf("Settings = %d, want 1", id)
		}
	}
	if store.loads != 1 {
		t.Fatalf("store loaded %d times, want 1", store.loads)
	}
}

func TestAllocatorCorruptFileStartsEmpty(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ids.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	alloc := NewAllocator(NewFileStore(path))
	if id := alloc.IDFor(ctx, "MainMenu"); id != 1 {
		t.Fatalf("MainMenu = %d, want 1", id)
	}
	if alloc.Degraded() {
		t.Fatal("save after corrupt load should succeed")
	}
}

func TestAllocatorHighWaterMarkFromExistingTable(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ids.json")
	if err := os.WriteFile(path, []byte(`{"MainMenu": 7, "Settings": 3}`), 0o644); err != nil {
		t.Fatal(err)
	}
	alloc := NewAllocator(NewFileStore(path))
	if id := alloc.IDFor(ctx, "Wallet"); id != 8 {
		t.Fatalf("Wallet = %d, want 8", id)
	}
	if id, ok := alloc.Lookup(ctx, "Settings"); !ok || id != 3 {
		t.Fatalf("Settings lookup = %d,%v", id, ok)
	}
	if name, ok := alloc.NameOf(7); !ok || name != "MainMenu" {
		t.Fatalf("NameOf(7) = %q,%v", name, ok)
	}
}

func TestAllocatorDegradedModeKeepsServedIDs(t *testing.T) {
	ctx := context.Background()
	store := &failingStore{}
	alloc := NewAllocator(store)

	if id := alloc.IDFor(ctx, "MainMenu"); id != 4 {
		t.Fatalf("MainMenu = %d, want persisted 4", id)
	}
	id := alloc.IDFor(ctx, "Settings")
	if id != 5 {
		t.Fatalf("Settings = %d, want 5", id)
	}
	if !alloc.Degraded() {
		t.Fatal("expected degraded mode after failed save")
	}
	if again := alloc.IDFor(ctx, "Settings"); again != id {
		t.Fatalf("Settings changed in degraded mode: %d -> %d", id, again)
	}
	if alloc.IDFor(ctx, "MainMenu") != 4 {
		t.Fatal("previously served id changed")
	}
	if store.saves != 1 {
		t.Fatalf("saves = %d, want 1", store.saves)
	}
}

func TestAllocatorConcurrentNewNames(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "ids.json")
	alloc := NewAllocator(NewFileStore(path))

	const n = 40
	got := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			got[i] = alloc.IDFor(ctx, fmt.Sprintf("Screen%02d", i))
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool, n)
	for i, id := range got {
		if id < 1 || id > n {
			t.Fatalf("Screen%02d got out-of-range id %d", i, id)
		}
		if seen[id] {
			t.Fatalf("id %d handed out twice", id)
		}
		seen[id] = true
	}

	persisted, err := NewFileStore(path).Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(persisted) != n {
		t.Fatalf("persisted %d entries, want %d", len(persisted), n)
	}
	for i, id := range got {
		if persisted[fmt.Sprintf("Screen%02d", i)] != id {
			t.Fatalf("Screen%02d persisted as %d, served %d", i, persisted[fmt.Sprintf("Screen%02d", i)], id)
		}
	}
}

func TestAllocatorEmptyName(t *testing.T) {
	alloc := NewAllocator(nil)
	if id := alloc.IDFor(context.Background(), "  "); id != 0 {
		t.Fatalf("empty name = %d, want 0", id)
	}
	if len(alloc.Snapshot()) != 0 {
		t.Fatal("empty name must not be stored")
	}
}

func TestAllocatorNamesOrdered(t *testing.T) {
	ctx := context.Background()
	alloc := NewAllocator(nil)
	for _, n := range []string{"Menu", "Wallet", "Settings"} {
		alloc.IDFor(ctx, n)
	}
	if got := strings.Join(alloc.Names(), ","); got != "Menu,Wallet,Settings" {
		t.Fatalf("Names() = %s", got)
	}
}

func TestFileStoreYAML(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "ids.yaml")
	store := NewFileStore(path)
	if err := store.Save(ctx, map[string]int{"MainMenu": 1, "Settings": 2}); err != nil {
		t.Fatalf("save: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "MainMenu: 1") {
		t.Fatalf("expected yaml content, got %s", data)
	}
	table, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if table["Settings"] != 2 || len(table) != 2 {
		t.Fatalf("unexpected table %v", table)
	}
}

func TestFileStoreMissingAndEmpty(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	table, err := NewFileStore(filepath.Join(dir, "missing.json")).Load(ctx)
	if err != nil || len(table) != 0 {
		t.Fatalf("missing file: %v %v", table, err)
	}
	empty := filepath.Join(dir, "empty.json")
	if err := os.WriteFile(empty, []byte("  \n"), 0o644); err != nil {
		t.Fatal(err)
	}
	table, err = NewFileStore(empty).Load(ctx)
	if err != nil || len(table) != 0 {
		t.Fatalf("empty file: %v %v", table, err)
	}
}
