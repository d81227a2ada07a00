package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/hyperjump/genomesearch/internal/workspace"
)

// recordingSink records reloads and removals.
type recordingSink struct {
	root     string
	mu       sync.Mutex
	reloaded []string
	removed  []string
}

func (s *recordingSink) Root() string { return s.root }

func (s *recordingSink) Reload(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reloaded = append(s.reloaded, filepath.Base(path))
	return nil
}

func (s *recordingSink) Remove(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, filepath.Base(path))
	return nil
}

func (s *recordingSink) snapshot() (reloaded, removed []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	reloaded = append([]string(nil), s.reloaded...)
	removed = append([]string(nil), s.removed...)
	sort.Strings(reloaded)
	return reloaded, removed
}

// eventually polls cond until it holds or the deadline passes.
func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func startWatcher(t *testing.T, sink ObjectSink) *Watcher {
	t.Helper()
	w := New(sink, WithDebounce(50*time.Millisecond))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		w.Stop()
	})
	if err := w.Start(ctx); err != nil {
		t.Fatal(err)
	}
	return w
}

func TestWatcher_DebouncesWritesAndFiltersFiles(t *testing.T) {
	root := t.TempDir()
	ws := filepath.Join(root, "ws")
	if err := os.MkdirAll(ws, 0755); err != nil {
		t.Fatal(err)
	}
	sink := &recordingSink{root: root}
	startWatcher(t, sink)

	path := filepath.Join(ws, "genome.json")
	for i := 0; i < 5; i++ {
		if err := os.WriteFile(path, []byte(`{"type":"KBaseGenomes.Genome","data":{}}`), 0600); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(ws, "notes.txt"), []byte("x"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "top.json"), []byte("{}"), 0600); err != nil {
		t.Fatal(err)
	}

	eventually(t, func() bool {
		reloaded, _ := sink.snapshot()
		return len(reloaded) >= 1
	})
	time.Sleep(150 * time.Millisecond)
	reloaded, _ := sink.snapshot()
	if len(reloaded) != 1 || reloaded[0] != "genome.json" {
		t.Errorf("expected one debounced reload of genome.json, got %v", reloaded)
	}
}

func TestWatcher_RemoveForwardsToSink(t *testing.T) {
	root := t.TempDir()
	ws := filepath.Join(root, "ws")
	if err := os.MkdirAll(ws, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(ws, "genome.json")
	if err := os.WriteFile(path, []byte("{}"), 0600); err != nil {
		t.Fatal(err)
	}
	sink := &recordingSink{root: root}
	startWatcher(t, sink)

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool {
		_, removed := sink.snapshot()
		return len(removed) == 1 && removed[0] == "genome.json"
	})
}

func TestWatcher_NewWorkspaceDirectory(t *testing.T) {
	root := t.TempDir()
	sink := &recordingSink{root: root}
	startWatcher(t, sink)

	ws := filepath.Join(root, "fresh")
	if err := os.MkdirAll(ws, 0755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"a.json", "b.json"} {
		if err := os.WriteFile(filepath.Join(ws, name), []byte("{}"), 0600); err != nil {
			t.Fatal(err)
		}
	}
	eventually(t, func() bool {
		reloaded, _ := sink.snapshot()
		return len(reloaded) == 2 && reloaded[0] == "a.json" && reloaded[1] == "b.json"
	})
}

func TestWatcher_ReloadsDirStore(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	ws := filepath.Join(root, "ws")
	if err := os.MkdirAll(ws, 0755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(ws, "g.json")
	write := func(id string) {
		t.Helper()
		body := `{"type":"KBaseGenomes.Genome-8.2","data":{"features":[{"id":"` + id + `"}]}}`
		if err := os.WriteFile(path, []byte(body), 0600); err != nil {
			t.Fatal(err)
		}
	}
	write("first")
	store, err := workspace.NewDirStore(root)
	if err != nil {
		t.Fatal(err)
	}
	startWatcher(t, store)

	write("second")
	eventually(t, func() bool {
		infos, err := store.GetObjectInfo(ctx, []string{"ws/g"})
		return err == nil && infos[0].Version == 2
	})

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	eventually(t, func() bool {
		_, err := store.GetObjectInfo(ctx, []string{"ws/g"})
		return err != nil
	})
}

func TestWatcher_StartCreatesMissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "objects", "root")
	startWatcher(t, &recordingSink{root: root})
	if _, err := os.Stat(root); err != nil {
		t.Errorf("root directory should exist after Start: %v", err)
	}
}

func TestIsObjectFile(t *testing.T) {
	w := New(&recordingSink{root: "/data/objects"})
	tests := []struct {
		path string
		want bool
	}{
		{"/data/objects/ws/g.json", true},
		{"/data/objects/ws/g.JSON", true},
		{"/data/objects/ws/g.txt", false},
		{"/data/objects/g.json", false},
		{"/data/objects/ws/sub/g.json", false},
		{"/data/other/ws/g.json", false},
	}
	for _, tt := range tests {
		if got := w.isObjectFile(tt.path); got != tt.want {
			t.Errorf("isObjectFile(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestInDir(t *testing.T) {
	tests := []struct {
		dir  string
		path string
		want bool
	}{
		{"/tmp/a", "/tmp/a", false},
		{"/tmp/a", "/tmp/a/b.json", true},
		{"/tmp/a", "/tmp/b", false},
		{"/tmp/a", "/tmp/a/../b", false},
	}
	for _, tt := range tests {
		if got := inDir(tt.dir, tt.path); got != tt.want {
			t.Errorf("inDir(%q, %q) = %v, want %v", tt.dir, tt.path, got, tt.want)
		}
	}
}
