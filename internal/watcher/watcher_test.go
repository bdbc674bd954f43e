package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"threecorner/internal/logging"
)

type recorder struct {
	mu      sync.Mutex
	schemes []string
}

func (r *recorder) InvalidateScheme(scheme string) {
	r.mu.Lock()
	r.schemes = append(r.schemes, scheme)
	r.mu.Unlock()
}

func (r *recorder) got() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.schemes...)
}

func writeTable(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write table: %v", err)
	}
}

func TestHashFile(t *testing.T) {
	testFile := filepath.Join(t.TempDir(), "test.json")
	content := []byte(`{"name":"test"}`)
	if err := os.WriteFile(testFile, content, 0600); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	hash1, size1, err := HashFile(testFile)
	if err != nil {
		t.Fatalf("HashFile failed: %v", err)
	}
	if size1 != int64(len(content)) {
		t.Errorf("expected size %d, got %d", len(content), size1)
	}

	hash2, _, err := HashFile(testFile)
	if err != nil {
		t.Fatalf("second HashFile failed: %v", err)
	}
	if hash1 != hash2 {
		t.Error("same file should produce same hash")
	}

	if err := os.WriteFile(testFile, []byte(`{"name":"other"}`), 0600); err != nil {
		t.Fatalf("failed to modify test file: %v", err)
	}
	hash3, _, err := HashFile(testFile)
	if err != nil {
		t.Fatalf("third HashFile failed: %v", err)
	}
	if hash1 == hash3 {
		t.Error("different content should produce different hash")
	}
}

func TestHashFileNotFound(t *testing.T) {
	if _, _, err := HashFile("/nonexistent/file.json"); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestSchemeOf(t *testing.T) {
	if got := SchemeOf("/tables/threecorner.json"); got != "threecorner" {
		t.Errorf("expected threecorner, got %s", got)
	}
}

func TestWatcherStartTracksTables(t *testing.T) {
	dir := t.TempDir()
	writeTable(t, filepath.Join(dir, "threecorner.json"), "{}")
	writeTable(t, filepath.Join(dir, "notes.txt"), "ignored")

	w, err := New(dir, time.Second, nil, logging.Discard())
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	defer w.Stop()

	if w.TrackedTables() != 1 {
		t.Errorf("expected 1 tracked table, got %d", w.TrackedTables())
	}
}

func TestCheckStableFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "dayi.json")
	writeTable(t, path, "v1")

	rec := &recorder{}
	w, err := New(dir, time.Second, rec, logging.Discard())
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	defer w.fsWatcher.Close()

	hash, _, _ := HashFile(path)
	w.hashes[path] = hash
	start := time.Now()

	// same content: no invalidation
	w.pending[path] = start
	w.checkStableFiles(start.Add(2 * time.Second))
	if len(rec.got()) != 0 {
		t.Fatalf("unchanged content invalidated: %v", rec.got())
	}

	// not yet quiet
	writeTable(t, path, "v2")
	w.pending[path] = start
	w.checkStableFiles(start.Add(500 * time.Millisecond))
	if len(rec.got()) != 0 {
		t.Fatalf("invalidated before debounce: %v", rec.got())
	}

	w.checkStableFiles(start.Add(2 * time.Second))
	if got := rec.got(); len(got) != 1 || got[0] != "dayi" {
		t.Fatalf("expected dayi invalidated once, got %v", got)
	}
	ev := <-w.events
	if ev.Scheme != "dayi" || ev.Size != 2 || ev.Removed {
		t.Errorf("unexpected event: %+v", ev)
	}

	// removal
	if err := os.Remove(path); err != nil {
		t.Fatalf("remove: %v", err)
	}
	w.pending[path] = start
	w.checkStableFiles(start.Add(2 * time.Second))
	if got := rec.got(); len(got) != 2 {
		t.Fatalf("expected removal to invalidate, got %v", got)
	}
	if ev := <-w.events; !ev.Removed {
		t.Errorf("expected removed event: %+v", ev)
	}
	if w.TrackedTables() != 0 {
		t.Errorf("removed table still tracked")
	}
}

func TestWatcherEvents(t *testing.T) {
	dir := t.TempDir()
	rec := &recorder{}

	w, err := New(dir, 100*time.Millisecond, rec, logging.Discard())
	if err != nil {
		t.Fatalf("failed to create watcher: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "cangjie.json")
	for i := 0; i < 3; i++ {
		writeTable(t, path, "v"+string(rune('0'+i)))
	}

	select {
	case ev := <-w.Events():
		if ev.Scheme != "cangjie" {
			t.Errorf("expected cangjie, got %s", ev.Scheme)
		}
		if ev.Size != 2 {
			t.Errorf("expected size 2, got %d", ev.Size)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("timeout waiting for event")
	}

	if got := rec.got(); len(got) == 0 || got[0] != "cangjie" {
		t.Errorf("expected cangjie invalidated, got %v", got)
	}
}
