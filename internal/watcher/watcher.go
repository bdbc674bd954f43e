// Package watcher reloads code tables when their files change on disk.
package watcher

import (
	"crypto/sha256"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"threecorner/internal/logging"
)

const tableExt = ".json"

// Event describes a table file whose content changed.
type Event struct {
	Path      string
	Scheme    string
	Hash      [32]byte
	Size      int64
	Removed   bool
	Timestamp time.Time
}

// Invalidator drops cached tables of a scheme. *cin.Registry implements it.
type Invalidator interface {
	InvalidateScheme(scheme string)
}

// Watcher monitors a table directory and invalidates the schemes whose
// files settle with new content.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	dir       string
	interval  time.Duration
	target    Invalidator
	log       *logging.Logger

	// pending: path -> time of the last change
	// hashes: path -> content hash last seen
	stateMu sync.Mutex
	pending map[string]time.Time
	hashes  map[string][32]byte

	events chan Event
	errors chan error

	done chan struct{}
	wg   sync.WaitGroup
}

// New creates a watcher for dir. A file must be quiet for debounce before
// its scheme is invalidated.
func New(dir string, debounce time.Duration, target Invalidator, log *logging.Logger) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.Default()
	}

	return &Watcher{
		fsWatcher: fsWatcher,
		dir:       dir,
		interval:  debounce,
		target:    target,
		log:       log.WithComponent("watcher"),
		pending:   make(map[string]time.Time),
		hashes:    make(map[string][32]byte),
		events:    make(chan Event, 100),
		errors:    make(chan error, 10),
		done:      make(chan struct{}),
	}, nil
}

// Events returns the channel of table change events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Errors returns the channel of errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Start records the current table files and begins watching the directory.
func (w *Watcher) Start() error {
	absDir, err := filepath.Abs(w.dir)
	if err != nil {
		return err
	}
	w.dir = absDir

	if err := w.fsWatcher.Add(absDir); err != nil {
		return err
	}

	entries, err := os.ReadDir(absDir)
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if entry.IsDir() || !isTable(entry.Name()) {
			continue
		}
		path := filepath.Join(absDir, entry.Name())
		if hash, _, err := HashFile(path); err == nil {
			w.hashes[path] = hash
		}
	}

	w.wg.Add(2)
	go w.eventLoop()
	go w.debounceLoop()

	w.log.Info("watching tables", "dir", absDir, "tables", len(w.hashes))
	return nil
}

// Stop gracefully shuts down the watcher.
func (w *Watcher) Stop() error {
	close(w.done)
	w.wg.Wait()
	close(w.events)
	close(w.errors)
	return w.fsWatcher.Close()
}

func isTable(name string) bool {
	return strings.HasSuffix(name, tableExt) && !strings.HasPrefix(name, ".")
}

// SchemeOf returns the scheme a table file holds.
func SchemeOf(path string) string {
	return strings.TrimSuffix(filepath.Base(path), tableExt)
}

func (w *Watcher) eventLoop() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !isTable(filepath.Base(event.Name)) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
				continue
			}

			w.stateMu.Lock()
			w.pending[event.Name] = time.Now()
			w.stateMu.Unlock()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.sendErr(err)
		}
	}
}

func (w *Watcher) debounceLoop() {
	defer w.wg.Done()

	tick := w.interval / 2
	if tick < 10*time.Millisecond {
		tick = 10 * time.Millisecond
	}
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case now := <-ticker.C:
			w.checkStableFiles(now)
		}
	}
}

type stableFile struct {
	path    string
	lastMod time.Time
}

// checkStableFiles hashes the files that have been quiet for the debounce
// interval and invalidates those whose content changed. The lock is not
// held while hashing.
func (w *Watcher) checkStableFiles(now time.Time) {
	threshold := now.Add(-w.interval)

	var stable []stableFile
	w.stateMu.Lock()
	for path, lastMod := range w.pending {
		if !lastMod.After(threshold) {
			stable = append(stable, stableFile{path: path, lastMod: lastMod})
		}
	}
	w.stateMu.Unlock()

	for _, sf := range stable {
		hash, size, err := HashFile(sf.path)
		removed := errors.Is(err, fs.ErrNotExist)
		if err != nil && !removed {
			w.sendErr(err)
		}

		w.stateMu.Lock()
		if w.pending[sf.path] != sf.lastMod {
			// changed again while hashing
			w.stateMu.Unlock()
			continue
		}
		delete(w.pending, sf.path)

		old, known := w.hashes[sf.path]
		changed := false
		switch {
		case err != nil && !removed:
		case removed:
			changed = known
			delete(w.hashes, sf.path)
		default:
			changed = !known || old != hash
			w.hashes[sf.path] = hash
		}
		w.stateMu.Unlock()

		if !changed {
			continue
		}
		w.emit(Event{
			Path:      sf.path,
			Scheme:    SchemeOf(sf.path),
			Hash:      hash,
			Size:      size,
			Removed:   removed,
			Timestamp: now,
		})
	}
}

func (w *Watcher) emit(ev Event) {
	if w.target != nil {
		w.target.InvalidateScheme(ev.Scheme)
	}
	w.log.Info("table changed", "scheme", ev.Scheme, "size", ev.Size, "removed", ev.Removed)

	select {
	case w.events <- ev:
	default:
		w.log.Debug("event channel full", "scheme", ev.Scheme)
	}
}

func (w *Watcher) sendErr(err error) {
	select {
	case w.errors <- err:
	default:
	}
}

// HashFile computes the SHA-256 hash of a file.
func HashFile(path string) ([32]byte, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return [32]byte{}, 0, err
	}
	defer f.Close()

	h := sha256.New()
	size, err := io.Copy(h, f)
	if err != nil {
		return [32]byte{}, 0, err
	}

	var hash [32]byte
	copy(hash[:], h.Sum(nil))
	return hash, size, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// TrackedTables returns the number of table files with a known hash.
func (w *Watcher) TrackedTables() int {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	return len(w.hashes)
}
