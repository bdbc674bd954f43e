package cin

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"threecorner/internal/logging"
	"threecorner/internal/metrics"
)

// handle is the process-wide slot for one table kind.
type handle struct {
	scheme  string
	table   *Table
	loading bool
	stale   bool
	restale bool // invalidated while loading; stale once the load lands
	err     error
	ready   chan struct{} // closed when the load for scheme finishes
}

// Registry loads tables in the background and hands them out by kind and
// scheme. Loads for the same kind and scheme are single-flighted.
type Registry struct {
	source  Source
	log     *logging.Logger
	metrics *metrics.IMEMetrics
	group   singleflight.Group

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	handles map[Kind]*handle
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *logging.Logger) Option {
	return func(r *Registry) { r.log = l }
}

// WithMetrics records load counts and durations.
func WithMetrics(m *metrics.IMEMetrics) Option {
	return func(r *Registry) { r.metrics = m }
}

// NewRegistry returns a registry with empty handles for every kind.
func NewRegistry(source Source, opts ...Option) *Registry {
	ctx, cancel := context.WithCancel(context.Background())
	r := &Registry{
		source:  source,
		ctx:     ctx,
		cancel:  cancel,
		handles: make(map[Kind]*handle, len(Kinds)),
	}
	for _, k := range Kinds {
		r.handles[k] = &handle{}
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logging.Default()
	}
	r.log = r.log.WithComponent("cin")
	return r
}

// Select makes scheme the selected scheme of kind, starting a background
// load unless the handle already holds (or is loading) a fresh copy of it.
// The returned channel is closed when that load completes.
func (r *Registry) Select(kind Kind, scheme string) <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := r.handles[kind]
	if h.scheme == scheme && !h.stale && h.err == nil && (h.loading || h.table != nil) {
		return h.ready
	}

	ready := make(chan struct{})
	h.scheme = scheme
	h.table = nil
	h.err = nil
	h.stale = false
	h.restale = false
	h.loading = true
	h.ready = ready

	go r.load(kind, scheme, ready)
	return ready
}

func (r *Registry) load(kind Kind, scheme string, ready chan struct{}) {
	defer close(ready)

	start := time.Now()
	v, err, shared := r.group.Do(kind.String()+"/"+scheme, func() (any, error) {
		return r.source.Load(r.ctx, kind, scheme)
	})
	elapsed := time.Since(start)
	if !shared {
		r.metrics.TableLoaded(elapsed, err)
	}

	r.mu.Lock()
	h := r.handles[kind]
	current := h.ready == ready
	codes := 0
	if current {
		h.loading = false
		h.stale, h.restale = h.restale, false
		if err != nil {
			h.err = err
		} else {
			h.table = v.(*Table)
			codes = h.table.Len()
		}
	}
	r.mu.Unlock()

	switch {
	case !current:
		r.log.Debug("discarded superseded table load", "kind", kind, "scheme", scheme)
	case err != nil:
		r.log.Warn("table load failed", "kind", kind, "scheme", scheme, "error", err)
	default:
		r.log.Info("table loaded", "kind", kind, "scheme", scheme,
			"codes", codes, "elapsed", elapsed)
	}
}

// Table returns the loaded table of kind without blocking. It returns
// ErrTableNotReady when the handle is loading, stale, or holds another
// scheme, and the load error (possibly wrapping ErrTableMissing) when the
// last load failed.
func (r *Registry) Table(kind Kind, scheme string) (*Table, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := r.handles[kind]
	if h.scheme != scheme || h.stale || h.loading {
		return nil, ErrTableNotReady
	}
	if h.err != nil {
		return nil, h.err
	}
	if h.table == nil {
		return nil, ErrTableNotReady
	}
	return h.table, nil
}

// Await selects scheme and blocks until its load finishes or ctx is done.
// A load that was superseded or invalidated before it finished is retried.
func (r *Registry) Await(ctx context.Context, kind Kind, scheme string) (*Table, error) {
	for {
		ready := r.Select(kind, scheme)
		select {
		case <-ready:
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %s/%s: %w", ErrTableNotReady, kind, scheme, ctx.Err())
		}
		t, err := r.Table(kind, scheme)
		if !errors.Is(err, ErrTableNotReady) {
			return t, err
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %s/%s: %w", ErrTableNotReady, kind, scheme, ctx.Err())
		}
	}
}

// Invalidate marks the handle of kind stale if it holds scheme, so the next
// Await reloads it. A load in flight is marked stale when it finishes.
func (r *Registry) Invalidate(kind Kind, scheme string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h := r.handles[kind]
	switch {
	case h.scheme != scheme:
	case h.loading:
		h.restale = true
	default:
		h.stale = true
	}
}

// InvalidateScheme invalidates every kind currently holding scheme.
func (r *Registry) InvalidateScheme(scheme string) {
	for _, k := range Kinds {
		r.Invalidate(k, scheme)
	}
}

// Loading reports whether a load is in flight for kind.
func (r *Registry) Loading(kind Kind) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handles[kind].loading
}

// Scheme returns the scheme currently selected for kind.
func (r *Registry) Scheme(kind Kind) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.handles[kind].scheme
}

// Close cancels in-flight loads.
func (r *Registry) Close() {
	r.cancel()
}
