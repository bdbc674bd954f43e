// Package service assembles the pieces an input method process needs: the
// table registry, the user store, output conversion, metrics and the
// configuration and table watchers. Hosts obtain engines from it.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"threecorner/internal/cin"
	"threecorner/internal/config"
	"threecorner/internal/convert"
	"threecorner/internal/health"
	"threecorner/internal/ime"
	"threecorner/internal/logging"
	"threecorner/internal/metrics"
	"threecorner/internal/store"
	"threecorner/internal/watcher"
)

const pruneInterval = time.Hour

// Service owns the shared state behind every engine of a process.
type Service struct {
	log *logging.Logger

	cfgMu sync.RWMutex
	cfg   *config.Config

	loader    *config.Loader
	source    cin.Source
	registry  *cin.Registry
	store     *store.Store
	ownsStore bool
	conv      *convert.Simplified

	metricsReg *metrics.Registry
	metrics    *metrics.IMEMetrics
	httpSrv    *http.Server
	health     *health.Checker

	watcher *watcher.Watcher

	mu      sync.Mutex
	engines map[*ime.Engine]struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *logging.Logger) Option {
	return func(s *Service) { s.log = l }
}

// WithLoader subscribes the service to configuration reloads.
func WithLoader(l *config.Loader) Option {
	return func(s *Service) { s.loader = l }
}

// WithStore uses st instead of opening the configured database. The caller
// keeps ownership.
func WithStore(st *store.Store) Option {
	return func(s *Service) { s.store = st }
}

// WithSource replaces the table directory as the table source.
func WithSource(src cin.Source) Option {
	return func(s *Service) { s.source = src }
}

// New builds a service from cfg. Nothing runs in the background until
// Start.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Service{
		cfg:        cfg,
		metricsReg: metrics.NewRegistry("threecorner"),
		conv:       convert.NewSimplified(),
		engines:    make(map[*ime.Engine]struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logging.Default()
	}
	s.log = s.log.WithComponent("service")
	s.metrics = metrics.NewIMEMetrics(s.metricsReg)

	if s.store == nil && cfg.Storage.Path != "" {
		st, err := store.Open(cfg.Storage.Path)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("open store: %w", err)
		}
		s.store = st
		s.ownsStore = true
	}

	if s.source == nil {
		s.source = &cin.DirSource{Dir: cfg.Tables.Dir, Extend: PhraseExtension(ctx, s.store)}
	}
	s.registry = cin.NewRegistry(s.source,
		cin.WithLogger(s.log),
		cin.WithMetrics(s.metrics),
	)
	s.registerChecks()
	return s, nil
}

func (s *Service) registerChecks() {
	s.health = health.NewChecker()
	s.health.Register("tables", true, health.TableCheck(s.registry, cin.KindPrimary,
		func() string { return s.Config().Input.Scheme }))
	if _, ok := s.source.(*cin.DirSource); ok {
		s.health.Register("table_dir", true, health.DirCheck(func() string { return s.Config().Tables.Dir }))
	}
	if s.store != nil {
		s.health.Register("store", false, health.PingCheck(s.store.DB().PingContext))
	}
}

// Start launches the table watcher, the metrics endpoint, history pruning
// and configuration change handling, as configured.
func (s *Service) Start() error {
	cfg := s.Config()

	if _, ok := s.source.(*cin.DirSource); ok && cfg.Tables.Watch {
		w, err := watcher.New(cfg.Tables.Dir, cfg.TableDebounce(), s.registry, s.log)
		if err != nil {
			return fmt.Errorf("create table watcher: %w", err)
		}
		if err := w.Start(); err != nil {
			w.Stop()
			return fmt.Errorf("watch tables: %w", err)
		}
		s.watcher = w
		s.wg.Add(1)
		go s.drainWatcher(w)
	}

	if cfg.Metrics.Enabled {
		s.startMetrics(cfg.Metrics.Listen)
	}

	if s.store != nil && cfg.Storage.HistoryDays > 0 {
		s.wg.Add(1)
		go s.pruneLoop()
	}

	if s.loader != nil {
		s.loader.OnChange(s.checkConfigChange)
	}

	s.log.Info("service started",
		"scheme", cfg.Input.Scheme,
		"tables", cfg.Tables.Dir,
		"store", s.store != nil,
		"metrics", cfg.Metrics.Enabled,
	)
	return nil
}

// Close stops background work and releases the store and the registry.
func (s *Service) Close() error {
	s.cancel()

	var errs []error
	if s.httpSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		errs = append(errs, s.httpSrv.Shutdown(ctx))
		cancel()
	}
	if s.watcher != nil {
		errs = append(errs, s.watcher.Stop())
	}
	s.wg.Wait()

	s.mu.Lock()
	for e := range s.engines {
		e.Deactivate()
	}
	s.engines = make(map[*ime.Engine]struct{})
	s.mu.Unlock()

	s.registry.Close()
	if s.ownsStore {
		errs = append(errs, s.store.Close())
	}
	return errors.Join(errs...)
}

// NewEngine returns an activated engine driving host.
func (s *Service) NewEngine(host ime.Host, opts ...ime.Option) *ime.Engine {
	base := []ime.Option{
		ime.WithLogger(s.log),
		ime.WithMetrics(s.metrics),
		ime.WithConverter(s.conv),
		ime.WithWidener(convert.FullShape),
		ime.WithRecorder(s.recordCommit),
	}
	e := ime.NewEngine(host, s.registry, Settings(s.Config()), append(base, opts...)...)

	s.mu.Lock()
	s.engines[e] = struct{}{}
	s.mu.Unlock()

	e.Activate()
	return e
}

// Release deactivates e and forgets it.
func (s *Service) Release(e *ime.Engine) {
	s.mu.Lock()
	_, ok := s.engines[e]
	delete(s.engines, e)
	s.mu.Unlock()

	if ok {
		e.Deactivate()
	}
}

// Settings converts a configuration into engine settings.
func Settings(cfg *config.Config) ime.Settings {
	strategy := ime.DirectCommit
	if cfg.Input.CompositionBufferMode {
		strategy = ime.BufferCommit
	}
	return ime.Settings{
		Scheme:            cfg.Input.Scheme,
		ReverseScheme:     cfg.Input.ReverseScheme,
		HomophoneScheme:   cfg.Input.HomophoneScheme,
		PhraseScheme:      cfg.Input.PhraseScheme,
		MaxCharLength:     cfg.Input.MaxCharLength,
		SelKeys:           cfg.Input.SelectionKeys,
		CandidatesPerPage: cfg.Input.CandidatesPerPage,
		Strategy:          strategy,
		MenuKey:           cfg.MenuRune(),
		LoadTimeout:       cfg.LoadTimeout(),
		MessageDuration:   cfg.MessageDuration(),
		ShowPhrase:        cfg.Features.ShowPhrase,
		ReverseLookup:     cfg.Features.ReverseLookup,
		HomophoneQuery:    cfg.Features.HomophoneQuery,
		SimplifiedOutput:  cfg.Features.SimplifiedOutput,
	}
}

// checkConfigChange pushes a reloaded configuration to every engine.
func (s *Service) checkConfigChange(old, cfg *config.Config) {
	s.cfgMu.Lock()
	s.cfg = cfg
	s.cfgMu.Unlock()

	if old != nil && old.Tables.Dir != cfg.Tables.Dir {
		s.log.Warn("table directory change takes effect after restart",
			"old", old.Tables.Dir, "new", cfg.Tables.Dir)
	}

	settings := Settings(cfg)
	s.mu.Lock()
	engines := make([]*ime.Engine, 0, len(s.engines))
	for e := range s.engines {
		engines = append(engines, e)
	}
	s.mu.Unlock()

	for _, e := range engines {
		e.ApplySettings(settings)
	}
	s.log.Info("configuration applied", "scheme", settings.Scheme, "engines", len(engines))
}

// PhraseExtension returns the extension merging the user phrases of st
// into primary tables.
func PhraseExtension(ctx context.Context, st *store.Store) cin.ExtensionFunc {
	return func(kind cin.Kind, scheme string) ([]cin.Entry, error) {
		if kind != cin.KindPrimary || st == nil {
			return nil, nil
		}
		phrases, err := st.Phrases(ctx, scheme)
		if err != nil {
			return nil, err
		}
		entries := make([]cin.Entry, len(phrases))
		for i, p := range phrases {
			entries[i] = cin.Entry{Code: p.Code, Value: p.Value, Priority: p.Priority}
		}
		return entries, nil
	}
}

func (s *Service) recordCommit(ctx context.Context, ev ime.CommitEvent) {
	if s.store == nil || !s.Config().Storage.RecordCommits {
		return
	}
	err := s.store.RecordCommit(ctx, store.Commit{
		Scheme:     ev.Scheme,
		Code:       ev.Code,
		Text:       ev.Text,
		Wildcard:   ev.Wildcard,
		Homophone:  ev.Homophone,
		Simplified: ev.Simplified,
		Auto:       ev.Auto,
		At:         time.Now(),
	})
	if err != nil {
		s.log.Warn("record commit failed", "scheme", ev.Scheme, "error", err)
	}
}

// AddPhrase stores a user phrase and reloads its scheme.
func (s *Service) AddPhrase(ctx context.Context, p store.Phrase) (int64, error) {
	if s.store == nil {
		return 0, errNoStore
	}
	id, err := s.store.AddPhrase(ctx, p)
	if err != nil {
		return 0, err
	}
	s.registry.InvalidateScheme(p.Scheme)
	return id, nil
}

// DeletePhrase removes a user phrase of scheme and reloads the scheme.
func (s *Service) DeletePhrase(ctx context.Context, scheme string, id int64) error {
	if s.store == nil {
		return errNoStore
	}
	if err := s.store.DeletePhrase(ctx, id); err != nil {
		return err
	}
	s.registry.InvalidateScheme(scheme)
	return nil
}

var errNoStore = errors.New("service: storage is disabled")

func (s *Service) drainWatcher(w *watcher.Watcher) {
	defer s.wg.Done()
	for {
		select {
		case <-s.ctx.Done():
			return
		case ev, ok := <-w.Events():
			if !ok {
				return
			}
			s.log.Debug("table invalidated", "scheme", ev.Scheme, "removed", ev.Removed)
		case err, ok := <-w.Errors():
			if !ok {
				return
			}
			s.log.Warn("table watcher error", "error", err)
		}
	}
}

func (s *Service) startMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", s.metricsReg.HTTPHandler())
	mux.Handle("/healthz", s.health.Handler())
	s.httpSrv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("metrics server failed", "addr", addr, "error", err)
		}
	}()
	s.log.Info("metrics listening", "addr", addr)
}

func (s *Service) pruneLoop() {
	defer s.wg.Done()

	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		s.pruneHistory()
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Service) pruneHistory() {
	days := s.Config().Storage.HistoryDays
	if days <= 0 {
		return
	}
	before := time.Now().AddDate(0, 0, -days)
	n, err := s.store.PruneCommits(s.ctx, before)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			s.log.Warn("prune history failed", "error", err)
		}
		return
	}
	if n > 0 {
		s.log.Info("pruned commit history", "rows", n, "before", before)
	}
}

// Config returns the configuration in effect.
func (s *Service) Config() *config.Config {
	s.cfgMu.RLock()
	defer s.cfgMu.RUnlock()
	return s.cfg
}

// Registry returns the shared table registry.
func (s *Service) Registry() *cin.Registry { return s.registry }

// Store returns the user store, or nil when storage is disabled.
func (s *Service) Store() *store.Store { return s.store }

// Health returns the process health checker.
func (s *Service) Health() *health.Checker { return s.health }

// Metrics returns the metrics registry.
func (s *Service) Metrics() *metrics.Registry { return s.metricsReg }
