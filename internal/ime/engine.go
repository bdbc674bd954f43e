package ime

import (
	"context"
	"sync"
	"time"

	"threecorner/internal/cin"
	"threecorner/internal/logging"
	"threecorner/internal/metrics"
)

const (
	wildcardMarker = '*'
	wildcardLimit  = 9
	padCode        = '0'
	menuMarker     = '`'
	dayiMarker     = '='
)

// Tables is the table-loading service an engine reads code tables from.
// *cin.Registry implements it.
type Tables interface {
	Select(kind cin.Kind, scheme string) <-chan struct{}
	Table(kind cin.Kind, scheme string) (*cin.Table, error)
	Await(ctx context.Context, kind cin.Kind, scheme string) (*cin.Table, error)
}

// Converter rewrites committed text, e.g. traditional to simplified
// Chinese.
type Converter interface {
	Convert(s string) (string, error)
}

// CommitEvent describes one commit.
type CommitEvent struct {
	Scheme   string
	Code     string // raw codes that produced the commit
	Text     string // text sent to the host
	Original string // text before conversion

	Wildcard      bool
	ReverseLookup bool
	Homophone     bool
	Simplified    bool
	Auto          bool // committed without a selection
}

// CommitRecorder receives every commit. It is called synchronously on the
// key path.
type CommitRecorder func(ctx context.Context, ev CommitEvent)

// Settings configures an engine.
type Settings struct {
	Scheme          string
	ReverseScheme   string
	HomophoneScheme string
	PhraseScheme    string

	MaxCharLength     int
	SelKeys           string // empty: use the primary table's selection keys
	CandidatesPerPage int
	Strategy          Strategy
	MenuKey           rune

	LoadTimeout     time.Duration
	MessageDuration time.Duration

	ShowPhrase       bool
	ReverseLookup    bool
	HomophoneQuery   bool
	SimplifiedOutput bool
}

// DefaultSettings returns the settings of the threecorner scheme.
func DefaultSettings() Settings {
	return Settings{
		Scheme:            "threecorner",
		HomophoneScheme:   "bopomofo",
		PhraseScheme:      "phrase",
		MaxCharLength:     6,
		CandidatesPerPage: 9,
		Strategy:          DirectCommit,
		MenuKey:           '`',
		LoadTimeout:       5 * time.Second,
		MessageDuration:   3 * time.Second,
	}
}

func (s Settings) normalized() Settings {
	d := DefaultSettings()
	if s.Scheme == "" {
		s.Scheme = d.Scheme
	}
	if s.MaxCharLength <= 0 {
		s.MaxCharLength = d.MaxCharLength
	}
	if s.CandidatesPerPage <= 0 {
		s.CandidatesPerPage = d.CandidatesPerPage
	}
	if s.MenuKey == 0 {
		s.MenuKey = d.MenuKey
	}
	if s.LoadTimeout <= 0 {
		s.LoadTimeout = d.LoadTimeout
	}
	if s.MessageDuration <= 0 {
		s.MessageDuration = d.MessageDuration
	}
	return s
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *logging.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// WithMetrics records key, commit and lookup counts.
func WithMetrics(m *metrics.IMEMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithConverter sets the converter used for simplified output.
func WithConverter(c Converter) Option {
	return func(e *Engine) { e.conv = c }
}

// WithWidener sets the full-shape conversion used in English mode.
func WithWidener(f func(string) string) Option {
	return func(e *Engine) { e.widen = f }
}

// WithRecorder sets the commit recorder.
func WithRecorder(r CommitRecorder) Option {
	return func(e *Engine) { e.record = r }
}

// WithCatalog sets the user-visible strings. The default is detected from
// the environment locale.
func WithCatalog(c Catalog) Option {
	return func(e *Engine) { e.text = c; e.textSet = true }
}

// Engine is one input session's composition state machine. Methods are
// safe to call from multiple goroutines, but hosts are expected to deliver
// key events one at a time.
type Engine struct {
	mu sync.Mutex

	host     Host
	tables   Tables
	settings Settings

	log     *logging.Logger
	metrics *metrics.IMEMetrics
	conv    Converter
	widen   func(string) string
	record  CommitRecorder
	text    Catalog
	textSet bool

	modes Modes
	comp  composition
	buf   inline
	pager pager

	menu   []menuAction
	pinyin []string // raw pronunciations behind a HomophoneSelPinyin list

	wildcard  bool // the listed candidates came from a wildcard query
	homophone bool // the listed candidates are homophones
	deferred  string
	shiftTap  bool
	active    bool

	lastCommit string
}

// NewEngine returns an engine driving host with tables from tables.
func NewEngine(host Host, tables Tables, s Settings, opts ...Option) *Engine {
	e := &Engine{
		host:     host,
		tables:   tables,
		settings: s.normalized(),
		widen:    func(s string) string { return s },
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.log == nil {
		e.log = logging.Default()
	}
	e.log = e.log.WithComponent("ime")
	if !e.textSet {
		e.text = DetectCatalog()
	}
	e.modes.SetStrategy(e.settings.Strategy)
	e.pager = newPager(e.settings.SelKeys, e.settings.CandidatesPerPage)
	return e
}

// Activate starts loading the tables the settings need.
func (e *Engine) Activate() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.active {
		e.active = true
		e.metrics.EngineAttached(1)
	}
	e.selectTables()
}

// Deactivate drops the composition and flushes the inline buffer.
func (e *Engine) Deactivate() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.cancel()
	e.flushInline()
	if e.active {
		e.active = false
		e.metrics.EngineAttached(-1)
	}
}

// ApplySettings replaces the engine settings. A scheme or strategy change
// drops the current composition.
func (e *Engine) ApplySettings(s Settings) {
	e.mu.Lock()
	defer e.mu.Unlock()

	old := e.settings
	e.settings = s.normalized()
	e.pager.resize(e.settings.SelKeys, e.settings.CandidatesPerPage)

	if old.Scheme != e.settings.Scheme || old.Strategy != e.settings.Strategy ||
		old.MaxCharLength != e.settings.MaxCharLength {
		e.cancel()
	} else if e.pager.shown {
		e.host.ShowCandidates(e.pager.view())
	}
	if old.Strategy != e.settings.Strategy {
		e.flushInline()
		e.modes.SetStrategy(e.settings.Strategy)
	}
	e.selectTables()
	e.log.Debug("settings applied", "scheme", e.settings.Scheme, "modes", e.modes)
}

func (e *Engine) selectTables() {
	e.tables.Select(cin.KindPrimary, e.settings.Scheme)
	if e.settings.ReverseLookup && e.settings.ReverseScheme != "" {
		e.tables.Select(cin.KindReverse, e.settings.ReverseScheme)
	}
	if e.settings.HomophoneQuery && e.settings.HomophoneScheme != "" {
		e.tables.Select(cin.KindHomophone, e.settings.HomophoneScheme)
	}
	if e.settings.ShowPhrase && e.settings.PhraseScheme != "" {
		e.tables.Select(cin.KindPhrase, e.settings.PhraseScheme)
	}
}

// ProcessKey runs a key event through the filter and the state machine and
// reports whether the engine consumed it.
func (e *Engine) ProcessKey(ctx context.Context, k Key, up bool) (bool, error) {
	if up {
		return e.OnKeyUp(k), nil
	}

	e.mu.Lock()
	e.shiftTap = k.Code == VKShift && !k.Down(ModControl|ModAlt)
	e.mu.Unlock()

	if !e.FilterKeyDown(k) {
		return false, nil
	}
	return e.OnKeyDown(ctx, k)
}

// OnKeyDown processes a key the filter accepted.
func (e *Engine) OnKeyDown(ctx context.Context, k Key) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.metrics.Key()
	if k.Code != VKShift {
		e.shiftTap = false
	}

	if e.numpadCode(k) {
		return e.codeKey(ctx, k, k.NumpadCode(), k.Code == VKDecimal)
	}
	if e.enterCompletes(k) {
		return e.completeEnter(ctx)
	}
	return e.policyKey(ctx, k)
}

// OnKeyUp shows a message deferred to key release and toggles the language
// on a lone Shift tap.
func (e *Engine) OnKeyUp(k Key) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	handled := false
	if k.Code == VKShift && e.shiftTap {
		e.shiftTap = false
		e.toggleLanguage()
		handled = true
	}
	if e.deferred != "" {
		e.host.ShowMessage(e.deferred, e.settings.MessageDuration)
		e.deferred = ""
		handled = true
	}
	return handled
}

func (e *Engine) toggleLanguage() {
	e.cancel()
	e.modes.Clear(Phrase)
	if e.modes.Chinese() {
		e.modes.SetLanguage(English)
	} else {
		e.modes.SetLanguage(Chinese)
	}
	e.log.Debug("language toggled", "modes", e.modes)
}

// Modes returns the current modes.
func (e *Engine) Modes() Modes {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.modes
}

// Settings returns the current settings.
func (e *Engine) Settings() Settings {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.settings
}

// Codes returns the raw code sequence being composed.
func (e *Engine) Codes() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.comp.code()
}

// Composition returns the displayed composition.
func (e *Engine) Composition() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return string(e.comp.display)
}

// Inline returns the inline buffer text in BufferCommit strategy.
func (e *Engine) Inline() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buf.String()
}

// CandidateList returns the full candidate list, or nil when none is
// shown.
func (e *Engine) CandidateList() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.pager.shown {
		return nil
	}
	return append([]string(nil), e.pager.list...)
}

// LastCommit returns the last committed string before conversion.
func (e *Engine) LastCommit() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastCommit
}
