package host

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"

	"threecorner/internal/ime"
	"threecorner/internal/logging"
)

// IBus D-Bus names.
const (
	IBusFactoryPath      = dbus.ObjectPath("/org/freedesktop/IBus/Factory")
	IBusFactoryInterface = "org.freedesktop.IBus.Factory"
	IBusEngineInterface  = "org.freedesktop.IBus.Engine"
	IBusServiceInterface = "org.freedesktop.IBus.Service"

	BusName       = "org.freedesktop.IBus.ThreeCorner"
	EngineName    = "threecorner"
	EngineVersion = "1.0.0"
)

// IBus client capability bits.
const (
	ibusCapPreeditText   uint32 = 1 << 0
	ibusCapAuxiliaryText uint32 = 1 << 1
	ibusCapLookupTable   uint32 = 1 << 2
)

const (
	preeditClear      uint32 = 0
	orientationSystem int32  = 2
)

const defaultMessageTime = 3 * time.Second

// Bus is the part of *dbus.Conn the IBus host uses.
type Bus interface {
	Export(v interface{}, path dbus.ObjectPath, iface string) error
	Emit(path dbus.ObjectPath, name string, values ...interface{}) error
}

// Engines creates and releases composition engines. *service.Service
// implements it.
type Engines interface {
	NewEngine(host ime.Host, opts ...ime.Option) *ime.Engine
	Release(e *ime.Engine)
}

// ibusText is the D-Bus form of IBusText: (sa{sv}sv).
type ibusText struct {
	Name        string
	Attachments map[string]dbus.Variant
	Text        string
	Attrs       dbus.Variant
}

// ibusAttrList is the D-Bus form of IBusAttrList: (sa{sv}av).
type ibusAttrList struct {
	Name        string
	Attachments map[string]dbus.Variant
	Attributes  []dbus.Variant
}

// ibusLookupTable is the D-Bus form of IBusLookupTable: (sa{sv}uubbiavav).
type ibusLookupTable struct {
	Name          string
	Attachments   map[string]dbus.Variant
	PageSize      uint32
	CursorPos     uint32
	CursorVisible bool
	Round         bool
	Orientation   int32
	Candidates    []dbus.Variant
	Labels        []dbus.Variant
}

func textVariant(s string) dbus.Variant {
	return dbus.MakeVariant(ibusText{
		Name:        "IBusText",
		Attachments: map[string]dbus.Variant{},
		Text:        s,
		Attrs: dbus.MakeVariant(ibusAttrList{
			Name:        "IBusAttrList",
			Attachments: map[string]dbus.Variant{},
			Attributes:  []dbus.Variant{},
		}),
	})
}

func lookupTableVariant(c ime.Candidates) dbus.Variant {
	t := ibusLookupTable{
		Name:          "IBusLookupTable",
		Attachments:   map[string]dbus.Variant{},
		PageSize:      uint32(len(c.Items)),
		CursorPos:     uint32(max(c.Cursor, 0)),
		CursorVisible: true,
		Orientation:   orientationSystem,
		Candidates:    make([]dbus.Variant, len(c.Items)),
		Labels:        make([]dbus.Variant, len(c.Items)),
	}
	for i, item := range c.Items {
		t.Candidates[i] = textVariant(item)
		label := ""
		if i < len(c.Labels) && c.Labels[i] != 0 {
			label = string(c.Labels[i]) + "."
		}
		t.Labels[i] = textVariant(label)
	}
	return dbus.MakeVariant(t)
}

// Factory creates one IBus engine object per input context.
type Factory struct {
	conn    Bus
	engines Engines
	log     *logging.Logger

	mu     sync.Mutex
	nextID uint32
	active map[dbus.ObjectPath]*IBusEngine
}

// NewFactory returns a factory creating engines from engines on conn.
func NewFactory(conn Bus, engines Engines, log *logging.Logger) *Factory {
	if log == nil {
		log = logging.Default()
	}
	return &Factory{
		conn:    conn,
		engines: engines,
		log:     log.WithComponent("ibus"),
		active:  make(map[dbus.ObjectPath]*IBusEngine),
	}
}

// Export publishes the factory object.
func (f *Factory) Export() error {
	if err := f.conn.Export(f, IBusFactoryPath, IBusFactoryInterface); err != nil {
		return fmt.Errorf("export factory: %w", err)
	}
	return nil
}

// CreateEngine implements org.freedesktop.IBus.Factory.CreateEngine.
func (f *Factory) CreateEngine(name string) (dbus.ObjectPath, *dbus.Error) {
	if name != EngineName {
		return "", dbus.NewError("org.freedesktop.IBus.NoEngine",
			[]interface{}{"unknown engine: " + name})
	}

	f.mu.Lock()
	f.nextID++
	path := dbus.ObjectPath(fmt.Sprintf("/org/freedesktop/IBus/Engine/%d", f.nextID))
	f.mu.Unlock()

	ie := &IBusEngine{
		conn:    f.conn,
		path:    path,
		factory: f,
		log:     f.log.With("path", string(path)),
		ctx:     context.Background(),
	}
	ie.engine = f.engines.NewEngine(ie)

	if err := f.conn.Export(ie, path, IBusEngineInterface); err != nil {
		f.engines.Release(ie.engine)
		return "", dbus.MakeFailedError(err)
	}
	if err := f.conn.Export(ie, path, IBusServiceInterface); err != nil {
		f.log.Warn("export service interface", "error", err)
	}

	f.mu.Lock()
	f.active[path] = ie
	f.mu.Unlock()

	f.log.Info("engine created", "path", path)
	return path, nil
}

func (f *Factory) destroy(path dbus.ObjectPath) {
	f.mu.Lock()
	ie, ok := f.active[path]
	delete(f.active, path)
	f.mu.Unlock()
	if !ok {
		return
	}

	f.engines.Release(ie.engine)
	f.conn.Export(nil, path, IBusEngineInterface)
	f.conn.Export(nil, path, IBusServiceInterface)
	f.log.Info("engine destroyed", "path", path)
}

// Close releases every engine.
func (f *Factory) Close() {
	f.mu.Lock()
	paths := make([]dbus.ObjectPath, 0, len(f.active))
	for p := range f.active {
		paths = append(paths, p)
	}
	f.mu.Unlock()

	for _, p := range paths {
		f.destroy(p)
	}
}

// Active returns the number of live engine objects.
func (f *Factory) Active() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.active)
}

// IBusEngine is one exported org.freedesktop.IBus.Engine object. It
// implements ime.Host by emitting the engine signals.
type IBusEngine struct {
	conn    Bus
	path    dbus.ObjectPath
	factory *Factory
	engine  *ime.Engine
	log     *slog.Logger
	ctx     context.Context

	mu       sync.Mutex
	caps     uint32
	msgTimer *time.Timer
}

func (e *IBusEngine) emit(signal string, values ...interface{}) {
	if err := e.conn.Emit(e.path, IBusEngineInterface+"."+signal, values...); err != nil {
		e.log.Warn("emit failed", "signal", signal, "error", err)
	}
}

// Capabilities implements ime.Host.
func (e *IBusEngine) Capabilities() ime.Capabilities {
	e.mu.Lock()
	defer e.mu.Unlock()
	return ime.Capabilities{
		UILess:         e.caps != 0 && e.caps&ibusCapLookupTable == 0,
		InlineMessages: e.caps == 0 || e.caps&ibusCapAuxiliaryText != 0,
	}
}

// SetComposition implements ime.Host.
func (e *IBusEngine) SetComposition(text string, cursor int) {
	e.emit("UpdatePreeditText", textVariant(text), uint32(cursor), text != "", preeditClear)
}

// Commit implements ime.Host.
func (e *IBusEngine) Commit(text string) {
	e.emit("CommitText", textVariant(text))
}

// ShowCandidates implements ime.Host.
func (e *IBusEngine) ShowCandidates(c ime.Candidates) {
	e.emit("UpdateLookupTable", lookupTableVariant(c), true)
	if c.Pages > 1 {
		e.emit("UpdateAuxiliaryText", textVariant(fmt.Sprintf("%d/%d", c.Page+1, c.Pages)), true)
	}
}

// HideCandidates implements ime.Host.
func (e *IBusEngine) HideCandidates() {
	e.emit("HideLookupTable")
	e.emit("HideAuxiliaryText")
}

// ShowMessage implements ime.Host with the auxiliary text.
func (e *IBusEngine) ShowMessage(msg string, d time.Duration) {
	if d <= 0 {
		d = defaultMessageTime
	}
	e.emit("UpdateAuxiliaryText", textVariant(msg), true)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.msgTimer != nil {
		e.msgTimer.Stop()
	}
	e.msgTimer = time.AfterFunc(d, func() { e.emit("HideAuxiliaryText") })
}

// ProcessKeyEvent handles key presses and releases. It returns true when
// the key was consumed.
func (e *IBusEngine) ProcessKeyEvent(keyval, keycode, state uint32) (bool, *dbus.Error) {
	k, up, ok := TranslateKeysym(keyval, state)
	if !ok {
		return false, nil
	}
	handled, err := e.engine.ProcessKey(e.ctx, k, up)
	if err != nil {
		e.log.Warn("key processing failed", "keyval", keyval, "error", err)
	}
	return handled, nil
}

func (e *IBusEngine) press(code int) {
	if _, err := e.engine.ProcessKey(e.ctx, ime.Key{Code: code}, false); err != nil {
		e.log.Warn("key processing failed", "code", code, "error", err)
	}
}

// FocusIn is called when the input context gains focus.
func (e *IBusEngine) FocusIn() *dbus.Error {
	e.engine.Activate()
	return nil
}

// FocusOut drops the composition and flushes the inline buffer.
func (e *IBusEngine) FocusOut() *dbus.Error {
	e.engine.Deactivate()
	return nil
}

// Enable is called when the engine is switched on.
func (e *IBusEngine) Enable() *dbus.Error {
	e.engine.Activate()
	return nil
}

// Disable is called when the engine is switched off.
func (e *IBusEngine) Disable() *dbus.Error {
	e.engine.Deactivate()
	return nil
}

// Reset clears the composition.
func (e *IBusEngine) Reset() *dbus.Error {
	e.engine.Deactivate()
	e.engine.Activate()
	return nil
}

// SetCapabilities records what the client can display.
func (e *IBusEngine) SetCapabilities(caps uint32) *dbus.Error {
	e.mu.Lock()
	e.caps = caps
	e.mu.Unlock()
	e.log.Debug("capabilities", "caps", caps)
	return nil
}

// SetCursorLocation is ignored; the panel positions the lookup table.
func (e *IBusEngine) SetCursorLocation(x, y, w, h int32) *dbus.Error { return nil }

func (e *IBusEngine) SetContentType(purpose, hints uint32) *dbus.Error { return nil }

func (e *IBusEngine) SetSurroundingText(text dbus.Variant, cursorPos, anchorPos uint32) *dbus.Error {
	return nil
}

func (e *IBusEngine) PropertyActivate(name string, state uint32) *dbus.Error { return nil }

// PageUp and the other panel buttons map onto the paging keys.
func (e *IBusEngine) PageUp() *dbus.Error {
	e.press(ime.VKPrior)
	return nil
}

func (e *IBusEngine) PageDown() *dbus.Error {
	e.press(ime.VKNext)
	return nil
}

func (e *IBusEngine) CursorUp() *dbus.Error {
	e.press(ime.VKUp)
	return nil
}

func (e *IBusEngine) CursorDown() *dbus.Error {
	e.press(ime.VKDown)
	return nil
}

// CandidateClicked selects a candidate of the visible page.
func (e *IBusEngine) CandidateClicked(index, button, state uint32) *dbus.Error {
	if _, err := e.engine.SelectCandidate(e.ctx, int(index)); err != nil {
		e.log.Warn("candidate selection failed", "index", index, "error", err)
	}
	return nil
}

// Destroy implements org.freedesktop.IBus.Service.Destroy.
func (e *IBusEngine) Destroy() *dbus.Error {
	e.mu.Lock()
	if e.msgTimer != nil {
		e.msgTimer.Stop()
	}
	e.mu.Unlock()
	e.factory.destroy(e.path)
	return nil
}
