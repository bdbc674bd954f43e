package host

import (
	"context"
	"sync"
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threecorner/internal/cin"
	"threecorner/internal/ime"
	"threecorner/internal/logging"
)

type signal struct {
	name   string
	values []interface{}
}

type recordingBus struct {
	mu      sync.Mutex
	exports map[dbus.ObjectPath][]string
	signals []signal
}

func newRecordingBus() *recordingBus {
	return &recordingBus{exports: make(map[dbus.ObjectPath][]string)}
}

func (b *recordingBus) Export(v interface{}, path dbus.ObjectPath, iface string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if v == nil {
		delete(b.exports, path)
		return nil
	}
	b.exports[path] = append(b.exports[path], iface)
	return nil
}

func (b *recordingBus) Emit(path dbus.ObjectPath, name string, values ...interface{}) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signals = append(b.signals, signal{name: name, values: values})
	return nil
}

// texts returns the text argument of every emitted signal called name.
func (b *recordingBus) texts(name string) []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, s := range b.signals {
		if s.name != IBusEngineInterface+"."+name {
			continue
		}
		out = append(out, s.values[0].(dbus.Variant).Value().(ibusText).Text)
	}
	return out
}

func (b *recordingBus) lastTable() (ibusLookupTable, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := len(b.signals) - 1; i >= 0; i-- {
		if b.signals[i].name == IBusEngineInterface+".UpdateLookupTable" {
			return b.signals[i].values[0].(dbus.Variant).Value().(ibusLookupTable), true
		}
	}
	return ibusLookupTable{}, false
}

type testEngines struct {
	registry *cin.Registry
	released int
}

func newTestEngines(t *testing.T) *testEngines {
	t.Helper()
	tbl := cin.NewTable("digits")
	tbl.SelKeys = "asdfghjkl"
	for _, c := range "0123456789" {
		tbl.SetKeyName(string(c), string(c))
	}
	tbl.Add("123", "中")
	tbl.Add("124", "忠", "鐘")

	r := cin.NewRegistry(&cin.MemorySource{Tables: map[string]*cin.Table{"threecorner": tbl}},
		cin.WithLogger(logging.Discard()))
	t.Cleanup(r.Close)
	_, err := r.Await(context.Background(), cin.KindPrimary, "threecorner")
	require.NoError(t, err)
	return &testEngines{registry: r}
}

func (te *testEngines) NewEngine(h ime.Host, opts ...ime.Option) *ime.Engine {
	s := ime.DefaultSettings()
	s.MaxCharLength = 3
	opts = append([]ime.Option{ime.WithLogger(logging.Discard())}, opts...)
	return ime.NewEngine(h, te.registry, s, opts...)
}

func (te *testEngines) Release(e *ime.Engine) {
	te.released++
	e.Deactivate()
}

func TestTranslateKeysym(t *testing.T) {
	tests := []struct {
		name   string
		keyval uint32
		state  uint32
		want   ime.Key
		up     bool
		ok     bool
	}{
		{"keypad digit", 0xffb1, ibusMod2Mask, ime.Key{Code: ime.VKNumpad0 + 1, Char: '1', Toggles: ime.ToggleNumLock}, false, true},
		{"keypad decimal", 0xffae, ibusMod2Mask, ime.Key{Code: ime.VKDecimal, Char: '.', Toggles: ime.ToggleNumLock}, false, true},
		{"keypad add", 0xffab, 0, ime.Key{Code: ime.VKAdd, Char: '+'}, false, true},
		{"shifted letter", 'A', ibusShiftMask, ime.Key{Code: 'A', Char: 'A', Modifiers: ime.ModShift}, false, true},
		{"lower letter", 'a', 0, ime.Key{Code: 'A', Char: 'a'}, false, true},
		{"space", ' ', 0, ime.Key{Code: ime.VKSpace, Char: ' '}, false, true},
		{"return release", 0xff0d, ibusReleaseMask, ime.Key{Code: ime.VKReturn}, true, true},
		{"control", 'c', ibusControlMask, ime.Key{Code: 'C', Char: 'c', Modifiers: ime.ModControl}, false, true},
		{"shift key", 0xffe1, ibusShiftMask, ime.Key{Code: ime.VKShift, Modifiers: ime.ModShift}, false, true},
		{"unicode keysym", 0x01004e2d, 0, ime.Key{Char: '中'}, false, true},
		{"unknown", 0xfe03, 0, ime.Key{}, false, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			k, up, ok := TranslateKeysym(tc.keyval, tc.state)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.up, up)
			if tc.ok {
				assert.Equal(t, tc.want, k)
			}
		})
	}
}

func TestFactoryCreateAndDestroy(t *testing.T) {
	bus := newRecordingBus()
	engines := newTestEngines(t)
	f := NewFactory(bus, engines, logging.Discard())
	require.NoError(t, f.Export())
	assert.Equal(t, []string{IBusFactoryInterface}, bus.exports[IBusFactoryPath])

	_, derr := f.CreateEngine("other")
	require.NotNil(t, derr)

	path, derr := f.CreateEngine(EngineName)
	require.Nil(t, derr)
	assert.ElementsMatch(t, []string{IBusEngineInterface, IBusServiceInterface}, bus.exports[path])
	assert.Equal(t, 1, f.Active())

	f.active[path].Destroy()
	assert.Equal(t, 0, f.Active())
	assert.Equal(t, 1, engines.released)
	assert.NotContains(t, bus.exports, path)
}

func createEngine(t *testing.T) (*IBusEngine, *recordingBus) {
	t.Helper()
	bus := newRecordingBus()
	f := NewFactory(bus, newTestEngines(t), logging.Discard())
	path, derr := f.CreateEngine(EngineName)
	require.Nil(t, derr)
	t.Cleanup(f.Close)
	return f.active[path], bus
}

func typeKeypad(t *testing.T, e *IBusEngine, codes string) {
	t.Helper()
	for _, c := range codes {
		keyval := uint32(0xffb0 + c - '0')
		handled, derr := e.ProcessKeyEvent(keyval, 0, ibusMod2Mask)
		require.Nil(t, derr)
		assert.True(t, handled)
		e.ProcessKeyEvent(keyval, 0, ibusMod2Mask|ibusReleaseMask)
	}
}

func TestIBusEngineCommits(t *testing.T) {
	e, bus := createEngine(t)

	typeKeypad(t, e, "12")
	assert.Contains(t, bus.texts("UpdatePreeditText"), "12")

	typeKeypad(t, e, "3")
	assert.Equal(t, []string{"中"}, bus.texts("CommitText"))
}

func TestIBusEngineLookupTable(t *testing.T) {
	e, bus := createEngine(t)

	typeKeypad(t, e, "124")
	table, ok := bus.lastTable()
	require.True(t, ok)
	assert.Equal(t, uint32(2), table.PageSize)
	require.Len(t, table.Candidates, 2)
	assert.Equal(t, "鐘", table.Candidates[1].Value().(ibusText).Text)
	assert.Equal(t, "s.", table.Labels[1].Value().(ibusText).Text)

	require.Nil(t, e.CandidateClicked(1, 1, 0))
	assert.Equal(t, []string{"鐘"}, bus.texts("CommitText"))
}

func TestIBusEnginePassesUnusedKeys(t *testing.T) {
	e, _ := createEngine(t)

	handled, derr := e.ProcessKeyEvent(0xff51, 0, 0)
	require.Nil(t, derr)
	assert.False(t, handled, "Left passes through when idle")
}

func TestIBusCapabilities(t *testing.T) {
	e, _ := createEngine(t)

	assert.Equal(t, ime.Capabilities{InlineMessages: true}, e.Capabilities())

	e.SetCapabilities(ibusCapPreeditText)
	assert.Equal(t, ime.Capabilities{UILess: true}, e.Capabilities())
}

func TestIBusShowMessage(t *testing.T) {
	e, bus := createEngine(t)

	e.ShowMessage("三角", 0)
	assert.Equal(t, []string{"三角"}, bus.texts("UpdateAuxiliaryText"))
}
