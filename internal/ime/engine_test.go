package ime

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/width"

	"threecorner/internal/cin"
	"threecorner/internal/logging"
)

type fakeHost struct {
	caps        Capabilities
	commits     []string
	composition string
	cursor      int
	candidates  *Candidates
	messages    []string
}

func (h *fakeHost) Capabilities() Capabilities { return h.caps }

func (h *fakeHost) SetComposition(text string, cursor int) {
	h.composition, h.cursor = text, cursor
}

func (h *fakeHost) Commit(text string) { h.commits = append(h.commits, text) }

func (h *fakeHost) ShowCandidates(c Candidates) { h.candidates = &c }

func (h *fakeHost) HideCandidates() { h.candidates = nil }

func (h *fakeHost) ShowMessage(msg string, d time.Duration) {
	h.messages = append(h.messages, msg)
}

type mapConverter map[string]string

func (m mapConverter) Convert(s string) (string, error) {
	if out, ok := m[s]; ok {
		return out, nil
	}
	return s, nil
}

// letterTable has a key unit for every lower-case letter.
func letterTable() *cin.Table {
	t := cin.NewTable("letters")
	t.SelKeys = "asdfghjkl"
	for c := 'a'; c <= 'z'; c++ {
		t.SetKeyName(string(c), string(c))
	}
	t.Add("abc", "中")
	t.Add("xy", "你", "尼")
	t.Add("a00000", "丫")
	return t
}

// digitTable is keyed by keypad codes.
func digitTable() *cin.Table {
	t := cin.NewTable("digits")
	for _, c := range "0123456789:;<=>?*" {
		t.SetKeyName(string(c), string(c))
	}
	t.SetKeyName("9", "九十")
	t.Add("123", "中")
	t.Add("124", "忠")
	t.Add("456", "文", "紋")
	t.Add("789", "門")
	for i := 0; i < 12; i++ {
		t.Add(fmt.Sprintf("1%c", rune('0'+i)), string(rune(0x4e00+i)))
	}
	return t
}

type fixture struct {
	engine   *Engine
	host     *fakeHost
	registry *cin.Registry
}

// newFixture returns an engine whose primary table has finished loading.
func newFixture(t *testing.T, src cin.Source, s Settings, opts ...Option) *fixture {
	t.Helper()
	f := newLoadingFixture(t, src, s, opts...)
	f.await(t, cin.KindPrimary, s.Scheme)
	return f
}

func newLoadingFixture(t *testing.T, src cin.Source, s Settings, opts ...Option) *fixture {
	t.Helper()
	reg := cin.NewRegistry(src, cin.WithLogger(logging.Discard()))
	t.Cleanup(reg.Close)

	host := &fakeHost{}
	opts = append([]Option{WithLogger(logging.Discard()), WithCatalog(CatalogFor("zh-TW"))}, opts...)
	e := NewEngine(host, reg, s, opts...)
	e.Activate()
	return &fixture{engine: e, host: host, registry: reg}
}

func tables(m map[string]*cin.Table) cin.Source {
	return &cin.MemorySource{Tables: m}
}

func settings(scheme string, max int) Settings {
	s := DefaultSettings()
	s.Scheme = scheme
	s.MaxCharLength = max
	return s
}

func (f *fixture) await(t *testing.T, kind cin.Kind, scheme string) {
	t.Helper()
	_, err := f.registry.Await(context.Background(), kind, scheme)
	require.NoError(t, err)
}

func numpad(c rune) Key {
	k := Key{Char: c, Toggles: ToggleNumLock}
	switch {
	case c >= '0' && c <= '9':
		k.Code = VKNumpad0 + int(c-'0')
	case c == '.':
		k.Code = VKDecimal
	default:
		panic("not a keypad key")
	}
	return k
}

func char(c rune) Key { return Key{Char: c} }

func shifted(c rune) Key { return Key{Char: c, Modifiers: ModShift} }

var (
	enter     = Key{Code: VKReturn}
	backspace = Key{Code: VKBack}
	escape    = Key{Code: VKEscape}
	left      = Key{Code: VKLeft}
	down      = Key{Code: VKDown}
)

func (f *fixture) press(t *testing.T, keys ...Key) {
	t.Helper()
	for _, k := range keys {
		_, err := f.engine.ProcessKey(context.Background(), k, false)
		require.NoError(t, err)
	}
}

func (f *fixture) typeNumpad(t *testing.T, codes string) {
	t.Helper()
	for _, c := range codes {
		f.press(t, numpad(c))
	}
}

func (f *fixture) typeChars(t *testing.T, s string) {
	t.Helper()
	for _, c := range s {
		f.press(t, char(c))
	}
}

func (f *fixture) release(k Key) bool {
	handled, _ := f.engine.ProcessKey(context.Background(), k, true)
	return handled
}

func TestAppendBelowMaxKeepsCodes(t *testing.T) {
	f := newFixture(t, tables(map[string]*cin.Table{"d": digitTable()}), settings("d", 6))

	for i, c := range "24680" {
		f.press(t, numpad(c))
		assert.Equal(t, "24680"[:i+1], f.engine.Codes())
	}
	assert.Equal(t, "24680", f.host.composition)
	assert.Empty(t, f.host.commits)
}

func TestOverflowRemovesTrailingUnit(t *testing.T) {
	f := newFixture(t, tables(map[string]*cin.Table{"d": digitTable()}), settings("d", 6))

	f.typeNumpad(t, "234569")
	assert.Equal(t, "234569", f.engine.Codes())
	assert.Equal(t, "23456九十", f.engine.Composition())

	f.press(t, numpad('1'))
	assert.Equal(t, "23456", f.engine.Codes(), "new code is not appended")
	assert.Equal(t, "23456", f.engine.Composition(), "key name width is removed")

	f.press(t, numpad('7'))
	assert.Equal(t, "234567", f.engine.Codes())
	f.press(t, numpad('8'))
	assert.Equal(t, "23456", f.engine.Codes())
}

func TestNoMatchKeepsComposition(t *testing.T) {
	f := newFixture(t, tables(map[string]*cin.Table{"l": letterTable()}), settings("l", 6))

	f.typeChars(t, "abc")
	assert.Empty(t, f.host.commits, "no lookup result is used before the buffer is full")

	f.typeChars(t, "def")
	assert.Equal(t, "abcdef", f.engine.Codes())
	assert.Equal(t, "abcdef", f.host.composition)
	assert.Nil(t, f.engine.CandidateList())
	assert.Empty(t, f.host.commits)
}

func TestSingleCandidateAutoCommits(t *testing.T) {
	f := newFixture(t, tables(map[string]*cin.Table{"d": digitTable()}), settings("d", 3))

	f.typeNumpad(t, "123")
	assert.Equal(t, []string{"中"}, f.host.commits)
	assert.Empty(t, f.engine.Codes())
	assert.Empty(t, f.host.composition)
	assert.Nil(t, f.engine.CandidateList())
	assert.Equal(t, Overlay(0), f.engine.Modes().Overlays())
	assert.Equal(t, "中", f.engine.LastCommit())
}

func TestCandidateSelection(t *testing.T) {
	f := newFixture(t, tables(map[string]*cin.Table{"l": letterTable()}), settings("l", 2))

	f.typeChars(t, "xy")
	require.Equal(t, []string{"你", "尼"}, f.engine.CandidateList())
	require.NotNil(t, f.host.candidates)
	assert.Equal(t, []rune("as"), f.host.candidates.Labels)
	assert.Equal(t, "xy", f.engine.Codes(), "buffer unchanged while listing")

	f.press(t, char('a'))
	assert.Equal(t, []string{"你"}, f.host.commits)
	assert.Empty(t, f.engine.Codes())
	assert.Nil(t, f.engine.CandidateList())
	assert.Nil(t, f.host.candidates)
}

func TestSelectCandidateUsesVisiblePage(t *testing.T) {
	s := settings("l", 2)
	s.CandidatesPerPage = 1
	f := newFixture(t, tables(map[string]*cin.Table{"l": letterTable()}), s)

	ok, err := f.engine.SelectCandidate(context.Background(), 0)
	require.NoError(t, err)
	assert.False(t, ok, "no list shown")

	f.typeChars(t, "xy")
	f.press(t, Key{Code: VKNext})
	ok, err = f.engine.SelectCandidate(context.Background(), 0)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"尼"}, f.host.commits)
}

func TestSelectionKeyOutOfRange(t *testing.T) {
	f := newFixture(t, tables(map[string]*cin.Table{"l": letterTable()}), settings("l", 2))

	f.typeChars(t, "xy")
	f.press(t, char('d'))
	assert.Empty(t, f.host.commits)
	assert.Equal(t, []string{"你", "尼"}, f.engine.CandidateList())
}

func TestEnterPadsAndCommits(t *testing.T) {
	f := newFixture(t, tables(map[string]*cin.Table{"l": letterTable()}), settings("l", 6))

	f.typeChars(t, "a")
	assert.True(t, f.engine.FilterKeyDown(enter))
	assert.Equal(t, "a", f.engine.Codes(), "filtering does not pad")

	f.press(t, enter)
	assert.Equal(t, []string{"丫"}, f.host.commits)
	assert.Empty(t, f.engine.Codes())
}

func TestEnterWithoutMatchRollsBackPadding(t *testing.T) {
	f := newFixture(t, tables(map[string]*cin.Table{"d": digitTable()}), settings("d", 6))

	f.typeNumpad(t, "45")
	f.press(t, enter)
	assert.Empty(t, f.host.commits)
	assert.Equal(t, "45", f.engine.Codes())
	assert.Equal(t, "45", f.host.composition)
}

func TestEnterListsSeveralCandidates(t *testing.T) {
	tbl := digitTable()
	tbl.Add("450000", "甲", "乙")
	f := newFixture(t, tables(map[string]*cin.Table{"d": tbl}), settings("d", 6))

	f.typeNumpad(t, "45")
	f.press(t, enter)
	assert.Equal(t, []string{"甲", "乙"}, f.engine.CandidateList())
	assert.Equal(t, "450000", f.engine.Codes())

	f.press(t, numpad('2'))
	assert.Equal(t, []string{"乙"}, f.host.commits)
}

func TestWildcardLookup(t *testing.T) {
	f := newFixture(t, tables(map[string]*cin.Table{"d": digitTable()}), settings("d", 2))

	f.press(t, numpad('1'), numpad('.'))
	list := f.engine.CandidateList()
	require.Len(t, list, wildcardLimit)
	assert.Equal(t, "一", list[0])

	f.press(t, numpad('1'))
	assert.Equal(t, []string{"一"}, f.host.commits)
	assert.Empty(t, f.host.messages, "code message waits for key release")

	assert.True(t, f.release(numpad('1')))
	assert.Equal(t, []string{"10"}, f.host.messages)
}

func TestFilterKeyDown(t *testing.T) {
	f := newFixture(t, tables(map[string]*cin.Table{"d": digitTable()}), settings("d", 6))
	e := f.engine

	assert.True(t, e.FilterKeyDown(numpad('5')))
	assert.True(t, e.FilterKeyDown(numpad('.')))
	assert.False(t, e.FilterKeyDown(enter), "nothing to complete")
	assert.False(t, e.FilterKeyDown(Key{Code: VKSpace, Char: ' '}))
	assert.False(t, e.FilterKeyDown(Key{Char: 'c', Modifiers: ModControl}))

	f.press(t, Key{Code: VKShift, Modifiers: ModShift})
	assert.True(t, f.release(Key{Code: VKShift}))
	require.Equal(t, English, e.Modes().Language())

	assert.True(t, e.FilterKeyDown(numpad('.')), "decimal is always taken with NumLock")
	assert.False(t, e.FilterKeyDown(numpad('5')))
	assert.False(t, e.FilterKeyDown(char('a')))
	assert.True(t, e.FilterKeyDown(Key{Code: VKSpace, Char: ' ', Modifiers: ModShift}))
}

func TestTableLoadIsAwaited(t *testing.T) {
	gate := make(chan struct{})
	src := &cin.MemorySource{Tables: map[string]*cin.Table{"d": digitTable()}, Gate: gate}
	f := newLoadingFixture(t, src, settings("d", 3))

	var once sync.Once
	t.Cleanup(func() { once.Do(func() { close(gate) }) })
	go func() {
		time.Sleep(20 * time.Millisecond)
		once.Do(func() { close(gate) })
	}()

	f.typeNumpad(t, "123")
	assert.Equal(t, []string{"中"}, f.host.commits)
}

func TestTableLoadTimeout(t *testing.T) {
	gate := make(chan struct{})
	t.Cleanup(func() { close(gate) })
	src := &cin.MemorySource{Tables: map[string]*cin.Table{"d": digitTable()}, Gate: gate}
	s := settings("d", 3)
	s.LoadTimeout = 20 * time.Millisecond
	f := newLoadingFixture(t, src, s)

	handled, err := f.engine.ProcessKey(context.Background(), numpad('1'), false)
	assert.True(t, handled)
	assert.ErrorIs(t, err, cin.ErrTableNotReady)
}

func TestMissingPrimaryTable(t *testing.T) {
	f := newLoadingFixture(t, tables(map[string]*cin.Table{}), settings("nope", 3))

	handled, err := f.engine.ProcessKey(context.Background(), numpad('1'), false)
	assert.True(t, handled)
	assert.ErrorIs(t, err, cin.ErrTableMissing)
}

func reverseFixture(t *testing.T, caps Capabilities) *fixture {
	rev := cin.NewTable("rev")
	rev.Add("L", "中")
	s := settings("l", 3)
	s.ReverseLookup = true
	s.ReverseScheme = "rev"

	f := newFixture(t, tables(map[string]*cin.Table{"l": letterTable(), "rev": rev}), s)
	f.host.caps = caps
	f.await(t, cin.KindReverse, "rev")
	return f
}

func TestReverseLookupInlineHost(t *testing.T) {
	f := reverseFixture(t, Capabilities{InlineMessages: true})

	f.typeChars(t, "abc")
	require.Equal(t, []string{"中"}, f.host.commits)
	assert.Equal(t, []string{"L"}, f.host.messages)
}

func TestReverseLookupDeferredHost(t *testing.T) {
	f := reverseFixture(t, Capabilities{UILess: true})

	f.typeChars(t, "abc")
	require.Equal(t, []string{"中"}, f.host.commits)
	assert.Empty(t, f.host.messages)

	assert.True(t, f.release(char('c')))
	assert.Equal(t, []string{"L"}, f.host.messages)
	assert.False(t, f.release(char('c')), "message is shown once")
}

type gatedReverse struct {
	cin.MemorySource
	gate chan struct{}
}

func (s *gatedReverse) Load(ctx context.Context, kind cin.Kind, scheme string) (*cin.Table, error) {
	if kind == cin.KindReverse {
		select {
		case <-s.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return s.MemorySource.Load(ctx, kind, scheme)
}

func TestReverseLookupStatusMessages(t *testing.T) {
	t.Run("loading", func(t *testing.T) {
		gate := make(chan struct{})
		t.Cleanup(func() { close(gate) })
		src := &gatedReverse{
			MemorySource: cin.MemorySource{Tables: map[string]*cin.Table{"d": digitTable()}},
			gate:         gate,
		}
		s := settings("d", 3)
		s.ReverseLookup = true
		s.ReverseScheme = "rev"
		f := newFixture(t, src, s)

		f.typeNumpad(t, "123")
		f.release(numpad('3'))
		assert.Equal(t, []string{"反查字根碼表尚在載入中！"}, f.host.messages)
	})

	t.Run("missing", func(t *testing.T) {
		s := settings("d", 3)
		s.ReverseLookup = true
		s.ReverseScheme = "rev"
		f := newFixture(t, tables(map[string]*cin.Table{"d": digitTable()}), s)
		_, err := f.registry.Await(context.Background(), cin.KindReverse, "rev")
		require.ErrorIs(t, err, cin.ErrTableMissing)

		f.typeNumpad(t, "123")
		f.release(numpad('3'))
		assert.Equal(t, []string{"反查字根碼表檔案不存在！"}, f.host.messages)
	})
}

func TestSimplifiedOutput(t *testing.T) {
	s := settings("d", 3)
	s.SimplifiedOutput = true
	var events []CommitEvent
	f := newFixture(t, tables(map[string]*cin.Table{"d": digitTable()}), s,
		WithConverter(mapConverter{"門": "门"}),
		WithRecorder(func(_ context.Context, ev CommitEvent) { events = append(events, ev) }),
	)

	f.typeNumpad(t, "789")
	assert.Equal(t, []string{"门"}, f.host.commits)
	assert.Equal(t, "門", f.engine.LastCommit())

	require.Len(t, events, 1)
	assert.Equal(t, CommitEvent{
		Scheme:     "d",
		Code:       "789",
		Text:       "门",
		Original:   "門",
		Simplified: true,
		Auto:       true,
	}, events[0])
}

func TestBackspaceAndEscape(t *testing.T) {
	f := newFixture(t, tables(map[string]*cin.Table{"d": digitTable()}), settings("d", 6))

	f.typeNumpad(t, "29")
	f.press(t, backspace)
	assert.Equal(t, "2", f.engine.Codes())
	assert.Equal(t, "2", f.host.composition)

	f.press(t, backspace)
	assert.Empty(t, f.engine.Codes())
	assert.False(t, f.engine.FilterKeyDown(backspace))

	f.typeNumpad(t, "456")
	f.press(t, escape)
	assert.Empty(t, f.engine.Codes())
	assert.Empty(t, f.host.composition)
	assert.Empty(t, f.host.commits)
}

func TestBufferCommitStrategy(t *testing.T) {
	s := settings("d", 3)
	s.Strategy = BufferCommit
	f := newFixture(t, tables(map[string]*cin.Table{"d": digitTable()}), s)

	f.typeNumpad(t, "12")
	assert.Equal(t, "12", f.engine.Inline())

	f.press(t, numpad('3'))
	assert.Equal(t, "中", f.engine.Inline())
	assert.Empty(t, f.host.commits)

	f.typeNumpad(t, "456")
	require.Equal(t, []string{"文", "紋"}, f.engine.CandidateList())
	assert.Equal(t, "中456", f.host.composition)
	f.press(t, numpad('2'))
	assert.Equal(t, "中紋", f.engine.Inline())

	f.press(t, left, down)
	assert.True(t, f.engine.Modes().Has(SelCand))
	require.Equal(t, []string{"文", "紋"}, f.engine.CandidateList())
	f.press(t, numpad('1'))
	assert.Equal(t, "中文", f.engine.Inline())
	assert.False(t, f.engine.Modes().Has(SelCand))

	f.press(t, enter)
	assert.Equal(t, []string{"中文"}, f.host.commits)
	assert.Empty(t, f.engine.Inline())
}

func TestBufferCommitOverflowUsesInlineRemoval(t *testing.T) {
	s := settings("d", 2)
	s.Strategy = BufferCommit
	f := newFixture(t, tables(map[string]*cin.Table{"d": digitTable()}), s)

	f.typeNumpad(t, "29")
	assert.Equal(t, "2九十", f.engine.Inline())
	f.press(t, numpad('5'))
	assert.Equal(t, "2", f.engine.Inline())
}

func TestPhraseContinuations(t *testing.T) {
	phrases := cin.NewTable("phrases")
	phrases.Add("中", "中文", "中國")
	s := settings("d", 3)
	s.ShowPhrase = true
	s.PhraseScheme = "p"
	s.SelKeys = "asdf"
	f := newFixture(t, tables(map[string]*cin.Table{"d": digitTable(), "p": phrases}), s)
	f.await(t, cin.KindPhrase, "p")

	f.typeNumpad(t, "123")
	assert.True(t, f.engine.Modes().Has(Phrase))
	require.Equal(t, []string{"中文", "中國"}, f.engine.CandidateList())

	f.press(t, char('s'))
	assert.Equal(t, []string{"中", "中國"}, f.host.commits)

	f.typeNumpad(t, "12")
	assert.False(t, f.engine.Modes().Has(Phrase), "a new code leaves phrase mode")
	assert.Nil(t, f.engine.CandidateList())
	assert.Equal(t, "12", f.engine.Codes())
}

func TestMenuSymbols(t *testing.T) {
	f := newFixture(t, tables(map[string]*cin.Table{"d": digitTable()}), settings("d", 6))

	f.press(t, char('`'))
	m := f.engine.Modes()
	assert.True(t, m.Has(Menu|MenuShown))
	require.Len(t, f.engine.CandidateList(), 3)

	f.press(t, numpad('1'))
	assert.True(t, f.engine.Modes().Has(Menu|MenuSymbols))
	assert.Equal(t, "`", f.engine.Codes())
	assert.Empty(t, f.engine.Composition())

	f.press(t, char(','))
	require.Equal(t, menuSymbolTable[","], f.engine.CandidateList())
	f.press(t, numpad('2'))
	assert.Equal(t, []string{"、"}, f.host.commits)
	assert.Equal(t, Overlay(0), f.engine.Modes().Overlays())
}

func TestMenuSymbolsInline(t *testing.T) {
	s := settings("d", 6)
	s.Strategy = BufferCommit
	f := newFixture(t, tables(map[string]*cin.Table{"d": digitTable()}), s)

	f.typeNumpad(t, "45")
	f.press(t, escape)
	assert.Empty(t, f.engine.Inline())

	f.press(t, char('`'), numpad('1'), char('!'))
	assert.Equal(t, "!", f.engine.Inline())
	require.Len(t, f.engine.CandidateList(), 2)

	f.press(t, numpad('1'))
	assert.Equal(t, "！", f.engine.Inline())
}

func TestDayiSymbols(t *testing.T) {
	f := newFixture(t, tables(map[string]*cin.Table{"d": digitTable()}), settings("d", 6))

	f.press(t, char('='))
	assert.True(t, f.engine.Modes().Has(DayiSymbols))
	f.press(t, numpad('1'))
	require.Equal(t, dayiSymbolTable["1"], f.engine.CandidateList())

	f.press(t, numpad('3'))
	assert.Equal(t, []string{"×"}, f.host.commits)
	assert.False(t, f.engine.Modes().Any(Menu|DayiSymbols))
}

func TestMenuToggles(t *testing.T) {
	f := newFixture(t, tables(map[string]*cin.Table{"d": digitTable()}), settings("d", 6))
	f.host.caps = Capabilities{InlineMessages: true}

	f.press(t, char('`'), numpad('2'))
	assert.True(t, f.engine.Settings().SimplifiedOutput)
	assert.Equal(t, []string{"打繁出簡: 開"}, f.host.messages)
	assert.Equal(t, Overlay(0), f.engine.Modes().Overlays())
}

func homophoneFixture(t *testing.T, bpmf *cin.Table) *fixture {
	s := settings("d", 3)
	s.HomophoneQuery = true
	s.HomophoneScheme = "b"
	f := newFixture(t, tables(map[string]*cin.Table{"d": digitTable(), "b": bpmf}), s)
	f.await(t, cin.KindHomophone, "b")
	return f
}

func TestHomophoneQuery(t *testing.T) {
	bpmf := cin.NewTable("bpmf")
	bpmf.Add("ㄓㄨㄥ", "中", "忠", "終")
	f := homophoneFixture(t, bpmf)

	f.press(t, char('`'))
	require.Len(t, f.engine.CandidateList(), 4)
	f.press(t, numpad('1'))
	assert.True(t, f.engine.Modes().Has(Homophone))

	f.typeNumpad(t, "123")
	assert.Empty(t, f.host.commits)
	require.Equal(t, []string{"中", "忠", "終"}, f.engine.CandidateList())

	f.press(t, numpad('2'))
	assert.Equal(t, []string{"忠"}, f.host.commits)
	assert.False(t, f.engine.Modes().Has(Homophone))

	f.release(numpad('2'))
	assert.Equal(t, []string{"124"}, f.host.messages)
}

func TestHomophonePronunciationChoice(t *testing.T) {
	bpmf := cin.NewTable("bpmf")
	bpmf.Add("ㄓㄨㄥ", "中", "忠")
	bpmf.Add("ㄓㄨㄥˋ", "中", "眾")
	f := homophoneFixture(t, bpmf)

	f.press(t, char('`'), numpad('1'))
	f.typeNumpad(t, "123")
	assert.True(t, f.engine.Modes().Has(HomophoneSelPinyin))
	require.Equal(t, []string{"ㄓㄨㄥ", "ㄓㄨㄥˋ"}, f.engine.CandidateList())

	f.press(t, numpad('2'))
	assert.False(t, f.engine.Modes().Has(HomophoneSelPinyin))
	require.Equal(t, []string{"中", "眾"}, f.engine.CandidateList())

	f.press(t, numpad('2'))
	assert.Equal(t, []string{"眾"}, f.host.commits)
}

func TestTempEnglish(t *testing.T) {
	f := newFixture(t, tables(map[string]*cin.Table{"d": digitTable()}), settings("d", 6))

	f.press(t, shifted('H'))
	assert.True(t, f.engine.Modes().Has(TempEnglish))
	f.typeChars(t, "i")
	assert.Equal(t, "Hi", f.host.composition)

	assert.True(t, f.engine.FilterKeyDown(enter))
	f.press(t, enter)
	assert.Equal(t, []string{"Hi"}, f.host.commits)
	assert.False(t, f.engine.Modes().Has(TempEnglish))
}

func TestFullShapeEnglish(t *testing.T) {
	f := newFixture(t, tables(map[string]*cin.Table{"d": digitTable()}), settings("d", 6),
		WithWidener(width.Widen.String))

	f.press(t, Key{Code: VKShift, Modifiers: ModShift})
	f.release(Key{Code: VKShift})
	f.press(t, Key{Code: VKSpace, Char: ' ', Modifiers: ModShift})
	assert.True(t, f.engine.Modes().Has(FullShape))

	f.typeChars(t, "ab")
	assert.Equal(t, "ａｂ", strings.Join(f.host.commits, ""))
}

func TestPunctuationInChinese(t *testing.T) {
	f := newFixture(t, tables(map[string]*cin.Table{"d": digitTable()}), settings("d", 6))

	f.typeChars(t, ",")
	assert.Equal(t, []string{"，"}, f.host.commits)
}

func TestApplySettingsSchemeChange(t *testing.T) {
	other := cin.NewTable("other")
	other.Add("11", "乙")
	f := newFixture(t, tables(map[string]*cin.Table{"d": digitTable(), "o": other}), settings("d", 3))

	f.typeNumpad(t, "12")
	f.engine.ApplySettings(settings("o", 2))
	assert.Empty(t, f.engine.Codes())

	f.typeNumpad(t, "11")
	assert.Equal(t, []string{"乙"}, f.host.commits)
}

func TestTempEnglishLongerThanCode(t *testing.T) {
	f := newFixture(t, tables(map[string]*cin.Table{"d": digitTable()}), settings("d", 6))

	f.press(t, shifted('T'))
	f.typeChars(t, "hreecorner")
	assert.Equal(t, "Threecorner", f.host.composition)

	f.press(t, Key{Code: VKSpace, Char: ' '})
	assert.Equal(t, []string{"Threecorner "}, f.host.commits)
	assert.False(t, f.engine.Modes().Has(TempEnglish))
}

func TestApplySettingsKeepsCandidateList(t *testing.T) {
	s := settings("l", 2)
	f := newFixture(t, tables(map[string]*cin.Table{"l": letterTable()}), s)

	f.typeChars(t, "xy")
	require.Equal(t, []string{"你", "尼"}, f.engine.CandidateList())

	s.CandidatesPerPage = 5
	f.engine.ApplySettings(s)
	assert.Equal(t, []string{"你", "尼"}, f.engine.CandidateList())
	require.NotNil(t, f.host.candidates)

	f.press(t, char('s'))
	assert.Equal(t, []string{"尼"}, f.host.commits)
}

func TestKeypadDecimalSelectsByKeypadCode(t *testing.T) {
	s := settings("d", 3)
	s.SelKeys = "?>"
	f := newFixture(t, tables(map[string]*cin.Table{"d": digitTable()}), s)

	f.typeNumpad(t, "456")
	require.Equal(t, []string{"文", "紋"}, f.engine.CandidateList())

	f.press(t, numpad('.'))
	assert.Equal(t, []string{"紋"}, f.host.commits)
	assert.Empty(t, f.engine.Codes())
}
