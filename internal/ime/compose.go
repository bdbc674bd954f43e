package ime

import (
	"context"
	"errors"
	"fmt"
	"unicode/utf8"

	"threecorner/internal/cin"
)

// codeKey handles a key contributing code unit c. For the wildcard key
// (magic) c is the raw keypad code, checked against the selection keys,
// and the wildcard marker is appended instead.
func (e *Engine) codeKey(ctx context.Context, k Key, c rune, magic bool) (bool, error) {
	if e.modes.Any(MenuSymbols | DayiSymbols) {
		return e.symbolKey(ctx, k)
	}
	e.leaveOverlay(c)

	if e.pager.shown && e.pager.selKey(c) && !k.Down(ModShift) {
		if i, ok := e.pager.index(c); ok {
			return true, e.selectAt(ctx, i)
		}
		return true, nil
	}

	if e.comp.len() >= e.settings.MaxCharLength && !e.modes.Has(TempEnglish) {
		e.popUnit()
		return true, nil
	}

	if k.Down(ModShift|ModControl) && !e.modes.Has(TempEnglish) {
		return false, nil
	}

	unit := c
	if magic {
		unit = wildcardMarker
		e.comp.magic = true
	}
	e.pushCode(unit, e.unitName(unit))

	if !e.lookupEnabled() {
		return true, nil
	}
	code := e.comp.code()
	cands, err := e.lookup(ctx, code, false)
	if err != nil {
		return true, err
	}
	if e.comp.len() != e.settings.MaxCharLength {
		return true, nil
	}

	wildcard := e.comp.magic
	if wildcard {
		if cands, err = e.lookup(ctx, code, true); err != nil {
			return true, err
		}
	}
	if len(cands) > 0 && !e.modes.Has(Phrase) {
		return true, e.resolve(ctx, cands, wildcard)
	}
	return true, nil
}

// lookupEnabled reports whether the composition is looked up after a code
// is appended.
func (e *Engine) lookupEnabled() bool {
	chinese := e.modes.Chinese() && e.comp.len() >= 1 && !e.modes.Has(Menu)
	return chinese || (e.modes.Has(TempEnglish) && e.composing())
}

// completeEnter pads a short composition with '0' and looks up the result.
func (e *Engine) completeEnter(ctx context.Context) (bool, error) {
	typed := e.comp.len()
	shown := string(e.comp.display)
	if typed > 0 {
		for e.comp.len() < e.settings.MaxCharLength {
			e.pushCode(padCode, e.unitName(padCode))
		}
	}

	wildcard := e.comp.magic
	cands, err := e.lookup(ctx, e.comp.code(), wildcard)
	if err != nil {
		return true, err
	}
	if len(cands) > 0 && !e.modes.Has(Phrase) {
		return true, e.resolve(ctx, cands, wildcard)
	}

	if e.modes.Has(TempEnglish) {
		e.emit(shown, e.buf.pending)
		e.reset()
		return true, nil
	}
	for e.comp.len() > typed {
		e.popUnit()
	}
	return true, nil
}

// resolve lists several candidates or accepts a single one.
func (e *Engine) resolve(ctx context.Context, cands []string, wildcard bool) error {
	if wildcard {
		e.wildcard = true
	}
	if len(cands) > 1 {
		e.comp.magic = false
		e.showList(cands)
		return nil
	}
	return e.accept(ctx, cands[0], true)
}

// lookup returns the candidates of code in the primary table. A code with
// no entry yields no candidates and no error.
func (e *Engine) lookup(ctx context.Context, code string, wildcard bool) ([]string, error) {
	t, err := e.table(ctx, cin.KindPrimary, e.settings.Scheme)
	if err != nil {
		return nil, fmt.Errorf("lookup %q: %w", code, err)
	}

	var cands []string
	if wildcard {
		cands = t.LookupWildcard(code, wildcardMarker, wildcardLimit)
	} else {
		cands, err = t.Lookup(code)
		if err != nil && !errors.Is(err, cin.ErrNoMatch) {
			return nil, err
		}
	}
	if len(cands) == 0 {
		e.metrics.LookupMiss()
	}
	e.log.Debug("lookup", "code", code, "wildcard", wildcard, "candidates", len(cands))
	return cands, nil
}

// table returns a loaded table, waiting up to LoadTimeout when the handle
// is loading or holds another scheme.
func (e *Engine) table(ctx context.Context, kind cin.Kind, scheme string) (*cin.Table, error) {
	t, err := e.tables.Table(kind, scheme)
	if !errors.Is(err, cin.ErrTableNotReady) {
		return t, err
	}

	e.metrics.TableWait()
	ctx, cancel := context.WithTimeout(ctx, e.settings.LoadTimeout)
	defer cancel()
	t, err = e.tables.Await(ctx, kind, scheme)
	if err != nil {
		e.log.Warn("table unavailable", "kind", kind, "scheme", scheme, "error", err)
	}
	return t, err
}

// loaded returns the primary table if it is ready, without waiting.
func (e *Engine) loaded() *cin.Table {
	t, err := e.tables.Table(cin.KindPrimary, e.settings.Scheme)
	if err != nil {
		return nil
	}
	return t
}

// unitName is the display form of code unit c.
func (e *Engine) unitName(c rune) string {
	if e.modes.Any(TempEnglish | MenuSymbols | DayiSymbols) {
		return string(c)
	}
	if t := e.loaded(); t != nil {
		return t.KeyName(string(c))
	}
	return string(c)
}

// unitWidth is the display width of the trailing code unit.
func (e *Engine) unitWidth() int {
	if e.modes.Any(TempEnglish | MenuSymbols | DayiSymbols) {
		return 1
	}
	last := e.comp.last()
	if t := e.loaded(); t != nil && t.IsUnit(last) {
		return utf8.RuneCountInString(t.KeyName(last))
	}
	return 1
}

func (e *Engine) pushCode(c rune, shown string) {
	e.comp.push(c, shown)
	if e.modes.Strategy() == BufferCommit {
		e.buf.appendPending(shown)
	}
	e.render()
}

// popUnit removes the trailing code unit and its display.
func (e *Engine) popUnit() {
	width := e.unitWidth()
	if e.modes.Strategy() == BufferCommit {
		e.buf.removePending(width)
	}
	e.comp.pop(width)
	e.render()
}

// typedWidth is the width of the composition as typed, counting a hidden
// symbol marker.
func (e *Engine) typedWidth() int {
	w := len(e.comp.display)
	if e.modes.Any(MenuSymbols | DayiSymbols) {
		w++
	}
	return w
}

func (e *Engine) render() {
	if e.modes.Strategy() == BufferCommit {
		e.host.SetComposition(e.buf.String(), e.buf.cursor)
		return
	}
	e.host.SetComposition(string(e.comp.display), len(e.comp.display))
}

func (e *Engine) showList(cands []string) {
	if len(e.settings.SelKeys) == 0 {
		keys := "1234567890"
		if t := e.loaded(); t != nil && t.SelKeys != "" {
			keys = t.SelKeys
		}
		e.pager.keys = []rune(keys)
	}
	e.pager.set(cands)
	e.host.ShowCandidates(e.pager.view())
	e.metrics.CandidateList()
}

func (e *Engine) hideList() {
	if e.pager.shown {
		e.host.HideCandidates()
	}
	e.pager.reset()
}

// leaveOverlay ends the phrase and reselection overlays unless c selects
// from their list.
func (e *Engine) leaveOverlay(c rune) {
	if !e.modes.Any(Phrase | SelCand) {
		return
	}
	if e.pager.shown && e.pager.selKey(c) {
		return
	}
	e.modes.Clear(Phrase | SelCand)
	e.hideList()
}

// reset clears the composition, the candidate list and the composition
// overlays.
func (e *Engine) reset() {
	e.comp.reset()
	e.buf.pending = 0
	e.hideList()
	e.menu = nil
	e.pinyin = nil
	e.wildcard = false
	e.homophone = false
	e.modes.Clear(resetOverlays)
	e.render()
}

// cancel drops the composition without committing.
func (e *Engine) cancel() {
	if e.modes.Strategy() == BufferCommit {
		e.buf.removePending(e.buf.pending)
	}
	e.modes.Clear(Phrase)
	e.reset()
}

func (e *Engine) flushInline() {
	if e.buf.empty() {
		return
	}
	e.host.Commit(e.buf.flush())
	e.render()
}
