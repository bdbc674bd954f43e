package ime

import (
	"context"
	"unicode"

	"threecorner/internal/cin"
)

// policyKey handles the editing, paging and mode keys, and printable keys
// outside the keypad path.
func (e *Engine) policyKey(ctx context.Context, k Key) (bool, error) {
	switch k.Code {
	case VKEscape:
		return e.escape(), nil
	case VKBack:
		return e.backspace(), nil
	case VKSpace:
		handled, err := e.space(ctx, k)
		if handled || err != nil || e.modes.Chinese() {
			return handled, err
		}
	case VKReturn:
		return e.enter(ctx)
	case VKPrior, VKNext:
		return e.turnPage(k.Code == VKNext), nil
	case VKUp:
		if e.pager.shown {
			if e.pager.moveCursor(-1) {
				e.host.ShowCandidates(e.pager.view())
			}
			return true, nil
		}
		return false, nil
	case VKDown:
		if e.pager.shown {
			if e.pager.moveCursor(1) {
				e.host.ShowCandidates(e.pager.view())
			}
			return true, nil
		}
		return e.reselect(ctx)
	case VKLeft, VKRight, VKHome, VKEnd, VKDelete:
		return e.editInline(k.Code), nil
	}

	if !k.Printable() {
		return false, nil
	}
	if !e.modes.Chinese() {
		if !e.modes.Has(FullShape) {
			return false, nil
		}
		e.emit(e.widen(string(k.Char)), 0)
		return true, nil
	}
	return e.printable(ctx, k)
}

// printable handles a printable key in Chinese mode.
func (e *Engine) printable(ctx context.Context, k Key) (bool, error) {
	c := k.Char
	switch {
	case e.modes.Any(MenuSymbols | DayiSymbols):
		return e.symbolKey(ctx, k)
	case e.modes.Has(MenuShown):
		if i, ok := e.pager.index(c); ok {
			return true, e.selectAt(ctx, i)
		}
		return true, nil
	case e.modes.Has(TempEnglish):
		return e.codeKey(ctx, k, c, false)
	}

	lower := unicode.ToLower(c)
	idle := !e.composing() && !e.pager.shown
	switch {
	case idle && c == e.settings.MenuKey:
		return true, e.openMenu()
	case idle && c == dayiMarker:
		return true, e.enterDayiSymbols()
	case idle && k.Down(ModShift) && unicode.IsLetter(c):
		if err := e.modes.Set(TempEnglish, true); err != nil {
			return true, err
		}
		e.modes.Clear(Phrase)
		return e.codeKey(ctx, k, c, false)
	}

	if e.pager.shown && e.pager.selKey(lower) {
		return e.codeKey(ctx, k, lower, false)
	}
	t, err := e.table(ctx, cin.KindPrimary, e.settings.Scheme)
	if err != nil {
		return true, err
	}
	if t.IsUnit(string(lower)) {
		return e.codeKey(ctx, k, lower, false)
	}
	if e.composing() {
		return true, nil
	}

	e.modes.Clear(Phrase)
	e.hideList()
	s, ok := punctuation[c]
	if !ok {
		s = string(c)
	}
	return true, e.commit(ctx, s, false)
}

func (e *Engine) escape() bool {
	if e.composing() || e.pager.shown || e.modes.Any(Menu|Phrase|Homophone) {
		e.cancel()
		return true
	}
	return e.modes.Strategy() == BufferCommit && !e.buf.empty()
}

func (e *Engine) backspace() bool {
	switch {
	case e.modes.Any(MenuSymbols|DayiSymbols) && e.comp.len() <= 1:
		e.cancel()
		return true
	case e.comp.len() > 0:
		e.hideList()
		e.popUnit()
		if e.comp.len() == 0 {
			e.cancel()
		}
		return true
	case e.pager.shown || e.modes.Any(Menu|Phrase|Homophone):
		e.cancel()
		return true
	case e.modes.Strategy() == BufferCommit && !e.buf.empty():
		e.buf.deleteOne(false)
		e.render()
		return true
	}
	return false
}

func (e *Engine) space(ctx context.Context, k Key) (bool, error) {
	if !e.modes.Chinese() {
		if k.Down(ModShift) {
			if e.modes.Has(FullShape) {
				e.modes.Clear(FullShape)
			} else if err := e.modes.Set(FullShape, true); err != nil {
				return true, err
			}
			return true, nil
		}
		return false, nil
	}

	if e.pager.shown {
		return true, e.selectAt(ctx, e.pager.cursor)
	}
	if e.modes.Has(TempEnglish) {
		e.emit(string(e.comp.display)+" ", e.buf.pending)
		e.reset()
		return true, nil
	}
	if e.comp.len() == 0 || e.modes.Any(Menu) {
		return e.composing() || e.modes.Any(Menu), nil
	}

	cands, err := e.lookup(ctx, e.comp.code(), e.comp.magic)
	if err != nil {
		return true, err
	}
	if len(cands) > 0 {
		return true, e.resolve(ctx, cands, e.comp.magic)
	}
	return true, nil
}

// enter handles Enter when it does not complete a composition.
func (e *Engine) enter(ctx context.Context) (bool, error) {
	if e.pager.shown {
		return true, e.selectAt(ctx, e.pager.cursor)
	}
	if e.composing() || e.modes.Any(Menu) {
		return true, nil
	}
	if e.modes.Strategy() == BufferCommit && !e.buf.empty() {
		e.flushInline()
		return true, nil
	}
	return false, nil
}

func (e *Engine) turnPage(next bool) bool {
	if !e.pager.shown {
		return e.composing()
	}
	moved := e.pager.prev()
	if next {
		moved = e.pager.next()
	}
	if moved {
		e.host.ShowCandidates(e.pager.view())
	}
	return true
}

// editInline moves the inline cursor or deletes at it.
func (e *Engine) editInline(code int) bool {
	if e.modes.Strategy() != BufferCommit || e.composing() || e.buf.empty() {
		return false
	}
	switch code {
	case VKLeft:
		e.buf.move(-1)
	case VKRight:
		e.buf.move(1)
	case VKHome:
		e.buf.move(-len(e.buf.text))
	case VKEnd:
		e.buf.move(len(e.buf.text))
	case VKDelete:
		e.buf.deleteOne(true)
	}
	e.render()
	return true
}

// reselect lists the candidates of the annotated inline rune at the
// cursor so it can be replaced.
func (e *Engine) reselect(ctx context.Context) (bool, error) {
	if e.modes.Strategy() != BufferCommit || e.composing() || e.buf.empty() {
		return false, nil
	}
	code := e.buf.codes[e.buf.target()]
	if code == "" {
		return true, nil
	}
	cands, err := e.lookup(ctx, code, false)
	if err != nil {
		return true, err
	}
	if len(cands) == 0 {
		return true, nil
	}
	if err := e.modes.Set(SelCand, true); err != nil {
		return true, err
	}
	e.showList(cands)
	return true, nil
}
