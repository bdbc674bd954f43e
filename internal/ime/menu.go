package ime

import (
	"context"

	"threecorner/internal/cin"
)

type menuAction int

const (
	menuHomophone menuAction = iota
	menuSymbols
	menuSimplified
	menuReverse
)

// openMenu lists the function menu.
func (e *Engine) openMenu() error {
	e.menu = e.menu[:0]
	var labels []string
	if e.settings.HomophoneQuery {
		e.menu = append(e.menu, menuHomophone)
		labels = append(labels, e.text.MenuHomophone)
	}
	e.menu = append(e.menu, menuSymbols, menuSimplified, menuReverse)
	labels = append(labels,
		e.text.MenuSymbols,
		e.text.toggle(e.text.MenuSimplified, e.settings.SimplifiedOutput),
		e.text.toggle(e.text.MenuReverse, e.settings.ReverseLookup),
	)

	if err := e.modes.Set(Menu|MenuShown, true); err != nil {
		return err
	}
	e.showList(labels)
	return nil
}

func (e *Engine) runMenu(i int) error {
	if i >= len(e.menu) {
		return nil
	}
	action := e.menu[i]
	e.menu = nil
	e.hideList()
	e.modes.Clear(MenuShown)

	switch action {
	case menuHomophone:
		e.modes.Clear(Menu)
		if err := e.modes.Set(Homophone, true); err != nil {
			return err
		}
		e.tables.Select(cin.KindHomophone, e.settings.HomophoneScheme)
	case menuSymbols:
		if err := e.modes.Set(MenuSymbols, true); err != nil {
			return err
		}
		e.pushCode(menuMarker, "")
	case menuSimplified:
		e.settings.SimplifiedOutput = !e.settings.SimplifiedOutput
		e.notify(e.text.toggle(e.text.MenuSimplified, e.settings.SimplifiedOutput))
		e.reset()
	case menuReverse:
		e.settings.ReverseLookup = !e.settings.ReverseLookup
		if e.settings.ReverseLookup && e.settings.ReverseScheme != "" {
			e.tables.Select(cin.KindReverse, e.settings.ReverseScheme)
		}
		e.notify(e.text.toggle(e.text.MenuReverse, e.settings.ReverseLookup))
		e.reset()
	}
	return nil
}

// enterDayiSymbols starts a symbol composition behind the '=' marker.
func (e *Engine) enterDayiSymbols() error {
	if err := e.modes.Set(Menu|DayiSymbols, true); err != nil {
		return err
	}
	e.pushCode(dayiMarker, "")
	return nil
}

// symbolKey handles a key typed in a symbol overlay.
func (e *Engine) symbolKey(ctx context.Context, k Key) (bool, error) {
	c := k.Char
	if c == 0 {
		return false, nil
	}
	if e.pager.shown {
		if i, ok := e.pager.index(c); ok {
			return true, e.accept(ctx, e.pager.list[i], false)
		}
	}
	if e.comp.len() >= e.settings.MaxCharLength {
		return true, nil
	}

	e.pushCode(c, string(c))
	cands := symbolCandidates(e.comp.codes[0], string(e.comp.codes[1:]))
	switch len(cands) {
	case 0:
		e.hideList()
	case 1:
		return true, e.accept(ctx, cands[0], true)
	default:
		e.showList(cands)
	}
	return true, nil
}

// queryHomophones lists the homophones of ch, first asking for its
// pronunciation when it has several.
func (e *Engine) queryHomophones(ctx context.Context, ch string) error {
	t, err := e.table(ctx, cin.KindHomophone, e.settings.HomophoneScheme)
	if err != nil {
		e.log.Warn("homophone table unavailable", "error", err)
		return e.commit(ctx, ch, false)
	}

	prons := t.Codes(ch)
	switch len(prons) {
	case 0:
		return e.commit(ctx, ch, false)
	case 1:
		return e.listHomophones(ctx, t, prons[0], ch)
	}

	if err := e.modes.Set(HomophoneSelPinyin, true); err != nil {
		return err
	}
	e.pinyin = prons
	shown := make([]string, len(prons))
	for i, p := range prons {
		shown[i] = t.Render(p)
	}
	e.showList(shown)
	return nil
}

func (e *Engine) pickPronunciation(ctx context.Context, i int) error {
	if i >= len(e.pinyin) {
		return nil
	}
	t, err := e.table(ctx, cin.KindHomophone, e.settings.HomophoneScheme)
	if err != nil {
		return err
	}
	pron := e.pinyin[i]
	e.pinyin = nil
	e.modes.Clear(HomophoneSelPinyin)
	return e.listHomophones(ctx, t, pron, "")
}

func (e *Engine) listHomophones(ctx context.Context, t *cin.Table, pron, fallback string) error {
	cands, err := t.Lookup(pron)
	if err != nil {
		if fallback == "" {
			e.cancel()
			return nil
		}
		return e.commit(ctx, fallback, false)
	}
	e.homophone = true
	e.wildcard = false
	e.showList(cands)
	return nil
}
