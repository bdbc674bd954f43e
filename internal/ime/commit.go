package ime

import (
	"context"
	"errors"

	"threecorner/internal/cin"
)

// selectAt acts on the list entry at index i.
func (e *Engine) selectAt(ctx context.Context, i int) error {
	if i < 0 || i >= len(e.pager.list) {
		return nil
	}
	switch {
	case e.modes.Has(MenuShown):
		return e.runMenu(i)
	case e.modes.Has(HomophoneSelPinyin):
		return e.pickPronunciation(ctx, i)
	}
	return e.accept(ctx, e.pager.list[i], false)
}

// accept takes s as the result of the composition. In the homophone
// overlay the first accepted character starts a homophone query instead
// of being committed.
func (e *Engine) accept(ctx context.Context, s string, auto bool) error {
	if e.modes.Has(Homophone) && !e.homophone {
		return e.queryHomophones(ctx, s)
	}
	return e.commit(ctx, s, auto)
}

// commit emits s with its side effects and resets the composition.
func (e *Engine) commit(ctx context.Context, s string, auto bool) error {
	caps := e.host.Capabilities()
	ev := CommitEvent{
		Scheme:   e.settings.Scheme,
		Code:     e.comp.code(),
		Original: s,
		Auto:     auto,
	}

	if e.wildcard {
		ev.Wildcard = true
		if !caps.UILess {
			e.deferMessage(e.primaryCode(s))
		}
		e.wildcard = false
	}

	if e.settings.ReverseLookup {
		ev.ReverseLookup = e.reverseLookup(s, caps)
	}

	if e.settings.HomophoneQuery && e.homophone {
		e.homophone = false
		ev.Homophone = true
		if !caps.UILess {
			e.deferMessage(e.primaryCode(s))
		}
	}

	text := s
	if e.settings.SimplifiedOutput && e.conv != nil {
		out, err := e.conv.Convert(s)
		if err != nil {
			e.log.Warn("simplified conversion failed", "error", err)
		} else {
			text = out
			ev.Simplified = true
		}
	}
	ev.Text = text

	if e.modes.Strategy() == BufferCommit {
		e.commitInline(text)
	} else {
		e.host.Commit(text)
	}

	e.lastCommit = s
	phrase := e.settings.ShowPhrase && !e.modes.Has(SelCand) && e.modes.Chinese()
	e.reset()
	e.metrics.Commit()
	if e.record != nil {
		e.record(ctx, ev)
	}
	if phrase {
		e.showPhrases(s)
	}
	return nil
}

// commitInline replaces the composition span of the inline buffer with
// text and annotates the inserted runes with their codes.
func (e *Engine) commitInline(text string) {
	selcand := e.modes.Has(SelCand)
	symbols := e.modes.Has(MenuSymbols)

	remove := 0
	switch {
	case selcand:
		e.buf.deleteOne(e.buf.cursor < len(e.buf.text))
	case symbols:
		remove = e.comp.len() - 1
	case e.modes.Has(DayiSymbols):
		remove = e.typedWidth() - 1
	default:
		remove = e.typedWidth()
	}
	e.buf.commit(remove, text)

	if selcand {
		return
	}
	codes := e.comp.codes
	runes := []rune(text)
	if len(runes) == 1 {
		e.buf.annotate(e.buf.cursor, string(codes))
		return
	}
	for i := range runes {
		pos := e.buf.cursor - (len(runes) - 1 - i)
		if !symbols {
			e.buf.annotate(pos, string(codes))
			continue
		}
		j := i
		if len(codes) > 0 && codes[0] == menuMarker {
			j++
		}
		if j < len(codes) {
			e.buf.annotate(pos, string(codes[j]))
		}
	}
}

// emit sends text without commit side effects. remove is the inline span
// it replaces in BufferCommit strategy.
func (e *Engine) emit(text string, remove int) {
	if e.modes.Strategy() == BufferCommit {
		e.buf.commit(remove, text)
		e.render()
		return
	}
	e.host.Commit(text)
}

// primaryCode returns the codes producing s in the primary table.
func (e *Engine) primaryCode(s string) string {
	if t := e.loaded(); t != nil {
		return t.CodeOf(s)
	}
	return ""
}

// reverseLookup shows the reverse-table code of s and reports whether one
// was found.
func (e *Engine) reverseLookup(s string, caps Capabilities) bool {
	scheme := e.settings.ReverseScheme
	if scheme == "" {
		e.status(e.text.ReverseMissing, caps)
		return false
	}

	t, err := e.tables.Table(cin.KindReverse, scheme)
	switch {
	case err == nil:
		code := t.CodeOf(s)
		if code == "" {
			return false
		}
		if caps.InlineMessages {
			e.host.ShowMessage(code, e.settings.MessageDuration)
		} else {
			e.deferMessage(code)
		}
		return true
	case errors.Is(err, cin.ErrTableMissing):
		e.status(e.text.ReverseMissing, caps)
	default:
		e.tables.Select(cin.KindReverse, scheme)
		e.status(e.text.ReverseLoading, caps)
	}
	return false
}

// showPhrases lists the phrase continuations of s, if the phrase table is
// loaded and has any.
func (e *Engine) showPhrases(s string) {
	if err := e.modes.Set(Phrase, true); err != nil {
		e.log.Debug("phrase overlay rejected", "error", err)
		return
	}
	scheme := e.settings.PhraseScheme
	if scheme == "" {
		return
	}
	t, err := e.tables.Table(cin.KindPhrase, scheme)
	if errors.Is(err, cin.ErrTableNotReady) {
		e.tables.Select(cin.KindPhrase, scheme)
		return
	}
	if err != nil {
		return
	}
	phrases, err := t.Lookup(s)
	if err != nil {
		return
	}
	e.showList(phrases)
}

func (e *Engine) deferMessage(msg string) {
	if msg != "" {
		e.deferred = msg
	}
}

// status schedules a status message for key release unless the host has
// no UI.
func (e *Engine) status(msg string, caps Capabilities) {
	if !caps.UILess {
		e.deferMessage(msg)
	}
}

// notify shows msg now if the host can, else on key release.
func (e *Engine) notify(msg string) {
	caps := e.host.Capabilities()
	switch {
	case caps.UILess:
	case caps.InlineMessages:
		e.host.ShowMessage(msg, e.settings.MessageDuration)
	default:
		e.deferMessage(msg)
	}
}

// SelectCandidate acts on item i of the visible candidate page, for hosts
// whose candidate window can be clicked. It reports whether a list was
// shown.
func (e *Engine) SelectCandidate(ctx context.Context, i int) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.pager.shown {
		return false, nil
	}
	first := e.pager.page * e.pager.perPage
	if i < 0 || i >= e.pager.perPage {
		return true, nil
	}
	return true, e.selectAt(ctx, first+i)
}
