package ime

// FilterKeyDown reports whether the engine wants a key. It does not change
// any state.
func (e *Engine) FilterKeyDown(k Key) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	if k.Toggled(ToggleNumLock) && k.Code == VKDecimal {
		return true
	}
	if e.numpadCode(k) {
		return true
	}
	if e.enterCompletes(k) {
		return true
	}
	return e.policyFilter(k)
}

// numpadCode reports whether k takes the keypad code path.
func (e *Engine) numpadCode(k Key) bool {
	return k.Toggled(ToggleNumLock) && k.Numpad() &&
		e.modes.Chinese() && !e.modes.Has(TempEnglish)
}

// enterCompletes reports whether Enter force-completes the composition:
// with no candidates shown, either a Chinese composition outside the menu
// or a temporary English composition with the menu hidden.
func (e *Engine) enterCompletes(k Key) bool {
	if k.Code != VKReturn || e.pager.shown {
		return false
	}
	chinese := e.modes.Chinese() && e.comp.len() >= 1 && !e.modes.Has(Menu)
	english := e.modes.Has(TempEnglish) && e.composing() && !e.modes.Has(MenuShown)
	return chinese || english
}

func (e *Engine) composing() bool {
	return e.comp.len() > 0 || len(e.comp.display) > 0
}

// policyFilter is the filtering shared by every key the code paths above
// do not claim.
func (e *Engine) policyFilter(k Key) bool {
	if k.Code == VKShift || k.Down(ModControl|ModAlt) {
		return false
	}

	busy := e.composing() || e.pager.shown || e.modes.Any(Menu|Phrase)
	if busy {
		switch k.Code {
		case VKBack, VKEscape, VKSpace, VKPrior, VKNext, VKUp, VKDown, VKReturn:
			return true
		}
	}

	if e.modes.Chinese() {
		if k.Printable() && k.Code != VKSpace {
			return true
		}
	} else {
		if k.Code == VKSpace && k.Down(ModShift) {
			return true
		}
		if e.modes.Has(FullShape) && k.Printable() {
			return true
		}
	}

	if e.modes.Strategy() == BufferCommit && !e.buf.empty() {
		switch k.Code {
		case VKReturn, VKBack, VKDelete, VKLeft, VKRight, VKHome, VKEnd, VKDown, VKEscape:
			return true
		}
	}
	return false
}
