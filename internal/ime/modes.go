package ime

import (
	"errors"
	"fmt"
	"strings"
)

// ErrIllegalMode is returned when an overlay cannot be combined with the
// current modes.
var ErrIllegalMode = errors.New("ime: illegal mode combination")

// Language is the primary input language.
type Language int

const (
	Chinese Language = iota
	English
)

func (l Language) String() string {
	if l == English {
		return "english"
	}
	return "chinese"
}

// Strategy is how committed text reaches the host.
type Strategy int

const (
	// DirectCommit sends every commit to the host immediately.
	DirectCommit Strategy = iota
	// BufferCommit edits an engine-owned inline buffer that is flushed to
	// the host on Enter.
	BufferCommit
)

// Overlay is a set of mode flags layered on top of the primary modes.
type Overlay uint16

const (
	TempEnglish Overlay = 1 << iota
	Menu
	MenuShown
	Phrase
	SelCand
	Homophone
	HomophoneSelPinyin
	MenuSymbols
	DayiSymbols
	FullShape
)

var overlayNames = []string{
	"temp-english", "menu", "menu-shown", "phrase", "selcand",
	"homophone", "homophone-pinyin", "menu-symbols", "dayi-symbols", "full-shape",
}

func (o Overlay) String() string {
	var names []string
	for i, name := range overlayNames {
		if o&(1<<i) != 0 {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, "|")
}

// chineseOnly lists the overlays that require the Chinese language.
const chineseOnly = TempEnglish | Menu | MenuShown | Phrase | SelCand |
	Homophone | HomophoneSelPinyin | MenuSymbols | DayiSymbols

// resetOverlays are cleared by a composition reset.
const resetOverlays = TempEnglish | Menu | MenuShown | SelCand | Homophone |
	HomophoneSelPinyin | MenuSymbols | DayiSymbols

// Modes is the language, commit strategy and overlay state of an engine.
// The zero value is Chinese with DirectCommit and no overlays.
type Modes struct {
	lang     Language
	strategy Strategy
	overlays Overlay
}

// Language returns the active language.
func (m Modes) Language() Language { return m.lang }

// Strategy returns the commit strategy.
func (m Modes) Strategy() Strategy { return m.strategy }

// Overlays returns the active overlays.
func (m Modes) Overlays() Overlay { return m.overlays }

// Has reports whether every overlay in o is set.
func (m Modes) Has(o Overlay) bool { return o != 0 && m.overlays&o == o }

// Any reports whether any overlay in o is set.
func (m Modes) Any(o Overlay) bool { return m.overlays&o != 0 }

// Chinese reports whether the Chinese language is active.
func (m Modes) Chinese() bool { return m.lang == Chinese }

// SetLanguage switches language and drops overlays that are not legal in
// the new language.
func (m *Modes) SetLanguage(l Language) {
	m.lang = l
	if l == English {
		m.overlays &^= chineseOnly
	} else {
		m.overlays &^= FullShape
	}
}

// SetStrategy sets the commit strategy.
func (m *Modes) SetStrategy(s Strategy) { m.strategy = s }

// Set turns overlay o on or off. Turning an overlay on is validated
// against the other modes; turning one off always succeeds.
func (m *Modes) Set(o Overlay, on bool) error {
	if !on {
		m.overlays &^= o
		if o&Homophone != 0 {
			m.overlays &^= HomophoneSelPinyin
		}
		return nil
	}
	if err := m.check(m.overlays | o); err != nil {
		return fmt.Errorf("set %s: %w", o, err)
	}
	m.overlays |= o
	return nil
}

// Clear turns off every overlay in o.
func (m *Modes) Clear(o Overlay) { m.overlays &^= o }

func (m Modes) check(o Overlay) error {
	switch {
	case m.lang == English && o&chineseOnly != 0:
		return fmt.Errorf("%w: %s requires chinese", ErrIllegalMode, o&chineseOnly)
	case m.lang == Chinese && o&FullShape != 0:
		return fmt.Errorf("%w: full-shape requires english", ErrIllegalMode)
	case o&HomophoneSelPinyin != 0 && o&Homophone == 0:
		return fmt.Errorf("%w: homophone-pinyin requires homophone", ErrIllegalMode)
	case o&MenuSymbols != 0 && o&DayiSymbols != 0:
		return fmt.Errorf("%w: menu-symbols and dayi-symbols are exclusive", ErrIllegalMode)
	}
	return nil
}

func (m Modes) String() string {
	s := m.lang.String()
	if m.strategy == BufferCommit {
		s += "/buffer"
	}
	return s + "/" + m.overlays.String()
}
