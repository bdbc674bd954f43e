package host

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/mattn/go-runewidth"

	"threecorner/internal/ime"
	"threecorner/internal/logging"
)

// KeyProcessor is the engine side of a terminal session.
type KeyProcessor interface {
	ProcessKey(ctx context.Context, k ime.Key, up bool) (bool, error)
	Modes() ime.Modes
}

// keypadRunes are the main-row characters delivered as keypad keys.
var keypadRunes = map[rune]int{
	'*': ime.VKMultiply,
	'+': ime.VKAdd,
	'-': ime.VKSubtract,
	'.': ime.VKDecimal,
	'/': ime.VKDivide,
}

var namedTcellKeys = map[tcell.Key]int{
	tcell.KeyEnter:      ime.VKReturn,
	tcell.KeyBackspace:  ime.VKBack,
	tcell.KeyBackspace2: ime.VKBack,
	tcell.KeyEscape:     ime.VKEscape,
	tcell.KeyPgUp:       ime.VKPrior,
	tcell.KeyPgDn:       ime.VKNext,
	tcell.KeyUp:         ime.VKUp,
	tcell.KeyDown:       ime.VKDown,
	tcell.KeyLeft:       ime.VKLeft,
	tcell.KeyRight:      ime.VKRight,
	tcell.KeyHome:       ime.VKHome,
	tcell.KeyEnd:        ime.VKEnd,
	tcell.KeyDelete:     ime.VKDelete,
}

// TranslateTcellKey converts a terminal key event. With keypad set, the
// digits and + - * / . are delivered as keypad keys with NumLock on, since
// terminals cannot tell the keypad apart from the main keys.
func TranslateTcellKey(ev *tcell.EventKey, keypad bool) (ime.Key, bool) {
	var k ime.Key
	mods := ev.Modifiers()
	if mods&tcell.ModShift != 0 {
		k.Modifiers |= ime.ModShift
	}
	if mods&tcell.ModCtrl != 0 {
		k.Modifiers |= ime.ModControl
	}
	if mods&tcell.ModAlt != 0 {
		k.Modifiers |= ime.ModAlt
	}

	if code, ok := namedTcellKeys[ev.Key()]; ok {
		k.Code = code
		return k, true
	}
	if ev.Key() != tcell.KeyRune {
		return k, false
	}

	r := ev.Rune()
	k.Char = r
	if keypad {
		if r >= '0' && r <= '9' {
			k.Code = ime.VKNumpad0 + int(r-'0')
			k.Toggles |= ime.ToggleNumLock
			return k, true
		}
		if code, ok := keypadRunes[r]; ok {
			k.Code = code
			k.Toggles |= ime.ToggleNumLock
			return k, true
		}
	}
	if r >= 'A' && r <= 'Z' {
		k.Modifiers |= ime.ModShift
	}
	k.Code = charCode(r)
	return k, true
}

// Terminal is an ime.Host drawing on a tcell screen. Committed text
// accumulates at the top; the composition, the candidate page and a status
// line are drawn below it.
type Terminal struct {
	screen tcell.Screen
	keypad bool
	log    *logging.Logger

	mu       sync.Mutex
	text     []rune
	comp     string
	cursor   int
	cands    *ime.Candidates
	msg      string
	msgUntil time.Time
	modes    ime.Modes
}

// NewTerminal returns a host drawing on an initialized screen.
func NewTerminal(screen tcell.Screen, keypad bool, log *logging.Logger) *Terminal {
	if log == nil {
		log = logging.Default()
	}
	return &Terminal{screen: screen, keypad: keypad, log: log.WithComponent("terminal")}
}

// Capabilities implements ime.Host.
func (t *Terminal) Capabilities() ime.Capabilities {
	return ime.Capabilities{InlineMessages: true}
}

// SetComposition implements ime.Host.
func (t *Terminal) SetComposition(text string, cursor int) {
	t.mu.Lock()
	t.comp, t.cursor = text, cursor
	t.mu.Unlock()
}

// Commit implements ime.Host.
func (t *Terminal) Commit(text string) {
	t.mu.Lock()
	t.text = append(t.text, []rune(text)...)
	t.mu.Unlock()
}

// ShowCandidates implements ime.Host.
func (t *Terminal) ShowCandidates(c ime.Candidates) {
	t.mu.Lock()
	t.cands = &c
	t.mu.Unlock()
}

// HideCandidates implements ime.Host.
func (t *Terminal) HideCandidates() {
	t.mu.Lock()
	t.cands = nil
	t.mu.Unlock()
}

// ShowMessage implements ime.Host.
func (t *Terminal) ShowMessage(msg string, d time.Duration) {
	t.mu.Lock()
	t.msg = msg
	t.msgUntil = time.Now().Add(d)
	t.mu.Unlock()
}

// Text returns everything committed so far, including keys the engine
// passed through.
func (t *Terminal) Text() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return string(t.text)
}

// Run delivers terminal keys to p until ctx is done, Ctrl+C is pressed or
// the screen is finalized. F12 stands in for a lone Shift tap.
func (t *Terminal) Run(ctx context.Context, p KeyProcessor) error {
	events := make(chan tcell.Event, 100)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			ev := t.screen.PollEvent()
			if ev == nil {
				close(events)
				return
			}
			select {
			case events <- ev:
			case <-done:
				return
			}
		}
	}()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	t.draw(p.Modes())
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !t.handle(ctx, p, ev) {
				return nil
			}
		case <-ticker.C:
		}
		t.draw(p.Modes())
	}
}

// handle processes one event and reports whether to keep running.
func (t *Terminal) handle(ctx context.Context, p KeyProcessor, ev tcell.Event) bool {
	switch ev := ev.(type) {
	case *tcell.EventKey:
		if ev.Key() == tcell.KeyCtrlC ||
			(ev.Key() == tcell.KeyRune && ev.Rune() == 'c' && ev.Modifiers()&tcell.ModCtrl != 0) {
			return false
		}
		if ev.Key() == tcell.KeyF12 {
			shift := ime.Key{Code: ime.VKShift}
			t.process(ctx, p, shift)
			return true
		}
		k, ok := TranslateTcellKey(ev, t.keypad)
		if !ok {
			return true
		}
		if !t.process(ctx, p, k) {
			t.passThrough(k)
		}
	case *tcell.EventResize:
		t.screen.Sync()
	}
	return true
}

// process sends a press and a release, as terminals report no key-ups.
func (t *Terminal) process(ctx context.Context, p KeyProcessor, k ime.Key) bool {
	handled, err := p.ProcessKey(ctx, k, false)
	if err != nil {
		t.log.Warn("key processing failed", "code", k.Code, "error", err)
		t.ShowMessage(err.Error(), 3*time.Second)
	}
	p.ProcessKey(ctx, k, true)
	return handled
}

// passThrough applies a key the engine did not consume to the text.
func (t *Terminal) passThrough(k ime.Key) {
	t.mu.Lock()
	defer t.mu.Unlock()

	switch {
	case k.Code == ime.VKBack:
		if n := len(t.text); n > 0 {
			t.text = t.text[:n-1]
		}
	case k.Code == ime.VKReturn:
		t.text = append(t.text, '\n')
	case k.Printable():
		t.text = append(t.text, k.Char)
	}
}

func (t *Terminal) draw(modes ime.Modes) {
	t.mu.Lock()
	defer t.mu.Unlock()

	s := t.screen
	s.Clear()
	width, height := s.Size()
	if width <= 0 || height <= 0 {
		return
	}

	x, y := 0, 0
	for _, r := range t.text {
		if r == '\n' {
			x, y = 0, y+1
			continue
		}
		w := runewidth.RuneWidth(r)
		if x+w > width {
			x, y = 0, y+1
		}
		if y >= height-3 {
			break
		}
		s.SetContent(x, y, r, nil, tcell.StyleDefault)
		x += w
	}

	compY := min(y+1, height-3)
	prompt := "> "
	end := drawString(s, 0, compY, prompt, tcell.StyleDefault.Dim(true))
	compStyle := tcell.StyleDefault.Underline(true)
	drawString(s, end, compY, t.comp, compStyle)
	s.ShowCursor(end+runewidth.StringWidth(string([]rune(t.comp)[:min(t.cursor, len([]rune(t.comp)))])), compY)

	if c := t.cands; c != nil {
		cx := 0
		for i, item := range c.Items {
			style := tcell.StyleDefault
			if i == c.Cursor {
				style = style.Reverse(true)
			}
			label := ""
			if i < len(c.Labels) && c.Labels[i] != 0 {
				label = string(c.Labels[i]) + "."
			}
			cx = drawString(s, cx, compY+1, label+item, style) + 1
		}
		if c.Pages > 1 {
			drawString(s, cx, compY+1, fmt.Sprintf("(%d/%d)", c.Page+1, c.Pages), tcell.StyleDefault.Dim(true))
		}
	}

	lang := "中"
	if !modes.Chinese() {
		lang = "英"
	}
	if modes.Has(ime.FullShape) {
		lang += " 全"
	}
	status := fmt.Sprintf("[%s] %s", lang, modes)
	if t.msg != "" && time.Now().Before(t.msgUntil) {
		status += "  " + t.msg
	}
	drawString(s, 0, height-1, status, tcell.StyleDefault.Reverse(true))
	s.Show()
}

// drawString draws str at x, y and returns the column after it.
func drawString(s tcell.Screen, x, y int, str string, style tcell.Style) int {
	for _, r := range str {
		s.SetContent(x, y, r, nil, style)
		x += runewidth.RuneWidth(r)
	}
	return x
}
