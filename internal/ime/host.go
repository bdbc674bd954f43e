package ime

import "time"

// Capabilities describes what a host can display.
type Capabilities struct {
	// UILess hosts render no candidate window or messages of their own.
	UILess bool

	// InlineMessages hosts can show a message immediately, while the key
	// that triggered it is still down.
	InlineMessages bool
}

// Candidates is one visible page of a candidate list.
type Candidates struct {
	Items  []string
	Labels []rune // selection key per item
	Cursor int    // page-relative
	Page   int
	Pages  int
}

// Host is the text service an engine drives. Calls are made from the
// goroutine that delivers key events.
type Host interface {
	Capabilities() Capabilities

	// SetComposition shows the uncommitted text with the caret at cursor
	// (in runes).
	SetComposition(text string, cursor int)

	// Commit inserts text into the application.
	Commit(text string)

	// ShowCandidates displays a candidate page; HideCandidates removes it.
	ShowCandidates(c Candidates)
	HideCandidates()

	// ShowMessage displays a transient message for d.
	ShowMessage(msg string, d time.Duration)
}
