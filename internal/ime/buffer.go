package ime

// composition is the in-progress code sequence and its display form.
type composition struct {
	codes   []rune
	display []rune
	magic   bool // a wildcard marker was typed
}

func (c *composition) len() int { return len(c.codes) }

func (c *composition) code() string { return string(c.codes) }

func (c *composition) last() string {
	if len(c.codes) == 0 {
		return ""
	}
	return string(c.codes[len(c.codes)-1])
}

func (c *composition) push(code rune, shown string) {
	c.codes = append(c.codes, code)
	c.display = append(c.display, []rune(shown)...)
}

// pop removes the last code and width display runes.
func (c *composition) pop(width int) {
	if len(c.codes) == 0 {
		return
	}
	c.codes = c.codes[:len(c.codes)-1]
	if width > len(c.display) {
		width = len(c.display)
	}
	c.display = c.display[:len(c.display)-width]
}

func (c *composition) reset() {
	c.codes = c.codes[:0]
	c.display = c.display[:0]
	c.magic = false
}

// inline is the host-rendered text edited in BufferCommit strategy. The
// pending span holds the current composition and ends at the cursor.
type inline struct {
	text    []rune
	codes   []string // originating raw code per rune, "" if unknown
	cursor  int
	pending int
}

func (b *inline) String() string { return string(b.text) }

func (b *inline) empty() bool { return len(b.text) == 0 }

// replace removes n runes before the cursor and inserts s there.
func (b *inline) replace(n int, s string) {
	if n > b.cursor {
		n = b.cursor
	}
	ins := []rune(s)
	start := b.cursor - n

	text := make([]rune, 0, len(b.text)-n+len(ins))
	text = append(text, b.text[:start]...)
	text = append(text, ins...)
	text = append(text, b.text[b.cursor:]...)

	codes := make([]string, 0, len(text))
	codes = append(codes, b.codes[:start]...)
	codes = append(codes, make([]string, len(ins))...)
	codes = append(codes, b.codes[b.cursor:]...)

	b.text, b.codes = text, codes
	b.cursor = start + len(ins)
}

// appendPending extends the pending span with s.
func (b *inline) appendPending(s string) {
	b.replace(0, s)
	b.pending += len([]rune(s))
}

// removePending drops the last n runes of the pending span.
func (b *inline) removePending(n int) {
	if n > b.pending {
		n = b.pending
	}
	b.replace(n, "")
	b.pending -= n
}

// commit replaces n runes before the cursor with s and ends the pending
// span.
func (b *inline) commit(n int, s string) {
	b.replace(n, s)
	b.pending = 0
}

// deleteOne removes the rune at the cursor when forward is set, else the
// rune before it.
func (b *inline) deleteOne(forward bool) {
	if forward {
		if b.cursor >= len(b.text) {
			return
		}
		b.cursor++
	}
	if b.cursor == 0 {
		return
	}
	b.replace(1, "")
}

// annotate records code as the origin of the rune ending at pos.
func (b *inline) annotate(pos int, code string) {
	if pos >= 1 && pos <= len(b.codes) {
		b.codes[pos-1] = code
	}
}

// target returns the index of the rune at the cursor, or of the one before
// it when the cursor is at the end.
func (b *inline) target() int {
	if b.cursor < len(b.text) {
		return b.cursor
	}
	return len(b.text) - 1
}

func (b *inline) move(delta int) {
	b.cursor += delta
	if b.cursor < 0 {
		b.cursor = 0
	}
	if b.cursor > len(b.text) {
		b.cursor = len(b.text)
	}
}

// flush empties the buffer and returns its text.
func (b *inline) flush() string {
	s := string(b.text)
	*b = inline{}
	return s
}
