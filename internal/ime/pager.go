package ime

import "unicode"

// pager pages a candidate list and maps selection keys to positions.
type pager struct {
	keys    []rune
	perPage int

	list   []string
	shown  bool
	page   int
	cursor int // absolute index into list
}

func newPager(keys string, perPage int) pager {
	if perPage <= 0 {
		perPage = 9
	}
	return pager{keys: []rune(keys), perPage: perPage}
}

// selKey reports whether r is one of the selection keys.
func (p *pager) selKey(r rune) bool {
	_, ok := p.position(r)
	return ok
}

func (p *pager) position(r rune) (int, bool) {
	r = unicode.ToLower(r)
	for i, k := range p.keys {
		if unicode.ToLower(k) == r {
			return i, true
		}
	}
	return 0, false
}

// index returns the list index selected by key r. The position is used as
// is, without the page offset.
func (p *pager) index(r rune) (int, bool) {
	i, ok := p.position(r)
	if !ok || i >= p.perPage || i >= len(p.list) {
		return 0, false
	}
	return i, true
}

func (p *pager) pick(r rune) (string, bool) {
	i, ok := p.index(r)
	if !ok {
		return "", false
	}
	return p.list[i], true
}

func (p *pager) set(list []string) {
	p.list = append(p.list[:0], list...)
	p.shown = len(list) > 0
	p.page, p.cursor = 0, 0
}

// resize changes the selection keys and page size and keeps the list.
// Empty keys keep the current ones.
func (p *pager) resize(keys string, perPage int) {
	if keys != "" {
		p.keys = []rune(keys)
	}
	if perPage <= 0 {
		perPage = 9
	}
	p.perPage = perPage
	p.page = p.cursor / perPage
}

func (p *pager) reset() {
	p.list = p.list[:0]
	p.shown = false
	p.page, p.cursor = 0, 0
}

func (p *pager) pages() int {
	return (len(p.list) + p.perPage - 1) / p.perPage
}

func (p *pager) next() bool {
	if p.page+1 >= p.pages() {
		return false
	}
	p.page++
	p.cursor = p.page * p.perPage
	return true
}

func (p *pager) prev() bool {
	if p.page == 0 {
		return false
	}
	p.page--
	p.cursor = p.page * p.perPage
	return true
}

// moveCursor moves the cursor within the current page.
func (p *pager) moveCursor(delta int) bool {
	first := p.page * p.perPage
	last := min(first+p.perPage, len(p.list)) - 1
	c := p.cursor + delta
	if c < first || c > last {
		return false
	}
	p.cursor = c
	return true
}

func (p *pager) current() (string, bool) {
	if !p.shown || p.cursor >= len(p.list) {
		return "", false
	}
	return p.list[p.cursor], true
}

func (p *pager) view() Candidates {
	first := p.page * p.perPage
	last := min(first+p.perPage, len(p.list))
	items := append([]string(nil), p.list[first:last]...)

	labels := make([]rune, len(items))
	for i := range items {
		if i < len(p.keys) {
			labels[i] = p.keys[i]
		}
	}
	return Candidates{
		Items:  items,
		Labels: labels,
		Cursor: p.cursor - first,
		Page:   p.page,
		Pages:  p.pages(),
	}
}
