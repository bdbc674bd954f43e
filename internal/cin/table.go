package cin

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/emirpasic/gods/maps/treemap"
)

// Table is an in-memory code table. It is safe for concurrent readers once
// built; Add and SetKeyName must not race with lookups.
type Table struct {
	Name    string
	EName   string
	SelKeys string

	keyNames map[string]string
	chardefs *treemap.Map       // code -> []string, ordered by code
	encodes  map[string][]string // value -> codes, shortest first
}

// NewTable returns an empty table.
func NewTable(name string) *Table {
	return &Table{
		Name:     name,
		keyNames: make(map[string]string),
		chardefs: treemap.NewWithStringComparator(),
		encodes:  make(map[string][]string),
	}
}

// SetKeyName sets the display name of a single code unit.
func (t *Table) SetKeyName(code, name string) {
	t.keyNames[code] = name
}

// Add appends values to the candidates of code. Duplicates are ignored.
func (t *Table) Add(code string, values ...string) {
	t.insert(code, values, false)
}

// Prepend inserts values ahead of the existing candidates of code.
func (t *Table) Prepend(code string, values ...string) {
	t.insert(code, values, true)
}

func (t *Table) insert(code string, values []string, front bool) {
	var existing []string
	if v, ok := t.chardefs.Get(code); ok {
		existing = v.([]string)
	}

	fresh := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || contains(existing, v) || contains(fresh, v) {
			continue
		}
		fresh = append(fresh, v)
		t.addEncode(v, code)
	}
	if len(fresh) == 0 {
		return
	}

	if front {
		existing = append(fresh, existing...)
	} else {
		existing = append(existing, fresh...)
	}
	t.chardefs.Put(code, existing)
}

func (t *Table) addEncode(value, code string) {
	codes := t.encodes[value]
	if contains(codes, code) {
		return
	}
	codes = append(codes, code)
	sort.SliceStable(codes, func(i, j int) bool {
		return utf8.RuneCountInString(codes[i]) < utf8.RuneCountInString(codes[j])
	})
	t.encodes[value] = codes
}

// Len returns the number of codes in the table.
func (t *Table) Len() int {
	return t.chardefs.Size()
}

// IsUnit reports whether code is a recognized key unit with a display name.
func (t *Table) IsUnit(code string) bool {
	_, ok := t.keyNames[code]
	return ok
}

// KeyName returns the display name of a code unit, or the code itself.
func (t *Table) KeyName(code string) string {
	if name, ok := t.keyNames[code]; ok {
		return name
	}
	return code
}

// Render returns the display form of a code, one key name per code rune.
func (t *Table) Render(code string) string {
	var b strings.Builder
	for _, r := range code {
		b.WriteString(t.KeyName(string(r)))
	}
	return b.String()
}

// Lookup returns a copy of the candidates for code, or ErrNoMatch.
func (t *Table) Lookup(code string) ([]string, error) {
	v, ok := t.chardefs.Get(code)
	if !ok {
		return nil, ErrNoMatch
	}
	values := v.([]string)
	return append([]string(nil), values...), nil
}

// LookupWildcard returns the distinct candidates of every code matching
// pattern, in code order. The marker rune matches any run of code units,
// including an empty one. At most max results are returned; max <= 0
// means no limit.
func (t *Table) LookupWildcard(pattern string, marker rune, max int) []string {
	pat := []rune(pattern)
	prefix := string(pat[:indexRune(pat, marker)])

	var out []string
	it := t.chardefs.Iterator()
	for it.Next() {
		code := it.Key().(string)
		if code < prefix {
			continue
		}
		if !strings.HasPrefix(code, prefix) {
			break
		}
		if !matchWildcard(pat, []rune(code), marker) {
			continue
		}
		for _, v := range it.Value().([]string) {
			if contains(out, v) {
				continue
			}
			out = append(out, v)
			if max > 0 && len(out) >= max {
				return out
			}
		}
	}
	return out
}

// Codes returns every code producing value, shortest first.
func (t *Table) Codes(value string) []string {
	return append([]string(nil), t.encodes[value]...)
}

// CodeOf returns the codes producing value separated by spaces, or "" if
// value is not in the table.
func (t *Table) CodeOf(value string) string {
	return strings.Join(t.encodes[value], " ")
}

func indexRune(rs []rune, r rune) int {
	for i, c := range rs {
		if c == r {
			return i
		}
	}
	return len(rs)
}

// matchWildcard is a glob match where marker matches zero or more runes.
func matchWildcard(pat, s []rune, marker rune) bool {
	p, i := 0, 0
	star, mark := -1, 0
	for i < len(s) {
		switch {
		case p < len(pat) && pat[p] == marker:
			star, mark = p, i
			p++
		case p < len(pat) && pat[p] == s[i]:
			p++
			i++
		case star >= 0:
			p = star + 1
			mark++
			i = mark
		default:
			return false
		}
	}
	for p < len(pat) && pat[p] == marker {
		p++
	}
	return p == len(pat)
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
