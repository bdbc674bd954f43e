package cin

import (
	"context"
	"fmt"
	"path/filepath"
)

// Kind identifies which of the engine's tables a handle holds.
type Kind int

const (
	// KindPrimary is the code table used for composition.
	KindPrimary Kind = iota
	// KindReverse is the table consulted for reverse-lookup annotations.
	KindReverse
	// KindHomophone is the phonetic table used by homophone queries.
	KindHomophone
	// KindPhrase maps a committed character to follow-up phrases.
	KindPhrase
)

// Kinds lists every table kind.
var Kinds = []Kind{KindPrimary, KindReverse, KindHomophone, KindPhrase}

func (k Kind) String() string {
	switch k {
	case KindPrimary:
		return "primary"
	case KindReverse:
		return "reverse"
	case KindHomophone:
		return "homophone"
	case KindPhrase:
		return "phrase"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Source produces tables for the Registry.
type Source interface {
	Load(ctx context.Context, kind Kind, scheme string) (*Table, error)
}

// Entry is an extra code/value pair merged into a table after loading.
type Entry struct {
	Code     string
	Value    string
	Priority bool
}

// ExtensionFunc returns user entries for a freshly loaded table.
type ExtensionFunc func(kind Kind, scheme string) ([]Entry, error)

// DirSource loads <Dir>/<scheme>.json and merges extension entries.
type DirSource struct {
	Dir    string
	Extend ExtensionFunc
}

// Path returns the file a scheme is loaded from.
func (s *DirSource) Path(scheme string) string {
	return filepath.Join(s.Dir, scheme+".json")
}

// Load implements Source.
func (s *DirSource) Load(ctx context.Context, kind Kind, scheme string) (*Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t, err := LoadFile(s.Path(scheme))
	if err != nil {
		return nil, err
	}

	if s.Extend != nil {
		entries, err := s.Extend(kind, scheme)
		if err != nil {
			return nil, fmt.Errorf("load %s extensions: %w", scheme, err)
		}
		Merge(t, entries)
	}
	return t, nil
}

// Merge adds entries to t. Priority entries go ahead of the table's own
// candidates.
func Merge(t *Table, entries []Entry) {
	for _, e := range entries {
		if e.Priority {
			t.Prepend(e.Code, e.Value)
		} else {
			t.Add(e.Code, e.Value)
		}
	}
}

// MemorySource serves prebuilt tables keyed by scheme. When Gate is set,
// every load blocks until Gate is closed or ctx is done.
type MemorySource struct {
	Tables map[string]*Table
	Gate   chan struct{}
}

// Load implements Source.
func (s *MemorySource) Load(ctx context.Context, kind Kind, scheme string) (*Table, error) {
	if s.Gate != nil {
		select {
		case <-s.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	t, ok := s.Tables[scheme]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTableMissing, scheme)
	}
	return t, nil
}
