// Package convert provides the text conversions applied to committed text.
package convert

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/longbridgeapp/opencc"
	"golang.org/x/text/width"
)

// Simplified converts traditional Chinese to simplified Chinese with the
// OpenCC t2s dictionaries. The dictionaries are loaded on first use.
type Simplified struct {
	once sync.Once
	conv func(string) (string, error)
	err  error
}

// NewSimplified returns a converter whose dictionaries load lazily.
func NewSimplified() *Simplified {
	return &Simplified{}
}

func (s *Simplified) load() error {
	s.once.Do(func() {
		cc, err := opencc.New("t2s")
		if err != nil {
			s.err = fmt.Errorf("load opencc t2s: %w", err)
			return
		}
		s.conv = cc.Convert
	})
	return s.err
}

// Convert implements ime.Converter.
func (s *Simplified) Convert(text string) (string, error) {
	if err := s.load(); err != nil {
		return text, err
	}
	out, err := s.conv(text)
	if err != nil {
		// The text is committed input and stays out of errors and logs.
		return text, fmt.Errorf("convert %d runes: %w", utf8.RuneCountInString(text), err)
	}
	return out, nil
}

// FullShape returns the full-width form of the ASCII characters in s.
// Other runes are left alone.
func FullShape(s string) string {
	return width.Widen.String(s)
}

// HalfShape is the inverse of FullShape.
func HalfShape(s string) string {
	return width.Narrow.String(s)
}
