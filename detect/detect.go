// Package detect decides whether a piece of text is a translation
// candidate: it reports whether the text contains at least one character
// of the target script.
//
// The default target is the CJK Unified Ideographs block (U+4E00..U+9FFF),
// which is what both the markup and the script pipelines look for unless
// configured otherwise.
package detect

import (
	"fmt"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/rangetable"
)

// CJK is the CJK Unified Ideographs block.
var CJK = &unicode.RangeTable{
	R16: []unicode.Range16{{Lo: 0x4e00, Hi: 0x9fff, Stride: 1}},
}

// CJKName is the script name accepted by New for the CJK block.
const CJKName = "cjk"

// Detector holds the set of runes that mark a text as a candidate.
type Detector struct {
	names []string
	table *unicode.RangeTable
}

// Default returns a detector for the CJK Unified Ideographs block.
func Default() *Detector {
	return &Detector{names: []string{CJKName}, table: CJK}
}

// New builds a detector from script names. "cjk" selects the CJK block,
// any other name is looked up in unicode.Scripts ("Han", "Hiragana", ...).
// Several names are merged into one table. No names means Default().
func New(names ...string) (*Detector, error) {
	if len(names) == 0 {
		return Default(), nil
	}

	tables := make([]*unicode.RangeTable, 0, len(names))
	clean := make([]string, 0, len(names))
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if strings.EqualFold(name, CJKName) {
			tables = append(tables, CJK)
			clean = append(clean, CJKName)
			continue
		}
		rt, ok := unicode.Scripts[name]
		if !ok {
			return nil, fmt.Errorf("unknown script %q (valid: %s, or a Unicode script name such as Han)", name, CJKName)
		}
		tables = append(tables, rt)
		clean = append(clean, name)
	}

	switch len(tables) {
	case 0:
		return Default(), nil
	case 1:
		return &Detector{names: clean, table: tables[0]}, nil
	}
	return &Detector{names: clean, table: rangetable.Merge(tables...)}, nil
}

// Contains reports whether s has at least one rune of the target script.
// Empty and whitespace-only strings never qualify.
func (d *Detector) Contains(s string) bool {
	for _, r := range s {
		if unicode.Is(d.table, r) {
			return true
		}
	}
	return false
}

// Is reports whether r belongs to the target script.
func (d *Detector) Is(r rune) bool {
	return unicode.Is(d.table, r)
}

// Names returns the script names the detector was built from.
func (d *Detector) Names() []string {
	return append([]string(nil), d.names...)
}

// Class renders the target set as a regexp character class, e.g.
// `[\x{4e00}-\x{9fff}]`.
func (d *Detector) Class() string {
	type span struct{ lo, hi rune }
	var spans []span

	add := func(lo, hi, stride rune) {
		if stride == 1 {
			spans = append(spans, span{lo, hi})
			return
		}
		for r := lo; r <= hi; r += stride {
			spans = append(spans, span{r, r})
		}
	}
	for _, r := range d.table.R16 {
		add(rune(r.Lo), rune(r.Hi), rune(r.Stride))
	}
	for _, r := range d.table.R32 {
		add(rune(r.Lo), rune(r.Hi), rune(r.Stride))
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].lo < spans[j].lo })

	var b strings.Builder
	b.WriteByte('[')
	for _, s := range spans {
		if s.lo == s.hi {
			fmt.Fprintf(&b, `\x{%x}`, s.lo)
			continue
		}
		fmt.Fprintf(&b, `\x{%x}-\x{%x}`, s.lo, s.hi)
	}
	b.WriteByte(']')
	return b.String()
}
