// Package fragment defines the unit of translatable text shared by the
// markup and script pipelines, and the artifact files a human edits between
// extraction and replacement.
//
// A Fragment's address is a tagged variant:
//
//   - NodeAddress: a structural path into a markup tree, optionally naming an
//     attribute, a later direct text run, or the inline-script marker.
//   - LineAddress: a zero-based line index into a script source file.
//
// Addresses are plain values. They are resolved against a fresh parse on
// every run and never hold node references.
package fragment

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"unicode/utf8"
)

// Kind identifies where a fragment came from.
type Kind int

const (
	// KindElementText is a direct text run of a markup element.
	KindElementText Kind = iota
	// KindAttributeValue is a markup attribute value.
	KindAttributeValue
	// KindInlineScript is a delimited segment inside a script element.
	KindInlineScript
	// KindScriptLine is a line of a script source file.
	KindScriptLine
)

func (k Kind) String() string {
	switch k {
	case KindElementText:
		return "element-text"
	case KindAttributeValue:
		return "attribute-value"
	case KindInlineScript:
		return "inline-script-text"
	case KindScriptLine:
		return "script-line"
	}
	return "unknown"
}

// Address relocates a fragment. Implemented by NodeAddress and LineAddress.
type Address interface {
	String() string
	isAddress()
}

// Markers used in the address artifact.
const (
	// AttrMarker separates an element path from an attribute name.
	AttrMarker = "/@"
	// InlineMarker flags inline script text located by its element path.
	InlineMarker = "#inline"
	// runPrefix introduces a text run selector.
	runPrefix = "/text()["
)

// NodeAddress locates a fragment in a markup tree.
type NodeAddress struct {
	// Path is the structural element path, e.g. /html/body/div[2]/p.
	Path string
	// Attr is the attribute name for attribute fragments.
	Attr string
	// Run is the zero-based direct text run (0 = text before the first
	// child element, k = text after the k-th child element).
	Run int
	// Inline marks inline script text of the element at Path.
	Inline bool
}

func (NodeAddress) isAddress() {}

// String renders the address in artifact form.
func (a NodeAddress) String() string {
	switch {
	case a.Attr != "":
		return a.Path + AttrMarker + a.Attr
	case a.Inline:
		return a.Path + InlineMarker
	case a.Run > 0:
		return a.Path + runPrefix + strconv.Itoa(a.Run+1) + "]"
	}
	return a.Path
}

var runSuffix = regexp.MustCompile(`/text\(\)\[(\d+)\]$`)

// ParseNodeAddress parses one line of the address artifact.
func ParseNodeAddress(s string) (NodeAddress, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "/") {
		return NodeAddress{}, fmt.Errorf("address %q is not an absolute path", s)
	}

	if strings.HasSuffix(s, InlineMarker) {
		return NodeAddress{Path: strings.TrimSuffix(s, InlineMarker), Inline: true}, nil
	}
	if i := strings.LastIndex(s, AttrMarker); i >= 0 {
		attr := s[i+len(AttrMarker):]
		if attr == "" || strings.Contains(attr, "/") {
			return NodeAddress{}, fmt.Errorf("address %q has a malformed attribute step", s)
		}
		if i == 0 {
			return NodeAddress{}, fmt.Errorf("address %q has no element path", s)
		}
		return NodeAddress{Path: s[:i], Attr: attr}, nil
	}
	if m := runSuffix.FindStringSubmatchIndex(s); m != nil {
		n, err := strconv.Atoi(s[m[2]:m[3]])
		if err != nil || n < 1 {
			return NodeAddress{}, fmt.Errorf("address %q has an invalid text run", s)
		}
		return NodeAddress{Path: s[:m[0]], Run: n - 1}, nil
	}
	return NodeAddress{Path: s}, nil
}

// LineAddress locates a fragment by zero-based line index.
type LineAddress struct {
	Index int
}

func (LineAddress) isAddress() {}

func (a LineAddress) String() string { return strconv.Itoa(a.Index) }

// Fragment is one extracted translatable text unit.
type Fragment struct {
	Address Address
	// Text is the extracted content. For script lines it is the whole
	// original line without its terminator.
	Text string
	// Code is the comment-stripped line content (script lines only).
	Code string
	Kind Kind
}

// Set is the ordered result of one extraction pass.
type Set []Fragment

// ---------------------------------------------------------------------------
// Artifact rendering
// ---------------------------------------------------------------------------

var lineBreakRun = regexp.MustCompile(`[ \t\p{Zs}]*[\r\n][\s\p{Zs}]*`)

// Flatten collapses every whitespace run containing a line break into a
// single space, so one fragment always occupies one artifact line.
func Flatten(s string) string {
	return lineBreakRun.ReplaceAllString(s, " ")
}

// AddressLines renders the address artifact, one address per fragment.
func (s Set) AddressLines() []string {
	lines := make([]string, len(s))
	for i, f := range s {
		lines[i] = f.Address.String()
	}
	return lines
}

// TextLines renders the text artifact, parallel to AddressLines. With
// sortByLength the lines are stably sorted by descending rune count; the
// result no longer pairs with AddressLines.
func (s Set) TextLines(sortByLength bool) []string {
	lines := make([]string, len(s))
	for i, f := range s {
		lines[i] = Flatten(f.Text)
	}
	if sortByLength {
		sort.SliceStable(lines, func(i, j int) bool {
			return utf8.RuneCountInString(lines[i]) > utf8.RuneCountInString(lines[j])
		})
	}
	return lines
}

// IndexedLines renders the script artifact: "<index>,<trimmed text>" in
// ascending index order. Fragments without a LineAddress are ignored.
func (s Set) IndexedLines() []string {
	type entry struct {
		idx  int
		text string
	}
	var entries []entry
	for _, f := range s {
		la, ok := f.Address.(LineAddress)
		if !ok {
			continue
		}
		entries = append(entries, entry{la.Index, strings.TrimSpace(f.Text)})
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].idx < entries[j].idx })

	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = strconv.Itoa(e.idx) + "," + e.text
	}
	return lines
}
