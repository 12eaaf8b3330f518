package markup

import (
	"errors"
	"regexp"
	"strings"
	"unicode"
)

// escapedForms lists the entity spellings a serializer may use for runes
// that markup escapes.
var escapedForms = map[rune][]string{
	'<':  {"&lt;", "&#60;"},
	'>':  {"&gt;", "&#62;"},
	'&':  {"&amp;", "&#38;"},
	'"':  {"&quot;", "&#34;"},
	'\'': {"&#39;", "&apos;"},
}

func spaceClass(entities []string) string {
	alts := []string{`[\s\p{Z}]`}
	for _, e := range entities {
		alts = append(alts, regexp.QuoteMeta(e))
	}
	return "(?:" + strings.Join(alts, "|") + ")"
}

func isASCIIAlnum(r rune) bool {
	return r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r))
}

func literal(r rune) string {
	q := regexp.QuoteMeta(string(r))
	forms, ok := escapedForms[r]
	if !ok {
		return q
	}
	alts := []string{q}
	for _, f := range forms {
		alts = append(alts, regexp.QuoteMeta(f))
	}
	return "(?:" + strings.Join(alts, "|") + ")"
}

// TolerantPattern builds the raw-text fallback pattern for an extracted
// fragment:
//
//   - every rune is matched literally (markup-escaped runes also match their
//     entity spellings);
//   - every whitespace run, including the given whitespace entities, matches
//     one or more whitespace characters or entities;
//   - between two adjacent non-space runes (other than two ASCII letters or
//     digits) any amount of whitespace or entities may appear;
//   - the whole pattern may be surrounded by such noise.
//
// Groups: 1 = leading noise, 2 = the fragment, 3 = trailing noise.
func TolerantPattern(text string, entities []string) (*regexp.Regexp, error) {
	for _, e := range entities {
		text = strings.ReplaceAll(text, e, " ")
	}
	ws := spaceClass(entities)

	var b strings.Builder
	b.WriteString("(" + ws + "*)(")
	var prev rune
	started, gap := false, false
	for _, r := range text {
		if unicode.IsSpace(r) {
			gap = true
			continue
		}
		if started {
			switch {
			case gap:
				b.WriteString(ws + "+")
			case !(isASCIIAlnum(prev) && isASCIIAlnum(r)):
				b.WriteString(ws + "*")
			}
		}
		b.WriteString(literal(r))
		prev, started, gap = r, true, false
	}
	if !started {
		return nil, errors.New("empty fragment text")
	}
	b.WriteString(")(" + ws + "*)")
	return regexp.Compile(b.String())
}

// substituteFirst replaces the first match of a TolerantPattern in s with
// repl, keeping the surrounding noise the pattern captured.
func substituteFirst(re *regexp.Regexp, s, repl string) (string, bool) {
	m := re.FindStringSubmatchIndex(s)
	if m == nil {
		return s, false
	}
	return splice(s, m, repl), true
}

// splice replaces the fragment group of match m in s with repl.
func splice(s string, m []int, repl string) string {
	return s[:m[0]] + s[m[2]:m[3]] + repl + s[m[6]:m[7]] + s[m[1]:]
}
