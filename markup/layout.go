package markup

import (
	"regexp"
	"sort"
)

// span is a half-open byte range of document text.
type span struct{ start, end int }

var (
	commentSpan = regexp.MustCompile(`(?s)<!--.*?-->`)
	cdataSpan   = regexp.MustCompile(`(?s)<!\[CDATA\[.*?\]\]>`)
)

// layout marks the parts of raw document text that raw replacement treats
// specially: comments are never written into, and verbatim regions (HTML
// script and style bodies, CDATA sections) take translations unescaped.
type layout struct {
	comments []span
	verbatim []span
}

func scanLayout(text string, format Format, scriptTags []string) layout {
	l := layout{
		comments: findSpans(commentSpan, text),
		verbatim: findSpans(cdataSpan, text),
	}
	if format != FormatXML {
		for _, tag := range append([]string{"style"}, scriptTags...) {
			q := regexp.QuoteMeta(tag)
			re := regexp.MustCompile(`(?is)<` + q + `\b[^>]*>.*?</` + q + `\s*>`)
			l.verbatim = append(l.verbatim, findSpans(re, text)...)
		}
		sort.Slice(l.verbatim, func(i, j int) bool { return l.verbatim[i].start < l.verbatim[j].start })
	}
	return l
}

func findSpans(re *regexp.Regexp, text string) []span {
	var out []span
	for _, m := range re.FindAllStringIndex(text, -1) {
		out = append(out, span{m[0], m[1]})
	}
	return out
}

func within(spans []span, pos int) bool {
	for _, s := range spans {
		if pos >= s.start && pos < s.end {
			return true
		}
	}
	return false
}

// firstOutside returns the submatch indexes of the first match of re in
// text whose fragment group does not start inside a comment.
func (l layout) firstOutside(re *regexp.Regexp, text string) []int {
	for _, m := range re.FindAllStringSubmatchIndex(text, -1) {
		if !within(l.comments, m[4]) {
			return m
		}
	}
	return nil
}
