package script

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode"

	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"

	"github.com/minios-linux/hanloc/fragment"
	"github.com/minios-linux/hanloc/report"
)

var (
	// ErrMalformedEntry means a translation line is not "<index>,<text>".
	ErrMalformedEntry = errors.New("malformed translation entry")
	// ErrIndexOutOfBounds means a translation names a line the source file
	// does not have, so the file changed since extraction.
	ErrIndexOutOfBounds = errors.New("line index out of bounds")
)

// Entry is one translation: the zero-based line index and its new text.
type Entry struct {
	Index int
	Text  string
}

// ParseEntry parses "<index>,<text>". The text is trimmed; everything after
// the first comma belongs to it.
func ParseEntry(line string) (Entry, error) {
	idx, text, ok := strings.Cut(line, ",")
	if !ok {
		return Entry{}, fmt.Errorf("%w: %q has no comma", ErrMalformedEntry, line)
	}
	n, err := strconv.Atoi(strings.TrimSpace(idx))
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %q has no integer index", ErrMalformedEntry, line)
	}
	return Entry{Index: n, Text: strings.TrimSpace(text)}, nil
}

// ParseEntries reads a translation artifact. Blank lines are ignored;
// every malformed line is reported.
func ParseEntries(r io.Reader) ([]Entry, error) {
	lines, err := fragment.ScanLines(r)
	if err != nil {
		return nil, err
	}
	var (
		entries []Entry
		errs    error
	)
	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		e, err := ParseEntry(line)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("line %d: %w", i+1, err))
			continue
		}
		entries = append(entries, e)
	}
	if errs != nil {
		return nil, errs
	}
	return entries, nil
}

// Apply rewrites every line named by entries: the original leading
// whitespace, the trimmed translation, the original terminator. All
// entries are validated first; if any index is out of range nothing is
// changed and every bad entry is reported.
func Apply(doc *Document, entries []Entry) (*report.Summary, error) {
	sum := report.New("script replace")

	var errs error
	for _, e := range entries {
		if e.Index < 0 || e.Index >= len(doc.Lines) {
			errs = multierr.Append(errs, fmt.Errorf("%w: %d (file has %d lines)", ErrIndexOutOfBounds, e.Index, len(doc.Lines)))
		}
	}
	if errs != nil {
		return sum, errs
	}

	for _, e := range entries {
		orig := doc.Lines[e.Index]
		indent := orig[:len(orig)-len(strings.TrimLeftFunc(orig, unicode.IsSpace))]
		doc.Lines[e.Index] = indent + strings.TrimSpace(e.Text)
		log.Debug().Int("line", e.Index).Str("text", e.Text).Msg("script line replaced")
		sum.Apply()
	}
	return sum, nil
}
