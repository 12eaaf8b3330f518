package markup

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/html"

	"github.com/minios-linux/hanloc/fragment"
	"github.com/minios-linux/hanloc/report"
)

var (
	// ErrCountMismatch means two artifacts that must pair line by line have
	// different line counts. Nothing is replaced.
	ErrCountMismatch = errors.New("artifact line counts differ")
	// ErrPatternNotFound means a raw-text pattern matched nothing.
	ErrPatternNotFound = errors.New("original text not found")
	// ErrSortedArtifact means a length-sorted text artifact was paired with
	// the address artifact.
	ErrSortedArtifact = errors.New("text artifact was sorted at extraction and no longer pairs with addresses")
	// ErrInlineNeedsOriginal means an inline script address was given
	// without the original text to locate it inside the script.
	ErrInlineNeedsOriginal = errors.New("inline script fragment needs the original text artifact")
)

// Mode selects the replacement strategy.
type Mode string

const (
	// ModeRaw substitutes in the raw document text (primary strategy).
	ModeRaw Mode = "raw"
	// ModeStructural resolves addresses in a fresh parse (best effort).
	ModeStructural Mode = "structural"
)

// ParseMode validates a --mode value.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case "", ModeRaw:
		return ModeRaw, nil
	case ModeStructural:
		return ModeStructural, nil
	}
	return "", fmt.Errorf("unknown replace mode %q (valid: raw, structural)", s)
}

// Request carries the artifacts of one replacement run.
type Request struct {
	Mode   Mode
	Format Format

	// Addresses is the address artifact (structural mode).
	Addresses []string
	// Originals is the text artifact: required in raw mode, optional in
	// structural mode where it locates inline script fragments.
	Originals []string
	// OriginalsSorted is true when the text artifact was length-sorted at
	// extraction. The translated artifact then follows the sorted order and
	// no longer pairs with addresses.
	OriginalsSorted bool
	// Translated is the translated artifact.
	Translated []string

	Entities []string
	// ScriptTags are the elements whose body raw mode writes unescaped
	// (HTML only; default DefaultScriptTags).
	ScriptTags []string
}

// Replace applies req to the document src and returns the new document.
// On a fatal error no document is returned.
func Replace(src []byte, req Request) ([]byte, *report.Summary, error) {
	switch req.Mode {
	case ModeStructural:
		return ReplaceStructural(src, req)
	case ModeRaw, "":
		return ReplaceRaw(src, req)
	}
	return nil, nil, fmt.Errorf("unknown replace mode %q", req.Mode)
}

// ReplaceFile reads docPath, applies req and writes the result to outPath.
// The output is only written when the whole run succeeds.
func ReplaceFile(docPath, outPath string, req Request) (*report.Summary, error) {
	src, err := os.ReadFile(docPath)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", docPath, err)
	}
	if req.Format == "" {
		req.Format = FormatFor(docPath)
	}
	out, sum, err := Replace(src, req)
	if err != nil {
		return sum, err
	}
	if err := os.WriteFile(outPath, out, 0644); err != nil {
		return sum, fmt.Errorf("writing %s: %w", outPath, err)
	}
	return sum, nil
}

// OutputPath names the replacement output: the part of the file name before
// its first dot, plus suffix, plus the original extension
// (main.html -> main_new.html).
func OutputPath(docPath, suffix string) string {
	dir, base := filepath.Split(docPath)
	stem, ext := base, ""
	if i := strings.IndexByte(base, '.'); i > 0 {
		stem = base[:i]
		ext = filepath.Ext(base)
	}
	return filepath.Join(dir, stem+suffix+ext)
}

// ---------------------------------------------------------------------------
// Structural replacement
// ---------------------------------------------------------------------------

// ReplaceStructural resolves every address line against a fresh parse of src
// and writes the paired translation into the node it names. Line counts are
// checked before parsing.
func ReplaceStructural(src []byte, req Request) ([]byte, *report.Summary, error) {
	if len(req.Addresses) != len(req.Translated) {
		return nil, nil, fmt.Errorf("%w: %d addresses, %d translations", ErrCountMismatch, len(req.Addresses), len(req.Translated))
	}
	if req.OriginalsSorted {
		return nil, nil, ErrSortedArtifact
	}
	if len(req.Originals) > 0 && len(req.Originals) != len(req.Addresses) {
		return nil, nil, fmt.Errorf("%w: %d addresses, %d original texts", ErrCountMismatch, len(req.Addresses), len(req.Originals))
	}

	if req.Entities == nil {
		req.Entities = DefaultEntities
	}
	log.Debug().Msg("structural replace: addresses drift if sibling structure changed since extraction")
	doc, err := Parse(bytes.NewReader(src), req.Format)
	if err != nil {
		return nil, nil, err
	}
	root := doc.tree.root()
	sum := report.New("markup replace (structural)")

	for i, line := range req.Addresses {
		addr, err := fragment.ParseNodeAddress(line)
		if err != nil {
			sum.Skip(fmt.Errorf("address line %d: %w: %v", i+1, ErrAddressUnresolvable, err))
			continue
		}
		el, err := resolvePath(root, addr.Path)
		if err != nil {
			sum.Skip(fmt.Errorf("address line %d: %w", i+1, err))
			continue
		}

		translated := req.Translated[i]
		switch {
		case addr.Attr != "":
			if _, ok := lookupAttr(el, addr.Attr); !ok {
				sum.Skip(fmt.Errorf("address line %d: %w: no attribute %q", i+1, ErrAddressUnresolvable, addr.Attr))
				continue
			}
			el.setAttr(addr.Attr, translated)

		case addr.Inline:
			if len(req.Originals) == 0 {
				sum.Skip(fmt.Errorf("address line %d: %w", i+1, ErrInlineNeedsOriginal))
				continue
			}
			re, err := TolerantPattern(strings.TrimSpace(req.Originals[i]), req.Entities)
			if err != nil {
				sum.Fail(fmt.Errorf("address line %d: %w", i+1, err))
				continue
			}
			code, ok := substituteFirst(re, strings.Join(el.runs(), ""), translated)
			if !ok {
				sum.Skip(fmt.Errorf("address line %d: %w in script text", i+1, ErrPatternNotFound))
				continue
			}
			el.setRun(0, code)

		default:
			runs := el.runs()
			if addr.Run >= len(runs) || !el.setRun(addr.Run, keepPadding(runs[addr.Run], translated)) {
				sum.Skip(fmt.Errorf("address line %d: %w: no text run %d", i+1, ErrAddressUnresolvable, addr.Run+1))
				continue
			}
		}
		sum.Apply()
	}

	var buf bytes.Buffer
	if err := doc.Render(&buf); err != nil {
		return nil, sum, err
	}
	return buf.Bytes(), sum, nil
}

// keepPadding puts repl between the leading and trailing whitespace of old.
func keepPadding(old, repl string) string {
	core := strings.TrimSpace(old)
	if core == "" {
		return old + repl
	}
	lead := old[:len(old)-len(strings.TrimLeftFunc(old, unicode.IsSpace))]
	trail := old[len(strings.TrimRightFunc(old, unicode.IsSpace)):]
	return lead + repl + trail
}

// ---------------------------------------------------------------------------
// Raw-text fallback replacement
// ---------------------------------------------------------------------------

// ReplaceRaw substitutes each original text of req with its translation
// directly in the document text, using TolerantPattern. Matches inside
// comments are ignored. Translations are HTML-escaped except inside script
// and style bodies and CDATA sections. The document keeps its encoding.
func ReplaceRaw(src []byte, req Request) ([]byte, *report.Summary, error) {
	if len(req.Originals) != len(req.Translated) {
		return nil, nil, fmt.Errorf("%w: %d original texts, %d translations", ErrCountMismatch, len(req.Originals), len(req.Translated))
	}

	if req.Entities == nil {
		req.Entities = DefaultEntities
	}
	if req.ScriptTags == nil {
		req.ScriptTags = DefaultScriptTags
	}
	decoded, err := decodeSource(src, req.Format)
	if err != nil {
		return nil, nil, err
	}
	text := decoded.text
	sum := report.New("markup replace (raw)")

	for i, orig := range req.Originals {
		orig = strings.TrimSpace(orig)
		if orig == "" {
			sum.Skip(fmt.Errorf("text line %d: empty original text", i+1))
			continue
		}
		re, err := TolerantPattern(orig, req.Entities)
		if err != nil {
			sum.Fail(fmt.Errorf("text line %d: %w", i+1, err))
			continue
		}
		log.Debug().Int("line", i+1).Str("pattern", re.String()).Msg("raw replace")

		l := scanLayout(text, req.Format, req.ScriptTags)
		m := l.firstOutside(re, text)
		if m == nil {
			sum.Skip(fmt.Errorf("text line %d %q: %w", i+1, clip(orig, 40), ErrPatternNotFound))
			continue
		}
		repl := req.Translated[i]
		if !within(l.verbatim, m[4]) {
			repl = html.EscapeString(repl)
		}
		text = splice(text, m, repl)
		sum.Apply()
	}

	out, err := decoded.encode(text)
	if err != nil {
		return nil, sum, err
	}
	return out, sum, nil
}

func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}
