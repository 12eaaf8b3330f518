package markup

import (
	"regexp"
	"strings"

	"github.com/minios-linux/hanloc/detect"
	"github.com/minios-linux/hanloc/fragment"
)

// DefaultScriptTags are elements whose text is script code, scanned with
// ScanInline instead of being taken as element text.
var DefaultScriptTags = []string{"script"}

// DefaultEntities are whitespace entities tolerated around and inside
// fragments.
var DefaultEntities = []string{"&nbsp;", "&#160;", "&#xa0;"}

// Options control extraction.
type Options struct {
	Detector   *detect.Detector
	ScriptTags []string
	Entities   []string
}

func (o Options) withDefaults() Options {
	if o.Detector == nil {
		o.Detector = detect.Default()
	}
	if o.ScriptTags == nil {
		o.ScriptTags = DefaultScriptTags
	}
	if o.Entities == nil {
		o.Entities = DefaultEntities
	}
	return o
}

type walker struct {
	opts   Options
	inline *regexp.Regexp
	out    fragment.Set
}

// Extract visits every element once in document order and collects the
// fragments written in the target script. For each element, attribute
// values come first, then the leading text run; the text run following a
// child element is emitted right after that child's subtree.
func Extract(doc *Document, opts Options) fragment.Set {
	opts = opts.withDefaults()
	w := &walker{opts: opts, inline: inlinePattern(opts.Detector)}
	root := doc.tree.root()
	w.visit(root, "/"+root.tag())
	return w.out
}

func (w *walker) isScript(tag string) bool {
	for _, t := range w.opts.ScriptTags {
		if strings.EqualFold(t, tag) {
			return true
		}
	}
	return false
}

func (w *walker) add(addr fragment.NodeAddress, text string, kind fragment.Kind) {
	w.out = append(w.out, fragment.Fragment{Address: addr, Text: text, Kind: kind})
}

func (w *walker) visit(e element, path string) {
	det := w.opts.Detector

	for _, a := range e.attrs() {
		if det.Contains(a.Value) {
			w.add(fragment.NodeAddress{Path: path, Attr: a.Key}, strings.TrimSpace(a.Value), fragment.KindAttributeValue)
		}
	}

	runs := e.runs()
	if w.isScript(e.tag()) {
		for _, seg := range scanInline(w.inline, strings.Join(runs, ""), w.opts.Entities) {
			w.add(fragment.NodeAddress{Path: path, Inline: true}, seg, fragment.KindInlineScript)
		}
		return
	}

	if t := strings.TrimSpace(runs[0]); det.Contains(t) {
		w.add(fragment.NodeAddress{Path: path}, t, fragment.KindElementText)
	}

	steps := childSteps(e)
	for i, child := range e.children() {
		w.visit(child, path+"/"+steps[i])
		if t := strings.TrimSpace(runs[i+1]); det.Contains(t) {
			w.add(fragment.NodeAddress{Path: path, Run: i + 1}, t, fragment.KindElementText)
		}
	}
}

// ---------------------------------------------------------------------------
// Inline script scanning
// ---------------------------------------------------------------------------

// inlinePattern matches ">" + a run without delimiters or line breaks that
// contains a target-script rune + "<".
func inlinePattern(det *detect.Detector) *regexp.Regexp {
	class := det.Class()
	return regexp.MustCompile(`>([^<>\r\n]*` + class + `[^<>\r\n]*)<`)
}

// ScanInline extracts markup-delimited text segments from script code, e.g.
// `html += '<td>用户名</td>'` yields "用户名". Whitespace entities become
// spaces and the result is trimmed.
func ScanInline(code string, det *detect.Detector, entities []string) []string {
	if det == nil {
		det = detect.Default()
	}
	if entities == nil {
		entities = DefaultEntities
	}
	return scanInline(inlinePattern(det), code, entities)
}

func scanInline(re *regexp.Regexp, code string, entities []string) []string {
	var out []string
	for _, m := range re.FindAllStringSubmatch(code, -1) {
		seg := m[1]
		for _, ent := range entities {
			seg = strings.ReplaceAll(seg, ent, " ")
		}
		if seg = strings.TrimSpace(seg); seg != "" {
			out = append(out, seg)
		}
	}
	return out
}
