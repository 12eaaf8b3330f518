package script

import (
	"github.com/rs/zerolog/log"

	"github.com/minios-linux/hanloc/detect"
	"github.com/minios-linux/hanloc/fragment"
)

// Options control extraction.
type Options struct {
	Syntax   Syntax
	Detector *detect.Detector
	// TrailingComments also picks up lines whose target-script text sits
	// only in a trailing comment ("b(); // 说明"). By default detection
	// runs on the comment-stripped code.
	TrailingComments bool
}

// Extract returns one fragment per non-comment line that contains the
// target script, keyed by zero-based line index. Text is the original
// line; Code is what the classifier left of it.
func Extract(lines []string, opts Options) fragment.Set {
	det := opts.Detector
	if det == nil {
		det = detect.Default()
	}
	if opts.Syntax == (Syntax{}) {
		opts.Syntax = CStyle
	}

	var out fragment.Set
	c := NewClassifier(opts.Syntax)
	for i, line := range lines {
		class, code := c.Next(line)
		if class.Skipped() {
			continue
		}
		probe := code
		if opts.TrailingComments {
			probe = line
		}
		if !det.Contains(probe) {
			continue
		}
		log.Debug().Int("line", i).Stringer("class", class).Msg("script fragment")
		out = append(out, fragment.Fragment{
			Address: fragment.LineAddress{Index: i},
			Text:    line,
			Code:    code,
			Kind:    fragment.KindScriptLine,
		})
	}
	return out
}
