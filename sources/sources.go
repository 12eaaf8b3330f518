// Package sources finds the documents hanloc can process under a set of
// directories and sorts them into the markup and script pipelines.
//
// Files are recognized by extension; extensionless executables are
// recognized by their shebang line.
package sources

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/minios-linux/hanloc/detect"
	"github.com/minios-linux/hanloc/markup"
	"github.com/minios-linux/hanloc/script"
)

// Kind is the pipeline a file belongs to.
type Kind string

const (
	KindMarkup  Kind = "markup"
	KindScript  Kind = "script"
	KindUnknown Kind = ""
)

// MarkupExtensions are handled by the markup pipeline.
var MarkupExtensions = map[string]bool{
	".html":  true,
	".htm":   true,
	".shtml": true,
	".xhtml": true,
	".xml":   true,
	".svg":   true,
	".fb2":   true,
	".opf":   true,
	".ncx":   true,
	".xlf":   true,
	".xliff": true,
}

// skipDirs contains directory names to skip during scanning.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"__pycache__":  true,
	".tox":         true,
	".venv":        true,
	"venv":         true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	".eggs":        true,
}

// interpreters maps shebang interpreters to a representative extension.
var interpreters = map[string]string{
	"sh":      ".sh",
	"bash":    ".sh",
	"dash":    ".sh",
	"zsh":     ".sh",
	"python":  ".py",
	"python3": ".py",
	"perl":    ".pl",
	"ruby":    ".rb",
	"node":    ".js",
	"lua":     ".lua",
}

// Classify returns the pipeline for path and, for scripts, the extension
// whose comment syntax applies.
func Classify(path string) (Kind, string) {
	ext := strings.ToLower(filepath.Ext(path))
	if MarkupExtensions[ext] {
		return KindMarkup, ext
	}
	if _, ok := script.Extensions[ext]; ok {
		return KindScript, ext
	}
	if ext == "" {
		if e := detectShebang(path); e != "" {
			return KindScript, e
		}
	}
	return KindUnknown, ext
}

// detectShebang reads the first line of an extensionless file and maps its
// interpreter to an extension.
func detectShebang(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	line, err := bufio.NewReader(f).ReadBytes('\n')
	if err != nil && len(line) == 0 {
		return ""
	}
	if !bytes.HasPrefix(line, []byte("#!")) {
		return ""
	}
	fields := strings.Fields(string(line[2:]))
	if len(fields) == 0 {
		return ""
	}
	interp := filepath.Base(fields[0])
	if interp == "env" && len(fields) > 1 {
		interp = fields[1]
	}
	return interpreters[interp]
}

// FindSources recursively finds every markup or script file in dirs,
// skipping VCS, dependency and build directories. A dir may also be a
// single file.
func FindSources(dirs []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)

	for _, dir := range dirs {
		err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return nil // skip unreadable entries
			}
			if info.IsDir() {
				if path != dir && skipDirs[info.Name()] {
					return filepath.SkipDir
				}
				return nil
			}
			if kind, _ := Classify(path); kind != KindUnknown && !seen[path] {
				seen[path] = true
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", dir, err)
		}
	}

	sort.Strings(files)
	return files, nil
}

// FilesByKind groups files by pipeline.
func FilesByKind(files []string) map[Kind][]string {
	result := make(map[Kind][]string)
	for _, f := range files {
		if kind, _ := Classify(f); kind != KindUnknown {
			result[kind] = append(result[kind], f)
		}
	}
	return result
}

// DescribeFiles returns a human-readable summary of the files found.
func DescribeFiles(files []string) string {
	byKind := FilesByKind(files)
	var parts []string
	for _, kind := range []Kind{KindMarkup, KindScript} {
		if n := len(byKind[kind]); n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, kind))
		}
	}
	return strings.Join(parts, ", ")
}

// ---------------------------------------------------------------------------
// Counting
// ---------------------------------------------------------------------------

// Options configure Count.
type Options struct {
	Detector   *detect.Detector
	ScriptTags []string
	Entities   []string
	// Fallback is the encoding assumed for script files that are not UTF-8.
	Fallback string
	// Comments overrides the comment syntax per extension.
	Comments         map[string]script.Syntax
	TrailingComments bool
}

// SyntaxFor returns the comment syntax for a script extension, honoring
// overrides.
func (o Options) SyntaxFor(ext string) script.Syntax {
	if s, ok := o.Comments[ext]; ok {
		return s
	}
	s, _ := script.SyntaxFor("x" + ext)
	return s
}

// Result is the fragment count of one file.
type Result struct {
	Path      string
	Kind      Kind
	Fragments int
}

// Count extracts path with the pipeline its kind selects and returns how
// many fragments it holds.
func Count(path string, opts Options) (Result, error) {
	kind, ext := Classify(path)
	res := Result{Path: path, Kind: kind}

	switch kind {
	case KindMarkup:
		f, err := os.Open(path)
		if err != nil {
			return res, fmt.Errorf("opening %s: %w", path, err)
		}
		defer f.Close()
		doc, err := markup.Parse(f, markup.FormatFor(path))
		if err != nil {
			return res, fmt.Errorf("%s: %w", path, err)
		}
		res.Fragments = len(markup.Extract(doc, markup.Options{
			Detector:   opts.Detector,
			ScriptTags: opts.ScriptTags,
			Entities:   opts.Entities,
		}))

	case KindScript:
		doc, err := script.ReadFile(path, opts.Fallback)
		if err != nil {
			return res, err
		}
		res.Fragments = len(script.Extract(doc.Lines, script.Options{
			Syntax:           opts.SyntaxFor(ext),
			Detector:         opts.Detector,
			TrailingComments: opts.TrailingComments,
		}))

	default:
		return res, fmt.Errorf("%s: unsupported file type", path)
	}
	return res, nil
}
