// Package script implements the script-file pipeline: a line-level comment
// classifier, a collector that records every code line containing the
// target script by its zero-based index, and a rewriter that puts
// "<index>,<text>" translations back in place, keeping each line's
// indentation and terminator.
//
// The classifier is a line heuristic, not a lexer. It does not understand
// string literals that contain comment tokens, nested block comments, or a
// block comment that opens in the middle of a code line and spans lines.
package script

import (
	"path/filepath"
	"strings"
	"unicode"
)

// Syntax describes a language's comment tokens. An empty token is not used.
type Syntax struct {
	Line       string `yaml:"line"`
	BlockOpen  string `yaml:"block_open"`
	BlockClose string `yaml:"block_close"`
}

var (
	// CStyle covers // and /* */.
	CStyle = Syntax{Line: "//", BlockOpen: "/*", BlockClose: "*/"}
	// Hash covers # line comments.
	Hash = Syntax{Line: "#"}
	// BlockOnly covers /* */ without line comments (CSS).
	BlockOnly = Syntax{BlockOpen: "/*", BlockClose: "*/"}
	// Dash covers -- line comments.
	Dash = Syntax{Line: "--"}
)

// Extensions maps script file extensions to their comment syntax.
var Extensions = map[string]Syntax{
	".js":    CStyle,
	".jsx":   CStyle,
	".mjs":   CStyle,
	".ts":    CStyle,
	".tsx":   CStyle,
	".vue":   CStyle,
	".java":  CStyle,
	".kt":    CStyle,
	".c":     CStyle,
	".h":     CStyle,
	".cc":    CStyle,
	".cpp":   CStyle,
	".cxx":   CStyle,
	".hpp":   CStyle,
	".m":     CStyle,
	".cs":    CStyle,
	".go":    CStyle,
	".php":   CStyle,
	".swift": CStyle,
	".scala": CStyle,
	".dart":  CStyle,
	".vala":  CStyle,
	".less":  CStyle,
	".scss":  CStyle,
	".css":   BlockOnly,
	".py":    Hash,
	".sh":    Hash,
	".bash":  Hash,
	".rb":    Hash,
	".pl":    Hash,
	".pm":    Hash,
	".r":     Hash,
	".tcl":   Hash,
	".awk":   Hash,
	".yaml":  Hash,
	".yml":   Hash,
	".toml":  Hash,
	".lua":   Dash,
	".sql":   {Line: "--", BlockOpen: "/*", BlockClose: "*/"},
}

// SyntaxFor returns the comment syntax for a file by extension. Unknown
// extensions get CStyle.
func SyntaxFor(path string) (Syntax, bool) {
	s, ok := Extensions[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return CStyle, false
	}
	return s, true
}

// ParseSyntax resolves a configured syntax name: "c", "hash", "block",
// "dash".
func ParseSyntax(name string) (Syntax, bool) {
	switch strings.ToLower(name) {
	case "c", "c-style", "cstyle":
		return CStyle, true
	case "hash", "#":
		return Hash, true
	case "block", "css":
		return BlockOnly, true
	case "dash", "--":
		return Dash, true
	}
	return Syntax{}, false
}

// ---------------------------------------------------------------------------
// Classifier
// ---------------------------------------------------------------------------

// State is the classifier state between lines.
type State int

const (
	Code State = iota
	// InSingleLineComment lasts for the one line that is a whole comment.
	InSingleLineComment
	// InMultiLineComment lasts until a line ending in the block-close token.
	InMultiLineComment
)

func (s State) String() string {
	switch s {
	case Code:
		return "code"
	case InSingleLineComment:
		return "single-line-comment"
	case InMultiLineComment:
		return "multi-line-comment"
	}
	return "unknown"
}

// Class is the classification of one line.
type Class int

const (
	// ClassCode is a line without comment tokens.
	ClassCode Class = iota
	// ClassCodeWithComment is code followed (or preceded) by a comment on
	// the same line; the returned code has the comment removed.
	ClassCodeWithComment
	// ClassLineComment is a line that is wholly a comment.
	ClassLineComment
	// ClassBlockComment is a line inside (or opening or closing) a
	// multi-line block comment.
	ClassBlockComment
)

func (c Class) String() string {
	switch c {
	case ClassCode:
		return "code"
	case ClassCodeWithComment:
		return "code-with-comment"
	case ClassLineComment:
		return "line-comment"
	case ClassBlockComment:
		return "block-comment"
	}
	return "unknown"
}

// Skipped reports whether lines of this class carry no code.
func (c Class) Skipped() bool {
	return c == ClassLineComment || c == ClassBlockComment
}

// Classifier walks a file line by line.
type Classifier struct {
	syntax Syntax
	state  State
}

// NewClassifier starts a classifier in the Code state.
func NewClassifier(syntax Syntax) *Classifier {
	return &Classifier{syntax: syntax}
}

// State returns the state after the last line.
func (c *Classifier) State() State {
	return c.state
}

// Next classifies one line (without its terminator) and returns the code
// part of it: the whole line for ClassCode, the line without its comment
// for ClassCodeWithComment, empty for comment lines.
func (c *Classifier) Next(line string) (Class, string) {
	s := c.syntax

	if c.state == InMultiLineComment {
		if strings.HasSuffix(strings.TrimRightFunc(line, unicode.IsSpace), s.BlockClose) {
			c.state = Code
		}
		return ClassBlockComment, ""
	}
	c.state = Code

	trimmed := strings.TrimSpace(line)
	if s.Line != "" && strings.HasPrefix(trimmed, s.Line) {
		c.state = InSingleLineComment
		return ClassLineComment, ""
	}

	if s.BlockOpen != "" && strings.HasPrefix(trimmed, s.BlockOpen) {
		rest := trimmed[len(s.BlockOpen):]
		if strings.HasSuffix(rest, s.BlockClose) {
			c.state = InSingleLineComment
			return ClassLineComment, ""
		}
		end := strings.Index(rest, s.BlockClose)
		if end < 0 {
			c.state = InMultiLineComment
			return ClassBlockComment, ""
		}
		// "/* note */ code();": keep what follows the comment.
		lead := line[:len(line)-len(strings.TrimLeftFunc(line, unicode.IsSpace))]
		code := lead + rest[end+len(s.BlockClose):]
		return ClassCodeWithComment, cutComment(code, s)
	}

	if i := commentStart(line, s); i >= 0 {
		return ClassCodeWithComment, line[:i]
	}
	return ClassCode, line
}

// commentStart returns the index of the first comment-opening token in
// line, or -1.
func commentStart(line string, s Syntax) int {
	at := -1
	for _, tok := range []string{s.Line, s.BlockOpen} {
		if tok == "" {
			continue
		}
		if i := strings.Index(line, tok); i >= 0 && (at < 0 || i < at) {
			at = i
		}
	}
	return at
}

func cutComment(line string, s Syntax) string {
	if i := commentStart(line, s); i >= 0 {
		return line[:i]
	}
	return line
}
