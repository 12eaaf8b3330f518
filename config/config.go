// Package config provides .hanloc.yaml configuration file support.
//
// The file is optional. When it is missing every setting takes its
// default. A .env file in the working directory is loaded with godotenv,
// and HANLOC_* environment variables override the file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/minios-linux/hanloc/detect"
	"github.com/minios-linux/hanloc/markup"
	"github.com/minios-linux/hanloc/script"
	"github.com/minios-linux/hanloc/sources"
	"github.com/minios-linux/hanloc/textenc"
)

// FileName is the default config file name.
const FileName = ".hanloc.yaml"

// Environment overrides.
const (
	EnvScripts          = "HANLOC_SCRIPTS"
	EnvFallbackEncoding = "HANLOC_FALLBACK_ENCODING"
	EnvLogLevel         = "HANLOC_LOG_LEVEL"
)

// Defaults.
const (
	DefaultAddresses    = "xpath.txt"
	DefaultTexts        = "out.txt"
	DefaultOutputSuffix = "_new"
	DefaultLogLevel     = "info"
)

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// File is the top-level .hanloc.yaml structure.
type File struct {
	// Scripts are the target script names (default ["cjk"]).
	Scripts []string `yaml:"scripts,omitempty"`
	// ScriptTags are markup elements scanned as inline script.
	ScriptTags []string `yaml:"script_tags,omitempty"`
	// WhitespaceEntities are tolerated as whitespace in markup text.
	WhitespaceEntities []string `yaml:"whitespace_entities,omitempty"`
	// FallbackEncoding is assumed for script files that are not UTF-8.
	FallbackEncoding string `yaml:"fallback_encoding,omitempty"`
	// BackupSuffix names the copy made before a script rewrite.
	BackupSuffix string `yaml:"backup_suffix,omitempty"`
	// OutputSuffix names the markup replacement output.
	OutputSuffix string `yaml:"output_suffix,omitempty"`
	// Artifacts names the markup artifact files.
	Artifacts Artifacts `yaml:"artifacts,omitempty"`
	// TrailingComments also extracts script lines whose target-script
	// text is only in a trailing comment.
	TrailingComments bool `yaml:"trailing_comments,omitempty"`
	// Comments overrides the comment syntax per file extension.
	Comments map[string]CommentSyntax `yaml:"comments,omitempty"`
	// LogLevel is a zerolog level name.
	LogLevel string `yaml:"log_level,omitempty"`

	path string
}

// Artifacts are the markup artifact file names.
type Artifacts struct {
	Addresses string `yaml:"addresses,omitempty"`
	Texts     string `yaml:"texts,omitempty"`
}

// CommentSyntax is either a syntax name ("c", "hash", "block", "dash") or a
// mapping with line, block_open and block_close.
type CommentSyntax script.Syntax

// UnmarshalYAML accepts both forms.
func (c *CommentSyntax) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		s, ok := script.ParseSyntax(node.Value)
		if !ok {
			return fmt.Errorf("line %d: unknown comment syntax %q (valid: c, hash, block, dash)", node.Line, node.Value)
		}
		*c = CommentSyntax(s)
		return nil
	}
	var s script.Syntax
	if err := node.Decode(&s); err != nil {
		return err
	}
	if s.Line == "" && s.BlockOpen == "" {
		return fmt.Errorf("line %d: comment syntax needs line or block_open", node.Line)
	}
	if (s.BlockOpen == "") != (s.BlockClose == "") {
		return fmt.Errorf("line %d: block_open and block_close go together", node.Line)
	}
	*c = CommentSyntax(s)
	return nil
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns the configuration used without a config file.
func Default() *File {
	f := &File{}
	f.applyDefaults()
	return f
}

// Load reads the config file at path. An empty path means FileName in the
// working directory, which may be missing. An explicitly named file must
// exist. Environment overrides are applied and the result validated.
func Load(path string) (*File, error) {
	explicit := path != ""
	if !explicit {
		path = FileName
	}

	f := &File{}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := decode(data, f); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		f.path = path
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	f.applyEnv()
	f.applyDefaults()

	if err := f.Validate(); err != nil {
		if f.path != "" {
			return nil, fmt.Errorf("%s: %w", f.path, err)
		}
		return nil, err
	}
	return f, nil
}

// decode rejects keys the schema does not know.
func decode(data []byte, f *File) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(f); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (f *File) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvScripts)); v != "" {
		f.Scripts = nil
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				f.Scripts = append(f.Scripts, s)
			}
		}
	}
	if v := strings.TrimSpace(os.Getenv(EnvFallbackEncoding)); v != "" {
		f.FallbackEncoding = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvLogLevel)); v != "" {
		f.LogLevel = v
	}
}

func (f *File) applyDefaults() {
	if len(f.Comments) > 0 {
		// extensions match case-insensitively
		comments := make(map[string]CommentSyntax, len(f.Comments))
		for ext, s := range f.Comments {
			comments[strings.ToLower(ext)] = s
		}
		f.Comments = comments
	}
	if len(f.Scripts) == 0 {
		f.Scripts = []string{detect.CJKName}
	}
	if f.ScriptTags == nil {
		f.ScriptTags = markup.DefaultScriptTags
	}
	if f.WhitespaceEntities == nil {
		f.WhitespaceEntities = markup.DefaultEntities
	}
	if f.FallbackEncoding == "" {
		f.FallbackEncoding = textenc.DefaultFallback
	}
	if f.BackupSuffix == "" {
		f.BackupSuffix = script.DefaultBackupSuffix
	}
	if f.OutputSuffix == "" {
		f.OutputSuffix = DefaultOutputSuffix
	}
	if f.Artifacts.Addresses == "" {
		f.Artifacts.Addresses = DefaultAddresses
	}
	if f.Artifacts.Texts == "" {
		f.Artifacts.Texts = DefaultTexts
	}
	if f.LogLevel == "" {
		f.LogLevel = DefaultLogLevel
	}
}

// Validate checks values that would otherwise fail deep inside a run.
func (f *File) Validate() error {
	if _, err := detect.New(f.Scripts...); err != nil {
		return fmt.Errorf("scripts: %w", err)
	}
	if _, err := textenc.Lookup(f.FallbackEncoding); err != nil {
		return fmt.Errorf("fallback_encoding: %w", err)
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(f.LogLevel)); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	for ext := range f.Comments {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("comments: extension %q must start with a dot", ext)
		}
	}
	return nil
}

// Path returns the file the config was read from, or "" for defaults.
func (f *File) Path() string {
	return f.path
}

// ---------------------------------------------------------------------------
// Derived settings
// ---------------------------------------------------------------------------

// Detector builds the script detector.
func (f *File) Detector() *detect.Detector {
	d, err := detect.New(f.Scripts...)
	if err != nil {
		return detect.Default()
	}
	return d
}

// Level returns the configured log level.
func (f *File) Level() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(f.LogLevel))
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}

// Syntax returns the comment syntax for a script file: a configured
// override for its extension, else the built-in table.
func (f *File) Syntax(path string) script.Syntax {
	if s, ok := f.Comments[strings.ToLower(filepath.Ext(path))]; ok {
		return script.Syntax(s)
	}
	s, _ := script.SyntaxFor(path)
	return s
}

// SourceOptions returns the options for scanning with package sources.
func (f *File) SourceOptions() sources.Options {
	comments := make(map[string]script.Syntax, len(f.Comments))
	for ext, s := range f.Comments {
		comments[ext] = script.Syntax(s)
	}
	return sources.Options{
		Detector:         f.Detector(),
		ScriptTags:       f.ScriptTags,
		Entities:         f.WhitespaceEntities,
		Fallback:         f.FallbackEncoding,
		Comments:         comments,
		TrailingComments: f.TrailingComments,
	}
}
