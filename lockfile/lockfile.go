// Package lockfile implements hanloc.lock, a lock file that records, per
// document, the MD5 checksum it had when its fragments were extracted.
// Replacement uses it to warn when a document changed since extraction
// (structural addresses and line indices drift) and to refuse pairing a
// length-sorted text artifact with addresses.
//
// The lock file is stored in the working directory as hanloc.lock.
package lockfile

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// LockFileName is the default lock file name.
const LockFileName = "hanloc.lock"

// Version is the lock file format version.
const Version = 1

// Pipelines recorded in entries.
const (
	PipelineMarkup = "markup"
	PipelineScript = "script"
)

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// Entry is the extraction record of one document.
type Entry struct {
	// Checksum is the MD5 of the document bytes at extraction.
	Checksum string `yaml:"checksum"`
	// Pipeline is "markup" or "script".
	Pipeline string `yaml:"pipeline"`
	// Fragments is the number of fragments extracted.
	Fragments int `yaml:"fragments"`
	// Sorted is true when the text artifact was length-sorted.
	Sorted bool `yaml:"sorted,omitempty"`
	// Addresses and Texts name the artifacts written (markup), or Texts
	// the indexed artifact (script, when written to a file).
	Addresses string `yaml:"addresses,omitempty"`
	Texts     string `yaml:"texts,omitempty"`
}

// LockFile represents the hanloc.lock file structure.
type LockFile struct {
	Version   int              `yaml:"version"`
	Documents map[string]Entry `yaml:"documents"` // target -> entry

	mu   sync.Mutex `yaml:"-"`
	path string     `yaml:"-"`
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// Load reads a lock file from the given directory.
// Returns an empty lock file if the file doesn't exist.
func Load(dir string) (*LockFile, error) {
	path := filepath.Join(dir, LockFileName)
	lf := &LockFile{
		Version:   Version,
		Documents: make(map[string]Entry),
		path:      path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return lf, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, lf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	lf.path = path

	if lf.Version > Version {
		return nil, fmt.Errorf("%s: lock file version %d is newer than supported version %d", path, lf.Version, Version)
	}
	if lf.Documents == nil {
		lf.Documents = make(map[string]Entry)
	}

	return lf, nil
}

// Save writes the lock file to disk.
func (lf *LockFile) Save() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.path == "" {
		return fmt.Errorf("lock file path not set")
	}

	data, err := yaml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("marshaling lock file: %w", err)
	}

	if err := os.WriteFile(lf.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", lf.path, err)
	}

	return nil
}

// Path returns the lock file path.
func (lf *LockFile) Path() string {
	return lf.path
}

// ---------------------------------------------------------------------------
// Checksum operations
// ---------------------------------------------------------------------------

// Hash computes the MD5 hex digest of document content.
func Hash(content []byte) string {
	return fmt.Sprintf("%x", md5.Sum(content))
}

// TargetKey builds the lock file key for a document path:
// "site/index.html", "static/js/app.js".
func TargetKey(filePath string) string {
	return filepath.ToSlash(filepath.Clean(filePath))
}

// Record stores the extraction entry for a document.
func (lf *LockFile) Record(target string, e Entry) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	lf.Documents[target] = e
}

// Lookup returns the entry recorded for a document.
func (lf *LockFile) Lookup(target string) (Entry, bool) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	e, ok := lf.Documents[target]
	return e, ok
}

// IsChanged reports whether a document differs from its recorded
// checksum. Unrecorded documents count as changed.
func (lf *LockFile) IsChanged(target string, content []byte) bool {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	e, ok := lf.Documents[target]
	if !ok {
		return true
	}
	return e.Checksum != Hash(content)
}

// Clean removes entries whose document no longer exists relative to root.
// It returns the removed targets.
func (lf *LockFile) Clean(root string) []string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	var removed []string
	for t := range lf.Documents {
		if _, err := os.Stat(filepath.Join(root, filepath.FromSlash(t))); os.IsNotExist(err) {
			delete(lf.Documents, t)
			removed = append(removed, t)
		}
	}
	sort.Strings(removed)
	return removed
}

// ---------------------------------------------------------------------------
// Stats
// ---------------------------------------------------------------------------

// Stats returns the number of documents and total fragments recorded.
func (lf *LockFile) Stats() (documents, fragments int) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	documents = len(lf.Documents)
	for _, e := range lf.Documents {
		fragments += e.Fragments
	}
	return
}

// Targets returns sorted list of document keys.
func (lf *LockFile) Targets() []string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	targets := make([]string, 0, len(lf.Documents))
	for t := range lf.Documents {
		targets = append(targets, t)
	}
	sort.Strings(targets)
	return targets
}

// ---------------------------------------------------------------------------
// Human-readable summary
// ---------------------------------------------------------------------------

// Summary returns a human-readable summary string.
func (lf *LockFile) Summary() string {
	documents, fragments := lf.Stats()
	if documents == 0 {
		return "empty"
	}

	var parts []string
	for _, t := range lf.Targets() {
		e, _ := lf.Lookup(t)
		parts = append(parts, fmt.Sprintf("%s: %d %s fragments", t, e.Fragments, e.Pipeline))
	}
	return fmt.Sprintf("%d documents, %d fragments (%s)", documents, fragments, strings.Join(parts, ", "))
}
