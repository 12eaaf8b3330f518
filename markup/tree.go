// Package markup implements the markup pipeline: it walks a parsed HTML or
// XML document, records a structural address for every text fragment in the
// target script, and writes translations back either through those
// addresses (structural mode) or directly into the raw document text with
// a whitespace-tolerant pattern (raw mode).
//
// Two tree backends sit behind one small element interface: HTML documents
// are parsed with golang.org/x/net/html, XML/XHTML documents with
// github.com/beevik/etree. Comments are dropped after parsing.
package markup

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// Format selects the tree backend.
type Format string

const (
	// FormatHTML parses tolerant HTML.
	FormatHTML Format = "html"
	// FormatXML parses XML and XHTML.
	FormatXML Format = "xml"
)

// xmlExtensions are parsed with the XML backend.
var xmlExtensions = map[string]bool{
	".xml":   true,
	".xhtml": true,
	".svg":   true,
	".fb2":   true,
	".opf":   true,
	".ncx":   true,
	".xlf":   true,
	".xliff": true,
}

// FormatFor picks a format from the file extension. Anything not known to
// be XML is treated as HTML.
func FormatFor(path string) Format {
	if xmlExtensions[strings.ToLower(filepath.Ext(path))] {
		return FormatXML
	}
	return FormatHTML
}

// ParseFormat validates a --format value. Empty means auto.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "":
		return "", nil
	case string(FormatHTML), "htm":
		return FormatHTML, nil
	case string(FormatXML), "xhtml":
		return FormatXML, nil
	}
	return "", fmt.Errorf("unknown markup format %q (valid: html, xml)", s)
}

// Attr is one attribute of an element. Key includes the namespace prefix
// when there is one ("xml:lang").
type Attr struct {
	Key   string
	Value string
}

// element is the backend-neutral view of a tree element.
//
// Text runs follow the lxml model: run 0 is the text before the first child
// element, run k is the text after the k-th child element, so
// len(runs()) == len(children())+1.
type element interface {
	tag() string
	children() []element
	attrs() []Attr
	setAttr(key, value string)
	runs() []string
	setRun(i int, text string) bool
}

// backend is a parsed tree that can render itself back to text.
type backend interface {
	root() element
	render(w io.Writer) error
}

// Document is a parsed markup document.
type Document struct {
	Format Format
	// Encoding is the name of the encoding the document was read in.
	Encoding string

	tree backend
	src  source
}

// Parse reads a document with the given format's backend. The input is
// decoded to UTF-8 first; Render encodes the output back.
func Parse(r io.Reader, format Format) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading document: %w", err)
	}
	if format == "" {
		format = FormatHTML
	}
	src, err := decodeSource(data, format)
	if err != nil {
		return nil, err
	}

	var tree backend
	switch format {
	case FormatXML:
		tree, err = parseXML(strings.NewReader(src.text))
	case FormatHTML:
		tree, err = parseHTML(strings.NewReader(src.text))
	default:
		return nil, fmt.Errorf("unknown markup format %q", format)
	}
	if err != nil {
		return nil, err
	}
	if tree.root() == nil {
		return nil, fmt.Errorf("parsing %s: document has no root element", format)
	}
	return &Document{Format: format, Encoding: src.name, tree: tree, src: src}, nil
}

// Render serializes the (possibly mutated) document in its original
// encoding.
func (d *Document) Render(w io.Writer) error {
	var buf bytes.Buffer
	if err := d.tree.render(&buf); err != nil {
		return err
	}
	out, err := d.src.encode(buf.String())
	if err != nil {
		return err
	}
	_, err = w.Write(out)
	return err
}

func lookupAttr(e element, key string) (string, bool) {
	for _, a := range e.attrs() {
		if a.Key == key {
			return a.Value, true
		}
	}
	return "", false
}
