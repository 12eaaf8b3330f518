package script

import (
	"fmt"
	"os"
	"strings"

	"github.com/minios-linux/hanloc/textenc"
)

// DefaultBackupSuffix is appended to the target name before a rewrite.
const DefaultBackupSuffix = ".bak"

// Document is a script file split into lines. Each line keeps its own
// terminator so a rewrite leaves untouched lines byte-identical.
type Document struct {
	Lines       []string
	Terminators []string
	Encoding    textenc.Encoding
}

// ParseText splits UTF-8 text into a Document.
func ParseText(text string) *Document {
	doc := &Document{Encoding: textenc.UTF8}
	for text != "" {
		i := strings.IndexByte(text, '\n')
		if i < 0 {
			doc.Lines = append(doc.Lines, text)
			doc.Terminators = append(doc.Terminators, "")
			break
		}
		line, term := text[:i], "\n"
		if strings.HasSuffix(line, "\r") {
			line, term = line[:len(line)-1], "\r\n"
		}
		doc.Lines = append(doc.Lines, line)
		doc.Terminators = append(doc.Terminators, term)
		text = text[i+1:]
	}
	return doc
}

// ReadFile reads a script file in its detected encoding. fallback names
// the encoding assumed for files that are neither BOM-marked nor valid
// UTF-8 (empty means textenc.DefaultFallback).
func ReadFile(path, fallback string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	enc, err := textenc.Detect(data, fallback)
	if err != nil {
		return nil, err
	}
	text, err := enc.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	doc := ParseText(text)
	doc.Encoding = enc
	return doc, nil
}

// Text joins the lines back together with their terminators.
func (d *Document) Text() string {
	var b strings.Builder
	for i, l := range d.Lines {
		b.WriteString(l)
		b.WriteString(d.Terminators[i])
	}
	return b.String()
}

// WriteFile writes the document in the encoding it was read in.
func (d *Document) WriteFile(path string) error {
	data, err := d.Encoding.Encode(d.Text())
	if err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}

// Backup copies path to path+suffix byte for byte and returns the backup
// path.
func Backup(path, suffix string) (string, error) {
	if suffix == "" {
		suffix = DefaultBackupSuffix
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("backing up %s: %w", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("backing up %s: %w", path, err)
	}
	dst := path + suffix
	if err := os.WriteFile(dst, data, info.Mode().Perm()); err != nil {
		return "", fmt.Errorf("backing up %s: %w", path, err)
	}
	return dst, nil
}
