// Package textenc detects the character encoding of script source files and
// converts between that encoding and UTF-8, so a file can be rewritten in
// the encoding it was read in.
//
// Detection order: byte order mark, valid UTF-8, then a configured fallback
// (gb18030 by default, which covers legacy GBK/GB2312 Chinese sources).
package textenc

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
)

// DefaultFallback is used when a file is neither marked nor valid UTF-8.
const DefaultFallback = "gb18030"

var (
	bomUTF8    = []byte{0xef, 0xbb, 0xbf}
	bomUTF16LE = []byte{0xff, 0xfe}
	bomUTF16BE = []byte{0xfe, 0xff}
)

// Encoding is a detected file encoding.
type Encoding struct {
	// Name is the canonical WHATWG name ("utf-8", "gb18030", ...).
	Name string
	// BOM is the byte order mark found at the start of the file, if any.
	BOM []byte

	enc encoding.Encoding
}

// UTF8 is plain UTF-8 without a byte order mark.
var UTF8 = Encoding{Name: "utf-8", enc: unicode.UTF8}

// Lookup resolves an encoding label ("gbk", "big5", "shift_jis", ...).
func Lookup(label string) (Encoding, error) {
	enc, err := htmlindex.Get(label)
	if err != nil {
		return Encoding{}, fmt.Errorf("unknown encoding %q: %w", label, err)
	}
	name, err := htmlindex.Name(enc)
	if err != nil {
		name = label
	}
	return Encoding{Name: name, enc: enc}, nil
}

// Detect picks the encoding of data.
func Detect(data []byte, fallback string) (Encoding, error) {
	switch {
	case bytes.HasPrefix(data, bomUTF8):
		return Encoding{Name: "utf-8", BOM: bomUTF8, enc: unicode.UTF8}, nil
	case bytes.HasPrefix(data, bomUTF16LE):
		return Encoding{Name: "utf-16le", BOM: bomUTF16LE, enc: unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)}, nil
	case bytes.HasPrefix(data, bomUTF16BE):
		return Encoding{Name: "utf-16be", BOM: bomUTF16BE, enc: unicode.UTF16(unicode.BigEndian, unicode.IgnoreBOM)}, nil
	}

	if utf8.Valid(data) {
		return UTF8, nil
	}

	if fallback == "" {
		fallback = DefaultFallback
	}
	return Lookup(fallback)
}

// Decode converts data (including any BOM) to a UTF-8 string.
func (e Encoding) Decode(data []byte) (string, error) {
	data = bytes.TrimPrefix(data, e.BOM)
	if e.enc == nil || e.enc == unicode.UTF8 {
		return string(data), nil
	}
	out, err := e.enc.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("decoding %s: %w", e.Name, err)
	}
	return string(out), nil
}

// Encode converts s back to the encoding, restoring the BOM.
func (e Encoding) Encode(s string) ([]byte, error) {
	var body []byte
	if e.enc == nil || e.enc == unicode.UTF8 {
		body = []byte(s)
	} else {
		out, err := e.enc.NewEncoder().Bytes([]byte(s))
		if err != nil {
			return nil, fmt.Errorf("encoding %s: %w", e.Name, err)
		}
		body = out
	}
	if len(e.BOM) == 0 {
		return body, nil
	}
	return append(append([]byte(nil), e.BOM...), body...), nil
}

func (e Encoding) String() string {
	if len(e.BOM) > 0 {
		return e.Name + " (BOM)"
	}
	return e.Name
}
