package markup

import (
	"bytes"
	"fmt"
	"regexp"
	"unicode/utf8"

	"golang.org/x/net/html/charset"
	"golang.org/x/text/encoding"
)

var utf8BOM = []byte{0xef, 0xbb, 0xbf}

var xmlDeclEncoding = regexp.MustCompile(`^\s*<\?xml[^>]*\sencoding\s*=\s*["']([^"']+)["']`)

// source is a document decoded to UTF-8, remembering how to encode it back.
type source struct {
	text string
	// enc is nil for UTF-8.
	enc  encoding.Encoding
	name string
	bom  bool
}

// decodeSource converts a document to UTF-8. Valid UTF-8 passes through
// untouched (a UTF-8 BOM is stripped and remembered). Anything else is
// decoded with the XML declaration's encoding, or the one
// x/net/html/charset sniffs from a BOM or <meta> tag.
func decodeSource(src []byte, format Format) (source, error) {
	if bytes.HasPrefix(src, utf8BOM) && utf8.Valid(src) {
		return source{text: string(src[len(utf8BOM):]), name: "utf-8", bom: true}, nil
	}
	if utf8.Valid(src) {
		return source{text: string(src), name: "utf-8"}, nil
	}

	var (
		enc  encoding.Encoding
		name string
	)
	if format == FormatXML {
		if m := xmlDeclEncoding.FindSubmatch(src); m != nil {
			enc, name = charset.Lookup(string(m[1]))
		}
	}
	if enc == nil {
		enc, name, _ = charset.DetermineEncoding(src, "text/html")
	}
	out, err := enc.NewDecoder().Bytes(src)
	if err != nil {
		return source{}, fmt.Errorf("decoding %s document: %w", name, err)
	}
	return source{text: string(out), enc: enc, name: name}, nil
}

// encode converts UTF-8 text back to the document's original encoding.
func (s source) encode(text string) ([]byte, error) {
	if s.enc == nil {
		if s.bom {
			return append(append([]byte(nil), utf8BOM...), text...), nil
		}
		return []byte(text), nil
	}
	out, err := s.enc.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("encoding document as %s: %w", s.name, err)
	}
	return out, nil
}
