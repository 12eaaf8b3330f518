package fragment

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestNodeAddressStringAndParse(t *testing.T) {
	tests := []struct {
		name string
		addr NodeAddress
		want string
	}{
		{name: "element", addr: NodeAddress{Path: "/html/body/div[2]/p"}, want: "/html/body/div[2]/p"},
		{name: "attribute", addr: NodeAddress{Path: "/html/body/img", Attr: "alt"}, want: "/html/body/img/@alt"},
		{name: "inline", addr: NodeAddress{Path: "/html/head/script[2]", Inline: true}, want: "/html/head/script[2]#inline"},
		{name: "later run", addr: NodeAddress{Path: "/html/body/p", Run: 2}, want: "/html/body/p/text()[3]"},
		{name: "namespaced attribute", addr: NodeAddress{Path: "/svg/text", Attr: "xml:lang"}, want: "/svg/text/@xml:lang"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.addr.String(); got != tc.want {
				t.Fatalf("String() = %q, want %q", got, tc.want)
			}
			back, err := ParseNodeAddress(tc.want)
			if err != nil {
				t.Fatalf("ParseNodeAddress(%q): %v", tc.want, err)
			}
			if back != tc.addr {
				t.Fatalf("ParseNodeAddress(%q) = %#v, want %#v", tc.want, back, tc.addr)
			}
		})
	}
}

func TestParseNodeAddressRejectsMalformed(t *testing.T) {
	for _, in := range []string{"", "html/body", "/html/body/@", "/@id", "/html/p/text()[0]"} {
		if _, err := ParseNodeAddress(in); err == nil {
			t.Fatalf("ParseNodeAddress(%q) expected error", in)
		}
	}
}

func TestFlatten(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"第一行\n第二行", "第一行 第二行"},
		{"第一行 \r\n\t  第二行", "第一行 第二行"},
		{"没有 换行", "没有 换行"},
		{"a  b", "a  b"},
	}
	for _, tc := range tests {
		if got := Flatten(tc.in); got != tc.want {
			t.Fatalf("Flatten(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSetLines(t *testing.T) {
	set := Set{
		{Address: NodeAddress{Path: "/html/head/title"}, Text: "短", Kind: KindElementText},
		{Address: NodeAddress{Path: "/html/body/img", Attr: "alt"}, Text: "很长的图片说明", Kind: KindAttributeValue},
		{Address: NodeAddress{Path: "/html/body/p"}, Text: "中等长度", Kind: KindElementText},
	}

	wantAddrs := []string{"/html/head/title", "/html/body/img/@alt", "/html/body/p"}
	if got := set.AddressLines(); !reflect.DeepEqual(got, wantAddrs) {
		t.Fatalf("AddressLines() = %v, want %v", got, wantAddrs)
	}

	if got := set.TextLines(false); !reflect.DeepEqual(got, []string{"短", "很长的图片说明", "中等长度"}) {
		t.Fatalf("TextLines(false) = %v", got)
	}
	if got := set.TextLines(true); !reflect.DeepEqual(got, []string{"很长的图片说明", "中等长度", "短"}) {
		t.Fatalf("TextLines(true) = %v", got)
	}
	// sorting must not touch the addresses
	if got := set.AddressLines(); !reflect.DeepEqual(got, wantAddrs) {
		t.Fatalf("AddressLines() after sort = %v", got)
	}
}

func TestIndexedLines(t *testing.T) {
	set := Set{
		{Address: LineAddress{Index: 7}, Text: "\tb(); // 另一条  ", Kind: KindScriptLine},
		{Address: LineAddress{Index: 2}, Text: "    alert('你好');", Kind: KindScriptLine},
		{Address: NodeAddress{Path: "/html"}, Text: "ignored"},
	}
	want := []string{"2,alert('你好');", "7,b(); // 另一条"}
	if got := set.IndexedLines(); !reflect.DeepEqual(got, want) {
		t.Fatalf("IndexedLines() = %v, want %v", got, want)
	}
}

func TestReadWriteLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	if err := WriteLines(path, []string{"你好", "", "世界"}); err != nil {
		t.Fatalf("WriteLines: %v", err)
	}
	got, err := ReadLines(path)
	if err != nil {
		t.Fatalf("ReadLines: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"你好", "", "世界"}) {
		t.Fatalf("ReadLines() = %q", got)
	}

	crlf := filepath.Join(dir, "crlf.txt")
	if err := os.WriteFile(crlf, []byte("\ufeff一\r\n二\r\n"), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err = ReadLines(crlf)
	if err != nil {
		t.Fatalf("ReadLines: %v", err)
	}
	if !reflect.DeepEqual(got, []string{"一", "二"}) {
		t.Fatalf("ReadLines(crlf) = %q", got)
	}

	if _, err := ReadLines(filepath.Join(dir, "missing.txt")); err == nil || !strings.Contains(err.Error(), "missing.txt") {
		t.Fatalf("expected error naming the missing file, got %v", err)
	}
}
