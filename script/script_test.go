package script

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"go.uber.org/multierr"
	"golang.org/x/text/encoding/simplifiedchinese"
)

func TestClassifier(t *testing.T) {
	tests := []struct {
		name      string
		line      string
		wantClass Class
		wantCode  string
	}{
		{name: "plain code", line: "   var a = 1; ", wantClass: ClassCode, wantCode: "   var a = 1; "},
		{name: "line comment", line: "   // var a = 1; ", wantClass: ClassLineComment},
		{name: "one-line block", line: "   /* var a = 1; */  ", wantClass: ClassLineComment},
		{name: "trailing block", line: "   var a = 1; /* comments */  ", wantClass: ClassCodeWithComment, wantCode: "   var a = 1; "},
		{name: "trailing line comment", line: "   var a = 1; // comments     ", wantClass: ClassCodeWithComment, wantCode: "   var a = 1; "},
		{name: "earliest token wins", line: "x(); /* a // b */", wantClass: ClassCodeWithComment, wantCode: "x(); "},
		{name: "leading block then code", line: "  /* note */ go(); // tail", wantClass: ClassCodeWithComment, wantCode: "   go(); "},
		{name: "block opens", line: "   /* multi line comments start     ", wantClass: ClassBlockComment},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			class, code := NewClassifier(CStyle).Next(tc.line)
			if class != tc.wantClass || code != tc.wantCode {
				t.Fatalf("Next(%q) = (%v, %q), want (%v, %q)", tc.line, class, code, tc.wantClass, tc.wantCode)
			}
		})
	}
}

func TestClassifierTrailingVersusWholeComment(t *testing.T) {
	c := NewClassifier(CStyle)

	class, code := c.Next("code(); /* note */")
	if class != ClassCodeWithComment || code != "code(); " {
		t.Fatalf("code with trailing comment = (%v, %q)", class, code)
	}
	if c.State() != Code {
		t.Fatalf("state after code line = %v", c.State())
	}

	class, _ = c.Next("/* note */")
	if class != ClassLineComment {
		t.Fatalf("whole comment = %v, want %v", class, ClassLineComment)
	}
	if c.State() != InSingleLineComment {
		t.Fatalf("state after whole comment = %v", c.State())
	}

	if class, _ = c.Next("next();"); class != ClassCode || c.State() != Code {
		t.Fatalf("line after single-line comment = %v in state %v", class, c.State())
	}
}

func TestClassifierBlockState(t *testing.T) {
	c := NewClassifier(CStyle)
	lines := []struct {
		line  string
		class Class
		state State
	}{
		{"/* 开始", ClassBlockComment, InMultiLineComment},
		{"code(); // looks like code", ClassBlockComment, InMultiLineComment},
		{"   end */   ", ClassBlockComment, Code},
		{"after();", ClassCode, Code},
	}
	for _, l := range lines {
		class, _ := c.Next(l.line)
		if class != l.class || c.State() != l.state {
			t.Fatalf("Next(%q) = %v in state %v, want %v in state %v", l.line, class, c.State(), l.class, l.state)
		}
	}
}

func TestExtractDoesNotLeakBlockState(t *testing.T) {
	lines := []string{"a();", "/* 中文注释", "still comment", "*/", "b(); // 另一条"}

	set := Extract(lines, Options{})
	if len(set) != 0 {
		t.Fatalf("comment-stripped extraction = %q, want none", set.IndexedLines())
	}

	set = Extract(lines, Options{TrailingComments: true})
	if got := set.IndexedLines(); !reflect.DeepEqual(got, []string{"4,b(); // 另一条"}) {
		t.Fatalf("IndexedLines = %q", got)
	}
	if set[0].Code != "b(); " {
		t.Fatalf("Code = %q, want %q", set[0].Code, "b(); ")
	}
	if set[0].Text != "b(); // 另一条" {
		t.Fatalf("Text = %q", set[0].Text)
	}
}

func TestExtract(t *testing.T) {
	lines := []string{
		"// 文件头注释",
		"var title = '标题';",
		"    alert(\"保存成功\"); // 提示",
		"var x = 1; // 只有注释是中文",
		"/*",
		" * 多行注释",
		" */",
		"\tvar label = \"名称\";",
	}
	got := Extract(lines, Options{}).IndexedLines()
	want := []string{
		"1,var title = '标题';",
		"2,alert(\"保存成功\"); // 提示",
		"7,var label = \"名称\";",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("IndexedLines = %q, want %q", got, want)
	}
}

func TestExtractHashSyntax(t *testing.T) {
	lines := []string{"#!/bin/sh", "# 注释", "echo \"你好\" # 问候", "echo hi # 中文"}
	got := Extract(lines, Options{Syntax: Hash}).IndexedLines()
	if want := []string{"2,echo \"你好\" # 问候"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("IndexedLines = %q, want %q", got, want)
	}
}

func TestSyntaxFor(t *testing.T) {
	if s, ok := SyntaxFor("app/main.JS"); !ok || s != CStyle {
		t.Fatalf("SyntaxFor(.JS) = %+v, %v", s, ok)
	}
	if s, _ := SyntaxFor("run.py"); s != Hash {
		t.Fatalf("SyntaxFor(.py) = %+v", s)
	}
	if s, ok := SyntaxFor("notes.unknown"); ok || s != CStyle {
		t.Fatalf("SyntaxFor(unknown) = %+v, %v", s, ok)
	}
}

func TestParseEntry(t *testing.T) {
	tests := []struct {
		line    string
		want    Entry
		wantErr bool
	}{
		{line: "0,replaced;", want: Entry{0, "replaced;"}},
		{line: " 12 ,  alert('a, b');  ", want: Entry{12, "alert('a, b');"}},
		{line: "no separator", wantErr: true},
		{line: "x,text", wantErr: true},
	}
	for _, tc := range tests {
		got, err := ParseEntry(tc.line)
		if tc.wantErr {
			if !errors.Is(err, ErrMalformedEntry) {
				t.Fatalf("ParseEntry(%q) err = %v, want ErrMalformedEntry", tc.line, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Fatalf("ParseEntry(%q) = %+v, %v, want %+v", tc.line, got, err, tc.want)
		}
	}
}

func TestParseEntriesReportsEveryBadLine(t *testing.T) {
	in := "0,ok\n\nbad\n2,fine\nalso bad\n"
	_, err := ParseEntries(strings.NewReader(in))
	if got := len(multierr.Errors(err)); got != 2 {
		t.Fatalf("got %d errors (%v), want 2", got, err)
	}
	if !errors.Is(err, ErrMalformedEntry) {
		t.Fatalf("err = %v, want ErrMalformedEntry", err)
	}

	entries, err := ParseEntries(strings.NewReader("0,a\n\n3,b\n"))
	if err != nil {
		t.Fatal(err)
	}
	if want := []Entry{{0, "a"}, {3, "b"}}; !reflect.DeepEqual(entries, want) {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestApplyKeepsIndentation(t *testing.T) {
	doc := ParseText("    原文;\n")
	sum, err := Apply(doc, []Entry{{0, "replaced;"}})
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if sum.Applied != 1 {
		t.Fatalf("summary = %s", sum)
	}
	if got := doc.Text(); got != "    replaced;\n" {
		t.Fatalf("Text = %q", got)
	}
}

func TestApplyLeavesOtherLinesAlone(t *testing.T) {
	src := "a();\r\n\tvar s = '中文';\r\nb();"
	doc := ParseText(src)
	if _, err := Apply(doc, []Entry{{1, "  var s = 'Chinese';  "}}); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if got, want := doc.Text(), "a();\r\n\tvar s = 'Chinese';\r\nb();"; got != want {
		t.Fatalf("Text = %q, want %q", got, want)
	}
}

func TestApplyOutOfBoundsAppliesNothing(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 10; i++ {
		b.WriteString("    第" + string(rune('0'+i)) + "行;\n")
	}
	src := b.String()
	doc := ParseText(src)

	sum, err := Apply(doc, []Entry{{0, "first;"}, {9999, "nope;"}, {-1, "negative;"}, {5, "sixth;"}})
	if !errors.Is(err, ErrIndexOutOfBounds) {
		t.Fatalf("err = %v, want ErrIndexOutOfBounds", err)
	}
	if got := len(multierr.Errors(err)); got != 2 {
		t.Fatalf("got %d errors, want 2", got)
	}
	if sum.Applied != 0 {
		t.Fatalf("summary = %s", sum)
	}
	if doc.Text() != src {
		t.Fatalf("document changed:\n%s", doc.Text())
	}
}

func TestReadWriteKeepsEncoding(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.js")

	src := "var a = '中文';\nvar b = 1;\n"
	gbk, err := simplifiedchinese.GBK.NewEncoder().String(src)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(gbk), 0644); err != nil {
		t.Fatal(err)
	}

	doc, err := ReadFile(path, "")
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if doc.Encoding.Name != "gb18030" {
		t.Fatalf("encoding = %s, want gb18030", doc.Encoding)
	}
	if got := Extract(doc.Lines, Options{}).IndexedLines(); !reflect.DeepEqual(got, []string{"0,var a = '中文';"}) {
		t.Fatalf("IndexedLines = %q", got)
	}

	backup, err := Backup(path, "")
	if err != nil {
		t.Fatalf("Backup: %v", err)
	}
	if backup != path+".bak" {
		t.Fatalf("backup = %s", backup)
	}

	if _, err := Apply(doc, []Entry{{0, "var a = '汉字';"}}); err != nil {
		t.Fatal(err)
	}
	if err := doc.WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := simplifiedchinese.GBK.NewEncoder().String("var a = '汉字';\nvar b = 1;\n")
	if string(data) != want {
		t.Fatalf("rewritten file is not GBK-encoded: %q", data)
	}
	orig, err := os.ReadFile(backup)
	if err != nil {
		t.Fatal(err)
	}
	if string(orig) != gbk {
		t.Fatal("backup differs from the original bytes")
	}
}
