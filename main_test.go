package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/minios-linux/hanloc/fragment"
	"github.com/minios-linux/hanloc/lockfile"
	"github.com/minios-linux/hanloc/markup"
	"github.com/minios-linux/hanloc/script"
)

// execute runs the root command with args and returns what it printed.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	return string(data)
}

const appJS = "var a = 1;\n" +
	"// 注释\n" +
	"var msg = \"你好\";\n" +
	"    alert(\"世界\");\n"

func TestVersionCommand(t *testing.T) {
	t.Chdir(t.TempDir())
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, "hanloc version dev") {
		t.Fatalf("version output = %q", out)
	}
}

func TestScriptWithoutArgumentsPrintsUsage(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	out, err := execute(t, "script")
	if err != nil {
		t.Fatalf("script without arguments: %v", err)
	}
	if !strings.Contains(out, "Usage:") {
		t.Fatalf("output = %q, want usage", out)
	}
	if !strings.Contains(out, "b(); // 另一条\nis skipped unless --trailing-comments") {
		t.Fatalf("help %q does not explain --trailing-comments", out)
	}
	if _, err := os.Stat(filepath.Join(dir, lockfile.LockFileName)); !os.IsNotExist(err) {
		t.Fatal("usage run should not touch the lock file")
	}
}

func TestScriptMissingTarget(t *testing.T) {
	t.Chdir(t.TempDir())

	out, err := execute(t, "script", "nope.js", "-e")
	if err != nil {
		t.Fatalf("missing target should not fail: %v", err)
	}
	if !strings.Contains(out, "nope.js does not exist") {
		t.Fatalf("output = %q", out)
	}
}

func TestScriptFlagValidation(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{name: "extract and replace", args: []string{"script", "app.js", "-e", "-r", "-f", "t.txt"}, wantErr: "none of the others"},
		{name: "neither", args: []string{"script", "app.js"}, wantErr: "--extract or --replace"},
		{name: "replace without file", args: []string{"script", "app.js", "-r"}, wantErr: "--translate-file"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			dir := t.TempDir()
			t.Chdir(dir)
			writeFile(t, filepath.Join(dir, "app.js"), appJS)

			_, err := execute(t, tc.args...)
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("err = %v, want it to mention %q", err, tc.wantErr)
			}
			if got := readFile(t, filepath.Join(dir, "app.js")); got != appJS {
				t.Fatalf("target changed: %q", got)
			}
		})
	}
}

func TestScriptExtractThenReplace(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, "app.js", appJS)

	out, err := execute(t, "script", "app.js", "-e", "-o", "lines.txt")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	for _, want := range []string{
		"line 2 : var msg = \"你好\";",
		"line 3 :     alert(\"世界\");",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output %q lacks %q", out, want)
		}
	}
	if strings.Contains(out, "注释") {
		t.Fatalf("comment line echoed: %q", out)
	}

	lines, err := fragment.ReadLines("lines.txt")
	if err != nil {
		t.Fatal(err)
	}
	wantLines := []string{"2,var msg = \"你好\";", "3,alert(\"世界\");"}
	if strings.Join(lines, "\n") != strings.Join(wantLines, "\n") {
		t.Fatalf("lines.txt = %q, want %q", lines, wantLines)
	}

	lf, err := lockfile.Load(".")
	if err != nil {
		t.Fatal(err)
	}
	if e, ok := lf.Lookup("app.js"); !ok || e.Fragments != 2 || e.Pipeline != lockfile.PipelineScript {
		t.Fatalf("lock entry = %+v, %v", e, ok)
	}

	writeFile(t, "translated.txt", "2,var msg = \"hello\";\n3,alert(\"world\");\n")
	out, err = execute(t, "script", "app.js", "-r", "-f", "translated.txt", "-s")
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	if out != "" {
		t.Fatalf("silent replace printed %q", out)
	}

	want := "var a = 1;\n" +
		"// 注释\n" +
		"var msg = \"hello\";\n" +
		"    alert(\"world\");\n"
	if got := readFile(t, "app.js"); got != want {
		t.Fatalf("app.js = %q, want %q", got, want)
	}
	if got := readFile(t, "app.js"+script.DefaultBackupSuffix); got != appJS {
		t.Fatalf("backup = %q, want original", got)
	}
}

func TestScriptReplaceOutOfBoundsChangesNothing(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, "app.js", appJS)
	writeFile(t, "translated.txt", "2,var msg = \"hello\";\n9999,nope\n")

	_, err := execute(t, "script", "app.js", "-r", "-f", "translated.txt")
	if !errors.Is(err, script.ErrIndexOutOfBounds) {
		t.Fatalf("err = %v, want ErrIndexOutOfBounds", err)
	}
	if got := readFile(t, "app.js"); got != appJS {
		t.Fatalf("app.js changed: %q", got)
	}
	if _, err := os.Stat("app.js" + script.DefaultBackupSuffix); !os.IsNotExist(err) {
		t.Fatal("no backup expected when nothing is applied")
	}
}

const mainHTML = `<html><head><title>标题</title></head>
<body><p>你好，世界</p><img src="a.png" alt="图片"></body></html>
`

var translations = map[string]string{
	"标题":    "Title",
	"你好，世界": "Hello, world",
	"图片":    "Picture",
}

// translate writes the translated artifact for the text artifact at path.
func translate(t *testing.T, textsPath, outPath string) {
	t.Helper()
	texts, err := fragment.ReadLines(textsPath)
	if err != nil {
		t.Fatal(err)
	}
	out := make([]string, len(texts))
	for i, s := range texts {
		tr, ok := translations[s]
		if !ok {
			t.Fatalf("unexpected extracted text %q", s)
		}
		out[i] = tr
	}
	if err := fragment.WriteLines(outPath, out); err != nil {
		t.Fatal(err)
	}
}

func TestMarkupExtractThenRawReplace(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, "main.html", mainHTML)

	if _, err := execute(t, "markup", "extract", "main.html"); err != nil {
		t.Fatalf("extract: %v", err)
	}
	addrs, err := fragment.ReadLines("xpath.txt")
	if err != nil {
		t.Fatal(err)
	}
	wantAddrs := []string{"/html/head/title", "/html/body/p", "/html/body/img/@alt"}
	if strings.Join(addrs, "\n") != strings.Join(wantAddrs, "\n") {
		t.Fatalf("xpath.txt = %q, want %q", addrs, wantAddrs)
	}

	lf, err := lockfile.Load(".")
	if err != nil {
		t.Fatal(err)
	}
	e, ok := lf.Lookup("main.html")
	if !ok || e.Fragments != 3 || e.Sorted || e.Checksum != lockfile.Hash([]byte(mainHTML)) {
		t.Fatalf("lock entry = %+v, %v", e, ok)
	}

	translate(t, "out.txt", "translated.txt")
	if _, err := execute(t, "markup", "replace", "main.html", "--translated", "translated.txt"); err != nil {
		t.Fatalf("replace: %v", err)
	}

	want := `<html><head><title>Title</title></head>
<body><p>Hello, world</p><img src="a.png" alt="Picture"></body></html>
`
	if got := readFile(t, "main_new.html"); got != want {
		t.Fatalf("main_new.html = %q, want %q", got, want)
	}
	if got := readFile(t, "main.html"); got != mainHTML {
		t.Fatal("source document changed")
	}
}

func TestMarkupStructuralReplace(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, "main.html", mainHTML)

	if _, err := execute(t, "markup", "extract", "main.html", "--addresses", "a.txt", "--texts", "t.txt"); err != nil {
		t.Fatalf("extract: %v", err)
	}
	translate(t, "t.txt", "translated.txt")

	_, err := execute(t, "markup", "replace", "main.html",
		"--mode", "structural", "--addresses", "a.txt", "--texts", "t.txt",
		"--translated", "translated.txt", "-o", "main.en.html")
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	got := readFile(t, "main.en.html")
	for _, want := range []string{"<title>Title</title>", "<p>Hello, world</p>", `alt="Picture"`} {
		if !strings.Contains(got, want) {
			t.Fatalf("main.en.html = %q, lacks %q", got, want)
		}
	}
}

func TestMarkupStructuralRefusesSortedExtraction(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, "main.html", mainHTML)

	if _, err := execute(t, "markup", "extract", "main.html", "--sort"); err != nil {
		t.Fatalf("extract: %v", err)
	}
	translate(t, "out.txt", "translated.txt")

	_, err := execute(t, "markup", "replace", "main.html", "--mode", "structural", "--translated", "translated.txt")
	if !errors.Is(err, markup.ErrSortedArtifact) {
		t.Fatalf("err = %v, want ErrSortedArtifact", err)
	}
	if _, err := os.Stat("main_new.html"); !os.IsNotExist(err) {
		t.Fatal("no output expected")
	}

	// Raw mode pairs sorted texts with sorted translations.
	if _, err := execute(t, "markup", "replace", "main.html", "--translated", "translated.txt"); err != nil {
		t.Fatalf("raw replace: %v", err)
	}
}

func TestMarkupReplaceCountMismatchWritesNothing(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, "main.html", mainHTML)

	if _, err := execute(t, "markup", "extract", "main.html"); err != nil {
		t.Fatalf("extract: %v", err)
	}
	writeFile(t, "translated.txt", "Title\nHello, world\n")

	_, err := execute(t, "markup", "replace", "main.html", "--translated", "translated.txt")
	if !errors.Is(err, markup.ErrCountMismatch) {
		t.Fatalf("err = %v, want ErrCountMismatch", err)
	}
	if _, err := os.Stat("main_new.html"); !os.IsNotExist(err) {
		t.Fatal("no output expected")
	}
}

func TestMarkupReplaceRequiresTranslated(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, "main.html", mainHTML)

	_, err := execute(t, "markup", "replace", "main.html")
	if err == nil || !strings.Contains(err.Error(), "translated") {
		t.Fatalf("err = %v, want missing --translated", err)
	}
}

func TestScanCommand(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, "main.html", mainHTML)
	writeFile(t, "app.js", appJS)
	writeFile(t, "notes.txt", "中文\n")
	if err := os.MkdirAll(filepath.Join("node_modules", "x"), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join("node_modules", "x", "dep.js"), "var s = '中文';\n")

	out, err := execute(t, "scan")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	for _, want := range []string{"main.html", "app.js"} {
		if !strings.Contains(out, want) {
			t.Fatalf("scan output %q lacks %s", out, want)
		}
	}
	for _, unwanted := range []string{"notes.txt", "dep.js", "changed"} {
		if strings.Contains(out, unwanted) {
			t.Fatalf("scan output %q mentions %s", out, unwanted)
		}
	}

	if _, err := execute(t, "markup", "extract", "main.html"); err != nil {
		t.Fatal(err)
	}
	writeFile(t, "main.html", strings.Replace(mainHTML, "标题", "新标题", 1))
	out, err = execute(t, "scan", ".")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.Contains(out, "changed") {
		t.Fatalf("scan output %q should mark main.html changed", out)
	}
}

func TestScanPrunesRemovedDocuments(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeFile(t, "main.html", mainHTML)
	writeFile(t, "app.js", appJS)

	if _, err := execute(t, "markup", "extract", "main.html"); err != nil {
		t.Fatal(err)
	}
	lf, err := lockfile.Load(".")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := lf.Lookup("main.html"); !ok {
		t.Fatal("extraction was not recorded")
	}

	if err := os.Remove("main.html"); err != nil {
		t.Fatal(err)
	}
	out, err := execute(t, "scan")
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !strings.Contains(out, "Lock file: empty") {
		t.Fatalf("scan output %q lacks the lock summary", out)
	}

	lf, err = lockfile.Load(".")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := lf.Lookup("main.html"); ok {
		t.Fatal("scan kept the entry of a removed document")
	}
}

func TestHelpers(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	writeFile(t, path, "x")

	if !fileExists(path) {
		t.Fatal("fileExists(file) = false")
	}
	if fileExists(dir) {
		t.Fatal("fileExists(dir) = true")
	}
	if fileExists(filepath.Join(dir, "missing")) {
		t.Fatal("fileExists(missing) = true")
	}

	if got := orDefault("", "out.txt"); got != "out.txt" {
		t.Fatalf("orDefault empty = %q", got)
	}
	if got := orDefault("x.txt", "out.txt"); got != "x.txt" {
		t.Fatalf("orDefault set = %q", got)
	}

	tests := []struct {
		flag, path string
		want       markup.Format
	}{
		{"", "a.html", markup.FormatHTML},
		{"", "a.xhtml", markup.FormatXML},
		{"xml", "a.html", markup.FormatXML},
	}
	for _, tc := range tests {
		got, err := resolveFormat(tc.flag, tc.path)
		if err != nil || got != tc.want {
			t.Fatalf("resolveFormat(%q, %q) = %q, %v", tc.flag, tc.path, got, err)
		}
	}
	if _, err := resolveFormat("pdf", "a.html"); err == nil {
		t.Fatal("resolveFormat(pdf) should fail")
	}
}
