// hanloc: extract CJK text from HTML/XML documents and script files for
// translation and write the translations back.
package main

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/minios-linux/hanloc/config"
	"github.com/minios-linux/hanloc/fragment"
	"github.com/minios-linux/hanloc/i18n"
	"github.com/minios-linux/hanloc/lockfile"
	"github.com/minios-linux/hanloc/markup"
	"github.com/minios-linux/hanloc/report"
	"github.com/minios-linux/hanloc/script"
	"github.com/minios-linux/hanloc/sources"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// lockDir is where hanloc.lock lives: the working directory.
const lockDir = "."

func setupLogging(w io.Writer, level zerolog.Level) {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}).
		With().Timestamp().Logger()
	zerolog.SetGlobalLevel(level)
}

func logInfo(format string, args ...any) {
	log.Info().Msgf(format, args...)
}

func logSuccess(format string, args ...any) {
	log.Info().Str("status", "ok").Msgf(format, args...)
}

func logWarning(format string, args ...any) {
	log.Warn().Msgf(format, args...)
}

func logError(format string, args ...any) {
	log.Error().Msgf(format, args...)
}

// logSummary ends every command: recovered issues first, then the tally.
func logSummary(sum *report.Summary) {
	if sum == nil {
		return
	}
	for _, err := range sum.Issues() {
		logWarning("%v", err)
	}
	msg := fmt.Sprintf(i18n.T("%s: %d processed, %d applied, %d skipped, %d failed"),
		sum.Op, sum.Processed, sum.Applied, sum.Skipped, sum.Failed)
	if sum.Clean() {
		logSuccess("%s", msg)
	} else {
		logWarning("%s", msg)
	}
}

// ---------------------------------------------------------------------------
// Shared state
// ---------------------------------------------------------------------------

// app holds what the persistent flags resolve to. Subcommands read the
// loaded config from it and pass it on explicitly.
type app struct {
	configPath string
	verbose    bool
	cfg        *config.File
}

func (a *app) load() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := cfg.Level()
	if a.verbose {
		level = zerolog.DebugLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Debug().Str("config", cfg.Path()).Strs("scripts", cfg.Scripts).
		Str("lang", i18n.Language()).Msg("configuration loaded")
	return nil
}

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "hanloc",
		Short: "Extract CJK text from markup and scripts and write translations back",
		Long: `hanloc extracts CJK text for translation and puts the translations back.

Two pipelines:
  markup   HTML/XML documents. Extraction writes an address artifact and a
           text artifact paired by line; replacement substitutes the
           translated artifact into a copy of the document.
  script   JS/CSS/shell/... files. Extraction lists "<line>,<text>" for
           every non-comment line holding CJK text; replacement rewrites
           those lines in place after making a .bak copy.

Commands:
  markup extract   Write address and text artifacts for a document
  markup replace   Write a translated copy of a document
  script           Extract (-e) or replace (-r) lines of a script file
  scan             Count translatable fragments under directories`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	// Global persistent flags, inherited by all subcommands
	root.PersistentFlags().StringVar(&a.configPath, "config", "", "Config file (default: "+config.FileName+" in the working directory)")
	root.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "Enable debug logging")

	root.AddCommand(
		newMarkupCmd(a),
		newScriptCmd(a),
		newScanCmd(a),
		newVersionCmd(),
	)

	return root
}

func main() {
	setupLogging(os.Stderr, zerolog.InfoLevel)
	i18n.Init("")

	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version (display version information)
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "hanloc version %s\n", version)
			fmt.Fprintf(out, "  commit:    %s\n", commit)
			fmt.Fprintf(out, "  built:     %s\n", date)
		},
	}

	return cmd
}

// ---------------------------------------------------------------------------
// markup extract / markup replace
// ---------------------------------------------------------------------------

func newMarkupCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "markup",
		Short: "Extract and replace text in HTML/XML documents",
	}
	cmd.AddCommand(newMarkupExtractCmd(a), newMarkupReplaceCmd(a))
	return cmd
}

type markupExtractArgs struct {
	doc              string
	addresses, texts string
	format           string
	sort             bool
}

func newMarkupExtractCmd(a *app) *cobra.Command {
	var opts markupExtractArgs

	cmd := &cobra.Command{
		Use:   "extract <document>",
		Short: "Write address and text artifacts for a document",
		Long: `Walk the document and write every text run, attribute value and inline
script string that contains target-script text.

The address artifact holds one structural path per line; the text artifact
holds the matching text on the same line. Translate the text artifact line
by line and pass the result to "hanloc markup replace".

Examples:
  hanloc markup extract main.html
  hanloc markup extract book.xhtml --addresses paths.txt --texts texts.txt
  hanloc markup extract main.html --sort   # longest texts first (raw mode only)`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.doc = args[0]
			return runMarkupExtract(a.cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.addresses, "addresses", "", "Address artifact (default from config: xpath.txt)")
	cmd.Flags().StringVar(&opts.texts, "texts", "", "Text artifact (default from config: out.txt)")
	cmd.Flags().BoolVar(&opts.sort, "sort", false, "Sort the text artifact by length, longest first")
	cmd.Flags().StringVar(&opts.format, "format", "", "Document format: html or xml (default: from extension)")

	_ = cmd.RegisterFlagCompletionFunc("format", completeFormats)

	return cmd
}

func runMarkupExtract(cfg *config.File, a markupExtractArgs) error {
	data, err := os.ReadFile(a.doc)
	if err != nil {
		return err
	}
	format, err := resolveFormat(a.format, a.doc)
	if err != nil {
		return err
	}
	doc, err := markup.Parse(bytes.NewReader(data), format)
	if err != nil {
		return fmt.Errorf("%s: %w", a.doc, err)
	}

	set := markup.Extract(doc, markup.Options{
		Detector:   cfg.Detector(),
		ScriptTags: cfg.ScriptTags,
		Entities:   cfg.WhitespaceEntities,
	})

	addrPath := orDefault(a.addresses, cfg.Artifacts.Addresses)
	textsPath := orDefault(a.texts, cfg.Artifacts.Texts)
	if err := fragment.WriteLines(addrPath, set.AddressLines()); err != nil {
		return err
	}
	if err := fragment.WriteLines(textsPath, set.TextLines(a.sort)); err != nil {
		return err
	}

	sum := report.New("markup extract")
	for range set {
		sum.Apply()
	}

	if err := recordExtraction(a.doc, data, lockfile.Entry{
		Pipeline:  lockfile.PipelineMarkup,
		Fragments: len(set),
		Sorted:    a.sort,
		Addresses: addrPath,
		Texts:     textsPath,
	}); err != nil {
		logWarning(i18n.T("Could not update lock file: %v"), err)
	}

	if len(set) == 0 {
		logWarning(i18n.T("No fragments found in %s"), a.doc)
	} else {
		logInfo(i18n.N("Extracted %d fragment from %s (%s)", "Extracted %d fragments from %s (%s)", len(set)),
			len(set), a.doc, doc.Encoding)
		logInfo(i18n.T("Artifacts: %s, %s"), addrPath, textsPath)
	}
	if a.sort {
		logWarning("%s", i18n.T("Text artifact is sorted by length: use --mode raw to replace"))
	}
	logSummary(sum)
	return nil
}

type markupReplaceArgs struct {
	doc                          string
	mode, format                 string
	addresses, texts, translated string
	output                       string
}

func newMarkupReplaceCmd(a *app) *cobra.Command {
	var opts markupReplaceArgs

	cmd := &cobra.Command{
		Use:   "replace <document>",
		Short: "Write a translated copy of a document",
		Long: `Write a copy of the document with the translated artifact substituted.

Modes:
  raw          Find each original text in the document source and replace
               it (default). Tolerates whitespace and escaping differences.
  structural   Resolve each address in a fresh parse and set the node text.
               Best effort: fails for nodes whose siblings moved.

Nothing is written when the artifacts' line counts differ.

Examples:
  hanloc markup replace main.html --translated translated.txt
  hanloc markup replace main.html --mode structural --translated translated.txt -o main.en.html`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.doc = args[0]
			return runMarkupReplace(a.cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.mode, "mode", string(markup.ModeRaw), "Replacement mode: raw or structural")
	cmd.Flags().StringVar(&opts.addresses, "addresses", "", "Address artifact (default from config: xpath.txt)")
	cmd.Flags().StringVar(&opts.texts, "texts", "", "Text artifact (default from config: out.txt)")
	cmd.Flags().StringVar(&opts.translated, "translated", "", "Translated artifact (required)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Output document (default: <name>_new<ext>)")
	cmd.Flags().StringVar(&opts.format, "format", "", "Document format: html or xml (default: from extension)")
	_ = cmd.MarkFlagRequired("translated")

	_ = cmd.RegisterFlagCompletionFunc("format", completeFormats)
	_ = cmd.RegisterFlagCompletionFunc("mode", func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		return []string{
			"raw\tSubstitute in the document source (default)",
			"structural\tResolve addresses in a fresh parse",
		}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runMarkupReplace(cfg *config.File, a markupReplaceArgs) error {
	mode, err := markup.ParseMode(a.mode)
	if err != nil {
		return err
	}
	format, err := resolveFormat(a.format, a.doc)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(a.doc)
	if err != nil {
		return err
	}
	translated, err := fragment.ReadLines(a.translated)
	if err != nil {
		return err
	}

	req := markup.Request{
		Mode:       mode,
		Format:     format,
		Translated: translated,
		Entities:   cfg.WhitespaceEntities,
		ScriptTags: cfg.ScriptTags,
	}

	addrPath := orDefault(a.addresses, cfg.Artifacts.Addresses)
	textsPath := orDefault(a.texts, cfg.Artifacts.Texts)
	switch mode {
	case markup.ModeRaw:
		if req.Originals, err = fragment.ReadLines(textsPath); err != nil {
			return err
		}
	case markup.ModeStructural:
		if req.Addresses, err = fragment.ReadLines(addrPath); err != nil {
			return err
		}
		if fileExists(textsPath) {
			if req.Originals, err = fragment.ReadLines(textsPath); err != nil {
				return err
			}
		}
	}

	if entry, ok := checkLock(a.doc, data); ok {
		req.OriginalsSorted = entry.Sorted
	}

	outPath := a.output
	if outPath == "" {
		outPath = markup.OutputPath(a.doc, cfg.OutputSuffix)
	}

	sum, err := markup.ReplaceFile(a.doc, outPath, req)
	logSummary(sum)
	if err != nil {
		return fmt.Errorf("%s: %w", a.doc, err)
	}
	logSuccess(i18n.T("Wrote %s"), outPath)
	return nil
}

func completeFormats(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return []string{
		"html\tHTML parsed the way browsers do",
		"xml\tXML, XHTML, SVG and other XML vocabularies",
	}, cobra.ShellCompDirectiveNoFileComp
}

// resolveFormat honors an explicit --format, else guesses from the
// extension.
func resolveFormat(flag, path string) (markup.Format, error) {
	if flag == "" {
		return markup.FormatFor(path), nil
	}
	return markup.ParseFormat(flag)
}

// ---------------------------------------------------------------------------
// script (line-oriented extraction and in-place replacement)
// ---------------------------------------------------------------------------

type scriptArgs struct {
	target           string
	extract, replace bool
	translateFile    string
	silent           bool
	output           string
	trailing         bool
}

func newScriptCmd(a *app) *cobra.Command {
	var opts scriptArgs

	cmd := &cobra.Command{
		Use:   "script <target>",
		Short: "Extract or replace lines of a script file",
		Long: `Extract or replace target-script lines of a JS/CSS/shell/... file.

Extraction prints "line <n> : <text>" for every non-comment line holding
target-script text and, with --output, writes "<n>,<text>" lines to a file.
Replacement reads such a file, rewrites every named line keeping its
indentation, and backs the target up to <target>.bak first.

A line whose target-script text sits only in a trailing comment, such as
  b(); // 另一条
is skipped unless --trailing-comments is given (or trailing_comments is
set in the config file).

Examples:
  hanloc script app.js -e -o lines.txt
  hanloc script app.js -r -f lines.translated.txt
  hanloc script style.css -e -s -o css.txt`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}
			opts.target = args[0]
			return runScript(a.cfg, opts, cmd.OutOrStdout())
		},
	}

	cmd.Flags().BoolVarP(&opts.extract, "extract", "e", false, "Extract target-script lines")
	cmd.Flags().BoolVarP(&opts.replace, "replace", "r", false, "Replace lines from --translate-file")
	cmd.Flags().StringVarP(&opts.translateFile, "translate-file", "f", "", "File of \"<line>,<text>\" entries (required with --replace)")
	cmd.Flags().BoolVarP(&opts.silent, "silent", "s", false, "Do not echo lines to the console")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Also write extracted lines to this file")
	cmd.Flags().BoolVar(&opts.trailing, "trailing-comments", false, "Also extract lines whose target-script text is only in a trailing comment")
	cmd.MarkFlagsMutuallyExclusive("extract", "replace")

	return cmd
}

func runScript(cfg *config.File, a scriptArgs, out io.Writer) error {
	if !fileExists(a.target) {
		fmt.Fprintf(out, i18n.T("File %s does not exist")+"\n", a.target)
		return nil
	}

	switch {
	case a.extract:
		return runScriptExtract(cfg, a, out)
	case a.replace:
		if a.translateFile == "" {
			return errors.New(i18n.T("--translate-file is required with --replace"))
		}
		return runScriptReplace(cfg, a, out)
	}
	return errors.New(i18n.T("one of --extract or --replace is required"))
}

func runScriptExtract(cfg *config.File, a scriptArgs, out io.Writer) error {
	doc, err := script.ReadFile(a.target, cfg.FallbackEncoding)
	if err != nil {
		return err
	}
	log.Debug().Str("file", a.target).Stringer("encoding", doc.Encoding).Msg("script read")

	set := script.Extract(doc.Lines, script.Options{
		Syntax:           cfg.Syntax(a.target),
		Detector:         cfg.Detector(),
		TrailingComments: a.trailing || cfg.TrailingComments,
	})

	sum := report.New("script extract")
	for _, f := range set {
		if !a.silent {
			fmt.Fprintf(out, "line %s : %s\n", f.Address, f.Text)
		}
		sum.Apply()
	}

	if a.output != "" {
		if err := fragment.WriteLines(a.output, set.IndexedLines()); err != nil {
			return err
		}
		logInfo(i18n.T("Artifacts: %s"), a.output)
	}

	if err := recordExtraction(a.target, nil, lockfile.Entry{
		Pipeline:  lockfile.PipelineScript,
		Fragments: len(set),
		Texts:     a.output,
	}); err != nil {
		logWarning(i18n.T("Could not update lock file: %v"), err)
	}

	if len(set) == 0 {
		logWarning(i18n.T("No fragments found in %s"), a.target)
	}
	logSummary(sum)
	return nil
}

func runScriptReplace(cfg *config.File, a scriptArgs, out io.Writer) error {
	entries, err := readEntries(a.translateFile)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(a.target)
	if err != nil {
		return err
	}
	checkLock(a.target, data)

	doc, err := script.ReadFile(a.target, cfg.FallbackEncoding)
	if err != nil {
		return err
	}

	sum, err := script.Apply(doc, entries)
	if err != nil {
		logSummary(sum)
		return fmt.Errorf("%s: %w", a.target, err)
	}
	if !a.silent {
		for _, e := range entries {
			fmt.Fprintf(out, "line %d : %s\n", e.Index, doc.Lines[e.Index])
		}
	}

	backup, err := script.Backup(a.target, cfg.BackupSuffix)
	if err != nil {
		return err
	}
	logInfo(i18n.T("Backed up %s to %s"), a.target, backup)

	if err := doc.WriteFile(a.target); err != nil {
		return err
	}
	logSummary(sum)
	logSuccess(i18n.T("Wrote %s"), a.target)
	return nil
}

// readEntries parses a "<line>,<text>" file.
func readEntries(path string) (entries []script.Entry, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(f))

	entries, err = script.ParseEntries(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// ---------------------------------------------------------------------------
// scan (read-only: fragment counts per file)
// ---------------------------------------------------------------------------

func newScanCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan [dir...]",
		Short: "Count translatable fragments under directories",
		Long: `Walk the given directories (default: the working directory), skipping
VCS, vendor and build directories, and report how many target-script
fragments every markup and script file holds.

Files whose checksum differs from the one recorded at extraction are
marked "changed". Lock entries of documents that no longer exist are
dropped, and the remaining lock contents are summarized.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"."}
			}
			return runScan(a.cfg, args, cmd.OutOrStdout())
		},
	}

	return cmd
}

func runScan(cfg *config.File, dirs []string, out io.Writer) error {
	files, err := sources.FindSources(dirs)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		logWarning("%s", i18n.T("No markup or script files found"))
		return nil
	}
	logInfo(i18n.T("Found %s"), sources.DescribeFiles(files))

	lf, err := lockfile.Load(lockDir)
	if err != nil {
		logWarning(i18n.T("Could not read lock file: %v"), err)
	}

	opts := cfg.SourceOptions()
	sum := report.New("scan")
	total := 0
	for _, path := range files {
		res, err := sources.Count(path, opts)
		if err != nil {
			sum.Fail(err)
			continue
		}
		if res.Fragments == 0 {
			continue
		}
		sum.Apply()
		total += res.Fragments

		status := ""
		if lf != nil {
			key := lockfile.TargetKey(path)
			if _, ok := lf.Lookup(key); ok {
				if data, err := os.ReadFile(path); err == nil && lf.IsChanged(key, data) {
					status = "  " + i18n.T("changed")
				}
			}
		}
		fmt.Fprintf(out, "%6d  %-7s %s%s\n", res.Fragments, res.Kind, path, status)
	}

	logInfo(i18n.N("%d fragment", "%d fragments", total), total)
	if lf != nil {
		pruneLock(lf, out)
	}
	logSummary(sum)
	return nil
}

// pruneLock drops lock entries of deleted documents and reports what the
// lock file still records.
func pruneLock(lf *lockfile.LockFile, out io.Writer) {
	removed := lf.Clean(lockDir)
	for _, t := range removed {
		logInfo(i18n.T("Dropped lock entry of removed document %s"), t)
	}
	if len(removed) > 0 {
		if err := lf.Save(); err != nil {
			logWarning(i18n.T("Could not update lock file: %v"), err)
			return
		}
		logSuccess(i18n.T("Updated %s"), lf.Path())
	}
	fmt.Fprintf(out, i18n.T("Lock file: %s")+"\n", lf.Summary())
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// recordExtraction stores the entry for target in the lock file. data is
// the document content; nil reads it from disk.
func recordExtraction(target string, data []byte, e lockfile.Entry) error {
	if data == nil {
		var err error
		if data, err = os.ReadFile(target); err != nil {
			return err
		}
	}
	lf, err := lockfile.Load(lockDir)
	if err != nil {
		return err
	}
	e.Checksum = lockfile.Hash(data)
	lf.Record(lockfile.TargetKey(target), e)
	return lf.Save()
}

// checkLock warns when target changed since it was extracted and returns
// its recorded entry.
func checkLock(target string, data []byte) (lockfile.Entry, bool) {
	lf, err := lockfile.Load(lockDir)
	if err != nil {
		logWarning(i18n.T("Could not read lock file: %v"), err)
		return lockfile.Entry{}, false
	}
	e, ok := lf.Lookup(lockfile.TargetKey(target))
	if !ok {
		log.Debug().Str("file", target).Msg("no extraction recorded")
		return e, false
	}
	if e.Checksum != lockfile.Hash(data) {
		logWarning(i18n.T("%s changed since extraction; addresses and line numbers may have drifted"), target)
	}
	return e, true
}

// fileExists returns true if the file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
