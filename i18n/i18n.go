// Package i18n provides internationalization support for hanloc's own
// messages (run summaries, warnings, prompts).
//
// It wraps the gotext library to provide simple T() and N() functions.
// Translations are embedded in the binary via //go:embed and loaded at
// startup via Init().
//
// Usage:
//
//	import "github.com/minios-linux/hanloc/i18n"
//
//	func main() {
//	    i18n.Init("")  // auto-detect from LANGUAGE/LC_ALL/LC_MESSAGES/LANG
//	    fmt.Println(i18n.N("%d fragment", "%d fragments", count))
//	}
package i18n

import (
	"embed"
	"os"
	"strings"

	"github.com/leonelquinteros/gotext"
)

// locales embeds the .po translation files.
// Directory structure: locales/{lang}/LC_MESSAGES/hanloc.po
//
//go:embed all:locales
var locales embed.FS

// domain is the gettext domain name for hanloc.
const domain = "hanloc"

// EnvLang overrides the locale environment for hanloc's messages only.
const EnvLang = "HANLOC_LANG"

// po is the gotext locale object used for translations.
var po *gotext.Locale

// lang is the language Init settled on.
var lang string

// Init initializes the i18n system. If l is empty, it auto-detects from
// HANLOC_LANG, then LANGUAGE, LC_ALL, LC_MESSAGES, LANG (the last four in
// GNU gettext order).
//
// Init should be called once at program startup, before any T() or N() calls.
func Init(l string) {
	if l == "" {
		l = detectLanguage()
	}

	lang = l
	po = gotext.NewLocaleFSWithPath(l, locales, "locales")
	po.AddDomain(domain)
	po.SetDomain(domain)
}

// Language returns the language passed to or detected by Init, or "" before
// Init.
func Language() string {
	return lang
}

// T translates a string. If no translation is available, returns the
// original string unchanged (standard gettext passthrough behavior).
func T(msgid string) string {
	if po == nil {
		return msgid
	}
	return po.Get(msgid)
}

// N translates a string with plural forms. The singular form is used
// when n == 1, the plural form otherwise (exact rules depend on the
// target language's plural formula).
func N(singular, plural string, n int) string {
	if po == nil {
		if n == 1 {
			return singular
		}
		return plural
	}
	return po.GetN(singular, plural, n)
}

// detectLanguage reads environment variables to determine the user's
// preferred language, following GNU gettext conventions.
func detectLanguage() string {
	// HANLOC_LANG, then GNU gettext priority: LANGUAGE > LC_ALL > LC_MESSAGES > LANG
	for _, env := range []string{EnvLang, "LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		if val := os.Getenv(env); val != "" {
			// LANGUAGE can be a colon-separated list; take the first
			val, _, _ = strings.Cut(val, ":")
			// Strip encoding and modifier ("zh_CN.UTF-8", "sr_RS@latin")
			if idx := strings.IndexAny(val, ".@"); idx >= 0 {
				val = val[:idx]
			}
			// Skip "C" and "POSIX": no translation
			if val == "C" || val == "POSIX" || val == "" {
				continue
			}
			return val
		}
	}
	return "en"
}
