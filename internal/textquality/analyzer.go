// Package textquality decides, per text span, whether extracted text shows
// symptoms that warrant re-running recognition: mis-decoded byte garbage, or
// Latin-plus-digit fragments that general OCR engines tend to mangle and that
// a formula-aware recognition pass handles better.
package textquality

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/runenames"
)

// Result reports which re-recognition triggers fired for a text span. Both
// flags are binary triggers, not severity scores.
type Result struct {
	Encoding bool
	Formula  bool
}

// Any reports whether at least one trigger fired.
func (r Result) Any() bool { return r.Encoding || r.Formula }

// errorRunes are known replacement/control artifacts of a broken decode:
// the Unicode replacement character, the object replacement character, a
// private-use glyph common in mis-mapped symbol fonts, the byte-order mark,
// NUL and SUB.
var errorRunes = []rune{'\uFFFD', '\uFFFC', '\uF0A4', '\uFEFF', '\x00', '\x1A'}

// acceptedScripts is the allowlist of Unicode name fragments for non-ASCII
// runes that are considered legitimate: Arabic script, accented Latin, and
// mathematical symbols.
var acceptedScripts = []string{"ARABIC", "LATIN", "MATHEMATICAL"}

// Analyzer classifies text spans. It is stateless and safe for concurrent use.
type Analyzer struct{}

// Classify inspects text and returns which enabled triggers fired.
// Empty or blank text never triggers.
func (Analyzer) Classify(text string, checkFormula, checkEncoding bool) Result {
	if strings.TrimSpace(text) == "" {
		return Result{}
	}

	var res Result
	if checkEncoding {
		res.Encoding = hasEncodingIssues(text)
	}
	if checkFormula {
		res.Formula = looksLikeFormula(text)
	}
	return res
}

func hasEncodingIssues(text string) bool {
	for _, bad := range errorRunes {
		if strings.ContainsRune(text, bad) {
			return true
		}
	}
	for _, r := range text {
		if r <= 0x7F {
			continue
		}
		if !acceptedNonASCII(r) {
			return true
		}
	}
	return false
}

// acceptedNonASCII reports whether a rune above the 7-bit range belongs to a
// script we trust. A rune with no resolvable Unicode name is treated as
// suspect.
func acceptedNonASCII(r rune) bool {
	name := runenames.Name(r)
	if name == "" || strings.HasPrefix(name, "<") {
		return false
	}
	for _, script := range acceptedScripts {
		if strings.Contains(name, script) {
			return true
		}
	}
	return false
}

// looksLikeFormula is a cheap proxy for "contains a formula fragment": at
// least one decimal digit together with at least one Latin letter. No attempt
// is made to parse actual math expressions.
func looksLikeFormula(text string) bool {
	hasDigit := false
	hasLatin := false
	for _, r := range text {
		if unicode.IsDigit(r) {
			hasDigit = true
		} else if unicode.IsLetter(r) && strings.Contains(runenames.Name(r), "LATIN") {
			hasLatin = true
		}
		if hasDigit && hasLatin {
			return true
		}
	}
	return false
}
