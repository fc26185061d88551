// Package normalize implements title canonicalization: the
// deterministic transform used as the query-cache key and as the
// equality basis for deciding whether a backend found "the same paper".
package normalize

import (
	"html"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// greekToLatin transliterates the Greek letters that show up in academic
// titles (category theory, physics, stats) to their conventional ASCII
// spell-outs. Unmapped runes pass through unchanged.
var greekToLatin = map[rune]string{
	'α': "alpha", 'β': "beta", 'γ': "gamma", 'δ': "delta", 'ε': "epsilon",
	'ζ': "zeta", 'η': "eta", 'θ': "theta", 'ι': "iota", 'κ': "kappa",
	'λ': "lambda", 'μ': "mu", 'ν': "nu", 'ξ': "xi", 'ο': "omicron",
	'π': "pi", 'ρ': "rho", 'σ': "sigma", 'ς': "sigma", 'τ': "tau",
	'υ': "upsilon", 'φ': "phi", 'χ': "chi", 'ψ': "psi", 'ω': "omega",
	'Α': "Alpha", 'Β': "Beta", 'Γ': "Gamma", 'Δ': "Delta", 'Ε': "Epsilon",
	'Ζ': "Zeta", 'Η': "Eta", 'Θ': "Theta", 'Ι': "Iota", 'Κ': "Kappa",
	'Λ': "Lambda", 'Μ': "Mu", 'Ν': "Nu", 'Ξ': "Xi", 'Ο': "Omicron",
	'Π': "Pi", 'Ρ': "Rho", 'Σ': "Sigma", 'Τ': "Tau", 'Υ': "Upsilon",
	'Φ': "Phi", 'Χ': "Chi", 'Ψ': "Psi", 'Ω': "Omega",
	// common math symbols that show up in titles
	'×': "x", '÷': "div", '≈': "approx", '≤': "le", '≥': "ge", '∞': "infinity",
}

// nonAlnumRun matches any run of characters that are not ASCII letters or
// digits, once diacritics have already been stripped.
var nonAlnumRun = regexp.MustCompile(`[^a-z0-9]+`)

// diacriticsStripper removes Unicode combining marks after NFD
// decomposition, the standard Go idiom for "strip accents".
var diacriticsStripper = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Title canonicalizes s for use as a cache key and for title equality
// testing: HTML entities are decoded, Greek letters and a handful of math
// symbols are transliterated to ASCII, diacritics are stripped, the result
// is lowercased, and non-alphanumeric runs collapse to a single space.
//
// Title is deterministic and idempotent: Title(Title(s)) == Title(s).
func Title(s string) string {
	s = html.UnescapeString(s)
	s = transliterateGreek(s)

	if folded, _, err := transform.String(diacriticsStripper, s); err == nil {
		s = folded
	}

	s = strings.ToLower(s)
	s = nonAlnumRun.ReplaceAllString(s, " ")
	return strings.TrimSpace(collapseSpaces(s))
}

func transliterateGreek(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if repl, ok := greekToLatin[r]; ok {
			b.WriteString(repl)
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var spaceRun = regexp.MustCompile(`\s+`)

func collapseSpaces(s string) string {
	return spaceRun.ReplaceAllString(s, " ")
}

// TitlesMatch reports whether a and b should be treated as the same paper:
// their normalized forms are equal, or one is a prefix of the other (at
// least 10 alphanumeric characters long) and they are similar enough by a
// token-set ratio to tolerate subtitle elision and OCR noise.
func TitlesMatch(a, b string) bool {
	na, nb := Title(a), Title(b)
	if na == nb {
		return true
	}
	if na == "" || nb == "" {
		return false
	}

	shorter, longer := na, nb
	if len(longer) < len(shorter) {
		shorter, longer = longer, shorter
	}

	if !strings.HasPrefix(longer, shorter) {
		return false
	}
	if alnumLen(shorter) < 10 {
		return false
	}
	return tokenSetRatio(na, nb) >= 0.92
}

func alnumLen(s string) int {
	n := 0
	for _, r := range s {
		if r != ' ' {
			n++
		}
	}
	return n
}

// tokenSetRatio computes a token-set similarity over two already-normalized
// strings: |intersection| / size of the smaller token set, so a title whose
// tokens are all contained in the other scores 1 (subtitle elision). Simple,
// symmetric, and reflexive, which is all TitlesMatch's contract requires.
func tokenSetRatio(a, b string) float64 {
	ta := tokenSet(a)
	tb := tokenSet(b)
	if len(ta) == 0 && len(tb) == 0 {
		return 1
	}

	inter := 0
	for t := range ta {
		if tb[t] {
			inter++
		}
	}
	smaller := len(ta)
	if len(tb) < smaller {
		smaller = len(tb)
	}
	if smaller == 0 {
		return 0
	}
	return float64(inter) / float64(smaller)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(s) {
		set[tok] = true
	}
	return set
}
