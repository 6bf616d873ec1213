// Package resolve decides which regional accounts refer to the same customer:
// name normalization, name similarity, corroborating signals, and the ordered
// match strategies applied to every cross-region account pair.
package resolve

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// legalSuffixes lists legal entity suffixes stripped during name normalization.
// A suffix is only stripped when it is a trailing token preceded by one of
// suffixSeparators, so a bare "llc" survives.
var legalSuffixes = []string{
	"inc", "incorporated",
	"corp", "corporation",
	"ltd", "limited",
	"llc", "pty", "gmbh",
	"sa", "nv", "bv", "ag",
	"plc",
}

const suffixSeparators = " .,-"

var stripAccents = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeName canonicalizes a company name for comparison by:
//  1. Lower-casing, trimming, and folding accents
//  2. Stripping trailing legal suffixes (Inc, Corp, Ltd, GmbH, ...)
//  3. Removing everything that is not a letter, digit, or whitespace
//  4. Collapsing runs of whitespace into single spaces
//
// The result is a fixed point: NormalizeName(NormalizeName(x)) == NormalizeName(x).
func NormalizeName(name string) string {
	n := normalizeOnce(name)
	for {
		next := normalizeOnce(n)
		if next == n {
			return n
		}
		n = next
	}
}

func normalizeOnce(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}

	if folded, _, err := transform.String(stripAccents, name); err == nil {
		name = folded
	}

	name = stripLegalSuffixes(name)

	name = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return -1
	}, name)

	return strings.Join(strings.Fields(name), " ")
}

// stripLegalSuffixes removes trailing legal suffixes until none remain, so
// "acme pty ltd." reduces to "acme".
func stripLegalSuffixes(name string) string {
	for {
		name = strings.TrimRight(name, suffixSeparators)
		stripped := false
		for _, suffix := range legalSuffixes {
			if !strings.HasSuffix(name, suffix) {
				continue
			}
			rest := name[:len(name)-len(suffix)]
			if rest == "" || !strings.ContainsRune(suffixSeparators, rune(rest[len(rest)-1])) {
				continue
			}
			name = rest
			stripped = true
			break
		}
		if !stripped {
			return name
		}
	}
}
