package matching

import (
	"html"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// tokenTrim is stripped from token edges before table lookups.
const tokenTrim = ".,!?;:\"()[]{}"

// disallowedRunes keeps letters, digits, underscores, whitespace, periods, hyphens and apostrophes.
var disallowedRunes = regexp.MustCompile(`[^\p{L}\p{N}_\s\p{Z}.\-']+`)

// KeyTermSet is the set of significant tokens of a text.
type KeyTermSet map[string]struct{}

// Has reports whether term is in the set.
func (s KeyTermSet) Has(term string) bool {
	_, ok := s[term]
	return ok
}

// Normalizer canonicalizes free text before comparison. It is safe for concurrent use.
type Normalizer struct {
	tables *tables
}

// NewNormalizer builds a Normalizer with the built-in lookup tables.
func NewNormalizer() *Normalizer {
	return &Normalizer{tables: newTables()}
}

// Normalize lowercases, strips accents, decodes HTML entities, expands symbols,
// abbreviations and Roman numerals, and collapses punctuation and whitespace.
// Normalize(Normalize(x)) == Normalize(x) for every x.
func (n *Normalizer) Normalize(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}

	// Entities are decoded before folding since numeric references can produce uppercase runes.
	s := html.UnescapeString(text)
	s = n.tables.symbols.Replace(s)
	s = foldAccents(s)
	s = disallowedRunes.ReplaceAllString(s, " ")

	fields := strings.Fields(s)
	out := make([]string, 0, len(fields))
	for _, word := range fields {
		if !hasAlphanumeric(word) {
			continue
		}
		key := strings.Trim(word, tokenTrim)
		if expanded, ok := n.tables.abbreviations[key]; ok {
			out = append(out, expanded)
			continue
		}
		if digits, ok := n.tables.romanNumerals[key]; ok {
			out = append(out, digits)
			continue
		}
		out = append(out, word)
	}
	return strings.Join(out, " ")
}

// KeyTerms normalizes text and returns its tokens minus stop-words and single runes.
func (n *Normalizer) KeyTerms(text string) KeyTermSet {
	return n.keyTermsOf(n.Normalize(text))
}

func (n *Normalizer) keyTermsOf(normalized string) KeyTermSet {
	terms := make(KeyTermSet)
	for _, word := range strings.Fields(normalized) {
		clean := strings.Trim(word, tokenTrim)
		if utf8.RuneCountInString(clean) <= 1 {
			continue
		}
		if _, stop := n.tables.stopWords[clean]; stop {
			continue
		}
		terms[clean] = struct{}{}
	}
	return terms
}

// hasAlphanumeric reports whether word holds at least one letter or digit.
// Tokens made only of kept punctuation such as "-" or "..." carry no answer.
func hasAlphanumeric(word string) bool {
	return strings.IndexFunc(word, func(r rune) bool {
		return unicode.IsLetter(r) || unicode.IsDigit(r)
	}) >= 0
}

// foldAccents decomposes, drops combining marks and case-folds. Casers keep state,
// so a fresh chain is built per call instead of sharing one across goroutines.
func foldAccents(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), cases.Fold())
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return out
}
