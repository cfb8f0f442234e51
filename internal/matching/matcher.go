// Package matching decides whether a free-text answer matches a reference answer.
//
// Classification is an ordered cascade of rules. Cheap, high-precision rules run
// first and the first rule that fires decides the verdict.
package matching

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"rapid-trivia-service/internal/domain"
)

var validate = validator.New()

const (
	containsConfidence      = 0.95
	initialsConfidence      = 0.9
	nameVariationConfidence = 0.85
	nameTokenThreshold      = 0.8
	essentialMinRunes       = 4
)

// Config holds the tunable thresholds of the cascade.
type Config struct {
	// Algorithm selects the character-level similarity used by the fuzzy rule.
	Algorithm string `yaml:"algorithm" json:"algorithm" validate:"required,oneof=ratcliff levenshtein"`
	// Threshold is the minimum fuzzy ratio accepted as a match.
	Threshold float64 `yaml:"threshold" json:"threshold" validate:"gt=0,max=1"`
	// KeywordThreshold is the minimum key-term Jaccard index accepted as a match.
	KeywordThreshold float64 `yaml:"keyword_threshold" json:"keyword_threshold" validate:"gt=0,max=1"`
	// EssentialThreshold is the minimum share of essential reference terms the candidate must cover.
	EssentialThreshold float64 `yaml:"essential_threshold" json:"essential_threshold" validate:"gt=0,max=1"`
}

// DefaultConfig returns the thresholds the game ships with.
func DefaultConfig() Config {
	return Config{
		Algorithm:          AlgorithmRatcliff,
		Threshold:          0.8,
		KeywordThreshold:   0.7,
		EssentialThreshold: 0.8,
	}
}

// Validate checks the thresholds.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("matching config validation failed: %w", err)
	}
	return nil
}

// Matcher classifies candidate answers. It holds no mutable state and is safe for
// concurrent use.
type Matcher struct {
	cfg        Config
	normalizer *Normalizer
	similarity SimilarityFunc
	rules      []rule
}

// rule is one step of the cascade. score returns the confidence and whether the rule fired.
type rule struct {
	matchType domain.MatchType
	score     func(c *comparison) (float64, bool)
}

// NewMatcher validates cfg and builds a Matcher.
func NewMatcher(cfg Config) (*Matcher, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Matcher{
		cfg:        cfg,
		normalizer: NewNormalizer(),
		similarity: similarityFor(cfg.Algorithm),
	}
	m.rules = []rule{
		{domain.MatchExact, exactRule},
		{domain.MatchContains, containsRule},
		{domain.MatchKeywords, keywordsRule},
		{domain.MatchFuzzy, fuzzyRule},
		{domain.MatchEssential, essentialRule},
		{domain.MatchInitials, initialsRule},
		{domain.MatchNameVariation, nameVariationRule},
	}
	return m, nil
}

// MustNewMatcher is NewMatcher for configurations known to be valid.
func MustNewMatcher(cfg Config) *Matcher {
	m, err := NewMatcher(cfg)
	if err != nil {
		panic(err)
	}
	return m
}

// Config returns the matcher's configuration.
func (m *Matcher) Config() Config { return m.cfg }

// Normalize exposes the matcher's normalizer.
func (m *Matcher) Normalize(text string) string { return m.normalizer.Normalize(text) }

// KeyTerms exposes the matcher's key-term extraction.
func (m *Matcher) KeyTerms(text string) KeyTermSet { return m.normalizer.KeyTerms(text) }

// Similarity scores two already-normalized strings with the configured algorithm.
func (m *Matcher) Similarity(a, b string) float64 { return m.similarity(a, b) }

// Classify compares candidate to reference using the configured fuzzy threshold.
func (m *Matcher) Classify(candidate, reference string) domain.MatchVerdict {
	return m.ClassifyWithThreshold(candidate, reference, m.cfg.Threshold)
}

// ClassifyWithThreshold is Classify with an explicit fuzzy threshold. A threshold
// outside (0,1] falls back to the configured one. It never fails.
func (m *Matcher) ClassifyWithThreshold(candidate, reference string, threshold float64) domain.MatchVerdict {
	if threshold <= 0 || threshold > 1 {
		threshold = m.cfg.Threshold
	}
	if strings.TrimSpace(candidate) == "" || strings.TrimSpace(reference) == "" {
		return domain.EmptyVerdict()
	}

	c := &comparison{
		m:         m,
		candidate: candidate,
		reference: reference,
		candNorm:  m.normalizer.Normalize(candidate),
		refNorm:   m.normalizer.Normalize(reference),
		threshold: threshold,
	}
	if c.candNorm == "" || c.refNorm == "" {
		return domain.EmptyVerdict()
	}

	for _, r := range m.rules {
		if confidence, ok := r.score(c); ok {
			return domain.MatchVerdict{IsMatch: true, Confidence: clamp(confidence), MatchType: r.matchType}
		}
	}
	return domain.MatchVerdict{IsMatch: false, Confidence: clamp(c.ratio()), MatchType: domain.MatchNone}
}

// comparison caches derived values so no rule recomputes what an earlier one produced.
type comparison struct {
	m                   *Matcher
	candidate           string
	reference           string
	candNorm            string
	refNorm             string
	threshold           float64
	candTerms, refTerms KeyTermSet
	termsReady          bool
	fuzzy               float64
	fuzzyReady          bool
}

func (c *comparison) terms() (KeyTermSet, KeyTermSet) {
	if !c.termsReady {
		c.candTerms = c.m.normalizer.keyTermsOf(c.candNorm)
		c.refTerms = c.m.normalizer.keyTermsOf(c.refNorm)
		c.termsReady = true
	}
	return c.candTerms, c.refTerms
}

func (c *comparison) ratio() float64 {
	if !c.fuzzyReady {
		c.fuzzy = c.m.similarity(c.candNorm, c.refNorm)
		c.fuzzyReady = true
	}
	return c.fuzzy
}

func exactRule(c *comparison) (float64, bool) {
	return 1.0, c.candNorm == c.refNorm
}

func containsRule(c *comparison) (float64, bool) {
	ok := strings.Contains(c.refNorm, c.candNorm) || strings.Contains(c.candNorm, c.refNorm)
	return containsConfidence, ok
}

func keywordsRule(c *comparison) (float64, bool) {
	cand, ref := c.terms()
	if len(cand) == 0 || len(ref) == 0 {
		return 0, false
	}
	shared := 0
	for term := range cand {
		if ref.Has(term) {
			shared++
		}
	}
	union := len(cand) + len(ref) - shared
	jaccard := float64(shared) / float64(union)
	return jaccard, jaccard >= c.m.cfg.KeywordThreshold
}

func fuzzyRule(c *comparison) (float64, bool) {
	r := c.ratio()
	return r, r >= c.threshold
}

func essentialRule(c *comparison) (float64, bool) {
	cand, ref := c.terms()
	if len(ref) <= 1 {
		return 0, false
	}
	essential, covered := 0, 0
	for term := range ref {
		if utf8.RuneCountInString(term) < essentialMinRunes {
			continue
		}
		essential++
		if cand.Has(term) {
			covered++
		}
	}
	if essential == 0 {
		return 0, false
	}
	coverage := float64(covered) / float64(essential)
	return coverage, coverage >= c.m.cfg.EssentialThreshold
}

func initialsRule(c *comparison) (float64, bool) {
	cand := compactForm(c.candidate)
	return initialsConfidence, cand != "" && cand == compactForm(c.reference)
}

// compactForm lowercases raw text and drops whitespace and periods ("G.H. Hardy" -> "ghhardy").
func compactForm(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		if r == '.' || unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func nameVariationRule(c *comparison) (float64, bool) {
	cand := strings.Fields(c.candNorm)
	ref := strings.Fields(c.refNorm)
	if len(cand) < 2 || len(ref) < 2 {
		return 0, false
	}
	firstOK := c.firstNamesAgree(cand[0], ref[0])
	lastOK := c.m.similarity(cand[len(cand)-1], ref[len(ref)-1]) > nameTokenThreshold
	return nameVariationConfidence, firstOK && lastOK
}

// firstNamesAgree accepts similar first tokens, or an initial ("w." / "w") against a
// first name with the same leading letter.
func (c *comparison) firstNamesAgree(a, b string) bool {
	if c.m.similarity(a, b) > nameTokenThreshold {
		return true
	}
	a, b = strings.Trim(a, "."), strings.Trim(b, ".")
	if a == "" || b == "" {
		return false
	}
	ra, _ := utf8.DecodeRuneInString(a)
	rb, _ := utf8.DecodeRuneInString(b)
	isInitial := utf8.RuneCountInString(a) == 1 || utf8.RuneCountInString(b) == 1
	return isInitial && ra == rb
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}
