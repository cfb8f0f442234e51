package matching

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rapid-trivia-service/internal/domain"
)

func newTestMatcher(t *testing.T) *Matcher {
	t.Helper()
	m, err := NewMatcher(DefaultConfig())
	require.NoError(t, err)
	return m
}

func TestClassifyCascade(t *testing.T) {
	m := newTestMatcher(t)

	tests := []struct {
		name       string
		candidate  string
		reference  string
		wantMatch  bool
		wantType   domain.MatchType
		confidence float64
	}{
		{name: "trailing space is exact", candidate: "paris ", reference: "Paris", wantMatch: true, wantType: domain.MatchExact, confidence: 1.0},
		{name: "abbreviation expands to exact", candidate: "USA", reference: "United States of America", wantMatch: true, wantType: domain.MatchExact, confidence: 1.0},
		{name: "accents and case are ignored", candidate: "CAFÉ", reference: "cafe", wantMatch: true, wantType: domain.MatchExact, confidence: 1.0},
		{name: "roman numerals become digits", candidate: "Henry 8", reference: "Henry VIII", wantMatch: true, wantType: domain.MatchExact, confidence: 1.0},
		{name: "surname alone is contained", candidate: "Shakespeare", reference: "William Shakespeare", wantMatch: true, wantType: domain.MatchContains, confidence: 0.95},
		{name: "reordered key terms", candidate: "Hastings battle", reference: "Battle of Hastings", wantMatch: true, wantType: domain.MatchKeywords, confidence: 1.0},
		{name: "misspelling is fuzzy", candidate: "Missisippi", reference: "Mississippi", wantMatch: true, wantType: domain.MatchFuzzy, confidence: 20.0 / 21.0},
		{name: "essential terms covered", candidate: "vinci leonardo painter", reference: "Leonardo da Vinci", wantMatch: true, wantType: domain.MatchEssential, confidence: 1.0},
		{name: "dotted initials", candidate: "U.S.A.", reference: "USA", wantMatch: true, wantType: domain.MatchInitials, confidence: 0.9},
		{name: "initial for first name", candidate: "W. Shakespeare", reference: "William Shakespeare", wantMatch: true, wantType: domain.MatchNameVariation, confidence: 0.85},
		{name: "missing middle name", candidate: "John Kennedy", reference: "John Fitzgerald Kennedy", wantMatch: true, wantType: domain.MatchNameVariation, confidence: 0.85},
		{name: "wrong answer keeps ratio", candidate: "lodnon", reference: "Paris", wantMatch: false, wantType: domain.MatchNone, confidence: Ratio("lodnon", "paris")},
		{name: "blank candidate", candidate: "   ", reference: "Paris", wantMatch: false, wantType: domain.MatchEmpty, confidence: 0},
		{name: "blank reference", candidate: "Paris", reference: "", wantMatch: false, wantType: domain.MatchEmpty, confidence: 0},
		{name: "symbol-only candidate", candidate: "?!*", reference: "Paris", wantMatch: false, wantType: domain.MatchEmpty, confidence: 0},
		{name: "lone hyphen", candidate: "-", reference: "Coca-Cola", wantMatch: false, wantType: domain.MatchEmpty, confidence: 0},
		{name: "lone period", candidate: ".", reference: "U.S.A.", wantMatch: false, wantType: domain.MatchEmpty, confidence: 0},
		{name: "lone apostrophe", candidate: "'", reference: "Rock 'n' Roll", wantMatch: false, wantType: domain.MatchEmpty, confidence: 0},
		{name: "ellipsis", candidate: "...", reference: "Paris", wantMatch: false, wantType: domain.MatchEmpty, confidence: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.Classify(tt.candidate, tt.reference)
			assert.Equal(t, tt.wantMatch, got.IsMatch)
			assert.Equal(t, tt.wantType, got.MatchType)
			assert.InDelta(t, tt.confidence, got.Confidence, 1e-9)
		})
	}
}

func TestClassifyExactAndContainsAreSymmetric(t *testing.T) {
	m := newTestMatcher(t)
	pairs := [][2]string{
		{"Paris", "paris"},
		{"USA", "united states of america"},
		{"Shakespeare", "William Shakespeare"},
		{"the Beatles", "Beatles"},
		{"Mount Everest", "Mt Everest"},
	}
	for _, p := range pairs {
		ab := m.Classify(p[0], p[1])
		ba := m.Classify(p[1], p[0])
		require.Contains(t, []domain.MatchType{domain.MatchExact, domain.MatchContains}, ab.MatchType, "pair %v", p)
		assert.Equal(t, ab.IsMatch, ba.IsMatch, "pair %v", p)
		assert.Equal(t, ab.MatchType, ba.MatchType, "pair %v", p)
	}
}

func TestClassifyShortCircuitsOnEqualNormalization(t *testing.T) {
	m := newTestMatcher(t)
	pairs := [][2]string{
		{"G.H. Hardy", "g.h. hardy"},
		{"World War II", "WWII"},
		{"Rock & Roll", "rock and roll"},
		{"  Béla   Bartók ", "bela bartok"},
	}
	for _, p := range pairs {
		require.Equal(t, m.Normalize(p[0]), m.Normalize(p[1]), "pair %v", p)
		got := m.Classify(p[0], p[1])
		assert.Equal(t, domain.MatchVerdict{IsMatch: true, Confidence: 1.0, MatchType: domain.MatchExact}, got)
	}
}

func TestClassifyWithThreshold(t *testing.T) {
	m := newTestMatcher(t)

	strict := m.ClassifyWithThreshold("Missisippi", "Mississippi", 0.99)
	assert.False(t, strict.IsMatch)
	assert.Equal(t, domain.MatchNone, strict.MatchType)
	assert.InDelta(t, 20.0/21.0, strict.Confidence, 1e-9)

	fallback := m.ClassifyWithThreshold("Missisippi", "Mississippi", 0)
	assert.Equal(t, domain.MatchFuzzy, fallback.MatchType)
}

func TestClassifyConfidenceInRange(t *testing.T) {
	m := newTestMatcher(t)
	inputs := []string{"", "a", "Paris", "Tokyo", "W. Shakespeare", "ww2", "½", "&amp;", "Leonardo da Vinci", "42"}
	for _, a := range inputs {
		for _, b := range inputs {
			v := m.Classify(a, b)
			assert.GreaterOrEqual(t, v.Confidence, 0.0)
			assert.LessOrEqual(t, v.Confidence, 1.0)
			if v.MatchType == domain.MatchEmpty || v.MatchType == domain.MatchNone {
				assert.False(t, v.IsMatch)
			} else {
				assert.True(t, v.IsMatch)
			}
		}
	}
}

func TestLevenshteinAlgorithm(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Algorithm = AlgorithmLevenshtein
	m, err := NewMatcher(cfg)
	require.NoError(t, err)

	got := m.Classify("Missisippi", "Mississippi")
	assert.Equal(t, domain.MatchFuzzy, got.MatchType)
	assert.InDelta(t, 1.0-1.0/11.0, got.Confidence, 1e-9)
}

func TestMatcherConfigValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "unknown algorithm", mutate: func(c *Config) { c.Algorithm = "soundex" }},
		{name: "zero threshold", mutate: func(c *Config) { c.Threshold = 0 }},
		{name: "threshold above one", mutate: func(c *Config) { c.Threshold = 1.1 }},
		{name: "keyword threshold above one", mutate: func(c *Config) { c.KeywordThreshold = 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			_, err := NewMatcher(cfg)
			assert.Error(t, err)
		})
	}
}

func TestMatcherConcurrentUse(t *testing.T) {
	m := newTestMatcher(t)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				v := m.Classify("Crème Brûlée", "creme brulee")
				if v.MatchType != domain.MatchExact {
					t.Errorf("unexpected verdict %+v", v)
					return
				}
			}
		}()
	}
	wg.Wait()
}

func TestExplain(t *testing.T) {
	tests := []struct {
		matchType  domain.MatchType
		confidence float64
		want       string
	}{
		{domain.MatchExact, 1, "Perfect match!"},
		{domain.MatchContains, 0.95, "Correct answer found in response!"},
		{domain.MatchKeywords, 0.75, "Key words matched! (Confidence: 75%)"},
		{domain.MatchFuzzy, 0.857, "Close enough! (Similarity: 86%)"},
		{domain.MatchEssential, 1, "Got the main parts right! (Confidence: 100%)"},
		{domain.MatchInitials, 0.9, "Correct with different formatting!"},
		{domain.MatchNameVariation, 0.85, "Correct name variation!"},
		{domain.MatchNone, 0.2, "Not quite right"},
		{domain.MatchEmpty, 0, "Match found!"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Explain(tt.matchType, tt.confidence), string(tt.matchType))
	}
}
