package matching

import (
	"fmt"
	"math"

	"rapid-trivia-service/internal/domain"
)

// Explain renders the human-readable reason for a verdict.
func Explain(matchType domain.MatchType, confidence float64) string {
	switch matchType {
	case domain.MatchExact:
		return "Perfect match!"
	case domain.MatchContains:
		return "Correct answer found in response!"
	case domain.MatchKeywords:
		return fmt.Sprintf("Key words matched! (Confidence: %s)", Percent(confidence))
	case domain.MatchFuzzy:
		return fmt.Sprintf("Close enough! (Similarity: %s)", Percent(confidence))
	case domain.MatchEssential:
		return fmt.Sprintf("Got the main parts right! (Confidence: %s)", Percent(confidence))
	case domain.MatchInitials:
		return "Correct with different formatting!"
	case domain.MatchNameVariation:
		return "Correct name variation!"
	case domain.MatchNone:
		return "Not quite right"
	default:
		return "Match found!"
	}
}

// Percent formats a [0,1] ratio as a whole percentage.
func Percent(ratio float64) string {
	return fmt.Sprintf("%d%%", int(math.Round(ratio*100)))
}
