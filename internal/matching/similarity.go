package matching

import (
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

// Supported similarity algorithms.
const (
	AlgorithmRatcliff    = "ratcliff"
	AlgorithmLevenshtein = "levenshtein"
)

// SimilarityFunc scores two strings in [0,1]; 1.0 only for identical strings.
type SimilarityFunc func(a, b string) float64

func similarityFor(algorithm string) SimilarityFunc {
	if algorithm == AlgorithmLevenshtein {
		return LevenshteinRatio
	}
	return Ratio
}

// Ratio is the Ratcliff/Obershelp similarity: twice the number of characters in the
// recursively found longest matching blocks, divided by the total length.
func Ratio(a, b string) float64 {
	// Block search is order-sensitive; a canonical argument order keeps the ratio symmetric.
	if b < a {
		a, b = b, a
	}
	ra, rb := []rune(a), []rune(b)
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	return 2.0 * float64(matchingRunes(ra, rb)) / float64(total)
}

type span struct{ alo, ahi, blo, bhi int }

func matchingRunes(a, b []rune) int {
	matched := 0
	queue := []span{{0, len(a), 0, len(b)}}
	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		i, j, k := longestMatch(a, b, s)
		if k == 0 {
			continue
		}
		matched += k
		if s.alo < i && s.blo < j {
			queue = append(queue, span{s.alo, i, s.blo, j})
		}
		if i+k < s.ahi && j+k < s.bhi {
			queue = append(queue, span{i + k, s.ahi, j + k, s.bhi})
		}
	}
	return matched
}

// longestMatch finds the longest common block inside s. Ties resolve to the block
// that starts earliest in a, then earliest in b.
func longestMatch(a, b []rune, s span) (besti, bestj, bestk int) {
	besti, bestj = s.alo, s.blo
	width := s.bhi - s.blo + 1
	prev := make([]int, width)
	cur := make([]int, width)
	for i := s.alo; i < s.ahi; i++ {
		for j := s.blo; j < s.bhi; j++ {
			if a[i] != b[j] {
				cur[j-s.blo+1] = 0
				continue
			}
			k := prev[j-s.blo] + 1
			cur[j-s.blo+1] = k
			if k > bestk {
				besti, bestj, bestk = i-k+1, j-k+1, k
			}
		}
		prev, cur = cur, prev
	}
	return besti, bestj, bestk
}

// LevenshteinRatio is 1 - distance/maxRuneLength.
func LevenshteinRatio(a, b string) float64 {
	if a == b {
		return 1.0
	}
	maxLen := utf8.RuneCountInString(a)
	if n := utf8.RuneCountInString(b); n > maxLen {
		maxLen = n
	}
	if maxLen == 0 {
		return 1.0
	}
	similarity := 1.0 - float64(levenshtein.ComputeDistance(a, b))/float64(maxLen)
	if similarity < 0 {
		return 0
	}
	return similarity
}
