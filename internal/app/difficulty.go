package app

import (
	"math/rand"
	"sync"
	"time"

	"rapid-trivia-service/internal/domain"
)

var difficultyOrder = []domain.Difficulty{domain.DifficultyEasy, domain.DifficultyMedium, domain.DifficultyHard}

// DefaultDifficultyWeights favours medium questions with some hard and a few easy ones.
func DefaultDifficultyWeights() map[domain.Difficulty]int {
	return map[domain.Difficulty]int{
		domain.DifficultyEasy:   10,
		domain.DifficultyMedium: 70,
		domain.DifficultyHard:   20,
	}
}

// DifficultyPicker draws a difficulty according to integer weights.
type DifficultyPicker struct {
	weights map[domain.Difficulty]int
	total   int

	mu  sync.Mutex
	rnd *rand.Rand
}

// NewDifficultyPicker builds a picker; non-positive weights drop a difficulty and an
// all-zero table falls back to the defaults.
func NewDifficultyPicker(weights map[domain.Difficulty]int, rnd *rand.Rand) *DifficultyPicker {
	if rnd == nil {
		rnd = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	p := &DifficultyPicker{weights: map[domain.Difficulty]int{}, rnd: rnd}
	for _, d := range difficultyOrder {
		if w := weights[d]; w > 0 {
			p.weights[d] = w
			p.total += w
		}
	}
	if p.total == 0 {
		return NewDifficultyPicker(DefaultDifficultyWeights(), rnd)
	}
	return p
}

// Pick returns the next difficulty.
func (p *DifficultyPicker) Pick() domain.Difficulty {
	p.mu.Lock()
	n := p.rnd.Intn(p.total)
	p.mu.Unlock()

	for _, d := range difficultyOrder {
		w := p.weights[d]
		if n < w {
			return d
		}
		n -= w
	}
	return domain.DifficultyMedium
}
