package domain

import (
	"sort"
	"strings"
	"time"
)

// ScoreWindow names a score bucket that is reset periodically.
type ScoreWindow string

const (
	WindowLifetime ScoreWindow = "lifetime"
	WindowDaily    ScoreWindow = "daily"
	WindowWeekly   ScoreWindow = "weekly"
	WindowMonthly  ScoreWindow = "monthly"
)

// ResettableWindows are the buckets cleared by the window scheduler.
var ResettableWindows = []ScoreWindow{WindowDaily, WindowWeekly, WindowMonthly}

// ParseWindow maps a user-supplied name to a ScoreWindow. Empty means lifetime.
func ParseWindow(raw string) (ScoreWindow, error) {
	switch ScoreWindow(strings.ToLower(strings.TrimSpace(raw))) {
	case "", WindowLifetime:
		return WindowLifetime, nil
	case WindowDaily:
		return WindowDaily, nil
	case WindowWeekly:
		return WindowWeekly, nil
	case WindowMonthly:
		return WindowMonthly, nil
	}
	return "", ErrUnknownWindow
}

// PlayerAggregate holds a player's running totals.
type PlayerAggregate struct {
	PlayerID       string    `json:"playerId"`
	TotalScore     int       `json:"totalScore"`
	CorrectAnswers int       `json:"correctAnswers"`
	TotalQuestions int       `json:"totalQuestions"`
	CurrentStreak  int       `json:"currentStreak"`
	MaxStreak      int       `json:"maxStreak"`
	DailyScore     int       `json:"dailyScore"`
	WeeklyScore    int       `json:"weeklyScore"`
	MonthlyScore   int       `json:"monthlyScore"`
	LastActive     time.Time `json:"lastActive"`
}

// AggregateDelta is the change the coordinator computes for one scored submission.
type AggregateDelta struct {
	PlayerID string
	Won      bool
	Points   int
}

// Apply folds a delta into the aggregate. A win extends the streak and adds points to
// every bucket; anything else resets the streak. MaxStreak never decreases.
func (p *PlayerAggregate) Apply(delta AggregateDelta, at time.Time) {
	p.TotalQuestions++
	p.LastActive = at
	if !delta.Won {
		p.CurrentStreak = 0
		return
	}
	p.TotalScore += delta.Points
	p.CorrectAnswers++
	p.CurrentStreak++
	if p.CurrentStreak > p.MaxStreak {
		p.MaxStreak = p.CurrentStreak
	}
	p.DailyScore += delta.Points
	p.WeeklyScore += delta.Points
	p.MonthlyScore += delta.Points
}

// ResetWindow zeroes one windowed bucket. Lifetime totals are never reset.
func (p *PlayerAggregate) ResetWindow(window ScoreWindow) error {
	switch window {
	case WindowDaily:
		p.DailyScore = 0
	case WindowWeekly:
		p.WeeklyScore = 0
	case WindowMonthly:
		p.MonthlyScore = 0
	default:
		return ErrUnknownWindow
	}
	return nil
}

// Score returns the value of the given bucket.
func (p PlayerAggregate) Score(window ScoreWindow) int {
	switch window {
	case WindowDaily:
		return p.DailyScore
	case WindowWeekly:
		return p.WeeklyScore
	case WindowMonthly:
		return p.MonthlyScore
	default:
		return p.TotalScore
	}
}

// RankPlayers orders aggregates by window score, then max streak, then player id, and
// keeps at most limit entries. Windowed boards skip players without points.
func RankPlayers(players []PlayerAggregate, window ScoreWindow, limit int) []PlayerAggregate {
	ranked := make([]PlayerAggregate, 0, len(players))
	for _, p := range players {
		if window != WindowLifetime && p.Score(window) <= 0 {
			continue
		}
		ranked = append(ranked, p)
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.Score(window) != b.Score(window) {
			return a.Score(window) > b.Score(window)
		}
		if a.MaxStreak != b.MaxStreak {
			return a.MaxStreak > b.MaxStreak
		}
		return a.PlayerID < b.PlayerID
	})
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked
}
