package app

import (
	"sync"
	"time"

	"rapid-trivia-service/internal/domain"
)

// WindowScheduler tracks calendar boundaries for the resettable score windows.
type WindowScheduler struct {
	mu        sync.Mutex
	location  *time.Location
	lastDay   time.Time
	lastYear  int
	lastWeek  int
	lastMonth time.Month
	lastMYear int
}

// NewWindowScheduler starts tracking from now; nothing is due until a boundary is crossed.
func NewWindowScheduler(now time.Time) *WindowScheduler {
	s := &WindowScheduler{location: now.Location()}
	s.mark(now)
	return s
}

// Due returns the windows whose boundary was crossed since the previous call, in
// daily, weekly, monthly order.
func (s *WindowScheduler) Due(now time.Time) []domain.ScoreWindow {
	s.mu.Lock()
	defer s.mu.Unlock()

	now = now.In(s.location)
	var due []domain.ScoreWindow
	if truncateDay(now).After(s.lastDay) {
		due = append(due, domain.WindowDaily)
	}
	if year, week := now.ISOWeek(); year != s.lastYear || week != s.lastWeek {
		due = append(due, domain.WindowWeekly)
	}
	if now.Year() != s.lastMYear || now.Month() != s.lastMonth {
		due = append(due, domain.WindowMonthly)
	}
	if len(due) > 0 {
		s.mark(now)
	}
	return due
}

func (s *WindowScheduler) mark(now time.Time) {
	s.lastDay = truncateDay(now)
	s.lastYear, s.lastWeek = now.ISOWeek()
	s.lastMYear, s.lastMonth = now.Year(), now.Month()
}

func truncateDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
