package app

import (
	"context"
	"time"

	"rapid-trivia-service/internal/domain"
)

// CoordinatorRepository abstracts where per-channel coordinators live (in-memory, Redis-backed, etc).
type CoordinatorRepository interface {
	GetOrCreate(channel string) *Coordinator
	Get(channel string) (*Coordinator, bool)
	DeleteIfIdle(channel string)
}

// QuestionRepository hands out the next question for a difficulty (from cache/backing source).
type QuestionRepository interface {
	NextQuestion(ctx context.Context, difficulty domain.Difficulty) (domain.Question, error)
}

// QuestionLoader fetches a batch of fresh questions from a backing source.
type QuestionLoader interface {
	LoadQuestions(ctx context.Context, difficulty domain.Difficulty, n int) ([]domain.Question, error)
}

// PlayerStore persists per-player aggregates.
type PlayerStore interface {
	Apply(ctx context.Context, delta domain.AggregateDelta, at time.Time) (domain.PlayerAggregate, error)
	Get(ctx context.Context, playerID string) (domain.PlayerAggregate, error)
	Top(ctx context.Context, window domain.ScoreWindow, limit int) ([]domain.PlayerAggregate, error)
	ResetWindow(ctx context.Context, window domain.ScoreWindow) error
}

// Sink receives round transitions for presentation. Failures are logged and never undo a transition.
type Sink interface {
	RoundStarted(ctx context.Context, round domain.RoundSnapshot, leaders []domain.PlayerAggregate) error
	RoundClosed(ctx context.Context, summary domain.RoundSummary, winner *domain.PlayerAggregate) error
}
