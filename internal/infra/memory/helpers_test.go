package memory

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"rapid-trivia-service/internal/app"
	"rapid-trivia-service/internal/domain"
)

type countingLoader struct {
	app.QuestionLoader
	calls int
}

func (l *countingLoader) LoadQuestions(ctx context.Context, difficulty domain.Difficulty, n int) ([]domain.Question, error) {
	l.calls++
	return l.QuestionLoader.LoadQuestions(ctx, difficulty, n)
}

type failingLoader struct{ err error }

func (l failingLoader) LoadQuestions(context.Context, domain.Difficulty, int) ([]domain.Question, error) {
	return nil, l.err
}

func testLogger() zerolog.Logger {
	return zerolog.New(io.Discard)
}

func sampleQuestions() []domain.Question {
	return []domain.Question{
		{Text: "What is 2 + 2?", ReferenceAnswer: "4", Kind: domain.AnswerKindOpen, Category: "Math", Difficulty: domain.DifficultyEasy},
		{Text: "Largest ocean?", ReferenceAnswer: "Pacific", Kind: domain.AnswerKindOpen, Category: "Geography", Difficulty: domain.DifficultyEasy},
		{Text: "The sun is a star.", ReferenceAnswer: "True", Kind: domain.AnswerKindBoolean, Category: "Science", Difficulty: domain.DifficultyEasy},
	}
}
