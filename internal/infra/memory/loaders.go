package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"rapid-trivia-service/internal/app"
	"rapid-trivia-service/internal/domain"
)

// StaticQuestionLoader serves a fixed question list (useful for tests/demos and as the
// last resort behind remote sources). When no question has the requested difficulty it
// serves any of them.
type StaticQuestionLoader struct {
	questions []domain.Question

	mu     sync.Mutex
	cursor int
}

func NewStaticQuestionLoader(questions []domain.Question) *StaticQuestionLoader {
	return &StaticQuestionLoader{questions: questions}
}

// BuiltinQuestions are served when every other source is down.
func BuiltinQuestions() []domain.Question {
	return []domain.Question{
		{Text: "What is the capital of France?", ReferenceAnswer: "Paris", Kind: domain.AnswerKindOpen, Category: "Geography", Difficulty: domain.DifficultyEasy},
		{Text: "Which planet is known as the Red Planet?", ReferenceAnswer: "Mars", Kind: domain.AnswerKindOpen, Category: "Science", Difficulty: domain.DifficultyEasy},
		{Text: "Who wrote 'Romeo and Juliet'?", ReferenceAnswer: "William Shakespeare", Kind: domain.AnswerKindOpen, Category: "Literature", Difficulty: domain.DifficultyMedium},
	}
}

func (l *StaticQuestionLoader) LoadQuestions(_ context.Context, difficulty domain.Difficulty, n int) ([]domain.Question, error) {
	candidates := make([]domain.Question, 0, len(l.questions))
	for _, q := range l.questions {
		if q.Difficulty == difficulty {
			candidates = append(candidates, q)
		}
	}
	if len(candidates) == 0 {
		candidates = l.questions
	}
	if len(candidates) == 0 {
		return nil, domain.ErrQuestionNotFound
	}
	if n <= 0 || n > len(candidates) {
		n = len(candidates)
	}

	// Rotate so consecutive loads do not start with the same question.
	l.mu.Lock()
	start := l.cursor % len(candidates)
	l.cursor++
	l.mu.Unlock()

	out := make([]domain.Question, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, candidates[(start+i)%len(candidates)])
	}
	return out, nil
}

// FallbackLoader asks each loader in order and returns the first non-empty batch.
type FallbackLoader struct {
	loaders []app.QuestionLoader
	logger  zerolog.Logger
}

func NewFallbackLoader(logger zerolog.Logger, loaders ...app.QuestionLoader) *FallbackLoader {
	return &FallbackLoader{loaders: loaders, logger: logger}
}

func (l *FallbackLoader) LoadQuestions(ctx context.Context, difficulty domain.Difficulty, n int) ([]domain.Question, error) {
	var errs []error
	for i, loader := range l.loaders {
		questions, err := loader.LoadQuestions(ctx, difficulty, n)
		if err == nil && len(questions) > 0 {
			if i > 0 {
				l.logger.Warn().Int("source", i).Str("difficulty", string(difficulty)).Msg("serving questions from fallback source")
			}
			return questions, nil
		}
		if err == nil {
			err = domain.ErrQuestionNotFound
		}
		l.logger.Warn().Err(err).Int("source", i).Str("difficulty", string(difficulty)).Msg("question source failed")
		errs = append(errs, err)
	}
	return nil, fmt.Errorf("%w: %w", domain.ErrExternalUnavailable, errors.Join(errs...))
}
