package redis

import (
	"context"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"rapid-trivia-service/internal/app"
	"rapid-trivia-service/internal/domain"
)

func newClient(mr *miniredis.Miniredis) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
}

func runMiniredis(t *testing.T) *miniredis.Miniredis {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return mr
}

type countingLoader struct {
	app.QuestionLoader
	calls int
}

func (l *countingLoader) LoadQuestions(ctx context.Context, difficulty domain.Difficulty, n int) ([]domain.Question, error) {
	l.calls++
	return l.QuestionLoader.LoadQuestions(ctx, difficulty, n)
}
