package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"rapid-trivia-service/internal/app"
	"rapid-trivia-service/internal/domain"
)

// QuestionLoader draws questions from the questions table.
type QuestionLoader struct {
	pool *pgxpool.Pool
}

func NewQuestionLoader(pool *pgxpool.Pool) *QuestionLoader {
	return &QuestionLoader{pool: pool}
}

func (l *QuestionLoader) LoadQuestions(ctx context.Context, difficulty domain.Difficulty, n int) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT text, reference_answer, kind, category, difficulty
		FROM questions
		WHERE difficulty = $1
		ORDER BY random()
		LIMIT $2`, string(difficulty), n)
	if err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var (
			q          domain.Question
			kind, diff string
		)
		if err := rows.Scan(&q.Text, &q.ReferenceAnswer, &kind, &q.Category, &diff); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		q.Kind = domain.AnswerKind(kind)
		q.Difficulty = domain.Difficulty(diff)
		questions = append(questions, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load questions: %w", err)
	}
	if len(questions) == 0 {
		return nil, domain.ErrQuestionNotFound
	}
	return questions, nil
}

// SaveQuestions stores questions, skipping ones already present.
func (l *QuestionLoader) SaveQuestions(ctx context.Context, questions []domain.Question) error {
	batch := &pgx.Batch{}
	for _, q := range questions {
		batch.Queue(`
			INSERT INTO questions (text, reference_answer, kind, category, difficulty)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (text, reference_answer) DO NOTHING`,
			q.Text, q.ReferenceAnswer, string(q.Kind), q.Category, string(q.Difficulty))
	}
	results := l.pool.SendBatch(ctx, batch)
	defer results.Close()
	for range questions {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("save question: %w", err)
		}
	}
	return nil
}

// ArchivingLoader copies every batch served by an upstream loader into Postgres, so the
// table keeps growing into a local question bank.
type ArchivingLoader struct {
	upstream app.QuestionLoader
	archive  *QuestionLoader
	onError  func(error)
}

func NewArchivingLoader(upstream app.QuestionLoader, archive *QuestionLoader, onError func(error)) *ArchivingLoader {
	if onError == nil {
		onError = func(error) {}
	}
	return &ArchivingLoader{upstream: upstream, archive: archive, onError: onError}
}

func (l *ArchivingLoader) LoadQuestions(ctx context.Context, difficulty domain.Difficulty, n int) ([]domain.Question, error) {
	questions, err := l.upstream.LoadQuestions(ctx, difficulty, n)
	if err != nil {
		return nil, err
	}
	if err := l.archive.SaveQuestions(ctx, questions); err != nil {
		l.onError(err)
	}
	return questions, nil
}
