package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"rapid-trivia-service/internal/domain"
)

// PlayerStore persists aggregates in trivia_players. The streak rule runs inside the
// upsert so concurrent updates for one player serialize on the row.
type PlayerStore struct {
	pool *pgxpool.Pool
}

func NewPlayerStore(pool *pgxpool.Pool) *PlayerStore {
	return &PlayerStore{pool: pool}
}

const playerColumns = `player_id, total_score, correct_answers, total_questions, current_streak,
	max_streak, daily_score, weekly_score, monthly_score, last_active`

const applySQL = `
INSERT INTO trivia_players AS p (` + playerColumns + `)
VALUES ($1, $2, $3, 1, $3, $3, $2, $2, $2, $4)
ON CONFLICT (player_id) DO UPDATE SET
	total_score     = p.total_score + EXCLUDED.total_score,
	correct_answers = p.correct_answers + EXCLUDED.correct_answers,
	total_questions = p.total_questions + 1,
	current_streak  = CASE WHEN $5 THEN p.current_streak + 1 ELSE 0 END,
	max_streak      = GREATEST(p.max_streak, CASE WHEN $5 THEN p.current_streak + 1 ELSE 0 END),
	daily_score     = p.daily_score + EXCLUDED.daily_score,
	weekly_score    = p.weekly_score + EXCLUDED.weekly_score,
	monthly_score   = p.monthly_score + EXCLUDED.monthly_score,
	last_active     = EXCLUDED.last_active
RETURNING ` + playerColumns

var windowColumn = map[domain.ScoreWindow]string{
	domain.WindowLifetime: "total_score",
	domain.WindowDaily:    "daily_score",
	domain.WindowWeekly:   "weekly_score",
	domain.WindowMonthly:  "monthly_score",
}

func (s *PlayerStore) Apply(ctx context.Context, delta domain.AggregateDelta, at time.Time) (domain.PlayerAggregate, error) {
	points, correct := 0, 0
	if delta.Won {
		points, correct = delta.Points, 1
	}
	row := s.pool.QueryRow(ctx, applySQL, delta.PlayerID, points, correct, at.UTC(), delta.Won)
	p, err := scanPlayer(row)
	if err != nil {
		return domain.PlayerAggregate{}, fmt.Errorf("apply aggregate: %w", err)
	}
	return p, nil
}

func (s *PlayerStore) Get(ctx context.Context, playerID string) (domain.PlayerAggregate, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+playerColumns+` FROM trivia_players WHERE player_id = $1`, playerID)
	p, err := scanPlayer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.PlayerAggregate{}, domain.ErrPlayerNotFound
	}
	if err != nil {
		return domain.PlayerAggregate{}, fmt.Errorf("get player: %w", err)
	}
	return p, nil
}

func (s *PlayerStore) Top(ctx context.Context, window domain.ScoreWindow, limit int) ([]domain.PlayerAggregate, error) {
	window, err := domain.ParseWindow(string(window))
	if err != nil {
		return nil, err
	}
	column := windowColumn[window]
	where := ""
	if window != domain.WindowLifetime {
		where = "WHERE " + column + " > 0"
	}
	query := fmt.Sprintf(`SELECT %s FROM trivia_players %s ORDER BY %s DESC, max_streak DESC, player_id ASC`, playerColumns, where, column)
	args := []interface{}{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	defer rows.Close()

	var players []domain.PlayerAggregate
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}
		players = append(players, p)
	}
	return players, rows.Err()
}

func (s *PlayerStore) ResetWindow(ctx context.Context, window domain.ScoreWindow) error {
	if window == domain.WindowLifetime {
		return domain.ErrUnknownWindow
	}
	column, ok := windowColumn[window]
	if !ok {
		return domain.ErrUnknownWindow
	}
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`UPDATE trivia_players SET %[1]s = 0 WHERE %[1]s <> 0`, column)); err != nil {
		return fmt.Errorf("reset %s window: %w", window, err)
	}
	return nil
}

func scanPlayer(row pgx.Row) (domain.PlayerAggregate, error) {
	var p domain.PlayerAggregate
	err := row.Scan(
		&p.PlayerID,
		&p.TotalScore,
		&p.CorrectAnswers,
		&p.TotalQuestions,
		&p.CurrentStreak,
		&p.MaxStreak,
		&p.DailyScore,
		&p.WeeklyScore,
		&p.MonthlyScore,
		&p.LastActive,
	)
	return p, err
}
