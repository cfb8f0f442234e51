package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"rapid-trivia-service/internal/domain"
)

// PlayerStore keeps one hash per player and one sorted set per score window:
//
//	HSET trivia:player:{id} total_score .. current_streak .. daily_score ..
//	ZADD trivia:leaderboard:{window} {score} {id}
//
// Both are updated by a single script so a concurrent reader never sees half an update.
type PlayerStore struct {
	client *redis.Client
}

func NewPlayerStore(client *redis.Client) *PlayerStore {
	return &PlayerStore{client: client}
}

const (
	playerKeyPrefix      = "trivia:player:"
	leaderboardKeyPrefix = "trivia:leaderboard:"
)

var applyScript = redis.NewScript(`
local key = KEYS[1]
local player = ARGV[1]
local won = tonumber(ARGV[2])
local points = tonumber(ARGV[3])

redis.call('HSET', key, 'player_id', player, 'last_active', ARGV[4])
redis.call('HINCRBY', key, 'total_questions', 1)
if won == 1 then
  redis.call('HINCRBY', key, 'total_score', points)
  redis.call('HINCRBY', key, 'correct_answers', 1)
  local streak = redis.call('HINCRBY', key, 'current_streak', 1)
  local best = tonumber(redis.call('HGET', key, 'max_streak') or '0')
  if streak > best then
    redis.call('HSET', key, 'max_streak', streak)
  end
  redis.call('HINCRBY', key, 'daily_score', points)
  redis.call('HINCRBY', key, 'weekly_score', points)
  redis.call('HINCRBY', key, 'monthly_score', points)
  for i = 2, 5 do
    redis.call('ZINCRBY', KEYS[i], points, player)
  end
else
  redis.call('HSET', key, 'current_streak', 0)
  redis.call('ZINCRBY', KEYS[2], 0, player)
end
return redis.call('HGETALL', key)
`)

// resetScript zeroes ARGV[1] on each player hash KEYS[2..n] and drops the matching
// member ARGV[i] from the window set KEYS[1]. Members that joined after the caller
// listed the set keep their score.
var resetScript = redis.NewScript(`
for i = 2, #KEYS do
  redis.call('HSET', KEYS[i], ARGV[1], 0)
  redis.call('ZREM', KEYS[1], ARGV[i])
end
return #KEYS - 1
`)

func (s *PlayerStore) Apply(ctx context.Context, delta domain.AggregateDelta, at time.Time) (domain.PlayerAggregate, error) {
	won := 0
	if delta.Won {
		won = 1
	}
	keys := []string{
		playerKey(delta.PlayerID),
		leaderboardKey(domain.WindowLifetime),
		leaderboardKey(domain.WindowDaily),
		leaderboardKey(domain.WindowWeekly),
		leaderboardKey(domain.WindowMonthly),
	}
	raw, err := applyScript.Run(ctx, s.client, keys, delta.PlayerID, won, delta.Points, at.UTC().Format(time.RFC3339Nano)).Slice()
	if err != nil {
		return domain.PlayerAggregate{}, fmt.Errorf("apply aggregate: %w", err)
	}
	fields := make(map[string]string, len(raw)/2)
	for i := 0; i+1 < len(raw); i += 2 {
		fields[fmt.Sprint(raw[i])] = fmt.Sprint(raw[i+1])
	}
	return decodePlayer(fields)
}

func (s *PlayerStore) Get(ctx context.Context, playerID string) (domain.PlayerAggregate, error) {
	fields, err := s.client.HGetAll(ctx, playerKey(playerID)).Result()
	if err != nil {
		return domain.PlayerAggregate{}, fmt.Errorf("get player: %w", err)
	}
	if len(fields) == 0 {
		return domain.PlayerAggregate{}, domain.ErrPlayerNotFound
	}
	return decodePlayer(fields)
}

func (s *PlayerStore) Top(ctx context.Context, window domain.ScoreWindow, limit int) ([]domain.PlayerAggregate, error) {
	window, err := domain.ParseWindow(string(window))
	if err != nil {
		return nil, err
	}
	ids, err := s.leaderIDs(ctx, leaderboardKey(window), limit)
	if err != nil {
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, 0, len(ids))
	for _, id := range ids {
		cmds = append(cmds, pipe.HGetAll(ctx, playerKey(id)))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("leaderboard players: %w", err)
	}

	players := make([]domain.PlayerAggregate, 0, len(cmds))
	for _, cmd := range cmds {
		fields, err := cmd.Result()
		if err != nil || len(fields) == 0 {
			continue
		}
		p, err := decodePlayer(fields)
		if err != nil {
			return nil, err
		}
		players = append(players, p)
	}
	return domain.RankPlayers(players, window, limit), nil
}

// leaderIDs returns the best limit members plus every member tied with the last of
// them, so the max-streak tiebreak in RankPlayers sees all candidates at the cutoff.
func (s *PlayerStore) leaderIDs(ctx context.Context, key string, limit int) ([]string, error) {
	if limit <= 0 {
		return s.client.ZRevRange(ctx, key, 0, -1).Result()
	}
	cutoff, err := s.client.ZRevRangeWithScores(ctx, key, int64(limit)-1, int64(limit)-1).Result()
	if err != nil {
		return nil, err
	}
	if len(cutoff) == 0 {
		return s.client.ZRevRange(ctx, key, 0, -1).Result()
	}
	return s.client.ZRevRangeByScore(ctx, key, &redis.ZRangeBy{
		Min: strconv.FormatFloat(cutoff[0].Score, 'f', -1, 64),
		Max: "+inf",
	}).Result()
}

func (s *PlayerStore) ResetWindow(ctx context.Context, window domain.ScoreWindow) error {
	field, ok := windowField[window]
	if !ok {
		return domain.ErrUnknownWindow
	}
	setKey := leaderboardKey(window)
	members, err := s.client.ZRange(ctx, setKey, 0, -1).Result()
	if err != nil {
		return fmt.Errorf("reset %s window: %w", window, err)
	}
	if len(members) == 0 {
		return nil
	}

	keys := make([]string, 0, len(members)+1)
	args := make([]any, 0, len(members)+1)
	keys = append(keys, setKey)
	args = append(args, field)
	for _, id := range members {
		keys = append(keys, playerKey(id))
		args = append(args, id)
	}
	if err := resetScript.Run(ctx, s.client, keys, args...).Err(); err != nil {
		return fmt.Errorf("reset %s window: %w", window, err)
	}
	return nil
}

var windowField = map[domain.ScoreWindow]string{
	domain.WindowDaily:   "daily_score",
	domain.WindowWeekly:  "weekly_score",
	domain.WindowMonthly: "monthly_score",
}

func playerKey(playerID string) string {
	return playerKeyPrefix + playerID
}

func leaderboardKey(window domain.ScoreWindow) string {
	return leaderboardKeyPrefix + string(window)
}

func decodePlayer(fields map[string]string) (domain.PlayerAggregate, error) {
	p := domain.PlayerAggregate{PlayerID: fields["player_id"]}
	ints := []struct {
		name string
		dst  *int
	}{
		{"total_score", &p.TotalScore},
		{"correct_answers", &p.CorrectAnswers},
		{"total_questions", &p.TotalQuestions},
		{"current_streak", &p.CurrentStreak},
		{"max_streak", &p.MaxStreak},
		{"daily_score", &p.DailyScore},
		{"weekly_score", &p.WeeklyScore},
		{"monthly_score", &p.MonthlyScore},
	}
	for _, f := range ints {
		raw, ok := fields[f.name]
		if !ok {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil {
			return domain.PlayerAggregate{}, fmt.Errorf("decode %s: %w", f.name, err)
		}
		*f.dst = v
	}
	if raw := fields["last_active"]; raw != "" {
		at, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return domain.PlayerAggregate{}, fmt.Errorf("decode last_active: %w", err)
		}
		p.LastActive = at
	}
	return p, nil
}
