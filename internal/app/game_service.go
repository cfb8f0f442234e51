package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"rapid-trivia-service/internal/domain"
	"rapid-trivia-service/internal/metrics"
)

// GameConfig tunes round pacing.
type GameConfig struct {
	RoundDuration     time.Duration
	Interlude         time.Duration
	PollInterval      time.Duration
	LeaderboardSize   int
	DifficultyWeights map[domain.Difficulty]int
}

// DefaultGameConfig mirrors the shipped config file.
func DefaultGameConfig() GameConfig {
	return GameConfig{
		RoundDuration:     45 * time.Second,
		Interlude:         10 * time.Second,
		PollInterval:      2 * time.Second,
		LeaderboardSize:   3,
		DifficultyWeights: DefaultDifficultyWeights(),
	}
}

// AnswerOutcome is what a submitter learns about their answer.
type AnswerOutcome struct {
	Result domain.SubmissionResult
	// Player is the updated aggregate; nil when the answer was not scored or persistence failed.
	Player *domain.PlayerAggregate
	// Summary is set when this answer won the round.
	Summary *domain.RoundSummary
}

// GameOption customizes a GameService.
type GameOption func(*GameService)

func WithLogger(logger zerolog.Logger) GameOption {
	return func(s *GameService) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) GameOption {
	return func(s *GameService) { s.metrics = m }
}

func WithSinks(sinks ...Sink) GameOption {
	return func(s *GameService) { s.sinks = append(s.sinks, sinks...) }
}

func WithDifficultyPicker(p *DifficultyPicker) GameOption {
	return func(s *GameService) { s.picker = p }
}

// GameService runs the trivia loop on top of per-channel coordinators.
type GameService struct {
	rounds    CoordinatorRepository
	questions QuestionRepository
	players   PlayerStore
	cfg       GameConfig

	sinks   []Sink
	logger  zerolog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	picker  *DifficultyPicker

	mu        sync.Mutex
	windows   *WindowScheduler
	announced map[string]string
}

func NewGameService(rounds CoordinatorRepository, questions QuestionRepository, players PlayerStore, cfg GameConfig, opts ...GameOption) *GameService {
	defaults := DefaultGameConfig()
	if cfg.RoundDuration <= 0 {
		cfg.RoundDuration = defaults.RoundDuration
	}
	if cfg.Interlude < 0 {
		cfg.Interlude = 0
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaults.PollInterval
	}
	if cfg.LeaderboardSize <= 0 {
		cfg.LeaderboardSize = defaults.LeaderboardSize
	}

	s := &GameService{
		rounds:    rounds,
		questions: questions,
		players:   players,
		cfg:       cfg,
		logger:    zerolog.Nop(),
		tracer:    otel.Tracer("game-service"),
		announced: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.picker == nil {
		s.picker = NewDifficultyPicker(cfg.DifficultyWeights, nil)
	}
	return s
}

// StartRound draws a question and opens a round on the channel.
func (s *GameService) StartRound(ctx context.Context, channel string, now time.Time) (domain.RoundSnapshot, error) {
	ctx, span := s.tracer.Start(ctx, "GameService.StartRound")
	defer span.End()

	difficulty := s.picker.Pick()
	span.SetAttributes(
		attribute.String("channel", channel),
		attribute.String("difficulty", string(difficulty)),
	)

	question, err := s.questions.NextQuestion(ctx, difficulty)
	if err != nil {
		s.metrics.IncrementAdapterFailure("questions")
		span.SetStatus(codes.Error, err.Error())
		return domain.RoundSnapshot{}, external("next question", err)
	}

	snap, err := s.rounds.GetOrCreate(channel).OpenRound(question, now, now.Add(s.cfg.RoundDuration))
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return domain.RoundSnapshot{}, err
	}
	span.SetAttributes(attribute.String("round_id", snap.ID))
	s.logger.Info().
		Str("channel", channel).
		Str("round_id", snap.ID).
		Str("difficulty", string(question.Difficulty)).
		Str("category", question.Category).
		Msg("round started")

	leaders := s.topPlayers(ctx, domain.WindowLifetime, s.cfg.LeaderboardSize)
	for _, sink := range s.sinks {
		if err := sink.RoundStarted(ctx, snap, leaders); err != nil {
			s.metrics.IncrementAdapterFailure("sink")
			s.logger.Warn().Err(err).Str("round_id", snap.ID).Msg("announce round start failed")
		}
	}
	span.SetStatus(codes.Ok, "round opened")
	return snap, nil
}

// SubmitAnswer records a player's answer on the channel's current round and, while the
// round is contested, updates the player's aggregate.
func (s *GameService) SubmitAnswer(ctx context.Context, channel, playerID, text string, now time.Time) (AnswerOutcome, error) {
	ctx, span := s.tracer.Start(ctx, "GameService.SubmitAnswer")
	defer span.End()
	span.SetAttributes(attribute.String("channel", channel), attribute.String("player_id", playerID))

	coord, ok := s.rounds.Get(channel)
	if !ok {
		span.SetStatus(codes.Error, domain.ErrNoOpenRound.Error())
		return AnswerOutcome{Result: domain.SubmissionResult{Verdict: domain.EmptyVerdict()}}, domain.ErrNoOpenRound
	}

	result, err := coord.Submit(playerID, text, now)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return AnswerOutcome{Result: result}, err
	}
	outcome := AnswerOutcome{Result: result}
	if !result.Recorded {
		return outcome, nil
	}

	span.SetAttributes(
		attribute.String("match_type", string(result.Verdict.MatchType)),
		attribute.Float64("confidence", result.Verdict.Confidence),
		attribute.Bool("winner", result.Winner),
	)
	s.metrics.IncrementSubmission(string(result.Verdict.MatchType))

	if result.Contested {
		delta := domain.AggregateDelta{PlayerID: playerID, Won: result.Winner, Points: result.Reward}
		agg, err := s.players.Apply(ctx, delta, result.Submission.ArrivalTime)
		if err != nil {
			s.metrics.IncrementAdapterFailure("players")
			s.logger.Error().Err(err).Str("player_id", playerID).Msg("apply aggregate failed")
		} else {
			outcome.Player = &agg
		}
	}

	// The win is published only after Apply so listeners see the scored aggregate.
	if result.Winner {
		s.metrics.ObserveWinningResponse(result.ResponseTime)
		if s.markAnnounced(channel, result.RoundID) {
			if summary, ok := coord.PublishWon(result.RoundID, outcome.Player); ok {
				outcome.Summary = &summary
				s.announceClosed(ctx, summary, outcome.Player)
			}
		}
	}
	span.SetStatus(codes.Ok, "answer recorded")
	return outcome, nil
}

// Tick advances the channel: it resets due score windows, times out an expired round,
// announces timeouts once and opens the next round after the interlude. Won rounds are
// announced by SubmitAnswer. It returns the summary of a round timed out during this tick.
func (s *GameService) Tick(ctx context.Context, channel string, now time.Time) (*domain.RoundSummary, error) {
	s.resetDueWindows(ctx, now)

	coord := s.rounds.GetOrCreate(channel)
	coord.Expire(now)

	snap, ok := coord.Snapshot()
	if !ok {
		_, err := s.StartRound(ctx, channel, now)
		return nil, err
	}
	if !snap.Status.Terminal() {
		return nil, nil
	}

	var closed *domain.RoundSummary
	if snap.Status == domain.RoundTimedOut && s.markAnnounced(channel, snap.ID) {
		if summary, ok := coord.Summary(); ok {
			s.announceClosed(ctx, summary, nil)
			closed = &summary
		}
	}

	if now.Before(snap.ClosedAt.Add(s.cfg.Interlude)) {
		return closed, nil
	}
	if _, err := s.StartRound(ctx, channel, now); err != nil {
		return closed, err
	}
	return closed, nil
}

// Run ticks the channel with clock until ctx is cancelled. Adapter failures are logged
// and retried on the next tick.
func (s *GameService) Run(ctx context.Context, channel string, clock func() time.Time) error {
	if clock == nil {
		clock = time.Now
	}
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()
	defer s.rounds.DeleteIfIdle(channel)

	s.logger.Info().Str("channel", channel).Dur("poll_interval", s.cfg.PollInterval).Msg("game loop started")
	for {
		if _, err := s.Tick(ctx, channel, clock()); err != nil {
			s.logger.Warn().Err(err).Str("channel", channel).Msg("tick failed")
		}
		select {
		case <-ctx.Done():
			s.logger.Info().Str("channel", channel).Msg("game loop stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// Subscribe returns round events for a channel. The caller must invoke cancel.
func (s *GameService) Subscribe(_ context.Context, channel string) (<-chan domain.RoundEvent, func(), error) {
	if channel == "" {
		return nil, nil, domain.ErrNoOpenRound
	}
	ch, cancel := s.rounds.GetOrCreate(channel).Subscribe()
	return ch, cancel, nil
}

// CurrentRound returns the channel's current round, if any.
func (s *GameService) CurrentRound(channel string) (domain.RoundSnapshot, bool) {
	coord, ok := s.rounds.Get(channel)
	if !ok {
		return domain.RoundSnapshot{}, false
	}
	return coord.Snapshot()
}

// Leaderboard returns the best players for a window.
func (s *GameService) Leaderboard(ctx context.Context, window domain.ScoreWindow, limit int) ([]domain.PlayerAggregate, error) {
	if limit <= 0 {
		limit = s.cfg.LeaderboardSize
	}
	leaders, err := s.players.Top(ctx, window, limit)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownWindow) {
			return nil, err
		}
		return nil, external("leaderboard", err)
	}
	return leaders, nil
}

// Player returns one player's aggregate.
func (s *GameService) Player(ctx context.Context, playerID string) (domain.PlayerAggregate, error) {
	return s.players.Get(ctx, playerID)
}

// announceClosed logs and fans out a closed round. Callers claim the round with
// markAnnounced first.
func (s *GameService) announceClosed(ctx context.Context, summary domain.RoundSummary, winner *domain.PlayerAggregate) {
	s.metrics.IncrementRoundClosed(string(summary.Round.Status))

	event := s.logger.Info().
		Str("channel", summary.Round.Channel).
		Str("round_id", summary.Round.ID).
		Str("status", string(summary.Round.Status)).
		Int("submissions", summary.Round.Submissions).
		Int("near_misses", len(summary.NearMisses))
	if summary.Winner != nil {
		event = event.
			Str("winner", summary.Winner.Submission.SubmitterID).
			Str("match_type", string(summary.Winner.Verdict.MatchType)).
			Int("reward", summary.Winner.Reward)
	}
	event.Msg("round closed")

	for _, sink := range s.sinks {
		if err := sink.RoundClosed(ctx, summary, winner); err != nil {
			s.metrics.IncrementAdapterFailure("sink")
			s.logger.Warn().Err(err).Str("round_id", summary.Round.ID).Msg("announce round close failed")
		}
	}
}

func (s *GameService) markAnnounced(channel, roundID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.announced[channel] == roundID {
		return false
	}
	s.announced[channel] = roundID
	return true
}

func (s *GameService) resetDueWindows(ctx context.Context, now time.Time) {
	s.mu.Lock()
	if s.windows == nil {
		s.windows = NewWindowScheduler(now)
	}
	windows := s.windows
	s.mu.Unlock()

	for _, window := range windows.Due(now) {
		if err := s.players.ResetWindow(ctx, window); err != nil {
			s.metrics.IncrementAdapterFailure("players")
			s.logger.Error().Err(err).Str("window", string(window)).Msg("reset score window failed")
			continue
		}
		s.logger.Info().Str("window", string(window)).Msg("score window reset")
	}
}

func (s *GameService) topPlayers(ctx context.Context, window domain.ScoreWindow, limit int) []domain.PlayerAggregate {
	leaders, err := s.players.Top(ctx, window, limit)
	if err != nil {
		s.metrics.IncrementAdapterFailure("players")
		s.logger.Warn().Err(err).Msg("load leaderboard failed")
		return nil
	}
	return leaders
}

func external(op string, err error) error {
	if errors.Is(err, domain.ErrExternalUnavailable) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: %w: %w", op, domain.ErrExternalUnavailable, err)
}
