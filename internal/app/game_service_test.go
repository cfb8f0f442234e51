package app_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"rapid-trivia-service/internal/app"
	"rapid-trivia-service/internal/domain"
	"rapid-trivia-service/internal/infra/memory"
	"rapid-trivia-service/internal/matching"
)

type stubQuestions struct {
	question domain.Question
	err      error
}

func (s stubQuestions) NextQuestion(context.Context, domain.Difficulty) (domain.Question, error) {
	return s.question, s.err
}

type brokenPlayers struct{ err error }

func (b brokenPlayers) Apply(context.Context, domain.AggregateDelta, time.Time) (domain.PlayerAggregate, error) {
	return domain.PlayerAggregate{}, b.err
}

func (b brokenPlayers) Get(context.Context, string) (domain.PlayerAggregate, error) {
	return domain.PlayerAggregate{}, b.err
}

func (b brokenPlayers) Top(context.Context, domain.ScoreWindow, int) ([]domain.PlayerAggregate, error) {
	return nil, b.err
}

func (b brokenPlayers) ResetWindow(context.Context, domain.ScoreWindow) error {
	return b.err
}

// gatedPlayers holds every Apply until release is closed.
type gatedPlayers struct {
	app.PlayerStore
	entered chan struct{}
	release chan struct{}
}

func (g gatedPlayers) Apply(ctx context.Context, delta domain.AggregateDelta, at time.Time) (domain.PlayerAggregate, error) {
	g.entered <- struct{}{}
	<-g.release
	return g.PlayerStore.Apply(ctx, delta, at)
}

type recordingSink struct {
	mu      sync.Mutex
	started []domain.RoundSnapshot
	closed  []domain.RoundSummary
	winners []*domain.PlayerAggregate
}

func (r *recordingSink) RoundStarted(_ context.Context, round domain.RoundSnapshot, _ []domain.PlayerAggregate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.started = append(r.started, round)
	return nil
}

func (r *recordingSink) RoundClosed(_ context.Context, summary domain.RoundSummary, winner *domain.PlayerAggregate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = append(r.closed, summary)
	r.winners = append(r.winners, winner)
	return nil
}

func (r *recordingSink) counts() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.started), len(r.closed)
}

func newTestGame(questions app.QuestionRepository, players app.PlayerStore, opts ...app.GameOption) (*app.GameService, *recordingSink) {
	rounds := memory.NewCoordinatorStore(func(channel string) *app.Coordinator {
		return app.NewCoordinator(channel, matching.MustNewMatcher(matching.DefaultConfig()))
	})
	sink := &recordingSink{}
	cfg := app.DefaultGameConfig()
	opts = append([]app.GameOption{app.WithSinks(sink)}, opts...)
	return app.NewGameService(rounds, questions, players, cfg, opts...), sink
}

func TestGameServiceFirstCorrectAnswerScores(t *testing.T) {
	ctx := context.Background()
	players := memory.NewPlayerStore()
	game, sink := newTestGame(stubQuestions{question: capitalQuestion()}, players)

	snap, err := game.StartRound(ctx, "general", t0)
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if !snap.Deadline.Equal(t0.Add(45 * time.Second)) {
		t.Fatalf("unexpected deadline %v", snap.Deadline)
	}

	out, err := game.SubmitAnswer(ctx, "general", "alice", "paris", t0.Add(3*time.Second))
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if !out.Result.Winner || out.Result.Reward != 20 {
		t.Fatalf("expected winning answer worth 20, got %+v", out.Result)
	}
	if out.Player == nil || out.Player.TotalScore != 20 || out.Player.CurrentStreak != 1 {
		t.Fatalf("unexpected aggregate %+v", out.Player)
	}
	if out.Summary == nil || out.Summary.Winner == nil || out.Summary.Explanation != "Perfect match!" {
		t.Fatalf("expected winning summary, got %+v", out.Summary)
	}

	late, err := game.SubmitAnswer(ctx, "general", "bob", "Paris", t0.Add(4*time.Second))
	if err != nil {
		t.Fatalf("late submit failed: %v", err)
	}
	if late.Result.Winner || late.Result.Contested || late.Player != nil {
		t.Fatalf("late answer must not score, got %+v", late)
	}
	if _, err := game.Player(ctx, "bob"); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Fatalf("expected no aggregate for bob, got %v", err)
	}

	if started, closed := sink.counts(); started != 1 || closed != 1 {
		t.Fatalf("expected one start and one close, got %d/%d", started, closed)
	}

	leaders, err := game.Leaderboard(ctx, domain.WindowDaily, 0)
	if err != nil {
		t.Fatalf("leaderboard failed: %v", err)
	}
	if len(leaders) != 1 || leaders[0].PlayerID != "alice" {
		t.Fatalf("unexpected leaderboard %+v", leaders)
	}
}

func TestGameServiceWrongAnswerResetsStreak(t *testing.T) {
	ctx := context.Background()
	players := memory.NewPlayerStore()
	game, _ := newTestGame(stubQuestions{question: capitalQuestion()}, players)

	if _, err := game.StartRound(ctx, "general", t0); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if _, err := game.SubmitAnswer(ctx, "general", "alice", "Paris", t0.Add(2*time.Second)); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	// The interlude has elapsed, so the tick opens the next round.
	if _, err := game.Tick(ctx, "general", t0.Add(12*time.Second)); err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	snap, ok := game.CurrentRound("general")
	if !ok || snap.Status != domain.RoundOpen {
		t.Fatalf("expected a new open round, got %+v", snap)
	}

	out, err := game.SubmitAnswer(ctx, "general", "alice", "London", t0.Add(15*time.Second))
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if out.Result.Winner || out.Player == nil {
		t.Fatalf("expected a scored loss, got %+v", out)
	}
	if out.Player.CurrentStreak != 0 || out.Player.MaxStreak != 1 || out.Player.TotalQuestions != 2 || out.Player.TotalScore != 20 {
		t.Fatalf("unexpected aggregate after loss %+v", out.Player)
	}
}

func TestGameServiceTickTimesOutAndRestarts(t *testing.T) {
	ctx := context.Background()
	game, sink := newTestGame(stubQuestions{question: riverQuestion()}, memory.NewPlayerStore())

	if closed, err := game.Tick(ctx, "general", t0); err != nil || closed != nil {
		t.Fatalf("first tick should open a round, got %v %v", closed, err)
	}
	first, _ := game.CurrentRound("general")

	if closed, _ := game.Tick(ctx, "general", t0.Add(30*time.Second)); closed != nil {
		t.Fatalf("round closed early: %+v", closed)
	}

	closed, err := game.Tick(ctx, "general", t0.Add(45*time.Second))
	if err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	if closed == nil || closed.Round.Status != domain.RoundTimedOut || closed.Winner != nil {
		t.Fatalf("expected timeout summary, got %+v", closed)
	}

	// Still inside the interlude: nothing new is announced.
	if closed, _ := game.Tick(ctx, "general", t0.Add(50*time.Second)); closed != nil {
		t.Fatalf("timeout announced twice: %+v", closed)
	}
	if snap, _ := game.CurrentRound("general"); snap.ID != first.ID {
		t.Fatalf("next round opened during the interlude")
	}

	if _, err := game.Tick(ctx, "general", t0.Add(55*time.Second)); err != nil {
		t.Fatalf("tick failed: %v", err)
	}
	next, _ := game.CurrentRound("general")
	if next.ID == first.ID || next.Status != domain.RoundOpen {
		t.Fatalf("expected a fresh round, got %+v", next)
	}

	if started, closedCount := sink.counts(); started != 2 || closedCount != 1 {
		t.Fatalf("expected 2 starts and 1 close, got %d/%d", started, closedCount)
	}
}

func TestGameServiceQuestionFailure(t *testing.T) {
	boom := errors.New("trivia api down")
	game, _ := newTestGame(stubQuestions{err: boom}, memory.NewPlayerStore())

	_, err := game.StartRound(context.Background(), "general", t0)
	if !errors.Is(err, domain.ErrExternalUnavailable) || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped external error, got %v", err)
	}
	if _, ok := game.CurrentRound("general"); ok {
		t.Fatalf("no round should be open")
	}
}

func TestGameServicePlayerStoreFailureDoesNotUndoWin(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)
	players := brokenPlayers{err: errors.New("connection refused")}
	game, sink := newTestGame(stubQuestions{question: capitalQuestion()}, players, app.WithLogger(logger))

	if _, err := game.StartRound(context.Background(), "general", t0); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	out, err := game.SubmitAnswer(context.Background(), "general", "alice", "Paris", t0.Add(time.Second))
	if err != nil {
		t.Fatalf("submit should succeed, got %v", err)
	}
	if !out.Result.Winner || out.Player != nil {
		t.Fatalf("expected win without aggregate, got %+v", out)
	}
	if !strings.Contains(buf.String(), "apply aggregate failed") {
		t.Fatalf("expected persistence failure to be logged, got %s", buf.String())
	}
	if _, closed := sink.counts(); closed != 1 {
		t.Fatalf("expected the win to be announced")
	}

	if _, err := game.Leaderboard(context.Background(), domain.WindowLifetime, 3); !errors.Is(err, domain.ErrExternalUnavailable) {
		t.Fatalf("expected external error, got %v", err)
	}
}

func TestGameServiceUnknownChannelAndWindow(t *testing.T) {
	game, _ := newTestGame(stubQuestions{question: capitalQuestion()}, memory.NewPlayerStore())

	if _, err := game.SubmitAnswer(context.Background(), "nowhere", "alice", "Paris", t0); !errors.Is(err, domain.ErrNoOpenRound) {
		t.Fatalf("expected no open round, got %v", err)
	}
	if _, err := game.Leaderboard(context.Background(), domain.ScoreWindow("yearly"), 3); !errors.Is(err, domain.ErrUnknownWindow) {
		t.Fatalf("expected unknown window, got %v", err)
	}
}

func TestGameServiceRunStopsOnCancel(t *testing.T) {
	game, sink := newTestGame(stubQuestions{question: capitalQuestion()}, memory.NewPlayerStore())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- game.Run(ctx, "general", func() time.Time { return t0 }) }()

	deadline := time.After(2 * time.Second)
	for {
		if started, _ := sink.counts(); started == 1 {
			break
		}
		select {
		case <-deadline:
			t.Fatalf("game loop never opened a round")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("run did not stop")
	}
}

func TestGameServicePublishesWinAfterScoring(t *testing.T) {
	ctx := context.Background()
	players := gatedPlayers{
		PlayerStore: memory.NewPlayerStore(),
		entered:     make(chan struct{}, 1),
		release:     make(chan struct{}),
	}
	game, sink := newTestGame(stubQuestions{question: capitalQuestion()}, players)

	if _, err := game.StartRound(ctx, "general", t0); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	events, cancel, err := game.Subscribe(ctx, "general")
	if err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}
	defer cancel()
	if ev := <-events; ev.Type != domain.EventRoundStarted {
		t.Fatalf("expected the open round first, got %+v", ev)
	}

	done := make(chan app.AnswerOutcome, 1)
	go func() {
		out, err := game.SubmitAnswer(ctx, "general", "alice", "Paris", t0.Add(3*time.Second))
		if err != nil {
			t.Errorf("submit failed: %v", err)
		}
		done <- out
	}()
	<-players.entered

	// The loop ticks while the aggregate is still being written.
	if closed, err := game.Tick(ctx, "general", t0.Add(4*time.Second)); err != nil || closed != nil {
		t.Fatalf("tick must leave the win to the submitter, got %+v %v", closed, err)
	}
	select {
	case ev := <-events:
		t.Fatalf("win published before scoring: %+v", ev)
	default:
	}
	if _, closed := sink.counts(); closed != 0 {
		t.Fatalf("win announced before scoring")
	}

	close(players.release)
	out := <-done
	if out.Player == nil || out.Player.CurrentStreak != 1 {
		t.Fatalf("unexpected aggregate %+v", out.Player)
	}

	select {
	case ev := <-events:
		if ev.Type != domain.EventRoundWon || ev.Player == nil {
			t.Fatalf("expected roundWon with aggregate, got %+v", ev)
		}
		if ev.Player.CurrentStreak != 1 || ev.Player.TotalScore != 20 {
			t.Fatalf("event carries stale aggregate %+v", ev.Player)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("roundWon never published")
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	if len(sink.winners) != 1 || sink.winners[0] == nil || sink.winners[0].CurrentStreak != 1 {
		t.Fatalf("sink should see the scored winner once, got %+v", sink.winners)
	}
}
