package app

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"rapid-trivia-service/internal/domain"
	"rapid-trivia-service/internal/matching"
)

const (
	// DefaultNearMissFloor is the confidence a non-winning submission needs to be ranked.
	DefaultNearMissFloor = 0.3
	// DefaultNearMissLimit bounds the near-misses carried in a round summary.
	DefaultNearMissLimit = 3

	subscriberBuffer = 8
)

// CoordinatorOption customizes a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithNearMissFloor overrides the minimum confidence for near-miss ranking.
func WithNearMissFloor(floor float64) CoordinatorOption {
	return func(c *Coordinator) { c.nearMissFloor = floor }
}

// WithNearMissLimit overrides how many near-misses a summary carries.
func WithNearMissLimit(limit int) CoordinatorOption {
	return func(c *Coordinator) { c.nearMissLimit = limit }
}

// WithRoundIDs replaces the uuid round id generator, mostly for tests.
func WithRoundIDs(next func() string) CoordinatorOption {
	return func(c *Coordinator) { c.newID = next }
}

// Coordinator owns the single active round of a channel. All transitions happen under
// one lock, so concurrent submitters observe a single winner.
type Coordinator struct {
	channel       string
	matcher       *matching.Matcher
	newID         func() string
	nearMissFloor float64
	nearMissLimit int

	mu          sync.Mutex
	round       *Round
	subscribers map[chan domain.RoundEvent]struct{}
}

// NewCoordinator creates a coordinator for one channel.
func NewCoordinator(channel string, matcher *matching.Matcher, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{
		channel:       channel,
		matcher:       matcher,
		newID:         uuid.NewString,
		nearMissFloor: DefaultNearMissFloor,
		nearMissLimit: DefaultNearMissLimit,
		subscribers:   make(map[chan domain.RoundEvent]struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Channel returns the channel the coordinator serves.
func (c *Coordinator) Channel() string {
	return c.channel
}

// OpenRound starts a new round. It fails while the previous round is still open.
func (c *Coordinator) OpenRound(question domain.Question, start, deadline time.Time) (domain.RoundSnapshot, error) {
	if strings.TrimSpace(question.Text) == "" || strings.TrimSpace(question.ReferenceAnswer) == "" {
		return domain.RoundSnapshot{}, domain.ErrInvalidQuestion
	}
	if !deadline.After(start) {
		return domain.RoundSnapshot{}, domain.ErrInvalidDeadline
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.round != nil && !c.round.status.Terminal() {
		return domain.RoundSnapshot{}, domain.ErrRoundInProgress
	}
	c.round = newRound(c.newID(), question, start, deadline)
	snap := c.round.snapshot(c.channel)
	c.broadcastLocked(domain.RoundEvent{Type: domain.EventRoundStarted, Round: snap})
	return snap, nil
}

// Submit classifies and records a submission. A submission arriving at or after the
// deadline of an open round times the round out first and is not recorded.
func (c *Coordinator) Submit(submitterID, rawText string, arrival time.Time) (domain.SubmissionResult, error) {
	unrecorded := domain.SubmissionResult{
		Submission: domain.Submission{Seq: -1, SubmitterID: submitterID, RawText: rawText, ArrivalTime: arrival},
		Verdict:    domain.EmptyVerdict(),
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	r := c.round
	if r == nil {
		return unrecorded, domain.ErrNoOpenRound
	}
	if r.expire(arrival) {
		c.broadcastClosedLocked(domain.EventRoundTimedOut)
	}
	if r.status == domain.RoundTimedOut {
		unrecorded.RoundID = r.id
		return unrecorded, nil
	}

	verdict := c.matcher.Classify(rawText, r.question.ReferenceAnswer)
	result := r.record(submitterID, rawText, arrival, verdict)
	// The win itself is broadcast by PublishWon once the winner has been scored.
	if !result.Winner {
		c.broadcastLocked(domain.RoundEvent{
			Type:       domain.EventSubmissionAccepted,
			Round:      r.snapshot(c.channel),
			Submission: &result,
		})
	}
	return result, nil
}

// PublishWon broadcasts the resolution of round roundID together with the winner's
// updated aggregate. It reports false when that round is no longer the current one or
// did not end with a winner.
func (c *Coordinator) PublishWon(roundID string, winner *domain.PlayerAggregate) (domain.RoundSummary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.round == nil || c.round.id != roundID || c.round.status != domain.RoundResolved {
		return domain.RoundSummary{}, false
	}
	summary := c.summaryLocked()
	c.broadcastLocked(domain.RoundEvent{Type: domain.EventRoundWon, Round: summary.Round, Summary: &summary, Player: winner})
	return summary, true
}

// ResolveWinner returns the winning submission of the current round, if any.
func (c *Coordinator) ResolveWinner() (domain.SubmissionResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.round == nil {
		return domain.SubmissionResult{}, false
	}
	return c.round.winnerResult()
}

// RankNearMisses ranks non-winning submissions of the current round above the floor.
func (c *Coordinator) RankNearMisses(limit int) []domain.NearMiss {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.round == nil {
		return nil
	}
	return c.round.nearMisses(c.nearMissFloor, limit)
}

// CheckTimeout times the round out if the deadline has passed and reports whether the
// round is now timed out. Repeated calls keep returning true.
func (c *Coordinator) CheckTimeout(now time.Time) bool {
	c.Expire(now)

	c.mu.Lock()
	defer c.mu.Unlock()
	return c.round != nil && c.round.status == domain.RoundTimedOut
}

// Expire is CheckTimeout for callers that need the summary: the boolean is true only
// for the call that performed the transition.
func (c *Coordinator) Expire(now time.Time) (domain.RoundSummary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.round == nil || !c.round.expire(now) {
		return domain.RoundSummary{}, false
	}
	return c.broadcastClosedLocked(domain.EventRoundTimedOut), true
}

// Snapshot returns the current round, if one was ever opened.
func (c *Coordinator) Snapshot() (domain.RoundSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.round == nil {
		return domain.RoundSnapshot{}, false
	}
	return c.round.snapshot(c.channel), true
}

// Summary returns the summary of the current round once it is terminal.
func (c *Coordinator) Summary() (domain.RoundSummary, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.round == nil || !c.round.status.Terminal() {
		return domain.RoundSummary{}, false
	}
	return c.summaryLocked(), true
}

// Subscribe returns a channel of round events. A subscriber joining mid-round first
// receives the current round as a roundStarted event. Call cancel to release it.
func (c *Coordinator) Subscribe() (<-chan domain.RoundEvent, func()) {
	ch := make(chan domain.RoundEvent, subscriberBuffer)

	c.mu.Lock()
	c.subscribers[ch] = struct{}{}
	if c.round != nil && c.round.status == domain.RoundOpen {
		ch <- domain.RoundEvent{Type: domain.EventRoundStarted, Round: c.round.snapshot(c.channel)}
	}
	c.mu.Unlock()

	cancel := func() {
		c.mu.Lock()
		if _, ok := c.subscribers[ch]; ok {
			delete(c.subscribers, ch)
			close(ch)
		}
		c.mu.Unlock()
	}
	return ch, cancel
}

// Idle reports whether nobody is listening and no round is open.
func (c *Coordinator) Idle() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.subscribers) == 0 && (c.round == nil || c.round.status.Terminal())
}

func (c *Coordinator) summaryLocked() domain.RoundSummary {
	summary := domain.RoundSummary{
		Round:      c.round.snapshot(c.channel),
		NearMisses: c.round.nearMisses(c.nearMissFloor, c.nearMissLimit),
	}
	if winner, ok := c.round.winnerResult(); ok {
		summary.Winner = &winner
		summary.Explanation = matching.Explain(winner.Verdict.MatchType, winner.Verdict.Confidence)
	}
	return summary
}

func (c *Coordinator) broadcastClosedLocked(eventType domain.EventType) domain.RoundSummary {
	summary := c.summaryLocked()
	c.broadcastLocked(domain.RoundEvent{Type: eventType, Round: summary.Round, Summary: &summary})
	return summary
}

func (c *Coordinator) broadcastLocked(event domain.RoundEvent) {
	for ch := range c.subscribers {
		select {
		case ch <- event:
		default:
			// Slow subscriber: drop its oldest event instead of blocking the round.
			select {
			case <-ch:
			default:
			}
			ch <- event
		}
	}
}
