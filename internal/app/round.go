package app

import (
	"sort"
	"time"

	"rapid-trivia-service/internal/domain"
)

// Round is the state of one question. It is not safe for concurrent use; the owning
// Coordinator serializes access.
type Round struct {
	id       string
	question domain.Question
	start    time.Time
	deadline time.Time
	status   domain.RoundStatus
	closedAt time.Time
	results  []domain.SubmissionResult
	winner   int
}

func newRound(id string, question domain.Question, start, deadline time.Time) *Round {
	return &Round{
		id:       id,
		question: question,
		start:    start,
		deadline: deadline,
		status:   domain.RoundOpen,
		winner:   -1,
	}
}

// record appends a classified submission. The first match while open resolves the round.
func (r *Round) record(submitterID, rawText string, arrival time.Time, verdict domain.MatchVerdict) domain.SubmissionResult {
	result := domain.SubmissionResult{
		Submission: domain.Submission{
			Seq:         len(r.results),
			SubmitterID: submitterID,
			RawText:     rawText,
			ArrivalTime: arrival,
		},
		Verdict:      verdict,
		Recorded:     true,
		Contested:    r.status == domain.RoundOpen,
		ResponseTime: r.elapsed(arrival),
		RoundID:      r.id,
	}
	if verdict.IsMatch && r.status == domain.RoundOpen {
		result.Winner = true
		result.Reward = RewardFor(result.ResponseTime.Seconds())
		r.status = domain.RoundResolved
		r.closedAt = arrival
		r.winner = result.Submission.Seq
	}
	r.results = append(r.results, result)
	return result
}

// expire moves an open round past its deadline to TimedOut and reports whether it did.
func (r *Round) expire(now time.Time) bool {
	if r.status != domain.RoundOpen || now.Before(r.deadline) {
		return false
	}
	r.status = domain.RoundTimedOut
	r.closedAt = now
	return true
}

func (r *Round) elapsed(at time.Time) time.Duration {
	d := at.Sub(r.start)
	if d < 0 {
		return 0
	}
	return d
}

func (r *Round) winnerResult() (domain.SubmissionResult, bool) {
	if r.winner < 0 {
		return domain.SubmissionResult{}, false
	}
	return r.results[r.winner], true
}

// nearMisses ranks every non-winning submission above floor by confidence, breaking
// ties by arrival time and then by observed order. limit <= 0 keeps all of them.
func (r *Round) nearMisses(floor float64, limit int) []domain.NearMiss {
	candidates := make([]domain.SubmissionResult, 0, len(r.results))
	for i, res := range r.results {
		if i == r.winner || res.Verdict.Confidence <= floor {
			continue
		}
		candidates = append(candidates, res)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		ci, cj := candidates[i], candidates[j]
		if ci.Verdict.Confidence != cj.Verdict.Confidence {
			return ci.Verdict.Confidence > cj.Verdict.Confidence
		}
		if !ci.Submission.ArrivalTime.Equal(cj.Submission.ArrivalTime) {
			return ci.Submission.ArrivalTime.Before(cj.Submission.ArrivalTime)
		}
		return ci.Submission.Seq < cj.Submission.Seq
	})
	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]domain.NearMiss, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, domain.NearMiss{
			SubmitterID: c.Submission.SubmitterID,
			RawText:     c.Submission.RawText,
			Confidence:  c.Verdict.Confidence,
			MatchType:   c.Verdict.MatchType,
		})
	}
	return out
}

func (r *Round) snapshot(channel string) domain.RoundSnapshot {
	return domain.RoundSnapshot{
		ID:          r.id,
		Channel:     channel,
		Question:    r.question,
		StartTime:   r.start,
		Deadline:    r.deadline,
		Status:      r.status,
		ClosedAt:    r.closedAt,
		Submissions: len(r.results),
	}
}
