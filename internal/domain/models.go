package domain

import "time"

// AnswerKind distinguishes true/false questions from free-text ones.
type AnswerKind string

const (
	AnswerKindBoolean AnswerKind = "boolean"
	AnswerKindOpen    AnswerKind = "open"
)

// Difficulty is the question source's difficulty label.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// Question is one trivia prompt together with its reference answer.
type Question struct {
	Text            string     `json:"question"`
	ReferenceAnswer string     `json:"correctAnswer"`
	Kind            AnswerKind `json:"type"`
	Category        string     `json:"category"`
	Difficulty      Difficulty `json:"difficulty"`
}

// MatchType tags which matching rule produced a verdict.
type MatchType string

const (
	MatchExact         MatchType = "exact"
	MatchContains      MatchType = "contains"
	MatchKeywords      MatchType = "keywords"
	MatchFuzzy         MatchType = "fuzzy"
	MatchEssential     MatchType = "essential"
	MatchInitials      MatchType = "initials"
	MatchNameVariation MatchType = "name_variation"
	MatchNone          MatchType = "no_match"
	MatchEmpty         MatchType = "empty"
)

// MatchVerdict is the outcome of comparing a candidate answer to a reference answer.
// Confidence is only comparable between verdicts against the same reference.
type MatchVerdict struct {
	IsMatch    bool      `json:"isMatch"`
	Confidence float64   `json:"confidence"`
	MatchType  MatchType `json:"matchType"`
}

// EmptyVerdict is returned for blank input and for submissions that were not recorded.
func EmptyVerdict() MatchVerdict {
	return MatchVerdict{MatchType: MatchEmpty}
}

// RoundStatus is the lifecycle state of a round.
type RoundStatus string

const (
	RoundOpen     RoundStatus = "open"
	RoundResolved RoundStatus = "resolved"
	RoundTimedOut RoundStatus = "timed_out"
)

// Terminal reports whether no further transition is possible.
func (s RoundStatus) Terminal() bool {
	return s == RoundResolved || s == RoundTimedOut
}

// Submission is one candidate answer as observed by the coordinator.
// Seq is the observed arrival order inside the round, starting at 0.
type Submission struct {
	Seq         int       `json:"seq"`
	SubmitterID string    `json:"submitterId"`
	RawText     string    `json:"text"`
	ArrivalTime time.Time `json:"arrivalTime"`
}

// SubmissionResult pairs a recorded submission with its verdict. Contested is false for
// submissions recorded after the round was already resolved; those cannot win.
type SubmissionResult struct {
	// RoundID is the round the submission was judged against; empty when no round existed.
	RoundID      string        `json:"roundId,omitempty"`
	Submission   Submission    `json:"submission"`
	Verdict      MatchVerdict  `json:"verdict"`
	Recorded     bool          `json:"recorded"`
	Contested    bool          `json:"contested"`
	Winner       bool          `json:"winner"`
	ResponseTime time.Duration `json:"responseTime"`
	Reward       int           `json:"reward"`
}

// NearMiss is a ranked non-winning submission.
type NearMiss struct {
	SubmitterID string    `json:"submitterId"`
	RawText     string    `json:"text"`
	Confidence  float64   `json:"confidence"`
	MatchType   MatchType `json:"matchType"`
}

// RoundSnapshot is a read-only view of a round.
type RoundSnapshot struct {
	ID          string      `json:"id"`
	Channel     string      `json:"channel"`
	Question    Question    `json:"question"`
	StartTime   time.Time   `json:"startTime"`
	Deadline    time.Time   `json:"deadline"`
	Status      RoundStatus `json:"status"`
	ClosedAt    time.Time   `json:"closedAt,omitempty"`
	Submissions int         `json:"submissions"`
}

// RoundSummary is emitted once per terminal round for presentation and persistence.
type RoundSummary struct {
	Round       RoundSnapshot     `json:"round"`
	Winner      *SubmissionResult `json:"winner,omitempty"`
	Explanation string            `json:"explanation,omitempty"`
	NearMisses  []NearMiss        `json:"nearMisses"`
}

// EventType names a round lifecycle event.
type EventType string

const (
	EventRoundStarted       EventType = "roundStarted"
	EventSubmissionAccepted EventType = "submissionAccepted"
	EventRoundWon           EventType = "roundWon"
	EventRoundTimedOut      EventType = "roundTimedOut"
)

// RoundEvent is broadcast to coordinator subscribers.
type RoundEvent struct {
	Type       EventType         `json:"type"`
	Round      RoundSnapshot     `json:"round"`
	Submission *SubmissionResult `json:"submission,omitempty"`
	Summary    *RoundSummary     `json:"summary,omitempty"`
	// Player is the winner's aggregate after the win was scored.
	Player     *PlayerAggregate  `json:"player,omitempty"`
}
