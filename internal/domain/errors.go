package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidState marks protocol violations by the caller of the round coordinator.
	ErrInvalidState = errors.New("invalid round state")
	// ErrRoundInProgress is returned when opening a round while another one is still open.
	ErrRoundInProgress = fmt.Errorf("%w: a round is already open", ErrInvalidState)
	// ErrNoOpenRound is returned when submitting before any round has been opened.
	ErrNoOpenRound = fmt.Errorf("%w: no round has been opened", ErrInvalidState)
	// ErrInvalidQuestion indicates an empty question text or reference answer.
	ErrInvalidQuestion = errors.New("question text and reference answer are required")
	// ErrInvalidDeadline indicates a deadline that is not after the round start.
	ErrInvalidDeadline = errors.New("deadline must be after round start")
	// ErrExternalUnavailable wraps failures of question, submission or persistence adapters.
	ErrExternalUnavailable = errors.New("external collaborator unavailable")
	// ErrQuestionNotFound indicates a question source had nothing to offer.
	ErrQuestionNotFound = errors.New("no question available")
	// ErrPlayerNotFound indicates the aggregate store has no record for a player.
	ErrPlayerNotFound = errors.New("player not found")
	// ErrUnknownWindow indicates an unsupported score window name.
	ErrUnknownWindow = errors.New("unknown score window")
)
