package announce

import (
	"context"

	"github.com/rs/zerolog"

	"rapid-trivia-service/internal/domain"
)

// LogSink publishes announcements to the structured log, one entry per transition.
type LogSink struct {
	formatter *Formatter
	logger    zerolog.Logger
}

func NewLogSink(formatter *Formatter, logger zerolog.Logger) *LogSink {
	return &LogSink{formatter: formatter, logger: logger}
}

func (s *LogSink) RoundStarted(_ context.Context, round domain.RoundSnapshot, leaders []domain.PlayerAggregate) error {
	s.logger.Info().
		Str("channel", round.Channel).
		Str("round_id", round.ID).
		Str("announcement", s.formatter.QuestionPost(round, leaders)).
		Msg("question posted")
	return nil
}

func (s *LogSink) RoundClosed(_ context.Context, summary domain.RoundSummary, winner *domain.PlayerAggregate) error {
	text := s.formatter.TimeUp(summary)
	if summary.Winner != nil {
		text = s.formatter.Celebration(summary, winner)
	}
	s.logger.Info().
		Str("channel", summary.Round.Channel).
		Str("round_id", summary.Round.ID).
		Str("announcement", text).
		Msg("round announced")
	return nil
}
