package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"rapid-trivia-service/internal/announce"
	"rapid-trivia-service/internal/app"
	"rapid-trivia-service/internal/domain"
	"rapid-trivia-service/internal/matching"
	"rapid-trivia-service/internal/metrics"
)

// HandlerOption customizes the websocket handler.
type HandlerOption func(*WSHandler)

func WithLogger(logger zerolog.Logger) HandlerOption {
	return func(h *WSHandler) { h.logger = logger }
}

func WithMetrics(m *metrics.Metrics) HandlerOption {
	return func(h *WSHandler) { h.metrics = m }
}

// WithClock sets the source of submission arrival times.
func WithClock(clock func() time.Time) HandlerOption {
	return func(h *WSHandler) { h.now = clock }
}

type WSHandler struct {
	service   *app.GameService
	formatter *announce.Formatter
	upgrader  websocket.Upgrader
	logger    zerolog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

func NewWSHandler(service *app.GameService, formatter *announce.Formatter, opts ...HandlerOption) *WSHandler {
	h := &WSHandler{
		service:   service,
		formatter: formatter,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

type inboundMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type answerPayload struct {
	Text string `json:"text"`
}

type answerResult struct {
	RoundID       string           `json:"roundId"`
	Recorded      bool             `json:"recorded"`
	Correct       bool             `json:"correct"`
	Winner        bool             `json:"winner"`
	MatchType     domain.MatchType `json:"matchType"`
	Confidence    float64          `json:"confidence"`
	Explanation   string           `json:"explanation"`
	Reward        int              `json:"reward"`
	TotalScore    int              `json:"totalScore"`
	CurrentStreak int              `json:"currentStreak"`
}

// questionView hides the reference answer from players while the round is open.
type questionView struct {
	Text       string            `json:"question"`
	Kind       domain.AnswerKind `json:"type"`
	Category   string            `json:"category"`
	Difficulty domain.Difficulty `json:"difficulty"`
}

type roundStarted struct {
	RoundID      string       `json:"roundId"`
	Question     questionView `json:"question"`
	Deadline     time.Time    `json:"deadline"`
	Announcement string       `json:"announcement"`
}

type roundClosed struct {
	Summary      domain.RoundSummary `json:"summary"`
	Announcement string              `json:"announcement"`
}

type feedbackPayload struct {
	Message string `json:"message"`
}

type outboundMessage[T any] struct {
	Type    string `json:"type"`
	Payload T      `json:"payload"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// ServeWS upgrades HTTP requests to websockets and relays answers and round events for one channel.
func (h *WSHandler) ServeWS(w http.ResponseWriter, r *http.Request) {
	channel := r.URL.Query().Get("channel")
	userID := r.URL.Query().Get("userId")
	if channel == "" || userID == "" {
		http.Error(w, "missing channel or userId", http.StatusBadRequest)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("ws upgrade failed")
		return
	}
	defer conn.Close()

	h.metrics.ConnectionOpened()
	defer h.metrics.ConnectionClosed()
	log := h.logger.With().Str("channel", channel).Str("user_id", userID).Logger()
	log.Debug().Msg("player connected")

	events, cancel, err := h.service.Subscribe(r.Context(), channel)
	if err != nil {
		_ = conn.WriteJSON(outboundMessage[errorPayload]{Type: "error", Payload: errorPayload{Message: err.Error()}})
		return
	}
	defer cancel()

	send := make(chan outboundMessage[any], 16)
	closeSignals := make(chan struct{})
	writerDone := make(chan struct{})
	eventsDone := make(chan struct{})

	// Only the writer goroutine touches the connection for writes.
	go func() {
		defer close(writerDone)
		for msg := range send {
			if err := conn.WriteJSON(msg); err != nil {
				log.Debug().Err(err).Msg("ws write error")
				return
			}
		}
	}()

	go func() {
		defer close(eventsDone)
		for {
			select {
			case event, ok := <-events:
				if !ok {
					return
				}
				msg, ok := h.eventMessage(r.Context(), event)
				if !ok {
					continue
				}
				select {
				case send <- msg:
				case <-closeSignals:
					return
				}
			case <-closeSignals:
				return
			}
		}
	}()

	for {
		var inbound inboundMessage
		if err := conn.ReadJSON(&inbound); err != nil {
			break
		}
		switch inbound.Type {
		case "answer":
			var payload answerPayload
			if err := json.Unmarshal(inbound.Payload, &payload); err != nil {
				send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "invalid answer payload"}}
				continue
			}
			for _, msg := range h.answer(r.Context(), channel, userID, payload.Text) {
				send <- msg
			}
		default:
			send <- outboundMessage[any]{Type: "error", Payload: errorPayload{Message: "unsupported message type"}}
		}
	}

	close(closeSignals)
	<-eventsDone
	close(send)
	<-writerDone
	log.Debug().Msg("player disconnected")
}

func (h *WSHandler) answer(ctx context.Context, channel, userID, text string) []outboundMessage[any] {
	outcome, err := h.service.SubmitAnswer(ctx, channel, userID, text, h.now())
	if err != nil {
		message := err.Error()
		if errors.Is(err, domain.ErrNoOpenRound) {
			message = "no round is running on this channel yet"
		}
		return []outboundMessage[any]{{Type: "error", Payload: errorPayload{Message: message}}}
	}

	res := outcome.Result
	result := answerResult{
		RoundID:     res.RoundID,
		Recorded:    res.Recorded,
		Correct:     res.Verdict.IsMatch,
		Winner:      res.Winner,
		MatchType:   res.Verdict.MatchType,
		Confidence:  res.Verdict.Confidence,
		Explanation: matchExplanation(res.Verdict),
		Reward:      res.Reward,
	}
	if outcome.Player != nil {
		result.TotalScore = outcome.Player.TotalScore
		result.CurrentStreak = outcome.Player.CurrentStreak
	}
	out := []outboundMessage[any]{{Type: "answerResult", Payload: result}}

	for _, line := range h.feedback(userID, text, outcome) {
		out = append(out, outboundMessage[any]{Type: "feedback", Payload: feedbackPayload{Message: line}})
	}
	return out
}

func (h *WSHandler) feedback(userID, text string, outcome app.AnswerOutcome) []string {
	res := outcome.Result
	var lines []string
	if res.Winner && outcome.Player != nil {
		if line, ok := h.formatter.StreakShoutout(userID, outcome.Player.CurrentStreak); ok {
			lines = append(lines, line)
		}
	}
	if res.Recorded && !res.Verdict.IsMatch {
		if line, ok := h.formatter.CloseFeedback(res.Verdict.Confidence); ok {
			lines = append(lines, line)
		} else if line, ok := h.formatter.Encouragement(); ok {
			lines = append(lines, line)
		}
	}
	if line, ok := h.formatter.ChatReply(text); ok {
		lines = append(lines, line)
	}
	return lines
}

func (h *WSHandler) eventMessage(ctx context.Context, event domain.RoundEvent) (outboundMessage[any], bool) {
	switch event.Type {
	case domain.EventRoundStarted:
		leaders, err := h.service.Leaderboard(ctx, domain.WindowLifetime, 0)
		if err != nil {
			leaders = nil
		}
		q := event.Round.Question
		return outboundMessage[any]{Type: string(event.Type), Payload: roundStarted{
			RoundID:      event.Round.ID,
			Question:     questionView{Text: q.Text, Kind: q.Kind, Category: q.Category, Difficulty: q.Difficulty},
			Deadline:     event.Round.Deadline,
			Announcement: h.formatter.QuestionPost(event.Round, leaders),
		}}, true
	case domain.EventRoundWon, domain.EventRoundTimedOut:
		if event.Summary == nil {
			return outboundMessage[any]{}, false
		}
		summary := *event.Summary
		var text string
		if summary.Winner != nil {
			text = h.formatter.Celebration(summary, event.Player)
		} else {
			text = h.formatter.TimeUp(summary)
		}
		return outboundMessage[any]{Type: string(event.Type), Payload: roundClosed{Summary: summary, Announcement: text}}, true
	default:
		return outboundMessage[any]{}, false
	}
}

func matchExplanation(v domain.MatchVerdict) string {
	if v.MatchType == domain.MatchEmpty {
		return ""
	}
	return matching.Explain(v.MatchType, v.Confidence)
}
