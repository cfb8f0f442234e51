package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"rapid-trivia-service/internal/app"
	"rapid-trivia-service/internal/domain"
)

const maxLeaderboardLimit = 100

// LeaderboardHandler serves GET /leaderboard?window=&limit=.
type LeaderboardHandler struct {
	service *app.GameService
	logger  zerolog.Logger
}

func NewLeaderboardHandler(service *app.GameService, logger zerolog.Logger) *LeaderboardHandler {
	return &LeaderboardHandler{service: service, logger: logger}
}

type leaderboardResponse struct {
	Window  domain.ScoreWindow       `json:"window"`
	Entries []domain.PlayerAggregate `json:"entries"`
}

func (h *LeaderboardHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	window, err := domain.ParseWindow(r.URL.Query().Get("window"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit < 1 || limit > maxLeaderboardLimit {
			http.Error(w, "limit must be between 1 and 100", http.StatusBadRequest)
			return
		}
	}

	entries, err := h.service.Leaderboard(r.Context(), window, limit)
	switch {
	case errors.Is(err, domain.ErrUnknownWindow):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		h.logger.Error().Err(err).Str("window", string(window)).Msg("leaderboard failed")
		http.Error(w, "leaderboard unavailable", http.StatusServiceUnavailable)
		return
	}
	if entries == nil {
		entries = []domain.PlayerAggregate{}
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(leaderboardResponse{Window: window, Entries: entries}); err != nil {
		h.logger.Debug().Err(err).Msg("write leaderboard response")
	}
}

// NewRouter mounts the websocket, leaderboard, health and metrics endpoints.
func NewRouter(ws *WSHandler, leaderboard *LeaderboardHandler, gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("/ws", ws.ServeWS)
	mux.Handle("/leaderboard", leaderboard)
	if gatherer != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}
