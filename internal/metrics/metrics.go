package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for rounds, submissions and adapters.
type Metrics struct {
	// Rounds that reached a terminal state, by outcome: "resolved", "timed_out"
	RoundsClosed *prometheus.CounterVec

	// Submissions by the match type of their verdict
	Submissions *prometheus.CounterVec

	// Seconds from round start to the winning answer
	WinningResponse prometheus.Histogram

	// Adapter failures by adapter: "questions", "players", "sink"
	AdapterFailures *prometheus.CounterVec

	// Live websocket connections
	Connections prometheus.Gauge
}

// New registers all metrics on reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		RoundsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trivia_rounds_closed_total",
			Help: "Total rounds closed by outcome",
		}, []string{"outcome"}),

		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trivia_submissions_total",
			Help: "Total recorded submissions by match type",
		}, []string{"match_type"}),

		WinningResponse: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "trivia_winning_response_seconds",
			Help:    "Seconds between round start and the winning answer",
			Buckets: []float64{1, 2.5, 5, 10, 20, 35, 60, 120},
		}),

		AdapterFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "trivia_adapter_failures_total",
			Help: "Total failures of external collaborators by adapter",
		}, []string{"adapter"}),

		Connections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "trivia_websocket_connections",
			Help: "Currently open websocket connections",
		}),
	}
}

// IncrementRoundClosed records a terminal round.
func (m *Metrics) IncrementRoundClosed(outcome string) {
	if m != nil {
		m.RoundsClosed.WithLabelValues(outcome).Inc()
	}
}

// IncrementSubmission records a classified submission.
func (m *Metrics) IncrementSubmission(matchType string) {
	if m != nil {
		m.Submissions.WithLabelValues(matchType).Inc()
	}
}

// ObserveWinningResponse records how fast a round was won.
func (m *Metrics) ObserveWinningResponse(d time.Duration) {
	if m != nil {
		m.WinningResponse.Observe(d.Seconds())
	}
}

// IncrementAdapterFailure records a failed call to an external collaborator.
func (m *Metrics) IncrementAdapterFailure(adapter string) {
	if m != nil {
		m.AdapterFailures.WithLabelValues(adapter).Inc()
	}
}

// ConnectionOpened increments the websocket gauge.
func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.Connections.Inc()
	}
}

// ConnectionClosed decrements the websocket gauge.
func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.Connections.Dec()
	}
}
