package metrics

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sefazor/bnpl-checkout/internal/controller"
	"github.com/sefazor/bnpl-checkout/internal/models"
)

type CheckoutMetrics struct {
	Transitions     *prometheus.CounterVec
	Outcomes        *prometheus.CounterVec
	SessionFailures *prometheus.CounterVec
	CreateLatency prometheus.Histogram

	mu      sync.Mutex
	started map[uint]pendingCreate
}

func NewCheckoutMetrics(reg prometheus.Registerer) *CheckoutMetrics {
	m := &CheckoutMetrics{
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bnpl",
			Subsystem: "checkout",
			Name:      "state_transitions_total",
			Help:      "Session state transitions by target state.",
		}, []string{"state"}),
		Outcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bnpl",
			Subsystem: "checkout",
			Name:      "results_total",
			Help:      "Checkout results by outcome.",
		}, []string{"outcome"}),
		SessionFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bnpl",
			Subsystem: "checkout",
			Name:      "session_failures_total",
			Help:      "Failed session creations by reason.",
		}, []string{"reason"}),
		CreateLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bnpl",
			Subsystem: "checkout",
			Name:      "session_create_duration_seconds",
			Help:      "Time from session request to created or failed.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		started: make(map[uint]pendingCreate),
	}

	reg.MustRegister(m.Transitions, m.Outcomes, m.SessionFailures, m.CreateLatency)
	return m
}

// pendingCreate is the buyer's latest session request. A newer request
// replaces it, so superseded attempts are never timed.
type pendingCreate struct {
	attemptID string
	at        time.Time
}

// Observe records one published snapshot.
func (m *CheckoutMetrics) Observe(_ context.Context, userID uint, snap controller.Snapshot) error {
	if snap.State == models.StateInitial {
		return nil
	}
	m.Transitions.WithLabelValues(snap.State.String()).Inc()

	switch snap.State {
	case models.StateCreatingSession:
		m.mu.Lock()
		m.started[userID] = pendingCreate{attemptID: snap.AttemptID, at: snap.UpdatedAt}
		m.mu.Unlock()
	case models.StateSessionCreated, models.StateSessionFailed:
		m.mu.Lock()
		start, ok := m.started[userID]
		if ok && start.attemptID == snap.AttemptID {
			delete(m.started, userID)
		}
		m.mu.Unlock()
		if ok && start.attemptID == snap.AttemptID {
			m.CreateLatency.Observe(snap.UpdatedAt.Sub(start.at).Seconds())
		}
		if serr, ok := snap.Err.(*models.SessionCreationError); ok {
			m.SessionFailures.WithLabelValues(string(serr.Reason)).Inc()
		}
	case models.StateCheckoutResult:
		if snap.Result != nil {
			m.Outcomes.WithLabelValues(string(snap.Result.Outcome)).Inc()
		}
	}
	return nil
}
