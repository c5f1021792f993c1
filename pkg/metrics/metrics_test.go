package metrics

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/sefazor/bnpl-checkout/internal/controller"
	"github.com/sefazor/bnpl-checkout/internal/models"
)

func TestCheckoutMetricsObserve(t *testing.T) {
	m := NewCheckoutMetrics(prometheus.NewRegistry())
	ctx := context.Background()
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	snaps := []controller.Snapshot{
		{State: models.StateInitial},
		{State: models.StateCreatingSession, AttemptID: "a1", UpdatedAt: start},
		{
			State:     models.StateSessionFailed,
			AttemptID: "a1",
			UpdatedAt: start.Add(300 * time.Millisecond),
			Err:       &models.SessionCreationError{Reason: models.FailureStatus, StatusCode: 500},
		},
		{State: models.StateCreatingSession, AttemptID: "a2", UpdatedAt: start.Add(time.Second)},
		{State: models.StateSessionCreated, AttemptID: "a2", UpdatedAt: start.Add(2 * time.Second)},
		{State: models.StateCheckoutResult, AttemptID: "a2", Result: &models.CheckoutResult{Outcome: models.OutcomeSuccess}},
	}
	for _, snap := range snaps {
		if err := m.Observe(ctx, 1, snap); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if got := testutil.ToFloat64(m.Transitions.WithLabelValues("creating_session")); got != 2 {
		t.Fatalf("expected 2 creating transitions, got %v", got)
	}
	if got := testutil.ToFloat64(m.SessionFailures.WithLabelValues("status")); got != 1 {
		t.Fatalf("expected 1 status failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.Outcomes.WithLabelValues("success")); got != 1 {
		t.Fatalf("expected 1 success outcome, got %v", got)
	}
	if got := testutil.CollectAndCount(m.CreateLatency); got != 1 {
		t.Fatalf("expected latency histogram to be collected, got %d", got)
	}
	if len(m.started) != 0 {
		t.Fatalf("expected start times to be cleared, got %d", len(m.started))
	}
}

func TestCreateLatencyKeepsSubMillisecondPrecision(t *testing.T) {
	m := NewCheckoutMetrics(prometheus.NewRegistry())
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	_ = m.Observe(context.Background(), 1, controller.Snapshot{State: models.StateCreatingSession, AttemptID: "a1", UpdatedAt: start})
	_ = m.Observe(context.Background(), 1, controller.Snapshot{State: models.StateSessionCreated, AttemptID: "a1", UpdatedAt: start.Add(500 * time.Microsecond)})

	const want = `
# HELP bnpl_checkout_session_create_duration_seconds Time from session request to created or failed.
# TYPE bnpl_checkout_session_create_duration_seconds histogram
bnpl_checkout_session_create_duration_seconds_bucket{le="0.05"} 1
bnpl_checkout_session_create_duration_seconds_bucket{le="0.1"} 1
bnpl_checkout_session_create_duration_seconds_bucket{le="0.25"} 1
bnpl_checkout_session_create_duration_seconds_bucket{le="0.5"} 1
bnpl_checkout_session_create_duration_seconds_bucket{le="1"} 1
bnpl_checkout_session_create_duration_seconds_bucket{le="2.5"} 1
bnpl_checkout_session_create_duration_seconds_bucket{le="5"} 1
bnpl_checkout_session_create_duration_seconds_bucket{le="10"} 1
bnpl_checkout_session_create_duration_seconds_bucket{le="30"} 1
bnpl_checkout_session_create_duration_seconds_bucket{le="+Inf"} 1
bnpl_checkout_session_create_duration_seconds_sum 0.0005
bnpl_checkout_session_create_duration_seconds_count 1
`
	if err := testutil.CollectAndCompare(m.CreateLatency, strings.NewReader(want), "bnpl_checkout_session_create_duration_seconds"); err != nil {
		t.Fatalf("unexpected latency histogram: %v", err)
	}
}
