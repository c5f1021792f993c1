package payment

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/sefazor/bnpl-checkout/internal/config"
	"github.com/sefazor/bnpl-checkout/internal/models"
)

func newStripeTestService(t *testing.T, handler http.HandlerFunc) *StripeService {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	backend := stripe.GetBackendWithConfig(stripe.APIBackend, &stripe.BackendConfig{
		URL:               stripe.String(server.URL),
		MaxNetworkRetries: stripe.Int64(0),
		LeveledLogger:     &stripe.LeveledLogger{Level: stripe.LevelNull},
	})
	return newStripeService(config.StripeConfig{
		SecretKey:     "sk_test_123",
		WebhookSecret: "whsec_test",
		SuccessURL:    "http://localhost/success",
		CancelURL:     "http://localhost/cancel",
	}, backend, nil)
}

func TestStripeCreateSession(t *testing.T) {
	svc := newStripeTestService(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/checkout/sessions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("failed to parse form: %v", err)
		}
		if got := r.PostForm.Get("line_items[0][price_data][unit_amount]"); got != "10000" {
			t.Errorf("unexpected unit amount %q", got)
		}
		if got := r.PostForm.Get("line_items[0][price_data][currency]"); got != "aed" {
			t.Errorf("unexpected currency %q", got)
		}
		if got := r.PostForm.Get("client_reference_id"); got != "order-1" {
			t.Errorf("unexpected client reference %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","object":"checkout.session","url":"https://checkout.stripe.com/c/pay/cs_test_1","payment_intent":"pi_1"}`))
	})

	session, err := svc.CreateSession(context.Background(), testPaymentRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if session.ID != "cs_test_1" || session.PaymentID != "pi_1" {
		t.Fatalf("unexpected session: %+v", session)
	}
	if len(session.Products) != 1 || session.Products[0].Type != models.ProductCard {
		t.Fatalf("expected a single card product, got %+v", session.Products)
	}
	if session.Products[0].WebURL != "https://checkout.stripe.com/c/pay/cs_test_1" {
		t.Fatalf("unexpected web url %q", session.Products[0].WebURL)
	}
}

func TestStripeCreateSessionAPIError(t *testing.T) {
	svc := newStripeTestService(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"Invalid currency"}}`))
	})

	_, err := svc.CreateSession(context.Background(), testPaymentRequest())
	var serr *models.SessionCreationError
	if !errors.As(err, &serr) {
		t.Fatalf("expected SessionCreationError, got %v", err)
	}
	if serr.Reason != models.FailureStatus || serr.StatusCode != http.StatusBadRequest {
		t.Fatalf("unexpected failure: %+v", serr)
	}
}

func TestResultFromEvent(t *testing.T) {
	raw := `{"id":"cs_1","object":"checkout.session","payment_intent":"pi_1"}`

	cases := map[string]models.Outcome{
		"checkout.session.completed":            models.OutcomeSuccess,
		"checkout.session.expired":              models.OutcomeCancelled,
		"checkout.session.async_payment_failed": models.OutcomeFailed,
	}
	for eventType, want := range cases {
		event := decodeEvent(t, eventType, raw)

		sessionID, result, err := ResultFromEvent(event)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", eventType, err)
		}
		if sessionID != "cs_1" || result.Outcome != want || result.PaymentID != "pi_1" {
			t.Fatalf("%s: unexpected mapping: %s %+v", eventType, sessionID, result)
		}
	}

	_, _, err := ResultFromEvent(decodeEvent(t, "charge.refunded", raw))
	if !errors.Is(err, ErrIgnoredEvent) {
		t.Fatalf("expected ErrIgnoredEvent, got %v", err)
	}
}

func decodeEvent(t *testing.T, eventType, object string) stripe.Event {
	t.Helper()
	var event stripe.Event
	payload := fmt.Sprintf(`{"id":"evt_1","object":"event","type":%q,"data":{"object":%s}}`, eventType, object)
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		t.Fatalf("failed to decode event: %v", err)
	}
	return event
}

func TestParseWebhookVerifiesSignature(t *testing.T) {
	svc := newStripeService(config.StripeConfig{WebhookSecret: "whsec_test"}, nil, nil)
	payload := []byte(`{"id":"evt_1","object":"event","type":"checkout.session.completed","data":{"object":{"id":"cs_1","object":"checkout.session","payment_intent":"pi_1"}}}`)

	now := time.Now()
	signature := fmt.Sprintf("t=%d,v1=%s", now.Unix(), hex.EncodeToString(webhook.ComputeSignature(now, payload, "whsec_test")))

	sessionID, result, err := svc.ParseWebhook(payload, signature)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sessionID != "cs_1" || result.Outcome != models.OutcomeSuccess {
		t.Fatalf("unexpected result: %s %+v", sessionID, result)
	}

	if _, _, err := svc.ParseWebhook(payload, "t=1,v1=deadbeef"); err == nil {
		t.Fatalf("expected bad signature to be rejected")
	}
}

func TestMinorUnits(t *testing.T) {
	if got := MinorUnits(decimal.RequireFromString("100.50"), "AED"); got != 10050 {
		t.Fatalf("expected 10050, got %d", got)
	}
	if got := MinorUnits(decimal.RequireFromString("12.345"), "KWD"); got != 12345 {
		t.Fatalf("expected 12345, got %d", got)
	}
}
