package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/sefazor/bnpl-checkout/internal/config"
	"github.com/sefazor/bnpl-checkout/internal/models"
)

func testPaymentRequest() models.PaymentRequest {
	return models.PaymentRequest{
		Amount:           decimal.NewFromInt(100),
		Currency:         "AED",
		Description:      "Sneakers",
		Buyer:            models.Buyer{Name: "Test Buyer", Email: "buyer@example.com", Phone: "500000001"},
		OrderReferenceID: "order-1",
		Items: []models.OrderItem{
			{Title: "Sneakers", Quantity: 1, UnitPrice: decimal.NewFromInt(100), ReferenceID: "sku-1"},
		},
	}
}

func newTabbyTestClient(t *testing.T, handler http.HandlerFunc) *TabbyClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewTabbyClient(config.TabbyConfig{
		PublicKey:    "pk_test",
		BaseURL:      server.URL,
		MerchantCode: "demo",
		Lang:         "en",
	}, 2*time.Second, nil)
}

func TestTabbyCreateSessionSuccess(t *testing.T) {
	var got tabbyCheckoutPayload
	client := newTabbyTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v2/checkout" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer pk_test" {
			t.Errorf("unexpected authorization header %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("failed to decode payload: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "s1",
			"status": "created",
			"payment": {"id": "pay-1"},
			"configuration": {
				"available_products": {
					"pay_later": [{"web_url": "https://checkout.tabby.ai/s1/pay_later"}],
					"installments": [{"web_url": "https://checkout.tabby.ai/s1/installments"}]
				}
			}
		}`))
	})

	session, err := client.CreateSession(context.Background(), testPaymentRequest())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got.Payment.Amount != "100.00" || got.Payment.Currency != "AED" {
		t.Fatalf("unexpected payment payload: %+v", got.Payment)
	}
	if got.MerchantCode != "demo" || got.Payment.Order.ReferenceID != "order-1" {
		t.Fatalf("unexpected merchant fields: %+v", got)
	}
	if len(got.Payment.Order.Items) != 1 || got.Payment.Order.Items[0].UnitPrice != "100.00" {
		t.Fatalf("unexpected order items: %+v", got.Payment.Order.Items)
	}
	if got.MerchantURLs != nil {
		t.Fatalf("expected merchant urls to be omitted when unset")
	}

	if session.ID != "s1" || session.PaymentID != "pay-1" {
		t.Fatalf("unexpected session: %+v", session)
	}
	if len(session.Products) != 2 {
		t.Fatalf("expected 2 products, got %d", len(session.Products))
	}
	if session.Products[0].Type != models.ProductInstallments || session.Products[1].Type != models.ProductPayLater {
		t.Fatalf("expected installments before pay_later, got %+v", session.Products)
	}
	if !session.Products[0].Price.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("unexpected product price: %s", session.Products[0].Price)
	}
}

func TestTabbyCreateSessionFailures(t *testing.T) {
	cases := []struct {
		name   string
		status int
		body   string
		reason models.FailureReason
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":"boom"}`, reason: models.FailureStatus},
		{name: "client error", status: http.StatusUnauthorized, body: `{"error":"bad key"}`, reason: models.FailureStatus},
		{name: "malformed body", status: http.StatusOK, body: `{"id":`, reason: models.FailureMalformed},
		{name: "missing id", status: http.StatusOK, body: `{"status":"created"}`, reason: models.FailureMalformed},
		{name: "no products", status: http.StatusOK, body: `{"id":"s1","status":"created","configuration":{"available_products":{}}}`, reason: models.FailureMalformed},
		{name: "rejected", status: http.StatusOK, body: `{"id":"s1","status":"rejected","configuration":{"products":{"installments":{"rejection_reason":"order_amount_too_high"}}}}`, reason: models.FailureRejected},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTabbyTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			})

			session, err := client.CreateSession(context.Background(), testPaymentRequest())
			if session != nil {
				t.Fatalf("expected no session, got %+v", session)
			}
			var serr *models.SessionCreationError
			if !errors.As(err, &serr) {
				t.Fatalf("expected SessionCreationError, got %v", err)
			}
			if serr.Reason != tc.reason {
				t.Fatalf("expected reason %s, got %s", tc.reason, serr.Reason)
			}
			if tc.reason == models.FailureStatus && serr.StatusCode != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, serr.StatusCode)
			}
			if tc.reason == models.FailureRejected && serr.Detail != "order_amount_too_high" {
				t.Fatalf("expected rejection reason, got %q", serr.Detail)
			}
		})
	}
}

func TestTabbyCreateSessionHonorsContextDeadline(t *testing.T) {
	release := make(chan struct{})
	client := newTabbyTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-release
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.CreateSession(ctx, testPaymentRequest())
	if err == nil {
		t.Fatalf("expected an error when the deadline passes")
	}

	var serr *models.SessionCreationError
	if errors.As(err, &serr) {
		if serr.Reason != models.FailureTimeout && serr.Reason != models.FailureTransport {
			t.Fatalf("unexpected failure reason %s", serr.Reason)
		}
		return
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}

func TestTabbyCreateSessionUnreachable(t *testing.T) {
	client := NewTabbyClient(config.TabbyConfig{BaseURL: "http://127.0.0.1:1"}, time.Second, nil)

	_, err := client.CreateSession(context.Background(), testPaymentRequest())
	var serr *models.SessionCreationError
	if !errors.As(err, &serr) || serr.Reason != models.FailureTransport {
		t.Fatalf("expected transport failure, got %v", err)
	}
}
