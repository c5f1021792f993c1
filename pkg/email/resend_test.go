package email

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/resendlabs/resend-go"
	"github.com/shopspring/decimal"

	"github.com/sefazor/bnpl-checkout/internal/config"
	"github.com/sefazor/bnpl-checkout/internal/models"
)

type fakeSender struct {
	sent []*resend.SendEmailRequest
	err  error
}

func (f *fakeSender) Send(params *resend.SendEmailRequest) (resend.SendEmailResponse, error) {
	if f.err != nil {
		return resend.SendEmailResponse{}, f.err
	}
	f.sent = append(f.sent, params)
	return resend.SendEmailResponse{Id: "email-1"}, nil
}

func testReceipt() models.Receipt {
	return models.Receipt{
		AttemptID:        "a1",
		SessionID:        "s1",
		PaymentID:        "pay-1",
		ProductID:        "installments",
		OrderReferenceID: "order-1",
		Amount:           decimal.NewFromInt(100),
		Currency:         "AED",
		Outcome:          models.OutcomeSuccess,
		BuyerName:        "Test Buyer",
		BuyerEmail:       "buyer@example.com",
		CompletedAt:      time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestSendReceipt(t *testing.T) {
	fake := &fakeSender{}
	svc := newEmailService(fake, config.EmailConfig{From: "shop@example.com", FromName: "Shop"}, nil)

	if err := svc.SendReceipt(testReceipt()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(fake.sent) != 1 {
		t.Fatalf("expected one email, got %d", len(fake.sent))
	}

	msg := fake.sent[0]
	if msg.From != "Shop <shop@example.com>" || msg.To[0] != "buyer@example.com" {
		t.Fatalf("unexpected envelope: %+v", msg)
	}
	for _, want := range []string{"100.00 AED", "order-1", "pay-1", "Test Buyer"} {
		if !strings.Contains(msg.Html, want) {
			t.Fatalf("expected receipt to contain %q", want)
		}
	}
}

func TestSendReceiptErrors(t *testing.T) {
	svc := newEmailService(&fakeSender{err: errors.New("rate limited")}, config.EmailConfig{From: "shop@example.com"}, nil)
	if err := svc.SendReceipt(testReceipt()); err == nil {
		t.Fatalf("expected send error to propagate")
	}

	receipt := testReceipt()
	receipt.BuyerEmail = ""
	if err := svc.SendReceipt(receipt); err == nil {
		t.Fatalf("expected error without buyer email")
	}
}
