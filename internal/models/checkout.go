package models

import (
	"github.com/shopspring/decimal"
)

type SessionState string

const (
	StateInitial         SessionState = "initial"
	StateCreatingSession SessionState = "creating_session"
	StateSessionCreated  SessionState = "session_created"
	StateSessionFailed   SessionState = "session_failed"
	StateCheckoutResult  SessionState = "checkout_result"
)

func (s SessionState) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is expected for the current attempt.
func (s SessionState) IsTerminal() bool {
	return s == StateInitial || s == StateCheckoutResult
}

type Buyer struct {
	Name  string `json:"name"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone"`
}

type OrderItem struct {
	Title       string          `json:"title" validate:"required"`
	Quantity    int             `json:"quantity" validate:"gte=1"`
	UnitPrice   decimal.Decimal `json:"unit_price" validate:"gt=0"`
	ReferenceID string          `json:"reference_id"`
}

// PaymentRequest describes the purchase the host wants to pay for.
type PaymentRequest struct {
	Amount           decimal.Decimal `json:"amount" validate:"gt=0"`
	Currency         string          `json:"currency" validate:"required,supported_currency"`
	Description      string          `json:"description"`
	Buyer            Buyer           `json:"buyer"`
	OrderReferenceID string          `json:"order_reference_id"`
	Items            []OrderItem     `json:"items,omitempty" validate:"dive"`
}

// Clone returns a copy that shares no slices with r.
func (r PaymentRequest) Clone() PaymentRequest {
	out := r
	if r.Items != nil {
		out.Items = append([]OrderItem(nil), r.Items...)
	}
	return out
}

// CurrencyDecimals is the number of minor-unit digits of currency.
func CurrencyDecimals(currency string) int32 {
	switch currency {
	case "KWD", "BHD":
		return 3
	}
	return 2
}

// FitsCurrency reports whether amount has no more decimal places than currency allows.
func FitsCurrency(amount decimal.Decimal, currency string) bool {
	return amount.Equal(amount.Truncate(CurrencyDecimals(currency)))
}

type ProductType string

const (
	ProductInstallments   ProductType = "installments"
	ProductPayLater       ProductType = "pay_later"
	ProductMonthlyBilling ProductType = "monthly_billing"
	ProductCard           ProductType = "card"
)

type Product struct {
	ID          string          `json:"id"`
	Type        ProductType     `json:"type"`
	Price       decimal.Decimal `json:"price"`
	Description string          `json:"description"`
	WebURL      string          `json:"web_url"`
}

// Session is what the remote service hands back for a created checkout session.
type Session struct {
	ID        string    `json:"id"`
	PaymentID string    `json:"payment_id"`
	Products  []Product `json:"products"`
}

// CheckoutInvocation carries everything the external checkout needs to resume
// a specific session/product pair.
type CheckoutInvocation struct {
	AttemptID   string      `json:"attempt_id"`
	SessionID   string      `json:"session_id"`
	PaymentID   string      `json:"payment_id"`
	ProductID   string      `json:"product_id"`
	ProductType ProductType `json:"product_type"`
	WebURL      string      `json:"web_url"`
}

type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeFailed    Outcome = "failed"
)

func (o Outcome) Valid() bool {
	switch o {
	case OutcomeSuccess, OutcomeCancelled, OutcomeFailed:
		return true
	}
	return false
}

type CheckoutResult struct {
	Outcome   Outcome `json:"outcome"`
	PaymentID string  `json:"payment_id,omitempty"`
	Detail    string  `json:"detail,omitempty"`
}

// CheckoutResultRequest is the body the external checkout posts back to the host.
type CheckoutResultRequest struct {
	Status    string `json:"status"`
	PaymentID string `json:"payment_id"`
	Detail    string `json:"detail"`
}

// OutcomeFromStatus maps provider checkout statuses onto an Outcome.
func OutcomeFromStatus(status string) (Outcome, bool) {
	switch status {
	case "authorized", "success", "completed":
		return OutcomeSuccess, true
	case "close", "closed", "cancelled", "canceled":
		return OutcomeCancelled, true
	case "rejected", "expired", "failed":
		return OutcomeFailed, true
	}
	return "", false
}
