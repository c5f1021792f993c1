package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Receipt summarizes a finished checkout for the buyer and the archive.
type Receipt struct {
	AttemptID        string          `json:"attempt_id"`
	UserID           uint            `json:"user_id"`
	SessionID        string          `json:"session_id"`
	PaymentID        string          `json:"payment_id,omitempty"`
	ProductID        string          `json:"product_id,omitempty"`
	OrderReferenceID string          `json:"order_reference_id"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	Outcome          Outcome         `json:"outcome"`
	Detail           string          `json:"detail,omitempty"`
	BuyerName        string          `json:"buyer_name,omitempty"`
	BuyerEmail       string          `json:"buyer_email"`
	CompletedAt      time.Time       `json:"completed_at"`
}
