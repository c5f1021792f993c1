package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CheckoutAttempt is one CreateSession call and everything that followed it.
type CheckoutAttempt struct {
	ID            uint            `json:"id" gorm:"primaryKey"`
	AttemptID     string          `json:"attempt_id" gorm:"uniqueIndex;not null"`
	UserID        uint            `json:"user_id" gorm:"index;not null"`
	SessionID     string          `json:"session_id" gorm:"index"`
	PaymentID     string          `json:"payment_id"`
	Amount        decimal.Decimal `json:"amount" gorm:"type:numeric(12,2);not null"`
	Currency      string          `json:"currency" gorm:"size:3;not null"`
	ProductID     string          `json:"product_id"`
	State         SessionState    `json:"state" gorm:"not null"`
	Outcome       Outcome         `json:"outcome,omitempty"`
	FailureDetail string          `json:"failure_detail,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}
