package controller

import (
	"time"

	"github.com/sefazor/bnpl-checkout/internal/models"
)

// Snapshot is one observable value of the session state machine. Pointer
// fields reference data that is never mutated after publication.
type Snapshot struct {
	State      models.SessionState        `json:"state"`
	AttemptID  string                     `json:"attempt_id,omitempty"`
	Request    *models.PaymentRequest     `json:"request,omitempty"`
	Session    *models.Session            `json:"session,omitempty"`
	Invocation *models.CheckoutInvocation `json:"invocation,omitempty"`
	Result     *models.CheckoutResult     `json:"result,omitempty"`
	Err        error                      `json:"-"`
	Error      string                     `json:"error,omitempty"`
	UpdatedAt  time.Time                  `json:"updated_at"`
}

// Products returns the products offered by the session, if one exists.
func (s Snapshot) Products() []models.Product {
	if s.Session == nil {
		return nil
	}
	return append([]models.Product(nil), s.Session.Products...)
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

// SystemClock is the wall clock in UTC.
var SystemClock Clock = systemClock{}
