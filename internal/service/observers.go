package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/sefazor/bnpl-checkout/internal/controller"
	"github.com/sefazor/bnpl-checkout/internal/models"
	"github.com/sefazor/bnpl-checkout/pkg/storage"
)

type AttemptStore interface {
	Create(ctx context.Context, attempt *models.CheckoutAttempt) error
	GetByAttemptID(ctx context.Context, attemptID string) (*models.CheckoutAttempt, error)
	Update(ctx context.Context, attempt *models.CheckoutAttempt) error
}

// AttemptRecorder keeps one ledger row per attempt, updated on every transition.
type AttemptRecorder struct {
	store AttemptStore
}

func NewAttemptRecorder(store AttemptStore) *AttemptRecorder {
	return &AttemptRecorder{store: store}
}

func (r *AttemptRecorder) Observe(ctx context.Context, userID uint, snap controller.Snapshot) error {
	if snap.State == models.StateInitial || snap.AttemptID == "" {
		return nil
	}

	if snap.State == models.StateCreatingSession {
		attempt := &models.CheckoutAttempt{
			AttemptID: snap.AttemptID,
			UserID:    userID,
			State:     snap.State,
		}
		if snap.Request != nil {
			attempt.Amount = snap.Request.Amount
			attempt.Currency = snap.Request.Currency
		}
		return r.store.Create(ctx, attempt)
	}

	attempt, err := r.store.GetByAttemptID(ctx, snap.AttemptID)
	if err != nil {
		return fmt.Errorf("load attempt %s: %w", snap.AttemptID, err)
	}

	attempt.State = snap.State
	attempt.FailureDetail = snap.Error
	if snap.Session != nil {
		attempt.SessionID = snap.Session.ID
		attempt.PaymentID = snap.Session.PaymentID
	}
	if snap.Invocation != nil {
		attempt.ProductID = snap.Invocation.ProductID
	}
	if snap.Result != nil {
		attempt.Outcome = snap.Result.Outcome
		if snap.Result.PaymentID != "" {
			attempt.PaymentID = snap.Result.PaymentID
		}
		if snap.Result.Detail != "" {
			attempt.FailureDetail = snap.Result.Detail
		}
	}
	return r.store.Update(ctx, attempt)
}

type ReceiptSender interface {
	SendReceipt(receipt models.Receipt) error
}

// ReceiptNotifier mails the buyer after a successful checkout.
type ReceiptNotifier struct {
	sender ReceiptSender
}

func NewReceiptNotifier(sender ReceiptSender) *ReceiptNotifier {
	return &ReceiptNotifier{sender: sender}
}

func (n *ReceiptNotifier) Observe(_ context.Context, userID uint, snap controller.Snapshot) error {
	if snap.State != models.StateCheckoutResult || snap.Result == nil || snap.Result.Outcome != models.OutcomeSuccess {
		return nil
	}
	return n.sender.SendReceipt(receiptFrom(userID, snap))
}

// ReceiptArchive stores a JSON receipt for every finished checkout.
type ReceiptArchive struct {
	store  storage.StorageService
	prefix string
}

func NewReceiptArchive(store storage.StorageService) *ReceiptArchive {
	return &ReceiptArchive{store: store, prefix: "receipts"}
}

func (a *ReceiptArchive) Observe(ctx context.Context, userID uint, snap controller.Snapshot) error {
	if snap.State != models.StateCheckoutResult || snap.Result == nil {
		return nil
	}

	receipt := receiptFrom(userID, snap)
	body, err := json.Marshal(receipt)
	if err != nil {
		return err
	}
	return a.store.Upload(ctx, a.key(receipt), bytes.NewReader(body), "application/json")
}

func (a *ReceiptArchive) key(r models.Receipt) string {
	return fmt.Sprintf("%s/%s/%d/%s.json", a.prefix, r.CompletedAt.Format("2006/01"), r.UserID, r.AttemptID)
}

func receiptFrom(userID uint, snap controller.Snapshot) models.Receipt {
	r := models.Receipt{
		AttemptID:   snap.AttemptID,
		UserID:      userID,
		CompletedAt: snap.UpdatedAt,
	}
	if snap.Request != nil {
		r.OrderReferenceID = snap.Request.OrderReferenceID
		r.Amount = snap.Request.Amount
		r.Currency = snap.Request.Currency
		r.BuyerName = snap.Request.Buyer.Name
		r.BuyerEmail = snap.Request.Buyer.Email
	}
	if snap.Session != nil {
		r.SessionID = snap.Session.ID
		r.PaymentID = snap.Session.PaymentID
	}
	if snap.Invocation != nil {
		r.ProductID = snap.Invocation.ProductID
	}
	if snap.Result != nil {
		r.Outcome = snap.Result.Outcome
		r.Detail = snap.Result.Detail
		if snap.Result.PaymentID != "" {
			r.PaymentID = snap.Result.PaymentID
		}
	}
	return r
}
