package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/checkout/session"
	"github.com/stripe/stripe-go/v74/webhook"
	"go.uber.org/zap"

	"github.com/sefazor/bnpl-checkout/internal/config"
	"github.com/sefazor/bnpl-checkout/internal/models"
)

// ErrIgnoredEvent is returned for webhook events that carry no checkout result.
var ErrIgnoredEvent = errors.New("stripe event ignored")

type StripeService struct {
	sessions      session.Client
	successURL    string
	cancelURL     string
	webhookSecret string
	logger        *zap.Logger
}

func NewStripeService(cfg config.StripeConfig, logger *zap.Logger) *StripeService {
	stripe.Key = cfg.SecretKey
	return newStripeService(cfg, stripe.GetBackend(stripe.APIBackend), logger)
}

func newStripeService(cfg config.StripeConfig, backend stripe.Backend, logger *zap.Logger) *StripeService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StripeService{
		sessions:      session.Client{B: backend, Key: cfg.SecretKey},
		successURL:    cfg.SuccessURL,
		cancelURL:     cfg.CancelURL,
		webhookSecret: cfg.WebhookSecret,
		logger:        logger,
	}
}

// CreateSession opens a hosted Stripe Checkout session. Card is the only
// product on offer; its web URL is the hosted checkout page.
func (s *StripeService) CreateSession(ctx context.Context, req models.PaymentRequest) (*models.Session, error) {
	name := req.Description
	if name == "" {
		name = "Order " + req.OrderReferenceID
	}

	params := &stripe.CheckoutSessionParams{
		CustomerEmail: stripe.String(req.Buyer.Email),
		PaymentMethodTypes: stripe.StringSlice([]string{
			"card",
		}),
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(req.OrderReferenceID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(strings.ToLower(req.Currency)),
					UnitAmount: stripe.Int64(MinorUnits(req.Amount, req.Currency)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(name),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(s.successURL),
		CancelURL:  stripe.String(s.cancelURL),
	}
	params.Context = ctx
	params.AddMetadata("order_reference_id", req.OrderReferenceID)

	sess, err := s.sessions.New(params)
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) {
			return nil, &models.SessionCreationError{
				Reason:     models.FailureStatus,
				StatusCode: stripeErr.HTTPStatusCode,
				Detail:     stripeErr.Msg,
				Err:        err,
			}
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, &models.SessionCreationError{Reason: models.FailureTransport, Err: err}
	}

	if sess.ID == "" || sess.URL == "" {
		return nil, &models.SessionCreationError{Reason: models.FailureMalformed, Detail: "checkout session has no id or url"}
	}

	result := &models.Session{
		ID: sess.ID,
		Products: []models.Product{
			{
				ID:          string(models.ProductCard),
				Type:        models.ProductCard,
				Price:       req.Amount,
				Description: "Pay by card",
				WebURL:      sess.URL,
			},
		},
	}
	if sess.PaymentIntent != nil {
		result.PaymentID = sess.PaymentIntent.ID
	}

	s.logger.Info("Stripe checkout session created", zap.String("session_id", sess.ID))
	return result, nil
}

// ParseWebhook verifies the signature and turns the event into a checkout result.
func (s *StripeService) ParseWebhook(payload []byte, signature string) (string, *models.CheckoutResult, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.webhookSecret,
		webhook.ConstructEventOptions{
			IgnoreAPIVersionMismatch: true,
		})
	if err != nil {
		return "", nil, fmt.Errorf("verify webhook: %w", err)
	}
	return ResultFromEvent(event)
}

// ResultFromEvent maps checkout session events onto the session id they refer
// to and the outcome they report.
func ResultFromEvent(event stripe.Event) (string, *models.CheckoutResult, error) {
	var outcome models.Outcome
	switch event.Type {
	case "checkout.session.completed", "checkout.session.async_payment_succeeded":
		outcome = models.OutcomeSuccess
	case "checkout.session.expired":
		outcome = models.OutcomeCancelled
	case "checkout.session.async_payment_failed":
		outcome = models.OutcomeFailed
	default:
		return "", nil, fmt.Errorf("%w: %s", ErrIgnoredEvent, event.Type)
	}

	if event.Data == nil {
		return "", nil, fmt.Errorf("event %s has no data", event.ID)
	}

	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		return "", nil, fmt.Errorf("decode checkout session: %w", err)
	}
	if sess.ID == "" {
		return "", nil, fmt.Errorf("event %s has no session id", event.ID)
	}

	result := &models.CheckoutResult{Outcome: outcome}
	if sess.PaymentIntent != nil {
		result.PaymentID = sess.PaymentIntent.ID
	}
	if outcome != models.OutcomeSuccess {
		result.Detail = string(event.Type)
	}
	return sess.ID, result, nil
}

// MinorUnits converts amount to the integer unit Stripe expects for currency.
func MinorUnits(amount decimal.Decimal, currency string) int64 {
	return amount.Shift(models.CurrencyDecimals(strings.ToUpper(currency))).Round(0).IntPart()
}
