package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/sefazor/bnpl-checkout/internal/models"
	"github.com/sefazor/bnpl-checkout/internal/service"
	"github.com/sefazor/bnpl-checkout/pkg/payment"
)

// WebhookParser verifies a provider webhook and extracts the session it refers to.
type WebhookParser interface {
	ParseWebhook(payload []byte, signature string) (string, *models.CheckoutResult, error)
}

type PaymentHandler struct {
	checkoutService *service.CheckoutService
	webhooks        WebhookParser
	logger          *zap.Logger
}

func NewPaymentHandler(checkoutService *service.CheckoutService, webhooks WebhookParser, logger *zap.Logger) *PaymentHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PaymentHandler{
		checkoutService: checkoutService,
		webhooks:        webhooks,
		logger:          logger,
	}
}

func (h *PaymentHandler) HandleStripeWebhook(c *fiber.Ctx) error {
	sessionID, result, err := h.webhooks.ParseWebhook(c.Body(), c.Get("Stripe-Signature"))
	if err != nil {
		if errors.Is(err, payment.ErrIgnoredEvent) {
			return c.JSON(models.SuccessResponse(nil, "Event ignored"))
		}
		h.logger.Warn("Rejected webhook", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse("Invalid webhook"))
	}

	logger := h.logger.With(
		zap.String("session_id", sessionID),
		zap.String("outcome", string(result.Outcome)),
	)

	if err := h.checkoutService.CompleteBySession(sessionID, result); err != nil {
		var stateErr *models.InvalidStateError
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			// The buyer started another checkout or the host restarted.
			logger.Info("Webhook for unknown checkout session")
			return c.JSON(models.SuccessResponse(nil, "Session not tracked"))
		case errors.As(err, &stateErr):
			// Stripe retries non-2xx answers; the recorded result stands.
			logger.Warn("Webhook result does not fit checkout state", zap.Error(err))
			return c.JSON(models.SuccessResponse(nil, "Result already recorded"))
		}
		logger.Error("Failed to record webhook result", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse(err.Error()))
	}

	logger.Info("Checkout result recorded from webhook")
	return c.JSON(models.SuccessResponse(nil, "Webhook processed"))
}
