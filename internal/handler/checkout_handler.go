package handler

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/sefazor/bnpl-checkout/internal/models"
	"github.com/sefazor/bnpl-checkout/internal/service"
	"github.com/sefazor/bnpl-checkout/pkg/qrcode"
)

const streamKeepAlive = 15 * time.Second

type CheckoutHandler struct {
	checkoutService *service.CheckoutService
	qrService       *qrcode.QRService
	logger          *zap.Logger
}

func NewCheckoutHandler(checkoutService *service.CheckoutService, qrService *qrcode.QRService, logger *zap.Logger) *CheckoutHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckoutHandler{
		checkoutService: checkoutService,
		qrService:       qrService,
		logger:          logger,
	}
}

// CreateSession starts a checkout for the buyer, or retries after a failure.
func (h *CheckoutHandler) CreateSession(c *fiber.Ctx) error {
	userID, email, ok := currentBuyer(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse("User not authenticated"))
	}

	var req models.PaymentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse("Invalid request body"))
	}

	snap, err := h.checkoutService.StartCheckout(userID, email, req)
	if err != nil {
		return writeCheckoutError(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(models.SuccessResponse(snap, "Checkout session is being created"))
}

func (h *CheckoutHandler) GetState(c *fiber.Ctx) error {
	userID, _, ok := currentBuyer(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse("User not authenticated"))
	}

	return c.JSON(models.SuccessResponse(h.checkoutService.State(userID), "Checkout state retrieved successfully"))
}

func (h *CheckoutHandler) GetProducts(c *fiber.Ctx) error {
	userID, _, ok := currentBuyer(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse("User not authenticated"))
	}

	products := h.checkoutService.Products(userID)
	if products == nil {
		products = []models.Product{}
	}
	return c.JSON(models.SuccessResponse(products, "Products retrieved successfully"))
}

// BuildInvocation returns the descriptor the client uses to open the external checkout.
func (h *CheckoutHandler) BuildInvocation(c *fiber.Ctx) error {
	userID, _, ok := currentBuyer(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse("User not authenticated"))
	}

	inv, err := h.checkoutService.SelectProduct(userID, c.Params("productId"))
	if err != nil {
		return writeCheckoutError(c, err)
	}

	return c.JSON(models.SuccessResponse(inv, "Checkout invocation created"))
}

// GetProductQRCode renders the product's checkout URL as a PNG so the buyer
// can continue on a phone.
func (h *CheckoutHandler) GetProductQRCode(c *fiber.Ctx) error {
	userID, _, ok := currentBuyer(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse("User not authenticated"))
	}

	inv, err := h.checkoutService.SelectProduct(userID, c.Params("productId"))
	if err != nil {
		return writeCheckoutError(c, err)
	}

	png, err := h.qrService.GenerateQRCode(inv.WebURL, c.QueryInt("size", qrcode.DefaultSize))
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse(err.Error()))
	}

	c.Set(fiber.HeaderContentType, "image/png")
	return c.Send(png)
}

// SubmitResult records the outcome the external checkout redirected back with.
func (h *CheckoutHandler) SubmitResult(c *fiber.Ctx) error {
	userID, _, ok := currentBuyer(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse("User not authenticated"))
	}

	var req models.CheckoutResultRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse("Invalid request body"))
		}
	}

	var result *models.CheckoutResult
	if req.Status != "" {
		outcome, known := models.OutcomeFromStatus(req.Status)
		if !known {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(models.NoticeResponse(
				fmt.Sprintf("Checkout returned an unknown status %q", req.Status)))
		}
		result = &models.CheckoutResult{
			Outcome:   outcome,
			PaymentID: req.PaymentID,
			Detail:    req.Detail,
		}
	}

	if err := h.checkoutService.CompleteCheckout(userID, result); err != nil {
		return writeCheckoutError(c, err)
	}

	return c.JSON(models.SuccessResponse(h.checkoutService.State(userID), "Checkout result recorded"))
}

func (h *CheckoutHandler) GetHistory(c *fiber.Ctx) error {
	userID, _, ok := currentBuyer(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse("User not authenticated"))
	}

	attempts, err := h.checkoutService.History(c.UserContext(), userID)
	if err != nil {
		if errors.Is(err, service.ErrHistoryDisabled) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(models.ErrorResponse(err.Error()))
		}
		return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse("Failed to load checkout history"))
	}

	return c.JSON(models.SuccessResponse(attempts, "Checkout history retrieved successfully"))
}

// StreamState pushes every state snapshot as a server-sent event. With
// ?until=<state> the stream ends after that state has been sent.
func (h *CheckoutHandler) StreamState(c *fiber.Ctx) error {
	userID, _, ok := currentBuyer(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(models.ErrorResponse("User not authenticated"))
	}
	until := models.SessionState(c.Query("until"))

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	sub := h.checkoutService.Subscribe(userID)
	logger := h.logger.With(zap.Uint("user_id", userID))

	c.Context().SetBodyStreamWriter(fasthttp.StreamWriter(func(w *bufio.Writer) {
		defer sub.Close()

		ticker := time.NewTicker(streamKeepAlive)
		defer ticker.Stop()

		for {
			select {
			case snap, open := <-sub.C:
				if !open {
					return
				}
				body, err := json.Marshal(snap)
				if err != nil {
					logger.Error("Failed to encode checkout state", zap.Error(err))
					return
				}
				fmt.Fprintf(w, "event: state\ndata: %s\n\n", body)
				if err := w.Flush(); err != nil {
					logger.Debug("Checkout stream closed by client", zap.Error(err))
					return
				}
				if until != "" && snap.State == until {
					return
				}
			case <-ticker.C:
				fmt.Fprint(w, ": keep-alive\n\n")
				if err := w.Flush(); err != nil {
					return
				}
			}
		}
	}))

	return nil
}

func currentBuyer(c *fiber.Ctx) (uint, string, bool) {
	userID, ok := c.Locals("userID").(uint)
	if !ok {
		return 0, "", false
	}
	email, _ := c.Locals("userEmail").(string)
	return userID, email, true
}

func writeCheckoutError(c *fiber.Ctx, err error) error {
	var stateErr *models.InvalidStateError
	var missing *models.MissingResultError

	switch {
	case errors.Is(err, models.ErrInvalidRequest):
		return c.Status(fiber.StatusBadRequest).JSON(models.ErrorResponse(err.Error()))
	case errors.Is(err, models.ErrUnknownProduct):
		return c.Status(fiber.StatusNotFound).JSON(models.ErrorResponse(err.Error()))
	case errors.As(err, &stateErr):
		return c.Status(fiber.StatusConflict).JSON(models.ErrorResponse(err.Error()))
	case errors.As(err, &missing):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(models.NoticeResponse(
			"We did not receive a result from the checkout. Please try again."))
	}
	return c.Status(fiber.StatusInternalServerError).JSON(models.ErrorResponse(err.Error()))
}
