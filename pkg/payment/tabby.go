package payment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/sefazor/bnpl-checkout/internal/config"
	"github.com/sefazor/bnpl-checkout/internal/models"
)

const tabbyCheckoutPath = "/api/v2/checkout"

// Product types in the order they are offered to the buyer.
var tabbyProductOrder = []models.ProductType{
	models.ProductInstallments,
	models.ProductPayLater,
	models.ProductMonthlyBilling,
}

var tabbyProductDescriptions = map[models.ProductType]string{
	models.ProductInstallments:   "Split in 4 interest-free payments",
	models.ProductPayLater:       "Pay in 30 days",
	models.ProductMonthlyBilling: "Pay monthly",
}

// TabbyClient creates checkout sessions against the Tabby checkout API.
type TabbyClient struct {
	cfg     config.TabbyConfig
	timeout time.Duration
	logger  *zap.Logger
}

func NewTabbyClient(cfg config.TabbyConfig, timeout time.Duration, logger *zap.Logger) *TabbyClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TabbyClient{
		cfg:     cfg,
		timeout: timeout,
		logger:  logger,
	}
}

type tabbyBuyer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type tabbyOrderItem struct {
	Title       string `json:"title"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
	ReferenceID string `json:"reference_id,omitempty"`
}

type tabbyOrder struct {
	ReferenceID string           `json:"reference_id"`
	Items       []tabbyOrderItem `json:"items,omitempty"`
}

type tabbyPayment struct {
	Amount      string     `json:"amount"`
	Currency    string     `json:"currency"`
	Description string     `json:"description,omitempty"`
	Buyer       tabbyBuyer `json:"buyer"`
	Order       tabbyOrder `json:"order"`
}

type tabbyMerchantURLs struct {
	Success string `json:"success,omitempty"`
	Cancel  string `json:"cancel,omitempty"`
	Failure string `json:"failure,omitempty"`
}

type tabbyCheckoutPayload struct {
	Payment      tabbyPayment       `json:"payment"`
	Lang         string             `json:"lang"`
	MerchantCode string             `json:"merchant_code"`
	MerchantURLs *tabbyMerchantURLs `json:"merchant_urls,omitempty"`
}

type tabbyWebProduct struct {
	WebURL string `json:"web_url"`
}

type tabbyCheckoutResponse struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Payment struct {
		ID string `json:"id"`
	} `json:"payment"`
	Configuration struct {
		AvailableProducts map[string][]tabbyWebProduct `json:"available_products"`
		Products          map[string]struct {
			RejectionReason *string `json:"rejection_reason"`
		} `json:"products"`
	} `json:"configuration"`
}

type agentResult struct {
	code int
	body []byte
	errs []error
}

func (c *TabbyClient) CreateSession(ctx context.Context, req models.PaymentRequest) (*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); timeout <= 0 || remaining < timeout {
			timeout = remaining
		}
	}

	agent := fiber.Post(c.cfg.BaseURL + tabbyCheckoutPath)
	agent.Set(fiber.HeaderAuthorization, "Bearer "+c.cfg.PublicKey)
	agent.JSON(c.payload(req))
	if timeout > 0 {
		agent.Timeout(timeout)
	}
	if err := agent.Parse(); err != nil {
		return nil, &models.SessionCreationError{Reason: models.FailureTransport, Err: err}
	}

	done := make(chan agentResult, 1)
	go func() {
		code, body, errs := agent.Bytes()
		done <- agentResult{code: code, body: body, errs: errs}
	}()

	var res agentResult
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res = <-done:
	}

	if len(res.errs) > 0 {
		err := errors.Join(res.errs...)
		reason := models.FailureTransport
		if errors.Is(err, fasthttp.ErrTimeout) {
			reason = models.FailureTimeout
		}
		c.logger.Warn("Tabby checkout request failed", zap.Error(err))
		return nil, &models.SessionCreationError{Reason: reason, Err: err}
	}

	if res.code < 200 || res.code >= 300 {
		c.logger.Warn("Tabby checkout returned non-success status",
			zap.Int("status_code", res.code),
			zap.ByteString("body", truncate(res.body, 512)),
		)
		return nil, &models.SessionCreationError{
			Reason:     models.FailureStatus,
			StatusCode: res.code,
			Detail:     string(truncate(res.body, 256)),
		}
	}

	return c.parseSession(req, res.body)
}

func (c *TabbyClient) payload(req models.PaymentRequest) tabbyCheckoutPayload {
	digits := models.CurrencyDecimals(req.Currency)
	p := tabbyCheckoutPayload{
		Lang:         c.cfg.Lang,
		MerchantCode: c.cfg.MerchantCode,
		Payment: tabbyPayment{
			Amount:      req.Amount.StringFixed(digits),
			Currency:    req.Currency,
			Description: req.Description,
			Buyer: tabbyBuyer{
				Name:  req.Buyer.Name,
				Email: req.Buyer.Email,
				Phone: req.Buyer.Phone,
			},
			Order: tabbyOrder{ReferenceID: req.OrderReferenceID},
		},
	}
	for _, item := range req.Items {
		p.Payment.Order.Items = append(p.Payment.Order.Items, tabbyOrderItem{
			Title:       item.Title,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice.StringFixed(digits),
			ReferenceID: item.ReferenceID,
		})
	}
	if c.cfg.SuccessURL != "" || c.cfg.CancelURL != "" || c.cfg.FailureURL != "" {
		p.MerchantURLs = &tabbyMerchantURLs{
			Success: c.cfg.SuccessURL,
			Cancel:  c.cfg.CancelURL,
			Failure: c.cfg.FailureURL,
		}
	}
	return p
}

func (c *TabbyClient) parseSession(req models.PaymentRequest, body []byte) (*models.Session, error) {
	var resp tabbyCheckoutResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &models.SessionCreationError{Reason: models.FailureMalformed, Err: fmt.Errorf("decode checkout response: %w", err)}
	}

	if resp.Status == "rejected" {
		return nil, &models.SessionCreationError{Reason: models.FailureRejected, Detail: rejectionReason(resp)}
	}
	if resp.ID == "" {
		return nil, &models.SessionCreationError{Reason: models.FailureMalformed, Detail: "session id is missing"}
	}

	session := &models.Session{ID: resp.ID, PaymentID: resp.Payment.ID}
	for _, productType := range tabbyProductOrder {
		offers := resp.Configuration.AvailableProducts[string(productType)]
		if len(offers) == 0 || offers[0].WebURL == "" {
			continue
		}
		session.Products = append(session.Products, models.Product{
			ID:          string(productType),
			Type:        productType,
			Price:       req.Amount,
			Description: tabbyProductDescriptions[productType],
			WebURL:      offers[0].WebURL,
		})
	}
	if len(session.Products) == 0 {
		return nil, &models.SessionCreationError{Reason: models.FailureMalformed, Detail: "no available products"}
	}

	return session, nil
}

func rejectionReason(resp tabbyCheckoutResponse) string {
	for _, productType := range tabbyProductOrder {
		if p, ok := resp.Configuration.Products[string(productType)]; ok && p.RejectionReason != nil {
			return *p.RejectionReason
		}
	}
	return "not_available"
}

func truncate(b []byte, n int) []byte {
	if len(b) <= n {
		return b
	}
	return b[:n]
}
