package controller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sefazor/bnpl-checkout/internal/models"
)

const DefaultSessionTimeout = 30 * time.Second

// SessionService creates the remote checkout session for a payment request.
type SessionService interface {
	CreateSession(ctx context.Context, req models.PaymentRequest) (*models.Session, error)
}

type RequestValidator interface {
	Struct(s interface{}) error
}

type Option func(*SessionController)

func WithClock(clock Clock) Option {
	return func(c *SessionController) { c.clock = clock }
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *SessionController) { c.logger = logger }
}

func WithValidator(v RequestValidator) Option {
	return func(c *SessionController) { c.validator = v }
}

// WithTimeout bounds each remote session call. Non-positive values keep the default.
func WithTimeout(timeout time.Duration) Option {
	return func(c *SessionController) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// SessionController drives one buyer's checkout: create a session, pick a
// product, hand off to the external checkout and record its result.
//
// Only one session creation is live at a time. Calling CreateSession while a
// call is in flight cancels that call and discards whatever it returns.
type SessionController struct {
	service   SessionService
	validator RequestValidator
	clock     Clock
	logger    *zap.Logger
	timeout   time.Duration
	newID     func() string

	mu      sync.Mutex
	current Snapshot
	cancel  context.CancelFunc
	subs    *broadcaster
}

func NewSessionController(service SessionService, opts ...Option) *SessionController {
	c := &SessionController{
		service: service,
		clock:   SystemClock,
		timeout: DefaultSessionTimeout,
		newID:   uuid.NewString,
		subs:    newBroadcaster(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	c.current = Snapshot{State: models.StateInitial, UpdatedAt: c.clock.Now()}
	return c
}

// CreateSession starts a new attempt for req. It returns once the state is
// CreatingSession; the outcome arrives through State and Subscribe. Remote
// failures never surface here.
func (c *SessionController) CreateSession(req *models.PaymentRequest) error {
	if req == nil {
		return fmt.Errorf("%w: request is nil", models.ErrInvalidRequest)
	}
	if c.validator != nil {
		if err := c.validator.Struct(req); err != nil {
			return fmt.Errorf("%w: %v", models.ErrInvalidRequest, err)
		}
	}

	stored := req.Clone()
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)

	c.mu.Lock()
	if c.cancel != nil {
		c.logger.Info("Superseding in-flight session creation",
			zap.String("attempt_id", c.current.AttemptID),
		)
		c.cancel()
	}
	c.cancel = cancel
	attemptID := c.newID()
	c.setLocked(Snapshot{
		State:     models.StateCreatingSession,
		AttemptID: attemptID,
		Request:   &stored,
	})
	c.mu.Unlock()

	c.logger.Info("Creating checkout session",
		zap.String("attempt_id", attemptID),
		zap.String("amount", stored.Amount.String()),
		zap.String("currency", stored.Currency),
	)

	go c.runCreate(ctx, cancel, attemptID, stored)
	return nil
}

func (c *SessionController) runCreate(ctx context.Context, cancel context.CancelFunc, attemptID string, req models.PaymentRequest) {
	defer cancel()

	session, err := c.service.CreateSession(ctx, req)
	if err == nil {
		err = checkSession(session)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current.AttemptID != attemptID {
		c.logger.Info("Dropping result of superseded session creation",
			zap.String("attempt_id", attemptID),
			zap.Error(err),
		)
		return
	}
	c.cancel = nil

	next := Snapshot{AttemptID: attemptID, Request: c.current.Request}
	if err != nil {
		serr := classify(ctx, err)
		next.State = models.StateSessionFailed
		next.Err = serr
		next.Error = serr.Error()
		c.logger.Warn("Checkout session creation failed",
			zap.String("attempt_id", attemptID),
			zap.String("reason", string(serr.Reason)),
			zap.Int("status_code", serr.StatusCode),
			zap.Error(serr),
		)
	} else {
		stored := *session
		stored.Products = append([]models.Product(nil), session.Products...)
		next.State = models.StateSessionCreated
		next.Session = &stored
		c.logger.Info("Checkout session created",
			zap.String("attempt_id", attemptID),
			zap.String("session_id", stored.ID),
			zap.Int("products", len(stored.Products)),
		)
	}
	c.setLocked(next)
}

// BuildCheckoutInvocation returns the descriptor used to launch the external
// checkout for product. The state does not change; the descriptor is kept on
// the current snapshot as the pending invocation.
func (c *SessionController) BuildCheckoutInvocation(product models.Product) (*models.CheckoutInvocation, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current.State != models.StateSessionCreated {
		return nil, &models.InvalidStateError{Op: "build checkout invocation", State: c.current.State}
	}

	var offered *models.Product
	for i := range c.current.Session.Products {
		if c.current.Session.Products[i].ID == product.ID {
			offered = &c.current.Session.Products[i]
			break
		}
	}
	if offered == nil {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownProduct, product.ID)
	}

	inv := &models.CheckoutInvocation{
		AttemptID:   c.current.AttemptID,
		SessionID:   c.current.Session.ID,
		PaymentID:   c.current.Session.PaymentID,
		ProductID:   offered.ID,
		ProductType: offered.Type,
		WebURL:      offered.WebURL,
	}
	c.current.Invocation = inv

	c.logger.Info("Checkout invocation built",
		zap.String("attempt_id", inv.AttemptID),
		zap.String("session_id", inv.SessionID),
		zap.String("product_id", inv.ProductID),
	)

	out := *inv
	return &out, nil
}

// OnCheckoutResult records the outcome of the external checkout. Delivering
// the same result twice is a no-op.
func (c *SessionController) OnCheckoutResult(result *models.CheckoutResult) error {
	if result == nil {
		c.logger.Warn("Checkout result is missing")
		return &models.MissingResultError{}
	}
	if result.Outcome == "" {
		c.logger.Warn("Checkout result has no outcome")
		return &models.MissingResultError{Reason: "outcome is empty"}
	}
	if !result.Outcome.Valid() {
		c.logger.Warn("Checkout result has an unknown outcome", zap.String("outcome", string(result.Outcome)))
		return &models.MissingResultError{Reason: fmt.Sprintf("unknown outcome %q", result.Outcome)}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.current.State {
	case models.StateSessionCreated:
		stored := *result
		next := c.current
		next.State = models.StateCheckoutResult
		next.Result = &stored
		c.setLocked(next)

		c.logger.Info("Checkout finished",
			zap.String("attempt_id", next.AttemptID),
			zap.String("outcome", string(stored.Outcome)),
			zap.String("payment_id", stored.PaymentID),
		)
		return nil
	case models.StateCheckoutResult:
		if c.current.Result != nil && *c.current.Result == *result {
			return nil
		}
	}
	return &models.InvalidStateError{Op: "checkout result", State: c.current.State}
}

func (c *SessionController) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *SessionController) Products() []models.Product {
	return c.State().Products()
}

func (c *SessionController) Subscribe() *Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subs.add(c.current)
}

// Close cancels any in-flight session creation and ends all subscriptions.
func (c *SessionController) Close() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()
	c.subs.closeAll()
}

func (c *SessionController) setLocked(next Snapshot) {
	next.UpdatedAt = c.clock.Now()
	c.current = next
	c.subs.publish(next)
}

func checkSession(session *models.Session) error {
	if session == nil {
		return &models.SessionCreationError{Reason: models.FailureMalformed, Detail: "empty session"}
	}
	if session.ID == "" {
		return &models.SessionCreationError{Reason: models.FailureMalformed, Detail: "session id is missing"}
	}
	return nil
}

func classify(ctx context.Context, err error) *models.SessionCreationError {
	var serr *models.SessionCreationError
	if errors.As(err, &serr) {
		return serr
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return &models.SessionCreationError{Reason: models.FailureTimeout, Err: err}
	}
	return &models.SessionCreationError{Reason: models.FailureTransport, Err: err}
}
