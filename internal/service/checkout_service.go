package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sefazor/bnpl-checkout/internal/controller"
	"github.com/sefazor/bnpl-checkout/internal/models"
)

const (
	observeTimeout = 10 * time.Second
	sweepInterval  = time.Minute

	// DefaultIdleTTL is how long a settled checkout stays in memory.
	DefaultIdleTTL = 30 * time.Minute
	// abandonedTTL bounds a created session whose result never arrived.
	abandonedTTL = 24 * time.Hour
)

var (
	ErrSessionNotFound = errors.New("no checkout holds this session")
	ErrHistoryDisabled = errors.New("checkout history is not configured")
)

// Observer receives every snapshot published by a buyer's controller, in order.
type Observer interface {
	Observe(ctx context.Context, userID uint, snap controller.Snapshot) error
}

type AttemptHistory interface {
	GetUserHistory(ctx context.Context, userID uint) ([]models.CheckoutAttempt, error)
}

type buyerCheckout struct {
	ctrl *controller.SessionController
	sub  *controller.Subscription
}

// CheckoutService keeps one SessionController per buyer and fans their
// snapshots out to the observers.
type CheckoutService struct {
	sessions  controller.SessionService
	validator controller.RequestValidator
	timeout   time.Duration
	observers []Observer
	history   AttemptHistory
	logger    *zap.Logger

	idleTTL time.Duration
	now     func() time.Time

	mu        sync.Mutex
	checkouts map[uint]*buyerCheckout
	lastSweep time.Time
	wg        sync.WaitGroup
}

func NewCheckoutService(
	sessions controller.SessionService,
	validator controller.RequestValidator,
	timeout time.Duration,
	observers []Observer,
	history AttemptHistory,
	logger *zap.Logger,
) *CheckoutService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckoutService{
		sessions:  sessions,
		validator: validator,
		timeout:   timeout,
		observers: observers,
		history:   history,
		logger:    logger,
		idleTTL:   DefaultIdleTTL,
		now:       time.Now,
		checkouts: make(map[uint]*buyerCheckout),
	}
}

// Controller returns the buyer's controller, creating it on first use.
func (s *CheckoutService) Controller(userID uint) *controller.SessionController {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sweepLocked()
	if bc, ok := s.checkouts[userID]; ok {
		return bc.ctrl
	}

	ctrl := controller.NewSessionController(s.sessions,
		controller.WithValidator(s.validator),
		controller.WithTimeout(s.timeout),
		controller.WithLogger(s.logger.With(zap.Uint("user_id", userID))),
	)
	bc := &buyerCheckout{ctrl: ctrl, sub: ctrl.Subscribe()}
	s.checkouts[userID] = bc

	s.wg.Add(1)
	go s.pump(userID, bc.sub)

	return ctrl
}

// sweepLocked releases controllers that have been idle for too long. Their
// queued snapshots still reach the observers.
func (s *CheckoutService) sweepLocked() {
	now := s.now()
	if now.Sub(s.lastSweep) < sweepInterval {
		return
	}
	s.lastSweep = now

	for userID, bc := range s.checkouts {
		snap := bc.ctrl.State()
		if !s.expired(snap, now) {
			continue
		}
		delete(s.checkouts, userID)
		bc.ctrl.Close()
		s.logger.Debug("Released idle checkout",
			zap.Uint("user_id", userID),
			zap.String("state", snap.State.String()),
		)
	}
}

func (s *CheckoutService) expired(snap controller.Snapshot, now time.Time) bool {
	age := now.Sub(snap.UpdatedAt)
	switch snap.State {
	case models.StateCreatingSession:
		return false
	case models.StateSessionCreated:
		return age >= abandonedTTL
	}
	return age >= s.idleTTL
}

func (s *CheckoutService) pump(userID uint, sub *controller.Subscription) {
	defer s.wg.Done()
	for snap := range sub.C {
		for _, o := range s.observers {
			ctx, cancel := context.WithTimeout(context.Background(), observeTimeout)
			if err := o.Observe(ctx, userID, snap); err != nil {
				s.logger.Error("Checkout observer failed",
					zap.Uint("user_id", userID),
					zap.String("attempt_id", snap.AttemptID),
					zap.String("state", snap.State.String()),
					zap.Error(err),
				)
			}
			cancel()
		}
	}
}

func (s *CheckoutService) existing(userID uint) (*controller.SessionController, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bc, ok := s.checkouts[userID]
	if !ok {
		return nil, false
	}
	return bc.ctrl, true
}

// StartCheckout creates (or retries) the buyer's session. Missing order
// reference and buyer email are filled in from the caller's identity.
func (s *CheckoutService) StartCheckout(userID uint, email string, req models.PaymentRequest) (controller.Snapshot, error) {
	if req.OrderReferenceID == "" {
		req.OrderReferenceID = uuid.NewString()
	}
	if req.Buyer.Email == "" {
		req.Buyer.Email = email
	}

	ctrl := s.Controller(userID)
	if err := ctrl.CreateSession(&req); err != nil {
		return ctrl.State(), err
	}
	return ctrl.State(), nil
}

func (s *CheckoutService) State(userID uint) controller.Snapshot {
	if ctrl, ok := s.existing(userID); ok {
		return ctrl.State()
	}
	return controller.Snapshot{State: models.StateInitial}
}

func (s *CheckoutService) Products(userID uint) []models.Product {
	return s.State(userID).Products()
}

func (s *CheckoutService) SelectProduct(userID uint, productID string) (*models.CheckoutInvocation, error) {
	ctrl, ok := s.existing(userID)
	if !ok {
		return nil, &models.InvalidStateError{Op: "build checkout invocation", State: models.StateInitial}
	}

	snap := ctrl.State()
	if snap.State != models.StateSessionCreated {
		return nil, &models.InvalidStateError{Op: "build checkout invocation", State: snap.State}
	}
	for _, p := range snap.Products() {
		if p.ID == productID {
			return ctrl.BuildCheckoutInvocation(p)
		}
	}
	return nil, fmt.Errorf("%w: %s", models.ErrUnknownProduct, productID)
}

func (s *CheckoutService) CompleteCheckout(userID uint, result *models.CheckoutResult) error {
	ctrl, ok := s.existing(userID)
	if !ok {
		if result == nil {
			return &models.MissingResultError{}
		}
		return &models.InvalidStateError{Op: "checkout result", State: models.StateInitial}
	}
	return ctrl.OnCheckoutResult(result)
}

// CompleteBySession delivers a result that arrived out of band, keyed by the
// provider's session id.
func (s *CheckoutService) CompleteBySession(sessionID string, result *models.CheckoutResult) error {
	s.mu.Lock()
	var target *controller.SessionController
	for _, bc := range s.checkouts {
		if snap := bc.ctrl.State(); snap.Session != nil && snap.Session.ID == sessionID {
			target = bc.ctrl
			break
		}
	}
	s.mu.Unlock()

	if target == nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	return target.OnCheckoutResult(result)
}

func (s *CheckoutService) Subscribe(userID uint) *controller.Subscription {
	return s.Controller(userID).Subscribe()
}

func (s *CheckoutService) History(ctx context.Context, userID uint) ([]models.CheckoutAttempt, error) {
	if s.history == nil {
		return nil, ErrHistoryDisabled
	}
	return s.history.GetUserHistory(ctx, userID)
}

// Close shuts every controller down and waits for the observer pumps to exit.
func (s *CheckoutService) Close() {
	s.mu.Lock()
	checkouts := s.checkouts
	s.checkouts = make(map[uint]*buyerCheckout)
	s.mu.Unlock()

	for _, bc := range checkouts {
		bc.ctrl.Close()
	}
	s.wg.Wait()
}
