package main

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/sefazor/bnpl-checkout/internal/config"
	"github.com/sefazor/bnpl-checkout/internal/controller"
	"github.com/sefazor/bnpl-checkout/internal/handler"
	"github.com/sefazor/bnpl-checkout/internal/middleware"
	"github.com/sefazor/bnpl-checkout/internal/repository"
	"github.com/sefazor/bnpl-checkout/internal/service"
	"github.com/sefazor/bnpl-checkout/pkg/database"
	"github.com/sefazor/bnpl-checkout/pkg/email"
	"github.com/sefazor/bnpl-checkout/pkg/logger"
	"github.com/sefazor/bnpl-checkout/pkg/metrics"
	"github.com/sefazor/bnpl-checkout/pkg/payment"
	"github.com/sefazor/bnpl-checkout/pkg/qrcode"
	"github.com/sefazor/bnpl-checkout/pkg/storage"
	"github.com/sefazor/bnpl-checkout/pkg/utils"
)

type application struct {
	app    *fiber.App
	cfg    *config.Config
	logger *zap.Logger
}

func newApplication(app *fiber.App, cfg *config.Config, log *zap.Logger) *application {
	return &application{app: app, cfg: cfg, logger: log}
}

func provideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	log, err := logger.New(cfg.Environment)
	if err != nil {
		return nil, nil, err
	}
	return log, func() { _ = log.Sync() }, nil
}

// provideStripe returns nil unless Stripe is the configured provider.
func provideStripe(cfg *config.Config, log *zap.Logger) *payment.StripeService {
	if cfg.Provider != config.ProviderStripe {
		return nil
	}
	return payment.NewStripeService(cfg.Stripe, log.Named("stripe"))
}

func provideSessionService(cfg *config.Config, stripeService *payment.StripeService, log *zap.Logger) controller.SessionService {
	if stripeService != nil {
		return stripeService
	}
	return payment.NewTabbyClient(cfg.Tabby, cfg.SessionTimeout, log.Named("tabby"))
}

// provideDatabase connects only when DATABASE_URL is set; the ledger is optional.
func provideDatabase(cfg *config.Config, log *zap.Logger) (*gorm.DB, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Warn("DATABASE_URL is not set, checkout history is disabled")
		return nil, func() {}, nil
	}

	db, err := database.NewDatabase(cfg.DatabaseURL, log)
	if err != nil {
		return nil, nil, err
	}

	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return db, cleanup, nil
}

func provideAttemptRepository(db *gorm.DB) *repository.CheckoutAttemptRepository {
	if db == nil {
		return nil
	}
	return repository.NewCheckoutAttemptRepository(db)
}

func provideHistory(repo *repository.CheckoutAttemptRepository) service.AttemptHistory {
	if repo == nil {
		return nil
	}
	return repo
}

func provideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func provideMetrics(reg *prometheus.Registry) *metrics.CheckoutMetrics {
	return metrics.NewCheckoutMetrics(reg)
}

func provideObservers(
	cfg *config.Config,
	repo *repository.CheckoutAttemptRepository,
	checkoutMetrics *metrics.CheckoutMetrics,
	log *zap.Logger,
) ([]service.Observer, error) {
	observers := []service.Observer{checkoutMetrics}

	if repo != nil {
		observers = append(observers, service.NewAttemptRecorder(repo))
	}

	if cfg.EmailEnabled() {
		observers = append(observers, service.NewReceiptNotifier(email.NewEmailService(cfg.Email, log.Named("email"))))
	} else {
		log.Info("Receipt emails are disabled")
	}

	if cfg.ArchiveEnabled() {
		r2, err := storage.NewCloudflareStorage(cfg.R2, log.Named("r2"))
		if err != nil {
			return nil, err
		}
		observers = append(observers, service.NewReceiptArchive(r2))
	} else {
		log.Info("Receipt archive is disabled")
	}

	return observers, nil
}

func provideCheckoutService(
	cfg *config.Config,
	sessions controller.SessionService,
	validator *utils.Validator,
	observers []service.Observer,
	history service.AttemptHistory,
	log *zap.Logger,
) (*service.CheckoutService, func()) {
	svc := service.NewCheckoutService(sessions, validator, cfg.SessionTimeout, observers, history, log.Named("checkout"))
	return svc, svc.Close
}

func provideCheckoutHandler(checkoutService *service.CheckoutService, qrService *qrcode.QRService, log *zap.Logger) *handler.CheckoutHandler {
	return handler.NewCheckoutHandler(checkoutService, qrService, log.Named("handler"))
}

// providePaymentHandler returns nil when no webhook-driven provider is configured.
func providePaymentHandler(checkoutService *service.CheckoutService, stripeService *payment.StripeService, log *zap.Logger) *handler.PaymentHandler {
	if stripeService == nil {
		return nil
	}
	return handler.NewPaymentHandler(checkoutService, stripeService, log.Named("webhook"))
}

func provideAuthHandler(cfg *config.Config, validator *utils.Validator) *handler.AuthHandler {
	return handler.NewAuthHandler([]byte(cfg.JWTSecret), validator)
}

func newFiberApp(
	cfg *config.Config,
	checkoutHandler *handler.CheckoutHandler,
	paymentHandler *handler.PaymentHandler,
	authHandler *handler.AuthHandler,
	reg *prometheus.Registry,
	log *zap.Logger,
) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "bnpl-checkout",
		DisableStartupMessage: cfg.IsProduction(),
	})

	app.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST",
		AllowCredentials: true,
	}))
	app.Use(fiberlogger.New())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"status": "ok", "provider": cfg.Provider})
	})
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	api := app.Group("/api")
	api.Use(limiter.New(limiter.Config{
		Max:        60,
		Expiration: 1 * time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
	}))

	// Public routes
	if paymentHandler != nil {
		api.Post("/payments/webhook", paymentHandler.HandleStripeWebhook)
	}
	if !cfg.IsProduction() {
		api.Post("/auth/token", authHandler.IssueToken)
	}

	// Protected routes
	checkout := api.Group("/checkout", middleware.AuthMiddleware([]byte(cfg.JWTSecret), log.Named("auth")))
	checkout.Post("/sessions", checkoutHandler.CreateSession)
	checkout.Get("/state", checkoutHandler.GetState)
	checkout.Get("/events", checkoutHandler.StreamState)
	checkout.Get("/products", checkoutHandler.GetProducts)
	checkout.Post("/products/:productId/invocation", checkoutHandler.BuildInvocation)
	checkout.Get("/products/:productId/qr", checkoutHandler.GetProductQRCode)
	checkout.Post("/result", checkoutHandler.SubmitResult)
	checkout.Get("/history", checkoutHandler.GetHistory)

	return app
}
