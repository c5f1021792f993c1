package config

import (
	"os"
	"strings"
	"time"
)

const (
	ProviderTabby  = "tabby"
	ProviderStripe = "stripe"

	defaultTabbyBaseURL   = "https://api.tabby.ai"
	defaultPort           = "8080"
	defaultSessionTimeout = 30 * time.Second
)

type TabbyConfig struct {
	PublicKey    string
	BaseURL      string
	MerchantCode string
	Lang         string
	SuccessURL   string
	CancelURL    string
	FailureURL   string
}

type StripeConfig struct {
	SecretKey     string
	WebhookSecret string
	SuccessURL    string
	CancelURL     string
}

type R2Config struct {
	AccountID       string
	AccessKeyID     string
	SecretAccessKey string
	Bucket          string
}

type EmailConfig struct {
	APIKey   string
	From     string
	FromName string
}

type Config struct {
	Environment    string
	Port           string
	AllowOrigins   string
	DatabaseURL    string
	JWTSecret      string
	Provider       string
	SessionTimeout time.Duration
	Tabby          TabbyConfig
	Stripe         StripeConfig
	R2             R2Config
	Email          EmailConfig
}

func LoadConfig() *Config {
	cfg := &Config{
		Environment:    getEnv("APP_ENV", "development"),
		Port:           getEnv("PORT", defaultPort),
		AllowOrigins:   getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		Provider:       strings.ToLower(getEnv("PAYMENT_PROVIDER", ProviderTabby)),
		SessionTimeout: getDuration("SESSION_TIMEOUT", defaultSessionTimeout),
	}

	cfg.Tabby.PublicKey = os.Getenv("TABBY_PUBLIC_KEY")
	cfg.Tabby.BaseURL = strings.TrimRight(getEnv("TABBY_BASE_URL", defaultTabbyBaseURL), "/")
	cfg.Tabby.MerchantCode = os.Getenv("TABBY_MERCHANT_CODE")
	cfg.Tabby.Lang = getEnv("TABBY_LANG", "en")
	cfg.Tabby.SuccessURL = os.Getenv("TABBY_SUCCESS_URL")
	cfg.Tabby.CancelURL = os.Getenv("TABBY_CANCEL_URL")
	cfg.Tabby.FailureURL = os.Getenv("TABBY_FAILURE_URL")

	cfg.Stripe.SecretKey = os.Getenv("STRIPE_SECRET_KEY")
	cfg.Stripe.WebhookSecret = os.Getenv("STRIPE_WEBHOOK_SECRET")
	cfg.Stripe.SuccessURL = getEnv("STRIPE_SUCCESS_URL", "http://localhost:3000/payment/success?session_id={CHECKOUT_SESSION_ID}")
	cfg.Stripe.CancelURL = getEnv("STRIPE_CANCEL_URL", "http://localhost:3000/payment/cancel")

	cfg.R2.AccountID = os.Getenv("R2_ACCOUNT_ID")
	cfg.R2.AccessKeyID = os.Getenv("R2_ACCESS_KEY_ID")
	cfg.R2.SecretAccessKey = os.Getenv("R2_SECRET_ACCESS_KEY")
	cfg.R2.Bucket = os.Getenv("R2_BUCKET")

	cfg.Email.APIKey = os.Getenv("RESEND_API_KEY")
	cfg.Email.From = os.Getenv("EMAIL_FROM_ADDRESS")
	cfg.Email.FromName = getEnv("EMAIL_FROM_NAME", "Checkout")

	return cfg
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// ArchiveEnabled reports whether receipts should be uploaded to R2.
func (c *Config) ArchiveEnabled() bool {
	return c.R2.AccountID != "" && c.R2.Bucket != ""
}

func (c *Config) EmailEnabled() bool {
	return c.Email.APIKey != "" && c.Email.From != ""
}

func getEnv(key, fallback string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
