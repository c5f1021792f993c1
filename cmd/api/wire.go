//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/sefazor/bnpl-checkout/internal/config"
	"github.com/sefazor/bnpl-checkout/pkg/qrcode"
	"github.com/sefazor/bnpl-checkout/pkg/utils"
)

func initializeApplication(cfg *config.Config) (*application, func(), error) {
	wire.Build(
		// Logging
		provideLogger,

		// Providers
		provideStripe,
		provideSessionService,

		// Persistence
		provideDatabase,
		provideAttemptRepository,
		provideHistory,

		// Observers
		provideRegistry,
		provideMetrics,
		provideObservers,

		// Services
		utils.NewValidator,
		qrcode.NewQRService,
		provideCheckoutService,

		// Handlers
		provideCheckoutHandler,
		providePaymentHandler,
		provideAuthHandler,

		// App
		newFiberApp,
		newApplication,
	)
	return nil, nil, nil
}
