// Package di provides dependency injection configuration for the library server.
package di

import (
	"github.com/samber/do/v2"

	"github.com/libraryapi/library-server/internal/config"
	"github.com/libraryapi/library-server/internal/di/providers"
	"github.com/libraryapi/library-server/internal/logger"
	"github.com/libraryapi/library-server/internal/service"
	"github.com/libraryapi/library-server/internal/validation"
)

// NewContainer creates and configures the DI container with all providers.
func NewContainer() *do.RootScope {
	injector := do.New()

	// Core infrastructure
	do.Provide(injector, providers.ProvideConfig)
	do.Provide(injector, providers.ProvideLogger)

	// Storage layer
	do.Provide(injector, providers.ProvideStore)

	// Business services
	do.Provide(injector, providers.ProvideValidator)
	do.Provide(injector, providers.ProvideBookService)
	do.Provide(injector, providers.ProvideLoanService)

	// Notification
	do.Provide(injector, providers.ProvideMailDispatcher)
	do.Provide(injector, providers.ProvideOverdueNotifier)
	do.Provide(injector, providers.ProvideNotifierJob)

	// Server
	do.Provide(injector, providers.ProvideHTTPServer)

	return injector
}

// Bootstrap initializes all services in dependency order.
// Any provider error aborts startup.
func Bootstrap(injector *do.RootScope) error {
	if _, err := do.Invoke[*config.Config](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*logger.Logger](injector)

	if _, err := do.Invoke[*providers.StoreHandle](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*validation.Validator](injector)
	_ = do.MustInvoke[*service.BookService](injector)
	_ = do.MustInvoke[*service.LoanService](injector)

	if _, err := do.Invoke[*providers.MailDispatcherHandle](injector); err != nil {
		return err
	}
	_ = do.MustInvoke[*service.OverdueNotifier](injector)
	if _, err := do.Invoke[*providers.NotifierJob](injector); err != nil {
		return err
	}

	// Server
	_ = do.MustInvoke[*providers.HTTPServerHandle](injector)

	return nil
}
