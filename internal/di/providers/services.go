package providers

import (
	"github.com/samber/do/v2"

	"github.com/libraryapi/library-server/internal/config"
	"github.com/libraryapi/library-server/internal/logger"
	"github.com/libraryapi/library-server/internal/service"
	"github.com/libraryapi/library-server/internal/validation"
)

// ProvideValidator provides the shared input validator.
func ProvideValidator(i do.Injector) (*validation.Validator, error) {
	return validation.New(), nil
}

// ProvideBookService provides the book registry.
func ProvideBookService(i do.Injector) (*service.BookService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	validator := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewBookService(storeHandle.Store, validator, log.Component("books")), nil
}

// ProvideLoanService provides the loan ledger.
func ProvideLoanService(i do.Injector) (*service.LoanService, error) {
	storeHandle := do.MustInvoke[*StoreHandle](i)
	validator := do.MustInvoke[*validation.Validator](i)
	log := do.MustInvoke[*logger.Logger](i)

	return service.NewLoanService(storeHandle.Store, storeHandle.Store, validator, log.Component("loans")), nil
}

// ProvideOverdueNotifier provides the overdue notifier. It is built even when the
// schedule is disabled so the admin endpoint can still trigger a run.
func ProvideOverdueNotifier(i do.Injector) (*service.OverdueNotifier, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	loanService := do.MustInvoke[*service.LoanService](i)
	dispatcher := do.MustInvoke[*MailDispatcherHandle](i)

	return service.NewOverdueNotifier(
		loanService,
		service.EmailResolver{},
		dispatcher.Dispatcher,
		service.NotifierConfig{
			OverdueDays: cfg.Notifier.OverdueDays,
			Subject:     cfg.Notifier.Subject,
			Message:     cfg.Notifier.Message,
		},
		nil,
		log.Component("notifier"),
	), nil
}
