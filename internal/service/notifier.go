package service

import (
	"context"
	"fmt"
	"log/slog"
	netmail "net/mail"
	"time"

	"github.com/libraryapi/library-server/internal/domain"
	"github.com/libraryapi/library-server/internal/id"
	"github.com/libraryapi/library-server/internal/mail"
	"github.com/libraryapi/library-server/internal/normalize"
)

// Notifier defaults.
const (
	DefaultOverdueDays     = 4
	DefaultOverdueSubject  = "Overdue book"
	DefaultOverdueMessage  = "You have a book that is past its return date. Please return it as soon as possible."
	DefaultNotifierRunTime = 2 * time.Minute
)

// LateLoanSource lists the loans that are overdue on a given day.
type LateLoanSource interface {
	GetAllLateLoans(ctx context.Context, today time.Time, overdueDays int) ([]*domain.Loan, error)
}

// RecipientResolver maps a loan to the address its reminder goes to.
type RecipientResolver interface {
	Resolve(ctx context.Context, loan *domain.Loan) (string, bool)
}

// EmailResolver uses the email recorded on the loan, falling back to the customer field
// when it is itself an email address.
type EmailResolver struct{}

// Resolve implements RecipientResolver.
func (EmailResolver) Resolve(_ context.Context, loan *domain.Loan) (string, bool) {
	for _, candidate := range []string{loan.CustomerEmail, loan.Customer} {
		if candidate == "" {
			continue
		}
		if addr, err := netmail.ParseAddress(candidate); err == nil {
			return normalize.Email(addr.Address), true
		}
	}
	return "", false
}

// NotifierConfig holds the reminder settings.
type NotifierConfig struct {
	OverdueDays int
	Subject     string
	Message     string
	// RunTimeout bounds one run, dispatch included.
	RunTimeout time.Duration
}

func (c NotifierConfig) withDefaults() NotifierConfig {
	if c.OverdueDays <= 0 {
		c.OverdueDays = DefaultOverdueDays
	}
	if c.Subject == "" {
		c.Subject = DefaultOverdueSubject
	}
	if c.Message == "" {
		c.Message = DefaultOverdueMessage
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = DefaultNotifierRunTime
	}
	return c
}

// NotifierRunResult summarises one notifier run.
type NotifierRunResult struct {
	RunID         string    `json:"run_id"`
	Today         time.Time `json:"today"`
	LateLoans     int       `json:"late_loans"`
	Recipients    []string  `json:"recipients"`
	Unresolved    int       `json:"unresolved"`
	Sent          bool      `json:"sent"`
	DispatchError string    `json:"dispatch_error,omitempty"`
}

// OverdueNotifier sends one reminder batch to every customer holding a late loan.
// It has no schedule of its own; a scheduler or an admin request calls Run.
type OverdueNotifier struct {
	source     LateLoanSource
	resolver   RecipientResolver
	dispatcher mail.Dispatcher
	cfg        NotifierConfig
	now        func() time.Time
	logger     *slog.Logger
}

// NewOverdueNotifier creates a notifier. A nil now uses time.Now.
func NewOverdueNotifier(
	source LateLoanSource,
	resolver RecipientResolver,
	dispatcher mail.Dispatcher,
	cfg NotifierConfig,
	now func() time.Time,
	logger *slog.Logger,
) *OverdueNotifier {
	if now == nil {
		now = time.Now
	}
	return &OverdueNotifier{
		source:     source,
		resolver:   resolver,
		dispatcher: dispatcher,
		cfg:        cfg.withDefaults(),
		now:        now,
		logger:     logger,
	}
}

// Run queries late loans, resolves distinct recipients in first-seen order and dispatches
// a single message to all of them. A dispatch failure is logged and reported in the
// result; only a failed storage query is returned as an error.
func (n *OverdueNotifier) Run(ctx context.Context) (*NotifierRunResult, error) {
	runID, err := id.NotifierRun()
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, n.cfg.RunTimeout)
	defer cancel()

	today := domain.CalendarDate(n.now())
	log := n.logger.With("run_id", runID)
	result := &NotifierRunResult{RunID: runID, Today: today, Recipients: []string{}}

	loans, err := n.source.GetAllLateLoans(ctx, today, n.cfg.OverdueDays)
	if err != nil {
		log.Error("overdue notifier: query late loans failed", "error", err)
		return nil, fmt.Errorf("query late loans: %w", err)
	}
	result.LateLoans = len(loans)

	seen := make(map[string]struct{}, len(loans))
	for _, loan := range loans {
		addr, ok := n.resolver.Resolve(ctx, loan)
		if !ok {
			result.Unresolved++
			log.Warn("overdue notifier: no email for customer",
				"loan_id", loan.ID,
				"customer", loan.Customer,
			)
			continue
		}
		if _, dup := seen[addr]; dup {
			continue
		}
		seen[addr] = struct{}{}
		result.Recipients = append(result.Recipients, addr)
	}

	if len(result.Recipients) == 0 {
		log.Info("overdue notifier: nothing to send", "late_loans", result.LateLoans)
		return result, nil
	}

	if err := n.dispatcher.Send(ctx, n.cfg.Subject, n.cfg.Message, result.Recipients); err != nil {
		result.DispatchError = err.Error()
		log.Error("overdue notifier: dispatch failed",
			"recipients", len(result.Recipients),
			"error", err,
		)
		return result, nil
	}
	result.Sent = true

	log.Info("overdue notifier: reminders sent",
		"late_loans", result.LateLoans,
		"recipients", len(result.Recipients),
		"unresolved", result.Unresolved,
	)

	return result, nil
}
