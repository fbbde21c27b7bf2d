package providers

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
	"github.com/samber/do/v2"

	"github.com/libraryapi/library-server/internal/config"
	"github.com/libraryapi/library-server/internal/logger"
	"github.com/libraryapi/library-server/internal/service"
)

// NotifierJob runs the overdue notifier on its cron schedule.
type NotifierJob struct {
	cron   *cron.Cron
	cancel context.CancelFunc
}

// Shutdown implements do.Shutdownable. It waits for a run in progress to finish.
func (j *NotifierJob) Shutdown() error {
	if j.cron == nil {
		return nil
	}
	j.cancel()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	select {
	case <-j.cron.Stop().Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notifier job: %w", ctx.Err())
	}
}

// ProvideNotifierJob schedules the overdue notifier.
func ProvideNotifierJob(i do.Injector) (*NotifierJob, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	notifier := do.MustInvoke[*service.OverdueNotifier](i)

	if !cfg.Notifier.Enabled {
		log.Info("Overdue notifier schedule disabled by configuration")
		return &NotifierJob{}, nil
	}

	jobLog := log.Component("notifier-job")
	cronLog := cronLogger{jobLog}

	c := cron.New(cron.WithChain(
		cron.Recover(cronLog),
		cron.SkipIfStillRunning(cronLog),
	))

	ctx, cancel := context.WithCancel(context.Background())

	_, err := c.AddFunc(cfg.Notifier.Schedule, func() {
		result, err := notifier.Run(ctx)
		if err != nil {
			jobLog.Error("Scheduled notifier run failed", "error", err)
			return
		}
		if result.DispatchError != "" {
			jobLog.Warn("Scheduled notifier run could not send reminders",
				"run_id", result.RunID,
				"error", result.DispatchError,
			)
		}
	})
	if err != nil {
		cancel()
		return nil, fmt.Errorf("invalid notifier schedule %q: %w", cfg.Notifier.Schedule, err)
	}

	c.Start()

	log.Info("Overdue notifier scheduled", "schedule", cfg.Notifier.Schedule)

	return &NotifierJob{cron: c, cancel: cancel}, nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}
