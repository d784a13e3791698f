// internal/runner/runner.go

// Package runner wraps one account's validation attempt with timeout
// enforcement, a bounded retry, and unconditional status persistence. Runs
// are isolated per account so one failure cannot affect others.
package runner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/portal-sentry/api/schemas"
	"github.com/xkilldash9x/portal-sentry/internal/classifier"
	"github.com/xkilldash9x/portal-sentry/internal/config"
)

// msgMissingCredentials is the exact status message recorded when credential
// resolution comes up empty.
const msgMissingCredentials = "Missing username or password"

// Orchestrator executes the validate-classify-persist flow for accounts.
type Orchestrator struct {
	store  schemas.StatusStore
	driver schemas.LoginDriver
	sink   schemas.NotificationSink
	cfg    config.RunnerConfig
	portal config.PortalConfig
	logger *zap.Logger

	// classify is swappable for tests; defaults to the production classifier.
	classify func(schemas.RawSignals) schemas.RunResult
}

var _ schemas.AccountRunner = (*Orchestrator)(nil)

// New creates an Orchestrator. The sink may be nil when notifications are
// disabled.
func New(
	cfg *config.Config,
	logger *zap.Logger,
	store schemas.StatusStore,
	driver schemas.LoginDriver,
	sink schemas.NotificationSink,
) (*Orchestrator, error) {
	if store == nil || driver == nil {
		return nil, fmt.Errorf("cannot initialize orchestrator with nil store or driver")
	}
	return &Orchestrator{
		store:    store,
		driver:   driver,
		sink:     sink,
		cfg:      cfg.Runner,
		portal:   cfg.Portal,
		logger:   logger.Named("runner"),
		classify: classifier.Classify,
	}, nil
}

// RunAccount validates one account and persists exactly one StatusRecord. It
// never returns an error: every failure kind collapses into the record and
// the outcome message, so callers (the schedule registry, the batch runner)
// cannot be derailed by a single account.
func (o *Orchestrator) RunAccount(ctx context.Context, acc schemas.Account) schemas.RunOutcome {
	log := o.logger.With(zap.String("account", acc.Name))
	log.Info("Starting run")

	username, password, loginURL := o.resolveCredentials(acc)

	if username == "" || password == "" {
		rec := schemas.StatusRecord{
			Account:   acc.Name,
			LastRunAt: time.Now().UTC(),
			Result:    schemas.ResultFail,
			LastError: msgMissingCredentials,
		}
		o.persist(ctx, rec, log)
		return schemas.RunOutcome{OK: false, Message: msgMissingCredentials}
	}

	var (
		lastErr    error
		screenshot string
		succeeded  bool
	)

	// Explicit bounded retry loop; the retry never retries itself.
	for i := 1; i <= o.maxAttempts(); i++ {
		attempt, err := o.attemptOnce(ctx, loginURL, username, password)
		if attempt != nil && attempt.ScreenshotPath != "" {
			screenshot = attempt.ScreenshotPath
		}

		if err == nil {
			if o.classify(attempt.Signals) == schemas.ResultSuccess {
				succeeded = true
				break
			}
			err = schemas.NewRunError(schemas.FailureRejectedCredentials, "Invalid username or password", nil)
		}

		lastErr = err
		kind := schemas.KindOf(err)
		log.Warn("Attempt failed.",
			zap.Int("attempt", i),
			zap.String("kind", string(kind)),
			zap.Error(err))

		if !schemas.Retryable(kind) {
			break
		}
	}

	rec := schemas.StatusRecord{
		Account:        acc.Name,
		LastRunAt:      time.Now().UTC(),
		ScreenshotPath: screenshot,
	}
	outcome := schemas.RunOutcome{}
	if succeeded {
		rec.Result = schemas.ResultSuccess
		outcome.OK = true
		outcome.Message = "Authentication successful"
	} else {
		rec.Result = schemas.ResultFail
		rec.LastError = statusMessage(lastErr)
		outcome.Message = rec.LastError
	}

	o.persist(ctx, rec, log)
	o.notify(ctx, acc, rec, log)

	log.Info("Run finished", zap.String("result", string(rec.Result)))
	return outcome
}

// RunAccountByName loads the account first, then runs it.
func (o *Orchestrator) RunAccountByName(ctx context.Context, name string) schemas.RunOutcome {
	acc, err := o.store.GetAccount(ctx, name)
	if err != nil {
		if errors.Is(err, schemas.ErrAccountNotFound) {
			return schemas.RunOutcome{OK: false, Message: "Account not found"}
		}
		return schemas.RunOutcome{OK: false, Message: fmt.Sprintf("failed to load account: %v", err)}
	}
	return o.RunAccount(ctx, acc)
}

// RunAll runs every stored account, bounded by the configured concurrency.
// Each run is fully isolated; the returned slice mirrors the account order.
func (o *Orchestrator) RunAll(ctx context.Context) []schemas.RunOutcome {
	accounts, err := o.store.ListAccounts(ctx)
	if err != nil {
		o.logger.Error("Batch run could not list accounts.", zap.Error(err))
		return nil
	}

	outcomes := make([]schemas.RunOutcome, len(accounts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency())

	for i, acc := range accounts {
		g.Go(func() error {
			outcomes[i] = o.RunAccount(gctx, acc)
			// Failures are captured in the outcome; never fail the group.
			return nil
		})
	}
	// The group never returns an error by construction.
	_ = g.Wait()

	return outcomes
}

// attemptOnce shields the retry loop from driver panics by converting them to
// unexpected run errors.
func (o *Orchestrator) attemptOnce(ctx context.Context, loginURL, username, password string) (attempt *schemas.LoginAttempt, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = schemas.NewRunError(schemas.FailureUnexpected,
				fmt.Sprintf("panic during browser attempt: %v", r), nil)
		}
	}()
	return o.driver.RunLoginAttempt(ctx, loginURL, username, password, o.cfg.AttemptTimeout)
}

// resolveCredentials applies the precedence: per-account override, then
// environment-level default, then the hardcoded fallback URL.
func (o *Orchestrator) resolveCredentials(acc schemas.Account) (username, password, loginURL string) {
	username = acc.Username
	if username == "" {
		username = o.portal.Username
	}
	password = acc.Password
	if password == "" {
		password = o.portal.Password
	}
	loginURL = acc.LoginURL
	if loginURL == "" {
		loginURL = o.portal.LoginURL
	}
	if loginURL == "" {
		loginURL = config.DefaultLoginURL
	}
	return username, password, loginURL
}

// persist writes the StatusRecord. A run that never writes status is a
// correctness bug, so a store failure is loud.
func (o *Orchestrator) persist(ctx context.Context, rec schemas.StatusRecord, log *zap.Logger) {
	if err := o.store.SetStatus(ctx, rec); err != nil {
		log.Error("Failed to persist status record.", zap.Error(err))
	}
}

// notify hands the record to the sink when the account asks for it. Sink
// failures are logged and never roll back or re-run the attempt.
func (o *Orchestrator) notify(ctx context.Context, acc schemas.Account, rec schemas.StatusRecord, log *zap.Logger) {
	if !acc.NotifyOnRun || o.sink == nil {
		return
	}
	if rec.Result == schemas.ResultNoData && !acc.SendOnNoData {
		return
	}
	if err := o.sink.Send(ctx, rec, acc.EmailTo); err != nil {
		log.Warn("Notification sink failed.", zap.Error(err))
	}
}

func (o *Orchestrator) maxAttempts() int {
	if o.cfg.MaxAttempts >= 1 && o.cfg.MaxAttempts <= 2 {
		return o.cfg.MaxAttempts
	}
	return 2
}

func (o *Orchestrator) concurrency() int {
	if o.cfg.Concurrency > 0 {
		return o.cfg.Concurrency
	}
	return 1
}

// statusMessage extracts the human-readable message for the StatusRecord.
// Unexpected failures keep the full cause.
func statusMessage(err error) string {
	if err == nil {
		return "Login likely failed"
	}
	var re *schemas.RunError
	if errors.As(err, &re) {
		if re.Kind == schemas.FailureUnexpected && re.Err != nil {
			return fmt.Sprintf("%s: %v", re.Message, re.Err)
		}
		return re.Message
	}
	return err.Error()
}
