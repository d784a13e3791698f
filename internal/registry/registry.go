// internal/registry/registry.go

// Package registry binds each account to a recurring trigger. It is an owned
// object with an explicit lifecycle, not ambient global state, so tests can
// instantiate isolated registries.
package registry

import (
	"context"
	"sync"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/xkilldash9x/portal-sentry/api/schemas"
)

// RunFunc is invoked on every trigger fire with the bound account name. The
// account is loaded fresh at fire time so credential or schedule edits take
// effect without re-registering.
type RunFunc func(name string)

// Registry maintains at most one active cron entry per account name.
type Registry struct {
	logger *zap.Logger
	run    RunFunc

	mu      sync.Mutex
	cron    *cron.Cron
	entries map[string]cron.EntryID
}

var _ schemas.ScheduleRegistry = (*Registry)(nil)

// New creates a stopped Registry; call Start to begin firing triggers.
func New(logger *zap.Logger, run RunFunc) *Registry {
	return &Registry{
		logger:  logger.Named("registry"),
		run:     run,
		cron:    cron.New(),
		entries: make(map[string]cron.EntryID),
	}
}

// Start begins the trigger timeline. Each fire runs in its own goroutine, so
// a slow or hung run never blocks other accounts' triggers.
func (r *Registry) Start() {
	r.cron.Start()
	r.logger.Info("Schedule registry started")
}

// Stop halts future fires and returns a context that is done once in-flight
// jobs have completed. Already-running jobs are never aborted.
func (r *Registry) Stop() context.Context {
	r.logger.Info("Schedule registry stopping")
	return r.cron.Stop()
}

// Register binds the account to its resolved cadence. If the account already
// holds a trigger, the old one is removed before the new one activates, under
// the same lock, so two triggers can never be live for one name.
func (r *Registry) Register(acc schemas.Account) error {
	expr := ResolveExpression(acc.Schedule)
	name := acc.Name

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.entries[name]; ok {
		r.cron.Remove(old)
		delete(r.entries, name)
	}

	id, err := r.cron.AddFunc(expr, func() { r.fire(name, expr) })
	if err != nil {
		// A raw expression the parser rejects falls back to the safe default;
		// registration never fails.
		r.logger.Warn("Invalid cron expression, falling back to hourly.",
			zap.String("account", name),
			zap.String("expression", expr),
			zap.Error(err))
		expr = defaultExpression
		id, err = r.cron.AddFunc(expr, func() { r.fire(name, expr) })
		if err != nil {
			return err
		}
	}

	r.entries[name] = id
	r.logger.Info("Registered trigger",
		zap.String("account", name),
		zap.String("expression", expr))
	return nil
}

// Unregister stops future fires for the account. Unknown names are a no-op.
// An in-flight run completes or times out on its own.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.entries[name]
	if !ok {
		return
	}
	r.cron.Remove(id)
	delete(r.entries, name)
	r.logger.Info("Unregistered trigger", zap.String("account", name))
}

// Replace atomically swaps the account's trigger for one bound to its current
// schedule specification.
func (r *Registry) Replace(acc schemas.Account) error {
	return r.Register(acc)
}

// Seed replays Register for every persisted account, restoring prior cadences
// across process restarts.
func (r *Registry) Seed(ctx context.Context, store schemas.StatusStore) error {
	accounts, err := store.ListAccounts(ctx)
	if err != nil {
		return err
	}
	for _, acc := range accounts {
		if err := r.Register(acc); err != nil {
			r.logger.Error("Failed to seed trigger.",
				zap.String("account", acc.Name),
				zap.Error(err))
		}
	}
	r.logger.Info("Seeded triggers from store", zap.Int("count", len(accounts)))
	return nil
}

// IsScheduled reports whether the account currently holds an active trigger.
func (r *Registry) IsScheduled(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.entries[name]
	return ok
}

// Len returns the number of active triggers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}

// Entry returns the live cron entry for the account, or false when no trigger
// is active. Exposed for observability and tests.
func (r *Registry) Entry(name string) (cron.Entry, bool) {
	r.mu.Lock()
	id, ok := r.entries[name]
	r.mu.Unlock()
	if !ok {
		return cron.Entry{}, false
	}
	return r.cron.Entry(id), true
}

func (r *Registry) fire(name, expr string) {
	r.logger.Info("Trigger fired",
		zap.String("account", name),
		zap.String("expression", expr))
	r.run(name)
}
