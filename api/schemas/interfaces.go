// api/schemas/interfaces.go
package schemas

import (
	"context"
	"time"
)

// StatusStore is the durable key-value persistence consumed by the runner and
// the schedule registry. All operations are atomic whole-record reads/writes
// keyed by account name.
type StatusStore interface {
	CreateAccount(ctx context.Context, acc Account) error
	GetAccount(ctx context.Context, name string) (Account, error)
	// SaveAccount replaces the stored record wholesale. Partial updates are
	// resolved by the caller via AccountPatch.Apply before saving.
	SaveAccount(ctx context.Context, acc Account) error
	// DeleteAccount removes the account and its status record.
	DeleteAccount(ctx context.Context, name string) error
	ListAccounts(ctx context.Context) ([]Account, error)

	SetStatus(ctx context.Context, rec StatusRecord) error
	GetStatus(ctx context.Context, name string) (StatusRecord, error)
	ListStatuses(ctx context.Context) ([]StatusRecord, error)
}

// LoginDriver drives one isolated headless-browser login attempt.
type LoginDriver interface {
	RunLoginAttempt(ctx context.Context, loginURL, username, password string, timeout time.Duration) (*LoginAttempt, error)
}

// NotificationSink receives a status record after a run. Fire and forget:
// callers log failures and never retry or roll back the run.
type NotificationSink interface {
	Send(ctx context.Context, rec StatusRecord, recipient string) error
}

// AccountRunner executes the full validate-and-persist flow for accounts.
type AccountRunner interface {
	RunAccount(ctx context.Context, acc Account) RunOutcome
	RunAccountByName(ctx context.Context, name string) RunOutcome
	RunAll(ctx context.Context) []RunOutcome
}

// ScheduleRegistry maintains at most one active trigger per account name.
type ScheduleRegistry interface {
	Register(acc Account) error
	Unregister(name string)
	Replace(acc Account) error
	IsScheduled(name string) bool
}
