// internal/runner/runner_test.go
package runner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/portal-sentry/api/schemas"
	"github.com/xkilldash9x/portal-sentry/internal/config"
)

// -- Mock Implementations for Testing --

// mockStore records status writes and serves canned accounts.
type mockStore struct {
	mu       sync.Mutex
	accounts map[string]schemas.Account
	statuses []schemas.StatusRecord
	setErr   error
}

func newMockStore(accounts ...schemas.Account) *mockStore {
	m := &mockStore{accounts: make(map[string]schemas.Account)}
	for _, acc := range accounts {
		m.accounts[acc.Name] = acc
	}
	return m
}

func (m *mockStore) CreateAccount(ctx context.Context, acc schemas.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[acc.Name] = acc
	return nil
}

func (m *mockStore) GetAccount(ctx context.Context, name string) (schemas.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[name]
	if !ok {
		return schemas.Account{}, schemas.ErrAccountNotFound
	}
	return acc, nil
}

func (m *mockStore) SaveAccount(ctx context.Context, acc schemas.Account) error { return nil }
func (m *mockStore) DeleteAccount(ctx context.Context, name string) error       { return nil }

func (m *mockStore) ListAccounts(ctx context.Context) ([]schemas.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]schemas.Account, 0, len(m.accounts))
	for _, acc := range m.accounts {
		out = append(out, acc)
	}
	return out, nil
}

func (m *mockStore) SetStatus(ctx context.Context, rec schemas.StatusRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	m.statuses = append(m.statuses, rec)
	return nil
}

func (m *mockStore) GetStatus(ctx context.Context, name string) (schemas.StatusRecord, error) {
	return schemas.StatusRecord{}, nil
}

func (m *mockStore) ListStatuses(ctx context.Context) ([]schemas.StatusRecord, error) {
	return nil, nil
}

func (m *mockStore) writes() []schemas.StatusRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]schemas.StatusRecord, len(m.statuses))
	copy(out, m.statuses)
	return out
}

// mockDriver returns scripted attempts, one per call.
type mockDriver struct {
	mu       sync.Mutex
	calls    int
	attempts []*schemas.LoginAttempt
	errs     []error
	panics   bool
}

func (m *mockDriver) RunLoginAttempt(ctx context.Context, loginURL, username, password string, timeout time.Duration) (*schemas.LoginAttempt, error) {
	m.mu.Lock()
	i := m.calls
	m.calls++
	m.mu.Unlock()

	if m.panics {
		panic("browser exploded")
	}
	var attempt *schemas.LoginAttempt
	var err error
	if i < len(m.attempts) {
		attempt = m.attempts[i]
	}
	if i < len(m.errs) {
		err = m.errs[i]
	}
	return attempt, err
}

func (m *mockDriver) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// mockSink records notifications.
type mockSink struct {
	mu      sync.Mutex
	records []schemas.StatusRecord
	to      []string
	err     error
}

func (m *mockSink) Send(ctx context.Context, rec schemas.StatusRecord, recipient string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, rec)
	m.to = append(m.to, recipient)
	return m.err
}

func (m *mockSink) sent() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// -- Test Fixture Setup --

func successAttempt() *schemas.LoginAttempt {
	return &schemas.LoginAttempt{
		Signals: schemas.RawSignals{
			FieldsFound: true,
			SubmittedOK: true,
			FinalURL:    "https://portal.example/dashboard",
		},
		ScreenshotPath: "/tmp/shots/ok.png",
	}
}

func rejectedAttempt() *schemas.LoginAttempt {
	return &schemas.LoginAttempt{
		Signals: schemas.RawSignals{
			FieldsFound:          true,
			SubmittedOK:          true,
			FinalURL:             "https://portal.example/login",
			PasswordFieldPresent: true,
		},
		ScreenshotPath: "/tmp/shots/fail.png",
	}
}

func testConfig() *config.Config {
	cfg := config.NewDefaultConfig()
	cfg.Portal.Username = ""
	cfg.Portal.Password = ""
	return cfg
}

func newOrchestrator(t *testing.T, cfg *config.Config, store *mockStore, driver *mockDriver, sink schemas.NotificationSink) *Orchestrator {
	t.Helper()
	o, err := New(cfg, zap.NewNop(), store, driver, sink)
	require.NoError(t, err)
	return o
}

func testAccount() schemas.Account {
	return schemas.Account{
		Name:     "acme",
		Username: "merchant",
		Password: "hunter2",
	}
}

// -- Test Cases --

func TestNew(t *testing.T) {
	t.Parallel()
	cfg := testConfig()

	t.Run("rejects nil store", func(t *testing.T) {
		_, err := New(cfg, zap.NewNop(), nil, &mockDriver{}, nil)
		assert.Error(t, err)
	})

	t.Run("rejects nil driver", func(t *testing.T) {
		_, err := New(cfg, zap.NewNop(), newMockStore(), nil, nil)
		assert.Error(t, err)
	})

	t.Run("nil sink is allowed", func(t *testing.T) {
		o, err := New(cfg, zap.NewNop(), newMockStore(), &mockDriver{}, nil)
		require.NoError(t, err)
		assert.NotNil(t, o)
	})
}

func TestRunAccountMissingCredentials(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	driver := &mockDriver{}
	o := newOrchestrator(t, testConfig(), store, driver, nil)

	acc := testAccount()
	acc.Password = ""

	outcome := o.RunAccount(context.Background(), acc)

	assert.False(t, outcome.OK)
	assert.Equal(t, "Missing username or password", outcome.Message)
	// The browser must never start for a doomed run.
	assert.Zero(t, driver.callCount())

	writes := store.writes()
	require.Len(t, writes, 1)
	assert.Equal(t, schemas.ResultFail, writes[0].Result)
	assert.Equal(t, "Missing username or password", writes[0].LastError)
	assert.False(t, writes[0].LastRunAt.IsZero())
}

func TestRunAccountSuccess(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	driver := &mockDriver{attempts: []*schemas.LoginAttempt{successAttempt()}}
	o := newOrchestrator(t, testConfig(), store, driver, nil)

	outcome := o.RunAccount(context.Background(), testAccount())

	assert.True(t, outcome.OK)
	assert.Equal(t, "Authentication successful", outcome.Message)
	assert.Equal(t, 1, driver.callCount())

	writes := store.writes()
	require.Len(t, writes, 1)
	assert.Equal(t, schemas.ResultSuccess, writes[0].Result)
	assert.Empty(t, writes[0].LastError)
	assert.Equal(t, "/tmp/shots/ok.png", writes[0].ScreenshotPath)
}

func TestRunAccountRetry(t *testing.T) {
	t.Parallel()

	t.Run("transient failure is retried exactly once", func(t *testing.T) {
		t.Parallel()
		store := newMockStore()
		driver := &mockDriver{
			errs:     []error{schemas.NewRunError(schemas.FailureTimeout, "Operation timed out", nil), nil},
			attempts: []*schemas.LoginAttempt{nil, successAttempt()},
		}
		o := newOrchestrator(t, testConfig(), store, driver, nil)

		outcome := o.RunAccount(context.Background(), testAccount())

		assert.True(t, outcome.OK)
		assert.Equal(t, 2, driver.callCount())
		require.Len(t, store.writes(), 1)
		assert.Equal(t, schemas.ResultSuccess, store.writes()[0].Result)
	})

	t.Run("second failure is terminal", func(t *testing.T) {
		t.Parallel()
		store := newMockStore()
		driver := &mockDriver{attempts: []*schemas.LoginAttempt{rejectedAttempt(), rejectedAttempt()}}
		o := newOrchestrator(t, testConfig(), store, driver, nil)

		outcome := o.RunAccount(context.Background(), testAccount())

		assert.False(t, outcome.OK)
		assert.Equal(t, "Invalid username or password", outcome.Message)
		// Two attempts total, never a third.
		assert.Equal(t, 2, driver.callCount())

		writes := store.writes()
		require.Len(t, writes, 1)
		assert.Equal(t, schemas.ResultFail, writes[0].Result)
		assert.Equal(t, "/tmp/shots/fail.png", writes[0].ScreenshotPath)
	})

	t.Run("max attempts of one disables the retry", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig()
		cfg.Runner.MaxAttempts = 1
		store := newMockStore()
		driver := &mockDriver{attempts: []*schemas.LoginAttempt{rejectedAttempt()}}
		o := newOrchestrator(t, cfg, store, driver, nil)

		outcome := o.RunAccount(context.Background(), testAccount())

		assert.False(t, outcome.OK)
		assert.Equal(t, 1, driver.callCount())
	})
}

func TestRunAccountDriverPanic(t *testing.T) {
	t.Parallel()

	store := newMockStore()
	driver := &mockDriver{panics: true}
	o := newOrchestrator(t, testConfig(), store, driver, nil)

	outcome := o.RunAccount(context.Background(), testAccount())

	assert.False(t, outcome.OK)
	assert.Contains(t, outcome.Message, "panic during browser attempt")
	// A panic classifies as unexpected, which earns the single retry.
	assert.Equal(t, 2, driver.callCount())
	require.Len(t, store.writes(), 1)
	assert.Equal(t, schemas.ResultFail, store.writes()[0].Result)
}

func TestRunAccountCredentialPrecedence(t *testing.T) {
	t.Parallel()

	t.Run("environment credentials fill account gaps", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig()
		cfg.Portal.Username = "env-user"
		cfg.Portal.Password = "env-pass"

		store := newMockStore()
		driver := &mockDriver{attempts: []*schemas.LoginAttempt{successAttempt()}}
		o := newOrchestrator(t, cfg, store, driver, nil)

		outcome := o.RunAccount(context.Background(), schemas.Account{Name: "bare"})
		assert.True(t, outcome.OK)
		assert.Equal(t, 1, driver.callCount())
	})

	t.Run("hardcoded URL is the last resort", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig()
		cfg.Portal.LoginURL = ""
		o := newOrchestrator(t, cfg, newMockStore(), &mockDriver{}, nil)

		_, _, loginURL := o.resolveCredentials(schemas.Account{Name: "bare"})
		assert.Equal(t, config.DefaultLoginURL, loginURL)
	})

	t.Run("account overrides win", func(t *testing.T) {
		t.Parallel()
		cfg := testConfig()
		cfg.Portal.Username = "env-user"
		cfg.Portal.LoginURL = "https://env.example/login"
		o := newOrchestrator(t, cfg, newMockStore(), &mockDriver{}, nil)

		acc := schemas.Account{Name: "acme", Username: "acc-user", Password: "pw", LoginURL: "https://acc.example/login"}
		username, password, loginURL := o.resolveCredentials(acc)
		assert.Equal(t, "acc-user", username)
		assert.Equal(t, "pw", password)
		assert.Equal(t, "https://acc.example/login", loginURL)
	})
}

func TestRunAccountNotifications(t *testing.T) {
	t.Parallel()

	t.Run("notifies when the account opted in", func(t *testing.T) {
		t.Parallel()
		store := newMockStore()
		driver := &mockDriver{attempts: []*schemas.LoginAttempt{successAttempt()}}
		sink := &mockSink{}
		o := newOrchestrator(t, testConfig(), store, driver, sink)

		acc := testAccount()
		acc.NotifyOnRun = true
		acc.EmailTo = "ops@example.com"

		o.RunAccount(context.Background(), acc)

		require.Equal(t, 1, sink.sent())
		assert.Equal(t, "ops@example.com", sink.to[0])
	})

	t.Run("skips the sink when not opted in", func(t *testing.T) {
		t.Parallel()
		sink := &mockSink{}
		driver := &mockDriver{attempts: []*schemas.LoginAttempt{successAttempt()}}
		o := newOrchestrator(t, testConfig(), newMockStore(), driver, sink)

		o.RunAccount(context.Background(), testAccount())
		assert.Zero(t, sink.sent())
	})

	t.Run("sink failure never fails the run", func(t *testing.T) {
		t.Parallel()
		sink := &mockSink{err: errors.New("smtp down")}
		driver := &mockDriver{attempts: []*schemas.LoginAttempt{successAttempt()}}
		store := newMockStore()
		o := newOrchestrator(t, testConfig(), store, driver, sink)

		acc := testAccount()
		acc.NotifyOnRun = true
		outcome := o.RunAccount(context.Background(), acc)

		assert.True(t, outcome.OK)
		require.Len(t, store.writes(), 1)
		assert.Equal(t, schemas.ResultSuccess, store.writes()[0].Result)
	})
}

func TestRunAccountByName(t *testing.T) {
	t.Parallel()

	t.Run("unknown account", func(t *testing.T) {
		t.Parallel()
		o := newOrchestrator(t, testConfig(), newMockStore(), &mockDriver{}, nil)

		outcome := o.RunAccountByName(context.Background(), "ghost")
		assert.False(t, outcome.OK)
		assert.Equal(t, "Account not found", outcome.Message)
	})

	t.Run("loads and runs a stored account", func(t *testing.T) {
		t.Parallel()
		store := newMockStore(testAccount())
		driver := &mockDriver{attempts: []*schemas.LoginAttempt{successAttempt()}}
		o := newOrchestrator(t, testConfig(), store, driver, nil)

		outcome := o.RunAccountByName(context.Background(), "acme")
		assert.True(t, outcome.OK)
	})
}

func TestRunAll(t *testing.T) {
	t.Parallel()

	accounts := []schemas.Account{
		{Name: "a", Username: "u", Password: "p"},
		{Name: "b", Username: "u", Password: "p"},
		{Name: "c"}, // missing credentials
	}
	store := newMockStore(accounts...)
	driver := &mockDriver{attempts: []*schemas.LoginAttempt{successAttempt(), successAttempt()}}
	o := newOrchestrator(t, testConfig(), store, driver, nil)

	outcomes := o.RunAll(context.Background())

	require.Len(t, outcomes, 3)
	failed := 0
	for _, outcome := range outcomes {
		if !outcome.OK {
			failed++
			assert.Equal(t, "Missing username or password", outcome.Message)
		}
	}
	assert.Equal(t, 1, failed)
	// One status record per account, no more.
	assert.Len(t, store.writes(), 3)
}

func TestStatusMessage(t *testing.T) {
	t.Parallel()

	t.Run("unexpected failures keep the cause", func(t *testing.T) {
		err := schemas.NewRunError(schemas.FailureUnexpected, "Unexpected error", errors.New("net: boom"))
		assert.Equal(t, "Unexpected error: net: boom", statusMessage(err))
	})

	t.Run("known kinds use the clean message", func(t *testing.T) {
		err := schemas.NewRunError(schemas.FailureTimeout, "Operation timed out", errors.New("context deadline exceeded"))
		assert.Equal(t, "Operation timed out", statusMessage(err))
	})

	t.Run("nil error gets a generic message", func(t *testing.T) {
		assert.Equal(t, "Login likely failed", statusMessage(nil))
	})
}
