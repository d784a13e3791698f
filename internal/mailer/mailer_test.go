// internal/mailer/mailer_test.go
package mailer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/portal-sentry/api/schemas"
	"github.com/xkilldash9x/portal-sentry/internal/config"
)

func testRecord() schemas.StatusRecord {
	return schemas.StatusRecord{
		Account:   "acme",
		LastRunAt: time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
		Result:    schemas.ResultSuccess,
	}
}

func TestRenderRunReport(t *testing.T) {
	t.Parallel()

	t.Run("success report", func(t *testing.T) {
		body, err := renderRunReport(testRecord())
		require.NoError(t, err)
		assert.Contains(t, body, "acme")
		assert.Contains(t, body, "success")
		assert.NotContains(t, body, "Error:")
	})

	t.Run("failure report includes the error", func(t *testing.T) {
		rec := testRecord()
		rec.Result = schemas.ResultFail
		rec.LastError = "Missing username or password"
		rec.ScreenshotPath = "/tmp/shots/fail.png"

		body, err := renderRunReport(rec)
		require.NoError(t, err)
		assert.Contains(t, body, "Missing username or password")
		assert.Contains(t, body, "Screenshot attached.")
	})

	t.Run("html in fields is escaped", func(t *testing.T) {
		rec := testRecord()
		rec.LastError = `<script>alert("x")</script>`

		body, err := renderRunReport(rec)
		require.NoError(t, err)
		assert.NotContains(t, body, "<script>")
	})
}

func TestRenderDigest(t *testing.T) {
	t.Parallel()

	t.Run("rows render with badges", func(t *testing.T) {
		fail := testRecord()
		fail.Account = "bravo"
		fail.Result = schemas.ResultFail
		fail.LastError = "Invalid username or password"

		body, err := renderDigest(schemas.DigestWeekly, []schemas.StatusRecord{testRecord(), fail})
		require.NoError(t, err)
		assert.Contains(t, body, "Weekly Digest")
		assert.Contains(t, body, "acme")
		assert.Contains(t, body, "bravo")
		assert.Contains(t, body, "Invalid username or password")
	})

	t.Run("empty digest renders the placeholder row", func(t *testing.T) {
		body, err := renderDigest(schemas.DigestMonthly, nil)
		require.NoError(t, err)
		assert.Contains(t, body, "Monthly Digest")
		assert.Contains(t, body, "No data yet.")
	})
}

func TestFormatRunTime(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "—", formatRunTime(time.Time{}))
	assert.NotEqual(t, "—", formatRunTime(time.Now()))
}

func TestResolveRecipient(t *testing.T) {
	t.Parallel()

	m := New(config.MailerConfig{
		Username:   "smtp-user@example.com",
		AdminEmail: "admin@example.com",
	}, nil, zap.NewNop())

	assert.Equal(t, "ops@example.com", m.resolveRecipient("ops@example.com"))
	assert.Equal(t, "admin@example.com", m.resolveRecipient(""))

	m.cfg.AdminEmail = ""
	assert.Equal(t, "smtp-user@example.com", m.resolveRecipient(""))
}

func TestBadgeColor(t *testing.T) {
	t.Parallel()

	// Each result renders a distinct badge.
	colors := map[string]bool{}
	for _, result := range []schemas.RunResult{
		schemas.ResultSuccess, schemas.ResultFail, schemas.ResultNoData, schemas.ResultPending,
	} {
		colors[badgeColor(result)] = true
	}
	assert.Len(t, colors, 4)
}
