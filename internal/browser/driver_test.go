// internal/browser/driver_test.go
package browser

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/portal-sentry/api/schemas"
	"github.com/xkilldash9x/portal-sentry/internal/config"
)

func newTestDriver(t *testing.T) *Driver {
	t.Helper()
	return NewDriver(config.NewDefaultConfig(), zap.NewNop())
}

func TestClassifyErr(t *testing.T) {
	t.Parallel()
	d := newTestDriver(t)

	t.Run("deadline exceeded maps to timeout", func(t *testing.T) {
		re := d.classifyErr(context.DeadlineExceeded, "navigation failed")
		assert.Equal(t, schemas.FailureTimeout, re.Kind)
		assert.Equal(t, "navigation failed", re.Message)
	})

	t.Run("wrapped deadline text maps to timeout", func(t *testing.T) {
		err := errors.New("chrome: context deadline exceeded somewhere deep")
		re := d.classifyErr(err, "submit failed")
		assert.Equal(t, schemas.FailureTimeout, re.Kind)
	})

	t.Run("anything else is unexpected", func(t *testing.T) {
		re := d.classifyErr(errors.New("websocket closed"), "navigation failed")
		assert.Equal(t, schemas.FailureUnexpected, re.Kind)
		assert.ErrorContains(t, re, "websocket closed")
	})
}

func TestNavigationTimeout(t *testing.T) {
	t.Parallel()
	d := newTestDriver(t)

	d.net.NavigationTimeout = 5 * time.Second
	assert.Equal(t, 5*time.Second, d.navigationTimeout())

	// A zero config value must not disable the bound.
	d.net.NavigationTimeout = 0
	assert.Equal(t, 60*time.Second, d.navigationTimeout())
}

func TestSelectorCandidates(t *testing.T) {
	t.Parallel()

	// The candidate lists drive the form hunt; an empty list would make every
	// attempt fail as fields_not_found.
	require.NotEmpty(t, usernameSelectors)
	require.NotEmpty(t, passwordSelectors)
	require.NotEmpty(t, submitSelectors)
	assert.NotEmpty(t, errorMarkerSelector)
}

func TestWaitForAnyHonorsContext(t *testing.T) {
	t.Parallel()
	d := newTestDriver(t)
	d.net.FieldWait = time.Minute

	// A dead context must end the poll loop, not the one-minute window: the
	// first evaluate fails and waitForAny returns promptly.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	_, err := d.waitForAny(ctx, []string{"#user"})
	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)
}
