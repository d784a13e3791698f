// internal/registry/presets_test.go
package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveExpression(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		spec string
		want string
	}{
		{"empty falls back to hourly", "", "0 * * * *"},
		{"whitespace only falls back to hourly", "   ", "0 * * * *"},
		{"every_15m preset", "every_15m", "*/15 * * * *"},
		{"every_30m preset", "every_30m", "*/30 * * * *"},
		{"every_1h preset", "every_1h", "0 * * * *"},
		{"every_12h preset", "every_12h", "0 */12 * * *"},
		{"every_24h preset", "every_24h", "0 0 * * *"},
		{"every_48h preset", "every_48h", "0 0 */2 * *"},
		{"every_3d preset", "every_3d", "0 0 */3 * *"},
		{"daily_9am preset", "daily_9am", "0 9 * * *"},
		{"weekly preset", "weekly", "0 9 * * MON"},
		{"monthly preset", "monthly", "0 9 1 * *"},
		{"raw cron passes through", "*/5 1-5 * * MON", "*/5 1-5 * * MON"},
		{"raw cron with surrounding spaces is trimmed", "  0 12 * * *  ", "0 12 * * *"},
		{"unknown preset falls back to hourly", "bogus", "0 * * * *"},
		{"short token count is not raw cron", "* * *", "0 * * * *"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, ResolveExpression(tc.spec))
		})
	}
}
