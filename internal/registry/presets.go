// internal/registry/presets.go
package registry

import (
	"strings"
)

// defaultExpression is the safe fallback cadence (hourly). Scheduling must
// never block account creation, so unknown presets resolve here instead of
// failing.
const defaultExpression = "0 * * * *"

// presetExpressions maps schedule preset tags to cron expressions.
var presetExpressions = map[string]string{
	"every_15m": "*/15 * * * *",
	"every_30m": "*/30 * * * *",
	"every_1h":  "0 * * * *",
	"every_2h":  "0 */2 * * *",
	"every_3h":  "0 */3 * * *",
	"every_6h":  "0 */6 * * *",
	"every_9h":  "0 */9 * * *",
	"every_12h": "0 */12 * * *",
	"every_24h": "0 0 * * *",
	"every_48h": "0 0 */2 * *",
	"every_3d":  "0 0 */3 * *",
	"daily_9am": "0 9 * * *",
	"weekly":    "0 9 * * MON",
	"monthly":   "0 9 1 * *",
}

// ResolveExpression turns a schedule specification into a cron expression.
// A raw cron expression (detected by token count) passes through unchanged;
// a recognized preset maps through the table; anything else, including the
// empty string, falls back to the hourly default.
func ResolveExpression(presetOrCron string) string {
	spec := strings.TrimSpace(presetOrCron)
	if spec == "" {
		return defaultExpression
	}
	if len(strings.Fields(spec)) >= 5 {
		return spec
	}
	if expr, ok := presetExpressions[spec]; ok {
		return expr
	}
	return defaultExpression
}
