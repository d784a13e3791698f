// internal/classifier/classifier.go

// Package classifier decides whether a login attempt authenticated, using only
// the raw signals the browser driver captured. The target portal offers no
// stable DOM contract, so every heuristic lives behind this one pure function
// where it can be tested against fixture signals.
package classifier

import (
	"strings"

	"github.com/xkilldash9x/portal-sentry/api/schemas"
)

// authMarkers are keywords whose presence in the post-submit URL or page
// content indicates an authenticated area.
var authMarkers = []string{"dashboard", "transactions", "merchant", "welcome", "logout"}

// Classify renders the success/fail verdict for one attempt.
//
// Precedence, highest first:
//  1. required fields never found -> fail
//  2. password input or error-styled element still present -> fail
//  3. authenticated-area marker in URL or content, or URL moved off the
//     login page -> success
//  4. no positive evidence -> fail
//
// The final rule is a deliberate conservative bias: absence of evidence is
// treated as failure because the portal's markup is not under our control.
func Classify(sig schemas.RawSignals) schemas.RunResult {
	if !sig.FieldsFound {
		return schemas.ResultFail
	}
	if sig.PasswordFieldPresent || sig.ErrorMarkerPresent {
		return schemas.ResultFail
	}

	finalURL := strings.ToLower(sig.FinalURL)
	content := strings.ToLower(sig.PageContent)
	for _, marker := range authMarkers {
		if strings.Contains(finalURL, marker) || strings.Contains(content, marker) {
			return schemas.ResultSuccess
		}
	}

	// A URL that navigated away from the login page is positive evidence even
	// without a recognized keyword.
	if sig.SubmittedOK && finalURL != "" && !strings.Contains(finalURL, "login") {
		return schemas.ResultSuccess
	}

	return schemas.ResultFail
}
