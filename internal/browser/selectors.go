// internal/browser/selectors.go
package browser

// The portal's markup is not under our control, so each form role is located
// through an ordered list of selector candidates; the first one present in the
// document wins. Candidates mirror the loose selectors known to match the
// portal's login variants.

var usernameSelectors = []string{
	"input[name='username']",
	"#username",
	"input[type='email']",
	"input[name='email']",
}

var passwordSelectors = []string{
	"input[name='password']",
	"#password",
	"input[type='password']",
}

var submitSelectors = []string{
	"button[type='submit']",
	"#login-button",
	"button#login",
	"button[name='login']",
	"input[type='submit']",
	".btn-primary",
}

// errorMarkerSelector matches error-styled elements the portal renders on a
// rejected login.
const errorMarkerSelector = ".error, .alert-danger, .login-error"
