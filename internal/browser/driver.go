// internal/browser/driver.go

// Package browser drives an isolated headless Chrome instance through one
// login attempt and reports raw signals for classification. Each invocation
// launches and tears down its own browser process; contexts are never reused
// across accounts or runs, so credentials and cookies cannot bleed between
// them.
package browser

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/portal-sentry/api/schemas"
	"github.com/xkilldash9x/portal-sentry/internal/config"
)

// Driver launches one browser process per login attempt.
type Driver struct {
	cfg    config.BrowserConfig
	net    config.NetworkConfig
	logger *zap.Logger
}

// Ensure Driver satisfies the shared contract.
var _ schemas.LoginDriver = (*Driver)(nil)

// NewDriver builds a Driver from the browser and network configuration.
func NewDriver(cfg *config.Config, logger *zap.Logger) *Driver {
	return &Driver{
		cfg:    cfg.Browser,
		net:    cfg.Network,
		logger: logger.Named("browser"),
	}
}

// RunLoginAttempt navigates to loginURL, fills the credential form, submits,
// and returns the observed signals plus a best-effort screenshot. The whole
// attempt is bounded by timeout; exceeding it surfaces as a timeout-tagged
// RunError, never a silent false negative. The browser process is released on
// every exit path.
func (d *Driver) RunLoginAttempt(ctx context.Context, loginURL, username, password string, timeout time.Duration) (*schemas.LoginAttempt, error) {
	attempt := &schemas.LoginAttempt{
		Signals: schemas.RawSignals{LoginURL: loginURL},
	}

	log := d.logger.With(zap.String("login_url", loginURL))
	log.Info("Starting login attempt")

	// One exec allocator per invocation. The deferred cancels guarantee the
	// browser process dies with this call regardless of outcome.
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, d.allocatorOptions()...)
	defer allocCancel()

	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()

	runCtx, runCancel := context.WithTimeout(browserCtx, timeout)
	defer runCancel()

	// 1. Navigate and wait for initial content. The cache is disabled so every
	// attempt observes the live login page, not a stale copy.
	navCtx, navCancel := context.WithTimeout(runCtx, d.navigationTimeout())
	err := chromedp.Run(navCtx,
		network.Enable(),
		network.SetCacheDisabled(true),
		chromedp.Navigate(loginURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	navCancel()
	if err != nil {
		d.captureScreenshot(browserCtx, attempt, log)
		return attempt, d.classifyErr(err, fmt.Sprintf("navigation to %s failed", loginURL))
	}

	// 2. Locate the credential fields and the submit control.
	userSel, uErr := d.waitForAny(runCtx, usernameSelectors)
	passSel, pErr := d.waitForAny(runCtx, passwordSelectors)
	submitSel, sErr := d.waitForAny(runCtx, submitSelectors)
	if uErr != nil || pErr != nil || sErr != nil {
		d.captureScreenshot(browserCtx, attempt, log)
		if runCtx.Err() != nil {
			return attempt, schemas.NewRunError(schemas.FailureTimeout, "timed out waiting for login form", runCtx.Err())
		}
		return attempt, schemas.NewRunError(schemas.FailureFieldsNotFound,
			"login form not detected (username/password/submit missing)", errors.Join(uErr, pErr, sErr))
	}
	attempt.Signals.FieldsFound = true
	log.Debug("Login form located",
		zap.String("username_selector", userSel),
		zap.String("password_selector", passSel),
		zap.String("submit_selector", submitSel))

	// 3. Fill and submit.
	err = chromedp.Run(runCtx,
		chromedp.SendKeys(userSel, username, chromedp.ByQuery),
		chromedp.SendKeys(passSel, password, chromedp.ByQuery),
		chromedp.Click(submitSel, chromedp.ByQuery),
	)
	if err != nil {
		d.captureScreenshot(browserCtx, attempt, log)
		return attempt, d.classifyErr(err, "failed to fill or submit login form")
	}
	attempt.Signals.SubmittedOK = true

	// 4. Wait for a navigation or the settle window, whichever comes first.
	d.waitForOutcome(runCtx, loginURL)

	// 5. Collect post-submit signals.
	if err := d.collectSignals(runCtx, &attempt.Signals); err != nil {
		d.captureScreenshot(browserCtx, attempt, log)
		return attempt, d.classifyErr(err, "failed to read post-submit page state")
	}

	// 6. Screenshot on the success path too.
	d.captureScreenshot(browserCtx, attempt, log)

	log.Info("Login attempt finished",
		zap.String("final_url", attempt.Signals.FinalURL),
		zap.Bool("password_field_present", attempt.Signals.PasswordFieldPresent),
		zap.Bool("error_marker_present", attempt.Signals.ErrorMarkerPresent))

	return attempt, nil
}

// allocatorOptions assembles the exec allocator flags for a disposable,
// configurable browser instance.
func (d *Driver) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)

	opts = append(opts,
		chromedp.Flag("headless", d.cfg.Headless),
		chromedp.Flag("ignore-certificate-errors", d.cfg.IgnoreTLSErrors),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-gpu", d.cfg.Headless),
	)

	if d.cfg.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(d.cfg.ExecPath))
	}
	if d.cfg.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(d.cfg.UserAgent))
	}

	// Custom arguments from the config file, "--flag" or "--flag=value".
	for _, arg := range d.cfg.Args {
		parts := strings.SplitN(arg, "=", 2)
		name := strings.TrimPrefix(parts[0], "--")
		if len(parts) == 2 {
			opts = append(opts, chromedp.Flag(name, parts[1]))
		} else {
			opts = append(opts, chromedp.Flag(name, true))
		}
	}

	// Flags required for running inside containers.
	if runtime.GOOS == "linux" {
		opts = append(opts,
			chromedp.Flag("no-sandbox", true),
			chromedp.Flag("disable-dev-shm-usage", true),
			chromedp.Flag("disable-setuid-sandbox", true),
		)
	}

	return opts
}

// waitForAny polls the candidate selectors in priority order until one is
// present in the document or the field wait window closes. The first matching
// candidate wins.
func (d *Driver) waitForAny(ctx context.Context, candidates []string) (string, error) {
	deadline := time.Now().Add(d.net.FieldWait)
	for {
		for _, sel := range candidates {
			present, err := d.selectorPresent(ctx, sel)
			if err != nil {
				return "", err
			}
			if present {
				return sel, nil
			}
		}
		if time.Now().After(deadline) {
			return "", fmt.Errorf("no candidate matched within %s: %v", d.net.FieldWait, candidates)
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(d.net.PollInterval):
		}
	}
}

// selectorPresent evaluates whether a CSS selector matches any element.
func (d *Driver) selectorPresent(ctx context.Context, sel string) (bool, error) {
	var present bool
	script := fmt.Sprintf("document.querySelector(%q) !== null", sel)
	if err := chromedp.Run(ctx, chromedp.Evaluate(script, &present)); err != nil {
		return false, err
	}
	return present, nil
}

// waitForOutcome blocks until the page URL moves off the login URL or the
// settle window elapses, polling at the configured interval. Errors here are
// non-fatal; signal collection afterwards decides what actually happened.
func (d *Driver) waitForOutcome(ctx context.Context, loginURL string) {
	deadline := time.Now().Add(d.net.SettleWait)
	for time.Now().Before(deadline) {
		var current string
		if err := chromedp.Run(ctx, chromedp.Location(&current)); err != nil {
			return
		}
		if current != "" && current != loginURL {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(d.net.PollInterval):
		}
	}
}

// collectSignals reads the post-submit page state the classifier needs.
func (d *Driver) collectSignals(ctx context.Context, sig *schemas.RawSignals) error {
	var (
		finalURL    string
		passPresent bool
		errPresent  bool
		bodyText    string
	)

	passScript := fmt.Sprintf("document.querySelector(%q) !== null", strings.Join(passwordSelectors, ", "))
	errScript := fmt.Sprintf("document.querySelector(%q) !== null", errorMarkerSelector)

	err := chromedp.Run(ctx,
		chromedp.Location(&finalURL),
		chromedp.Evaluate(passScript, &passPresent),
		chromedp.Evaluate(errScript, &errPresent),
		chromedp.Evaluate("document.body ? document.body.innerText : ''", &bodyText),
	)
	if err != nil {
		return err
	}

	sig.FinalURL = finalURL
	sig.PasswordFieldPresent = passPresent
	sig.ErrorMarkerPresent = errPresent
	sig.PageContent = strings.ToLower(bodyText)
	return nil
}

// captureScreenshot saves a full-page screenshot under the configured
// directory. Best effort on both success and failure paths: a capture failure
// is logged and must never mask the original outcome.
func (d *Driver) captureScreenshot(browserCtx context.Context, attempt *schemas.LoginAttempt, log *zap.Logger) {
	// The run context may already be expired; give the capture its own bound.
	capCtx, cancel := context.WithTimeout(browserCtx, 10*time.Second)
	defer cancel()

	var buf []byte
	if err := chromedp.Run(capCtx, chromedp.FullScreenshot(&buf, 90)); err != nil {
		log.Warn("Screenshot capture failed.", zap.Error(err))
		return
	}

	if err := os.MkdirAll(d.cfg.ScreenshotDir, 0o755); err != nil {
		log.Warn("Could not create screenshot directory.", zap.Error(err))
		return
	}

	path := filepath.Join(d.cfg.ScreenshotDir, fmt.Sprintf("login-%s.png", uuid.New().String()))
	if err := os.WriteFile(path, buf, 0o644); err != nil {
		log.Warn("Could not write screenshot file.", zap.Error(err))
		return
	}

	attempt.ScreenshotPath = path
	log.Debug("Screenshot saved.", zap.String("path", path))
}

// classifyErr maps a raw chromedp error onto the run failure taxonomy.
func (d *Driver) classifyErr(err error, msg string) *schemas.RunError {
	if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "context deadline exceeded") {
		return schemas.NewRunError(schemas.FailureTimeout, msg, err)
	}
	return schemas.NewRunError(schemas.FailureUnexpected, msg, err)
}

// navigationTimeout returns the configured initial-load bound with a sane
// floor so a zero config value cannot hang navigation forever.
func (d *Driver) navigationTimeout() time.Duration {
	if d.net.NavigationTimeout > 0 {
		return d.net.NavigationTimeout
	}
	return 60 * time.Second
}
