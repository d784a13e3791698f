// api/schemas/schemas.go
package schemas

import (
	"time"
)

// RunResult is the outcome of a single login-health run.
type RunResult string

const (
	ResultSuccess RunResult = "success"
	ResultFail    RunResult = "fail"
	ResultNoData  RunResult = "no-data"
	// ResultPending is the default before any run has completed.
	ResultPending RunResult = "pending"
)

// Account is a merchant identity with credentials and a schedule/notification profile.
// Name is the sole identity key; uniqueness is enforced at creation.
type Account struct {
	Name     string `json:"name" db:"name"`
	Username string `json:"username" db:"username"`
	Password string `json:"password,omitempty" db:"password"`

	// LoginURL overrides the portal-wide default when set.
	LoginURL string `json:"loginUrl,omitempty" db:"login_url"`

	// Schedule is a preset tag (e.g. "every_1h", "daily_9am") or a raw cron expression.
	Schedule string `json:"schedule,omitempty" db:"schedule"`

	NotifyOnRun   bool   `json:"notifyOnRun" db:"notify_on_run"`
	EmailTo       string `json:"emailTo,omitempty" db:"email_to"`
	SendOnNoData  bool   `json:"sendOnNoData" db:"send_on_no_data"`
	WeeklyReport  bool   `json:"weeklyReport" db:"weekly_report"`
	MonthlyReport bool   `json:"monthlyReport" db:"monthly_report"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// AccountPatch is a partial update for an Account. Nil fields retain the prior
// value; boolean fields are coerced (overwritten), never merged.
type AccountPatch struct {
	Username      *string `json:"username,omitempty"`
	Password      *string `json:"password,omitempty"`
	LoginURL      *string `json:"loginUrl,omitempty"`
	Schedule      *string `json:"schedule,omitempty"`
	NotifyOnRun   *bool   `json:"notifyOnRun,omitempty"`
	EmailTo       *string `json:"emailTo,omitempty"`
	SendOnNoData  *bool   `json:"sendOnNoData,omitempty"`
	WeeklyReport  *bool   `json:"weeklyReport,omitempty"`
	MonthlyReport *bool   `json:"monthlyReport,omitempty"`
}

// Apply overlays the patch onto a copy of the given account and returns it.
func (p AccountPatch) Apply(acc Account) Account {
	if p.Username != nil {
		acc.Username = *p.Username
	}
	if p.Password != nil {
		acc.Password = *p.Password
	}
	if p.LoginURL != nil {
		acc.LoginURL = *p.LoginURL
	}
	if p.Schedule != nil {
		acc.Schedule = *p.Schedule
	}
	if p.NotifyOnRun != nil {
		acc.NotifyOnRun = *p.NotifyOnRun
	}
	if p.EmailTo != nil {
		acc.EmailTo = *p.EmailTo
	}
	if p.SendOnNoData != nil {
		acc.SendOnNoData = *p.SendOnNoData
	}
	if p.WeeklyReport != nil {
		acc.WeeklyReport = *p.WeeklyReport
	}
	if p.MonthlyReport != nil {
		acc.MonthlyReport = *p.MonthlyReport
	}
	return acc
}

// StatusRecord is the durable per-account snapshot of the most recent run.
// It is overwritten wholesale on each run, never appended or versioned.
type StatusRecord struct {
	Account   string    `json:"account" db:"account"`
	LastRunAt time.Time `json:"lastRunAt" db:"last_run_at"`
	Result    RunResult `json:"result" db:"result"`

	// RowCount is reserved for future transaction extraction.
	RowCount       int    `json:"rowCount" db:"row_count"`
	LastError      string `json:"lastError,omitempty" db:"last_error"`
	ScreenshotPath string `json:"screenshotPath,omitempty" db:"screenshot_path"`
}

// RawSignals carries everything the browser driver observed about a login
// attempt. The classifier renders the verdict from these alone, so the
// heuristics stay unit-testable without a browser.
type RawSignals struct {
	// FieldsFound reports whether the username, password, and submit controls
	// were all located before submission.
	FieldsFound bool `json:"fieldsFound"`
	// SubmittedOK reports whether the submit action itself was dispatched.
	SubmittedOK bool `json:"submittedOk"`
	// LoginURL is the URL the attempt started from.
	LoginURL string `json:"loginUrl"`
	// FinalURL is the page URL after the post-submit settle window.
	FinalURL string `json:"finalUrl"`
	// PasswordFieldPresent reports whether a password input is still visible
	// after submission.
	PasswordFieldPresent bool `json:"passwordFieldPresent"`
	// ErrorMarkerPresent reports whether an error-styled element was visible
	// after submission.
	ErrorMarkerPresent bool `json:"errorMarkerPresent"`
	// PageContent is the lowercased post-submit document text.
	PageContent string `json:"-"`
}

// LoginAttempt is the driver's raw result for one attempt.
type LoginAttempt struct {
	Signals        RawSignals
	ScreenshotPath string
}

// RunOutcome is the orchestrator's user-facing result for one account run.
type RunOutcome struct {
	OK      bool   `json:"ok"`
	Message string `json:"message"`
}

// DigestCadence selects which accounts a digest email covers.
type DigestCadence string

const (
	DigestDaily   DigestCadence = "daily"
	DigestWeekly  DigestCadence = "weekly"
	DigestMonthly DigestCadence = "monthly"
)
