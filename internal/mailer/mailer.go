// internal/mailer/mailer.go

// Package mailer emails run reports and periodic digests over SMTP. It is a
// fire-and-forget notification sink: callers log failures and never retry.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	gomail "gopkg.in/gomail.v2"

	"github.com/xkilldash9x/portal-sentry/api/schemas"
	"github.com/xkilldash9x/portal-sentry/internal/config"
)

// Mailer sends run reports and digests via SMTP.
type Mailer struct {
	cfg    config.MailerConfig
	store  schemas.StatusStore
	logger *zap.Logger
}

var _ schemas.NotificationSink = (*Mailer)(nil)

// New creates a Mailer. The store is only needed for digests; a nil store
// disables them.
func New(cfg config.MailerConfig, store schemas.StatusStore, logger *zap.Logger) *Mailer {
	return &Mailer{
		cfg:    cfg,
		store:  store,
		logger: logger.Named("mailer"),
	}
}

// Send emails a single-run report, attaching the screenshot when available.
// Recipient precedence: explicit recipient, then admin address, then the SMTP
// user.
func (m *Mailer) Send(ctx context.Context, rec schemas.StatusRecord, recipient string) error {
	to := m.resolveRecipient(recipient)
	if to == "" {
		return fmt.Errorf("no recipient available for run report")
	}

	body, err := renderRunReport(rec)
	if err != nil {
		return fmt.Errorf("render run report: %w", err)
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from())
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", fmt.Sprintf("Run Report — %s — %s", rec.Account, rec.Result))
	msg.SetBody("text/html", body)
	if rec.ScreenshotPath != "" {
		msg.Attach(rec.ScreenshotPath)
	}

	if err := m.dialAndSend(ctx, msg); err != nil {
		return fmt.Errorf("send run report for %q: %w", rec.Account, err)
	}

	m.logger.Info("Run report sent",
		zap.String("account", rec.Account),
		zap.String("to", to))
	return nil
}

// SendDigest emails the latest status for every account included in the given
// cadence. Weekly and monthly digests only cover accounts that opted in.
func (m *Mailer) SendDigest(ctx context.Context, cadence schemas.DigestCadence) error {
	if m.store == nil {
		return fmt.Errorf("digests require a status store")
	}

	accounts, err := m.store.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("list accounts for digest: %w", err)
	}

	included := make(map[string]bool, len(accounts))
	for _, acc := range accounts {
		switch cadence {
		case schemas.DigestWeekly:
			included[acc.Name] = acc.WeeklyReport
		case schemas.DigestMonthly:
			included[acc.Name] = acc.MonthlyReport
		default:
			included[acc.Name] = true
		}
	}

	statuses, err := m.store.ListStatuses(ctx)
	if err != nil {
		return fmt.Errorf("list statuses for digest: %w", err)
	}
	rows := statuses[:0:0]
	for _, rec := range statuses {
		if included[rec.Account] {
			rows = append(rows, rec)
		}
	}

	body, err := renderDigest(cadence, rows)
	if err != nil {
		return fmt.Errorf("render digest: %w", err)
	}

	to := m.resolveRecipient("")
	if to == "" {
		return fmt.Errorf("no recipient available for digest")
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from())
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", digestSubject(cadence))
	msg.SetBody("text/html", body)

	if err := m.dialAndSend(ctx, msg); err != nil {
		return fmt.Errorf("send %s digest: %w", cadence, err)
	}

	m.logger.Info("Digest sent",
		zap.String("cadence", string(cadence)),
		zap.String("to", to),
		zap.Int("rows", len(rows)))
	return nil
}

// dialAndSend performs the blocking SMTP exchange while honoring context
// cancellation.
func (m *Mailer) dialAndSend(ctx context.Context, msg *gomail.Message) error {
	dialer := gomail.NewDialer(m.cfg.Host, m.cfg.Port, m.cfg.Username, m.cfg.Password)

	done := make(chan error, 1)
	go func() { done <- dialer.DialAndSend(msg) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Mailer) resolveRecipient(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if m.cfg.AdminEmail != "" {
		return m.cfg.AdminEmail
	}
	return m.cfg.Username
}

func (m *Mailer) from() string {
	if m.cfg.From != "" {
		return m.cfg.From
	}
	return m.cfg.Username
}

func digestSubject(cadence schemas.DigestCadence) string {
	switch cadence {
	case schemas.DigestWeekly:
		return "Portal Sentry — Weekly Digest"
	case schemas.DigestMonthly:
		return "Portal Sentry — Monthly Digest"
	default:
		return "Portal Sentry — Daily Digest"
	}
}

// formatRunTime renders a timestamp for email bodies; the zero time shows as
// a dash.
func formatRunTime(t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

// renderRunReport builds the single-run HTML body.
func renderRunReport(rec schemas.StatusRecord) (string, error) {
	var buf bytes.Buffer
	err := runReportTmpl.Execute(&buf, runReportData{
		Record:     rec,
		When:       formatRunTime(rec.LastRunAt),
		BadgeColor: badgeColor(rec.Result),
	})
	if err != nil {
		return "", err
	}
	return buf.String(), nil
}

// renderDigest builds the digest table HTML body.
func renderDigest(cadence schemas.DigestCadence, rows []schemas.StatusRecord) (string, error) {
	data := digestData{Subject: digestSubject(cadence)}
	for _, rec := range rows {
		data.Rows = append(data.Rows, digestRow{
			Record:     rec,
			When:       formatRunTime(rec.LastRunAt),
			BadgeColor: badgeColor(rec.Result),
		})
	}

	var buf bytes.Buffer
	if err := digestTmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func badgeColor(result schemas.RunResult) string {
	switch result {
	case schemas.ResultSuccess:
		return "#16a34a"
	case schemas.ResultFail:
		return "#dc2626"
	case schemas.ResultNoData:
		return "#6b7280"
	default:
		return "#f59e0b"
	}
}
