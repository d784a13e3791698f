// internal/mailer/templates.go
package mailer

import (
	"html/template"

	"github.com/xkilldash9x/portal-sentry/api/schemas"
)

type runReportData struct {
	Record     schemas.StatusRecord
	When       string
	BadgeColor string
}

type digestRow struct {
	Record     schemas.StatusRecord
	When       string
	BadgeColor string
}

type digestData struct {
	Subject string
	Rows    []digestRow
}

var runReportTmpl = template.Must(template.New("run_report").Parse(`
<div style="font-family:ui-sans-serif,system-ui,Segoe UI,Roboto,Helvetica,Arial;">
  <h3 style="margin:0 0 8px 0;">Run Report — {{.Record.Account}}</h3>
  <p style="margin:0 0 12px 0;color:#6b7280;">{{.When}}</p>
  <p style="margin:0 0 12px 0;">
    Result:
    <span style="display:inline-block;padding:2px 8px;border-radius:999px;background:{{.BadgeColor}};color:#fff;text-transform:capitalize;">{{.Record.Result}}</span>
  </p>
  {{if .Record.LastError}}<p style="color:#dc2626;margin:0 0 12px 0;">Error: {{.Record.LastError}}</p>{{end}}
  {{if .Record.ScreenshotPath}}<p style="margin:0;">Screenshot attached.</p>{{end}}
</div>
`))

var digestTmpl = template.Must(template.New("digest").Parse(`
<div style="font-family:ui-sans-serif,system-ui,Segoe UI,Roboto,Helvetica,Arial;">
  <h2 style="margin:0 0 12px 0;">{{.Subject}}</h2>
  <table style="border-collapse:collapse;border:1px solid #e5e7eb;min-width:600px;">
    <thead>
      <tr style="background:#f9fafb;">
        <th style="padding:8px;border:1px solid #e5e7eb;text-align:left;">Account</th>
        <th style="padding:8px;border:1px solid #e5e7eb;text-align:left;">Result</th>
        <th style="padding:8px;border:1px solid #e5e7eb;text-align:left;">Last Run</th>
        <th style="padding:8px;border:1px solid #e5e7eb;text-align:left;">Error</th>
      </tr>
    </thead>
    <tbody>
      {{range .Rows}}
      <tr>
        <td style="padding:8px;border:1px solid #e5e7eb;">{{.Record.Account}}</td>
        <td style="padding:8px;border:1px solid #e5e7eb;">
          <span style="display:inline-block;padding:2px 8px;border-radius:999px;background:{{.BadgeColor}};color:#fff;text-transform:capitalize;">{{.Record.Result}}</span>
        </td>
        <td style="padding:8px;border:1px solid #e5e7eb;">{{.When}}</td>
        <td style="padding:8px;border:1px solid #e5e7eb;">{{if .Record.LastError}}{{.Record.LastError}}{{else}}—{{end}}</td>
      </tr>
      {{else}}
      <tr><td colspan="4" style="padding:12px;text-align:center;color:#6b7280;">No data yet.</td></tr>
      {{end}}
    </tbody>
  </table>
</div>
`))
