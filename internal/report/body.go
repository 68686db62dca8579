package report

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/prozo/dealpulse/internal/model"
)

var titleCaser = cases.Title(language.English)

// GreetingName derives a first name from an email's local part
// ("riya.sharma@prozo.com" becomes "Riya"). Falls back to "there".
func GreetingName(email string) string {
	if email == "" {
		return "there"
	}
	local, _, _ := strings.Cut(email, "@")
	first, _, _ := strings.Cut(local, ".")
	if first == "" {
		return "there"
	}
	return titleCaser.String(first)
}

const displayDate = "02 Jan 2006"

type metricRow struct {
	Label  string
	Count  int
	Status string
	Color  string
}

func dailyMetricRows(m model.OwnerMetrics) []metricRow {
	return []metricRow{
		{"First Engagement Pending (1+ Days)", m.FirstEngagementPending.Count, "Follow-up Needed", "red"},
		{"1st → 2nd Engagement Delay", m.EngagementGap12.Count, "Delay", "orange"},
		{"2nd → 3rd Engagement Delay", m.EngagementGap23.Count, "Delay", "orange"},
		{"No Activity in Last 3 Days", m.NoActivity3Days.Count, "Inactive", "red"},
		{"Revived Cold/Warm Deals", m.RevivedColdWarm.Count, "Active Again", "green"},
		{"Stage Reversal: Hot → Warm", m.HotToWarm.Count, "OK", ""},
		{"Stage Reversal: Warm → Cold", m.WarmToCold.Count, "OK", ""},
		{"Stage Reversal: Hot → Cold", m.HotToCold.Count, "OK", ""},
	}
}

var dailyOwnerTmpl = template.Must(template.New("daily_owner").Parse(`
<p>Hi {{.Name}},</p>

<p>Here's your daily performance snapshot on Hot Deals from HubSpot as of {{.Date}}.</p>

<p>Action Summary:</p>

<table border="1" cellpadding="5" cellspacing="0" style="border-collapse: collapse; font-family: Arial, sans-serif; font-size: 14px;">
<tr><th>Metric</th><th>Count</th><th>Status</th></tr>
{{range .Rows}}<tr><td>{{.Label}}</td><td>{{.Count}}</td><td{{if .Color}} style="color: {{.Color}};"{{end}}>{{.Status}}</td></tr>
{{end}}</table>

<p>Please refer to the attached file for detailed deal-level insights.<br>
<strong>Reminder:</strong> Any stage reversal must be accompanied by a task. Otherwise, please move such deals to <strong>LOST</strong>.</p>

<p>Warm regards,<br>
{{.Sender}}</p>
`))

var dailySummaryTmpl = template.Must(template.New("daily_summary").Parse(`
<p>Hi {{.Name}},</p>

<p>Please find attached the consolidated MQL performance summary for all deal owners.</p>
{{if .Insight}}
<p>{{.Insight}}</p>
{{end}}
<p>Action Summary:</p>

<table border="1" cellpadding="5" cellspacing="0" style="border-collapse: collapse; font-family: Arial, sans-serif; font-size: 14px;">
<tr><th>Metric</th><th>Count</th><th>Status</th></tr>
{{range .Rows}}<tr><td>{{.Label}}</td><td>{{.Count}}</td><td{{if .Color}} style="color: {{.Color}};"{{end}}>{{.Status}}</td></tr>
{{end}}</table>

<p>This summary will help in identifying patterns across the pipeline
and ensure timely interventions by team leaders.</p>

<p>Warm regards,<br>
{{.Sender}}</p>
`))

var weeklyOwnerTmpl = template.Must(template.New("weekly_owner").Parse(`
<p>Hi {{.Name}},</p>

<p>Please find below your weekly diligence report for <b>Hot Deals</b>, highlighting gaps in data quality and commercial hygiene.<br>
This is critical for ensuring every Hot Deal is dealroom-ready and qualified for conversion.</p>

<p><b>Diligence Gaps Identified</b></p>

<p>
1. Hot Deals Missing 2+ Contacts: <b>{{.Metrics.HotMissingContacts}}</b><br>
2. Hot Deals Missing Designations: <b>{{.Metrics.HotMissingDesignations}}</b><br>
3. Hot Deals with No Valid MBR (&lt; ₹1,000): <b>{{.Metrics.HotLowMBR}}</b><br>
4. Deals with No Deal Type: <b>{{.Metrics.MissingType}}</b>
</p>

<p>The attached sheet lists each flagged deal, ownership, and exact missing details.<br>
Please update them within the week to keep your pipeline clean and leadership-ready.</p>

<p>Thanks,<br>
{{.Sender}}</p>
`))

var weeklySummaryTmpl = template.Must(template.New("weekly_summary").Parse(`
<p>Hi {{.Name}},</p>

<p>Here's the summary report for all Hot Deals flagged this week.</p>

<p>
1. Hot Deals Missing 2+ Contacts: <b>{{.Metrics.HotMissingContacts}}</b><br>
2. Hot Deals Missing Designations: <b>{{.Metrics.HotMissingDesignations}}</b><br>
3. Hot Deals with No Valid MBR (&lt; ₹1,000): <b>{{.Metrics.HotLowMBR}}</b><br>
4. Deals with No Deal Type: <b>{{.Metrics.MissingType}}</b>
</p>

<p>Thanks,<br>
{{.Sender}}</p>
`))

// DailyOwnerBody renders the HTML body of a deal owner's daily report.
func DailyOwnerBody(ownerEmail, sender string, metrics model.OwnerMetrics, now time.Time) (string, error) {
	return render(dailyOwnerTmpl, map[string]any{
		"Name":   GreetingName(ownerEmail),
		"Date":   now.Format(displayDate),
		"Rows":   dailyMetricRows(metrics),
		"Sender": sender,
	})
}

// DailySummaryBody renders the consolidated daily summary, with totals summed
// across non-excluded owners and an optional AI-written insight paragraph.
func DailySummaryBody(recipient, sender string, totals model.OwnerMetrics, insight string) (string, error) {
	return render(dailySummaryTmpl, map[string]any{
		"Name":    GreetingName(recipient),
		"Rows":    dailyMetricRows(totals),
		"Insight": insight,
		"Sender":  sender,
	})
}

// WeeklyOwnerBody renders the HTML body of an owner's weekly diligence report.
func WeeklyOwnerBody(ownerEmail, sender string, metrics model.WeeklyMetrics) (string, error) {
	return render(weeklyOwnerTmpl, map[string]any{
		"Name":    GreetingName(ownerEmail),
		"Metrics": metrics,
		"Sender":  sender,
	})
}

// WeeklySummaryBody renders the weekly summary body with cross-owner totals.
func WeeklySummaryBody(recipient, sender string, totals model.WeeklyMetrics) (string, error) {
	return render(weeklySummaryTmpl, map[string]any{
		"Name":    GreetingName(recipient),
		"Metrics": totals,
		"Sender":  sender,
	})
}

func render(tmpl *template.Template, data any) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", eris.Wrap(err, fmt.Sprintf("report: render %s", tmpl.Name()))
	}
	return buf.String(), nil
}

// DailySubject returns the subject line for a daily report email.
func DailySubject(summary bool, now time.Time) string {
	if summary {
		return "MQL Performance Summary Report || " + now.Format(displayDate)
	}
	return "Your HubSpot To-Do || Hot Deals Performance Summary || " + now.Format(displayDate)
}

// WeeklySubject returns the subject line for a weekly report email.
func WeeklySubject(summary bool, now time.Time) string {
	if summary {
		return "SUMMARY || Hot Deals Performance || " + now.Format(displayDate)
	}
	return "Hot Deals Performance || " + now.Format(displayDate)
}
