package report

import (
	"bytes"
	"encoding/csv"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/prozo/dealpulse/internal/analyze"
	"github.com/prozo/dealpulse/internal/model"
)

// dailyHeader matches the column layout the sales team's sheet macros expect,
// padding columns included.
var dailyHeader = []string{
	"Deal Name", "Deal Owner Email", "Deal Type", "Last Activity Date",
	"Days Since Last Activity", "First Engagement Date", "Second Engagement Date",
	"Third Engagement Date", "Stage Change", "Alerts", "", "", "", "Latest Note", "", "", "",
}

var weeklyHeader = []string{
	"Deal Name", "", "Owner Email", "", "Deal Type", "No. of Contacts", "Amount",
	"Alerts", "", "", "", "", "",
}

// sanitize flattens newlines so multi-line CRM text stays on one CSV row.
func sanitize(v string) string {
	v = strings.ReplaceAll(v, "\n", " ")
	v = strings.ReplaceAll(v, "\r", " ")
	return strings.TrimSpace(v)
}

// dealTypeDisplay renders the raw type property for the report.
func dealTypeDisplay(raw string) string {
	return string(model.ClassifyDealType(raw))
}

func dailyRow(d *model.Deal) []string {
	return []string{
		sanitize(d.Name),
		sanitize(d.OwnerEmail),
		dealTypeDisplay(d.DealTypeRaw),
		sanitize(d.LastActivityFr),
		sanitize(d.DaysSinceLastActivity),
		sanitize(d.EngagementDates.First),
		sanitize(d.EngagementDates.Second),
		sanitize(d.EngagementDates.Third),
		sanitize(d.StageChange),
		sanitize(strings.Join(d.Alerts, ", ")),
		"", "", "",
		sanitize(d.LastNote),
		"", "", "",
	}
}

// RenderDailyCSV renders the per-deal alert sheet attached to daily emails.
func RenderDailyCSV(deals []*model.Deal) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(dailyHeader); err != nil {
		return nil, eris.Wrap(err, "report: write csv header")
	}
	for _, d := range deals {
		if err := w.Write(dailyRow(d)); err != nil {
			return nil, eris.Wrapf(err, "report: write csv row for deal %s", d.ID)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, eris.Wrap(err, "report: flush csv")
	}
	return buf.Bytes(), nil
}

func weeklyRow(a analyze.DealAlerts, d *model.Deal) []string {
	row := []string{sanitize(a.DealName), "", "", "", "", "", "", sanitize(strings.Join(a.Alerts, "; ")), "", "", "", "", ""}
	if d != nil {
		row[2] = sanitize(d.OwnerEmail)
		row[4] = sanitize(d.DealTypeRaw)
		row[5] = strconv.Itoa(d.NumContacts)
		row[6] = sanitize(d.Amount)
	}
	return row
}

// RenderWeeklyCSV renders the flagged-deal sheet for one owner (or, for the
// summary, the combined alert list). dealsByID supplies the deal details.
func RenderWeeklyCSV(alerts []analyze.DealAlerts, dealsByID map[string]*model.Deal) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(weeklyHeader); err != nil {
		return nil, eris.Wrap(err, "report: write csv header")
	}
	for _, a := range alerts {
		if err := w.Write(weeklyRow(a, dealsByID[a.DealID])); err != nil {
			return nil, eris.Wrapf(err, "report: write csv row for deal %s", a.DealID)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, eris.Wrap(err, "report: flush csv")
	}
	return buf.Bytes(), nil
}
