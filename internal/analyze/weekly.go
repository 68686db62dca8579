package analyze

import (
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/prozo/dealpulse/internal/model"
)

// Weekly-rule alert strings.
const (
	AlertMissingType     = "Missing Deal Type"
	AlertTooFewContacts  = "Less than 2 associated contacts"
	AlertLowMBR          = "MBR less than ₹1,000"
	alertMissingDesigFmt = "Missing designation for %s"
)

// DealAlerts lists the weekly alerts fired for one deal.
type DealAlerts struct {
	DealID   string   `json:"deal_id"`
	DealName string   `json:"deal_name"`
	Alerts   []string `json:"alerts"`
}

// WeeklyResult is the weekly engine's output, keyed by lower-cased owner
// email. Every owner appears in both maps; AlertsByOwner lists only deals
// that fired at least one alert.
type WeeklyResult struct {
	AlertsByOwner  map[string][]DealAlerts
	MetricsByOwner map[string]*model.WeeklyMetrics
}

// Weekly runs the data-quality rule set over deals grouped by owner: every
// deal must carry a type, and hot deals must have at least two contacts with
// designations and a valid MBR amount. The weekly rules are stateless and
// need no reference instant.
func Weekly(dealsByOwner map[string][]*model.Deal) *WeeklyResult {
	res := &WeeklyResult{
		AlertsByOwner:  make(map[string][]DealAlerts),
		MetricsByOwner: make(map[string]*model.WeeklyMetrics),
	}

	for owner, deals := range dealsByOwner {
		key := strings.ToLower(owner)
		metrics := &model.WeeklyMetrics{}
		res.MetricsByOwner[key] = metrics
		res.AlertsByOwner[key] = nil

		for _, d := range deals {
			alerts := weeklyDealAlerts(d, metrics)
			if len(alerts) == 0 {
				continue
			}
			zap.L().Info("analyze: weekly alerts",
				zap.String("deal_id", d.ID),
				zap.String("owner", key),
				zap.Strings("alerts", alerts),
			)
			res.AlertsByOwner[key] = append(res.AlertsByOwner[key], DealAlerts{
				DealID:   d.ID,
				DealName: d.Name,
				Alerts:   alerts,
			})
		}
	}
	return res
}

func weeklyDealAlerts(d *model.Deal, metrics *model.WeeklyMetrics) []string {
	var alerts []string

	rawType := strings.ToLower(strings.TrimSpace(d.DealTypeRaw))
	if rawType == "" || rawType == "n/a" {
		metrics.MissingType++
		alerts = append(alerts, AlertMissingType)
	}

	// The data-quality checks beyond type presence apply to hot deals only.
	if rawType != "true" {
		return alerts
	}

	if d.NumContacts < 2 {
		metrics.HotMissingContacts++
		alerts = append(alerts, AlertTooFewContacts)
	}

	var missing []string
	for _, c := range d.Contacts {
		title := strings.ToLower(strings.TrimSpace(c.JobTitle))
		if title == "" || title == "none" {
			missing = append(missing, strings.TrimSpace(c.FirstName+" "+c.LastName))
		}
	}
	if len(missing) > 0 {
		metrics.HotMissingDesignations++
		for _, name := range missing {
			alerts = append(alerts, fmt.Sprintf(alertMissingDesigFmt, name))
		}
	}

	if parseAmount(d.Amount) < 1000 {
		metrics.HotLowMBR++
		alerts = append(alerts, AlertLowMBR)
	}

	return alerts
}

// parseAmount reads the CRM amount property; absent, sentinel or unparseable
// values count as zero.
func parseAmount(raw string) float64 {
	if raw == "" || raw == "N/A" {
		return 0
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		zap.L().Warn("analyze: unparseable amount", zap.String("value", raw), zap.Error(err))
		return 0
	}
	return v
}
