// Package analyze implements the deal-timeline analysis engines behind the
// daily and weekly report jobs. The engines are pure functions of (deal list,
// now): they perform no I/O, and a malformed field on one deal never aborts
// analysis of the rest.
package analyze

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/prozo/dealpulse/internal/model"
)

// Daily-rule alert strings. These are an observable contract: the CSV and
// email renderers, and anyone filtering reports downstream, match on them.
const (
	AlertFirstEngagementPending = "First engagement pending (1+ days)"
	AlertEngagementGap12        = "Delay between 1st & 2nd engagement"
	AlertEngagementGap23        = "Delay between 2nd & 3rd engagement"
	AlertNoActivity3Days        = "No Activity in Last 3 Days"
	AlertRevivedColdWarm        = "Revived Cold/Warm Deal"
)

// Result is the daily engine's output: alerts keyed by deal ID (only deals
// with at least one fired alert appear) and metrics keyed by lower-cased
// owner email (every encountered owner appears, alerted or not).
type Result struct {
	AlertsByDeal   map[string][]string
	MetricsByOwner map[string]*model.OwnerMetrics
}

// Daily runs the daily hot-deal rule set over the fetched deals. It mutates
// each deal in place with the derived reporting fields (engagement dates, days
// since last activity, formatted last activity, stage change, alerts) and
// returns the aggregate result. All "now" comparisons use the given instant,
// which callers pass as time.Now().UTC().
func Daily(deals []*model.Deal, now time.Time) *Result {
	res := &Result{
		AlertsByDeal:   make(map[string][]string),
		MetricsByOwner: make(map[string]*model.OwnerMetrics),
	}
	for _, d := range deals {
		analyzeDeal(d, now, res)
	}
	return res
}

func analyzeDeal(d *model.Deal, now time.Time, res *Result) {
	owner := strings.ToLower(d.OwnerEmail)
	metrics, ok := res.MetricsByOwner[owner]
	if !ok {
		// Created before rule evaluation so alert-free owners still
		// show up with zero counters.
		metrics = &model.OwnerMetrics{}
		res.MetricsByOwner[owner] = metrics
	}

	dealName := d.Name
	if dealName == "" {
		dealName = "N/A"
	}
	dealType := model.ClassifyDealType(d.DealTypeRaw)

	anchor, anchorOK := parseDateTime("owner_assignment_date", d.OwnerAssignmentDate)
	qualifying := filterEngagements(d.Engagements, anchor, anchorOK)

	setDerivedFields(d, qualifying, now)

	var alerts []string

	// First engagement pending: hot deal assigned over a day ago with no
	// engagements logged at all.
	if dealType == model.DealTypeHot && anchorOK &&
		len(d.Engagements) == 0 && now.Sub(anchor) > 24*time.Hour {
		alerts = append(alerts, AlertFirstEngagementPending)
		metrics.FirstEngagementPending.Add(dealName)
	}

	// Engagement cadence: gaps between the first three qualifying
	// engagements must not exceed two days (strict).
	if dealType == model.DealTypeHot {
		if len(qualifying) >= 2 && qualifying[1].Sub(qualifying[0]) > 48*time.Hour {
			alerts = append(alerts, AlertEngagementGap12)
			metrics.EngagementGap12.Add(dealName)
		}
		if len(qualifying) >= 3 && qualifying[2].Sub(qualifying[1]) > 48*time.Hour {
			alerts = append(alerts, AlertEngagementGap23)
			metrics.EngagementGap23.Add(dealName)
		}
	}

	lastActivity, lastOK := parseDate("last_activity", d.LastActivity)

	if dealType == model.DealTypeHot && lastOK && now.Sub(lastActivity) > 72*time.Hour {
		alerts = append(alerts, AlertNoActivity3Days)
		metrics.NoActivity3Days.Add(dealName)
	}

	if (dealType == model.DealTypeCold || dealType == model.DealTypeWarm) &&
		lastOK && now.Sub(lastActivity) <= 24*time.Hour {
		alerts = append(alerts, AlertRevivedColdWarm)
		metrics.RevivedColdWarm.Add(dealName)
	}

	detectStageReversal(d, dealName, now, metrics, &alerts)

	d.Alerts = alerts
	if len(alerts) > 0 {
		res.AlertsByDeal[d.ID] = alerts
	}
}

// filterEngagements returns the ascending-sorted engagement instants at or
// after the owner-assignment anchor. Without a parseable anchor the result
// stays empty, which silently suppresses the gap rules — longstanding behavior
// the reports depend on, kept as is.
func filterEngagements(raw []int64, anchor time.Time, anchorOK bool) []time.Time {
	if !anchorOK || len(raw) == 0 {
		return nil
	}
	ms := make([]int64, len(raw))
	copy(ms, raw)
	sort.Slice(ms, func(i, j int) bool { return ms[i] < ms[j] })

	out := make([]time.Time, 0, len(ms))
	for _, m := range ms {
		if t := fromEpochMillis(m); !t.Before(anchor) {
			out = append(out, t)
		}
	}
	return out
}

// setDerivedFields writes the reporting fields the CSV/email layer reads by
// name: engagement_dates, days_since_last_activity, last_activity_fr and the
// stage_change default.
func setDerivedFields(d *model.Deal, qualifying []time.Time, now time.Time) {
	var ed model.EngagementDates
	if len(qualifying) >= 1 {
		ed.First = qualifying[0].Format(displayLayout)
	}
	if len(qualifying) >= 2 {
		ed.Second = qualifying[1].Format(displayLayout)
	}
	if len(qualifying) >= 3 {
		ed.Third = qualifying[2].Format(displayLayout)
	}
	d.EngagementDates = ed

	if t, ok := parseDate("last_activity", d.LastActivity); ok {
		// Floor, not truncate: a last-activity date ahead of now (timezone
		// skew in the CRM) reads -1, never 0.
		d.DaysSinceLastActivity = strconv.Itoa(int(math.Floor(now.Sub(t).Hours() / 24)))
	} else {
		d.DaysSinceLastActivity = "N/A"
	}

	if t, ok := parseDateTime("last_activity", d.LastActivity); ok {
		d.LastActivityFr = t.Format(displayLayout)
	} else {
		d.LastActivityFr = "N/A"
	}

	d.StageChange = "N/A"
}

// detectStageReversal inspects the deal-type change history: with at least two
// valid entries, it classifies the most recent transition and, if the values
// differ and the change happened within the last 24 hours, records it as a
// stage change. Only the hot→warm, warm→cold and hot→cold transitions count
// toward owner metrics; other transitions (e.g. warm→hot) still produce the
// stage_change field and alert.
func detectStageReversal(d *model.Deal, dealName string, now time.Time, metrics *model.OwnerMetrics, alerts *[]string) {
	if len(d.TypeHistory) < 2 {
		return
	}

	valid := make([]model.TypeChange, 0, len(d.TypeHistory))
	for _, e := range d.TypeHistory {
		if e.Value != "" && e.Timestamp != "" {
			valid = append(valid, e)
		}
	}
	if len(valid) < 2 {
		return
	}

	// ISO-8601 timestamps sort correctly as strings.
	sort.SliceStable(valid, func(i, j int) bool { return valid[i].Timestamp < valid[j].Timestamp })
	prev := valid[len(valid)-2]
	last := valid[len(valid)-1]

	lastTime, err := time.Parse(time.RFC3339, last.Timestamp)
	if err != nil {
		zap.L().Warn("analyze: unparseable stage-history timestamp",
			zap.String("deal_id", d.ID),
			zap.String("value", last.Timestamp),
			zap.Error(err),
		)
		return
	}

	if now.Sub(lastTime) > 24*time.Hour {
		zap.L().Debug("analyze: stage change older than 24h",
			zap.String("deal_id", d.ID),
		)
		return
	}

	from := model.ClassifyDealType(prev.Value)
	to := model.ClassifyDealType(last.Value)
	if from == to {
		zap.L().Debug("analyze: no real stage change",
			zap.String("deal_id", d.ID),
			zap.String("type", string(from)),
		)
		return
	}

	change := fmt.Sprintf("%s → %s", from, to)
	d.StageChange = change
	*alerts = append(*alerts, "Stage Reversal: "+change)

	switch {
	case from == model.DealTypeHot && to == model.DealTypeWarm:
		metrics.HotToWarm.Add(dealName)
	case from == model.DealTypeWarm && to == model.DealTypeCold:
		metrics.WarmToCold.Add(dealName)
	case from == model.DealTypeHot && to == model.DealTypeCold:
		metrics.HotToCold.Add(dealName)
	}

	zap.L().Info("analyze: detected stage change",
		zap.String("deal_id", d.ID),
		zap.String("change", change),
	)
}
