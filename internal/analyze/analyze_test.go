package analyze

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prozo/dealpulse/internal/model"
)

var now = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

func ms(t time.Time) int64 { return t.UnixMilli() }

func iso(t time.Time) string { return t.Format("2006-01-02T15:04:05") }

func TestClassifyDealType(t *testing.T) {
	cases := map[string]model.DealType{
		"true":  model.DealTypeHot,
		"TRUE":  model.DealTypeHot,
		"false": model.DealTypeWarm,
		"cold":  model.DealTypeCold,
		"Cold":  model.DealTypeCold,
		"":      model.DealTypeUnknown,
		"N/A":   model.DealTypeUnknown,
		"hot":   model.DealTypeUnknown,
	}
	for raw, want := range cases {
		assert.Equal(t, want, model.ClassifyDealType(raw), "raw=%q", raw)
	}
}

func TestDaily_FirstEngagementPending(t *testing.T) {
	assigned := now.Add(-30 * time.Hour)
	deal := &model.Deal{
		ID:                  "d1",
		Name:                "Acme Warehousing",
		OwnerEmail:          "Riya.Sharma@prozo.com",
		DealTypeRaw:         "true",
		OwnerAssignmentDate: iso(assigned),
		LastActivity:        "N/A",
	}

	res := Daily([]*model.Deal{deal}, now)

	require.Contains(t, res.AlertsByDeal, "d1")
	assert.Equal(t, []string{AlertFirstEngagementPending}, res.AlertsByDeal["d1"])

	m := res.MetricsByOwner["riya.sharma@prozo.com"]
	require.NotNil(t, m, "metrics keyed by lower-cased owner email")
	assert.Equal(t, 1, m.FirstEngagementPending.Count)
	assert.Equal(t, []string{"Acme Warehousing"}, m.FirstEngagementPending.Deals)
}

func TestDaily_FirstEngagementPending_Boundary(t *testing.T) {
	// Assigned exactly 24h ago: strictly-greater comparison, no alert.
	deal := &model.Deal{
		ID:                  "d1",
		Name:                "Edge Deal",
		OwnerEmail:          "a@b.com",
		DealTypeRaw:         "true",
		OwnerAssignmentDate: iso(now.Add(-24 * time.Hour)),
	}
	res := Daily([]*model.Deal{deal}, now)
	assert.NotContains(t, res.AlertsByDeal, "d1")
	assert.Equal(t, 0, res.MetricsByOwner["a@b.com"].FirstEngagementPending.Count)
}

func TestDaily_EngagementGaps_Boundary(t *testing.T) {
	// Assignment at day -1; engagements at day 0, 3, 5. Gap1 = 3d (> 2d,
	// fires), gap2 = 2d exactly (not > 2d, does not fire).
	base := now.Add(-10 * 24 * time.Hour)
	deal := &model.Deal{
		ID:                  "d1",
		Name:                "Gappy Deal",
		OwnerEmail:          "a@b.com",
		DealTypeRaw:         "true",
		OwnerAssignmentDate: iso(base.Add(-24 * time.Hour)),
		Engagements: []int64{
			ms(base),
			ms(base.Add(3 * 24 * time.Hour)),
			ms(base.Add(5 * 24 * time.Hour)),
		},
	}

	res := Daily([]*model.Deal{deal}, now)

	require.Contains(t, res.AlertsByDeal, "d1")
	assert.Equal(t, []string{AlertEngagementGap12}, res.AlertsByDeal["d1"])

	m := res.MetricsByOwner["a@b.com"]
	assert.Equal(t, 1, m.EngagementGap12.Count)
	assert.Equal(t, 0, m.EngagementGap23.Count)
}

func TestDaily_EngagementsUnsortedInput(t *testing.T) {
	base := now.Add(-10 * 24 * time.Hour)
	deal := &model.Deal{
		ID:                  "d1",
		Name:                "Shuffled",
		OwnerEmail:          "a@b.com",
		DealTypeRaw:         "true",
		OwnerAssignmentDate: iso(base.Add(-time.Hour)),
		Engagements: []int64{
			ms(base.Add(5 * 24 * time.Hour)),
			ms(base),
			ms(base.Add(3 * 24 * time.Hour)),
		},
	}

	res := Daily([]*model.Deal{deal}, now)

	assert.Equal(t, base.Format(displayLayout), deal.EngagementDates.First)
	assert.Equal(t, base.Add(3*24*time.Hour).Format(displayLayout), deal.EngagementDates.Second)
	assert.Equal(t, base.Add(5*24*time.Hour).Format(displayLayout), deal.EngagementDates.Third)
	assert.Contains(t, res.AlertsByDeal["d1"], AlertEngagementGap12)
}

func TestDaily_MissingAnchorSuppressesGapRules(t *testing.T) {
	// No owner-assignment date: the qualifying list stays empty and the
	// gap rules never fire, regardless of engagement spacing.
	base := now.Add(-10 * 24 * time.Hour)
	deal := &model.Deal{
		ID:          "d1",
		Name:        "Anchorless",
		OwnerEmail:  "a@b.com",
		DealTypeRaw: "true",
		Engagements: []int64{
			ms(base),
			ms(base.Add(5 * 24 * time.Hour)),
		},
	}

	res := Daily([]*model.Deal{deal}, now)

	assert.NotContains(t, res.AlertsByDeal, "d1")
	assert.Empty(t, deal.EngagementDates.First)
	m := res.MetricsByOwner["a@b.com"]
	assert.Equal(t, 0, m.EngagementGap12.Count)
	assert.Equal(t, 0, m.FirstEngagementPending.Count, "pending rule also needs a parseable anchor")
}

func TestDaily_EngagementsBeforeAnchorExcluded(t *testing.T) {
	anchor := now.Add(-5 * 24 * time.Hour)
	deal := &model.Deal{
		ID:                  "d1",
		Name:                "Pre-anchor",
		OwnerEmail:          "a@b.com",
		DealTypeRaw:         "true",
		OwnerAssignmentDate: iso(anchor),
		Engagements: []int64{
			ms(anchor.Add(-48 * time.Hour)),
			ms(anchor.Add(time.Hour)),
		},
	}

	Daily([]*model.Deal{deal}, now)

	assert.Equal(t, anchor.Add(time.Hour).Format(displayLayout), deal.EngagementDates.First)
	assert.Empty(t, deal.EngagementDates.Second)
}

func TestDaily_InactiveHotDeal(t *testing.T) {
	deal := &model.Deal{
		ID:           "d1",
		Name:         "Sleepy",
		OwnerEmail:   "a@b.com",
		DealTypeRaw:  "true",
		LastActivity: iso(now.Add(-5*24*time.Hour)) + ".000Z",
	}

	res := Daily([]*model.Deal{deal}, now)

	assert.Equal(t, []string{AlertNoActivity3Days}, res.AlertsByDeal["d1"])
	assert.Equal(t, 1, res.MetricsByOwner["a@b.com"].NoActivity3Days.Count)
	assert.Equal(t, "5", deal.DaysSinceLastActivity)
	assert.NotEqual(t, "N/A", deal.LastActivityFr)
}

func TestDaily_FutureLastActivityFloorsNegative(t *testing.T) {
	// A CRM entry dated on tomorrow's calendar day (timezone skew) is under
	// a day in the future, so the count floors to -1 rather than truncating
	// to 0.
	deal := &model.Deal{
		ID:           "d1",
		Name:         "Ahead",
		OwnerEmail:   "a@b.com",
		DealTypeRaw:  "true",
		LastActivity: iso(now.Add(24*time.Hour)) + ".000Z",
	}

	Daily([]*model.Deal{deal}, now)

	assert.Equal(t, "-1", deal.DaysSinceLastActivity)
}

func TestDaily_RevivedColdWarm(t *testing.T) {
	for _, raw := range []string{"cold", "false"} {
		deal := &model.Deal{
			ID:           "d1",
			Name:         "Back From The Dead",
			OwnerEmail:   "a@b.com",
			DealTypeRaw:  raw,
			LastActivity: iso(now.Add(-6 * time.Hour)),
		}
		res := Daily([]*model.Deal{deal}, now)
		assert.Equal(t, []string{AlertRevivedColdWarm}, res.AlertsByDeal["d1"], "raw=%q", raw)
	}

	// Hot deals never fire the revival rule.
	deal := &model.Deal{
		ID:           "d2",
		Name:         "Hot",
		OwnerEmail:   "a@b.com",
		DealTypeRaw:  "true",
		LastActivity: iso(now.Add(-6 * time.Hour)),
	}
	res := Daily([]*model.Deal{deal}, now)
	assert.NotContains(t, res.AlertsByDeal, "d2")
}

func TestDaily_StageReversal_CountedTransition(t *testing.T) {
	t0 := now.Add(-3 * time.Hour)
	deal := &model.Deal{
		ID:          "d1",
		Name:        "Backslider",
		OwnerEmail:  "a@b.com",
		DealTypeRaw: "false",
		TypeHistory: []model.TypeChange{
			{Value: "true", Timestamp: t0.Format(time.RFC3339)},
			{Value: "false", Timestamp: t0.Add(time.Hour).Format(time.RFC3339)},
		},
	}

	res := Daily([]*model.Deal{deal}, now)

	assert.Equal(t, "hot → warm", deal.StageChange)
	assert.Equal(t, []string{"Stage Reversal: hot → warm"}, res.AlertsByDeal["d1"])
	m := res.MetricsByOwner["a@b.com"]
	assert.Equal(t, 1, m.HotToWarm.Count)
	assert.Equal(t, 0, m.WarmToCold.Count)
	assert.Equal(t, 0, m.HotToCold.Count)
}

func TestDaily_StageReversal_UncountedTransition(t *testing.T) {
	// warm → hot produces the stage_change field and the alert but does not
	// increment any of the three counted transitions.
	t0 := now.Add(-3 * time.Hour)
	deal := &model.Deal{
		ID:          "d1",
		Name:        "Upgrader",
		OwnerEmail:  "a@b.com",
		DealTypeRaw: "true",
		TypeHistory: []model.TypeChange{
			{Value: "false", Timestamp: t0.Format(time.RFC3339)},
			{Value: "true", Timestamp: t0.Add(time.Hour).Format(time.RFC3339)},
		},
	}

	res := Daily([]*model.Deal{deal}, now)

	assert.Equal(t, "warm → hot", deal.StageChange)
	assert.Contains(t, res.AlertsByDeal["d1"], "Stage Reversal: warm → hot")
	m := res.MetricsByOwner["a@b.com"]
	assert.Zero(t, m.HotToWarm.Count)
	assert.Zero(t, m.WarmToCold.Count)
	assert.Zero(t, m.HotToCold.Count)
}

func TestDaily_StageReversal_StaleChangeIgnored(t *testing.T) {
	t0 := now.Add(-40 * time.Hour)
	deal := &model.Deal{
		ID:          "d1",
		Name:        "Old News",
		OwnerEmail:  "a@b.com",
		DealTypeRaw: "false",
		TypeHistory: []model.TypeChange{
			{Value: "true", Timestamp: t0.Format(time.RFC3339)},
			{Value: "false", Timestamp: t0.Add(time.Hour).Format(time.RFC3339)},
		},
	}

	res := Daily([]*model.Deal{deal}, now)

	assert.Equal(t, "N/A", deal.StageChange)
	assert.NotContains(t, res.AlertsByDeal, "d1")
	assert.Zero(t, res.MetricsByOwner["a@b.com"].HotToWarm.Count)
}

func TestDaily_StageReversal_MalformedEntriesFiltered(t *testing.T) {
	t0 := now.Add(-2 * time.Hour)
	deal := &model.Deal{
		ID:          "d1",
		Name:        "Messy History",
		OwnerEmail:  "a@b.com",
		DealTypeRaw: "cold",
		TypeHistory: []model.TypeChange{
			{Value: "true"}, // missing timestamp
			{Timestamp: t0.Format(time.RFC3339)}, // missing value
			{Value: "false", Timestamp: t0.Format(time.RFC3339)},
			{Value: "cold", Timestamp: t0.Add(time.Hour).Format(time.RFC3339)},
		},
	}

	res := Daily([]*model.Deal{deal}, now)

	assert.Equal(t, "warm → cold", deal.StageChange)
	assert.Equal(t, 1, res.MetricsByOwner["a@b.com"].WarmToCold.Count)

	// A single valid entry is not enough to evaluate a transition.
	deal2 := &model.Deal{
		ID:          "d2",
		Name:        "Thin History",
		OwnerEmail:  "a@b.com",
		DealTypeRaw: "cold",
		TypeHistory: []model.TypeChange{
			{Value: "true"},
			{Value: "cold", Timestamp: t0.Format(time.RFC3339)},
		},
	}
	res = Daily([]*model.Deal{deal2}, now)
	assert.Equal(t, "N/A", deal2.StageChange)
}

func TestDaily_RuleOrderIsStable(t *testing.T) {
	base := now.Add(-10 * 24 * time.Hour)
	t0 := now.Add(-2 * time.Hour)
	deal := &model.Deal{
		ID:                  "d1",
		Name:                "Everything Wrong",
		OwnerEmail:          "a@b.com",
		DealTypeRaw:         "true",
		OwnerAssignmentDate: iso(base.Add(-time.Hour)),
		LastActivity:        iso(now.Add(-4 * 24 * time.Hour)),
		Engagements: []int64{
			ms(base),
			ms(base.Add(3 * 24 * time.Hour)),
			ms(base.Add(7 * 24 * time.Hour)),
		},
		TypeHistory: []model.TypeChange{
			{Value: "true", Timestamp: t0.Format(time.RFC3339)},
			{Value: "cold", Timestamp: t0.Add(time.Minute).Format(time.RFC3339)},
		},
	}

	res := Daily([]*model.Deal{deal}, now)

	assert.Equal(t, []string{
		AlertEngagementGap12,
		AlertEngagementGap23,
		AlertNoActivity3Days,
		"Stage Reversal: hot → cold",
	}, res.AlertsByDeal["d1"])
	assert.Equal(t, 1, res.MetricsByOwner["a@b.com"].HotToCold.Count)
}

func TestDaily_OwnerWithNoAlertsStillAggregated(t *testing.T) {
	deal := &model.Deal{
		ID:          "d1",
		Name:        "Quiet Deal",
		OwnerEmail:  "Quiet@prozo.com",
		DealTypeRaw: "false",
	}

	res := Daily([]*model.Deal{deal}, now)

	assert.Empty(t, res.AlertsByDeal)
	m := res.MetricsByOwner["quiet@prozo.com"]
	require.NotNil(t, m)
	assert.Zero(t, m.FirstEngagementPending.Count)
	assert.Zero(t, m.RevivedColdWarm.Count)
}

func TestDaily_Deterministic(t *testing.T) {
	base := now.Add(-10 * 24 * time.Hour)
	mkDeal := func() *model.Deal {
		return &model.Deal{
			ID:                  "d1",
			Name:                "Repeatable",
			OwnerEmail:          "a@b.com",
			DealTypeRaw:         "true",
			OwnerAssignmentDate: iso(base.Add(-time.Hour)),
			LastActivity:        iso(now.Add(-4 * 24 * time.Hour)),
			Engagements:         []int64{ms(base.Add(4 * 24 * time.Hour)), ms(base)},
		}
	}

	d1, d2 := mkDeal(), mkDeal()
	r1 := Daily([]*model.Deal{d1}, now)
	r2 := Daily([]*model.Deal{d2}, now)

	assert.Equal(t, r1.AlertsByDeal, r2.AlertsByDeal)
	assert.Equal(t, r1.MetricsByOwner, r2.MetricsByOwner)
	assert.Equal(t, d1, d2)

	// Re-running on the same deal after a derived reset is idempotent.
	d1.ResetDerived()
	r3 := Daily([]*model.Deal{d1}, now)
	assert.Equal(t, r1.AlertsByDeal, r3.AlertsByDeal)
	assert.Equal(t, r1.MetricsByOwner, r3.MetricsByOwner)
}

func TestDaily_BadDataIsIsolated(t *testing.T) {
	bad := &model.Deal{
		ID:                  "bad",
		Name:                "Mangled",
		OwnerEmail:          "a@b.com",
		DealTypeRaw:         "true",
		OwnerAssignmentDate: "not-a-date",
		LastActivity:        "garbage",
		TypeHistory: []model.TypeChange{
			{Value: "true", Timestamp: "also garbage"},
			{Value: "false", Timestamp: "still garbage"},
		},
	}
	good := &model.Deal{
		ID:           "good",
		Name:         "Fine Deal",
		OwnerEmail:   "a@b.com",
		DealTypeRaw:  "cold",
		LastActivity: iso(now.Add(-2 * time.Hour)),
	}

	res := Daily([]*model.Deal{bad, good}, now)

	assert.NotContains(t, res.AlertsByDeal, "bad")
	assert.Equal(t, "N/A", bad.DaysSinceLastActivity)
	assert.Equal(t, "N/A", bad.LastActivityFr)
	assert.Equal(t, "N/A", bad.StageChange)
	assert.Equal(t, []string{AlertRevivedColdWarm}, res.AlertsByDeal["good"])
}

func TestSummaryTotals_ExcludesOwners(t *testing.T) {
	byOwner := map[string]*model.OwnerMetrics{
		"a@b.com": {NoActivity3Days: model.Counter{Count: 2}},
		"c@d.com": {NoActivity3Days: model.Counter{Count: 3}},
	}
	total := model.SummaryTotals(byOwner, map[string]bool{"c@d.com": true})
	assert.Equal(t, 2, total.NoActivity3Days.Count)
}
