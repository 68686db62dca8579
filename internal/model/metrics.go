package model

// Counter pairs a count with the names of the deals that triggered it.
type Counter struct {
	Count int      `json:"count"`
	Deals []string `json:"deals,omitempty"`
}

// Add records one firing of the counter for the named deal.
func (c *Counter) Add(dealName string) {
	c.Count++
	c.Deals = append(c.Deals, dealName)
}

// OwnerMetrics aggregates daily-rule firings for one deal owner. A record is
// created the first time an owner is seen, before any rule evaluates, so
// owners with zero alerts still appear with all-zero counters.
type OwnerMetrics struct {
	FirstEngagementPending Counter `json:"first_engagement_pending"`
	EngagementGap12        Counter `json:"engagement_gap_1_2"`
	EngagementGap23        Counter `json:"engagement_gap_2_3"`
	NoActivity3Days        Counter `json:"no_activity_3_days"`
	RevivedColdWarm        Counter `json:"revived_cold_warm"`
	HotToWarm              Counter `json:"hot_to_warm"`
	WarmToCold             Counter `json:"warm_to_cold"`
	HotToCold              Counter `json:"hot_to_cold"`
}

// SummaryTotals sums each counter across owners, skipping excluded owner
// emails (keys are lower-cased emails).
func SummaryTotals(byOwner map[string]*OwnerMetrics, exclude map[string]bool) OwnerMetrics {
	var total OwnerMetrics
	for email, m := range byOwner {
		if exclude[email] {
			continue
		}
		total.FirstEngagementPending.Count += m.FirstEngagementPending.Count
		total.EngagementGap12.Count += m.EngagementGap12.Count
		total.EngagementGap23.Count += m.EngagementGap23.Count
		total.NoActivity3Days.Count += m.NoActivity3Days.Count
		total.RevivedColdWarm.Count += m.RevivedColdWarm.Count
		total.HotToWarm.Count += m.HotToWarm.Count
		total.WarmToCold.Count += m.WarmToCold.Count
		total.HotToCold.Count += m.HotToCold.Count
	}
	return total
}

// WeeklyMetrics aggregates weekly data-quality rule firings for one owner.
// The weekly job uses a distinct counter schema from the daily job; the two
// are intentionally not unified.
type WeeklyMetrics struct {
	HotMissingContacts     int `json:"hot_missing_contacts"`
	HotMissingDesignations int `json:"hot_missing_designations"`
	HotLowMBR              int `json:"hot_low_mbr"`
	MissingType            int `json:"missing_type"`
}

// WeeklyTotals sums weekly counters across owners, skipping excluded owner
// emails (keys are lower-cased emails).
func WeeklyTotals(byOwner map[string]*WeeklyMetrics, exclude map[string]bool) WeeklyMetrics {
	var total WeeklyMetrics
	for email, m := range byOwner {
		if exclude[email] {
			continue
		}
		total.HotMissingContacts += m.HotMissingContacts
		total.HotMissingDesignations += m.HotMissingDesignations
		total.HotLowMBR += m.HotLowMBR
		total.MissingType += m.MissingType
	}
	return total
}
