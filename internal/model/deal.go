package model

import "strings"

// DealType is the closed classification of a deal's priority. Raw CRM values
// never propagate past ClassifyDealType.
type DealType string

const (
	DealTypeHot     DealType = "hot"
	DealTypeWarm    DealType = "warm"
	DealTypeCold    DealType = "cold"
	DealTypeUnknown DealType = "unknown"
)

// ClassifyDealType maps the raw CRM deal-type property to a DealType. The
// property is a historical boolean-turned-enum: "true" means hot, "false"
// means warm, "cold" means cold. Anything else (including absence) is unknown.
func ClassifyDealType(raw string) DealType {
	switch strings.ToLower(raw) {
	case "true":
		return DealTypeHot
	case "false":
		return DealTypeWarm
	case "cold":
		return DealTypeCold
	default:
		return DealTypeUnknown
	}
}

// TypeChange is one observed change of the deal-type property. Entries from
// the CRM may be missing either field and are filtered out before analysis.
type TypeChange struct {
	Value     string `json:"value"`
	Timestamp string `json:"timestamp"`
}

// Contact is an associated CRM contact, fetched for the weekly job only.
type Contact struct {
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Email     string `json:"email"`
	JobTitle  string `json:"jobtitle"`
}

// EngagementDates holds the formatted timestamps of the first three
// engagements that qualified (at or after owner assignment).
type EngagementDates struct {
	First  string `json:"first,omitempty"`
	Second string `json:"second,omitempty"`
	Third  string `json:"third,omitempty"`
}

// Deal is a CRM deal record as assembled by the fetch layer. String date
// fields carry the raw CRM value or the "N/A" sentinel; Engagements are epoch
// milliseconds, unsorted. The analysis engine fills in the derived fields.
type Deal struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	OwnerID      string `json:"owner_id,omitempty"`
	OwnerEmail   string `json:"owner_email"`
	LastModified string `json:"last_modified,omitempty"`
	LastActivity string `json:"last_activity"`
	DealTypeRaw  string `json:"deal_type"`
	// OwnerAssignmentDate anchors the engagement-gap analysis: only
	// engagements at or after it qualify.
	OwnerAssignmentDate string       `json:"owner_assignment_date"`
	DealSource          string       `json:"deal_source,omitempty"`
	DealStage           string       `json:"deal_stage,omitempty"`
	TypeHistory         []TypeChange `json:"deal_type_history,omitempty"`
	Engagements         []int64      `json:"engagements,omitempty"`
	LastNote            string       `json:"last_note,omitempty"`

	// Weekly-job fields.
	Amount      string    `json:"amount,omitempty"`
	NumContacts int       `json:"num_associated_contacts,omitempty"`
	Contacts    []Contact `json:"associated_contacts,omitempty"`

	// Derived by the analysis engine; read by the reporting layer.
	EngagementDates       EngagementDates `json:"engagement_dates"`
	DaysSinceLastActivity string          `json:"days_since_last_activity"`
	LastActivityFr        string          `json:"last_activity_fr"`
	StageChange           string          `json:"stage_change"`
	Alerts                []string        `json:"alerts,omitempty"`
}

// ResetDerived clears the engine-written fields so a deal can be re-analyzed.
func (d *Deal) ResetDerived() {
	d.EngagementDates = EngagementDates{}
	d.DaysSinceLastActivity = ""
	d.LastActivityFr = ""
	d.StageChange = ""
	d.Alerts = nil
}
