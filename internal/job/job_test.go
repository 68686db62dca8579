package job

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/prozo/dealpulse/internal/config"
	"github.com/prozo/dealpulse/internal/model"
	"github.com/prozo/dealpulse/internal/report"
	"github.com/prozo/dealpulse/internal/store"
	"github.com/prozo/dealpulse/pkg/hubspot"
)

var testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)

type fakeHubSpot struct {
	searchDeals []hubspot.Deal
	searchErr   error
	listDeals   []hubspot.Deal
	listErr     error
	owners      map[string]string
	ownerCalls  int
	history     map[string][]hubspot.TypeChange
	engagements map[string]*hubspot.EngagementSummary
	contacts    map[string][]hubspot.Contact
}

func (f *fakeHubSpot) SearchDeals(_ context.Context, _ hubspot.SearchRequest) ([]hubspot.Deal, error) {
	return f.searchDeals, f.searchErr
}

func (f *fakeHubSpot) ListDeals(_ context.Context, _ []string) ([]hubspot.Deal, error) {
	return f.listDeals, f.listErr
}

func (f *fakeHubSpot) OwnerEmail(_ context.Context, ownerID string) (string, error) {
	f.ownerCalls++
	email, ok := f.owners[ownerID]
	if !ok {
		return "", errors.New("owner not found")
	}
	return email, nil
}

func (f *fakeHubSpot) OwnerEmails(_ context.Context) (map[string]string, error) {
	return f.owners, nil
}

func (f *fakeHubSpot) DealTypeHistory(_ context.Context, dealID string) ([]hubspot.TypeChange, error) {
	return f.history[dealID], nil
}

func (f *fakeHubSpot) Engagements(_ context.Context, dealID string) (*hubspot.EngagementSummary, error) {
	if e, ok := f.engagements[dealID]; ok {
		return e, nil
	}
	return &hubspot.EngagementSummary{LastNote: "N/A"}, nil
}

func (f *fakeHubSpot) AssociatedContacts(_ context.Context, dealID string) ([]hubspot.Contact, error) {
	return f.contacts[dealID], nil
}

type fakeSender struct {
	sent []report.Message
	err  error
}

func (f *fakeSender) Send(_ context.Context, msg report.Message) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func newTestDeps(t *testing.T, hs *fakeHubSpot, sender *fakeSender) *Deps {
	t.Helper()
	st, err := store.Open(context.Background(), config.StoreConfig{
		Driver:      "sqlite",
		DatabaseURL: filepath.Join(t.TempDir(), "job.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	return &Deps{
		HubSpot: hs,
		Sender:  sender,
		Store:   st,
		Policy: &report.Policy{
			SummaryRecipients: []string{"lead@prozo.com"},
			ExcludeOwners:     []string{"bot@prozo.com"},
			IgnoredDealstages: []string{"closedlost"},
		},
		Config: &config.Config{
			Email:  config.EmailConfig{FromName: "Prozo Performance Manager"},
			Report: config.ReportConfig{Format: "csv", DealSource: "Marketing"},
			Fetch:  config.FetchConfig{MaxConcurrentDeals: 2},
		},
		Logger: zap.NewNop(),
		Now:    func() time.Time { return testNow },
	}
}

// pendingDeal is a hot deal assigned three days ago with no engagements, which
// fires the first-engagement rule.
func pendingDeal(id, ownerID string) hubspot.Deal {
	return hubspot.Deal{
		ID: id,
		Properties: map[string]string{
			"dealname":                   "Acme Corp",
			"hubspot_owner_id":           ownerID,
			"notes_last_updated":         testNow.Format("2006-01-02"),
			hubspot.DealTypeProperty:     "true",
			"hubspot_owner_assigneddate": "2025-06-12T00:00:00.000Z",
			"source_of_the_deal":         "Marketing",
			"dealstage":                  "qualified",
		},
	}
}

func TestRunDaily_EndToEnd(t *testing.T) {
	hs := &fakeHubSpot{
		searchDeals: []hubspot.Deal{
			pendingDeal("101", "9001"),
			{
				ID: "102",
				Properties: map[string]string{
					"dealname":               "Clean Deal",
					"hubspot_owner_id":       "9001",
					"notes_last_updated":     "2025-06-05",
					hubspot.DealTypeProperty: "cold",
					"dealstage":              "qualified",
				},
			},
		},
		owners: map[string]string{"9001": "riya.sharma@prozo.com"},
	}
	sender := &fakeSender{}
	d := newTestDeps(t, hs, sender)

	run, err := d.RunDaily(context.Background())
	require.NoError(t, err)

	// One owner email plus one summary email.
	require.Len(t, sender.sent, 2)
	owner := sender.sent[0]
	assert.Equal(t, []string{"riya.sharma@prozo.com"}, owner.To)
	assert.Contains(t, owner.Subject, "Your HubSpot To-Do")
	assert.Contains(t, owner.HTMLBody, "Hi Riya,")
	require.Len(t, owner.Attachments, 1)
	assert.Equal(t, "alerts_owner_riya_sharma_at_prozo_com.csv", owner.Attachments[0].Filename)
	assert.Contains(t, string(owner.Attachments[0].Data), "Acme Corp")
	assert.NotContains(t, string(owner.Attachments[0].Data), "Clean Deal")

	summary := sender.sent[1]
	assert.Equal(t, []string{"lead@prozo.com"}, summary.To)
	assert.Contains(t, summary.Subject, "MQL Performance Summary")

	// Owner lookups are cached across deals.
	assert.Equal(t, 1, hs.ownerCalls)

	got, err := d.Store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, 2, got.Result.DealsFetched)
	assert.Equal(t, 1, got.Result.DealsAlerted)
	assert.Equal(t, 1, got.Result.OwnersEmailed)
	assert.Equal(t, 0, got.Result.EmailsFailed)
}

func TestRunDaily_SkipsIgnoredStageAndExcludedOwner(t *testing.T) {
	ignored := pendingDeal("201", "9001")
	ignored.Properties["dealstage"] = "closedlost"
	excluded := pendingDeal("202", "9002")

	hs := &fakeHubSpot{
		searchDeals: []hubspot.Deal{ignored, excluded},
		owners: map[string]string{
			"9001": "riya.sharma@prozo.com",
			"9002": "Bot@Prozo.com",
		},
	}
	sender := &fakeSender{}
	d := newTestDeps(t, hs, sender)

	run, err := d.RunDaily(context.Background())
	require.NoError(t, err)

	assert.Empty(t, sender.sent)
	got, err := d.Store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.Result.DealsFetched)
}

func TestRunDaily_NoAlertsSkipsEmails(t *testing.T) {
	clean := pendingDeal("301", "9001")
	clean.Properties[hubspot.DealTypeProperty] = "cold"
	clean.Properties["notes_last_updated"] = "2025-06-05"

	hs := &fakeHubSpot{
		searchDeals: []hubspot.Deal{clean},
		owners:      map[string]string{"9001": "riya.sharma@prozo.com"},
	}
	sender := &fakeSender{}
	d := newTestDeps(t, hs, sender)

	run, err := d.RunDaily(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sender.sent)

	got, err := d.Store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, 1, got.Result.DealsFetched)
	assert.Equal(t, 0, got.Result.DealsAlerted)
}

func TestRunDaily_EmailFailureRecordsDeadLetter(t *testing.T) {
	hs := &fakeHubSpot{
		searchDeals: []hubspot.Deal{pendingDeal("401", "9001")},
		owners:      map[string]string{"9001": "riya.sharma@prozo.com"},
	}
	sender := &fakeSender{err: errors.New("smtp: 535 auth failed")}
	d := newTestDeps(t, hs, sender)

	run, err := d.RunDaily(context.Background())
	require.NoError(t, err)

	got, err := d.Store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, 0, got.Result.OwnersEmailed)
	// Owner email plus the summary email both failed.
	assert.Equal(t, 2, got.Result.EmailsFailed)

	letters, err := d.Store.ListDeadLetters(context.Background(), run.ID)
	require.NoError(t, err)
	require.Len(t, letters, 2)
	recipients := []string{letters[0].Recipient, letters[1].Recipient}
	assert.Contains(t, recipients, "riya.sharma@prozo.com")
	assert.Contains(t, recipients, "lead@prozo.com")
	assert.Contains(t, letters[0].Error, "535")
}

func TestRunDaily_FetchFailure(t *testing.T) {
	hs := &fakeHubSpot{searchErr: errors.New("hubspot: 502")}
	d := newTestDeps(t, hs, &fakeSender{})

	run, err := d.RunDaily(context.Background())
	require.Error(t, err)

	got, err := d.Store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusFailed, got.Status)
	assert.Contains(t, got.Result.Error, "502")
}

func TestRunWeekly_EndToEnd(t *testing.T) {
	hs := &fakeHubSpot{
		listDeals: []hubspot.Deal{
			{
				ID: "501",
				Properties: map[string]string{
					"dealname":                "Globex",
					"hubspot_owner_id":        "9001",
					hubspot.DealTypeProperty:  "true",
					"amount":                  "500",
					"num_associated_contacts": "1",
				},
			},
			{
				ID: "502",
				Properties: map[string]string{
					"dealname":                "Initech",
					"hubspot_owner_id":        "9001",
					hubspot.DealTypeProperty:  "false",
					"amount":                  "50000",
					"num_associated_contacts": "3",
				},
			},
		},
		owners: map[string]string{"9001": "arjun@prozo.com"},
		contacts: map[string][]hubspot.Contact{
			"501": {{FirstName: "Priya", LastName: "Mehta", Email: "priya@globex.com", JobTitle: ""}},
		},
	}
	sender := &fakeSender{}
	d := newTestDeps(t, hs, sender)

	run, err := d.RunWeekly(context.Background())
	require.NoError(t, err)

	require.Len(t, sender.sent, 2)
	owner := sender.sent[0]
	assert.Equal(t, []string{"arjun@prozo.com"}, owner.To)
	assert.Contains(t, owner.Subject, "Hot Deals Performance")
	assert.Contains(t, owner.HTMLBody, "Missing 2+ Contacts: <b>1</b>")
	assert.Contains(t, owner.HTMLBody, "Missing Designations: <b>1</b>")
	require.Len(t, owner.Attachments, 1)
	assert.Contains(t, string(owner.Attachments[0].Data), "Globex")
	assert.NotContains(t, string(owner.Attachments[0].Data), "Initech")

	summary := sender.sent[1]
	assert.Contains(t, summary.Subject, "SUMMARY")

	got, err := d.Store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, 2, got.Result.DealsFetched)
	assert.Equal(t, 1, got.Result.DealsAlerted)
	assert.Equal(t, 1, got.Result.OwnersEmailed)
}

func TestRunWeekly_UnknownOwnerGetsNoEmail(t *testing.T) {
	hs := &fakeHubSpot{
		listDeals: []hubspot.Deal{{
			ID: "601",
			Properties: map[string]string{
				"dealname": "Orphan Deal",
				// no owner, no type: missing-type alert under unknownOwner
			},
		}},
		owners: map[string]string{},
	}
	sender := &fakeSender{}
	d := newTestDeps(t, hs, sender)

	_, err := d.RunWeekly(context.Background())
	require.NoError(t, err)

	// Only the summary goes out; the unknown bucket has no inbox.
	require.Len(t, sender.sent, 1)
	assert.Equal(t, []string{"lead@prozo.com"}, sender.sent[0].To)
	assert.Contains(t, string(sender.sent[0].Attachments[0].Data), "Orphan Deal")
}

func TestRunWeekly_ExcludedOwnerLeftOutOfSummary(t *testing.T) {
	contacts := []hubspot.Contact{
		{FirstName: "Priya", LastName: "Mehta", Email: "priya@globex.com", JobTitle: "CFO"},
		{FirstName: "Dev", LastName: "Rao", Email: "dev@globex.com", JobTitle: "VP Ops"},
	}
	hs := &fakeHubSpot{
		listDeals: []hubspot.Deal{
			{
				ID: "701",
				Properties: map[string]string{
					"dealname":                "Globex",
					"hubspot_owner_id":        "9001",
					hubspot.DealTypeProperty:  "true",
					"amount":                  "500",
					"num_associated_contacts": "2",
				},
			},
			{
				ID: "702",
				Properties: map[string]string{
					"dealname":                "Botco",
					"hubspot_owner_id":        "9002",
					hubspot.DealTypeProperty:  "true",
					"amount":                  "700",
					"num_associated_contacts": "2",
				},
			},
		},
		owners:   map[string]string{"9001": "riya@prozo.com", "9002": "bot@prozo.com"},
		contacts: map[string][]hubspot.Contact{"701": contacts, "702": contacts},
	}
	sender := &fakeSender{}
	d := newTestDeps(t, hs, sender)

	run, err := d.RunWeekly(context.Background())
	require.NoError(t, err)

	// The excluded owner gets no report and leaks nothing into the summary:
	// neither its counters nor its deals.
	require.Len(t, sender.sent, 2)
	assert.Equal(t, []string{"riya@prozo.com"}, sender.sent[0].To)

	summary := sender.sent[1]
	assert.Equal(t, []string{"lead@prozo.com"}, summary.To)
	assert.Contains(t, summary.HTMLBody, "No Valid MBR (&lt; ₹1,000): <b>1</b>")
	require.Len(t, summary.Attachments, 1)
	assert.Contains(t, string(summary.Attachments[0].Data), "Globex")
	assert.NotContains(t, string(summary.Attachments[0].Data), "Botco")

	got, err := d.Store.GetRun(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Result.DealsAlerted)
}

func TestOwnerCache(t *testing.T) {
	hs := &fakeHubSpot{owners: map[string]string{"9001": "riya.sharma@prozo.com"}}
	cache := NewOwnerCache(hs)

	for range 3 {
		email, err := cache.Email(context.Background(), "9001")
		require.NoError(t, err)
		assert.Equal(t, "riya.sharma@prozo.com", email)
	}
	assert.Equal(t, 1, hs.ownerCalls)

	_, err := cache.Email(context.Background(), "missing")
	assert.Error(t, err)
}

func TestAttachmentName(t *testing.T) {
	assert.Equal(t, "alerts_owner_riya_sharma_at_prozo_com", attachmentName("OWNER", "riya.sharma@prozo.com"))
	assert.Equal(t, "alerts_summary_lead_at_prozo_com", attachmentName("SUMMARY", " lead@prozo.com "))
}
