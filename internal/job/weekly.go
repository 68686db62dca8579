package job

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/prozo/dealpulse/internal/analyze"
	"github.com/prozo/dealpulse/internal/model"
	"github.com/prozo/dealpulse/internal/report"
	"github.com/prozo/dealpulse/pkg/hubspot"
)

// unknownOwner buckets deals whose owner ID cannot be resolved, so they still
// show up in the summary instead of vanishing.
const unknownOwner = "unknown@prozo.com"

var weeklyListProperties = []string{
	"dealname",
	"hubspot_owner_id",
	hubspot.DealTypeProperty,
	"amount",
	"num_associated_contacts",
}

// RunWeekly executes the weekly data-quality report: every deal in the CRM is
// checked for a missing type, and hot deals for contact and MBR hygiene.
func (d *Deps) RunWeekly(ctx context.Context) (*model.Run, error) {
	run, err := d.Store.CreateRun(ctx, model.JobWeekly)
	if err != nil {
		return nil, err
	}
	result := &model.RunResult{DryRun: d.DryRun}

	grouped, dealsByID, err := d.fetchWeeklyDeals(ctx)
	if err != nil {
		result.Error = err.Error()
		d.complete(ctx, run, model.RunStatusFailed, result)
		return run, err
	}
	for _, deals := range grouped {
		result.DealsFetched += len(deals)
	}

	res := analyze.Weekly(grouped)

	excluded := d.Policy.ExcludedOwners()
	fromName := d.Config.Email.FromName
	now := d.now()

	owners := make([]string, 0, len(res.AlertsByOwner))
	for owner := range res.AlertsByOwner {
		owners = append(owners, owner)
	}
	sort.Strings(owners)

	var combined []analyze.DealAlerts
	for _, owner := range owners {
		alerts := res.AlertsByOwner[owner]
		if len(alerts) == 0 {
			continue
		}
		// Excluded owners get no report and contribute nothing to the
		// summary, same as the daily job.
		if excluded[owner] {
			continue
		}
		combined = append(combined, alerts...)
		result.DealsAlerted += len(alerts)

		if owner == unknownOwner {
			continue
		}
		metrics := res.MetricsByOwner[owner]
		if metrics == nil {
			metrics = &model.WeeklyMetrics{}
		}
		body, err := report.WeeklyOwnerBody(owner, fromName, *metrics)
		if err != nil {
			return run, eris.Wrapf(err, "weekly: render body for %s", owner)
		}
		att, err := d.weeklyAttachment(attachmentName("owner", owner), alerts, dealsByID)
		if err != nil {
			return run, err
		}
		if d.sendReport(ctx, run.ID, report.Message{
			To:          []string{owner},
			Subject:     report.WeeklySubject(false, now),
			HTMLBody:    body,
			Attachments: []report.Attachment{att},
		}, result) {
			result.OwnersEmailed++
		}
	}

	if len(combined) == 0 {
		d.Logger.Info("no weekly alerts fired, skipping emails", zap.Int("deals", result.DealsFetched))
		d.complete(ctx, run, model.RunStatusComplete, result)
		return run, nil
	}

	totals := model.WeeklyTotals(res.MetricsByOwner, excluded)
	for _, recipient := range d.Policy.SummaryRecipients {
		body, err := report.WeeklySummaryBody(recipient, fromName, totals)
		if err != nil {
			return run, eris.Wrapf(err, "weekly: render summary body for %s", recipient)
		}
		att, err := d.weeklyAttachment(attachmentName("summary", recipient), combined, dealsByID)
		if err != nil {
			return run, err
		}
		d.sendReport(ctx, run.ID, report.Message{
			To:          []string{recipient},
			Subject:     report.WeeklySubject(true, now),
			HTMLBody:    body,
			Attachments: []report.Attachment{att},
		}, result)
	}

	d.complete(ctx, run, model.RunStatusComplete, result)
	d.Logger.Info("weekly run complete",
		zap.String("run_id", run.ID),
		zap.Int("deals_fetched", result.DealsFetched),
		zap.Int("deals_alerted", result.DealsAlerted),
		zap.Int("owners_emailed", result.OwnersEmailed),
		zap.Int("emails_failed", result.EmailsFailed))
	return run, nil
}

// fetchWeeklyDeals lists every deal, resolves the owner map once, and fetches
// associated contacts per deal. Returns the deals grouped by owner email plus
// a flat index for the report sheets.
func (d *Deps) fetchWeeklyDeals(ctx context.Context) (map[string][]*model.Deal, map[string]*model.Deal, error) {
	raw, err := d.HubSpot.ListDeals(ctx, weeklyListProperties)
	if err != nil {
		return nil, nil, eris.Wrap(err, "weekly: list deals")
	}
	d.Logger.Info("deals fetched", zap.Int("count", len(raw)))

	ownerEmails, err := d.HubSpot.OwnerEmails(ctx)
	if err != nil {
		return nil, nil, eris.Wrap(err, "weekly: owner map")
	}

	grouped := make(map[string][]*model.Deal)
	dealsByID := make(map[string]*model.Deal, len(raw))
	var deals []*model.Deal

	for _, rd := range raw {
		ownerEmail := ownerEmails[rd.Property("hubspot_owner_id", "")]
		if ownerEmail == "" {
			ownerEmail = unknownOwner
		}

		numContacts, _ := strconv.Atoi(rd.Property("num_associated_contacts", "0"))
		deal := &model.Deal{
			ID:          rd.ID,
			Name:        rd.Property("dealname", "No Name"),
			OwnerEmail:  ownerEmail,
			DealTypeRaw: rd.Property(hubspot.DealTypeProperty, "N/A"),
			Amount:      rd.Property("amount", "N/A"),
			NumContacts: numContacts,
		}
		deals = append(deals, deal)
		dealsByID[deal.ID] = deal
		grouped[strings.ToLower(ownerEmail)] = append(grouped[strings.ToLower(ownerEmail)], deal)
	}

	g, gctx := errgroup.WithContext(ctx)
	limit := d.Config.Fetch.MaxConcurrentDeals
	if limit <= 0 {
		limit = 4
	}
	g.SetLimit(limit)

	for _, deal := range deals {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			contacts, err := d.HubSpot.AssociatedContacts(gctx, deal.ID)
			if err != nil {
				d.Logger.Warn("contact fetch failed",
					zap.String("deal_id", deal.ID), zap.Error(err))
				return nil
			}
			for _, c := range contacts {
				deal.Contacts = append(deal.Contacts, model.Contact{
					FirstName: c.FirstName,
					LastName:  c.LastName,
					Email:     c.Email,
					JobTitle:  c.JobTitle,
				})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, nil, eris.Wrap(err, "weekly: fetch contacts")
	}
	return grouped, dealsByID, nil
}
