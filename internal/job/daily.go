package job

import (
	"context"
	"sort"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/prozo/dealpulse/internal/analyze"
	"github.com/prozo/dealpulse/internal/model"
	"github.com/prozo/dealpulse/internal/report"
	"github.com/prozo/dealpulse/pkg/hubspot"
)

// dailySearchProperties are the deal properties the daily job needs from the
// search endpoint. The type history and engagements come from separate calls.
var dailySearchProperties = []string{
	"dealname",
	"hubspot_owner_id",
	"hs_lastmodifieddate",
	"notes_last_updated",
	hubspot.DealTypeProperty,
	"hubspot_owner_assigneddate",
	"source_of_the_deal",
	"dealstage",
}

// RunDaily executes the daily hot-deal performance report end to end and
// records the run. Individual email failures do not abort the run; a fetch
// failure does.
func (d *Deps) RunDaily(ctx context.Context) (*model.Run, error) {
	run, err := d.Store.CreateRun(ctx, model.JobDaily)
	if err != nil {
		return nil, err
	}
	result := &model.RunResult{DryRun: d.DryRun}

	deals, err := d.fetchDailyDeals(ctx)
	if err != nil {
		result.Error = err.Error()
		d.complete(ctx, run, model.RunStatusFailed, result)
		return run, err
	}
	result.DealsFetched = len(deals)

	now := d.now()
	res := analyze.Daily(deals, now)

	alertedByOwner := make(map[string][]*model.Deal)
	var allAlerted []*model.Deal
	for _, deal := range deals {
		if len(deal.Alerts) == 0 {
			continue
		}
		owner := strings.ToLower(deal.OwnerEmail)
		alertedByOwner[owner] = append(alertedByOwner[owner], deal)
		allAlerted = append(allAlerted, deal)
	}
	result.DealsAlerted = len(allAlerted)

	if len(allAlerted) == 0 {
		d.Logger.Info("no alerts fired, skipping emails", zap.Int("deals", len(deals)))
		d.complete(ctx, run, model.RunStatusComplete, result)
		return run, nil
	}

	excluded := d.Policy.ExcludedOwners()
	fromName := d.Config.Email.FromName

	owners := make([]string, 0, len(alertedByOwner))
	for owner := range alertedByOwner {
		owners = append(owners, owner)
	}
	sort.Strings(owners)

	for _, owner := range owners {
		if excluded[owner] {
			continue
		}
		metrics := res.MetricsByOwner[owner]
		if metrics == nil {
			metrics = &model.OwnerMetrics{}
		}
		body, err := report.DailyOwnerBody(owner, fromName, *metrics, now)
		if err != nil {
			return run, eris.Wrapf(err, "daily: render body for %s", owner)
		}
		att, err := d.dailyAttachment(attachmentName("owner", owner), alertedByOwner[owner])
		if err != nil {
			return run, err
		}
		if d.sendReport(ctx, run.ID, report.Message{
			To:          []string{owner},
			Subject:     report.DailySubject(false, now),
			HTMLBody:    body,
			Attachments: []report.Attachment{att},
		}, result) {
			result.OwnersEmailed++
		}
	}

	totals := model.SummaryTotals(res.MetricsByOwner, excluded)
	narrative := d.Insight.DailySummary(ctx, res.MetricsByOwner)

	for _, recipient := range d.Policy.SummaryRecipients {
		body, err := report.DailySummaryBody(recipient, fromName, totals, narrative)
		if err != nil {
			return run, eris.Wrapf(err, "daily: render summary body for %s", recipient)
		}
		att, err := d.dailyAttachment(attachmentName("summary", recipient), allAlerted)
		if err != nil {
			return run, err
		}
		d.sendReport(ctx, run.ID, report.Message{
			To:          []string{recipient},
			Subject:     report.DailySubject(true, now),
			HTMLBody:    body,
			Attachments: []report.Attachment{att},
		}, result)
	}

	d.complete(ctx, run, model.RunStatusComplete, result)
	d.Logger.Info("daily run complete",
		zap.String("run_id", run.ID),
		zap.Int("deals_fetched", result.DealsFetched),
		zap.Int("deals_alerted", result.DealsAlerted),
		zap.Int("owners_emailed", result.OwnersEmailed),
		zap.Int("emails_failed", result.EmailsFailed))
	return run, nil
}

// fetchDailyDeals pulls every marketing-sourced deal, resolves owners, and
// enriches each kept deal with its type history and engagement feed.
func (d *Deps) fetchDailyDeals(ctx context.Context) ([]*model.Deal, error) {
	raw, err := d.HubSpot.SearchDeals(ctx, hubspot.SearchRequest{
		Filters: []hubspot.Filter{{
			PropertyName: "source_of_the_deal",
			Operator:     "EQ",
			Value:        d.Config.Report.DealSource,
		}},
		Properties: dailySearchProperties,
		PageSize:   d.Config.Fetch.PageSize,
	})
	if err != nil {
		return nil, eris.Wrap(err, "daily: search deals")
	}
	d.Logger.Info("deals fetched", zap.Int("count", len(raw)))

	owners := NewOwnerCache(d.HubSpot)
	ignoredStages := d.Policy.IgnoredStages()
	excluded := d.Policy.ExcludedOwners()

	var deals []*model.Deal
	for _, rd := range raw {
		ownerID := rd.Property("hubspot_owner_id", "")
		if ownerID == "" {
			continue
		}
		ownerEmail, err := owners.Email(ctx, ownerID)
		if err != nil {
			d.Logger.Warn("owner lookup failed, skipping deal",
				zap.String("deal_id", rd.ID),
				zap.String("owner_id", ownerID),
				zap.Error(err))
			continue
		}
		stage := rd.Property("dealstage", "")
		if ignoredStages[stage] {
			d.Logger.Info("skipping deal with ignored stage",
				zap.String("deal_id", rd.ID),
				zap.String("dealstage", stage))
			continue
		}
		// Excluded owners are left out of the analysis entirely, not just
		// the email distribution.
		if excluded[strings.ToLower(ownerEmail)] {
			continue
		}

		deals = append(deals, &model.Deal{
			ID:                  rd.ID,
			Name:                rd.Property("dealname", "No Name"),
			OwnerID:             ownerID,
			OwnerEmail:          ownerEmail,
			LastModified:        rd.Property("hs_lastmodifieddate", "N/A"),
			LastActivity:        rd.Property("notes_last_updated", "N/A"),
			DealTypeRaw:         rd.Property(hubspot.DealTypeProperty, "N/A"),
			OwnerAssignmentDate: rd.Property("hubspot_owner_assigneddate", "N/A"),
			DealSource:          rd.Property("source_of_the_deal", ""),
			DealStage:           stage,
		})
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
			history, err := d.HubSpot.DealTypeHistory(gctx, deal.ID)
			if err != nil {
				d.Logger.Warn("type history fetch failed",
					zap.String("deal_id", deal.ID), zap.Error(err))
			} else {
				for _, h := range history {
					deal.TypeHistory = append(deal.TypeHistory, model.TypeChange{
						Value:     h.Value,
						Timestamp: h.Timestamp,
					})
				}
			}

			eng, err := d.HubSpot.Engagements(gctx, deal.ID)
			if err != nil {
				d.Logger.Warn("engagement fetch failed",
					zap.String("deal_id", deal.ID), zap.Error(err))
				deal.LastNote = "N/A"
				return nil
			}
			deal.Engagements = eng.Timestamps
			deal.LastNote = eng.LastNote
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "daily: enrich deals")
	}
	return deals, nil
}
