// Package job orchestrates the daily and weekly report runs: fetch from
// HubSpot, run the analysis engine, email owners and summary recipients,
// record the run in the store.
package job

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/prozo/dealpulse/internal/analyze"
	"github.com/prozo/dealpulse/internal/config"
	"github.com/prozo/dealpulse/internal/insight"
	"github.com/prozo/dealpulse/internal/model"
	"github.com/prozo/dealpulse/internal/report"
	"github.com/prozo/dealpulse/internal/store"
	"github.com/prozo/dealpulse/pkg/hubspot"
)

// Deps carries everything a run needs. Now is injectable for tests and
// defaults to time.Now.
type Deps struct {
	HubSpot hubspot.Client
	Sender  report.Sender
	Store   store.Store
	Insight *insight.Generator
	Policy  *report.Policy
	Config  *config.Config
	Logger  *zap.Logger
	Now     func() time.Time

	// DryRun is recorded on the run so a skipped distribution is visible
	// in the history. The Sender decides what "dry" means.
	DryRun bool
}

func (d *Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

// attachment renders the deal sheet in the configured format.
func (d *Deps) dailyAttachment(name string, deals []*model.Deal) (report.Attachment, error) {
	var (
		data []byte
		err  error
	)
	format := d.Config.Report.Format
	if format == "xlsx" {
		data, err = report.RenderDailyXLSX(deals)
	} else {
		format = "csv"
		data, err = report.RenderDailyCSV(deals)
	}
	if err != nil {
		return report.Attachment{}, err
	}
	return report.Attachment{
		Filename:    name + "." + format,
		ContentType: report.AttachmentContentType(format),
		Data:        data,
	}, nil
}

func (d *Deps) weeklyAttachment(name string, alerts []analyze.DealAlerts, dealsByID map[string]*model.Deal) (report.Attachment, error) {
	var (
		data []byte
		err  error
	)
	format := d.Config.Report.Format
	if format == "xlsx" {
		data, err = report.RenderWeeklyXLSX(alerts, dealsByID)
	} else {
		format = "csv"
		data, err = report.RenderWeeklyCSV(alerts, dealsByID)
	}
	if err != nil {
		return report.Attachment{}, err
	}
	return report.Attachment{
		Filename:    name + "." + format,
		ContentType: report.AttachmentContentType(format),
		Data:        data,
	}, nil
}

// attachmentName builds a per-recipient file name like
// "alerts_owner_riya_sharma_at_prozo_com".
func attachmentName(role, recipient string) string {
	r := strings.NewReplacer("@", "_at_", ".", "_")
	return "alerts_" + strings.ToLower(role) + "_" + r.Replace(strings.TrimSpace(recipient))
}

// sendReport delivers one email. Delivery failures are logged and recorded
// as dead letters; they never abort the run.
func (d *Deps) sendReport(ctx context.Context, runID string, msg report.Message, result *model.RunResult) bool {
	err := d.Sender.Send(ctx, msg)
	if err == nil {
		return true
	}

	recipient := strings.Join(msg.To, ", ")
	d.Logger.Error("email delivery failed",
		zap.String("recipient", recipient),
		zap.String("subject", msg.Subject),
		zap.Error(err))
	result.EmailsFailed++

	if _, dlErr := d.Store.AddDeadLetter(ctx, runID, recipient, msg.Subject, err.Error()); dlErr != nil {
		d.Logger.Error("recording dead letter failed", zap.Error(dlErr))
	}
	return false
}

// complete finishes the run record. Store failures here are logged only;
// the report has already gone out.
func (d *Deps) complete(ctx context.Context, run *model.Run, status model.RunStatus, result *model.RunResult) {
	if err := d.Store.CompleteRun(ctx, run.ID, status, result); err != nil {
		d.Logger.Error("completing run record failed", zap.String("run_id", run.ID), zap.Error(err))
	}
}
