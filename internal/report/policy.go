// Package report renders and delivers the owner and summary emails: recipient
// policy, CSV/XLSX attachments, HTML bodies and SMTP delivery.
package report

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/prozo/dealpulse/internal/config"
)

// Policy controls who receives reports and which deals are skipped at fetch
// time. Defaults come from config; a policy file replaces them wholesale.
type Policy struct {
	// SummaryRecipients always receive the consolidated summary report.
	SummaryRecipients []string `yaml:"summary_recipients"`
	// ExcludeOwners receive no owner report and their counters are left
	// out of the summary totals.
	ExcludeOwners []string `yaml:"exclude_owners"`
	// IgnoredDealstages are pipeline stage IDs whose deals are skipped
	// entirely (already-won/lost stages per business line).
	IgnoredDealstages []string `yaml:"ignored_dealstages"`
}

// PolicyFromConfig builds the default policy from the report config section.
func PolicyFromConfig(cfg config.ReportConfig) *Policy {
	return &Policy{
		SummaryRecipients: cfg.SummaryRecipients,
		ExcludeOwners:     cfg.ExcludeOwners,
		IgnoredDealstages: cfg.IgnoredDealstages,
	}
}

// LoadPolicy reads a recipient policy from a YAML file.
func LoadPolicy(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "report: read policy %s", path)
	}
	var p Policy
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrapf(err, "report: parse policy %s", path)
	}
	return &p, nil
}

// ExcludedOwners returns the exclusion list as a lower-cased lookup set.
func (p *Policy) ExcludedOwners() map[string]bool {
	set := make(map[string]bool, len(p.ExcludeOwners))
	for _, e := range p.ExcludeOwners {
		set[strings.ToLower(e)] = true
	}
	return set
}

// IgnoredStages returns the ignored dealstage IDs as a lookup set.
func (p *Policy) IgnoredStages() map[string]bool {
	set := make(map[string]bool, len(p.IgnoredDealstages))
	for _, s := range p.IgnoredDealstages {
		set[s] = true
	}
	return set
}
