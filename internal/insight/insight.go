// Package insight produces a short AI-written narrative for the daily
// summary email. It is optional: without an API key the summary goes out
// with numbers only.
package insight

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/prozo/dealpulse/internal/config"
	"github.com/prozo/dealpulse/internal/model"
	"github.com/prozo/dealpulse/pkg/anthropic"
)

const (
	defaultModel     = "claude-haiku-4-5-20251001"
	defaultMaxTokens = 400
	requestTimeout   = 30 * time.Second
)

const systemPrompt = `You are a sales operations analyst. Given per-owner pipeline
hygiene counters for a day, write a 2-3 sentence plain-text observation for the
sales leadership. Point out concentrations (owners driving most alerts) and the
single most pressing pattern. No markdown, no greetings, no bullet points.`

// Generator asks the model for a summary narrative.
type Generator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	logger    *zap.Logger
}

// New returns a Generator, or nil when no API key is configured.
func New(cfg config.AnthropicConfig, logger *zap.Logger) *Generator {
	if cfg.Key == "" {
		return nil
	}
	m := cfg.Model
	if m == "" {
		m = defaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	return &Generator{
		client:    anthropic.NewClient(cfg.Key),
		model:     m,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// NewWithClient builds a Generator around an existing client. Tests use it.
func NewWithClient(client anthropic.Client, model string, logger *zap.Logger) *Generator {
	return &Generator{client: client, model: model, maxTokens: defaultMaxTokens, logger: logger}
}

// DailySummary returns a short narrative for the consolidated report, or ""
// when generation fails. A failed insight never blocks the email.
func (g *Generator) DailySummary(ctx context.Context, byOwner map[string]*model.OwnerMetrics) string {
	if g == nil {
		return ""
	}

	prompt := buildPrompt(byOwner)
	if prompt == "" {
		return ""
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	resp, err := g.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     g.model,
		MaxTokens: g.maxTokens,
		System:    systemPrompt,
		Messages:  []anthropic.Message{{Role: "user", Content: prompt}},
	})
	if err != nil {
		g.logger.Warn("insight generation failed, sending summary without narrative", zap.Error(err))
		return ""
	}
	resp.Usage.LogCost(g.model, "daily_summary_insight")
	return strings.TrimSpace(resp.Text)
}

func buildPrompt(byOwner map[string]*model.OwnerMetrics) string {
	if len(byOwner) == 0 {
		return ""
	}

	owners := make([]string, 0, len(byOwner))
	for owner := range byOwner {
		owners = append(owners, owner)
	}
	sort.Strings(owners)

	var b strings.Builder
	b.WriteString("Per-owner alert counters for today:\n")
	for _, owner := range owners {
		m := byOwner[owner]
		fmt.Fprintf(&b,
			"%s: first_engagement_pending=%d gap_1_2=%d gap_2_3=%d no_activity_3d=%d revived=%d hot_to_warm=%d warm_to_cold=%d hot_to_cold=%d\n",
			owner,
			m.FirstEngagementPending.Count,
			m.EngagementGap12.Count,
			m.EngagementGap23.Count,
			m.NoActivity3Days.Count,
			m.RevivedColdWarm.Count,
			m.HotToWarm.Count,
			m.WarmToCold.Count,
			m.HotToCold.Count,
		)
	}
	return b.String()
}
