package main

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/prozo/dealpulse/internal/insight"
	"github.com/prozo/dealpulse/internal/job"
	"github.com/prozo/dealpulse/internal/report"
	"github.com/prozo/dealpulse/internal/resilience"
	"github.com/prozo/dealpulse/internal/store"
	"github.com/prozo/dealpulse/pkg/hubspot"
)

// run-level flags shared by the daily and weekly commands.
var (
	flagDryRun bool
	flagFormat string
	flagPolicy string
)

// initDeps wires the full dependency graph for one run.
func initDeps(ctx context.Context) (*job.Deps, error) {
	logger := zap.L()

	if flagFormat != "" {
		cfg.Report.Format = flagFormat
	}

	policy := report.PolicyFromConfig(cfg.Report)
	if flagPolicy != "" {
		p, err := report.LoadPolicy(flagPolicy)
		if err != nil {
			return nil, err
		}
		policy = p
	}

	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	retry := resilience.DefaultRetryConfig()
	if cfg.HubSpot.MaxRetries > 0 {
		retry.MaxAttempts = cfg.HubSpot.MaxRetries
	}
	breaker := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
		FailureThreshold: cfg.HubSpot.FailureThreshold,
	})

	opts := []hubspot.Option{
		hubspot.WithRateLimit(cfg.HubSpot.RequestsPerSec),
		hubspot.WithRetryConfig(retry),
		hubspot.WithCircuitBreaker(breaker),
	}
	if cfg.HubSpot.BaseURL != "" {
		opts = append(opts, hubspot.WithBaseURL(cfg.HubSpot.BaseURL))
	}

	var sender report.Sender
	if flagDryRun {
		sender = &report.DryRunSender{Logger: logger}
	} else {
		sender = report.NewSMTPSender(cfg.Email, logger)
	}

	return &job.Deps{
		HubSpot: hubspot.NewClient(cfg.HubSpot.Token, opts...),
		Sender:  sender,
		Store:   st,
		Insight: insight.New(cfg.Anthropic, logger),
		Policy:  policy,
		Config:  cfg,
		Logger:  logger,
		Now:     time.Now,
		DryRun:  flagDryRun,
	}, nil
}
