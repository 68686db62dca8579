// Package store persists report run history and undeliverable emails.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/prozo/dealpulse/internal/config"
	"github.com/prozo/dealpulse/internal/model"
)

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Kind   model.JobKind   `json:"kind,omitempty"`
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for report runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, kind model.JobKind) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, status model.RunStatus, result *model.RunResult) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Dead letters
	AddDeadLetter(ctx context.Context, runID, recipient, subject, sendErr string) (*model.DeadLetter, error)
	ListDeadLetters(ctx context.Context, runID string) ([]model.DeadLetter, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open builds the store named by cfg.Driver and runs migrations.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		s   Store
		err error
	)
	switch cfg.Driver {
	case "", "sqlite":
		s, err = NewSQLite(cfg.DatabaseURL)
	case "postgres":
		s, err = NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}
