// Package store persists the ledger of linking runs.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/account-linker/internal/model"
)

// ErrRunNotFound is returned when a run ID is not in the ledger.
var ErrRunNotFound = eris.New("store: run not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status model.RunStatus `json:"status,omitempty"`
	Limit  int             `json:"limit,omitempty"`
	Offset int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for the run ledger.
type Store interface {
	CreateRun(ctx context.Context, runID string, startedAt time.Time) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, metrics *model.RunMetrics, outputs []model.TableOutput) error
	FailRun(ctx context.Context, runID string, metrics *model.RunMetrics, cause error) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	Migrate(ctx context.Context) error
	Close() error
}
