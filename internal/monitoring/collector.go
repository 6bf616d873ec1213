// Package monitoring summarises the run ledger and exports run metrics in the
// Prometheus text format.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/account-linker/internal/model"
	"github.com/sells-group/account-linker/internal/store"
)

// LedgerSnapshot holds a point-in-time view of recent runs.
type LedgerSnapshot struct {
	Total               int        `json:"total"`
	Complete            int        `json:"complete"`
	Failed              int        `json:"failed"`
	Running             int        `json:"running"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	CollectedAt         time.Time  `json:"collected_at"`
}

// Collector gathers ledger statistics from the store.
type Collector struct {
	store store.Store
}

// NewCollector creates a new ledger collector.
func NewCollector(st store.Store) *Collector {
	return &Collector{store: st}
}

// Collect summarises the most recent window runs, newest first.
func (c *Collector) Collect(ctx context.Context, window int) (*LedgerSnapshot, error) {
	runs, err := c.store.ListRuns(ctx, store.RunFilter{Limit: window})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}
	return Summarize(runs, time.Now().UTC()), nil
}

// Summarize builds a snapshot from runs ordered newest first.
func Summarize(runs []model.Run, now time.Time) *LedgerSnapshot {
	snap := &LedgerSnapshot{Total: len(runs), CollectedAt: now}

	streak := true
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			snap.Complete++
			if snap.LastSuccessAt == nil && r.FinishedAt != nil {
				t := *r.FinishedAt
				snap.LastSuccessAt = &t
			}
			streak = false
		case model.RunStatusFailed:
			snap.Failed++
			if streak {
				snap.ConsecutiveFailures++
			}
		case model.RunStatusRunning:
			snap.Running++
		}
	}
	return snap
}
