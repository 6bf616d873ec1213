package model

import (
	"time"
)

// RunStatus represents the current state of a linking run.
type RunStatus string

const (
	RunStatusRunning  RunStatus = "running"
	RunStatusComplete RunStatus = "complete"
	RunStatusFailed   RunStatus = "failed"
)

// Run is one batch execution recorded in the run ledger.
type Run struct {
	ID         string        `json:"id"`
	Status     RunStatus     `json:"status"`
	Metrics    *RunMetrics   `json:"metrics,omitempty"`
	Outputs    []TableOutput `json:"outputs,omitempty"`
	Error      string        `json:"error,omitempty"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
}

// TableOutput describes one versioned output table written by a run.
type TableOutput struct {
	Table    string `json:"table"`
	Records  int    `json:"records"`
	Location string `json:"location"`
}

// RunMetrics is the summary emitted by every run, successful or not.
type RunMetrics struct {
	RunID                  string              `json:"run_id"`
	StartedAt              time.Time           `json:"started_at"`
	FinishedAt             time.Time           `json:"finished_at"`
	AccountsLoaded         int                 `json:"accounts_loaded"`
	AccountsConsidered     int                 `json:"accounts_considered"`
	AccountsExcluded       int                 `json:"accounts_excluded"`
	DuplicateAccountIDs    int                 `json:"duplicate_account_ids"`
	ContactsLoaded         int                 `json:"contacts_loaded"`
	ContactsAvailable      bool                `json:"contacts_available"`
	ManualLinkages         int                 `json:"manual_linkages"`
	PairsCompared          int64               `json:"pairs_compared"`
	PairsSkippedSameRegion int64               `json:"pairs_skipped_same_region"`
	PairsSkippedBlocked    int64               `json:"pairs_skipped_blocked"`
	MatchesByMethod        map[MatchMethod]int `json:"matches_by_method"`
	MatchesTotal           int                 `json:"matches_total"`
	GroupsFormed           int                 `json:"groups_formed"`
	GroupedAccounts        int                 `json:"grouped_accounts"`
}

// NewRunMetrics returns metrics with every match method pre-seeded at zero.
func NewRunMetrics(runID string, startedAt time.Time) *RunMetrics {
	byMethod := make(map[MatchMethod]int, len(AllMethods))
	for _, m := range AllMethods {
		byMethod[m] = 0
	}
	return &RunMetrics{
		RunID:           runID,
		StartedAt:       startedAt,
		MatchesByMethod: byMethod,
	}
}

// Duration returns the wall-clock time of the run.
func (m *RunMetrics) Duration() time.Duration {
	if m.FinishedAt.IsZero() {
		return 0
	}
	return m.FinishedAt.Sub(m.StartedAt)
}
