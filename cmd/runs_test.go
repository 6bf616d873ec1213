//go:build !integration

package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/account-linker/internal/model"
	"github.com/sells-group/account-linker/internal/monitoring"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	finished := now.Add(2 * time.Second)
	metrics := model.NewRunMetrics("abc12345-6789-0000-0000-000000000000", now)
	metrics.MatchesTotal = 42
	metrics.GroupsFormed = 17

	runs := []model.Run{
		{
			ID:         "abc12345-6789-0000-0000-000000000000",
			Status:     model.RunStatusComplete,
			Metrics:    metrics,
			StartedAt:  now,
			FinishedAt: &finished,
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Status:    model.RunStatusRunning,
			StartedAt: now.Add(-1 * time.Hour),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "STATUS")
	assert.Contains(t, output, "MATCHES")
	assert.Contains(t, output, "abc12345")
	assert.NotContains(t, output, "abc12345-6789")
	assert.Contains(t, output, "complete")
	assert.Contains(t, output, "running")
	assert.Contains(t, output, "2025-06-15 10:30")
	assert.Contains(t, output, "2s")
	assert.Contains(t, output, "42")
	assert.Contains(t, output, "17")
}

func TestFormatRunsList_FailedRun(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	finished := now.Add(30 * time.Second)
	runs := []model.Run{
		{
			ID:         "abc12345-6789-0000-0000-000000000000",
			Status:     model.RunStatusFailed,
			Error:      "linker: configuration error: load inputs: snapshot: no snapshot found",
			StartedAt:  now,
			FinishedAt: &finished,
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "failed")
	assert.Contains(t, output, "linker: configuration error: load inp...")
	assert.Contains(t, output, "30s")
}

func TestFormatLedgerStats(t *testing.T) {
	last := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	snap := &monitoring.LedgerSnapshot{
		Total:               4,
		Complete:            2,
		Failed:              2,
		ConsecutiveFailures: 1,
		LastSuccessAt:       &last,
	}

	var buf bytes.Buffer
	formatLedgerStats(&buf, snap)

	output := buf.String()
	assert.Contains(t, output, "Total runs:")
	assert.Contains(t, output, "Consecutive failures:")
	assert.Contains(t, output, "2025-06-15T10:00:00Z")
}

func TestFormatLedgerStats_NeverSucceeded(t *testing.T) {
	var buf bytes.Buffer
	formatLedgerStats(&buf, &monitoring.LedgerSnapshot{Total: 1, Failed: 1, ConsecutiveFailures: 1})
	assert.Contains(t, buf.String(), "never")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789-0000-0000-000000000000"))
	assert.Equal(t, "short", truncateID("short"))
}
