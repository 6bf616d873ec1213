package snapshot

import (
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLatestSnapshot_NewestByModTime(t *testing.T) {
	dir := t.TempDir()
	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	writeFile(t, dir, "silver_account_20240301.csv", "a\n", base)
	newest := writeFile(t, dir, "silver_account_20240101.csv", "a\n", base.Add(time.Hour))
	writeFile(t, dir, "silver_contact_20240501.csv", "a\n", base.Add(2*time.Hour))

	got, err := LatestSnapshot(dir, "silver", "account")
	require.NoError(t, err)
	assert.Equal(t, newest, got)
}

func TestLatestSnapshot_TieBreaksOnName(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	writeFile(t, dir, "silver_account_20240301_090000.parquet", "x", ts)
	later := writeFile(t, dir, "silver_account_20240301_100000.parquet", "x", ts)

	got, err := LatestSnapshot(dir, "silver", "account")
	require.NoError(t, err)
	assert.Equal(t, later, got)
}

func TestLatestSnapshot_IgnoresUnsupportedExtensions(t *testing.T) {
	dir := t.TempDir()
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	want := writeFile(t, dir, "silver_account_1.json", "[]", ts)
	writeFile(t, dir, "silver_account_2.txt", "x", ts.Add(time.Hour))

	got, err := LatestSnapshot(dir, "silver", "account")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestLatestSnapshot_None(t *testing.T) {
	_, err := LatestSnapshot(t.TempDir(), "silver", "account")
	require.Error(t, err)
	assert.True(t, eris.Is(err, ErrNoSnapshot))
}
