package linker

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/account-linker/internal/model"
	"github.com/sells-group/account-linker/internal/resolve"
	"github.com/sells-group/account-linker/internal/sink"
	"github.com/sells-group/account-linker/internal/snapshot"
	"github.com/sells-group/account-linker/internal/store"
)

var runStart = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

type fakeLoader struct {
	snap *snapshot.Snapshot
	err  error
}

func (f *fakeLoader) Load(context.Context) (*snapshot.Snapshot, error) {
	return f.snap, f.err
}

type recordingWriter struct {
	calls []sink.Tables
	err   error
}

func (w *recordingWriter) Write(_ context.Context, t sink.Tables) ([]model.TableOutput, error) {
	w.calls = append(w.calls, t)
	if w.err != nil {
		return nil, w.err
	}
	return []model.TableOutput{
		{Table: sink.TableLinkages, Records: len(t.Linkages), Location: "mem://linkages"},
		{Table: sink.TableMasters, Records: len(t.Masters), Location: "mem://masters"},
	}, nil
}

func acct(id, name, region string, revenue int64) model.Account {
	return model.Account{ID: id, Name: name, Region: region, AnnualRevenue: decimal.NewFromInt(revenue)}
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return "id-" + strconv.Itoa(n)
	}
}

func newTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func newTestLinker(loader Loader, w sink.Writer, st store.Store, opts Options, extra ...Option) *Linker {
	if opts.Rules == (resolve.Rules{}) {
		opts.Rules = resolve.DefaultRules()
	}
	extra = append([]Option{
		WithIDGenerator(sequentialIDs()),
		WithClock(func() time.Time { return runStart }),
	}, extra...)
	return New(loader, w, st, opts, extra...)
}

func TestRun_EndToEnd(t *testing.T) {
	loader := &fakeLoader{snap: &snapshot.Snapshot{
		Accounts: []model.Account{
			acct("A1", "Acme Corp", "EastAfrica", 500),
			acct("A2", "ACME Corporation", "WestAfrica", 300),
		},
		Manual: model.ManualLinkages{},
	}}
	w := &recordingWriter{}
	st := newTestStore(t)

	res, err := newTestLinker(loader, w, st, Options{}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Matches, 1)
	m := res.Matches[0]
	assert.Equal(t, "A1", m.Account1ID)
	assert.Equal(t, "A2", m.Account2ID)
	assert.Equal(t, model.MethodExact, m.Method)
	assert.InDelta(t, 100.0, m.Confidence, 1e-9)
	assert.True(t, m.MatchedAt.Equal(runStart))

	require.Len(t, res.Masters, 1)
	master := res.Masters[0]
	assert.InDelta(t, 800.0, master.TotalRevenue, 1e-9)
	assert.Equal(t, []string{"EastAfrica", "WestAfrica"}, master.Regions)
	assert.Equal(t, []string{"A1", "A2"}, master.RegionalAccountIDs)
	assert.Equal(t, "Acme Corp", master.Name)
	assert.Equal(t, "EastAfrica", master.PrimaryRegion)

	require.Len(t, w.calls, 1)
	assert.Equal(t, res.RunID, w.calls[0].RunID)
	assert.Equal(t, "20240506_070809", w.calls[0].Version)
	assert.Len(t, res.Outputs, 2)

	metrics := res.Metrics
	assert.Equal(t, 2, metrics.AccountsLoaded)
	assert.Equal(t, 2, metrics.AccountsConsidered)
	assert.Equal(t, int64(1), metrics.PairsCompared)
	assert.Equal(t, 1, metrics.MatchesByMethod[model.MethodExact])
	assert.Equal(t, 1, metrics.MatchesTotal)
	assert.Equal(t, 1, metrics.GroupsFormed)
	assert.Equal(t, 2, metrics.GroupedAccounts)
	assert.False(t, metrics.ContactsAvailable)

	run, err := st.GetRun(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Equal(t, res.Outputs, run.Outputs)
	require.NotNil(t, run.Metrics)
	assert.Equal(t, 1, run.Metrics.MatchesTotal)
}

func TestRun_TransitiveManualLinks(t *testing.T) {
	loader := &fakeLoader{snap: &snapshot.Snapshot{
		Accounts: []model.Account{
			acct("A", "Acme", "R1", 100),
			acct("B", "Zeta", "R2", 250),
			acct("C", "Quix", "R3", 50),
		},
		Manual: model.ManualLinkages{"A": "B", "C": "B"},
	}}

	res, err := newTestLinker(loader, &recordingWriter{}, nil, Options{}).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Matches, 2)
	for _, m := range res.Matches {
		assert.Equal(t, model.MethodManual, m.Method)
		assert.InDelta(t, 100.0, m.Confidence, 1e-9)
	}

	require.Len(t, res.Masters, 1)
	assert.Equal(t, []string{"A", "B", "C"}, res.Masters[0].RegionalAccountIDs)
	assert.InDelta(t, 400.0, res.Masters[0].TotalRevenue, 1e-9)
	assert.Equal(t, "Zeta", res.Masters[0].Name)
	assert.Equal(t, "R2", res.Masters[0].PrimaryRegion)
}

func TestRun_SameRegionNeverMatches(t *testing.T) {
	loader := &fakeLoader{snap: &snapshot.Snapshot{
		Accounts: []model.Account{
			acct("ACC1", "Acme Corp", "EastAfrica", 1),
			acct("ACC2", "Acme Corp", "EastAfrica", 1),
		},
	}}
	w := &recordingWriter{}
	st := newTestStore(t)

	res, err := newTestLinker(loader, w, st, Options{}).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Matches)
	assert.Empty(t, res.Masters)
	assert.Equal(t, int64(1), res.Metrics.PairsSkippedSameRegion)

	// No matches: nothing is written but the run is still recorded.
	assert.Empty(t, w.calls)
	run, err := st.GetRun(context.Background(), res.RunID)
	require.NoError(t, err)
	assert.Equal(t, model.RunStatusComplete, run.Status)
	assert.Empty(t, run.Outputs)
}

func TestRun_ExclusionsAndDuplicates(t *testing.T) {
	loader := &fakeLoader{snap: &snapshot.Snapshot{
		Accounts: []model.Account{
			acct("A1", "Acme Corp", "EastAfrica", 500),
			acct("A2", "ACME Corporation", "WestAfrica", 300),
			acct("A1", "Acme Duplicate", "WestAfrica", 1),
			acct("A3", "", "WestAfrica", 1),
			acct("A4", "Acme", "", 1),
			acct("A5", "Acme Ltd", "Antarctica", 1),
			acct("A6", "!!!", "WestAfrica", 1),
		},
		Rejected: []snapshot.RowIssue{{Row: 8, AccountID: "A7", Reason: `invalid annual_revenue "x"`}},
	}}

	res, err := newTestLinker(loader, nil, nil, Options{
		Regions: []string{"EastAfrica", "WestAfrica"},
	}).Run(context.Background())
	require.NoError(t, err)

	m := res.Metrics
	assert.Equal(t, 8, m.AccountsLoaded)
	assert.Equal(t, 2, m.AccountsConsidered)
	assert.Equal(t, 5, m.AccountsExcluded)
	assert.Equal(t, 1, m.DuplicateAccountIDs)
	assert.Equal(t, m.AccountsLoaded, m.AccountsConsidered+m.AccountsExcluded+m.DuplicateAccountIDs)

	reasons := make(map[string]string)
	for _, ex := range res.Exclusions {
		reasons[ex.AccountID] = ex.Reason
	}
	assert.Equal(t, ReasonMissingName, reasons["A3"])
	assert.Equal(t, ReasonMissingRegion, reasons["A4"])
	assert.Equal(t, ReasonUnknownRegion, reasons["A5"])
	assert.Equal(t, ReasonEmptyNormalized, reasons["A6"])
	assert.Contains(t, reasons["A7"], "invalid annual_revenue")

	require.Len(t, res.Matches, 1)
	assert.Equal(t, "Acme Corp", res.Matches[0].Account1Name)
}

func TestRun_ContactSignal(t *testing.T) {
	loader := &fakeLoader{snap: &snapshot.Snapshot{
		Accounts: []model.Account{
			acct("A1", "Abcd", "EastAfrica", 1),
			acct("A2", "Abce", "WestAfrica", 1),
		},
		Contacts: []model.Contact{
			{ID: "C1", AccountID: "A1", Email: "ops@acme.com"},
			{ID: "C2", AccountID: "A2", Email: "ops@acme.com"},
		},
		ContactsAvailable: true,
	}}

	res, err := newTestLinker(loader, nil, nil, Options{}).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, model.MethodContact, res.Matches[0].Method)
	assert.InDelta(t, 85.0, res.Matches[0].Confidence, 1e-9)
	assert.True(t, res.Metrics.ContactsAvailable)
	assert.Equal(t, 2, res.Metrics.ContactsLoaded)
}

func TestRun_DryRunWritesNothing(t *testing.T) {
	loader := &fakeLoader{snap: &snapshot.Snapshot{
		Accounts: []model.Account{
			acct("A1", "Acme Corp", "EastAfrica", 500),
			acct("A2", "ACME Corporation", "WestAfrica", 300),
		},
	}}
	w := &recordingWriter{}

	res, err := newTestLinker(loader, w, nil, Options{DryRun: true}).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Matches, 1)
	assert.Len(t, res.Masters, 1)
	assert.Empty(t, w.calls)
	assert.Empty(t, res.Outputs)
}

func TestRun_LoadFailureIsConfigurationError(t *testing.T) {
	loader := &fakeLoader{err: fmt.Errorf("snapshot: no account files")}
	st := newTestStore(t)

	res, err := newTestLinker(loader, &recordingWriter{}, st, Options{}).Run(context.Background())
	require.Error(t, err)
	assert.True(t, IsConfigurationError(err))
	assert.Contains(t, err.Error(), "no account files")

	run, gerr := st.GetRun(context.Background(), res.RunID)
	require.NoError(t, gerr)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.Contains(t, run.Error, "no account files")
	require.NotNil(t, run.Metrics)
}

func TestRun_WriteFailure(t *testing.T) {
	loader := &fakeLoader{snap: &snapshot.Snapshot{
		Accounts: []model.Account{
			acct("A1", "Acme Corp", "EastAfrica", 500),
			acct("A2", "ACME Corporation", "WestAfrica", 300),
		},
	}}
	st := newTestStore(t)
	outDir := t.TempDir()
	local, err := sink.NewParquetWriter(outDir, "snappy")
	require.NoError(t, err)
	w := sink.MultiWriter{local, &recordingWriter{err: fmt.Errorf("postgres down")}}

	res, err := newTestLinker(loader, w, st, Options{}).Run(context.Background())
	require.Error(t, err)
	assert.False(t, IsConfigurationError(err))
	assert.Empty(t, res.Outputs)

	run, gerr := st.GetRun(context.Background(), res.RunID)
	require.NoError(t, gerr)
	assert.Equal(t, model.RunStatusFailed, run.Status)
	assert.Equal(t, 1, run.Metrics.MatchesTotal)
	assert.Empty(t, run.Outputs)

	// The parquet files written before the failure are discarded.
	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type unrecordableStore struct {
	store.Store
}

func (unrecordableStore) CompleteRun(context.Context, string, *model.RunMetrics, []model.TableOutput) error {
	return fmt.Errorf("database is locked")
}

func TestRun_UnrecordedRunDiscardsTables(t *testing.T) {
	loader := &fakeLoader{snap: &snapshot.Snapshot{
		Accounts: []model.Account{
			acct("A1", "Acme Corp", "EastAfrica", 500),
			acct("A2", "ACME Corporation", "WestAfrica", 300),
		},
	}}
	outDir := t.TempDir()
	local, err := sink.NewParquetWriter(outDir, "snappy")
	require.NoError(t, err)

	writer := sink.MultiWriter{local, &recordingWriter{}}

	res, err := newTestLinker(loader, writer, unrecordableStore{newTestStore(t)}, Options{}).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database is locked")
	assert.Empty(t, res.Outputs)

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestRun_ExportsMetricsTextfile(t *testing.T) {
	loader := &fakeLoader{snap: &snapshot.Snapshot{
		Accounts: []model.Account{
			acct("A1", "Acme Corp", "EastAfrica", 500),
			acct("A2", "ACME Corporation", "WestAfrica", 300),
		},
	}}
	path := filepath.Join(t.TempDir(), "linker.prom")

	_, err := newTestLinker(loader, &recordingWriter{}, newTestStore(t), Options{}, WithMetricsTextfile(path)).Run(context.Background())
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `account_linker_run_matches{method="exact"} 1`)
	assert.Contains(t, string(data), `account_linker_ledger_runs{status="complete"} 1`)
}
