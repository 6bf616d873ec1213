// Package linker runs one account-linking batch: load the latest snapshots,
// match cross-region pairs, cluster matches into master accounts, write the
// output tables and record the run.
package linker

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/account-linker/internal/cluster"
	"github.com/sells-group/account-linker/internal/model"
	"github.com/sells-group/account-linker/internal/monitoring"
	"github.com/sells-group/account-linker/internal/resolve"
	"github.com/sells-group/account-linker/internal/sink"
	"github.com/sells-group/account-linker/internal/snapshot"
	"github.com/sells-group/account-linker/internal/store"
)

// Loader supplies the inputs of a run.
type Loader interface {
	Load(ctx context.Context) (*snapshot.Snapshot, error)
}

// Options tunes a run.
type Options struct {
	Rules             resolve.Rules
	Workers           int      // 0 = GOMAXPROCS
	BlockingPrefixLen int      // 0 = compare every cross-region pair
	Regions           []string // allow-list; empty = any region
	DryRun            bool     // compute everything but write no tables
	LedgerWindow      int      // runs summarised in the metrics export
}

// Result is the outcome of a run.
type Result struct {
	RunID      string
	Metrics    *model.RunMetrics
	Matches    []model.MatchRecord
	Masters    []model.MasterAccount
	Outputs    []model.TableOutput
	Exclusions []Exclusion
}

// Linker wires the batch stages together.
type Linker struct {
	loader   Loader
	writer   sink.Writer
	store    store.Store
	opts     Options
	exporter *monitoring.Exporter
	textfile string
	newID    func() string
	now      func() time.Time
}

// Option configures a Linker.
type Option func(*Linker)

// WithMetricsTextfile exports run metrics to a Prometheus textfile at path.
func WithMetricsTextfile(path string) Option {
	return func(l *Linker) {
		l.textfile = path
		if path != "" && l.exporter == nil {
			l.exporter = monitoring.NewExporter()
		}
	}
}

// WithIDGenerator overrides how run and master account IDs are generated.
func WithIDGenerator(fn func() string) Option {
	return func(l *Linker) { l.newID = fn }
}

// WithClock overrides the run clock.
func WithClock(fn func() time.Time) Option {
	return func(l *Linker) { l.now = fn }
}

// New creates a Linker. writer and st may be nil: a nil writer writes no
// tables and a nil store records no ledger entry.
func New(loader Loader, writer sink.Writer, st store.Store, opts Options, extra ...Option) *Linker {
	if opts.LedgerWindow <= 0 {
		opts.LedgerWindow = 50
	}
	l := &Linker{
		loader: loader,
		writer: writer,
		store:  st,
		opts:   opts,
		newID:  uuid.NewString,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, o := range extra {
		o(l)
	}
	return l
}

// Run executes one batch. Configuration problems are returned as
// *ConfigurationError. The run is recorded in the ledger whether it succeeds
// or fails.
func (l *Linker) Run(ctx context.Context) (*Result, error) {
	runID := l.newID()
	started := l.now()
	log := zap.L().With(zap.String("component", "linker"), zap.String("run_id", runID))

	metrics := model.NewRunMetrics(runID, started)
	res := &Result{RunID: runID, Metrics: metrics}

	if l.store != nil {
		if _, err := l.store.CreateRun(ctx, runID, started); err != nil {
			return nil, eris.Wrap(err, "linker: create run")
		}
	}
	log.Info("linker: run started")

	if err := l.execute(ctx, log, res); err != nil {
		metrics.FinishedAt = l.now()
		log.Error("linker: run failed", zap.Error(err))
		if l.store != nil {
			if ferr := l.store.FailRun(context.WithoutCancel(ctx), runID, metrics, err); ferr != nil {
				log.Warn("linker: record failed run", zap.Error(ferr))
			}
		}
		l.export(ctx, log, metrics, false)
		return res, err
	}

	metrics.FinishedAt = l.now()
	if l.store != nil {
		if err := l.store.CompleteRun(context.WithoutCancel(ctx), runID, metrics, res.Outputs); err != nil {
			l.discard(ctx, log, res)
			return res, eris.Wrap(err, "linker: record run")
		}
	}
	l.export(ctx, log, metrics, true)

	log.Info("linker: run complete",
		zap.Int("accounts_considered", metrics.AccountsConsidered),
		zap.Int64("pairs_compared", metrics.PairsCompared),
		zap.Int("matches", metrics.MatchesTotal),
		zap.Int("groups", metrics.GroupsFormed),
		zap.Duration("elapsed", metrics.Duration()),
	)
	return res, nil
}

func (l *Linker) execute(ctx context.Context, log *zap.Logger, res *Result) error {
	metrics := res.Metrics

	snap, err := l.loader.Load(ctx)
	if err != nil {
		return &ConfigurationError{Op: "load inputs", Err: err}
	}

	screen := ScreenAccounts(snap.Accounts, l.opts.Regions)
	res.Exclusions = append(rejectedExclusions(snap.Rejected), screen.Excluded...)
	for _, ex := range res.Exclusions {
		log.Warn("linker: account excluded",
			zap.String("account_id", ex.AccountID),
			zap.Int("row", ex.Row),
			zap.String("reason", ex.Reason),
		)
	}
	for _, id := range screen.Duplicates {
		log.Warn("linker: duplicate account id, keeping first row", zap.String("account_id", id))
	}

	metrics.AccountsLoaded = len(snap.Accounts) + len(snap.Rejected)
	metrics.AccountsConsidered = len(screen.Accounts)
	metrics.AccountsExcluded = len(res.Exclusions)
	metrics.DuplicateAccountIDs = len(screen.Duplicates)
	metrics.ContactsLoaded = len(snap.Contacts)
	metrics.ContactsAvailable = snap.ContactsAvailable
	metrics.ManualLinkages = len(snap.Manual)

	opts := []resolve.Option{
		resolve.WithManualLinkages(snap.Manual),
		resolve.WithWorkers(l.opts.Workers),
		resolve.WithBlocking(l.opts.BlockingPrefixLen),
		resolve.WithClock(func() time.Time { return metrics.StartedAt }),
	}
	if snap.ContactsAvailable {
		opts = append(opts, resolve.WithContacts(resolve.NewContactIndex(snap.Contacts)))
	} else {
		log.Info("linker: contact signal unavailable, contact overlap evaluates false")
	}

	matches, stats, err := resolve.NewMatcher(l.opts.Rules, opts...).FindMatches(ctx, screen.Accounts)
	if err != nil {
		return eris.Wrap(err, "linker: match accounts")
	}
	res.Matches = matches
	metrics.PairsCompared = stats.PairsCompared
	metrics.PairsSkippedSameRegion = stats.PairsSkippedSameRegion
	metrics.PairsSkippedBlocked = stats.PairsSkippedBlocked
	metrics.MatchesTotal = len(matches)
	for _, m := range matches {
		metrics.MatchesByMethod[m.Method]++
	}

	byID := make(map[string]model.Account, len(screen.Accounts))
	for _, a := range screen.Accounts {
		byID[a.ID] = a
	}
	groups := cluster.BuildGroups(matches)
	masters, err := cluster.NewAggregator(
		cluster.WithIDGenerator(l.newID),
		cluster.WithAggregatorClock(func() time.Time { return metrics.StartedAt }),
	).Aggregate(groups, byID)
	if err != nil {
		return eris.Wrap(err, "linker: aggregate master accounts")
	}
	res.Masters = masters
	metrics.GroupsFormed = len(masters)
	for _, m := range masters {
		metrics.GroupedAccounts += m.AccountCount
	}

	switch {
	case l.opts.DryRun:
		log.Info("linker: dry run, skipping table write")
	case len(matches) == 0:
		log.Info("linker: no matches found, skipping table write")
	case l.writer == nil:
		log.Info("linker: no writer configured, skipping table write")
	default:
		outputs, err := l.writer.Write(ctx, sink.NewTables(res.RunID, metrics.StartedAt, matches, masters))
		if err != nil {
			return eris.Wrap(err, "linker: write tables")
		}
		res.Outputs = outputs
	}
	return nil
}

// discard removes tables written by a run that could not be recorded.
func (l *Linker) discard(ctx context.Context, log *zap.Logger, res *Result) {
	d, ok := l.writer.(sink.Discarder)
	if !ok || len(res.Outputs) == 0 {
		return
	}
	if err := d.Discard(context.WithoutCancel(ctx), res.Outputs); err != nil {
		log.Warn("linker: discard outputs of unrecorded run", zap.Error(err))
		return
	}
	res.Outputs = nil
}

// export writes the metrics textfile when configured. Failures are logged
// only.
func (l *Linker) export(ctx context.Context, log *zap.Logger, metrics *model.RunMetrics, succeeded bool) {
	if l.exporter == nil || l.textfile == "" {
		return
	}
	l.exporter.ObserveRun(metrics, succeeded)
	if l.store != nil {
		snap, err := monitoring.NewCollector(l.store).Collect(context.WithoutCancel(ctx), l.opts.LedgerWindow)
		if err != nil {
			log.Warn("linker: collect ledger metrics", zap.Error(err))
		} else {
			l.exporter.ObserveLedger(snap)
		}
	}
	if err := l.exporter.WriteTextfile(l.textfile); err != nil {
		log.Warn("linker: export metrics", zap.Error(err))
	}
}
