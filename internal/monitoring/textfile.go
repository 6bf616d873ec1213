package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"

	"github.com/sells-group/account-linker/internal/model"
)

const namespace = "account_linker"

// Exporter renders run metrics into a dedicated Prometheus registry, for the
// node_exporter textfile collector.
type Exporter struct {
	reg *prometheus.Registry

	accounts        *prometheus.GaugeVec
	pairs           *prometheus.GaugeVec
	matches         *prometheus.GaugeVec
	groups          prometheus.Gauge
	groupedAccounts prometheus.Gauge
	contacts        prometheus.Gauge
	contactsOK      prometheus.Gauge
	manual          prometheus.Gauge
	duration        prometheus.Gauge
	lastRun         prometheus.Gauge
	lastSuccess     prometheus.Gauge
	ledgerRuns      *prometheus.GaugeVec
	failureStreak   prometheus.Gauge
}

// NewExporter registers the run gauges on a fresh registry.
func NewExporter() *Exporter {
	gauge := func(subsystem, name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
		})
	}
	gaugeVec := func(subsystem, name, help string, labels ...string) *prometheus.GaugeVec {
		return prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: subsystem, Name: name, Help: help,
		}, labels)
	}

	e := &Exporter{
		reg:             prometheus.NewRegistry(),
		accounts:        gaugeVec("run", "accounts", "Accounts seen by the last run by state", "state"),
		pairs:           gaugeVec("run", "pairs", "Account pairs enumerated by the last run by outcome", "outcome"),
		matches:         gaugeVec("run", "matches", "Matches produced by the last run by method", "method"),
		groups:          gauge("run", "groups_formed", "Master accounts formed by the last run"),
		groupedAccounts: gauge("run", "grouped_accounts", "Regional accounts placed in a master account"),
		contacts:        gauge("run", "contacts_loaded", "Contacts loaded by the last run"),
		contactsOK:      gauge("run", "contacts_available", "1 if the contact signal was available"),
		manual:          gauge("run", "manual_linkages", "Manual linkages loaded by the last run"),
		duration:        gauge("run", "duration_seconds", "Wall-clock duration of the last run"),
		lastRun:         gauge("run", "last_timestamp_seconds", "Unix time the last run finished"),
		lastSuccess:     gauge("run", "last_success", "1 if the last run completed"),
		ledgerRuns:      gaugeVec("ledger", "runs", "Recent ledger runs by status", "status"),
		failureStreak:   gauge("ledger", "consecutive_failures", "Failed runs since the last success"),
	}
	e.reg.MustRegister(
		e.accounts, e.pairs, e.matches, e.groups, e.groupedAccounts,
		e.contacts, e.contactsOK, e.manual, e.duration, e.lastRun, e.lastSuccess,
		e.ledgerRuns, e.failureStreak,
	)
	return e
}

// Registry exposes the underlying registry.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.reg
}

// ObserveRun records one run's metrics.
func (e *Exporter) ObserveRun(m *model.RunMetrics, succeeded bool) {
	if m == nil {
		return
	}
	e.accounts.WithLabelValues("loaded").Set(float64(m.AccountsLoaded))
	e.accounts.WithLabelValues("considered").Set(float64(m.AccountsConsidered))
	e.accounts.WithLabelValues("excluded").Set(float64(m.AccountsExcluded))
	e.accounts.WithLabelValues("duplicate").Set(float64(m.DuplicateAccountIDs))

	e.pairs.WithLabelValues("compared").Set(float64(m.PairsCompared))
	e.pairs.WithLabelValues("skipped_same_region").Set(float64(m.PairsSkippedSameRegion))
	e.pairs.WithLabelValues("skipped_blocked").Set(float64(m.PairsSkippedBlocked))

	for _, method := range model.AllMethods {
		e.matches.WithLabelValues(string(method)).Set(float64(m.MatchesByMethod[method]))
	}

	e.groups.Set(float64(m.GroupsFormed))
	e.groupedAccounts.Set(float64(m.GroupedAccounts))
	e.contacts.Set(float64(m.ContactsLoaded))
	e.contactsOK.Set(boolGauge(m.ContactsAvailable))
	e.manual.Set(float64(m.ManualLinkages))
	e.duration.Set(m.Duration().Seconds())
	if !m.FinishedAt.IsZero() {
		e.lastRun.Set(float64(m.FinishedAt.Unix()))
	}
	e.lastSuccess.Set(boolGauge(succeeded))
}

// ObserveLedger records a ledger snapshot.
func (e *Exporter) ObserveLedger(s *LedgerSnapshot) {
	if s == nil {
		return
	}
	e.ledgerRuns.WithLabelValues(string(model.RunStatusComplete)).Set(float64(s.Complete))
	e.ledgerRuns.WithLabelValues(string(model.RunStatusFailed)).Set(float64(s.Failed))
	e.ledgerRuns.WithLabelValues(string(model.RunStatusRunning)).Set(float64(s.Running))
	e.failureStreak.Set(float64(s.ConsecutiveFailures))
}

// WriteTextfile writes the registry to path atomically.
func (e *Exporter) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, e.reg); err != nil {
		return eris.Wrapf(err, "monitoring: write textfile %s", path)
	}
	return nil
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
