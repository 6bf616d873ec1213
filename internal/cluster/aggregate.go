package cluster

import (
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/shopspring/decimal"

	"github.com/sells-group/account-linker/internal/model"
)

// Aggregator builds master accounts from linked groups.
type Aggregator struct {
	newID func() string
	now   func() time.Time
}

// AggregatorOption configures an Aggregator.
type AggregatorOption func(*Aggregator)

// WithIDGenerator overrides how master account IDs are minted.
func WithIDGenerator(fn func() string) AggregatorOption {
	return func(a *Aggregator) { a.newID = fn }
}

// WithAggregatorClock overrides the created_at clock.
func WithAggregatorClock(fn func() time.Time) AggregatorOption {
	return func(a *Aggregator) { a.now = fn }
}

// NewAggregator creates an Aggregator. Master account IDs are random UUIDs
// and are not stable across runs.
func NewAggregator(opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		newID: uuid.NewString,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Aggregate produces one master account per group. Revenue is summed across
// the group; the name and primary region come from the highest-revenue
// account, ties going to the smallest account ID.
func (a *Aggregator) Aggregate(groups [][]string, accounts map[string]model.Account) ([]model.MasterAccount, error) {
	createdAt := a.now()
	masters := make([]model.MasterAccount, 0, len(groups))

	for _, group := range groups {
		if len(group) == 0 {
			continue
		}
		ids := append([]string(nil), group...)
		sort.Strings(ids)

		total := decimal.Zero
		regionSet := make(map[string]struct{})
		var primary model.Account

		for i, id := range ids {
			acct, ok := accounts[id]
			if !ok {
				return nil, eris.Errorf("cluster: account %s in group but not in account set", id)
			}
			total = total.Add(acct.AnnualRevenue)
			regionSet[acct.Region] = struct{}{}
			if i == 0 || acct.AnnualRevenue.GreaterThan(primary.AnnualRevenue) {
				primary = acct
			}
		}

		regions := make([]string, 0, len(regionSet))
		for r := range regionSet {
			regions = append(regions, r)
		}
		sort.Strings(regions)

		masters = append(masters, model.MasterAccount{
			ID:                 a.newID(),
			Name:               primary.Name,
			RegionalAccountIDs: ids,
			Regions:            regions,
			TotalRevenue:       total.InexactFloat64(),
			AccountCount:       len(ids),
			PrimaryRegion:      primary.Region,
			CreatedAt:          createdAt,
		})
	}

	return masters, nil
}
