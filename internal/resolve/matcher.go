package resolve

import (
	"context"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/account-linker/internal/model"
)

// MatchStats counts what the pairwise pass did with each candidate pair.
type MatchStats struct {
	PairsCompared          int64
	PairsSkippedSameRegion int64
	PairsSkippedBlocked    int64
}

// Matcher runs the pairwise pass over every cross-region account pair.
//
// The pass is O(n²) in the number of accounts. That is fine for snapshots of a
// few thousand accounts; for larger universes enable blocking, which only
// compares accounts whose normalized names share a prefix.
type Matcher struct {
	rules     Rules
	chain     []Strategy
	contacts  *ContactIndex
	manual    model.ManualLinkages
	workers   int
	prefixLen int
	now       func() time.Time
}

// Option configures a Matcher.
type Option func(*Matcher)

// WithContacts enables the contact-overlap signal.
func WithContacts(idx *ContactIndex) Option {
	return func(m *Matcher) { m.contacts = idx }
}

// WithManualLinkages sets the human-confirmed linkages that override scoring.
func WithManualLinkages(links model.ManualLinkages) Option {
	return func(m *Matcher) { m.manual = links }
}

// WithWorkers bounds the number of goroutines used by the pairwise pass.
// Values below 1 fall back to GOMAXPROCS.
func WithWorkers(n int) Option {
	return func(m *Matcher) { m.workers = n }
}

// WithBlocking restricts comparison to accounts whose normalized names share
// their first prefixLen characters (spaces ignored). Manually linked pairs
// are always compared. A prefixLen below 1 disables blocking.
func WithBlocking(prefixLen int) Option {
	return func(m *Matcher) { m.prefixLen = prefixLen }
}

// WithChain replaces the default strategy chain.
func WithChain(chain []Strategy) Option {
	return func(m *Matcher) { m.chain = chain }
}

// WithClock overrides the clock used to stamp match records.
func WithClock(now func() time.Time) Option {
	return func(m *Matcher) { m.now = now }
}

// NewMatcher creates a Matcher applying rules through the default chain.
func NewMatcher(rules Rules, opts ...Option) *Matcher {
	m := &Matcher{
		rules: rules,
		chain: DefaultChain,
		now:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.workers < 1 {
		m.workers = runtime.GOMAXPROCS(0)
	}
	return m
}

// candidate is an account with its precomputed comparison keys.
type candidate struct {
	account model.Account
	norm    string
	block   string
}

// FindMatches compares every pair of accounts from different regions exactly
// once, in i < j order, and returns the qualifying pairs in that order.
// Rows are scored concurrently; the returned slice does not depend on the
// worker count.
func (m *Matcher) FindMatches(ctx context.Context, accounts []model.Account) ([]model.MatchRecord, MatchStats, error) {
	log := zap.L().With(zap.String("component", "matcher"))

	candidates := make([]candidate, len(accounts))
	for i, a := range accounts {
		n := NormalizeName(a.Name)
		candidates[i] = candidate{account: a, norm: n, block: m.blockKey(n)}
	}

	matchedAt := m.now()
	rows := make([][]model.MatchRecord, len(candidates))
	var compared, sameRegion, blocked atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.workers)

	for i := range candidates {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return eris.Wrap(err, "matcher: context cancelled")
			}

			left := candidates[i]
			var found []model.MatchRecord
			for j := i + 1; j < len(candidates); j++ {
				right := candidates[j]

				if left.account.Region == right.account.Region {
					sameRegion.Add(1)
					continue
				}

				manual := m.manual.Linked(left.account.ID, right.account.ID)
				if !manual && m.prefixLen > 0 && left.block != right.block {
					blocked.Add(1)
					continue
				}

				compared.Add(1)
				ev := m.evidence(left, right, manual)
				c, ok := Classify(m.chain, ev, m.rules)
				if !ok {
					continue
				}
				found = append(found, newRecord(left.account, right.account, c, matchedAt))
			}
			rows[i] = found
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, MatchStats{}, err
	}

	var matches []model.MatchRecord
	for _, row := range rows {
		matches = append(matches, row...)
	}

	stats := MatchStats{
		PairsCompared:          compared.Load(),
		PairsSkippedSameRegion: sameRegion.Load(),
		PairsSkippedBlocked:    blocked.Load(),
	}

	log.Info("pairwise matching complete",
		zap.Int("accounts", len(candidates)),
		zap.Int64("pairs_compared", stats.PairsCompared),
		zap.Int64("pairs_skipped_same_region", stats.PairsSkippedSameRegion),
		zap.Int64("pairs_skipped_blocked", stats.PairsSkippedBlocked),
		zap.Int("matches", len(matches)),
	)

	return matches, stats, nil
}

// evidence gathers the signals for one pair. A manual linkage short-circuits
// the name and signal checks.
func (m *Matcher) evidence(left, right candidate, manual bool) Evidence {
	if manual {
		return Evidence{Manual: true}
	}
	ev := Evidence{
		ParentMatch: ParentMatch(left.account, right.account),
		Similarity:  normalizedSimilarity(left.norm, right.norm),
	}
	ev.ContactOverlap = m.contacts.Overlap(left.account.ID, right.account.ID)
	return ev
}

func (m *Matcher) blockKey(norm string) string {
	if m.prefixLen < 1 {
		return ""
	}
	r := []rune(strings.ReplaceAll(norm, " ", ""))
	if len(r) > m.prefixLen {
		r = r[:m.prefixLen]
	}
	return string(r)
}

func newRecord(a, b model.Account, c Classification, matchedAt time.Time) model.MatchRecord {
	return model.MatchRecord{
		Account1ID:     a.ID,
		Account1Name:   a.Name,
		Account1Region: a.Region,
		Account2ID:     b.ID,
		Account2Name:   b.Name,
		Account2Region: b.Region,
		Confidence:     c.Confidence,
		Method:         c.Method,
		MatchedAt:      matchedAt,
	}
}
