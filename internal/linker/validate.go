package linker

import (
	"strings"

	"github.com/sells-group/account-linker/internal/model"
	"github.com/sells-group/account-linker/internal/resolve"
	"github.com/sells-group/account-linker/internal/snapshot"
)

// Exclusion reasons.
const (
	ReasonMissingID       = "missing account_id"
	ReasonMissingName     = "missing account_name"
	ReasonMissingRegion   = "missing region"
	ReasonUnknownRegion   = "region not in allow-list"
	ReasonEmptyNormalized = "account_name normalizes to empty"
)

// Exclusion is an account row kept out of pairwise comparison.
type Exclusion struct {
	AccountID string `json:"account_id,omitempty"`
	Row       int    `json:"row,omitempty"` // source row, decode failures only
	Reason    string `json:"reason"`
}

// Screening is the outcome of validating the loaded accounts.
type Screening struct {
	Accounts   []model.Account
	Excluded   []Exclusion
	Duplicates []string
}

// ScreenAccounts keeps the accounts that can take part in matching. Rows
// without an ID, a name or a region, rows outside the region allow-list and
// names that normalize to nothing are excluded. A repeated account ID keeps
// its first row.
func ScreenAccounts(accounts []model.Account, regions []string) Screening {
	allowed := make(map[string]bool, len(regions))
	for _, r := range regions {
		if r = strings.TrimSpace(r); r != "" {
			allowed[r] = true
		}
	}

	var s Screening
	seen := make(map[string]bool, len(accounts))
	for _, a := range accounts {
		a.ID = strings.TrimSpace(a.ID)
		a.Region = strings.TrimSpace(a.Region)

		reason := ""
		switch {
		case a.ID == "":
			reason = ReasonMissingID
		case strings.TrimSpace(a.Name) == "":
			reason = ReasonMissingName
		case a.Region == "":
			reason = ReasonMissingRegion
		case len(allowed) > 0 && !allowed[a.Region]:
			reason = ReasonUnknownRegion
		case resolve.NormalizeName(a.Name) == "":
			reason = ReasonEmptyNormalized
		}
		if reason != "" {
			s.Excluded = append(s.Excluded, Exclusion{AccountID: a.ID, Reason: reason})
			continue
		}

		if seen[a.ID] {
			s.Duplicates = append(s.Duplicates, a.ID)
			continue
		}
		seen[a.ID] = true
		s.Accounts = append(s.Accounts, a)
	}
	return s
}

// rejectedExclusions converts decode failures into exclusions.
func rejectedExclusions(issues []snapshot.RowIssue) []Exclusion {
	out := make([]Exclusion, len(issues))
	for i, is := range issues {
		out[i] = Exclusion{AccountID: is.AccountID, Row: is.Row, Reason: is.Reason}
	}
	return out
}
