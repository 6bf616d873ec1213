package cluster

import (
	"go.uber.org/zap"

	"github.com/sells-group/account-linker/internal/model"
)

// BuildGroups unions the two accounts of every match and returns the linked
// groups of two or more accounts. Accounts connected through a chain of
// matches land in the same group even if they were never matched directly.
func BuildGroups(matches []model.MatchRecord) [][]string {
	u := NewUnionFind()
	for _, m := range matches {
		u.Union(m.Account1ID, m.Account2ID)
	}
	groups := u.Groups(2)

	zap.L().Debug("cluster: groups built",
		zap.Int("matches", len(matches)),
		zap.Int("accounts", u.Len()),
		zap.Int("groups", len(groups)),
	)
	return groups
}
