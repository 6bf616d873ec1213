// Package cluster turns pairwise account matches into master accounts: a
// union-find closes matches transitively, and each resulting group is
// aggregated into one consolidated identity.
package cluster

import (
	"sort"
)

// UnionFind is a disjoint-set forest over account IDs with path compression
// and union by rank. It is not safe for concurrent use.
type UnionFind struct {
	parent map[string]string
	rank   map[string]int
}

// NewUnionFind creates a forest with each of ids in its own set.
func NewUnionFind(ids ...string) *UnionFind {
	u := &UnionFind{
		parent: make(map[string]string, len(ids)),
		rank:   make(map[string]int, len(ids)),
	}
	for _, id := range ids {
		u.Add(id)
	}
	return u
}

// Add inserts id as a singleton set. Adding a known id is a no-op.
func (u *UnionFind) Add(id string) {
	if _, ok := u.parent[id]; ok {
		return
	}
	u.parent[id] = id
	u.rank[id] = 0
}

// Find returns the representative of the set containing id, adding id first
// if it is unknown.
func (u *UnionFind) Find(id string) string {
	u.Add(id)
	root := id
	for u.parent[root] != root {
		root = u.parent[root]
	}
	for id != root {
		next := u.parent[id]
		u.parent[id] = root
		id = next
	}
	return root
}

// Union merges the sets containing a and b. It reports whether they were
// previously disjoint.
func (u *UnionFind) Union(a, b string) bool {
	ra, rb := u.Find(a), u.Find(b)
	if ra == rb {
		return false
	}
	switch {
	case u.rank[ra] < u.rank[rb]:
		u.parent[ra] = rb
	case u.rank[ra] > u.rank[rb]:
		u.parent[rb] = ra
	default:
		u.parent[rb] = ra
		u.rank[ra]++
	}
	return true
}

// Connected reports whether a and b are in the same set.
func (u *UnionFind) Connected(a, b string) bool {
	return u.Find(a) == u.Find(b)
}

// Len returns the number of elements in the forest.
func (u *UnionFind) Len() int {
	return len(u.parent)
}

// Groups returns every set with at least minSize members. Members are sorted
// ascending and groups are ordered by their smallest member, so the result
// depends only on the partition, not on the order of unions.
func (u *UnionFind) Groups(minSize int) [][]string {
	byRoot := make(map[string][]string)
	for id := range u.parent {
		root := u.Find(id)
		byRoot[root] = append(byRoot[root], id)
	}

	groups := make([][]string, 0, len(byRoot))
	for _, members := range byRoot {
		if len(members) < minSize {
			continue
		}
		sort.Strings(members)
		groups = append(groups, members)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })
	return groups
}
