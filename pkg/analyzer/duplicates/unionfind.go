package duplicates

import "sort"

// DisjointSet is a union-find structure over the integer range [0, n).
type DisjointSet struct {
	parent []int
	rank   []uint8
}

// NewDisjointSet creates n singleton sets.
func NewDisjointSet(n int) *DisjointSet {
	d := &DisjointSet{parent: make([]int, n), rank: make([]uint8, n)}
	for i := range d.parent {
		d.parent[i] = i
	}
	return d
}

// Len returns the number of elements.
func (d *DisjointSet) Len() int { return len(d.parent) }

// Find returns the representative of x, halving paths on the way.
func (d *DisjointSet) Find(x int) int {
	for d.parent[x] != x {
		d.parent[x] = d.parent[d.parent[x]]
		x = d.parent[x]
	}
	return x
}

// Union merges the sets containing a and b. It reports whether they were distinct.
func (d *DisjointSet) Union(a, b int) bool {
	ra, rb := d.Find(a), d.Find(b)
	if ra == rb {
		return false
	}
	switch {
	case d.rank[ra] < d.rank[rb]:
		d.parent[ra] = rb
	case d.rank[ra] > d.rank[rb]:
		d.parent[rb] = ra
	default:
		d.parent[rb] = ra
		d.rank[ra]++
	}
	return true
}

// Connected reports whether a and b are in the same set.
func (d *DisjointSet) Connected(a, b int) bool {
	return d.Find(a) == d.Find(b)
}

// Groups returns every set with at least two elements. Members are sorted
// ascending and groups are ordered by their smallest member, so the result
// depends only on which unions happened.
func (d *DisjointSet) Groups() [][]int {
	byRoot := make(map[int][]int)
	for i := range d.parent {
		r := d.Find(i)
		byRoot[r] = append(byRoot[r], i)
	}
	var groups [][]int
	for _, members := range byRoot {
		if len(members) >= 2 {
			groups = append(groups, members)
		}
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i][0] < groups[j][0] })
	return groups
}
