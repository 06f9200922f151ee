package duplicates

import (
	"sort"

	"github.com/RoaringBitmap/roaring/v2"
)

// fragment is one comparable unit: a whole symbol or a block inside one.
type fragment struct {
	member Member
	owner  int // arena index of the symbol the fragment belongs to
	set    *roaring.Bitmap
}

type clonePair struct {
	a, b       int
	similarity float64
}

// cluster is one equivalence class produced by clustering, with the maximum
// pairwise similarity seen between its members.
type cluster struct {
	members    []int
	similarity float64
}

// skipFunc vetoes a candidate pair before it is scored.
type skipFunc func(a, b *fragment) bool

// clusterFragments links every candidate pair whose Jaccard similarity is at
// or above threshold and returns the resulting classes of two or more.
//
// Candidates come from an inverted index over set values, so fragments that
// share nothing are never compared. Fragments with empty sets are ignored.
func clusterFragments(frags []fragment, threshold float64, skip skipFunc) []cluster {
	postings := make(map[uint32][]uint32)
	for i := range frags {
		it := frags[i].set.Iterator()
		for it.HasNext() {
			v := it.Next()
			postings[v] = append(postings[v], uint32(i))
		}
	}

	ds := NewDisjointSet(len(frags))
	var pairs []clonePair
	for i := range frags {
		if frags[i].set.IsEmpty() {
			continue
		}
		candidates := roaring.New()
		it := frags[i].set.Iterator()
		for it.HasNext() {
			candidates.AddMany(postings[it.Next()])
		}
		cit := candidates.Iterator()
		cit.AdvanceIfNeeded(uint32(i + 1))
		for cit.HasNext() {
			j := int(cit.Next())
			if skip != nil && skip(&frags[i], &frags[j]) {
				continue
			}
			sim := Jaccard(frags[i].set, frags[j].set)
			if sim >= threshold {
				ds.Union(i, j)
				pairs = append(pairs, clonePair{a: i, b: j, similarity: sim})
			}
		}
	}

	best := make(map[int]float64)
	for _, p := range pairs {
		root := ds.Find(p.a)
		if p.similarity > best[root] {
			best[root] = p.similarity
		}
	}

	var out []cluster
	for _, members := range ds.Groups() {
		out = append(out, cluster{members: members, similarity: best[ds.Find(members[0])]})
	}
	return out
}

// toGroups converts clusters into groups, ordering members by location.
func toGroups(frags []fragment, clusters []cluster, typ Type, gran Granularity) []Group {
	groups := make([]Group, 0, len(clusters))
	for _, c := range clusters {
		g := Group{Type: typ, Granularity: gran, Similarity: c.similarity}
		minSize := -1
		for _, idx := range c.members {
			g.Members = append(g.Members, frags[idx].member)
			if size := int(frags[idx].set.GetCardinality()); minSize < 0 || size < minSize {
				minSize = size
			}
		}
		if typ == Type3 {
			g.FingerprintSize = minSize
		}
		sortMembers(g.Members)
		groups = append(groups, g)
	}
	return groups
}

func sortMembers(ms []Member) {
	sort.Slice(ms, func(i, j int) bool { return memberLess(ms[i], ms[j]) })
}

func memberLess(a, b Member) bool {
	if a.Location.File != b.Location.File {
		return a.Location.File < b.Location.File
	}
	if a.Location.Line != b.Location.Line {
		return a.Location.Line < b.Location.Line
	}
	if a.Location.EndLine != b.Location.EndLine {
		return a.Location.EndLine < b.Location.EndLine
	}
	return a.Symbol < b.Symbol
}

func sameSymbolOverlap(a, b *fragment) bool {
	return a.owner == b.owner && a.member.Location.Overlaps(b.member.Location)
}
