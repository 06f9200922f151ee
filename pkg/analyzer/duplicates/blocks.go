package duplicates

import (
	"sort"

	"github.com/panbanda/augur/pkg/graph"
	"github.com/panbanda/augur/pkg/syntax"
)

// BlockGroups finds near clones among windows of consecutive top-level
// statements inside function bodies.
//
// Windows of the same symbol that overlap are never paired, and in
// cross-function-only mode no two windows of one symbol are paired at all.
// A window spanning a whole body is left to the symbol-level pass.
func (m *NearMatcher) BlockGroups(g *graph.CodeGraph) []Group {
	frags := m.blockFragments(g)
	skip := sameSymbolOverlap
	if m.blocks.CrossFunctionOnly {
		skip = func(a, b *fragment) bool { return a.owner == b.owner }
	}
	clusters := clusterFragments(frags, m.blocks.Threshold, skip)
	reduced := clusters[:0]
	for _, c := range clusters {
		if c = widestPerRun(frags, c); len(c.members) >= 2 {
			reduced = append(reduced, c)
		}
	}
	return pruneBlockGroups(toGroups(frags, reduced, Type3, GranularityBlock))
}

// widestPerRun collapses the windows one symbol contributes to a cluster.
// Union-find links overlapping windows of a symbol through a shared partner,
// so each run of overlapping windows is replaced by its widest window, the
// earliest one on ties.
func widestPerRun(frags []fragment, c cluster) cluster {
	byOwner := make(map[int][]int)
	var owners []int
	for _, idx := range c.members {
		owner := frags[idx].owner
		if _, ok := byOwner[owner]; !ok {
			owners = append(owners, owner)
		}
		byOwner[owner] = append(byOwner[owner], idx)
	}
	sort.Ints(owners)

	var kept []int
	for _, owner := range owners {
		idxs := byOwner[owner]
		sort.Slice(idxs, func(i, j int) bool {
			return memberLess(frags[idxs[i]].member, frags[idxs[j]].member)
		})
		best := idxs[0]
		runEnd := frags[best].member.Location.EndLine
		for _, idx := range idxs[1:] {
			loc := frags[idx].member.Location
			if loc.Line > runEnd {
				kept = append(kept, best)
				best, runEnd = idx, loc.EndLine
				continue
			}
			runEnd = max(runEnd, loc.EndLine)
			if loc.Lines() > frags[best].member.Location.Lines() {
				best = idx
			}
		}
		kept = append(kept, best)
	}
	return cluster{members: kept, similarity: c.similarity}
}

func (m *NearMatcher) blockFragments(g *graph.CodeGraph) []fragment {
	minStmts, maxStmts := m.blocks.MinStatements, m.blocks.MaxStatements
	if minStmts <= 0 {
		minStmts = 1
	}

	var frags []fragment
	for i, sym := range g.Symbols() {
		if sym.Tree == nil || (sym.Kind != graph.KindFunction && sym.Kind != graph.KindMethod) {
			continue
		}
		stmts := bodyStatements(sym.Tree)
		for start := 0; start < len(stmts); start++ {
			for size := minStmts; size <= maxStmts && start+size <= len(stmts); size++ {
				if start == 0 && size == len(stmts) {
					continue
				}
				window := stmts[start : start+size]
				loc := blockLocation(sym, window)
				if loc.Lines() < m.blocks.MinLines {
					continue
				}
				tokens := m.light.Tokens(syntax.Block(window...), "")
				fp := Fingerprint(tokens, m.blocks.NGramSize, m.blocks.WindowSize)
				if fp.IsEmpty() {
					continue
				}
				frags = append(frags, fragment{
					member: Member{Symbol: sym.FQName, Location: loc, Index: i},
					owner:  i,
					set:    fp,
				})
			}
		}
	}
	return frags
}

// bodyStatements returns the body statements that carry code, skipping docs and comments.
func bodyStatements(tree *syntax.Node) []*syntax.Node {
	var out []*syntax.Node
	for _, st := range tree.Body() {
		if st == nil {
			continue
		}
		switch st.Kind {
		case syntax.KindDoc, syntax.KindComment:
			continue
		}
		out = append(out, st)
	}
	return out
}

func blockLocation(sym *graph.Symbol, window []*syntax.Node) graph.Location {
	first, last := window[0], window[len(window)-1]
	end := last.EndLine
	if end < last.Line {
		end = last.Line
	}
	return graph.Location{
		File:    sym.Location.File,
		Line:    first.Line,
		Column:  first.Col,
		EndLine: end,
	}
}

// pruneBlockGroups keeps the largest groups first and drops any group whose
// members are all covered by members of a group already kept.
func pruneBlockGroups(groups []Group) []Group {
	span := func(g Group) int {
		total := 0
		for _, m := range g.Members {
			total += m.Location.Lines()
		}
		return total
	}
	sort.SliceStable(groups, func(i, j int) bool {
		si, sj := span(groups[i]), span(groups[j])
		if si != sj {
			return si > sj
		}
		return memberLess(groups[i].Members[0], groups[j].Members[0])
	})

	var kept []Group
	for _, g := range groups {
		redundant := true
		for _, m := range g.Members {
			if !coveredBy(m, kept) {
				redundant = false
				break
			}
		}
		if !redundant {
			kept = append(kept, g)
		}
	}

	sort.SliceStable(kept, func(i, j int) bool {
		return memberLess(kept[i].Members[0], kept[j].Members[0])
	})
	return kept
}

func coveredBy(m Member, groups []Group) bool {
	for _, g := range groups {
		for _, o := range g.Members {
			if o.Symbol == m.Symbol && o.Location.Overlaps(m.Location) {
				return true
			}
		}
	}
	return false
}
