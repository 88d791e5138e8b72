package graph

import (
	"sort"

	"github.com/themill/wiz/requirement"
)

// Combination is one fully variant-pinned candidate graph, produced by
// choosing exactly one node per variant group and discarding the rest.
type Combination struct {
	Graph *Graph
}

// orderedVariantGroups returns the definition-ids with an unresolved
// variant group, sorted by decreasing number of incoming requirement
// edges across the group's nodes (the most-depended-upon variant choice
// is resolved first), tie-broken lexicographically by definition-id for
// determinism.
func (g *Graph) orderedVariantGroups() []string {
	keys := make([]string, 0, len(g.VariantGroups))
	for k := range g.VariantGroups {
		keys = append(keys, k)
	}
	occurrences := func(defID string) int {
		total := 0
		for _, nid := range g.VariantGroups[defID] {
			total += len(g.parentEdges[nid])
		}
		return total
	}
	sort.Slice(keys, func(i, j int) bool {
		oi, oj := occurrences(keys[i]), occurrences(keys[j])
		if oi != oj {
			return oi > oj
		}
		return keys[i] < keys[j]
	})
	return keys
}

// ownRequirements indexes a node's declared requirements by the qualified
// name of the definition they target, used for the combination
// generator's pairwise pre-check.
func ownRequirements(g *Graph, n NodeID) map[string]requirement.Requirement {
	out := make(map[string]requirement.Requirement)
	for _, r := range g.Nodes[n].Package.Requirements {
		out[r.QualifiedName()] = r
	}
	return out
}

// GenerateCombinations enumerates every way of picking one node per
// variant group, in the order the first group iterates slowest and the
// last group iterates fastest, skipping any selection whose chosen
// nodes' own requirements pairwise conflict. If there are no variant
// groups, the single input graph is returned unchanged (wrapped in its
// own Combination).
//
// This materializes the full sequence eagerly; a caller that wants to
// stop early against a budget (the resolver driver) should pull from
// Combinations instead.
func (g *Graph) GenerateCombinations() []Combination {
	var combos []Combination
	it := g.Combinations()
	for {
		c, ok := it.Next()
		if !ok {
			break
		}
		combos = append(combos, c)
	}
	return combos
}

// CombinationIterator lazily walks the same sequence GenerateCombinations
// enumerates, advancing its internal indices only as the caller pulls the
// next value, so a combination budget can abort the walk before the
// remaining (possibly large) tail of the permutation space is ever pruned
// into a graph.
type CombinationIterator struct {
	g       *Graph
	groups  []string
	choices [][]NodeID
	indices []int
	started bool
	done    bool
}

// Combinations returns a lazy iterator over the same selections
// GenerateCombinations enumerates.
func (g *Graph) Combinations() *CombinationIterator {
	groups := g.orderedVariantGroups()
	choices := make([][]NodeID, len(groups))
	for i, defID := range groups {
		choices[i] = g.VariantGroups[defID]
	}
	return &CombinationIterator{g: g, groups: groups, choices: choices, indices: make([]int, len(groups))}
}

// Next returns the next pairwise-compatible combination, pruning the
// selection into its own graph only once it is known to be wanted.
// Returns false once every selection has been produced.
func (it *CombinationIterator) Next() (Combination, bool) {
	if it.done {
		return Combination{}, false
	}
	if len(it.groups) == 0 {
		it.done = true
		if it.started {
			return Combination{}, false
		}
		it.started = true
		return Combination{Graph: it.g}, true
	}
	for {
		if it.started {
			if !it.advance() {
				it.done = true
				return Combination{}, false
			}
		}
		it.started = true
		if it.g.pairwiseCompatible(it.indices, it.choices) {
			return Combination{Graph: it.g.pruneToSelection(it.groups, it.choices, it.indices)}, true
		}
	}
}

// advance steps the indices to the next permutation, the last group
// fastest, reporting whether any permutation remains.
func (it *CombinationIterator) advance() bool {
	pos := len(it.indices) - 1
	for pos >= 0 {
		it.indices[pos]++
		if it.indices[pos] < len(it.choices[pos]) {
			return true
		}
		it.indices[pos] = 0
		pos--
	}
	return false
}

func (g *Graph) pairwiseCompatible(indices []int, choices [][]NodeID) bool {
	selected := make([]NodeID, len(choices))
	for i, idx := range indices {
		selected[i] = choices[i][idx]
	}
	for i := 0; i < len(selected); i++ {
		for j := i + 1; j < len(selected); j++ {
			a, b := ownRequirements(g, selected[i]), ownRequirements(g, selected[j])
			if len(requirement.CheckConflicting(a, b)) > 0 {
				return false
			}
		}
	}
	return true
}

// pruneToSelection clones g, removes every node in a variant group that
// was not selected, and drops the edges that touched them before pruning
// whatever became unreachable.
func (g *Graph) pruneToSelection(groups []string, choices [][]NodeID, indices []int) *Graph {
	keep := make(map[NodeID]bool)
	for i, defID := range groups {
		selected := choices[i][indices[i]]
		for _, nid := range g.VariantGroups[defID] {
			if nid == selected {
				keep[nid] = true
			}
		}
	}

	clone := g.Clone()
	drop := make(map[NodeID]bool)
	for _, defID := range groups {
		for _, nid := range clone.VariantGroups[defID] {
			if !keep[nid] {
				drop[nid] = true
			}
		}
	}
	clone.removeNodes(drop)
	clone.VariantGroups = make(map[string][]NodeID)
	clone.prune()
	return clone
}

// removeNodes strips the given nodes and every edge touching them.
func (g *Graph) removeNodes(drop map[NodeID]bool) {
	if len(drop) == 0 {
		return
	}
	keptEdges := make([]Edge, 0, len(g.Edges))
	for _, e := range g.Edges {
		if drop[e.From] || drop[e.To] {
			continue
		}
		keptEdges = append(keptEdges, e)
	}
	g.Edges = keptEdges
	g.rebuildEdgeIndex()
}

func (g *Graph) rebuildEdgeIndex() {
	g.childEdges = make([][]int, len(g.Nodes))
	g.parentEdges = make([][]int, len(g.Nodes))
	for i, e := range g.Edges {
		g.childEdges[e.From] = append(g.childEdges[e.From], i)
		g.parentEdges[e.To] = append(g.parentEdges[e.To], i)
	}
}

// prune drops every edge touching a node no longer reachable from the
// root, repeating until a pass finds nothing new to drop. g.Nodes is
// append-only (NodeIDs must stay stable once issued, per Reachable's
// doc), so an orphan is never actually removed from the arena -- the
// loop cannot compare against len(g.Nodes) to know it is done, since
// that count never shrinks. Instead it tracks how many nodes were
// reachable on the previous pass and stops once a fresh pass reaches
// the same count: since edges between two still-reachable nodes are
// never touched by removeNodes, the reachable set cannot shrink further
// once a pass reproduces it.
func (g *Graph) prune() {
	reachableCount := -1
	for {
		reachable := make(map[NodeID]bool)
		var stack []NodeID
		reachable[Root] = true
		stack = append(stack, Root)
		for len(stack) > 0 {
			n := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			for _, ei := range g.childEdges[n] {
				e := g.Edges[ei]
				if !reachable[e.To] {
					reachable[e.To] = true
					stack = append(stack, e.To)
				}
			}
		}
		if len(reachable) == reachableCount {
			return
		}
		reachableCount = len(reachable)

		drop := make(map[NodeID]bool)
		for i := range g.Nodes {
			nid := NodeID(i)
			if !reachable[nid] {
				drop[nid] = true
			}
		}
		g.removeNodes(drop)
	}
}
