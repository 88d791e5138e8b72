package graph

import (
	"fmt"
	"sort"

	"github.com/themill/wiz/requirement"
)

// ResolveConflicts repeatedly detects nodes sharing a definition-id at
// different versions, combines the requirements of every parent pointing
// at any of them, re-fetches the best version satisfying the combination,
// and relinks all of those parents onto a single surviving node. It keeps
// iterating -- recomputing conflicts and draining newly satisfied
// conditional packages -- until a full pass changes nothing.
//
// The combination also implicitly downgrades: since the re-fetched
// version must satisfy the intersection of every parent's requirement, it
// can land below any one parent's original pick when a stricter sibling
// requirement narrows the range, exactly the "downgrade conflicting
// versions" step.
func (c Combination) ResolveConflicts() error {
	g := c.Graph
	for {
		mutated, err := g.resolveConflictRound()
		if err != nil {
			return err
		}
		queue := g.drainConditional(nil)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]
			for _, wr := range j.Reqs {
				added, err := g.resolveOne(wr.Req, j.Parent, wr.Weight)
				if err != nil {
					g.Errors = append(g.Errors, RecordedError{Kind: ErrConflict, Err: err})
					continue
				}
				for _, nid := range added {
					queue = append(queue, weighJob(g.Nodes[nid].Package.Requirements, nid))
				}
				queue = g.drainConditional(queue)
				mutated = true
			}
		}
		if !mutated {
			break
		}
	}
	g.prune()
	return nil
}

// conflictGroup is every reachable node sharing a definition-id, when
// there is more than one. Nodes within a group are collected in the same
// deterministic distance order OrderedNodes uses, not map iteration
// order, so the combined requirement resolveGroup builds from them (and
// therefore the RecordedError and resolved identity it can produce) is
// byte-identical across runs.
func (g *Graph) conflictGroups() map[string][]NodeID {
	groups := make(map[string][]NodeID)
	for _, nid := range g.OrderedNodes() {
		defID := g.Nodes[nid].DefinitionID
		groups[defID] = append(groups[defID], nid)
	}
	for id, nodes := range groups {
		if len(nodes) < 2 {
			delete(groups, id)
		}
	}
	return groups
}

func (g *Graph) resolveConflictRound() (bool, error) {
	groups := g.conflictGroups()
	if len(groups) == 0 {
		return false, nil
	}

	ids := make([]string, 0, len(groups))
	for id := range groups {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	mutated := false
	for _, defID := range ids {
		if g.failedGroups[defID] {
			continue
		}
		nodes := groups[defID]
		if !g.allReachable(nodes) {
			continue // a prior iteration already collapsed this group
		}
		changed, err := g.resolveGroup(defID, nodes)
		if err != nil {
			return mutated, err
		}
		mutated = mutated || changed
	}
	return mutated, nil
}

func (g *Graph) allReachable(nodes []NodeID) bool {
	reachable := g.Reachable()
	for _, n := range nodes {
		if !reachable[n] {
			return false
		}
	}
	return true
}

// resolveGroup collapses every node in a conflicting definition group into
// a single node satisfying the combination of all of their parents'
// requirements, relinking every parent edge onto the survivor.
func (g *Graph) resolveGroup(defID string, nodes []NodeID) (bool, error) {
	var reqs []requirement.Requirement
	var parentEdges []Edge
	for _, n := range nodes {
		for _, e := range g.ParentEdges(n) {
			reqs = append(reqs, e.Requirement)
			parentEdges = append(parentEdges, e)
		}
	}
	if len(reqs) == 0 {
		return false, nil
	}

	parentDefIDs := g.parentDefinitionIDs(parentEdges)

	combined, err := requirement.Combine(reqs)
	if err != nil {
		g.failGroup(defID, parentDefIDs, reqs, fmt.Errorf("conflicting requirements for %s: %w", defID, err))
		return false, nil
	}

	def, err := g.idx.FetchExcluding(combined, g.namespaceHints, g.descriptor, g.excludedVersions)
	if err != nil {
		g.failGroup(defID, parentDefIDs, reqs, fmt.Errorf("no version of %s satisfies combined requirement %s", defID, combined.String()))
		return false, nil
	}

	variantIndex := -1
	if combined.Extra != "" {
		for i, v := range def.Variants {
			if v.Identifier == combined.Extra {
				variantIndex = i
				break
			}
		}
	}
	pkg, err := g.mat.Materialize(def, variantIndex)
	if err != nil {
		return false, err
	}

	survivor, isNew := g.addNode(pkg, defID)

	for _, e := range parentEdges {
		if e.From == survivor {
			continue
		}
		if err := g.addEdge(e.From, survivor, combined, e.Weight); err != nil {
			g.Errors = append(g.Errors, RecordedError{Kind: ErrInvalidNodes, Err: err})
		}
	}
	for _, n := range nodes {
		if n == survivor {
			continue
		}
		g.detachParentEdges(n)
	}
	g.prune()

	if isNew {
		// A freshly materialized survivor's own requirements still need to
		// flow into the working graph; resolveConflictRound only links
		// edges, it does not expand.
		if err := g.Expand(pkg.Requirements, survivor); err != nil {
			return false, err
		}
	}
	return true, nil
}

func (g *Graph) failGroup(defID string, parentDefIDs []string, reqs []requirement.Requirement, err error) {
	if g.failedGroups == nil {
		g.failedGroups = make(map[string]bool)
	}
	if g.failedGroups[defID] {
		return
	}
	g.failedGroups[defID] = true
	re := RecordedError{
		Kind:                ErrConflict,
		Err:                 err,
		DefinitionID:        defID,
		ParentDefinitionIDs: parentDefIDs,
	}
	if len(reqs) > 0 {
		re.A = reqs[0]
	}
	if len(reqs) > 1 {
		re.B = reqs[1]
	}
	g.Errors = append(g.Errors, re)
}

// parentDefinitionIDs returns the distinct, non-root definition-ids of the
// nodes at the originating end of edges, in first-seen order.
func (g *Graph) parentDefinitionIDs(edges []Edge) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, e := range edges {
		if e.From == Root {
			continue
		}
		id := g.Nodes[e.From].DefinitionID
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// detachParentEdges removes every edge pointing at n, leaving n orphaned
// for the next prune pass to collect.
func (g *Graph) detachParentEdges(n NodeID) {
	kept := make([]Edge, 0, len(g.Edges))
	for _, e := range g.Edges {
		if e.To == n {
			continue
		}
		kept = append(kept, e)
	}
	g.Edges = kept
	g.rebuildEdgeIndex()
}

// Validate reports whether this combination resolved cleanly, returning
// the classified error from AsError when it did not.
func (c Combination) Validate() error {
	return c.AsError()
}
