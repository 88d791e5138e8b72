package graph

import (
	"github.com/themill/wiz/definition"
	"github.com/themill/wiz/materialize"
	"github.com/themill/wiz/requirement"
)

// weightedReq pairs a requirement with the weight its position in the
// enclosing requirement list earned it. The weight is fixed once and
// carried through to the edge the requirement eventually produces, even
// if the package is parked on the conditional queue in between.
type weightedReq struct {
	Req    requirement.Requirement
	Weight int
}

type job struct {
	Reqs   []weightedReq
	Parent NodeID
}

func weighJob(reqs []requirement.Requirement, parent NodeID) job {
	weighted := make([]weightedReq, len(reqs))
	for i, r := range reqs {
		weighted[i] = weightedReq{Req: r, Weight: i + 1}
	}
	return job{Reqs: weighted, Parent: parent}
}

// Expand resolves reqs against the registry and extends the graph below
// parent, then recursively expands every newly materialized node's own
// requirements. Requirements are visited in strict breadth-first order:
// everything at the current depth is processed before anything at the
// next, matching the ordering guarantee the distance engine and the
// variant combination generator both rely on for determinism.
func (g *Graph) Expand(reqs []requirement.Requirement, parent NodeID) error {
	queue := []job{weighJob(reqs, parent)}
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
		}
	}
	return nil
}

// drainConditional promotes every pending package whose conditions are now
// satisfied, appending their requirements to queue, and repeats until a
// full pass makes no further progress.
func (g *Graph) drainConditional(queue []job) []job {
	for {
		progressed := false
		remaining := g.Conditional[:0:0]
		for _, p := range g.Conditional {
			conds, _ := parseAll(p.Def.Conditions)
			if !g.conditionsSatisfied(conds) {
				remaining = append(remaining, p)
				continue
			}
			added, err := g.place(p.Def, p.Req, p.Parent, p.Weight)
			if err != nil {
				g.Errors = append(g.Errors, RecordedError{Kind: ErrConflict, Err: err})
				continue
			}
			progressed = true
			for _, nid := range added {
				queue = append(queue, weighJob(g.Nodes[nid].Package.Requirements, nid))
			}
		}
		g.Conditional = remaining
		if !progressed {
			return queue
		}
	}
}

func parseAll(raw []string) ([]requirement.Requirement, error) {
	reqs := make([]requirement.Requirement, 0, len(raw))
	for _, s := range raw {
		r, err := requirement.Parse(s)
		if err != nil {
			return nil, err
		}
		reqs = append(reqs, r)
	}
	return reqs, nil
}

// resolveOne fetches the definition satisfying req and, if its conditions
// are satisfied, places it in the graph; otherwise it is parked on the
// conditional queue for later promotion, keeping weight so its eventual
// edge carries the priority its original position earned.
func (g *Graph) resolveOne(req requirement.Requirement, parent NodeID, weight int) ([]NodeID, error) {
	def, err := g.idx.FetchExcluding(req, g.namespaceHints, g.descriptor, g.excludedVersions)
	if err != nil {
		return nil, err
	}

	conds, err := parseAll(def.Conditions)
	if err != nil {
		return nil, err
	}
	if !g.conditionsSatisfied(conds) {
		g.Conditional = append(g.Conditional, pending{Def: def, Req: req, Parent: parent, Weight: weight})
		return nil, nil
	}
	return g.place(def, req, parent, weight)
}

// place materializes def against req and links it below parent, handling
// the abstract-variant case by placing one node per declared variant and
// recording the variant group.
func (g *Graph) place(def definition.Definition, req requirement.Requirement, parent NodeID, weight int) ([]NodeID, error) {
	definitionID := def.QualifiedIdentifier()

	if materialize.IsAbstract(def, req.Extra) {
		var added []NodeID
		var group []NodeID
		for i := range def.Variants {
			pkg, err := g.mat.Materialize(def, i)
			if err != nil {
				return nil, err
			}
			nid, isNew := g.addNode(pkg, definitionID)
			group = append(group, nid)
			if isNew {
				added = append(added, nid)
			}
			if err := g.addEdge(parent, nid, req, weight); err != nil {
				return nil, err
			}
		}
		g.VariantGroups[definitionID] = group
		return added, nil
	}

	variantIndex := -1
	if req.Extra != "" {
		for i, v := range def.Variants {
			if v.Identifier == req.Extra {
				variantIndex = i
				break
			}
		}
	}
	pkg, err := g.mat.Materialize(def, variantIndex)
	if err != nil {
		return nil, err
	}
	nid, isNew := g.addNode(pkg, definitionID)
	if err := g.addEdge(parent, nid, req, weight); err != nil {
		return nil, err
	}
	if isNew {
		return []NodeID{nid}, nil
	}
	return nil, nil
}
