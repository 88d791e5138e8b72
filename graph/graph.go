// Package graph implements the dependency graph model (component D), the
// Dijkstra distance engine (E), the variant combination generator (F) and
// the conflict resolver (G) described by the resolver specification.
//
// Nodes are arena-allocated and referenced by a stable integer NodeID, in
// the same spirit as a typical resolved-dependency graph: this tolerates
// cycles naturally (the distance engine just needs a visited set) and
// keeps clones cheap, since immutable Node values are copied by value
// while only the edge and index slices need duplicating.
package graph

import (
	"fmt"
	"sort"

	"github.com/themill/wiz/definition"
	"github.com/themill/wiz/materialize"
	"github.com/themill/wiz/registry"
	"github.com/themill/wiz/requirement"
)

// NodeID identifies a node in a Graph. It is always scoped to a specific
// Graph and is an index into that Graph's Nodes slice.
type NodeID int

// Root is the synthetic node every graph begins with.
const Root NodeID = 0

// Node is a single materialized package instance in the graph.
type Node struct {
	// Package is empty (zero value) for the synthetic root node.
	Package      materialize.Package
	DefinitionID string // "namespace::identifier", used for variant/conflict grouping
	isRoot       bool
}

// Edge is a directed parent -> child relationship, annotated with the
// requirement that caused it and its weight (the 1-based insertion order
// of the child among the parent's dependencies).
type Edge struct {
	From        NodeID
	To          NodeID
	Requirement requirement.Requirement
	Weight      int
}

// pending is a package whose definition-level conditions are not yet
// satisfied by the graph's current node set. Weight is fixed at the time
// the requirement was first enqueued and carried through unchanged once
// the package is finally placed, so a conditionally-gated package keeps
// the priority its position in the original requirement list earned it.
type pending struct {
	Def    definition.Definition
	Req    requirement.Requirement
	Parent NodeID
	Weight int
}

// RecordedError is a non-fatal error attached to a graph during conflict
// resolution or relinking; its presence at validation time fails the
// combination that produced it.
type RecordedError struct {
	Kind ErrorKind
	Err  error

	// DefinitionID is the conflicting definition the error concerns.
	DefinitionID string
	// ParentDefinitionIDs are the definition-ids of the nodes that
	// required DefinitionID, used by the resolver driver to decide which
	// definitions to try at an older version on the next attempt.
	ParentDefinitionIDs []string
	// A and B are a representative pair of the incoming requirements that
	// could not be reconciled.
	A, B requirement.Requirement
}

func (re RecordedError) Error() string { return re.Err.Error() }

// ErrorKind classifies a RecordedError.
type ErrorKind int

const (
	ErrConflict ErrorKind = iota
	ErrInvalidNodes
	ErrVariants
)

// Graph holds the result of expanding a set of root requirements: nodes,
// edges, variant groups, the conditional-package queue and any recorded
// errors.
type Graph struct {
	idx *registry.Index
	mat interface {
		Materialize(definition.Definition, int) (materialize.Package, error)
	}

	Nodes []Node
	Edges []Edge

	childEdges  [][]int // NodeID -> indices into Edges, in insertion order (ChildEdges sorts by Weight)
	parentEdges [][]int

	// VariantGroups maps a definition-id with at least one declared
	// variant, and currently present in the graph without a variant
	// pinned by the caller, to its candidate node ids in declared order.
	VariantGroups map[string][]NodeID

	Conditional []pending

	Errors []RecordedError

	namespaceHints   map[string]bool
	namespaceCount   map[string]int
	descriptor       definition.Descriptor
	excludedVersions map[string]bool

	nodeByIdentifier map[string]NodeID
	failedGroups     map[string]bool
}

// New creates a Graph with a singleton root node. descriptor constrains
// every fetch performed while expanding the graph to definitions whose
// system requirements it satisfies. excludedVersions, when non-nil,
// forces every fetch to skip the listed "qualified-identifier==version"
// entries, letting a caller rebuild the graph after downgrading a
// definition past a version already found to conflict.
func New(idx *registry.Index, mat interface {
	Materialize(definition.Definition, int) (materialize.Package, error)
}, namespaceCounter map[string]int, descriptor definition.Descriptor, excludedVersions map[string]bool) *Graph {
	g := &Graph{
		idx:              idx,
		mat:              mat,
		VariantGroups:    make(map[string][]NodeID),
		namespaceHints:   make(map[string]bool),
		namespaceCount:   namespaceCounter,
		descriptor:       descriptor,
		excludedVersions: excludedVersions,
		nodeByIdentifier: make(map[string]NodeID),
	}
	g.Nodes = append(g.Nodes, Node{isRoot: true, DefinitionID: "<root>"})
	g.childEdges = append(g.childEdges, nil)
	g.parentEdges = append(g.parentEdges, nil)
	return g
}

// Clone returns a deep-enough copy of g suitable for destructive
// exploration: immutable Node values are copied by value (cheap), while
// edges and the derived indices get their own backing arrays.
func (g *Graph) Clone() *Graph {
	clone := &Graph{
		idx:              g.idx,
		mat:              g.mat,
		Nodes:            append([]Node(nil), g.Nodes...),
		Edges:            append([]Edge(nil), g.Edges...),
		VariantGroups:    make(map[string][]NodeID, len(g.VariantGroups)),
		Conditional:      append([]pending(nil), g.Conditional...),
		Errors:           append([]RecordedError(nil), g.Errors...),
		namespaceHints:   make(map[string]bool, len(g.namespaceHints)),
		namespaceCount:   g.namespaceCount,
		descriptor:       g.descriptor,
		excludedVersions: g.excludedVersions,
		nodeByIdentifier: make(map[string]NodeID, len(g.nodeByIdentifier)),
		failedGroups:     make(map[string]bool, len(g.failedGroups)),
	}
	for k := range g.failedGroups {
		clone.failedGroups[k] = true
	}
	for k, v := range g.VariantGroups {
		clone.VariantGroups[k] = append([]NodeID(nil), v...)
	}
	for k := range g.namespaceHints {
		clone.namespaceHints[k] = true
	}
	for k, v := range g.nodeByIdentifier {
		clone.nodeByIdentifier[k] = v
	}
	clone.childEdges = make([][]int, len(g.childEdges))
	for i, v := range g.childEdges {
		clone.childEdges[i] = append([]int(nil), v...)
	}
	clone.parentEdges = make([][]int, len(g.parentEdges))
	for i, v := range g.parentEdges {
		clone.parentEdges[i] = append([]int(nil), v...)
	}
	return clone
}

func (g *Graph) contains(n NodeID) bool { return n >= 0 && int(n) < len(g.Nodes) }

// Reachable returns the set of nodes (including Root) currently connected
// to the root by some chain of edges. Pruning can leave orphaned nodes
// behind in the Nodes arena without removing them (NodeIDs must stay
// stable), so any check of "what is actually in the graph" goes through
// this set rather than ranging over Nodes directly.
func (g *Graph) Reachable() map[NodeID]bool {
	reachable := make(map[NodeID]bool, len(g.Nodes))
	reachable[Root] = true
	stack := []NodeID{Root}
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
	return reachable
}

// NodeIdentifiers returns the qualified package identifier of every node
// reachable from the root, in the same deterministic distance order
// OrderedNodes uses, so repeated resolutions of the same requirements
// produce byte-identical output.
func (g *Graph) NodeIdentifiers() []string {
	ordered := g.OrderedNodes()
	ids := make([]string, 0, len(ordered))
	for _, nid := range ordered {
		ids = append(ids, g.Nodes[nid].Package.QualifiedIdentifier())
	}
	return ids
}

func (g *Graph) conditionsSatisfied(conds []requirement.Requirement) bool {
	if len(conds) == 0 {
		return true
	}
	reachable := g.Reachable()
	for _, c := range conds {
		ok := false
		for nid := range reachable {
			if nid == Root {
				continue
			}
			if requirement.Match(c, g.Nodes[nid].Package) {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	return true
}

// addNode inserts a new node (or returns the existing one with the same
// qualified package identifier) and updates the namespace hints.
func (g *Graph) addNode(pkg materialize.Package, definitionID string) (id NodeID, isNew bool) {
	key := pkg.QualifiedIdentifier()
	if existing, ok := g.nodeByIdentifier[key]; ok {
		return existing, false
	}
	id = NodeID(len(g.Nodes))
	g.Nodes = append(g.Nodes, Node{Package: pkg, DefinitionID: definitionID})
	g.childEdges = append(g.childEdges, nil)
	g.parentEdges = append(g.parentEdges, nil)
	g.nodeByIdentifier[key] = id
	if pkg.Namespace != "" {
		g.namespaceHints[pkg.Namespace] = true
	}
	return id, true
}

// addEdge inserts an edge from parent to child with the given weight,
// collapsing duplicate parent/child pairs to the minimum weight.
func (g *Graph) addEdge(from, to NodeID, req requirement.Requirement, weight int) error {
	if !g.contains(from) || !g.contains(to) {
		return fmt.Errorf("node not in graph")
	}
	for _, ei := range g.childEdges[from] {
		e := g.Edges[ei]
		if e.To == to {
			if weight < e.Weight {
				g.Edges[ei].Weight = weight
			}
			return nil
		}
	}
	id := len(g.Edges)
	g.Edges = append(g.Edges, Edge{From: from, To: to, Requirement: req, Weight: weight})
	g.childEdges[from] = append(g.childEdges[from], id)
	g.parentEdges[to] = append(g.parentEdges[to], id)
	return nil
}

// ChildEdges returns the edges leading out of n, ordered by weight.
func (g *Graph) ChildEdges(n NodeID) []Edge {
	idxs := g.childEdges[n]
	out := make([]Edge, len(idxs))
	for i, ei := range idxs {
		out[i] = g.Edges[ei]
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Weight < out[j].Weight })
	return out
}

// ParentEdges returns the edges leading into n.
func (g *Graph) ParentEdges(n NodeID) []Edge {
	idxs := g.parentEdges[n]
	out := make([]Edge, len(idxs))
	for i, ei := range idxs {
		out[i] = g.Edges[ei]
	}
	return out
}

// CurrentVersion returns the version string of the (first, in
// deterministic distance order) reachable node carrying the given
// definition-id, used by the resolver driver to pick what to exclude
// when downgrading.
func (g *Graph) CurrentVersion(definitionID string) (string, bool) {
	for _, nid := range g.OrderedNodes() {
		if g.Nodes[nid].DefinitionID == definitionID {
			return g.Nodes[nid].Package.Version.String(), true
		}
	}
	return "", false
}

// Descriptor returns the system descriptor the graph was built against, so
// a caller re-checking registry availability outside the graph (the
// resolver driver, deciding whether a downgrade can help) filters
// consistently with the graph's own fetches.
func (g *Graph) Descriptor() definition.Descriptor { return g.descriptor }

// IncomingRequirement returns the combined requirement of every edge
// currently pointing at any reachable node carrying the given
// definition-id, used by the resolver driver to check whether an older
// version of that definition would still satisfy whatever first required
// it before committing to a downgrade.
func (g *Graph) IncomingRequirement(definitionID string) (requirement.Requirement, bool) {
	var reqs []requirement.Requirement
	for _, nid := range g.OrderedNodes() {
		if g.Nodes[nid].DefinitionID != definitionID {
			continue
		}
		for _, e := range g.ParentEdges(nid) {
			reqs = append(reqs, e.Requirement)
		}
	}
	if len(reqs) == 0 {
		return requirement.Requirement{}, false
	}
	combined, err := requirement.Combine(reqs)
	if err != nil {
		return requirement.Requirement{}, false
	}
	return combined, true
}

// Find returns the reachable node ids whose package matches req, in
// deterministic distance order.
func (g *Graph) Find(req requirement.Requirement) []NodeID {
	var out []NodeID
	for _, nid := range g.OrderedNodes() {
		if requirement.Match(req, g.Nodes[nid].Package) {
			out = append(out, nid)
		}
	}
	return out
}
