package graph

// Distance is the shortest-path weight from the root to a node, together
// with the path of node ids that achieved it, kept only to break ties
// lexicographically.
type Distance struct {
	Value int
	Path  []NodeID
}

// pathLess reports whether a is strictly preferred over b: smaller total
// weight first, then lexicographically smaller path by comparing each
// node's qualified package identifier in turn.
func (g *Graph) pathLess(a, b Distance) bool {
	if a.Value != b.Value {
		return a.Value < b.Value
	}
	n := len(a.Path)
	if len(b.Path) < n {
		n = len(b.Path)
	}
	for i := 0; i < n; i++ {
		ai, bi := g.identifierOf(a.Path[i]), g.identifierOf(b.Path[i])
		if ai != bi {
			return ai < bi
		}
	}
	return len(a.Path) < len(b.Path)
}

func (g *Graph) identifierOf(n NodeID) string {
	if n == Root {
		return ""
	}
	return g.Nodes[n].Package.QualifiedIdentifier()
}

const infinite = 1 << 30

// Distances computes, for every node reachable from the root, its
// shortest distance and the lexicographically smallest path achieving it.
// Ties are broken deterministically so that the combination generator and
// the context builder produce the same ordering across runs.
func (g *Graph) Distances() map[NodeID]Distance {
	dist := make(map[NodeID]Distance, len(g.Nodes))
	dist[Root] = Distance{Value: 0, Path: []NodeID{Root}}
	visited := make(map[NodeID]bool, len(g.Nodes))

	for len(visited) < len(g.Nodes) {
		var u NodeID
		found := false
		for i := range g.Nodes {
			nid := NodeID(i)
			if visited[nid] {
				continue
			}
			d, ok := dist[nid]
			if !ok {
				continue
			}
			if !found || g.pathLess(d, dist[u]) {
				u, found = nid, true
			}
		}
		if !found {
			break
		}
		visited[u] = true

		for _, e := range g.ChildEdges(u) {
			cand := Distance{
				Value: dist[u].Value + e.Weight,
				Path:  append(append([]NodeID{}, dist[u].Path...), e.To),
			}
			if existing, ok := dist[e.To]; !ok || g.pathLess(cand, existing) {
				dist[e.To] = cand
			}
		}
	}
	return dist
}

// OrderedNodes returns every non-root, reachable node sorted by ascending
// distance, with ties broken by the lexicographically smallest path.
func (g *Graph) OrderedNodes() []NodeID {
	dist := g.Distances()
	nodes := make([]NodeID, 0, len(dist)-1)
	for nid := range dist {
		if nid != Root {
			nodes = append(nodes, nid)
		}
	}
	for i := 1; i < len(nodes); i++ {
		for j := i; j > 0 && g.pathLess(dist[nodes[j]], dist[nodes[j-1]]); j-- {
			nodes[j], nodes[j-1] = nodes[j-1], nodes[j]
		}
	}
	return nodes
}
