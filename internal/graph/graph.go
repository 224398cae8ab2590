// Package graph implements the undirected bipartite file<->block graph and
// the small set of graph algorithms the analysis pipeline needs: connected
// components, subgraph induction, and shortest path.
//
// Connected components, subgraph induction, and shortest path are the only
// operations the analysis needs, so this package sticks to adjacency sets
// plus BFS rather than pulling in a general-purpose graph library —
// projection, clustering, and similar algorithms never sit on the hot path.
package graph

import (
	"slices"

	"github.com/ivoronin/dedupescan/internal/types"
)

// Graph is an undirected, simple graph over tagged NodeIds.
type Graph struct {
	adj map[types.NodeId]map[types.NodeId]struct{}
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{adj: make(map[types.NodeId]map[types.NodeId]struct{})}
}

// AddNode ensures n exists in the graph, even if isolated.
func (g *Graph) AddNode(n types.NodeId) {
	if _, ok := g.adj[n]; !ok {
		g.adj[n] = make(map[types.NodeId]struct{})
	}
}

// AddEdge adds an undirected edge between a and b. Idempotent: adding the
// same edge twice does not create a multi-edge or double-count degree.
func (g *Graph) AddEdge(a, b types.NodeId) {
	g.AddNode(a)
	g.AddNode(b)
	g.adj[a][b] = struct{}{}
	g.adj[b][a] = struct{}{}
}

// RemoveEdge removes the undirected edge between a and b, if present.
func (g *Graph) RemoveEdge(a, b types.NodeId) {
	if nbrs, ok := g.adj[a]; ok {
		delete(nbrs, b)
	}
	if nbrs, ok := g.adj[b]; ok {
		delete(nbrs, a)
	}
}

// HasNode reports whether n is present in the graph.
func (g *Graph) HasNode(n types.NodeId) bool {
	_, ok := g.adj[n]
	return ok
}

// Degree returns the number of edges incident to n.
func (g *Graph) Degree(n types.NodeId) int {
	return len(g.adj[n])
}

// Neighbors returns n's neighbors, sorted ascending for deterministic
// traversal order: any actual shortest path is correct, but ties need to
// break the same way on every run for byte-identical output.
func (g *Graph) Neighbors(n types.NodeId) []types.NodeId {
	nbrs := make([]types.NodeId, 0, len(g.adj[n]))
	for m := range g.adj[n] {
		nbrs = append(nbrs, m)
	}
	slices.Sort(nbrs)
	return nbrs
}

// Nodes returns all nodes in the graph, sorted ascending.
func (g *Graph) Nodes() []types.NodeId {
	nodes := make([]types.NodeId, 0, len(g.adj))
	for n := range g.adj {
		nodes = append(nodes, n)
	}
	slices.Sort(nodes)
	return nodes
}

// Build constructs the bipartite graph from a pruned vector set. For every
// vector (f, blocks), a file node and an edge to each block node are added;
// duplicate edges are naturally idempotent since AddEdge writes into an
// adjacency set.
func Build(vectors []types.Vector) *Graph {
	g := New()
	for _, v := range vectors {
		fnode := types.EncodeFile(v.File)
		g.AddNode(fnode)
		for _, b := range v.Blocks {
			bnode := types.EncodeBlock(b)
			g.AddEdge(fnode, bnode)
		}
	}
	return g
}

// ConnectedComponents returns the graph's connected components. Traversal
// is seeded in ascending node-id order and BFS visits neighbors in ascending
// order (via Neighbors), so the same graph always yields components in the
// same order with the same per-component node order — the same input always
// produces byte-identical output.
func (g *Graph) ConnectedComponents() [][]types.NodeId {
	visited := make(map[types.NodeId]bool, len(g.adj))
	var comps [][]types.NodeId

	for _, start := range g.Nodes() {
		if visited[start] {
			continue
		}
		comp := g.bfs(start, visited)
		slices.Sort(comp)
		comps = append(comps, comp)
	}
	return comps
}

func (g *Graph) bfs(start types.NodeId, visited map[types.NodeId]bool) []types.NodeId {
	queue := []types.NodeId{start}
	visited[start] = true
	var comp []types.NodeId

	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		comp = append(comp, n)
		for _, m := range g.Neighbors(n) {
			if !visited[m] {
				visited[m] = true
				queue = append(queue, m)
			}
		}
	}
	return comp
}

// Induced returns the subgraph induced on nodes: only nodes in the set, and
// only edges whose both endpoints are in the set.
func (g *Graph) Induced(nodes []types.NodeId) *Graph {
	set := make(map[types.NodeId]struct{}, len(nodes))
	for _, n := range nodes {
		set[n] = struct{}{}
	}

	sub := New()
	for _, n := range nodes {
		sub.AddNode(n)
	}
	for _, n := range nodes {
		for m := range g.adj[n] {
			if _, ok := set[m]; ok {
				sub.AddEdge(n, m)
			}
		}
	}
	return sub
}

// ShortestPath returns an unweighted shortest path from src to dst,
// inclusive of both endpoints, via BFS. Ties are broken by the same
// ascending-node-id order Neighbors uses. Returns nil if no path exists.
func (g *Graph) ShortestPath(src, dst types.NodeId) []types.NodeId {
	if src == dst {
		return []types.NodeId{src}
	}

	visited := map[types.NodeId]bool{src: true}
	parent := map[types.NodeId]types.NodeId{}
	queue := []types.NodeId{src}

	found := false
	for len(queue) > 0 && !found {
		n := queue[0]
		queue = queue[1:]
		for _, m := range g.Neighbors(n) {
			if visited[m] {
				continue
			}
			visited[m] = true
			parent[m] = n
			if m == dst {
				found = true
				break
			}
			queue = append(queue, m)
		}
	}

	if !found {
		return nil
	}

	var path []types.NodeId
	for n := dst; ; n = parent[n] {
		path = append(path, n)
		if n == src {
			break
		}
	}
	slices.Reverse(path)
	return path
}

// Edge is an unordered pair of node ids, canonicalized so (a,b) and (b,a)
// compare equal.
type Edge struct {
	A, B types.NodeId
}

// NewEdge canonicalizes a and b into an Edge with A <= B.
func NewEdge(a, b types.NodeId) Edge {
	if a > b {
		a, b = b, a
	}
	return Edge{A: a, B: b}
}

// PathEdges converts a node path into its set of unordered edges.
func PathEdges(path []types.NodeId) map[Edge]struct{} {
	edges := make(map[Edge]struct{}, max(0, len(path)-1))
	for i := 0; i+1 < len(path); i++ {
		edges[NewEdge(path[i], path[i+1])] = struct{}{}
	}
	return edges
}
