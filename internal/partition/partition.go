// Package partition discovers connected components of the bipartite graph
// and splits each into its file and block node sets.
package partition

import "github.com/ivoronin/dedupescan/internal/types"

// Component is a connected component of the bipartite graph, already split
// into its file and block node sets.
type Component struct {
	Nodes  []types.NodeId
	Files  []types.NodeId
	Blocks []types.NodeId
}

// components is anything that can report its connected components as node
// slices — satisfied by *graph.Graph, kept as an interface here so this
// package doesn't need to import graph just for the type.
type components interface {
	ConnectedComponents() [][]types.NodeId
}

// Split computes connected components of g and splits each by node kind.
// When singletonFilter is true (the top-level call), components with fewer
// than two file nodes are discarded. Recursive calls made by the conflict
// resolver pass singletonFilter=false, since a sub-partition with a single
// file is still a meaningful leaf group.
func Split(g components, singletonFilter bool) []Component {
	var result []Component
	for _, comp := range g.ConnectedComponents() {
		var files, blocks []types.NodeId
		for _, n := range comp {
			if n.IsFile() {
				files = append(files, n)
			} else {
				blocks = append(blocks, n)
			}
		}
		if singletonFilter && len(files) < 2 {
			continue
		}
		result = append(result, Component{Nodes: comp, Files: files, Blocks: blocks})
	}
	return result
}
