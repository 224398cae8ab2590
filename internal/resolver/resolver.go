// Package resolver detects when distinct block ids claim the same byte
// range of some file within a component, and splits the component along a
// weakest edge on a path between each conflict pair until every resulting
// partition is range-consistent. It also accounts for the block savings
// each resulting group contributes.
package resolver

import (
	"encoding/binary"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/ivoronin/dedupescan/internal/graph"
	"github.com/ivoronin/dedupescan/internal/interner"
	"github.com/ivoronin/dedupescan/internal/partition"
	"github.com/ivoronin/dedupescan/internal/types"
)

// ErrNoSeparatingEdge is returned when the iterative edge cut cannot find a
// common edge to remove and the working graph is still a single component.
// It arises from pathological inputs or from the limits of the
// consecutive-pairs heuristic (see cutUntilSeparated).
var ErrNoSeparatingEdge = errors.New("no separating edge found")

// NoSeparatingEdgeError wraps ErrNoSeparatingEdge with the offending group
// id, for diagnosis.
type NoSeparatingEdgeError struct {
	GroupName string
}

func (e *NoSeparatingEdgeError) Error() string {
	return fmt.Sprintf("group %s: %v", e.GroupName, ErrNoSeparatingEdge)
}

func (e *NoSeparatingEdgeError) Unwrap() error { return ErrNoSeparatingEdge }

// Group is a dedupe group: a set of distinct files sharing a common parent
// block list, with subgroups resolving any range conflicts found within it.
type Group struct {
	Name          string
	Files         []types.NodeId
	Csums         []types.NodeId
	Subgroups     []*Group
	SelectedFiles []types.NodeId
	SelectedCsums []types.NodeId
	Savings       int
}

// Resolve is the Conflict Resolver entry point for one component. g is the
// already-induced subgraph for this component (its node set is exactly
// files ∪ csums); the caller (internal/pipeline, or a recursive call within
// this package) is responsible for inducing it from whatever parent graph
// this component came from.
func Resolve(g *graph.Graph, in *interner.Interner, files, csums []types.NodeId) (*Group, error) {
	// The name is a UUID derived from the group's sorted node ids, so the
	// same input always yields the same group names.
	var key []byte
	for _, n := range types.SortNodeIds(append(slices.Clone(files), csums...)) {
		key = binary.BigEndian.AppendUint64(key, uint64(n))
	}
	name := uuid.NewSHA1(uuid.NameSpaceOID, key).String()

	ranges := groupByRange(csums, in)
	conflicting := conflictingBlocks(ranges)

	var subgroups []*Group
	if len(conflicting) > 0 {
		w := g.Induced(append(slices.Clone(files), conflicting...))
		if err := cutUntilSeparated(w, conflictPairs(ranges)); err != nil {
			return nil, &NoSeparatingEdgeError{GroupName: name}
		}

		for _, comp := range partition.Split(w, false) {
			subG := w.Induced(comp.Nodes)
			sub, err := Resolve(subG, in, comp.Files, comp.Blocks)
			if err != nil {
				return nil, err
			}
			subgroups = append(subgroups, sub)
		}
	}

	return finalize(g, name, files, csums, subgroups), nil
}

// finalize computes selected_files, selected_csums, and savings for a group
// once its subgroups are known.
func finalize(g *graph.Graph, name string, files, csums []types.NodeId, subgroups []*Group) *Group {
	subFiles := make(map[types.NodeId]struct{})
	subCsums := make(map[types.NodeId]struct{})
	tally := 0

	for _, sub := range subgroups {
		for _, f := range sub.Files {
			subFiles[f] = struct{}{}
		}
		for _, c := range sub.Csums {
			subCsums[c] = struct{}{}
		}
		tally += sub.Savings
	}

	for _, b := range csums {
		tally += g.Degree(b) - 1
	}

	return &Group{
		Name:          name,
		Files:         types.SortNodeIds(files),
		Csums:         types.SortNodeIds(csums),
		Subgroups:     subgroups,
		SelectedFiles: types.SortNodeIds(subtract(files, subFiles)),
		SelectedCsums: types.SortNodeIds(subtract(csums, subCsums)),
		Savings:       tally,
	}
}

func subtract(nodes []types.NodeId, exclude map[types.NodeId]struct{}) []types.NodeId {
	var out []types.NodeId
	for _, n := range nodes {
		if _, ok := exclude[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}

// rangeGroup is the set of block node ids sharing one range key, ordered
// deterministically by sorting both the group's own members and the groups
// themselves (by their smallest member), so that the pipeline's output does
// not depend on map iteration order.
type rangeGroup struct {
	ids []types.NodeId
}

func groupByRange(csums []types.NodeId, in *interner.Interner) []rangeGroup {
	byRange := make(map[types.Range][]types.NodeId)
	for _, n := range csums {
		r := in.RangeOf(n.BlockId())
		byRange[r] = append(byRange[r], n)
	}

	groups := make([]rangeGroup, 0, len(byRange))
	for _, ids := range byRange {
		sorted := types.SortNodeIds(ids)
		groups = append(groups, rangeGroup{ids: sorted})
	}
	slices.SortFunc(groups, func(a, b rangeGroup) int {
		return int(a.ids[0]) - int(b.ids[0])
	})
	return groups
}

// conflictingBlocks returns the union of block ids belonging to any range
// group with two or more distinct members.
func conflictingBlocks(groups []rangeGroup) []types.NodeId {
	var out []types.NodeId
	for _, g := range groups {
		if len(g.ids) >= 2 {
			out = append(out, g.ids...)
		}
	}
	return out
}

// conflictPairs generates, for every conflicting range, all distinct pairs
// within its ≥2-tuple of ids, so that ranges claimed by more than two
// blocks at once are still fully covered.
func conflictPairs(groups []rangeGroup) [][2]types.NodeId {
	var pairs [][2]types.NodeId
	for _, g := range groups {
		if len(g.ids) < 2 {
			continue
		}
		for i := 0; i < len(g.ids); i++ {
			for j := i + 1; j < len(g.ids); j++ {
				pairs = append(pairs, [2]types.NodeId{g.ids[i], g.ids[j]})
			}
		}
	}
	return pairs
}

// cutUntilSeparated repeatedly removes edges from w until it decomposes
// into more than one connected component, following an iterative edge-cut
// heuristic: compute a shortest path between each conflict pair, intersect
// consecutive path-edge-sets, and remove the first edge of the first
// non-empty intersection.
//
// When there is exactly one conflict pair there is nothing to intersect
// against; the single path's own edges are the only candidates (this is the
// degenerate case of the same "break something on a path between
// conflicts" idea, not a different algorithm — see DESIGN.md). Removing one
// edge does not by itself guarantee a split; the loop keeps cutting until w
// falls apart or no candidate edge is left.
func cutUntilSeparated(w *graph.Graph, pairs [][2]types.NodeId) error {
	for {
		if len(partition.Split(w, false)) > 1 {
			return nil
		}

		var paths []map[graph.Edge]struct{}
		for _, p := range pairs {
			path := w.ShortestPath(p[0], p[1])
			if path == nil {
				continue
			}
			paths = append(paths, graph.PathEdges(path))
		}

		edge, ok := pickSeparatingEdge(paths)
		if !ok {
			return ErrNoSeparatingEdge
		}
		w.RemoveEdge(edge.A, edge.B)
	}
}

// pickSeparatingEdge implements the "first non-empty intersection's first
// edge" rule over consecutive path-edge-sets, falling back to the single
// path's own edges when there is only one conflict pair.
func pickSeparatingEdge(paths []map[graph.Edge]struct{}) (graph.Edge, bool) {
	if len(paths) == 0 {
		return graph.Edge{}, false
	}
	if len(paths) == 1 {
		return minEdge(paths[0])
	}

	for i := 1; i < len(paths); i++ {
		common := intersectEdges(paths[i-1], paths[i])
		if len(common) > 0 {
			return minEdge(common)
		}
	}
	return graph.Edge{}, false
}

func intersectEdges(a, b map[graph.Edge]struct{}) map[graph.Edge]struct{} {
	out := make(map[graph.Edge]struct{})
	for e := range a {
		if _, ok := b[e]; ok {
			out[e] = struct{}{}
		}
	}
	return out
}

// minEdge picks a deterministic representative edge from a set: the one
// ordered first by (A, B). The choice among the candidates is arbitrary;
// fixing on the smallest one makes it reproducible across runs.
func minEdge(edges map[graph.Edge]struct{}) (graph.Edge, bool) {
	if len(edges) == 0 {
		return graph.Edge{}, false
	}
	var best graph.Edge
	first := true
	for e := range edges {
		if first || e.A < best.A || (e.A == best.A && e.B < best.B) {
			best = e
			first = false
		}
	}
	return best, true
}
