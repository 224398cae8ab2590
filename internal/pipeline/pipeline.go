// Package pipeline wires the end-to-end analysis together: whole-file
// duplicate detection, sub-file vector construction, the bipartite graph,
// partitioning, parallel conflict resolution, and name resolution.
//
// resolveComponents resolves independent top-level components with a
// bounded worker pool (jobCh/workerWg), adapted to a one-shot job per
// component rather than a re-queuing job stream, since resolving one
// component never spawns more work for another.
package pipeline

import (
	"io"
	"runtime"
	"sync"

	"github.com/ivoronin/dedupescan/internal/duplicates"
	"github.com/ivoronin/dedupescan/internal/graph"
	"github.com/ivoronin/dedupescan/internal/interner"
	"github.com/ivoronin/dedupescan/internal/names"
	"github.com/ivoronin/dedupescan/internal/partition"
	"github.com/ivoronin/dedupescan/internal/resolver"
	"github.com/ivoronin/dedupescan/internal/types"
	"github.com/ivoronin/dedupescan/internal/vector"
)

// Options controls the analysis run.
type Options struct {
	MinBlocks    int
	Workers      int
	ShowProgress bool
}

// Result is everything downstream reporting needs.
type Result struct {
	DuplicateGroups [][]string
	Vectors         []types.Vector
	DedupeGroups    []names.Group
	Interner        *interner.Interner
}

// Analyze runs the whole pipeline: whole-file duplicate detection, vector
// construction and pruning, graph construction, partitioning, conflict
// resolution (in parallel across independent top-level components), and
// name resolution.
//
// warnings, if non-nil, receives non-fatal parse warnings encountered while
// scanning either input (e.g. a skippable blank line); the caller owns the
// channel and is responsible for draining it.
func Analyze(wholeLines, blockLines io.Reader, opts Options, warnings chan<- error) (*Result, error) {
	in := interner.New()

	dupGroupsRaw, dupIdx, err := duplicates.Scan(wholeLines, opts.ShowProgress, warnings)
	if err != nil {
		return nil, err
	}

	vectors, err := vector.Build(blockLines, dupIdx, in, opts.ShowProgress, warnings)
	if err != nil {
		return nil, err
	}
	minBlocks := opts.MinBlocks
	if minBlocks < 1 {
		minBlocks = 1
	}
	vectors = vector.Prune(vectors, in, minBlocks)

	g := graph.Build(vectors)
	comps := partition.Split(g, true)

	workers := opts.Workers
	if workers < 1 {
		workers = runtime.NumCPU()
	}
	resolved, err := resolveComponents(g, in, comps, workers)
	if err != nil {
		return nil, err
	}

	dedupeGroups := make([]names.Group, len(resolved))
	for i, rg := range resolved {
		dedupeGroups[i] = names.Resolve(rg, in)
	}

	return &Result{
		DuplicateGroups: dupGroupsRaw,
		Vectors:         vectors,
		DedupeGroups:    dedupeGroups,
		Interner:        in,
	}, nil
}

// resolveComponents resolves each top-level component with a bounded
// worker pool, writing results into a slice indexed by the component's
// position in comps so the output order is the deterministic component
// order from partition.Split, independent of which worker finishes first.
func resolveComponents(g *graph.Graph, in *interner.Interner, comps []partition.Component, workers int) ([]*resolver.Group, error) {
	results := make([]*resolver.Group, len(comps))
	errs := make([]error, len(comps))

	jobCh := make(chan int, len(comps))
	for i := range comps {
		jobCh <- i
	}
	close(jobCh)

	var workerWg sync.WaitGroup
	if workers > len(comps) {
		workers = len(comps)
	}
	if workers < 1 {
		workers = 1
	}
	for w := 0; w < workers; w++ {
		workerWg.Add(1)
		go func() {
			defer workerWg.Done()
			for i := range jobCh {
				comp := comps[i]
				sub := g.Induced(comp.Nodes)
				group, err := resolver.Resolve(sub, in, comp.Files, comp.Blocks)
				results[i] = group
				errs[i] = err
			}
		}()
	}
	workerWg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return results, nil
}
