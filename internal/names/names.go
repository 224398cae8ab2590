// Package names resolves a resolved group tree's interned node ids back
// into file paths and block fingerprints, ready for serialization.
package names

import (
	"slices"

	"github.com/ivoronin/dedupescan/internal/interner"
	"github.com/ivoronin/dedupescan/internal/resolver"
	"github.com/ivoronin/dedupescan/internal/types"
)

// Group is a dedupe group with all node ids resolved to their human-facing
// form: file paths and block fingerprints.
type Group struct {
	Name          string              `json:"name"`
	Files         []string            `json:"files"`
	SelectedFiles []string            `json:"selected_files"`
	Csums         []types.Fingerprint `json:"csums"`
	SelectedCsums []types.Fingerprint `json:"selected_csums"`
	Savings       int                 `json:"savings"`
	Subgroups     []Group             `json:"subgroup"`
}

// Resolve walks g in post-order (subgroups before their parent, though the
// parent's own fields don't depend on already having resolved children)
// translating every node id through in.
func Resolve(g *resolver.Group, in *interner.Interner) Group {
	subgroups := make([]Group, 0, len(g.Subgroups))
	for _, sub := range g.Subgroups {
		subgroups = append(subgroups, Resolve(sub, in))
	}

	return Group{
		Name:          g.Name,
		Files:         filePaths(g.Files, in),
		SelectedFiles: filePaths(g.SelectedFiles, in),
		Csums:         fingerprints(g.Csums, in),
		SelectedCsums: fingerprints(g.SelectedCsums, in),
		Savings:       g.Savings,
		Subgroups:     subgroups,
	}
}

func filePaths(files []types.NodeId, in *interner.Interner) []string {
	paths := make([]string, 0, len(files))
	for _, f := range files {
		paths = append(paths, in.PathOf(f.FileId()))
	}
	slices.Sort(paths)
	return paths
}

func fingerprints(blocks []types.NodeId, in *interner.Interner) []types.Fingerprint {
	out := make([]types.Fingerprint, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, types.Fingerprint{
			Hash:  in.HashOf(b.BlockId()),
			Range: in.RangeOf(b.BlockId()),
		})
	}
	slices.SortFunc(out, func(a, b types.Fingerprint) int {
		if a.Hash != b.Hash {
			if a.Hash < b.Hash {
				return -1
			}
			return 1
		}
		return int(a.Range.Start - b.Range.Start)
	})
	return out
}
