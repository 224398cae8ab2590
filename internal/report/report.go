// Package report serializes the whole-file duplicate groups and the
// resolved dedupe-group tree to JSON, plus the optional vector, sqlite, and
// console-summary sidecars.
package report

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"os"

	_ "modernc.org/sqlite"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/ivoronin/dedupescan/internal/interner"
	"github.com/ivoronin/dedupescan/internal/names"
	"github.com/ivoronin/dedupescan/internal/types"
)

// WriteDuplicates writes the <whole_checksums_base>.json output: an array
// of whole-file duplicate groups, each an array of paths.
func WriteDuplicates(groups [][]string, path string) error {
	return writeJSON(path, groups)
}

// WriteDedupeGroups writes the <block_checksums_base>.dedupe.json output:
// the recursive dedupe-group tree with fully resolved names.
func WriteDedupeGroups(groups []names.Group, path string) error {
	return writeJSON(path, groups)
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// vectorEntry is the resolved, JSON-friendly form of a types.Vector, used
// by the --dump-vectors sidecar.
type vectorEntry struct {
	File   string              `json:"file"`
	Blocks []types.Fingerprint `json:"blocks"`
}

// WriteVectors writes the --dump-vectors sidecar: every surviving vector,
// with file and block ids resolved back to paths and fingerprints.
func WriteVectors(vectors []types.Vector, in *interner.Interner, path string) error {
	entries := make([]vectorEntry, len(vectors))
	for i, v := range vectors {
		blocks := make([]types.Fingerprint, len(v.Blocks))
		for j, b := range v.Blocks {
			blocks[j] = types.Fingerprint{Hash: in.HashOf(b), Range: in.RangeOf(b)}
		}
		entries[i] = vectorEntry{File: in.PathOf(v.File), Blocks: blocks}
	}
	return writeJSON(path, entries)
}

// WriteSQLite writes the resolved dedupe-group tree into a queryable
// sqlite database at dbPath, normalized into groups/group_files/group_blocks
// tables. This supplements the JSON output (which remains canonical) with a
// form a caller can query without re-parsing JSON, e.g. "which groups does
// file X belong to".
func WriteSQLite(groups []names.Group, dbPath string) error {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return fmt.Errorf("open %s: %w", dbPath, err)
	}
	defer db.Close()

	schema := `
CREATE TABLE IF NOT EXISTS groups (
	name TEXT PRIMARY KEY,
	parent TEXT,
	savings INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS group_files (
	group_name TEXT NOT NULL,
	path TEXT NOT NULL,
	selected INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS group_blocks (
	group_name TEXT NOT NULL,
	hash TEXT NOT NULL,
	range_start INTEGER NOT NULL,
	range_end INTEGER NOT NULL,
	selected INTEGER NOT NULL
);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	var insert func(g names.Group, parent string) error
	insert = func(g names.Group, parent string) error {
		if _, err := db.Exec(`INSERT INTO groups(name, parent, savings) VALUES (?, ?, ?)`,
			g.Name, nullable(parent), g.Savings); err != nil {
			return fmt.Errorf("insert group %s: %w", g.Name, err)
		}

		selected := make(map[string]bool, len(g.SelectedFiles))
		for _, f := range g.SelectedFiles {
			selected[f] = true
		}
		for _, f := range g.Files {
			if _, err := db.Exec(`INSERT INTO group_files(group_name, path, selected) VALUES (?, ?, ?)`,
				g.Name, f, boolToInt(selected[f])); err != nil {
				return fmt.Errorf("insert file for group %s: %w", g.Name, err)
			}
		}

		selectedBlocks := make(map[types.Fingerprint]bool, len(g.SelectedCsums))
		for _, c := range g.SelectedCsums {
			selectedBlocks[c] = true
		}
		for _, c := range g.Csums {
			if _, err := db.Exec(`INSERT INTO group_blocks(group_name, hash, range_start, range_end, selected) VALUES (?, ?, ?, ?, ?)`,
				g.Name, c.Hash, c.Range.Start, c.Range.End, boolToInt(selectedBlocks[c])); err != nil {
				return fmt.Errorf("insert block for group %s: %w", g.Name, err)
			}
		}

		for _, sub := range g.Subgroups {
			if err := insert(sub, g.Name); err != nil {
				return err
			}
		}
		return nil
	}

	for _, g := range groups {
		if err := insert(g, ""); err != nil {
			return err
		}
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// PrintSummary renders a console table of aggregate statistics over the
// resolved dedupe-group tree, gated behind --summary.
func PrintSummary(groups []names.Group, w io.Writer) {
	var groupCount, fileCount, blockCount, savings int
	var reclaimedBytes int64

	var walk func(g names.Group)
	walk = func(g names.Group) {
		groupCount++
		fileCount += len(g.Files)
		blockCount += len(g.Csums)
		savings += g.Savings
		if len(g.SelectedCsums) > 0 {
			reclaimedBytes += int64(g.Savings) * averageRangeSize(g.SelectedCsums)
		}
		for _, sub := range g.Subgroups {
			walk(sub)
		}
	}
	for _, g := range groups {
		walk(g)
	}

	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"metric", "value"})
	table.Append([]string{"groups", humanize.Comma(int64(groupCount))})
	table.Append([]string{"files", humanize.Comma(int64(fileCount))})
	table.Append([]string{"blocks", humanize.Comma(int64(blockCount))})
	table.Append([]string{"savings (blocks)", humanize.Comma(int64(savings))})
	table.Append([]string{"estimated reclaimed", humanize.IBytes(uint64(max64(reclaimedBytes, 0)))})
	table.Render()
}

func averageRangeSize(blocks []types.Fingerprint) int64 {
	var total int64
	for _, b := range blocks {
		total += b.Range.End - b.Range.Start
	}
	return total / int64(len(blocks))
}

func max64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
