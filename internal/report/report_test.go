package report

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ivoronin/dedupescan/internal/interner"
	"github.com/ivoronin/dedupescan/internal/names"
	"github.com/ivoronin/dedupescan/internal/types"
)

func TestWriteDuplicatesRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "whole.json")
	groups := [][]string{{"/a", "/b"}, {"/c", "/d", "/e"}}

	if err := WriteDuplicates(groups, path); err != nil {
		t.Fatalf("WriteDuplicates: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var got [][]string
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(got) != 2 || len(got[1]) != 3 {
		t.Fatalf("got = %v", got)
	}
}

func sampleGroup() names.Group {
	return names.Group{
		Name:          "root",
		Files:         []string{"/a", "/b"},
		SelectedFiles: []string{"/a", "/b"},
		Csums:         []types.Fingerprint{{Hash: "h1", Range: types.Range{Start: 0, End: 100}}},
		SelectedCsums: []types.Fingerprint{{Hash: "h1", Range: types.Range{Start: 0, End: 100}}},
		Savings:       1,
	}
}

func TestWriteDedupeGroupsProducesSubgroupKey(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "block.dedupe.json")

	if err := WriteDedupeGroups([]names.Group{sampleGroup()}, path); err != nil {
		t.Fatalf("WriteDedupeGroups: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"subgroup"`) {
		t.Fatalf("output missing \"subgroup\" key: %s", data)
	}
}

func TestWriteVectorsResolvesIds(t *testing.T) {
	in := interner.New()
	fa := in.InternFile("/a")
	h1 := in.InternBlock("deadbeef", types.Range{Start: 0, End: 10})

	dir := t.TempDir()
	path := filepath.Join(dir, "vectors.json")
	err := WriteVectors([]types.Vector{{File: fa, Blocks: []types.BlockId{h1}}}, in, path)
	if err != nil {
		t.Fatalf("WriteVectors: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "/a") || !strings.Contains(string(data), "deadbeef") {
		t.Fatalf("output missing resolved names: %s", data)
	}
}

func TestWriteSQLiteCreatesQueryableTables(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "dedupe.db")

	if err := WriteSQLite([]names.Group{sampleGroup()}, dbPath); err != nil {
		t.Fatalf("WriteSQLite: %v", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM group_files WHERE path = ?`, "/a").Scan(&count); err != nil {
		t.Fatalf("query: %v", err)
	}
	if count != 1 {
		t.Fatalf("got %d rows for /a, want 1", count)
	}
}

func TestPrintSummaryRendersCounts(t *testing.T) {
	var buf bytes.Buffer
	PrintSummary([]names.Group{sampleGroup()}, &buf)
	out := buf.String()
	if !strings.Contains(out, "groups") || !strings.Contains(out, "savings") {
		t.Fatalf("summary output missing expected rows: %s", out)
	}
}
