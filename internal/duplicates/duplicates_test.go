package duplicates

import (
	"errors"
	"strings"
	"testing"
)

func linesOf(lines ...string) *strings.Reader {
	return strings.NewReader(strings.Join(lines, "\n") + "\n")
}

// Two lines sharing a hash form a duplicate group.
func TestScanPureWholeFileDup(t *testing.T) {
	r := linesOf(
		"aaaaaaaa /x",
		"aaaaaaaa /y",
	)

	groups, idx, err := Scan(r, false, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(groups))
	}
	if got := groups[0]; len(got) != 2 || got[0] != "/x" || got[1] != "/y" {
		t.Fatalf("group = %v, want [/x /y]", got)
	}

	// /y is the primary (last in the run); /x is the secondary.
	if !idx.Contains("/x") {
		t.Error("/x should be a secondary duplicate")
	}
	if idx.Contains("/y") {
		t.Error("/y (primary) should not be in the index")
	}
}

func TestScanSingletonHashIsNotAGroup(t *testing.T) {
	r := linesOf(
		"aaaaaaaa /x",
		"bbbbbbbb /y",
	)
	groups, idx, err := Scan(r, false, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(groups) != 0 {
		t.Fatalf("got %d groups, want 0", len(groups))
	}
	if len(idx) != 0 {
		t.Fatalf("index should be empty, got %v", idx)
	}
}

func TestScanRunOfThreeKeepsLastAsPrimary(t *testing.T) {
	r := linesOf(
		"cccccccc /a",
		"cccccccc /b",
		"cccccccc /c",
	)
	groups, idx, err := Scan(r, false, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(groups) != 1 || len(groups[0]) != 3 {
		t.Fatalf("groups = %v", groups)
	}
	for _, p := range []string{"/a", "/b"} {
		if !idx.Contains(p) {
			t.Errorf("%s should be a secondary", p)
		}
	}
	if idx.Contains("/c") {
		t.Error("/c (primary) should not be in the index")
	}
}

func TestScanMalformedLineIsFatal(t *testing.T) {
	r := linesOf("not-a-valid-line-at-all")
	_, _, err := Scan(r, false, nil)
	if err == nil {
		t.Fatal("expected a ParseError")
	}
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected *ParseError, got %T: %v", err, err)
	}
}

func TestScanNonAdjacentEqualHashesDoNotMerge(t *testing.T) {
	// Input is assumed sorted by hash; two separated runs with the same
	// hash value but interrupted by a different hash must stay as
	// independent groups rather than silently merging.
	r := linesOf(
		"aaaaaaaa /x",
		"aaaaaaaa /y",
		"bbbbbbbb /z",
		"aaaaaaaa /v",
		"aaaaaaaa /w",
	)
	groups, _, err := Scan(r, false, nil)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(groups) != 2 {
		t.Fatalf("got %d groups, want 2", len(groups))
	}
}

func TestScanBlankLineIsReportedNonFatally(t *testing.T) {
	r := strings.NewReader("aaaaaaaa /x\n\naaaaaaaa /y\n")
	warnings := make(chan error, 10)

	groups, _, err := Scan(r, false, warnings)
	close(warnings)
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(groups) != 1 {
		t.Fatalf("got %d groups, want 1 (blank line should not abort the scan)", len(groups))
	}

	var got []error
	for w := range warnings {
		got = append(got, w)
	}
	if len(got) != 1 {
		t.Fatalf("got %d warnings, want 1", len(got))
	}
}
