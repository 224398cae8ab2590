// Package vector parses block-fingerprint listings into the pruned vector
// set consumed by the graph builder: one entry per surviving file naming
// the blocks it shares with some other file.
package vector

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/ivoronin/dedupescan/internal/duplicates"
	"github.com/ivoronin/dedupescan/internal/interner"
	"github.com/ivoronin/dedupescan/internal/progress"
	"github.com/ivoronin/dedupescan/internal/types"
)

// lineRe matches "<hexhash> <SP>+ <path> <SP> offset <SP> <start>-<end>".
var lineRe = regexp.MustCompile(`^([0-9a-fA-F]+)\s+(\S.+)\soffset\s(\d+)-(\d+)$`)

// ParseError reports a block-checksums line that doesn't match the expected
// grammar, or one whose offsets are invalid (end <= start). Fatal.
type ParseError struct {
	Line string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed block-checksums line: %q", e.Line)
}

type record struct {
	hash string
	rng  types.Range
}

type stats struct {
	progress.Counter
	lines   int
	vectors int
}

func (s *stats) String() string {
	msg := fmt.Sprintf("Scanned %s lines, built %d vectors in %.1fs",
		humanize.Comma(int64(s.lines)), s.vectors, s.Elapsed().Seconds())
	if n := s.Warnings(); n > 0 {
		msg += fmt.Sprintf(" (%d warnings)", n)
	}
	return msg
}

// Build reads block-fingerprint lines from r, which MUST be grouped by path
// (all lines for one file contiguous — the builder detects file boundaries
// purely by a change in path). Files present in dup are skipped entirely,
// as are files with fewer than two block fingerprints. Surviving files are
// interned via in, which becomes the sole owner of id assignment.
//
// errs, if non-nil, receives non-fatal warnings (e.g. a blank line skipped
// mid-file) without aborting the build; the caller is responsible for
// draining it.
func Build(r io.Reader, dup duplicates.Index, in *interner.Interner, showProgress bool, errs chan<- error) ([]types.Vector, error) {
	bar := progress.New(showProgress, -1)
	st := &stats{Counter: progress.NewCounter()}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	var result []types.Vector
	lastPath := ""
	var records []record
	lineNo := 0

	flush := func(path string) {
		vec, ok := constructVector(path, records, dup, in)
		if ok {
			result = append(result, vec)
			st.vectors++
		}
		records = nil
	}

	for scanner.Scan() {
		lineNo++
		text := scanner.Text()
		if text == "" {
			st.Warn()
			if errs != nil {
				errs <- fmt.Errorf("block-checksums line %d: blank line skipped", lineNo)
			}
			continue
		}
		st.lines++

		m := lineRe.FindStringSubmatch(text)
		if m == nil {
			return nil, &ParseError{Line: text}
		}
		hash, path := m[1], m[2]
		start, err1 := strconv.ParseInt(m[3], 10, 64)
		end, err2 := strconv.ParseInt(m[4], 10, 64)
		if err1 != nil || err2 != nil || end <= start {
			return nil, &ParseError{Line: text}
		}

		if path != lastPath {
			flush(lastPath)
			lastPath = path
		}
		records = append(records, record{hash: hash, rng: types.Range{Start: start, End: end}})

		if st.lines%4096 == 0 {
			bar.Describe(st)
		}
	}
	flush(lastPath)

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading block-checksums input: %w", err)
	}

	bar.Finish(st)
	return result, nil
}

// constructVector skips the empty-path sentinel, skips whole-file
// duplicates, skips files with fewer than two recorded blocks; otherwise
// interns the file and its blocks.
func constructVector(path string, records []record, dup duplicates.Index, in *interner.Interner) (types.Vector, bool) {
	if path == "" {
		return types.Vector{}, false
	}
	if dup.Contains(path) {
		return types.Vector{}, false
	}
	if len(records) < 2 {
		return types.Vector{}, false
	}

	fid := in.InternFile(path)
	blocks := make([]types.BlockId, len(records))
	for i, rec := range records {
		blocks[i] = in.InternBlock(rec.hash, rec.rng)
	}
	return types.Vector{File: fid, Blocks: blocks}, true
}

// Prune retains, for every vector, only block ids whose interned count
// exceeds one (i.e. the block is shared with some other file), then keeps
// the vector iff the retained list has length >= minBlocks.
func Prune(vectors []types.Vector, in *interner.Interner, minBlocks int) []types.Vector {
	var result []types.Vector
	for _, v := range vectors {
		var kept []types.BlockId
		for _, b := range v.Blocks {
			if in.Count(b) > 1 {
				kept = append(kept, b)
			}
		}
		if len(kept) >= minBlocks {
			result = append(result, types.Vector{File: v.File, Blocks: kept})
		}
	}
	return result
}
