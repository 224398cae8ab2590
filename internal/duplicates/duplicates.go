// Package duplicates scans a whole-file checksum listing for whole-file
// duplicate groups and builds the Duplicate Index consulted by the vector
// builder. The input is pre-sorted by hash, so duplicate files are simply
// runs of two or more adjacent lines sharing a hash.
package duplicates

import (
	"bufio"
	"fmt"
	"io"
	"regexp"

	"github.com/dustin/go-humanize"
	"github.com/ivoronin/dedupescan/internal/progress"
)

// lineRe matches "<hexhash> <SP>+ <path>".
var lineRe = regexp.MustCompile(`^([0-9a-fA-F]+)\s+(\S.+)$`)

// ParseError reports a whole-checksums line that doesn't match the expected
// grammar. It is fatal.
type ParseError struct {
	Line string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("malformed whole-checksums line: %q", e.Line)
}

// Index is the set of paths known to be non-primary (secondary) whole-file
// duplicates, consulted by the vector builder to skip entire files.
type Index map[string]struct{}

// Contains reports whether path is a known secondary duplicate.
func (idx Index) Contains(path string) bool {
	_, ok := idx[path]
	return ok
}

type stats struct {
	progress.Counter
	lines  int
	groups int
}

func (s *stats) String() string {
	msg := fmt.Sprintf("Scanned %s lines, found %d duplicate groups in %.1fs",
		humanize.Comma(int64(s.lines)), s.groups, s.Elapsed().Seconds())
	if n := s.Warnings(); n > 0 {
		msg += fmt.Sprintf(" (%d warnings)", n)
	}
	return msg
}

// Scan reads whole-checksums lines from r and returns the ordered list of
// duplicate groups (each a run of paths sharing a hash, in file-appearance
// order) along with the Duplicate Index populated from every group's
// secondaries (all but the last element; the last is treated as primary).
//
// showProgress drives a spinner, since checksum listings can run to
// millions of lines. errs, if non-nil, receives non-fatal warnings (e.g. a
// blank line skipped mid-file) without aborting the scan; the caller is
// responsible for draining it.
func Scan(r io.Reader, showProgress bool, errs chan<- error) (groups [][]string, idx Index, err error) {
	bar := progress.New(showProgress, -1)
	st := &stats{Counter: progress.NewCounter()}
	idx = make(Index)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lastHash := ""
	var run []string
	lineNo := 0

	flush := func() {
		if len(run) > 1 {
			group := append([]string(nil), run...)
			groups = append(groups, group)
			addSecondaries(idx, group)
			st.groups++
		}
		run = nil
	}

	for scanner.Scan() {
		lineNo++
		text := scanner.Text()
		if text == "" {
			st.Warn()
			if errs != nil {
				errs <- fmt.Errorf("whole-checksums line %d: blank line skipped", lineNo)
			}
			continue
		}
		st.lines++

		m := lineRe.FindStringSubmatch(text)
		if m == nil {
			return nil, nil, &ParseError{Line: text}
		}
		hash, path := m[1], m[2]

		if hash != lastHash {
			flush()
			lastHash = hash
		}
		run = append(run, path)

		if st.lines%4096 == 0 {
			bar.Describe(st)
		}
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading whole-checksums input: %w", err)
	}

	bar.Finish(st)
	return groups, idx, nil
}

// addSecondaries marks every path but the last in group as a secondary
// duplicate. The last element is treated as the primary.
func addSecondaries(idx Index, group []string) {
	for _, path := range group[:len(group)-1] {
		idx[path] = struct{}{}
	}
}
