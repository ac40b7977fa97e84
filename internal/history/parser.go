package history

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
)

const devNull = "/dev/null"

var hunkHeader = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)

// span is the union of one side's hunk ranges within a commit. Empty hunks
// only position the span until a hunk with lines arrives.
type span struct {
	start, end int
	hasLines   bool
	positioned bool
}

func (s *span) add(start, count int) {
	if count == 0 {
		if !s.hasLines && !s.positioned {
			s.start, s.end, s.positioned = start, start, true
		}
		return
	}
	end := start + count
	if !s.hasLines {
		s.start, s.end, s.hasLines = start, end, true
		return
	}
	s.start = min(s.start, start)
	s.end = max(s.end, end)
}

func (s *span) rangeOf(path string) Range {
	return Range{Start: s.start, Length: s.end - s.start, Path: path}
}

type commitBlock struct {
	hash     string
	oldPath  string
	newPath  string
	old, new span
	hunks    int
	touched  bool
}

func (b *commitBlock) change() (Change, bool) {
	if b.hunks == 0 {
		return Change{}, false
	}
	old := b.old.rangeOf(b.oldPath)
	newer := b.new.rangeOf(b.newPath)
	return Change{
		CommitHash: b.hash,
		Old:        old,
		New:        newer,
		Kind:       classify(old, newer, b.touched),
	}, true
}

// parseLog reads `git log -L --format="commit %H"` output into one change per
// commit. Commits whose output carries no hunk are dropped.
func parseLog(r io.Reader) ([]Change, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	changes := []Change{}
	var cur *commitBlock
	inHeader := false

	flush := func() {
		if cur == nil {
			return
		}
		if c, ok := cur.change(); ok {
			changes = append(changes, c)
		}
	}

	for scanner.Scan() {
		line := scanner.Text()

		if hash, ok := strings.CutPrefix(line, "commit "); ok && !strings.ContainsAny(hash, " \t") && len(hash) >= 40 {
			flush()
			cur = &commitBlock{hash: hash}
			inHeader = false
			continue
		}
		if cur == nil {
			continue
		}

		switch {
		case strings.HasPrefix(line, "diff --git "):
			inHeader = true
		case inHeader && strings.HasPrefix(line, "--- "):
			cur.oldPath = diffPath(line[4:], "a/")
		case inHeader && strings.HasPrefix(line, "+++ "):
			cur.newPath = diffPath(line[4:], "b/")
		case strings.HasPrefix(line, "@@ "):
			m := hunkHeader.FindStringSubmatch(line)
			if m == nil {
				return nil, fmt.Errorf("malformed hunk header in %s: %q", cur.hash, line)
			}
			inHeader = false
			cur.hunks++
			cur.old.add(atoi(m[1]), count(m[2]))
			cur.new.add(atoi(m[3]), count(m[4]))
		case !inHeader && cur.hunks > 0 && (strings.HasPrefix(line, "+") || strings.HasPrefix(line, "-")):
			cur.touched = true
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	flush()

	return changes, nil
}

func diffPath(raw, prefix string) string {
	raw = strings.TrimRight(raw, "\t")
	if strings.HasPrefix(raw, `"`) {
		if unquoted, err := strconv.Unquote(raw); err == nil {
			raw = unquoted
		}
	}
	if raw == devNull {
		return ""
	}
	return strings.TrimPrefix(raw, prefix)
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func count(s string) int {
	if s == "" {
		return 1
	}
	return atoi(s)
}
