package conflict

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/festy23/patch_integrator/internal/git"
)

// Index stages of an unmerged path.
const (
	stageOurs   = 2
	stageTheirs = 3
)

// stageLines reads one index stage of an unmerged path. ok is false when the
// path has no such stage, as for a file the side deleted.
func stageLines(ctx context.Context, root string, stage int, path string) (lines []string, ok bool, err error) {
	res, err := git.RunGitCommandStatus(ctx, root, "show", fmt.Sprintf(":%d:%s", stage, path))
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", ErrIntegration, err)
	}
	if res.ExitCode != 0 {
		return nil, false, nil
	}
	return splitLines(res.Stdout), true, nil
}

func splitLines(text string) []string {
	if text == "" {
		return []string{}
	}
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSuffix(l, "\r")
	}
	return lines
}

// sideLineMap aligns view with side line by line and returns, for every
// 0-based position of view and one past its end, the 0-based position it
// lands on in side. Lines of view missing from side map to where side
// continues.
func sideLineMap(view, side []string) []int {
	dmp := diffmatchpatch.New()
	a, b, _ := dmp.DiffLinesToRunes(joinLines(view), joinLines(side))
	diffs := dmp.DiffMainRunes(a, b, false)

	m := make([]int, 0, len(view)+1)
	s := 0
	for _, d := range diffs {
		n := utf8.RuneCountInString(d.Text)
		switch d.Type {
		case diffmatchpatch.DiffEqual:
			for k := 0; k < n; k++ {
				m = append(m, s)
				s++
			}
		case diffmatchpatch.DiffDelete:
			for k := 0; k < n; k++ {
				m = append(m, s)
			}
		case diffmatchpatch.DiffInsert:
			s += n
		}
	}
	return append(m, s)
}

func joinLines(lines []string) string {
	if len(lines) == 0 {
		return ""
	}
	return strings.Join(lines, "\n") + "\n"
}
