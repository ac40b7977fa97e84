// Package history traces how a line range evolved on one side of a divergence.
package history

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/festy23/patch_integrator/internal/git"
)

// DefaultMaxSteps bounds a trace when no explicit limit is configured.
const DefaultMaxSteps = 500

// CommitResolver looks up commits and file sizes in the checkout.
type CommitResolver interface {
	Commit(rev string) (git.CommitInfo, error)
	LineCount(rev, path string) (int, bool, error)
}

// LineRange is a 1-indexed range in a file.
type LineRange struct {
	Start  int
	Length int
}

// Request traces Range of Path as of Start, walking back until Exclude's ancestry.
type Request struct {
	Start   string
	Exclude string
	Path    string
	Range   LineRange
}

// Tracer follows line ranges back through the history of one repository.
type Tracer struct {
	root     string
	commits  CommitResolver
	maxSteps int
	logger   *zap.SugaredLogger
}

// NewTracer creates a tracer for the repository at root.
func NewTracer(root string, commits CommitResolver, maxSteps int, logger *zap.SugaredLogger) *Tracer {
	if maxSteps <= 0 {
		maxSteps = DefaultMaxSteps
	}
	return &Tracer{root: root, commits: commits, maxSteps: maxSteps, logger: logger}
}

// Trace returns the changes that touched the range, most recent first.
// An empty range, or one outside the file at Start, has no history.
func (t *Tracer) Trace(ctx context.Context, req Request) ([]Change, error) {
	rng, ok, err := t.clamp(req)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []Change{}, nil
	}

	args := []string{
		"-c", "core.quotePath=false",
		"log", "-M", "--no-color", "--no-ext-diff",
		"--format=commit %H",
		fmt.Sprintf("--max-count=%d", t.maxSteps),
		fmt.Sprintf("-L%d,+%d:%s", rng.Start, rng.Length, req.Path),
		req.Start,
	}
	if req.Exclude != "" {
		args = append(args, "^"+req.Exclude)
	}

	out, err := git.RunGitCommand(ctx, t.root, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to trace %s:%d,+%d from %s: %w", req.Path, rng.Start, rng.Length, req.Start, err)
	}

	changes, err := parseLog(strings.NewReader(out))
	if err != nil {
		return nil, err
	}
	if len(changes) > t.maxSteps {
		changes = changes[:t.maxSteps]
	}

	for i := range changes {
		t.attribute(&changes[i])
	}

	t.logger.Debugw("Traced region history",
		"path", req.Path,
		"start", req.Start,
		"range_start", rng.Start,
		"range_length", rng.Length,
		"changes", len(changes),
	)
	return changes, nil
}

func (t *Tracer) clamp(req Request) (LineRange, bool, error) {
	if req.Range.Start <= 0 || req.Range.Length <= 0 {
		return LineRange{}, false, nil
	}

	lines, exists, err := t.commits.LineCount(req.Start, req.Path)
	if err != nil {
		return LineRange{}, false, err
	}
	if !exists || req.Range.Start > lines {
		return LineRange{}, false, nil
	}

	rng := req.Range
	if last := rng.Start + rng.Length - 1; last > lines {
		rng.Length = lines - rng.Start + 1
	}
	return rng, true, nil
}

func (t *Tracer) attribute(c *Change) {
	info, err := t.commits.Commit(c.CommitHash)
	if err != nil {
		t.logger.Warnw("Failed to resolve history commit", "commit", c.CommitHash, "error", err)
		return
	}
	name, email := info.AuthorName, info.AuthorEmail
	c.AuthorName = &name
	c.AuthorEmail = &email
	c.Timestamp = info.Time
}
