package pipeline

import (
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"
)

// Stats counts what happened to the units of work of one or more projects.
type Stats struct {
	ProjectsDone       int
	ProjectsSkipped    int
	ProjectsIncomplete int
	ProjectsFailed     int

	PatchesSkipped int

	MergeCommitsClean       int
	MergeCommitsConflicting int
	MergeCommitsSkipped     int
	MergeCommitsFailed      int

	RefactoringsProcessed int
	RefactoringsTimedOut  int
	RefactoringsSkipped   int
	RefactoringsFailed    int
}

func (s *Stats) add(o Stats) {
	s.ProjectsDone += o.ProjectsDone
	s.ProjectsSkipped += o.ProjectsSkipped
	s.ProjectsIncomplete += o.ProjectsIncomplete
	s.ProjectsFailed += o.ProjectsFailed
	s.PatchesSkipped += o.PatchesSkipped
	s.MergeCommitsClean += o.MergeCommitsClean
	s.MergeCommitsConflicting += o.MergeCommitsConflicting
	s.MergeCommitsSkipped += o.MergeCommitsSkipped
	s.MergeCommitsFailed += o.MergeCommitsFailed
	s.RefactoringsProcessed += o.RefactoringsProcessed
	s.RefactoringsTimedOut += o.RefactoringsTimedOut
	s.RefactoringsSkipped += o.RefactoringsSkipped
	s.RefactoringsFailed += o.RefactoringsFailed
}

// incomplete reports whether some unit failed and must be retried by a later run.
func (s Stats) incomplete() bool {
	return s.MergeCommitsFailed > 0 || s.RefactoringsFailed > 0
}

// Summary aggregates the outcome of a run across workers.
type Summary struct {
	RunID string

	mu    sync.Mutex
	stats Stats
	errs  *multierror.Error
}

func newSummary(runID string) *Summary {
	return &Summary{RunID: runID}
}

func (s *Summary) record(stats Stats, forkURL string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats.add(stats)
	if err != nil {
		s.errs = multierror.Append(s.errs, fmt.Errorf("%s: %w", forkURL, err))
	}
}

// Stats returns a snapshot of the counters.
func (s *Summary) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stats
}

// Err returns every per-project failure of the run, or nil.
func (s *Summary) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errs.ErrorOrNil()
}
