// Package pipeline sequences conflict mining, history tracing and refactoring
// detection over a list of projects and keeps every unit of work resumable.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/festy23/patch_integrator/internal/conflict"
	"github.com/festy23/patch_integrator/internal/git"
	"github.com/festy23/patch_integrator/internal/github"
	"github.com/festy23/patch_integrator/internal/history"
	mergecommitModel "github.com/festy23/patch_integrator/internal/mergecommit/model"
	"github.com/festy23/patch_integrator/internal/metrics"
	projectModel "github.com/festy23/patch_integrator/internal/project/model"
	refactoringModel "github.com/festy23/patch_integrator/internal/refactoring/model"
	"github.com/festy23/patch_integrator/internal/store"
)

// DefaultRefactoringTimeout bounds refactoring detection on a single commit.
const DefaultRefactoringTimeout = 4 * time.Minute

// Config tunes a run.
type Config struct {
	// ClonePath holds one workspace directory per fork.
	ClonePath          string
	Parallelism        int
	RefactoringTimeout time.Duration
	// RecordFile selects the conflicting files that are persisted. Nil records every file.
	RecordFile func(path string) bool
}

// Dependencies are the collaborators of the orchestrator. Metrics may be nil.
type Dependencies struct {
	Stores      store.Provider
	Provisioner Provisioner
	Resolver    MergeResolver
	Detector    RefactoringDetector
	Metrics     *metrics.Metrics
}

// Orchestrator runs the analysis of every project in a repository list.
type Orchestrator struct {
	cfg    Config
	deps   Dependencies
	logger *zap.SugaredLogger
}

// NewOrchestrator creates an orchestrator, filling unset Config fields with defaults.
func NewOrchestrator(cfg Config, deps Dependencies, logger *zap.SugaredLogger) *Orchestrator {
	if cfg.Parallelism < 1 {
		cfg.Parallelism = 1
	}
	if cfg.RefactoringTimeout <= 0 {
		cfg.RefactoringTimeout = DefaultRefactoringTimeout
	}
	if cfg.RecordFile == nil {
		cfg.RecordFile = func(string) bool { return true }
	}
	return &Orchestrator{cfg: cfg, deps: deps, logger: logger}
}

// projectTask identifies one project of the run. It is built once per project
// and only ever passed by value.
type projectTask struct {
	spec   ProjectSpec
	dir    string
	logger *zap.SugaredLogger
}

// projectRun is a projectTask whose workspace and store are ready.
type projectRun struct {
	projectTask
	projectID int64
	head      string
	checkout  Checkout
	store     *store.Store
}

// conflictingFile is a recorded conflicting file and, for content and add/add
// conflicts, its regions.
type conflictingFile struct {
	conflict.File
	regions conflict.RegionSet
}

// Run analyses every project, at most Parallelism at once. Per-project
// failures are collected in the summary; the returned error is ctx's.
func (o *Orchestrator) Run(ctx context.Context, specs []ProjectSpec) (*Summary, error) {
	summary := newSummary(uuid.NewString())
	logger := o.logger.With("run_id", summary.RunID)
	logger.Infow("Starting run", "projects", len(specs), "parallelism", o.cfg.Parallelism)

	var g errgroup.Group
	g.SetLimit(o.cfg.Parallelism)

	seen := make(map[string]bool, len(specs))
	for _, spec := range specs {
		if ctx.Err() != nil {
			break
		}
		if seen[spec.ForkURL] {
			logger.Warnw("Duplicate project in repository list, skipping", "project", spec.ForkURL)
			continue
		}
		seen[spec.ForkURL] = true

		task := projectTask{
			spec:   spec,
			dir:    filepath.Join(o.cfg.ClonePath, git.WorkspaceDirName(spec.ForkURL)),
			logger: logger.With("project", spec.ForkURL),
		}
		g.Go(func() error {
			stats, err := o.runProject(ctx, task)
			summary.record(stats, task.spec.ForkURL, err)
			return nil
		})
	}
	_ = g.Wait()

	stats := summary.Stats()
	logger.Infow("Run finished",
		"projects_done", stats.ProjectsDone,
		"projects_skipped", stats.ProjectsSkipped,
		"projects_incomplete", stats.ProjectsIncomplete,
		"projects_failed", stats.ProjectsFailed,
		"merge_commits_conflicting", stats.MergeCommitsConflicting,
		"refactorings_processed", stats.RefactoringsProcessed,
		"refactorings_timed_out", stats.RefactoringsTimedOut,
	)
	return summary, ctx.Err()
}

func (o *Orchestrator) runProject(ctx context.Context, task projectTask) (Stats, error) {
	var stats Stats
	err := o.deps.Stores.WithStore(ctx, func(st *store.Store) error {
		return o.analyzeProject(ctx, task, st, &stats)
	})
	if err != nil {
		task.logger.Errorw("Project analysis aborted", "error", err)
		stats.ProjectsFailed++
		o.deps.Metrics.Project(metrics.OutcomeFailed)
	}
	return stats, err
}

func (o *Orchestrator) analyzeProject(ctx context.Context, task projectTask, st *store.Store, stats *Stats) error {
	project, created, err := st.Projects.FindOrCreate(ctx, projectModel.Project{
		SourceURL:  task.spec.SourceURL,
		SourceName: git.ProjectName(task.spec.SourceURL),
		ForkURL:    task.spec.ForkURL,
		ForkName:   git.ProjectName(task.spec.ForkURL),
	})
	if err != nil {
		return fmt.Errorf("failed to load project: %w", err)
	}
	if project.IsDone {
		task.logger.Infow("Project already analysed, skipping", "project_id", project.ID)
		stats.ProjectsSkipped++
		o.deps.Metrics.Project(metrics.OutcomeSkipped)
		return nil
	}
	task.logger.Infow("Analysing project", "project_id", project.ID, "created", created, "patches", len(task.spec.Patches))

	checkout, err := o.deps.Provisioner.Provision(ctx, task.spec, task.dir)
	defer o.release(task)
	if err != nil {
		return fmt.Errorf("failed to provision workspace: %w", err)
	}
	head, err := checkout.Head()
	if err != nil {
		return fmt.Errorf("failed to read fork head: %w", err)
	}

	run := projectRun{projectTask: task, projectID: project.ID, head: head, checkout: checkout, store: st}
	for _, number := range task.spec.Patches {
		if err := ctx.Err(); err != nil {
			return err
		}
		o.analyzePatch(ctx, run, number, stats)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := o.detectRefactorings(ctx, run, stats); err != nil {
		return err
	}

	if stats.incomplete() {
		task.logger.Warnw("Project left pending for the next run",
			"failed_merge_commits", stats.MergeCommitsFailed,
			"failed_refactorings", stats.RefactoringsFailed,
		)
		stats.ProjectsIncomplete++
		o.deps.Metrics.Project(metrics.OutcomeIncomplete)
		return nil
	}
	if err := st.Projects.MarkDone(ctx, project.ID); err != nil {
		return fmt.Errorf("failed to mark project done: %w", err)
	}
	task.logger.Infow("Project analysed", "project_id", project.ID)
	stats.ProjectsDone++
	o.deps.Metrics.Project(metrics.OutcomeDone)
	return nil
}

func (o *Orchestrator) release(task projectTask) {
	if err := o.deps.Provisioner.Release(task.dir); err != nil {
		task.logger.Warnw("Failed to remove workspace", "dir", task.dir, "error", err)
	}
}

func (o *Orchestrator) analyzePatch(ctx context.Context, run projectRun, number int, stats *Stats) {
	logger := run.logger.With("patch", number)

	hash, err := o.deps.Resolver.MergeCommitSHA(ctx, run.spec.SourceURL, number)
	if err != nil {
		if errors.Is(err, github.ErrNoMergeCommit) || errors.Is(err, github.ErrInvalidRepository) {
			logger.Warnw("Patch has no merge commit, skipping", "error", err)
			stats.PatchesSkipped++
			return
		}
		o.mergeCommitFailed(logger, stats, "Failed to resolve merge commit", err)
		return
	}
	logger = logger.With("commit", hash)

	info, err := run.checkout.Commit(hash)
	if err != nil {
		if errors.Is(err, git.ErrUnknownCommit) {
			logger.Warnw("Merge commit is not in the workspace, skipping", "error", err)
			stats.PatchesSkipped++
			return
		}
		o.mergeCommitFailed(logger, stats, "Failed to read merge commit", err)
		return
	}

	outcome, err := o.analyzeMergeCommit(ctx, run, number, info, logger)
	if err != nil {
		o.mergeCommitFailed(logger, stats, "Merge commit analysis failed", err)
		return
	}
	switch outcome {
	case metrics.OutcomeSkipped:
		stats.MergeCommitsSkipped++
	case metrics.OutcomeConflicting:
		stats.MergeCommitsConflicting++
	default:
		stats.MergeCommitsClean++
	}
	o.deps.Metrics.MergeCommit(outcome)
}

func (o *Orchestrator) mergeCommitFailed(logger *zap.SugaredLogger, stats *Stats, msg string, err error) {
	logger.Errorw(msg, "error", err)
	stats.MergeCommitsFailed++
	o.deps.Metrics.MergeCommit(metrics.OutcomeFailed)
}

// analyzeMergeCommit cherry-picks the merge commit onto the fork head and
// records the conflicts, regions and region histories. A merge commit left
// pending by an earlier run is deleted with its dependents and redone.
func (o *Orchestrator) analyzeMergeCommit(
	ctx context.Context,
	run projectRun,
	number int,
	info git.CommitInfo,
	logger *zap.SugaredLogger,
) (string, error) {
	commits := run.store.MergeCommits

	existing, err := commits.FindByHash(ctx, run.projectID, info.Hash)
	switch {
	case err == nil && existing.IsDone:
		logger.Debugw("Merge commit already analysed, skipping", "merge_commit_id", existing.ID)
		return metrics.OutcomeSkipped, nil
	case err == nil:
		logger.Infow("Redoing interrupted merge commit", "merge_commit_id", existing.ID)
		if err := commits.DeleteCascade(ctx, existing.ID); err != nil {
			return "", fmt.Errorf("failed to delete interrupted merge commit: %w", err)
		}
	case !errors.Is(err, mergecommitModel.ErrMergeCommitNotFound):
		return "", fmt.Errorf("failed to look up merge commit: %w", err)
	}

	patch, err := run.store.Projects.FindOrCreatePatch(ctx, run.projectID, number)
	if err != nil {
		return "", fmt.Errorf("failed to record patch: %w", err)
	}

	var (
		conflicting bool
		files       []conflictingFile
	)
	req := conflict.Request{Ours: run.head, Theirs: info.Hash, Strategy: conflict.StrategyCherryPick}
	err = run.checkout.Integrate(ctx, req, func(res *conflict.Result) error {
		conflicting = res.Conflicting
		var err error
		files, err = o.collectFiles(ctx, res)
		return err
	})
	if err != nil {
		return "", err
	}

	mc := &mergecommitModel.MergeCommit{
		ProjectID:     run.projectID,
		PatchID:       &patch.ID,
		CommitHash:    info.Hash,
		Parent1:       run.head,
		Parent2:       info.Hash,
		IsConflicting: conflicting,
		AuthorName:    &info.AuthorName,
		AuthorEmail:   &info.AuthorEmail,
		Timestamp:     info.Time,
	}
	if err := commits.Create(ctx, mc); err != nil {
		return "", fmt.Errorf("failed to create merge commit: %w", err)
	}

	for _, file := range files {
		if err := o.recordFile(ctx, run, mc, file); err != nil {
			return "", err
		}
	}

	if err := run.store.Projects.MarkPatchDone(ctx, patch.ID, conflicting); err != nil {
		return "", fmt.Errorf("failed to mark patch done: %w", err)
	}
	if err := commits.MarkDone(ctx, mc.ID); err != nil {
		return "", fmt.Errorf("failed to mark merge commit done: %w", err)
	}

	logger.Infow("Merge commit analysed", "merge_commit_id", mc.ID, "conflicting", conflicting, "files", len(files))
	if conflicting {
		return metrics.OutcomeConflicting, nil
	}
	return metrics.OutcomeClean, nil
}

// collectFiles runs while the working tree still holds the conflict markers.
func (o *Orchestrator) collectFiles(ctx context.Context, res *conflict.Result) ([]conflictingFile, error) {
	var files []conflictingFile
	for _, f := range res.Files {
		if !o.cfg.RecordFile(f.Path) {
			continue
		}
		file := conflictingFile{File: f}
		if f.Kind.HasRegions() {
			set, err := conflict.ExtractRegions(ctx, res.Root, f.Path)
			if err != nil {
				return nil, fmt.Errorf("failed to extract regions of %s: %w", f.Path, err)
			}
			file.regions = set
		}
		files = append(files, file)
	}
	return files, nil
}

func (o *Orchestrator) recordFile(ctx context.Context, run projectRun, mc *mergecommitModel.MergeCommit, file conflictingFile) error {
	commits := run.store.MergeCommits

	row := &mergecommitModel.ConflictingJavaFile{MergeCommitID: mc.ID, Path: file.Path, Type: string(file.Kind)}
	if err := commits.CreateFile(ctx, row); err != nil {
		return fmt.Errorf("failed to create conflicting file %s: %w", file.Path, err)
	}

	for _, r := range file.regions.Regions {
		region := &mergecommitModel.ConflictingRegion{
			ConflictingJavaFileID: row.ID,
			MergeCommitID:         mc.ID,
			Path1:                 file.regions.Path1,
			StartLine1:            r.Start1,
			Length1:               r.Length1,
			Path2:                 file.regions.Path2,
			StartLine2:            r.Start2,
			Length2:               r.Length2,
		}
		if err := commits.CreateRegion(ctx, region); err != nil {
			return fmt.Errorf("failed to create conflicting region in %s: %w", file.Path, err)
		}

		var events []mergecommitModel.ConflictingRegionHistory
		for _, side := range []int{mergecommitModel.SideFork, mergecommitModel.SideUpstream} {
			changes, err := run.checkout.Trace(ctx, traceRequest(run.head, mc.CommitHash, region, side))
			if err != nil {
				return fmt.Errorf("failed to trace side %d of region %d: %w", side, region.ID, err)
			}
			events = append(events, historyRows(run.projectID, region, side, changes)...)
		}
		if err := commits.CreateHistory(ctx, events); err != nil {
			return fmt.Errorf("failed to store history of region %d: %w", region.ID, err)
		}
	}
	return nil
}

// traceRequest walks the fork side from the fork head and the upstream side
// from the merge commit, each stopping at the other side's ancestry.
func traceRequest(head, commit string, region *mergecommitModel.ConflictingRegion, side int) history.Request {
	if side == mergecommitModel.SideFork {
		return history.Request{
			Start:   head,
			Exclude: commit,
			Path:    region.Path1,
			Range:   history.LineRange{Start: region.StartLine1, Length: region.Length1},
		}
	}
	return history.Request{
		Start:   commit,
		Exclude: head,
		Path:    region.Path2,
		Range:   history.LineRange{Start: region.StartLine2, Length: region.Length2},
	}
}

func historyRows(
	projectID int64,
	region *mergecommitModel.ConflictingRegion,
	side int,
	changes []history.Change,
) []mergecommitModel.ConflictingRegionHistory {
	rows := make([]mergecommitModel.ConflictingRegionHistory, 0, len(changes))
	for i, c := range changes {
		rows = append(rows, mergecommitModel.ConflictingRegionHistory{
			ConflictingRegionID: region.ID,
			MergeCommitID:       region.MergeCommitID,
			ProjectID:           projectID,
			CommitHash:          c.CommitHash,
			MergeParent:         side,
			Seq:                 i,
			ChangeKind:          string(c.Kind),
			OldStartLine:        c.Old.Start,
			OldLength:           c.Old.Length,
			OldPath:             c.Old.Path,
			NewStartLine:        c.New.Start,
			NewLength:           c.New.Length,
			NewPath:             c.New.Path,
			AuthorName:          c.AuthorName,
			AuthorEmail:         c.AuthorEmail,
			Timestamp:           c.Timestamp,
		})
	}
	return rows
}

// detectRefactorings runs the detector over every distinct history commit of
// the project, one at a time, each under the refactoring timeout.
func (o *Orchestrator) detectRefactorings(ctx context.Context, run projectRun, stats *Stats) error {
	hashes, err := run.store.MergeCommits.DistinctHistoryCommits(ctx, run.projectID)
	if err != nil {
		return fmt.Errorf("failed to list history commits: %w", err)
	}
	if len(hashes) == 0 {
		return nil
	}
	run.logger.Infow("Detecting refactorings", "commits", len(hashes))

	queue := NewQueue(o.cfg.RefactoringTimeout)
	// The workspace is released after this returns, so an abandoned detection
	// must have exited by then.
	defer func() { _ = queue.Drain(context.WithoutCancel(ctx)) }()

	for _, hash := range hashes {
		if err := ctx.Err(); err != nil {
			return err
		}
		o.detectCommit(ctx, run, queue, hash, stats)
	}
	return nil
}

func (o *Orchestrator) detectCommit(ctx context.Context, run projectRun, queue *Queue, hash string, stats *Stats) {
	logger := run.logger.With("commit", hash)
	refactorings := run.store.Refactorings

	rc, err := refactorings.FindOrCreateCommit(ctx, run.projectID, hash)
	if err != nil {
		o.refactoringFailed(logger, stats, "Failed to register refactoring commit", err, 0)
		return
	}
	if rc.Terminal() {
		logger.Debugw("Refactoring commit already final, skipping", "processed", rc.IsProcessed, "timed_out", rc.IsTimedOut)
		o.refactoringSkipped(stats, 0)
		return
	}
	if err := refactorings.PurgeRefactorings(ctx, rc.ID); err != nil {
		if errors.Is(err, refactoringModel.ErrAlreadyTerminal) {
			logger.Debugw("Refactoring commit finalized by another project, skipping")
			o.refactoringSkipped(stats, 0)
			return
		}
		o.refactoringFailed(logger, stats, "Failed to purge stale refactorings", err, 0)
		return
	}

	var detected []refactoringModel.Detected
	started := time.Now()
	outcome, err := queue.Run(ctx, func(taskCtx context.Context) error {
		found, err := o.deps.Detector.Detect(taskCtx, run.checkout.Dir(), hash)
		detected = found
		return err
	})
	took := time.Since(started)

	switch outcome {
	case Completed:
		if err := refactorings.SaveResults(ctx, rc.ID, detected); err != nil {
			if errors.Is(err, refactoringModel.ErrAlreadyTerminal) {
				logger.Debugw("Refactoring commit finalized by another project, discarding results")
				o.refactoringSkipped(stats, took)
				return
			}
			o.refactoringFailed(logger, stats, "Failed to store refactorings", err, took)
			return
		}
		logger.Debugw("Refactorings detected", "count", len(detected), "took", took)
		stats.RefactoringsProcessed++
		o.deps.Metrics.RefactoringCommit(metrics.StatusProcessed, took)
	case TimedOut:
		logger.Warnw("Refactoring detection timed out", "timeout", o.cfg.RefactoringTimeout)
		if err := refactorings.MarkTimedOut(ctx, rc.ID); err != nil {
			if errors.Is(err, refactoringModel.ErrAlreadyTerminal) {
				o.refactoringSkipped(stats, took)
				return
			}
			o.refactoringFailed(logger, stats, "Failed to mark refactoring commit timed out", err, took)
			return
		}
		stats.RefactoringsTimedOut++
		o.deps.Metrics.RefactoringCommit(metrics.StatusTimedOut, took)
	default:
		o.refactoringFailed(logger, stats, "Refactoring detection failed", err, took)
	}
}

func (o *Orchestrator) refactoringSkipped(stats *Stats, took time.Duration) {
	stats.RefactoringsSkipped++
	o.deps.Metrics.RefactoringCommit(metrics.StatusSkipped, took)
}

func (o *Orchestrator) refactoringFailed(logger *zap.SugaredLogger, stats *Stats, msg string, err error, took time.Duration) {
	logger.Errorw(msg, "error", err)
	stats.RefactoringsFailed++
	o.deps.Metrics.RefactoringCommit(metrics.StatusFailed, took)
}
