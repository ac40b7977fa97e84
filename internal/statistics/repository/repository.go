// Package repository provides data access layer for statistics module.
package repository

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/festy23/patch_integrator/internal/statistics/model"
)

// Repository defines the interface for statistics data access operations.
// Merge commit figures only count rows marked done.
type Repository interface {
	// GetProjectsStatistics returns per-project counters ordered by project id.
	GetProjectsStatistics(ctx context.Context) ([]model.ProjectStatistics, error)

	// GetRefactoringCommitCounts returns total, processed and timed-out commit counts.
	GetRefactoringCommitCounts(ctx context.Context) (*model.RefactoringStatistics, error)

	// GetRefactoringsByType counts detected refactorings per type.
	GetRefactoringsByType(ctx context.Context) ([]model.TypeCount, error)

	// GetConflictCounts returns merge commit, region and history event counts.
	GetConflictCounts(ctx context.Context) (*model.ConflictStatistics, error)

	// GetConflictingFilesByType counts conflicting files per conflict kind.
	GetConflictingFilesByType(ctx context.Context) ([]model.TypeCount, error)

	// GetHistoryByChangeKind counts region history events per change kind.
	GetHistoryByChangeKind(ctx context.Context) ([]model.TypeCount, error)
}

type repository struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// New creates a new statistics repository instance.
func New(db *gorm.DB, logger *zap.SugaredLogger) Repository {
	return &repository{
		db:     db,
		logger: logger,
	}
}

// GetProjectsStatistics returns per-project counters ordered by project id.
func (r *repository) GetProjectsStatistics(ctx context.Context) ([]model.ProjectStatistics, error) {
	r.logger.Debugw("GetProjectsStatistics called")

	var stats []model.ProjectStatistics

	err := r.db.WithContext(ctx).
		Table("project").
		Select(`
			project.id AS project_id,
			project.fork_url,
			project.source_url,
			project.is_done,
			(SELECT COUNT(*) FROM patch WHERE patch.project_id = project.id) AS patches,
			(SELECT COUNT(*) FROM patch
				WHERE patch.project_id = project.id AND patch.is_conflicting = ?) AS conflicting_patches,
			(SELECT COUNT(*) FROM merge_commit
				WHERE merge_commit.project_id = project.id AND merge_commit.is_done = ?) AS merge_commits,
			(SELECT COUNT(*) FROM merge_commit
				WHERE merge_commit.project_id = project.id AND merge_commit.is_done = ?
				AND merge_commit.is_conflicting = ?) AS conflicting_merge_commits,
			(SELECT COUNT(*) FROM conflicting_java_file
				JOIN merge_commit ON merge_commit.id = conflicting_java_file.merge_commit_id
				WHERE merge_commit.project_id = project.id AND merge_commit.is_done = ?) AS conflicting_files,
			(SELECT COUNT(*) FROM conflicting_region
				JOIN merge_commit ON merge_commit.id = conflicting_region.merge_commit_id
				WHERE merge_commit.project_id = project.id AND merge_commit.is_done = ?) AS conflicting_regions
		`, true, true, true, true, true, true).
		Order("project.id ASC").
		Scan(&stats).Error

	if err != nil {
		r.logger.Errorw("GetProjectsStatistics database error", "error", err)
		return nil, err
	}

	if stats == nil {
		stats = []model.ProjectStatistics{}
	}

	r.logger.Debugw("GetProjectsStatistics completed", "count", len(stats))
	return stats, nil
}

// GetRefactoringCommitCounts returns total, processed and timed-out commit counts.
func (r *repository) GetRefactoringCommitCounts(ctx context.Context) (*model.RefactoringStatistics, error) {
	var result struct {
		TotalCommits     int64 `gorm:"column:total_commits"`
		ProcessedCommits int64 `gorm:"column:processed_commits"`
		TimedOutCommits  int64 `gorm:"column:timed_out_commits"`
	}

	err := r.db.WithContext(ctx).
		Table("refactoring_commit").
		Select(`
			COUNT(*) AS total_commits,
			COALESCE(SUM(CASE WHEN is_processed = ? THEN 1 ELSE 0 END), 0) AS processed_commits,
			COALESCE(SUM(CASE WHEN is_timed_out = ? THEN 1 ELSE 0 END), 0) AS timed_out_commits
		`, true, true).
		Scan(&result).Error

	if err != nil {
		r.logger.Errorw("GetRefactoringCommitCounts database error", "error", err)
		return nil, err
	}

	return &model.RefactoringStatistics{
		TotalCommits:     int(result.TotalCommits),
		ProcessedCommits: int(result.ProcessedCommits),
		TimedOutCommits:  int(result.TimedOutCommits),
	}, nil
}

// GetRefactoringsByType counts detected refactorings per type.
func (r *repository) GetRefactoringsByType(ctx context.Context) ([]model.TypeCount, error) {
	var counts []model.TypeCount

	err := r.db.WithContext(ctx).
		Table("refactoring").
		Select("refactoring.type AS type, COUNT(*) AS count").
		Group("refactoring.type").
		Order("count DESC, type ASC").
		Scan(&counts).Error

	if err != nil {
		r.logger.Errorw("GetRefactoringsByType database error", "error", err)
		return nil, err
	}
	return nonNil(counts), nil
}

// GetConflictCounts returns merge commit, region and history event counts.
func (r *repository) GetConflictCounts(ctx context.Context) (*model.ConflictStatistics, error) {
	var commits struct {
		MergeCommits            int64 `gorm:"column:merge_commits"`
		ConflictingMergeCommits int64 `gorm:"column:conflicting_merge_commits"`
	}

	db := r.db.WithContext(ctx)
	err := db.Table("merge_commit").
		Select(`
			COUNT(*) AS merge_commits,
			COALESCE(SUM(CASE WHEN is_conflicting = ? THEN 1 ELSE 0 END), 0) AS conflicting_merge_commits
		`, true).
		Where("is_done = ?", true).
		Scan(&commits).Error
	if err != nil {
		r.logger.Errorw("GetConflictCounts database error", "error", err)
		return nil, err
	}

	var files, regions, events int64
	for _, c := range []struct {
		table string
		dst   *int64
	}{
		{"conflicting_java_file", &files},
		{"conflicting_region", &regions},
		{"conflicting_region_history", &events},
	} {
		err := db.Table(c.table).
			Joins("JOIN merge_commit ON merge_commit.id = " + c.table + ".merge_commit_id").
			Where("merge_commit.is_done = ?", true).
			Count(c.dst).Error
		if err != nil {
			r.logger.Errorw("GetConflictCounts database error", "table", c.table, "error", err)
			return nil, err
		}
	}

	return &model.ConflictStatistics{
		MergeCommits:            int(commits.MergeCommits),
		ConflictingMergeCommits: int(commits.ConflictingMergeCommits),
		ConflictingFiles:        int(files),
		ConflictingRegions:      int(regions),
		HistoryEvents:           int(events),
	}, nil
}

// GetConflictingFilesByType counts conflicting files per conflict kind.
func (r *repository) GetConflictingFilesByType(ctx context.Context) ([]model.TypeCount, error) {
	return r.countByColumn(ctx, "conflicting_java_file", "type")
}

// GetHistoryByChangeKind counts region history events per change kind.
func (r *repository) GetHistoryByChangeKind(ctx context.Context) ([]model.TypeCount, error) {
	return r.countByColumn(ctx, "conflicting_region_history", "change_kind")
}

// countByColumn groups the rows of a merge commit child table by column,
// counting only rows under done merge commits.
func (r *repository) countByColumn(ctx context.Context, table, column string) ([]model.TypeCount, error) {
	var counts []model.TypeCount
	qualified := table + "." + column

	err := r.db.WithContext(ctx).
		Table(table).
		Select(qualified + " AS type, COUNT(*) AS count").
		Joins("JOIN merge_commit ON merge_commit.id = " + table + ".merge_commit_id").
		Where("merge_commit.is_done = ?", true).
		Group(qualified).
		Order("count DESC, type ASC").
		Scan(&counts).Error

	if err != nil {
		r.logger.Errorw("countByColumn database error", "table", table, "error", err)
		return nil, err
	}
	return nonNil(counts), nil
}

func nonNil(counts []model.TypeCount) []model.TypeCount {
	if counts == nil {
		return []model.TypeCount{}
	}
	return counts
}
