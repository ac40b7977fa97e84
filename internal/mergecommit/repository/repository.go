// Package repository provides data access layer for the mergecommit module.
package repository

import (
	"context"
	"errors"

	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/festy23/patch_integrator/internal/mergecommit/model"
)

// historyBatchSize bounds one multi-row insert of history events.
const historyBatchSize = 200

// Repository defines the interface for merge commit data access operations.
type Repository interface {
	// FindByHash finds the project's merge commit row for a commit hash.
	FindByHash(ctx context.Context, projectID int64, hash string) (*model.MergeCommit, error)

	// Create inserts a merge commit. The row starts not done.
	Create(ctx context.Context, mc *model.MergeCommit) error

	// MarkDone flags a merge commit and everything below it as complete.
	MarkDone(ctx context.Context, id int64) error

	// DeleteCascade removes a merge commit with its files, regions and
	// histories in one transaction.
	DeleteCascade(ctx context.Context, id int64) error

	// CreateFile inserts a conflicting file row.
	CreateFile(ctx context.Context, f *model.ConflictingJavaFile) error

	// CreateRegion inserts a conflicting region row.
	CreateRegion(ctx context.Context, r *model.ConflictingRegion) error

	// CreateHistory inserts the history events of one region side.
	CreateHistory(ctx context.Context, events []model.ConflictingRegionHistory) error

	// DistinctHistoryCommits returns each commit recorded in the project's
	// completed region histories once, in first-recorded order.
	DistinctHistoryCommits(ctx context.Context, projectID int64) ([]string, error)
}

type repository struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// New creates a new merge commit repository instance.
func New(db *gorm.DB, logger *zap.SugaredLogger) Repository {
	return &repository{db: db, logger: logger}
}

// FindByHash finds the project's merge commit row for a commit hash.
func (r *repository) FindByHash(ctx context.Context, projectID int64, hash string) (*model.MergeCommit, error) {
	var mc model.MergeCommit
	err := r.db.WithContext(ctx).
		Where("project_id = ? AND commit_hash = ?", projectID, hash).
		First(&mc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrMergeCommitNotFound
		}
		return nil, err
	}
	return &mc, nil
}

// Create inserts a merge commit. The row starts not done.
func (r *repository) Create(ctx context.Context, mc *model.MergeCommit) error {
	mc.IsDone = false
	err := r.db.WithContext(ctx).Create(mc).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return model.ErrMergeCommitExists
	}
	return err
}

// MarkDone flags a merge commit and everything below it as complete.
func (r *repository) MarkDone(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).
		Model(&model.MergeCommit{}).
		Where("id = ?", id).
		Update("is_done", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return model.ErrMergeCommitNotFound
	}
	return nil
}

// DeleteCascade removes a merge commit with its files, regions and histories.
// Children go first so that foreign keys hold at every step.
func (r *repository) DeleteCascade(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		histories := tx.Where("merge_commit_id = ?", id).Delete(&model.ConflictingRegionHistory{})
		if histories.Error != nil {
			return histories.Error
		}
		regions := tx.Where("merge_commit_id = ?", id).Delete(&model.ConflictingRegion{})
		if regions.Error != nil {
			return regions.Error
		}
		files := tx.Where("merge_commit_id = ?", id).Delete(&model.ConflictingJavaFile{})
		if files.Error != nil {
			return files.Error
		}
		result := tx.Where("id = ?", id).Delete(&model.MergeCommit{})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return model.ErrMergeCommitNotFound
		}

		r.logger.Debugw("merge commit subtree deleted",
			"merge_commit_id", id,
			"files", files.RowsAffected,
			"regions", regions.RowsAffected,
			"histories", histories.RowsAffected,
		)
		return nil
	})
}

// CreateFile inserts a conflicting file row.
func (r *repository) CreateFile(ctx context.Context, f *model.ConflictingJavaFile) error {
	return r.db.WithContext(ctx).Create(f).Error
}

// CreateRegion inserts a conflicting region row.
func (r *repository) CreateRegion(ctx context.Context, region *model.ConflictingRegion) error {
	if err := region.Validate(); err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(region).Error
}

// CreateHistory inserts the history events of one region side.
func (r *repository) CreateHistory(ctx context.Context, events []model.ConflictingRegionHistory) error {
	if len(events) == 0 {
		return nil
	}
	for _, e := range events {
		if err := e.Validate(); err != nil {
			return err
		}
	}
	return r.db.WithContext(ctx).CreateInBatches(&events, historyBatchSize).Error
}

// DistinctHistoryCommits returns each commit recorded in the project's
// completed region histories once, in first-recorded order.
func (r *repository) DistinctHistoryCommits(ctx context.Context, projectID int64) ([]string, error) {
	var hashes []string
	err := r.db.WithContext(ctx).
		Model(&model.ConflictingRegionHistory{}).
		Joins("JOIN merge_commit ON merge_commit.id = conflicting_region_history.merge_commit_id").
		Where("conflicting_region_history.project_id = ? AND merge_commit.is_done = ?", projectID, true).
		Order("conflicting_region_history.id ASC").
		Pluck("conflicting_region_history.commit_hash", &hashes).Error
	if err != nil {
		return nil, err
	}
	return lo.Uniq(hashes), nil
}
