// Package repository provides data access layer for the refactoring module.
package repository

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/festy23/patch_integrator/internal/refactoring/model"
)

// Repository defines the interface for refactoring data access operations.
type Repository interface {
	// FindOrCreateCommit returns the refactoring commit for hash, inserting
	// it for projectID when absent. Commits are unique by hash.
	FindOrCreateCommit(ctx context.Context, projectID int64, hash string) (*model.RefactoringCommit, error)

	// PurgeRefactorings deletes every refactoring and region of a pending
	// commit. It returns model.ErrAlreadyTerminal once the commit is final.
	PurgeRefactorings(ctx context.Context, commitID int64) error

	// SaveResults replaces the commit's refactorings with detected and marks
	// it processed, in one transaction.
	SaveResults(ctx context.Context, commitID int64, detected []model.Detected) error

	// MarkTimedOut marks a pending commit timed out and drops partial results.
	MarkTimedOut(ctx context.Context, commitID int64) error
}

type repository struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// New creates a new refactoring repository instance.
func New(db *gorm.DB, logger *zap.SugaredLogger) Repository {
	return &repository{db: db, logger: logger}
}

// FindOrCreateCommit returns the refactoring commit for hash.
func (r *repository) FindOrCreateCommit(ctx context.Context, projectID int64, hash string) (*model.RefactoringCommit, error) {
	if hash == "" {
		return nil, model.ErrInvalidCommitHash
	}

	rc := model.RefactoringCommit{ProjectID: projectID, CommitHash: hash}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "commit_hash"}}, DoNothing: true}).
		Create(&rc).Error
	if err != nil {
		return nil, err
	}

	var found model.RefactoringCommit
	if err := r.db.WithContext(ctx).Where("commit_hash = ?", hash).First(&found).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrRefactoringCommitNotFound
		}
		return nil, err
	}
	return &found, nil
}

// PurgeRefactorings deletes every refactoring and region of a pending commit.
func (r *repository) PurgeRefactorings(ctx context.Context, commitID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadPending(tx, commitID); err != nil {
			return err
		}
		return purge(tx, commitID)
	})
}

func purge(tx *gorm.DB, commitID int64) error {
	if err := tx.Where("refactoring_commit_id = ?", commitID).Delete(&model.RefactoringRegion{}).Error; err != nil {
		return err
	}
	return tx.Where("refactoring_commit_id = ?", commitID).Delete(&model.Refactoring{}).Error
}

// loadPending loads a commit that is not yet terminal and locks its row until
// the transaction ends. Commits are shared across projects, so a concurrent
// worker may have finalized it since it was read.
func loadPending(tx *gorm.DB, commitID int64) (*model.RefactoringCommit, error) {
	var rc model.RefactoringCommit
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", commitID).First(&rc).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrRefactoringCommitNotFound
		}
		return nil, err
	}
	if rc.Terminal() {
		return nil, model.ErrAlreadyTerminal
	}
	return &rc, nil
}

// SaveResults replaces the commit's refactorings with detected and marks it processed.
func (r *repository) SaveResults(ctx context.Context, commitID int64, detected []model.Detected) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		rc, err := loadPending(tx, commitID)
		if err != nil {
			return err
		}
		if err := purge(tx, commitID); err != nil {
			return err
		}

		for _, d := range detected {
			ref := model.Refactoring{RefactoringCommitID: rc.ID, Type: d.Type, Description: d.Description}
			if err := tx.Create(&ref).Error; err != nil {
				return err
			}

			regions := make([]model.RefactoringRegion, 0, len(d.Source)+len(d.Destinations))
			regions = appendRegions(regions, rc, ref.ID, model.SideSource, d.Source)
			regions = appendRegions(regions, rc, ref.ID, model.SideDestination, d.Destinations)
			if len(regions) == 0 {
				continue
			}
			if err := tx.Create(&regions).Error; err != nil {
				return err
			}
		}

		r.logger.Debugw("refactorings saved", "commit", rc.CommitHash, "count", len(detected))
		return tx.Model(&model.RefactoringCommit{}).
			Where("id = ?", rc.ID).
			Update("is_processed", true).Error
	})
}

func appendRegions(
	dst []model.RefactoringRegion,
	rc *model.RefactoringCommit,
	refactoringID int64,
	side string,
	ranges []model.CodeRange,
) []model.RefactoringRegion {
	for _, cr := range ranges {
		start := cr.StartLine
		if start < 0 {
			start = 0
		}
		dst = append(dst, model.RefactoringRegion{
			RefactoringID:       refactoringID,
			RefactoringCommitID: rc.ID,
			CommitHash:          rc.CommitHash,
			ProjectID:           rc.ProjectID,
			Type:                side,
			Path:                cr.Path,
			StartLine:           start,
			Length:              cr.Length(),
		})
	}
	return dst
}

// MarkTimedOut marks a pending commit timed out and drops partial results.
func (r *repository) MarkTimedOut(ctx context.Context, commitID int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if _, err := loadPending(tx, commitID); err != nil {
			return err
		}
		if err := purge(tx, commitID); err != nil {
			return err
		}
		return tx.Model(&model.RefactoringCommit{}).
			Where("id = ?", commitID).
			Update("is_timed_out", true).Error
	})
}
