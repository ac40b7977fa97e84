// Package repository provides data access layer for the project module.
package repository

import (
	"context"
	"errors"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/festy23/patch_integrator/internal/project/model"
)

// Repository defines the interface for project and patch data access operations.
type Repository interface {
	// FindOrCreate returns the project with p.ForkURL, inserting p when absent.
	// The boolean reports whether a row was inserted.
	FindOrCreate(ctx context.Context, p model.Project) (*model.Project, bool, error)

	// GetByForkURL finds a project by its fork URL.
	GetByForkURL(ctx context.Context, forkURL string) (*model.Project, error)

	// MarkDone flags a project as fully analysed.
	MarkDone(ctx context.Context, id int64) error

	// List returns all projects ordered by id.
	List(ctx context.Context) ([]model.Project, error)

	// FindOrCreatePatch returns the patch (projectID, number), inserting it when absent.
	FindOrCreatePatch(ctx context.Context, projectID int64, number int) (*model.Patch, error)

	// MarkPatchDone records the conflict verdict and flags the patch done.
	// A patch that is already done is left untouched.
	MarkPatchDone(ctx context.Context, id int64, isConflicting bool) error
}

type repository struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// New creates a new project repository instance.
func New(db *gorm.DB, logger *zap.SugaredLogger) Repository {
	return &repository{db: db, logger: logger}
}

// FindOrCreate returns the project with p.ForkURL, inserting p when absent.
func (r *repository) FindOrCreate(ctx context.Context, p model.Project) (*model.Project, bool, error) {
	if p.ForkURL == "" {
		return nil, false, model.ErrInvalidForkURL
	}

	p.ID = 0
	p.IsDone = false
	result := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "fork_url"}}, DoNothing: true}).
		Create(&p)
	if result.Error != nil {
		return nil, false, result.Error
	}

	found, err := r.GetByForkURL(ctx, p.ForkURL)
	if err != nil {
		return nil, false, err
	}

	created := result.RowsAffected > 0
	if created {
		r.logger.Debugw("project created", "project_id", found.ID, "fork_url", found.ForkURL)
	}
	return found, created, nil
}

// GetByForkURL finds a project by its fork URL.
func (r *repository) GetByForkURL(ctx context.Context, forkURL string) (*model.Project, error) {
	var p model.Project
	err := r.db.WithContext(ctx).Where("fork_url = ?", forkURL).First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrProjectNotFound
		}
		return nil, err
	}
	return &p, nil
}

// MarkDone flags a project as fully analysed.
func (r *repository) MarkDone(ctx context.Context, id int64) error {
	result := r.db.WithContext(ctx).
		Model(&model.Project{}).
		Where("id = ?", id).
		Update("is_done", true)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return model.ErrProjectNotFound
	}
	return nil
}

// List returns all projects ordered by id.
func (r *repository) List(ctx context.Context) ([]model.Project, error) {
	projects := []model.Project{}
	if err := r.db.WithContext(ctx).Order("id ASC").Find(&projects).Error; err != nil {
		return nil, err
	}
	return projects, nil
}

// FindOrCreatePatch returns the patch (projectID, number), inserting it when absent.
func (r *repository) FindOrCreatePatch(ctx context.Context, projectID int64, number int) (*model.Patch, error) {
	if number <= 0 {
		return nil, model.ErrInvalidPatchNumber
	}

	patch := model.Patch{ProjectID: projectID, Number: number}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "project_id"}, {Name: "number"}},
			DoNothing: true,
		}).
		Create(&patch).Error
	if err != nil {
		if errors.Is(err, gorm.ErrForeignKeyViolated) {
			return nil, model.ErrProjectNotFound
		}
		return nil, err
	}

	var found model.Patch
	err = r.db.WithContext(ctx).
		Where("project_id = ? AND number = ?", projectID, number).
		First(&found).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, model.ErrPatchNotFound
		}
		return nil, err
	}
	return &found, nil
}

// MarkPatchDone records the conflict verdict and flags the patch done.
func (r *repository) MarkPatchDone(ctx context.Context, id int64, isConflicting bool) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var patch model.Patch
		if err := tx.Where("id = ?", id).First(&patch).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return model.ErrPatchNotFound
			}
			return err
		}
		if patch.IsDone {
			return nil
		}
		return tx.Model(&model.Patch{}).
			Where("id = ?", id).
			Updates(map[string]interface{}{"is_conflicting": isConflicting, "is_done": true}).
			Error
	})
}
