// Package store groups the repositories one project worker writes through.
package store

import (
	"context"

	"go.uber.org/zap"
	"gorm.io/gorm"

	mergecommitRepository "github.com/festy23/patch_integrator/internal/mergecommit/repository"
	projectRepository "github.com/festy23/patch_integrator/internal/project/repository"
	refactoringRepository "github.com/festy23/patch_integrator/internal/refactoring/repository"
)

// Store bundles the repositories bound to one database handle.
type Store struct {
	Projects     projectRepository.Repository
	MergeCommits mergecommitRepository.Repository
	Refactorings refactoringRepository.Repository
}

// New binds every repository to db.
func New(db *gorm.DB, logger *zap.SugaredLogger) *Store {
	return &Store{
		Projects:     projectRepository.New(db, logger),
		MergeCommits: mergecommitRepository.New(db, logger),
		Refactorings: refactoringRepository.New(db, logger),
	}
}

// Provider hands a worker a Store for the duration of fn.
type Provider interface {
	WithStore(ctx context.Context, fn func(*Store) error) error
}

type gormProvider struct {
	db     *gorm.DB
	logger *zap.SugaredLogger
}

// NewProvider returns a Provider that pins one pooled connection per call,
// so a worker never shares its connection with another worker.
func NewProvider(db *gorm.DB, logger *zap.SugaredLogger) Provider {
	return &gormProvider{db: db, logger: logger}
}

// WithStore runs fn with a Store bound to a dedicated connection.
func (p *gormProvider) WithStore(ctx context.Context, fn func(*Store) error) error {
	return p.db.WithContext(ctx).Connection(func(conn *gorm.DB) error {
		return fn(New(conn, p.logger))
	})
}
