// Package service provides business logic layer for statistics module.
package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/festy23/patch_integrator/internal/statistics/model"
	"github.com/festy23/patch_integrator/internal/statistics/repository"
)

// Service defines the interface for statistics business logic operations.
type Service interface {
	// GetProjectsStatistics returns statistics for every project.
	GetProjectsStatistics(ctx context.Context) (*model.ProjectsStatisticsResponse, error)

	// GetRefactoringStatistics returns refactoring detection statistics.
	GetRefactoringStatistics(ctx context.Context) (*model.RefactoringStatisticsResponse, error)

	// GetConflictStatistics returns conflict and region history statistics.
	GetConflictStatistics(ctx context.Context) (*model.ConflictStatisticsResponse, error)
}

type service struct {
	repo   repository.Repository
	logger *zap.SugaredLogger
}

// New creates a new statistics service instance.
func New(repo repository.Repository, logger *zap.SugaredLogger) Service {
	return &service{
		repo:   repo,
		logger: logger,
	}
}

// GetProjectsStatistics returns statistics for every project.
func (s *service) GetProjectsStatistics(ctx context.Context) (*model.ProjectsStatisticsResponse, error) {
	projects, err := s.repo.GetProjectsStatistics(ctx)
	if err != nil {
		s.logger.Errorw("GetProjectsStatistics failed", "error", err)
		return nil, err
	}

	if projects == nil {
		projects = []model.ProjectStatistics{}
	}

	s.logger.Debugw("GetProjectsStatistics completed", "count", len(projects))
	return &model.ProjectsStatisticsResponse{
		Projects: projects,
		Total:    len(projects),
	}, nil
}

// GetRefactoringStatistics returns refactoring detection statistics.
func (s *service) GetRefactoringStatistics(ctx context.Context) (*model.RefactoringStatisticsResponse, error) {
	stats, err := s.repo.GetRefactoringCommitCounts(ctx)
	if err != nil {
		s.logger.Errorw("GetRefactoringCommitCounts failed", "error", err)
		return nil, err
	}

	byType, err := s.repo.GetRefactoringsByType(ctx)
	if err != nil {
		s.logger.Errorw("GetRefactoringsByType failed", "error", err)
		return nil, err
	}

	stats.PendingCommits = stats.TotalCommits - stats.ProcessedCommits - stats.TimedOutCommits
	stats.ByType = byType
	for _, c := range byType {
		stats.TotalRefactorings += c.Count
	}

	s.logger.Debugw("GetRefactoringStatistics completed", "commits", stats.TotalCommits)
	return &model.RefactoringStatisticsResponse{Statistics: *stats}, nil
}

// GetConflictStatistics returns conflict and region history statistics.
func (s *service) GetConflictStatistics(ctx context.Context) (*model.ConflictStatisticsResponse, error) {
	stats, err := s.repo.GetConflictCounts(ctx)
	if err != nil {
		s.logger.Errorw("GetConflictCounts failed", "error", err)
		return nil, err
	}

	stats.FilesByType, err = s.repo.GetConflictingFilesByType(ctx)
	if err != nil {
		s.logger.Errorw("GetConflictingFilesByType failed", "error", err)
		return nil, err
	}

	stats.HistoryByChangeKind, err = s.repo.GetHistoryByChangeKind(ctx)
	if err != nil {
		s.logger.Errorw("GetHistoryByChangeKind failed", "error", err)
		return nil, err
	}

	if stats.ConflictingRegions > 0 {
		stats.AverageHistoryPerRegion = float64(stats.HistoryEvents) / float64(stats.ConflictingRegions)
	}

	s.logger.Debugw("GetConflictStatistics completed", "merge_commits", stats.MergeCommits)
	return &model.ConflictStatisticsResponse{Statistics: *stats}, nil
}
