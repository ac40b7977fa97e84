package repository

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/festy23/patch_integrator/internal/database/dbtest"
	projectModel "github.com/festy23/patch_integrator/internal/project/model"
	"github.com/festy23/patch_integrator/internal/refactoring/model"
)

func setup(t *testing.T) (*gorm.DB, Repository, int64) {
	t.Helper()
	db := dbtest.Open(t, 1)
	p := projectModel.Project{SourceURL: "s", SourceName: "s", ForkURL: "f", ForkName: "f"}
	require.NoError(t, db.Create(&p).Error)
	return db, New(db, zap.NewNop().Sugar()), p.ID
}

func extractMethod() model.Detected {
	return model.Detected{
		Type:        "Extract Method",
		Description: "Extract Method private helper() extracted from public run() in class A",
		Source:      []model.CodeRange{{Path: "src/A.java", StartLine: 10, EndLine: 20}},
		Destinations: []model.CodeRange{
			{Path: "src/A.java", StartLine: 10, EndLine: 12},
			{Path: "src/A.java", StartLine: 30, EndLine: 38},
		},
	}
}

func countRows(t *testing.T, db *gorm.DB, value interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(value).Count(&n).Error)
	return n
}

func TestRepository_FindOrCreateCommit(t *testing.T) {
	ctx := context.Background()
	_, repo, projectID := setup(t)

	a, err := repo.FindOrCreateCommit(ctx, projectID, "abc123")
	require.NoError(t, err)
	b, err := repo.FindOrCreateCommit(ctx, projectID, "abc123")
	require.NoError(t, err)

	assert.Equal(t, a.ID, b.ID)
	assert.False(t, a.Terminal())

	_, err = repo.FindOrCreateCommit(ctx, projectID, "")
	assert.ErrorIs(t, err, model.ErrInvalidCommitHash)
}

func TestRepository_SaveResults(t *testing.T) {
	ctx := context.Background()
	db, repo, projectID := setup(t)

	rc, err := repo.FindOrCreateCommit(ctx, projectID, "abc123")
	require.NoError(t, err)

	require.NoError(t, repo.SaveResults(ctx, rc.ID, []model.Detected{extractMethod()}))

	var regions []model.RefactoringRegion
	require.NoError(t, db.Order("id").Find(&regions).Error)
	require.Len(t, regions, 3)
	assert.Equal(t, "s", regions[0].Type)
	assert.Equal(t, 10, regions[0].Length)
	assert.Equal(t, "d", regions[1].Type)
	assert.Equal(t, 2, regions[1].Length)
	assert.Equal(t, "abc123", regions[2].CommitHash)
	assert.Equal(t, projectID, regions[2].ProjectID)
	assert.Equal(t, rc.ID, regions[2].RefactoringCommitID)

	reread, err := repo.FindOrCreateCommit(ctx, projectID, "abc123")
	require.NoError(t, err)
	assert.True(t, reread.IsProcessed)
	assert.False(t, reread.IsTimedOut)

	t.Run("processed commit is final", func(t *testing.T) {
		assert.ErrorIs(t, repo.SaveResults(ctx, rc.ID, nil), model.ErrAlreadyTerminal)
		assert.ErrorIs(t, repo.MarkTimedOut(ctx, rc.ID), model.ErrAlreadyTerminal)
		assert.Equal(t, int64(1), countRows(t, db, &model.Refactoring{}))
	})
}

func TestRepository_PurgeRefactorings(t *testing.T) {
	ctx := context.Background()
	db, repo, projectID := setup(t)

	rc, err := repo.FindOrCreateCommit(ctx, projectID, "abc123")
	require.NoError(t, err)

	// Leftovers from an interrupted attempt.
	ref := model.Refactoring{RefactoringCommitID: rc.ID, Type: "Rename Class", Description: "stale"}
	require.NoError(t, db.Create(&ref).Error)
	require.NoError(t, db.Create(&model.RefactoringRegion{
		RefactoringID: ref.ID, RefactoringCommitID: rc.ID, CommitHash: "abc123",
		ProjectID: projectID, Type: "s", Path: "A.java", StartLine: 1, Length: 1,
	}).Error)

	require.NoError(t, repo.PurgeRefactorings(ctx, rc.ID))
	assert.Zero(t, countRows(t, db, &model.Refactoring{}))
	assert.Zero(t, countRows(t, db, &model.RefactoringRegion{}))
}

func TestRepository_MarkTimedOut(t *testing.T) {
	ctx := context.Background()
	db, repo, projectID := setup(t)

	rc, err := repo.FindOrCreateCommit(ctx, projectID, "slow")
	require.NoError(t, err)
	require.NoError(t, db.Create(&model.Refactoring{RefactoringCommitID: rc.ID, Type: "t", Description: "partial"}).Error)

	require.NoError(t, repo.MarkTimedOut(ctx, rc.ID))

	reread, err := repo.FindOrCreateCommit(ctx, projectID, "slow")
	require.NoError(t, err)
	assert.True(t, reread.IsTimedOut)
	assert.False(t, reread.IsProcessed)
	assert.Zero(t, countRows(t, db, &model.Refactoring{}))

	assert.ErrorIs(t, repo.SaveResults(ctx, rc.ID, []model.Detected{extractMethod()}), model.ErrAlreadyTerminal)
	assert.ErrorIs(t, repo.MarkTimedOut(ctx, 999), model.ErrRefactoringCommitNotFound)
}

func TestRepository_SharedCommitFinalizedByOtherProject(t *testing.T) {
	ctx := context.Background()
	db, repo, projectA := setup(t)
	b := projectModel.Project{SourceURL: "s", SourceName: "s", ForkURL: "f2", ForkName: "f2"}
	require.NoError(t, db.Create(&b).Error)

	// Both workers see the shared commit pending before either stores results.
	seenByA, err := repo.FindOrCreateCommit(ctx, projectA, "shared")
	require.NoError(t, err)
	seenByB, err := repo.FindOrCreateCommit(ctx, b.ID, "shared")
	require.NoError(t, err)
	require.Equal(t, seenByA.ID, seenByB.ID)
	require.False(t, seenByB.Terminal())

	require.NoError(t, repo.SaveResults(ctx, seenByA.ID, []model.Detected{extractMethod()}))

	assert.ErrorIs(t, repo.PurgeRefactorings(ctx, seenByB.ID), model.ErrAlreadyTerminal)
	assert.ErrorIs(t, repo.SaveResults(ctx, seenByB.ID, nil), model.ErrAlreadyTerminal)
	assert.ErrorIs(t, repo.MarkTimedOut(ctx, seenByB.ID), model.ErrAlreadyTerminal)

	reread, err := repo.FindOrCreateCommit(ctx, b.ID, "shared")
	require.NoError(t, err)
	assert.True(t, reread.IsProcessed)
	assert.Equal(t, int64(1), countRows(t, db, &model.Refactoring{}))
	assert.Equal(t, int64(3), countRows(t, db, &model.RefactoringRegion{}))
}
