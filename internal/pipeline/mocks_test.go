package pipeline

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/festy23/patch_integrator/internal/conflict"
	"github.com/festy23/patch_integrator/internal/git"
	"github.com/festy23/patch_integrator/internal/history"
	refactoringModel "github.com/festy23/patch_integrator/internal/refactoring/model"
)

type mockCheckout struct {
	mock.Mock
	dir string
}

func (m *mockCheckout) Dir() string {
	return m.dir
}

func (m *mockCheckout) Head() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func (m *mockCheckout) Commit(rev string) (git.CommitInfo, error) {
	args := m.Called(rev)
	return args.Get(0).(git.CommitInfo), args.Error(1)
}

// Integrate hands the configured *conflict.Result to inspect before
// returning the configured error.
func (m *mockCheckout) Integrate(ctx context.Context, req conflict.Request, inspect func(*conflict.Result) error) error {
	args := m.Called(ctx, req)
	if res, ok := args.Get(0).(*conflict.Result); ok && res != nil {
		if err := inspect(res); err != nil {
			return err
		}
	}
	return args.Error(1)
}

func (m *mockCheckout) Trace(ctx context.Context, req history.Request) ([]history.Change, error) {
	args := m.Called(ctx, req)
	changes, _ := args.Get(0).([]history.Change)
	return changes, args.Error(1)
}

type mockProvisioner struct {
	mock.Mock
}

func (m *mockProvisioner) Provision(ctx context.Context, spec ProjectSpec, dir string) (Checkout, error) {
	args := m.Called(ctx, spec, dir)
	checkout, _ := args.Get(0).(Checkout)
	return checkout, args.Error(1)
}

func (m *mockProvisioner) Release(dir string) error {
	return m.Called(dir).Error(0)
}

type mockResolver struct {
	mock.Mock
}

func (m *mockResolver) MergeCommitSHA(ctx context.Context, repoURL string, number int) (string, error) {
	args := m.Called(ctx, repoURL, number)
	return args.String(0), args.Error(1)
}

type mockDetector struct {
	mock.Mock
}

func (m *mockDetector) Detect(ctx context.Context, repoDir, commit string) ([]refactoringModel.Detected, error) {
	args := m.Called(ctx, repoDir, commit)
	detected, _ := args.Get(0).([]refactoringModel.Detected)
	return detected, args.Error(1)
}
