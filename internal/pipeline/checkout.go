package pipeline

import (
	"context"

	"go.uber.org/zap"

	"github.com/festy23/patch_integrator/internal/conflict"
	"github.com/festy23/patch_integrator/internal/git"
	"github.com/festy23/patch_integrator/internal/history"
	refactoringModel "github.com/festy23/patch_integrator/internal/refactoring/model"
)

// Checkout is a provisioned fork workspace. Calls must not overlap.
type Checkout interface {
	Dir() string
	Head() (string, error)
	Commit(rev string) (git.CommitInfo, error)
	Integrate(ctx context.Context, req conflict.Request, inspect func(*conflict.Result) error) error
	Trace(ctx context.Context, req history.Request) ([]history.Change, error)
}

// Provisioner creates and removes fork workspaces.
type Provisioner interface {
	Provision(ctx context.Context, spec ProjectSpec, dir string) (Checkout, error)
	Release(dir string) error
}

// MergeResolver maps an upstream pull request to its merge commit.
type MergeResolver interface {
	MergeCommitSHA(ctx context.Context, repoURL string, number int) (string, error)
}

// RefactoringDetector reports the refactorings of one commit.
type RefactoringDetector interface {
	Detect(ctx context.Context, repoDir, commit string) ([]refactoringModel.Detected, error)
}

type gitCheckout struct {
	*git.Repository
	detector *conflict.Detector
	tracer   *history.Tracer
}

func (c *gitCheckout) Dir() string {
	return c.Root()
}

func (c *gitCheckout) Integrate(ctx context.Context, req conflict.Request, inspect func(*conflict.Result) error) error {
	return c.detector.Integrate(ctx, req, inspect)
}

func (c *gitCheckout) Trace(ctx context.Context, req history.Request) ([]history.Change, error) {
	return c.tracer.Trace(ctx, req)
}

// GitProvisioner clones forks with go-git and analyses them with native git.
type GitProvisioner struct {
	workspace *git.Workspace
	maxSteps  int
	logger    *zap.SugaredLogger
}

func NewGitProvisioner(workspace *git.Workspace, maxSteps int, logger *zap.SugaredLogger) *GitProvisioner {
	return &GitProvisioner{workspace: workspace, maxSteps: maxSteps, logger: logger}
}

// Provision clones the fork into dir and fetches the source under a remote
// named after the source project.
func (p *GitProvisioner) Provision(ctx context.Context, spec ProjectSpec, dir string) (Checkout, error) {
	repo, err := p.workspace.Provision(ctx, spec.ForkURL, git.CloneURL(spec.SourceURL), git.RemoteName(spec.SourceURL), dir)
	if err != nil {
		return nil, err
	}

	return &gitCheckout{
		Repository: repo,
		detector:   conflict.NewDetector(repo.Root(), p.logger),
		tracer:     history.NewTracer(repo.Root(), repo, p.maxSteps, p.logger),
	}, nil
}

func (p *GitProvisioner) Release(dir string) error {
	return p.workspace.Remove(dir)
}
