package git

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	gitc "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"go.uber.org/zap"
)

// Workspace clones forks and wires their upstream remote.
type Workspace struct {
	logger *zap.SugaredLogger
}

func NewWorkspace(logger *zap.SugaredLogger) *Workspace {
	return &Workspace{logger: logger}
}

// Provision replaces whatever is in dir with a fresh clone of forkURL that
// also tracks sourceURL under remote.
func (w *Workspace) Provision(ctx context.Context, forkURL, sourceURL, remote, dir string) (*Repository, error) {
	if err := w.Remove(dir); err != nil {
		return nil, err
	}

	repo, err := w.Clone(ctx, forkURL, dir)
	if err != nil {
		return nil, err
	}
	if err := w.AddRemote(ctx, dir, remote, sourceURL); err != nil {
		return nil, err
	}
	if err := w.Fetch(ctx, dir, remote); err != nil {
		return nil, err
	}
	return repo, nil
}

// Clone clones url into dir and checks out its default branch.
func (w *Workspace) Clone(ctx context.Context, url, dir string) (*Repository, error) {
	w.logger.Infow("Cloning repository", "url", url, "dir", dir)

	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrClone, url, err)
	}

	if _, err := gitc.PlainCloneContext(ctx, dir, false, &gitc.CloneOptions{URL: url}); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrClone, url, err)
	}

	return OpenRepository(dir)
}

// AddRemote adds a remote named name. An existing remote with another URL is replaced.
func (w *Workspace) AddRemote(ctx context.Context, dir, name, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	repo, err := gitc.PlainOpen(dir)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRemote, name, err)
	}

	w.logger.Infow("Adding remote", "dir", dir, "remote", name, "url", url)

	if existing, err := repo.Remote(name); err == nil {
		urls := existing.Config().URLs
		if len(urls) == 1 && urls[0] == url {
			return nil
		}
		if err := repo.DeleteRemote(name); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrRemote, name, err)
		}
	}

	if _, err := repo.CreateRemote(&config.RemoteConfig{Name: name, URLs: []string{url}}); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRemote, name, err)
	}
	return nil
}

// Fetch fetches every branch of remote into refs/remotes/<remote>/.
func (w *Workspace) Fetch(ctx context.Context, dir, remote string) error {
	repo, err := gitc.PlainOpen(dir)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrFetch, remote, err)
	}

	w.logger.Infow("Fetching remote", "dir", dir, "remote", remote)

	err = repo.FetchContext(ctx, &gitc.FetchOptions{
		RemoteName: remote,
		RefSpecs: []config.RefSpec{
			config.RefSpec(fmt.Sprintf("+refs/heads/*:refs/remotes/%s/*", remote)),
		},
		Tags: gitc.NoTags,
	})
	if err != nil && !errors.Is(err, gitc.NoErrAlreadyUpToDate) {
		return fmt.Errorf("%w: %s: %v", ErrFetch, remote, err)
	}
	return nil
}

// Remove deletes dir recursively. A missing directory is not an error.
func (w *Workspace) Remove(dir string) error {
	clean := filepath.Clean(dir)
	if dir == "" || clean == "/" || clean == "." {
		return fmt.Errorf("refusing to remove workspace %q", dir)
	}

	if err := os.RemoveAll(clean); err != nil {
		return fmt.Errorf("failed to remove workspace %s: %w", clean, err)
	}
	return nil
}
