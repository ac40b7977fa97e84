package git

import (
	"context"
	"errors"
	"fmt"

	gitc "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// CommitInfo is the identity of a commit as recorded alongside mined rows.
type CommitInfo struct {
	Hash        string
	AuthorName  string
	AuthorEmail string
	// Time is the committer time in unix seconds.
	Time    int64
	Parents []string
}

// IsMerge reports whether the commit has more than one parent.
func (c CommitInfo) IsMerge() bool {
	return len(c.Parents) > 1
}

type Repository struct {
	repo *gitc.Repository
	root string
}

// OpenRepository opens the repository whose working tree contains dir.
func OpenRepository(dir string) (*Repository, error) {
	repo, err := gitc.PlainOpenWithOptions(dir, &gitc.PlainOpenOptions{
		DetectDotGit: true,
	})
	if errors.Is(err, gitc.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("%w: %s", ErrNotRepository, dir)
	} else if err != nil {
		return nil, fmt.Errorf("git: %w", err)
	}

	root := dir
	if wt, err := repo.Worktree(); err == nil {
		root = wt.Filesystem.Root()
	}

	return &Repository{repo: repo, root: root}, nil
}

// Root is the working tree directory.
func (r *Repository) Root() string {
	return r.root
}

// RunGitCommandInRepo executes a native git command in the repository's root directory.
func (r *Repository) RunGitCommandInRepo(ctx context.Context, args ...string) (string, error) {
	return RunGitCommand(ctx, r.root, args...)
}

// Head returns the hash HEAD points at.
func (r *Repository) Head() (string, error) {
	ref, err := r.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	return ref.Hash().String(), nil
}

// Commit resolves rev and returns its identity.
func (r *Repository) Commit(rev string) (CommitInfo, error) {
	c, err := r.commit(rev)
	if err != nil {
		return CommitInfo{}, err
	}

	parents := make([]string, 0, len(c.ParentHashes))
	for _, p := range c.ParentHashes {
		parents = append(parents, p.String())
	}

	return CommitInfo{
		Hash:        c.Hash.String(),
		AuthorName:  c.Author.Name,
		AuthorEmail: c.Author.Email,
		Time:        c.Committer.When.Unix(),
		Parents:     parents,
	}, nil
}

// LineCount returns the number of lines of path at rev.
// The boolean is false when the file does not exist there.
func (r *Repository) LineCount(rev, path string) (int, bool, error) {
	c, err := r.commit(rev)
	if err != nil {
		return 0, false, err
	}

	f, err := c.File(path)
	if errors.Is(err, object.ErrFileNotFound) {
		return 0, false, nil
	} else if err != nil {
		return 0, false, fmt.Errorf("failed to read %s at %s: %w", path, rev, err)
	}

	lines, err := f.Lines()
	if err != nil {
		return 0, false, fmt.Errorf("failed to read %s at %s: %w", path, rev, err)
	}
	return len(lines), true, nil
}

// IsAncestor reports whether a is an ancestor of b. A commit is its own ancestor.
func (r *Repository) IsAncestor(a, b string) (bool, error) {
	ca, err := r.commit(a)
	if err != nil {
		return false, err
	}
	cb, err := r.commit(b)
	if err != nil {
		return false, err
	}
	return ca.IsAncestor(cb)
}

// MergeBase returns the best common ancestors of a and b.
func (r *Repository) MergeBase(a, b string) ([]string, error) {
	ca, err := r.commit(a)
	if err != nil {
		return nil, err
	}
	cb, err := r.commit(b)
	if err != nil {
		return nil, err
	}

	bases, err := ca.MergeBase(cb)
	if err != nil {
		return nil, fmt.Errorf("failed to compute merge base of %s and %s: %w", a, b, err)
	}

	hashes := make([]string, 0, len(bases))
	for _, c := range bases {
		hashes = append(hashes, c.Hash.String())
	}
	return hashes, nil
}

func (r *Repository) commit(rev string) (*object.Commit, error) {
	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnknownCommit, rev, err)
	}

	c, err := r.repo.CommitObject(*hash)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnknownCommit, rev, err)
	}
	return c, nil
}
