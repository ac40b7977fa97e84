// Package gittest builds throw-away repositories with the native git binary.
package gittest

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/festy23/patch_integrator/internal/git"
)

const (
	AuthorName  = "Ada Tester"
	AuthorEmail = "ada@example.com"
)

// Repo is a scratch repository rooted at Dir.
type Repo struct {
	t   testing.TB
	Dir string
}

// RequireGit skips the test when no git binary is available.
func RequireGit(t testing.TB) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
}

// Init creates an empty repository on branch main.
func Init(t testing.TB) *Repo {
	t.Helper()
	RequireGit(t)

	r := &Repo{t: t, Dir: t.TempDir()}
	r.Git("init", "-q", "-b", "main")
	r.Git("config", "user.name", AuthorName)
	r.Git("config", "user.email", AuthorEmail)
	r.Git("config", "commit.gpgsign", "false")
	return r
}

// Git runs a git command in the repository and fails the test on error.
func (r *Repo) Git(args ...string) string {
	r.t.Helper()
	out, err := git.RunGitCommand(context.Background(), r.Dir, args...)
	require.NoError(r.t, err)
	return strings.TrimSpace(out)
}

// Write writes content to path, creating parent directories.
func (r *Repo) Write(path, content string) {
	r.t.Helper()
	full := filepath.Join(r.Dir, path)
	require.NoError(r.t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(r.t, os.WriteFile(full, []byte(content), 0o644))
}

// Read returns the working tree content of path.
func (r *Repo) Read(path string) string {
	r.t.Helper()
	b, err := os.ReadFile(filepath.Join(r.Dir, path))
	require.NoError(r.t, err)
	return string(b)
}

// Commit stages everything and commits it, returning the new hash.
func (r *Repo) Commit(msg string) string {
	r.t.Helper()
	r.Git("add", "-A")
	r.Git("commit", "-q", "--allow-empty", "-m", msg)
	return r.Git("rev-parse", "HEAD")
}

// Checkout switches to an existing branch.
func (r *Repo) Checkout(branch string) {
	r.t.Helper()
	r.Git("checkout", "-q", branch)
}

// Branch creates branch at start (HEAD when empty) and switches to it.
func (r *Repo) Branch(branch, start string) {
	r.t.Helper()
	if start == "" {
		start = "HEAD"
	}
	r.Git("checkout", "-q", "-b", branch, start)
}

// Lines joins lines with a trailing newline.
func Lines(lines ...string) string {
	return strings.Join(lines, "\n") + "\n"
}
