package history

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/festy23/patch_integrator/internal/git"
	"github.com/festy23/patch_integrator/internal/git/gittest"
)

type divergence struct {
	repo    *git.Repository
	root    string
	base    string
	rename  string
	patch   string
	forkTip string
}

func tenLines(line3 string) string {
	lines := make([]string, 10)
	for i := range lines {
		lines[i] = fmt.Sprintf("line%d", i+1)
	}
	if line3 != "" {
		lines[2] = line3
	}
	return gittest.Lines(lines...)
}

// newDivergence builds a base commit, an upstream side that renames A to C and
// then edits line 3, and a fork side that renames A to B while editing line 3.
func newDivergence(t *testing.T) divergence {
	r := gittest.Init(t)
	r.Write("src/A.java", tenLines(""))
	base := r.Commit("base")

	r.Branch("upstream", "")
	r.Git("mv", "src/A.java", "src/C.java")
	r.Write("src/C.java", tenLines("upstream rename edit"))
	rename := r.Commit("upstream rename")
	r.Write("src/C.java", tenLines("upstream patch edit"))
	patch := r.Commit("upstream patch")

	r.Checkout("main")
	r.Git("mv", "src/A.java", "src/B.java")
	r.Write("src/B.java", tenLines("fork rename edit"))
	forkTip := r.Commit("fork rename")

	repo, err := git.OpenRepository(r.Dir)
	require.NoError(t, err)

	return divergence{repo: repo, root: r.Dir, base: base, rename: rename, patch: patch, forkTip: forkTip}
}

func TestTracer_BothSides(t *testing.T) {
	d := newDivergence(t)
	tracer := NewTracer(d.root, d.repo, 0, zap.NewNop().Sugar())
	ctx := context.Background()

	t.Run("fork side stops at the divergence point", func(t *testing.T) {
		changes, err := tracer.Trace(ctx, Request{
			Start: d.forkTip, Exclude: d.patch, Path: "src/B.java", Range: LineRange{Start: 3, Length: 1},
		})
		require.NoError(t, err)
		require.Len(t, changes, 1)

		c := changes[0]
		assert.Equal(t, d.forkTip, c.CommitHash)
		assert.Equal(t, KindRename, c.Kind)
		assert.Equal(t, Range{Start: 3, Length: 1, Path: "src/A.java"}, c.Old)
		assert.Equal(t, Range{Start: 3, Length: 1, Path: "src/B.java"}, c.New)
		require.NotNil(t, c.AuthorName)
		assert.Equal(t, gittest.AuthorName, *c.AuthorName)
		assert.Equal(t, gittest.AuthorEmail, *c.AuthorEmail)
		assert.Positive(t, c.Timestamp)
	})

	t.Run("upstream side walks edit then rename", func(t *testing.T) {
		changes, err := tracer.Trace(ctx, Request{
			Start: d.patch, Exclude: d.forkTip, Path: "src/C.java", Range: LineRange{Start: 3, Length: 1},
		})
		require.NoError(t, err)
		require.Len(t, changes, 2)

		assert.Equal(t, d.patch, changes[0].CommitHash)
		assert.Equal(t, KindEdit, changes[0].Kind)
		assert.Equal(t, d.rename, changes[1].CommitHash)
		assert.Equal(t, KindRename, changes[1].Kind)
		assert.Equal(t, "src/A.java", changes[1].Old.Path)

		for _, c := range changes {
			inSide, err := d.repo.IsAncestor(c.CommitHash, d.patch)
			require.NoError(t, err)
			assert.True(t, inSide)
			shared, err := d.repo.IsAncestor(c.CommitHash, d.forkTip)
			require.NoError(t, err)
			assert.False(t, shared)
		}
	})

	t.Run("without exclusion the walk reaches the root", func(t *testing.T) {
		changes, err := tracer.Trace(ctx, Request{
			Start: d.forkTip, Path: "src/B.java", Range: LineRange{Start: 3, Length: 1},
		})
		require.NoError(t, err)
		require.Len(t, changes, 2)
		assert.Equal(t, d.base, changes[1].CommitHash)
		assert.Equal(t, KindAdd, changes[1].Kind)
	})

	t.Run("max steps caps the walk", func(t *testing.T) {
		capped := NewTracer(d.root, d.repo, 1, zap.NewNop().Sugar())
		changes, err := capped.Trace(ctx, Request{
			Start: d.patch, Exclude: d.forkTip, Path: "src/C.java", Range: LineRange{Start: 3, Length: 1},
		})
		require.NoError(t, err)
		assert.Len(t, changes, 1)
	})
}

func TestTracer_RangeClamping(t *testing.T) {
	d := newDivergence(t)
	tracer := NewTracer(d.root, d.repo, 0, zap.NewNop().Sugar())
	ctx := context.Background()

	trace := func(path string, start, length int) []Change {
		t.Helper()
		changes, err := tracer.Trace(ctx, Request{
			Start: d.forkTip, Exclude: d.patch, Path: path, Range: LineRange{Start: start, Length: length},
		})
		require.NoError(t, err)
		return changes
	}

	assert.Empty(t, trace("src/B.java", 3, 0))
	assert.Empty(t, trace("src/B.java", 0, 2))
	assert.Empty(t, trace("src/B.java", 11, 1))
	assert.Empty(t, trace("src/Missing.java", 1, 1))
	assert.Len(t, trace("src/B.java", 3, 50), 1)

	_, err := tracer.Trace(ctx, Request{
		Start: "0123456789012345678901234567890123456789", Path: "src/B.java", Range: LineRange{Start: 1, Length: 1},
	})
	assert.ErrorIs(t, err, git.ErrUnknownCommit)
}

type unresolvable struct {
	*git.Repository
}

func (u unresolvable) Commit(string) (git.CommitInfo, error) {
	return git.CommitInfo{}, errors.New("object not found")
}

func TestTracer_UnresolvableCommitKeepsTheChange(t *testing.T) {
	d := newDivergence(t)
	tracer := NewTracer(d.root, unresolvable{d.repo}, 0, zap.NewNop().Sugar())

	changes, err := tracer.Trace(context.Background(), Request{
		Start: d.forkTip, Exclude: d.patch, Path: "src/B.java", Range: LineRange{Start: 3, Length: 1},
	})
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Nil(t, changes[0].AuthorName)
	assert.Nil(t, changes[0].AuthorEmail)
	assert.Zero(t, changes[0].Timestamp)
}
