// Package conflict attempts integrations on a checkout and reads back the conflicts they leave.
package conflict

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/festy23/patch_integrator/internal/git"
)

// Strategy selects how Theirs is applied on top of Ours.
type Strategy int

const (
	StrategyCherryPick Strategy = iota
	StrategyMerge
)

func (s Strategy) String() string {
	if s == StrategyMerge {
		return "merge"
	}
	return "cherry-pick"
}

// Request names the commits to integrate: Theirs is applied on top of Ours.
type Request struct {
	Ours     string
	Theirs   string
	Strategy Strategy
}

// File is one conflicting path as left in the working tree.
type File struct {
	Path string
	Kind Kind
}

// Result is the outcome of one integration attempt in the workspace at Root.
type Result struct {
	Root        string
	Ours        string
	Theirs      string
	Conflicting bool
	Files       []File
}

var conflictLine = regexp.MustCompile(`^CONFLICT \(([^)]+)\): (.*)$`)

// gitOptions keep marker layout and path output stable regardless of user config.
var gitOptions = []string{
	"-c", "merge.conflictStyle=merge",
	"-c", "core.quotePath=false",
	"-c", "user.name=patchintegrator",
	"-c", "user.email=patchintegrator@localhost",
}

// Detector runs integration attempts in one working tree. It is not safe for concurrent use.
type Detector struct {
	root   string
	logger *zap.SugaredLogger
}

func NewDetector(root string, logger *zap.SugaredLogger) *Detector {
	return &Detector{root: root, logger: logger}
}

// Integrate checks out req.Ours, applies req.Theirs without committing and
// calls inspect while the tree still carries the conflict markers. The checkout
// is reset to req.Ours before returning, whatever happened.
func (d *Detector) Integrate(ctx context.Context, req Request, inspect func(*Result) error) (err error) {
	if err := d.reset(ctx, req.Ours); err != nil {
		return fmt.Errorf("%w: %w", ErrIntegration, err)
	}
	defer func() {
		if rerr := d.reset(context.WithoutCancel(ctx), req.Ours); rerr != nil && err == nil {
			err = fmt.Errorf("%w: %w", ErrIntegration, rerr)
		}
	}()

	args, err := d.integrationArgs(ctx, req)
	if err != nil {
		return err
	}

	d.logger.Debugw("Attempting integration",
		"strategy", req.Strategy.String(),
		"ours", req.Ours,
		"theirs", req.Theirs,
	)

	out, err := git.RunGitCommandStatus(ctx, d.root, args...)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrIntegration, err)
	}

	result, err := d.classify(ctx, req, out)
	if err != nil {
		return err
	}

	if inspect == nil {
		return nil
	}
	return inspect(result)
}

func (d *Detector) integrationArgs(ctx context.Context, req Request) ([]string, error) {
	args := append([]string{}, gitOptions...)
	if req.Strategy == StrategyMerge {
		return append(args, "merge", "--no-commit", "--no-ff", req.Theirs), nil
	}

	out, err := git.RunGitCommand(ctx, d.root, "rev-list", "--parents", "-n", "1", req.Theirs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIntegration, err)
	}

	args = append(args, "cherry-pick", "--no-commit")
	if len(strings.Fields(out)) > 2 {
		args = append(args, "-m", "1")
	}
	return append(args, req.Theirs), nil
}

func (d *Detector) classify(ctx context.Context, req Request, out git.CommandResult) (*Result, error) {
	args := append(append([]string{}, gitOptions...), "status", "--porcelain=v1", "-z")
	status, err := git.RunGitCommand(ctx, d.root, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIntegration, err)
	}

	unmerged := unmergedPaths(status)
	messages := conflictMessages(out.Stdout + "\n" + out.Stderr)

	if out.ExitCode != 0 && len(unmerged) == 0 && len(messages) == 0 {
		return nil, fmt.Errorf("%w: %s exited %d: %s",
			ErrIntegration, req.Strategy, out.ExitCode, strings.TrimSpace(out.Stderr))
	}

	files := make([]File, 0, len(unmerged))
	for path, xy := range unmerged {
		files = append(files, File{Path: path, Kind: kindFor(path, xy, messages)})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].Path < files[j].Path })

	return &Result{
		Root:        d.root,
		Ours:        req.Ours,
		Theirs:      req.Theirs,
		Conflicting: len(files) > 0 || len(messages) > 0,
		Files:       files,
	}, nil
}

// reset brings the checkout back to a clean detached rev.
func (d *Detector) reset(ctx context.Context, rev string) error {
	for _, args := range [][]string{{"cherry-pick", "--quit"}, {"merge", "--quit"}} {
		if _, err := git.RunGitCommandStatus(ctx, d.root, args...); err != nil {
			return err
		}
	}

	steps := [][]string{
		{"reset", "--hard", "-q"},
		{"checkout", "-q", "--force", "--detach", rev},
		{"clean", "-ffdq"},
	}
	for _, args := range steps {
		if _, err := git.RunGitCommand(ctx, d.root, args...); err != nil {
			return err
		}
	}
	return nil
}

type message struct {
	kind Kind
	text string
}

func conflictMessages(output string) []message {
	var messages []message
	for _, line := range strings.Split(output, "\n") {
		m := conflictLine.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		messages = append(messages, message{kind: kindFromLabel(m[1]), text: m[2]})
	}
	return messages
}

// kindFor prefers the message naming path as the merge target, then any message
// mentioning it, then the index status.
func kindFor(path, xy string, messages []message) Kind {
	for _, m := range messages {
		if strings.HasSuffix(m.text, "Merge conflict in "+path) {
			return m.kind
		}
	}
	for _, m := range messages {
		if strings.Contains(m.text, path) {
			return m.kind
		}
	}
	return kindFromStatus(xy)
}

// unmergedPaths parses `git status --porcelain=v1 -z` output.
func unmergedPaths(status string) map[string]string {
	paths := make(map[string]string)
	entries := strings.Split(status, "\x00")
	for i := 0; i < len(entries); i++ {
		entry := entries[i]
		if len(entry) < 4 {
			continue
		}
		xy, path := entry[:2], entry[3:]
		if xy[0] == 'R' || xy[0] == 'C' {
			i++
		}
		if isUnmerged(xy) {
			paths[path] = xy
		}
	}
	return paths
}
