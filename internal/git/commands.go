package git

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"time"
)

// waitDelay bounds how long a cancelled git process may keep its pipes open.
const waitDelay = 5 * time.Second

// RunGitCommand executes a native git command in dir and returns its stdout.
// Stdout and stderr are captured separately; stderr is folded into the error on failure.
func RunGitCommand(ctx context.Context, dir string, args ...string) (string, error) {
	res, err := RunGitCommandStatus(ctx, dir, args...)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", fmt.Errorf("failed to run git %s: exit status %d - %s", args[0], res.ExitCode, res.Stderr)
	}

	return res.Stdout, nil
}

// CommandResult is the outcome of a git invocation that ran to completion.
type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// RunGitCommandStatus executes a native git command where a non-zero exit code is a
// result rather than a failure (cherry-pick and merge report conflicts that way).
// An error is returned only when git could not be started or ctx ended first.
func RunGitCommandStatus(ctx context.Context, dir string, args ...string) (CommandResult, error) {
	if len(args) == 0 {
		return CommandResult{}, errors.New("git: no arguments")
	}

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0", "LC_ALL=C")
	cmd.WaitDelay = waitDelay

	var outb, errb bytes.Buffer
	cmd.Stdout = &outb
	cmd.Stderr = &errb

	err := cmd.Run()
	res := CommandResult{Stdout: outb.String(), Stderr: errb.String()}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return res, fmt.Errorf("git %s interrupted: %w", args[0], ctxErr)
	}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
		return res, nil
	case errors.As(err, &exitErr):
		res.ExitCode = exitErr.ExitCode()
		return res, nil
	default:
		return res, fmt.Errorf("failed to run git %s: %w - %s", args[0], err, res.Stderr)
	}
}
