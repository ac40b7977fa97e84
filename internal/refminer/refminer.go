// Package refminer runs the RefactoringMiner command line tool against a checkout.
package refminer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/festy23/patch_integrator/internal/refactoring/model"
)

// DefaultBinary is looked up on PATH when no binary is configured.
const DefaultBinary = "RefactoringMiner"

var ErrDetection = errors.New("refactoring detection failed")

type location struct {
	FilePath  string `json:"filePath"`
	StartLine int    `json:"startLine"`
	EndLine   int    `json:"endLine"`
}

type refactoring struct {
	Type               string     `json:"type"`
	Description        string     `json:"description"`
	LeftSideLocations  []location `json:"leftSideLocations"`
	RightSideLocations []location `json:"rightSideLocations"`
}

type commitResult struct {
	SHA1         string        `json:"sha1"`
	Refactorings []refactoring `json:"refactorings"`
}

type report struct {
	Commits []commitResult `json:"commits"`
}

// Detector shells out to RefactoringMiner once per commit.
type Detector struct {
	bin    string
	logger *zap.SugaredLogger
}

func NewDetector(bin string, logger *zap.SugaredLogger) *Detector {
	if bin == "" {
		bin = DefaultBinary
	}
	return &Detector{bin: bin, logger: logger}
}

// Detect runs `RefactoringMiner -c <repoDir> <commit> -json <file>`. The process
// is killed when ctx ends.
func (d *Detector) Detect(ctx context.Context, repoDir, commit string) ([]model.Detected, error) {
	out, err := os.CreateTemp("", "refminer-*.json")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetection, err)
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	absRepo, err := filepath.Abs(repoDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetection, err)
	}

	cmd := exec.CommandContext(ctx, d.bin, "-c", absRepo, commit, "-json", outPath)
	cmd.WaitDelay = 5 * time.Second
	var errb bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &errb

	started := time.Now()
	runErr := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	if runErr != nil {
		return nil, fmt.Errorf("%w: %s: %v - %s", ErrDetection, commit, runErr, strings.TrimSpace(errb.String()))
	}

	f, err := os.Open(outPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDetection, err)
	}
	defer f.Close()

	detected, err := Parse(f, commit)
	if err != nil {
		return nil, err
	}

	d.logger.Debugw("RefactoringMiner finished",
		"commit", commit,
		"refactorings", len(detected),
		"duration", time.Since(started),
	)
	return detected, nil
}

// Parse reads a RefactoringMiner JSON report and returns the refactorings of
// commit. Left side locations are sources, right side ones destinations.
func Parse(r io.Reader, commit string) ([]model.Detected, error) {
	var rep report
	if err := json.NewDecoder(r).Decode(&rep); err != nil {
		if errors.Is(err, io.EOF) {
			return []model.Detected{}, nil
		}
		return nil, fmt.Errorf("%w: invalid report: %v", ErrDetection, err)
	}

	detected := []model.Detected{}
	for _, c := range rep.Commits {
		if c.SHA1 != "" && commit != "" && c.SHA1 != commit {
			continue
		}
		for _, ref := range c.Refactorings {
			detected = append(detected, model.Detected{
				Type:         ref.Type,
				Description:  ref.Description,
				Source:       ranges(ref.LeftSideLocations),
				Destinations: ranges(ref.RightSideLocations),
			})
		}
	}
	return detected, nil
}

func ranges(locs []location) []model.CodeRange {
	out := make([]model.CodeRange, 0, len(locs))
	for _, l := range locs {
		out = append(out, model.CodeRange{Path: l.FilePath, StartLine: l.StartLine, EndLine: l.EndLine})
	}
	return out
}
