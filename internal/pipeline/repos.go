package pipeline

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/samber/lo"
)

var ErrInvalidReposLine = errors.New("invalid repository list line")

// ProjectSpec is one line of the repository list: an upstream, its fork and
// the upstream pull requests the fork never integrated.
type ProjectSpec struct {
	SourceURL string
	ForkURL   string
	Patches   []int
}

// ReadReposFile opens path and parses it with ParseReposFile.
func ReadReposFile(path string) ([]ProjectSpec, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open repository list: %w", err)
	}
	defer f.Close()
	return ParseReposFile(f)
}

// ParseReposFile reads `sourceURL,forkURL,patch1,...,patchK` lines.
// Blank lines and lines starting with # are ignored; duplicate patches are dropped.
func ParseReposFile(r io.Reader) ([]ProjectSpec, error) {
	var specs []ProjectSpec
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, ",")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}
		if len(fields) < 2 || fields[0] == "" || fields[1] == "" {
			return nil, fmt.Errorf("%w %d: need source and fork URLs", ErrInvalidReposLine, lineNo)
		}

		spec := ProjectSpec{SourceURL: fields[0], ForkURL: fields[1], Patches: []int{}}
		for _, field := range fields[2:] {
			if field == "" {
				continue
			}
			n, err := strconv.Atoi(field)
			if err != nil || n <= 0 {
				return nil, fmt.Errorf("%w %d: patch %q is not a positive number", ErrInvalidReposLine, lineNo, field)
			}
			spec.Patches = append(spec.Patches, n)
		}
		spec.Patches = lo.Uniq(spec.Patches)
		specs = append(specs, spec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read repository list: %w", err)
	}

	return specs, nil
}
