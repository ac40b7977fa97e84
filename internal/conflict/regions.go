package conflict

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Region pairs the line ranges of one conflict hunk. Starts are 1-indexed;
// an empty side has length 0 and starts at the line that follows it.
type Region struct {
	Start1  int
	Length1 int
	Start2  int
	Length2 int
}

// RegionSet is every hunk of one file along with the path each side had.
type RegionSet struct {
	Path1   string
	Path2   string
	Regions []Region
}

const markerSize = 7

type parseState int

const (
	stateCommon parseState = iota
	stateOurs
	stateBase
	stateTheirs
)

// ExtractRegions parses the conflict markers git left in root/path and places
// every region in its own side's file: side 1 in the checked out version and
// side 2 in the version being applied. Lines merged cleanly from the other side
// do not shift a side's coordinates. Without an index stage for a side, that
// side keeps working tree coordinates.
func ExtractRegions(ctx context.Context, root, path string) (RegionSet, error) {
	f, err := os.Open(filepath.Join(root, filepath.FromSlash(path)))
	if err != nil {
		return RegionSet{}, fmt.Errorf("failed to open conflicting file %s: %w", path, err)
	}
	defer f.Close()

	set, views, err := parseMarkers(f, path)
	if err != nil {
		return RegionSet{}, fmt.Errorf("%s: %w", path, err)
	}
	if len(set.Regions) == 0 {
		return set, nil
	}

	ours, ok, err := stageLines(ctx, root, stageOurs, path)
	if err != nil {
		return RegionSet{}, err
	}
	if ok {
		m := sideLineMap(views.ours, ours)
		for i := range set.Regions {
			set.Regions[i].Start1 = m[set.Regions[i].Start1-1] + 1
		}
	}

	theirs, ok, err := stageLines(ctx, root, stageTheirs, path)
	if err != nil {
		return RegionSet{}, err
	}
	if ok {
		m := sideLineMap(views.theirs, theirs)
		for i := range set.Regions {
			set.Regions[i].Start2 = m[set.Regions[i].Start2-1] + 1
		}
	}
	return set, nil
}

// ParseRegions reads two-way or diff3 conflict markers. Side paths are taken
// from the marker labels when they carry one and default to defaultPath.
// Starts count the lines a side would have if every conflict in the file
// were resolved in its favour.
func ParseRegions(r io.Reader, defaultPath string) (RegionSet, error) {
	set, _, err := parseMarkers(r, defaultPath)
	return set, err
}

// sideViews holds the file resolved entirely to one side, per side.
type sideViews struct {
	ours   []string
	theirs []string
}

func parseMarkers(r io.Reader, defaultPath string) (RegionSet, sideViews, error) {
	set := RegionSet{Regions: []Region{}}
	var views sideViews
	br := bufio.NewReader(r)

	var (
		state   = stateCommon
		current Region
		lineNo  int
	)

	for {
		raw, err := br.ReadString('\n')
		if raw == "" && errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return RegionSet{}, sideViews{}, fmt.Errorf("failed to read conflicting file: %w", err)
		}
		lineNo++
		line := strings.TrimRight(raw, "\r\n")

		switch state {
		case stateCommon:
			if label, ok := marker(line, '<'); ok {
				current = Region{Start1: len(views.ours) + 1}
				if set.Path1 == "" {
					set.Path1 = labelPath(label)
				}
				state = stateOurs
				continue
			}
			views.ours = append(views.ours, line)
			views.theirs = append(views.theirs, line)

		case stateOurs:
			if _, ok := marker(line, '|'); ok {
				state = stateBase
				continue
			}
			if _, ok := marker(line, '='); ok {
				current.Start2 = len(views.theirs) + 1
				state = stateTheirs
				continue
			}
			if isAnyMarker(line) {
				return RegionSet{}, sideViews{}, fmt.Errorf("%w: unexpected marker at line %d", ErrMalformedMarkers, lineNo)
			}
			views.ours = append(views.ours, line)
			current.Length1++

		case stateBase:
			if _, ok := marker(line, '='); ok {
				current.Start2 = len(views.theirs) + 1
				state = stateTheirs
				continue
			}
			if isAnyMarker(line) {
				return RegionSet{}, sideViews{}, fmt.Errorf("%w: unexpected marker at line %d", ErrMalformedMarkers, lineNo)
			}

		case stateTheirs:
			if label, ok := marker(line, '>'); ok {
				if set.Path2 == "" {
					set.Path2 = labelPath(label)
				}
				set.Regions = append(set.Regions, current)
				state = stateCommon
				continue
			}
			if isAnyMarker(line) {
				return RegionSet{}, sideViews{}, fmt.Errorf("%w: unexpected marker at line %d", ErrMalformedMarkers, lineNo)
			}
			views.theirs = append(views.theirs, line)
			current.Length2++
		}
	}

	if state != stateCommon {
		return RegionSet{}, sideViews{}, fmt.Errorf("%w: unterminated conflict starting at line %d", ErrMalformedMarkers, current.Start1)
	}

	if set.Path1 == "" {
		set.Path1 = defaultPath
	}
	if set.Path2 == "" {
		set.Path2 = defaultPath
	}
	return set, views, nil
}

// marker reports whether line is a conflict marker made of ch and returns its label.
func marker(line string, ch byte) (string, bool) {
	if len(line) < markerSize {
		return "", false
	}
	for i := 0; i < markerSize; i++ {
		if line[i] != ch {
			return "", false
		}
	}
	rest := line[markerSize:]
	if ch == '=' {
		return "", strings.TrimSpace(rest) == ""
	}
	if rest != "" && rest[0] != ' ' {
		return "", false
	}
	return strings.TrimSpace(rest), true
}

func isAnyMarker(line string) bool {
	for _, ch := range []byte{'<', '|', '=', '>'} {
		if _, ok := marker(line, ch); ok {
			return true
		}
	}
	return false
}

// labelPath extracts the path git appends to a marker label when the sides'
// paths differ: "HEAD:src/A.java" or "1a2b3c4 (subject):src/B.java".
func labelPath(label string) string {
	if i := strings.LastIndex(label, ")"); i >= 0 {
		if rest := label[i+1:]; strings.HasPrefix(rest, ":") {
			return rest[1:]
		}
		return ""
	}
	if _, path, ok := strings.Cut(label, ":"); ok {
		return path
	}
	return ""
}
