package refminer

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/festy23/patch_integrator/internal/refactoring/model"
)

const sha = "0123456789abcdef0123456789abcdef01234567"

const sampleReport = `{
  "commits": [
    {
      "repository": "/tmp/repo",
      "sha1": "0123456789abcdef0123456789abcdef01234567",
      "url": "",
      "refactorings": [
        {
          "type": "Extract Method",
          "description": "Extract Method private helper() extracted from public run() in class A",
          "leftSideLocations": [
            {"filePath": "src/A.java", "startLine": 10, "endLine": 30, "startColumn": 1, "endColumn": 2,
             "codeElementType": "METHOD_DECLARATION", "description": "source method declaration before extraction", "codeElement": "run()"}
          ],
          "rightSideLocations": [
            {"filePath": "src/A.java", "startLine": 10, "endLine": 15},
            {"filePath": "src/A.java", "startLine": 17, "endLine": 29}
          ]
        },
        {
          "type": "Rename Class",
          "description": "Rename Class A renamed to B",
          "leftSideLocations": [],
          "rightSideLocations": []
        }
      ]
    }
  ]
}`

func TestParse(t *testing.T) {
	t.Run("maps sides", func(t *testing.T) {
		detected, err := Parse(strings.NewReader(sampleReport), sha)
		require.NoError(t, err)
		require.Len(t, detected, 2)

		first := detected[0]
		assert.Equal(t, "Extract Method", first.Type)
		assert.Equal(t, []model.CodeRange{{Path: "src/A.java", StartLine: 10, EndLine: 30}}, first.Source)
		assert.Equal(t, []model.CodeRange{
			{Path: "src/A.java", StartLine: 10, EndLine: 15},
			{Path: "src/A.java", StartLine: 17, EndLine: 29},
		}, first.Destinations)
		assert.Equal(t, 20, first.Source[0].Length())

		assert.Empty(t, detected[1].Source)
		assert.Empty(t, detected[1].Destinations)
	})

	t.Run("other commits are ignored", func(t *testing.T) {
		detected, err := Parse(strings.NewReader(sampleReport), strings.Repeat("f", 40))
		require.NoError(t, err)
		assert.Empty(t, detected)
	})

	t.Run("empty report", func(t *testing.T) {
		detected, err := Parse(strings.NewReader(""), sha)
		require.NoError(t, err)
		assert.NotNil(t, detected)
		assert.Empty(t, detected)

		detected, err = Parse(strings.NewReader(`{"commits":[]}`), sha)
		require.NoError(t, err)
		assert.Empty(t, detected)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := Parse(strings.NewReader("{"), sha)
		assert.ErrorIs(t, err, ErrDetection)
	})
}

// fakeMiner writes a shell script that behaves like the RefactoringMiner CLI.
func fakeMiner(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell scripts are not executable on windows")
	}
	bin := filepath.Join(t.TempDir(), "RefactoringMiner")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return bin
}

func TestDetector_Detect(t *testing.T) {
	logger := zap.NewNop().Sugar()
	ctx := context.Background()

	t.Run("reads the json report", func(t *testing.T) {
		report := filepath.Join(t.TempDir(), "report.json")
		require.NoError(t, os.WriteFile(report, []byte(sampleReport), 0o644))
		bin := fakeMiner(t, `[ "$1" = "-c" ] && [ "$3" = "`+sha+`" ] && [ "$4" = "-json" ] || exit 3
cp "`+report+`" "$5"`)

		detected, err := NewDetector(bin, logger).Detect(ctx, t.TempDir(), sha)
		require.NoError(t, err)
		assert.Len(t, detected, 2)
	})

	t.Run("non-zero exit", func(t *testing.T) {
		bin := fakeMiner(t, `echo "boom" >&2; exit 1`)
		_, err := NewDetector(bin, logger).Detect(ctx, t.TempDir(), sha)
		assert.ErrorIs(t, err, ErrDetection)
		assert.Contains(t, err.Error(), "boom")
	})

	t.Run("deadline kills the process", func(t *testing.T) {
		bin := fakeMiner(t, `exec sleep 30`)
		cctx, cancel := context.WithTimeout(ctx, 200*time.Millisecond)
		defer cancel()

		started := time.Now()
		_, err := NewDetector(bin, logger).Detect(cctx, t.TempDir(), sha)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Less(t, time.Since(started), 10*time.Second)
	})

	t.Run("missing binary", func(t *testing.T) {
		_, err := NewDetector(filepath.Join(t.TempDir(), "nope"), logger).Detect(ctx, t.TempDir(), sha)
		assert.ErrorIs(t, err, ErrDetection)
	})
}
