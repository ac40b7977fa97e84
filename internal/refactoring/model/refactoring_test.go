package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeRange_Length(t *testing.T) {
	assert.Equal(t, 4, CodeRange{StartLine: 10, EndLine: 14}.Length())
	assert.Equal(t, 0, CodeRange{StartLine: 7, EndLine: 7}.Length())
	assert.Equal(t, 0, CodeRange{StartLine: 9, EndLine: 3}.Length())
}

func TestRefactoringCommit_Terminal(t *testing.T) {
	assert.False(t, RefactoringCommit{}.Terminal())
	assert.True(t, RefactoringCommit{IsProcessed: true}.Terminal())
	assert.True(t, RefactoringCommit{IsTimedOut: true}.Terminal())
}
