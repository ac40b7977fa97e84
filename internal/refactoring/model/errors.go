package model

import "errors"

var (
	// ErrRefactoringCommitNotFound indicates that no refactoring commit matches the lookup key.
	ErrRefactoringCommitNotFound = errors.New("refactoring commit not found")
	// ErrAlreadyTerminal indicates an attempt to change a processed or timed-out commit.
	ErrAlreadyTerminal = errors.New("refactoring commit is already processed or timed out")
	// ErrInvalidCommitHash indicates an empty commit hash.
	ErrInvalidCommitHash = errors.New("commit hash must not be empty")
)
