package model

import "errors"

var (
	// ErrMergeCommitNotFound indicates that no merge commit matches the lookup key.
	ErrMergeCommitNotFound = errors.New("merge commit not found")
	// ErrMergeCommitExists indicates that the project already records this commit.
	ErrMergeCommitExists = errors.New("merge commit already exists")
	// ErrInvalidRange indicates a negative start line or length.
	ErrInvalidRange = errors.New("line range must have non-negative start and length")
	// ErrInvalidSide indicates a side other than 1 or 2.
	ErrInvalidSide = errors.New("side must be 1 or 2")
)
