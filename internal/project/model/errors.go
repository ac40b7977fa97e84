package model

import "errors"

var (
	// ErrProjectNotFound indicates that no project matches the lookup key.
	ErrProjectNotFound = errors.New("project not found")
	// ErrPatchNotFound indicates that no patch matches the lookup key.
	ErrPatchNotFound = errors.New("patch not found")
	// ErrInvalidForkURL indicates an empty fork URL.
	ErrInvalidForkURL = errors.New("fork URL must not be empty")
	// ErrInvalidPatchNumber indicates a non-positive pull request number.
	ErrInvalidPatchNumber = errors.New("patch number must be positive")
)
