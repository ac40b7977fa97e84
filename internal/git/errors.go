package git

import "errors"

var (
	ErrClone         = errors.New("clone failed")
	ErrFetch         = errors.New("fetch failed")
	ErrRemote        = errors.New("remote setup failed")
	ErrUnknownCommit = errors.New("unknown commit")
	ErrNotRepository = errors.New("not a git repository")
)
