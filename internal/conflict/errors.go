package conflict

import "errors"

var (
	ErrIntegration      = errors.New("integration attempt failed")
	ErrMalformedMarkers = errors.New("malformed conflict markers")
)
