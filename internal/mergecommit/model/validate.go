package model

// Validate checks that both sides carry non-negative ranges.
func (r ConflictingRegion) Validate() error {
	if r.StartLine1 < 0 || r.Length1 < 0 || r.StartLine2 < 0 || r.Length2 < 0 {
		return ErrInvalidRange
	}
	return nil
}

// Validate checks the side indicator and both ranges.
func (h ConflictingRegionHistory) Validate() error {
	if h.MergeParent != SideFork && h.MergeParent != SideUpstream {
		return ErrInvalidSide
	}
	if h.OldStartLine < 0 || h.OldLength < 0 || h.NewStartLine < 0 || h.NewLength < 0 {
		return ErrInvalidRange
	}
	return nil
}
