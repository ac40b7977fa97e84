package history

// Kind describes what a commit did to a traced region.
type Kind string

const (
	KindAdd    Kind = "add"
	KindRename Kind = "rename"
	KindMove   Kind = "move"
	KindEdit   Kind = "edit"
)

// Range is a line range in one file. Start is 1-indexed.
type Range struct {
	Start  int
	Length int
	Path   string
}

// Change is one commit touching the traced region, Old before it and New after it.
type Change struct {
	CommitHash string
	Old        Range
	New        Range
	Kind       Kind

	// Author fields are nil and Timestamp is 0 when the commit could not be resolved.
	AuthorName  *string
	AuthorEmail *string
	Timestamp   int64
}

func classify(old, new Range, touched bool) Kind {
	switch {
	case old.Path == "":
		return KindAdd
	case old.Path != new.Path:
		return KindRename
	case !touched:
		return KindMove
	default:
		return KindEdit
	}
}
