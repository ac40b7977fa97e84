package conflict

import "strings"

// Kind classifies why a file conflicted.
type Kind string

const (
	KindContent       Kind = "content"
	KindAddAdd        Kind = "add/add"
	KindModifyDelete  Kind = "modify/delete"
	KindRenameDelete  Kind = "rename/delete"
	KindRenameRename  Kind = "rename/rename"
	KindRenameAdd     Kind = "rename/add"
	KindDirectoryFile Kind = "directory/file"
	KindSubmodule     Kind = "submodule"
	KindOther         Kind = "other"
)

// HasRegions reports whether conflict markers are left in the file for this kind.
func (k Kind) HasRegions() bool {
	return k == KindContent || k == KindAddAdd
}

// kindFromLabel maps the label of a "CONFLICT (<label>): ..." line.
func kindFromLabel(label string) Kind {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "content":
		return KindContent
	case "add/add":
		return KindAddAdd
	case "modify/delete", "delete/modify":
		return KindModifyDelete
	case "rename/delete":
		return KindRenameDelete
	case "rename/rename":
		return KindRenameRename
	case "rename/add", "add/rename", "rename involved in collision":
		return KindRenameAdd
	case "file/directory", "directory/file", "distinct types":
		return KindDirectoryFile
	case "submodule":
		return KindSubmodule
	default:
		return KindOther
	}
}

// kindFromStatus maps the two-letter unmerged status of `git status --porcelain`.
func kindFromStatus(xy string) Kind {
	switch xy {
	case "UU":
		return KindContent
	case "AA":
		return KindAddAdd
	case "UD", "DU":
		return KindModifyDelete
	case "DD":
		return KindRenameRename
	default:
		return KindOther
	}
}

func isUnmerged(xy string) bool {
	switch xy {
	case "DD", "AU", "UD", "UA", "DU", "AA", "UU":
		return true
	}
	return false
}
