// Package model provides the persisted entities of one cherry-pick attempt:
// the merge commit, its conflicting files, their regions and region histories.
package model

// Conflict sides as stored in ConflictingRegionHistory.MergeParent.
const (
	SideFork     = 1
	SideUpstream = 2
)

// MergeCommit is one candidate cherry-pick attempt.
// Matches the merge_commit table schema.
type MergeCommit struct {
	ID            int64   `gorm:"primaryKey;column:id"                         json:"id"`
	ProjectID     int64   `gorm:"column:project_id;not null"                   json:"project_id"`
	PatchID       *int64  `gorm:"column:patch_id"                              json:"patch_id,omitempty"`
	CommitHash    string  `gorm:"column:commit_hash;not null"                  json:"commit_hash"`
	Parent1       string  `gorm:"column:parent_1;not null"                     json:"parent_1"`
	Parent2       string  `gorm:"column:parent_2;not null"                     json:"parent_2"`
	IsConflicting bool    `gorm:"column:is_conflicting;not null;default:false" json:"is_conflicting"`
	AuthorName    *string `gorm:"column:author_name"                           json:"author_name,omitempty"`
	AuthorEmail   *string `gorm:"column:author_email"                          json:"author_email,omitempty"`
	Timestamp     int64   `gorm:"column:timestamp;not null;default:0"          json:"timestamp"`
	IsDone        bool    `gorm:"column:is_done;not null;default:false"        json:"is_done"`
}

// TableName specifies the table name for GORM.
func (MergeCommit) TableName() string {
	return "merge_commit"
}

// ConflictingJavaFile is one file left conflicted by a merge commit.
// Matches the conflicting_java_file table schema.
type ConflictingJavaFile struct {
	ID            int64  `gorm:"primaryKey;column:id"            json:"id"`
	MergeCommitID int64  `gorm:"column:merge_commit_id;not null" json:"merge_commit_id"`
	Path          string `gorm:"column:path;not null"            json:"path"`
	Type          string `gorm:"column:type;not null"            json:"type"`
}

// TableName specifies the table name for GORM.
func (ConflictingJavaFile) TableName() string {
	return "conflicting_java_file"
}

// ConflictingRegion pairs the conflicting line ranges of both sides.
// Matches the conflicting_region table schema.
type ConflictingRegion struct {
	ID                    int64  `gorm:"primaryKey;column:id"                     json:"id"`
	ConflictingJavaFileID int64  `gorm:"column:conflicting_java_file_id;not null" json:"conflicting_java_file_id"`
	MergeCommitID         int64  `gorm:"column:merge_commit_id;not null"          json:"merge_commit_id"`
	Path1                 string `gorm:"column:path_1;not null"                   json:"path_1"`
	StartLine1            int    `gorm:"column:start_line_1;not null"             json:"start_line_1"`
	Length1               int    `gorm:"column:length_1;not null"                 json:"length_1"`
	Path2                 string `gorm:"column:path_2;not null"                   json:"path_2"`
	StartLine2            int    `gorm:"column:start_line_2;not null"             json:"start_line_2"`
	Length2               int    `gorm:"column:length_2;not null"                 json:"length_2"`
}

// TableName specifies the table name for GORM.
func (ConflictingRegion) TableName() string {
	return "conflicting_region"
}

// ConflictingRegionHistory is one change event that touched a conflicting
// region on one side. Seq keeps traversal order, most recent first.
// Matches the conflicting_region_history table schema.
type ConflictingRegionHistory struct {
	ID                  int64   `gorm:"primaryKey;column:id"                  json:"id"`
	ConflictingRegionID int64   `gorm:"column:conflicting_region_id;not null" json:"conflicting_region_id"`
	MergeCommitID       int64   `gorm:"column:merge_commit_id;not null"       json:"merge_commit_id"`
	ProjectID           int64   `gorm:"column:project_id;not null"            json:"project_id"`
	CommitHash          string  `gorm:"column:commit_hash;not null"           json:"commit_hash"`
	MergeParent         int     `gorm:"column:merge_parent;not null"          json:"merge_parent"`
	Seq                 int     `gorm:"column:seq;not null"                   json:"seq"`
	ChangeKind          string  `gorm:"column:change_kind;not null"           json:"change_kind"`
	OldStartLine        int     `gorm:"column:old_start_line;not null"        json:"old_start_line"`
	OldLength           int     `gorm:"column:old_length;not null"            json:"old_length"`
	OldPath             string  `gorm:"column:old_path;not null"              json:"old_path"`
	NewStartLine        int     `gorm:"column:new_start_line;not null"        json:"new_start_line"`
	NewLength           int     `gorm:"column:new_length;not null"            json:"new_length"`
	NewPath             string  `gorm:"column:new_path;not null"              json:"new_path"`
	AuthorName          *string `gorm:"column:author_name"                    json:"author_name,omitempty"`
	AuthorEmail         *string `gorm:"column:author_email"                   json:"author_email,omitempty"`
	Timestamp           int64   `gorm:"column:timestamp;not null"             json:"timestamp"`
}

// TableName specifies the table name for GORM.
func (ConflictingRegionHistory) TableName() string {
	return "conflicting_region_history"
}
