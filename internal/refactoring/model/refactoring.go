// Package model provides the persisted refactoring detection results.
package model

// Region sides as stored in RefactoringRegion.Type.
const (
	SideSource      = "s"
	SideDestination = "d"
)

// RefactoringCommit is one history commit selected for refactoring detection.
// Matches the refactoring_commit table schema.
type RefactoringCommit struct {
	ID          int64  `gorm:"primaryKey;column:id"                       json:"id"`
	ProjectID   int64  `gorm:"column:project_id;not null"                 json:"project_id"`
	CommitHash  string `gorm:"column:commit_hash;not null;uniqueIndex"    json:"commit_hash"`
	IsProcessed bool   `gorm:"column:is_processed;not null;default:false" json:"is_processed"`
	IsTimedOut  bool   `gorm:"column:is_timed_out;not null;default:false" json:"is_timed_out"`
}

// TableName specifies the table name for GORM.
func (RefactoringCommit) TableName() string {
	return "refactoring_commit"
}

// Terminal reports whether the commit must never be analysed again.
func (c RefactoringCommit) Terminal() bool {
	return c.IsProcessed || c.IsTimedOut
}

// Refactoring is one detected refactoring at a commit.
// Matches the refactoring table schema.
type Refactoring struct {
	ID                  int64  `gorm:"primaryKey;column:id"                  json:"id"`
	RefactoringCommitID int64  `gorm:"column:refactoring_commit_id;not null" json:"refactoring_commit_id"`
	Type                string `gorm:"column:type;not null"                  json:"type"`
	Description         string `gorm:"column:description;not null"           json:"description"`
}

// TableName specifies the table name for GORM.
func (Refactoring) TableName() string {
	return "refactoring"
}

// RefactoringRegion is one source or destination code range of a refactoring.
// Matches the refactoring_region table schema.
type RefactoringRegion struct {
	ID                  int64  `gorm:"primaryKey;column:id"                  json:"id"`
	RefactoringID       int64  `gorm:"column:refactoring_id;not null"        json:"refactoring_id"`
	RefactoringCommitID int64  `gorm:"column:refactoring_commit_id;not null" json:"refactoring_commit_id"`
	CommitHash          string `gorm:"column:commit_hash;not null"           json:"commit_hash"`
	ProjectID           int64  `gorm:"column:project_id;not null"            json:"project_id"`
	Type                string `gorm:"column:type;not null"                  json:"type"`
	Path                string `gorm:"column:path;not null"                  json:"path"`
	StartLine           int    `gorm:"column:start_line;not null"            json:"start_line"`
	Length              int    `gorm:"column:length;not null"                json:"length"`
}

// TableName specifies the table name for GORM.
func (RefactoringRegion) TableName() string {
	return "refactoring_region"
}

// CodeRange is a detector reported range, end line inclusive.
type CodeRange struct {
	Path      string
	StartLine int
	EndLine   int
}

// Length is the stored region length, EndLine minus StartLine.
func (c CodeRange) Length() int {
	if c.EndLine < c.StartLine {
		return 0
	}
	return c.EndLine - c.StartLine
}

// Detected is one refactoring as returned by the detector, before persistence.
type Detected struct {
	Type         string
	Description  string
	Source       []CodeRange
	Destinations []CodeRange
}
