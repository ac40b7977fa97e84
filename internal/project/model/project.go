// Package model provides the persisted entities of the project module.
package model

import "time"

// Project is one fork under study paired with its upstream source.
// Matches the project table schema.
type Project struct {
	ID         int64     `gorm:"primaryKey;column:id"                      json:"id"`
	SourceURL  string    `gorm:"column:source_url;not null"                json:"source_url"`
	SourceName string    `gorm:"column:source_name;not null"               json:"source_name"`
	ForkURL    string    `gorm:"column:fork_url;not null;uniqueIndex"      json:"fork_url"`
	ForkName   string    `gorm:"column:fork_name;not null"                 json:"fork_name"`
	IsDone     bool      `gorm:"column:is_done;not null;default:false"     json:"is_done"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"          json:"created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"          json:"updated_at"`
}

// TableName specifies the table name for GORM.
func (Project) TableName() string {
	return "project"
}

// Patch is one upstream pull request the fork never integrated.
// Matches the patch table schema.
type Patch struct {
	ID            int64 `gorm:"primaryKey;column:id"                         json:"id"`
	ProjectID     int64 `gorm:"column:project_id;not null"                   json:"project_id"`
	Number        int   `gorm:"column:number;not null"                       json:"number"`
	IsConflicting bool  `gorm:"column:is_conflicting;not null;default:false" json:"is_conflicting"`
	IsDone        bool  `gorm:"column:is_done;not null;default:false"        json:"is_done"`
}

// TableName specifies the table name for GORM.
func (Patch) TableName() string {
	return "patch"
}
