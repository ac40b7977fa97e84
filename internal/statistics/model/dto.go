// Package model provides data transfer objects for statistics module.
package model

// ProjectStatistics summarises the completed analysis of one fork.
type ProjectStatistics struct {
	ProjectID               int64  `json:"project_id"`
	ForkURL                 string `json:"fork_url"`
	SourceURL               string `json:"source_url"`
	IsDone                  bool   `json:"is_done"`
	Patches                 int    `json:"patches"`
	ConflictingPatches      int    `json:"conflicting_patches"`
	MergeCommits            int    `json:"merge_commits"`
	ConflictingMergeCommits int    `json:"conflicting_merge_commits"`
	ConflictingFiles        int    `json:"conflicting_files"`
	ConflictingRegions      int    `json:"conflicting_regions"`
}

// ProjectsStatisticsResponse represents response for projects statistics.
type ProjectsStatisticsResponse struct {
	Projects []ProjectStatistics `json:"projects"`
	Total    int                 `json:"total"`
}

// TypeCount is the number of rows carrying one type label.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

// RefactoringStatistics represents the state of refactoring detection.
type RefactoringStatistics struct {
	TotalCommits      int         `json:"total_commits"`
	ProcessedCommits  int         `json:"processed_commits"`
	TimedOutCommits   int         `json:"timed_out_commits"`
	PendingCommits    int         `json:"pending_commits"`
	TotalRefactorings int         `json:"total_refactorings"`
	ByType            []TypeCount `json:"by_type"`
}

// RefactoringStatisticsResponse represents response for refactoring statistics.
type RefactoringStatisticsResponse struct {
	Statistics RefactoringStatistics `json:"statistics"`
}

// ConflictStatistics represents conflicts found in completed merge commits.
type ConflictStatistics struct {
	MergeCommits            int         `json:"merge_commits"`
	ConflictingMergeCommits int         `json:"conflicting_merge_commits"`
	ConflictingFiles        int         `json:"conflicting_files"`
	ConflictingRegions      int         `json:"conflicting_regions"`
	HistoryEvents           int         `json:"history_events"`
	AverageHistoryPerRegion float64     `json:"average_history_per_region"`
	FilesByType             []TypeCount `json:"files_by_type"`
	HistoryByChangeKind     []TypeCount `json:"history_by_change_kind"`
}

// ConflictStatisticsResponse represents response for conflict statistics.
type ConflictStatisticsResponse struct {
	Statistics ConflictStatistics `json:"statistics"`
}
