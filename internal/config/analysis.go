package config

import (
	"fmt"
	"strings"
	"time"
)

// AnalysisConfig holds the mining run configuration.
type AnalysisConfig struct {
	// ReposFile lists one "source,fork,patch..." line per project.
	ReposFile string
	// ClonePath is the directory that holds one workspace per project.
	ClonePath string
	// DBPropertiesFile is the KEY=VALUE file describing the database.
	DBPropertiesFile string
	// Parallelism is the number of projects analysed at once.
	Parallelism int
	// RefactoringTimeout bounds one refactoring detection.
	RefactoringTimeout time.Duration
	// FileExtensions restricts which conflicting files are recorded.
	FileExtensions []string
	// HistoryMaxSteps caps the events traced for one region side.
	HistoryMaxSteps int
	// RefMinerBin is the RefactoringMiner executable.
	RefMinerBin string
	// GitHubToken authenticates API lookups. Empty means anonymous or properties file.
	GitHubToken string
	// GitHubPropertiesFile may carry an OAuthToken key.
	GitHubPropertiesFile string
	// MetricsAddr enables the /metrics listener during a run when set.
	MetricsAddr string
}

// LoadAnalysisConfigFromEnv loads analysis configuration from environment variables.
func LoadAnalysisConfigFromEnv() AnalysisConfig {
	return AnalysisConfig{
		ReposFile:            GetEnv("REPOS_FILE", "reposList.txt"),
		ClonePath:            GetEnv("CLONE_PATH", "projects"),
		DBPropertiesFile:     GetEnv("DB_PROPERTIES_FILE", "database.properties"),
		Parallelism:          GetEnvInt("PARALLELISM", 1),
		RefactoringTimeout:   GetEnvDuration("REFACTORING_TIMEOUT", 4*time.Minute),
		FileExtensions:       GetEnvList("CONFLICT_FILE_EXTENSIONS", []string{".java"}),
		HistoryMaxSteps:      GetEnvInt("HISTORY_MAX_STEPS", 500),
		RefMinerBin:          GetEnv("REFMINER_BIN", "RefactoringMiner"),
		GitHubToken:          GetEnv("GITHUB_TOKEN", ""),
		GitHubPropertiesFile: GetEnv("GITHUB_PROPERTIES_FILE", "github-oauth.properties"),
		MetricsAddr:          GetEnv("METRICS_ADDR", ""),
	}
}

// Validate validates analysis configuration.
func (c AnalysisConfig) Validate() error {
	if c.ReposFile == "" {
		return fmt.Errorf("ReposFile must not be empty")
	}
	if c.ClonePath == "" {
		return fmt.Errorf("ClonePath must not be empty")
	}
	if c.Parallelism < 1 {
		return fmt.Errorf("Parallelism must be at least 1, got %d", c.Parallelism)
	}
	if c.RefactoringTimeout <= 0 {
		return fmt.Errorf("RefactoringTimeout must be greater than 0")
	}
	if c.HistoryMaxSteps < 1 {
		return fmt.Errorf("HistoryMaxSteps must be at least 1, got %d", c.HistoryMaxSteps)
	}
	for _, ext := range c.FileExtensions {
		if !strings.HasPrefix(ext, ".") {
			return fmt.Errorf("invalid file extension %q (must start with a dot)", ext)
		}
	}
	return nil
}

// RecordsFile reports whether a conflicting file at path should be persisted.
// An empty extension list records every file.
func (c AnalysisConfig) RecordsFile(path string) bool {
	if len(c.FileExtensions) == 0 {
		return true
	}
	lower := strings.ToLower(path)
	for _, ext := range c.FileExtensions {
		if strings.HasSuffix(lower, strings.ToLower(ext)) {
			return true
		}
	}
	return false
}
