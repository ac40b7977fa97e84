package git

import (
	"strings"
)

// DefaultUpstreamRemote is used when the source project name would collide with origin.
const DefaultUpstreamRemote = "upstream"

var hostPrefixes = []string{
	"https://github.com/",
	"http://github.com/",
	"git@github.com:",
	"https://bitbucket.org/",
	"http://bitbucket.org/",
	"git@bitbucket.org:",
}

// RepositoryName reduces a hosting URL to its "owner/repo" form.
// URLs on unknown hosts keep everything after the host.
func RepositoryName(url string) string {
	name := strings.TrimSpace(url)
	trimmed := false
	for _, prefix := range hostPrefixes {
		if strings.HasPrefix(name, prefix) {
			name = strings.TrimPrefix(name, prefix)
			trimmed = true
			break
		}
	}
	if !trimmed {
		if i := strings.Index(name, "://"); i >= 0 {
			name = name[i+3:]
			if j := strings.Index(name, "/"); j >= 0 {
				name = name[j+1:]
			}
		}
	}

	name = strings.TrimSuffix(name, "/")
	name = strings.TrimSuffix(name, ".git")
	return name
}

// ProjectName returns the last path segment of the repository name.
func ProjectName(url string) string {
	name := RepositoryName(url)
	if i := strings.LastIndex(name, "/"); i >= 0 {
		return name[i+1:]
	}
	return name
}

// OwnerAndRepo splits the repository name into owner and repository.
func OwnerAndRepo(url string) (string, string, bool) {
	owner, repo, ok := strings.Cut(RepositoryName(url), "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", false
	}
	return owner, repo, true
}

// WorkspaceDirName is the checkout directory name for a fork, unique per owner.
func WorkspaceDirName(url string) string {
	return strings.ReplaceAll(RepositoryName(url), "/", "_")
}

// RemoteName names the remote that tracks the source project.
func RemoteName(sourceURL string) string {
	name := ProjectName(sourceURL)
	if name == "" || name == "origin" {
		return DefaultUpstreamRemote
	}
	return name
}

// CloneURL appends the .git suffix to hosted URLs when it is missing.
// Local paths are returned unchanged.
func CloneURL(url string) string {
	url = strings.TrimSuffix(strings.TrimSpace(url), "/")
	if !strings.Contains(url, "://") && !strings.HasPrefix(url, "git@") {
		return url
	}
	if strings.HasPrefix(url, "file://") || strings.HasSuffix(url, ".git") {
		return url
	}
	return url + ".git"
}
