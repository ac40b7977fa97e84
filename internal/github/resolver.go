// Package github resolves pull requests to the commits that merged them.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gh "github.com/google/go-github/v58/github"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/festy23/patch_integrator/internal/git"
	"github.com/festy23/patch_integrator/pkg/retry"
)

// TokenProperty is the key holding the token in the OAuth properties file.
const TokenProperty = "OAuthToken"

var (
	ErrNoMergeCommit     = errors.New("pull request has no merge commit")
	ErrInvalidRepository = errors.New("not a hosted repository URL")
)

type Options struct {
	Token string
	// BaseURL overrides the API endpoint, mostly for GitHub Enterprise.
	BaseURL   string
	Transport http.RoundTripper
	Retry     retry.Config
	Timeout   time.Duration
}

type Resolver struct {
	client *gh.Client
	retry  retry.Config
	logger *zap.SugaredLogger
}

func NewResolver(opts Options, logger *zap.SugaredLogger) (*Resolver, error) {
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}
	if opts.Token != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token}),
			Base:   transport,
		}
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	client := gh.NewClient(&http.Client{Transport: transport, Timeout: timeout})
	if opts.BaseURL != "" {
		base, err := url.Parse(strings.TrimSuffix(opts.BaseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("invalid GitHub base URL: %w", err)
		}
		client.BaseURL = base
	}

	cfg := opts.Retry
	if cfg.MaxAttempts == 0 {
		cfg = retry.GitHubConfig()
	}
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		logger.Warnw("GitHub request failed, retrying", "attempt", attempt, "delay", delay, "error", err)
	}

	return &Resolver{client: client, retry: cfg, logger: logger}, nil
}

// MergeCommitSHA returns the hash of the commit that merged pull request number
// of repoURL. Closed-but-unmerged and unknown pull requests yield ErrNoMergeCommit.
func (r *Resolver) MergeCommitSHA(ctx context.Context, repoURL string, number int) (string, error) {
	owner, repo, ok := git.OwnerAndRepo(repoURL)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrInvalidRepository, repoURL)
	}

	sha, err := retry.DoWithResult(ctx, r.retry, func() (string, error) {
		pr, resp, err := r.client.PullRequests.Get(ctx, owner, repo, number)
		if err != nil {
			if resp != nil && resp.StatusCode == http.StatusNotFound {
				return "", retry.Permanent(fmt.Errorf("%w: %s/%s#%d not found", ErrNoMergeCommit, owner, repo, number))
			}
			return "", err
		}
		if !pr.GetMerged() || pr.GetMergeCommitSHA() == "" {
			return "", retry.Permanent(fmt.Errorf("%w: %s/%s#%d was not merged", ErrNoMergeCommit, owner, repo, number))
		}
		return pr.GetMergeCommitSHA(), nil
	})
	if err != nil {
		return "", err
	}

	r.logger.Debugw("Resolved pull request", "repository", owner+"/"+repo, "patch", number, "commit", sha)
	return sha, nil
}

// LoadToken returns token when set, otherwise the OAuthToken entry of the
// properties file. A missing file means anonymous access.
func LoadToken(token, propertiesFile string) string {
	if token != "" || propertiesFile == "" {
		return token
	}
	props, err := godotenv.Read(propertiesFile)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(props[TokenProperty])
}
