// Package notifier posts backup commit statuses to source-control
// providers. It is the secondary reporting path for build outcomes,
// covering cases where the in-pipeline reporting step never ran. Every
// call is best-effort: failures are returned for logging and go no
// further, and nothing here is retried.
package notifier

import (
	"context"
	"strings"
	"time"

	"resty.dev/v3"

	"github.com/dsyorkd/fleet-controller/internal/logger"
)

// Provider identifies a source-control backend
type Provider string

const (
	ProviderGitHub    Provider = "github"
	ProviderGitLab    Provider = "gitlab"
	ProviderBitbucket Provider = "bitbucket"
)

// Pipeline parameter names carrying git-provider credentials. The first
// token present, checked in this order, selects the provider.
const (
	paramGitHubToken    = "githubToken"
	paramGitLabToken    = "gitlabToken"
	paramBitbucketToken = "bitbucketToken"
	paramRevision       = "revision"
	paramRepoURL        = "repoUrl"
	paramProjectID      = "projectId"
	paramRepoFullName   = "repoFullName"
)

// revisionUnset is the placeholder a pipeline declares when it has no
// usable commit; it suppresses notification entirely
const revisionUnset = "N/A"

// Param is one name/value pair from a pipeline run's declared parameters
type Param struct {
	Name  string
	Value string
}

// credentials is the per-event credential set extracted from pipeline
// parameters. It is never persisted.
type credentials struct {
	provider Provider
	token    string
	revision string
	// exactly one of these is set, matching the provider
	repoURL      string
	projectID    string
	repoFullName string
}

// Config contains provider API endpoints, overridable for tests
type Config struct {
	GitHubBaseURL    string
	GitLabBaseURL    string
	BitbucketBaseURL string
	Timeout          time.Duration
}

// Notifier dispatches commit statuses to the matching provider backend
type Notifier struct {
	cfg  Config
	http *resty.Client
	log  logger.Interface
}

// New creates a commit status notifier
func New(cfg Config, log logger.Interface) *Notifier {
	if cfg.GitLabBaseURL == "" {
		cfg.GitLabBaseURL = "https://gitlab.com"
	}
	if cfg.BitbucketBaseURL == "" {
		cfg.BitbucketBaseURL = "https://api.bitbucket.org"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	http := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")

	return &Notifier{
		cfg:  cfg,
		http: http,
		log:  log.WithField("component", "notifier"),
	}
}

// Notify posts a commit status for the build outcome carried by reason.
// Pipelines without a provider token or a usable revision are silently
// skipped; that is the normal case for runs not wired for backup status.
func (n *Notifier) Notify(ctx context.Context, params []Param, reason string) error {
	creds, ok := extractCredentials(params)
	if !ok {
		n.log.Debug("Pipeline run carries no notifiable git credentials, skipping")
		return nil
	}

	success := isSuccessReason(reason)
	n.log.WithFields(map[string]interface{}{
		"provider": string(creds.provider),
		"revision": creds.revision,
		"success":  success,
	}).Info("Posting backup commit status")

	switch creds.provider {
	case ProviderGitHub:
		return n.postGitHubStatus(ctx, creds, success)
	case ProviderGitLab:
		return n.postGitLabStatus(ctx, creds, success)
	case ProviderBitbucket:
		return n.postBitbucketStatus(ctx, creds, success)
	}
	return nil
}

// extractCredentials picks the provider from the first token parameter
// present. A missing token, missing revision, or the "N/A" placeholder
// yields no credentials.
func extractCredentials(params []Param) (*credentials, bool) {
	values := make(map[string]string, len(params))
	for _, p := range params {
		values[p.Name] = p.Value
	}

	revision := values[paramRevision]
	if revision == "" || revision == revisionUnset {
		return nil, false
	}

	if token := values[paramGitHubToken]; token != "" {
		return &credentials{
			provider: ProviderGitHub,
			token:    token,
			revision: revision,
			repoURL:  values[paramRepoURL],
		}, true
	}
	if token := values[paramGitLabToken]; token != "" {
		return &credentials{
			provider:  ProviderGitLab,
			token:     token,
			revision:  revision,
			projectID: values[paramProjectID],
		}, true
	}
	if token := values[paramBitbucketToken]; token != "" {
		return &credentials{
			provider:     ProviderBitbucket,
			token:        token,
			revision:     revision,
			repoFullName: values[paramRepoFullName],
		}, true
	}
	return nil, false
}

// isSuccessReason maps the event reason vocabulary to a binary outcome.
// An explicitly cancelled pipeline is not a failure signal.
func isSuccessReason(reason string) bool {
	return reason == "Succeeded" || reason == "TaskRunCancelled"
}

// splitRepoURL extracts owner and repo from a git remote URL such as
// https://github.com/acme/web-app.git
func splitRepoURL(repoURL string) (owner, repo string, ok bool) {
	trimmed := strings.TrimSuffix(repoURL, ".git")
	trimmed = strings.TrimSuffix(trimmed, "/")
	parts := strings.Split(trimmed, "/")
	if len(parts) < 2 {
		return "", "", false
	}
	return parts[len(parts)-2], parts[len(parts)-1], true
}
