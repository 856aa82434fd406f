package notifier

import (
	"context"
	"fmt"

	"github.com/google/go-github/v66/github"
)

const statusContext = "fleet-controller/build"

// postGitHubStatus creates a commit status via the GitHub statuses API
func (n *Notifier) postGitHubStatus(ctx context.Context, creds *credentials, success bool) error {
	owner, repo, ok := splitRepoURL(creds.repoURL)
	if !ok {
		return fmt.Errorf("cannot derive owner/repo from repository url %q", creds.repoURL)
	}

	state := "failure"
	description := "Build failed"
	if success {
		state = "success"
		description = "Build succeeded"
	}

	client := github.NewClient(nil).WithAuthToken(creds.token)
	if n.cfg.GitHubBaseURL != "" {
		var err error
		client, err = client.WithEnterpriseURLs(n.cfg.GitHubBaseURL, n.cfg.GitHubBaseURL)
		if err != nil {
			return fmt.Errorf("invalid github base url: %w", err)
		}
	}

	_, _, err := client.Repositories.CreateStatus(ctx, owner, repo, creds.revision, &github.RepoStatus{
		State:       github.String(state),
		Context:     github.String(statusContext),
		Description: github.String(description),
	})
	if err != nil {
		return fmt.Errorf("failed to post github commit status: %w", err)
	}
	return nil
}
