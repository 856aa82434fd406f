package notifier

import (
	"context"
	"fmt"
)

// postGitLabStatus creates a commit status via the GitLab statuses API
func (n *Notifier) postGitLabStatus(ctx context.Context, creds *credentials, success bool) error {
	if creds.projectID == "" {
		return fmt.Errorf("gitlab credentials carry no project id")
	}

	state := "failed"
	if success {
		state = "success"
	}

	url := fmt.Sprintf("%s/api/v4/projects/%s/statuses/%s", n.cfg.GitLabBaseURL, creds.projectID, creds.revision)
	resp, err := n.http.R().
		SetContext(ctx).
		SetHeader("PRIVATE-TOKEN", creds.token).
		SetBody(map[string]string{
			"state": state,
			"name":  statusContext,
		}).
		Post(url)
	if err != nil {
		return fmt.Errorf("failed to post gitlab commit status: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("gitlab statuses API responded %d", resp.StatusCode())
	}
	return nil
}
