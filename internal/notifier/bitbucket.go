package notifier

import (
	"context"
	"fmt"
)

// postBitbucketStatus creates a build status via the Bitbucket commit
// statuses API
func (n *Notifier) postBitbucketStatus(ctx context.Context, creds *credentials, success bool) error {
	if creds.repoFullName == "" {
		return fmt.Errorf("bitbucket credentials carry no repository name")
	}

	state := "FAILED"
	if success {
		state = "SUCCESSFUL"
	}

	url := fmt.Sprintf("%s/2.0/repositories/%s/commit/%s/statuses/build",
		n.cfg.BitbucketBaseURL, creds.repoFullName, creds.revision)
	resp, err := n.http.R().
		SetContext(ctx).
		SetAuthToken(creds.token).
		SetBody(map[string]string{
			"state": state,
			"key":   statusContext,
			"name":  statusContext,
		}).
		Post(url)
	if err != nil {
		return fmt.Errorf("failed to post bitbucket commit status: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("bitbucket statuses API responded %d", resp.StatusCode())
	}
	return nil
}
