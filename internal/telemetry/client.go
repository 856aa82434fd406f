// Package telemetry posts best-effort status and usage events to the
// platform's internal sinks. Every call here is fire-and-forget from the
// caller's perspective; failures are logged by the caller and never
// interrupt the primary operation.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"resty.dev/v3"

	"github.com/dsyorkd/fleet-controller/internal/logger"
)

// Config contains telemetry sink settings. An empty UsageURL disables
// usage tracking entirely.
type Config struct {
	StatusURL string
	UsageURL  string
	Timeout   time.Duration
}

// Client posts to the platform's telemetry endpoints
type Client struct {
	http *resty.Client
	cfg  Config
	log  logger.Interface
}

// New creates a telemetry client
func New(cfg Config, log logger.Interface) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}

	http := resty.New().
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")

	return &Client{
		http: http,
		cfg:  cfg,
		log:  log.WithField("component", "telemetry"),
	}
}

type buildStatus struct {
	ContainerSlug string `json:"containerSlug"`
	Status        string `json:"status"`
}

type usageEvent struct {
	OrganizationID uint                   `json:"organizationId"`
	Event          string                 `json:"event"`
	Timestamp      time.Time              `json:"timestamp"`
	Properties     map[string]interface{} `json:"properties,omitempty"`
}

// PostBuildStatus pushes a container build status to the status sink
func (c *Client) PostBuildStatus(ctx context.Context, containerSlug, status string) error {
	if c.cfg.StatusURL == "" {
		return nil
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(&buildStatus{ContainerSlug: containerSlug, Status: status}).
		Post(c.cfg.StatusURL)
	if err != nil {
		return fmt.Errorf("failed to post build status: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("status sink responded %d", resp.StatusCode())
	}
	return nil
}

// TrackUsage posts a usage event to the analytics sink. The feature is
// optional; an unset UsageURL is a silent no-op.
func (c *Client) TrackUsage(ctx context.Context, orgID uint, event string, properties map[string]interface{}) error {
	if c.cfg.UsageURL == "" {
		return nil
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(&usageEvent{
			OrganizationID: orgID,
			Event:          event,
			Timestamp:      time.Now().UTC(),
			Properties:     properties,
		}).
		Post(c.cfg.UsageURL)
	if err != nil {
		return fmt.Errorf("failed to track usage: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("usage sink responded %d", resp.StatusCode())
	}
	return nil
}
