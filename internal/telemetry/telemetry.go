// Package telemetry sends anonymous usage events to PostHog when a project
// key is linked into the build. Without a key every call is a no-op.
package telemetry

import (
	"fmt"
	"runtime"

	"github.com/posthog/posthog-go"
	"github.com/rs/zerolog"

	"insar-viewer/internal/logging"
)

// Event names
const (
	EventAppStarted    = "app_started"
	EventFolderScanned = "folder_scanned"
	EventProductRender = "product_rendered"
	EventComparison    = "comparison_rendered"
	EventExport        = "product_exported"
	EventRenderFailed  = "render_failed"
	EventTimeSeries    = "time_series_sampled"
)

// Client captures events for one install. The zero value and nil are disabled.
type Client struct {
	ph         posthog.Client
	distinctID string
	logger     zerolog.Logger
}

// New creates a client. An empty key or an opted-out install yields a disabled client.
func New(key, host, distinctID string, disabled bool) (*Client, error) {
	c := &Client{distinctID: distinctID, logger: logging.Component("telemetry")}
	if key == "" || disabled {
		return c, nil
	}
	if distinctID == "" {
		distinctID = "anonymous"
		c.distinctID = distinctID
	}

	ph, err := posthog.NewWithConfig(key, posthog.Config{
		Endpoint: host,
	})
	if err != nil {
		return c, fmt.Errorf("failed to initialize PostHog: %w", err)
	}
	c.ph = ph
	return c, nil
}

// Enabled reports whether events are being sent
func (c *Client) Enabled() bool {
	return c != nil && c.ph != nil
}

// Track enqueues an event. The OS and architecture are always attached.
func (c *Client) Track(event string, props map[string]interface{}) {
	if !c.Enabled() {
		return
	}
	properties := posthog.NewProperties().
		Set("os", runtime.GOOS).
		Set("arch", runtime.GOARCH)
	for k, v := range props {
		properties.Set(k, v)
	}
	if err := c.ph.Enqueue(posthog.Capture{
		DistinctId: c.distinctID,
		Event:      event,
		Properties: properties,
	}); err != nil {
		c.logger.Warn().Err(err).Str("event", event).Msg("failed to enqueue event")
	}
}

// Close flushes pending events
func (c *Client) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.ph.Close()
}
