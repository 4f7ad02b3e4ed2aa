// Package notify sends run digests to the monitoring channel. Verification
// runs collect one Notification per anomaly; the digest is sent once at the
// end of the run rather than per record.
package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"seiso/internal/config"
)

const userAgent = "seiso/1.0"

// Notification describes one anomaly found during a verification run.
type Notification struct {
	RecordID    string
	RecordLink  string
	Issue       string
	Details     string
	Suggestions []string
}

func (n Notification) String() string {
	var b strings.Builder
	b.WriteString(n.RecordLink)
	b.WriteString(": ")
	b.WriteString(n.Issue)
	if n.Details != "" {
		b.WriteString(" | ")
		b.WriteString(n.Details)
	}
	if len(n.Suggestions) > 0 {
		b.WriteString(" | suggested replacements: ")
		b.WriteString(strings.Join(n.Suggestions, ", "))
	}
	return b.String()
}

// Service defines the notification surface exposed to verification runs.
type Service interface {
	SendDigest(ctx context.Context, runName string, notifications []Notification) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg config.Notifications) Service {
	topic := strings.TrimSpace(cfg.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := time.Duration(cfg.RequestTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &ntfyService{
		endpoint: topic,
		client:   &http.Client{Timeout: timeout},
	}
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) SendDigest(ctx context.Context, runName string, notifications []Notification) error {
	if len(notifications) == 0 {
		return nil
	}
	var builder strings.Builder
	for _, notification := range notifications {
		builder.WriteString(notification.String())
		builder.WriteString("\n")
	}
	return n.send(ctx,
		fmt.Sprintf("Seiso - %s: %d findings", runName, len(notifications)),
		builder.String(),
		"high")
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, "Seiso - Test", "Notification system test", "low")
}

func (n *ntfyService) send(ctx context.Context, title, message, priority string) error {
	if n == nil || n.client == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if title != "" {
		req.Header.Set("Title", title)
	}
	if priority != "" && priority != "default" {
		req.Header.Set("Priority", priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) SendDigest(context.Context, string, []Notification) error { return nil }
func (noopService) TestNotification(context.Context) error                   { return nil }
