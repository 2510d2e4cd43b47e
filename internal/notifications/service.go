package notifications

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"shiftsync/internal/config"
	"shiftsync/internal/shift"
)

const userAgent = "shiftsync/0.1"

// Service defines the notification surface used by refresh cycles.
type Service interface {
	// NotifyChanges sends changes in order and returns the prefix that was
	// delivered. A non-nil error means the remainder was not sent.
	NotifyChanges(ctx context.Context, changes []shift.Change) ([]shift.Change, error)
	NotifyCycleFailed(ctx context.Context, err error, attempts int) error
	TestNotification(ctx context.Context) error
}

// NewService builds a notification service backed by ntfy when configured.
// When no ntfy topic is configured, a noop implementation is returned.
func NewService(cfg *config.Config) Service {
	topic := strings.TrimSpace(cfg.Notifications.NtfyTopic)
	if topic == "" {
		return noopService{}
	}

	timeout := cfg.NotificationTimeout()
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	perMessage := cfg.Notifications.MaxChangesPerMessage
	if perMessage <= 0 {
		perMessage = 20
	}
	limit := rate.Inf
	if cfg.Notifications.RatePerMinute > 0 {
		limit = rate.Every(time.Minute / time.Duration(cfg.Notifications.RatePerMinute))
	}

	return &ntfyService{
		endpoint:   topic,
		client:     &http.Client{Timeout: timeout},
		limiter:    rate.NewLimiter(limit, 1),
		perMessage: perMessage,
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint   string
	client     *http.Client
	limiter    *rate.Limiter
	perMessage int
}

func (n *ntfyService) NotifyChanges(ctx context.Context, changes []shift.Change) ([]shift.Change, error) {
	if len(changes) == 0 {
		return nil, nil
	}
	chunks := chunk(changes, n.perMessage)
	delivered := 0
	for i, batch := range chunks {
		title := "Shift Change Alert"
		if len(chunks) > 1 {
			title = fmt.Sprintf("Shift Change Alert (%d/%d)", i+1, len(chunks))
		}
		lines := make([]string, 0, len(batch))
		for _, c := range batch {
			lines = append(lines, FormatChange(c))
		}
		data := payload{
			title:   title,
			message: strings.Join(lines, "\n"),
			tags:    []string{"shiftsync", "roster", "changes"},
		}
		if err := n.send(ctx, data); err != nil {
			return changes[:delivered], err
		}
		delivered += len(batch)
	}
	return changes, nil
}

func (n *ntfyService) NotifyCycleFailed(ctx context.Context, err error, attempts int) error {
	var builder strings.Builder
	builder.WriteString("Roster refresh failed")
	if attempts > 0 {
		fmt.Fprintf(&builder, " after %d attempts", attempts)
	}
	builder.WriteString(": ")
	if err != nil {
		builder.WriteString(strings.TrimSpace(err.Error()))
	} else {
		builder.WriteString("unknown")
	}
	builder.WriteString("\nThe previous schedule is still being shown.")

	data := payload{
		title:    "Shiftsync - Refresh Failed",
		message:  builder.String(),
		tags:     []string{"shiftsync", "refresh", "error"},
		priority: "high",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	data := payload{
		title:    "Shiftsync - Test",
		message:  "Notification system test",
		tags:     []string{"shiftsync", "test"},
		priority: "low",
	}
	return n.send(ctx, data)
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	if n == nil || n.client == nil {
		return nil
	}
	if n.limiter != nil {
		if err := n.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("wait for ntfy rate limit: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	if data.title != "" {
		req.Header.Set("Title", data.title)
	}
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" && data.priority != "default" {
		req.Header.Set("Priority", data.priority)
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

// FormatChange renders one change as a single alert line, e.g.
// "St Joseph Scribe: Molly -> Nora (03/01/2025 A 0700-1500)".
func FormatChange(c shift.Change) string {
	cur := c.Current()
	slot := fmt.Sprintf("(%s %s %s)", displayDate(cur.Date), cur.Label, cur.Time)
	switch c.Type {
	case shift.ChangeModified:
		return fmt.Sprintf("%s: %s -> %s %s", cur.Site, c.OldPerson(), c.NewPerson(), slot)
	case shift.ChangeAdded:
		return fmt.Sprintf("%s: %s added %s", cur.Site, c.NewPerson(), slot)
	case shift.ChangeRemoved:
		return fmt.Sprintf("%s: %s removed %s", cur.Site, c.OldPerson(), slot)
	default:
		return fmt.Sprintf("%s: %s %s", cur.Site, c.Type, slot)
	}
}

func displayDate(date string) string {
	t, err := time.Parse(shift.DateLayout, date)
	if err != nil {
		return date
	}
	return t.Format("01/02/2006")
}

func chunk(changes []shift.Change, size int) [][]shift.Change {
	var out [][]shift.Change
	for start := 0; start < len(changes); start += size {
		end := start + size
		if end > len(changes) {
			end = len(changes)
		}
		out = append(out, changes[start:end])
	}
	return out
}

// ErrNotConfigured is returned by TestNotification on the noop service.
var ErrNotConfigured = errors.New("notifications are not configured")

type noopService struct{}

// NotifyChanges reports every change as delivered so alert bookkeeping still
// advances when notifications are disabled.
func (noopService) NotifyChanges(_ context.Context, changes []shift.Change) ([]shift.Change, error) {
	return changes, nil
}
func (noopService) NotifyCycleFailed(context.Context, error, int) error { return nil }
func (noopService) TestNotification(context.Context) error             { return ErrNotConfigured }
