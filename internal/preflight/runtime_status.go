package preflight

import (
	"context"
	"fmt"
	"strings"

	"shiftsync/internal/config"
	"shiftsync/internal/store"
)

// CheckNotificationsFromConfig reports whether change alerts are enabled.
// A missing topic passes: alerts are optional.
func CheckNotificationsFromConfig(cfg *config.Config) Result {
	const name = "Notifications"

	if cfg == nil {
		return Result{Name: name, Detail: "Unknown"}
	}
	if strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return Result{Name: name, Passed: true, Detail: "Disabled"}
	}
	return Result{Name: name, Passed: true, Detail: "ntfy configured"}
}

// CheckStoreHealth runs the backend's integrity check.
func CheckStoreHealth(ctx context.Context, st store.Store) Result {
	const name = "Snapshot store"

	if st == nil {
		return Result{Name: name, Detail: "Unavailable"}
	}
	health, err := st.CheckHealth(ctx)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("health check failed (%v)", err)}
	}
	if !health.Healthy() {
		detail := health.Error
		switch {
		case detail != "":
		case !health.Exists:
			detail = "missing"
		case !health.Readable:
			detail = "unreadable"
		default:
			detail = "integrity check failed"
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s %s (%s)", health.Driver, health.Path, detail)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s %s (ok)", health.Driver, health.Path)}
}
