package notifications_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"shiftsync/internal/config"
	"shiftsync/internal/notifications"
	"shiftsync/internal/shift"
)

type captured struct {
	title    string
	tags     string
	priority string
	body     string
}

type ntfyRecorder struct {
	mu       sync.Mutex
	messages []captured
	failFrom int
}

func (r *ntfyRecorder) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		if req.Method != http.MethodPost {
			t.Errorf("unexpected method: %s", req.Method)
		}
		body, err := io.ReadAll(req.Body)
		if err != nil {
			t.Errorf("read body: %v", err)
		}
		r.mu.Lock()
		defer r.mu.Unlock()
		r.messages = append(r.messages, captured{
			title:    req.Header.Get("Title"),
			tags:     req.Header.Get("Tags"),
			priority: req.Header.Get("Priority"),
			body:     string(body),
		})
		if r.failFrom > 0 && len(r.messages) >= r.failFrom {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = io.WriteString(w, "down")
			return
		}
		w.WriteHeader(http.StatusOK)
	}
}

func newService(t *testing.T, rec *ntfyRecorder, perMessage int) notifications.Service {
	t.Helper()
	server := httptest.NewServer(rec.handler(t))
	t.Cleanup(server.Close)

	cfg := config.Default()
	cfg.Notifications.NtfyTopic = server.URL
	cfg.Notifications.RequestTimeout = 5
	cfg.Notifications.MaxChangesPerMessage = perMessage
	cfg.Notifications.RatePerMinute = 6000
	return notifications.NewService(&cfg)
}

func change(kind shift.ChangeType, label, oldPerson, newPerson string) shift.Change {
	base := shift.Record{Date: "2025-03-01", Label: label, Time: "0700-1500", Role: shift.RoleScribe, Site: "St Joseph Scribe"}
	c := shift.Change{Type: kind}
	if oldPerson != "" {
		old := base
		old.Person = oldPerson
		c.Old = &old
	}
	if newPerson != "" {
		next := base
		next.Person = newPerson
		c.New = &next
	}
	return c
}

func TestNewServiceReturnsNoopWhenTopicMissing(t *testing.T) {
	cfg := config.Default()
	cfg.Notifications.NtfyTopic = ""
	svc := notifications.NewService(&cfg)
	changes := []shift.Change{change(shift.ChangeAdded, "A", "", "Molly")}
	delivered, err := svc.NotifyChanges(context.Background(), changes)
	if err != nil || len(delivered) != 1 {
		t.Fatalf("expected noop to report delivery, got %d, %v", len(delivered), err)
	}
	if err := svc.TestNotification(context.Background()); !errors.Is(err, notifications.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestFormatChange(t *testing.T) {
	tests := []struct {
		name   string
		change shift.Change
		want   string
	}{
		{"modified", change(shift.ChangeModified, "A", "Molly", "Nora"), "St Joseph Scribe: Molly -> Nora (03/01/2025 A 0700-1500)"},
		{"added", change(shift.ChangeAdded, "B", "", "Pat"), "St Joseph Scribe: Pat added (03/01/2025 B 0700-1500)"},
		{"removed", change(shift.ChangeRemoved, "C", "Quinn", ""), "St Joseph Scribe: Quinn removed (03/01/2025 C 0700-1500)"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := notifications.FormatChange(tc.change); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}

func TestNotifyChangesChunksMessages(t *testing.T) {
	rec := &ntfyRecorder{}
	svc := newService(t, rec, 2)
	changes := []shift.Change{
		change(shift.ChangeAdded, "A", "", "Molly"),
		change(shift.ChangeAdded, "B", "", "Nora"),
		change(shift.ChangeAdded, "C", "", "Pat"),
	}
	delivered, err := svc.NotifyChanges(context.Background(), changes)
	if err != nil {
		t.Fatalf("NotifyChanges returned error: %v", err)
	}
	if len(delivered) != 3 {
		t.Fatalf("expected all 3 delivered, got %d", len(delivered))
	}
	if len(rec.messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(rec.messages))
	}
	if rec.messages[0].title != "Shift Change Alert (1/2)" || rec.messages[1].title != "Shift Change Alert (2/2)" {
		t.Fatalf("unexpected titles %q, %q", rec.messages[0].title, rec.messages[1].title)
	}
	if strings.Count(rec.messages[0].body, "\n") != 1 || !strings.Contains(rec.messages[1].body, "Pat added") {
		t.Fatalf("unexpected bodies %q / %q", rec.messages[0].body, rec.messages[1].body)
	}
	if rec.messages[0].tags != "shiftsync,roster,changes" {
		t.Fatalf("unexpected tags %q", rec.messages[0].tags)
	}
}

func TestNotifyChangesReportsDeliveredPrefixOnFailure(t *testing.T) {
	rec := &ntfyRecorder{failFrom: 2}
	svc := newService(t, rec, 1)
	changes := []shift.Change{
		change(shift.ChangeAdded, "A", "", "Molly"),
		change(shift.ChangeAdded, "B", "", "Nora"),
		change(shift.ChangeAdded, "C", "", "Pat"),
	}
	delivered, err := svc.NotifyChanges(context.Background(), changes)
	if err == nil || !strings.Contains(err.Error(), "500") {
		t.Fatalf("expected ntfy 500 error, got %v", err)
	}
	if len(delivered) != 1 || delivered[0].NewPerson() != "Molly" {
		t.Fatalf("expected only first change delivered, got %+v", delivered)
	}
}

func TestNotifyCycleFailedIsHighPriority(t *testing.T) {
	rec := &ntfyRecorder{}
	svc := newService(t, rec, 20)
	if err := svc.NotifyCycleFailed(context.Background(), errors.New("login failed"), 3); err != nil {
		t.Fatalf("NotifyCycleFailed returned error: %v", err)
	}
	got := rec.messages[0]
	if got.priority != "high" || got.title != "Shiftsync - Refresh Failed" {
		t.Fatalf("unexpected headers %+v", got)
	}
	if !strings.HasPrefix(got.body, "Roster refresh failed after 3 attempts: login failed") {
		t.Fatalf("unexpected body %q", got.body)
	}
}
