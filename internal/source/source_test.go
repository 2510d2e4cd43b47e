package source_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"shiftsync/internal/config"
	"shiftsync/internal/parser"
	"shiftsync/internal/services"
	"shiftsync/internal/shift"
	"shiftsync/internal/source"
	"shiftsync/internal/testsupport"
)

func TestCollectReadsSitesInOrder(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	sites := cfg.Source.Sites
	testsupport.WriteFile(t, filepath.Join(cfg.Source.Dir, sites[0].Path),
		testsupport.CalendarPage(sites[0].Name, "March 2025", map[int][]string{1: {"A 0700-1530: molly"}}))
	testsupport.WriteFile(t, filepath.Join(cfg.Source.Dir, sites[1].Path),
		testsupport.CalendarPage(sites[1].Name, "March 2025", map[int][]string{1: {"SJH A 0700-1530: MERJANIAN"}}))
	testsupport.WriteFile(t, filepath.Join(cfg.Source.Dir, sites[2].Path),
		testsupport.CalendarPage(sites[2].Name, "March 2025", map[int][]string{2: {"CHOC PA 1000-2000: GREEN"}}))

	fetcher, err := source.NewFetcher(cfg)
	if err != nil {
		t.Fatalf("NewFetcher returned error: %v", err)
	}
	records, results, err := source.Collect(context.Background(), fetcher, sites, source.NewLimiter(0), parser.Default())
	if err != nil {
		t.Fatalf("Collect returned error: %v", err)
	}
	if len(records) != 3 || len(results) != 3 {
		t.Fatalf("expected 3 records across 3 sites, got %d records, %d results", len(records), len(results))
	}
	roles := []shift.Role{records[0].Role, records[1].Role, records[2].Role}
	if roles[0] != shift.RoleScribe || roles[1] != shift.RolePhysician || roles[2] != shift.RoleMLP {
		t.Fatalf("unexpected roles %v", roles)
	}
}

func TestCollectEmptyResultIsError(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	site := cfg.Source.Sites[0]
	testsupport.WriteFile(t, filepath.Join(cfg.Source.Dir, site.Path),
		testsupport.CalendarPage(site.Name, "March 2025", map[int][]string{1: nil}))

	_, _, err := source.Collect(context.Background(), source.DirFetcher{Dir: cfg.Source.Dir}, []config.Site{site}, nil, nil)
	if !errors.Is(err, source.ErrEmptyResult) {
		t.Fatalf("expected ErrEmptyResult, got %v", err)
	}
	if !services.IsRetryable(err) {
		t.Fatal("expected empty result to be retryable")
	}
}

func TestCollectFailsWholeBatchOnMissingPage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := cfg.Source.Sites[0]
	testsupport.WriteFile(t, filepath.Join(cfg.Source.Dir, first.Path),
		testsupport.CalendarPage(first.Name, "March 2025", map[int][]string{1: {"A 0700-1530: molly"}}))

	records, _, err := source.Collect(context.Background(), source.DirFetcher{Dir: cfg.Source.Dir}, cfg.Source.Sites, nil, nil)
	if err == nil {
		t.Fatal("expected error when a site page is missing")
	}
	if records != nil {
		t.Fatalf("expected no partial records, got %d", len(records))
	}
}

func TestCollectTreatsLoginPageAsRejectedSession(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	site := cfg.Source.Sites[0]
	testsupport.WriteFile(t, filepath.Join(cfg.Source.Dir, site.Path), "<html><form>Sign in</form></html>")

	_, _, err := source.Collect(context.Background(), source.DirFetcher{Dir: cfg.Source.Dir}, []config.Site{site}, nil, nil)
	if !errors.Is(err, source.ErrSessionRejected) {
		t.Fatalf("expected ErrSessionRejected, got %v", err)
	}
}

func TestHTTPFetcherSendsCookie(t *testing.T) {
	var gotCookie, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotCookie = r.Header.Get("Cookie")
		gotPath = r.URL.Path
		_, _ = io.WriteString(w, "page")
	}))
	defer srv.Close()

	fetcher, err := source.NewHTTPFetcher(srv.URL+"/roster", "session=abc", time.Second)
	if err != nil {
		t.Fatalf("NewHTTPFetcher returned error: %v", err)
	}
	body, err := fetcher.Fetch(context.Background(), config.Site{Name: "Scribe", Path: "scribe.html"})
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	defer body.Close()
	data, _ := io.ReadAll(body)
	if string(data) != "page" {
		t.Fatalf("unexpected body %q", data)
	}
	if gotCookie != "session=abc" || gotPath != "/roster/scribe.html" {
		t.Fatalf("unexpected request cookie=%q path=%q", gotCookie, gotPath)
	}
}

func TestHTTPFetcherClassifiesStatus(t *testing.T) {
	status := http.StatusForbidden
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		_, _ = io.WriteString(w, "nope")
	}))
	defer srv.Close()

	fetcher, err := source.NewHTTPFetcher(srv.URL, "", time.Second)
	if err != nil {
		t.Fatalf("NewHTTPFetcher returned error: %v", err)
	}
	site := config.Site{Name: "Scribe", Path: "scribe.html"}
	if _, err := fetcher.Fetch(context.Background(), site); !errors.Is(err, source.ErrSessionRejected) {
		t.Fatalf("expected ErrSessionRejected for 403, got %v", err)
	}

	status = http.StatusBadGateway
	_, err = fetcher.Fetch(context.Background(), site)
	if !errors.Is(err, services.ErrTransient) || !strings.Contains(err.Error(), "502") {
		t.Fatalf("expected transient 502 error, got %v", err)
	}
}

func TestNewHTTPFetcherRejectsRelativeURL(t *testing.T) {
	if _, err := source.NewHTTPFetcher("roster.local", "", 0); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
