package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"shiftsync/internal/config"
	"shiftsync/internal/logging"
	"shiftsync/internal/parser"
	"shiftsync/internal/services"
	"shiftsync/internal/shift"
)

// ErrEmptyResult means every site parsed but no shifts were found, which
// usually indicates an expired session serving blank pages.
var ErrEmptyResult = errors.New("roster returned no shifts")

// SiteResult summarises one fetched page.
type SiteResult struct {
	Site    config.Site
	Records int
	Stats   parser.CalendarStats
}

// NewLimiter paces site fetches at one per delay. A non-positive delay
// disables pacing.
func NewLimiter(delay time.Duration) *rate.Limiter {
	if delay <= 0 {
		return rate.NewLimiter(rate.Inf, 1)
	}
	return rate.NewLimiter(rate.Every(delay), 1)
}

// Collector fetches and parses every configured site in order.
type Collector struct {
	Fetcher Fetcher
	Parser  *parser.Parser
	Limiter *rate.Limiter
	Logger  *slog.Logger
}

// Collect is a convenience wrapper around Collector.
func Collect(ctx context.Context, fetcher Fetcher, sites []config.Site, limiter *rate.Limiter, p *parser.Parser) ([]shift.Record, []SiteResult, error) {
	c := Collector{Fetcher: fetcher, Parser: p, Limiter: limiter}
	return c.Collect(ctx, sites)
}

// Collect fetches sites sequentially. Any site failure aborts the whole
// collection; zero records overall returns ErrEmptyResult.
func (c Collector) Collect(ctx context.Context, sites []config.Site) ([]shift.Record, []SiteResult, error) {
	p := c.Parser
	if p == nil {
		p = parser.Default()
	}
	limiter := c.Limiter
	if limiter == nil {
		limiter = NewLimiter(0)
	}
	logger := logging.NewComponentLogger(c.Logger, "source")

	var records []shift.Record
	results := make([]SiteResult, 0, len(sites))
	for _, site := range sites {
		if err := limiter.Wait(ctx); err != nil {
			return nil, results, err
		}
		siteCtx := services.WithSite(ctx, site.Name)
		recs, stats, err := c.fetchSite(siteCtx, p, site)
		if err != nil {
			return nil, results, err
		}
		records = append(records, recs...)
		results = append(results, SiteResult{Site: site, Records: len(recs), Stats: stats})
		logging.WithContext(siteCtx, logger).Debug("site collected",
			logging.String("site_id", site.ID),
			logging.Int("records", len(recs)),
			logging.Int("cells", stats.Cells),
			logging.Int("skipped", stats.Skipped),
		)
	}
	if len(records) == 0 {
		return nil, results, services.Wrap(services.ErrTransient, "source", "collect", "", ErrEmptyResult)
	}
	return records, results, nil
}

func (c Collector) fetchSite(ctx context.Context, p *parser.Parser, site config.Site) ([]shift.Record, parser.CalendarStats, error) {
	body, err := c.Fetcher.Fetch(ctx, site)
	if err != nil {
		return nil, parser.CalendarStats{}, fmt.Errorf("fetch %s: %w", site.Name, err)
	}
	defer body.Close()
	recs, stats, err := p.ParseCalendar(body, site.Name)
	if err != nil {
		if errors.Is(err, parser.ErrMissingHeader) {
			// A page without a calendar header is almost always a login page.
			return nil, stats, fmt.Errorf("parse %s: %w: %w", site.Name, ErrSessionRejected, err)
		}
		return nil, stats, fmt.Errorf("parse %s: %w", site.Name, err)
	}
	return recs, stats, nil
}
