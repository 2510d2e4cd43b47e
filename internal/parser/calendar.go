package parser

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"golang.org/x/net/html"

	"shiftsync/internal/shift"
)

var (
	// ErrMissingHeader means the page has no month header; usually a login or
	// error page was served instead of the roster.
	ErrMissingHeader = errors.New("calendar header not found")
	// ErrUnknownMonth means the header did not contain a recognisable month.
	ErrUnknownMonth = errors.New("calendar month not recognised")
)

var (
	monthYearRE = regexp.MustCompile(`([A-Za-z]+)\s+(\d{4})`)
	slashDateRE = regexp.MustCompile(`\((\d{2})/(\d{2})/(\d{4})`)
)

// CalendarStats summarises what a page contained.
type CalendarStats struct {
	Month     time.Time
	Cells     int
	Fragments int
	Skipped   int
}

// ParseCalendar extracts every shift on one roster month page. The role of
// each record is derived from the site name. Open slots and impossible dates
// are skipped and counted in Skipped.
func (p *Parser) ParseCalendar(r io.Reader, site string) ([]shift.Record, CalendarStats, error) {
	var stats CalendarStats
	doc, err := html.Parse(r)
	if err != nil {
		return nil, stats, fmt.Errorf("parse calendar html: %w", err)
	}

	header := findFirst(doc, func(n *html.Node) bool {
		return isElement(n, "div") && styleHas(n, "font-weight:bold") && styleHas(n, "font-size:16px")
	})
	if header == nil {
		return nil, stats, ErrMissingHeader
	}
	month, err := MonthFromHeader(textContent(header))
	if err != nil {
		return nil, stats, err
	}
	stats.Month = month

	role := shift.RoleFromSite(site)
	var records []shift.Record
	for _, cell := range findAll(doc, func(n *html.Node) bool {
		return isElement(n, "td") && styleHas(n, "vertical-align:text-top")
	}) {
		day, ok := dayNumber(cell)
		if !ok {
			continue
		}
		stats.Cells++
		date := time.Date(month.Year(), month.Month(), day, 0, 0, 0, 0, time.UTC)
		spans := spansOf(cell)
		if date.Month() != month.Month() {
			stats.Skipped += len(spans)
			continue
		}
		for _, span := range spans {
			text := textContent(span)
			if text == "" {
				continue
			}
			stats.Fragments++
			res := p.Parse(text)
			if res.Person == shift.EmptyPerson {
				stats.Skipped++
				continue
			}
			records = append(records, shift.Record{
				Date:   date.Format(shift.DateLayout),
				Label:  strings.TrimSpace(res.Label),
				Time:   strings.TrimSpace(res.Time),
				Person: res.Person,
				Role:   role,
				Site:   site,
			})
		}
	}
	return records, stats, nil
}

// ParseCalendar runs the default parser over a calendar page.
func ParseCalendar(r io.Reader, site string) ([]shift.Record, CalendarStats, error) {
	return defaultParser.ParseCalendar(r, site)
}

// MonthFromHeader returns the first day of the month named in a calendar
// header. "March 2025", "Mar 2025", and "(03/15/2025 - ...)" are accepted.
func MonthFromHeader(header string) (time.Time, error) {
	for _, m := range monthYearRE.FindAllStringSubmatch(header, -1) {
		for _, layout := range []string{"January 2006", "Jan 2006"} {
			if t, err := time.Parse(layout, titleWord(m[1])+" "+m[2]); err == nil {
				return t, nil
			}
		}
	}
	if m := slashDateRE.FindStringSubmatch(header); m != nil {
		month, _ := strconv.Atoi(m[1])
		year, _ := strconv.Atoi(m[3])
		if month >= 1 && month <= 12 {
			return time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrUnknownMonth, header)
}

func titleWord(word string) string {
	if word == "" {
		return word
	}
	return strings.ToUpper(word[:1]) + strings.ToLower(word[1:])
}

func dayNumber(cell *html.Node) (int, bool) {
	div := findFirst(cell, func(n *html.Node) bool {
		return isElement(n, "div") && styleHas(n, "font-size:12px")
	})
	if div == nil {
		return 0, false
	}
	day, err := strconv.Atoi(textContent(div))
	if err != nil || day < 1 || day > 31 {
		return 0, false
	}
	return day, true
}

// spansOf returns the outermost spans in a day cell, ignoring anything inside
// <pre> notes.
func spansOf(cell *html.Node) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			switch {
			case isElement(c, "pre"):
				continue
			case isElement(c, "span"):
				out = append(out, c)
			default:
				walk(c)
			}
		}
	}
	walk(cell)
	return out
}

func isElement(n *html.Node, tag string) bool {
	return n.Type == html.ElementNode && n.Data == tag
}

func findFirst(n *html.Node, pred func(*html.Node) bool) *html.Node {
	if pred(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, pred); found != nil {
			return found
		}
	}
	return nil
}

func findAll(n *html.Node, pred func(*html.Node) bool) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if pred(n) {
			out = append(out, n)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func textContent(n *html.Node) string {
	var parts []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			if text := strings.TrimSpace(n.Data); text != "" {
				parts = append(parts, text)
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return strings.Join(parts, " ")
}

func getAttr(n *html.Node, key string) string {
	for _, attr := range n.Attr {
		if attr.Key == key {
			return attr.Val
		}
	}
	return ""
}

// styleHas compares inline styles with whitespace removed and case folded,
// so "font-weight: bold" matches "font-weight:bold".
func styleHas(n *html.Node, declaration string) bool {
	style := getAttr(n, "style")
	if style == "" {
		return false
	}
	return strings.Contains(compact(style), compact(declaration))
}

func compact(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), ""))
}
