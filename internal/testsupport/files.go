package testsupport

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// WriteFile writes content to path, creating parent directories.
func WriteFile(t testing.TB, path, content string) {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// CalendarPage renders a minimal roster month page. days maps a day number
// to the raw fragments shown in that day's cell.
func CalendarPage(title, month string, days map[int][]string) string {
	keys := make([]int, 0, len(days))
	for day := range days {
		keys = append(keys, day)
	}
	sort.Ints(keys)

	var b strings.Builder
	fmt.Fprintf(&b, "<html><body>\n<div style=\"font-weight:bold;font-size:16px\">%s &ndash; %s</div>\n<table><tr>\n", title, month)
	for _, day := range keys {
		fmt.Fprintf(&b, "<td style=\"vertical-align:text-top\"><div style=\"font-size:12px\">%d</div>", day)
		for _, fragment := range days[day] {
			fmt.Fprintf(&b, "<span>%s</span><br>", fragment)
		}
		b.WriteString("</td>\n")
	}
	b.WriteString("</tr></table>\n</body></html>\n")
	return b.String()
}
