package logs

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Options selects which lines Last returns.
type Options struct {
	// Lines is the maximum number of lines returned; <= 0 returns none.
	Lines int
	// Match keeps only lines containing it, case-insensitively. A cycle ID
	// or event type narrows the output to one refresh.
	Match string
}

const (
	scanBuffer = 64 * 1024
	maxLine    = 1024 * 1024
	pollEvery  = time.Second
)

func matcher(match string) func(string) bool {
	needle := strings.ToLower(strings.TrimSpace(match))
	if needle == "" {
		return func(string) bool { return true }
	}
	return func(line string) bool {
		return strings.Contains(strings.ToLower(line), needle)
	}
}

// Last returns up to opts.Lines matching lines from the end of path plus the
// end-of-file offset for a later Follow. A missing file yields no lines.
func Last(path string, opts Options) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("log path %q is a directory", path)
	}
	if opts.Lines <= 0 {
		return nil, info.Size(), nil
	}

	keep := matcher(opts.Match)
	ring := make([]string, opts.Lines)
	count, next := 0, 0
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, scanBuffer), maxLine)
	for scanner.Scan() {
		line := scanner.Text()
		if !keep(line) {
			continue
		}
		ring[next] = line
		next = (next + 1) % opts.Lines
		if count < opts.Lines {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}
	offset, err := file.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, 0, fmt.Errorf("determine log offset: %w", err)
	}

	lines := make([]string, count)
	if count == opts.Lines {
		for i := range lines {
			lines[i] = ring[(next+i)%opts.Lines]
		}
	} else {
		copy(lines, ring[:count])
	}
	return lines, offset, nil
}

// readFrom returns complete lines written after offset and the offset just
// past the last newline. A partial trailing line is left for the next read.
func readFrom(path string, offset int64) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, offset, fmt.Errorf("stat log file: %w", err)
	}
	if offset > info.Size() {
		// Truncated or replaced: start over.
		offset = 0
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("seek log file: %w", err)
	}

	reader := bufio.NewReaderSize(file, scanBuffer)
	var lines []string
	for {
		line, err := reader.ReadString('\n')
		if err == io.EOF {
			return lines, offset, nil
		}
		if err != nil {
			return lines, offset, fmt.Errorf("read log file: %w", err)
		}
		offset += int64(len(line))
		lines = append(lines, strings.TrimRight(line, "\r\n"))
	}
}

// Follow calls onLine for each matching line appended to path after offset
// until ctx ends. It returns nil on cancellation.
func Follow(ctx context.Context, path string, offset int64, match string, onLine func(string)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create log watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch log directory: %w", err)
	}

	keep := matcher(match)
	drain := func() error {
		lines, next, err := readFrom(path, offset)
		offset = next
		for _, line := range lines {
			if keep(line) {
				onLine(line)
			}
		}
		return err
	}

	// Rotation can miss events, so poll as well.
	ticker := time.NewTicker(pollEvery)
	defer ticker.Stop()

	if err := drain(); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Base(event.Name) != filepath.Base(path) {
				continue
			}
			if err := drain(); err != nil {
				return err
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch log file: %w", err)
		case <-ticker.C:
			if err := drain(); err != nil {
				return err
			}
		}
	}
}
