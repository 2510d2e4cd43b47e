package display

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"shiftsync/internal/fileutil"
)

// ErrTargetGone means the target no longer exists and should be dropped.
var ErrTargetGone = errors.New("display target is gone")

// Target receives rendered views.
type Target interface {
	ID() string
	Render(ctx context.Context, view View) error
}

// FileTarget writes the text view to a file. The parent directory must
// already exist; if it is removed the target reports ErrTargetGone.
type FileTarget struct {
	Path string
}

func (f FileTarget) ID() string { return f.Path }

func (f FileTarget) Render(ctx context.Context, view View) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir := filepath.Dir(f.Path)
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrTargetGone, dir)
	}

	var buf bytes.Buffer
	if err := WriteText(&buf, view); err != nil {
		return err
	}
	if err := fileutil.WriteFileAtomic(f.Path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write view: %w", err)
	}
	return nil
}
