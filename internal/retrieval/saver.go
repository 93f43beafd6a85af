package retrieval

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Saver materializes a downloaded stream under a local filename.
type Saver interface {
	Save(ctx context.Context, filename string, r io.Reader) (path string, n int64, err error)
}

// LocalDir saves files into one directory. A file only appears under its final
// name once fully written.
type LocalDir struct {
	dir string
}

// NewLocalDir creates a LocalDir, creating dir if needed.
func NewLocalDir(dir string) (*LocalDir, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create download dir: %w", err)
	}
	return &LocalDir{dir: dir}, nil
}

// Save writes r to dir/filename, replacing an existing file of that name.
func (l *LocalDir) Save(ctx context.Context, filename string, r io.Reader) (string, int64, error) {
	name := filepath.Base(filepath.Clean("/" + filename))
	if name == "/" || name == "." {
		return "", 0, errors.New("save: empty filename")
	}
	path := filepath.Join(l.dir, name)

	tmp, err := os.CreateTemp(l.dir, "."+name+".*.part")
	if err != nil {
		return "", 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	n, err := io.Copy(tmp, contextReader{ctx: ctx, r: r})
	if err != nil {
		_ = tmp.Close()
		return "", n, fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", n, fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", n, fmt.Errorf("move %s into place: %w", name, err)
	}
	return path, n, nil
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
