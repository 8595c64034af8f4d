// Package artifacts persists rendered charts: short-lived PNG files for
// delivery and an optional long-term copy in S3-compatible storage.
package artifacts

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"salesbot/internal/charts"
)

// Artifact is a chart written to disk. The caller that saved it owns the
// file and must call Remove once the chart has been delivered.
type Artifact struct {
	Name    string
	Path    string
	Session string
	Size    int
}

// Remove deletes the file. Removing an already removed artifact is not an
// error.
func (a *Artifact) Remove() error {
	if err := os.Remove(a.Path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", a.Name, err)
	}
	return nil
}

type FileStore struct {
	dir    string
	logger *slog.Logger
}

func NewFileStore(dir string, logger *slog.Logger) (*FileStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create chart directory: %w", err)
	}
	return &FileStore{
		dir:    dir,
		logger: logger,
	}, nil
}

func (s *FileStore) Dir() string {
	return s.dir
}

// Save writes chart under a name unique to this call, so concurrent
// sessions asking for the same chart never share a file.
func (s *FileStore) Save(ctx context.Context, chart *charts.Chart, sessionID string) (*Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	name := FileName(chart, sessionID)
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, chart.PNG, 0o600); err != nil {
		return nil, fmt.Errorf("write chart %s: %w", name, err)
	}

	s.logger.Debug("chart saved", "file", name, "bytes", len(chart.PNG))
	return &Artifact{
		Name:    name,
		Path:    path,
		Session: sessionID,
		Size:    len(chart.PNG),
	}, nil
}

// FileName builds <kind>_<period>_<session>_<uuid>.png. Charts that are not
// scoped to a period use "all".
func FileName(chart *charts.Chart, sessionID string) string {
	period := chart.Period
	if period == "" {
		period = "all"
	}
	return fmt.Sprintf("%s_%s_%s_%s.png",
		chart.Kind,
		sanitize(period),
		sanitize(sessionID),
		uuid.NewString(),
	)
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			return r
		default:
			return '-'
		}
	}, s)
}
