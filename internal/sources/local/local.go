// Package local reads incoming datasets from the file system: either a single
// report file or the newest report in a drop directory.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/agentstation/pubmap/internal/attachment"
	"github.com/agentstation/pubmap/pkg/errors"
	"github.com/agentstation/pubmap/pkg/sources"
)

// Source loads a dataset from a file or directory.
type Source struct {
	path string
}

var _ sources.Source = (*Source)(nil)

// New creates a new local source for path.
func New(path string) *Source {
	return &Source{path: path}
}

// ID returns the kind of this source.
func (s *Source) ID() sources.ID {
	return sources.LocalID
}

// Fetch parses the file, or the most recently modified report in the directory.
// The dataset ID changes whenever the file is rewritten.
func (s *Source) Fetch(ctx context.Context) (*sources.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	path, info, err := s.resolve()
	if err != nil {
		return nil, err
	}

	tbl, err := attachment.ParseFile(path)
	if err != nil {
		return nil, err
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return &sources.Dataset{
		ID:         fmt.Sprintf("%s@%d", abs, info.ModTime().UnixNano()),
		Name:       filepath.Base(path),
		ReceivedAt: info.ModTime(),
		Path:       abs,
		Table:      tbl,
	}, nil
}

func (s *Source) resolve() (string, os.FileInfo, error) {
	info, err := os.Stat(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil, sources.ErrNoDataset
		}
		return "", nil, errors.WrapIO("stat", s.path, err)
	}
	if !info.IsDir() {
		return s.path, info, nil
	}

	entries, err := os.ReadDir(s.path)
	if err != nil {
		return "", nil, errors.WrapIO("read", s.path, err)
	}
	var (
		newest     string
		newestInfo os.FileInfo
	)
	for _, entry := range entries {
		if entry.IsDir() || !attachment.Supported(entry.Name()) {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			continue
		}
		if newestInfo == nil || fi.ModTime().After(newestInfo.ModTime()) {
			newest, newestInfo = filepath.Join(s.path, entry.Name()), fi
		}
	}
	if newestInfo == nil {
		return "", nil, sources.ErrNoDataset
	}
	return newest, newestInfo, nil
}

// Cleanup releases any resources.
func (s *Source) Cleanup() error {
	return nil
}
