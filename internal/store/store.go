// Package store writes rendered views to a directory on disk.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/MalithGihan/rabbitflow/internal/render"
	"github.com/MalithGihan/rabbitflow/pkg/types"
)

type FS struct{ Root string }

func New(root string) (*FS, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, err
	}
	return &FS{Root: root}, nil
}

func (s *FS) Path(name string) string { return filepath.Join(s.Root, name) }

// Save renders v in the format named by the extension of name and replaces
// the file in one rename, so readers never see a partial diagram.
func (s *FS) Save(name string, v types.View, opts render.Options) (string, error) {
	f := render.DetectFormat(filepath.Ext(name))
	if f == render.FormatUnknown {
		return "", fmt.Errorf("unsupported export format for %q", name)
	}

	tmp, err := os.CreateTemp(s.Root, "."+filepath.Base(name)+".*")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if err := render.Write(tmp, f, v, opts); err != nil {
		tmp.Close()
		return "", fmt.Errorf("render %s: %w", f, err)
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}

	dst := s.Path(name)
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return "", err
	}
	return dst, nil
}
