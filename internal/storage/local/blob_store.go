// Package local mirrors showcase images into a directory on disk, such as a
// static site's asset folder.
package local

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Config captures the parameters for the local mirror.
type Config struct {
	// Dir is the root directory receiving mirrored showcases.
	Dir string
	// Prefix is joined in front of every object name.
	Prefix string
}

// BlobStore copies showcases below a base directory.
type BlobStore struct {
	dir    string
	prefix string
}

// New creates the base directory if needed and checks it is writable.
func New(cfg Config) (*BlobStore, error) {
	if strings.TrimSpace(cfg.Dir) == "" {
		return nil, fmt.Errorf("mirror directory is required")
	}

	info, err := os.Stat(cfg.Dir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.Dir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create mirror directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat mirror directory: %w", err)
	case !info.IsDir():
		return nil, fmt.Errorf("mirror path %s is not a directory", cfg.Dir)
	}

	probe, err := os.CreateTemp(cfg.Dir, ".writable-*")
	if err != nil {
		return nil, fmt.Errorf("mirror directory is not writable: %w", err)
	}
	_ = probe.Close()
	if err := os.Remove(probe.Name()); err != nil {
		return nil, fmt.Errorf("remove write probe: %w", err)
	}

	return &BlobStore{dir: filepath.Clean(cfg.Dir), prefix: strings.Trim(cfg.Prefix, "/")}, nil
}

// PutObject streams data to dir/prefix/name through a temporary file and
// returns a file:// URI. Names escaping the base directory are rejected.
func (s *BlobStore) PutObject(_ context.Context, name string, _ string, data io.Reader) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("object name is required")
	}

	fullPath := filepath.Join(s.dir, filepath.FromSlash(path.Join(s.prefix, name)))
	if !strings.HasPrefix(fullPath, s.dir+string(filepath.Separator)) {
		return "", fmt.Errorf("object name %q escapes mirror directory", name)
	}
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o750); err != nil {
		return "", fmt.Errorf("create parent directories: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(fullPath), ".mirror-*")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, data); err != nil {
		_ = tmp.Close()
		return "", fmt.Errorf("write %s: %w", fullPath, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil { //nolint:gosec // showcase images are public assets
		return "", fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), fullPath); err != nil {
		return "", fmt.Errorf("rename into %s: %w", fullPath, err)
	}

	return "file://" + filepath.ToSlash(fullPath), nil
}
