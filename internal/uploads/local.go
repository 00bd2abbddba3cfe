package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

// LocalSource keeps uploads as files in one directory.
type LocalSource struct {
	dir string
}

func NewLocalSource(dir string) (*LocalSource, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}
	return &LocalSource{dir: dir}, nil
}

func (s *LocalSource) Dir() string { return s.dir }

func (s *LocalSource) path(name string) (string, error) {
	name, err := cleanName(name)
	if err != nil {
		return "", err
	}
	return filepath.Join(s.dir, name), nil
}

func (s *LocalSource) Save(ctx context.Context, name string, r io.Reader) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	f, err := os.Create(p)
	if err != nil {
		return fmt.Errorf("create upload %s: %w", name, err)
	}
	n, err := io.Copy(f, r)
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(p)
		return fmt.Errorf("write upload %s: %w", name, err)
	}
	slog.InfoContext(ctx, "Upload saved", "name", name, "dir", s.dir, "size_bytes", n)
	return nil
}

func (s *LocalSource) Open(_ context.Context, name string) (io.ReadCloser, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("open upload %s: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open upload %s: %w", name, err)
	}
	return f, nil
}

func (s *LocalSource) Delete(ctx context.Context, name string) error {
	p, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("delete upload %s: %w", name, ErrNotFound)
		}
		return fmt.Errorf("delete upload %s: %w", name, err)
	}
	slog.InfoContext(ctx, "Upload deleted", "name", name, "dir", s.dir)
	return nil
}
