package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when no upload exists under the given name.
var ErrNotFound = errors.New("upload not found")

// Source stores uploaded files under a name and hands them back as streams.
type Source interface {
	Save(ctx context.Context, name string, r io.Reader) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
}

// NewName builds a collision-free upload name that keeps the original base
// name for readability.
func NewName(original string) string {
	base := filepath.Base(strings.ReplaceAll(original, "\\", "/"))
	if base == "." || base == "/" || base == "" {
		base = "upload.csv"
	}
	return fmt.Sprintf("%s-%s-%s", time.Now().UTC().Format("20060102-150405"), uuid.NewString()[:8], base)
}

// cleanName rejects names that would escape the upload root.
func cleanName(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
		return "", fmt.Errorf("invalid upload name %q", name)
	}
	return name, nil
}
