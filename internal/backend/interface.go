package backend

import (
	"context"

	"finances/internal/ports"
	"finances/internal/uploads"
)

// CleanupFunc represents a cleanup function for resources
type CleanupFunc func() error

// BackendResult holds the storage and upload backends plus their cleanup
type BackendResult struct {
	Repository ports.Repository
	Uploads    uploads.Source
	Cleanup    CleanupFunc
}

// Factory creates backends based on configuration
type Factory interface {
	CreateBackend(ctx context.Context, config Config) (*BackendResult, error)
}

// Config holds configuration for backend creation
type Config struct {
	Type BackendType

	// SQLite specific
	SQLiteDBPath string

	// Memory backend specific
	DataDirectory string

	Uploads UploadConfig
}

// UploadConfig selects where uploaded CSV files are kept
type UploadConfig struct {
	Type           UploadType
	Directory      string
	BlobServiceURL string
	BlobContainer  string
}

// BackendType represents the type of storage backend
type BackendType string

const (
	SQLiteBackend BackendType = "sqlite"
	MemoryBackend BackendType = "memory"
)

func (bt BackendType) String() string {
	return string(bt)
}

// IsValid returns true if the backend type is valid
func (bt BackendType) IsValid() bool {
	switch bt {
	case SQLiteBackend, MemoryBackend:
		return true
	default:
		return false
	}
}

// UploadType represents the type of upload source
type UploadType string

const (
	LocalUploads UploadType = "local"
	BlobUploads  UploadType = "azblob"
)

func (ut UploadType) IsValid() bool {
	return ut == LocalUploads || ut == BlobUploads
}
