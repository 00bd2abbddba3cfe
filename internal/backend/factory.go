package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"finances/internal/log"
	"finances/internal/ports"
	"finances/internal/storage"
	"finances/internal/storage/memory"
	"finances/internal/uploads"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger.With(log.FieldComponent, log.ComponentBackend),
	}
}

// CreateBackend opens the repository and the upload source described by
// config.
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	repo, err := f.createRepository(config)
	if err != nil {
		return nil, err
	}

	src, err := f.createUploads(ctx, config.Uploads)
	if err != nil {
		if closeErr := repo.Close(); closeErr != nil {
			err = errors.Join(err, closeErr)
		}
		return nil, err
	}

	return &BackendResult{
		Repository: repo,
		Uploads:    src,
		Cleanup:    repo.Close,
	}, nil
}

func (f *DefaultFactory) createRepository(config Config) (ports.Repository, error) {
	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)
		return repo, nil
	case MemoryBackend:
		store := memory.NewFromFiles(config.DataDirectory)
		f.logger.Info("Initialized memory backend", "data_directory", config.DataDirectory)
		return store, nil
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
}

func (f *DefaultFactory) createUploads(ctx context.Context, config UploadConfig) (uploads.Source, error) {
	switch config.Type {
	case LocalUploads:
		src, err := uploads.NewLocalSource(config.Directory)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize local uploads: %w", err)
		}
		f.logger.Info("Initialized local uploads", "directory", config.Directory)
		return src, nil
	case BlobUploads:
		src, err := uploads.NewBlobSource(ctx, config.BlobServiceURL, config.BlobContainer)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize blob uploads: %w", err)
		}
		return src, nil
	default:
		return nil, fmt.Errorf("unsupported upload type: %s", config.Type)
	}
}
