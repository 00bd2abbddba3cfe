package backend

import (
	"fmt"

	"finances/internal/config"
)

// FromAppConfig converts the application config to backend config
func FromAppConfig(appConfig *config.Config) (Config, error) {
	if appConfig == nil {
		return Config{}, fmt.Errorf("app config is nil")
	}

	backendType := BackendType(appConfig.DataBackend)
	if !backendType.IsValid() {
		return Config{}, fmt.Errorf("invalid backend type in config: %s", appConfig.DataBackend)
	}

	dataDir := appConfig.DataDir
	if dataDir == "" {
		dataDir = "data"
	}

	return Config{
		Type:          backendType,
		SQLiteDBPath:  appConfig.SQLiteDBPath,
		DataDirectory: dataDir,
		Uploads: UploadConfig{
			Type:           UploadType(appConfig.UploadBackend),
			Directory:      appConfig.UploadDir,
			BlobServiceURL: appConfig.BlobServiceURL,
			BlobContainer:  appConfig.BlobContainer,
		},
	}, nil
}

// Validate validates the backend configuration
func (c Config) Validate() error {
	if !c.Type.IsValid() {
		return fmt.Errorf("invalid backend type: %s", c.Type)
	}
	if c.Type == SQLiteBackend && c.SQLiteDBPath == "" {
		return fmt.Errorf("SQLite database path is required for sqlite backend")
	}

	switch c.Uploads.Type {
	case LocalUploads:
		if c.Uploads.Directory == "" {
			return fmt.Errorf("upload directory is required for local uploads")
		}
	case BlobUploads:
		if c.Uploads.BlobServiceURL == "" || c.Uploads.BlobContainer == "" {
			return fmt.Errorf("blob service URL and container are required for azblob uploads")
		}
	default:
		return fmt.Errorf("invalid upload type: %s", c.Uploads.Type)
	}
	return nil
}

// GetBackendTypeStrings returns all valid backend type strings
func GetBackendTypeStrings() []string {
	return []string{SQLiteBackend.String(), MemoryBackend.String()}
}
