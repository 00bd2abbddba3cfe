package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

const (
	// Well-known Azurite development account
	azuriteAccountName = "devstoreaccount1"
	azuriteAccountKey  = "Eby8vdM02xNOcqFlqUwJPLlmEtlCDXJ1OUzFT50uSRZ6IFsuFq2UVErCz4I6tq/K1SZFPTOtr/KBHBeksoGMGw=="
)

// BlobSource keeps uploads as blobs in one Azure Storage container.
type BlobSource struct {
	client    *azblob.Client
	container string
}

// NewBlobSource connects to serviceURL. Plain http URLs are treated as a local
// Azurite emulator and use its shared key; anything else authenticates with
// DefaultAzureCredential.
func NewBlobSource(ctx context.Context, serviceURL, container string) (*BlobSource, error) {
	if serviceURL == "" {
		return nil, errors.New("blob service URL is required")
	}

	var client *azblob.Client
	if isLocal(serviceURL) {
		slog.InfoContext(ctx, "Using Azurite shared key credentials for blob uploads", "blob_url", serviceURL)
		cred, err := azblob.NewSharedKeyCredential(azuriteAccountName, azuriteAccountKey)
		if err != nil {
			return nil, fmt.Errorf("create shared key credential: %w", err)
		}
		client, err = azblob.NewClientWithSharedKeyCredential(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("create blob client with shared key: %w", err)
		}
	} else {
		cred, err := newDefaultAzureCredential()
		if err != nil {
			return nil, fmt.Errorf("create default azure credential: %w", err)
		}
		client, err = azblob.NewClient(serviceURL, cred, nil)
		if err != nil {
			return nil, fmt.Errorf("create blob client: %w", err)
		}
	}

	if _, err := client.CreateContainer(ctx, container, nil); err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		slog.WarnContext(ctx, "Failed to create upload container (may already exist)", "container", container, "error", err)
	}

	slog.InfoContext(ctx, "Blob upload source initialized", "container", container)
	return &BlobSource{client: client, container: container}, nil
}

func (s *BlobSource) Save(ctx context.Context, name string, r io.Reader) error {
	if _, err := cleanName(name); err != nil {
		return err
	}
	if _, err := s.client.UploadStream(ctx, s.container, name, r, nil); err != nil {
		return fmt.Errorf("upload blob %s/%s: %w", s.container, name, err)
	}
	slog.InfoContext(ctx, "Upload saved", "name", name, "container", s.container)
	return nil
}

func (s *BlobSource) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	resp, err := s.client.DownloadStream(ctx, s.container, name, nil)
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return nil, fmt.Errorf("download blob %s/%s: %w", s.container, name, ErrNotFound)
		}
		return nil, fmt.Errorf("download blob %s/%s: %w", s.container, name, err)
	}
	return resp.Body, nil
}

func (s *BlobSource) Delete(ctx context.Context, name string) error {
	if _, err := s.client.DeleteBlob(ctx, s.container, name, nil); err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound) {
			return fmt.Errorf("delete blob %s/%s: %w", s.container, name, ErrNotFound)
		}
		return fmt.Errorf("delete blob %s/%s: %w", s.container, name, err)
	}
	slog.InfoContext(ctx, "Upload deleted", "name", name, "container", s.container)
	return nil
}

// isLocal reports whether the service URL points at a local emulator.
func isLocal(serviceURL string) bool {
	return strings.HasPrefix(serviceURL, "http://")
}

func newDefaultAzureCredential() (azcore.TokenCredential, error) {
	return azidentity.NewDefaultAzureCredential(nil)
}
