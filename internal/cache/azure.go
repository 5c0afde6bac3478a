package cache

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// BlobCache stores entries as blobs in a single container. Expiry travels in
// the blob body since blob storage has no per-object TTL.
type BlobCache struct {
	containerClient *azblob.Client
	container       string
	now             func() time.Time
}

var _ Cache = (*BlobCache)(nil)

func NewBlobCache(accountName, accountKey, container string) (*BlobCache, error) {
	if accountName == "" {
		return nil, fmt.Errorf("AZURE_STORAGE_ACCOUNT_NAME could not be found")
	}
	if accountKey == "" {
		return nil, fmt.Errorf("AZURE_STORAGE_PRIMARY_ACCOUNT_KEY could not be found")
	}

	cred, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create shared key credential: %w", err)
	}

	// The service URL for blob endpoints is usually in the form: http(s)://<account>.blob.core.windows.net/
	client, err := azblob.NewClientWithSharedKeyCredential(fmt.Sprintf("https://%s.blob.core.windows.net/", accountName), cred, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob client: %w", err)
	}

	return &BlobCache{
		containerClient: client,
		container:       container,
		now:             time.Now,
	}, nil
}

func (fc *BlobCache) Get(ctx context.Context, key string) (io.ReadCloser, error) {
	stream, err := fc.containerClient.DownloadStream(ctx, fc.container, key, &azblob.DownloadStreamOptions{})
	if err != nil {
		if bloberror.HasCode(err, bloberror.BlobNotFound, bloberror.ContainerNotFound) {
			return nil, ErrNotFound
		}
		slog.ErrorContext(ctx, "failed to download blob", "key", key, "error", err)
		return nil, err
	}
	defer func() {
		_ = stream.Body.Close()
	}()

	data, err := io.ReadAll(stream.Body)
	if err != nil {
		return nil, fmt.Errorf("read blob %s: %w", key, err)
	}
	value, err := unwrap(data, fc.now())
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader([]byte(value))), nil
}

func (fc *BlobCache) Put(ctx context.Context, key, value string, opts PutOptions) error {
	data, err := wrap(value, opts.TTL, fc.now())
	if err != nil {
		return err
	}
	_, err = fc.containerClient.UploadStream(ctx, fc.container, key, bytes.NewReader(data), &azblob.UploadStreamOptions{})
	return err
}

func (fc *BlobCache) Delete(ctx context.Context, key string) error {
	_, err := fc.containerClient.DeleteBlob(ctx, fc.container, key, nil)
	if err != nil && bloberror.HasCode(err, bloberror.BlobNotFound) {
		return nil
	}
	return err
}

// Ready creates the container on first use.
func (fc *BlobCache) Ready(ctx context.Context) error {
	_, err := fc.containerClient.CreateContainer(ctx, fc.container, nil)
	if err != nil && !bloberror.HasCode(err, bloberror.ContainerAlreadyExists) {
		return fmt.Errorf("create container %s: %w", fc.container, err)
	}
	return nil
}
