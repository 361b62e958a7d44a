package receipt

import (
	"context"
	"fmt"

	gcsstorage "cloud.google.com/go/storage"
)

// Archive keeps the original bytes of uploaded receipts.
type Archive interface {
	Put(ctx context.Context, name, contentType string, data []byte) (url string, err error)
}

// GCSArchive stores receipts as objects in a Cloud Storage bucket.
type GCSArchive struct {
	bucket *gcsstorage.BucketHandle
	name   string
}

// NewGCSArchive opens a Cloud Storage client using application default
// credentials. The returned close function releases the client.
func NewGCSArchive(ctx context.Context, bucket string) (*GCSArchive, func() error, error) {
	client, err := gcsstorage.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("create storage client: %w", err)
	}
	return &GCSArchive{bucket: client.Bucket(bucket), name: bucket}, client.Close, nil
}

func (a *GCSArchive) Put(ctx context.Context, name, contentType string, data []byte) (string, error) {
	w := a.bucket.Object(name).NewWriter(ctx)
	w.ContentType = contentType
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return "", fmt.Errorf("write object %s: %w", name, err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close object %s: %w", name, err)
	}
	return fmt.Sprintf("gs://%s/%s", a.name, name), nil
}
