// Package gcs wraps Google Cloud Storage behind a small object-store
// interface so the export worker can be tested without a real bucket.
package gcs

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/storage"
)

// ObjectStore is the storage surface the export pipeline needs: write the
// finished file and hand out a time-limited download link.
type ObjectStore interface {
	// Upload writes data to the named object, overwriting any previous
	// content.
	Upload(ctx context.Context, objectName, contentType string, data []byte) error

	// SignedURL returns a V4-signed GET URL for the named object, valid for
	// the given duration.
	SignedURL(objectName string, expiry time.Duration) (string, error)
}

// Client is the GCS-backed ObjectStore for a single bucket.
// It assumes Application Default Credentials are configured.
type Client struct {
	client *storage.Client
	bucket string
}

// NewClient creates a storage client bound to one bucket.
func NewClient(ctx context.Context, bucket string) (*Client, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("create storage client: %w", err)
	}
	return &Client{client: client, bucket: bucket}, nil
}

// Upload writes data to the object and finalizes it.
func (c *Client) Upload(ctx context.Context, objectName, contentType string, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	w := c.client.Bucket(c.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("write object %q: %w", objectName, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalize upload %q: %w", objectName, err)
	}
	return nil
}

// SignedURL generates a V4-signed GET URL for the object.
func (c *Client) SignedURL(objectName string, expiry time.Duration) (string, error) {
	opts := &storage.SignedURLOptions{
		Method:  "GET",
		Expires: time.Now().Add(expiry),
		Scheme:  storage.SigningSchemeV4,
	}

	url, err := c.client.Bucket(c.bucket).SignedURL(objectName, opts)
	if err != nil {
		return "", fmt.Errorf("sign URL for %q: %w", objectName, err)
	}
	return url, nil
}

// Close releases the underlying storage client.
func (c *Client) Close() error {
	return c.client.Close()
}

var _ ObjectStore = (*Client)(nil)
