// Package objectstore moves opaque byte blobs to and from an object store,
// retrying uploads with exponential backoff and handing out presigned links.
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

var (
	// ErrObjectNotFound is returned by Get when the key does not exist.
	ErrObjectNotFound = errors.New("object not found")
	// ErrUploadFailed wraps the last error once every upload attempt failed.
	ErrUploadFailed = errors.New("object upload failed")
	// ErrInvalidURL is returned by Fetch when no key can be read from the URL.
	ErrInvalidURL = errors.New("invalid object url")
)

// Store is the raw object store. Implementations do not retry.
type Store interface {
	Put(ctx context.Context, data []byte, key, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Presign(ctx context.Context, key string, ttl time.Duration) (string, error)
	Bucket() string
}

// Artifact is a stored object: a time-limited access URL and its canonical location.
type Artifact struct {
	Key string `json:"key"`
	URL string `json:"url"`
	URI string `json:"uri"`
}

// URI renders the canonical s3://bucket/key location.
func URI(bucket, key string) string {
	return fmt.Sprintf("s3://%s/%s", bucket, key)
}

// KeyFromURL extracts the object key from an access URL. Both virtual-hosted
// (https://bucket.host/key) and path-style (https://host/bucket/key) URLs are accepted.
func KeyFromURL(rawURL, bucket string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme == "s3" {
		return strings.TrimPrefix(u.Path, "/"), nil
	}
	key := strings.TrimPrefix(u.Path, "/")
	if bucket != "" && !strings.HasPrefix(u.Host, bucket+".") {
		key = strings.TrimPrefix(key, bucket+"/")
	}
	if key == "" {
		return "", fmt.Errorf("%w: %q has no object key", ErrInvalidURL, rawURL)
	}
	return key, nil
}
