package gcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"

	"github.com/yungbote/insightflow-backend/internal/pkg/logger"
)

var ErrObjectNotFound = errors.New("object not found")

// ObjectReader opens objects addressed by gs://bucket/key locators.
type ObjectReader interface {
	Open(ctx context.Context, locator string) (io.ReadCloser, error)
	Close() error
}

type objectReader struct {
	log    *logger.Logger
	client *storage.Client
}

func NewObjectReader(ctx context.Context, log *logger.Logger, opts ...option.ClientOption) (ObjectReader, error) {
	opts = append(opts, option.WithScopes(storage.ScopeReadOnly))
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	return &objectReader{log: log.With("client", "GCSObjectReader"), client: client}, nil
}

func (r *objectReader) Open(ctx context.Context, locator string) (io.ReadCloser, error) {
	bucket, key, err := ParseLocator(locator)
	if err != nil {
		return nil, err
	}
	rc, err := r.client.Bucket(bucket).Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, locator)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", locator, err)
	}
	r.log.Debug("GCS object opened", "bucket", bucket, "key", key, "size", rc.Attrs.Size)
	return rc, nil
}

func (r *objectReader) Close() error {
	return r.client.Close()
}

// ParseLocator splits gs://bucket/path/to/key.
func ParseLocator(locator string) (bucket, key string, err error) {
	u, err := url.Parse(strings.TrimSpace(locator))
	if err != nil {
		return "", "", fmt.Errorf("invalid object locator %q: %w", locator, err)
	}
	if u.Scheme != "gs" {
		return "", "", fmt.Errorf("invalid object locator %q: scheme must be gs", locator)
	}
	key = strings.TrimPrefix(u.Path, "/")
	if u.Host == "" || key == "" {
		return "", "", fmt.Errorf("invalid object locator %q: want gs://bucket/key", locator)
	}
	return u.Host, key, nil
}
