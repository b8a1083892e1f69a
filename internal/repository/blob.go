package repository

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	apperrors "vesper/pkg/errors"
	"vesper/pkg/logger"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const defaultContentType = "application/octet-stream"

type BlobInfo struct {
	Name        string
	Size        uint64
	ContentType string
	ModTime     time.Time
}

// BlobRepository stores uploaded attachments and avatars.
type BlobRepository interface {
	Put(ctx context.Context, name, contentType string, data io.Reader) (*BlobInfo, error)
	Open(ctx context.Context, name string) (io.ReadCloser, *BlobInfo, error)
	Delete(ctx context.Context, name string) error
	Ping() bool
}

type blobRepository struct {
	store jetstream.ObjectStore
	conn  *nats.Conn
	log   logger.Logger
}

// NewBlobRepository binds to bucket, creating it on first use.
func NewBlobRepository(ctx context.Context, conn *nats.Conn, bucket string, log logger.Logger) (BlobRepository, error) {
	js, err := jetstream.New(conn)
	if err != nil {
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	store, err := js.ObjectStore(ctx, bucket)
	if errors.Is(err, jetstream.ErrBucketNotFound) {
		store, err = js.CreateObjectStore(ctx, jetstream.ObjectStoreConfig{
			Bucket:      bucket,
			Description: "Chat attachments and avatars",
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open object store bucket %q: %w", bucket, err)
	}

	return &blobRepository{store: store, conn: conn, log: log}, nil
}

func (r *blobRepository) Put(ctx context.Context, name, contentType string, data io.Reader) (*BlobInfo, error) {
	if contentType == "" {
		contentType = defaultContentType
	}

	meta := jetstream.ObjectMeta{
		Name:    name,
		Headers: nats.Header{"Content-Type": []string{contentType}},
	}

	info, err := r.store.Put(ctx, meta, data)
	if err != nil {
		r.log.Error("Failed to store blob", "error", err, "name", name)
		return nil, fmt.Errorf("%w: put blob: %v", apperrors.ErrStorage, err)
	}

	return &BlobInfo{
		Name:        info.Name,
		Size:        info.Size,
		ContentType: contentType,
		ModTime:     info.ModTime,
	}, nil
}

func (r *blobRepository) Open(ctx context.Context, name string) (io.ReadCloser, *BlobInfo, error) {
	result, err := r.store.Get(ctx, name)
	if err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return nil, nil, apperrors.ErrNotFound
		}
		r.log.Error("Failed to open blob", "error", err, "name", name)
		return nil, nil, fmt.Errorf("%w: get blob: %v", apperrors.ErrStorage, err)
	}

	info, err := result.Info()
	if err != nil {
		result.Close()
		return nil, nil, fmt.Errorf("%w: blob info: %v", apperrors.ErrStorage, err)
	}

	return result, &BlobInfo{
		Name:        info.Name,
		Size:        info.Size,
		ContentType: contentTypeOf(info.Headers),
		ModTime:     info.ModTime,
	}, nil
}

func (r *blobRepository) Delete(ctx context.Context, name string) error {
	if err := r.store.Delete(ctx, name); err != nil {
		if errors.Is(err, jetstream.ErrObjectNotFound) {
			return nil
		}
		r.log.Error("Failed to delete blob", "error", err, "name", name)
		return fmt.Errorf("%w: delete blob: %v", apperrors.ErrStorage, err)
	}
	return nil
}

func (r *blobRepository) Ping() bool {
	return r.conn != nil && r.conn.IsConnected()
}

func contentTypeOf(h nats.Header) string {
	if h != nil {
		if ct := h.Get("Content-Type"); ct != "" {
			return ct
		}
	}
	return defaultContentType
}
