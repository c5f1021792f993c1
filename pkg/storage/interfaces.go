package storage

import (
	"context"
	"io"
)

type StorageService interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) error
}
