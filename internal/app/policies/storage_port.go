package policies

import (
	"context"
	"io"
)

// Uploader stores an object and returns where it can be fetched from.
type Uploader interface {
	Upload(ctx context.Context, key string, reader io.Reader, contentType string) (location string, err error)
}
