package filestore

import (
	"context"
	"io"
	"net/url"
	"strings"
)

// StaticStore hands out plain URLs under a base URL. For local development
// without object storage; uploads are drained and discarded.
type StaticStore struct {
	base string
}

func NewStaticStore(baseURL string) *StaticStore {
	return &StaticStore{base: strings.TrimSuffix(baseURL, "/") + "/"}
}

func (s *StaticStore) PresignedURL(ctx context.Context, path string) (string, error) {
	segments := strings.Split(strings.TrimPrefix(path, "/"), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.base + strings.Join(segments, "/"), nil
}

func (s *StaticStore) Put(ctx context.Context, path string, body io.Reader, size int64, contentType string) error {
	_, err := io.Copy(io.Discard, body)
	return err
}

func (s *StaticStore) Remove(ctx context.Context, path string) error {
	return nil
}
