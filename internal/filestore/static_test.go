package filestore

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStaticStorePresignedURL(t *testing.T) {
	tests := []struct {
		base string
		path string
		want string
	}{
		{"http://localhost:8080/static", "apps/1/photo.png", "http://localhost:8080/static/apps/1/photo.png"},
		{"http://localhost:8080/static/", "/apps/1/medical form.pdf", "http://localhost:8080/static/apps/1/medical%20form.pdf"},
	}

	for _, tt := range tests {
		got, err := NewStaticStore(tt.base).PresignedURL(context.Background(), tt.path)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}

	assert.NoError(t, NewStaticStore("http://x").Remove(context.Background(), "a"))
}

func TestStaticStorePutDrainsBody(t *testing.T) {
	body := strings.NewReader("%PDF-1.4")
	err := NewStaticStore("http://x").Put(context.Background(), "a/waiver.pdf", body, 8, "application/pdf")
	require.NoError(t, err)
	assert.Equal(t, 0, body.Len())
}
