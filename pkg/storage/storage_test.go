package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStorage_UploadAndDelete(t *testing.T) {
	dir := t.TempDir()
	s, err := NewLocalStorage(dir, "/uploads/")
	require.NoError(t, err)

	url, err := s.Upload(context.Background(), "products/a.png", strings.NewReader("png"), "image/png")
	require.NoError(t, err)
	assert.Equal(t, "/uploads/products/a.png", url)

	data, err := os.ReadFile(filepath.Join(dir, "products", "a.png"))
	require.NoError(t, err)
	assert.Equal(t, "png", string(data))

	require.NoError(t, s.Delete(context.Background(), "products/a.png"))
	require.NoError(t, s.Delete(context.Background(), "products/a.png"))
}

func TestContentType(t *testing.T) {
	assert.Equal(t, "image/png", ContentType("x.png"))
	assert.Equal(t, "application/octet-stream", ContentType("x.unknownext"))
}

func TestNewS3StorageRequiresCredentials(t *testing.T) {
	_, err := NewS3Storage(context.Background(), S3Config{Bucket: "b"})
	assert.Error(t, err)
}
