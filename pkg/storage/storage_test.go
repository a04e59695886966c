package storage

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeFile 在目录下创建测试文件
func writeFile(t *testing.T, dir, rel, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func TestLocalStorage(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.pdf", "pdf-b")
	writeFile(t, dir, "a.pdf", "pdf-a")
	writeFile(t, dir, "nested/c.txt", "text-c")

	store, err := NewLocalStorage(LocalConfig{Path: dir})
	require.NoError(t, err)

	t.Run("List", func(t *testing.T) {
		files, err := store.List()
		require.NoError(t, err)
		require.Len(t, files, 3)

		assert.Equal(t, "a.pdf", files[0].ID)
		assert.Equal(t, "b.pdf", files[1].ID)
		assert.Equal(t, "nested/c.txt", files[2].ID)
		assert.Equal(t, "application/pdf", files[0].MimeType)
		assert.Equal(t, "text/plain", files[2].MimeType)
		assert.Equal(t, int64(5), files[0].Size)
	})

	t.Run("Get", func(t *testing.T) {
		reader, err := store.Get("nested/c.txt")
		require.NoError(t, err)
		defer reader.Close()

		data, err := io.ReadAll(reader)
		require.NoError(t, err)
		assert.Equal(t, "text-c", string(data))

		_, err = store.Get("missing.pdf")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Exists", func(t *testing.T) {
		ok, err := store.Exists("a.pdf")
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.Exists("nested")
		require.NoError(t, err)
		assert.False(t, ok, "directories are not files")

		ok, err = store.Exists("missing.pdf")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("Save", func(t *testing.T) {
		info, err := store.Save(bytes.NewBufferString("uploaded"), "uploads/new.pdf")
		require.NoError(t, err)
		assert.Equal(t, "uploads/new.pdf", info.ID)
		assert.Equal(t, int64(8), info.Size)

		ok, err := store.Exists("uploads/new.pdf")
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("RejectsEscapingPaths", func(t *testing.T) {
		_, err := store.Get("../outside.pdf")
		assert.Error(t, err)

		_, err = store.Save(bytes.NewBufferString("x"), "../../evil.pdf")
		assert.Error(t, err)
	})
}

func TestLocalStorageMissingDirectory(t *testing.T) {
	store, err := NewLocalStorage(LocalConfig{Path: filepath.Join(t.TempDir(), "missing")})
	require.NoError(t, err)

	_, err = store.List()
	assert.Error(t, err, "listing a missing directory should surface an error")
}

// TestMinioStorage 需要可用的MinIO服务，未配置时跳过
func TestMinioStorage(t *testing.T) {
	endpoint := os.Getenv("MINIO_ENDPOINT")
	if endpoint == "" {
		t.Skip("MINIO_ENDPOINT not set, skipping MinIO test")
	}

	store, err := NewMinioStorage(MinioConfig{
		Endpoint:  endpoint,
		AccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		SecretKey: os.Getenv("MINIO_SECRET_KEY"),
		Bucket:    os.Getenv("MINIO_BUCKET"),
		Prefix:    "pdf-rag-test",
	})
	require.NoError(t, err)

	info, err := store.Save(bytes.NewBufferString("minio content"), "doc.txt")
	require.NoError(t, err)
	assert.Equal(t, "doc.txt", info.ID)

	ok, err := store.Exists("doc.txt")
	require.NoError(t, err)
	assert.True(t, ok)

	files, err := store.List()
	require.NoError(t, err)
	assert.NotEmpty(t, files)

	reader, err := store.Get("doc.txt")
	require.NoError(t, err)
	defer reader.Close()
	data, err := io.ReadAll(reader)
	require.NoError(t, err)
	assert.Equal(t, "minio content", string(data))
}
