package document

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fyerfyer/pdf-rag/pkg/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newLocalStorage(t *testing.T, dir string) storage.Storage {
	t.Helper()
	store, err := storage.NewLocalStorage(storage.LocalConfig{Path: dir})
	require.NoError(t, err)
	return store
}

func TestLoaderLoad(t *testing.T) {
	dir := t.TempDir()
	createTempPDF(t, dir, "b.pdf", "bravo page one", "bravo page two")
	createTempPDF(t, dir, "a.pdf", "alpha page one", "", "alpha page three")
	createTempPDF(t, dir, filepath.Join("sub", "c.pdf"), "charlie")
	createTempFile(t, dir, "notes.txt", "should be skipped")

	loader := NewLoader(newLocalStorage(t, dir))
	docs, err := loader.Load(context.Background())
	require.NoError(t, err)

	type key struct {
		source string
		page   int
	}
	var got []key
	for _, doc := range docs {
		got = append(got, key{doc.Source, doc.Page})
	}

	// 空白页被跳过，其余按source、page排序
	assert.Equal(t, []key{
		{"a.pdf", 0},
		{"a.pdf", 2},
		{"b.pdf", 0},
		{"b.pdf", 1},
		{"sub/c.pdf", 0},
	}, got)
	assert.Contains(t, docs[1].Content, "alpha page three")
}

func TestLoaderExtensions(t *testing.T) {
	dir := t.TempDir()
	createTempPDF(t, dir, "a.pdf", "alpha")
	createTempFile(t, dir, "notes.txt", "plain notes")
	createTempFile(t, dir, "readme.md", "# Readme\n\nmarkdown body")

	loader := NewLoader(newLocalStorage(t, dir), WithExtensions("txt", ".MD"))
	docs, err := loader.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2)

	assert.Equal(t, "notes.txt", docs[0].Source)
	assert.Equal(t, "readme.md", docs[1].Source)
	assert.Contains(t, docs[1].Content, "markdown body")
}

func TestLoaderMissingDirectory(t *testing.T) {
	loader := NewLoader(newLocalStorage(t, filepath.Join(t.TempDir(), "missing")))
	_, err := loader.Load(context.Background())
	assert.Error(t, err)
}

func TestLoaderCancelledContext(t *testing.T) {
	dir := t.TempDir()
	createTempPDF(t, dir, "a.pdf", "alpha")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLoader(newLocalStorage(t, dir)).Load(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
