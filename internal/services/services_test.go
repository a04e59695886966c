package services

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/pdf-rag/internal/document"
	"github.com/fyerfyer/pdf-rag/internal/embedding"
	"github.com/fyerfyer/pdf-rag/internal/llm"
	"github.com/fyerfyer/pdf-rag/internal/vectordb"
)

const testDim = 256

// fakeLoader 返回固定文档的加载器
type fakeLoader struct {
	docs []document.Document
	err  error
}

func (l *fakeLoader) Load(ctx context.Context) ([]document.Document, error) {
	return l.docs, l.err
}

// mockEmbedder 基于testify/mock的嵌入客户端
type mockEmbedder struct {
	mock.Mock
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	if v := args.Get(0); v != nil {
		return v.([]float32), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	args := m.Called(ctx, texts)
	if v := args.Get(0); v != nil {
		return v.([][]float32), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockEmbedder) Name() string {
	return "mock-embedder"
}

// mockLLM 基于testify/mock的大模型客户端
type mockLLM struct {
	mock.Mock
}

func (m *mockLLM) Generate(ctx context.Context, prompt string, options ...llm.GenerateOption) (*llm.Response, error) {
	args := m.Called(ctx, prompt)
	if v := args.Get(0); v != nil {
		return v.(*llm.Response), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLLM) Chat(ctx context.Context, messages []llm.Message, options ...llm.GenerateOption) (*llm.Response, error) {
	args := m.Called(ctx, messages)
	if v := args.Get(0); v != nil {
		return v.(*llm.Response), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockLLM) Name() string {
	return "mock-llm"
}

// countingRepo 记录AddBatch和Persist调用次数的向量库
type countingRepo struct {
	vectordb.Repository
	batches  []int
	persists int
}

func (r *countingRepo) AddBatch(docs []vectordb.Document) error {
	r.batches = append(r.batches, len(docs))
	return r.Repository.AddBatch(docs)
}

func (r *countingRepo) Persist() error {
	r.persists++
	return r.Repository.Persist()
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newLocalEmbedder(t *testing.T) embedding.Client {
	t.Helper()
	client, err := embedding.NewClient("local", embedding.WithDimensions(testDim))
	require.NoError(t, err)
	return client
}

func newSplitter(t *testing.T) document.Splitter {
	t.Helper()
	splitter, err := document.NewTextSplitter(document.DefaultSplitterConfig())
	require.NoError(t, err)
	return splitter
}

// newSQLiteStore 在临时目录中创建持久化向量库
func newSQLiteStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewRepositoryStore(vectordb.Config{
		Type:      "sqlite",
		Path:      filepath.Join(t.TempDir(), "chroma"),
		Dimension: testDim,
		Logger:    quietLogger(),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newMemoryStore(t *testing.T) (*Store, *countingRepo) {
	t.Helper()
	var current *countingRepo
	store, err := NewStore("", func() (vectordb.Repository, error) {
		repo, err := vectordb.NewRepository(vectordb.Config{Type: "memory", Dimension: testDim})
		if err != nil {
			return nil, err
		}
		current = &countingRepo{Repository: repo}
		return current, nil
	}, quietLogger())
	require.NoError(t, err)
	return store, current
}

func newIngest(t *testing.T, store *Store, opts ...IngestOption) *IngestService {
	t.Helper()
	opts = append([]IngestOption{WithLogger(quietLogger())}, opts...)
	return NewIngestService(&fakeLoader{}, newSplitter(t), newLocalEmbedder(t), store, opts...)
}

func sampleChunks() []document.Chunk {
	return []document.Chunk{
		document.NewChunk("monopoly.pdf", 0, "Each player starts the game with 1500 money."),
		document.NewChunk("monopoly.pdf", 0, "The banker also sells houses and hotels."),
		document.NewChunk("monopoly.pdf", 1, "Rolling doubles three times sends you to jail."),
	}
}

func TestAddChunksIdempotent(t *testing.T) {
	store := newSQLiteStore(t)
	svc := newIngest(t, store)
	ctx := context.Background()

	result, err := svc.AddChunks(ctx, sampleChunks())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Added)
	assert.Equal(t, 0, result.Existing)

	result, err = svc.AddChunks(ctx, sampleChunks())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Added)
	assert.Equal(t, 3, result.Existing)

	ids, err := store.Repository().IDs()
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{
		"monopoly.pdf:0:0": {},
		"monopoly.pdf:0:1": {},
		"monopoly.pdf:1:0": {},
	}, ids)
}

func TestAddChunksPartialOverlap(t *testing.T) {
	store := newSQLiteStore(t)
	svc := newIngest(t, store)
	ctx := context.Background()

	_, err := svc.AddChunks(ctx, sampleChunks()[:2])
	require.NoError(t, err)

	original, err := store.Repository().Get("monopoly.pdf:0:0")
	require.NoError(t, err)

	chunks := append(sampleChunks(), document.NewChunk("ticket.pdf", 0, "Ticket to Ride has 110 train cars."))
	result, err := svc.AddChunks(ctx, chunks)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Existing)
	assert.Equal(t, 2, result.Added)

	count, err := svc.Count()
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	// 已存在的记录不会被改写
	after, err := store.Repository().Get("monopoly.pdf:0:0")
	require.NoError(t, err)
	assert.Equal(t, original.Text, after.Text)
	assert.Equal(t, original.CreatedAt.Unix(), after.CreatedAt.Unix())
}

func TestAddChunksIDModes(t *testing.T) {
	chunks := func() []document.Chunk {
		return []document.Chunk{
			document.NewChunk("a.pdf", 0, "first"),
			document.NewChunk("b.pdf", 0, "second"),
			document.NewChunk("a.pdf", 0, "third"),
		}
	}

	t.Run("Grouped", func(t *testing.T) {
		store, _ := newMemoryStore(t)
		result, err := newIngest(t, store).AddChunks(context.Background(), chunks())
		require.NoError(t, err)
		assert.Equal(t, 3, result.Added)
		assert.Equal(t, 0, result.Skipped)

		_, err = store.Repository().Get("a.pdf:0:1")
		assert.NoError(t, err)
	})

	t.Run("Contiguous", func(t *testing.T) {
		store, _ := newMemoryStore(t)
		result, err := newIngest(t, store, WithIDMode(document.IDModeContiguous)).AddChunks(context.Background(), chunks())
		require.NoError(t, err)
		assert.Equal(t, 2, result.Added)
		assert.Equal(t, 1, result.Skipped)

		// 重复ID只保留第一次出现的分块
		doc, err := store.Repository().Get("a.pdf:0:0")
		require.NoError(t, err)
		assert.Equal(t, "first", doc.Text)
	})
}

func TestAddChunksBatching(t *testing.T) {
	store, repo := newMemoryStore(t)
	svc := newIngest(t, store, WithBatchSize(2), WithEmbedBatch(2, 2))

	var chunks []document.Chunk
	for i := 0; i < 5; i++ {
		chunks = append(chunks, document.NewChunk("doc.pdf", i, "page text"))
	}

	result, err := svc.AddChunks(context.Background(), chunks)
	require.NoError(t, err)
	assert.Equal(t, 5, result.Added)
	assert.Equal(t, []int{2, 2, 1}, repo.batches)
	assert.Equal(t, 1, repo.persists)

	// 没有新分块时不写入也不持久化
	result, err = svc.AddChunks(context.Background(), chunks)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Added)
	assert.Equal(t, []int{2, 2, 1}, repo.batches)
	assert.Equal(t, 1, repo.persists)
}

func TestAddChunksEmbeddingFailure(t *testing.T) {
	store, repo := newMemoryStore(t)
	embedder := new(mockEmbedder)
	failure := embedding.NewEmbeddingError(embedding.ErrCodeServerError, "down")
	embedder.On("EmbedBatch", mock.Anything, mock.Anything).Return(nil, failure)

	svc := NewIngestService(&fakeLoader{}, newSplitter(t), embedder, store, WithLogger(quietLogger()))
	_, err := svc.AddChunks(context.Background(), sampleChunks())
	assert.ErrorIs(t, err, failure)
	assert.Empty(t, repo.batches)

	count, err := svc.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestIngestRun(t *testing.T) {
	store := newSQLiteStore(t)
	loader := &fakeLoader{docs: []document.Document{
		{Source: "monopoly.pdf", Page: 0, Content: "Each player starts with 1500 money."},
		{Source: "monopoly.pdf", Page: 1, Content: "Hotels cost more than houses."},
	}}
	svc := NewIngestService(loader, newSplitter(t), newLocalEmbedder(t), store, WithLogger(quietLogger()))

	result, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, IngestResult{Documents: 2, Chunks: 2, Added: 2}, result)

	result, err = svc.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, IngestResult{Documents: 2, Chunks: 2, Existing: 2}, result)

	loader.err = errors.New("no such directory")
	_, err = svc.Run(context.Background())
	assert.ErrorIs(t, err, loader.err)
}

func TestReset(t *testing.T) {
	store := newSQLiteStore(t)
	svc := newIngest(t, store)
	ctx := context.Background()

	_, err := svc.AddChunks(ctx, sampleChunks())
	require.NoError(t, err)

	require.NoError(t, svc.Reset())
	count, err := svc.Count()
	require.NoError(t, err)
	assert.Zero(t, count)

	// 重置两次与重置一次效果相同
	require.NoError(t, svc.Reset())

	// 重置后可以重新写入
	result, err := svc.AddChunks(ctx, sampleChunks())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Added)
}

func TestResetMissingPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "never-created")
	store, err := NewStore(path, func() (vectordb.Repository, error) {
		return vectordb.NewRepository(vectordb.Config{Type: "memory", Dimension: testDim})
	}, quietLogger())
	require.NoError(t, err)

	assert.NoError(t, store.Reset())
	assert.NoDirExists(t, path)
}

func TestResetReopenFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chroma")
	calls := 0
	failing := true
	store, err := NewStore(path, func() (vectordb.Repository, error) {
		calls++
		if calls > 1 && failing {
			return nil, errors.New("disk full")
		}
		return vectordb.NewRepository(vectordb.Config{Type: "memory", Dimension: testDim})
	}, quietLogger())
	require.NoError(t, err)

	embedder := newLocalEmbedder(t)
	svc := newIngest(t, store)
	qa := NewQAService(embedder, store, llm.NewRAG(new(mockLLM)), WithQALogger(quietLogger()))
	ctx := context.Background()

	err = svc.Reset()
	require.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Nil(t, store.Repository())

	// 库不可用时返回错误而不是panic
	_, err = svc.AddChunks(ctx, sampleChunks())
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	_, err = svc.Count()
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	_, err = qa.Answer(ctx, "How much money does each player start with?")
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	// 打开恢复正常后自动重新打开
	failing = false
	result, err := svc.AddChunks(ctx, sampleChunks())
	require.NoError(t, err)
	assert.Equal(t, 3, result.Added)
	assert.NotNil(t, store.Repository())
}

func TestMemoryStoreHasNoPersistPath(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "chroma")
	require.NoError(t, os.MkdirAll(dir, 0755))

	store, err := NewRepositoryStore(vectordb.Config{
		Type:      "memory",
		Path:      dir,
		Dimension: testDim,
		Logger:    quietLogger(),
	})
	require.NoError(t, err)
	assert.Empty(t, store.Path())

	require.NoError(t, store.Reset())
	assert.DirExists(t, dir)
}
