package app

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fyerfyer/pdf-rag/config"
	"github.com/fyerfyer/pdf-rag/internal/llm"
)

// echoLLM 把提示词原样返回的大模型
type echoLLM struct {
	prompts []string
}

func (e *echoLLM) Generate(ctx context.Context, prompt string, options ...llm.GenerateOption) (*llm.Response, error) {
	e.prompts = append(e.prompts, prompt)
	if strings.Contains(prompt, "Expected Response:") {
		return &llm.Response{Text: "true"}, nil
	}
	return &llm.Response{Text: "answer based on context"}, nil
}

func (e *echoLLM) Chat(ctx context.Context, messages []llm.Message, options ...llm.GenerateOption) (*llm.Response, error) {
	return e.Generate(ctx, messages[len(messages)-1].Content)
}

func (e *echoLLM) Name() string {
	return "echo"
}

func writePDF(t *testing.T, path string, pages ...string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	for _, text := range pages {
		pdf.AddPage()
		pdf.MultiCell(0, 10, text, "", "", false)
	}
	require.NoError(t, pdf.OutputFileAndClose(path))
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Default()
	cfg.Data.Path = filepath.Join(root, "data")
	cfg.VectorDB.Path = filepath.Join(root, "chroma")
	cfg.VectorDB.Dim = 256
	cfg.Embed.Provider = "local"
	cfg.Embed.Dimensions = 256
	return cfg
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestEndToEnd(t *testing.T) {
	cfg := testConfig(t)
	writePDF(t, filepath.Join(cfg.Data.Path, "monopoly.pdf"),
		"Each player starts the game with 1500 dollars.",
		"Hotels can be built after four houses.")
	writePDF(t, filepath.Join(cfg.Data.Path, "games", "ticket.pdf"),
		"The longest train earns 10 bonus points.")
	// 非PDF文件不会被加载
	require.NoError(t, os.WriteFile(filepath.Join(cfg.Data.Path, "notes.txt"), []byte("ignored"), 0644))

	model := &echoLLM{}
	a, err := New(cfg, WithLLM(model), WithLogger(quietLogger()))
	require.NoError(t, err)
	defer a.Close()

	ctx := context.Background()
	result, err := a.Ingest.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Documents)
	assert.Equal(t, 3, result.Added)

	ids, err := a.Store.Repository().IDs()
	require.NoError(t, err)
	assert.Contains(t, ids, "monopoly.pdf:0:0")
	assert.Contains(t, ids, "monopoly.pdf:1:0")
	assert.Contains(t, ids, "games/ticket.pdf:0:0")

	// 再次入库不会写入任何分块
	result, err = a.Ingest.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, result.Added)
	assert.Equal(t, 3, result.Existing)

	answer, err := a.QA.Answer(ctx, "How many dollars does each player start with?")
	require.NoError(t, err)
	assert.Equal(t, "answer based on context", answer.Text)
	assert.Len(t, answer.Sources, 3)
	assert.Equal(t, "monopoly.pdf:0:0", answer.Sources[0])
	require.NotEmpty(t, model.prompts)
	assert.Contains(t, model.prompts[0], "1500 dollars")

	eval, err := a.QA.Evaluate(ctx, "How many dollars does each player start with?", "$1500")
	require.NoError(t, err)
	assert.True(t, eval.Passed)

	require.NoError(t, a.Ingest.Reset())
	count, err := a.Ingest.Count()
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestPersistenceAcrossRestarts(t *testing.T) {
	cfg := testConfig(t)
	writePDF(t, filepath.Join(cfg.Data.Path, "rules.pdf"), "Roll two dice on your turn.")

	a, err := New(cfg, WithLLM(&echoLLM{}), WithLogger(quietLogger()))
	require.NoError(t, err)
	result, err := a.Ingest.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Added)
	require.NoError(t, a.Close())

	b, err := New(cfg, WithLLM(&echoLLM{}), WithLogger(quietLogger()))
	require.NoError(t, err)
	defer b.Close()
	result, err = b.Ingest.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, result.Added)
	assert.Equal(t, 1, result.Existing)
}

func TestMissingDataDirectory(t *testing.T) {
	cfg := testConfig(t)

	a, err := New(cfg, WithLLM(&echoLLM{}), WithLogger(quietLogger()))
	require.NoError(t, err)
	defer a.Close()

	_, err = a.Ingest.Run(context.Background())
	assert.Error(t, err)
}

func TestNewInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Ingest.IDMode = "random"
	_, err := New(cfg, WithLLM(&echoLLM{}), WithLogger(quietLogger()))
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Data.Source = "ftp"
	_, err = New(cfg, WithLLM(&echoLLM{}), WithLogger(quietLogger()))
	assert.Error(t, err)

	cfg = testConfig(t)
	cfg.Embed.Provider = "unknown"
	_, err = New(cfg, WithLLM(&echoLLM{}), WithLogger(quietLogger()))
	assert.Error(t, err)
}

func TestNewWithCache(t *testing.T) {
	cfg := testConfig(t)
	cfg.Cache.Enable = true
	cfg.Cache.Type = "memory"

	a, err := New(cfg, WithLLM(&echoLLM{}), WithLogger(quietLogger()))
	require.NoError(t, err)
	assert.NotNil(t, a.cache)
	assert.NoError(t, a.Close())
}

func TestNewRAGTemplates(t *testing.T) {
	client := &echoLLM{}
	rag := NewRAG(client, config.LLMConfig{
		Template:     "Q={{.Question}} C={{.Context}}",
		EvalTemplate: "Expected Response: {{.Expected}} / {{.Actual}}",
	})

	_, err := rag.Answer(context.Background(), "hi", []string{"ctx"})
	require.NoError(t, err)
	eval, err := rag.Evaluate(context.Background(), "a", "b")
	require.NoError(t, err)
	assert.True(t, eval.Passed)
	assert.Equal(t, []string{"Q=hi C=ctx", "Expected Response: a / b"}, client.prompts)

	// 未配置模板时使用内置模板
	client = &echoLLM{}
	_, err = NewRAG(client, config.Default().LLM).Answer(context.Background(), "hi", nil)
	require.NoError(t, err)
	require.Len(t, client.prompts, 1)
	assert.Contains(t, client.prompts[0], "Answer the question based only on the following context:")
}
