package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeChatServer 模拟OpenAI兼容的对话接口
// 问答提示词返回固定回答，评估提示词根据期望回答返回 true 或 false
func fakeChatServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		prompt := req.Messages[len(req.Messages)-1].Content

		reply := "Each player starts with $1500."
		if strings.Contains(prompt, "Expected Response:") {
			reply = "false"
			if strings.Contains(prompt, "Expected Response: $1500") {
				reply = "true"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":"x","object":"chat.completion","model":%q,"choices":[{"index":0,"message":{"role":"assistant","content":%q},"finish_reason":"stop"}]}`, req.Model, reply)
	}))
	t.Cleanup(server.Close)
	return server
}

// setupWorkspace 创建输入目录、PDF和配置文件，返回配置文件路径
func setupWorkspace(t *testing.T, llmURL string) (configPath, storePath string) {
	t.Helper()
	root := t.TempDir()
	dataDir := filepath.Join(root, "data")
	require.NoError(t, os.MkdirAll(dataDir, 0755))

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	for _, text := range []string{
		"Each player starts the game with 1500 dollars.",
		"Hotels can be built after four houses.",
	} {
		pdf.AddPage()
		pdf.MultiCell(0, 10, text, "", "", false)
	}
	require.NoError(t, pdf.OutputFileAndClose(filepath.Join(dataDir, "monopoly.pdf")))

	storePath = filepath.Join(root, "chroma")
	configPath = filepath.Join(root, "config.yaml")
	content := fmt.Sprintf(`
data:
  path: %s
vectordb:
  type: sqlite
  path: %s
  dim: 128
embed:
  provider: local
  dimensions: 128
llm:
  provider: ollama
  base_url: %s/v1
log:
  level: error
`, dataDir, storePath, llmURL)
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0644))
	return configPath, storePath
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestIngestCommand(t *testing.T) {
	configPath, storePath := setupWorkspace(t, "http://127.0.0.1:1")

	out, err := run(t, NewIngestCommand(), "--config", configPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Added new chunks: 2")
	assert.DirExists(t, storePath)

	out, err = run(t, NewIngestCommand(), "--config", configPath)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Number of existing chunks: 2")
	assert.Contains(t, out, "No new chunks to add")

	out, err = run(t, NewIngestCommand(), "--config", configPath, "--reset")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Clearing database")
	assert.Contains(t, out, "Added new chunks: 2")
}

func TestIngestCommandMissingData(t *testing.T) {
	configPath, _ := setupWorkspace(t, "http://127.0.0.1:1")

	_, err := run(t, NewIngestCommand(), "--config", configPath, "--data", filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestIngestCommandMissingConfig(t *testing.T) {
	_, err := run(t, NewIngestCommand(), "--config", filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestQueryCommand(t *testing.T) {
	server := fakeChatServer(t)
	configPath, _ := setupWorkspace(t, server.URL)

	_, err := run(t, NewIngestCommand(), "--config", configPath)
	require.NoError(t, err)

	out, err := run(t, NewQueryCommand(), "--config", configPath, "How many dollars does each player start with?")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Response: Each player starts with $1500.")
	assert.Contains(t, out, "monopoly.pdf:0:0")

	out, err = run(t, NewQueryCommand(), "--config", configPath, "--expect", "$1500", "How many dollars does each player start with?")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Verdict: true")

	_, err = run(t, NewQueryCommand(), "--config", configPath, "--expect", "$9999", "How many dollars does each player start with?")
	assert.ErrorIs(t, err, ErrMismatch)
}

func TestQueryCommandJSON(t *testing.T) {
	server := fakeChatServer(t)
	configPath, _ := setupWorkspace(t, server.URL)

	_, err := run(t, NewIngestCommand(), "--config", configPath)
	require.NoError(t, err)

	out, err := run(t, NewQueryCommand(), "--config", configPath, "--json", "--limit", "1", "starting dollars")
	require.NoError(t, err, out)

	var answer struct {
		Answer  string   `json:"answer"`
		Sources []string `json:"sources"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &answer))
	assert.Equal(t, "Each player starts with $1500.", answer.Answer)
	assert.Len(t, answer.Sources, 1)
}

func TestQueryCommandRequiresQuestion(t *testing.T) {
	_, err := run(t, NewQueryCommand())
	assert.Error(t, err)
}
