package document

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTempFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// createTempPDF 生成一个PDF文件，每个参数对应一页
func createTempPDF(t *testing.T, dir, name string, pages ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Arial", "", 12)
	for _, text := range pages {
		pdf.AddPage()
		if text != "" {
			pdf.MultiCell(0, 10, text, "", "", false)
		}
	}
	require.NoError(t, pdf.OutputFileAndClose(path))
	return path
}

func TestPlainTextParser(t *testing.T) {
	file := createTempFile(t, t.TempDir(), "plain.txt", "Hello, this is a plain text file.\nSecond line.")

	pages, err := NewPlainTextParser().Parse(file)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 0, pages[0].Number)
	assert.Contains(t, pages[0].Text, "plain text file")
}

func TestMarkdownParser(t *testing.T) {
	content := "# Title\n\nThis is a **markdown** file.\n\n- Item 1\n- Item 2\n\n```\ncode block\n```"
	file := createTempFile(t, t.TempDir(), "doc.md", content)

	pages, err := NewMarkdownParser().Parse(file)
	require.NoError(t, err)
	require.Len(t, pages, 1)

	text := pages[0].Text
	assert.Contains(t, text, "Title")
	assert.Contains(t, text, "This is a markdown file.")
	assert.Contains(t, text, "Item 1")
	assert.Contains(t, text, "Item 2")
	assert.Contains(t, text, "code block")
	assert.NotContains(t, text, "**")
	assert.NotContains(t, text, "\n\n\n")
}

func TestPDFParser(t *testing.T) {
	file := createTempPDF(t, t.TempDir(), "test.pdf", "This is a PDF test.\nSecond line.")

	pages, err := NewPDFParser().Parse(file)
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 0, pages[0].Number)
	assert.Contains(t, pages[0].Text, "PDF test")
	assert.Contains(t, pages[0].Text, "Second line")
}

func TestPDFParserMultiplePages(t *testing.T) {
	file := createTempPDF(t, t.TempDir(), "multi.pdf", "first page text", "", "third page text")

	pages, err := NewPDFParser().Parse(file)
	require.NoError(t, err)
	require.Len(t, pages, 3)

	for i, page := range pages {
		assert.Equal(t, i, page.Number, "页码应从0开始连续")
	}
	assert.Contains(t, pages[0].Text, "first page")
	assert.Empty(t, strings.TrimSpace(pages[1].Text))
	assert.Contains(t, pages[2].Text, "third page")
}

func TestPDFParserInvalidInput(t *testing.T) {
	_, err := NewPDFParser().ParseReader(strings.NewReader("not a pdf"), "broken.pdf")
	assert.Error(t, err)
}

func TestParserFactory(t *testing.T) {
	dir := t.TempDir()
	txtFile := createTempFile(t, dir, "a.txt", "plain text")
	mdFile := createTempFile(t, dir, "b.md", "# Markdown")
	pdfFile := createTempPDF(t, dir, "c.pdf", "PDF content")

	tests := []struct {
		file     string
		expected string
	}{
		{txtFile, "plain text"},
		{mdFile, "Markdown"},
		{pdfFile, "PDF content"},
	}

	for _, tt := range tests {
		parser, err := ParserFactory(tt.file)
		require.NoError(t, err, tt.file)

		pages, err := parser.Parse(tt.file)
		require.NoError(t, err, tt.file)
		require.NotEmpty(t, pages)
		assert.Contains(t, pages[0].Text, tt.expected)
	}

	_, err := ParserFactory("image.png")
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestExtractText(t *testing.T) {
	stream := []byte("BT /F1 12 Tf 10 20 Td (Hello \\(world\\)) Tj ET\n" +
		"BT 10 40 Td [(Split)-300(words)] TJ T* <48656C6C6F> Tj ET")

	text := ExtractText(stream)
	lines := strings.Split(text, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Hello (world)", lines[0])
	assert.Equal(t, "Split words", lines[1])
	assert.Equal(t, "Hello", lines[2])
}
