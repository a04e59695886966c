package document

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// pageFilePattern 匹配pdfcpu导出的页面内容文件名，例如 doc_Content_page_3.txt
var pageFilePattern = regexp.MustCompile(`_(\d+)\.txt$`)

// PDFParser PDF文档解析器
// 每一页单独解析，页码从0开始
type PDFParser struct {
	conf *model.Configuration
}

// NewPDFParser 创建一个新的PDF解析器
func NewPDFParser() Parser {
	return &PDFParser{conf: model.NewDefaultConfiguration()}
}

// Parse 解析PDF文件
func (p *PDFParser) Parse(filePath string) ([]Page, error) {
	return parseFile(p, filePath)
}

// ParseReader 从Reader解析PDF，按页返回文本
func (p *PDFParser) ParseReader(r io.Reader, filename string) ([]Page, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "pdfcpu_extract_")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	// 导出每一页的内容流
	if err := api.ExtractContent(bytes.NewReader(data), tmpDir, "page.pdf", nil, p.conf); err != nil {
		return nil, fmt.Errorf("failed to extract content from PDF %s: %w", filename, err)
	}

	entries, err := os.ReadDir(tmpDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read extracted content dir: %w", err)
	}

	var pages []Page
	for _, entry := range entries {
		match := pageFilePattern.FindStringSubmatch(entry.Name())
		if match == nil {
			continue
		}
		pageNr, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}

		stream, err := os.ReadFile(filepath.Join(tmpDir, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d content: %w", pageNr, err)
		}

		pages = append(pages, Page{
			Number: pageNr - 1,
			Text:   ExtractText(stream),
		})
	}

	sort.Slice(pages, func(i, j int) bool {
		return pages[i].Number < pages[j].Number
	})
	return pages, nil
}
