package document

import (
	"fmt"
	"io"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// MarkdownParser Markdown文档解析器
// 整个文件作为第0页
type MarkdownParser struct{}

// NewMarkdownParser 创建新的Markdown解析器
func NewMarkdownParser() Parser {
	return &MarkdownParser{}
}

// Parse 解析Markdown文件
func (p *MarkdownParser) Parse(filePath string) ([]Page, error) {
	return parseFile(p, filePath)
}

// ParseReader 从Reader解析Markdown内容，只保留文本
func (p *MarkdownParser) ParseReader(r io.Reader, filename string) ([]Page, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read markdown content: %w", err)
	}

	mdParser := parser.NewWithExtensions(parser.CommonExtensions)
	doc := markdown.Parse(content, mdParser)

	return []Page{{Number: 0, Text: markdownText(doc)}}, nil
}

// markdownText 遍历语法树收集文本，块级元素之间用空行分隔
func markdownText(doc ast.Node) string {
	var sb strings.Builder

	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		switch n := node.(type) {
		case *ast.Text, *ast.Code:
			if entering {
				sb.Write(n.AsLeaf().Literal)
			}
		case *ast.CodeBlock:
			if entering {
				sb.Write(n.Literal)
				sb.WriteString("\n\n")
			}
		case *ast.Softbreak, *ast.Hardbreak:
			if entering {
				sb.WriteString("\n")
			}
		case *ast.ListItem:
			if entering {
				sb.WriteString("- ")
			}
		case *ast.Paragraph, *ast.Heading:
			if !entering {
				sb.WriteString("\n\n")
			}
		}
		return ast.GoToNext
	})

	return normalizeBlankLines(sb.String())
}

// normalizeBlankLines 去掉多余的空行
func normalizeBlankLines(text string) string {
	for strings.Contains(text, "\n\n\n") {
		text = strings.ReplaceAll(text, "\n\n\n", "\n\n")
	}
	return strings.TrimSpace(text)
}
