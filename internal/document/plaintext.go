package document

import (
	"fmt"
	"io"
)

// PlainTextParser 纯文本解析器
// 整个文件作为第0页
type PlainTextParser struct{}

// NewPlainTextParser 创建一个新的纯文本解析器
func NewPlainTextParser() Parser {
	return &PlainTextParser{}
}

// Parse 解析纯文本文件
func (p *PlainTextParser) Parse(filePath string) ([]Page, error) {
	return parseFile(p, filePath)
}

// ParseReader 从Reader读取纯文本
func (p *PlainTextParser) ParseReader(r io.Reader, filename string) ([]Page, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read text file: %w", err)
	}

	return []Page{{Number: 0, Text: string(content)}}, nil
}
