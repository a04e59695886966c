package document

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// SplitType 文本分段的类型
type SplitType string

const (
	// ByParagraph 按段落分割
	ByParagraph SplitType = "paragraph"
	// BySentence 按句子分割
	BySentence SplitType = "sentence"
	// ByLength 按字符长度分割
	ByLength SplitType = "length"
)

// SplitterConfig 分段器配置
type SplitterConfig struct {
	SplitType    SplitType // 分割类型
	ChunkSize    int       // 分块大小（按字符数）
	ChunkOverlap int       // 分块重叠大小（字符数）
}

// DefaultSplitterConfig 返回默认分段器配置
func DefaultSplitterConfig() SplitterConfig {
	return SplitterConfig{
		SplitType:    ByLength,
		ChunkSize:    1000,
		ChunkOverlap: 100,
	}
}

// Splitter 文本分段器接口
type Splitter interface {
	Split(text string) ([]string, error)
}

// TextSplitter 实现文本分段器接口
type TextSplitter struct {
	config SplitterConfig
}

// NewTextSplitter 创建新的文本分段器
func NewTextSplitter(config SplitterConfig) (*TextSplitter, error) {
	if config.ChunkSize <= 0 {
		return nil, fmt.Errorf("chunk size must be positive, got %d", config.ChunkSize)
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		return nil, fmt.Errorf("chunk overlap must be in [0, %d), got %d", config.ChunkSize, config.ChunkOverlap)
	}
	if config.SplitType == "" {
		config.SplitType = ByLength
	}
	return &TextSplitter{config: config}, nil
}

// Split 将文本分割成若干块，每块不超过ChunkSize个字符
func (s *TextSplitter) Split(text string) ([]string, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	var chunks []string

	switch s.config.SplitType {
	case ByParagraph:
		chunks = s.splitByParagraph(text)
		chunks = s.mergeSmallChunks(chunks, "\n\n")
		chunks = s.handleLargeChunks(chunks)
	case BySentence:
		chunks = s.splitBySentence(text)
		chunks = s.mergeSmallChunks(chunks, " ")
		chunks = s.handleLargeChunks(chunks)
	case ByLength:
		chunks = s.splitByLength(text)
	default:
		return nil, fmt.Errorf("unknown split type: %s", s.config.SplitType)
	}

	result := make([]string, 0, len(chunks))
	for _, chunk := range chunks {
		if chunk = strings.TrimSpace(chunk); chunk != "" {
			result = append(result, chunk)
		}
	}
	return result, nil
}

// splitByParagraph 按空行分割文本
func (s *TextSplitter) splitByParagraph(text string) []string {
	var result []string
	for _, p := range strings.Split(text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}

// splitBySentence 按句子分割文本
func (s *TextSplitter) splitBySentence(text string) []string {
	var sentences []string
	var current strings.Builder

	for _, char := range text {
		current.WriteRune(char)

		switch char {
		case '.', '!', '?', '；', '。', '！', '？':
			if sentence := strings.TrimSpace(current.String()); sentence != "" {
				sentences = append(sentences, sentence)
			}
			current.Reset()
		}
	}

	if last := strings.TrimSpace(current.String()); last != "" {
		sentences = append(sentences, last)
	}
	return sentences
}

// splitByLength 按固定长度分割文本，相邻块之间保留ChunkOverlap个字符的重叠
// 优先在空白处断开，避免截断单词
func (s *TextSplitter) splitByLength(text string) []string {
	runes := []rune(text)
	size := s.config.ChunkSize
	step := size - s.config.ChunkOverlap

	var chunks []string
	for start := 0; start < len(runes); {
		end := start + size
		if end >= len(runes) {
			chunks = append(chunks, string(runes[start:]))
			break
		}

		// 向前寻找空白字符，至少保证前进一个步长
		cut := end
		for cut > start+step && !unicode.IsSpace(runes[cut]) {
			cut--
		}
		if cut <= start+step {
			cut = end
		}

		chunks = append(chunks, string(runes[start:cut]))

		next := cut - s.config.ChunkOverlap
		if next <= start {
			next = start + 1
		}
		start = next
	}
	return chunks
}

// mergeSmallChunks 合并过小的段落，合并结果不超过ChunkSize
func (s *TextSplitter) mergeSmallChunks(chunks []string, sep string) []string {
	if len(chunks) <= 1 {
		return chunks
	}

	var result []string
	var current strings.Builder
	currentLen := 0
	sepLen := utf8.RuneCountInString(sep)

	for _, chunk := range chunks {
		chunkLen := utf8.RuneCountInString(chunk)
		if currentLen > 0 && currentLen+sepLen+chunkLen > s.config.ChunkSize {
			result = append(result, current.String())
			current.Reset()
			currentLen = 0
		}
		if currentLen > 0 {
			current.WriteString(sep)
			currentLen += sepLen
		}
		current.WriteString(chunk)
		currentLen += chunkLen
	}

	if currentLen > 0 {
		result = append(result, current.String())
	}
	return result
}

// handleLargeChunks 对超过ChunkSize的块按长度再分割
func (s *TextSplitter) handleLargeChunks(chunks []string) []string {
	var result []string
	for _, chunk := range chunks {
		if utf8.RuneCountInString(chunk) > s.config.ChunkSize {
			result = append(result, s.splitByLength(chunk)...)
		} else {
			result = append(result, chunk)
		}
	}
	return result
}
