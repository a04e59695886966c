package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

// defaultLocalDimensions 未配置维度时本地嵌入的向量长度
const defaultLocalDimensions = 256

// LocalClient 基于特征哈希的本地嵌入客户端
// 不依赖外部服务，相同文本总是得到相同向量，适合离线运行和测试
type LocalClient struct {
	dim int
}

// NewLocalClient 创建本地嵌入客户端
func NewLocalClient(opts ...Option) (Client, error) {
	cfg := NewConfig(opts...)
	dim := cfg.Dimensions
	if dim <= 0 {
		dim = defaultLocalDimensions
	}
	return &LocalClient{dim: dim}, nil
}

// Name 返回模型名称
func (c *LocalClient) Name() string {
	return "local-hash"
}

// Embed 将文本中的词哈希到固定维度并做L2归一化
func (c *LocalClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vec := make([]float32, c.dim)
	for _, token := range tokenize(text) {
		h := fnv.New32a()
		h.Write([]byte(token))
		sum := h.Sum32()

		// 最高位决定符号，降低哈希冲突带来的偏差
		sign := float32(1)
		if sum&0x80000000 != 0 {
			sign = -1
		}
		vec[int(sum%uint32(c.dim))] += sign
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v * v)
	}
	if norm > 0 {
		scale := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= scale
		}
	}
	return vec, nil
}

// EmbedBatch 逐条生成向量
func (c *LocalClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// tokenize 按字母数字切词，中日韩字符单字成词
func tokenize(text string) []string {
	var tokens []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.Is(unicode.Han, r) || unicode.Is(unicode.Hiragana, r) || unicode.Is(unicode.Katakana, r) || unicode.Is(unicode.Hangul, r):
			flush()
			tokens = append(tokens, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			current.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return tokens
}

func init() {
	RegisterClient("local", NewLocalClient)
}
