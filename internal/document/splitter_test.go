package document

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSplitter(t *testing.T, splitType SplitType, size, overlap int) *TextSplitter {
	t.Helper()
	config := DefaultSplitterConfig()
	config.SplitType = splitType
	config.ChunkSize = size
	config.ChunkOverlap = overlap
	splitter, err := NewTextSplitter(config)
	require.NoError(t, err)
	return splitter
}

// TestSplitByParagraph 测试按段落分割功能
func TestSplitByParagraph(t *testing.T) {
	t.Run("basic paragraph splitting", func(t *testing.T) {
		splitter := newSplitter(t, ByParagraph, 10, 0)
		text := "第一段落内容。\n\n第二段落内容。\n\n第三段落内容。"

		segments, err := splitter.Split(text)
		require.NoError(t, err)
		require.Len(t, segments, 3, "应该分割成3个段落")
		assert.Equal(t, "第一段落内容。", segments[0])
		assert.Equal(t, "第二段落内容。", segments[1])
		assert.Equal(t, "第三段落内容。", segments[2])
	})

	t.Run("small paragraphs are merged", func(t *testing.T) {
		splitter := newSplitter(t, ByParagraph, 1000, 100)
		text := "# 标题1\n\n这是第一部分内容。\n\n## 标题2\n\n这是第二部分内容。"

		segments, err := splitter.Split(text)
		require.NoError(t, err)
		require.Len(t, segments, 1)
		assert.Contains(t, segments[0], "标题1")
		assert.Contains(t, segments[0], "第二部分内容")
	})
}

// TestSplitBySentence 测试按句子分割功能
func TestSplitBySentence(t *testing.T) {
	splitter := newSplitter(t, BySentence, 8, 0)

	segments, err := splitter.Split("这是第一个句子。这是第二个句子！这是第三个问题？")
	require.NoError(t, err)
	require.Len(t, segments, 3)
	assert.Equal(t, "这是第一个句子。", segments[0])
	assert.Equal(t, "这是第三个问题？", segments[2])

	t.Run("mixed language sentences", func(t *testing.T) {
		splitter := newSplitter(t, BySentence, 20, 0)
		segments, err := splitter.Split("This is English. 这是中文。And this is mixed.混合语言句子测试！")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, len(segments), 3, "应该正确分割中英文混合的句子")
		for _, seg := range segments {
			assert.LessOrEqual(t, utf8.RuneCountInString(seg), 20)
		}
	})
}

// TestSplitByLength 测试按长度分割功能
func TestSplitByLength(t *testing.T) {
	t.Run("chunk size constraint", func(t *testing.T) {
		splitter := newSplitter(t, ByLength, 50, 10)
		longText := strings.Repeat("这是测试文本，需要按长度进行分割。", 10)

		segments, err := splitter.Split(longText)
		require.NoError(t, err)
		assert.Greater(t, len(segments), 1)

		for _, seg := range segments {
			assert.True(t, utf8.ValidString(seg), "分块不应截断多字节字符")
			assert.LessOrEqual(t, utf8.RuneCountInString(seg), 50, "每个分段不应超过ChunkSize")
		}
	})

	t.Run("with overlap", func(t *testing.T) {
		splitter := newSplitter(t, ByLength, 30, 10)
		text := "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

		segments, err := splitter.Split(text)
		require.NoError(t, err)
		require.Len(t, segments, 2)

		assert.Equal(t, text[:30], segments[0])
		assert.Equal(t, text[20:], segments[1])
		assert.Equal(t, segments[0][20:], segments[1][:10], "段落之间应有指定的重叠")
	})

	t.Run("prefers whitespace boundaries", func(t *testing.T) {
		splitter := newSplitter(t, ByLength, 10, 2)

		segments, err := splitter.Split("aaaa bbbb cccc dddd")
		require.NoError(t, err)
		require.NotEmpty(t, segments)
		assert.Equal(t, "aaaa bbbb", segments[0])
		assert.True(t, strings.HasSuffix(segments[len(segments)-1], "dddd"))
	})
}

// TestHandleLargeChunks 测试处理过长段落的功能
func TestHandleLargeChunks(t *testing.T) {
	splitter := newSplitter(t, ByParagraph, 50, 10)
	longParagraph := strings.Repeat("这是一个非常长的段落，需要被分割成更小的块。", 10)

	segments, err := splitter.Split(longParagraph)
	require.NoError(t, err)
	assert.Greater(t, len(segments), 1, "长段落应被分割成多个块")
	for _, seg := range segments {
		assert.LessOrEqual(t, utf8.RuneCountInString(seg), 50)
	}
}

func TestSplitterConfigValidation(t *testing.T) {
	_, err := NewTextSplitter(SplitterConfig{SplitType: ByLength, ChunkSize: 0})
	assert.Error(t, err)

	_, err = NewTextSplitter(SplitterConfig{SplitType: ByLength, ChunkSize: 10, ChunkOverlap: 10})
	assert.Error(t, err)

	splitter, err := NewTextSplitter(SplitterConfig{SplitType: "words", ChunkSize: 10})
	require.NoError(t, err)
	_, err = splitter.Split("some text")
	assert.Error(t, err)
}

// TestEmptyInput 测试空输入的处理
func TestEmptyInput(t *testing.T) {
	splitter := newSplitter(t, ByLength, 1000, 100)

	segments, err := splitter.Split("")
	assert.NoError(t, err)
	assert.Empty(t, segments, "空输入应返回空段落列表")

	segments, err = splitter.Split("   \n\t   ")
	assert.NoError(t, err)
	assert.Empty(t, segments, "只包含空白的输入应返回空段落列表")
}

// TestEdgeCases 测试边缘情况
func TestEdgeCases(t *testing.T) {
	splitter := newSplitter(t, ByLength, 1000, 100)

	segments, err := splitter.Split("A")
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, segments)

	segments, err = splitter.Split(".,!?;:")
	require.NoError(t, err)
	assert.Len(t, segments, 1, "只包含标点符号的文本应作为一个段落")
}
