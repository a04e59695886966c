package document

import "fmt"

// 分块元数据中的键
const (
	MetaSource = "source"
	MetaPage   = "page"
	MetaID     = "id"
)

// Document 输入文档中的一页
type Document struct {
	Source  string // 相对于输入根目录的路径
	Page    int    // 页码，从0开始
	Content string // 页面文本
}

// Chunk 文档分块，继承所属页面的source和page元数据
type Chunk struct {
	Content  string
	Metadata map[string]interface{}
}

// ID 返回已分配的分块ID，未分配时返回空字符串
func (c Chunk) ID() string {
	id, _ := c.Metadata[MetaID].(string)
	return id
}

// Source 返回分块所属的文档来源
func (c Chunk) Source() string {
	source, _ := c.Metadata[MetaSource].(string)
	return source
}

// Page 返回分块所属的页码，缺失时返回-1
func (c Chunk) Page() int {
	if page, ok := c.Metadata[MetaPage].(int); ok {
		return page
	}
	return -1
}

// NewChunk 创建带有source和page元数据的分块
func NewChunk(source string, page int, content string) Chunk {
	return Chunk{
		Content: content,
		Metadata: map[string]interface{}{
			MetaSource: source,
			MetaPage:   page,
		},
	}
}

// SplitDocuments 将文档按页切分为分块，输出顺序与输入顺序一致
func SplitDocuments(docs []Document, splitter Splitter) ([]Chunk, error) {
	var chunks []Chunk
	for _, doc := range docs {
		parts, err := splitter.Split(doc.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to split %s page %d: %w", doc.Source, doc.Page, err)
		}
		for _, part := range parts {
			chunks = append(chunks, NewChunk(doc.Source, doc.Page, part))
		}
	}
	return chunks, nil
}
