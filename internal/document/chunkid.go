package document

import (
	"fmt"
	"strings"
)

// IDMode 分块ID的分配方式
type IDMode string

const (
	// IDModeGrouped 按(source, page)分组计数，同一页的分块即使不相邻也不会产生重复ID
	IDModeGrouped IDMode = "grouped"
	// IDModeContiguous 只与前一个分块比较页面键，页面键变化时计数归零
	// 同一页的分块不相邻时会产生重复ID
	IDModeContiguous IDMode = "contiguous"
)

// missingValue 缺失的source或page在ID中的表示
const missingValue = "None"

// ParseIDMode 解析ID分配方式，空字符串返回默认的IDModeGrouped
func ParseIDMode(s string) (IDMode, error) {
	switch IDMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", IDModeGrouped:
		return IDModeGrouped, nil
	case IDModeContiguous:
		return IDModeContiguous, nil
	default:
		return "", fmt.Errorf("unknown chunk id mode: %q", s)
	}
}

// AssignChunkIDs 为每个分块分配形如 {source}:{page}:{index} 的ID并写入元数据
// 原地修改并返回同一个切片，分块顺序保持不变
func AssignChunkIDs(chunks []Chunk, mode IDMode) []Chunk {
	if mode == IDModeContiguous {
		assignContiguous(chunks)
	} else {
		assignGrouped(chunks)
	}
	return chunks
}

func assignGrouped(chunks []Chunk) {
	counts := make(map[string]int)
	for i := range chunks {
		key := pageKey(chunks[i])
		index := counts[key]
		counts[key] = index + 1
		setID(&chunks[i], key, index)
	}
}

func assignContiguous(chunks []Chunk) {
	lastKey := ""
	index := 0
	for i := range chunks {
		key := pageKey(chunks[i])
		if i > 0 && key == lastKey {
			index++
		} else {
			index = 0
		}
		setID(&chunks[i], key, index)
		lastKey = key
	}
}

// pageKey 返回 {source}:{page}
func pageKey(c Chunk) string {
	return metaString(c.Metadata, MetaSource) + ":" + metaString(c.Metadata, MetaPage)
}

func metaString(meta map[string]interface{}, key string) string {
	v, ok := meta[key]
	if !ok || v == nil {
		return missingValue
	}
	return fmt.Sprint(v)
}

func setID(c *Chunk, key string, index int) {
	if c.Metadata == nil {
		c.Metadata = make(map[string]interface{})
	}
	c.Metadata[MetaID] = fmt.Sprintf("%s:%d", key, index)
}
