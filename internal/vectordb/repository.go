package vectordb

import (
	"fmt"
	"math"
	"sort"
)

// ComputeDistance 计算两个向量间的距离
func ComputeDistance(v1, v2 []float32, distType DistanceType) (float32, error) {
	if len(v1) != len(v2) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrInvalidDimension, len(v1), len(v2))
	}

	switch distType {
	case Cosine:
		return cosineDistance(v1, v2), nil
	case DotProduct:
		return dotProduct(v1, v2), nil
	case Euclidean:
		return euclideanDistance(v1, v2), nil
	default:
		return 0, fmt.Errorf("unsupported distance type: %s", distType)
	}
}

// cosineDistance 计算余弦距离，即 1 - 余弦相似度
func cosineDistance(v1, v2 []float32) float32 {
	dot := dotProduct(v1, v2)
	norm1 := vectorNorm(v1)
	norm2 := vectorNorm(v2)

	if norm1 == 0 || norm2 == 0 {
		return 1.0
	}

	similarity := dot / (norm1 * norm2)
	// 浮点误差
	if similarity > 1.0 {
		similarity = 1.0
	}

	return 1.0 - similarity
}

// dotProduct 计算两个向量的点积
func dotProduct(v1, v2 []float32) float32 {
	var dot float32
	for i := 0; i < len(v1); i++ {
		dot += v1[i] * v2[i]
	}
	return dot
}

// euclideanDistance 计算欧几里德距离
func euclideanDistance(v1, v2 []float32) float32 {
	var sum float32
	for i := 0; i < len(v1); i++ {
		d := v1[i] - v2[i]
		sum += d * d
	}
	return float32(math.Sqrt(float64(sum)))
}

// vectorNorm 计算向量的L2范数
func vectorNorm(v []float32) float32 {
	var sum float32
	for _, val := range v {
		sum += val * val
	}
	return float32(math.Sqrt(float64(sum)))
}

// normalizeVector 归一化向量（使其长度为1）
func normalizeVector(v []float32) []float32 {
	norm := vectorNorm(v)
	if norm == 0 {
		return v
	}

	result := make([]float32, len(v))
	for i, val := range v {
		result[i] = val / norm
	}
	return result
}

// matchFilter 检查文档是否满足来源和元数据过滤条件
func matchFilter(doc Document, sources map[string]struct{}, filterMeta map[string]interface{}) bool {
	if len(sources) > 0 {
		if _, ok := sources[doc.Source]; !ok {
			return false
		}
	}
	return matchMetadata(doc.Metadata, filterMeta)
}

// matchMetadata 检查文档元数据是否匹配过滤条件
func matchMetadata(docMeta map[string]interface{}, filterMeta map[string]interface{}) bool {
	for key, filterValue := range filterMeta {
		docValue, exists := docMeta[key]
		if !exists || fmt.Sprint(docValue) != fmt.Sprint(filterValue) {
			return false
		}
	}
	return true
}

func sourceSet(sources []string) map[string]struct{} {
	if len(sources) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(sources))
	for _, s := range sources {
		set[s] = struct{}{}
	}
	return set
}

// SortSearchResults 按相似度评分降序排序，评分相同时按ID排序
func SortSearchResults(results []SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Document.ID < results[j].Document.ID
	})
}

// DistanceToScore 将距离转换为评分
func DistanceToScore(distance float32, distType DistanceType) float32 {
	switch distType {
	case Cosine:
		return 1 - distance
	case DotProduct:
		// 归一化向量的点积范围在[-1, 1]之间
		return (distance + 1) / 2
	case Euclidean:
		return float32(math.Exp(-float64(distance)))
	default:
		return 0
	}
}

// ValidateVector 验证向量维度和有效性
func ValidateVector(vector []float32, expectedDim int) error {
	if len(vector) == 0 {
		return ErrEmptyVector
	}

	if expectedDim > 0 && len(vector) != expectedDim {
		return fmt.Errorf("%w: expected %d, got %d", ErrInvalidDimension, expectedDim, len(vector))
	}

	return nil
}

// prepareDocument 校验并补全待写入的文档
func prepareDocument(doc *Document, dimension int, distType DistanceType) error {
	if doc.ID == "" {
		return ErrInvalidID
	}
	if err := ValidateVector(doc.Vector, dimension); err != nil {
		return fmt.Errorf("invalid vector for document %s: %w", doc.ID, err)
	}
	if doc.Metadata == nil {
		doc.Metadata = make(map[string]interface{})
	}
	if distType == Cosine {
		doc.Vector = normalizeVector(doc.Vector)
	}
	return nil
}

// scanDocuments 对候选文档逐一计算距离并返回得分最高的结果
func scanDocuments(vector []float32, docs []Document, distType DistanceType, filter SearchFilter) ([]SearchResult, error) {
	sources := sourceSet(filter.Sources)
	results := make([]SearchResult, 0, len(docs))

	for _, doc := range docs {
		if !matchFilter(doc, sources, filter.Metadata) {
			continue
		}

		dist, err := ComputeDistance(vector, doc.Vector, distType)
		if err != nil {
			return nil, fmt.Errorf("error computing distance for %s: %w", doc.ID, err)
		}

		score := DistanceToScore(dist, distType)
		if filter.MinScore > 0 && score < filter.MinScore {
			continue
		}
		results = append(results, SearchResult{
			Document: doc,
			Score:    score,
			Distance: dist,
		})
	}

	SortSearchResults(results)

	if filter.MaxResults > 0 && len(results) > filter.MaxResults {
		results = results[:filter.MaxResults]
	}
	return results, nil
}
