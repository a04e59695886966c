package embedding

import (
	"context"
	"fmt"
	"sync"

	"github.com/gammazero/workerpool"
)

// BatchProcessor 批处理器
// 将大量文本按批次交给嵌入客户端，可以并行提交多个批次
type BatchProcessor struct {
	client     Client // 嵌入客户端
	batchSize  int    // 每批处理的文本数量
	maxWorkers int    // 最大并行批次数
}

// NewBatchProcessor 创建新的批处理器，maxWorkers为1时按顺序逐批处理
func NewBatchProcessor(client Client, batchSize int, maxWorkers int) *BatchProcessor {
	if batchSize <= 0 {
		batchSize = 16
	}
	if maxWorkers <= 0 {
		maxWorkers = 1
	}

	return &BatchProcessor{
		client:     client,
		batchSize:  batchSize,
		maxWorkers: maxWorkers,
	}
}

// Process 为所有文本生成向量，结果顺序与输入一致
// 任一批次失败时返回第一个错误
func (p *BatchProcessor) Process(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	batches := splitIntoBatches(texts, p.batchSize)
	results := make([][][]float32, len(batches))

	if p.maxWorkers == 1 || len(batches) == 1 {
		for i, batch := range batches {
			vectors, err := p.embedBatch(ctx, i, batch)
			if err != nil {
				return nil, err
			}
			results[i] = vectors
		}
		return flatten(results), nil
	}

	wp := workerpool.New(p.maxWorkers)
	var (
		errOnce  sync.Once
		firstErr error
	)
	batchCtx, abort := context.WithCancel(ctx)
	defer abort()

	for i, batch := range batches {
		i, batch := i, batch
		wp.Submit(func() {
			if batchCtx.Err() != nil {
				return
			}
			vectors, err := p.embedBatch(batchCtx, i, batch)
			if err != nil {
				errOnce.Do(func() {
					firstErr = err
					abort()
				})
				return
			}
			results[i] = vectors
		})
	}
	wp.StopWait()

	if firstErr != nil {
		return nil, firstErr
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return flatten(results), nil
}

func (p *BatchProcessor) embedBatch(ctx context.Context, index int, batch []string) ([][]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	vectors, err := p.client.EmbedBatch(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("batch %d: %w", index, err)
	}
	if len(vectors) != len(batch) {
		return nil, fmt.Errorf("batch %d: expected %d vectors, got %d", index, len(batch), len(vectors))
	}
	return vectors, nil
}

// splitIntoBatches 将文本列表分割成多个批次
func splitIntoBatches(texts []string, batchSize int) [][]string {
	batches := make([][]string, 0, (len(texts)+batchSize-1)/batchSize)
	for i := 0; i < len(texts); i += batchSize {
		end := min(i+batchSize, len(texts))
		batches = append(batches, texts[i:end])
	}
	return batches
}

func flatten(results [][][]float32) [][]float32 {
	var all [][]float32
	for _, vectors := range results {
		all = append(all, vectors...)
	}
	return all
}
