package document

import (
	"errors"
	"strings"

	"github.com/google/uuid"
)

// Page 提取出的单页文本
type Page struct {
	Number int    // 页码，从1开始，按原文档位置计算
	Text   string // 去掉首尾空白后的文本
}

// ChunkMetadata 文本块的来源信息
type ChunkMetadata struct {
	SourcePage int `json:"source_page"`
	ChunkIndex int `json:"chunk_index"`
}

// Record 待嵌入和索引的文本块记录
type Record struct {
	ID           string      `json:"id"`
	Content      string      `json:"content"`
	Metadata     interface{} `json:"metadata"` // ChunkMetadata或已序列化的字符串
	Embedding    []float32   `json:"embedding,omitempty"`
	SearchAction string      `json:"@search.action,omitempty"` // 写入索引时的操作类型
}

// ChunkMetadata 返回结构化的元数据，元数据已被序列化时返回false
func (r *Record) ChunkMetadata() (ChunkMetadata, bool) {
	switch m := r.Metadata.(type) {
	case ChunkMetadata:
		return m, true
	case *ChunkMetadata:
		if m != nil {
			return *m, true
		}
	}
	return ChunkMetadata{}, false
}

// IDGenerator 记录ID生成函数
type IDGenerator func() string

// RecordBuilder 将页面切块并构造成记录
type RecordBuilder struct {
	chunker Chunker
	newID   IDGenerator
}

// RecordBuilderOption 构造选项
type RecordBuilderOption func(*RecordBuilder)

// WithIDGenerator 替换ID生成函数
func WithIDGenerator(gen IDGenerator) RecordBuilderOption {
	return func(b *RecordBuilder) {
		if gen != nil {
			b.newID = gen
		}
	}
}

// NewRecordBuilder 创建记录构造器
func NewRecordBuilder(chunker Chunker, opts ...RecordBuilderOption) *RecordBuilder {
	b := &RecordBuilder{
		chunker: chunker,
		newID:   uuid.NewString,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// BuildRecords 按页序、块序生成记录，chunk_index在每页从0开始
// 去掉首尾空白后为空的块被跳过，不占用chunk_index
func (b *RecordBuilder) BuildRecords(pages []Page) ([]*Record, error) {
	var records []*Record
	for _, page := range pages {
		chunks, err := b.chunker.Chunk(page.Text)
		if err != nil {
			var ce *ChunkingError
			if errors.As(err, &ce) {
				if ce.Page == 0 {
					ce.Page = page.Number
				}
				return nil, ce
			}
			return nil, &ChunkingError{Page: page.Number, Err: err}
		}

		index := 0
		for _, chunk := range chunks {
			// 只含空白的窗口没有可嵌入的内容
			chunk = strings.TrimSpace(chunk)
			if chunk == "" {
				continue
			}
			records = append(records, &Record{
				ID:      b.newID(),
				Content: chunk,
				Metadata: ChunkMetadata{
					SourcePage: page.Number,
					ChunkIndex: index,
				},
			})
			index++
		}
	}
	return records, nil
}
