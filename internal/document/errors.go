package document

import (
	"errors"
	"fmt"
)

// ErrUnsupportedFormat 不支持的文档格式
var ErrUnsupportedFormat = errors.New("unsupported document type")

// ExtractionError 文本提取失败，整个文档无法继续处理
type ExtractionError struct {
	Source string // 文档名称
	Err    error  // 原始错误
}

// Error 实现error接口
func (e *ExtractionError) Error() string {
	return fmt.Sprintf("extraction error (%s): %v", e.Source, e.Err)
}

// Unwrap 返回原始错误
func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// ChunkingError 分词或分块失败，整个文档无法继续处理
type ChunkingError struct {
	Page int   // 出错的页码，0表示未知
	Err  error // 原始错误
}

// Error 实现error接口
func (e *ChunkingError) Error() string {
	if e.Page > 0 {
		return fmt.Sprintf("chunking error (page %d): %v", e.Page, e.Err)
	}
	return fmt.Sprintf("chunking error: %v", e.Err)
}

// Unwrap 返回原始错误
func (e *ChunkingError) Unwrap() error {
	return e.Err
}
