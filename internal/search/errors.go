package search

import "fmt"

// IndexingError 检索服务返回了非2xx响应
type IndexingError struct {
	StatusCode int    // HTTP状态码
	Body       string // 响应体
}

// Error 实现error接口
func (e *IndexingError) Error() string {
	return fmt.Sprintf("indexing error (status=%d): %s", e.StatusCode, e.Body)
}
