package embedding

import "fmt"

// EmbeddingError 嵌入错误类型
type EmbeddingError struct {
	Code    int    // 错误码
	Message string // 错误消息
	Err     error  // 原始错误
}

// Error 实现error接口
func (e EmbeddingError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("embedding error (code=%d): %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("embedding error (code=%d): %s", e.Code, e.Message)
}

// Unwrap 返回原始错误
func (e EmbeddingError) Unwrap() error {
	return e.Err
}

// 错误码常量
const (
	ErrCodeInvalidAPIKey  = 1001 // 无效的API密钥
	ErrCodeInvalidRequest = 1002 // 无效的请求
	ErrCodeNetworkError   = 1003 // 网络连接错误
	ErrCodeRateLimited    = 1004 // 请求频率超限
	ErrCodeServerError    = 1005 // 服务器错误
	ErrCodeTimeout        = 1006 // 请求超时
	ErrCodeEmptyInput     = 1007 // 输入为空
	ErrCodeEmptyResponse  = 1008 // 响应中没有向量
)

// 错误消息常量
const (
	ErrMsgInvalidAPIKey  = "invalid API key"
	ErrMsgInvalidRequest = "invalid request parameters"
	ErrMsgRateLimited    = "too many requests, rate limit exceeded"
	ErrMsgServerError    = "server error occurred"
	ErrMsgTimeout        = "request timed out"
	ErrMsgEmptyInput     = "input text cannot be empty"
	ErrMsgNetworkError   = "network connection error"
	ErrMsgEmptyResponse  = "response contains no embedding"
)

// NewEmbeddingError 创建新的嵌入错误
func NewEmbeddingError(code int, message string) EmbeddingError {
	return EmbeddingError{
		Code:    code,
		Message: message,
	}
}

// wrapError 创建带原始错误的嵌入错误
func wrapError(code int, message string, err error) EmbeddingError {
	return EmbeddingError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}
