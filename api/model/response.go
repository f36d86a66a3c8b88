package model

import (
	"time"

	"github.com/fyerfyer/rag-indexer/internal/models"
	"gorm.io/datatypes"
)

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`               // 响应状态码，0表示成功
	Message string      `json:"message"`            // 响应消息
	Data    interface{} `json:"data,omitempty"`     // 响应数据，可能为空
	TraceID string      `json:"trace_id,omitempty"` // 调用链追踪ID
}

// NewSuccessResponse 创建成功响应
func NewSuccessResponse(data interface{}) *Response {
	return &Response{
		Code:    0,
		Message: "success",
		Data:    data,
	}
}

// NewErrorResponse 创建错误响应
func NewErrorResponse(code int, message string) *Response {
	return &Response{
		Code:    code,
		Message: message,
	}
}

// BlobItem 对象列表中的一项
type BlobItem struct {
	Name string `json:"name"` // 带容器前缀的完整路径
}

// BlobListResponse 对象列表响应
type BlobListResponse struct {
	Blobs []BlobItem `json:"blobs"`
}

// BlobUploadResponse 对象上传响应
type BlobUploadResponse struct {
	Success bool   `json:"success"`           // 是否成功
	Path    string `json:"path"`              // 带容器前缀的完整路径
	URL     string `json:"url,omitempty"`     // 访问地址
	Error   string `json:"error,omitempty"`   // 错误信息
	TaskID  string `json:"task_id,omitempty"` // 索引任务ID（异步模式）
	RunID   string `json:"run_id,omitempty"`  // 索引运行ID（同步模式）
}

// RunInfo 索引运行信息
type RunInfo struct {
	ID           string         `json:"id"`
	Document     string         `json:"document"`
	Status       string         `json:"status"`
	RecordCount  int            `json:"record_count"`
	IndexedCount int            `json:"indexed"`
	FailedCount  int            `json:"failed"`
	Error        string         `json:"error,omitempty"`
	Records      datatypes.JSON `json:"records,omitempty"` // 仅详情接口返回
	StartedAt    time.Time      `json:"started_at"`
	FinishedAt   *time.Time     `json:"finished_at,omitempty"`
}

// NewRunInfo 将运行记录转换为响应结构
func NewRunInfo(run *models.IndexRun) RunInfo {
	return RunInfo{
		ID:           run.ID,
		Document:     run.Document,
		Status:       string(run.Status),
		RecordCount:  run.RecordCount,
		IndexedCount: run.IndexedCount,
		FailedCount:  run.FailedCount,
		Error:        run.Error,
		Records:      run.Records,
		StartedAt:    run.StartedAt,
		FinishedAt:   run.FinishedAt,
	}
}

// RunListResponse 运行记录列表响应
type RunListResponse struct {
	Total    int64     `json:"total"`     // 总数量
	Page     int       `json:"page"`      // 当前页码
	PageSize int       `json:"page_size"` // 每页大小
	Runs     []RunInfo `json:"runs"`      // 运行记录
}

// HealthResponse 健康检查响应
type HealthResponse struct {
	Status     string            `json:"status"`           // ok 或 not_ready
	Components map[string]string `json:"components"`       // 各组件状态
	Error      string            `json:"error,omitempty"` // 配置错误
}
