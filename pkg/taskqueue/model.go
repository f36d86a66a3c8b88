package taskqueue

import (
	"encoding/json"
	"time"
)

// TaskType 任务类型
type TaskType string

const (
	// TaskIndexBlob 为一个新上传的对象建立索引
	TaskIndexBlob TaskType = "index_blob"
)

// TaskStatus 任务状态
type TaskStatus string

const (
	// StatusPending 等待处理
	StatusPending TaskStatus = "pending"
	// StatusProcessing 处理中
	StatusProcessing TaskStatus = "processing"
	// StatusCompleted 已完成
	StatusCompleted TaskStatus = "completed"
	// StatusFailed 处理失败
	StatusFailed TaskStatus = "failed"
)

// Task 任务基础结构
type Task struct {
	ID          string          `json:"id"`           // 任务唯一标识符
	Type        TaskType        `json:"type"`         // 任务类型
	Document    string          `json:"document"`     // 关联的文档路径
	Status      TaskStatus      `json:"status"`       // 任务状态
	Payload     json.RawMessage `json:"payload"`      // 任务载荷数据
	Result      json.RawMessage `json:"result"`       // 任务结果数据
	Error       string          `json:"error"`        // 错误信息（如果处理失败）
	CreatedAt   time.Time       `json:"created_at"`   // 创建时间
	UpdatedAt   time.Time       `json:"updated_at"`   // 更新时间
	StartedAt   *time.Time      `json:"started_at"`   // 开始处理时间
	CompletedAt *time.Time      `json:"completed_at"` // 完成时间
	MaxRetries  int             `json:"max_retries"`  // 最大重试次数
}

// IndexBlobPayload 索引任务载荷
type IndexBlobPayload struct {
	Container string `json:"container"` // 容器名称
	Name      string `json:"name"`      // 容器内的对象名
	Size      int64  `json:"size"`      // 对象大小(字节)
}

// IndexBlobResult 索引任务结果
type IndexBlobResult struct {
	RunID   string `json:"run_id"`  // 索引记录ID
	Status  string `json:"status"`  // completed, skipped, failed
	Records int    `json:"records"` // 记录总数
	Indexed int    `json:"indexed"` // 成功写入索引的记录数
	Failed  int    `json:"failed"`  // 失败的记录数
}
