package models

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// RunStatus 索引运行状态
type RunStatus string

const (
	// RunRunning 正在处理
	RunRunning RunStatus = "running"
	// RunCompleted 处理完成，可能包含部分失败的记录
	RunCompleted RunStatus = "completed"
	// RunSkipped 文档没有可索引的文本
	RunSkipped RunStatus = "skipped"
	// RunFailed 文档级失败（读取、提取或分块失败）
	RunFailed RunStatus = "failed"
)

// IndexRun 一次文档索引的运行记录
type IndexRun struct {
	ID           string         `gorm:"primaryKey" json:"id"`                   // 运行ID
	Document     string         `gorm:"not null;index" json:"document"`         // 文档路径，如 documents/report.pdf
	Status       RunStatus      `gorm:"not null;size:20;index" json:"status"`   // 运行状态
	RecordCount  int            `gorm:"not null;default:0" json:"record_count"` // 记录总数
	IndexedCount int            `gorm:"not null;default:0" json:"indexed"`      // 成功写入索引的记录数
	FailedCount  int            `gorm:"not null;default:0" json:"failed"`       // 失败的记录数
	Error        string         `gorm:"type:text" json:"error,omitempty"`       // 文档级错误信息
	Records      datatypes.JSON `gorm:"type:json" json:"records,omitempty"`     // 每条记录的处理结果
	StartedAt    time.Time      `gorm:"not null;index" json:"started_at"`       // 开始时间
	FinishedAt   *time.Time     `json:"finished_at,omitempty"`                  // 结束时间
	UpdatedAt    time.Time      `gorm:"not null" json:"updated_at"`             // 更新时间
}

// BeforeCreate GORM的钩子函数，创建记录前自动设置时间
func (r *IndexRun) BeforeCreate(tx *gorm.DB) (err error) {
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	r.UpdatedAt = time.Now()
	return nil
}

// BeforeUpdate GORM的钩子函数，更新记录前自动设置更新时间
func (r *IndexRun) BeforeUpdate(tx *gorm.DB) (err error) {
	r.UpdatedAt = time.Now()
	return nil
}

// TableName 明确指定表名
func (IndexRun) TableName() string {
	return "index_runs"
}
