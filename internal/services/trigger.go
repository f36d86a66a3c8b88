package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fyerfyer/rag-indexer/internal/document"
	"github.com/fyerfyer/rag-indexer/internal/models"
	"github.com/fyerfyer/rag-indexer/internal/repository"
	"github.com/fyerfyer/rag-indexer/pkg/storage"
	"github.com/fyerfyer/rag-indexer/pkg/taskqueue"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// ErrUnsupportedDocument 对象扩展名无法识别，不做处理
var ErrUnsupportedDocument = errors.New("unsupported document")

// Orchestrator 对单个文档执行完整的索引流程
type Orchestrator interface {
	ProcessAndIndex(ctx context.Context, r io.Reader, name string) (*IndexReport, error)
}

// BlobTrigger 对象上传后的索引触发器
// 每个对象调用一次，读取对象内容并交给编排服务，同时保存运行记录
type BlobTrigger struct {
	storage      storage.Storage
	orchestrator Orchestrator
	runs         repository.RunRepository
	newID        func() string
	logger       *logrus.Logger
}

// TriggerOption 触发器配置选项
type TriggerOption func(*BlobTrigger)

// WithTriggerLogger 设置日志记录器
func WithTriggerLogger(logger *logrus.Logger) TriggerOption {
	return func(t *BlobTrigger) {
		if logger != nil {
			t.logger = logger
		}
	}
}

// WithRunIDGenerator 设置运行记录ID生成器
func WithRunIDGenerator(gen func() string) TriggerOption {
	return func(t *BlobTrigger) {
		if gen != nil {
			t.newID = gen
		}
	}
}

// NewBlobTrigger 创建索引触发器
func NewBlobTrigger(
	store storage.Storage,
	orchestrator Orchestrator,
	runs repository.RunRepository,
	opts ...TriggerOption,
) *BlobTrigger {
	t := &BlobTrigger{
		storage:      store,
		orchestrator: orchestrator,
		runs:         runs,
		newID:        uuid.NewString,
		logger:       logrus.New(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// HandleBlob 为容器中的一个对象建立索引
// 返回的运行记录已持久化；文档级失败时同时返回错误
func (t *BlobTrigger) HandleBlob(ctx context.Context, name string) (*models.IndexRun, error) {
	info, err := t.storage.Stat(ctx, name)
	if err != nil {
		t.logger.WithError(err).WithField("name", name).Error("Failed to stat blob")
		return nil, fmt.Errorf("failed to stat blob %s: %w", name, err)
	}

	log := t.logger.WithFields(logrus.Fields{
		"document": info.Path,
		"size":     info.Size,
	})
	log.Info(fmt.Sprintf("Blob trigger processed blob Name: %s Blob Size: %d bytes", info.Path, info.Size))

	if !document.IsSupported(info.Name) {
		log.Error(fmt.Sprintf("Unsupported document type for blob %s", info.Path))
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDocument, info.Path)
	}

	run := &models.IndexRun{
		ID:       t.newID(),
		Document: info.Path,
		Status:   models.RunRunning,
	}
	if err := t.runs.Create(ctx, run); err != nil {
		log.WithError(err).Error("Failed to create index run")
		return nil, fmt.Errorf("failed to create index run: %w", err)
	}

	report, procErr := t.process(ctx, info)
	t.finish(run, report, procErr)

	// 即使上游已取消也要写入最终状态
	if err := t.runs.Update(context.WithoutCancel(ctx), run); err != nil {
		log.WithError(err).WithField("run_id", run.ID).Error("Failed to save index run")
		if procErr == nil {
			return run, fmt.Errorf("failed to save index run: %w", err)
		}
	}

	log.WithFields(logrus.Fields{
		"run_id":  run.ID,
		"status":  string(run.Status),
		"indexed": run.IndexedCount,
		"failed":  run.FailedCount,
	}).Info("Index run finished")

	return run, procErr
}

// process 打开对象并执行索引流程，对象只读取一次
func (t *BlobTrigger) process(ctx context.Context, info storage.BlobInfo) (*IndexReport, error) {
	rc, err := t.storage.Open(ctx, info.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to open blob %s: %w", info.Path, err)
	}
	defer rc.Close()

	return t.orchestrator.ProcessAndIndex(ctx, rc, info.Path)
}

// finish 根据索引结果填充运行记录
func (t *BlobTrigger) finish(run *models.IndexRun, report *IndexReport, err error) {
	now := time.Now()
	run.FinishedAt = &now

	if report != nil {
		run.RecordCount = len(report.Records)
		run.IndexedCount = report.IndexedCount()
		run.FailedCount = report.FailedCount()
		if data, mErr := json.Marshal(report.Records); mErr == nil {
			run.Records = datatypes.JSON(data)
		} else {
			t.logger.WithError(mErr).WithField("run_id", run.ID).Warn("Failed to encode record results")
		}
	}

	switch {
	case err != nil:
		run.Status = models.RunFailed
		run.Error = err.Error()
	case report != nil && report.Skipped:
		run.Status = models.RunSkipped
	default:
		run.Status = models.RunCompleted
	}
}

// TaskHandler 返回处理index_blob任务的队列处理器
func (t *BlobTrigger) TaskHandler() taskqueue.Handler {
	return taskqueue.HandlerFunc(func(ctx context.Context, task *taskqueue.Task) (interface{}, error) {
		var payload taskqueue.IndexBlobPayload
		if err := taskqueue.UnmarshalPayload(task.Payload, &payload); err != nil {
			return nil, fmt.Errorf("%w: %v", taskqueue.ErrInvalidPayload, err)
		}
		if payload.Name == "" {
			return nil, taskqueue.ErrInvalidPayload
		}
		if payload.Container != "" && payload.Container != t.storage.Container() {
			return nil, fmt.Errorf("%w: unknown container %s", taskqueue.ErrInvalidPayload, payload.Container)
		}

		run, err := t.HandleBlob(ctx, payload.Name)
		if run == nil {
			return nil, err
		}
		return &taskqueue.IndexBlobResult{
			RunID:   run.ID,
			Status:  string(run.Status),
			Records: run.RecordCount,
			Indexed: run.IndexedCount,
			Failed:  run.FailedCount,
		}, err
	})
}
