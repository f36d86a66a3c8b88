package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/fyerfyer/rag-indexer/internal/document"
	"github.com/fyerfyer/rag-indexer/internal/embedding"
	"github.com/fyerfyer/rag-indexer/internal/search"
	"github.com/fyerfyer/rag-indexer/internal/tracing"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// ErrTimeout 外部调用超过了截止时间
var ErrTimeout = errors.New("external call timed out")

// RecordStatus 单条记录的处理结果
type RecordStatus string

const (
	// RecordIndexed 已写入索引
	RecordIndexed RecordStatus = "indexed"
	// RecordEmbeddingFailed 嵌入失败，记录被丢弃
	RecordEmbeddingFailed RecordStatus = "embedding_failed"
	// RecordIndexingFailed 写入索引失败，记录被丢弃
	RecordIndexingFailed RecordStatus = "indexing_failed"
)

// RecordResult 单条记录的处理结果
type RecordResult struct {
	RecordID   string       `json:"record_id"`
	SourcePage int          `json:"source_page"`
	ChunkIndex int          `json:"chunk_index"`
	Status     RecordStatus `json:"status"`
	Error      string       `json:"error,omitempty"`
	Err        error        `json:"-"`
}

// IndexReport 一个文档的索引结果
type IndexReport struct {
	Document string         `json:"document"`
	Skipped  bool           `json:"skipped"` // 没有提取出任何文本块
	Records  []RecordResult `json:"records"`
}

// IndexedCount 成功写入索引的记录数
func (r *IndexReport) IndexedCount() int {
	n := 0
	for _, rec := range r.Records {
		if rec.Status == RecordIndexed {
			n++
		}
	}
	return n
}

// FailedCount 失败的记录数
func (r *IndexReport) FailedCount() int {
	return len(r.Records) - r.IndexedCount()
}

// Failures 返回所有失败的记录
func (r *IndexReport) Failures() []RecordResult {
	var failed []RecordResult
	for _, rec := range r.Records {
		if rec.Status != RecordIndexed {
			failed = append(failed, rec)
		}
	}
	return failed
}

// DocumentProcessor 把文档转换为记录
type DocumentProcessor interface {
	ProcessToRecords(r io.Reader, name string) ([]*document.Record, error)
}

// IndexingService 索引编排服务
// 按顺序对每条记录调用嵌入和索引，单条失败不影响其他记录
type IndexingService struct {
	processor    DocumentProcessor
	embedder     embedding.Client
	indexer      search.Indexer
	embedTimeout time.Duration // 单次嵌入调用的截止时间，0表示不限制
	indexTimeout time.Duration // 单次索引调用的截止时间，0表示不限制
	tracer       trace.Tracer
	logger       *logrus.Logger
}

// IndexingOption 索引服务配置选项
type IndexingOption func(*IndexingService)

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) IndexingOption {
	return func(s *IndexingService) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEmbedTimeout 设置嵌入调用的截止时间
func WithEmbedTimeout(timeout time.Duration) IndexingOption {
	return func(s *IndexingService) {
		s.embedTimeout = timeout
	}
}

// WithIndexTimeout 设置索引调用的截止时间
func WithIndexTimeout(timeout time.Duration) IndexingOption {
	return func(s *IndexingService) {
		s.indexTimeout = timeout
	}
}

// WithTracer 设置tracer
func WithTracer(tracer trace.Tracer) IndexingOption {
	return func(s *IndexingService) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// NewIndexingService 创建索引编排服务
func NewIndexingService(
	processor DocumentProcessor,
	embedder embedding.Client,
	indexer search.Indexer,
	opts ...IndexingOption,
) *IndexingService {
	s := &IndexingService{
		processor:    processor,
		embedder:     embedder,
		indexer:      indexer,
		embedTimeout: 30 * time.Second,
		indexTimeout: 30 * time.Second,
		tracer:       tracing.Tracer(),
		logger:       logrus.New(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ProcessAndIndex 提取、分块、嵌入并索引一个文档
// 提取或分块失败时返回错误；单条记录的失败记录在报告中
func (s *IndexingService) ProcessAndIndex(ctx context.Context, r io.Reader, name string) (*IndexReport, error) {
	ctx, span := s.tracer.Start(ctx, "IndexingService.ProcessAndIndex",
		trace.WithAttributes(attribute.String("document", name)))
	defer span.End()

	log := s.logger.WithField("document", name)
	log.Info(fmt.Sprintf("Starting processing for document: %s", name))

	records, err := s.processor.ProcessToRecords(r, name)
	if err != nil {
		log.WithError(err).Error(fmt.Sprintf("Failed during processing of %s: %v", name, err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "document processing failed")
		return nil, err
	}
	log.Info(fmt.Sprintf("Extracted %d chunks from %s.", len(records), name))
	span.SetAttributes(attribute.Int("records", len(records)))

	report := &IndexReport{Document: name}
	if len(records) == 0 {
		log.Warn(fmt.Sprintf("No text chunks were extracted from %s. Skipping indexing.", name))
		report.Skipped = true
		return report, nil
	}

	report.Records = make([]RecordResult, 0, len(records))
	for _, record := range records {
		if err := ctx.Err(); err != nil {
			log.WithError(err).Error(fmt.Sprintf("Failed during processing of %s: %v", name, err))
			span.RecordError(err)
			span.SetStatus(codes.Error, "cancelled")
			return report, err
		}
		report.Records = append(report.Records, s.indexRecord(ctx, name, record))
	}

	span.SetAttributes(
		attribute.Int("indexed", report.IndexedCount()),
		attribute.Int("failed", report.FailedCount()),
	)
	log.Info(fmt.Sprintf("Successfully processed and initiated indexing for chunks from %s", name))
	return report, nil
}

// indexRecord 嵌入并索引单条记录
func (s *IndexingService) indexRecord(ctx context.Context, name string, record *document.Record) RecordResult {
	result := RecordResult{RecordID: record.ID}
	if meta, ok := record.ChunkMetadata(); ok {
		result.SourcePage = meta.SourcePage
		result.ChunkIndex = meta.ChunkIndex
	}

	ctx, span := s.tracer.Start(ctx, "IndexingService.indexRecord",
		trace.WithAttributes(
			attribute.String("record_id", record.ID),
			attribute.Int("source_page", result.SourcePage),
			attribute.Int("chunk_index", result.ChunkIndex),
		))
	defer span.End()

	vec, err := s.embed(ctx, record.Content)
	if err != nil {
		return s.fail(span, name, result, RecordEmbeddingFailed, err)
	}

	if err := s.index(ctx, record, vec); err != nil {
		return s.fail(span, name, result, RecordIndexingFailed, err)
	}

	result.Status = RecordIndexed
	return result
}

// fail 记录单条失败并返回结果
func (s *IndexingService) fail(span trace.Span, name string, result RecordResult, status RecordStatus, err error) RecordResult {
	s.logger.WithFields(logrus.Fields{
		"document":    name,
		"record_id":   result.RecordID,
		"page":        result.SourcePage,
		"chunk_index": result.ChunkIndex,
		"status":      string(status),
	}).Error(fmt.Sprintf("Error processing chunk %s for %s: %v", result.RecordID, name, err))

	span.RecordError(err)
	span.SetStatus(codes.Error, string(status))

	result.Status = status
	result.Error = err.Error()
	result.Err = err
	return result
}

// embed 在独立的截止时间内调用嵌入服务
func (s *IndexingService) embed(ctx context.Context, text string) ([]float32, error) {
	callCtx, cancel := withTimeout(ctx, s.embedTimeout)
	defer cancel()

	vec, err := s.embedder.Embed(callCtx, text)
	if err != nil {
		return nil, timeoutError(callCtx, "embedding", err)
	}
	return vec, nil
}

// index 在独立的截止时间内调用索引服务
func (s *IndexingService) index(ctx context.Context, record *document.Record, vec []float32) error {
	callCtx, cancel := withTimeout(ctx, s.indexTimeout)
	defer cancel()

	if err := s.indexer.Index(callCtx, record, vec); err != nil {
		return timeoutError(callCtx, "indexing", err)
	}
	return nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

// timeoutError 截止时间到期时把错误标记为ErrTimeout
func timeoutError(ctx context.Context, op string, err error) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, ErrTimeout, err)
	}
	return err
}
