package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/fyerfyer/rag-indexer/internal/document"
	"github.com/fyerfyer/rag-indexer/internal/embedding"
	"github.com/fyerfyer/rag-indexer/internal/search"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// mockEmbedder 嵌入客户端的mock
type mockEmbedder struct {
	mock.Mock
}

func (m *mockEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	args := m.Called(ctx, text)
	vec, _ := args.Get(0).([]float32)
	return vec, args.Error(1)
}

func (m *mockEmbedder) Name() string { return "mock" }

// mockIndexer 索引客户端的mock
type mockIndexer struct {
	mock.Mock
}

func (m *mockIndexer) Index(ctx context.Context, record *document.Record, vec []float32) error {
	args := m.Called(ctx, record, vec)
	return args.Error(0)
}

// staticProcessor 返回预置记录的处理器
type staticProcessor struct {
	records []*document.Record
	err     error
}

func (p *staticProcessor) ProcessToRecords(r io.Reader, name string) ([]*document.Record, error) {
	return p.records, p.err
}

func makeRecords(contents ...string) []*document.Record {
	records := make([]*document.Record, len(contents))
	for i, c := range contents {
		records[i] = &document.Record{
			ID:       fmt.Sprintf("rec-%d", i+1),
			Content:  c,
			Metadata: document.ChunkMetadata{SourcePage: 1, ChunkIndex: i},
		}
	}
	return records
}

func messages(hook *test.Hook, level logrus.Level) []string {
	var out []string
	for _, e := range hook.AllEntries() {
		if e.Level == level {
			out = append(out, e.Message)
		}
	}
	return out
}

func TestProcessAndIndexAllSucceed(t *testing.T) {
	logger, hook := test.NewNullLogger()
	embedder := &mockEmbedder{}
	indexer := &mockIndexer{}
	records := makeRecords("a", "b", "c")

	embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{1, 2}, nil)
	indexer.On("Index", mock.Anything, mock.Anything, []float32{1, 2}).Return(nil)

	svc := NewIndexingService(&staticProcessor{records: records}, embedder, indexer, WithLogger(logger))
	report, err := svc.ProcessAndIndex(context.Background(), strings.NewReader(""), "doc.pdf")
	require.NoError(t, err)

	assert.False(t, report.Skipped)
	assert.Equal(t, 3, report.IndexedCount())
	assert.Equal(t, 0, report.FailedCount())
	indexer.AssertNumberOfCalls(t, "Index", 3)

	// 按记录顺序调用
	for i, call := range indexer.Calls {
		assert.Equal(t, records[i].ID, call.Arguments.Get(1).(*document.Record).ID)
	}

	assert.Equal(t, []string{
		"Starting processing for document: doc.pdf",
		"Extracted 3 chunks from doc.pdf.",
		"Successfully processed and initiated indexing for chunks from doc.pdf",
	}, messages(hook, logrus.InfoLevel))
}

func TestProcessAndIndexEmbeddingFailureContinues(t *testing.T) {
	logger, hook := test.NewNullLogger()
	embedder := &mockEmbedder{}
	indexer := &mockIndexer{}

	embedder.On("Embed", mock.Anything, "a").Return([]float32{1}, nil)
	embedder.On("Embed", mock.Anything, "b").Return(nil, embedding.NewEmbeddingError(embedding.ErrCodeRateLimited, embedding.ErrMsgRateLimited))
	embedder.On("Embed", mock.Anything, "c").Return([]float32{3}, nil)
	indexer.On("Index", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := NewIndexingService(&staticProcessor{records: makeRecords("a", "b", "c")}, embedder, indexer, WithLogger(logger))
	report, err := svc.ProcessAndIndex(context.Background(), strings.NewReader(""), "doc.pdf")
	require.NoError(t, err)

	indexer.AssertNumberOfCalls(t, "Index", 2)
	require.Len(t, report.Records, 3)
	assert.Equal(t, RecordIndexed, report.Records[0].Status)
	assert.Equal(t, RecordEmbeddingFailed, report.Records[1].Status)
	assert.Equal(t, RecordIndexed, report.Records[2].Status)

	var ee embedding.EmbeddingError
	assert.True(t, errors.As(report.Records[1].Err, &ee))

	errs := messages(hook, logrus.ErrorLevel)
	require.Len(t, errs, 1)
	assert.True(t, strings.HasPrefix(errs[0], "Error processing chunk rec-2 for doc.pdf: "))
	assert.Contains(t, messages(hook, logrus.InfoLevel), "Successfully processed and initiated indexing for chunks from doc.pdf")
}

func TestProcessAndIndexIndexingFailureContinues(t *testing.T) {
	logger, hook := test.NewNullLogger()
	embedder := &mockEmbedder{}
	indexer := &mockIndexer{}
	records := makeRecords("a", "b", "c")

	embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{1}, nil)
	indexer.On("Index", mock.Anything, records[0], mock.Anything).Return(&search.IndexingError{StatusCode: 400, Body: "bad"})
	indexer.On("Index", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := NewIndexingService(&staticProcessor{records: records}, embedder, indexer, WithLogger(logger))
	report, err := svc.ProcessAndIndex(context.Background(), strings.NewReader(""), "doc.pdf")
	require.NoError(t, err)

	indexer.AssertNumberOfCalls(t, "Index", 3)
	assert.Equal(t, RecordIndexingFailed, report.Records[0].Status)
	assert.Equal(t, 2, report.IndexedCount())
	assert.Len(t, report.Failures(), 1)
	assert.Len(t, messages(hook, logrus.ErrorLevel), 1)
}

func TestProcessAndIndexNoChunks(t *testing.T) {
	logger, hook := test.NewNullLogger()
	embedder := &mockEmbedder{}
	indexer := &mockIndexer{}

	svc := NewIndexingService(&staticProcessor{}, embedder, indexer, WithLogger(logger))
	report, err := svc.ProcessAndIndex(context.Background(), strings.NewReader(""), "empty.pdf")
	require.NoError(t, err)

	assert.True(t, report.Skipped)
	assert.Empty(t, report.Records)
	embedder.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)
	indexer.AssertNotCalled(t, "Index", mock.Anything, mock.Anything, mock.Anything)

	assert.Equal(t, []string{"No text chunks were extracted from empty.pdf. Skipping indexing."}, messages(hook, logrus.WarnLevel))
	assert.NotContains(t, messages(hook, logrus.InfoLevel), "Successfully processed and initiated indexing for chunks from empty.pdf")
}

func TestProcessAndIndexDocumentError(t *testing.T) {
	logger, hook := test.NewNullLogger()
	embedder := &mockEmbedder{}
	indexer := &mockIndexer{}
	chunkErr := &document.ChunkingError{Page: 2, Err: errors.New("tokenizer failed")}

	svc := NewIndexingService(&staticProcessor{err: chunkErr}, embedder, indexer, WithLogger(logger))
	report, err := svc.ProcessAndIndex(context.Background(), strings.NewReader(""), "doc.pdf")
	assert.Nil(t, report)
	assert.Same(t, chunkErr, err)
	embedder.AssertNotCalled(t, "Embed", mock.Anything, mock.Anything)

	errs := messages(hook, logrus.ErrorLevel)
	require.Len(t, errs, 1)
	assert.True(t, strings.HasPrefix(errs[0], "Failed during processing of doc.pdf: "))
}

// slowEmbedder 阻塞直到ctx结束
type slowEmbedder struct{}

func (slowEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func (slowEmbedder) Name() string { return "slow" }

func TestProcessAndIndexEmbedTimeout(t *testing.T) {
	logger, _ := test.NewNullLogger()
	indexer := &mockIndexer{}

	svc := NewIndexingService(&staticProcessor{records: makeRecords("a", "b")}, slowEmbedder{}, indexer,
		WithLogger(logger), WithEmbedTimeout(20*time.Millisecond))
	report, err := svc.ProcessAndIndex(context.Background(), strings.NewReader(""), "doc.pdf")
	require.NoError(t, err)

	require.Len(t, report.Records, 2)
	for _, rec := range report.Records {
		assert.Equal(t, RecordEmbeddingFailed, rec.Status)
		assert.ErrorIs(t, rec.Err, ErrTimeout)
	}
	indexer.AssertNotCalled(t, "Index", mock.Anything, mock.Anything, mock.Anything)
}

func TestProcessAndIndexIndexTimeout(t *testing.T) {
	logger, _ := test.NewNullLogger()
	embedder := &mockEmbedder{}
	indexer := &mockIndexer{}

	embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{1}, nil)
	indexer.On("Index", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(context.DeadlineExceeded)

	svc := NewIndexingService(&staticProcessor{records: makeRecords("a")}, embedder, indexer,
		WithLogger(logger), WithIndexTimeout(20*time.Millisecond))
	report, err := svc.ProcessAndIndex(context.Background(), strings.NewReader(""), "doc.pdf")
	require.NoError(t, err)
	assert.Equal(t, RecordIndexingFailed, report.Records[0].Status)
	assert.ErrorIs(t, report.Records[0].Err, ErrTimeout)
}

func TestProcessAndIndexCancelled(t *testing.T) {
	logger, _ := test.NewNullLogger()
	embedder := &mockEmbedder{}
	indexer := &mockIndexer{}

	ctx, cancel := context.WithCancel(context.Background())
	embedder.On("Embed", mock.Anything, "a").Run(func(mock.Arguments) { cancel() }).Return([]float32{1}, nil)
	indexer.On("Index", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := NewIndexingService(&staticProcessor{records: makeRecords("a", "b")}, embedder, indexer, WithLogger(logger))
	report, err := svc.ProcessAndIndex(ctx, strings.NewReader(""), "doc.pdf")
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, report)
	assert.Len(t, report.Records, 1)
	embedder.AssertNumberOfCalls(t, "Embed", 1)
}

func TestProcessAndIndexSpans(t *testing.T) {
	logger, _ := test.NewNullLogger()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	embedder := &mockEmbedder{}
	indexer := &mockIndexer{}

	embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{1}, nil)
	indexer.On("Index", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	svc := NewIndexingService(&staticProcessor{records: makeRecords("a", "b")}, embedder, indexer,
		WithLogger(logger), WithTracer(tp.Tracer("test")))
	_, err := svc.ProcessAndIndex(context.Background(), strings.NewReader(""), "doc.pdf")
	require.NoError(t, err)

	spans := recorder.Ended()
	require.Len(t, spans, 3)
	assert.Equal(t, "IndexingService.ProcessAndIndex", spans[2].Name())
	assert.Equal(t, spans[2].SpanContext().SpanID(), spans[0].Parent().SpanID())
}

// 使用真实的文档处理器和httptest之外的全部组件
func TestProcessAndIndexWithDocumentProcessor(t *testing.T) {
	logger, _ := test.NewNullLogger()
	embedder := &mockEmbedder{}
	indexer := &mockIndexer{}

	embedder.On("Embed", mock.Anything, mock.Anything).Return([]float32{0.1}, nil)
	indexer.On("Index", mock.Anything, mock.Anything, mock.Anything).Return(nil)

	builder := document.NewRecordBuilder(wordChunker{})
	processor := document.NewProcessor(builder, document.WithLogger(logger))

	svc := NewIndexingService(processor, embedder, indexer, WithLogger(logger))
	report, err := svc.ProcessAndIndex(context.Background(), strings.NewReader("one two three"), "notes.txt")
	require.NoError(t, err)
	require.Len(t, report.Records, 3)
	assert.Equal(t, 1, report.Records[2].SourcePage)
	assert.Equal(t, 2, report.Records[2].ChunkIndex)

	_, err = svc.ProcessAndIndex(context.Background(), strings.NewReader("x"), "image.png")
	var ee *document.ExtractionError
	assert.ErrorAs(t, err, &ee)
}

type wordChunker struct{}

func (wordChunker) Chunk(text string) ([]string, error) {
	return strings.Fields(text), nil
}
