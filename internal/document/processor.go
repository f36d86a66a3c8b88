package document

import (
	"io"

	"github.com/sirupsen/logrus"
)

// Processor 文档处理器，串联文本提取和记录构造
type Processor struct {
	builder   *RecordBuilder
	extractor Extractor // 为nil时按文档名选择
	logger    *logrus.Logger
}

// ProcessorOption 处理器配置选项
type ProcessorOption func(*Processor)

// WithExtractor 固定使用指定的提取器
func WithExtractor(e Extractor) ProcessorOption {
	return func(p *Processor) {
		p.extractor = e
	}
}

// WithLogger 设置日志记录器
func WithLogger(logger *logrus.Logger) ProcessorOption {
	return func(p *Processor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewProcessor 创建文档处理器
func NewProcessor(builder *RecordBuilder, opts ...ProcessorOption) *Processor {
	p := &Processor{
		builder: builder,
		logger:  logrus.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ProcessToRecords 提取文档文本并生成记录
// 提取失败返回ExtractionError，分块失败返回ChunkingError
func (p *Processor) ProcessToRecords(r io.Reader, name string) ([]*Record, error) {
	extractor := p.extractor
	if extractor == nil {
		var err error
		extractor, err = ExtractorFactory(name, p.logger)
		if err != nil {
			return nil, &ExtractionError{Source: name, Err: err}
		}
	}

	pages, err := extractor.Extract(r)
	if err != nil {
		return nil, &ExtractionError{Source: name, Err: err}
	}

	p.logger.WithFields(logrus.Fields{
		"document": name,
		"pages":    len(pages),
	}).Debug("Extracted pages from document")

	return p.builder.BuildRecords(pages)
}
