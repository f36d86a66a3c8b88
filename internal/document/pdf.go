package document

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/sirupsen/logrus"
)

// pageSource 按页提供文本的文档
// 页码从1开始
type pageSource interface {
	PageCount() int
	PageText(pageNr int) (string, error)
}

// PDFExtractor PDF文本提取器
type PDFExtractor struct {
	conf   *model.Configuration
	logger *logrus.Logger
}

// PDFOption PDF提取器配置选项
type PDFOption func(*PDFExtractor)

// WithPDFLogger 设置日志记录器
func WithPDFLogger(logger *logrus.Logger) PDFOption {
	return func(p *PDFExtractor) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPDFExtractor 创建一个新的PDF提取器
func NewPDFExtractor(opts ...PDFOption) *PDFExtractor {
	p := &PDFExtractor{
		conf:   model.NewDefaultConfiguration(),
		logger: logrus.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Extract 从PDF字节流中按页提取文本
func (p *PDFExtractor) Extract(r io.Reader) ([]Page, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf stream: %w", err)
	}

	src, err := openPDF(data, p.conf, p.logger)
	if err != nil {
		return nil, err
	}

	return collectPages(src, p.logger), nil
}

// collectPages 逐页提取文本，单页失败只记录日志不影响其他页
func collectPages(src pageSource, logger *logrus.Logger) []Page {
	pages := make([]Page, 0, src.PageCount())
	for n := 1; n <= src.PageCount(); n++ {
		text, err := safePageText(src, n)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"page":  n,
				"error": err.Error(),
			}).Error("Error extracting text from page")
			continue
		}

		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		pages = append(pages, Page{Number: n, Text: text})
	}
	return pages
}

// safePageText 提取单页文本，并把解析库内部的panic转换为错误
func safePageText(src pageSource, pageNr int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic while reading page %d: %v", pageNr, rec)
		}
	}()
	return src.PageText(pageNr)
}

// pdfSource 页面文本读取实现
// pdfcpu负责读取和校验文档结构，页面文本按字体编码和ToUnicode映射解码
type pdfSource struct {
	reader *pdf.Reader
	logger *logrus.Logger
}

// openPDF 读取并校验PDF文档结构
func openPDF(data []byte, conf *model.Configuration, logger *logrus.Logger) (src *pdfSource, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("malformed pdf: %v", rec)
		}
	}()

	ctx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return nil, fmt.Errorf("failed to read pdf: %w", err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to validate pdf: %w", err)
	}

	data = normalizePDF(ctx, data, logger)
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	return &pdfSource{reader: reader, logger: logger}, nil
}

// normalizePDF 用pdfcpu重写文档，输出普通的交叉引用表
// 重写失败时沿用原始数据
func normalizePDF(ctx *model.Context, data []byte, logger *logrus.Logger) (out []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.WithField("error", fmt.Sprint(rec)).Debug("Failed to normalize pdf, using original bytes")
			out = data
		}
	}()

	ctx.Configuration.WriteObjectStream = false
	ctx.Configuration.WriteXRefStream = false

	var buf bytes.Buffer
	if err := api.WriteContext(ctx, &buf); err != nil {
		logger.WithError(err).Debug("Failed to normalize pdf, using original bytes")
		return data
	}
	return buf.Bytes()
}

// PageCount 返回文档页数
func (s *pdfSource) PageCount() int {
	return s.reader.NumPage()
}

// PageText 按页面字体解码内容流中的文本，包括Form XObject中的文本
func (s *pdfSource) PageText(pageNr int) (string, error) {
	page := s.reader.Page(pageNr)
	if page.V.IsNull() {
		return "", fmt.Errorf("page %d not found", pageNr)
	}

	text, unmapped := pageText(page)
	if unmapped > 0 {
		s.logger.WithFields(logrus.Fields{
			"page":     pageNr,
			"unmapped": unmapped,
		}).Warn("Dropped glyphs without a unicode mapping")
	}
	return text, nil
}
