package document

import (
	"io"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
)

// Extractor 文本提取器接口
// 负责将文档字节流解析为按页排列的纯文本
type Extractor interface {
	// Extract 读取整个文档流并返回保留下来的页面（空白页已被过滤）
	Extract(r io.Reader) ([]Page, error)
}

// ContentType 表示文档的内容类型
type ContentType string

const (
	// PDF 文档类型
	PDF ContentType = "pdf"
	// Markdown 文档类型
	Markdown ContentType = "markdown"
	// PlainText 纯文本类型
	PlainText ContentType = "plaintext"
	// Unknown 未知类型
	Unknown ContentType = "unknown"
)

// DetectContentType 根据文件扩展名检测内容类型
func DetectContentType(name string) ContentType {
	ext := strings.ToLower(filepath.Ext(name))

	switch ext {
	case ".pdf":
		return PDF
	case ".md", ".markdown":
		return Markdown
	case ".txt":
		return PlainText
	default:
		return Unknown
	}
}

// IsSupported 判断文档名是否带有可识别的扩展名
func IsSupported(name string) bool {
	return DetectContentType(name) != Unknown
}

// ExtractorFactory 根据文档名创建对应的提取器
func ExtractorFactory(name string, logger *logrus.Logger) (Extractor, error) {
	switch DetectContentType(name) {
	case PDF:
		return NewPDFExtractor(WithPDFLogger(logger)), nil
	case Markdown:
		return NewMarkdownExtractor(), nil
	case PlainText:
		return NewPlainTextExtractor(), nil
	default:
		return nil, ErrUnsupportedFormat
	}
}
