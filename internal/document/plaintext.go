package document

import (
	"fmt"
	"io"
	"strings"
)

// PlainTextExtractor 纯文本提取器
type PlainTextExtractor struct{}

// NewPlainTextExtractor 创建一个新的纯文本提取器
func NewPlainTextExtractor() *PlainTextExtractor {
	return &PlainTextExtractor{}
}

// Extract 读取全部内容作为第1页
func (p *PlainTextExtractor) Extract(r io.Reader) ([]Page, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read text content: %w", err)
	}

	text := strings.TrimSpace(string(content))
	if text == "" {
		return nil, nil
	}
	return []Page{{Number: 1, Text: text}}, nil
}
