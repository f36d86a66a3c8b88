package document

import (
	"fmt"
	"io"
	"strings"

	"github.com/gomarkdown/markdown/ast"
	"github.com/gomarkdown/markdown/parser"
)

// MarkdownExtractor Markdown文本提取器
// 整个文档作为第1页返回
type MarkdownExtractor struct {
	extensions parser.Extensions
}

// NewMarkdownExtractor 创建新的Markdown提取器
func NewMarkdownExtractor() *MarkdownExtractor {
	return &MarkdownExtractor{
		extensions: parser.CommonExtensions | parser.AutoHeadingIDs,
	}
}

// Extract 解析Markdown并提取纯文本
func (m *MarkdownExtractor) Extract(r io.Reader) ([]Page, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read markdown content: %w", err)
	}

	doc := parser.NewWithExtensions(m.extensions).Parse(content)
	text := strings.TrimSpace(markdownText(doc))
	if text == "" {
		return nil, nil
	}
	return []Page{{Number: 1, Text: text}}, nil
}

// markdownText 遍历语法树，收集文本节点
func markdownText(doc ast.Node) string {
	var sb strings.Builder
	ast.WalkFunc(doc, func(node ast.Node, entering bool) ast.WalkStatus {
		if !entering {
			switch node.(type) {
			case *ast.Paragraph, *ast.Heading, *ast.ListItem, *ast.TableRow:
				sb.WriteByte('\n')
			case *ast.TableCell:
				sb.WriteByte(' ')
			}
			return ast.GoToNext
		}

		switch n := node.(type) {
		case *ast.Text:
			sb.Write(n.Literal)
		case *ast.Code:
			sb.Write(n.Literal)
		case *ast.CodeBlock:
			sb.Write(n.Literal)
			sb.WriteByte('\n')
		case *ast.Softbreak, *ast.Hardbreak:
			sb.WriteByte('\n')
		case *ast.HTMLBlock, *ast.HTMLSpan:
			return ast.SkipChildren
		}
		return ast.GoToNext
	})
	return collapseBlankLines(sb.String())
}

// collapseBlankLines 去掉每行首尾空白并丢弃空行
func collapseBlankLines(text string) string {
	lines := strings.Split(text, "\n")
	kept := lines[:0]
	for _, line := range lines {
		if line = strings.TrimSpace(line); line != "" {
			kept = append(kept, line)
		}
	}
	return strings.Join(kept, "\n")
}
