package document

import (
	"strings"
	"unicode"

	"github.com/ledongthuc/pdf"
)

const (
	// TJ数组里的字距调整值小于该阈值时视为单词间隔
	tjSpaceThreshold = -200
	// Form XObject的最大嵌套深度
	maxFormDepth = 8
)

// textWriter 按文本定位操作符把字符组织成行
type textWriter struct {
	lines    []string
	line     strings.Builder
	unmapped int // 没有Unicode映射而被丢弃的字符数
}

// write 写入已解码的文本，丢弃控制字符和无法映射的字形
func (w *textWriter) write(s string) {
	for _, r := range s {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			w.line.WriteByte(' ')
		case r == unicode.ReplacementChar || unicode.IsControl(r):
			w.unmapped++
		default:
			w.line.WriteRune(r)
		}
	}
}

func (w *textWriter) space() {
	if w.line.Len() > 0 {
		w.line.WriteByte(' ')
	}
}

func (w *textWriter) flush() {
	if s := strings.TrimSpace(w.line.String()); s != "" {
		lines := strings.Fields(s)
		w.lines = append(w.lines, strings.Join(lines, " "))
	}
	w.line.Reset()
}

func (w *textWriter) text() string {
	w.flush()
	return strings.Join(w.lines, "\n")
}

// contentWalker 解释页面内容流，并进入其中引用的Form XObject
type contentWalker struct {
	w textWriter
}

// walk 解释一个内容流(或内容流数组)，resources为其资源字典
func (c *contentWalker) walk(strm, resources pdf.Value, depth int) {
	switch strm.Kind() {
	case pdf.Array:
		for i := 0; i < strm.Len(); i++ {
			c.walk(strm.Index(i), resources, depth)
		}
		return
	case pdf.Stream:
	default:
		return
	}

	fonts := resources.Key("Font")
	var enc pdf.TextEncoding
	decode := func(v pdf.Value) string {
		if enc == nil {
			return v.RawString()
		}
		return enc.Decode(v.RawString())
	}

	pdf.Interpret(strm, func(stk *pdf.Stack, op string) {
		n := stk.Len()
		args := make([]pdf.Value, n)
		for i := n - 1; i >= 0; i-- {
			args[i] = stk.Pop()
		}

		switch op {
		case "Tf":
			enc = nil
			if n >= 2 {
				if fv := fonts.Key(args[n-2].Name()); !fv.IsNull() {
					font := pdf.Font{V: fv}
					enc = font.Encoder()
				}
			}
		case "Tj":
			if n > 0 {
				c.w.write(decode(args[n-1]))
			}
		case "'", "\"":
			c.w.flush()
			if n > 0 {
				c.w.write(decode(args[n-1]))
			}
		case "TJ":
			if n == 0 {
				return
			}
			arr := args[n-1]
			for i := 0; i < arr.Len(); i++ {
				item := arr.Index(i)
				switch item.Kind() {
				case pdf.String:
					c.w.write(decode(item))
				case pdf.Integer, pdf.Real:
					if item.Float64() < tjSpaceThreshold {
						c.w.space()
					}
				}
			}
		case "Td", "TD":
			// 纵向移动视为换行，横向移动视为空格
			if n >= 2 && args[n-1].Float64() != 0 {
				c.w.flush()
			} else {
				c.w.space()
			}
		case "T*", "Tm", "ET":
			c.w.flush()
		case "Do":
			if n == 0 || depth >= maxFormDepth {
				return
			}
			xobj := resources.Key("XObject").Key(args[n-1].Name())
			if xobj.Key("Subtype").Name() != "Form" {
				return
			}
			res := xobj.Key("Resources")
			if res.IsNull() {
				res = resources
			}
			c.w.flush()
			c.walk(xobj, res, depth+1)
			c.w.flush()
		}
	})
}

// pageText 提取单页文本，返回文本和无法映射的字符数
func pageText(page pdf.Page) (string, int) {
	var c contentWalker
	c.walk(page.V.Key("Contents"), page.Resources(), 0)
	return c.w.text(), c.w.unmapped
}
