package document

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
	tiktoken_loader "github.com/pkoukk/tiktoken-go-loader"
)

// DefaultEncoding GPT-2的BPE词表
const DefaultEncoding = "r50k_base"

// 使用内置的BPE词表，避免首次加载时联网下载
func init() {
	tiktoken.SetBpeLoader(tiktoken_loader.NewOfflineLoader())
}

// Tokenizer 分词器接口
// 同一个实例既负责编码也负责解码
type Tokenizer interface {
	Encode(text string) ([]int, error)
	Decode(tokens []int) (string, error)
}

// TiktokenTokenizer 基于tiktoken的分词器
type TiktokenTokenizer struct {
	encoding string
	tke      *tiktoken.Tiktoken
}

// NewTiktokenTokenizer 按编码名称创建分词器，encoding为空时使用r50k_base
func NewTiktokenTokenizer(encoding string) (*TiktokenTokenizer, error) {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	tke, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer %s: %w", encoding, err)
	}
	return &TiktokenTokenizer{encoding: encoding, tke: tke}, nil
}

// Encoding 返回编码名称
func (t *TiktokenTokenizer) Encoding() string {
	return t.encoding
}

// Encode 将文本编码为token序列
func (t *TiktokenTokenizer) Encode(text string) ([]int, error) {
	return t.tke.Encode(text, nil, nil), nil
}

// Decode 将token序列解码为文本
func (t *TiktokenTokenizer) Decode(tokens []int) (text string, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("failed to decode tokens: %v", rec)
		}
	}()
	return t.tke.Decode(tokens), nil
}
