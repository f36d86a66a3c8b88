package document

import (
	"errors"
	"strings"
)

const (
	// DefaultChunkSize 默认每块的token数
	DefaultChunkSize = 500
	// DefaultChunkOverlap 默认相邻块重叠的token数
	DefaultChunkOverlap = 50
)

// Chunker 文本分块接口
type Chunker interface {
	Chunk(text string) ([]string, error)
}

// ChunkerConfig 分块配置
type ChunkerConfig struct {
	ChunkSize    int // 每块的token数
	ChunkOverlap int // 重叠的token数
}

// DefaultChunkerConfig 返回默认分块配置
func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
	}
}

// Validate 校验分块配置
func (c ChunkerConfig) Validate() error {
	if c.ChunkSize <= 0 {
		return errors.New("chunk size must be positive")
	}
	if c.ChunkOverlap < 0 {
		return errors.New("chunk overlap cannot be negative")
	}
	if c.ChunkOverlap >= c.ChunkSize {
		return errors.New("chunk overlap must be smaller than chunk size")
	}
	return nil
}

// TokenChunker 按token窗口切分文本
type TokenChunker struct {
	tokenizer Tokenizer
	cfg       ChunkerConfig
}

// NewTokenChunker 创建分块器
func NewTokenChunker(tokenizer Tokenizer, cfg ChunkerConfig) (*TokenChunker, error) {
	if tokenizer == nil {
		return nil, errors.New("tokenizer is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &TokenChunker{tokenizer: tokenizer, cfg: cfg}, nil
}

// Config 返回分块配置
func (c *TokenChunker) Config() ChunkerConfig {
	return c.cfg
}

// Chunk 将文本编码后按 size-overlap 的步长切出窗口，
// 最后一个窗口可以不满，每个窗口解码后去掉首尾空白
func (c *TokenChunker) Chunk(text string) ([]string, error) {
	tokens, err := c.tokenizer.Encode(text)
	if err != nil {
		return nil, &ChunkingError{Err: err}
	}

	step := c.cfg.ChunkSize - c.cfg.ChunkOverlap
	var chunks []string
	for start := 0; start < len(tokens); start += step {
		end := start + c.cfg.ChunkSize
		if end > len(tokens) {
			end = len(tokens)
		}

		decoded, err := c.tokenizer.Decode(tokens[start:end])
		if err != nil {
			return nil, &ChunkingError{Err: err}
		}
		chunks = append(chunks, strings.TrimSpace(decoded))
	}
	return chunks, nil
}
