package document

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// intTokenizer 把空格分隔的整数当作token，便于精确验证窗口
type intTokenizer struct {
	encodeErr error
	decodeErr error
}

func (t *intTokenizer) Encode(text string) ([]int, error) {
	if t.encodeErr != nil {
		return nil, t.encodeErr
	}
	var tokens []int
	for _, f := range strings.Fields(text) {
		n, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, n)
	}
	return tokens, nil
}

func (t *intTokenizer) Decode(tokens []int) (string, error) {
	if t.decodeErr != nil {
		return "", t.decodeErr
	}
	parts := make([]string, len(tokens))
	for i, n := range tokens {
		parts[i] = strconv.Itoa(n)
	}
	return " " + strings.Join(parts, " ") + " ", nil
}

func sequence(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = strconv.Itoa(i)
	}
	return strings.Join(parts, " ")
}

func TestNewTokenChunkerValidation(t *testing.T) {
	tok := &intTokenizer{}

	_, err := NewTokenChunker(tok, ChunkerConfig{ChunkSize: 0, ChunkOverlap: 0})
	assert.Error(t, err)
	_, err = NewTokenChunker(tok, ChunkerConfig{ChunkSize: 10, ChunkOverlap: 10})
	assert.Error(t, err)
	_, err = NewTokenChunker(tok, ChunkerConfig{ChunkSize: 10, ChunkOverlap: -1})
	assert.Error(t, err)
	_, err = NewTokenChunker(nil, DefaultChunkerConfig())
	assert.Error(t, err)

	c, err := NewTokenChunker(tok, DefaultChunkerConfig())
	require.NoError(t, err)
	assert.Equal(t, 500, c.Config().ChunkSize)
	assert.Equal(t, 50, c.Config().ChunkOverlap)
}

func TestTokenChunkerWindows(t *testing.T) {
	c, err := NewTokenChunker(&intTokenizer{}, ChunkerConfig{ChunkSize: 5, ChunkOverlap: 1})
	require.NoError(t, err)

	chunks, err := c.Chunk(sequence(10))
	require.NoError(t, err)
	assert.Equal(t, []string{"0 1 2 3 4", "4 5 6 7 8", "8 9"}, chunks)
}

func TestTokenChunkerStepping(t *testing.T) {
	tests := []struct {
		tokens, size, overlap int
	}{
		{0, 500, 50},
		{1, 500, 50},
		{499, 500, 50},
		{500, 500, 50},
		{501, 500, 50},
		{1200, 500, 50},
		{7, 3, 2},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%d/%d/%d", tt.tokens, tt.size, tt.overlap), func(t *testing.T) {
			c, err := NewTokenChunker(&intTokenizer{}, ChunkerConfig{ChunkSize: tt.size, ChunkOverlap: tt.overlap})
			require.NoError(t, err)

			chunks, err := c.Chunk(sequence(tt.tokens))
			require.NoError(t, err)

			step := tt.size - tt.overlap
			want := 0
			for start := 0; start < tt.tokens; start += step {
				want++
			}
			require.Len(t, chunks, want)

			for i, chunk := range chunks {
				fields := strings.Fields(chunk)
				first, _ := strconv.Atoi(fields[0])
				assert.Equal(t, i*step, first)
				if i < len(chunks)-1 {
					assert.Len(t, fields, tt.size)
				} else {
					assert.LessOrEqual(t, len(fields), tt.size)
				}
				assert.Equal(t, strings.TrimSpace(chunk), chunk)
			}
		})
	}
}

func TestTokenChunkerErrors(t *testing.T) {
	boom := errors.New("tokenizer exploded")

	c, err := NewTokenChunker(&intTokenizer{encodeErr: boom}, DefaultChunkerConfig())
	require.NoError(t, err)
	_, err = c.Chunk("1 2 3")
	var ce *ChunkingError
	require.ErrorAs(t, err, &ce)
	assert.ErrorIs(t, err, boom)

	c, err = NewTokenChunker(&intTokenizer{decodeErr: boom}, DefaultChunkerConfig())
	require.NoError(t, err)
	_, err = c.Chunk("1 2 3")
	require.ErrorAs(t, err, &ce)
}

func TestTiktokenTokenizerRoundTrip(t *testing.T) {
	tok, err := NewTiktokenTokenizer("")
	require.NoError(t, err)
	assert.Equal(t, DefaultEncoding, tok.Encoding())

	text := "Retrieval augmented generation splits documents into overlapping windows."
	tokens, err := tok.Encode(text)
	require.NoError(t, err)
	assert.NotEmpty(t, tokens)

	decoded, err := tok.Decode(tokens)
	require.NoError(t, err)
	assert.Equal(t, text, decoded)
}

func TestTokenChunkerDefaultWindowsOverlap(t *testing.T) {
	tok, err := NewTiktokenTokenizer(DefaultEncoding)
	require.NoError(t, err)

	var sb strings.Builder
	for i := 0; i < 600; i++ {
		fmt.Fprintf(&sb, "section %d covers topic %d. ", i, i*7)
	}
	text := sb.String()

	tokens, err := tok.Encode(text)
	require.NoError(t, err)
	require.Greater(t, len(tokens), 1000)

	c, err := NewTokenChunker(tok, DefaultChunkerConfig())
	require.NoError(t, err)
	chunks, err := c.Chunk(text)
	require.NoError(t, err)

	step := 500 - 50
	want := 0
	for start := 0; start < len(tokens); start += step {
		want++
	}
	require.Len(t, chunks, want)

	for i, chunk := range chunks {
		start := i * step
		end := start + 500
		if end > len(tokens) {
			end = len(tokens)
		}
		window, err := tok.Decode(tokens[start:end])
		require.NoError(t, err)
		assert.Equal(t, strings.TrimSpace(window), chunk, "chunk %d", i)

		if i == len(chunks)-1 || end-start < 500 {
			continue
		}
		// 相邻窗口共享50个token
		shared, err := tok.Decode(tokens[start+step : end])
		require.NoError(t, err)
		require.Len(t, tokens[start+step:end], 50)
		shared = strings.TrimSpace(shared)
		assert.True(t, strings.HasSuffix(chunk, shared), "chunk %d should end with the shared tokens", i)
		assert.True(t, strings.HasPrefix(chunks[i+1], shared), "chunk %d should start with the shared tokens", i+1)
	}
}
