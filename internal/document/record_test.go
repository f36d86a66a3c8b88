package document

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordChunker 每个单词一个块
type wordChunker struct {
	failOn string
}

func (w *wordChunker) Chunk(text string) ([]string, error) {
	if w.failOn != "" && strings.Contains(text, w.failOn) {
		return nil, errors.New("cannot tokenize")
	}
	return strings.Fields(text), nil
}

func sequentialIDs() IDGenerator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("rec-%d", n)
	}
}

func TestBuildRecordsOrderingAndIndex(t *testing.T) {
	b := NewRecordBuilder(&wordChunker{}, WithIDGenerator(sequentialIDs()))
	pages := []Page{
		{Number: 1, Text: "a b c"},
		{Number: 3, Text: "d e"},
	}

	records, err := b.BuildRecords(pages)
	require.NoError(t, err)
	require.Len(t, records, 5)

	want := []struct {
		content string
		meta    ChunkMetadata
	}{
		{"a", ChunkMetadata{SourcePage: 1, ChunkIndex: 0}},
		{"b", ChunkMetadata{SourcePage: 1, ChunkIndex: 1}},
		{"c", ChunkMetadata{SourcePage: 1, ChunkIndex: 2}},
		{"d", ChunkMetadata{SourcePage: 3, ChunkIndex: 0}},
		{"e", ChunkMetadata{SourcePage: 3, ChunkIndex: 1}},
	}
	for i, w := range want {
		assert.Equal(t, fmt.Sprintf("rec-%d", i+1), records[i].ID)
		assert.Equal(t, w.content, records[i].Content)
		meta, ok := records[i].ChunkMetadata()
		require.True(t, ok)
		assert.Equal(t, w.meta, meta)
		assert.Nil(t, records[i].Embedding)
	}
}

// fixedChunker 返回预置的块
type fixedChunker struct {
	chunks []string
}

func (f *fixedChunker) Chunk(string) ([]string, error) {
	return f.chunks, nil
}

func TestBuildRecordsSkipsBlankChunks(t *testing.T) {
	b := NewRecordBuilder(&fixedChunker{chunks: []string{"first", "  \n\t", "", "second"}},
		WithIDGenerator(sequentialIDs()))

	records, err := b.BuildRecords([]Page{{Number: 2, Text: "ignored"}})
	require.NoError(t, err)
	require.Len(t, records, 2)

	assert.Equal(t, "first", records[0].Content)
	assert.Equal(t, "second", records[1].Content)
	meta, ok := records[1].ChunkMetadata()
	require.True(t, ok)
	assert.Equal(t, ChunkMetadata{SourcePage: 2, ChunkIndex: 1}, meta)
	assert.Equal(t, "rec-2", records[1].ID)
}

func TestBuildRecordsUniqueIDs(t *testing.T) {
	b := NewRecordBuilder(&wordChunker{})
	// 相同内容也必须得到不同ID
	records, err := b.BuildRecords([]Page{{Number: 1, Text: "same same same same"}})
	require.NoError(t, err)
	require.Len(t, records, 4)

	seen := make(map[string]bool)
	for _, r := range records {
		_, err := uuid.Parse(r.ID)
		assert.NoError(t, err)
		assert.False(t, seen[r.ID])
		seen[r.ID] = true
	}
}

func TestBuildRecordsChunkingError(t *testing.T) {
	b := NewRecordBuilder(&wordChunker{failOn: "bad"})

	_, err := b.BuildRecords([]Page{{Number: 1, Text: "fine"}, {Number: 2, Text: "bad page"}})
	var ce *ChunkingError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 2, ce.Page)
}

func TestBuildRecordsNoPages(t *testing.T) {
	records, err := NewRecordBuilder(&wordChunker{}).BuildRecords(nil)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestProcessToRecords(t *testing.T) {
	logger, _ := test.NewNullLogger()
	p := NewProcessor(NewRecordBuilder(&wordChunker{}), WithLogger(logger))

	records, err := p.ProcessToRecords(strings.NewReader("hello world"), "greeting.txt")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "hello", records[0].Content)

	data := createPDF(t, "alpha beta", "", "", "gamma")
	records, err = p.ProcessToRecords(bytes.NewReader(data), "doc.pdf")
	require.NoError(t, err)
	require.Len(t, records, 3)
	meta, _ := records[2].ChunkMetadata()
	assert.Equal(t, 4, meta.SourcePage)
	assert.Equal(t, 0, meta.ChunkIndex)
}

func TestProcessToRecordsErrors(t *testing.T) {
	logger, _ := test.NewNullLogger()
	p := NewProcessor(NewRecordBuilder(&wordChunker{}), WithLogger(logger))

	_, err := p.ProcessToRecords(strings.NewReader("x"), "image.png")
	var ee *ExtractionError
	require.ErrorAs(t, err, &ee)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
	assert.Equal(t, "image.png", ee.Source)

	_, err = p.ProcessToRecords(strings.NewReader("garbage"), "broken.pdf")
	require.ErrorAs(t, err, &ee)

	p = NewProcessor(NewRecordBuilder(&wordChunker{failOn: "x"}), WithLogger(logger))
	_, err = p.ProcessToRecords(strings.NewReader("x"), "notes.txt")
	var ce *ChunkingError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 1, ce.Page)
}

func TestProcessToRecordsEmptyDocument(t *testing.T) {
	p := NewProcessor(NewRecordBuilder(&wordChunker{}))
	records, err := p.ProcessToRecords(strings.NewReader("   "), "blank.txt")
	require.NoError(t, err)
	assert.Empty(t, records)
}
