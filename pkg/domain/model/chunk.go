package model

import "strings"

// BatchSeparator joins chunk texts when several chunks are sent in one request
const BatchSeparator = "\n\n---\n\n"

// Chunk is a bounded-size piece of a document
type Chunk struct {
	Index       int
	Text        string
	DocumentKey string
}

// Batch is a contiguous group of chunks sent as one request
type Batch struct {
	Index  int
	Chunks []Chunk
}

// Text joins the chunk texts in order
func (b Batch) Text() string {
	texts := make([]string, len(b.Chunks))
	for i, c := range b.Chunks {
		texts[i] = c.Text
	}
	return strings.Join(texts, BatchSeparator)
}

// FirstIndex returns the index of the first chunk, or -1 for an empty batch
func (b Batch) FirstIndex() int {
	if len(b.Chunks) == 0 {
		return -1
	}
	return b.Chunks[0].Index
}
