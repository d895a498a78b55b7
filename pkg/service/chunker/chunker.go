package chunker

import (
	"github.com/db4dd/db4dd/pkg/domain/model"
)

// Size brackets, in estimated tokens (characters / 4)
const (
	DefaultSizeHint = 2000

	hugeDocumentTokens  = 500_000
	largeDocumentTokens = 100_000

	hugeTruncateChars = 100_000
	hugeChunkChars    = 500
	largeChunkMax     = 500
	minChunkChars     = 1000
	chunksPerDocument = 20

	// BatchThreshold is the chunk count above which chunks are grouped into batches
	BatchThreshold = 50
	targetBatches  = 25
)

// ChunkSize returns the chunk length in characters for a text of the given length
func ChunkSize(characters, sizeHint int) int {
	if sizeHint <= 0 {
		sizeHint = DefaultSizeHint
	}
	tokens := characters / 4

	switch {
	case tokens > hugeDocumentTokens:
		return hugeChunkChars
	case tokens > largeDocumentTokens:
		return max(1, min(largeChunkMax, sizeHint/4))
	default:
		if sizeHint < minChunkChars {
			return sizeHint
		}
		return min(sizeHint, max(minChunkChars, characters/chunksPerDocument))
	}
}

// Chunk splits the document text into ordered chunks on rune boundaries.
// Documents above the huge bracket are truncated first. The result is deterministic.
func Chunk(doc *model.Document, sizeHint int) []model.Chunk {
	runes := []rune(doc.Text)
	size := ChunkSize(len(runes), sizeHint)

	if len(runes)/4 > hugeDocumentTokens && len(runes) > hugeTruncateChars {
		runes = runes[:hugeTruncateChars]
	}

	key := doc.ID.Key()
	chunks := make([]model.Chunk, 0, len(runes)/size+1)
	for start := 0; start < len(runes); start += size {
		end := min(start+size, len(runes))
		chunks = append(chunks, model.Chunk{
			Index:       len(chunks),
			Text:        string(runes[start:end]),
			DocumentKey: key,
		})
	}
	return chunks
}

// Batch groups chunks into contiguous batches when there are more than BatchThreshold of them,
// otherwise every chunk is its own batch. Concatenating the batches yields the input sequence.
func Batch(chunks []model.Chunk) []model.Batch {
	if len(chunks) <= BatchThreshold {
		batches := make([]model.Batch, len(chunks))
		for i, c := range chunks {
			batches[i] = model.Batch{Index: i, Chunks: []model.Chunk{c}}
		}
		return batches
	}

	per := len(chunks) / targetBatches
	batches := make([]model.Batch, 0, targetBatches+1)
	for start := 0; start < len(chunks); start += per {
		end := min(start+per, len(chunks))
		batches = append(batches, model.Batch{Index: len(batches), Chunks: chunks[start:end]})
	}
	return batches
}

// EstimateCalls is the number of LLM requests a document with the given batch count needs:
// one extraction and one mini summary per batch, plus deep analysis and the final summary.
func EstimateCalls(batches int) int {
	return 2*batches + 2
}
