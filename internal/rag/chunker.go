package rag

import (
	"strings"

	"github.com/tmc/langchaingo/textsplitter"
)

// Chunker splits text into overlapping chunks, preferring paragraph,
// line and word boundaries in that order.
type Chunker struct {
	splitter textsplitter.RecursiveCharacter
}

// NewChunker creates a new chunker with specified size and overlap
func NewChunker(chunkSize, chunkOverlap int) *Chunker {
	return &Chunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
	}
}

// ChunkText splits text into chunks with overlap
func (c *Chunker) ChunkText(text string) []string {
	if strings.TrimSpace(text) == "" {
		return []string{}
	}

	segments, err := c.splitter.SplitText(text)
	if err != nil {
		return []string{strings.TrimSpace(text)}
	}

	chunks := make([]string, 0, len(segments))
	for _, segment := range segments {
		if trimmed := strings.TrimSpace(segment); trimmed != "" {
			chunks = append(chunks, trimmed)
		}
	}
	return chunks
}
