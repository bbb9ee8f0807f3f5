package rag

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/vokinneberg/telugu-qa/internal/types"
)

// upsertBatchSize bounds the number of points sent in one Upsert call
const upsertBatchSize = 100

//go:generate mockgen -source=pipeline.go -destination=mock_pipeline.go -package=rag

// Embedder defines the interface for embedding generation
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// TextChunker defines the interface for text chunking operations
type TextChunker interface {
	ChunkText(text string) []string
}

// VectorDatabase defines the interface for vector database operations
type VectorDatabase interface {
	EnsureCollection(ctx context.Context, vectorSize uint64) error
	UpsertPoints(ctx context.Context, pointsToUpsert []*qdrant.PointStruct) error
	DeleteBySource(ctx context.Context, source string) error
	Search(ctx context.Context, queryEmbedding []float32, limit uint64) ([]SearchHit, error)
}

// Document is one unit of source text, usually a single PDF page
type Document struct {
	Source string
	Page   int
	Text   string
}

// Pipeline is the knowledge store: it indexes documents and answers similarity searches
type Pipeline struct {
	chunker      TextChunker
	embedder     Embedder
	qdrantClient VectorDatabase
}

// NewPipeline creates a new RAG pipeline
func NewPipeline(ctx context.Context, chunker TextChunker, embedder Embedder, qdrantClient VectorDatabase, vectorSize uint64) (*Pipeline, error) {
	// Ensure collection exists with correct vector size
	if err := qdrantClient.EnsureCollection(ctx, vectorSize); err != nil {
		return nil, fmt.Errorf("failed to ensure collection: %w", err)
	}

	return &Pipeline{
		chunker:      chunker,
		embedder:     embedder,
		qdrantClient: qdrantClient,
	}, nil
}

// Ingest chunks, embeds and stores documents. It returns the number of stored chunks.
// Points previously stored for the same sources are removed before the first
// upsert, so a shorter new version of a file leaves no stale chunks behind.
func (p *Pipeline) Ingest(ctx context.Context, docs []Document) (int, error) {
	pointsToUpsert := make([]*qdrant.PointStruct, 0, upsertBatchSize)
	stored := 0
	replaced := false

	flush := func() error {
		if len(pointsToUpsert) == 0 {
			return nil
		}
		if !replaced {
			for _, source := range sources(docs) {
				if err := p.qdrantClient.DeleteBySource(ctx, source); err != nil {
					return fmt.Errorf("failed to remove previous chunks: %w", err)
				}
			}
			replaced = true
		}
		if err := p.qdrantClient.UpsertPoints(ctx, pointsToUpsert); err != nil {
			return fmt.Errorf("failed to upsert points: %w", err)
		}
		stored += len(pointsToUpsert)
		pointsToUpsert = make([]*qdrant.PointStruct, 0, upsertBatchSize)
		return nil
	}

	for _, doc := range docs {
		chunks := p.chunker.ChunkText(doc.Text)
		for i, chunk := range chunks {
			embedding, err := p.embedder.GenerateEmbedding(ctx, chunk)
			if err != nil {
				return stored, fmt.Errorf("failed to generate embedding for %s page %d chunk %d: %w", doc.Source, doc.Page, i, err)
			}

			pointsToUpsert = append(pointsToUpsert, &qdrant.PointStruct{
				Id:      qdrant.NewID(pointID(doc, i)),
				Vectors: qdrant.NewVectors(embedding...),
				Payload: qdrant.NewValueMap(map[string]any{
					payloadText:       chunk,
					payloadSource:     doc.Source,
					payloadPage:       int64(doc.Page),
					payloadChunkIndex: int64(i),
				}),
			})

			if len(pointsToUpsert) == upsertBatchSize {
				if err := flush(); err != nil {
					return stored, err
				}
			}
		}
	}

	if err := flush(); err != nil {
		return stored, err
	}
	if stored == 0 {
		return 0, fmt.Errorf("no chunks created from documents")
	}

	return stored, nil
}

// Search returns up to k passages most similar to the query, best first
func (p *Pipeline) Search(ctx context.Context, query string, k int) ([]types.Passage, error) {
	queryEmbedding, err := p.embedder.GenerateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to generate query embedding: %w", err)
	}

	hits, err := p.qdrantClient.Search(ctx, queryEmbedding, uint64(k))
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	passages := make([]types.Passage, 0, len(hits))
	for _, hit := range hits {
		passages = append(passages, types.Passage{
			Text:   hit.Text,
			Source: formatSource(hit.Source, hit.Page),
			Score:  float64(hit.Score),
		})
	}

	return passages, nil
}

// sources returns the distinct document sources in order of appearance
func sources(docs []Document) []string {
	seen := make(map[string]struct{}, len(docs))
	var out []string
	for _, doc := range docs {
		if _, ok := seen[doc.Source]; ok {
			continue
		}
		seen[doc.Source] = struct{}{}
		out = append(out, doc.Source)
	}
	return out
}

func pointID(doc Document, chunkIndex int) string {
	key := fmt.Sprintf("%s#%d#%d", doc.Source, doc.Page, chunkIndex)
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(key)).String()
}

func formatSource(source string, page int64) string {
	if page > 0 {
		return fmt.Sprintf("%s, page %d", source, page)
	}
	return source
}
