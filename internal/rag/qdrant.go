package rag

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
)

// Payload keys written by Ingest and read back by Search
const (
	payloadText       = "text"
	payloadSource     = "source"
	payloadPage       = "page"
	payloadChunkIndex = "chunk_index"
)

// SearchHit is a single scored point returned by the vector database
type SearchHit struct {
	Text   string
	Source string
	Page   int64
	Score  float32
}

// QdrantClient wraps Qdrant client and provides RAG-specific methods
type QdrantClient struct {
	client     *qdrant.Client
	collection string
}

// NewQdrantClient creates a new Qdrant client
func NewQdrantClient(host string, port int, apiKey, collection string) (*QdrantClient, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   host,
		Port:   port,
		APIKey: apiKey,
		UseTLS: apiKey != "",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Qdrant client: %w", err)
	}

	qc := &QdrantClient{
		client:     client,
		collection: collection,
	}

	return qc, nil
}

// Close releases the underlying gRPC connection
func (qc *QdrantClient) Close() error {
	return qc.client.Close()
}

// EnsureCollection ensures the collection exists with the correct configuration
func (qc *QdrantClient) EnsureCollection(ctx context.Context, vectorSize uint64) error {
	exists, err := qc.client.CollectionExists(ctx, qc.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}
	if exists {
		return nil
	}

	err = qc.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: qc.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     vectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	return nil
}

// UpsertPoints upserts points (documents) into the collection
func (qc *QdrantClient) UpsertPoints(ctx context.Context, pointsToUpsert []*qdrant.PointStruct) error {
	_, err := qc.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: qc.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         pointsToUpsert,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

// DeleteBySource removes every point stored for a source file
func (qc *QdrantClient) DeleteBySource(ctx context.Context, source string) error {
	_, err := qc.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: qc.collection,
		Wait:           qdrant.PtrOf(true),
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch(payloadSource, source)},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to delete points for %s: %w", source, err)
	}
	return nil
}

// Search searches for similar vectors in the collection using Qdrant Query API
func (qc *QdrantClient) Search(ctx context.Context, vector []float32, limit uint64) ([]SearchHit, error) {
	searchResult, err := qc.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: qc.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	hits := make([]SearchHit, 0, len(searchResult))
	for _, result := range searchResult {
		if result.Payload == nil {
			continue
		}
		text := result.Payload[payloadText].GetStringValue()
		if text == "" {
			continue
		}
		hits = append(hits, SearchHit{
			Text:   text,
			Source: result.Payload[payloadSource].GetStringValue(),
			Page:   result.Payload[payloadPage].GetIntegerValue(),
			Score:  result.Score,
		})
	}

	return hits, nil
}
