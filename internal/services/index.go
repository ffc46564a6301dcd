package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"
	"time"

	"brandshield-pipeline/internal/config"
	"brandshield-pipeline/internal/models"
	"brandshield-pipeline/internal/pkg/logger"
)

// Chunk is one searchable fragment of a mention, carrying enough source
// metadata to trace evidence back to where it was said.
type Chunk struct {
	Text        string
	SourceTitle string
	SourceURL   string
	TimeBucket  string
	IsBreaking  bool
}

type ScoredChunk struct {
	Chunk
	Score float64
}

// IndexBuilder turns evaluated mentions into a per-session RetrievalIndex.
// Embedding and nearest-neighbor math live behind the EmbeddingProvider
// and VectorStore capabilities; the builder only owns chunking.
type IndexBuilder struct {
	embedder EmbeddingProvider
	newStore func() VectorStore
	config   config.PipelineConfig
	logger   *logger.Logger
}

func NewIndexBuilder(embedder EmbeddingProvider, newStore func() VectorStore, cfg config.PipelineConfig, log *logger.Logger) *IndexBuilder {
	if newStore == nil {
		newStore = func() VectorStore { return NewMemoryVectorStore() }
	}
	return &IndexBuilder{
		embedder: embedder,
		newStore: newStore,
		config:   cfg,
		logger:   log,
	}
}

// RetrievalIndex is owned by a single analysis session. The underlying
// store is never shared across sessions, so concurrent invocations only
// share the embedder, which must tolerate parallel calls.
type RetrievalIndex struct {
	embedder EmbeddingProvider
	store    VectorStore
	logger   *logger.Logger
}

// Build chunks each mention's composed text (title + formatted timestamp
// + body) and indexes the embeddings. Chunks whose embedding call fails
// are skipped rather than failing the build; an index with zero documents
// is a valid "no findings" index.
func (builder *IndexBuilder) Build(ctx context.Context, evaluated []models.EvaluatedMention) (*RetrievalIndex, error) {
	startTime := time.Now()
	store := builder.newStore()

	var chunks []Chunk
	var vectors [][]float64
	skipped := 0

	for _, mention := range evaluated {
		composed := fmt.Sprintf("Title: %s\nPublished: %s (%s)\nContent: %s",
			mention.Title, mention.FormattedDate, mention.TimeBucket, mention.Text)

		for _, text := range splitIntoChunks(composed, builder.config.ChunkSize, builder.config.ChunkOverlap) {
			vector, err := builder.embedder.Embed(ctx, text)
			if err != nil {
				skipped++
				builder.logger.WithError(err).Warn("embedding failed, skipping chunk", "source", mention.URL)
				continue
			}
			chunks = append(chunks, Chunk{
				Text:        text,
				SourceTitle: mention.Title,
				SourceURL:   mention.URL,
				TimeBucket:  mention.TimeBucket,
				IsBreaking:  mention.IsBreaking,
			})
			vectors = append(vectors, vector)
		}
	}

	if len(chunks) > 0 {
		if err := store.Index(ctx, chunks, vectors); err != nil {
			return nil, models.WrapExternalError("VECTOR_STORE", err)
		}
	}

	builder.logger.LogService("index", "build", time.Since(startTime), map[string]interface{}{
		"mentions":       len(evaluated),
		"chunks":         len(chunks),
		"chunks_skipped": skipped,
	}, nil)

	return &RetrievalIndex{
		embedder: builder.embedder,
		store:    store,
		logger:   builder.logger,
	}, nil
}

// Search returns the top-k chunks by similarity for the query.
func (index *RetrievalIndex) Search(ctx context.Context, query string, k int) ([]ScoredChunk, error) {
	if index.store.Size() == 0 {
		return nil, nil
	}

	vector, err := index.embedder.Embed(ctx, query)
	if err != nil {
		return nil, models.WrapExternalError("EMBEDDING", err)
	}

	results, err := index.store.Query(ctx, vector, k)
	if err != nil {
		return nil, models.WrapExternalError("VECTOR_STORE", err)
	}
	return results, nil
}

func (index *RetrievalIndex) Size() int {
	return index.store.Size()
}

// splitIntoChunks produces overlapping chunks of roughly size characters.
// The overlap preserves semantic continuity across chunk boundaries;
// breaks prefer whitespace so words stay intact.
func splitIntoChunks(text string, size, overlap int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if len(text) <= size {
		return []string{text}
	}

	var chunks []string
	start := 0
	for start < len(text) {
		end := start + size
		if end >= len(text) {
			chunks = append(chunks, strings.TrimSpace(text[start:]))
			break
		}

		cut := end
		if idx := strings.LastIndexAny(text[start:end], " \n\t"); idx > size/2 {
			cut = start + idx
		}
		chunks = append(chunks, strings.TrimSpace(text[start:cut]))

		next := cut - overlap
		if next <= start {
			next = cut
		}
		start = next
	}

	return chunks
}

// MemoryVectorStore is the default in-process VectorStore: cosine
// similarity over normalized vectors. It exists so the pipeline runs
// deterministically without an external engine; anything heavier plugs
// in through the VectorStore interface.
type MemoryVectorStore struct {
	mu      sync.RWMutex
	chunks  []Chunk
	vectors [][]float64
}

func NewMemoryVectorStore() *MemoryVectorStore {
	return &MemoryVectorStore{}
}

func (store *MemoryVectorStore) Index(_ context.Context, chunks []Chunk, vectors [][]float64) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunk/vector count mismatch: %d vs %d", len(chunks), len(vectors))
	}

	store.mu.Lock()
	defer store.mu.Unlock()
	for i := range chunks {
		store.chunks = append(store.chunks, chunks[i])
		store.vectors = append(store.vectors, normalize(vectors[i]))
	}
	return nil
}

func (store *MemoryVectorStore) Query(_ context.Context, vector []float64, k int) ([]ScoredChunk, error) {
	store.mu.RLock()
	defer store.mu.RUnlock()

	if len(store.chunks) == 0 || k <= 0 {
		return nil, nil
	}

	query := normalize(vector)
	scored := make([]ScoredChunk, len(store.chunks))
	for i, stored := range store.vectors {
		scored[i] = ScoredChunk{Chunk: store.chunks[i], Score: dot(query, stored)}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

func (store *MemoryVectorStore) Size() int {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return len(store.chunks)
}

func normalize(vector []float64) []float64 {
	var sum float64
	for _, v := range vector {
		sum += v * v
	}
	if sum == 0 {
		return vector
	}
	norm := math.Sqrt(sum)
	normalized := make([]float64, len(vector))
	for i, v := range vector {
		normalized[i] = v / norm
	}
	return normalized
}

func dot(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float64
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
