package semantic

import (
	"context"
	"math"
	"net/http"
	"sync"

	"github.com/go-pkgz/lgr"
	"github.com/sashabaranov/go-openai"

	"github.com/umputun/tripscope/pkg/config"
	"github.com/umputun/tripscope/pkg/domain"
)

// Embeddings scores items by cosine similarity between item embeddings and a
// query embedding built from the user's recent likes. Vectors live in an
// in-memory index keyed by item id; re-upserting an already indexed item is a
// no-op, so repeated recommendation calls don't re-embed the catalog.
type Embeddings struct {
	client *openai.Client
	model  string

	mu    sync.RWMutex
	index map[string]indexedItem
}

type indexedItem struct {
	text   string
	vector []float32
}

// NewEmbeddings creates an embeddings provider for an OpenAI-compatible API
func NewEmbeddings(cfg config.EmbeddingsConfig) *Embeddings {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}
	if cfg.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Embeddings{
		client: openai.NewClientWithConfig(clientConfig),
		model:  cfg.Model,
		index:  make(map[string]indexedItem),
	}
}

// Upsert embeds and indexes items not seen before. Failures are logged and
// swallowed, unindexed items simply score zero until the next attempt.
func (e *Embeddings) Upsert(ctx context.Context, items []domain.Item) {
	e.mu.RLock()
	pending := make([]domain.Item, 0, len(items))
	for i := range items {
		if _, ok := e.index[items[i].ID]; !ok {
			pending = append(pending, items[i])
		}
	}
	e.mu.RUnlock()

	if len(pending) == 0 {
		return
	}

	texts := make([]string, len(pending))
	for i := range pending {
		texts[i] = pending[i].SearchText()
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		lgr.Printf("[WARN] failed to embed %d items: %v", len(pending), err)
		return
	}
	if len(resp.Data) != len(pending) {
		lgr.Printf("[WARN] embeddings response size mismatch: got %d, want %d", len(resp.Data), len(pending))
		return
	}

	e.mu.Lock()
	for i := range pending {
		e.index[pending[i].ID] = indexedItem{text: texts[i], vector: resp.Data[i].Embedding}
	}
	e.mu.Unlock()
	lgr.Printf("[DEBUG] indexed %d items, %d total", len(pending), len(e.index))
}

// Query embeds the user's recent-likes text and ranks candidates by cosine
// similarity, clamped to [0, 1]. Already rated items are excluded. Any
// provider failure degrades to an empty map.
func (e *Embeddings) Query(ctx context.Context, interactions []domain.Interaction, candidates []domain.Item, destination string, topN int) domain.ScoreMap {
	if topN <= 0 || len(candidates) == 0 {
		return domain.ScoreMap{}
	}

	query := queryText(interactions, destination, func(itemID string) (string, bool) {
		e.mu.RLock()
		defer e.mu.RUnlock()
		entry, ok := e.index[itemID]
		return entry.text, ok
	})

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{query},
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		lgr.Printf("[WARN] failed to embed query for %s: %v", destination, err)
		return domain.ScoreMap{}
	}
	if len(resp.Data) == 0 {
		return domain.ScoreMap{}
	}
	queryVec := resp.Data[0].Embedding

	seen := interactedSet(interactions)

	e.mu.RLock()
	scores := make(domain.ScoreMap, len(candidates))
	order := make([]string, 0, len(candidates))
	for i := range candidates {
		id := candidates[i].ID
		if seen[id] {
			continue
		}
		entry, ok := e.index[id]
		if !ok {
			continue
		}
		score := cosine(queryVec, entry.vector)
		if score < 0 {
			score = 0
		}
		if score > 1 {
			score = 1
		}
		scores[id] = score
		order = append(order, id)
	}
	e.mu.RUnlock()

	return topScores(scores, order, topN)
}

// cosine computes cosine similarity between two vectors, zero when either has
// no magnitude or lengths differ
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
