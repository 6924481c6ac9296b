package semantic

import (
	"context"
	"fmt"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/go-pkgz/lgr"

	"github.com/umputun/tripscope/pkg/domain"
)

// TextIndex is the local fallback provider: an in-memory bleve full-text
// index over item texts, used when no embeddings endpoint is configured.
// Match scores are normalized by the best hit so the signal stays in [0, 1].
type TextIndex struct {
	index bleve.Index

	mu    sync.RWMutex
	texts map[string]string // item id -> indexed text, for query building
}

// indexedDoc is the bleve document shape
type indexedDoc struct {
	Text string `json:"text"`
}

// NewTextIndex creates an in-memory full-text provider
func NewTextIndex() (*TextIndex, error) {
	indexMapping := bleve.NewIndexMapping()
	indexMapping.DefaultAnalyzer = en.AnalyzerName

	textField := bleve.NewTextFieldMapping()
	textField.Analyzer = en.AnalyzerName
	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("text", textField)
	indexMapping.DefaultMapping = docMapping

	index, err := bleve.NewMemOnly(indexMapping)
	if err != nil {
		return nil, fmt.Errorf("create in-memory index: %w", err)
	}

	return &TextIndex{index: index, texts: make(map[string]string)}, nil
}

// Upsert indexes item texts, skipping items already indexed
func (t *TextIndex) Upsert(_ context.Context, items []domain.Item) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for i := range items {
		if _, ok := t.texts[items[i].ID]; ok {
			continue
		}
		text := items[i].SearchText()
		if err := t.index.Index(items[i].ID, indexedDoc{Text: text}); err != nil {
			lgr.Printf("[WARN] failed to index item %s: %v", items[i].ID, err)
			continue
		}
		t.texts[items[i].ID] = text
	}
}

// Query runs a match query built from the user's recent likes and returns
// max-normalized scores for unrated candidates
func (t *TextIndex) Query(ctx context.Context, interactions []domain.Interaction, candidates []domain.Item, destination string, topN int) domain.ScoreMap {
	if topN <= 0 || len(candidates) == 0 {
		return domain.ScoreMap{}
	}

	query := queryText(interactions, destination, func(itemID string) (string, bool) {
		t.mu.RLock()
		defer t.mu.RUnlock()
		text, ok := t.texts[itemID]
		return text, ok
	})

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetField("text")
	req := bleve.NewSearchRequestOptions(matchQuery, len(candidates)+len(interactions), 0, false)

	t.mu.RLock()
	res, err := t.index.SearchInContext(ctx, req)
	t.mu.RUnlock()
	if err != nil {
		lgr.Printf("[WARN] text search failed for %s: %v", destination, err)
		return domain.ScoreMap{}
	}
	if len(res.Hits) == 0 {
		return domain.ScoreMap{}
	}

	hitScores := make(map[string]float64, len(res.Hits))
	maxScore := 0.0
	for _, hit := range res.Hits {
		hitScores[hit.ID] = hit.Score
		if hit.Score > maxScore {
			maxScore = hit.Score
		}
	}
	if maxScore == 0 {
		return domain.ScoreMap{}
	}

	seen := interactedSet(interactions)

	scores := make(domain.ScoreMap, len(candidates))
	order := make([]string, 0, len(candidates))
	for i := range candidates {
		id := candidates[i].ID
		if seen[id] {
			continue
		}
		raw, ok := hitScores[id]
		if !ok {
			continue
		}
		scores[id] = raw / maxScore
		order = append(order, id)
	}

	return topScores(scores, order, topN)
}

// Close releases the underlying index
func (t *TextIndex) Close() error {
	return t.index.Close()
}
