// Package semantic provides pluggable semantic similarity providers for the
// recommendation engine. The embeddings provider uses an OpenAI-compatible
// API with an in-memory vector index, the text provider falls back to a local
// bleve index, and Noop disables the signal entirely.
package semantic

import (
	"context"
	"fmt"
	"sort"

	"github.com/umputun/tripscope/pkg/domain"
)

// queryLikedItems is how many of the most recently liked items feed the
// semantic query text
const queryLikedItems = 5

// Noop is a disabled provider, it indexes nothing and scores nothing
type Noop struct{}

// Upsert does nothing
func (Noop) Upsert(_ context.Context, _ []domain.Item) {}

// Query returns an empty score map
func (Noop) Query(_ context.Context, _ []domain.Interaction, _ []domain.Item, _ string, _ int) domain.ScoreMap {
	return domain.ScoreMap{}
}

// queryText builds the semantic query from the text of the user's most
// recently liked items, looked up via the provided resolver. With no liked
// items the query falls back to a generic destination phrase.
func queryText(interactions []domain.Interaction, destination string, textFor func(itemID string) (string, bool)) string {
	liked := make([]string, 0, queryLikedItems)
	for i := len(interactions) - 1; i >= 0 && len(liked) < queryLikedItems; i-- {
		if interactions[i].Rating <= 0 {
			continue
		}
		if text, ok := textFor(interactions[i].ItemID); ok {
			liked = append(liked, text)
		}
	}

	if len(liked) == 0 {
		return fmt.Sprintf("places and activities in %s", destination)
	}

	result := liked[0]
	for _, t := range liked[1:] {
		result += " " + t
	}
	return result
}

// interactedSet collects the item ids the user already rated, recommendations
// never resurface them
func interactedSet(interactions []domain.Interaction) map[string]bool {
	seen := make(map[string]bool, len(interactions))
	for _, inter := range interactions {
		seen[inter.ItemID] = true
	}
	return seen
}

// topScores keeps the topN highest entries of scores, preserving the given
// candidate order for ties
func topScores(scores domain.ScoreMap, order []string, topN int) domain.ScoreMap {
	sort.SliceStable(order, func(i, j int) bool { return scores[order[i]] > scores[order[j]] })
	if len(order) > topN {
		order = order[:topN]
	}

	result := make(domain.ScoreMap, len(order))
	for _, id := range order {
		result[id] = scores[id]
	}
	return result
}
