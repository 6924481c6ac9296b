package recommender

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/umputun/tripscope/pkg/domain"
)

// Collaborative implements user-user collaborative filtering. Similarity is
// cosine over the ratings both users gave to their shared items, clamped to
// zero: negative correlation counts as "not similar", not "anti-similar".
type Collaborative struct {
	users        UserStore
	interactions InteractionStore
	topK         int
}

// Neighbor is a user similar to the target with its similarity score
type Neighbor struct {
	UserID     string
	Similarity float64
}

// NewCollaborative creates a collaborative scorer considering topK neighbors
func NewCollaborative(users UserStore, interactions InteractionStore, topK int) *Collaborative {
	if topK <= 0 {
		topK = defaultTopK
	}
	return &Collaborative{users: users, interactions: interactions, topK: topK}
}

// Similarity computes cosine similarity between two users' rating histories,
// restricted to the items both rated. Result is in [0, 1]; no shared items
// means exactly 0. Symmetric in its arguments.
func Similarity(interactionsA, interactionsB []domain.Interaction) float64 {
	ratingsA := ratingsByItem(interactionsA)
	ratingsB := ratingsByItem(interactionsB)

	var dot, normA, normB float64
	for itemID, ra := range ratingsA {
		rb, ok := ratingsB[itemID]
		if !ok {
			continue
		}
		dot += float64(ra) * float64(rb)
		normA += float64(ra) * float64(ra)
		normB += float64(rb) * float64(rb)
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return math.Max(0, dot/(math.Sqrt(normA)*math.Sqrt(normB)))
}

// SimilarUsers finds up to topK users most similar to the target,
// keeping strictly positive similarities only
func (c *Collaborative) SimilarUsers(ctx context.Context, target domain.User) ([]Neighbor, error) {
	all, err := c.users.GetAllUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("get all users: %w", err)
	}

	targetInteractions, err := c.interactions.GetUserInteractions(ctx, target.ID)
	if err != nil {
		return nil, fmt.Errorf("get target interactions: %w", err)
	}

	neighbors := make([]Neighbor, 0, len(all))
	for _, u := range all {
		if u.ID == target.ID {
			continue
		}
		otherInteractions, err := c.interactions.GetUserInteractions(ctx, u.ID)
		if err != nil {
			return nil, fmt.Errorf("get interactions for %s: %w", u.ID, err)
		}
		if sim := Similarity(targetInteractions, otherInteractions); sim > 0 {
			neighbors = append(neighbors, Neighbor{UserID: u.ID, Similarity: sim})
		}
	}

	// stable to keep input order on ties
	sort.SliceStable(neighbors, func(i, j int) bool { return neighbors[i].Similarity > neighbors[j].Similarity })

	if len(neighbors) > c.topK {
		neighbors = neighbors[:c.topK]
	}
	return neighbors, nil
}

// Recommend scores candidate items by what similar users liked. Items the
// target already interacted with are excluded, scores are normalized by the
// maximum so the output range is (0, 1]. An empty map is the expected cold
// start result, not an error.
func (c *Collaborative) Recommend(ctx context.Context, target domain.User, candidates []domain.Item, topN int) (domain.ScoreMap, error) {
	neighbors, err := c.SimilarUsers(ctx, target)
	if err != nil {
		return nil, err
	}
	if len(neighbors) == 0 {
		return domain.ScoreMap{}, nil
	}

	targetInteractions, err := c.interactions.GetUserInteractions(ctx, target.ID)
	if err != nil {
		return nil, fmt.Errorf("get target interactions: %w", err)
	}
	seen := make(map[string]bool, len(targetInteractions))
	for _, inter := range targetInteractions {
		seen[inter.ItemID] = true
	}

	// accumulate similarity-weighted positive ratings from neighbors,
	// tracking first-seen order for deterministic tie-breaks
	scores := make(domain.ScoreMap)
	var order []string
	for _, n := range neighbors {
		neighborInteractions, err := c.interactions.GetUserInteractions(ctx, n.UserID)
		if err != nil {
			return nil, fmt.Errorf("get interactions for %s: %w", n.UserID, err)
		}
		for _, inter := range neighborInteractions {
			if seen[inter.ItemID] || inter.Rating <= 0 {
				continue
			}
			if _, ok := scores[inter.ItemID]; !ok {
				order = append(order, inter.ItemID)
			}
			scores[inter.ItemID] += n.Similarity * float64(inter.Rating)
		}
	}

	// normalize by the max accumulated score
	var maxScore float64
	for _, s := range scores {
		if s > maxScore {
			maxScore = s
		}
	}
	if maxScore > 0 {
		for id := range scores {
			scores[id] /= maxScore
		}
	}

	// restrict to the candidate set
	valid := make(map[string]bool, len(candidates))
	for i := range candidates {
		valid[candidates[i].ID] = true
	}

	ranked := make([]string, 0, len(order))
	for _, id := range order {
		if valid[id] {
			ranked = append(ranked, id)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return scores[ranked[i]] > scores[ranked[j]] })
	if len(ranked) > topN {
		ranked = ranked[:topN]
	}

	result := make(domain.ScoreMap, len(ranked))
	for _, id := range ranked {
		result[id] = scores[id]
	}
	return result, nil
}

// ratingsByItem collapses an interaction list into item->rating,
// the latest interaction for an item wins
func ratingsByItem(interactions []domain.Interaction) map[string]int {
	ratings := make(map[string]int, len(interactions))
	for _, inter := range interactions {
		ratings[inter.ItemID] = inter.Rating
	}
	return ratings
}
