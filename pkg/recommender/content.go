package recommender

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/tripscope/pkg/domain"
)

// Content implements content-based filtering: a weighted feature profile is
// built from the user's liked items, candidates are scored by feature overlap.
// Dislikes are excluded from profile construction entirely, trading explicit
// negative signal for precision.
type Content struct {
	items        ItemStore
	interactions InteractionStore
}

// feature match weights, tags count as weaker signals
const (
	featureWeightFull = 1.0
	featureWeightTag  = 0.5
	neutralScore      = 0.5
)

// NewContent creates a content-based scorer
func NewContent(items ItemStore, interactions InteractionStore) *Content {
	return &Content{items: items, interactions: interactions}
}

// Profile extracts the user's feature preference weights from interaction
// history. Buckets are keyed by lowercased category, energy level, tags and
// age profile; each bucket is divided by the total accumulated rating.
// No positive interactions yields an empty profile.
func (c *Content) Profile(ctx context.Context, user domain.User) (map[string]float64, error) {
	interactions, err := c.interactions.GetUserInteractions(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("get interactions: %w", err)
	}

	weights := make(map[string]float64)
	total := 0.0

	for _, inter := range interactions {
		if inter.Rating <= 0 {
			continue
		}

		item, err := c.items.GetItemByID(ctx, inter.ItemID)
		if err != nil {
			// interaction references an item outside the current catalog, skip it
			lgr.Printf("[DEBUG] skip interaction with unknown item %s: %v", inter.ItemID, err)
			continue
		}

		weight := float64(inter.Rating)
		weights[strings.ToLower(item.Category)] += weight
		weights[energyLevel(*item)] += weight
		for _, tag := range item.Features.Tags {
			weights[strings.ToLower(tag)] += weight
		}
		if profile := strings.ToLower(item.Features.AgeProfile); profile != "" {
			weights[profile] += weight
		}
		total += weight
	}

	if total > 0 {
		for k := range weights {
			weights[k] /= total
		}
	}
	return weights, nil
}

// ScoreItem scores an item against a preference profile, result in [0, 1].
// An empty profile returns the neutral 0.5. The +1 in the denominator keeps
// a single strong match from saturating to 1.0.
func ScoreItem(item domain.Item, profile map[string]float64) float64 {
	if len(profile) == 0 {
		return neutralScore
	}

	score := 0.0
	matches := 0

	if w, ok := profile[strings.ToLower(item.Category)]; ok {
		score += w * featureWeightFull
		matches++
	}
	if w, ok := profile[energyLevel(item)]; ok {
		score += w * featureWeightFull
		matches++
	}
	for _, tag := range item.Features.Tags {
		if w, ok := profile[strings.ToLower(tag)]; ok {
			score += w * featureWeightTag
			matches++
		}
	}
	if ageProfile := strings.ToLower(item.Features.AgeProfile); ageProfile != "" {
		if w, ok := profile[ageProfile]; ok {
			score += w * featureWeightFull
			matches++
		}
	}

	if matches > 0 {
		score /= float64(matches + 1)
	} else {
		score = 0
	}

	return clamp(score, 0, 1)
}

// Recommend scores every candidate item against the user's profile. Unlike
// the collaborative scorer this never returns an empty map for a non-empty
// candidate set: with no profile every item gets the neutral score.
func (c *Content) Recommend(ctx context.Context, user domain.User, candidates []domain.Item, topN int) (domain.ScoreMap, error) {
	profile, err := c.Profile(ctx, user)
	if err != nil {
		return nil, err
	}

	scores := make(domain.ScoreMap, len(candidates))
	order := make([]string, 0, len(candidates))
	for i := range candidates {
		scores[candidates[i].ID] = ScoreItem(candidates[i], profile)
		order = append(order, candidates[i].ID)
	}

	sort.SliceStable(order, func(i, j int) bool { return scores[order[i]] > scores[order[j]] })
	if len(order) > topN {
		order = order[:topN]
	}

	result := make(domain.ScoreMap, len(order))
	for _, id := range order {
		result[id] = scores[id]
	}
	return result, nil
}

// energyLevel returns the item's lowercased energy level, missing values
// default to medium
func energyLevel(item domain.Item) string {
	if item.Features.EnergyLevel == "" {
		return "medium"
	}
	return strings.ToLower(item.Features.EnergyLevel)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
