package domain

import "strings"

// ItemKind discriminates places from activities
type ItemKind string

// item kind values, stored as-is in the database and used in API payloads
const (
	KindPlace    ItemKind = "place"
	KindActivity ItemKind = "activity"
)

// Features holds the descriptive attributes scorers match against.
// Unknown keys coming from external sources are preserved in Extra.
type Features struct {
	EnergyLevel string            `json:"energy_level,omitempty"`
	Tags        []string          `json:"tags,omitempty"`
	AgeProfile  string            `json:"age_suitability_profile,omitempty"`
	PriceRange  string            `json:"price_range,omitempty"`
	Extra       map[string]string `json:"extra,omitempty"`
}

// Item represents a recommendable place or activity. Location is set for
// places only, PlaceID for activities only; Kind tells which one applies.
type Item struct {
	ID          string   `json:"id"`
	Kind        ItemKind `json:"type"`
	Name        string   `json:"name"`
	Category    string   `json:"category"`
	Description string   `json:"description,omitempty"`
	Features    Features `json:"features"`
	Location    string   `json:"location,omitempty"`
	PlaceID     string   `json:"placeId,omitempty"`
}

// SearchText returns the text representation used for semantic indexing
// and query building: name, category, description, energy level, age
// profile and tags joined with spaces, empty parts skipped.
func (i *Item) SearchText() string {
	parts := []string{
		i.Name,
		i.Category,
		i.Description,
		i.Features.EnergyLevel,
		i.Features.AgeProfile,
		strings.Join(i.Features.Tags, " "),
	}

	nonEmpty := make([]string, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	return strings.Join(nonEmpty, " ")
}

// ScoreMap is the interchange type between scorers and the ranker,
// mapping item id to a non-negative score.
type ScoreMap map[string]float64

// ScoredItem is a ranked item with its final score
type ScoredItem struct {
	Item  Item    `json:"item"`
	Score float64 `json:"score"`
}
