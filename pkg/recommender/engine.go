package recommender

import (
	"context"
	"fmt"
	"sort"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/umputun/tripscope/pkg/domain"
)

// CatalogStore provides the candidate items for a destination
type CatalogStore interface {
	GetPlacesByDestination(ctx context.Context, destination string) ([]domain.Item, error)
	GetActivitiesByDestination(ctx context.Context, destination string) ([]domain.Item, error)
	GetItemByID(ctx context.Context, id string) (*domain.Item, error)
}

// UserStore provides users for neighbor search
type UserStore interface {
	GetAllUsers(ctx context.Context) ([]domain.User, error)
}

// InteractionStore provides per-user interaction history
type InteractionStore interface {
	GetUserInteractions(ctx context.Context, userID string) ([]domain.Interaction, error)
}

// ItemStore resolves single items for profile extraction
type ItemStore interface {
	GetItemByID(ctx context.Context, id string) (*domain.Item, error)
}

// SemanticProvider is the semantic similarity collaborator. Both methods are
// best-effort: Upsert never reports failures, Query returns an empty map on
// any provider problem so the ranker degrades to the remaining signals.
type SemanticProvider interface {
	Upsert(ctx context.Context, items []domain.Item)
	Query(ctx context.Context, interactions []domain.Interaction, candidates []domain.Item, destination string, topN int) domain.ScoreMap
}

// fixed combination policy: collaborative signal is trusted most when
// present, content and semantic signals count equally as secondary evidence
const (
	weightCollaborative = 0.4
	weightContent       = 0.3
	weightSemantic      = 0.3

	overFetchFactor = 3 // each scorer is asked for 3x topN to tolerate downstream filtering
	defaultTopK     = 10

	highConfidenceScore = 0.8
	confidenceMinLikes  = 20
	confidenceMinRatio  = 0.95
)

// Engine merges collaborative, content-based and semantic scores, applies
// the age suitability multiplier and produces the final ranking. It holds no
// mutable state, concurrent calls are independent.
type Engine struct {
	catalog      CatalogStore
	users        UserStore
	interactions InteractionStore
	semantic     SemanticProvider

	collab  *Collaborative
	content *Content
}

// Confidence describes how much signal a user has provided for a destination
type Confidence struct {
	Likes          int     `json:"likes"`
	Dislikes       int     `json:"dislikes"`
	Total          int     `json:"total"`
	Ratio          float64 `json:"confidence_ratio"`
	MeetsThreshold bool    `json:"meets_threshold"`
}

// Participant is a trip member whose liked items boost shared recommendations.
// Ranking stays relative to the requesting user's age, participants only
// contribute their likes.
type Participant struct {
	ID         string
	LikedItems []string
}

// NewEngine creates a hybrid recommendation engine with injected collaborators
func NewEngine(catalog CatalogStore, users UserStore, interactions InteractionStore, semantic SemanticProvider) *Engine {
	return &Engine{
		catalog:      catalog,
		users:        users,
		interactions: interactions,
		semantic:     semantic,
		collab:       NewCollaborative(users, interactions, defaultTopK),
		content:      NewContent(catalog, interactions),
	}
}

// GetRecommendations produces the hybrid ranking for a user at a destination.
// The three scorers run concurrently; a failing scorer degrades to an empty
// score map and never fails the request. An empty result is a valid outcome
// for unknown destinations, topN <= 0 or total cold start.
func (e *Engine) GetRecommendations(ctx context.Context, user domain.User, destination string, topN int) ([]domain.ScoredItem, error) {
	if topN <= 0 {
		return []domain.ScoredItem{}, nil
	}

	places, err := e.catalog.GetPlacesByDestination(ctx, destination)
	if err != nil {
		return nil, fmt.Errorf("get places for %s: %w", destination, err)
	}
	activities, err := e.catalog.GetActivitiesByDestination(ctx, destination)
	if err != nil {
		return nil, fmt.Errorf("get activities for %s: %w", destination, err)
	}

	candidates := make([]domain.Item, 0, len(places)+len(activities))
	candidates = append(candidates, places...)
	candidates = append(candidates, activities...)
	if len(candidates) == 0 {
		return []domain.ScoredItem{}, nil
	}

	// best-effort indexing, the provider swallows failures
	e.semantic.Upsert(ctx, candidates)

	userInteractions, err := e.interactions.GetUserInteractions(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("get interactions for %s: %w", user.ID, err)
	}

	fetchN := topN * overFetchFactor

	var collabScores, contentScores, semanticScores domain.ScoreMap
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		scores, err := e.collab.Recommend(gctx, user, candidates, fetchN)
		if err != nil {
			lgr.Printf("[WARN] collaborative scorer failed for user %s: %v", user.ID, err)
			scores = domain.ScoreMap{}
		}
		collabScores = scores
		return nil
	})
	g.Go(func() error {
		scores, err := e.content.Recommend(gctx, user, candidates, fetchN)
		if err != nil {
			lgr.Printf("[WARN] content scorer failed for user %s: %v", user.ID, err)
			scores = domain.ScoreMap{}
		}
		contentScores = scores
		return nil
	})
	g.Go(func() error {
		semanticScores = e.semantic.Query(gctx, userInteractions, candidates, destination, fetchN)
		return nil
	})
	_ = g.Wait() // goroutines never return errors, failures degrade to empty maps

	// merge in candidate order so ties keep a deterministic, repeatable order
	results := make([]domain.ScoredItem, 0, len(candidates))
	for i := range candidates {
		id := candidates[i].ID
		collab, okCollab := collabScores[id]
		content, okContent := contentScores[id]
		semantic, okSemantic := semanticScores[id]
		if !okCollab && !okContent && !okSemantic {
			continue
		}

		base := collab*weightCollaborative + content*weightContent + semantic*weightSemantic
		final := base * AgeMultiplier(user.Age, candidates[i])
		results = append(results, domain.ScoredItem{Item: candidates[i], Score: final})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topN {
		results = results[:topN]
	}
	return results, nil
}

// MultiUserRecommendations ranks for the requesting user, then boosts items
// other trip participants liked: +0.1 per participant like, capped at +0.5
func (e *Engine) MultiUserRecommendations(ctx context.Context, user domain.User, participants []Participant, destination string, topN int) ([]domain.ScoredItem, error) {
	if topN <= 0 {
		return []domain.ScoredItem{}, nil
	}

	// over-fetch so boosted items outside the user's own topN can surface
	results, err := e.GetRecommendations(ctx, user, destination, topN*2)
	if err != nil {
		return nil, err
	}

	boost := make(map[string]float64)
	for _, p := range participants {
		for _, itemID := range p.LikedItems {
			boost[itemID] += 0.1
		}
	}

	for i := range results {
		b := boost[results[i].Item.ID]
		if b > 0.5 {
			b = 0.5
		}
		results[i].Score *= 1.0 + b
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topN {
		results = results[:topN]
	}
	return results, nil
}

// ConfidenceCheck counts the user's likes and dislikes among the
// destination's items. The threshold requires at least 20 likes at a 95%
// like ratio before recommendations are considered trustworthy.
func (e *Engine) ConfidenceCheck(ctx context.Context, userID, destination string) (Confidence, error) {
	interactions, err := e.interactions.GetUserInteractions(ctx, userID)
	if err != nil {
		return Confidence{}, fmt.Errorf("get interactions for %s: %w", userID, err)
	}

	inDestination, err := e.destinationItemIDs(ctx, destination)
	if err != nil {
		return Confidence{}, err
	}

	var conf Confidence
	for _, inter := range interactions {
		if !inDestination[inter.ItemID] {
			continue
		}
		if inter.Rating > 0 {
			conf.Likes++
		} else {
			conf.Dislikes++
		}
	}
	conf.Total = conf.Likes + conf.Dislikes
	if conf.Total > 0 {
		conf.Ratio = float64(conf.Likes) / float64(conf.Total)
	}
	conf.MeetsThreshold = conf.Likes >= confidenceMinLikes && conf.Ratio >= confidenceMinRatio

	return conf, nil
}

// HighConfidenceItems returns the user's liked items (scored 1.0) followed by
// unseen recommendations scoring at or above the high-confidence cut
func (e *Engine) HighConfidenceItems(ctx context.Context, user domain.User, destination string) ([]domain.ScoredItem, error) {
	interactions, err := e.interactions.GetUserInteractions(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("get interactions for %s: %w", user.ID, err)
	}

	liked := make(map[string]bool)
	seen := make(map[string]bool)
	for _, inter := range interactions {
		seen[inter.ItemID] = true
		if inter.Rating > 0 {
			liked[inter.ItemID] = true
		}
	}

	recommendations, err := e.GetRecommendations(ctx, user, destination, 100)
	if err != nil {
		return nil, err
	}

	places, err := e.catalog.GetPlacesByDestination(ctx, destination)
	if err != nil {
		return nil, fmt.Errorf("get places for %s: %w", destination, err)
	}
	activities, err := e.catalog.GetActivitiesByDestination(ctx, destination)
	if err != nil {
		return nil, fmt.Errorf("get activities for %s: %w", destination, err)
	}

	var results []domain.ScoredItem
	added := make(map[string]bool)

	for _, item := range append(places, activities...) {
		if liked[item.ID] && !added[item.ID] {
			results = append(results, domain.ScoredItem{Item: item, Score: 1.0})
			added[item.ID] = true
		}
	}
	for _, rec := range recommendations {
		if added[rec.Item.ID] || seen[rec.Item.ID] || rec.Score < highConfidenceScore {
			continue
		}
		results = append(results, rec)
		added[rec.Item.ID] = true
	}

	return results, nil
}

// destinationItemIDs builds the id set of all items in a destination
func (e *Engine) destinationItemIDs(ctx context.Context, destination string) (map[string]bool, error) {
	places, err := e.catalog.GetPlacesByDestination(ctx, destination)
	if err != nil {
		return nil, fmt.Errorf("get places for %s: %w", destination, err)
	}
	activities, err := e.catalog.GetActivitiesByDestination(ctx, destination)
	if err != nil {
		return nil, fmt.Errorf("get activities for %s: %w", destination, err)
	}

	ids := make(map[string]bool, len(places)+len(activities))
	for i := range places {
		ids[places[i].ID] = true
	}
	for i := range activities {
		ids[activities[i].ID] = true
	}
	return ids, nil
}
