package recommender

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/tripscope/pkg/domain"
)

func TestSimilarity(t *testing.T) {
	t.Run("identical ratings over shared items", func(t *testing.T) {
		a := []domain.Interaction{like("a", "item1"), like("a", "item2")}
		b := []domain.Interaction{like("b", "item1"), like("b", "item2"), like("b", "item3")}
		assert.InDelta(t, 1.0, Similarity(a, b), 1e-9)
	})

	t.Run("no shared items", func(t *testing.T) {
		a := []domain.Interaction{like("a", "item1")}
		b := []domain.Interaction{like("b", "item2")}
		assert.Zero(t, Similarity(a, b))
	})

	t.Run("opposite ratings clamp to zero", func(t *testing.T) {
		a := []domain.Interaction{like("a", "item1"), like("a", "item2")}
		b := []domain.Interaction{dislike("b", "item1"), dislike("b", "item2")}
		assert.Zero(t, Similarity(a, b))
	})

	t.Run("mixed agreement", func(t *testing.T) {
		a := []domain.Interaction{like("a", "item1"), like("a", "item2")}
		b := []domain.Interaction{like("b", "item1"), dislike("b", "item2")}
		// cosine of (1,1) and (1,-1) is 0
		assert.Zero(t, Similarity(a, b))
	})

	t.Run("symmetry", func(t *testing.T) {
		a := []domain.Interaction{like("a", "item1"), dislike("a", "item2"), like("a", "item3")}
		b := []domain.Interaction{like("b", "item1"), like("b", "item2")}
		assert.InDelta(t, Similarity(a, b), Similarity(b, a), 1e-9)
	})

	t.Run("empty histories", func(t *testing.T) {
		assert.Zero(t, Similarity(nil, nil))
		assert.Zero(t, Similarity([]domain.Interaction{like("a", "item1")}, nil))
	})

	t.Run("latest rating wins for repeated interactions", func(t *testing.T) {
		a := []domain.Interaction{like("a", "item1"), dislike("a", "item1")}
		b := []domain.Interaction{dislike("b", "item1")}
		assert.InDelta(t, 1.0, Similarity(a, b), 1e-9)
	})
}

func TestCollaborative_SimilarUsers(t *testing.T) {
	store := &stubStore{
		users: []domain.User{{ID: "target"}, {ID: "twin"}, {ID: "stranger"}, {ID: "partial"}},
		interactions: map[string][]domain.Interaction{
			"target":   {like("target", "item1"), like("target", "item2")},
			"twin":     {like("twin", "item1"), like("twin", "item2")},
			"stranger": {like("stranger", "other1")},
			"partial":  {like("partial", "item1"), dislike("partial", "item2")},
		},
	}

	collab := NewCollaborative(store, store, 10)
	neighbors, err := collab.SimilarUsers(context.Background(), domain.User{ID: "target"})
	require.NoError(t, err)

	// stranger has no overlap, partial has zero cosine, only twin remains
	require.Len(t, neighbors, 1)
	assert.Equal(t, "twin", neighbors[0].UserID)
	assert.InDelta(t, 1.0, neighbors[0].Similarity, 1e-9)
}

func TestCollaborative_SimilarUsers_TopK(t *testing.T) {
	store := &stubStore{
		users: []domain.User{{ID: "target"}, {ID: "u1"}, {ID: "u2"}, {ID: "u3"}},
		interactions: map[string][]domain.Interaction{
			"target": {like("target", "item1")},
			"u1":     {like("u1", "item1")},
			"u2":     {like("u2", "item1")},
			"u3":     {like("u3", "item1")},
		},
	}

	collab := NewCollaborative(store, store, 2)
	neighbors, err := collab.SimilarUsers(context.Background(), domain.User{ID: "target"})
	require.NoError(t, err)
	require.Len(t, neighbors, 2)

	// ties keep input iteration order
	assert.Equal(t, "u1", neighbors[0].UserID)
	assert.Equal(t, "u2", neighbors[1].UserID)
}

func TestCollaborative_Recommend(t *testing.T) {
	items := []domain.Item{
		{ID: "item1", Kind: domain.KindPlace, Location: "Lisbon"},
		{ID: "item2", Kind: domain.KindPlace, Location: "Lisbon"},
		{ID: "item3", Kind: domain.KindPlace, Location: "Lisbon"},
	}

	store := &stubStore{
		places: items,
		users:  []domain.User{{ID: "target"}, {ID: "twin"}},
		interactions: map[string][]domain.Interaction{
			"target": {like("target", "item1"), like("target", "item2")},
			"twin":   {like("twin", "item1"), like("twin", "item2"), like("twin", "item3")},
		},
	}

	collab := NewCollaborative(store, store, 10)
	scores, err := collab.Recommend(context.Background(), domain.User{ID: "target"}, items, 10)
	require.NoError(t, err)

	// item3 is the only unseen positively-rated item among neighbors
	require.Len(t, scores, 1)
	assert.InDelta(t, 1.0, scores["item3"], 1e-9) // normalized by max
}

func TestCollaborative_Recommend_ColdStart(t *testing.T) {
	items := []domain.Item{{ID: "item1", Kind: domain.KindPlace, Location: "Lisbon"}}

	t.Run("no other users", func(t *testing.T) {
		store := &stubStore{
			places:       items,
			users:        []domain.User{{ID: "target"}},
			interactions: map[string][]domain.Interaction{},
		}
		collab := NewCollaborative(store, store, 10)
		scores, err := collab.Recommend(context.Background(), domain.User{ID: "target"}, items, 10)
		require.NoError(t, err)
		assert.Empty(t, scores)
	})

	t.Run("neighbors only disliked unseen items", func(t *testing.T) {
		store := &stubStore{
			places: items,
			users:  []domain.User{{ID: "target"}, {ID: "twin"}},
			interactions: map[string][]domain.Interaction{
				"target": {like("target", "shared")},
				"twin":   {like("twin", "shared"), dislike("twin", "item1")},
			},
		}
		collab := NewCollaborative(store, store, 10)
		scores, err := collab.Recommend(context.Background(), domain.User{ID: "target"}, items, 10)
		require.NoError(t, err)
		assert.Empty(t, scores) // no positive signal propagates
	})
}

func TestCollaborative_Recommend_RestrictsToCandidates(t *testing.T) {
	candidates := []domain.Item{{ID: "inside", Kind: domain.KindPlace}}
	store := &stubStore{
		places: candidates,
		users:  []domain.User{{ID: "target"}, {ID: "twin"}},
		interactions: map[string][]domain.Interaction{
			"target": {like("target", "shared")},
			"twin":   {like("twin", "shared"), like("twin", "inside"), like("twin", "outside")},
		},
	}

	collab := NewCollaborative(store, store, 10)
	scores, err := collab.Recommend(context.Background(), domain.User{ID: "target"}, candidates, 10)
	require.NoError(t, err)

	assert.Contains(t, scores, "inside")
	assert.NotContains(t, scores, "outside")
}
