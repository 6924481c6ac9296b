package recommender

import (
	"context"
	"fmt"
	"strings"

	"github.com/umputun/tripscope/pkg/domain"
)

// stubStore is an in-memory CatalogStore + UserStore + InteractionStore
type stubStore struct {
	places       []domain.Item
	activities   []domain.Item
	users        []domain.User
	interactions map[string][]domain.Interaction
}

func (s *stubStore) GetPlacesByDestination(_ context.Context, destination string) ([]domain.Item, error) {
	res := []domain.Item{}
	for _, p := range s.places {
		if strings.EqualFold(p.Location, destination) {
			res = append(res, p)
		}
	}
	return res, nil
}

func (s *stubStore) GetActivitiesByDestination(_ context.Context, destination string) ([]domain.Item, error) {
	placeIDs := map[string]bool{}
	for _, p := range s.places {
		if strings.EqualFold(p.Location, destination) {
			placeIDs[p.ID] = true
		}
	}
	res := []domain.Item{}
	for _, a := range s.activities {
		if placeIDs[a.PlaceID] {
			res = append(res, a)
		}
	}
	return res, nil
}

func (s *stubStore) GetItemByID(_ context.Context, id string) (*domain.Item, error) {
	for i := range s.places {
		if s.places[i].ID == id {
			return &s.places[i], nil
		}
	}
	for i := range s.activities {
		if s.activities[i].ID == id {
			return &s.activities[i], nil
		}
	}
	return nil, fmt.Errorf("item %s not found", id)
}

func (s *stubStore) GetAllUsers(_ context.Context) ([]domain.User, error) {
	return s.users, nil
}

func (s *stubStore) GetUserInteractions(_ context.Context, userID string) ([]domain.Interaction, error) {
	return s.interactions[userID], nil
}

// stubSemantic records upserts and returns canned query scores
type stubSemantic struct {
	upserted []domain.Item
	scores   domain.ScoreMap
}

func (s *stubSemantic) Upsert(_ context.Context, items []domain.Item) {
	s.upserted = append(s.upserted, items...)
}

func (s *stubSemantic) Query(_ context.Context, _ []domain.Interaction, _ []domain.Item, _ string, _ int) domain.ScoreMap {
	if s.scores == nil {
		return domain.ScoreMap{}
	}
	return s.scores
}

func like(userID, itemID string) domain.Interaction {
	return domain.Interaction{UserID: userID, ItemID: itemID, ItemType: domain.KindPlace, Rating: 1}
}

func dislike(userID, itemID string) domain.Interaction {
	return domain.Interaction{UserID: userID, ItemID: itemID, ItemType: domain.KindPlace, Rating: -1}
}
