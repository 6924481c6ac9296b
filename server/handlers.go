package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/tripscope/pkg/domain"
	"github.com/umputun/tripscope/pkg/recommender"
	"github.com/umputun/tripscope/pkg/repository"
)

// defaultTopN is used when the request omits topN
const defaultTopN = 20

// userPayload is the user shape accepted by recommendation endpoints
type userPayload struct {
	UserID        string   `json:"userId"`
	Age           int      `json:"age"`
	LikedItems    []string `json:"likedItems"`
	DislikedItems []string `json:"dislikedItems"`
	TravelHistory []string `json:"travelHistory"`
}

// itemResponse is a ranked item on the wire. Location is set for places,
// PlaceID for activities.
type itemResponse struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	Description string          `json:"description"`
	Features    domain.Features `json:"features"`
	Score       float64         `json:"score"`
	Type        domain.ItemKind `json:"type"`
	Location    string          `json:"location,omitempty"`
	PlaceID     string          `json:"placeId,omitempty"`
}

func toItemResponse(scored domain.ScoredItem) itemResponse {
	resp := itemResponse{
		ID:          scored.Item.ID,
		Name:        scored.Item.Name,
		Category:    scored.Item.Category,
		Description: scored.Item.Description,
		Features:    scored.Item.Features,
		Score:       scored.Score,
		Type:        scored.Item.Kind,
	}
	if scored.Item.Kind == domain.KindActivity {
		resp.PlaceID = scored.Item.PlaceID
	} else {
		resp.Location = scored.Item.Location
	}
	return resp
}

func toItemResponses(scored []domain.ScoredItem) []itemResponse {
	result := make([]itemResponse, 0, len(scored))
	for _, s := range scored {
		result = append(result, toItemResponse(s))
	}
	return result
}

// recommendationsHandler returns the hybrid ranking for a user at a
// destination, creating the user and the destination catalog on demand
func (s *Server) recommendationsHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		User        userPayload `json:"user"`
		Destination string      `json:"destination"`
		TopN        int         `json:"topN"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RenderError(w, r, fmt.Errorf("invalid request: %w", err), http.StatusBadRequest)
		return
	}
	if req.TopN == 0 {
		req.TopN = defaultTopN
	}

	user, err := s.resolveUser(r.Context(), req.User, req.Destination)
	if err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}

	if err := s.ensureCatalog(r.Context(), req.Destination); err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}

	recs, err := s.recommender.GetRecommendations(r.Context(), *user, req.Destination, req.TopN)
	if err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}

	RenderJSON(w, r, http.StatusOK, map[string]interface{}{"recommendations": toItemResponses(recs)})
}

// swipeHandler records a like or dislike, resolving the item kind from the
// destination catalog
func (s *Server) swipeHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      string `json:"userId"`
		ItemID      string `json:"itemId"`
		Action      string `json:"action"`
		Destination string `json:"destination"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RenderError(w, r, fmt.Errorf("invalid request: %w", err), http.StatusBadRequest)
		return
	}

	if _, err := s.resolveUser(r.Context(), userPayload{UserID: req.UserID}, req.Destination); err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}

	rating := -1
	if req.Action == "like" {
		rating = 1
	}

	places, err := s.store.GetPlacesByDestination(r.Context(), req.Destination)
	if err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}

	itemType := domain.KindActivity
	for i := range places {
		if places[i].ID == req.ItemID {
			itemType = domain.KindPlace
			break
		}
	}

	interaction := &domain.Interaction{
		UserID:    req.UserID,
		ItemID:    req.ItemID,
		ItemType:  itemType,
		Rating:    rating,
		Timestamp: time.Now(),
	}
	if err := s.store.AddInteraction(r.Context(), interaction); err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}

	RenderJSON(w, r, http.StatusOK, map[string]bool{"success": true})
}

// confidenceHandler reports like/dislike counts for a user at a destination
func (s *Server) confidenceHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      string `json:"userId"`
		Destination string `json:"destination"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RenderError(w, r, fmt.Errorf("invalid request: %w", err), http.StatusBadRequest)
		return
	}

	conf, err := s.recommender.ConfidenceCheck(r.Context(), req.UserID, req.Destination)
	if err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}

	RenderJSON(w, r, http.StatusOK, conf)
}

// highConfidenceHandler returns the user's liked items plus unseen
// recommendations above the high-confidence cut
func (s *Server) highConfidenceHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      string `json:"userId"`
		Destination string `json:"destination"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RenderError(w, r, fmt.Errorf("invalid request: %w", err), http.StatusBadRequest)
		return
	}

	user, err := s.store.GetUser(r.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			RenderJSON(w, r, http.StatusOK, map[string]interface{}{"items": []itemResponse{}})
			return
		}
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}

	items, err := s.recommender.HighConfidenceItems(r.Context(), *user, req.Destination)
	if err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}

	RenderJSON(w, r, http.StatusOK, map[string]interface{}{"items": toItemResponses(items)})
}

// multiUserRecommendationsHandler ranks for the requesting user with boosts
// for items other trip participants liked
func (s *Server) multiUserRecommendationsHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID                 string        `json:"userId"`
		ParticipantPreferences []userPayload `json:"participantPreferences"`
		Destination            string        `json:"destination"`
		TopN                   int           `json:"topN"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RenderError(w, r, fmt.Errorf("invalid request: %w", err), http.StatusBadRequest)
		return
	}
	if req.TopN == 0 {
		req.TopN = defaultTopN
	}

	user, err := s.resolveUser(r.Context(), userPayload{UserID: req.UserID}, req.Destination)
	if err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}

	participants := make([]recommender.Participant, 0, len(req.ParticipantPreferences))
	for _, p := range req.ParticipantPreferences {
		participants = append(participants, recommender.Participant{ID: p.UserID, LikedItems: p.LikedItems})
	}

	recs, err := s.recommender.MultiUserRecommendations(r.Context(), *user, participants, req.Destination, req.TopN)
	if err != nil {
		RenderError(w, r, err, http.StatusInternalServerError)
		return
	}

	RenderJSON(w, r, http.StatusOK, map[string]interface{}{"recommendations": toItemResponses(recs)})
}

// participantConfidence is the per-participant entry of the multi-user
// confidence response
type participantConfidence struct {
	UserID         string  `json:"userId"`
	Likes          int     `json:"likes"`
	Dislikes       int     `json:"dislikes"`
	Total          int     `json:"total"`
	Ratio          float64 `json:"confidenceRatio"`
	MeetsThreshold bool    `json:"meetsThreshold"`
}

// multiUserConfidenceHandler checks confidence for every trip participant,
// allReady only when each one meets the threshold
func (s *Server) multiUserConfidenceHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ParticipantIDs []string `json:"participantIds"`
		Destination    string   `json:"destination"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		RenderError(w, r, fmt.Errorf("invalid request: %w", err), http.StatusBadRequest)
		return
	}

	allReady := len(req.ParticipantIDs) > 0
	results := make([]participantConfidence, 0, len(req.ParticipantIDs))
	for _, id := range req.ParticipantIDs {
		conf, err := s.recommender.ConfidenceCheck(r.Context(), id, req.Destination)
		if err != nil {
			RenderError(w, r, err, http.StatusInternalServerError)
			return
		}

		results = append(results, participantConfidence{
			UserID:         id,
			Likes:          conf.Likes,
			Dislikes:       conf.Dislikes,
			Total:          conf.Total,
			Ratio:          conf.Ratio,
			MeetsThreshold: conf.MeetsThreshold,
		})
		if !conf.MeetsThreshold {
			allReady = false
		}
	}

	RenderJSON(w, r, http.StatusOK, map[string]interface{}{"allReady": allReady, "participants": results})
}

// resolveUser loads the user or creates one with sane defaults, recording the
// requested destination as the start of their travel history
func (s *Server) resolveUser(ctx context.Context, payload userPayload, destination string) (*domain.User, error) {
	user, err := s.store.GetUser(ctx, payload.UserID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("get user %s: %w", payload.UserID, err)
	}

	age := payload.Age
	if age == 0 {
		age = 25
	}
	history := payload.TravelHistory
	if len(history) == 0 {
		history = []string{destination}
	}

	user = &domain.User{
		ID:            payload.UserID,
		Age:           age,
		Preferences:   payload.LikedItems,
		TravelHistory: history,
	}
	if err := s.store.SaveUser(ctx, user); err != nil {
		return nil, fmt.Errorf("save user %s: %w", payload.UserID, err)
	}
	lgr.Printf("[INFO] created user %s, age %d", user.ID, user.Age)
	return user, nil
}

// ensureCatalog generates and stores a starter catalog when the destination
// is missing places or activities
func (s *Server) ensureCatalog(ctx context.Context, destination string) error {
	places, err := s.store.GetPlacesByDestination(ctx, destination)
	if err != nil {
		return fmt.Errorf("get places for %s: %w", destination, err)
	}
	activities, err := s.store.GetActivitiesByDestination(ctx, destination)
	if err != nil {
		return fmt.Errorf("get activities for %s: %w", destination, err)
	}
	if len(places) > 0 && len(activities) > 0 {
		return nil
	}

	genPlaces, genActivities, err := s.generator.Generate(ctx, destination)
	if err != nil {
		return fmt.Errorf("generate catalog for %s: %w", destination, err)
	}
	if err := s.store.SavePlaces(ctx, genPlaces); err != nil {
		return fmt.Errorf("save generated places for %s: %w", destination, err)
	}
	if err := s.store.SaveActivities(ctx, genActivities); err != nil {
		return fmt.Errorf("save generated activities for %s: %w", destination, err)
	}
	lgr.Printf("[INFO] generated %d places and %d activities for %s", len(genPlaces), len(genActivities), destination)
	return nil
}
