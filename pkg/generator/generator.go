// Package generator produces a starter catalog for destinations that have no
// places yet, using an OpenAI-compatible chat API with an on-disk cache and a
// template fallback when no API key is configured or the call fails.
package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-pkgz/lgr"
	"github.com/google/uuid"
	"github.com/sashabaranov/go-openai"

	"github.com/umputun/tripscope/pkg/config"
	"github.com/umputun/tripscope/pkg/domain"
)

// cacheTTL is how long a generated catalog stays valid on disk
const cacheTTL = 7 * 24 * time.Hour

// Generator creates catalog items for a destination
type Generator struct {
	client  *openai.Client
	config  config.GeneratorConfig
	enabled bool
}

// generatedItem is the JSON shape the model is asked to return
type generatedItem struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Category    string   `json:"category"`
	Tags        []string `json:"tags"`
	EnergyLevel string   `json:"energy_level"`
	AgeProfile  string   `json:"age_suitability_profile"`
	Budget      string   `json:"budget"`
}

// New creates a catalog generator. Without an API key generation falls back
// to built-in templates.
func New(cfg config.GeneratorConfig) *Generator {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}
	if cfg.Timeout > 0 {
		clientConfig.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return &Generator{
		client:  openai.NewClientWithConfig(clientConfig),
		config:  cfg,
		enabled: cfg.APIKey != "",
	}
}

// Generate returns catalog places for a destination with a paired activity
// per place, from cache when fresh, otherwise from the LLM with a template
// fallback. Never returns an empty result without an error.
func (g *Generator) Generate(ctx context.Context, destination string) (places, activities []domain.Item, err error) {
	if cached, ok := g.loadCache(destination); ok {
		lgr.Printf("[DEBUG] catalog cache hit for %s, %d places", destination, len(cached.Places))
		return cached.Places, cached.Activities, nil
	}

	var generated []generatedItem
	if g.enabled {
		var genErr error
		generated, genErr = g.generateWithLLM(ctx, destination)
		if genErr != nil {
			lgr.Printf("[WARN] llm catalog generation failed for %s: %v", destination, genErr)
		}
	}
	if len(generated) == 0 {
		generated = fallbackCatalog(destination, g.config.MaxActivities)
	}

	places = make([]domain.Item, 0, len(generated))
	activities = make([]domain.Item, 0, len(generated))
	for _, gi := range generated {
		features := domain.Features{
			EnergyLevel: gi.EnergyLevel,
			Tags:        gi.Tags,
			AgeProfile:  gi.AgeProfile,
			PriceRange:  gi.Budget,
		}

		place := domain.Item{
			ID:          uuid.New().String(),
			Kind:        domain.KindPlace,
			Name:        gi.Name,
			Category:    gi.Category,
			Description: gi.Description,
			Location:    destination,
			Features:    features,
		}
		places = append(places, place)

		// each place gets a matching bookable activity
		activities = append(activities, domain.Item{
			ID:          uuid.New().String(),
			Kind:        domain.KindActivity,
			Name:        gi.Name,
			Category:    gi.Category,
			Description: gi.Description,
			PlaceID:     place.ID,
			Features:    features,
		})
	}

	g.saveCache(destination, cachedCatalog{Places: places, Activities: activities})
	return places, activities, nil
}

// generateWithLLM asks the model for a strict JSON array of items, retrying
// up to 3 times on malformed output
func (g *Generator) generateWithLLM(ctx context.Context, destination string) ([]generatedItem, error) {
	prompt := g.buildPrompt(destination)

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		resp, err := g.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
			Model:       g.config.Model,
			Temperature: float32(g.config.Temperature),
			MaxTokens:   g.config.MaxTokens,
			Messages: []openai.ChatCompletionMessage{
				{Role: openai.ChatMessageRoleUser, Content: prompt},
			},
		})
		if err != nil {
			return nil, fmt.Errorf("llm request failed: %w", err)
		}
		if len(resp.Choices) == 0 {
			return nil, fmt.Errorf("no response from llm")
		}

		items, err := parseResponse(resp.Choices[0].Message.Content)
		if err == nil {
			return items, nil
		}
		lastErr = err
	}

	return nil, fmt.Errorf("failed after 3 attempts: %w", lastErr)
}

func (g *Generator) buildPrompt(destination string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Generate %d real, popular tourist places and attractions in %s.\n\n", g.config.MaxActivities, destination))
	sb.WriteString(`For each place, provide:
- name: actual name of the place (e.g., "Eiffel Tower", "Louvre Museum")
- description: engaging 1-2 sentence description (max 150 chars)
- category: one of: Tour, Museum, Park, Entertainment, Restaurant, Landmark, Temple, Wellness, Workshop, Recreation, Attraction
- tags: 3-5 relevant descriptive tags
- energy_level: "low", "medium", or "high" based on physical activity required
- age_suitability_profile: "cultural", "family-friendly", "nightlife", or "educational"
- budget: estimated cost in USD (e.g., "free", "$10", "$25", "$50", "$100+")

Include a mix of famous landmarks, museums and cultural sites, parks, restaurants and entertainment venues.

Return ONLY a valid JSON array, no markdown formatting.`)
	return sb.String()
}

// parseResponse extracts the JSON array from the model output, tolerating
// surrounding prose and markdown fences
func parseResponse(content string) ([]generatedItem, error) {
	start := strings.Index(content, "[")
	end := strings.LastIndex(content, "]")
	if start == -1 || end == -1 || start >= end {
		return nil, fmt.Errorf("no json array found in response")
	}

	var items []generatedItem
	if err := json.Unmarshal([]byte(content[start:end+1]), &items); err != nil {
		return nil, fmt.Errorf("failed to parse json array response: %w", err)
	}

	valid := make([]generatedItem, 0, len(items))
	for _, item := range items {
		if item.Name == "" {
			continue
		}
		if item.Category == "" {
			item.Category = "Attraction"
		}
		if item.EnergyLevel == "" {
			item.EnergyLevel = "medium"
		}
		if item.AgeProfile == "" {
			item.AgeProfile = "cultural"
		}
		valid = append(valid, item)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("no usable items in response")
	}
	return valid, nil
}

// fallbackCatalog builds a template catalog when the LLM is unavailable
func fallbackCatalog(destination string, limit int) []generatedItem {
	templates := []generatedItem{
		{Name: fmt.Sprintf("Historic %s Walking Tour", destination), Category: "Tour", Tags: []string{"walking", "history", "cultural"}, EnergyLevel: "medium", AgeProfile: "cultural", Budget: "$25"},
		{Name: fmt.Sprintf("%s City Museum", destination), Category: "Museum", Tags: []string{"indoor", "art", "history"}, EnergyLevel: "low", AgeProfile: "educational", Budget: "$15"},
		{Name: fmt.Sprintf("Central %s Park", destination), Category: "Park", Tags: []string{"outdoor", "relaxing", "nature"}, EnergyLevel: "low", AgeProfile: "family-friendly", Budget: "free"},
		{Name: fmt.Sprintf("%s Main Cathedral", destination), Category: "Temple", Tags: []string{"architecture", "spiritual", "historic"}, EnergyLevel: "low", AgeProfile: "cultural", Budget: "free"},
		{Name: fmt.Sprintf("Local %s Market", destination), Category: "Attraction", Tags: []string{"shopping", "food", "local"}, EnergyLevel: "medium", AgeProfile: "cultural", Budget: "$20"},
		{Name: fmt.Sprintf("Traditional %s Restaurant", destination), Category: "Restaurant", Tags: []string{"dining", "authentic", "food"}, EnergyLevel: "low", AgeProfile: "cultural", Budget: "$40"},
		{Name: fmt.Sprintf("%s Art Gallery", destination), Category: "Museum", Tags: []string{"art", "indoor", "cultural"}, EnergyLevel: "low", AgeProfile: "educational", Budget: "$12"},
		{Name: fmt.Sprintf("%s Riverfront Cruise", destination), Category: "Tour", Tags: []string{"scenic", "relaxing", "water"}, EnergyLevel: "low", AgeProfile: "family-friendly", Budget: "$35"},
		{Name: fmt.Sprintf("%s Night Entertainment", destination), Category: "Entertainment", Tags: []string{"nightlife", "music", "social"}, EnergyLevel: "high", AgeProfile: "nightlife", Budget: "$50"},
		{Name: fmt.Sprintf("%s Viewpoint Tower", destination), Category: "Landmark", Tags: []string{"scenic", "views", "iconic"}, EnergyLevel: "medium", AgeProfile: "cultural", Budget: "$18"},
	}

	if limit > 0 && limit < len(templates) {
		templates = templates[:limit]
	}
	for i := range templates {
		templates[i].Description = fmt.Sprintf("Popular %s attraction in %s", strings.ToLower(templates[i].Category), destination)
	}
	return templates
}

// cachePath maps a destination to its cache file
func (g *Generator) cachePath(destination string) string {
	safe := strings.ToLower(destination)
	safe = strings.ReplaceAll(safe, " ", "_")
	safe = strings.ReplaceAll(safe, "/", "_")
	return filepath.Join(g.config.CacheDir, safe+".json")
}

// cachedCatalog is the on-disk cache format
type cachedCatalog struct {
	Places     []domain.Item `json:"places"`
	Activities []domain.Item `json:"activities"`
}

// loadCache returns the cached catalog when the cache file exists and is fresh
func (g *Generator) loadCache(destination string) (cachedCatalog, bool) {
	path := g.cachePath(destination)
	info, err := os.Stat(path)
	if err != nil {
		return cachedCatalog{}, false
	}
	if time.Since(info.ModTime()) > cacheTTL {
		return cachedCatalog{}, false
	}

	data, err := os.ReadFile(path) //nolint:gosec // path built from sanitized destination
	if err != nil {
		lgr.Printf("[WARN] failed to read catalog cache %s: %v", path, err)
		return cachedCatalog{}, false
	}

	var cached cachedCatalog
	if err := json.Unmarshal(data, &cached); err != nil {
		lgr.Printf("[WARN] corrupt catalog cache %s: %v", path, err)
		return cachedCatalog{}, false
	}
	if len(cached.Places) == 0 {
		return cachedCatalog{}, false
	}
	return cached, true
}

// saveCache writes the generated catalog to disk, failures are logged only
func (g *Generator) saveCache(destination string, catalog cachedCatalog) {
	if err := os.MkdirAll(g.config.CacheDir, 0o750); err != nil {
		lgr.Printf("[WARN] failed to create cache dir %s: %v", g.config.CacheDir, err)
		return
	}

	data, err := json.MarshalIndent(catalog, "", "  ")
	if err != nil {
		lgr.Printf("[WARN] failed to marshal catalog for %s: %v", destination, err)
		return
	}
	if err := os.WriteFile(g.cachePath(destination), data, 0o600); err != nil {
		lgr.Printf("[WARN] failed to write catalog cache for %s: %v", destination, err)
	}
}
