package generator

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/tripscope/pkg/config"
	"github.com/umputun/tripscope/pkg/domain"
)

func TestGenerator_GenerateWithLLM(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{
					Message: openai.ChatCompletionMessage{
						Content: "Here is the catalog:\n\n" + `[
  {"name": "Belem Tower", "description": "Iconic riverside fortress", "category": "Landmark",
   "tags": ["iconic", "history"], "energy_level": "low", "age_suitability_profile": "cultural", "budget": "$10"},
  {"name": "LX Factory", "description": "Creative hub with shops and restaurants", "category": "Entertainment",
   "tags": ["shopping", "food"], "energy_level": "medium", "age_suitability_profile": "family-friendly", "budget": "$20"}
]`,
					},
				},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	gen := New(config.GeneratorConfig{
		Endpoint:      server.URL + "/v1",
		APIKey:        "test-key",
		Model:         "gpt-4o-mini",
		MaxActivities: 10,
		CacheDir:      t.TempDir(),
	})

	places, activities, err := gen.Generate(context.Background(), "Lisbon")
	require.NoError(t, err)
	require.Len(t, places, 2)
	require.Len(t, activities, 2)

	assert.Equal(t, "Belem Tower", places[0].Name)
	assert.Equal(t, "Landmark", places[0].Category)
	assert.Equal(t, "Lisbon", places[0].Location)
	assert.Equal(t, domain.KindPlace, places[0].Kind)
	assert.Equal(t, "low", places[0].Features.EnergyLevel)
	assert.Equal(t, "cultural", places[0].Features.AgeProfile)
	assert.Equal(t, "$10", places[0].Features.PriceRange)
	assert.NotEmpty(t, places[0].ID)
	assert.NotEqual(t, places[0].ID, places[1].ID)

	// every place gets a paired activity pointing back to it
	for i := range places {
		assert.Equal(t, domain.KindActivity, activities[i].Kind)
		assert.Equal(t, places[i].ID, activities[i].PlaceID)
		assert.Equal(t, places[i].Name, activities[i].Name)
		assert.Equal(t, places[i].Features, activities[i].Features)
		assert.Empty(t, activities[i].Location)
		assert.NotEqual(t, places[i].ID, activities[i].ID)
	}
}

func TestGenerator_CacheRoundTrip(t *testing.T) {
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		resp := openai.ChatCompletionResponse{
			Choices: []openai.ChatCompletionChoice{
				{Message: openai.ChatCompletionMessage{Content: `[{"name": "Castle", "category": "Landmark"}]`}},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	gen := New(config.GeneratorConfig{
		Endpoint:      server.URL + "/v1",
		APIKey:        "test-key",
		Model:         "gpt-4o-mini",
		MaxActivities: 10,
		CacheDir:      t.TempDir(),
	})

	firstPlaces, firstActivities, err := gen.Generate(context.Background(), "Porto")
	require.NoError(t, err)
	secondPlaces, secondActivities, err := gen.Generate(context.Background(), "Porto")
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "second call served from cache")
	assert.Equal(t, firstPlaces, secondPlaces)
	assert.Equal(t, firstActivities, secondActivities)
}

func TestGenerator_FallbackWithoutKey(t *testing.T) {
	gen := New(config.GeneratorConfig{MaxActivities: 5, CacheDir: t.TempDir()})

	places, activities, err := gen.Generate(context.Background(), "Madrid")
	require.NoError(t, err)
	require.Len(t, places, 5)
	require.Len(t, activities, 5)

	for i, place := range places {
		assert.Equal(t, "Madrid", place.Location)
		assert.NotEmpty(t, place.Name)
		assert.NotEmpty(t, place.Category)
		assert.NotEmpty(t, place.Features.EnergyLevel)
		assert.NotEmpty(t, place.ID)
		assert.Equal(t, place.ID, activities[i].PlaceID)
	}
	assert.Contains(t, places[0].Name, "Madrid")
}

func TestGenerator_FallbackOnServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	gen := New(config.GeneratorConfig{
		Endpoint:      server.URL + "/v1",
		APIKey:        "test-key",
		Model:         "gpt-4o-mini",
		MaxActivities: 10,
		CacheDir:      t.TempDir(),
	})

	places, activities, err := gen.Generate(context.Background(), "Rome")
	require.NoError(t, err)
	assert.Len(t, places, 10, "template fallback used when the llm fails")
	assert.Len(t, activities, 10)
}

func TestGenerator_SlowServerTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(300 * time.Millisecond)
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(openai.ChatCompletionResponse{}))
	}))
	defer server.Close()

	gen := New(config.GeneratorConfig{
		Endpoint:      server.URL + "/v1",
		APIKey:        "test-key",
		Model:         "gpt-4o-mini",
		MaxActivities: 3,
		Timeout:       50 * time.Millisecond,
		CacheDir:      t.TempDir(),
	})

	start := time.Now()
	places, activities, err := gen.Generate(context.Background(), "Oslo")
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Len(t, places, 3, "template fallback after timeout")
	assert.Len(t, activities, 3)
	assert.Less(t, elapsed, 250*time.Millisecond, "hung endpoint must not block past the configured timeout")
}

func TestParseResponse(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		expected int
		wantErr  bool
	}{
		{
			name:     "clean array",
			content:  `[{"name": "A", "category": "Park"}]`,
			expected: 1,
		},
		{
			name:     "markdown fenced",
			content:  "```json\n[{\"name\": \"A\"}]\n```",
			expected: 1,
		},
		{
			name:     "surrounding prose",
			content:  "Sure, here you go:\n[{\"name\": \"A\"}]\nHope this helps!",
			expected: 1,
		},
		{
			name:    "no array",
			content: "I cannot help with that",
			wantErr: true,
		},
		{
			name:    "invalid json",
			content: `[{"name": }]`,
			wantErr: true,
		},
		{
			name:    "nameless items dropped",
			content: `[{"category": "Park"}]`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := parseResponse(tt.content)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, items, tt.expected)
		})
	}
}

func TestParseResponse_Defaults(t *testing.T) {
	items, err := parseResponse(`[{"name": "Somewhere"}]`)
	require.NoError(t, err)
	require.Len(t, items, 1)

	assert.Equal(t, "Attraction", items[0].Category)
	assert.Equal(t, "medium", items[0].EnergyLevel)
	assert.Equal(t, "cultural", items[0].AgeProfile)
}
