package recommender

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/umputun/tripscope/pkg/domain"
)

func TestAgeMultiplier_RuleTable(t *testing.T) {
	tests := []struct {
		name string
		age  int
		item domain.Item
		want float64
	}{
		{
			name: "high energy young adult",
			age:  20,
			item: domain.Item{Category: "Bar", Features: domain.Features{EnergyLevel: "high", AgeProfile: "nightlife"}},
			want: 1.3,
		},
		{
			name: "high energy middle aged",
			age:  40,
			item: domain.Item{Features: domain.Features{EnergyLevel: "high"}},
			want: 1.0,
		},
		{
			name: "high energy senior",
			age:  60,
			item: domain.Item{Features: domain.Features{EnergyLevel: "high", AgeProfile: "nightlife"}},
			want: 0.6,
		},
		{
			name: "club category matches first rule regardless of case",
			age:  25,
			item: domain.Item{Category: "Night Club", Features: domain.Features{EnergyLevel: "low"}},
			want: 1.3, // club category puts it under the first rule even at low energy
		},
		{
			name: "low energy mature",
			age:  35,
			item: domain.Item{Features: domain.Features{EnergyLevel: "low"}},
			want: 1.1,
		},
		{
			name: "museum young",
			age:  22,
			item: domain.Item{Category: "Museum", Features: domain.Features{EnergyLevel: "medium"}},
			want: 1.0,
		},
		{
			name: "family range",
			age:  35,
			item: domain.Item{Category: "Park", Features: domain.Features{EnergyLevel: "", AgeProfile: "family-friendly"}},
			want: 1.2,
		},
		{
			name: "family too young",
			age:  20,
			item: domain.Item{Features: domain.Features{EnergyLevel: "", AgeProfile: "family-friendly"}},
			want: 0.9,
		},
		{
			name: "family grandparent",
			age:  55,
			item: domain.Item{Features: domain.Features{EnergyLevel: "", AgeProfile: "family-friendly"}},
			want: 1.1,
		},
		{
			name: "educational older",
			age:  45,
			item: domain.Item{Category: "Educational Center", Features: domain.Features{EnergyLevel: ""}},
			want: 1.15,
		},
		{
			name: "educational younger",
			age:  30,
			item: domain.Item{Features: domain.Features{EnergyLevel: "", AgeProfile: "educational"}},
			want: 1.0,
		},
		{
			name: "medium energy middle aged",
			age:  30,
			item: domain.Item{Features: domain.Features{EnergyLevel: "medium"}},
			want: 1.1,
		},
		{
			name: "medium energy young",
			age:  20,
			item: domain.Item{Features: domain.Features{EnergyLevel: "medium"}},
			want: 1.0,
		},
		{
			name: "missing energy defaults to medium",
			age:  30,
			item: domain.Item{Category: "Restaurant"},
			want: 1.1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, AgeMultiplier(tt.age, tt.item), 1e-9)
		})
	}
}

func TestAgeMultiplier_Precedence(t *testing.T) {
	item := domain.Item{Features: domain.Features{EnergyLevel: "medium", AgeProfile: "family-friendly"}}
	// family rule is checked before the medium-energy rule
	assert.InDelta(t, 1.2, AgeMultiplier(30, item), 1e-9)

	// nightlife profile beats family profile
	item = domain.Item{Features: domain.Features{EnergyLevel: "medium", AgeProfile: "nightlife family"}}
	assert.InDelta(t, 1.3, AgeMultiplier(30, item), 1e-9)
}

func TestAgeMultiplier_Bounds(t *testing.T) {
	items := []domain.Item{
		{},
		{Category: "Club", Features: domain.Features{EnergyLevel: "high", AgeProfile: "nightlife"}},
		{Category: "Museum", Features: domain.Features{EnergyLevel: "low", AgeProfile: "cultural"}},
		{Features: domain.Features{AgeProfile: "family-friendly", EnergyLevel: ""}},
		{Category: "Educational", Features: domain.Features{EnergyLevel: ""}},
		{Features: domain.Features{EnergyLevel: "medium"}},
	}

	for i, item := range items {
		t.Run(fmt.Sprintf("item_%d", i), func(t *testing.T) {
			for age := 1; age <= 120; age++ {
				m := AgeMultiplier(age, item)
				assert.GreaterOrEqual(t, m, 0.5, "age %d", age)
				assert.LessOrEqual(t, m, 1.5, "age %d", age)
			}
		})
	}
}
