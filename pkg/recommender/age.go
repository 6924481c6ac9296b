package recommender

import (
	"strings"

	"github.com/umputun/tripscope/pkg/domain"
)

// AgeMultiplier maps user age and item characteristics to a suitability
// multiplier in [0.5, 1.5]. Rules are mutually exclusive and evaluated in a
// fixed precedence: high energy/nightlife, low energy/cultural,
// family-friendly, educational, medium energy. First match wins, no match
// keeps the neutral 1.0. Stateless, no failure mode.
func AgeMultiplier(age int, item domain.Item) float64 {
	energy := energyLevel(item)
	ageProfile := strings.ToLower(item.Features.AgeProfile)
	category := strings.ToLower(item.Category)

	multiplier := 1.0

	switch {
	// high-energy: nightlife, clubs, extreme sports
	case energy == "high" || strings.Contains(ageProfile, "nightlife") || strings.Contains(category, "club"):
		switch {
		case age >= 18 && age <= 35:
			multiplier = 1.3
		case age >= 36 && age <= 50:
			multiplier = 1.0
		default:
			multiplier = 0.6
		}

	// low-energy: museums, parks, cultural sites
	case energy == "low" || strings.Contains(ageProfile, "cultural") || strings.Contains(category, "museum"):
		if age >= 30 {
			multiplier = 1.1
		}

	// family-friendly
	case strings.Contains(ageProfile, "family") || strings.Contains(category, "family-friendly"):
		switch {
		case age >= 25 && age <= 45:
			multiplier = 1.2
		case age < 25:
			multiplier = 0.9
		default:
			multiplier = 1.1
		}

	// educational
	case strings.Contains(ageProfile, "educational") || strings.Contains(category, "educational"):
		if age >= 40 {
			multiplier = 1.15
		}

	// medium energy, mildly age-dependent
	case energy == "medium":
		if age >= 25 && age <= 45 {
			multiplier = 1.1
		}
	}

	return clamp(multiplier, 0.5, 1.5)
}
