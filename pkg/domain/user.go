package domain

import "time"

// User represents a traveler requesting recommendations
type User struct {
	ID            string   `json:"id"`
	Age           int      `json:"age"`
	Preferences   []string `json:"preferences"`    // liked item ids, informational only
	TravelHistory []string `json:"travel_history"` // destinations visited
}

// Interaction is a single like/dislike of an item by a user.
// Rating is +1 or -1, there is no neutral rating. Repeated interactions
// for the same (user, item) pair are kept as-is; callers decide whether
// to collapse them before scoring.
type Interaction struct {
	UserID    string    `json:"user_id"`
	ItemID    string    `json:"item_id"`
	ItemType  ItemKind  `json:"item_type"`
	Rating    int       `json:"rating"`
	Timestamp time.Time `json:"timestamp"`
}

// Liked reports whether the interaction is a positive signal
func (i *Interaction) Liked() bool { return i.Rating > 0 }
