package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/umputun/tripscope/pkg/domain"
)

// InteractionRepository handles like/dislike history
type InteractionRepository struct {
	db *sqlx.DB
}

// interactionSQL represents an interaction row
type interactionSQL struct {
	ID        int64     `db:"id"`
	UserID    string    `db:"user_id"`
	ItemID    string    `db:"item_id"`
	ItemType  string    `db:"item_type"`
	Rating    int       `db:"rating"`
	CreatedAt time.Time `db:"created_at"`
}

// NewInteractionRepository creates a new interaction repository
func NewInteractionRepository(database *sqlx.DB) *InteractionRepository {
	return &InteractionRepository{db: database}
}

// AddInteraction records a like or dislike. Repeated interactions for the
// same (user, item) pair are kept, not collapsed.
func (r *InteractionRepository) AddInteraction(ctx context.Context, inter *domain.Interaction) error {
	if inter.Rating != 1 && inter.Rating != -1 {
		return fmt.Errorf("invalid rating %d, must be 1 or -1", inter.Rating)
	}

	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		query := `
			INSERT INTO interactions (user_id, item_id, item_type, rating)
			VALUES (?, ?, ?, ?)
		`
		_, err := r.db.ExecContext(ctx, query, inter.UserID, inter.ItemID, string(inter.ItemType), inter.Rating)
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("add interaction: %w", err)}
		}
		return nil
	})
}

// GetUserInteractions retrieves all interactions for a user in insertion order
func (r *InteractionRepository) GetUserInteractions(ctx context.Context, userID string) ([]domain.Interaction, error) {
	var rows []interactionSQL
	query := "SELECT * FROM interactions WHERE user_id = ? ORDER BY id"
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("get user interactions: %w", err)
	}

	interactions := make([]domain.Interaction, 0, len(rows))
	for _, row := range rows {
		interactions = append(interactions, domain.Interaction{
			UserID:    row.UserID,
			ItemID:    row.ItemID,
			ItemType:  domain.ItemKind(row.ItemType),
			Rating:    row.Rating,
			Timestamp: row.CreatedAt,
		})
	}
	return interactions, nil
}
