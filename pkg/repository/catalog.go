package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-pkgz/repeater/v2"
	"github.com/jmoiron/sqlx"

	"github.com/umputun/tripscope/pkg/domain"
)

// CatalogRepository handles places and activities
type CatalogRepository struct {
	db *sqlx.DB
}

// placeSQL represents a place row, features stored as JSON
type placeSQL struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	Location    string    `db:"location"`
	Category    string    `db:"category"`
	Description string    `db:"description"`
	Features    string    `db:"features"`
	CreatedAt   time.Time `db:"created_at"`
}

// activitySQL represents an activity row
type activitySQL struct {
	ID          string    `db:"id"`
	Name        string    `db:"name"`
	PlaceID     string    `db:"place_id"`
	Category    string    `db:"category"`
	Description string    `db:"description"`
	Features    string    `db:"features"`
	CreatedAt   time.Time `db:"created_at"`
}

// NewCatalogRepository creates a new catalog repository
func NewCatalogRepository(database *sqlx.DB) *CatalogRepository {
	return &CatalogRepository{db: database}
}

// GetPlacesByDestination retrieves all places in a destination,
// matched case-insensitively on location
func (r *CatalogRepository) GetPlacesByDestination(ctx context.Context, destination string) ([]domain.Item, error) {
	var rows []placeSQL
	query := "SELECT * FROM places WHERE location = ? COLLATE NOCASE ORDER BY created_at, id"
	if err := r.db.SelectContext(ctx, &rows, query, destination); err != nil {
		return nil, fmt.Errorf("get places by destination: %w", err)
	}

	items := make([]domain.Item, 0, len(rows))
	for i := range rows {
		item, err := toDomainPlace(&rows[i])
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, nil
}

// GetActivitiesByDestination retrieves activities belonging to places in a destination
func (r *CatalogRepository) GetActivitiesByDestination(ctx context.Context, destination string) ([]domain.Item, error) {
	var rows []activitySQL
	query := `
		SELECT a.* FROM activities a
		JOIN places p ON p.id = a.place_id
		WHERE p.location = ? COLLATE NOCASE
		ORDER BY a.created_at, a.id
	`
	if err := r.db.SelectContext(ctx, &rows, query, destination); err != nil {
		return nil, fmt.Errorf("get activities by destination: %w", err)
	}

	items := make([]domain.Item, 0, len(rows))
	for i := range rows {
		item, err := toDomainActivity(&rows[i])
		if err != nil {
			return nil, err
		}
		items = append(items, *item)
	}
	return items, nil
}

// GetItemByID retrieves a place or activity by id, places checked first.
// Returns ErrNotFound when neither table has the id.
func (r *CatalogRepository) GetItemByID(ctx context.Context, id string) (*domain.Item, error) {
	var place placeSQL
	err := r.db.GetContext(ctx, &place, "SELECT * FROM places WHERE id = ?", id)
	if err == nil {
		return toDomainPlace(&place)
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get place by id: %w", err)
	}

	var activity activitySQL
	err = r.db.GetContext(ctx, &activity, "SELECT * FROM activities WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("item %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get activity by id: %w", err)
	}
	return toDomainActivity(&activity)
}

// SavePlaces inserts places, existing ids are replaced
func (r *CatalogRepository) SavePlaces(ctx context.Context, places []domain.Item) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		for i := range places {
			features, err := json.Marshal(places[i].Features)
			if err != nil {
				return &criticalError{err: fmt.Errorf("marshal features: %w", err)}
			}
			query := `
				INSERT OR REPLACE INTO places (id, name, location, category, description, features)
				VALUES (?, ?, ?, ?, ?, ?)
			`
			_, err = r.db.ExecContext(ctx, query, places[i].ID, places[i].Name, places[i].Location,
				places[i].Category, places[i].Description, string(features))
			if err != nil {
				if isLockError(err) {
					return err // retry
				}
				return &criticalError{err: fmt.Errorf("save place %s: %w", places[i].ID, err)}
			}
		}
		return nil
	})
}

// SaveActivities inserts activities, existing ids are replaced
func (r *CatalogRepository) SaveActivities(ctx context.Context, activities []domain.Item) error {
	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		for i := range activities {
			features, err := json.Marshal(activities[i].Features)
			if err != nil {
				return &criticalError{err: fmt.Errorf("marshal features: %w", err)}
			}
			query := `
				INSERT OR REPLACE INTO activities (id, name, place_id, category, description, features)
				VALUES (?, ?, ?, ?, ?, ?)
			`
			_, err = r.db.ExecContext(ctx, query, activities[i].ID, activities[i].Name, activities[i].PlaceID,
				activities[i].Category, activities[i].Description, string(features))
			if err != nil {
				if isLockError(err) {
					return err // retry
				}
				return &criticalError{err: fmt.Errorf("save activity %s: %w", activities[i].ID, err)}
			}
		}
		return nil
	})
}

func toDomainPlace(p *placeSQL) (*domain.Item, error) {
	item := &domain.Item{
		ID:          p.ID,
		Kind:        domain.KindPlace,
		Name:        p.Name,
		Category:    p.Category,
		Description: p.Description,
		Location:    p.Location,
	}
	if err := json.Unmarshal([]byte(p.Features), &item.Features); err != nil {
		return nil, fmt.Errorf("unmarshal features for place %s: %w", p.ID, err)
	}
	return item, nil
}

func toDomainActivity(a *activitySQL) (*domain.Item, error) {
	item := &domain.Item{
		ID:          a.ID,
		Kind:        domain.KindActivity,
		Name:        a.Name,
		Category:    a.Category,
		Description: a.Description,
		PlaceID:     a.PlaceID,
	}
	if err := json.Unmarshal([]byte(a.Features), &item.Features); err != nil {
		return nil, fmt.Errorf("unmarshal features for activity %s: %w", a.ID, err)
	}
	return item, nil
}
