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

// UserRepository handles user-related database operations
type UserRepository struct {
	db *sqlx.DB
}

// userSQL represents a user for SQL operations, list fields stored as JSON
type userSQL struct {
	ID            string    `db:"id"`
	Age           int       `db:"age"`
	Preferences   string    `db:"preferences"`
	TravelHistory string    `db:"travel_history"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

// NewUserRepository creates a new user repository
func NewUserRepository(database *sqlx.DB) *UserRepository {
	return &UserRepository{db: database}
}

// GetUser retrieves a user by ID, returns ErrNotFound when unknown
func (r *UserRepository) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var sqlUser userSQL
	err := r.db.GetContext(ctx, &sqlUser, "SELECT * FROM users WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return toDomainUser(&sqlUser)
}

// GetAllUsers retrieves all users, used for neighbor search
func (r *UserRepository) GetAllUsers(ctx context.Context) ([]domain.User, error) {
	var sqlUsers []userSQL
	if err := r.db.SelectContext(ctx, &sqlUsers, "SELECT * FROM users ORDER BY created_at, id"); err != nil {
		return nil, fmt.Errorf("get all users: %w", err)
	}

	users := make([]domain.User, 0, len(sqlUsers))
	for i := range sqlUsers {
		user, err := toDomainUser(&sqlUsers[i])
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, nil
}

// SaveUser inserts or updates a user
func (r *UserRepository) SaveUser(ctx context.Context, user *domain.User) error {
	prefs, err := json.Marshal(user.Preferences)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}
	history, err := json.Marshal(user.TravelHistory)
	if err != nil {
		return fmt.Errorf("marshal travel history: %w", err)
	}

	retrier := repeater.NewBackoff(5, 50*time.Millisecond, repeater.WithMaxDelay(2*time.Second))

	return retrier.Do(ctx, func() error {
		query := `
			INSERT INTO users (id, age, preferences, travel_history)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				age = excluded.age,
				preferences = excluded.preferences,
				travel_history = excluded.travel_history,
				updated_at = CURRENT_TIMESTAMP
		`
		_, err := r.db.ExecContext(ctx, query, user.ID, user.Age, string(prefs), string(history))
		if err != nil {
			if isLockError(err) {
				return err // retry
			}
			return &criticalError{err: fmt.Errorf("save user: %w", err)}
		}
		return nil
	})
}

func toDomainUser(u *userSQL) (*domain.User, error) {
	user := &domain.User{ID: u.ID, Age: u.Age}
	if err := json.Unmarshal([]byte(u.Preferences), &user.Preferences); err != nil {
		return nil, fmt.Errorf("unmarshal preferences for user %s: %w", u.ID, err)
	}
	if err := json.Unmarshal([]byte(u.TravelHistory), &user.TravelHistory); err != nil {
		return nil, fmt.Errorf("unmarshal travel history for user %s: %w", u.ID, err)
	}
	return user, nil
}
