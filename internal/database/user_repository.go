package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"traktical/models"
)

var (
	// ErrUserNotFound is returned when no record matches the lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when the capability key or slug is already taken.
	ErrUserExists = errors.New("user already exists")
)

// UserRepository persists capability-key to Trakt-account links.
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a repository on an open connection.
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `user_id, user_slug, token, created_at, updated_at`

// FindByUserID looks a record up by capability key.
func (r *UserRepository) FindByUserID(ctx context.Context, userID string) (*models.UserRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_id = ?`, userID)
	return scanUser(row)
}

// FindBySlug looks a record up by Trakt account slug.
func (r *UserRepository) FindBySlug(ctx context.Context, slug string) (*models.UserRecord, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE user_slug = ?`, slug)
	return scanUser(row)
}

// Insert stores a new record. Timestamps are set when zero.
func (r *UserRepository) Insert(ctx context.Context, user *models.UserRecord) error {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = user.CreatedAt

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?)`,
		user.UserID, user.UserSlug, user.Token, user.CreatedAt.Unix(), user.UpdatedAt.Unix(),
	)
	if err != nil {
		var sqlErr sqlite3.Error
		if errors.As(err, &sqlErr) && sqlErr.Code == sqlite3.ErrConstraint {
			return fmt.Errorf("insert user %s: %w", user.UserSlug, ErrUserExists)
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// UpdateTokenBySlug replaces the sealed token for an account. Concurrent
// writers race and the last one wins.
func (r *UserRepository) UpdateTokenBySlug(ctx context.Context, slug string, token []byte) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE users SET token = ?, updated_at = ? WHERE user_slug = ?`,
		token, time.Now().UTC().Unix(), slug,
	)
	if err != nil {
		return fmt.Errorf("update token: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update token: %w", err)
	}
	if n == 0 {
		return ErrUserNotFound
	}
	return nil
}

func scanUser(row *sql.Row) (*models.UserRecord, error) {
	var (
		user             models.UserRecord
		created, updated int64
	)
	err := row.Scan(&user.UserID, &user.UserSlug, &user.Token, &created, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	user.CreatedAt = time.Unix(created, 0).UTC()
	user.UpdatedAt = time.Unix(updated, 0).UTC()
	return &user, nil
}
