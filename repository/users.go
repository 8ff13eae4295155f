package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"journal-service/models"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// UserRepository persists journal owners
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdatePassword(ctx context.Context, id, passwordHash string) error
}

type sqlUserRepository struct {
	db *sqlx.DB
}

// NewUserRepository returns a UserRepository backed by sqlx
func NewUserRepository(db *sqlx.DB) UserRepository {
	return &sqlUserRepository{db: db}
}

const userColumns = "id, name, email, password, profile, created_at, updated_at"

// Create inserts the user, filling in ID and timestamps
func (r *sqlUserRepository) Create(ctx context.Context, user *models.User) error {
	now := time.Now().UTC()
	user.ID = uuid.New().String()
	user.CreatedAt = now
	user.UpdatedAt = now

	query := r.db.Rebind("INSERT INTO users (" + userColumns + ") VALUES (?, ?, ?, ?, ?, ?, ?)")
	_, err := r.db.ExecContext(ctx, query,
		user.ID, user.Name, user.Email, user.Password, user.Profile, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// FindByEmail looks a user up by exact email match
func (r *sqlUserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "email", email)
}

// FindByID looks a user up by id
func (r *sqlUserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, "id", id)
}

func (r *sqlUserRepository) findOne(ctx context.Context, column, value string) (*models.User, error) {
	var user models.User
	query := r.db.Rebind("SELECT " + userColumns + " FROM users WHERE " + column + " = ?")
	err := r.db.GetContext(ctx, &user, query, value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("select user by %s: %w", column, err)
	}
	return &user, nil
}

// UpdatePassword overwrites the stored password hash
func (r *sqlUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := r.db.Rebind("UPDATE users SET password = ?, updated_at = ? WHERE id = ?")
	result, err := r.db.ExecContext(ctx, query, passwordHash, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
