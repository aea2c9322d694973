package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/bhuvanesh-bit/scriptbot/internal/model"
	"github.com/bhuvanesh-bit/scriptbot/internal/utils"
)

// UserRepo is the credential store backed by the 'users' table.
type UserRepo struct {
	DB   *sql.DB
	Cost int // bcrypt cost used by Create
}

func NewUserRepo(db *sql.DB, cost int) *UserRepo { return &UserRepo{DB: db, Cost: cost} }

func normalizeUsername(s string) string { return strings.TrimSpace(s) }

// Create hashes the password, inserts the user and returns its ID.
// A taken username yields ErrUsernameExists.
func (r *UserRepo) Create(ctx context.Context, username, password string) (uint64, error) {
	username = normalizeUsername(username)
	hash, err := utils.HashPassword(password, r.Cost)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (username, password_hash) VALUES (?,?)",
		username, hash)
	if err != nil {
		if isDuplicateKey(err) {
			return 0, ErrUsernameExists
		}
		return 0, fmt.Errorf("db error: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return uint64(id), nil
}

// Authenticate returns the ID of the user whose username and password both
// match. An unknown username and a wrong password both yield
// ErrInvalidCredentials.
func (r *UserRepo) Authenticate(ctx context.Context, username, password string) (uint64, error) {
	u, err := r.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrInvalidCredentials
		}
		return 0, err
	}
	if !utils.VerifyPassword(u.PasswordHash, password) {
		return 0, ErrInvalidCredentials
	}
	return u.ID, nil
}

// GetByUsername fetches a user by trimmed username.
func (r *UserRepo) GetByUsername(ctx context.Context, username string) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,username,password_hash,created_at FROM users WHERE username=? LIMIT 1",
		normalizeUsername(username)).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return u, fmt.Errorf("db error: %w", err)
	}
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,username,password_hash,created_at FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.CreatedAt)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return u, fmt.Errorf("db error: %w", err)
	}
	return u, err
}
