package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/bhuvanesh-bit/scriptbot/internal/model"
)

// HistoryRepo persists question/answer pairs in the 'history' table.  Every
// query is scoped by owner so one user can never read or delete another
// user's entries.
type HistoryRepo struct {
	db *sql.DB
}

// NewHistoryRepo constructs a HistoryRepo with the provided DB handle.
func NewHistoryRepo(db *sql.DB) *HistoryRepo {
	return &HistoryRepo{db: db}
}

// Append inserts a new entry for userID and returns its ID.
func (r *HistoryRepo) Append(ctx context.Context, userID uint64, question, answer string) (uint64, error) {
	const q = "INSERT INTO history (user_id, question, answer) VALUES (?, ?, ?)"
	res, err := r.db.ExecContext(ctx, q, userID, question, answer)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return uint64(id), nil
}

// ListAll returns every entry owned by userID, newest (highest id) first.
// The result is read fresh from the database on each call.
func (r *HistoryRepo) ListAll(ctx context.Context, userID uint64) ([]model.HistoryEntry, error) {
	const q = `SELECT id, user_id, question, answer, created_at
	           FROM history WHERE user_id = ? ORDER BY id DESC`
	rows, err := r.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	defer rows.Close()

	out := make([]model.HistoryEntry, 0)
	for rows.Next() {
		var e model.HistoryEntry
		if err := rows.Scan(&e.ID, &e.UserID, &e.Question, &e.Answer, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return out, nil
}

// GetByIDAndOwner fetches one entry but only if it belongs to userID.
// ErrHistoryNotFound is returned otherwise.
func (r *HistoryRepo) GetByIDAndOwner(ctx context.Context, id, userID uint64) (model.HistoryEntry, error) {
	const q = `SELECT id, user_id, question, answer, created_at
	           FROM history WHERE id = ? AND user_id = ?`
	var e model.HistoryEntry
	err := r.db.QueryRowContext(ctx, q, id, userID).Scan(&e.ID, &e.UserID, &e.Question, &e.Answer, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.HistoryEntry{}, ErrHistoryNotFound
		}
		return model.HistoryEntry{}, fmt.Errorf("db error: %w", err)
	}
	return e, nil
}

// Remove deletes the entry matching both id and userID.  Removing an entry
// owned by someone else, or one that does not exist, affects zero rows and
// is not an error, so the call is safe to repeat.
func (r *HistoryRepo) Remove(ctx context.Context, id, userID uint64) error {
	const q = "DELETE FROM history WHERE id = ? AND user_id = ?"
	if _, err := r.db.ExecContext(ctx, q, id, userID); err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}
