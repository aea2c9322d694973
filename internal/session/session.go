// Package session holds the transient state of one user's interaction: who
// is signed in and which question/answer pairs are currently displayed.
// The history table stays authoritative; a session is only a view of it.
package session

import (
	"context"
	"errors"

	"github.com/bhuvanesh-bit/scriptbot/internal/model"
)

// ErrNotFound is returned by a Store when the session does not exist or has
// expired.
var ErrNotFound = errors.New("session not found")

// Exchange is one displayed question/answer pair.  EntryID is the history
// row it came from.
type Exchange struct {
	EntryID  uint64 `json:"entry_id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Session is the explicit per-browser state.  A zero UserID means the
// session is unauthenticated.
type Session struct {
	ID       string     `json:"id"`
	UserID   uint64     `json:"user_id"`
	Username string     `json:"username"`
	Outputs  []Exchange `json:"outputs"`
}

// Authenticated reports whether a user is signed in.
func (s *Session) Authenticated() bool { return s != nil && s.UserID != 0 }

// Append adds e at the end of the displayed list.
func (s *Session) Append(e Exchange) { s.Outputs = append(s.Outputs, e) }

// Prepend adds e at the front of the displayed list.
func (s *Session) Prepend(e Exchange) {
	s.Outputs = append([]Exchange{e}, s.Outputs...)
}

// Reconcile drops displayed exchanges whose history entry is no longer in
// entries and refreshes the text of the ones that are.  Display order is
// preserved.  It returns the number of exchanges removed.
func (s *Session) Reconcile(entries []model.HistoryEntry) int {
	byID := make(map[uint64]model.HistoryEntry, len(entries))
	for _, e := range entries {
		byID[e.ID] = e
	}
	kept := s.Outputs[:0]
	for _, ex := range s.Outputs {
		e, ok := byID[ex.EntryID]
		if !ok {
			continue
		}
		ex.Question, ex.Answer = e.Question, e.Answer
		kept = append(kept, ex)
	}
	removed := len(s.Outputs) - len(kept)
	s.Outputs = kept
	return removed
}

// Store persists sessions between requests.
type Store interface {
	Get(ctx context.Context, id string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Delete(ctx context.Context, id string) error
}
