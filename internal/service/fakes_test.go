package service

import (
	"context"
	"sync"
	"time"

	"github.com/bhuvanesh-bit/scriptbot/internal/model"
	"github.com/bhuvanesh-bit/scriptbot/internal/queue"
	"github.com/bhuvanesh-bit/scriptbot/internal/repository"
)

// memUsers keeps plain passwords; hashing is covered by the repository tests.
type memUsers struct {
	mu     sync.Mutex
	nextID uint64
	byName map[string]model.User
	err    error
}

func newMemUsers() *memUsers { return &memUsers{byName: map[string]model.User{}} }

func (m *memUsers) Create(_ context.Context, username, password string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	if _, ok := m.byName[username]; ok {
		return 0, repository.ErrUsernameExists
	}
	m.nextID++
	m.byName[username] = model.User{ID: m.nextID, Username: username, PasswordHash: password}
	return m.nextID, nil
}

func (m *memUsers) Authenticate(_ context.Context, username, password string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	u, ok := m.byName[username]
	if !ok || u.PasswordHash != password {
		return 0, repository.ErrInvalidCredentials
	}
	return u.ID, nil
}

func (m *memUsers) count(username string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.byName[username]; ok {
		return 1
	}
	return 0
}

type memHistory struct {
	mu      sync.Mutex
	nextID  uint64
	rows    []model.HistoryEntry
	listErr error
}

func (m *memHistory) Append(_ context.Context, userID uint64, q, a string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	m.rows = append(m.rows, model.HistoryEntry{ID: m.nextID, UserID: userID, Question: q, Answer: a, CreatedAt: time.Now()})
	return m.nextID, nil
}

func (m *memHistory) ListAll(_ context.Context, userID uint64) ([]model.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	out := make([]model.HistoryEntry, 0)
	for i := len(m.rows) - 1; i >= 0; i-- {
		if m.rows[i].UserID == userID {
			out = append(out, m.rows[i])
		}
	}
	return out, nil
}

func (m *memHistory) GetByIDAndOwner(_ context.Context, id, userID uint64) (model.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.ID == id && r.UserID == userID {
			return r, nil
		}
	}
	return model.HistoryEntry{}, repository.ErrHistoryNotFound
}

func (m *memHistory) Remove(_ context.Context, id, userID uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[:0]
	for _, r := range m.rows {
		if r.ID == id && r.UserID == userID {
			continue
		}
		kept = append(kept, r)
	}
	m.rows = kept
	return nil
}

// removeBehindBack deletes a row without going through the service, as
// another browser session of the same user would.
func (m *memHistory) removeBehindBack(id uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.rows[:0]
	for _, r := range m.rows {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	m.rows = kept
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []queue.HistoryEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev queue.HistoryEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.Type
	}
	return out
}
