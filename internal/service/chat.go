// Package service implements the chat workflow on top of the credential
// store, the history store, the completion client and the session store.
//
// A session is either unauthenticated (no session at all) or bound to one
// user.  Every operation that changes history reconciles the session's
// displayed list against a fresh read of the store, so a session never
// shows an entry that has been deleted.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/bhuvanesh-bit/scriptbot/internal/completion"
	"github.com/bhuvanesh-bit/scriptbot/internal/model"
	"github.com/bhuvanesh-bit/scriptbot/internal/prompt"
	"github.com/bhuvanesh-bit/scriptbot/internal/queue"
	"github.com/bhuvanesh-bit/scriptbot/internal/repository"
	"github.com/bhuvanesh-bit/scriptbot/internal/session"
)

// maxPasswordBytes is the longest password bcrypt hashes without truncation.
const maxPasswordBytes = 72

// previewRunes bounds the question text carried in events.
const previewRunes = 30

// UserStore is the credential store.
type UserStore interface {
	Create(ctx context.Context, username, password string) (uint64, error)
	Authenticate(ctx context.Context, username, password string) (uint64, error)
}

// HistoryStore is the per-user question/answer store.
type HistoryStore interface {
	Append(ctx context.Context, userID uint64, question, answer string) (uint64, error)
	ListAll(ctx context.Context, userID uint64) ([]model.HistoryEntry, error)
	GetByIDAndOwner(ctx context.Context, id, userID uint64) (model.HistoryEntry, error)
	Remove(ctx context.Context, id, userID uint64) error
}

// EventPublisher receives domain events.  Publishing is best effort.
type EventPublisher interface {
	Publish(ctx context.Context, ev queue.HistoryEvent) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, queue.HistoryEvent) error { return nil }

// ChatService is safe for concurrent use as long as its collaborators are.
type ChatService struct {
	users    UserStore
	history  HistoryStore
	llm      completion.Client
	sessions session.Store
	events   EventPublisher
	log      log.FieldLogger
	now      func() time.Time
	newID    func() string
}

// Deps groups the collaborators of a ChatService.  Events and Logger may be
// nil.
type Deps struct {
	Users      UserStore
	History    HistoryStore
	Completion completion.Client
	Sessions   session.Store
	Events     EventPublisher
	Logger     log.FieldLogger
}

// NewChatService wires a ChatService.
func NewChatService(d Deps) *ChatService {
	events := d.Events
	if events == nil {
		events = NopPublisher{}
	}
	logger := d.Logger
	if logger == nil {
		logger = log.StandardLogger()
	}
	return &ChatService{
		users:    d.Users,
		history:  d.History,
		llm:      d.Completion,
		sessions: d.Sessions,
		events:   events,
		log:      logger.WithField("component", "chat"),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Register creates a new account.  It does not sign the user in.
func (s *ChatService) Register(ctx context.Context, username, password string) (uint64, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return 0, ErrInvalidInput
	}
	if len(password) > maxPasswordBytes {
		return 0, ErrPasswordTooLong
	}
	id, err := s.users.Create(ctx, username, password)
	if err != nil {
		if errors.Is(err, repository.ErrUsernameExists) {
			return 0, ErrUsernameTaken
		}
		return 0, err
	}
	s.log.WithFields(log.Fields{"user_id": id, "username": username}).Info("user registered")
	s.publish(ctx, queue.HistoryEvent{Type: queue.EventUserRegistered, UserID: id, Username: username})
	return id, nil
}

// Login verifies the credentials and starts a new authenticated session
// with an empty displayed list.
func (s *ChatService) Login(ctx context.Context, username, password string) (*session.Session, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	id, err := s.users.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, repository.ErrInvalidCredentials) {
			s.log.WithField("username", username).Info("login rejected")
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	sess := &session.Session{ID: s.newID(), UserID: id, Username: username, Outputs: []session.Exchange{}}
	if err := s.sessions.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}
	s.log.WithFields(log.Fields{"user_id": id, "session": sess.ID}).Info("user logged in")
	return sess, nil
}

// Logout ends the session.  Logging out of an unknown session is not an
// error.
func (s *ChatService) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// Current loads the session with the given id.
func (s *ChatService) Current(ctx context.Context, sessionID string) (*session.Session, error) {
	if sessionID == "" {
		return nil, ErrNotAuthenticated
	}
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return nil, ErrNotAuthenticated
		}
		return nil, err
	}
	if !sess.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	return sess, nil
}

// Ask sends question to the completion client.  On success the pair is
// written to history, appended to the displayed list and returned.  When
// the completion fails nothing is written and the error wraps
// ErrCompletion.  Once the pair is stored, Ask succeeds even if the
// session cannot be resynced or saved.
func (s *ChatService) Ask(ctx context.Context, sess *session.Session, question string) (model.HistoryEntry, error) {
	if !sess.Authenticated() {
		return model.HistoryEntry{}, ErrNotAuthenticated
	}
	if strings.TrimSpace(question) == "" {
		return model.HistoryEntry{}, ErrEmptyQuestion
	}

	answer, err := s.llm.Complete(ctx, prompt.Format(question))
	if err != nil {
		s.log.WithField("user_id", sess.UserID).WithError(err).Warn("ask failed")
		return model.HistoryEntry{}, &completionError{err: err}
	}

	id, err := s.history.Append(ctx, sess.UserID, question, answer)
	if err != nil {
		return model.HistoryEntry{}, err
	}
	entry := model.HistoryEntry{ID: id, UserID: sess.UserID, Question: question, Answer: answer, CreatedAt: s.now().UTC()}
	sess.Append(session.Exchange{EntryID: id, Question: question, Answer: answer})
	// The entry is stored; a failed resync only leaves the view stale.
	if _, err := s.sync(ctx, sess); err != nil {
		s.log.WithFields(log.Fields{"user_id": sess.UserID, "entry_id": id}).WithError(err).Warn("resync after ask failed")
		if err := s.sessions.Save(ctx, sess); err != nil {
			s.log.WithField("session", sess.ID).WithError(err).Warn("save session after ask failed")
		}
	}
	s.publish(ctx, queue.HistoryEvent{
		Type:            queue.EventHistoryAppended,
		UserID:          sess.UserID,
		Username:        sess.Username,
		EntryID:         id,
		QuestionPreview: preview(question),
		AnswerBytes:     len(answer),
	})
	return entry, nil
}

// History returns the user's stored entries, newest first.
func (s *ChatService) History(ctx context.Context, sess *session.Session) ([]model.HistoryEntry, error) {
	if !sess.Authenticated() {
		return nil, ErrNotAuthenticated
	}
	return s.history.ListAll(ctx, sess.UserID)
}

// LoadFromHistory puts a stored entry at the front of the displayed list.
// The store itself is not modified.
func (s *ChatService) LoadFromHistory(ctx context.Context, sess *session.Session, entryID uint64) error {
	if !sess.Authenticated() {
		return ErrNotAuthenticated
	}
	e, err := s.history.GetByIDAndOwner(ctx, entryID, sess.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrHistoryNotFound) {
			return ErrEntryNotFound
		}
		return err
	}
	sess.Prepend(session.Exchange{EntryID: e.ID, Question: e.Question, Answer: e.Answer})
	_, err = s.sync(ctx, sess)
	return err
}

// DeleteFromHistory removes an owned entry and drops it from the displayed
// list.  Deleting an entry that does not exist or is not owned changes
// nothing.
func (s *ChatService) DeleteFromHistory(ctx context.Context, sess *session.Session, entryID uint64) error {
	if !sess.Authenticated() {
		return ErrNotAuthenticated
	}
	if err := s.history.Remove(ctx, entryID, sess.UserID); err != nil {
		return err
	}
	removed, err := s.sync(ctx, sess)
	if err != nil {
		return err
	}
	s.log.WithFields(log.Fields{"user_id": sess.UserID, "entry_id": entryID, "dropped": removed}).Debug("history entry deleted")
	s.publish(ctx, queue.HistoryEvent{
		Type:     queue.EventHistoryRemoved,
		UserID:   sess.UserID,
		Username: sess.Username,
		EntryID:  entryID,
	})
	return nil
}

// sync reconciles the displayed list with the store and saves the session.
func (s *ChatService) sync(ctx context.Context, sess *session.Session) (int, error) {
	entries, err := s.history.ListAll(ctx, sess.UserID)
	if err != nil {
		return 0, err
	}
	removed := sess.Reconcile(entries)
	if err := s.sessions.Save(ctx, sess); err != nil {
		return removed, fmt.Errorf("save session: %w", err)
	}
	return removed, nil
}

func (s *ChatService) publish(ctx context.Context, ev queue.HistoryEvent) {
	ev.OccurredAt = s.now().UTC()
	if err := s.events.Publish(ctx, ev); err != nil {
		s.log.WithError(err).WithField("event", ev.Type).Debug("event dropped")
	}
}

// completionError matches both ErrCompletion and the client's own error.
type completionError struct{ err error }

func (e *completionError) Error() string { return ErrCompletion.Error() + ": " + e.cause() }

func (e *completionError) Unwrap() []error { return []error{ErrCompletion, e.err} }

func (e *completionError) cause() string {
	return strings.TrimPrefix(e.err.Error(), completion.ErrCompletionFailed.Error()+": ")
}

// CompletionCause returns the underlying completion failure message for
// display, or "" when err did not come from the completion client.
func CompletionCause(err error) string {
	var ce *completionError
	if errors.As(err, &ce) {
		return ce.cause()
	}
	return ""
}

func preview(s string) string {
	if utf8.RuneCountInString(s) <= previewRunes {
		return s
	}
	r := []rune(s)
	return string(r[:previewRunes])
}
