// Package queue defines message payloads exchanged over the message broker.
package queue

import "time"

// HistoryQueue is the durable queue history events are published to.
const HistoryQueue = "scriptbot.history"

// Event types.
const (
	EventUserRegistered  = "user.registered"
	EventHistoryAppended = "history.appended"
	EventHistoryRemoved  = "history.removed"
)

// HistoryEvent is published when a user registers or when a history entry
// is written or deleted.  It carries enough information for downstream
// consumers to audit activity without querying the primary database; the
// answer text itself is not included.
type HistoryEvent struct {
	Type            string    `json:"type"`
	UserID          uint64    `json:"user_id"`
	Username        string    `json:"username,omitempty"`
	EntryID         uint64    `json:"entry_id,omitempty"`
	QuestionPreview string    `json:"question_preview,omitempty"`
	AnswerBytes     int       `json:"answer_bytes,omitempty"`
	OccurredAt      time.Time `json:"occurred_at"`
}
