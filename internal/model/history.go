package model

import "time"

// HistoryEntry models a row in the `history` table: one question sent
// to the completion API together with the answer it produced.  Rows
// belong to exactly one user and are removed when the user is.
//
// Fields:
//  ID        – primary key identifier, increases with insertion order.
//  UserID    – owner of the entry (users.id).
//  Question  – the text the user asked.
//  Answer    – the generated completion.
//  CreatedAt – timestamp of creation.
type HistoryEntry struct {
	ID        uint64    // history.id
	UserID    uint64    // history.user_id
	Question  string    // history.question
	Answer    string    // history.answer
	CreatedAt time.Time // history.created_at
}
