package service

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput covers blank usernames or passwords.
	ErrInvalidInput = errors.New("invalid input")

	// ErrPasswordTooLong is returned for passwords bcrypt would truncate.
	// It matches ErrInvalidInput.
	ErrPasswordTooLong = fmt.Errorf("%w: password longer than %d bytes", ErrInvalidInput, maxPasswordBytes)

	// ErrUsernameTaken is returned when registering an existing username.
	ErrUsernameTaken = errors.New("username already exists")

	// ErrInvalidCredentials never says which of username or password was wrong.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrNotAuthenticated is returned for a missing, expired or signed-out session.
	ErrNotAuthenticated = errors.New("not authenticated")

	// ErrEmptyQuestion is returned by Ask for a blank question.
	ErrEmptyQuestion = errors.New("question is empty")

	// ErrEntryNotFound is returned when a history entry does not exist or
	// belongs to someone else.
	ErrEntryNotFound = errors.New("history entry not found")

	// ErrCompletion wraps any failure of the completion client.  The
	// underlying message is kept so it can be shown to the user.
	ErrCompletion = errors.New("completion failed")
)
