// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as
// services and handlers to distinguish between different failure
// scenarios without inspecting driver errors. For example,
// ErrUsernameExists signals a uniqueness violation on registration,
// while ErrInvalidCredentials deliberately does not say whether the
// username or the password was wrong.
package repository

import (
	"errors"

	"github.com/go-sql-driver/mysql"
)

// ErrUsernameExists is returned when registering a username that is
// already taken. Handlers should translate this into an HTTP 409 response.
var ErrUsernameExists = errors.New("username already exists")

// ErrInvalidCredentials is returned by authentication when no user
// matches both the username and the password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// ErrHistoryNotFound is returned when a history entry does not exist or
// belongs to a different user.
var ErrHistoryNotFound = errors.New("history entry not found")

// mysqlDuplicateEntry is ER_DUP_ENTRY.
const mysqlDuplicateEntry = 1062

func isDuplicateKey(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
}
