package handler // handler defines http handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"github.com/bhuvanesh-bit/scriptbot/internal/service"
)

var errInvalidID = errors.New("invalid id")

// parseID reads the ":id" path parameter as a positive integer.
func parseID(c echo.Context) (uint64, error) {
	n, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || n == 0 {
		return 0, errInvalidID
	}
	return n, nil
}

// errorStatus maps a service error to an HTTP status and a message safe to
// show to the user.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrPasswordTooLong):
		return http.StatusBadRequest, "password must be at most 72 bytes"
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest, "username and password are required"
	case errors.Is(err, service.ErrEmptyQuestion):
		return http.StatusBadRequest, "question is required"
	case errors.Is(err, errInvalidID):
		return http.StatusBadRequest, "invalid id"
	case errors.Is(err, service.ErrUsernameTaken):
		return http.StatusConflict, "username already exists"
	case errors.Is(err, service.ErrInvalidCredentials):
		return http.StatusUnauthorized, "invalid credentials"
	case errors.Is(err, service.ErrNotAuthenticated):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, service.ErrEntryNotFound):
		return http.StatusNotFound, "history entry not found"
	case errors.Is(err, service.ErrCompletion):
		return http.StatusBadGateway, "error: " + service.CompletionCause(err)
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

// writeError answers with {"error": msg}.  Unexpected failures are logged
// with the request path.
func writeError(c echo.Context, logger log.FieldLogger, err error) error {
	status, msg := errorStatus(err)
	if status == http.StatusInternalServerError {
		logger.WithError(err).WithField("path", c.Path()).Error("request failed")
	}
	return c.JSON(status, echo.Map{"error": msg})
}
