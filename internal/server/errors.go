// Package server is the reference artifact store: a JSON HTTP API over the
// filesystem vault and the account repository.
package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jonathan/resume-vault/internal/db"
	"github.com/jonathan/resume-vault/internal/vault"
)

// ErrInvalidCredentials indicates invalid sign-in credentials
type ErrInvalidCredentials struct{}

func (e *ErrInvalidCredentials) Error() string {
	return "Invalid credentials"
}

// ErrValidation indicates request validation failure
type ErrValidation struct {
	Message string
}

func (e *ErrValidation) Error() string {
	return e.Message
}

// ErrForbidden indicates the principal may not touch the requested subject
type ErrForbidden struct {
	Reason string
}

func (e *ErrForbidden) Error() string {
	return fmt.Sprintf("forbidden: %s", e.Reason)
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	var (
		creds      *ErrInvalidCredentials
		validation *ErrValidation
		forbidden  *ErrForbidden
		notFound   *db.ErrUserNotFound
		taken      *db.ErrUsernameTaken
		assignment *db.ErrInvalidAssignment
	)
	switch {
	case errors.As(err, &creds):
		return http.StatusUnauthorized
	case errors.As(err, &validation), errors.As(err, &assignment), errors.Is(err, vault.ErrInvalidName):
		return http.StatusBadRequest
	case errors.As(err, &forbidden):
		return http.StatusForbidden
	case errors.As(err, &notFound), errors.Is(err, vault.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &taken):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// PublicMessage is the text sent to the client for err. Internal failures
// are not described.
func PublicMessage(err error) string {
	if HTTPStatus(err) == http.StatusInternalServerError {
		return "Internal server error"
	}
	return err.Error()
}
