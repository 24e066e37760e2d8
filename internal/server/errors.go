// ABOUTME: Classification table from internal errors to client-facing status and code
// ABOUTME: Order matters: specific rules first, operation failures fall through to service-error

package server

import (
	"net/http"

	"github.com/2389/coven-notes/internal/auth"
	"github.com/2389/coven-notes/internal/notes"
	"github.com/2389/coven-notes/internal/respond"
	"github.com/2389/coven-notes/internal/sessions"
	"github.com/2389/coven-notes/internal/users"
)

// Rules returns the error mapping used by the server's Mapper.
func Rules() []respond.Rule {
	rule := func(err error, status int, code respond.Code) respond.Rule {
		return respond.Rule{Err: err, Status: status, Code: code}
	}

	return []respond.Rule{
		rule(users.ErrNicknameTaken, http.StatusConflict, respond.CodeRegistrationFailed),
		rule(users.ErrInvalidCredentials, http.StatusUnauthorized, respond.CodeLoginFailed),
		rule(users.ErrEditNicknameTaken, http.StatusConflict, respond.CodeInvalidParameters),

		rule(users.ErrNothingToEdit, http.StatusBadRequest, respond.CodeInvalidParameters),
		rule(users.ErrUserNotFound, http.StatusBadRequest, respond.CodeInvalidParameters),
		rule(notes.ErrNoteNotFound, http.StatusBadRequest, respond.CodeInvalidParameters),
		rule(respond.ErrBadRequest, http.StatusBadRequest, respond.CodeInvalidParameters),

		rule(users.ErrWrongPassword, http.StatusForbidden, respond.CodeNoRights),
		rule(notes.ErrNotAllowedToEdit, http.StatusForbidden, respond.CodeNoRights),
		rule(notes.ErrNotAllowedToDelete, http.StatusForbidden, respond.CodeNoRights),

		rule(users.ErrAuthFailed, http.StatusForbidden, respond.CodeNotAuthenticated),
		rule(auth.ErrMissingToken, http.StatusForbidden, respond.CodeNotAuthenticated),
		rule(auth.ErrInvalidToken, http.StatusForbidden, respond.CodeNotAuthenticated),
		rule(auth.ErrExpiredToken, http.StatusForbidden, respond.CodeNotAuthenticated),
		rule(auth.ErrMissingClaim, http.StatusForbidden, respond.CodeNotAuthenticated),
		rule(auth.ErrNotAuthenticated, http.StatusForbidden, respond.CodeNotAuthenticated),
		rule(auth.ErrNoClaim, http.StatusForbidden, respond.CodeNotAuthenticated),
		rule(sessions.ErrSessionInvalid, http.StatusForbidden, respond.CodeNotAuthenticated),
		rule(sessions.ErrSessionNotFound, http.StatusForbidden, respond.CodeNotAuthenticated),
	}
}
