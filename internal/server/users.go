// ABOUTME: HTTP handlers for account registration, login, edit, delete and logout
// ABOUTME: Token-issuing handlers name their user with auth.Claim and never touch cookies

package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/2389/coven-notes/internal/auth"
	"github.com/2389/coven-notes/internal/respond"
	"github.com/2389/coven-notes/internal/sessions"
	"github.com/2389/coven-notes/internal/users"
)

// UserResponse is the public view of an account.
type UserResponse struct {
	ID       uint32 `json:"id"`
	Name     string `json:"name"`
	Nickname string `json:"nickname"`
}

func userResponse(u users.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Nickname: u.Nickname}
}

// RegisterRequest is the JSON body for POST /users/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Nickname string `json:"nickname"`
	Password string `json:"password"`
}

// LoginRequest is the JSON body for POST /users/login.
type LoginRequest struct {
	Nickname string `json:"nickname"`
	Password string `json:"password"`
}

// EditUserRequest is the JSON body for POST /users/edit. Password is the current
// password; omitted optional fields are left unchanged.
type EditUserRequest struct {
	Password    string  `json:"password"`
	Name        *string `json:"name,omitempty"`
	Nickname    *string `json:"nickname,omitempty"`
	NewPassword *string `json:"new_password,omitempty"`
}

// DeleteUserRequest is the JSON body for DELETE /users/delete.
type DeleteUserRequest struct {
	Password string `json:"password"`
}

// MeResponse is the JSON body for GET /users/me.
type MeResponse struct {
	Authenticated bool    `json:"authenticated"`
	UserID        *uint32 `json:"user_id,omitempty"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond.Fail(w, r, err)
		return
	}
	if req.Name == "" || req.Nickname == "" || req.Password == "" {
		respond.Fail(w, r, fmt.Errorf("%w: name, nickname and password are required", respond.ErrBadRequest))
		return
	}

	user, err := s.users.Register(users.Registration{
		Name:     req.Name,
		Nickname: req.Nickname,
		Password: req.Password,
	})
	if err != nil {
		respond.Fail(w, r, err)
		return
	}

	auth.Claim(r, user.ID)
	respond.JSON(w, http.StatusOK, userResponse(user))
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond.Fail(w, r, err)
		return
	}

	user, err := s.users.Login(req.Nickname, req.Password)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}

	auth.Claim(r, user.ID)
	respond.JSON(w, http.StatusOK, userResponse(user))
}

func (s *Server) handleEditUser(w http.ResponseWriter, r *http.Request) {
	caller := auth.MustFromContext(r.Context())

	var req EditUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond.Fail(w, r, err)
		return
	}
	if err := s.users.Authenticate(caller.UserID, req.Password); err != nil {
		respond.Fail(w, r, err)
		return
	}

	user, err := s.users.Edit(users.Edit{
		ID:          caller.UserID,
		Name:        req.Name,
		Nickname:    req.Nickname,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, userResponse(user))
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) {
	caller := auth.MustFromContext(r.Context())

	var req DeleteUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond.Fail(w, r, err)
		return
	}
	if err := s.users.Authenticate(caller.UserID, req.Password); err != nil {
		respond.Fail(w, r, err)
		return
	}

	// session first, so a failure here leaves the account intact
	if err := s.sessions.InvalidateUser(caller.UserID); err != nil {
		respond.Fail(w, r, err)
		return
	}
	user, err := s.users.Delete(caller.UserID)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}

	s.pipeline.ClearCookie(w)
	respond.JSON(w, http.StatusOK, userResponse(user))
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	// a caller whose token no longer resolves is already logged out
	if caller := auth.FromContext(r.Context()); caller != nil {
		sess, err := s.sessions.ForUser(caller.UserID)
		switch {
		case errors.Is(err, sessions.ErrSessionNotFound):
		case err != nil:
			respond.Fail(w, r, err)
			return
		default:
			if err := s.sessions.Invalidate(sess.ID); err != nil {
				respond.Fail(w, r, err)
				return
			}
		}
	}

	s.pipeline.ClearCookie(w)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	caller := auth.FromContext(r.Context())
	if caller == nil {
		respond.JSON(w, http.StatusOK, MeResponse{Authenticated: false})
		return
	}
	id := caller.UserID
	respond.JSON(w, http.StatusOK, MeResponse{Authenticated: true, UserID: &id})
}
