// ABOUTME: Route table and middleware stacks for the notes API
// ABOUTME: Token-issuing, protected and optionally authenticated routes plus shared request decoding

package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/2389/coven-notes/internal/respond"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

func (s *Server) registerRoutes(mux *http.ServeMux) {
	issuing := func(h http.HandlerFunc) http.Handler {
		return s.pipeline.Resolve(s.pipeline.Issue(h))
	}
	protected := func(h http.HandlerFunc) http.Handler {
		return s.pipeline.Resolve(s.pipeline.Require(h))
	}

	mux.Handle("POST /users/register", issuing(s.handleRegister))
	mux.Handle("POST /users/login", issuing(s.handleLogin))

	mux.Handle("POST /users/edit", protected(s.handleEditUser))
	mux.Handle("DELETE /users/delete", protected(s.handleDeleteUser))
	mux.Handle("POST /users/logout", s.pipeline.Resolve(http.HandlerFunc(s.handleLogout)))
	mux.Handle("GET /users/me", s.pipeline.Resolve(http.HandlerFunc(s.handleMe)))

	mux.Handle("POST /notes/create", protected(s.handleCreateNote))
	mux.Handle("GET /notes/list", protected(s.handleListNotes))
	mux.Handle("POST /notes/edit", protected(s.handleEditNote))
	mux.Handle("DELETE /notes/delete", protected(s.handleDeleteNote))

	mux.HandleFunc("GET /healthz", s.handleHealth)
}

// decodeJSON reads the request body into v. Any failure is a bad request.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: decoding body: %v", respond.ErrBadRequest, err)
	}
	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respond.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
