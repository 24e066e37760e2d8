// ABOUTME: HTTP handlers for creating, listing, editing and deleting notes
// ABOUTME: Every handler acts for the authenticated caller; responses include rendered HTML

package server

import (
	"net/http"

	"github.com/2389/coven-notes/internal/auth"
	"github.com/2389/coven-notes/internal/notes"
	"github.com/2389/coven-notes/internal/respond"
)

// NoteResponse is the public view of a note.
type NoteResponse struct {
	ID        uint64 `json:"id"`
	CreatorID uint32 `json:"creator_id"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	BodyHTML  string `json:"body_html"`
}

// CreateNoteRequest is the JSON body for POST /notes/create.
type CreateNoteRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// EditNoteRequest is the JSON body for POST /notes/edit.
type EditNoteRequest struct {
	ID    uint64  `json:"id"`
	Title *string `json:"title,omitempty"`
	Body  *string `json:"body,omitempty"`
}

// DeleteNoteRequest is the JSON body for DELETE /notes/delete.
type DeleteNoteRequest struct {
	ID uint64 `json:"id"`
}

func noteResponse(n notes.Note) (NoteResponse, error) {
	html, err := notes.RenderHTML(n.Body)
	if err != nil {
		return NoteResponse{}, err
	}
	return NoteResponse{
		ID:        n.ID,
		CreatorID: n.CreatorID,
		Title:     n.Title,
		Body:      n.Body,
		BodyHTML:  html,
	}, nil
}

// writeNote renders n and writes it, or fails the request if rendering fails.
func writeNote(w http.ResponseWriter, r *http.Request, n notes.Note) {
	resp, err := noteResponse(n)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	respond.JSON(w, http.StatusOK, resp)
}

func (s *Server) handleCreateNote(w http.ResponseWriter, r *http.Request) {
	caller := auth.MustFromContext(r.Context())

	var req CreateNoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond.Fail(w, r, err)
		return
	}

	note, err := s.notes.Create(caller.UserID, req.Title, req.Body)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	writeNote(w, r, note)
}

func (s *Server) handleListNotes(w http.ResponseWriter, r *http.Request) {
	caller := auth.MustFromContext(r.Context())

	list, err := s.notes.List(caller.UserID)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}

	out := make([]NoteResponse, 0, len(list))
	for _, n := range list {
		resp, err := noteResponse(n)
		if err != nil {
			respond.Fail(w, r, err)
			return
		}
		out = append(out, resp)
	}
	respond.JSON(w, http.StatusOK, out)
}

func (s *Server) handleEditNote(w http.ResponseWriter, r *http.Request) {
	caller := auth.MustFromContext(r.Context())

	var req EditNoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond.Fail(w, r, err)
		return
	}

	note, err := s.notes.Edit(caller.UserID, notes.Edit{ID: req.ID, Title: req.Title, Body: req.Body})
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	writeNote(w, r, note)
}

func (s *Server) handleDeleteNote(w http.ResponseWriter, r *http.Request) {
	caller := auth.MustFromContext(r.Context())

	var req DeleteNoteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		respond.Fail(w, r, err)
		return
	}

	note, err := s.notes.Delete(caller.UserID, req.ID)
	if err != nil {
		respond.Fail(w, r, err)
		return
	}
	writeNote(w, r, note)
}
