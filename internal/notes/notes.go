// ABOUTME: Note service built on a slot store of notes
// ABOUTME: Create, list, edit and delete with an ownership gate on every change

package notes

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/2389/coven-notes/internal/store"
)

// Note errors
var (
	ErrCreateFailed       = errors.New("note create failed")
	ErrReceiveFailed      = errors.New("note receive failed")
	ErrEditFailed         = errors.New("note edit failed")
	ErrDeleteFailed       = errors.New("note delete failed")
	ErrNotAllowedToEdit   = errors.New("editor can not edit note")
	ErrNotAllowedToDelete = errors.New("deleter can not delete note")
	ErrNoteNotFound       = errors.New("note does not exist")
)

// Note is a titled Markdown body owned by its creator. ID is the slot index.
type Note struct {
	ID        uint64
	CreatorID uint32
	Title     string
	Body      string
}

// Edit lists the fields to change on note ID. Nil fields are kept.
type Edit struct {
	ID    uint64
	Title *string
	Body  *string
}

// Service manages notes.
type Service struct {
	slots  *store.Slots[Note]
	logger *slog.Logger
}

// NewService creates a note service with an empty store.
func NewService(logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		slots:  store.New[Note](),
		logger: logger.With("component", "notes"),
	}
}

// ownedBy rejects notes whose creator is not userID.
func ownedBy(userID uint32, denied error) func(Note) error {
	return func(n Note) error {
		if n.CreatorID != userID {
			return denied
		}
		return nil
	}
}

// slotIndex maps a note id onto a store index; ids beyond int range can never exist.
func slotIndex(id uint64) int {
	if id > uint64(^uint(0)>>1) {
		return -1
	}
	return int(id)
}

// Create stores a new note for creatorID.
func (s *Service) Create(creatorID uint32, title, body string) (Note, error) {
	note, err := s.slots.Insert(func(id int) Note {
		return Note{ID: uint64(id), CreatorID: creatorID, Title: title, Body: body}
	})
	if err != nil {
		return Note{}, fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}

	s.logger.Debug("note created", "note_id", note.ID, "creator_id", creatorID)
	return note, nil
}

// List returns every live note created by creatorID in id order.
func (s *Service) List(creatorID uint32) ([]Note, error) {
	found, err := s.slots.Scan(func(n Note) bool { return n.CreatorID == creatorID })
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrReceiveFailed, err)
	}
	return found, nil
}

// Edit changes a note on behalf of editorID. Only the creator may edit; a rejected
// edit leaves the stored note untouched.
func (s *Service) Edit(editorID uint32, e Edit) (Note, error) {
	note, err := s.slots.Modify(slotIndex(e.ID), ownedBy(editorID, ErrNotAllowedToEdit), func(n Note) Note {
		if e.Title != nil {
			n.Title = *e.Title
		}
		if e.Body != nil {
			n.Body = *e.Body
		}
		return n
	})
	if err != nil {
		return Note{}, classify(err, ErrEditFailed)
	}
	return note, nil
}

// Delete removes a note on behalf of deleterID. Only the creator may delete.
func (s *Service) Delete(deleterID uint32, id uint64) (Note, error) {
	note, err := s.slots.TakeIf(slotIndex(id), ownedBy(deleterID, ErrNotAllowedToDelete))
	if err != nil {
		return Note{}, classify(err, ErrDeleteFailed)
	}

	s.logger.Debug("note deleted", "note_id", id, "deleter_id", deleterID)
	return note, nil
}

func classify(err, op error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ErrNoteNotFound
	case errors.Is(err, store.ErrPoisoned):
		return fmt.Errorf("%w: %v", op, err)
	default:
		return err
	}
}
