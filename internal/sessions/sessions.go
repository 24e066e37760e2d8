// ABOUTME: Session service built on a slot store of sessions
// ABOUTME: Owns create/renew, invalidation and the exact-expiry validity check

package sessions

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/2389/coven-notes/internal/store"
)

// Session errors
var (
	ErrCreateFailed        = errors.New("session create failed")
	ErrUpdateFailed        = errors.New("session update failed")
	ErrDeleteFailed        = errors.New("session delete failed")
	ErrValidityCheckFailed = errors.New("session validity check failed")
	ErrSessionInvalid      = errors.New("session invalid")
	ErrSessionNotFound     = errors.New("session does not exist")
)

// Session binds a user to an expiry. ID is the session's slot index.
type Session struct {
	ID        uint32
	UserID    uint32
	ExpiresAt int64 // unix seconds
}

// Service manages the session lifecycle. One session per user is kept by
// CreateOrRenew looking the user up before inserting.
type Service struct {
	slots  *store.Slots[Session]
	now    func() time.Time
	logger *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the wall clock used to compute expiries.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger.With("component", "sessions")
	}
}

// NewService creates a session service with an empty store.
func NewService(opts ...Option) *Service {
	s := &Service{
		slots:  store.New[Session](),
		now:    time.Now,
		logger: slog.Default().With("component", "sessions"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrRenew returns the user's session with a fresh expiry of now+validity.
// An existing session keeps its ID and UserID; otherwise a new one is appended.
func (s *Service) CreateOrRenew(userID uint32, validity time.Duration) (Session, error) {
	expiresAt := s.now().Add(validity).Unix()

	var out Session
	var renewed bool
	err := s.slots.Do(func(tx *store.Tx[Session]) error {
		existing, ok := tx.Find(func(sess Session) bool { return sess.UserID == userID })
		if ok {
			next := existing
			next.ExpiresAt = expiresAt
			if _, err := tx.Replace(int(existing.ID), next); err != nil {
				return fmt.Errorf("%w: %v", ErrUpdateFailed, err)
			}
			out, renewed = next, true
			return nil
		}

		out = tx.Insert(func(id int) Session {
			return Session{ID: uint32(id), UserID: userID, ExpiresAt: expiresAt}
		})
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUpdateFailed) {
			return Session{}, err
		}
		return Session{}, fmt.Errorf("%w: %v", ErrCreateFailed, err)
	}

	s.logger.Debug("session issued", "session_id", out.ID, "user_id", userID, "renewed", renewed)
	return out, nil
}

// Invalidate deletes a session. Deleting a session that does not exist succeeds.
func (s *Service) Invalidate(sessionID uint32) error {
	_, err := s.slots.Take(int(sessionID))
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

// InvalidateUser deletes every session held by userID. It is idempotent.
func (s *Service) InvalidateUser(userID uint32) error {
	err := s.slots.Do(func(tx *store.Tx[Session]) error {
		for _, sess := range tx.Scan(func(sess Session) bool { return sess.UserID == userID }) {
			tx.Take(int(sess.ID))
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}
	return nil
}

// CheckValidity confirms that claimedExpiry is exactly the stored session's expiry
// and returns the session's user. Any mismatch, including a token minted before the
// latest renewal, is ErrSessionInvalid.
func (s *Service) CheckValidity(sessionID uint32, claimedExpiry int64) (uint32, error) {
	sess, err := s.slots.Get(int(sessionID))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, ErrSessionNotFound
		}
		return 0, fmt.Errorf("%w: %v", ErrValidityCheckFailed, err)
	}

	if sess.ExpiresAt != claimedExpiry {
		return 0, ErrSessionInvalid
	}
	return sess.UserID, nil
}

// ForUser returns the current session of userID.
func (s *Service) ForUser(userID uint32) (Session, error) {
	found, err := s.slots.Scan(func(sess Session) bool { return sess.UserID == userID })
	if err != nil {
		return Session{}, fmt.Errorf("%w: %v", ErrValidityCheckFailed, err)
	}
	if len(found) == 0 {
		return Session{}, ErrSessionNotFound
	}
	return found[0], nil
}
