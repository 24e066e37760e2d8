// ABOUTME: Account service built on a slot store of users
// ABOUTME: Registration, login, edit, delete and password checks with bcrypt hashes

package users

import (
	"errors"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/2389/coven-notes/internal/store"
)

// User errors
var (
	ErrRegisterFailed     = errors.New("registration failed")
	ErrNicknameTaken      = errors.New("nickname already registered")
	ErrLoginFailed        = errors.New("login failed")
	ErrInvalidCredentials = errors.New("invalid nickname or password")
	ErrEditFailed         = errors.New("user edit failed")
	ErrEditNicknameTaken  = errors.New("nickname taken by another user")
	ErrNothingToEdit      = errors.New("no fields to edit")
	ErrDeleteFailed       = errors.New("user delete failed")
	ErrUserNotFound       = errors.New("user does not exist")
	ErrAuthFailed         = errors.New("user authentication failed")
	ErrWrongPassword      = errors.New("wrong password")
)

// dummyHash keeps login timing flat when the nickname is unknown.
const dummyHash = "$2a$10$N9qo8uLOickgx2ZMRZoMyeIjZAgcfl7p92ldGxad68LJZdL17lhWy"

// User is an account. ID is the user's slot index.
type User struct {
	ID           uint32
	Name         string
	Nickname     string
	PasswordHash string
}

// Registration holds the fields of a new account.
type Registration struct {
	Name     string
	Nickname string
	Password string
}

// Edit lists the fields to change on user ID. Nil fields are left as they are.
type Edit struct {
	ID          uint32
	Name        *string
	Nickname    *string
	NewPassword *string
}

func (e Edit) empty() bool {
	return e.Name == nil && e.Nickname == nil && e.NewPassword == nil
}

// Service manages accounts.
type Service struct {
	slots    *store.Slots[User]
	hashCost int
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithHashCost sets the bcrypt cost for new password hashes.
func WithHashCost(cost int) Option {
	return func(s *Service) {
		s.hashCost = cost
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger.With("component", "users")
	}
}

// NewService creates an account service with an empty store.
func NewService(opts ...Option) *Service {
	s := &Service{
		slots:    store.New[User](),
		hashCost: bcrypt.DefaultCost,
		logger:   slog.Default().With("component", "users"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

// Register creates an account. Nicknames are unique among live accounts.
func (s *Service) Register(reg Registration) (User, error) {
	// hash before taking the lock so bcrypt never runs inside the critical section
	hash, err := s.hash(reg.Password)
	if err != nil {
		return User{}, fmt.Errorf("%w: hashing password: %v", ErrRegisterFailed, err)
	}

	var out User
	err = s.slots.Do(func(tx *store.Tx[User]) error {
		if tx.Any(func(u User) bool { return u.Nickname == reg.Nickname }) {
			return ErrNicknameTaken
		}
		out = tx.Insert(func(id int) User {
			return User{
				ID:           uint32(id),
				Name:         reg.Name,
				Nickname:     reg.Nickname,
				PasswordHash: hash,
			}
		})
		return nil
	})
	if err != nil {
		return User{}, opFailed(err, ErrRegisterFailed)
	}

	s.logger.Info("user registered", "user_id", out.ID, "nickname", out.Nickname)
	return out, nil
}

// Login finds the account by nickname and checks its password. Unknown nicknames
// and wrong passwords are both reported as ErrInvalidCredentials.
func (s *Service) Login(nickname, password string) (User, error) {
	var user User
	var found bool
	err := s.slots.Do(func(tx *store.Tx[User]) error {
		user, found = tx.Find(func(u User) bool { return u.Nickname == nickname })
		return nil
	})
	if err != nil {
		return User{}, fmt.Errorf("%w: %v", ErrLoginFailed, err)
	}

	if !found {
		_ = bcrypt.CompareHashAndPassword([]byte(dummyHash), []byte(password))
		return User{}, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrInvalidCredentials
	}
	return user, nil
}

// Authenticate checks password against the account id.
func (s *Service) Authenticate(id uint32, password string) error {
	user, err := s.slots.Get(int(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return ErrWrongPassword
	}
	return nil
}

// Get returns the account id.
func (s *Service) Get(id uint32) (User, error) {
	user, err := s.slots.Get(int(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("%w: %v", ErrAuthFailed, err)
	}
	return user, nil
}

// Edit applies the non-nil fields of e. The nickname check and the rewrite of the
// record happen under one lock so two edits cannot both claim a nickname.
func (s *Service) Edit(e Edit) (User, error) {
	if e.empty() {
		return User{}, ErrNothingToEdit
	}

	var newHash string
	if e.NewPassword != nil {
		h, err := s.hash(*e.NewPassword)
		if err != nil {
			return User{}, fmt.Errorf("%w: hashing password: %v", ErrEditFailed, err)
		}
		newHash = h
	}

	var out User
	err := s.slots.Do(func(tx *store.Tx[User]) error {
		if e.Nickname != nil {
			taken := tx.Any(func(u User) bool {
				return u.Nickname == *e.Nickname && u.ID != e.ID
			})
			if taken {
				return ErrEditNicknameTaken
			}
		}

		edited, err := tx.Modify(int(e.ID), nil, func(u User) User {
			if e.Name != nil {
				u.Name = *e.Name
			}
			if e.Nickname != nil {
				u.Nickname = *e.Nickname
			}
			if newHash != "" {
				u.PasswordHash = newHash
			}
			return u
		})
		if errors.Is(err, store.ErrNotFound) {
			return ErrUserNotFound
		}
		out = edited
		return err
	})
	if err != nil {
		return User{}, opFailed(err, ErrEditFailed)
	}
	return out, nil
}

// Delete removes the account id and returns it. Sessions are not touched;
// callers invalidate them separately.
func (s *Service) Delete(id uint32) (User, error) {
	user, err := s.slots.Take(int(id))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return User{}, ErrUserNotFound
		}
		return User{}, fmt.Errorf("%w: %v", ErrDeleteFailed, err)
	}

	s.logger.Info("user deleted", "user_id", id)
	return user, nil
}

// opFailed wraps store failures in the operation's own error and passes domain
// errors through unchanged.
func opFailed(err, op error) error {
	if errors.Is(err, store.ErrPoisoned) {
		return fmt.Errorf("%w: %v", op, err)
	}
	return err
}
