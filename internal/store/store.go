// ABOUTME: Generic slot store shared by the users, notes and sessions collections
// ABOUTME: Index-addressed records behind one mutex, with soft delete by emptying the slot

package store

import (
	"errors"
	"sync"
)

// ErrNotFound is returned when a slot is out of range or has been emptied
var ErrNotFound = errors.New("not found")

// ErrPoisoned is returned by every operation on a store whose lock holder panicked
// in the middle of a critical section. The store is never usable again.
var ErrPoisoned = errors.New("store poisoned")

// Slots is an ordered, growable sequence of optional records. A record's identity
// is its index. Indexes only grow and an emptied slot is never handed to another record.
type Slots[T any] struct {
	mu       sync.Mutex
	slots    []*T // nil means the slot was emptied
	poisoned bool
}

// New creates an empty store.
func New[T any]() *Slots[T] {
	return &Slots[T]{}
}

// Do runs fn while holding the store lock. Every read-modify-write sequence that
// must not interleave with other callers belongs inside a single Do.
// The Tx must not be retained after fn returns.
func (s *Slots[T]) Do(fn func(tx *Tx[T]) error) error {
	if err := s.acquire(); err != nil {
		return err
	}
	defer s.release()

	return fn(&Tx[T]{s: s})
}

func (s *Slots[T]) acquire() error {
	s.mu.Lock()
	if s.poisoned {
		s.mu.Unlock()
		return ErrPoisoned
	}
	return nil
}

// release must be deferred directly so recover sees a panicking holder.
func (s *Slots[T]) release() {
	if p := recover(); p != nil {
		s.poisoned = true
		s.mu.Unlock()
		panic(p)
	}
	s.mu.Unlock()
}

// Insert appends the record built by factory at index Len() and returns a copy.
func (s *Slots[T]) Insert(factory func(id int) T) (T, error) {
	var out T
	err := s.Do(func(tx *Tx[T]) error {
		out = tx.Insert(factory)
		return nil
	})
	return out, err
}

// Get returns a copy of the record at id.
func (s *Slots[T]) Get(id int) (T, error) {
	var out T
	err := s.Do(func(tx *Tx[T]) error {
		v, ok := tx.Get(id)
		if !ok {
			return ErrNotFound
		}
		out = v
		return nil
	})
	return out, err
}

// Replace swaps value into an occupied slot and returns the previous occupant.
func (s *Slots[T]) Replace(id int, value T) (T, error) {
	var old T
	err := s.Do(func(tx *Tx[T]) error {
		var err error
		old, err = tx.Replace(id, value)
		return err
	})
	return old, err
}

// Take empties the slot at id and returns what was there.
func (s *Slots[T]) Take(id int) (T, error) {
	var out T
	err := s.Do(func(tx *Tx[T]) error {
		v, ok := tx.Take(id)
		if !ok {
			return ErrNotFound
		}
		out = v
		return nil
	})
	return out, err
}

// Scan returns a snapshot of all occupied records matching pred, in index order.
// A nil pred matches everything.
func (s *Slots[T]) Scan(pred func(T) bool) ([]T, error) {
	var out []T
	err := s.Do(func(tx *Tx[T]) error {
		out = tx.Scan(pred)
		return nil
	})
	return out, err
}

// Modify rebuilds the record at id after authorize accepts it, all under one lock.
// When authorize rejects, its error is returned and the record is left untouched.
func (s *Slots[T]) Modify(id int, authorize func(T) error, rebuild func(T) T) (T, error) {
	var out T
	err := s.Do(func(tx *Tx[T]) error {
		var err error
		out, err = tx.Modify(id, authorize, rebuild)
		return err
	})
	return out, err
}

// TakeIf empties the slot at id after authorize accepts its occupant.
func (s *Slots[T]) TakeIf(id int, authorize func(T) error) (T, error) {
	var out T
	err := s.Do(func(tx *Tx[T]) error {
		var err error
		out, err = tx.TakeIf(id, authorize)
		return err
	})
	return out, err
}

// Len returns the number of slots ever allocated, including emptied ones.
func (s *Slots[T]) Len() (int, error) {
	var n int
	err := s.Do(func(tx *Tx[T]) error {
		n = tx.Len()
		return nil
	})
	return n, err
}
