// ABOUTME: Lock-held view of a slot store used inside Slots.Do
// ABOUTME: Lets callers compose check-then-write sequences without releasing the lock

package store

// Tx operates on a store whose lock is already held.
type Tx[T any] struct {
	s *Slots[T]
}

func (tx *Tx[T]) slot(id int) *T {
	if id < 0 || id >= len(tx.s.slots) {
		return nil
	}
	return tx.s.slots[id]
}

// Len returns the next index Insert will use.
func (tx *Tx[T]) Len() int {
	return len(tx.s.slots)
}

// Insert builds a record for the next index and appends it.
func (tx *Tx[T]) Insert(factory func(id int) T) T {
	v := factory(len(tx.s.slots))
	tx.s.slots = append(tx.s.slots, &v)
	return v
}

// Get returns a copy of the occupant of id.
func (tx *Tx[T]) Get(id int) (T, bool) {
	p := tx.slot(id)
	if p == nil {
		var zero T
		return zero, false
	}
	return *p, true
}

// Replace swaps value into the occupied slot id and returns the old occupant.
func (tx *Tx[T]) Replace(id int, value T) (T, error) {
	p := tx.slot(id)
	if p == nil {
		var zero T
		return zero, ErrNotFound
	}
	old := *p
	tx.s.slots[id] = &value
	return old, nil
}

// Take empties slot id and returns its occupant.
func (tx *Tx[T]) Take(id int) (T, bool) {
	p := tx.slot(id)
	if p == nil {
		var zero T
		return zero, false
	}
	tx.s.slots[id] = nil
	return *p, true
}

// Find returns the first occupant, in index order, matching pred.
func (tx *Tx[T]) Find(pred func(T) bool) (T, bool) {
	for _, p := range tx.s.slots {
		if p != nil && pred(*p) {
			return *p, true
		}
	}
	var zero T
	return zero, false
}

// Any reports whether some occupant matches pred.
func (tx *Tx[T]) Any(pred func(T) bool) bool {
	_, ok := tx.Find(pred)
	return ok
}

// Scan copies out every occupant matching pred. A nil pred matches everything.
func (tx *Tx[T]) Scan(pred func(T) bool) []T {
	out := make([]T, 0)
	for _, p := range tx.s.slots {
		if p == nil {
			continue
		}
		if pred == nil || pred(*p) {
			out = append(out, *p)
		}
	}
	return out
}

// Modify authorizes, rebuilds and puts back the record at id.
func (tx *Tx[T]) Modify(id int, authorize func(T) error, rebuild func(T) T) (T, error) {
	p := tx.slot(id)
	if p == nil {
		var zero T
		return zero, ErrNotFound
	}
	if authorize != nil {
		if err := authorize(*p); err != nil {
			var zero T
			return zero, err
		}
	}
	next := rebuild(*p)
	tx.s.slots[id] = &next
	return next, nil
}

// TakeIf empties slot id once authorize accepts its occupant.
func (tx *Tx[T]) TakeIf(id int, authorize func(T) error) (T, error) {
	p := tx.slot(id)
	if p == nil {
		var zero T
		return zero, ErrNotFound
	}
	if authorize != nil {
		if err := authorize(*p); err != nil {
			var zero T
			return zero, err
		}
	}
	tx.s.slots[id] = nil
	return *p, nil
}
