// Package store provides the in-memory slot store behind every mutable collection
// of coven-notes: users, notes and sessions.
//
// # Model
//
// A store is an ordered sequence of optional records guarded by one mutex:
//
//	slots := store.New[Session]()
//	s, err := slots.Insert(func(id int) Session { return Session{ID: uint32(id)} })
//
// The index of a slot is the record's identity. Inserts always append, so ids
// are handed out as 0, 1, 2, ... and never reused. Deleting a record empties its
// slot; the slot stays empty forever.
//
// # Critical Sections
//
// Single operations (Insert, Get, Replace, Take, Scan) each take the lock once.
// Sequences that must observe and mutate consistently run inside Do:
//
//	err := slots.Do(func(tx *store.Tx[User]) error {
//	    if tx.Any(sameNickname) {
//	        return ErrNicknameTaken
//	    }
//	    tx.Insert(newUser)
//	    return nil
//	})
//
// Modify and TakeIf implement the authorized take-modify-replace pattern used
// for ownership checks: the authorize callback sees the current record and may
// veto the change while the lock is held.
//
// # Errors
//
//   - ErrNotFound: index out of range or slot emptied
//   - ErrPoisoned: a callback panicked while holding the lock; the store refuses
//     all further work and callers report their own "operation failed" error
//
// # Limitations
//
// Emptied slots are never reclaimed, so memory grows with the number of records
// ever created. Nothing is persisted; a restart clears every store.
package store
