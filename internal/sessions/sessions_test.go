// ABOUTME: Tests for the session service
// ABOUTME: Covers renewal, idempotent invalidation and exact-expiry validity checks

package sessions

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestService() (*Service, *fakeClock) {
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	return NewService(WithClock(clock.Now)), clock
}

const week = 7 * 24 * time.Hour

func TestCreateOrRenew_NewSession(t *testing.T) {
	svc, clock := newTestService()

	sess, err := svc.CreateOrRenew(7, week)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), sess.ID)
	assert.Equal(t, uint32(7), sess.UserID)
	assert.Equal(t, clock.Now().Add(week).Unix(), sess.ExpiresAt)

	other, err := svc.CreateOrRenew(8, week)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), other.ID)
}

func TestCreateOrRenew_RenewKeepsIdentity(t *testing.T) {
	svc, clock := newTestService()

	first, err := svc.CreateOrRenew(3, week)
	require.NoError(t, err)

	clock.Advance(time.Hour)
	second, err := svc.CreateOrRenew(3, week)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.UserID, second.UserID)
	assert.Equal(t, first.ExpiresAt+3600, second.ExpiresAt)

	stored, err := svc.ForUser(3)
	require.NoError(t, err)
	assert.Equal(t, second, stored, "renewal must be written back to the store")
}

func TestCreateOrRenew_OneSessionPerUser(t *testing.T) {
	svc, clock := newTestService()

	var wg sync.WaitGroup
	for range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.CreateOrRenew(5, week)
		}()
	}
	wg.Wait()
	clock.Advance(time.Minute)
	_, err := svc.CreateOrRenew(5, week)
	require.NoError(t, err)

	held, err := svc.slots.Scan(func(s Session) bool { return s.UserID == 5 })
	require.NoError(t, err)
	assert.Len(t, held, 1)
}

func TestCheckValidity(t *testing.T) {
	svc, _ := newTestService()
	sess, err := svc.CreateOrRenew(11, week)
	require.NoError(t, err)

	userID, err := svc.CheckValidity(sess.ID, sess.ExpiresAt)
	require.NoError(t, err)
	assert.Equal(t, uint32(11), userID)

	_, err = svc.CheckValidity(sess.ID, sess.ExpiresAt-1)
	assert.ErrorIs(t, err, ErrSessionInvalid)

	_, err = svc.CheckValidity(99, sess.ExpiresAt)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

// Exact equality is deliberate: renewing a session retires every token minted
// before it, even ones whose absolute expiry is still in the future.
func TestCheckValidity_StaleAfterRenewal(t *testing.T) {
	svc, clock := newTestService()

	before, err := svc.CreateOrRenew(2, week)
	require.NoError(t, err)

	clock.Advance(time.Second)
	after, err := svc.CreateOrRenew(2, week)
	require.NoError(t, err)
	require.NotEqual(t, before.ExpiresAt, after.ExpiresAt)

	_, err = svc.CheckValidity(before.ID, before.ExpiresAt)
	assert.ErrorIs(t, err, ErrSessionInvalid, "older claim must fail even though it has not expired")

	userID, err := svc.CheckValidity(after.ID, after.ExpiresAt)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), userID)
}

func TestInvalidate_Idempotent(t *testing.T) {
	svc, _ := newTestService()
	sess, _ := svc.CreateOrRenew(1, week)

	require.NoError(t, svc.Invalidate(sess.ID))
	require.NoError(t, svc.Invalidate(sess.ID))
	require.NoError(t, svc.Invalidate(12345), "unknown session ids succeed silently")

	_, err := svc.CheckValidity(sess.ID, sess.ExpiresAt)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestInvalidateUser(t *testing.T) {
	svc, _ := newTestService()
	a, _ := svc.CreateOrRenew(1, week)
	b, _ := svc.CreateOrRenew(2, week)

	require.NoError(t, svc.InvalidateUser(1))
	require.NoError(t, svc.InvalidateUser(1))

	_, err := svc.CheckValidity(a.ID, a.ExpiresAt)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = svc.CheckValidity(b.ID, b.ExpiresAt)
	assert.NoError(t, err)

	// a fresh login after logout gets a new slot, never the emptied one
	c, err := svc.CreateOrRenew(1, week)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), c.ID)
}

func TestForUser_NotFound(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.ForUser(9)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}
