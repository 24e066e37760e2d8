// ABOUTME: Authentication context for tracking identity through request handlers
// ABOUTME: Provides WithAuth/FromContext plus the resolution and claim slots used by the pipeline

package auth

import (
	"context"
	"net/http"
	"sync"

	"github.com/2389/coven-notes/internal/respond"
)

// AuthContext holds the authenticated identity resolved from a request's token.
type AuthContext struct {
	UserID uint32
}

// authContextKey is the key type for storing AuthContext in context.Context.
type authContextKey struct{}

// WithAuth returns a new context with the AuthContext attached.
func WithAuth(ctx context.Context, auth *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, auth)
}

// FromContext retrieves the AuthContext from the context, returning nil if not present.
func FromContext(ctx context.Context) *AuthContext {
	auth, ok := ctx.Value(authContextKey{}).(*AuthContext)
	if !ok {
		return nil
	}
	return auth
}

// MustFromContext retrieves the AuthContext from the context, panicking if not present.
func MustFromContext(ctx context.Context) *AuthContext {
	auth := FromContext(ctx)
	if auth == nil {
		panic("auth: AuthContext not found in context")
	}
	return auth
}

// resolution is Resolve's verdict: an identity or the reason there is none.
type resolution struct {
	auth *AuthContext
	err  error
}

type resolutionKey struct{}

func withResolution(ctx context.Context, res resolution) context.Context {
	return context.WithValue(ctx, resolutionKey{}, res)
}

func resolutionFrom(ctx context.Context) (resolution, bool) {
	res, ok := ctx.Value(resolutionKey{}).(resolution)
	return res, ok
}

// ResolveError returns the reason Resolve could not authenticate the request,
// or nil when it did (or never ran).
func ResolveError(ctx context.Context) error {
	res, _ := resolutionFrom(ctx)
	return res.err
}

// claimSlot is where a token-issuing handler names the user it authenticated.
type claimSlot struct {
	mu     sync.Mutex
	userID uint32
	set    bool
}

type claimKey struct{}

func (c *claimSlot) get() (uint32, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.userID, c.set
}

// Claim is called by login and registration handlers once they have identified
// the user; Issue then creates the session and sets the token cookie. It reports
// false when the route is not wrapped by Issue.
func Claim(r *http.Request, userID uint32) bool {
	slot, ok := r.Context().Value(claimKey{}).(*claimSlot)
	if !ok {
		return false
	}
	slot.mu.Lock()
	slot.userID, slot.set = userID, true
	slot.mu.Unlock()

	respond.SetUser(r, userID)
	return true
}
