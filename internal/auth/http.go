// ABOUTME: HTTP auth pipeline: Resolve, Require and Issue middleware stages
// ABOUTME: Resolves cookie tokens against live sessions and mints tokens after login/registration

package auth

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/2389/coven-notes/internal/respond"
	"github.com/2389/coven-notes/internal/sessions"
)

// Pipeline errors
var (
	ErrMissingToken     = errors.New("missing auth token")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrNoClaim          = errors.New("handler did not claim a user")
)

// SessionStore is the part of the session service the pipeline needs.
type SessionStore interface {
	CreateOrRenew(userID uint32, validity time.Duration) (sessions.Session, error)
	CheckValidity(sessionID uint32, claimedExpiry int64) (uint32, error)
}

// Pipeline holds the collaborators shared by the three middleware stages.
type Pipeline struct {
	codec    TokenCodec
	sessions SessionStore
	validity time.Duration
	cookie   CookieOptions
	now      func() time.Time
	logger   *slog.Logger
}

// PipelineConfig configures a Pipeline.
type PipelineConfig struct {
	// Validity is the session lifetime and the token cookie's max-age
	Validity time.Duration
	Cookie   CookieOptions
	// Now defaults to time.Now
	Now    func() time.Time
	Logger *slog.Logger
}

// NewPipeline creates the auth pipeline.
func NewPipeline(codec TokenCodec, store SessionStore, cfg PipelineConfig) *Pipeline {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Pipeline{
		codec:    codec,
		sessions: store,
		validity: cfg.Validity,
		cookie:   cfg.Cookie.normalize(),
		now:      cfg.Now,
		logger:   cfg.Logger.With("component", "auth"),
	}
}

// resolve turns the request's token cookie into an identity.
func (p *Pipeline) resolve(r *http.Request) (*AuthContext, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return nil, ErrMissingToken
	}

	claims, err := p.codec.Verify(cookie.Value)
	if err != nil {
		return nil, err
	}

	if claims.ExpiresAt < p.now().Unix() {
		return nil, ErrExpiredToken
	}

	userID, err := p.sessions.CheckValidity(claims.SessionID, claims.ExpiresAt)
	if err != nil {
		return nil, err
	}
	return &AuthContext{UserID: userID}, nil
}

// Resolve attaches either an AuthContext or the typed reason there is none, then
// always calls next. Optionally-authenticated routes use it on its own.
func (p *Pipeline) Resolve(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx, err := p.resolve(r)

		ctx := withResolution(r.Context(), resolution{auth: authCtx, err: err})
		if authCtx != nil {
			ctx = WithAuth(ctx, authCtx)
			respond.SetUser(r, authCtx.UserID)
		} else {
			p.logger.Debug("request not authenticated", "path", r.URL.Path, "reason", err)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Require rejects requests Resolve could not authenticate, propagating Resolve's
// error unchanged. It must run after Resolve.
func (p *Pipeline) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		res, ok := resolutionFrom(r.Context())
		if !ok {
			respond.Fail(w, r, ErrNotAuthenticated)
			return
		}
		if res.err != nil {
			respond.Fail(w, r, res.err)
			return
		}
		if res.auth == nil {
			respond.Fail(w, r, ErrNotAuthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Issue wraps login and registration handlers. After the handler succeeds and has
// called Claim, it creates or renews the user's session, signs a token and sets
// it as the auth cookie on the held-back response. A handler that fails keeps its
// own error; one that succeeds without claiming fails with ErrNoClaim.
func (p *Pipeline) Issue(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		slot := &claimSlot{}
		r = r.WithContext(context.WithValue(r.Context(), claimKey{}, slot))

		buf := newBufferedWriter()
		next.ServeHTTP(buf, r)

		if respond.Failed(r) || buf.status >= http.StatusBadRequest {
			buf.flushTo(w)
			return
		}

		userID, ok := slot.get()
		if !ok {
			respond.Fail(w, r, ErrNoClaim)
			return
		}

		session, err := p.sessions.CreateOrRenew(userID, p.validity)
		if err != nil {
			respond.Fail(w, r, err)
			return
		}

		token, err := p.codec.Issue(Claims{SessionID: session.ID, ExpiresAt: session.ExpiresAt})
		if err != nil {
			respond.Fail(w, r, err)
			return
		}

		http.SetCookie(w, p.cookie.build(token, p.validity))
		p.logger.Debug("token issued", "user_id", userID, "session_id", session.ID)
		buf.flushTo(w)
	})
}

// ClearCookie expires the auth cookie on the client.
func (p *Pipeline) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, p.cookie.clear())
}

// bufferedWriter holds a handler's response until Issue decides its fate.
type bufferedWriter struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func newBufferedWriter() *bufferedWriter {
	return &bufferedWriter{header: make(http.Header), status: http.StatusOK}
}

func (b *bufferedWriter) Header() http.Header {
	return b.header
}

func (b *bufferedWriter) WriteHeader(status int) {
	b.status = status
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	return b.body.Write(p)
}

func (b *bufferedWriter) flushTo(w http.ResponseWriter) {
	for k, vs := range b.header {
		for _, v := range vs {
			w.Header().Add(k, v)
		}
	}
	if b.body.Len() == 0 && b.status == http.StatusOK {
		return
	}
	w.WriteHeader(b.status)
	_, _ = w.Write(b.body.Bytes())
}
