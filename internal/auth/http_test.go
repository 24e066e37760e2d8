// ABOUTME: Tests for the Resolve, Require and Issue middleware stages
// ABOUTME: Covers cookie resolution, stale and expired tokens, claims and handler failures

package auth

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/2389/coven-notes/internal/respond"
	"github.com/2389/coven-notes/internal/sessions"
)

const testValidity = 7 * 24 * time.Hour

var errHandlerConflict = errors.New("nickname already registered")

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

type pipelineFixture struct {
	clock    *fakeClock
	codec    *JWTCodec
	sessions *sessions.Service
	pipeline *Pipeline
	mapper   *respond.Mapper
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	clock := &fakeClock{now: time.Unix(1_700_000_000, 0)}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	codec, err := NewJWTCodec(tokenTestSecret, clock.Now)
	if err != nil {
		t.Fatalf("NewJWTCodec() error = %v", err)
	}
	svc := sessions.NewService(sessions.WithClock(clock.Now), sessions.WithLogger(logger))

	notAuthenticated := func(err error) respond.Rule {
		return respond.Rule{Err: err, Status: http.StatusForbidden, Code: respond.CodeNotAuthenticated}
	}
	mapper := respond.NewMapper(logger, []respond.Rule{
		{Err: errHandlerConflict, Status: http.StatusConflict, Code: respond.CodeRegistrationFailed},
		notAuthenticated(ErrMissingToken),
		notAuthenticated(ErrInvalidToken),
		notAuthenticated(ErrExpiredToken),
		notAuthenticated(ErrNotAuthenticated),
		notAuthenticated(ErrNoClaim),
		notAuthenticated(sessions.ErrSessionInvalid),
		notAuthenticated(sessions.ErrSessionNotFound),
	})

	return &pipelineFixture{
		clock:    clock,
		codec:    codec,
		sessions: svc,
		pipeline: NewPipeline(codec, svc, PipelineConfig{
			Validity: testValidity,
			Now:      clock.Now,
			Logger:   logger,
		}),
		mapper: mapper,
	}
}

// issue runs an Issue-wrapped handler that claims userID and returns the cookie.
func (f *pipelineFixture) issue(t *testing.T, userID uint32) *http.Cookie {
	t.Helper()
	h := f.mapper.Wrap(f.pipeline.Issue(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Claim(r, userID)
		respond.JSON(w, http.StatusOK, map[string]uint32{"id": userID})
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users/login", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("issue status = %d, body = %s", rec.Code, rec.Body.String())
	}
	for _, c := range rec.Result().Cookies() {
		if c.Name == CookieName {
			return c
		}
	}
	t.Fatal("no auth cookie set")
	return nil
}

// protected serves a Resolve+Require handler and reports the user it saw.
func (f *pipelineFixture) protected(cookie *http.Cookie) (*httptest.ResponseRecorder, *AuthContext) {
	var seen *AuthContext
	h := f.mapper.Wrap(f.pipeline.Resolve(f.pipeline.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = MustFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))))

	req := httptest.NewRequest(http.MethodGet, "/notes/list", nil)
	if cookie != nil {
		req.AddCookie(&http.Cookie{Name: cookie.Name, Value: cookie.Value})
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec, seen
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) respond.Code {
	t.Helper()
	var body respond.ErrorBody
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding error body %q: %v", rec.Body.String(), err)
	}
	return body.Error
}

func TestIssue_SetsCookie(t *testing.T) {
	f := newPipelineFixture(t)
	cookie := f.issue(t, 5)

	if !cookie.HttpOnly {
		t.Error("cookie is not HttpOnly")
	}
	if cookie.Path != "/" {
		t.Errorf("cookie path = %q, want /", cookie.Path)
	}
	if cookie.MaxAge != int(testValidity/time.Second) {
		t.Errorf("cookie MaxAge = %d, want %d", cookie.MaxAge, int(testValidity/time.Second))
	}
	if cookie.SameSite != http.SameSiteLaxMode {
		t.Errorf("cookie SameSite = %v, want Lax", cookie.SameSite)
	}

	claims, err := f.codec.Verify(cookie.Value)
	if err != nil {
		t.Fatalf("Verify() error = %v", err)
	}
	sess, err := f.sessions.ForUser(5)
	if err != nil {
		t.Fatalf("ForUser() error = %v", err)
	}
	if claims.SessionID != sess.ID || claims.ExpiresAt != sess.ExpiresAt {
		t.Errorf("claims = %+v, session = %+v", claims, sess)
	}
	if want := f.clock.Now().Add(testValidity).Unix(); claims.ExpiresAt != want {
		t.Errorf("ExpiresAt = %d, want %d", claims.ExpiresAt, want)
	}
}

func TestResolveRequire_ValidCookie(t *testing.T) {
	f := newPipelineFixture(t)
	cookie := f.issue(t, 5)

	rec, seen := f.protected(cookie)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	if seen == nil || seen.UserID != 5 {
		t.Errorf("AuthContext = %+v, want user 5", seen)
	}
}

func TestRequire_Rejects(t *testing.T) {
	f := newPipelineFixture(t)
	valid := f.issue(t, 5)

	forged, err := NewJWTCodec([]byte("attacker-controlled-secret-32byt"), nil)
	if err != nil {
		t.Fatalf("NewJWTCodec() error = %v", err)
	}
	forgedToken, _ := forged.Issue(Claims{SessionID: 0, ExpiresAt: f.clock.Now().Add(testValidity).Unix()})
	unknownSession, _ := f.codec.Issue(Claims{SessionID: 99, ExpiresAt: f.clock.Now().Add(testValidity).Unix()})
	wrongExpiry, _ := f.codec.Issue(Claims{SessionID: 0, ExpiresAt: f.clock.Now().Add(time.Hour).Unix()})

	tests := []struct {
		name   string
		cookie *http.Cookie
	}{
		{"no cookie", nil},
		{"empty cookie", &http.Cookie{Name: CookieName, Value: ""}},
		{"garbage", &http.Cookie{Name: CookieName, Value: "garbage"}},
		{"forged signature", &http.Cookie{Name: CookieName, Value: forgedToken}},
		{"unknown session", &http.Cookie{Name: CookieName, Value: unknownSession}},
		{"expiry mismatch", &http.Cookie{Name: CookieName, Value: wrongExpiry}},
		{"other cookie name", &http.Cookie{Name: "session", Value: valid.Value}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, seen := f.protected(tt.cookie)
			if rec.Code != http.StatusForbidden {
				t.Errorf("status = %d, want 403", rec.Code)
			}
			if code := errorCode(t, rec); code != respond.CodeNotAuthenticated {
				t.Errorf("code = %q, want not-authenticated", code)
			}
			if seen != nil {
				t.Error("protected handler ran")
			}
		})
	}
}

func TestRequire_ExpiredToken(t *testing.T) {
	f := newPipelineFixture(t)
	cookie := f.issue(t, 5)

	f.clock.Advance(testValidity + time.Second)

	var resolveErr error
	h := f.pipeline.Resolve(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		resolveErr = ResolveError(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: CookieName, Value: cookie.Value})
	h.ServeHTTP(httptest.NewRecorder(), req)

	if !errors.Is(resolveErr, ErrExpiredToken) {
		t.Errorf("ResolveError() = %v, want ErrExpiredToken", resolveErr)
	}

	rec, _ := f.protected(cookie)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestRequire_TokenAtExactExpiryIsLive(t *testing.T) {
	f := newPipelineFixture(t)
	cookie := f.issue(t, 5)

	f.clock.Advance(testValidity)

	rec, seen := f.protected(cookie)
	if rec.Code != http.StatusNoContent || seen == nil {
		t.Errorf("status = %d, want token still live at its expiry second", rec.Code)
	}
}

func TestIssue_RenewalMakesOldTokenStale(t *testing.T) {
	f := newPipelineFixture(t)
	first := f.issue(t, 5)

	f.clock.Advance(time.Hour)
	second := f.issue(t, 5)

	if rec, _ := f.protected(first); rec.Code != http.StatusForbidden {
		t.Errorf("old token status = %d, want 403", rec.Code)
	}
	if rec, seen := f.protected(second); rec.Code != http.StatusNoContent || seen.UserID != 5 {
		t.Errorf("new token status = %d, want 204", rec.Code)
	}

	firstClaims, _ := f.codec.Verify(first.Value)
	secondClaims, _ := f.codec.Verify(second.Value)
	if firstClaims.SessionID != secondClaims.SessionID {
		t.Errorf("renewal changed session id %d -> %d", firstClaims.SessionID, secondClaims.SessionID)
	}
}

func TestResolve_InvalidatedSession(t *testing.T) {
	f := newPipelineFixture(t)
	cookie := f.issue(t, 5)

	if err := f.sessions.InvalidateUser(5); err != nil {
		t.Fatalf("InvalidateUser() error = %v", err)
	}

	rec, _ := f.protected(cookie)
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403 after logout", rec.Code)
	}
}

func TestResolve_AlwaysContinues(t *testing.T) {
	f := newPipelineFixture(t)

	called := false
	h := f.pipeline.Resolve(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		if FromContext(r.Context()) != nil {
			t.Error("AuthContext attached without a cookie")
		}
		if !errors.Is(ResolveError(r.Context()), ErrMissingToken) {
			t.Errorf("ResolveError() = %v, want ErrMissingToken", ResolveError(r.Context()))
		}
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/users/me", nil))

	if !called {
		t.Error("Resolve did not call next")
	}
}

func TestRequire_WithoutResolve(t *testing.T) {
	f := newPipelineFixture(t)
	h := f.mapper.Wrap(f.pipeline.Require(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler ran without Resolve")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if code := errorCode(t, rec); code != respond.CodeNotAuthenticated {
		t.Errorf("code = %q, want not-authenticated", code)
	}
}

func TestIssue_NoClaim(t *testing.T) {
	f := newPipelineFixture(t)
	h := f.mapper.Wrap(f.pipeline.Issue(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond.JSON(w, http.StatusOK, map[string]string{"secret": "leak"})
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users/login", nil))

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if code := errorCode(t, rec); code != respond.CodeNotAuthenticated {
		t.Errorf("code = %q, want not-authenticated", code)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("cookie set without a claim")
	}
}

func TestIssue_HandlerErrorWins(t *testing.T) {
	f := newPipelineFixture(t)
	h := f.mapper.Wrap(f.pipeline.Issue(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respond.Fail(w, r, errHandlerConflict)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/users/register", nil))

	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
	if code := errorCode(t, rec); code != respond.CodeRegistrationFailed {
		t.Errorf("code = %q, want registration-failed", code)
	}
	if len(rec.Result().Cookies()) != 0 {
		t.Error("cookie set for a failed handler")
	}
	if _, err := f.sessions.ForUser(0); !errors.Is(err, sessions.ErrSessionNotFound) {
		t.Errorf("ForUser() error = %v, want no session created", err)
	}
}

func TestPipeline_ClearCookie(t *testing.T) {
	f := newPipelineFixture(t)
	rec := httptest.NewRecorder()
	f.pipeline.ClearCookie(rec)

	cookies := rec.Result().Cookies()
	if len(cookies) != 1 {
		t.Fatalf("got %d cookies, want 1", len(cookies))
	}
	if cookies[0].Name != CookieName || cookies[0].MaxAge >= 0 || cookies[0].Value != "" {
		t.Errorf("cookie = %+v, want expired %s", cookies[0], CookieName)
	}
}
