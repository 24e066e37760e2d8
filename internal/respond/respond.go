// ABOUTME: Error/response mapper: carries internal errors up to the edge of the stack
// ABOUTME: Classifies them into client-safe codes once and logs every request

package respond

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrBadRequest is returned when a request body or parameter cannot be decoded
var ErrBadRequest = errors.New("bad request")

// Code is a client-facing error code. Clients only ever see one of these.
type Code string

// Client error codes
const (
	CodeRegistrationFailed Code = "registration-failed"
	CodeLoginFailed        Code = "login-failed"
	CodeNotAuthenticated   Code = "not-authenticated"
	CodeNoRights           Code = "no-rights"
	CodeInvalidParameters  Code = "invalid-parameters"
	CodeServiceError       Code = "service-error"
)

// Rule maps every error matching Err (via errors.Is) to a status and code.
type Rule struct {
	Err    error
	Status int
	Code   Code
}

// ErrorBody is the JSON body written for failed requests.
type ErrorBody struct {
	Error Code `json:"error"`
}

// RequestIDHeader carries the request id back to the client.
const RequestIDHeader = "X-Request-Id"

const slogKeyError = "error"

// carrier travels down the request in its context and brings errors and the
// resolved user id back up to the Mapper.
type carrier struct {
	mu     sync.Mutex
	err    error
	userID uint32
	hasID  bool
}

type carrierKey struct{}

func carrierFrom(ctx context.Context) *carrier {
	c, _ := ctx.Value(carrierKey{}).(*carrier)
	return c
}

// Fail attaches err to the request. The first error wins. Without a Mapper in the
// chain the error is written immediately as a service error.
func Fail(w http.ResponseWriter, r *http.Request, err error) {
	c := carrierFrom(r.Context())
	if c == nil {
		writeError(w, http.StatusInternalServerError, CodeServiceError)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		c.err = err
	}
}

// Failed reports whether an error has been attached to the request.
func Failed(r *http.Request) bool {
	c := carrierFrom(r.Context())
	if c == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err != nil
}

// SetUser records the resolved user id for the request log.
func SetUser(r *http.Request, userID uint32) {
	c := carrierFrom(r.Context())
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID, c.hasID = userID, true
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code Code) {
	JSON(w, status, ErrorBody{Error: code})
}

// Mapper is the outermost middleware. It turns an attached error into a
// client-safe response and logs the full detail server-side.
type Mapper struct {
	rules  []Rule
	logger *slog.Logger
}

// NewMapper creates a Mapper. Rules are tried in order; unmatched errors become
// service errors.
func NewMapper(logger *slog.Logger, rules []Rule) *Mapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Mapper{
		rules:  rules,
		logger: logger.With("component", "http"),
	}
}

// Classify returns the status and client code for err.
func (m *Mapper) Classify(err error) (int, Code) {
	for _, rule := range m.rules {
		if errors.Is(err, rule.Err) {
			return rule.Status, rule.Code
		}
	}
	return http.StatusInternalServerError, CodeServiceError
}

// Wrap installs the error carrier and maps the final outcome of next.
func (m *Mapper) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		w.Header().Set(RequestIDHeader, requestID)

		c := &carrier{}
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), carrierKey{}, c)))

		c.mu.Lock()
		err, userID, hasID := c.err, c.userID, c.hasID
		c.mu.Unlock()

		status := rec.status
		var code Code
		if err != nil {
			var mapped int
			mapped, code = m.Classify(err)
			if !rec.wrote {
				writeError(w, mapped, code)
				status = mapped
			}
		}

		attrs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", status,
			"duration", time.Since(start),
		}
		if hasID {
			attrs = append(attrs, "user_id", userID)
		}

		switch {
		case err == nil:
			m.logger.Info("request", attrs...)
		case code == CodeServiceError:
			attrs = append(attrs, slogKeyError, err.Error(), "client_error", string(code))
			m.logger.Error("request failed", attrs...)
		default:
			attrs = append(attrs, slogKeyError, err.Error(), "client_error", string(code))
			m.logger.Warn("request failed", attrs...)
		}
	})
}

// statusRecorder remembers the status written by inner handlers.
type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (s *statusRecorder) WriteHeader(status int) {
	if !s.wrote {
		s.status = status
		s.wrote = true
	}
	s.ResponseWriter.WriteHeader(status)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	s.wrote = true
	return s.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
