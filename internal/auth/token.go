// ABOUTME: Session token codec: signs and verifies HS512 JWTs carrying session id and expiry
// ABOUTME: Checks signature and structure only; staleness is decided by the session service

package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token errors
var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token expired")
	ErrMissingClaim   = errors.New("missing required claim")
	ErrTokenIssue     = errors.New("token issue failed")
	ErrSecretTooShort = errors.New("jwt secret too short")
)

// MinSecretLength is the minimum signing secret size in bytes.
const MinSecretLength = 32

// Claims is what a session token asserts.
type Claims struct {
	SessionID uint32
	ExpiresAt int64 // unix seconds, compared exactly against the stored session
}

// TokenCodec issues and verifies session tokens.
type TokenCodec interface {
	Issue(claims Claims) (string, error)
	Verify(tokenString string) (Claims, error)
}

// JWTCodec implements TokenCodec with HS512 signed JWTs.
type JWTCodec struct {
	secret []byte
	now    func() time.Time
	parser *jwt.Parser
}

// NewJWTCodec creates a codec for the given secret.
func NewJWTCodec(secret []byte, now func() time.Time) (*JWTCodec, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrSecretTooShort, MinSecretLength, len(secret))
	}
	if now == nil {
		now = time.Now
	}
	return &JWTCodec{
		secret: secret,
		now:    now,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
			// exp is judged by the pipeline and the session store, not here
			jwt.WithoutClaimsValidation(),
		),
	}, nil
}

// Issue signs claims. The session id travels in "sub", the expiry in "exp".
func (c *JWTCodec) Issue(claims Claims) (string, error) {
	registered := jwt.RegisteredClaims{
		Subject:   strconv.FormatUint(uint64(claims.SessionID), 10),
		ExpiresAt: jwt.NewNumericDate(time.Unix(claims.ExpiresAt, 0)),
		IssuedAt:  jwt.NewNumericDate(c.now()),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS512, registered)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenIssue, err)
	}
	return signed, nil
}

// Verify checks the signature and shape of tokenString and returns its claims.
// It does not reject tokens whose expiry has passed.
func (c *JWTCodec) Verify(tokenString string) (Claims, error) {
	var registered jwt.RegisteredClaims
	token, err := c.parser.ParseWithClaims(tokenString, &registered, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return c.secret, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return Claims{}, ErrInvalidToken
	}

	if registered.Subject == "" {
		return Claims{}, fmt.Errorf("%w: sub", ErrMissingClaim)
	}
	sessionID, err := strconv.ParseUint(registered.Subject, 10, 32)
	if err != nil {
		return Claims{}, fmt.Errorf("%w: sub: %v", ErrInvalidToken, err)
	}
	if registered.ExpiresAt == nil {
		return Claims{}, fmt.Errorf("%w: exp", ErrMissingClaim)
	}

	return Claims{
		SessionID: uint32(sessionID),
		ExpiresAt: registered.ExpiresAt.Unix(),
	}, nil
}
