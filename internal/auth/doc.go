// Package auth authenticates HTTP requests with cookie-carried session tokens.
//
// # Tokens
//
// A token is an HS512 JWT whose subject is a session id and whose exp claim is
// that session's expiry in unix seconds:
//
//	codec, err := NewJWTCodec(secret, nil)
//	token, err := codec.Issue(Claims{SessionID: 4, ExpiresAt: exp})
//	claims, err := codec.Verify(token)
//
// Verify checks only signature and shape. A token is live when its expiry has
// not passed and it matches the stored session's expiry exactly, so renewing a
// session makes every earlier token for it stale.
//
// # Pipeline
//
// Three middleware stages share one Pipeline:
//
//   - Resolve reads the auth-token cookie, verifies it and checks the session.
//     It attaches an AuthContext on success or the reason on failure, and always
//     continues.
//   - Require stops requests Resolve could not authenticate, with Resolve's
//     error unchanged.
//   - Issue wraps login and registration. The handler names its user with
//     Claim; Issue then creates or renews the session and sets the cookie.
//
// Stages report errors through respond.Fail and never write error bodies.
package auth
