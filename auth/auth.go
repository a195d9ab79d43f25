// Copyright (C) The Ocean Data Platform Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

// Package auth provides bearer-token providers for the Ocean Data
// Platform API: a static API key, the OAuth2 client-credential flow
// for service-to-service use, and an interactive browser login.
//
// Providers return raw token strings; the odp transport adds the
// "Bearer " prefix. Wrap a provider in a TokenCache to avoid hitting
// the identity provider on every request.
package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// A TokenProvider obtains bearer tokens for API requests.
type TokenProvider interface {
	// Token returns a token valid for use now. Implementations
	// may fetch, refresh or prompt as needed.
	Token(ctx context.Context) (string, error)
}

// An ExpiringTokenProvider additionally reports when the returned
// token expires, so callers can refresh proactively.
type ExpiringTokenProvider interface {
	TokenProvider
	// TokenExpiry returns a token and its expiry instant. A zero
	// expiry means the token does not expire.
	TokenExpiry(ctx context.Context) (string, time.Time, error)
}

// Error indicates that credentials were rejected or the identity
// provider could not be reached.
type Error struct {
	Op  string // flow that failed, e.g. "client-credentials"
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("auth: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// StaticTokenProvider supplies a fixed API key or pre-issued bearer
// token. It never refreshes.
type StaticTokenProvider struct {
	TokenString string
}

func (p StaticTokenProvider) Token(ctx context.Context) (string, error) {
	if p.TokenString == "" {
		return "", &Error{Op: "static", Err: fmt.Errorf("no token configured")}
	}
	return p.TokenString, nil
}

// TokenExpiry returns the configured token and the expiry embedded
// in it, if it is a JWT with an exp claim; otherwise the token never
// expires from the client's point of view.
func (p StaticTokenProvider) TokenExpiry(ctx context.Context) (string, time.Time, error) {
	tok, err := p.Token(ctx)
	if err != nil {
		return "", time.Time{}, err
	}
	return tok, jwtExpiry(tok), nil
}

// jwtExpiry returns the exp claim of a JWT bearer token, without
// verifying the signature (the client is not the token's audience
// verifier, it only schedules refreshes). Returns the zero time when
// the token is not a JWT or carries no exp claim.
func jwtExpiry(token string) time.Time {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
