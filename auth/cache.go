// Copyright (C) The Ocean Data Platform Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/oceandatahub/odp-go/ctxlog"
)

// DefaultExpiryMargin is how close to expiry a cached token may get
// before the next request triggers a refresh.
const DefaultExpiryMargin = 60 * time.Second

// TokenCache wraps a TokenProvider and caches its token until it is
// absent or within Margin of expiry. The cache is safe for
// concurrent use; refresh is serialized by a mutex, which is the
// only shared mutable state in the SDK.
//
// If CachePath is set, the token is also persisted there so separate
// processes can reuse it. A missing, corrupt, or cross-identity
// cache file is treated as a cache miss, never as an error.
type TokenCache struct {
	Provider TokenProvider

	// Margin defaults to DefaultExpiryMargin if zero.
	Margin time.Duration

	// CachePath is the optional on-disk cache file.
	CachePath string

	// Identity guards against cross-identity reuse of the disk
	// cache, e.g. "issuer|client-id|scope1 scope2". Leave empty
	// for single-identity setups.
	Identity string

	mtx      sync.Mutex
	token    string
	expiry   time.Time
	diskRead bool
}

// cacheFile is the on-disk representation.
type cacheFile struct {
	Token    string    `json:"token"`
	Expiry   time.Time `json:"expiry,omitempty"`
	Identity string    `json:"identity,omitempty"`
}

func (c *TokenCache) margin() time.Duration {
	if c.Margin > 0 {
		return c.Margin
	}
	return DefaultExpiryMargin
}

// fresh reports whether tok/expiry is usable now: a non-empty token
// whose expiry is further than Margin away. A token without a
// readable expiry is only kept when it came from a static provider;
// any other provider's tokens do expire eventually even if the
// issuer did not say when, so they are refreshed per call.
func (c *TokenCache) fresh(token string, expiry time.Time) bool {
	if token == "" {
		return false
	}
	if expiry.IsZero() {
		switch c.Provider.(type) {
		case StaticTokenProvider, *StaticTokenProvider:
			return true
		default:
			return false
		}
	}
	return time.Until(expiry) > c.margin()
}

// Token returns the cached token, refreshing via the wrapped
// provider when the cache is empty or near expiry.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if c.fresh(c.token, c.expiry) {
		return c.token, nil
	}
	if !c.diskRead {
		c.diskRead = true
		if tok, expiry, ok := c.loadDisk(); ok && c.fresh(tok, expiry) {
			c.token, c.expiry = tok, expiry
			return c.token, nil
		}
	}

	ctxlog.FromContext(ctx).Debug("refreshing auth token")
	var token string
	var expiry time.Time
	var err error
	if p, ok := c.Provider.(ExpiringTokenProvider); ok {
		token, expiry, err = p.TokenExpiry(ctx)
	} else {
		token, err = c.Provider.Token(ctx)
	}
	if err != nil {
		return "", err
	}
	if expiry.IsZero() {
		expiry = jwtExpiry(token)
	}
	c.token, c.expiry = token, expiry
	c.saveDisk()
	return c.token, nil
}

func (c *TokenCache) loadDisk() (string, time.Time, bool) {
	if c.CachePath == "" {
		return "", time.Time{}, false
	}
	buf, err := os.ReadFile(c.CachePath)
	if err != nil {
		return "", time.Time{}, false
	}
	var f cacheFile
	if json.Unmarshal(buf, &f) != nil || f.Token == "" {
		// Corrupt cache file is a cache miss, not fatal.
		return "", time.Time{}, false
	}
	if f.Identity != c.Identity {
		return "", time.Time{}, false
	}
	return f.Token, f.Expiry, true
}

// saveDisk persists the current token, best effort. Failure to write
// the cache never fails the token request.
func (c *TokenCache) saveDisk() {
	if c.CachePath == "" {
		return
	}
	buf, err := json.Marshal(cacheFile{Token: c.token, Expiry: c.expiry, Identity: c.Identity})
	if err != nil {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.CachePath), 0700); err != nil {
		return
	}
	if err := os.WriteFile(c.CachePath, buf, 0600); err != nil {
		ctxlog.FromContext(nil).WithError(err).Debug("could not write token cache file")
	}
}
