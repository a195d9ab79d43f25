// Copyright (C) The Ocean Data Platform Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/oceandatahub/odp-go/ctxlog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// ClientCredentialsProvider implements the OAuth2 client-credential
// (service-to-service) flow. Either TokenURL or Issuer must be set;
// with only Issuer, the token endpoint is found via OIDC discovery.
type ClientCredentialsProvider struct {
	ClientID     string
	ClientSecret string

	// TokenURL is the identity provider's token endpoint.
	TokenURL string

	// Issuer is the OIDC issuer URL, used to discover TokenURL
	// when it is not set explicitly.
	Issuer string

	// Audience is sent as the "audience" token request parameter
	// when non-empty.
	Audience string

	Scopes []string

	mtx  sync.Mutex
	conf *clientcredentials.Config
}

// Identity returns a string identifying the credentials, suitable
// for TokenCache.Identity.
func (p *ClientCredentialsProvider) Identity() string {
	issuer := p.TokenURL
	if issuer == "" {
		issuer = p.Issuer
	}
	id := issuer + "|" + p.ClientID + "|" + p.Audience
	for _, s := range p.Scopes {
		id += "|" + s
	}
	return id
}

func (p *ClientCredentialsProvider) setup(ctx context.Context) error {
	if p.conf != nil {
		return nil
	}
	if p.ClientID == "" || p.ClientSecret == "" {
		return errors.New("client id and secret are required")
	}
	tokenURL := p.TokenURL
	if tokenURL == "" {
		if p.Issuer == "" {
			return errors.New("either token URL or issuer is required")
		}
		provider, err := oidc.NewProvider(ctx, p.Issuer)
		if err != nil {
			return err
		}
		tokenURL = provider.Endpoint().TokenURL
	}
	conf := &clientcredentials.Config{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		TokenURL:     tokenURL,
		Scopes:       p.Scopes,
	}
	if p.Audience != "" {
		conf.EndpointParams = url.Values{"audience": {p.Audience}}
	}
	p.conf = conf
	return nil
}

func (p *ClientCredentialsProvider) Token(ctx context.Context) (string, error) {
	tok, _, err := p.TokenExpiry(ctx)
	return tok, err
}

// TokenExpiry requests a fresh token from the identity provider. A
// transient failure is retried once; credential rejection is not.
func (p *ClientCredentialsProvider) TokenExpiry(ctx context.Context) (string, time.Time, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()
	if err := p.setup(ctx); err != nil {
		return "", time.Time{}, &Error{Op: "client-credentials", Err: err}
	}
	tok, err := p.conf.Token(ctx)
	if err != nil && retrievable(err) {
		ctxlog.FromContext(ctx).WithError(err).Debug("token request failed, retrying once")
		tok, err = p.conf.Token(ctx)
	}
	if err != nil {
		return "", time.Time{}, &Error{Op: "client-credentials", Err: err}
	}
	return tok.AccessToken, tok.Expiry, nil
}

// retrievable reports whether a token request failure might succeed
// on retry: transport failures are transient, explicit rejections
// from the identity provider are not.
func retrievable(err error) bool {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}
