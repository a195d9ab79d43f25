// Copyright (C) The Ocean Data Platform Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/exec"
	"runtime"
	"sync"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/google/uuid"
	"github.com/oceandatahub/odp-go/ctxlog"
	"golang.org/x/oauth2"
)

// loginTimeout bounds how long the callback listener waits for the
// user to finish logging in.
const loginTimeout = 5 * time.Minute

// InteractiveProvider logs the user in via the system browser: it
// starts a localhost callback listener, sends the user to the
// identity provider's authorization URL, exchanges the returned code
// for tokens, and verifies the ID token against the issuer. The
// refresh token is used for subsequent renewals; the browser is only
// reopened when refreshing fails.
type InteractiveProvider struct {
	Issuer   string
	ClientID string
	Audience string
	Scopes   []string

	// Port for the localhost callback listener; 0 picks an
	// ephemeral port.
	Port int

	// OpenURL is called to direct the user's browser at the
	// login page. Defaults to the platform's opener (xdg-open,
	// open) plus printing the URL to stderr.
	OpenURL func(url string) error

	mtx      sync.Mutex
	conf     *oauth2.Config
	verifier *oidc.IDTokenVerifier
	tok      *oauth2.Token
}

func (p *InteractiveProvider) Token(ctx context.Context) (string, error) {
	tok, _, err := p.TokenExpiry(ctx)
	return tok, err
}

func (p *InteractiveProvider) TokenExpiry(ctx context.Context) (string, time.Time, error) {
	p.mtx.Lock()
	defer p.mtx.Unlock()

	if p.tok != nil && p.tok.Valid() {
		return p.tok.AccessToken, p.tok.Expiry, nil
	}
	if p.tok != nil && p.tok.RefreshToken != "" {
		tok, err := p.conf.TokenSource(ctx, p.tok).Token()
		if err == nil {
			p.tok = tok
			return tok.AccessToken, tok.Expiry, nil
		}
		ctxlog.FromContext(ctx).WithError(err).Debug("token refresh failed, starting new browser login")
	}
	if err := p.login(ctx); err != nil {
		return "", time.Time{}, &Error{Op: "interactive", Err: err}
	}
	return p.tok.AccessToken, p.tok.Expiry, nil
}

func (p *InteractiveProvider) setup(ctx context.Context, redirectURL string) error {
	provider, err := oidc.NewProvider(ctx, p.Issuer)
	if err != nil {
		return fmt.Errorf("issuer discovery failed: %w", err)
	}
	scopes := append([]string{oidc.ScopeOpenID, "offline_access"}, p.Scopes...)
	p.conf = &oauth2.Config{
		ClientID:    p.ClientID,
		Endpoint:    provider.Endpoint(),
		RedirectURL: redirectURL,
		Scopes:      scopes,
	}
	p.verifier = provider.Verifier(&oidc.Config{ClientID: p.ClientID})
	return nil
}

type callbackResult struct {
	code string
	err  error
}

func (p *InteractiveProvider) login(ctx context.Context) error {
	listener, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", p.Port))
	if err != nil {
		return fmt.Errorf("cannot start callback listener: %w", err)
	}
	defer listener.Close()

	redirectURL := fmt.Sprintf("http://%s/callback", listener.Addr().String())
	if err := p.setup(ctx, redirectURL); err != nil {
		return err
	}

	state := uuid.NewString()
	results := make(chan callbackResult, 1)
	srv := &http.Server{Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/callback" {
			http.NotFound(w, r)
			return
		}
		q := r.URL.Query()
		switch {
		case q.Get("state") != state:
			http.Error(w, "state mismatch", http.StatusBadRequest)
			results <- callbackResult{err: errors.New("state mismatch in login callback")}
		case q.Get("error") != "":
			http.Error(w, q.Get("error_description"), http.StatusForbidden)
			results <- callbackResult{err: fmt.Errorf("login rejected: %s", q.Get("error"))}
		default:
			fmt.Fprintln(w, "Login complete. You can close this window.")
			results <- callbackResult{code: q.Get("code")}
		}
	})}
	go srv.Serve(listener)
	defer srv.Close()

	var authparams []oauth2.AuthCodeOption
	if p.Audience != "" {
		authparams = append(authparams, oauth2.SetAuthURLParam("audience", p.Audience))
	}
	authURL := p.conf.AuthCodeURL(state, authparams...)
	p.openURL(ctx, authURL)

	timer := time.NewTimer(loginTimeout)
	defer timer.Stop()
	var result callbackResult
	select {
	case result = <-results:
	case <-timer.C:
		return errors.New("timed out waiting for browser login")
	case <-ctx.Done():
		return ctx.Err()
	}
	if result.err != nil {
		return result.err
	}

	tok, err := p.conf.Exchange(ctx, result.code)
	if err != nil {
		return fmt.Errorf("code exchange failed: %w", err)
	}
	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok {
		return errors.New("identity provider did not return an ID token")
	}
	if _, err := p.verifier.Verify(ctx, rawIDToken); err != nil {
		return fmt.Errorf("ID token verification failed: %w", err)
	}
	p.tok = tok
	return nil
}

func (p *InteractiveProvider) openURL(ctx context.Context, url string) {
	ctxlog.FromContext(ctx).Infof("To log in, open this URL in your browser:\n\n    %s\n", url)
	open := p.OpenURL
	if open == nil {
		open = systemOpenURL
	}
	if err := open(url); err != nil {
		ctxlog.FromContext(ctx).WithError(err).Debug("could not open browser")
	}
}

func systemOpenURL(url string) error {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("open", url).Start()
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url).Start()
	default:
		return exec.Command("xdg-open", url).Start()
	}
}
