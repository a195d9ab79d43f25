// Copyright (C) The Ocean Data Platform Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package odp

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// TransactionError carries the details of a failed API transaction:
// the request method and URL, the HTTP status, and whatever message
// the server included in the response body.
type TransactionError struct {
	Method     string
	URL        url.URL
	StatusCode int
	Status     string
	Message    string
}

func (e *TransactionError) Error() (s string) {
	s = fmt.Sprintf("request failed: %s %s", e.Method, e.URL.String())
	if e.Status != "" {
		s = s + ": " + e.Status
	}
	if e.Message != "" {
		s = s + ": " + e.Message
	}
	return
}

// AuthError indicates bad or expired credentials, or an identity
// provider that rejected them (HTTP 401/403).
type AuthError struct{ TransactionError }

// NotFoundError indicates an absent resource, file or schema (HTTP
// 404).
type NotFoundError struct{ TransactionError }

// ConflictError indicates a duplicate name or id (HTTP 409).
type ConflictError struct{ TransactionError }

// ValidationError indicates a malformed request or manifest, either
// rejected by the server (HTTP 4xx) or caught client-side before a
// request was sent (StatusCode == 0).
type ValidationError struct{ TransactionError }

// ServiceError indicates an upstream failure (HTTP 5xx) or
// throttling that persisted through the configured retries (HTTP
// 429).
type ServiceError struct{ TransactionError }

// NetworkError indicates the request never produced an HTTP
// response: connection failure, timeout, or exhausted transport
// retries.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("request failed: %s %s: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// errorEnvelope matches the message shapes the API uses in error
// response bodies.
type errorEnvelope struct {
	Error  json.RawMessage `json:"error"`
	Detail json.RawMessage `json:"detail"`
}

func errorMessage(buf []byte) string {
	var env errorEnvelope
	if json.Unmarshal(buf, &env) != nil {
		return string(buf)
	}
	for _, raw := range []json.RawMessage{env.Error, env.Detail} {
		if len(raw) == 0 {
			continue
		}
		var s string
		if json.Unmarshal(raw, &s) == nil {
			return s
		}
		return string(raw)
	}
	return string(buf)
}

// newTransactionError maps a non-2xx response to the typed error for
// its status class.
func newTransactionError(req *http.Request, resp *http.Response, buf []byte) error {
	te := TransactionError{
		Method:     req.Method,
		URL:        *req.URL,
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Message:    errorMessage(buf),
	}
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &AuthError{te}
	case resp.StatusCode == http.StatusNotFound:
		return &NotFoundError{te}
	case resp.StatusCode == http.StatusConflict:
		return &ConflictError{te}
	case resp.StatusCode == http.StatusTooManyRequests:
		// Throttling that survived the retry budget is a
		// service-side condition, not a caller mistake.
		return &ServiceError{te}
	case resp.StatusCode >= 400 && resp.StatusCode < 500:
		return &ValidationError{te}
	default:
		return &ServiceError{te}
	}
}

// newValidationError reports a client-side validation failure, i.e.
// one detected before any request was sent.
func newValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{TransactionError{Message: fmt.Sprintf(format, args...)}}
}

// newAuthError reports a credential failure that occurred while
// obtaining a token, before the API request could be made.
func newAuthError(method string, u *url.URL, err error) *AuthError {
	e := &AuthError{TransactionError{Method: method, Message: err.Error()}}
	if u != nil {
		e.URL = *u
	}
	return e
}
