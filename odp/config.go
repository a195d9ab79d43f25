// Copyright (C) The Ocean Data Platform Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package odp

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ghodss/yaml"
	"github.com/oceandatahub/odp-go/auth"
)

// Settings is the client configuration read from the optional
// settings file and the ODP_* environment variables. Environment
// variables take precedence over the file.
type Settings struct {
	// BaseURL of the API. ODP_BASE_URL.
	BaseURL string `json:"base_url,omitempty"`

	// APIKey is a static bearer token. ODP_API_KEY. When set, it
	// wins over the client-credential fields.
	APIKey string `json:"api_key,omitempty"`

	// Client-credential flow. ODP_CLIENT_ID, ODP_CLIENT_SECRET,
	// ODP_TOKEN_URL, ODP_AUTH_ISSUER, ODP_AUDIENCE, ODP_SCOPES
	// (space separated).
	ClientID     string   `json:"client_id,omitempty"`
	ClientSecret string   `json:"client_secret,omitempty"`
	TokenURL     string   `json:"token_url,omitempty"`
	AuthIssuer   string   `json:"auth_issuer,omitempty"`
	Audience     string   `json:"audience,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`

	// TokenCache is the path of the on-disk token cache file.
	// ODP_TOKEN_CACHE. Empty disables the disk cache.
	TokenCache string `json:"token_cache,omitempty"`

	// Insecure accepts unverified TLS certificates.
	// ODP_INSECURE=1/true/yes.
	Insecure bool `json:"insecure,omitempty"`
}

// DefaultSettingsPath returns the default settings file location,
// $HOME/.config/odp/settings.yml.
func DefaultSettingsPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "odp", "settings.yml")
}

// LoadSettings reads a YAML settings file. A missing file yields
// zero settings, not an error.
func LoadSettings(path string) (*Settings, error) {
	s := &Settings{}
	buf, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return s, nil
	} else if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(buf, s); err != nil {
		return nil, fmt.Errorf("invalid settings file %s: %w", path, err)
	}
	return s, nil
}

func boolish(s string) bool {
	switch strings.ToLower(s) {
	case "1", "yes", "true":
		return true
	default:
		return false
	}
}

// applyEnv overrides settings from ODP_* environment variables.
func (s *Settings) applyEnv() {
	for _, v := range []struct {
		name string
		dst  *string
	}{
		{"ODP_BASE_URL", &s.BaseURL},
		{"ODP_API_KEY", &s.APIKey},
		{"ODP_CLIENT_ID", &s.ClientID},
		{"ODP_CLIENT_SECRET", &s.ClientSecret},
		{"ODP_TOKEN_URL", &s.TokenURL},
		{"ODP_AUTH_ISSUER", &s.AuthIssuer},
		{"ODP_AUDIENCE", &s.Audience},
		{"ODP_TOKEN_CACHE", &s.TokenCache},
	} {
		if val := os.Getenv(v.name); val != "" {
			*v.dst = val
		}
	}
	if val := os.Getenv("ODP_SCOPES"); val != "" {
		s.Scopes = strings.Fields(val)
	}
	if val := os.Getenv("ODP_INSECURE"); val != "" {
		s.Insecure = boolish(val)
	}
}

// TokenProvider builds the token provider the settings describe: a
// static provider for an API key, otherwise the client-credential
// flow wrapped in a near-expiry cache. Returns nil if no credentials
// are configured.
func (s *Settings) TokenProvider() TokenProvider {
	if s.APIKey != "" {
		return &auth.TokenCache{Provider: auth.StaticTokenProvider{TokenString: s.APIKey}}
	}
	if s.ClientID != "" {
		provider := &auth.ClientCredentialsProvider{
			ClientID:     s.ClientID,
			ClientSecret: s.ClientSecret,
			TokenURL:     s.TokenURL,
			Issuer:       s.AuthIssuer,
			Audience:     s.Audience,
			Scopes:       s.Scopes,
		}
		return &auth.TokenCache{
			Provider:  provider,
			CachePath: s.TokenCache,
			Identity:  provider.Identity(),
		}
	}
	return nil
}

// Client builds a Client from the settings.
func (s *Settings) Client() *Client {
	return &Client{
		BaseURL:       s.BaseURL,
		TokenProvider: s.TokenProvider(),
		Insecure:      s.Insecure,
		Timeout:       5 * time.Minute,
	}
}

// NewClientFromConfig creates a Client from the given settings file,
// with ODP_* environment variables taking precedence.
func NewClientFromConfig(path string) (*Client, error) {
	s, err := LoadSettings(path)
	if err != nil {
		return nil, err
	}
	s.applyEnv()
	return s.Client(), nil
}

// NewClientFromEnv creates a Client from the default settings file
// (if present) and the ODP_* environment variables.
func NewClientFromEnv() (*Client, error) {
	return NewClientFromConfig(DefaultSettingsPath())
}
