// Copyright (C) The Ocean Data Platform Authors. All rights reserved.
//
// SPDX-License-Identifier: Apache-2.0

package odp

import (
	"os"
	"path/filepath"

	"github.com/oceandatahub/odp-go/auth"
	check "gopkg.in/check.v1"
)

var _ = check.Suite(&ConfigSuite{})

type ConfigSuite struct {
	saved map[string]string
}

var configEnvVars = []string{
	"ODP_BASE_URL", "ODP_API_KEY", "ODP_CLIENT_ID", "ODP_CLIENT_SECRET",
	"ODP_TOKEN_URL", "ODP_AUTH_ISSUER", "ODP_AUDIENCE", "ODP_SCOPES",
	"ODP_TOKEN_CACHE", "ODP_INSECURE",
}

func (s *ConfigSuite) SetUpTest(c *check.C) {
	s.saved = map[string]string{}
	for _, k := range configEnvVars {
		if v, ok := os.LookupEnv(k); ok {
			s.saved[k] = v
		}
		os.Unsetenv(k)
	}
}

func (s *ConfigSuite) TearDownTest(c *check.C) {
	for _, k := range configEnvVars {
		if v, ok := s.saved[k]; ok {
			os.Setenv(k, v)
		} else {
			os.Unsetenv(k)
		}
	}
}

func (s *ConfigSuite) TestLoadSettingsFile(c *check.C) {
	path := filepath.Join(c.MkDir(), "settings.yml")
	c.Assert(os.WriteFile(path, []byte(`
base_url: https://api.staging.example.test
client_id: svc-client
client_secret: svc-secret
auth_issuer: https://idp.example.test
scopes:
  - catalog.read
`), 0600), check.IsNil)
	settings, err := LoadSettings(path)
	c.Assert(err, check.IsNil)
	c.Check(settings.BaseURL, check.Equals, "https://api.staging.example.test")
	c.Check(settings.ClientID, check.Equals, "svc-client")
	c.Check(settings.Scopes, check.DeepEquals, []string{"catalog.read"})
}

func (s *ConfigSuite) TestLoadSettingsMissingFile(c *check.C) {
	settings, err := LoadSettings(filepath.Join(c.MkDir(), "nonexistent.yml"))
	c.Assert(err, check.IsNil)
	c.Check(*settings, check.DeepEquals, Settings{})
}

func (s *ConfigSuite) TestLoadSettingsInvalidFile(c *check.C) {
	path := filepath.Join(c.MkDir(), "settings.yml")
	c.Assert(os.WriteFile(path, []byte("{{nope"), 0600), check.IsNil)
	_, err := LoadSettings(path)
	c.Check(err, check.NotNil)
}

func (s *ConfigSuite) TestEnvOverridesFile(c *check.C) {
	path := filepath.Join(c.MkDir(), "settings.yml")
	c.Assert(os.WriteFile(path, []byte("base_url: https://from-file.example.test\napi_key: file-key\n"), 0600), check.IsNil)
	os.Setenv("ODP_BASE_URL", "https://from-env.example.test")
	os.Setenv("ODP_SCOPES", "a b")
	os.Setenv("ODP_INSECURE", "yes")

	client, err := NewClientFromConfig(path)
	c.Assert(err, check.IsNil)
	c.Check(client.BaseURL, check.Equals, "https://from-env.example.test")
	c.Check(client.Insecure, check.Equals, true)
	c.Check(client.TokenProvider, check.NotNil)
}

func (s *ConfigSuite) TestTokenProviderSelection(c *check.C) {
	// An API key wins over client credentials.
	settings := &Settings{APIKey: "key", ClientID: "id", ClientSecret: "secret"}
	cache, ok := settings.TokenProvider().(*auth.TokenCache)
	c.Assert(ok, check.Equals, true)
	_, ok = cache.Provider.(auth.StaticTokenProvider)
	c.Check(ok, check.Equals, true)

	settings = &Settings{ClientID: "id", ClientSecret: "secret", AuthIssuer: "https://idp.example.test"}
	cache, ok = settings.TokenProvider().(*auth.TokenCache)
	c.Assert(ok, check.Equals, true)
	_, ok = cache.Provider.(*auth.ClientCredentialsProvider)
	c.Check(ok, check.Equals, true)
	c.Check(cache.Identity, check.Equals, "https://idp.example.test|id|")

	c.Check((&Settings{}).TokenProvider(), check.IsNil)
}
