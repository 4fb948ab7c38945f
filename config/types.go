package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/invopop/jsonschema"
	"github.com/mitchellh/mapstructure"
)

// Default values applied by SetDefaults.
const (
	DefaultBaseURL          = "http://localhost:8000"
	DefaultCookieName       = "better-auth.session_token"
	DefaultTimeout          = 30 * time.Second
	DefaultCredentialGrace  = 2 * time.Second
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultReadLimit        = 1 << 20
)

// Config is the top-level storefront configuration.
type Config struct {
	API     APIConfig     `yaml:"api,omitempty" json:"api,omitempty" jsonschema:"description=Orchestration service endpoint"`
	Session SessionConfig `yaml:"session,omitempty" json:"session,omitempty" jsonschema:"description=Authenticated session used for every request"`
	Stream  StreamConfig  `yaml:"stream,omitempty" json:"stream,omitempty" jsonschema:"description=Provisioning log stream tuning"`

	// Extensions holds every other top-level section (logging, ...).
	Extensions map[string]interface{} `yaml:"-" json:"-"`
}

// APIConfig configures the HTTP API client.
type APIConfig struct {
	BaseURL string   `yaml:"base_url,omitempty" json:"base_url,omitempty" jsonschema:"description=Base URL of the orchestration service"`
	Timeout Duration `yaml:"timeout,omitempty" json:"timeout,omitempty" jsonschema:"description=Per-request timeout"`
}

// SessionConfig configures the session cookie attached to requests.
type SessionConfig struct {
	CookieName string `yaml:"cookie_name,omitempty" json:"cookie_name,omitempty" jsonschema:"description=Name of the session cookie"`
	Token      string `yaml:"token,omitempty" json:"token,omitempty" jsonschema:"description=Session token value"`
}

// StreamConfig configures provisioning log streams.
type StreamConfig struct {
	CredentialGrace  Duration `yaml:"credential_grace,omitempty" json:"credential_grace,omitempty" jsonschema:"description=How long to wait for credentials after completion"`
	HandshakeTimeout Duration `yaml:"handshake_timeout,omitempty" json:"handshake_timeout,omitempty" jsonschema:"description=WebSocket handshake timeout"`
	ReadLimit        int64    `yaml:"read_limit,omitempty" json:"read_limit,omitempty" jsonschema:"description=Maximum frame size in bytes,minimum=1"`
}

// Duration is a time.Duration written as a Go duration string ("30s").
type Duration time.Duration

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// JSONSchema describes Duration as a string for schema reflection.
func (Duration) JSONSchema() *jsonschema.Schema {
	return &jsonschema.Schema{
		Type:        "string",
		Pattern:     `^([0-9]+(\.[0-9]+)?(ns|us|µs|ms|s|m|h))+$`,
		Description: "Go duration string, e.g. 30s or 1m30s",
	}
}

// SetDefaults fills in zero values.
func (c *Config) SetDefaults() {
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = Duration(DefaultTimeout)
	}
	if c.Session.CookieName == "" {
		c.Session.CookieName = DefaultCookieName
	}
	if c.Stream.CredentialGrace == 0 {
		c.Stream.CredentialGrace = Duration(DefaultCredentialGrace)
	}
	if c.Stream.HandshakeTimeout == 0 {
		c.Stream.HandshakeTimeout = Duration(DefaultHandshakeTimeout)
	}
	if c.Stream.ReadLimit == 0 {
		c.Stream.ReadLimit = DefaultReadLimit
	}
}

// Redacted returns a copy of c with the session token masked.
func (c *Config) Redacted() *Config {
	out := *c
	if out.Session.Token != "" {
		out.Session.Token = "********"
	}
	return &out
}

// UnmarshalExtension decodes the top-level section named key into target.
// A missing section leaves target untouched.
func (c *Config) UnmarshalExtension(key string, target interface{}) error {
	extensionConfig, ok := c.Extensions[key]
	if !ok {
		return nil
	}

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           target,
		TagName:          "yaml",
		WeaklyTypedInput: true,
		DecodeHook:       durationHook(),
	})
	if err != nil {
		return fmt.Errorf("failed to create mapstructure decoder: %w", err)
	}

	if err := decoder.Decode(extensionConfig); err != nil {
		return fmt.Errorf("failed to decode extension config for '%s': %w", key, err)
	}

	return nil
}
