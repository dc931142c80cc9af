// Package config loads a DriverConfig from a YAML file, the on-disk form
// of spec.md §6's "Config surface". Grounded on cmd/warren/apply.go
// (teacher): os.ReadFile + gopkg.in/yaml.v3 + struct tags, applied here to
// driver configuration instead of a resource manifest.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/cuemby/warren-bolt/pkg/auth"
	"github.com/cuemby/warren-bolt/pkg/driver"
	"github.com/cuemby/warren-bolt/pkg/neo4jerr"
	"github.com/cuemby/warren-bolt/pkg/values"
)

// Duration lets a DriverConfig express durations as YAML strings ("30s",
// "5m") instead of raw nanosecond integers.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("config: invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return d.Duration.String(), nil
}

// NotificationFilter mirrors spec.md §6's notification_filter config knob.
type NotificationFilter struct {
	MinSeverity        string   `yaml:"min_severity,omitempty"`
	DisabledCategories []string `yaml:"disabled_categories,omitempty"`
}

func (f NotificationFilter) toExtras() map[string]any {
	if f.MinSeverity == "" && len(f.DisabledCategories) == 0 {
		return nil
	}
	extras := map[string]any{}
	if f.MinSeverity != "" {
		extras["notifications_minimum_severity"] = f.MinSeverity
	}
	if len(f.DisabledCategories) > 0 {
		extras["notifications_disabled_categories"] = f.DisabledCategories
	}
	return extras
}

// AuthConfig is the YAML-expressible subset of values.AuthToken: static
// credentials only. A token source that must be refreshed at runtime (an
// OIDC exchange, say) is built in code as an auth.Manager and passed to
// driver.Config directly, not loaded from a file.
type AuthConfig struct {
	Scheme      string `yaml:"scheme"`
	Principal   string `yaml:"principal,omitempty"`
	Credentials string `yaml:"credentials,omitempty"`
	Realm       string `yaml:"realm,omitempty"`
}

func (a AuthConfig) token() values.AuthToken {
	tok := values.AuthToken{"scheme": a.Scheme}
	if a.Principal != "" {
		tok["principal"] = a.Principal
	}
	if a.Credentials != "" {
		tok["credentials"] = a.Credentials
	}
	if a.Realm != "" {
		tok["realm"] = a.Realm
	}
	return tok
}

// DriverConfig is the full config surface spec.md §6 names. Every field
// maps directly onto a driver.Config or pool.Config field; DriverConfig
// exists purely as the YAML-deserializable layer in front of them.
type DriverConfig struct {
	URI                          string              `yaml:"uri"`
	UserAgent                    string              `yaml:"user_agent"`
	Auth                         AuthConfig          `yaml:"auth"`
	ConnectionTimeout            Duration            `yaml:"connection_timeout"`
	ConnectionAcquisitionTimeout Duration            `yaml:"connection_acquisition_timeout"`
	MaxConnectionLifetime        Duration            `yaml:"max_connection_lifetime"`
	MaxConnectionPoolSize        int                 `yaml:"max_connection_pool_size"`
	FetchSize                    int64               `yaml:"fetch_size"`
	KeepAlive                    bool                `yaml:"keep_alive"`
	NotificationFilter           NotificationFilter  `yaml:"notification_filter,omitempty"`
	TelemetryDisabled            bool                `yaml:"telemetry_disabled"`
}

// Default returns the defaults spec.md §6 states explicitly (fetch_size
// 1000) plus the same connection/pool defaults pkg/pool.Config.withDefaults
// applies, so a config file only needs to set what it wants to override.
func Default() DriverConfig {
	return DriverConfig{
		UserAgent:                    "warren-bolt/1.0",
		ConnectionTimeout:            Duration{5 * time.Second},
		ConnectionAcquisitionTimeout: Duration{60 * time.Second},
		MaxConnectionPoolSize:        100,
		FetchSize:                    1000,
		KeepAlive:                    true,
	}
}

// Load reads and parses a DriverConfig from path, starting from Default()
// so an omitted field keeps its default rather than zeroing out.
func Load(path string) (*DriverConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: failed to read %s: %w", path, err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: failed to parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the client-side InvalidConfig cases spec.md §7.2 names
// that are knowable without contacting a server.
func (c DriverConfig) Validate() error {
	if c.URI == "" {
		return neo4jerr.InvalidConfig("config: uri is required")
	}
	if c.UserAgent == "" {
		return neo4jerr.InvalidConfig("config: user_agent is required")
	}
	if c.Auth.Scheme == "" {
		return neo4jerr.InvalidConfig("config: auth.scheme is required")
	}
	if c.FetchSize == 0 {
		return neo4jerr.InvalidConfig("config: fetch_size must be non-zero (-1 means unbounded)")
	}
	if c.MaxConnectionPoolSize < 0 {
		return neo4jerr.InvalidConfig("config: max_connection_pool_size must not be negative")
	}
	return nil
}

// NewDriver builds a driver.Driver from this config, the glue spec.md's
// module N needs between the on-disk config surface and the facade.
func (c DriverConfig) NewDriver() (*driver.Driver, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return driver.New(c.URI, driver.Config{
		UserAgent:                    c.UserAgent,
		Auth:                         auth.Static{Token: c.Auth.token()},
		ConnectionTimeout:            c.ConnectionTimeout.Duration,
		ConnectionAcquisitionTimeout: c.ConnectionAcquisitionTimeout.Duration,
		MaxConnectionLifetime:        c.MaxConnectionLifetime.Duration,
		MaxConnectionPoolSize:        c.MaxConnectionPoolSize,
		FetchSize:                    c.FetchSize,
		KeepAlive:                    c.KeepAlive,
		NotificationFilter:           c.NotificationFilter.toExtras(),
		TelemetryDisabled:            c.TelemetryDisabled,
	})
}
