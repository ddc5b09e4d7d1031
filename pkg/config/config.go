// Package config provides the run configuration for roomtap.
//
// The configuration is an explicit structure with enumerated optional fields
// and documented defaults rather than an open map, so absence-vs-default is
// statically checkable.
package config

import (
	"time"

	"gopkg.in/yaml.v3"

	"github.com/datataps/roomtap/pkg/errors"
)

// Duration is a time.Duration that unmarshals from YAML strings like "60s"
// as well as plain nanosecond integers.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw interface{}
	if err := node.Decode(&raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case string:
		parsed, err := time.ParseDuration(v)
		if err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "invalid duration")
		}
		*d = Duration(parsed)
	case int:
		*d = Duration(v)
	default:
		return errors.Newf(errors.ErrorTypeConfig, "invalid duration value %v", raw)
	}
	return nil
}

// Std returns the wrapped time.Duration
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// DefaultBaseURL is the SevenRooms external API root used when base_url is
// not configured.
const DefaultBaseURL = "https://demo.sevenrooms.com/api-ext/2_2"

// DefaultPageLimit is the fixed page size sent as the limit query parameter.
const DefaultPageLimit = 400

// DateFormat is the wire format for from_date/to_date parameters and for
// bookmark values.
const DateFormat = "2006-01-02"

// Config is the run configuration loaded at startup
type Config struct {
	// ClientID and ClientSecret are exchanged once for a session token
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`

	// BaseURL overrides the API root. Defaults to DefaultBaseURL.
	BaseURL string `yaml:"base_url"`

	// StartDate is the first day to extract (YYYY-MM-DD). Required.
	StartDate string `yaml:"start_date"`
	// EndDate is the last day to extract (YYYY-MM-DD). Defaults to the
	// invocation date.
	EndDate string `yaml:"end_date"`

	// Params supplies values for {placeholder} substitution in stream
	// request parameters, e.g. venue_group_id.
	Params map[string]string `yaml:"params"`

	// PageLimit is the page size requested per call. Defaults to DefaultPageLimit.
	PageLimit int `yaml:"page_limit"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Retry     RetryConfig     `yaml:"retry"`

	// LogLevel sets logging verbosity (debug, info, warn, error)
	LogLevel string `yaml:"log_level"`
}

// RateLimitConfig bounds outbound API calls to Calls per Window. The
// SevenRooms API documents no limit, but the presence of 429 in its status
// table indicates one exists; 600 calls per 60s has held up in production.
type RateLimitConfig struct {
	Calls  int      `yaml:"calls"`
	Window Duration `yaml:"window"`
}

// RetryConfig controls the executor's backoff for transient failures
type RetryConfig struct {
	// MaxAttempts is the total attempt budget, first call included
	MaxAttempts int `yaml:"max_attempts"`
	// InitialDelay is the delay after the first failed attempt
	InitialDelay Duration `yaml:"initial_delay"`
	// Multiplier grows the delay exponentially between attempts
	Multiplier float64 `yaml:"multiplier"`
	// MaxDelay caps the backoff delay
	MaxDelay Duration `yaml:"max_delay"`
}

// New returns a Config populated with defaults
func New() *Config {
	return &Config{
		BaseURL:   DefaultBaseURL,
		PageLimit: DefaultPageLimit,
		Params:    make(map[string]string),
		RateLimit: RateLimitConfig{
			Calls:  600,
			Window: Duration(60 * time.Second),
		},
		Retry: RetryConfig{
			MaxAttempts:  7,
			InitialDelay: Duration(time.Second),
			Multiplier:   3.0,
			MaxDelay:     Duration(2 * time.Minute),
		},
		LogLevel: "info",
	}
}

// Validate validates the configuration for correctness
func (c *Config) Validate() error {
	if c.ClientID == "" || c.ClientSecret == "" {
		return errors.New(errors.ErrorTypeConfig, "client_id and client_secret are required")
	}
	if c.StartDate == "" {
		return errors.New(errors.ErrorTypeConfig, "start_date is required")
	}
	if _, err := time.Parse(DateFormat, c.StartDate); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "start_date must be YYYY-MM-DD")
	}
	if c.EndDate != "" {
		if _, err := time.Parse(DateFormat, c.EndDate); err != nil {
			return errors.Wrap(err, errors.ErrorTypeConfig, "end_date must be YYYY-MM-DD")
		}
	}
	if c.PageLimit <= 0 {
		return errors.New(errors.ErrorTypeConfig, "page_limit must be positive")
	}
	if c.RateLimit.Calls <= 0 || c.RateLimit.Window <= 0 {
		return errors.New(errors.ErrorTypeConfig, "rate_limit calls and window must be positive")
	}
	if c.Retry.MaxAttempts < 1 {
		return errors.New(errors.ErrorTypeConfig, "retry max_attempts must be at least 1")
	}
	return nil
}

// Start returns the parsed start date, normalized to midnight UTC
func (c *Config) Start() time.Time {
	t, _ := time.Parse(DateFormat, c.StartDate)
	return t
}

// End returns the parsed end date, defaulting to today when unset
func (c *Config) End() time.Time {
	if c.EndDate == "" {
		now := time.Now().UTC()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	}
	t, _ := time.Parse(DateFormat, c.EndDate)
	return t
}
