package agent

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DefaultServiceURL is the default endpoint for pushing WAL frames.
const DefaultServiceURL = "https://api.tern-labs.io"

// Config holds the configuration for the WAL sync agent.
type Config struct {
	// DBPath is the SQLite database file to track.
	DBPath string

	// StateDir is where the durable frame marker (status.json) is
	// persisted. Defaults to the database's directory.
	StateDir string

	ServiceURL string
	AuthKey    string

	// PollInterval bounds how long the agent sleeps when the WAL
	// watcher produces no events.
	PollInterval time.Duration
	HTTPTimeout  time.Duration

	// CheckpointInterval is how often the agent checkpoints the WAL
	// once the remote is caught up. Zero disables checkpointing.
	CheckpointInterval time.Duration

	// MetricsAddr serves Prometheus metrics when non-empty.
	MetricsAddr string

	// Once pushes everything currently in the WAL and exits.
	Once bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		ServiceURL:   DefaultServiceURL,
		PollInterval: 500 * time.Millisecond,
		HTTPTimeout:  30 * time.Second,
		AuthKey:      os.Getenv("WALSYNC_AUTH_KEY"),
	}
}

// Validate checks the configuration for errors and sets derived defaults.
func (c *Config) Validate() error {
	if c.DBPath == "" {
		return fmt.Errorf("db path is required")
	}

	if c.StateDir == "" {
		c.StateDir = filepath.Dir(c.DBPath)
	}

	if c.ServiceURL == "" {
		c.ServiceURL = DefaultServiceURL
	}
	c.ServiceURL = strings.TrimSuffix(c.ServiceURL, "/")

	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive")
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("http timeout must be positive")
	}
	if c.CheckpointInterval < 0 {
		return fmt.Errorf("checkpoint interval must not be negative")
	}

	return nil
}

// configSetter helps apply configuration values while respecting flag
// precedence. It only applies values if the corresponding flag hasn't
// been explicitly set.
type configSetter struct {
	changed map[string]bool
}

func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag
// not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("parse %s: %w", flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true" and "1" as true. Used for environment variables.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
