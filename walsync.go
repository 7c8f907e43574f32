// Package walsync keeps a WAL-mode SQLite database in sync with a remote
// store by tracking an always-fresh WAL frame count.
//
// Example usage:
//
//	cfg := walsync.DefaultConfig()
//	cfg.DBPath = "/var/lib/app/app.db"
//	cfg.AuthKey = "your-api-key"
//	if err := cfg.Validate(); err != nil {
//	    log.Fatal(err)
//	}
//	if err := walsync.Run(context.Background(), cfg); err != nil {
//	    log.Fatal(err)
//	}
package walsync

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/tern-labs/walsync/internal/agent"
)

// Config holds the configuration for the sync agent.
// Use DefaultConfig() to get a Config with sensible defaults.
type Config = agent.Config

// Run starts the sync agent with the given configuration. It blocks
// until the context is cancelled or an unrecoverable error occurs.
// Use cfg.Once = true to push available frames and exit immediately.
func Run(ctx context.Context, cfg Config) error {
	return agent.Run(ctx, cfg)
}

// DefaultConfig returns a Config with sensible default values.
// At minimum, you must set DBPath and AuthKey before calling Run.
func DefaultConfig() Config {
	return agent.DefaultConfig()
}

// Logger returns the package-level zerolog logger used by the agent.
func Logger() zerolog.Logger {
	return agent.Logger()
}

// DefaultServiceURL is the default endpoint for pushing WAL frames.
const DefaultServiceURL = agent.DefaultServiceURL
