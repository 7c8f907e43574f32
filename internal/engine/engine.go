// Package engine defines the narrow interface walsync needs from the
// embedded SQL engine.
//
// The production implementation lives in internal/sqlite. Tests substitute
// a fake that models SQLite's per-connection WAL index header caching,
// which is the behavior the tracker exists to work around.
package engine

import (
	"context"
	"errors"
)

// ErrConnClosed is returned when an operation is attempted on a closed
// or invalid connection handle.
var ErrConnClosed = errors.New("engine: connection closed")

// CheckpointMode selects the checkpoint behavior passed through to the engine.
type CheckpointMode string

const (
	CheckpointPassive  CheckpointMode = "PASSIVE"
	CheckpointTruncate CheckpointMode = "TRUNCATE"
)

// WALInfo describes the WAL as observed by one connection at one instant.
// It is a per-connection snapshot, not a globally consistent value.
type WALInfo struct {
	// FrameCount is the number of valid frames in the WAL.
	FrameCount uint32

	// Salt identifies the WAL generation. It changes when the WAL is
	// reset by a checkpoint, which may restart frame numbering.
	Salt uint64
}

// Conn is a single connection to a WAL-mode database.
//
// Implementations are not safe for concurrent use; each goroutine must
// own its own Conn. Connections to the same database file share the WAL
// through the engine's own locking.
type Conn interface {
	// Exec runs a single SQL statement.
	Exec(ctx context.Context, query string) error

	// WALInfo returns the frame count and WAL salt as this connection
	// currently observes them. The engine only reloads its WAL index
	// header at the start of a read transaction, so callers that need a
	// current value must begin one first (see internal/tracker).
	WALInfo(ctx context.Context) (WALInfo, error)

	// Checkpoint runs a WAL checkpoint in the given mode.
	Checkpoint(ctx context.Context, mode CheckpointMode) error

	// Close releases the underlying handle. Close is idempotent.
	Close() error
}
