// Package tracker provides an always-current WAL frame count for a
// replication sync connection.
//
// SQLite reloads a connection's WAL index header only when a read
// transaction begins — never as a side effect of opening the connection
// or of another connection committing. A sync connection that never runs
// a query therefore keeps comparing a stale frame count against the
// durable frame marker and concludes there is nothing to push. The
// tracker makes the refresh explicit and encodes freshness in the type
// system: a Fresh value can only be obtained from RefreshAndCount, and
// sync decisions must take a Fresh, never a raw count.
package tracker

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/tern-labs/walsync/internal/engine"
)

// ErrRefreshFailed is returned when the refresh read itself fails.
// Callers must treat it as "freshness unknown" and must not fall back
// to CachedCount for a push/skip decision.
var ErrRefreshFailed = errors.New("tracker: wal refresh failed")

// refreshQuery is the trivial read that begins a read transaction and
// forces the engine to reload its WAL index header. The exact statement
// is an internal detail; any cheap read against a table that always
// exists works.
const refreshQuery = `SELECT 1 FROM sqlite_master LIMIT 1;`

// FrameCount is a number of valid frames in the WAL as seen by one
// connection at one instant.
type FrameCount uint32

// Fresh is proof that a frame count was read under a read transaction
// that began after the caller asked for it. The only way to obtain a
// meaningful one is a successful Tracker.RefreshAndCount; the zero
// Fresh reports zero frames and never makes the remote look behind.
type Fresh struct {
	count FrameCount
	salt  uint64
}

// Count returns the refreshed frame count.
func (f Fresh) Count() FrameCount { return f.count }

// Salt returns the WAL generation the count belongs to. Counts from
// different generations are not comparable.
func (f Fresh) Salt() uint64 { return f.salt }

// headerSnapshot is the connection's private cached view of the WAL
// index header. It is created empty at open, mutated only by
// RefreshAndCount, and discarded with the tracker.
type headerSnapshot struct {
	maxFrame  FrameCount
	salt      uint64
	refreshed bool
}

// Tracker reports WAL frame counts for a single connection.
// Safe for concurrent use, though the underlying connection serializes
// the refresh reads.
type Tracker struct {
	conn engine.Conn

	mu   sync.Mutex
	snap headerSnapshot
}

// New returns a tracker for conn. The initial snapshot is empty: until
// the first refresh, CachedCount reports zero regardless of how many
// frames other connections have committed.
func New(conn engine.Conn) *Tracker {
	return &Tracker{conn: conn}
}

// CachedCount returns the frame count from the connection's current
// snapshot without refreshing it.
//
// Unsafe for freshness-sensitive decisions — the value can be
// arbitrarily stale. Provided for diagnostics and telemetry only.
func (t *Tracker) CachedCount() FrameCount {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snap.maxFrame
}

// RefreshAndCount reloads the connection's WAL index header and returns
// the current frame count.
//
// A call that starts strictly after a commit completes observes a count
// at least as large as that commit's. Successive calls with no
// intervening writes return the same value, and the value never goes
// backward within a WAL generation; a salt change marks a WAL reset,
// the one documented exception.
func (t *Tracker) RefreshAndCount(ctx context.Context) (Fresh, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	// Begin a read transaction so the engine reloads its header.
	if err := t.conn.Exec(ctx, refreshQuery); err != nil {
		if errors.Is(err, engine.ErrConnClosed) {
			return Fresh{}, err
		}
		return Fresh{}, fmt.Errorf("%w: refresh read: %s", ErrRefreshFailed, err)
	}

	info, err := t.conn.WALInfo(ctx)
	if err != nil {
		if errors.Is(err, engine.ErrConnClosed) {
			return Fresh{}, err
		}
		return Fresh{}, fmt.Errorf("%w: frame count: %s", ErrRefreshFailed, err)
	}

	count := FrameCount(info.FrameCount)

	// Within a generation the count must not regress relative to this
	// connection's own prior refresh. A racing in-flight commit may be
	// observed pre- or post-commit, but never backward.
	if t.snap.refreshed && info.Salt == t.snap.salt && count < t.snap.maxFrame {
		count = t.snap.maxFrame
	}

	t.snap = headerSnapshot{maxFrame: count, salt: info.Salt, refreshed: true}
	return Fresh{count: count, salt: info.Salt}, nil
}
