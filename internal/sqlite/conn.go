// Package sqlite adapts a SQLite database opened through mattn/go-sqlite3
// to the engine.Conn interface.
//
// The driver does not expose the connection's cached WAL index header
// (pWal->hdr.mxFrame), so WALInfo derives the frame count from the -wal
// file itself. The per-connection cached snapshot the sync layer must not
// trust lives in internal/tracker.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tern-labs/walsync/internal/engine"
)

// Options controls how a connection is opened.
type Options struct {
	// ReadOnly opens the database without write capability. Read-only
	// connections cannot run checkpoints.
	ReadOnly bool

	// BusyTimeout is how long the engine waits on a locked database
	// before returning SQLITE_BUSY. Defaults to 5s.
	BusyTimeout time.Duration
}

// Conn is a single SQLite connection in WAL mode.
type Conn struct {
	db     *sql.DB
	wal    WALFile
	closed atomic.Bool
}

var _ engine.Conn = (*Conn)(nil)

// Open opens path and puts it in WAL mode with auto-checkpointing
// disabled, mirroring how a replication sync connection is built.
// Read-only opens skip the journal mode pragmas.
func Open(path string, opt Options) (*Conn, error) {
	busy := opt.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=%d", path, busy.Milliseconds())
	if opt.ReadOnly {
		dsn += "&mode=ro"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// A single underlying handle so statement effects (locks, header
	// snapshots) belong to one connection, as with a raw handle.
	db.SetMaxOpenConns(1)

	if !opt.ReadOnly {
		if _, err := db.Exec(`PRAGMA journal_mode = wal;`); err != nil {
			db.Close()
			return nil, fmt.Errorf("enable wal: %w", err)
		}
		if _, err := db.Exec(`PRAGMA wal_autocheckpoint = 0;`); err != nil {
			db.Close()
			return nil, fmt.Errorf("disable autocheckpoint: %w", err)
		}
	}

	return &Conn{db: db, wal: WALFile{Path: WALPath(path)}}, nil
}

// WAL returns a read-only view of the connection's WAL file.
func (c *Conn) WAL() *WALFile { return &c.wal }

// Exec runs a single SQL statement.
func (c *Conn) Exec(ctx context.Context, query string) error {
	if c.closed.Load() {
		return engine.ErrConnClosed
	}
	if _, err := c.db.ExecContext(ctx, query); err != nil {
		return err
	}
	return nil
}

// WALInfo returns the current frame count and salt from the WAL file.
func (c *Conn) WALInfo(ctx context.Context) (engine.WALInfo, error) {
	if c.closed.Load() {
		return engine.WALInfo{}, engine.ErrConnClosed
	}
	if err := ctx.Err(); err != nil {
		return engine.WALInfo{}, err
	}

	frames, salt, err := c.wal.Info()
	if err != nil {
		return engine.WALInfo{}, err
	}
	return engine.WALInfo{FrameCount: frames, Salt: salt}, nil
}

// Checkpoint runs a WAL checkpoint in the given mode.
func (c *Conn) Checkpoint(ctx context.Context, mode engine.CheckpointMode) error {
	return c.Exec(ctx, fmt.Sprintf(`PRAGMA wal_checkpoint(%s);`, mode))
}

// Close releases the connection. Subsequent operations return
// engine.ErrConnClosed.
func (c *Conn) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.db.Close()
}
