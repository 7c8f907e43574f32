// Package agent runs the replication sync loop for a WAL-mode SQLite
// database: it tracks a fresh WAL frame count, compares it against the
// durable frame marker, and pushes the missing frames to a remote store.
package agent

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/tern-labs/walsync/internal/engine"
	"github.com/tern-labs/walsync/internal/sqlite"
	"github.com/tern-labs/walsync/internal/tracker"
)

// FrameSource reads raw WAL frame bytes for the push path.
// *sqlite.WALFile is the production implementation.
type FrameSource interface {
	// Header returns the WAL file header, or a zero header if the WAL
	// does not exist yet.
	Header() (sqlite.WALHeader, error)

	// ReadFrames returns frames start+1 through end, headers included.
	ReadFrames(start, end uint32) ([]byte, error)
}

// Run starts the sync agent with the given configuration. It blocks
// until the context is cancelled or, with cfg.Once, until the remote has
// caught up with the local WAL.
func Run(ctx context.Context, cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.StateDir, 0o700); err != nil {
		return fmt.Errorf("state dir: %w", err)
	}

	conn, err := sqlite.Open(cfg.DBPath, sqlite.Options{})
	if err != nil {
		return fmt.Errorf("open sync connection: %w", err)
	}
	defer conn.Close()

	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr)
	}

	pusher := newHTTPPusher(&http.Client{Timeout: cfg.HTTPTimeout}, cfg.ServiceURL, cfg.AuthKey)
	return run(ctx, cfg, conn, conn.WAL(), pusher)
}

// run is the poll/refresh/push loop, split from Run so tests can inject
// the connection and pusher.
func run(ctx context.Context, cfg Config, conn engine.Conn, frames FrameSource, pusher FramePusher) error {
	log := logger.With().Str("db", cfg.DBPath).Logger()

	st, err := loadState(cfg.StateDir)
	if err != nil && !os.IsNotExist(err) {
		log.Warn().Err(err).Msg("state unreadable, starting from frame 0")
	}
	durableFrameGauge.Set(float64(st.DurableFrame))

	tr := tracker.New(conn)
	back := newBackoff(500*time.Millisecond, 10*time.Second)

	var wake <-chan struct{}
	if w, err := newWALWatcher(sqlite.WALPath(cfg.DBPath)); err != nil {
		log.Warn().Err(err).Msg("wal watcher unavailable, polling only")
	} else {
		defer w.Close()
		wake = w.C()
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		fresh, err := tr.RefreshAndCount(ctx)
		if err != nil {
			if errors.Is(err, engine.ErrConnClosed) || ctx.Err() != nil {
				return err
			}
			refreshErrorCounter.Inc()
			// Freshness unknown: never decide from the cached count.
			log.Error().Err(err).Msg("refresh failed")
			if cfg.Once {
				return err
			}
			back.Sleep(ctx)
			continue
		}
		refreshTotalCounter.Inc()
		walFrameGauge.Set(float64(fresh.Count()))

		// A salt change means the WAL was reset and frame numbering
		// restarted; the old durable marker no longer lines up.
		if fresh.Salt() != st.WALSalt {
			if st.WALSalt != 0 {
				log.Info().
					Uint64("old_salt", st.WALSalt).
					Uint64("new_salt", fresh.Salt()).
					Msg("wal reset, restarting from frame 0")
			}
			st.DurableFrame = 0
			st.WALSalt = fresh.Salt()
			if err := saveState(cfg.StateDir, st); err != nil {
				log.Warn().Err(err).Msg("save state")
			}
		}

		if aheadOfRemote(fresh, st.DurableFrame) {
			if err := push(ctx, frames, pusher, fresh, &st, cfg.StateDir, log); err != nil {
				pushErrorCounter.Inc()
				log.Error().Err(err).Msg("push failed")
				if cfg.Once {
					return err
				}
				back.Sleep(ctx)
				continue
			}
			back.Reset()
			// Re-check immediately; more frames may have landed while
			// the batch was in flight.
			continue
		}

		// Caught up.
		maybeCheckpoint(ctx, cfg, conn, &st, log)
		if cfg.Once {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-wake:
		case <-time.After(cfg.PollInterval):
		}
	}
}

// aheadOfRemote reports whether the local WAL holds frames the remote
// has not confirmed. It deliberately takes a tracker.Fresh: deciding
// from a cached count is exactly the bug this component exists to fix.
func aheadOfRemote(fresh tracker.Fresh, durableFrame uint32) bool {
	return uint32(fresh.Count()) > durableFrame
}

func push(ctx context.Context, frames FrameSource, pusher FramePusher, fresh tracker.Fresh, st *state, stateDir string, log zerolog.Logger) error {
	hdr, err := frames.Header()
	if err != nil {
		return fmt.Errorf("wal header: %w", err)
	}

	count := uint32(fresh.Count())
	b, err := frames.ReadFrames(st.DurableFrame, count)
	if err != nil {
		return fmt.Errorf("read frames: %w", err)
	}

	batch := PushBatch{
		Salt:      fresh.Salt(),
		FromFrame: st.DurableFrame + 1,
		ToFrame:   count,
		PageSize:  hdr.PageSize,
		Frames:    b,
	}
	if err := pusher.Push(ctx, batch); err != nil {
		return err
	}

	st.DurableFrame = count
	st.WALSalt = fresh.Salt()
	st.LastPushAt = time.Now()
	if err := saveState(stateDir, *st); err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	pushTotalCounter.Inc()
	durableFrameGauge.Set(float64(st.DurableFrame))
	log.Info().
		Uint32("from_frame", batch.FromFrame).
		Uint32("to_frame", batch.ToFrame).
		Int("bytes", len(b)).
		Msg("pushed frames")
	return nil
}

// maybeCheckpoint folds the WAL back into the main database once the
// remote is caught up. Only frames already confirmed durable are ever
// checkpointed away.
func maybeCheckpoint(ctx context.Context, cfg Config, conn engine.Conn, st *state, log zerolog.Logger) {
	if cfg.CheckpointInterval <= 0 {
		return
	}
	if time.Since(st.LastCheckpointAt) < cfg.CheckpointInterval {
		return
	}

	if err := conn.Checkpoint(ctx, engine.CheckpointTruncate); err != nil {
		log.Warn().Err(err).Msg("checkpoint failed")
		return
	}
	st.LastCheckpointAt = time.Now()
	if err := saveState(cfg.StateDir, *st); err != nil {
		log.Warn().Err(err).Msg("save state")
	}
	log.Debug().Msg("wal checkpointed")
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error().Err(err).Str("addr", addr).Msg("metrics listener failed")
	}
}
