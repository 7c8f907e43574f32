package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tern-labs/walsync/internal/sqlite"
	"github.com/tern-labs/walsync/internal/tracker"
)

// newReproCommand builds the diagnostic harness that demonstrates the
// stale frame count a sync connection observes until it runs a read, and
// the refresh that fixes it. The report format is fixed and not a stable
// interface.
func newReproCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repro",
		Short: "Demonstrate the stale WAL frame count and its fix",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRepro(cmd.Context())
		},
	}
}

func runRepro(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	dir, err := os.MkdirTemp("", "walsync-repro-*")
	if err != nil {
		return fmt.Errorf("temp dir: %w", err)
	}
	defer os.RemoveAll(dir)
	dbPath := filepath.Join(dir, "test.db")

	// Writer connection: WAL mode, auto-checkpoint off, two committed
	// inserts so the WAL holds frames.
	writer, err := sqlite.Open(dbPath, sqlite.Options{})
	if err != nil {
		return fmt.Errorf("open writer: %w", err)
	}
	defer writer.Close()

	for _, q := range []string{
		`CREATE TABLE t(x INTEGER);`,
		`INSERT INTO t VALUES (1);`,
		`INSERT INTO t VALUES (2);`,
	} {
		if err := writer.Exec(ctx, q); err != nil {
			return fmt.Errorf("write failed: %s: %w", q, err)
		}
	}

	// Sync connection, opened after the writes, never queried: its view
	// of the WAL is whatever it cached at open.
	syncConn, err := sqlite.Open(dbPath, sqlite.Options{})
	if err != nil {
		return fmt.Errorf("open sync connection: %w", err)
	}
	defer syncConn.Close()

	writerTracker := tracker.New(writer)
	syncTracker := tracker.New(syncConn)

	writerFresh, err := writerTracker.RefreshAndCount(ctx)
	if err != nil {
		return fmt.Errorf("writer frame count: %w", err)
	}
	writerFrames := writerFresh.Count()
	syncFrames := syncTracker.CachedCount()

	fmt.Println("=== Stale WAL Frame Count ===")
	fmt.Println()
	fmt.Printf("Writer connection WAL frame count: %d\n", writerFrames)
	fmt.Printf("Sync connection WAL frame count:   %d\n", syncFrames)
	fmt.Println()

	if syncFrames == 0 && writerFrames > 0 {
		fmt.Println("BUG: the sync connection sees 0 frames (stale WAL index header)")
		fmt.Printf("     while the writer has %d frames in the WAL.\n", writerFrames)
		fmt.Println()
		fmt.Println("     The push decision compares frame count > durable_frame_num.")
		fmt.Println("     With a stale count of 0 and durable_frame_num = 0, it wrongly")
		fmt.Println("     concludes the remote is caught up and never pushes.")
	}

	fmt.Println()
	fmt.Println("--- Applying fix: refresh before counting ---")
	fmt.Println()

	syncFresh, err := syncTracker.RefreshAndCount(ctx)
	if err != nil {
		return fmt.Errorf("refresh sync connection: %w", err)
	}
	fmt.Printf("Sync connection WAL frame count:   %d\n", syncFresh.Count())
	fmt.Println()

	if syncFresh.Count() == writerFrames {
		fmt.Printf("FIXED: after one trivial read, the sync connection sees all %d frames.\n", writerFrames)
		fmt.Println("       The push decision now correctly reports the remote as behind.")
	}

	return nil
}
