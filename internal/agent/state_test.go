package agent

import (
	"testing"
	"time"
)

func TestStateRoundTrip(t *testing.T) {
	dir := t.TempDir()

	expected := state{
		DurableFrame: 42,
		WALSalt:      0xfeedface,
		LastPushAt:   time.Now().UTC().Truncate(time.Second),
	}
	if err := saveState(dir, expected); err != nil {
		t.Fatalf("saveState returned error: %v", err)
	}

	st, err := loadState(dir)
	if err != nil {
		t.Fatalf("loadState returned error: %v", err)
	}
	if st.DurableFrame != expected.DurableFrame {
		t.Fatalf("expected durable frame %d, got %d", expected.DurableFrame, st.DurableFrame)
	}
	if st.WALSalt != expected.WALSalt {
		t.Fatalf("expected salt %x, got %x", expected.WALSalt, st.WALSalt)
	}
	if !st.LastPushAt.Equal(expected.LastPushAt) {
		t.Fatalf("expected push time %v, got %v", expected.LastPushAt, st.LastPushAt)
	}
}

func TestSaveStateOverwrites(t *testing.T) {
	dir := t.TempDir()

	if err := saveState(dir, state{DurableFrame: 1}); err != nil {
		t.Fatalf("saveState: %v", err)
	}
	if err := saveState(dir, state{DurableFrame: 2}); err != nil {
		t.Fatalf("saveState: %v", err)
	}

	st, err := loadState(dir)
	if err != nil {
		t.Fatalf("loadState: %v", err)
	}
	if st.DurableFrame != 2 {
		t.Fatalf("expected durable frame 2, got %d", st.DurableFrame)
	}
}

func TestLoadStateMissing(t *testing.T) {
	if _, err := loadState(t.TempDir()); err == nil {
		t.Fatal("expected error for missing state file")
	}
}
