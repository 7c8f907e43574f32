package agent

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// state is the durable frame marker plus bookkeeping for the push loop.
// DurableFrame is the last frame confirmed persisted to the remote
// store; WALSalt is the generation that frame number belongs to.
type state struct {
	DurableFrame     uint32    `json:"durable_frame_num"`
	WALSalt          uint64    `json:"wal_salt"`
	LastPushAt       time.Time `json:"last_push_at"`
	LastCheckpointAt time.Time `json:"last_checkpoint_at"`
}

func stateFile(dir string) string { return filepath.Join(dir, "status.json") }

func loadState(dir string) (state, error) {
	b, err := os.ReadFile(stateFile(dir))
	if err != nil {
		return state{}, err
	}
	var st state
	if err := json.Unmarshal(b, &st); err != nil {
		return state{}, err
	}
	return st, nil
}

func saveState(dir string, st state) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	tmp := stateFile(dir) + ".tmp"
	b, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, stateFile(dir))
}
