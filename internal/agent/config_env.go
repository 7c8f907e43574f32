package agent

import "os"

// ApplyEnvConfig applies configuration from environment variables
// (WALSYNC_*). It respects flags that have been explicitly set (changed
// map). Returns an error if a variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("db", os.Getenv("WALSYNC_DB_PATH"), &cfg.DBPath)
	s.setString("state-dir", os.Getenv("WALSYNC_STATE_DIR"), &cfg.StateDir)
	s.setString("service-url", os.Getenv("WALSYNC_SERVICE_URL"), &cfg.ServiceURL)
	s.setString("auth-key", os.Getenv("WALSYNC_AUTH_KEY"), &cfg.AuthKey)
	s.setString("metrics-addr", os.Getenv("WALSYNC_METRICS_ADDR"), &cfg.MetricsAddr)

	if err := s.setDuration("poll", os.Getenv("WALSYNC_POLL_INTERVAL"), &cfg.PollInterval); err != nil {
		return err
	}
	if err := s.setDuration("timeout", os.Getenv("WALSYNC_HTTP_TIMEOUT"), &cfg.HTTPTimeout); err != nil {
		return err
	}
	if err := s.setDuration("checkpoint-interval", os.Getenv("WALSYNC_CHECKPOINT_INTERVAL"), &cfg.CheckpointInterval); err != nil {
		return err
	}

	s.setBoolFromString("once", os.Getenv("WALSYNC_ONCE"), &cfg.Once)

	return nil
}
