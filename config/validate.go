package config

import "github.com/tablegate/tablegate/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Row limit: 0 or negative would reject every table
	if c.Gate.RowLimit <= 0 {
		return errors.Newf("gate.row_limit must be > 0, got %d", c.Gate.RowLimit)
	}

	if c.Gate.ValueColumn == "" {
		return errors.New("gate.value_column cannot be empty (set to the measurement column name)")
	}

	// Timeout: 0 = no timeout, negative = invalid
	if c.Gate.TimeoutSeconds < 0 {
		return errors.Newf("gate.timeout_seconds must be >= 0, got %d", c.Gate.TimeoutSeconds)
	}

	// Reviewer is only requested via review.enabled; validate its command then
	if c.Review.Enabled && c.Review.Command == "" {
		return errors.New("review.command cannot be empty when review.enabled is true")
	}
	if c.Review.TimeoutSeconds < 0 {
		return errors.Newf("review.timeout_seconds must be >= 0, got %d", c.Review.TimeoutSeconds)
	}

	// No tool configured is valid: generation and everything downstream of
	// it are skipped and only the pre-generation checks run.

	if c.Engine.TimeoutSeconds < 0 {
		return errors.Newf("engine.timeout_seconds must be >= 0, got %d", c.Engine.TimeoutSeconds)
	}

	if c.Watch.MinIntervalSeconds < 0 {
		return errors.Newf("watch.min_interval_seconds must be >= 0, got %d", c.Watch.MinIntervalSeconds)
	}
	if c.Watch.DebounceMS < 0 {
		return errors.Newf("watch.debounce_ms must be >= 0, got %d", c.Watch.DebounceMS)
	}

	return nil
}
