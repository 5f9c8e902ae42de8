package config

import "github.com/NV7150/ImOTAR-sub000/errors"

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	// Sync skew: a pairing window of 0 would reject every real pair
	if c.Sync.MaxSkewMS <= 0 {
		return errors.NewInvalidConfigError("sync.max_skew_ms must be > 0, got %d", c.Sync.MaxSkewMS)
	}

	// Staleness bounds: 0 = disabled, negative = invalid
	if c.Sync.ColorStaleAfterMS < 0 {
		return errors.NewInvalidConfigError("sync.color_stale_after_ms must be >= 0, got %d", c.Sync.ColorStaleAfterMS)
	}
	if c.Sync.DepthStaleAfterMS < 0 {
		return errors.NewInvalidConfigError("sync.depth_stale_after_ms must be >= 0, got %d", c.Sync.DepthStaleAfterMS)
	}

	// Steps per tick: a scheduler that never steps never finishes a job
	if c.Pipeline.StepsPerTick < 1 {
		return errors.NewInvalidConfigError("pipeline.steps_per_tick must be >= 1, got %d", c.Pipeline.StepsPerTick)
	}

	// Promote delay: 0 = promote on the next poll, negative = invalid
	if c.Pipeline.PromoteDelayTicks < 0 {
		return errors.NewInvalidConfigError("pipeline.promote_delay_ticks must be >= 0, got %d", c.Pipeline.PromoteDelayTicks)
	}

	if c.Pipeline.TickIntervalMS <= 0 {
		return errors.NewInvalidConfigError("pipeline.tick_interval_ms must be > 0, got %d", c.Pipeline.TickIntervalMS)
	}

	// Executor grid and pass count
	if c.Executor.Width <= 0 || c.Executor.Height <= 0 {
		return errors.NewInvalidConfigError("executor grid must be positive, got %dx%d", c.Executor.Width, c.Executor.Height)
	}
	if c.Executor.Passes < 1 {
		return errors.NewInvalidConfigError("executor.passes must be >= 1, got %d", c.Executor.Passes)
	}
	if c.Executor.Lambda <= 0 || c.Executor.Lambda > 1 {
		return errors.NewInvalidConfigError("executor.lambda must be in (0, 1], got %f", c.Executor.Lambda)
	}
	if c.Executor.EdgeScale <= 0 {
		return errors.NewInvalidConfigError("executor.edge_scale must be > 0, got %f", c.Executor.EdgeScale)
	}

	// Source rates and dimensions
	if c.Source.ColorFPS <= 0 {
		return errors.NewInvalidConfigError("source.color_fps must be > 0, got %f", c.Source.ColorFPS)
	}
	if c.Source.DepthFPS <= 0 {
		return errors.NewInvalidConfigError("source.depth_fps must be > 0, got %f", c.Source.DepthFPS)
	}
	if c.Source.JitterMS < 0 {
		return errors.NewInvalidConfigError("source.jitter_ms must be >= 0, got %d", c.Source.JitterMS)
	}
	if c.Source.Frames < 0 {
		return errors.NewInvalidConfigError("source.frames must be >= 0, got %d", c.Source.Frames)
	}
	if c.Source.ColorWidth <= 0 || c.Source.ColorHeight <= 0 {
		return errors.NewInvalidConfigError("source color dimensions must be positive, got %dx%d", c.Source.ColorWidth, c.Source.ColorHeight)
	}
	if c.Source.DepthWidth <= 0 || c.Source.DepthHeight <= 0 {
		return errors.NewInvalidConfigError("source depth dimensions must be positive, got %dx%d", c.Source.DepthWidth, c.Source.DepthHeight)
	}

	// History retention: 0 = keep everything, negative = invalid
	if c.History.Retention < 0 {
		return errors.NewInvalidConfigError("history.retention must be >= 0, got %d", c.History.Retention)
	}

	// Telemetry: validate only when enabled
	if c.Telemetry.Enabled {
		if c.Telemetry.Port <= 0 || c.Telemetry.Port > 65535 {
			return errors.NewInvalidConfigError("telemetry.port must be in (0, 65535], got %d", c.Telemetry.Port)
		}
		if c.Telemetry.SystemIntervalMS < 0 {
			return errors.NewInvalidConfigError("telemetry.system_interval_ms must be >= 0, got %d", c.Telemetry.SystemIntervalMS)
		}
	}

	return nil
}
