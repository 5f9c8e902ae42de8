package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// SetDefaults configures default values for all configuration options
func SetDefaults(v *viper.Viper) {
	// Sync defaults: 33ms skew is one frame period at 30fps
	v.SetDefault("sync.max_skew_ms", 33)
	v.SetDefault("sync.color_stale_after_ms", 0) // 0 = frames never expire
	v.SetDefault("sync.depth_stale_after_ms", 0)

	// Pipeline defaults
	v.SetDefault("pipeline.steps_per_tick", 2)
	v.SetDefault("pipeline.promote_delay_ticks", 1) // One tick of settle time after finalize
	v.SetDefault("pipeline.tick_interval_ms", 16)   // ~60Hz host loop
	v.SetDefault("pipeline.abort_fill", -1.0)       // Negative depth marks aborted output

	// Executor defaults
	v.SetDefault("executor.width", 160)
	v.SetDefault("executor.height", 120)
	v.SetDefault("executor.passes", 12)
	v.SetDefault("executor.lambda", 0.65)
	v.SetDefault("executor.edge_scale", 0.08)

	// Source defaults: depth runs at half the color rate, like a LiDAR feed
	v.SetDefault("source.color_fps", 30.0)
	v.SetDefault("source.depth_fps", 15.0)
	v.SetDefault("source.jitter_ms", 5)
	v.SetDefault("source.frames", 0)
	v.SetDefault("source.color_width", 160)
	v.SetDefault("source.color_height", 120)
	v.SetDefault("source.depth_width", 40)
	v.SetDefault("source.depth_height", 30)

	// History defaults
	v.SetDefault("history.path", "imotar.db")
	v.SetDefault("history.retention", 0)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.port", DefaultTelemetryPort)
	v.SetDefault("telemetry.allowed_origins", []string{
		"http://localhost",
		"https://localhost",
		"http://127.0.0.1",
		"https://127.0.0.1",
	})
	v.SetDefault("telemetry.system_interval_ms", 2000)
}

// BindEnvOverrides explicitly binds deployment-sensitive configuration
// to environment variables
func BindEnvOverrides(v *viper.Viper) {
	// Database path
	v.BindEnv("history.path", "IMOTAR_HISTORY_PATH")

	// Telemetry endpoint
	v.BindEnv("telemetry.enabled", "IMOTAR_TELEMETRY_ENABLED")
	v.BindEnv("telemetry.port", "IMOTAR_TELEMETRY_PORT")
}

// GetHistoryPath returns the configured job ledger path
func (c *Config) GetHistoryPath() string {
	if c.History.Path == "" {
		return "imotar.db" // Fallback default
	}
	return c.History.Path
}

// GetTelemetryAddr returns the telemetry listen address
func (c *Config) GetTelemetryAddr() string {
	port := c.Telemetry.Port
	if port == 0 {
		port = DefaultTelemetryPort
	}
	return fmt.Sprintf(":%d", port)
}

// GetTelemetryAllowedOrigins returns the allowed CORS origins for the hub
func (c *Config) GetTelemetryAllowedOrigins() []string {
	if len(c.Telemetry.AllowedOrigins) == 0 {
		return []string{
			"http://localhost",
			"https://localhost",
			"http://127.0.0.1",
			"https://127.0.0.1",
		}
	}
	return c.Telemetry.AllowedOrigins
}

// String returns a string representation of the config
func (c *Config) String() string {
	return fmt.Sprintf("Config{Sync: {MaxSkewMS: %d}, Pipeline: {StepsPerTick: %d, PromoteDelayTicks: %d}, Executor: {%dx%d/%d passes}}",
		c.Sync.MaxSkewMS, c.Pipeline.StepsPerTick, c.Pipeline.PromoteDelayTicks,
		c.Executor.Width, c.Executor.Height, c.Executor.Passes)
}
