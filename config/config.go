// Package config holds the imotar configuration: stream pairing bounds,
// pipeline pacing, executor grid, synthetic source rates, history storage
// and telemetry. Configuration is TOML, merged from system, user and
// project files with IMOTAR_* environment overrides on top.
package config

// Config represents the core imotar configuration
type Config struct {
	Sync      SyncConfig      `mapstructure:"sync"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Executor  ExecutorConfig  `mapstructure:"executor"`
	Source    SourceConfig    `mapstructure:"source"`
	History   HistoryConfig   `mapstructure:"history"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// SyncConfig configures dual-stream timestamp pairing
type SyncConfig struct {
	MaxSkewMS         int `mapstructure:"max_skew_ms"`          // Max |tsColor - tsDepth| for a pair, inclusive (default: 33)
	ColorStaleAfterMS int `mapstructure:"color_stale_after_ms"` // Drop a held color frame this much older than depth; 0 = never
	DepthStaleAfterMS int `mapstructure:"depth_stale_after_ms"` // Drop a held depth frame this much older than color; 0 = never
}

// PipelineConfig configures the tick-driven job scheduler
type PipelineConfig struct {
	StepsPerTick      int     `mapstructure:"steps_per_tick"`      // Executor advances per tick (default: 2)
	PromoteDelayTicks int     `mapstructure:"promote_delay_ticks"` // Ticks between finalize and completion (default: 1)
	TickIntervalMS    int     `mapstructure:"tick_interval_ms"`    // Host loop tick period (default: 16)
	AbortFill         float64 `mapstructure:"abort_fill"`          // Sentinel written to the output on abort (default: -1.0)
}

// ExecutorConfig configures the depth refinement executor
type ExecutorConfig struct {
	Width     int     `mapstructure:"width"`      // Model grid width (default: 160)
	Height    int     `mapstructure:"height"`     // Model grid height (default: 120)
	Passes    int     `mapstructure:"passes"`     // Diffusion passes per job (default: 12)
	Lambda    float64 `mapstructure:"lambda"`     // Relaxation rate per pass, (0,1] (default: 0.65)
	EdgeScale float64 `mapstructure:"edge_scale"` // Luminance edge at which diffusion falls to 1/e (default: 0.08)
}

// SourceConfig configures the synthetic frame sources
type SourceConfig struct {
	ColorFPS    float64 `mapstructure:"color_fps"`    // Color frame rate (default: 30)
	DepthFPS    float64 `mapstructure:"depth_fps"`    // Depth frame rate (default: 15)
	JitterMS    int     `mapstructure:"jitter_ms"`    // Max random timestamp jitter per frame (default: 5)
	Frames      int     `mapstructure:"frames"`       // Frames to emit per stream, 0 = unbounded
	ColorWidth  int     `mapstructure:"color_width"`  // Color frame width (default: 160)
	ColorHeight int     `mapstructure:"color_height"` // Color frame height (default: 120)
	DepthWidth  int     `mapstructure:"depth_width"`  // Sparse depth width (default: 40)
	DepthHeight int     `mapstructure:"depth_height"` // Sparse depth height (default: 30)
}

// HistoryConfig configures the job ledger database
type HistoryConfig struct {
	Path      string `mapstructure:"path"`      // SQLite database path (default: imotar.db)
	Retention int    `mapstructure:"retention"` // Max rows kept, oldest pruned; 0 = unbounded
}

// TelemetryConfig configures the WebSocket event hub
type TelemetryConfig struct {
	Enabled          bool     `mapstructure:"enabled"`            // Serve live events over WebSocket (default: false)
	Port             int      `mapstructure:"port"`               // Listen port (default: 8790)
	AllowedOrigins   []string `mapstructure:"allowed_origins"`    // CORS origins for the hub endpoint
	SystemIntervalMS int      `mapstructure:"system_interval_ms"` // Period between system snapshots (default: 2000)
}

// DefaultTelemetryPort is the telemetry hub listen port when none is configured
const DefaultTelemetryPort = 8790

// File system constants
const (
	DefaultDirPermissions  = 0755 // Standard directory permissions (rwxr-xr-x)
	DefaultFilePermissions = 0644 // Standard file permissions (rw-r--r--)
)
