package models

// Config is the daemon configuration loaded from a JSON file.
type Config struct {
	Remote   RemoteConfig   `json:"remote"`
	Realtime RealtimeConfig `json:"realtime"`
	Storage  StorageConfig  `json:"storage"`
	Sync     SyncConfig     `json:"sync"`
	Typing   TypingConfig   `json:"typing"`
	Server   ServerConfig   `json:"server"`
	Tracing  TracingConfig  `json:"tracing"`
	LogLevel string         `json:"log_level"`
}

// RemoteConfig points at the authoritative document store.
type RemoteConfig struct {
	BaseURL    string `json:"base_url"`
	AuthToken  string `json:"auth_token"`
	AuthUserID string `json:"auth_user_id"`
	TimeoutSec int    `json:"timeout_sec"`
}

// RealtimeConfig points at the change-feed transport.
type RealtimeConfig struct {
	URL       string `json:"url"`
	AuthToken string `json:"auth_token"`
}

// StorageConfig locates the device-local durable store.
type StorageConfig struct {
	Path string `json:"path"`
}

// SyncConfig tunes the drain loop. Remote failures are never backed off;
// a failed record simply waits for the next interval tick or online edge.
type SyncConfig struct {
	IntervalSec           int `json:"interval_sec"`
	StaleThresholdSec     int `json:"stale_threshold_sec"`
	StaleCheckIntervalSec int `json:"stale_check_interval_sec"`
}

// TypingConfig tunes typing-indicator timings, all in milliseconds.
type TypingConfig struct {
	ThrottleMs int `json:"throttle_ms"`
	QuietMs    int `json:"quiet_ms"`
	TTLMs      int `json:"ttl_ms"`
	SweepMs    int `json:"sweep_ms"`
}

// ServerConfig configures the local HTTP status surface.
type ServerConfig struct {
	Port int `json:"port"`
}

// TracingConfig configures OpenTelemetry export.
type TracingConfig struct {
	Enabled      bool    `json:"enabled"`
	OTLPEndpoint string  `json:"otlp_endpoint"`
	UseStdout    bool    `json:"use_stdout"`
	SampleRate   float64 `json:"sample_rate"`
	Environment  string  `json:"environment"`
}

// ConfigError represents a configuration validation failure.
type ConfigError struct {
	Message string
}

func (e ConfigError) Error() string {
	return e.Message
}
