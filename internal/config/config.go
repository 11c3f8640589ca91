package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/constants"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/models"
	"github.com/sanusi-mayowa/QuickTalk-sub000/internal/security"
)

// LoadConfig reads, defaults, overrides, and validates the daemon
// configuration. Environment variables win over file values so deployments
// can keep secrets out of the config file.
func LoadConfig(path string) (*models.Config, error) {
	if err := security.ValidateFilePath(path); err != nil {
		return nil, models.ConfigError{Message: fmt.Sprintf("config path: %v", err)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg models.Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)
	applyEnvOverrides(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *models.Config) {
	if cfg.Remote.TimeoutSec <= 0 {
		cfg.Remote.TimeoutSec = constants.DefaultHTTPTimeoutSec
	}
	if cfg.Sync.IntervalSec <= 0 {
		cfg.Sync.IntervalSec = constants.DefaultSyncIntervalSec
	}
	if cfg.Sync.StaleThresholdSec <= 0 {
		cfg.Sync.StaleThresholdSec = constants.DefaultStaleThresholdSec
	}
	if cfg.Sync.StaleCheckIntervalSec <= 0 {
		cfg.Sync.StaleCheckIntervalSec = constants.DefaultStaleCheckIntervalSec
	}
	if cfg.Typing.ThrottleMs <= 0 {
		cfg.Typing.ThrottleMs = constants.DefaultTypingThrottleMs
	}
	if cfg.Typing.QuietMs <= 0 {
		cfg.Typing.QuietMs = constants.DefaultTypingQuietMs
	}
	if cfg.Typing.TTLMs <= 0 {
		cfg.Typing.TTLMs = constants.DefaultTypingTTLMs
	}
	if cfg.Typing.SweepMs <= 0 {
		cfg.Typing.SweepMs = constants.DefaultTypingSweepMs
	}
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = constants.DefaultServerPort
	}
	if cfg.Tracing.SampleRate <= 0 {
		cfg.Tracing.SampleRate = 0.1
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

func applyEnvOverrides(cfg *models.Config) {
	if v := os.Getenv("QUICKTALK_REMOTE_BASE_URL"); v != "" {
		cfg.Remote.BaseURL = v
	}
	if v := os.Getenv("QUICKTALK_REMOTE_AUTH_TOKEN"); v != "" {
		cfg.Remote.AuthToken = v
	}
	if v := os.Getenv("QUICKTALK_AUTH_USER_ID"); v != "" {
		cfg.Remote.AuthUserID = v
	}
	if v := os.Getenv("QUICKTALK_REALTIME_URL"); v != "" {
		cfg.Realtime.URL = v
	}
	if v := os.Getenv("QUICKTALK_REALTIME_AUTH_TOKEN"); v != "" {
		cfg.Realtime.AuthToken = v
	}
	if v := os.Getenv("QUICKTALK_STORAGE_PATH"); v != "" {
		cfg.Storage.Path = v
	}
	if v := os.Getenv("QUICKTALK_SYNC_INTERVAL_SEC"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Sync.IntervalSec = n
		}
	}
	if v := os.Getenv("QUICKTALK_SERVER_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("QUICKTALK_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

func validate(cfg *models.Config) error {
	if cfg.Remote.BaseURL == "" {
		return models.ConfigError{Message: "remote.base_url is required"}
	}
	if cfg.Remote.AuthUserID == "" {
		return models.ConfigError{Message: "remote.auth_user_id is required"}
	}
	if cfg.Storage.Path == "" {
		return models.ConfigError{Message: "storage.path is required"}
	}
	if err := security.ValidateStorePath(cfg.Storage.Path); err != nil {
		return models.ConfigError{Message: fmt.Sprintf("storage.path: %v", err)}
	}
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return models.ConfigError{Message: "server.port must be between 1 and 65535"}
	}
	return nil
}
