// Package conf defines the application settings and loads them from the
// config file, environment and defaults using viper.
package conf

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/viper"
)

// AudioSettings contains settings for clip ingestion and feature extraction.
type AudioSettings struct {
	SampleRate   int     // sample rate all clips are resampled to
	ClipDuration float64 // analysis window in seconds, clips are padded/truncated to this
	ClipPath     string  // directory where uploaded clips are persisted
}

// ModelSettings contains settings for the classification model.
type ModelSettings struct {
	Path    string // path to the TFLite model file
	Threads int    // interpreter thread count, 0 = runtime default
	Sandbox bool   // allow running without a model file, predictions fail per call
}

// AlertSettings contains settings for outbound threat alerts.
type AlertSettings struct {
	Enabled    bool          // false disables alert dispatch entirely
	WebhookURL string        // destination for webhook alerts, empty = none configured
	Timeout    time.Duration // per-delivery timeout
}

// RealtimeSettings contains settings for the websocket broadcast hub.
type RealtimeSettings struct {
	KeepaliveInterval time.Duration // idle window before a keepalive event is sent
	SendBuffer        int           // per-subscriber outbound queue length
}

// SQLiteSettings contains settings for the SQLite database output.
type SQLiteSettings struct {
	Enabled bool
	Path    string
}

// MySQLSettings contains settings for the MySQL database output.
type MySQLSettings struct {
	Enabled  bool
	Username string
	Password string
	Database string
	Host     string
	Port     string
}

// OutputSettings groups the persistence backends.
type OutputSettings struct {
	SQLite SQLiteSettings
	MySQL  MySQLSettings
}

// WebServerSettings contains settings for the HTTP API.
type WebServerSettings struct {
	Enabled bool
	Port    string
	Debug   bool
}

// Settings is the root configuration structure.
type Settings struct {
	Debug bool

	Audio     AudioSettings
	Model     ModelSettings
	Alerts    AlertSettings
	Realtime  RealtimeSettings
	Output    OutputSettings
	WebServer WebServerSettings
}

var (
	settingsInstance *Settings
	once             sync.Once
	settingsMutex    sync.RWMutex
)

// Load reads the configuration from file, environment and defaults.
func Load() (*Settings, error) {
	setDefaultConfig()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath(filepath.Join("$HOME", ".config", "echoguard"))
	viper.AddConfigPath("/etc/echoguard")

	viper.SetEnvPrefix("echoguard")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("fatal error reading config file: %w", err)
		}
		// No config file is fine, defaults and environment apply.
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	settingsMutex.Lock()
	settingsInstance = settings
	settingsMutex.Unlock()

	return settings, nil
}

// Setting returns the loaded settings, loading them on first use.
func Setting() *Settings {
	once.Do(func() {
		settingsMutex.RLock()
		loaded := settingsInstance != nil
		settingsMutex.RUnlock()
		if !loaded {
			if _, err := Load(); err != nil {
				panic(fmt.Sprintf("error loading settings: %v", err))
			}
		}
	})

	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	return settingsInstance
}
