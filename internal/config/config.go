package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"tova-go/internal/engine"
)

// Conf holds the application configuration, making it accessible globally.
var Conf *Config

var confMu sync.RWMutex

// Config struct is the top-level configuration structure.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Test     TestConfig     `mapstructure:"test"`
	Sink     SinkConfig     `mapstructure:"sink"`
}

// ServerConfig holds server-related settings.
type ServerConfig struct {
	Port string `mapstructure:"port"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     string `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

// LoggingConfig holds settings for the logger.
type LoggingConfig struct {
	Directory  string `mapstructure:"directory"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	Console    bool   `mapstructure:"console"`
	Level      string `mapstructure:"level"`
}

// TestConfig holds the timing and probability constants of a test session.
// All durations are in milliseconds.
type TestConfig struct {
	ISIMs               int     `mapstructure:"isi_ms"`
	ExposureMs          int     `mapstructure:"exposure_ms"`
	LeadInMs            int     `mapstructure:"lead_in_ms"` // negative follows isi_ms
	TrialCount          int     `mapstructure:"trial_count"`
	DurationMs          int     `mapstructure:"duration_ms"` // 0 derives lead-in + count*ISI
	TargetProbability   float64 `mapstructure:"target_probability"`
	ResponseWindowMs    int     `mapstructure:"response_window_ms"`
	RTUpperBoundMs      int     `mapstructure:"rt_upper_bound_ms"`
	Seed                int64   `mapstructure:"seed"` // 0 seeds from the clock
}

// SinkConfig holds settings for result submission.
type SinkConfig struct {
	URL             string `mapstructure:"url"`
	TimeoutMs       int    `mapstructure:"timeout_ms"`
	RetryIntervalMs int    `mapstructure:"retry_interval_ms"`
	PendingDir      string `mapstructure:"pending_dir"`
}

// Engine converts the test section into the engine's configuration.
func (t TestConfig) Engine() engine.Config {
	leadIn := ms(t.LeadInMs)
	if t.LeadInMs < 0 {
		leadIn = ms(t.ISIMs)
	}
	return engine.Config{
		ISI:                 ms(t.ISIMs),
		Exposure:            ms(t.ExposureMs),
		LeadIn:              leadIn,
		TrialCount:          t.TrialCount,
		Duration:            ms(t.DurationMs),
		TargetProbability:   t.TargetProbability,
		ResponseWindow:      ms(t.ResponseWindowMs),
		ReactionTimeCeiling: ms(t.RTUpperBoundMs),
	}
}

// Validate reports a misconfigured test section.
func (t TestConfig) Validate() error {
	return t.Engine().Validate()
}

func (s SinkConfig) Timeout() time.Duration       { return ms(s.TimeoutMs) }
func (s SinkConfig) RetryInterval() time.Duration { return ms(s.RetryIntervalMs) }

func ms(v int) time.Duration {
	return time.Duration(v) * time.Millisecond
}

// setDefaults sets the default values for the configuration.
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "5050")

	// Database defaults
	v.SetDefault("database.host", "db")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "user")
	v.SetDefault("database.password", "password")
	v.SetDefault("database.dbname", "tova-db")

	// Logging defaults
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.max_size", 10)   // 10 MB
	v.SetDefault("logging.max_backups", 3) // Keep 3 backups
	v.SetDefault("logging.max_age", 7)     // 7 days
	v.SetDefault("logging.compress", true) // Compress old logs
	v.SetDefault("logging.console", true)
	v.SetDefault("logging.level", "debug")

	// Test defaults
	v.SetDefault("test.isi_ms", 2000)
	v.SetDefault("test.exposure_ms", 100)
	v.SetDefault("test.lead_in_ms", -1) // one ISI
	v.SetDefault("test.trial_count", 648)
	v.SetDefault("test.duration_ms", 0)
	v.SetDefault("test.target_probability", 0.22)
	v.SetDefault("test.response_window_ms", 2000)
	v.SetDefault("test.rt_upper_bound_ms", 3000)
	v.SetDefault("test.seed", 0)

	// Sink defaults
	v.SetDefault("sink.url", "")
	v.SetDefault("sink.timeout_ms", 10000)
	v.SetDefault("sink.retry_interval_ms", 60000)
	v.SetDefault("sink.pending_dir", "pending")
}

// Defaults returns the configuration with no file or environment applied.
func Defaults() *Config {
	v := viper.New()
	setDefaults(v)
	var c Config
	if err := v.Unmarshal(&c); err != nil {
		panic("invalid configuration defaults: " + err.Error())
	}
	return &c
}

// Init initializes the configuration with Viper. A nil log defers to the
// global zap logger, so the logger can be built from the loaded config.
func Init(projectRoot string, log *zap.Logger) error {
	logf := func() *zap.Logger {
		if log != nil {
			return log
		}
		return zap.L()
	}
	v := viper.New()

	// Set default values
	setDefaults(v)

	// --- File Configuration ---
	v.AddConfigPath(filepath.Join(projectRoot, "config"))
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// --- Environment Variable Binding ---
	v.SetEnvPrefix("TOVA") // e.g., TOVA_TEST_ISI_MS
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// It's okay if the file doesn't exist; defaults and env vars will be used.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	var loaded Config
	if err := v.Unmarshal(&loaded); err != nil {
		return fmt.Errorf("unable to decode config into struct: %w", err)
	}
	if err := loaded.Test.Validate(); err != nil {
		return err
	}
	set(&loaded)

	// Running sessions keep the test section they started with; a reload
	// only affects sessions created afterwards.
	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		logf().Info("Configuration file changed, reloading.", zap.String("file", e.Name))
		var reloaded Config
		if err := v.Unmarshal(&reloaded); err != nil {
			logf().Error("Error reloading configuration", zap.Error(err))
			return
		}
		if err := reloaded.Test.Validate(); err != nil {
			logf().Error("Rejected reloaded test configuration", zap.Error(err))
			return
		}
		set(&reloaded)
	})

	logf().Info("Configuration loaded successfully")
	return nil
}

// Current returns a copy of the active configuration.
func Current() Config {
	confMu.RLock()
	defer confMu.RUnlock()
	if Conf == nil {
		return *Defaults()
	}
	return *Conf
}

func set(c *Config) {
	confMu.Lock()
	Conf = c
	confMu.Unlock()
}
