package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the application configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Decoder  DecoderConfig  `mapstructure:"decoder"`
	Web      WebConfig      `mapstructure:"web"`
	MQTT     MQTTConfig     `mapstructure:"mqtt"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Database DatabaseConfig `mapstructure:"database"`
}

// ServerConfig holds server identification
type ServerConfig struct {
	Name        string `mapstructure:"name"`
	Description string `mapstructure:"description"`
}

// DecoderConfig holds the capture inputs and the per-channel decoder settings
type DecoderConfig struct {
	Captures        []string      `mapstructure:"captures"`         // capture files, .zst allowed
	BandPlanFile    string        `mapstructure:"band_plan_file"`   // optional YAML seed
	QueueSize       int           `mapstructure:"queue_size"`       // records buffered per channel
	CallTimeout     time.Duration `mapstructure:"call_timeout"`     // voice call ends without a terminator
	MinCallDuration time.Duration `mapstructure:"min_call_duration"`
}

// WebConfig holds web dashboard configuration
type WebConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	StaticDir string `mapstructure:"static_dir"`
	History   int    `mapstructure:"history"` // recent messages kept for /api/messages
}

// MQTTConfig holds MQTT client configuration
type MQTTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Broker      string `mapstructure:"broker"`
	TopicPrefix string `mapstructure:"topic_prefix"`
	ClientID    string `mapstructure:"client_id"`
	Username    string `mapstructure:"username"`
	Password    string `mapstructure:"password"`
	QoS         byte   `mapstructure:"qos"`
	Retained    bool   `mapstructure:"retained"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
}

// MetricsConfig holds metrics configuration
type MetricsConfig struct {
	Enabled    bool             `mapstructure:"enabled"`
	Prometheus PrometheusConfig `mapstructure:"prometheus"`
}

// PrometheusConfig holds Prometheus metrics configuration
type PrometheusConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// DatabaseConfig holds the SQLite event log configuration
type DatabaseConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	Path      string        `mapstructure:"path"`
	Retention time.Duration `mapstructure:"retention"` // 0 keeps everything
}

// Load loads configuration from file and environment variables.
// Environment variables use the P25_ prefix with dots replaced by
// underscores, for example P25_MQTT_BROKER.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/p25-nexus")
	}

	v.SetEnvPrefix("P25")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.name", "P25-Nexus")
	v.SetDefault("server.description", "Go P25 trunking decoder")

	v.SetDefault("decoder.captures", []string{})
	v.SetDefault("decoder.band_plan_file", "")
	v.SetDefault("decoder.queue_size", 256)
	v.SetDefault("decoder.call_timeout", "3s")
	v.SetDefault("decoder.min_call_duration", "500ms")

	v.SetDefault("web.enabled", true)
	v.SetDefault("web.host", "0.0.0.0")
	v.SetDefault("web.port", 8080)
	v.SetDefault("web.static_dir", "frontend/dist")
	v.SetDefault("web.history", 200)

	v.SetDefault("mqtt.enabled", false)
	v.SetDefault("mqtt.topic_prefix", "p25/nexus")
	v.SetDefault("mqtt.client_id", "p25-nexus")
	v.SetDefault("mqtt.qos", 1)
	v.SetDefault("mqtt.retained", false)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")
	v.SetDefault("logging.max_size", 100)
	v.SetDefault("logging.max_backups", 3)
	v.SetDefault("logging.max_age", 7)
	v.SetDefault("logging.compress", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.prometheus.enabled", true)
	v.SetDefault("metrics.prometheus.port", 9090)
	v.SetDefault("metrics.prometheus.path", "/metrics")

	v.SetDefault("database.enabled", true)
	v.SetDefault("database.path", "p25-nexus.db")
	v.SetDefault("database.retention", "168h")
}
