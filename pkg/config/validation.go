package config

import (
	"fmt"
	"strings"
)

var (
	validLevels  = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}
	validFormats = map[string]bool{"text": true, "json": true}
)

// validate validates the configuration
func validate(cfg *Config) error {
	if cfg.Decoder.QueueSize <= 0 {
		return fmt.Errorf("decoder.queue_size must be positive")
	}
	if cfg.Decoder.CallTimeout <= 0 {
		return fmt.Errorf("decoder.call_timeout must be positive")
	}
	if cfg.Decoder.MinCallDuration < 0 {
		return fmt.Errorf("decoder.min_call_duration must not be negative")
	}
	seen := make(map[string]bool, len(cfg.Decoder.Captures))
	for i, path := range cfg.Decoder.Captures {
		if strings.TrimSpace(path) == "" {
			return fmt.Errorf("decoder.captures[%d] is empty", i)
		}
		if seen[path] {
			return fmt.Errorf("decoder.captures lists %s twice", path)
		}
		seen[path] = true
	}

	if cfg.Web.Enabled {
		if cfg.Web.Port <= 0 || cfg.Web.Port > 65535 {
			return fmt.Errorf("web.port must be between 1 and 65535")
		}
		if cfg.Web.History < 0 {
			return fmt.Errorf("web.history must not be negative")
		}
	}

	if cfg.MQTT.Enabled {
		if cfg.MQTT.Broker == "" {
			return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
		}
		if cfg.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2")
		}
		if strings.ContainsAny(cfg.MQTT.TopicPrefix, "+#") {
			return fmt.Errorf("mqtt.topic_prefix must not contain wildcards")
		}
	}

	if cfg.Logging.Level != "" && !validLevels[strings.ToLower(cfg.Logging.Level)] {
		return fmt.Errorf("logging.level %q is not one of debug, info, warn, error", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "" && !validFormats[strings.ToLower(cfg.Logging.Format)] {
		return fmt.Errorf("logging.format must be text or json")
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Prometheus.Enabled {
		if cfg.Metrics.Prometheus.Port <= 0 || cfg.Metrics.Prometheus.Port > 65535 {
			return fmt.Errorf("metrics.prometheus.port must be between 1 and 65535")
		}
		if !strings.HasPrefix(cfg.Metrics.Prometheus.Path, "/") {
			return fmt.Errorf("metrics.prometheus.path must start with /")
		}
		if cfg.Web.Enabled && cfg.Web.Port == cfg.Metrics.Prometheus.Port {
			return fmt.Errorf("metrics.prometheus.port conflicts with web.port")
		}
	}

	if cfg.Database.Enabled {
		if cfg.Database.Path == "" {
			return fmt.Errorf("database.path is required when database is enabled")
		}
		if cfg.Database.Retention < 0 {
			return fmt.Errorf("database.retention must not be negative")
		}
	}

	return nil
}
