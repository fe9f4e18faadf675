// Package config loads server settings from an optional YAML file and TTT_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"ctchen222/tictactoe-arena/internal/validator"

	"github.com/spf13/viper"
)

// HTTPConfig holds the HTTP listener settings.
type HTTPConfig struct {
	Addr      string `mapstructure:"addr" validate:"required"`
	StaticDir string `mapstructure:"static_dir"`
}

// LogConfig holds structured logging settings.
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

// TelemetryConfig holds OpenTelemetry settings. An empty OTLPEndpoint exports traces to stdout.
type TelemetryConfig struct {
	Enabled      bool   `mapstructure:"enabled"`
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name" validate:"required"`
}

// RedisConfig holds the event publisher connection settings.
type RedisConfig struct {
	Enabled       bool   `mapstructure:"enabled"`
	Addr          string `mapstructure:"addr" validate:"required_if=Enabled true"`
	EventsChannel string `mapstructure:"events_channel"`
}

// HubConfig holds dispatcher tuning.
type HubConfig struct {
	SweepInterval time.Duration `mapstructure:"sweep_interval" validate:"gt=0"`
	StatsInterval time.Duration `mapstructure:"stats_interval" validate:"gt=0"`
	SendBuffer    int           `mapstructure:"send_buffer" validate:"gt=0"`
}

// WebSocketConfig holds per-connection limits and keepalive timing.
type WebSocketConfig struct {
	ReadLimit    int64         `mapstructure:"read_limit" validate:"gt=0"`
	PingInterval time.Duration `mapstructure:"ping_interval" validate:"gt=0"`
	PongWait     time.Duration `mapstructure:"pong_wait" validate:"gt=0"`
	WriteWait    time.Duration `mapstructure:"write_wait" validate:"gt=0"`
}

// Config is the top-level application configuration.
type Config struct {
	HTTP      HTTPConfig      `mapstructure:"http"`
	Log       LogConfig       `mapstructure:"log"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Hub       HubConfig       `mapstructure:"hub"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
}

// Validate checks all configuration invariants.
func (c Config) Validate() error {
	if err := validator.GetValidator().Struct(c); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	if c.WebSocket.PingInterval >= c.WebSocket.PongWait {
		return errors.New("configuration validation failed: websocket.ping_interval must be shorter than websocket.pong_wait")
	}
	return nil
}

// Load reads the config file at path, if any, applies TTT_ environment overrides and defaults,
// and validates the result. An empty path loads from defaults and environment only.
func Load(path string) (Config, error) {
	v := viper.New()

	v.SetEnvPrefix("TTT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http.addr", ":8080")
	v.SetDefault("http.static_dir", "./web")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "tic-tac-toe")

	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.events_channel", "channel:events")

	v.SetDefault("hub.sweep_interval", "1m")
	v.SetDefault("hub.stats_interval", "30s")
	v.SetDefault("hub.send_buffer", 16)

	v.SetDefault("websocket.read_limit", 1024)
	v.SetDefault("websocket.ping_interval", "25s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
}
