// Package config loads the gateway configuration from a YAML file and the
// environment.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/gloomgate-dev/gloomgate/pkg/server"
)

const envVarPrefix = "GLOOMGATE"

// Config contains every configuration option of the gateway.
type Config struct {
	// Listen address (host:port).
	Addr string `mapstructure:"addr"`
	// Minimum level of a log required to be written. Options: debug, info, warn, error
	LogLevel string `mapstructure:"log_level"`
	// Emit logs as JSON instead of text.
	LogJSON bool `mapstructure:"log_json"`
	// Full path to the log file. Blank writes to stdout.
	LogFile string `mapstructure:"log_file"`

	WebSocket struct {
		// Path the upgrade endpoint is mounted on.
		Path string `mapstructure:"path"`
		// Pacing interval of the per-connection send loop.
		SendInterval time.Duration `mapstructure:"send_interval"`
		// How long a graceful close waits for the peer's acknowledgement.
		CloseTimeout time.Duration `mapstructure:"close_timeout"`
		// Interval of the server time broadcast and the orphan reaper.
		TimestampInterval time.Duration `mapstructure:"timestamp_interval"`
		// Websocket I/O buffer sizes in bytes.
		ReadBufferSize  int `mapstructure:"read_buffer_size"`
		WriteBufferSize int `mapstructure:"write_buffer_size"`
		// Cap on inbound frame size in bytes. Zero disables the cap.
		MaxMessageSize int64 `mapstructure:"max_message_size"`
		// Reject upgrade requests whose Origin does not match the host.
		CheckOrigin bool `mapstructure:"check_origin"`
	} `mapstructure:"websocket"`

	TLS struct {
		CertFile string `mapstructure:"cert_file"`
		KeyFile  string `mapstructure:"key_file"`
	} `mapstructure:"tls"`

	// Bound on the whole graceful shutdown sequence.
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// Load reads the configuration from config.yaml under configPath, applying
// defaults first and environment overrides last. A missing config file is
// fine; missing path plus defaults is a fully working setup.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.AddConfigPath(configPath)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix(envVarPrefix)
	v.AutomaticEnv()

	// Nested yaml options map to env vars with dots replaced by
	// underscores, e.g. websocket.send_interval becomes
	// GLOOMGATE_WEBSOCKET_SEND_INTERVAL.
	for _, k := range v.AllKeys() {
		envVar := strings.ReplaceAll(strings.ToUpper(k), ".", "_")
		if err := v.BindEnv(k, envVarPrefix+"_"+envVar); err != nil {
			return nil, fmt.Errorf("binding %s: %w", k, err)
		}
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	defaults := server.DefaultConfig()
	v.SetDefault("addr", defaults.Addr)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
	v.SetDefault("log_file", "")
	v.SetDefault("websocket.path", defaults.WebSocketPath)
	v.SetDefault("websocket.send_interval", defaults.SendInterval)
	v.SetDefault("websocket.close_timeout", defaults.CloseTimeout)
	v.SetDefault("websocket.timestamp_interval", defaults.TimestampInterval)
	v.SetDefault("websocket.read_buffer_size", defaults.ReadBufferSize)
	v.SetDefault("websocket.write_buffer_size", defaults.WriteBufferSize)
	v.SetDefault("websocket.max_message_size", defaults.MaxMessageSize)
	v.SetDefault("websocket.check_origin", defaults.CheckOrigin)
	v.SetDefault("shutdown_timeout", defaults.ShutdownTimeout)
}

// ServerConfig maps the loaded configuration onto the server package's
// config struct.
func (c *Config) ServerConfig() *server.Config {
	cfg := server.DefaultConfig()
	cfg.Addr = c.Addr
	cfg.WebSocketPath = c.WebSocket.Path
	cfg.SendInterval = c.WebSocket.SendInterval
	cfg.CloseTimeout = c.WebSocket.CloseTimeout
	cfg.TimestampInterval = c.WebSocket.TimestampInterval
	cfg.ReadBufferSize = c.WebSocket.ReadBufferSize
	cfg.WriteBufferSize = c.WebSocket.WriteBufferSize
	cfg.MaxMessageSize = c.WebSocket.MaxMessageSize
	cfg.CheckOrigin = c.WebSocket.CheckOrigin
	cfg.ShutdownTimeout = c.ShutdownTimeout
	cfg.TLSCertFile = c.TLS.CertFile
	cfg.TLSKeyFile = c.TLS.KeyFile
	return cfg
}

// Logger builds the root slog logger per the configured level, format and
// destination.
func (c *Config) Logger() (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	out := io.Writer(os.Stdout)
	if c.LogFile != "" {
		f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
		out = f
	}

	opts := &slog.HandlerOptions{Level: level}
	if c.LogJSON {
		return slog.New(slog.NewJSONHandler(out, opts)), nil
	}
	return slog.New(slog.NewTextHandler(out, opts)), nil
}
