// Package config defines runtime defaults, file and environment loading, and
// sanitization for the roomhub server.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// RateLimitConfig defines the parameters for per-connection message rate limiting.
type RateLimitConfig struct {
	Burst          int           `toml:"burst"`
	RefillInterval time.Duration `toml:"refill_interval"`
}

// HeartbeatConfig controls websocket keepalive timing.
type HeartbeatConfig struct {
	PingInterval time.Duration `toml:"ping_interval"`
	PongWait     time.Duration `toml:"pong_wait"`
	WriteWait    time.Duration `toml:"write_wait"`
}

// Config holds the server configuration settings including security controls.
type Config struct {
	Port            string          `toml:"port"`
	AllowedOrigins  []string        `toml:"allowed_origins"`
	MaxMessageSize  int64           `toml:"max_message_size"`
	SendBufferSize  int             `toml:"send_buffer_size"`
	ShutdownTimeout time.Duration   `toml:"shutdown_timeout"`
	RateLimit       RateLimitConfig `toml:"rate_limit"`
	Heartbeat       HeartbeatConfig `toml:"heartbeat"`
}

// Default returns a Config populated with default values for all settings.
func Default() Config {
	return Config{
		Port: ":8080",
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxMessageSize:  512,
		SendBufferSize:  256,
		ShutdownTimeout: 10 * time.Second,
		RateLimit: RateLimitConfig{
			Burst:          5,
			RefillInterval: time.Second,
		},
		Heartbeat: HeartbeatConfig{
			PingInterval: 5 * time.Second,
			PongWait:     10 * time.Second,
			WriteWait:    10 * time.Second,
		},
	}
}

// Load builds a Config from defaults, then the TOML file at path (if path is
// not empty), then environment variables. The result is sanitized.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	ApplyEnv(&cfg)
	return Sanitize(cfg), nil
}

func loadFile(path string, out *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	meta, err := toml.Decode(string(data), out)
	if err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, 0, len(undecoded))
		for _, k := range undecoded {
			keys = append(keys, k.String())
		}
		return fmt.Errorf("config parse failed (%s): unknown keys %s", path, strings.Join(keys, ", "))
	}
	return nil
}

// ApplyEnv overrides cfg with any of the supported environment variables.
// Unparseable or non-positive values are ignored.
func ApplyEnv(cfg *Config) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}

	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = ParseOrigins(origins)
	}

	if maxSize := os.Getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseInt64Value(maxSize, cfg.MaxMessageSize)
	}

	if size := os.Getenv("SEND_BUFFER_SIZE"); size != "" {
		cfg.SendBufferSize = parseIntValue(size, cfg.SendBufferSize)
	}

	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}

	// Whole seconds.
	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseSeconds(interval, cfg.RateLimit.RefillInterval)
	}
}

// Sanitize replaces every missing or invalid value with its default and
// trims the origin list.
func Sanitize(cfg Config) Config {
	def := Default()

	if strings.TrimSpace(cfg.Port) == "" {
		cfg.Port = def.Port
	}
	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = def.MaxMessageSize
	}
	if cfg.SendBufferSize <= 0 {
		cfg.SendBufferSize = def.SendBufferSize
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = def.ShutdownTimeout
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = def.RateLimit.Burst
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}
	if cfg.Heartbeat.PingInterval <= 0 {
		cfg.Heartbeat.PingInterval = def.Heartbeat.PingInterval
	}
	if cfg.Heartbeat.PongWait <= cfg.Heartbeat.PingInterval {
		// The peer must get a chance to answer at least one ping.
		cfg.Heartbeat.PongWait = 2 * cfg.Heartbeat.PingInterval
	}
	if cfg.Heartbeat.WriteWait <= 0 {
		cfg.Heartbeat.WriteWait = def.Heartbeat.WriteWait
	}

	origins := make([]string, 0, len(cfg.AllowedOrigins))
	for _, origin := range cfg.AllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	cfg.AllowedOrigins = origins

	return cfg
}

// ParseOrigins splits a comma separated origin list.
func ParseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseInt64Value(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

func parseSeconds(value string, defaultValue time.Duration) time.Duration {
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
