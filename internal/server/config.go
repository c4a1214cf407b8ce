// Package server provides configuration helpers that define runtime defaults,
// validation, and rate-limiting parameters for the NetSketch service.
package server

import (
	"log/slog"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/Tyrowin/netsketch/internal/history"
	"github.com/Tyrowin/netsketch/internal/protocol"
)

// RateLimitConfig defines the parameters for per-connection request rate limiting.
type RateLimitConfig struct {
	Burst          int
	RefillInterval time.Duration
}

// Config holds the server configuration settings.
type Config struct {
	// Address and Port form the TCP listen address of the drawing protocol.
	Address string
	Port    string
	// HTTPAddr enables the HTTP surface (health, stats, WebSocket transport)
	// when non-empty.
	HTTPAddr       string
	AllowedOrigins []string

	MaxFrameSize  uint32
	ReadTimeout   time.Duration
	WriteTimeout  time.Duration
	SendQueueSize int

	HistoryDepth    int
	ReconnectWindow time.Duration
	UserTTL         time.Duration
	SweepInterval   time.Duration

	RateLimit RateLimitConfig
	LogLevel  string
}

const (
	defaultAddress       = "0.0.0.0"
	defaultPort          = "7070"
	defaultReadTimeout   = 600 * time.Second
	defaultWriteTimeout  = 10 * time.Second
	defaultSendQueueSize = 256
	defaultUserTTL       = 24 * time.Hour
	defaultSweepInterval = 10 * time.Minute
	defaultRateBurst     = 100
)

func defaultConfig() Config {
	return Config{
		Address: defaultAddress,
		Port:    defaultPort,
		AllowedOrigins: []string{
			"http://localhost:8080",
		},
		MaxFrameSize:    protocol.DefaultMaxFrameSize,
		ReadTimeout:     defaultReadTimeout,
		WriteTimeout:    defaultWriteTimeout,
		SendQueueSize:   defaultSendQueueSize,
		HistoryDepth:    history.DefaultMaxDepth,
		ReconnectWindow: history.DefaultReconnectWindow,
		UserTTL:         defaultUserTTL,
		SweepInterval:   defaultSweepInterval,
		RateLimit: RateLimitConfig{
			Burst:          defaultRateBurst,
			RefillInterval: time.Second,
		},
		LogLevel: "info",
	}
}

func sanitizeConfig(cfg Config) Config {
	def := defaultConfig()

	if cfg.Address == "" {
		cfg.Address = def.Address
	}
	if cfg.Port == "" {
		cfg.Port = def.Port
	}
	if cfg.MaxFrameSize == 0 {
		cfg.MaxFrameSize = def.MaxFrameSize
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if cfg.SendQueueSize <= 0 {
		cfg.SendQueueSize = def.SendQueueSize
	}
	if cfg.HistoryDepth <= 0 {
		cfg.HistoryDepth = def.HistoryDepth
	}
	if cfg.ReconnectWindow <= 0 {
		cfg.ReconnectWindow = def.ReconnectWindow
	}
	if cfg.UserTTL <= 0 {
		cfg.UserTTL = def.UserTTL
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = def.SweepInterval
	}
	if cfg.RateLimit.Burst <= 0 {
		cfg.RateLimit.Burst = def.RateLimit.Burst
	}
	if cfg.RateLimit.RefillInterval <= 0 {
		cfg.RateLimit.RefillInterval = def.RateLimit.RefillInterval
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)

	return cfg
}

// ListenAddr returns the host:port the TCP listener binds to.
func (c Config) ListenAddr() string {
	return net.JoinHostPort(c.Address, c.Port)
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are not set.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()

	if address := os.Getenv("NETSKETCH_ADDRESS"); address != "" {
		cfg.Address = address
	}
	if port := os.Getenv("NETSKETCH_PORT"); port != "" {
		cfg.Port = port
	}
	if httpAddr := os.Getenv("NETSKETCH_HTTP_ADDR"); httpAddr != "" {
		cfg.HTTPAddr = httpAddr
	}
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}
	if maxSize := os.Getenv("MAX_FRAME_SIZE"); maxSize != "" {
		cfg.MaxFrameSize = parseFrameSize(maxSize, cfg.MaxFrameSize)
	}
	if timeout := os.Getenv("READ_TIMEOUT"); timeout != "" {
		cfg.ReadTimeout = parseSeconds(timeout, cfg.ReadTimeout)
	}
	if timeout := os.Getenv("WRITE_TIMEOUT"); timeout != "" {
		cfg.WriteTimeout = parseSeconds(timeout, cfg.WriteTimeout)
	}
	if queue := os.Getenv("SEND_QUEUE_SIZE"); queue != "" {
		cfg.SendQueueSize = parseIntValue(queue, cfg.SendQueueSize)
	}
	if depth := os.Getenv("HISTORY_DEPTH"); depth != "" {
		cfg.HistoryDepth = parseIntValue(depth, cfg.HistoryDepth)
	}
	if window := os.Getenv("RECONNECT_WINDOW"); window != "" {
		cfg.ReconnectWindow = parseSeconds(window, cfg.ReconnectWindow)
	}
	if ttl := os.Getenv("USER_TTL"); ttl != "" {
		cfg.UserTTL = parseSeconds(ttl, cfg.UserTTL)
	}
	if burst := os.Getenv("RATE_LIMIT_BURST"); burst != "" {
		cfg.RateLimit.Burst = parseIntValue(burst, cfg.RateLimit.Burst)
	}
	if interval := os.Getenv("RATE_LIMIT_REFILL_INTERVAL"); interval != "" {
		cfg.RateLimit.RefillInterval = parseSeconds(interval, cfg.RateLimit.RefillInterval)
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	return &cfg
}

// ParseLogLevel maps a level name such as "debug" or "WARN" to a slog level,
// defaulting to info.
func ParseLogLevel(name string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(name))); err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseFrameSize(value string, defaultValue uint32) uint32 {
	if size, err := strconv.ParseUint(value, 10, 32); err == nil && size > 0 {
		return uint32(size)
	}
	return defaultValue
}

func parseIntValue(value string, defaultValue int) int {
	if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
		return parsed
	}
	return defaultValue
}

// parseSeconds accepts either a Go duration ("90s", "5m") or a bare number
// of seconds.
func parseSeconds(value string, defaultValue time.Duration) time.Duration {
	if d, err := time.ParseDuration(value); err == nil && d > 0 {
		return d
	}
	if seconds, err := strconv.Atoi(value); err == nil && seconds > 0 {
		return time.Duration(seconds) * time.Second
	}
	return defaultValue
}
