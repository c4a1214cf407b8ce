package server

import (
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/Tyrowin/netsketch/internal/history"
	"github.com/Tyrowin/netsketch/internal/protocol"
)

func TestNewConfigDefaults(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, "0.0.0.0", cfg.Address)
	assert.Equal(t, "7070", cfg.Port)
	assert.Equal(t, "0.0.0.0:7070", cfg.ListenAddr())
	assert.Empty(t, cfg.HTTPAddr)
	assert.Equal(t, uint32(protocol.DefaultMaxFrameSize), cfg.MaxFrameSize)
	assert.Equal(t, 600*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.WriteTimeout)
	assert.Equal(t, history.DefaultMaxDepth, cfg.HistoryDepth)
	assert.Equal(t, 5*time.Second, cfg.ReconnectWindow)
	assert.Equal(t, 24*time.Hour, cfg.UserTTL)
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("NETSKETCH_ADDRESS", "127.0.0.1")
	t.Setenv("NETSKETCH_PORT", "9000")
	t.Setenv("NETSKETCH_HTTP_ADDR", ":8081")
	t.Setenv("ALLOWED_ORIGINS", "http://a.example, https://b.example")
	t.Setenv("MAX_FRAME_SIZE", "4096")
	t.Setenv("READ_TIMEOUT", "30")
	t.Setenv("WRITE_TIMEOUT", "2s")
	t.Setenv("SEND_QUEUE_SIZE", "8")
	t.Setenv("HISTORY_DEPTH", "16")
	t.Setenv("RECONNECT_WINDOW", "1m")
	t.Setenv("USER_TTL", "3600")
	t.Setenv("RATE_LIMIT_BURST", "5")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := NewConfigFromEnv()

	assert.Equal(t, "127.0.0.1:9000", cfg.ListenAddr())
	assert.Equal(t, ":8081", cfg.HTTPAddr)
	assert.Equal(t, []string{"http://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, uint32(4096), cfg.MaxFrameSize)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 2*time.Second, cfg.WriteTimeout)
	assert.Equal(t, 8, cfg.SendQueueSize)
	assert.Equal(t, 16, cfg.HistoryDepth)
	assert.Equal(t, time.Minute, cfg.ReconnectWindow)
	assert.Equal(t, time.Hour, cfg.UserTTL)
	assert.Equal(t, RateLimitConfig{Burst: 5, RefillInterval: 2 * time.Second}, cfg.RateLimit)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestNewConfigFromEnvIgnoresInvalidValues(t *testing.T) {
	t.Setenv("MAX_FRAME_SIZE", "huge")
	t.Setenv("READ_TIMEOUT", "-5")
	t.Setenv("SEND_QUEUE_SIZE", "0")

	cfg := NewConfigFromEnv()
	def := defaultConfig()

	assert.Equal(t, def.MaxFrameSize, cfg.MaxFrameSize)
	assert.Equal(t, def.ReadTimeout, cfg.ReadTimeout)
	assert.Equal(t, def.SendQueueSize, cfg.SendQueueSize)
}

func TestSanitizeConfigFillsZeroValues(t *testing.T) {
	origins := []string{"http://x.example"}
	cfg := sanitizeConfig(Config{Port: "1234", AllowedOrigins: origins})

	assert.Equal(t, "0.0.0.0", cfg.Address)
	assert.Equal(t, "1234", cfg.Port)
	assert.Equal(t, defaultSendQueueSize, cfg.SendQueueSize)
	assert.Equal(t, defaultConfig().RateLimit, cfg.RateLimit)
	assert.Equal(t, "info", cfg.LogLevel)

	origins[0] = "changed"
	assert.Equal(t, []string{"http://x.example"}, cfg.AllowedOrigins)
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLogLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLogLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLogLevel("loud"))
}
