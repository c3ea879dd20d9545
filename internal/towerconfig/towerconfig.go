// Package towerconfig loads Tower's closed set of environment variables.
package towerconfig

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds every tunable Tower reads from its environment at startup.
type Config struct {
	Host string
	Port int

	SampleRate  int
	Channels    int
	BitrateKbps int

	DefaultSource  string
	SilenceMP3Path string // env name is historical; the file is read as WAV, see sourcegraph.LoadFileNode
	SocketPath     string
	BufferSize     int
	FrameTimeoutMs int

	EncoderRestartMax       int
	EncoderRestartBackoffMs int

	ClientTimeoutMs int
	ReadChunkSize   int
	ShutdownTimeout time.Duration
}

// Load reads Config from the process environment, applying the defaults
// named in the external interface contract.
func Load() *Config {
	return &Config{
		Host:        getEnv("TOWER_HOST", "0.0.0.0"),
		Port:        getEnvInt("TOWER_PORT", 8000),
		SampleRate:  getEnvInt("TOWER_SAMPLE_RATE", 48000),
		Channels:    getEnvInt("TOWER_CHANNELS", 2),
		BitrateKbps: getEnvInt("TOWER_BITRATE", 128),

		DefaultSource:  getEnv("TOWER_DEFAULT_SOURCE", "tone"),
		SilenceMP3Path: os.Getenv("TOWER_SILENCE_MP3_PATH"),
		SocketPath:     getEnv("TOWER_SOCKET_PATH", "/tmp/retrowaves-bridge.sock"),
		BufferSize:     getEnvInt("TOWER_BUFFER_SIZE", 5),
		FrameTimeoutMs: getEnvInt("TOWER_FRAME_TIMEOUT_MS", 100),

		EncoderRestartMax:       getEnvInt("TOWER_ENCODER_RESTART_MAX", 5),
		EncoderRestartBackoffMs: getEnvInt("TOWER_ENCODER_RESTART_BACKOFF_MS", 1000),

		ClientTimeoutMs: getEnvInt("TOWER_CLIENT_TIMEOUT_MS", 250),
		ReadChunkSize:   getEnvInt("TOWER_READ_CHUNK_SIZE", 4096),
		ShutdownTimeout: getEnvDuration("TOWER_SHUTDOWN_TIMEOUT", 5*time.Second),
	}
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
