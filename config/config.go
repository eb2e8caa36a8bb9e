package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server     ServerConfig
	Recordings RecordingsConfig
	Transcode  TranscodeConfig
	Signaling  SignalingConfig
	API        APIConfig
	CORS       CORSConfig
}

type ServerConfig struct {
	Port string
	Env  string
}

type RecordingsConfig struct {
	Dir           string
	RetentionDays int
	SweepInterval time.Duration
	PublicPrefix  string
}

type TranscodeConfig struct {
	FFmpegBin  string
	FFprobeBin string
}

type SignalingConfig struct {
	// AnnounceReplaced controls whether watchers receive a
	// broadcaster-stopped notification when a new broadcaster
	// supersedes the old one. Off by default to match the original
	// silent-replacement behavior.
	AnnounceReplaced bool
	EventsPerSec     int
}

type APIConfig struct {
	RateLimitUploadsPerSec int
}

type CORSConfig struct {
	AllowedOrigins []string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	_ = godotenv.Load()

	retentionDays, err := strconv.Atoi(getEnv("RECORDING_RETENTION_DAYS", "15"))
	if err != nil || retentionDays <= 0 {
		retentionDays = 15
	}

	sweepHours, err := strconv.Atoi(getEnv("RECORDING_SWEEP_HOURS", "24"))
	if err != nil || sweepHours <= 0 {
		sweepHours = 24
	}

	eventsPerSec, err := strconv.Atoi(getEnv("SIGNALING_EVENTS_PER_SECOND", "20"))
	if err != nil || eventsPerSec <= 0 {
		eventsPerSec = 20
	}

	uploadRate, err := strconv.Atoi(getEnv("RATE_LIMIT_UPLOADS_PER_SECOND", "10"))
	if err != nil || uploadRate <= 0 {
		uploadRate = 10
	}

	origins := strings.Split(getEnv("CORS_ALLOWED_ORIGINS", "*"), ",")

	cfg := &Config{
		Server: ServerConfig{
			Port: getEnv("PORT", "3000"),
			Env:  getEnv("ENV", "development"),
		},
		Recordings: RecordingsConfig{
			Dir:           getEnv("RECORDINGS_DIR", "recordings"),
			RetentionDays: retentionDays,
			SweepInterval: time.Duration(sweepHours) * time.Hour,
			PublicPrefix:  getEnv("RECORDINGS_PUBLIC_PREFIX", "/recordings"),
		},
		Transcode: TranscodeConfig{
			FFmpegBin:  getEnv("FFMPEG_BIN", "ffmpeg"),
			FFprobeBin: getEnv("FFPROBE_BIN", "ffprobe"),
		},
		Signaling: SignalingConfig{
			AnnounceReplaced: getEnv("ANNOUNCE_REPLACED_BROADCAST", "false") == "true",
			EventsPerSec:     eventsPerSec,
		},
		API: APIConfig{
			RateLimitUploadsPerSec: uploadRate,
		},
		CORS: CORSConfig{
			AllowedOrigins: origins,
		},
	}

	if cfg.Recordings.Dir == "" {
		return nil, fmt.Errorf("RECORDINGS_DIR must not be empty")
	}

	return cfg, nil
}

// RetentionWindow returns the maximum age a stored recording may reach
// before the sweeper deletes it.
func (c *Config) RetentionWindow() time.Duration {
	return time.Duration(c.Recordings.RetentionDays) * 24 * time.Hour
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
