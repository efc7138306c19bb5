// Package config handles platform configuration
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Capture backends.
const (
	BackendDisplay = "display"
	BackendCommand = "command"
)

type Config struct {
	HTTPAddr          string
	InferenceAddr     string
	SampleInterval    time.Duration
	TargetLanguage    string
	StorePath         string
	StoreURL          string // display surfaces only
	CaptureBackend    string
	CaptureDisplay    int
	MaxFrameWidth     int
	JPEGQuality       int
	SkipSimilarFrames bool
	HistorySize       int
	AllowedOrigins    []string
	OverlayGeometry   string
	LogLevel          string
}

func Load() *Config {
	return &Config{
		HTTPAddr:          getEnv("HTTP_ADDR", "127.0.0.1:8000"),
		InferenceAddr:     getEnv("INFERENCE_ADDR", "localhost:50051"),
		SampleInterval:    getEnvDuration("SAMPLE_INTERVAL", 5*time.Second),
		TargetLanguage:    getEnv("TARGET_LANGUAGE", "vi"),
		StorePath:         getEnv("STORE_PATH", "lingualens-store.json"),
		StoreURL:          getEnv("STORE_URL", "ws://127.0.0.1:8000/api/store"),
		CaptureBackend:    getEnv("CAPTURE_BACKEND", BackendDisplay),
		CaptureDisplay:    getEnvInt("CAPTURE_DISPLAY", 0),
		MaxFrameWidth:     getEnvInt("MAX_FRAME_WIDTH", 1920),
		JPEGQuality:       getEnvInt("JPEG_QUALITY", 85),
		SkipSimilarFrames: getEnvBool("SKIP_SIMILAR_FRAMES", true),
		HistorySize:       getEnvInt("HISTORY_SIZE", 100),
		AllowedOrigins:    getEnvList("ALLOWED_ORIGINS", []string{"127.0.0.1:*", "localhost:*"}),
		OverlayGeometry:   getEnv("OVERLAY_GEOMETRY", "900x160+80+80"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}
}

// SlogLevel maps LogLevel onto slog. Unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return def
}

func getEnvList(key string, def []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if t := strings.TrimSpace(p); t != "" {
				result = append(result, t)
			}
		}
		return result
	}
	return def
}
