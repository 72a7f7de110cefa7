package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"calltriage/internal/domain"
)

// DisabledDBPath turns persistence off.
const DisabledDBPath = "off"

// Config stores runtime configuration for the triage service.
type Config struct {
	Server   ServerConfig
	Deepgram DeepgramConfig
	OpenAI   OpenAIConfig
	Audio    AudioConfig
	Rules    RulesConfig
	Session  SessionConfig
	Store    StoreConfig
}

type ServerConfig struct {
	ListenAddr string
	LogLevel   slog.Level
}

type DeepgramConfig struct {
	APIKey         string
	APIBaseURL     string
	Model          string
	SmartFormat    bool
	DetectLanguage bool
	Timeout        time.Duration
	MaxRetries     uint64
	RetryBackoff   time.Duration
}

type OpenAIConfig struct {
	APIKey       string
	APIBaseURL   string
	Model        string
	Temperature  float64
	Timeout      time.Duration
	MaxRetries   uint64
	RetryBackoff time.Duration
}

type AudioConfig struct {
	FFMPEGCommand string
	SampleRate    int
	Channels      int
}

type RulesConfig struct {
	CriteriaPath string
}

type SessionConfig struct {
	DrainTimeout        time.Duration
	WorkerStopGrace     time.Duration
	PartialNoteInterval int
	MinChunkBytes       int
	DefaultLocale       domain.Locale
}

type StoreConfig struct {
	// Path is empty when persistence is disabled.
	Path string
}

// Enabled reports whether finalized calls are persisted.
func (s StoreConfig) Enabled() bool {
	return s.Path != ""
}

// Load resolves configuration from environment variables and sensible defaults.
func Load() (Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Config{}, errors.New("could not determine home directory")
	}

	criteriaPath := strings.TrimSpace(os.Getenv("CALLTRIAGE_CRITERIA_FILE"))
	if criteriaPath == "" {
		userCriteria := filepath.Join(home, ".config", "calltriage", "criteria.yaml")
		if _, err := os.Stat(userCriteria); err == nil {
			criteriaPath = userCriteria
		}
	}

	locale, err := domain.ParseLocale(envOrDefault("CALLTRIAGE_DEFAULT_LOCALE", string(domain.LocaleEnglish)))
	if err != nil {
		return Config{}, fmt.Errorf("CALLTRIAGE_DEFAULT_LOCALE: %w", err)
	}

	level, err := parseLevel(envOrDefault("CALLTRIAGE_LOG_LEVEL", "info"))
	if err != nil {
		return Config{}, fmt.Errorf("CALLTRIAGE_LOG_LEVEL: %w", err)
	}

	backoff := envOrDefaultDuration("CALLTRIAGE_RETRY_BACKOFF_MS", 250*time.Millisecond)

	cfg := Config{
		Server: ServerConfig{
			ListenAddr: envOrDefault("CALLTRIAGE_LISTEN_ADDR", ":8000"),
			LogLevel:   level,
		},
		Deepgram: DeepgramConfig{
			APIKey:         strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
			APIBaseURL:     envOrDefault("DEEPGRAM_API_BASE", "https://api.deepgram.com/v1"),
			Model:          envOrDefault("DEEPGRAM_MODEL", "nova-2"),
			SmartFormat:    envOrDefaultBool("DEEPGRAM_SMART_FORMAT", true),
			DetectLanguage: envOrDefaultBool("DEEPGRAM_DETECT_LANGUAGE", true),
			Timeout:        envOrDefaultDuration("CALLTRIAGE_STT_TIMEOUT_MS", 30*time.Second),
			MaxRetries:     uint64(envOrDefaultNonNegative("CALLTRIAGE_STT_MAX_RETRIES", 2)),
			RetryBackoff:   backoff,
		},
		OpenAI: OpenAIConfig{
			APIKey:       strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
			APIBaseURL:   envOrDefault("OPENAI_API_BASE", "https://api.openai.com/v1"),
			Model:        envOrDefault("AI_MODEL", "gpt-4o-mini"),
			Temperature:  envOrDefaultFloat("AI_TEMPERATURE", 0.3),
			Timeout:      envOrDefaultDuration("CALLTRIAGE_AI_TIMEOUT_MS", 20*time.Second),
			MaxRetries:   uint64(envOrDefaultNonNegative("CALLTRIAGE_AI_MAX_RETRIES", 2)),
			RetryBackoff: backoff,
		},
		Audio: AudioConfig{
			FFMPEGCommand: envOrDefault("CALLTRIAGE_FFMPEG_COMMAND", "ffmpeg"),
			SampleRate:    envOrDefaultInt("CALLTRIAGE_SAMPLE_RATE", 16000),
			Channels:      envOrDefaultInt("CALLTRIAGE_CHANNELS", 1),
		},
		Rules: RulesConfig{
			CriteriaPath: criteriaPath,
		},
		Session: SessionConfig{
			DrainTimeout:        envOrDefaultDuration("CALLTRIAGE_DRAIN_TIMEOUT_MS", 10*time.Second),
			WorkerStopGrace:     envOrDefaultDuration("CALLTRIAGE_WORKER_STOP_GRACE_MS", 2*time.Second),
			PartialNoteInterval: envOrDefaultNonNegative("CALLTRIAGE_PARTIAL_NOTE_INTERVAL", 10),
			MinChunkBytes:       envOrDefaultNonNegative("CALLTRIAGE_MIN_CHUNK_BYTES", 1000),
			DefaultLocale:       locale,
		},
		Store: StoreConfig{
			Path: firstNonEmpty(
				os.Getenv("CALLTRIAGE_DB_PATH"),
				filepath.Join(home, ".local", "share", "calltriage", "calls.sqlite"),
			),
		},
	}

	if strings.EqualFold(cfg.Store.Path, DisabledDBPath) {
		cfg.Store.Path = ""
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 16000
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}

	return cfg, nil
}

func parseLevel(value string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q", value)
	}
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed != "" {
			return trimmed
		}
	}
	return ""
}

func envOrDefault(key string, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}

func envOrDefaultInt(key string, fallback int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fallback
	}
	return parsed
}

func envOrDefaultNonNegative(key string, fallback int) int {
	parsed := envOrDefaultInt(key, fallback)
	if parsed < 0 {
		return fallback
	}
	return parsed
}

func envOrDefaultFloat(key string, fallback float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

// envOrDefaultDuration reads a millisecond count. Zero and negative values
// fall back.
func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	ms := envOrDefaultInt(key, -1)
	if ms <= 0 {
		return fallback
	}
	return time.Duration(ms) * time.Millisecond
}

func envOrDefaultBool(key string, fallback bool) bool {
	value := strings.TrimSpace(strings.ToLower(os.Getenv(key)))
	switch value {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}
