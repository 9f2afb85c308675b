// Package config handles loading and validating the speechplan configuration.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Config is the root configuration for the speechplan daemon.
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Assistant     AssistantConfig     `mapstructure:"assistant"`
	Transcription TranscriptionConfig `mapstructure:"transcription"`
	Recording     RecordingConfig     `mapstructure:"recording"`
	Calendar      CalendarConfig      `mapstructure:"calendar"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// ServerConfig holds the API and health server settings.
type ServerConfig struct {
	Port       int `mapstructure:"port"`
	HealthPort int `mapstructure:"health_port"`
}

// AssistantConfig selects and configures the AI backend.
type AssistantConfig struct {
	Backend string       `mapstructure:"backend"` // "openai" or "gemini"
	OpenAI  OpenAIConfig `mapstructure:"openai"`
	Gemini  GeminiConfig `mapstructure:"gemini"`
}

// OpenAIConfig holds OpenAI API settings.
type OpenAIConfig struct {
	APIKey             string `mapstructure:"api_key"`
	BaseURL            string `mapstructure:"base_url"` // optional OpenAI-compatible endpoint
	TranscriptionModel string `mapstructure:"transcription_model"`
	CompletionModel    string `mapstructure:"completion_model"`
}

// GeminiConfig holds Gemini API settings.
type GeminiConfig struct {
	APIKey   string `mapstructure:"api_key"`
	Model    string `mapstructure:"model"`
	Endpoint string `mapstructure:"endpoint"`
}

// TranscriptionConfig controls how audio submissions are processed.
type TranscriptionConfig struct {
	// Async makes POST /transcribe return a pollable job handle instead of
	// blocking until the upstream responds.
	Async bool `mapstructure:"async"`

	// PollInterval and MaxRetries are the client-side polling parameters,
	// also used as defaults by speechctl.
	PollInterval string `mapstructure:"poll_interval"`
	MaxRetries   int    `mapstructure:"max_retries"`
}

// RecordingConfig bounds client-side audio capture.
type RecordingConfig struct {
	// MaxDuration is the hard cap after which recording is force-stopped,
	// as a Go duration string (e.g. "60s").
	MaxDuration string `mapstructure:"max_duration"`
}

// CalendarConfig configures the optional calendar event scheduler.
type CalendarConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Token    string `mapstructure:"token"`
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, text
	File   string `mapstructure:"file"`   // optional rotating log file
}

// Load reads the configuration from file, environment variables, and defaults.
// If configFile is non-empty it is used directly; otherwise the standard
// search order applies: ./speechplan.yaml, ./configs/speechplan.yaml,
// /etc/speechplan/speechplan.yaml.
func Load(configFile string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.health_port", 8081)
	v.SetDefault("assistant.backend", "openai")
	v.SetDefault("assistant.openai.transcription_model", "whisper-1")
	v.SetDefault("assistant.openai.completion_model", "gpt-4o-mini")
	v.SetDefault("assistant.gemini.model", "gemini-1.5-flash")
	v.SetDefault("assistant.gemini.endpoint", "https://generativelanguage.googleapis.com/v1beta")
	v.SetDefault("transcription.async", false)
	v.SetDefault("transcription.poll_interval", "500ms")
	v.SetDefault("transcription.max_retries", 60)
	v.SetDefault("recording.max_duration", "60s")
	v.SetDefault("calendar.enabled", false)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Config file
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("speechplan")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/speechplan")
	}

	// Environment variables: SPEECHPLAN_SERVER_PORT, SPEECHPLAN_ASSISTANT_BACKEND, etc.
	v.SetEnvPrefix("SPEECHPLAN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (optional; env vars and defaults are sufficient)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		slog.Info("no config file found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", "path", v.ConfigFileUsed())
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	// Resolve env var references in sensitive fields (e.g., "${OPENAI_API_KEY}")
	cfg.Assistant.OpenAI.APIKey = resolveEnvRef(cfg.Assistant.OpenAI.APIKey)
	cfg.Assistant.Gemini.APIKey = resolveEnvRef(cfg.Assistant.Gemini.APIKey)
	cfg.Calendar.Token = resolveEnvRef(cfg.Calendar.Token)

	return &cfg, nil
}

// resolveEnvRef replaces "${VAR_NAME}" patterns with the corresponding env var value.
func resolveEnvRef(val string) string {
	if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
		envKey := val[2 : len(val)-1]
		if envVal := os.Getenv(envKey); envVal != "" {
			return envVal
		}
	}
	return val
}

// SetupLogging configures the global slog logger based on config. When a log
// file is configured, output goes to both stdout and a size-rotated file.
func SetupLogging(cfg LoggingConfig) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    20, // megabytes
			MaxBackups: 3,
			MaxAge:     14, // days
		})
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	slog.SetDefault(slog.New(handler))
}
