package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/menta2k/rock-classifier/pkg/types"
)

// Supported values for CLASSIFIER_BACKEND.
const (
	BackendGemini   = "gemini"
	BackendOllama   = "ollama"
	BackendLlamaCpp = "llamacpp"
)

// Config holds the application configuration
type Config struct {
	Server     ServerConfig
	Classifier ClassifierConfig
	Gemini     GeminiConfig
	Ollama     BackendConfig
	LlamaCpp   BackendConfig
	Encoder    EncoderConfig
	App        AppConfig
	Log        LogConfig
}

type ServerConfig struct {
	Host string
	Port string
}

// ClassifierConfig selects the vision backend
type ClassifierConfig struct {
	Backend string
	// Timeout bounds one backend call; 0 leaves it to the transport.
	Timeout time.Duration
}

type GeminiConfig struct {
	APIKey     string
	BaseURL    string
	APIVersion string
	Model      string
}

// BackendConfig holds the address and model of a self-hosted backend
type BackendConfig struct {
	URL   string
	Model string
}

type EncoderConfig struct {
	JPEGQuality  int
	MaxDimension int
}

type AppConfig struct {
	MaxUploadSize  int64
	MaxPixels      int
	AllowedFormats []string
}

type LogConfig struct {
	Level string
}

// Load reads .env (if present), an optional CONFIG_FILE and the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, types.NewConfigError("load .env", err)
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, types.NewConfigError("read config file", err)
		}
	}

	return fromViper(v), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_HOST", "localhost")
	v.SetDefault("SERVER_PORT", "8501")
	v.SetDefault("CLASSIFIER_BACKEND", BackendGemini)
	v.SetDefault("CLASSIFY_TIMEOUT", 120*time.Second)
	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com")
	v.SetDefault("GEMINI_API_VERSION", "v1beta")
	v.SetDefault("GEMINI_MODEL", "gemini-2.5-flash-preview-09-2025")
	v.SetDefault("OLLAMA_URL", "http://localhost:11434")
	v.SetDefault("OLLAMA_MODEL", "llava")
	v.SetDefault("LLAMACPP_URL", "http://localhost:8080")
	v.SetDefault("LLAMACPP_MODEL", "openbmb/minicpm-v4.5")
	v.SetDefault("ENCODER_JPEG_QUALITY", 75)
	v.SetDefault("ENCODER_MAX_DIMENSION", 0)
	v.SetDefault("APP_MAX_UPLOAD_SIZE", 20*1024*1024) // 20MB
	v.SetDefault("APP_MAX_PIXELS", 40_000_000)
	v.SetDefault("APP_ALLOWED_FORMATS", "jpg,jpeg,png")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("CONFIG_FILE", "")
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		Server: ServerConfig{
			Host: v.GetString("SERVER_HOST"),
			Port: v.GetString("SERVER_PORT"),
		},
		Classifier: ClassifierConfig{
			Backend: strings.ToLower(strings.TrimSpace(v.GetString("CLASSIFIER_BACKEND"))),
			Timeout: v.GetDuration("CLASSIFY_TIMEOUT"),
		},
		Gemini: GeminiConfig{
			APIKey:     strings.TrimSpace(v.GetString("GEMINI_API_KEY")),
			BaseURL:    v.GetString("GEMINI_BASE_URL"),
			APIVersion: v.GetString("GEMINI_API_VERSION"),
			Model:      v.GetString("GEMINI_MODEL"),
		},
		Ollama: BackendConfig{
			URL:   v.GetString("OLLAMA_URL"),
			Model: v.GetString("OLLAMA_MODEL"),
		},
		LlamaCpp: BackendConfig{
			URL:   v.GetString("LLAMACPP_URL"),
			Model: v.GetString("LLAMACPP_MODEL"),
		},
		Encoder: EncoderConfig{
			JPEGQuality:  v.GetInt("ENCODER_JPEG_QUALITY"),
			MaxDimension: v.GetInt("ENCODER_MAX_DIMENSION"),
		},
		App: AppConfig{
			MaxUploadSize:  v.GetInt64("APP_MAX_UPLOAD_SIZE"),
			MaxPixels:      v.GetInt("APP_MAX_PIXELS"),
			AllowedFormats: splitList(v.GetString("APP_ALLOWED_FORMATS")),
		},
		Log: LogConfig{
			Level: v.GetString("LOG_LEVEL"),
		},
	}
}

// Validate checks the configuration before any network call is attempted.
func (c *Config) Validate() error {
	switch c.Classifier.Backend {
	case BackendGemini:
		if c.Gemini.APIKey == "" {
			return types.NewConfigError("validate", errors.New("GEMINI_API_KEY is not set"))
		}
	case BackendOllama, BackendLlamaCpp:
	default:
		return types.NewConfigError("validate", fmt.Errorf("unknown CLASSIFIER_BACKEND %q (use gemini, ollama or llamacpp)", c.Classifier.Backend))
	}

	if c.Classifier.Timeout < 0 {
		return types.NewConfigError("validate", errors.New("CLASSIFY_TIMEOUT must not be negative"))
	}

	if c.Encoder.JPEGQuality < 1 || c.Encoder.JPEGQuality > 100 {
		return types.NewConfigError("validate", errors.New("ENCODER_JPEG_QUALITY must be between 1 and 100"))
	}

	if c.Encoder.MaxDimension < 0 {
		return types.NewConfigError("validate", errors.New("ENCODER_MAX_DIMENSION must not be negative"))
	}

	if c.App.MaxUploadSize <= 0 {
		return types.NewConfigError("validate", errors.New("APP_MAX_UPLOAD_SIZE must be positive"))
	}

	if len(c.App.AllowedFormats) == 0 {
		return types.NewConfigError("validate", errors.New("APP_ALLOWED_FORMATS cannot be empty"))
	}

	return nil
}

// Summary lists settings safe to log. The API key is reported only as set/unset.
func (c *Config) Summary() map[string]any {
	return map[string]any{
		"backend":         c.Classifier.Backend,
		"timeout":         c.Classifier.Timeout.String(),
		"gemini_model":    c.Gemini.Model,
		"gemini_key_set":  c.Gemini.APIKey != "",
		"jpeg_quality":    c.Encoder.JPEGQuality,
		"max_dimension":   c.Encoder.MaxDimension,
		"max_upload_size": c.App.MaxUploadSize,
		"allowed_formats": c.App.AllowedFormats,
	}
}

// splitList splits a comma separated list, dropping empty items and leading dots.
func splitList(value string) []string {
	var items []string
	for _, item := range strings.Split(value, ",") {
		item = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(item), "."))
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}
