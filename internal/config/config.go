// Package config loads worker configuration from environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the callpipe worker.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	Speech   SpeechConfig
	AI       AIConfig
	Worker   WorkerConfig
}

type ServerConfig struct {
	Port int
	Env  string
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig is optional; an empty URL disables the status cache.
type RedisConfig struct {
	URL string
}

type StorageConfig struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
}

type SpeechConfig struct {
	APIKey            string
	FolderID          string
	Language          string
	Model             string
	ProfanityFilter   bool
	Diarization       bool
	RecognizeEndpoint string
	OperationEndpoint string
	PollInterval      time.Duration
	Timeout           time.Duration
}

type AIConfig struct {
	Provider         string
	InferenceTimeout time.Duration
	OpenAI           OpenAIConfig
}

type OpenAIConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type WorkerConfig struct {
	ID           string
	Concurrency  int
	PollInterval time.Duration
}

var validProviders = map[string]bool{
	"openai": true,
	"mock":   true,
}

// Load reads configuration from environment variables and returns a validated Config.
// Returns an error with a descriptive message if any required value is missing or invalid.
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port: envInt("CALLPIPE_PORT", 8090),
			Env:  envString("CALLPIPE_ENV", "development"),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL: os.Getenv("REDIS_URL"),
		},
		Storage: StorageConfig{
			Endpoint:        os.Getenv("STORAGE_ENDPOINT"),
			Region:          envString("STORAGE_REGION", "ru-central1"),
			Bucket:          os.Getenv("STORAGE_BUCKET"),
			AccessKeyID:     os.Getenv("STORAGE_ACCESS_KEY_ID"),
			SecretAccessKey: os.Getenv("STORAGE_SECRET_ACCESS_KEY"),
		},
		Speech: SpeechConfig{
			APIKey:            os.Getenv("SPEECHKIT_API_KEY"),
			FolderID:          os.Getenv("SPEECHKIT_FOLDER_ID"),
			Language:          envString("SPEECHKIT_LANGUAGE", "ru-RU"),
			Model:             envString("SPEECHKIT_MODEL", "general"),
			ProfanityFilter:   envBool("SPEECHKIT_PROFANITY_FILTER", false),
			Diarization:       envBool("SPEECHKIT_DIARIZATION", true),
			RecognizeEndpoint: envString("SPEECHKIT_RECOGNIZE_ENDPOINT", "https://stt.api.cloud.yandex.net"),
			OperationEndpoint: envString("SPEECHKIT_OPERATION_ENDPOINT", "https://operation.api.cloud.yandex.net"),
			PollInterval:      envDuration("SPEECHKIT_POLL_INTERVAL", 10*time.Second),
			Timeout:           envDuration("SPEECHKIT_TIMEOUT", 30*time.Second),
		},
		AI: AIConfig{
			Provider:         envString("AI_PROVIDER", "openai"),
			InferenceTimeout: envDurationSecs("AI_INFERENCE_TIMEOUT_SECS", 300*time.Second),
			OpenAI: OpenAIConfig{
				APIKey:  os.Getenv("OPENAI_API_KEY"),
				Model:   envString("OPENAI_MODEL", "gpt-4o-2024-08-06"),
				BaseURL: envString("OPENAI_BASE_URL", "https://api.openai.com"),
			},
		},
		Worker: WorkerConfig{
			ID:           envString("WORKER_ID", defaultWorkerID()),
			Concurrency:  envInt("WORKER_CONCURRENCY", 1),
			PollInterval: envDuration("WORKER_POLL_INTERVAL", time.Second),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	if c.Storage.Endpoint == "" {
		return fmt.Errorf("STORAGE_ENDPOINT is required")
	}
	if !strings.HasPrefix(c.Storage.Endpoint, "http://") && !strings.HasPrefix(c.Storage.Endpoint, "https://") {
		return fmt.Errorf("STORAGE_ENDPOINT must start with http:// or https://, got %q", c.Storage.Endpoint)
	}
	if c.Storage.Bucket == "" {
		return fmt.Errorf("STORAGE_BUCKET is required")
	}
	if c.Storage.AccessKeyID == "" || c.Storage.SecretAccessKey == "" {
		return fmt.Errorf("STORAGE_ACCESS_KEY_ID and STORAGE_SECRET_ACCESS_KEY are required")
	}

	if !validProviders[c.AI.Provider] {
		return fmt.Errorf("AI_PROVIDER must be one of openai, mock; got %q", c.AI.Provider)
	}
	if c.AI.Provider == "openai" && c.AI.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY is required when AI_PROVIDER is openai")
	}

	if c.Worker.Concurrency < 1 {
		return fmt.Errorf("WORKER_CONCURRENCY must be at least 1")
	}

	return nil
}

func defaultWorkerID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "worker"
	}
	return host
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func envBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func envDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

func envDurationSecs(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	secs, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return time.Duration(secs) * time.Second
}
