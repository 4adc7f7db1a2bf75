package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the default config file location.
const ConfigPath = "config.yaml"

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"logLevel"`

	// DatabaseURL selects Postgres; empty falls back to the in-memory store.
	DatabaseURL string `yaml:"databaseURL"`

	// SessionStrategy is "memory", "redis" or "jwt".
	SessionStrategy   string `yaml:"sessionStrategy"`
	SessionTTLMinutes int    `yaml:"sessionTTLMinutes"`
	RedisAddr         string `yaml:"redisAddr"`
	RedisPassword     string `yaml:"redisPassword"`
	JWTSecret         string `yaml:"jwtSecret"`

	GeminiAPIKey  string `yaml:"geminiAPIKey"`
	ChatModel     string `yaml:"chatModel"`
	DocumentModel string `yaml:"documentModel"`

	HistoryLimit    int `yaml:"historyLimit"`
	MessagePageSize int `yaml:"messagePageSize"`

	SettingsPollSeconds int `yaml:"settingsPollSeconds"`
	MessagePollSeconds  int `yaml:"messagePollSeconds"`

	AuthRateLimit         int `yaml:"authRateLimit"`
	AuthRateWindowSeconds int `yaml:"authRateWindowSeconds"`

	MinioEndpoint         string `yaml:"minioEndpoint"`
	MinioAccessKey        string `yaml:"minioAccessKey"`
	MinioSecretKey        string `yaml:"minioSecretKey"`
	MinioBucket           string `yaml:"minioBucket"`
	MinioUseSSL           bool   `yaml:"minioUseSSL"`
	AttachmentInlineLimit int64  `yaml:"attachmentInlineLimit"`
}

// Load reads config from path (defaults to config.yaml).
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	// Override with environment variables
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("SESSION_STRATEGY"); v != "" {
		cfg.SessionStrategy = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.GeminiAPIKey = v
	}
	if v := os.Getenv("GEMINI_CHAT_MODEL"); v != "" {
		cfg.ChatModel = v
	}
	if v := os.Getenv("GEMINI_DOCUMENT_MODEL"); v != "" {
		cfg.DocumentModel = v
	}
	if v := os.Getenv("MINIO_ENDPOINT"); v != "" {
		cfg.MinioEndpoint = v
	}
	if v := os.Getenv("MINIO_ACCESS_KEY"); v != "" {
		cfg.MinioAccessKey = v
	}
	if v := os.Getenv("MINIO_SECRET_KEY"); v != "" {
		cfg.MinioSecretKey = v
	}
	if v := os.Getenv("SESSION_TTL_MINUTES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SessionTTLMinutes = n
		}
	}
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyDefaults(cfg *FileConfig) {
	if cfg.SessionStrategy == "" {
		cfg.SessionStrategy = "memory"
	}
	if cfg.SessionTTLMinutes <= 0 {
		cfg.SessionTTLMinutes = 12 * 60
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gemini-2.0-flash"
	}
	if cfg.DocumentModel == "" {
		cfg.DocumentModel = "gemini-2.0-flash"
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 8
	}
	if cfg.MessagePageSize <= 0 {
		cfg.MessagePageSize = 200
	}
	if cfg.SettingsPollSeconds <= 0 {
		cfg.SettingsPollSeconds = 10
	}
	if cfg.MessagePollSeconds <= 0 {
		cfg.MessagePollSeconds = 3
	}
	if cfg.AuthRateLimit <= 0 {
		cfg.AuthRateLimit = 10
	}
	if cfg.AuthRateWindowSeconds <= 0 {
		cfg.AuthRateWindowSeconds = 60
	}
	if cfg.AttachmentInlineLimit <= 0 {
		cfg.AttachmentInlineLimit = 256 * 1024
	}
}

func validateConfig(cfg FileConfig) error {
	if cfg.Port == "" {
		return errors.New("config: port is required (set in config.yaml)")
	}
	switch cfg.SessionStrategy {
	case "memory":
	case "redis":
		if cfg.RedisAddr == "" {
			return errors.New("config: redisAddr is required for the redis session strategy")
		}
	case "jwt":
		if cfg.JWTSecret == "" {
			return errors.New("config: jwtSecret is required for the jwt session strategy (set in config.yaml or JWT_SECRET)")
		}
	default:
		return fmt.Errorf("config: unknown sessionStrategy %q", cfg.SessionStrategy)
	}
	if cfg.MinioEndpoint != "" && cfg.MinioBucket == "" {
		return errors.New("config: minioBucket is required when minioEndpoint is set")
	}
	return nil
}
