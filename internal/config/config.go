package config

import (
	"io"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/joho/godotenv"
)

// Config holds everything the console needs to talk to a deep
// research backend and render its output locally.
type Config struct {
	// Backend endpoints. BackendURL is the HTTP base; the WebSocket
	// URL is derived from it.
	BackendURL string `yaml:"backend_url"`
	SearchPath string `yaml:"search_path"`
	ExportPath string `yaml:"export_path"`
	HealthPath string `yaml:"health_path"`

	DialTimeout    time.Duration
	RequestTimeout time.Duration

	// Reconnect behaviour. MaxAttempts of 0 retries forever.
	ReconnectDelay       time.Duration
	ReconnectMaxAttempts int

	// Research defaults
	DefaultDepth string `yaml:"default_depth"`

	// Downloads
	DownloadDir string `yaml:"download_dir"`

	// Preview server for saved reports
	PreviewEnabled     bool   `yaml:"preview_enabled"`
	PreviewAddr        string `yaml:"preview_addr"`
	CORSAllowedOrigins string `yaml:"cors_allowed_origins"`

	// Health polling
	HealthPollSchedule string `yaml:"health_poll_schedule"`

	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

var (
	AppConfig *Config

	DefaultReconnectDelay = 2 * time.Second
	DefaultDialTimeout    = 10 * time.Second
	DefaultRequestTimeout = 30 * time.Second
)

// LoadConfig loads the configuration from the environment and, when
// present, a YAML config file. The file is optional; missing keys keep
// their environment values.
func LoadConfig() *Config {
	// Load .env file if it exists
	if err := godotenv.Load(".env"); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	AppConfig = &Config{
		BackendURL:     strings.TrimRight(getEnvOrDefault("DEEPR_BACKEND_URL", "http://localhost:8000"), "/"),
		SearchPath:     getEnvOrDefault("DEEPR_SEARCH_PATH", "/ws/search"),
		ExportPath:     getEnvOrDefault("DEEPR_EXPORT_PATH", "/api/export"),
		HealthPath:     getEnvOrDefault("DEEPR_HEALTH_PATH", "/api/health"),
		DialTimeout:    getEnvAsDuration("DEEPR_DIAL_TIMEOUT", DefaultDialTimeout),
		RequestTimeout: getEnvAsDuration("DEEPR_REQUEST_TIMEOUT", DefaultRequestTimeout),

		ReconnectDelay:       getEnvAsDuration("DEEPR_RECONNECT_DELAY", DefaultReconnectDelay),
		ReconnectMaxAttempts: getEnvAsInt("DEEPR_RECONNECT_MAX_ATTEMPTS", 0),

		DefaultDepth: getEnvOrDefault("DEEPR_DEFAULT_DEPTH", "standard"),

		DownloadDir: getEnvOrDefault("DEEPR_DOWNLOAD_DIR", "downloads"),

		PreviewEnabled:     getEnvOrDefault("DEEPR_PREVIEW_ENABLED", "false") == "true",
		PreviewAddr:        getEnvOrDefault("DEEPR_PREVIEW_ADDR", "127.0.0.1:8090"),
		CORSAllowedOrigins: getEnvOrDefault("CORS_ALLOWED_ORIGINS", "http://localhost:3000"),

		HealthPollSchedule: getEnvOrDefault("DEEPR_HEALTH_POLL_SCHEDULE", "@every 30s"),

		LogLevel:  getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat: getEnvOrDefault("LOG_FORMAT", "text"),
	}

	// Load overrides from a configuration file when one is present.
	//
	// TODO: environment variables should have higher precedence than the
	// file. Replace this with proper layered config using spf13/viper.
	configFilePath := getEnvOrDefault("CONFIG_FILE", "deepr.yaml")
	if configFile, err := os.Open(configFilePath); err == nil {
		log.Printf("Loading config file: %v", configFilePath)
		if err := LoadConfigFile(configFile, AppConfig); err != nil {
			log.Fatalf("Failed to load config file: %v", err)
		}
		configFile.Close()
	}

	if AppConfig.ReconnectDelay <= 0 {
		log.Printf("Warning: reconnect delay %v is not positive, using default %v", AppConfig.ReconnectDelay, DefaultReconnectDelay)
		AppConfig.ReconnectDelay = DefaultReconnectDelay
	}

	if AppConfig.DefaultDepth != "standard" && AppConfig.DefaultDepth != "deep" {
		log.Printf("Warning: unknown default depth %q, using \"standard\"", AppConfig.DefaultDepth)
		AppConfig.DefaultDepth = "standard"
	}

	return AppConfig
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as time.Duration, using default %v: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		} else {
			log.Printf("Warning: Failed to parse environment variable %s='%s' as int, using default %d: %v", key, value, defaultValue, err)
		}
	}
	return defaultValue
}

// LoadConfigFile decodes YAML settings from reader into config.
func LoadConfigFile(reader io.Reader, config *Config) error {
	decoder := yaml.NewDecoder(reader)

	if err := decoder.Decode(config); err != nil {
		return err
	}

	return nil
}
