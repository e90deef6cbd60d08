package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all runtime settings for the feed service.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	// Host is the public base URL used to build OAuth redirect URIs.
	Host  string `yaml:"host"`
	Debug bool   `yaml:"debug"`

	// TrustProxy makes the rate limiter key clients by X-Forwarded-For.
	TrustProxy bool `yaml:"trust_proxy"`

	Trakt   TraktConfig   `yaml:"trakt"`
	TMDB    TMDBConfig    `yaml:"tmdb"`
	Storage StorageConfig `yaml:"storage"`
	Cache   CacheConfig   `yaml:"cache"`
	Logging LoggingConfig `yaml:"logging"`

	SecretKey string `yaml:"secret_key"`
	SentryDSN string `yaml:"sentry_dsn"`
	StaticDir string `yaml:"static_dir"`
}

type TraktConfig struct {
	ClientID      string        `yaml:"client_id"`
	ClientSecret  string        `yaml:"client_secret"`
	APIBaseURL    string        `yaml:"api_base_url"`
	AuthURL       string        `yaml:"auth_url"`
	TokenURL      string        `yaml:"token_url"`
	WindowTimeout time.Duration `yaml:"window_timeout"`
}

type TMDBConfig struct {
	AccessToken string `yaml:"access_token"`
}

type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

type CacheConfig struct {
	Dir string        `yaml:"dir"`
	TTL time.Duration `yaml:"ttl"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		ListenAddr: "0.0.0.0:8000",
		Host:       "http://localhost:8000",
		Trakt: TraktConfig{
			APIBaseURL:    "https://api.trakt.tv",
			AuthURL:       "https://trakt.tv/oauth/authorize",
			TokenURL:      "https://api.trakt.tv/oauth/token",
			WindowTimeout: 10 * time.Second,
		},
		Storage:   StorageConfig{DatabasePath: "./data/traktical.db"},
		Cache:     CacheConfig{Dir: "./cache", TTL: time.Hour},
		Logging:   LoggingConfig{Level: "info"},
		StaticDir: "./frontend/dist",
	}
}

// Load reads the optional YAML file at path, then applies environment overrides.
// A .env file in the working directory is loaded first and overrides the process
// environment.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Overload(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	cfg := Default()
	if path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return fmt.Errorf("unsupported config file extension %q", ext)
	}
	if err := yaml.NewDecoder(file).Decode(cfg); err != nil {
		return fmt.Errorf("failed to decode YAML config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.ListenAddr = getEnv("LISTEN_ADDR", cfg.ListenAddr)
	cfg.Host = strings.TrimRight(getEnv("HOST", cfg.Host), "/")
	cfg.Debug = getEnvBool("DEBUG", cfg.Debug)
	cfg.TrustProxy = getEnvBool("TRUST_PROXY", cfg.TrustProxy)

	cfg.Trakt.ClientID = getEnv("TRAKT_CLIENT_ID", cfg.Trakt.ClientID)
	cfg.Trakt.ClientSecret = getEnv("TRAKT_CLIENT_SECRET", cfg.Trakt.ClientSecret)
	cfg.Trakt.APIBaseURL = getEnv("TRAKT_API_BASE_URL", cfg.Trakt.APIBaseURL)
	cfg.Trakt.WindowTimeout = getEnvDuration("TRAKT_WINDOW_TIMEOUT", cfg.Trakt.WindowTimeout)

	cfg.TMDB.AccessToken = getEnv("TMDB_ACCESS_TOKEN", cfg.TMDB.AccessToken)
	cfg.Storage.DatabasePath = getEnv("DATABASE_PATH", cfg.Storage.DatabasePath)
	cfg.Cache.Dir = getEnv("CACHE_DIR", cfg.Cache.Dir)
	cfg.Cache.TTL = getEnvDuration("CACHE_TTL", cfg.Cache.TTL)
	cfg.Logging.Level = getEnv("LOG_LEVEL", cfg.Logging.Level)
	cfg.Logging.File = getEnv("LOG_FILE", cfg.Logging.File)

	cfg.SecretKey = getEnv("SECRET_KEY", cfg.SecretKey)
	cfg.SentryDSN = getEnv("SENTRY_DSN", cfg.SentryDSN)
	cfg.StaticDir = getEnv("STATIC_DIR", cfg.StaticDir)
}

// RedirectURL is the OAuth callback registered with Trakt.
func (c *Config) RedirectURL() string {
	return c.Host + "/trakt/callback"
}

// Validate reports settings the service cannot start without.
func (c *Config) Validate() error {
	var errs []error
	if c.Trakt.ClientID == "" {
		errs = append(errs, errors.New("TRAKT_CLIENT_ID is required"))
	}
	if c.Trakt.ClientSecret == "" {
		errs = append(errs, errors.New("TRAKT_CLIENT_SECRET is required"))
	}
	if c.Storage.DatabasePath == "" {
		errs = append(errs, errors.New("DATABASE_PATH is required"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// getEnvDuration accepts Go durations ("90s") or a bare number of seconds.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	return defaultValue
}
