package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/kjstillabower/weather-screen/internal/models"
)

// Config holds screen and service configuration loaded from YAML, .env and env.
type Config struct {
	ServerPort string

	WeatherAPIKey     string
	WeatherAPIURL     string
	WeatherAPITimeout time.Duration
	WeatherUnits      string
	WeatherLang       string

	BreakerEnabled          bool
	BreakerFailureThreshold int
	BreakerTimeout          time.Duration

	LocationProvider  string // "static" or "ip"
	LocationAllow     bool
	LocationCoords    *models.Coordinates
	LocationLookupURL string
	LocationTimeout   time.Duration

	StoreBackend          string // "memory", "file", "sqlite" or "memcached"
	StorePath             string
	MemcachedAddrs        string
	MemcachedTimeout      time.Duration
	MemcachedMaxIdleConns int

	RequestTimeout  time.Duration
	RateLimitRPS    int
	RateLimitBurst  int
	ShutdownTimeout time.Duration
	CityMaxLength   int
	AlertHistory    int

	RefreshSchedule string

	TrackedCities []string
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	WeatherAPI struct {
		URL            string `yaml:"url"`
		Timeout        string `yaml:"timeout"`
		Units          string `yaml:"units"`
		Lang           string `yaml:"lang"`
		CircuitBreaker struct {
			Enabled          bool   `yaml:"enabled"`
			FailureThreshold int    `yaml:"failure_threshold"`
			Timeout          string `yaml:"timeout"`
		} `yaml:"circuit_breaker"`
	} `yaml:"weather_api"`

	Location struct {
		Provider  string   `yaml:"provider"`
		Allow     *bool    `yaml:"allow"`
		Latitude  *float64 `yaml:"latitude"`
		Longitude *float64 `yaml:"longitude"`
		LookupURL string   `yaml:"lookup_url"`
		Timeout   string   `yaml:"timeout"`
	} `yaml:"location"`

	Store struct {
		Backend   string `yaml:"backend"`
		Path      string `yaml:"path"`
		Memcached struct {
			Addrs        string `yaml:"addrs"`
			Timeout      string `yaml:"timeout"`
			MaxIdleConns int    `yaml:"max_idle_conns"`
		} `yaml:"memcached"`
	} `yaml:"store"`

	Request struct {
		Timeout        string `yaml:"timeout"`
		RateLimitRPS   int    `yaml:"rate_limit_rps"`
		RateLimitBurst int    `yaml:"rate_limit_burst"`
		CityMaxLength  int    `yaml:"city_max_length"`
	} `yaml:"request"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Screen struct {
		AlertHistory int `yaml:"alert_history"`
	} `yaml:"screen"`

	Refresh struct {
		Schedule string `yaml:"schedule"`
	} `yaml:"refresh"`

	Metrics struct {
		TrackedCities []string `yaml:"tracked_cities"`
	} `yaml:"metrics"`
}

type secretsFile struct {
	WeatherAPIKey string `yaml:"weather_api_key"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev) and config/secrets.yaml.
// A .env file in the working directory is loaded first; it never overrides variables
// already set. API key comes from WEATHER_API_KEY env or the secrets file. Call from project root.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("config file not found: %s", configPath)
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = fc.Server.Port
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}

	cfg.WeatherAPIKey, err = loadAPIKey(cwd)
	if err != nil {
		return nil, err
	}
	if cfg.WeatherAPIKey == "" {
		return nil, fmt.Errorf("WEATHER_API_KEY required (set env, .env or config/secrets.yaml weather_api_key)")
	}

	cfg.WeatherAPIURL = fc.WeatherAPI.URL
	if cfg.WeatherAPIURL == "" {
		cfg.WeatherAPIURL = "https://api.openweathermap.org/data/2.5/weather"
	}
	cfg.WeatherAPITimeout = parseDurationOrZero(fc.WeatherAPI.Timeout, 10*time.Second)
	cfg.WeatherUnits = strings.TrimSpace(fc.WeatherAPI.Units)
	if cfg.WeatherUnits == "" {
		cfg.WeatherUnits = "metric"
	}
	cfg.WeatherLang = strings.TrimSpace(fc.WeatherAPI.Lang)
	if cfg.WeatherLang == "" {
		cfg.WeatherLang = "en"
	}
	cfg.BreakerEnabled = fc.WeatherAPI.CircuitBreaker.Enabled
	cfg.BreakerFailureThreshold = fc.WeatherAPI.CircuitBreaker.FailureThreshold
	if cfg.BreakerFailureThreshold <= 0 {
		cfg.BreakerFailureThreshold = 5
	}
	cfg.BreakerTimeout = parseDuration(fc.WeatherAPI.CircuitBreaker.Timeout, 30*time.Second)

	cfg.LocationProvider = strings.ToLower(envOr("LOCATION_PROVIDER", strings.TrimSpace(fc.Location.Provider)))
	if cfg.LocationProvider == "" {
		cfg.LocationProvider = "static"
	}
	if fc.Location.Allow != nil {
		cfg.LocationAllow = *fc.Location.Allow
	}
	if v := strings.TrimSpace(os.Getenv("LOCATION_ALLOW")); v != "" {
		allow, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("LOCATION_ALLOW must be a boolean, got %q", v)
		}
		cfg.LocationAllow = allow
	}
	if fc.Location.Latitude != nil && fc.Location.Longitude != nil {
		cfg.LocationCoords = &models.Coordinates{Lat: *fc.Location.Latitude, Lon: *fc.Location.Longitude}
	}
	cfg.LocationLookupURL = strings.TrimSpace(fc.Location.LookupURL)
	cfg.LocationTimeout = parseDuration(fc.Location.Timeout, 5*time.Second)

	fileBackend := strings.ToLower(strings.TrimSpace(fc.Store.Backend))
	if fileBackend == "" {
		fileBackend = "sqlite"
	}
	cfg.StoreBackend = strings.ToLower(envOr("STORE_BACKEND", fileBackend))
	// store.path belongs to the backend named in the file; a different backend from
	// STORE_BACKEND uses STORE_PATH or its own default.
	filePath := strings.TrimSpace(fc.Store.Path)
	if cfg.StoreBackend != fileBackend {
		filePath = ""
	}
	cfg.StorePath = envOr("STORE_PATH", filePath)
	if cfg.StorePath == "" {
		cfg.StorePath = defaultStorePath(cfg.StoreBackend)
	}
	cfg.MemcachedAddrs = envOr("MEMCACHED_ADDRS", strings.TrimSpace(fc.Store.Memcached.Addrs))
	if cfg.MemcachedAddrs == "" {
		cfg.MemcachedAddrs = "localhost:11211"
	}
	cfg.MemcachedTimeout = parseDuration(fc.Store.Memcached.Timeout, 500*time.Millisecond)
	cfg.MemcachedMaxIdleConns = fc.Store.Memcached.MaxIdleConns
	if cfg.MemcachedMaxIdleConns <= 0 {
		cfg.MemcachedMaxIdleConns = 2
	}

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 15*time.Second)
	cfg.RateLimitRPS = fc.Request.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 10
	}
	cfg.RateLimitBurst = fc.Request.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 20
	}
	cfg.CityMaxLength = fc.Request.CityMaxLength
	if cfg.CityMaxLength <= 0 {
		cfg.CityMaxLength = 100
	}

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 10*time.Second)
	cfg.AlertHistory = fc.Screen.AlertHistory
	if cfg.AlertHistory <= 0 {
		cfg.AlertHistory = 10
	}
	cfg.RefreshSchedule = strings.TrimSpace(fc.Refresh.Schedule)
	cfg.TrackedCities = fc.Metrics.TrackedCities

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadAPIKey returns WEATHER_API_KEY from env, else from config/secrets.yaml, else "".
func loadAPIKey(cwd string) (string, error) {
	if key := strings.TrimSpace(os.Getenv("WEATHER_API_KEY")); key != "" {
		return key, nil
	}
	secretsPath := filepath.Join(cwd, "config", "secrets.yaml")
	secretsData, err := os.ReadFile(secretsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("read secrets file: %w", err)
	}
	var sec secretsFile
	if err := yaml.Unmarshal(secretsData, &sec); err != nil {
		return "", fmt.Errorf("parse secrets file: %w", err)
	}
	return strings.TrimSpace(sec.WeatherAPIKey), nil
}

// envOr returns the trimmed env value for key, or fallback when unset.
func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func defaultStorePath(backend string) string {
	switch backend {
	case "file":
		return filepath.Join("data", "store")
	default:
		return filepath.Join("data", "weatherscreen.db")
	}
}

// parseDuration parses a duration string and returns defaultVal if parsing fails or result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d := parseDurationOrZero(s, defaultVal)
	if d <= 0 {
		return defaultVal
	}
	return d
}

// parseDurationOrZero parses a duration string, returning defaultVal on empty string or parse error.
// Returns zero or negative durations as-is (caller should handle fallback).
func parseDurationOrZero(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

// validate performs post-load validation of configuration values.
func validate(cfg *Config) error {
	if cfg.WeatherAPITimeout <= 0 {
		return fmt.Errorf("weather_api.timeout must be positive")
	}
	if cfg.RequestTimeout <= cfg.WeatherAPITimeout {
		cfg.RequestTimeout = cfg.WeatherAPITimeout + cfg.LocationTimeout
	}
	switch cfg.StoreBackend {
	case "memory", "file", "sqlite", "memcached":
	default:
		return fmt.Errorf("store.backend must be memory, file, sqlite or memcached, got %q", cfg.StoreBackend)
	}
	switch cfg.LocationProvider {
	case "static", "ip":
	default:
		return fmt.Errorf("location.provider must be static or ip, got %q", cfg.LocationProvider)
	}
	if cfg.LocationCoords != nil {
		if err := cfg.LocationCoords.Validate(); err != nil {
			return fmt.Errorf("location: %w", err)
		}
	}
	if cfg.RefreshSchedule != "" {
		if _, err := cron.ParseStandard(cfg.RefreshSchedule); err != nil {
			return fmt.Errorf("refresh.schedule: %w", err)
		}
	}
	return nil
}
