// Package app assembles the weather screen from configuration. Both binaries use it.
package app

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/kjstillabower/weather-screen/internal/client"
	"github.com/kjstillabower/weather-screen/internal/config"
	"github.com/kjstillabower/weather-screen/internal/location"
	"github.com/kjstillabower/weather-screen/internal/screen"
	"github.com/kjstillabower/weather-screen/internal/store"
)

// App holds the wired components behind a Screen.
type App struct {
	Screen  *screen.Screen
	Client  *client.OpenWeatherClient
	Locator location.Locator
	Store   store.Store
}

type pinger interface {
	Ping() error
}

// New builds the client, locator and store named by cfg and a Screen over them.
// Alerts go to notifier. The caller owns the returned App and must Close it.
func New(cfg *config.Config, logger *zap.Logger, notifier screen.Notifier, opts ...screen.Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	weatherClient, err := client.NewOpenWeatherClientWithLocale(
		cfg.WeatherAPIKey,
		cfg.WeatherAPIURL,
		cfg.WeatherAPITimeout,
		cfg.WeatherUnits,
		cfg.WeatherLang,
	)
	if err != nil {
		return nil, fmt.Errorf("weather client: %w", err)
	}
	if cfg.BreakerEnabled {
		weatherClient.SetCircuitBreaker(client.NewCircuitBreaker(client.BreakerConfig{
			FailureThreshold: cfg.BreakerFailureThreshold,
			Timeout:          cfg.BreakerTimeout,
		}, logger))
		logger.Info("circuit breaker enabled",
			zap.Int("failure_threshold", cfg.BreakerFailureThreshold),
			zap.Duration("timeout", cfg.BreakerTimeout))
	}

	st, err := NewStore(cfg)
	if err != nil {
		return nil, err
	}
	logger.Info("store backend", zap.String("backend", cfg.StoreBackend), zap.String("path", storeLocation(cfg)))

	locator := NewLocator(cfg)
	logger.Info("location provider", zap.String("provider", cfg.LocationProvider), zap.Bool("allow", cfg.LocationAllow))

	opts = append([]screen.Option{screen.WithLogger(logger)}, opts...)
	return &App{
		Screen:  screen.New(weatherClient, locator, st, notifier, opts...),
		Client:  weatherClient,
		Locator: locator,
		Store:   st,
	}, nil
}

// NewStore opens the persistence backend named by cfg.StoreBackend.
func NewStore(cfg *config.Config) (store.Store, error) {
	switch cfg.StoreBackend {
	case store.BackendMemory:
		return store.NewMemoryStore(), nil
	case store.BackendFile:
		fs, err := store.NewFileStore(cfg.StorePath)
		if err != nil {
			return nil, fmt.Errorf("file store: %w", err)
		}
		return fs, nil
	case store.BackendSQLite:
		ss, err := store.NewSQLiteStore(cfg.StorePath)
		if err != nil {
			return nil, fmt.Errorf("sqlite store: %w", err)
		}
		return ss, nil
	case store.BackendMemcached:
		return store.NewMemcachedStore(cfg.MemcachedAddrs, cfg.MemcachedTimeout, cfg.MemcachedMaxIdleConns), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

// NewLocator returns the locator named by cfg.LocationProvider.
func NewLocator(cfg *config.Config) location.Locator {
	if cfg.LocationProvider == "ip" {
		return location.NewIPLocator(cfg.LocationAllow, cfg.LocationLookupURL, cfg.LocationTimeout)
	}
	return location.NewStaticLocator(cfg.LocationAllow, cfg.LocationCoords)
}

// StorePing returns a reachability check for backends that support one, else nil.
func (a *App) StorePing() func() error {
	if p, ok := a.Store.(pinger); ok {
		return p.Ping
	}
	return nil
}

// Close releases the store.
func (a *App) Close() error {
	if a.Store == nil {
		return nil
	}
	if err := a.Store.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	return nil
}

func storeLocation(cfg *config.Config) string {
	if cfg.StoreBackend == store.BackendMemcached {
		return cfg.MemcachedAddrs
	}
	if cfg.StoreBackend == store.BackendMemory {
		return ""
	}
	return cfg.StorePath
}
