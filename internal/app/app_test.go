package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/kjstillabower/weather-screen/internal/config"
	"github.com/kjstillabower/weather-screen/internal/location"
	"github.com/kjstillabower/weather-screen/internal/models"
	"github.com/kjstillabower/weather-screen/internal/screen"
	"github.com/kjstillabower/weather-screen/internal/store"
)

const osloPayload = `{"coord":{"lon":10.75,"lat":59.91},"weather":[{"description":"light rain"}],` +
	`"main":{"temp":7.4,"feels_like":5.1,"humidity":81},"dt":1760540400,"name":"Oslo","cod":200}`

func testConfig(apiURL string) *config.Config {
	return &config.Config{
		WeatherAPIKey:           "test-key",
		WeatherAPIURL:           apiURL,
		WeatherAPITimeout:       2 * time.Second,
		WeatherUnits:            "metric",
		WeatherLang:             "en",
		BreakerFailureThreshold: 5,
		BreakerTimeout:          time.Second,
		LocationProvider:        "static",
		LocationAllow:           true,
		LocationCoords:          &models.Coordinates{Lat: 59.91, Lon: 10.75},
		LocationTimeout:         time.Second,
		StoreBackend:            store.BackendMemory,
	}
}

func TestNew_MountShowsAndPersists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("lat") != "59.91" || r.URL.Query().Get("appid") != "test-key" {
			t.Errorf("unexpected query %q", r.URL.RawQuery)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(osloPayload))
	}))
	defer server.Close()

	a, err := New(testConfig(server.URL), nil, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()

	a.Screen.Mount(context.Background())

	st := a.Screen.State()
	if st.Weather == nil || st.Weather.Name != "Oslo" {
		t.Fatalf("Weather = %+v, want Oslo", st.Weather)
	}
	if st.Source != screen.SourceLive {
		t.Errorf("Source = %q, want %q", st.Source, screen.SourceLive)
	}
	raw, ok, err := a.Store.Get(context.Background(), screen.LastWeatherKey)
	if err != nil || !ok {
		t.Fatalf("store Get() = %q, %v, %v", raw, ok, err)
	}
}

func TestNew_BreakerEnabled(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.BreakerEnabled = true
	a, err := New(cfg, nil, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer a.Close()
	if a.Client == nil {
		t.Fatal("Client is nil")
	}
}

func TestNew_RejectsEmptyAPIKey(t *testing.T) {
	cfg := testConfig("http://127.0.0.1:1")
	cfg.WeatherAPIKey = ""
	if _, err := New(cfg, nil, nil); err == nil {
		t.Fatal("New() expected error for empty API key, got nil")
	}
}

func TestNewStore(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name     string
		backend  string
		path     string
		wantPing bool
		wantErr  bool
	}{
		{name: "memory", backend: store.BackendMemory},
		{name: "file", backend: store.BackendFile, path: filepath.Join(dir, "kv")},
		{name: "sqlite", backend: store.BackendSQLite, path: filepath.Join(dir, "screen.db"), wantPing: true},
		{name: "unknown", backend: "redis", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig("")
			cfg.StoreBackend = tt.backend
			cfg.StorePath = tt.path
			st, err := NewStore(cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewStore() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer st.Close()

			a := &App{Store: st}
			ping := a.StorePing()
			if (ping != nil) != tt.wantPing {
				t.Fatalf("StorePing() != nil is %v, want %v", ping != nil, tt.wantPing)
			}
			if ping != nil {
				if err := ping(); err != nil {
					t.Errorf("ping() error = %v", err)
				}
			}
		})
	}
}

func TestNewLocator(t *testing.T) {
	cfg := testConfig("")
	if _, ok := NewLocator(cfg).(*location.StaticLocator); !ok {
		t.Errorf("NewLocator(static) = %T, want *location.StaticLocator", NewLocator(cfg))
	}
	cfg.LocationProvider = "ip"
	if _, ok := NewLocator(cfg).(*location.IPLocator); !ok {
		t.Errorf("NewLocator(ip) = %T, want *location.IPLocator", NewLocator(cfg))
	}
}

func TestApp_CloseNilStore(t *testing.T) {
	if err := (&App{}).Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
}
