package main

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/kjstillabower/weather-screen/internal/client"
	"github.com/kjstillabower/weather-screen/internal/location"
	"github.com/kjstillabower/weather-screen/internal/models"
	"github.com/kjstillabower/weather-screen/internal/screen"
	"github.com/kjstillabower/weather-screen/internal/store"
)

type cityClient struct {
	byCity map[string]models.WeatherRecord
}

func (c *cityClient) FetchByCoords(ctx context.Context, lat, lon float64) (models.WeatherRecord, error) {
	return models.WeatherRecord{}, &client.StatusError{Code: 500, Message: "unavailable"}
}

func (c *cityClient) FetchByCity(ctx context.Context, city string) (models.WeatherRecord, error) {
	rec, ok := c.byCity[city]
	if !ok {
		return models.WeatherRecord{}, &client.StatusError{Code: 404, Message: "city not found"}
	}
	return rec, nil
}

func newTestScreen(out *bytes.Buffer, allow bool) *screen.Screen {
	c := &cityClient{byCity: map[string]models.WeatherRecord{
		"Lisbon": {
			Cod:     models.StatusOK,
			Name:    "Lisbon",
			Main:    &models.MainReadings{Temp: 21.5, FeelsLike: 20.6, Humidity: 55},
			Weather: []models.Conditions{{Description: "clear sky"}},
		},
	}}
	locator := location.NewStaticLocator(allow, &models.Coordinates{Lat: 38.72, Lon: -9.14})
	return screen.New(c, locator, store.NewMemoryStore(), printAlerts(out))
}

func TestRun_SearchesEachLine(t *testing.T) {
	var out bytes.Buffer
	s := newTestScreen(&out, true)
	clock := clockwork.NewFakeClockAt(time.Date(2026, 10, 15, 12, 0, 0, 0, time.UTC))

	err := run(context.Background(), s, strings.NewReader("Lisbon\nAtlantis\n:q\nNever\n"), &out, clock)
	if err != nil {
		t.Fatalf("run() error = %v", err)
	}

	got := out.String()
	for _, want := range []string{"Weather", "Lisbon", "22°C", "clear sky", "Humidity: 55%", "Feels like: 21°C", "[No Results] City not found"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "Never") {
		t.Error("input after :q was processed")
	}
}

func TestRun_PermissionDeniedAlerts(t *testing.T) {
	var out bytes.Buffer
	s := newTestScreen(&out, false)

	if err := run(context.Background(), s, strings.NewReader(""), &out, clockwork.NewFakeClock()); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	if !strings.Contains(out.String(), "[Permission Required] Please allow location access") {
		t.Errorf("output missing permission alert:\n%s", out.String())
	}
	if !strings.Contains(out.String(), "Enter city name...") {
		t.Errorf("output missing empty input placeholder:\n%s", out.String())
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	var out bytes.Buffer
	s := newTestScreen(&out, false)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	done := make(chan error, 1)
	go func() { done <- run(ctx, s, blockingReader{}, &out, clockwork.NewFakeClock()) }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("run() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
}

// blockingReader never returns data.
type blockingReader struct{}

func (blockingReader) Read(p []byte) (int, error) {
	select {}
}

func TestRun_BlankLineKeepsInput(t *testing.T) {
	var out bytes.Buffer
	s := newTestScreen(&out, false)

	if err := run(context.Background(), s, strings.NewReader("Lisbon\n\n   \n"), &out, clockwork.NewFakeClock()); err != nil {
		t.Fatalf("run() error = %v", err)
	}
	st := s.State()
	if st.City != "Lisbon" {
		t.Errorf("City = %q after blank lines, want Lisbon", st.City)
	}
	if st.Weather == nil || st.Weather.Name != "Lisbon" {
		t.Errorf("Weather = %+v, want Lisbon still shown", st.Weather)
	}
}
