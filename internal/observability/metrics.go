package observability

import (
	"net/http"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry *prometheus.Registry

	// HTTP request rate on the service surface.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// Weather API calls by query kind (coords, city) and outcome. Watch for: error vs success ratio.
	WeatherAPICallsTotal *prometheus.CounterVec

	// Weather API latency. Watch for: p95 > 2s (upstream degradation).
	WeatherAPIDuration *prometheus.HistogramVec

	// Fallback loads by result (loaded, empty, error). High "loaded" = live data often unavailable.
	FallbackLoadsTotal *prometheus.CounterVec

	// Writes of the last-weather slot by result (success, error).
	PersistWritesTotal *prometheus.CounterVec

	// User-facing alerts by title.
	AlertsTotal *prometheus.CounterVec

	// City searches (allow-list; others go to "other").
	CitySearchesTotal *prometheus.CounterVec

	// Location flow outcomes (granted, denied, unavailable).
	LocationRequestsTotal *prometheus.CounterVec

	// Rate limit denials on the /screen routes.
	RateLimitDeniedTotal prometheus.Counter

	// Scheduled refresh runs by result (completed, skipped).
	RefreshRunsTotal *prometheus.CounterVec

	trackedCitiesMu sync.RWMutex
	trackedCities   map[string]struct{}
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	WeatherAPICallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "weatherApiCallsTotal",
			Help: "Total number of weather API calls",
		},
		[]string{"query", "status"},
	)
	WeatherAPIDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "weatherApiDurationSeconds",
			Help:    "Weather API latency in seconds (per request)",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"query", "status"},
	)
	FallbackLoadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fallbackLoadsTotal",
			Help: "Total number of last-weather fallback loads by result",
		},
		[]string{"result"},
	)
	PersistWritesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "persistWritesTotal",
			Help: "Total number of last-weather writes by result",
		},
		[]string{"result"},
	)
	AlertsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alertsTotal",
			Help: "Total number of alerts shown to the user",
		},
		[]string{"title"},
	)
	CitySearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "citySearchesTotal",
			Help: "City searches by city (allow-list; others use city=other)",
		},
		[]string{"city"},
	)
	LocationRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "locationRequestsTotal",
			Help: "Startup location flow outcomes",
		},
		[]string{"outcome"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	RefreshRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "refreshRunsTotal",
			Help: "Scheduled screen refresh runs by result",
		},
		[]string{"result"},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		WeatherAPICallsTotal, WeatherAPIDuration,
		FallbackLoadsTotal, PersistWritesTotal, AlertsTotal,
		CitySearchesTotal, LocationRequestsTotal,
		RateLimitDeniedTotal, RefreshRunsTotal,
	)
}

// SetTrackedCities sets the allow-list for city search metrics. Other cities increment "other".
func SetTrackedCities(cities []string) {
	trackedCitiesMu.Lock()
	defer trackedCitiesMu.Unlock()
	trackedCities = make(map[string]struct{}, len(cities))
	for _, c := range cities {
		trackedCities[normalizeCityForMetrics(c)] = struct{}{}
	}
}

// RecordCitySearch records a city search, bucketing untracked cities under "other".
func RecordCitySearch(city string) {
	CitySearchesTotal.WithLabelValues(MetricCityLabel(city)).Inc()
}

// MetricCityLabel returns the label for city: the normalized name when tracked, else "other".
func MetricCityLabel(city string) string {
	c := normalizeCityForMetrics(city)
	trackedCitiesMu.RLock()
	_, ok := trackedCities[c]
	trackedCitiesMu.RUnlock()
	if ok {
		return c
	}
	return "other"
}

func normalizeCityForMetrics(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
