package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// TestMetrics_Usable verifies that label dimensions match usage across the client,
// screen and http packages.
func TestMetrics_Usable(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/screen", "2xx").Inc()
	HTTPRequestDuration.WithLabelValues("POST", "/screen/search").Observe(0.01)
	WeatherAPICallsTotal.WithLabelValues("city", "success").Inc()
	WeatherAPICallsTotal.WithLabelValues("coords", "error").Inc()
	WeatherAPIDuration.WithLabelValues("city", "success").Observe(0.1)
	FallbackLoadsTotal.WithLabelValues("loaded").Inc()
	PersistWritesTotal.WithLabelValues("success").Inc()
	AlertsTotal.WithLabelValues("No Results").Inc()
	LocationRequestsTotal.WithLabelValues("denied").Inc()
	RateLimitDeniedTotal.Inc()
}

// TestMetricCityLabel verifies that tracked cities keep their own label and all others
// collapse into "other".
func TestMetricCityLabel(t *testing.T) {
	SetTrackedCities([]string{"London", " paris "})
	defer SetTrackedCities(nil)

	tests := []struct {
		in   string
		want string
	}{
		{"london", "london"},
		{"  PARIS", "paris"},
		{"Springfield", "other"},
		{"", "other"},
	}
	for _, tt := range tests {
		if got := MetricCityLabel(tt.in); got != tt.want {
			t.Errorf("MetricCityLabel(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
	RecordCitySearch("London")
}

// TestMetricsHandler_ServesPrometheusFormat verifies that MetricsHandler serves
// Prometheus text exposition format.
func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/health", "2xx").Inc()

	handler := MetricsHandler()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("MetricsHandler status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "httpRequestsTotal") {
		t.Error("MetricsHandler response should contain metric output")
	}
}
