package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/kjstillabower/weather-screen/internal/models"
	"github.com/kjstillabower/weather-screen/internal/observability"
)

// WeatherClient fetches current weather from the upstream API.
type WeatherClient interface {
	FetchByCoords(ctx context.Context, lat, lon float64) (models.WeatherRecord, error)
	FetchByCity(ctx context.Context, city string) (models.WeatherRecord, error)
}

var (
	ErrInvalidAPIKey = errors.New("invalid API key")
	ErrNotFound      = errors.New("location not found")
	ErrRateLimited   = errors.New("rate limited")
	// ErrStatus is matched by every *StatusError: the payload did not report success.
	ErrStatus = errors.New("non-success status")
	// ErrTransport covers connection, timeout and open-breaker failures.
	ErrTransport = errors.New("transport failure")
)

// StatusError is returned when the payload "cod" is not 200. Err is set when the
// error response body itself could not be decoded.
type StatusError struct {
	Code    int
	Message string
	Err     error
}

func (e *StatusError) Error() string {
	msg := fmt.Sprintf("weather API status %d", e.Code)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *StatusError) Unwrap() error { return e.Err }

func (e *StatusError) Is(target error) bool {
	switch target {
	case ErrStatus:
		return true
	case ErrInvalidAPIKey:
		return e.Code == http.StatusUnauthorized
	case ErrNotFound:
		return e.Code == http.StatusNotFound
	case ErrRateLimited:
		return e.Code == http.StatusTooManyRequests
	}
	return false
}

const (
	DefaultUnits = "metric"
	DefaultLang  = "en"
)

type OpenWeatherClient struct {
	apiKey  string
	apiURL  string
	units   string
	lang    string
	timeout time.Duration
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewOpenWeatherClient(apiKey, apiURL string, timeout time.Duration) (*OpenWeatherClient, error) {
	return NewOpenWeatherClientWithLocale(apiKey, apiURL, timeout, DefaultUnits, DefaultLang)
}

// NewOpenWeatherClientWithLocale is NewOpenWeatherClient with explicit units and lang
// query values. Empty values use the defaults (metric, en).
func NewOpenWeatherClientWithLocale(apiKey, apiURL string, timeout time.Duration, units, lang string) (*OpenWeatherClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: API key is required", ErrInvalidAPIKey)
	}
	if _, err := url.Parse(apiURL); err != nil || apiURL == "" {
		return nil, fmt.Errorf("invalid API URL %q", apiURL)
	}
	if units == "" {
		units = DefaultUnits
	}
	if lang == "" {
		lang = DefaultLang
	}

	return &OpenWeatherClient{
		apiKey:  apiKey,
		apiURL:  apiURL,
		units:   units,
		lang:    lang,
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

// SetCircuitBreaker routes every call through cb. Pass nil to disable.
func (c *OpenWeatherClient) SetCircuitBreaker(cb *gobreaker.CircuitBreaker) {
	c.breaker = cb
}

// FetchByCoords looks up current weather at lat/lon.
func (c *OpenWeatherClient) FetchByCoords(ctx context.Context, lat, lon float64) (models.WeatherRecord, error) {
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	return c.call(ctx, "coords", params)
}

// FetchByCity looks up current weather by city name. The name is sent as typed.
func (c *OpenWeatherClient) FetchByCity(ctx context.Context, city string) (models.WeatherRecord, error) {
	params := url.Values{}
	params.Set("q", city)
	return c.call(ctx, "city", params)
}

func (c *OpenWeatherClient) call(ctx context.Context, query string, params url.Values) (models.WeatherRecord, error) {
	if c.breaker == nil {
		return c.callAPI(ctx, query, params)
	}
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.callAPI(ctx, query, params)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			observability.WeatherAPICallsTotal.WithLabelValues(query, "breaker_open").Inc()
			return models.WeatherRecord{}, fmt.Errorf("%w: %v", ErrTransport, err)
		}
		return models.WeatherRecord{}, err
	}
	return out.(models.WeatherRecord), nil
}

func (c *OpenWeatherClient) callAPI(ctx context.Context, query string, params url.Values) (models.WeatherRecord, error) {
	start := time.Now()

	req, err := c.buildRequest(ctx, params)
	if err != nil {
		return models.WeatherRecord{}, fmt.Errorf("build request: %w", err)
	}

	if corrID := extractCorrelationID(ctx); corrID != "" {
		req.Header.Set("X-Correlation-ID", corrID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.record(query, "transport_error", start)
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return models.WeatherRecord{}, fmt.Errorf("%w: request timeout: %w", ErrTransport, err)
		}
		return models.WeatherRecord{}, fmt.Errorf("%w: http request failed: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.record(query, "transport_error", start)
		return models.WeatherRecord{}, fmt.Errorf("%w: read response body: %w", ErrTransport, err)
	}

	rec, err := c.decode(resp.StatusCode, body)
	if err != nil {
		c.record(query, errorLabel(err), start)
		return models.WeatherRecord{}, err
	}
	c.record(query, "success", start)
	return rec, nil
}

// decode interprets the body whatever the HTTP status: the API reports errors in the
// payload ("cod", "message"). A body that does not decode on an error status is
// reported as that status, carrying the parse error.
func (c *OpenWeatherClient) decode(httpStatus int, body []byte) (models.WeatherRecord, error) {
	httpOK := httpStatus >= 200 && httpStatus < 300

	rec, err := models.ParseWeatherRecord(body)
	if err != nil {
		if !httpOK {
			return models.WeatherRecord{}, &StatusError{Code: httpStatus, Err: err}
		}
		return models.WeatherRecord{}, err
	}

	if rec.Cod == 0 {
		if httpOK {
			return models.WeatherRecord{}, &models.ParseError{Field: "cod", Reason: "missing"}
		}
		rec.Cod = models.StatusCode(httpStatus)
	}
	if !rec.Success() {
		return models.WeatherRecord{}, &StatusError{Code: int(rec.Cod), Message: rec.Message}
	}
	return rec, nil
}

func (c *OpenWeatherClient) buildRequest(ctx context.Context, params url.Values) (*http.Request, error) {
	baseURL, err := url.Parse(c.apiURL)
	if err != nil {
		return nil, fmt.Errorf("invalid API URL: %w", err)
	}

	params.Set("appid", c.apiKey)
	params.Set("units", c.units)
	params.Set("lang", c.lang)
	baseURL.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *OpenWeatherClient) record(query, status string, start time.Time) {
	observability.WeatherAPICallsTotal.WithLabelValues(query, status).Inc()
	observability.WeatherAPIDuration.WithLabelValues(query, status).Observe(time.Since(start).Seconds())
}

func extractCorrelationID(ctx context.Context) string {
	if corrIDVal := ctx.Value("correlation_id"); corrIDVal != nil {
		if corrID, ok := corrIDVal.(string); ok {
			return corrID
		}
	}
	return ""
}

// errorLabel maps a fetch error to a stable metrics label.
func errorLabel(err error) string {
	var se *StatusError
	switch {
	case errors.As(err, &se):
		switch {
		case se.Code == http.StatusNotFound:
			return "not_found"
		case se.Code == http.StatusTooManyRequests:
			return "rate_limited"
		case se.Code >= 500:
			return "server_error"
		default:
			return "client_error"
		}
	case errors.Is(err, models.ErrParse):
		return "parse_error"
	default:
		return "error"
	}
}
