package location

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kjstillabower/weather-screen/internal/models"
)

// DefaultIPLookupURL is an ip-api.com compatible endpoint.
const DefaultIPLookupURL = "http://ip-api.com/json/?fields=status,message,lat,lon,city"

// IPLocator approximates the position from the public IP address.
type IPLocator struct {
	allow      bool
	lookupURL  string
	httpClient *http.Client
}

// NewIPLocator creates an IPLocator. Permission is granted only when allow is set.
func NewIPLocator(allow bool, lookupURL string, timeout time.Duration) *IPLocator {
	if lookupURL == "" {
		lookupURL = DefaultIPLookupURL
	}
	return &IPLocator{
		allow:     allow,
		lookupURL: lookupURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

func (l *IPLocator) RequestPermission(ctx context.Context) (Permission, error) {
	if err := ctx.Err(); err != nil {
		return PermissionUndetermined, err
	}
	return permissionFor(l.allow), nil
}

func (l *IPLocator) CurrentPosition(ctx context.Context) (models.Coordinates, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, l.lookupURL, nil)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := l.httpClient.Do(req)
	if err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: ip lookup: %w", ErrPositionUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return models.Coordinates{}, fmt.Errorf("%w: ip lookup status %d: %s", ErrPositionUnavailable, resp.StatusCode, body)
	}

	var r ipResponse
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: decode response: %w", ErrPositionUnavailable, err)
	}
	if r.Status != "success" {
		return models.Coordinates{}, fmt.Errorf("%w: ip lookup %s: %s", ErrPositionUnavailable, r.Status, r.Message)
	}

	coords := models.Coordinates{Lat: r.Lat, Lon: r.Lon}
	if err := coords.Validate(); err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: %w", ErrPositionUnavailable, err)
	}
	return coords, nil
}

// ip-api.com response.
type ipResponse struct {
	Status  string  `json:"status"`
	Message string  `json:"message"`
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	City    string  `json:"city"`
}
