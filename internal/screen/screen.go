// Package screen drives the weather screen: the startup location lookup, city search,
// and the fallback to the last persisted record.
package screen

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/kjstillabower/weather-screen/internal/client"
	"github.com/kjstillabower/weather-screen/internal/location"
	"github.com/kjstillabower/weather-screen/internal/models"
	"github.com/kjstillabower/weather-screen/internal/observability"
	"github.com/kjstillabower/weather-screen/internal/store"
	"github.com/kjstillabower/weather-screen/internal/validation"
)

// LastWeatherKey is the store slot holding the last successful record.
const LastWeatherKey = "lastWeather"

// Screen holds the screen state and runs the fetch flows against it. Flows may overlap;
// each transition is applied atomically and the last writer wins.
type Screen struct {
	client   client.WeatherClient
	locator  location.Locator
	store    store.Store
	notifier Notifier
	logger   *zap.Logger
	clock    clockwork.Clock

	mu    sync.Mutex
	state State
}

// Option configures a Screen.
type Option func(*Screen)

func WithLogger(logger *zap.Logger) Option {
	return func(s *Screen) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithClock(clock clockwork.Clock) Option {
	return func(s *Screen) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// New returns a Screen in the idle state.
func New(c client.WeatherClient, l location.Locator, st store.Store, n Notifier, opts ...Option) *Screen {
	s := &Screen{
		client:   c,
		locator:  l,
		store:    st,
		notifier: n,
		logger:   zap.NewNop(),
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns a snapshot of the current state.
func (s *Screen) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *Screen) update(fn func(State) State) {
	s.mu.Lock()
	s.state = fn(s.state)
	s.mu.Unlock()
}

// SetCity replaces the city input text.
func (s *Screen) SetCity(text string) {
	s.update(func(st State) State { return st.WithCity(text) })
}

// Mount runs the startup flow: request permission, get the position, fetch by
// coordinates. Any failure ends in the fallback loader. Loading is set for the whole run.
func (s *Screen) Mount(ctx context.Context) {
	s.update(State.BeginLoading)
	defer s.update(State.EndLoading)

	perm, err := s.locator.RequestPermission(ctx)
	if err != nil {
		s.locationUnavailable(ctx, err)
		return
	}
	if perm != location.PermissionGranted {
		observability.LocationRequestsTotal.WithLabelValues("denied").Inc()
		s.logger.Info("location permission not granted", zap.String("permission", string(perm)))
		s.alert(TitlePermissionRequired, MsgAllowLocation)
		s.LoadLastWeather(ctx)
		return
	}

	pos, err := s.locator.CurrentPosition(ctx)
	if err != nil {
		s.locationUnavailable(ctx, err)
		return
	}
	observability.LocationRequestsTotal.WithLabelValues("granted").Inc()

	_ = s.FetchByCoords(ctx, pos.Lat, pos.Lon)
}

func (s *Screen) locationUnavailable(ctx context.Context, err error) {
	observability.LocationRequestsTotal.WithLabelValues("unavailable").Inc()
	s.logger.Warn("location not available", zap.Error(err))
	s.alert(TitleError, MsgLocationNotAvailable)
	s.LoadLastWeather(ctx)
}

// FetchByCoords shows and persists the weather at lat/lon. On any failure it loads the
// last persisted record instead, without alerting. The fetch error is returned for
// callers that want it.
func (s *Screen) FetchByCoords(ctx context.Context, lat, lon float64) error {
	rec, err := s.client.FetchByCoords(ctx, lat, lon)
	if err != nil {
		s.logger.Info("coordinate lookup failed, using last weather",
			zap.Float64("lat", lat), zap.Float64("lon", lon), zap.Error(err))
		s.LoadLastWeather(ctx)
		return err
	}
	s.showAndPersist(ctx, rec)
	return nil
}

// SearchCity looks up the weather for the city input. Blank input is a no-op. A
// non-success status clears the display and alerts "not found"; transport and parse
// failures alert a generic error and keep the display. Loading is cleared on return.
func (s *Screen) SearchCity(ctx context.Context) error {
	return s.searchFor(ctx, s.State().City)
}

// Search sets the city input to text and looks it up. The lookup uses text even if
// another flow replaces the input before the request is sent. Blank text is a no-op
// and leaves the input unchanged.
func (s *Screen) Search(ctx context.Context, text string) error {
	if validation.IsBlank(text) {
		return nil
	}
	s.SetCity(text)
	return s.searchFor(ctx, text)
}

func (s *Screen) searchFor(ctx context.Context, text string) error {
	city := strings.TrimSpace(text)
	if validation.IsBlank(city) {
		return nil
	}

	s.update(State.BeginLoading)
	defer s.update(State.EndLoading)

	observability.RecordCitySearch(city)
	rec, err := s.client.FetchByCity(ctx, city)
	switch {
	case err == nil:
		s.showAndPersist(ctx, rec)
		return nil
	case errors.Is(err, client.ErrStatus) && !errors.Is(err, models.ErrParse):
		s.logger.Info("city not found", zap.String("city", city), zap.Error(err))
		s.update(State.ClearWeather)
		s.alert(TitleNoResults, MsgCityNotFound)
		return err
	default:
		s.logger.Warn("city lookup failed", zap.String("city", city), zap.Error(err))
		s.alert(TitleError, MsgProblemFetching)
		return err
	}
}

// LoadLastWeather shows the persisted record, if any. Read and parse failures are
// logged only.
func (s *Screen) LoadLastWeather(ctx context.Context) {
	raw, ok, err := s.store.Get(ctx, LastWeatherKey)
	if err != nil {
		observability.FallbackLoadsTotal.WithLabelValues("error").Inc()
		s.logger.Warn("failed to load last weather", zap.Error(err))
		return
	}
	if !ok {
		observability.FallbackLoadsTotal.WithLabelValues("empty").Inc()
		return
	}

	rec, err := models.ParseWeatherRecord([]byte(raw))
	if err == nil {
		err = rec.Validate()
	}
	if err != nil {
		observability.FallbackLoadsTotal.WithLabelValues("error").Inc()
		s.logger.Warn("failed to load last weather", zap.Error(err))
		return
	}

	var at time.Time
	if rec.Dt > 0 {
		at = time.Unix(rec.Dt, 0)
	}
	s.update(func(st State) State { return st.ShowCached(rec, at) })
	observability.FallbackLoadsTotal.WithLabelValues("loaded").Inc()
	s.logger.Debug("showing last weather", zap.String("city", rec.Name))
}

func (s *Screen) showAndPersist(ctx context.Context, rec models.WeatherRecord) {
	now := s.clock.Now()
	s.update(func(st State) State { return st.ShowLive(rec, now) })

	raw, err := json.Marshal(rec)
	if err != nil {
		observability.PersistWritesTotal.WithLabelValues("error").Inc()
		s.logger.Warn("encode last weather", zap.Error(err))
		return
	}
	if err := s.store.Set(ctx, LastWeatherKey, string(raw)); err != nil {
		observability.PersistWritesTotal.WithLabelValues("error").Inc()
		s.logger.Warn("save last weather", zap.Error(err))
		return
	}
	observability.PersistWritesTotal.WithLabelValues("success").Inc()
}

func (s *Screen) alert(title, message string) {
	observability.AlertsTotal.WithLabelValues(title).Inc()
	if s.notifier != nil {
		s.notifier.Alert(title, message)
	}
}
