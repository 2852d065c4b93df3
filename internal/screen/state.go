package screen

import (
	"time"

	"github.com/kjstillabower/weather-screen/internal/models"
)

// Source tells where the displayed record came from.
type Source string

const (
	SourceNone   Source = ""
	SourceLive   Source = "live"
	SourceCached Source = "cached"
)

// Phase is the coarse screen state: idle, loading, then displaying a record or nothing.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseLoading    Phase = "loading"
	PhaseDisplaying Phase = "displaying"
)

// State is everything the screen shows. Transitions return a new State and never
// modify the receiver.
type State struct {
	City      string                `json:"city"`
	Weather   *models.WeatherRecord `json:"weather,omitempty"`
	Loading   bool                  `json:"loading"`
	Source    Source                `json:"source,omitempty"`
	UpdatedAt time.Time             `json:"updatedAt,omitempty"`
}

// Phase derives the coarse state from the fields.
func (s State) Phase() Phase {
	switch {
	case s.Loading:
		return PhaseLoading
	case s.Weather != nil:
		return PhaseDisplaying
	default:
		return PhaseIdle
	}
}

// WithCity sets the input text.
func (s State) WithCity(city string) State {
	s.City = city
	return s
}

func (s State) BeginLoading() State {
	s.Loading = true
	return s
}

func (s State) EndLoading() State {
	s.Loading = false
	return s
}

// ShowLive displays a freshly fetched record and copies its name into the input.
func (s State) ShowLive(rec models.WeatherRecord, at time.Time) State {
	return s.show(rec, SourceLive, at)
}

// ShowCached displays a persisted record and copies its name into the input.
func (s State) ShowCached(rec models.WeatherRecord, at time.Time) State {
	return s.show(rec, SourceCached, at)
}

func (s State) show(rec models.WeatherRecord, src Source, at time.Time) State {
	s.Weather = &rec
	s.City = rec.Name
	s.Source = src
	s.UpdatedAt = at
	return s
}

// ClearWeather removes the displayed record. The input text is kept.
func (s State) ClearWeather() State {
	s.Weather = nil
	s.Source = SourceNone
	s.UpdatedAt = time.Time{}
	return s
}
