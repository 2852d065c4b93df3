package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrParse is matched by every *ParseError.
var ErrParse = errors.New("invalid weather payload")

// ParseError reports a payload that could not be decoded or is missing required fields.
type ParseError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	msg := "parse weather payload"
	if e.Field != "" {
		msg += ": " + e.Field
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// StatusOK is the payload status code for a successful lookup.
const StatusOK StatusCode = 200

// StatusCode is the payload "cod" field. OpenWeatherMap sends a number on success
// and a string such as "404" on errors; both decode to the same value.
type StatusCode int

func (c *StatusCode) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*c = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		n, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return fmt.Errorf("cod %q is not numeric", s)
		}
		*c = StatusCode(n)
		return nil
	}
	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*c = StatusCode(n)
	return nil
}

// Conditions is one entry of the payload "weather" array.
type Conditions struct {
	ID          int    `json:"id,omitempty"`
	Main        string `json:"main,omitempty"`
	Description string `json:"description"`
	Icon        string `json:"icon,omitempty"`
}

// MainReadings holds the "main" block.
type MainReadings struct {
	Temp      float64 `json:"temp"`
	FeelsLike float64 `json:"feels_like"`
	Humidity  int     `json:"humidity"`
	Pressure  float64 `json:"pressure,omitempty"`
}

// WeatherRecord is the current-weather payload returned by the weather API.
// Main is a pointer so a missing block can be told apart from zero readings.
type WeatherRecord struct {
	Cod     StatusCode    `json:"cod"`
	Message string        `json:"message,omitempty"`
	Name    string        `json:"name,omitempty"`
	Coord   *Coordinates  `json:"coord,omitempty"`
	Main    *MainReadings `json:"main,omitempty"`
	Weather []Conditions  `json:"weather,omitempty"`
	Wind    *struct {
		Speed float64 `json:"speed"`
	} `json:"wind,omitempty"`
	Sys *struct {
		Country string `json:"country,omitempty"`
	} `json:"sys,omitempty"`
	Dt int64 `json:"dt,omitempty"`
}

// Success reports whether the payload signals a successful lookup.
func (r WeatherRecord) Success() bool {
	return r.Cod == StatusOK
}

// Description returns the first condition description, or "" when none is present.
func (r WeatherRecord) Description() string {
	if len(r.Weather) == 0 {
		return ""
	}
	return r.Weather[0].Description
}

// Validate checks the fields a successful record must carry.
func (r WeatherRecord) Validate() error {
	if !r.Success() {
		return &ParseError{Field: "cod", Reason: fmt.Sprintf("want %d, got %d", StatusOK, r.Cod)}
	}
	if strings.TrimSpace(r.Name) == "" {
		return &ParseError{Field: "name", Reason: "missing"}
	}
	if r.Main == nil {
		return &ParseError{Field: "main", Reason: "missing"}
	}
	if r.Main.Humidity < 0 || r.Main.Humidity > 100 {
		return &ParseError{Field: "main.humidity", Reason: fmt.Sprintf("out of range: %d", r.Main.Humidity)}
	}
	if len(r.Weather) == 0 || strings.TrimSpace(r.Weather[0].Description) == "" {
		return &ParseError{Field: "weather[0].description", Reason: "missing"}
	}
	return nil
}

// ParseWeatherRecord decodes a payload. Successful payloads are validated; non-success
// payloads are returned as decoded so callers can inspect Cod and Message.
func ParseWeatherRecord(data []byte) (WeatherRecord, error) {
	var rec WeatherRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return WeatherRecord{}, &ParseError{Err: err}
	}
	if !rec.Success() {
		return rec, nil
	}
	if err := rec.Validate(); err != nil {
		return WeatherRecord{}, err
	}
	return rec, nil
}
