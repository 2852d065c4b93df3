package models

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidCoordinates is returned when latitude or longitude is out of range.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// Validate rejects NaN and out-of-range values.
func (c Coordinates) Validate() error {
	if math.IsNaN(c.Lat) || c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %v", ErrInvalidCoordinates, c.Lat)
	}
	if math.IsNaN(c.Lon) || c.Lon < -180 || c.Lon > 180 {
		return fmt.Errorf("%w: longitude %v", ErrInvalidCoordinates, c.Lon)
	}
	return nil
}
