// Package location provides the device position for the startup weather lookup.
package location

import (
	"context"
	"errors"

	"github.com/kjstillabower/weather-screen/internal/models"
)

// ErrPositionUnavailable is returned when no position fix can be obtained.
var ErrPositionUnavailable = errors.New("position unavailable")

// Permission is the outcome of a foreground location permission request.
type Permission string

const (
	PermissionGranted      Permission = "granted"
	PermissionDenied       Permission = "denied"
	PermissionUndetermined Permission = "undetermined"
)

// Locator is a permission-gated source of the current foreground position.
type Locator interface {
	// RequestPermission asks for foreground location access.
	RequestPermission(ctx context.Context) (Permission, error)
	// CurrentPosition returns the current position. Callers request permission first.
	CurrentPosition(ctx context.Context) (models.Coordinates, error)
}

func permissionFor(allow bool) Permission {
	if allow {
		return PermissionGranted
	}
	return PermissionDenied
}
