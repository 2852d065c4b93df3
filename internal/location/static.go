package location

import (
	"context"
	"fmt"

	"github.com/kjstillabower/weather-screen/internal/models"
)

// StaticLocator reports a fixed, configured position.
type StaticLocator struct {
	allow  bool
	coords *models.Coordinates
}

// NewStaticLocator returns a locator that grants permission when allow is set and
// reports coords as the position. A nil coords makes every fix fail.
func NewStaticLocator(allow bool, coords *models.Coordinates) *StaticLocator {
	return &StaticLocator{allow: allow, coords: coords}
}

func (l *StaticLocator) RequestPermission(ctx context.Context) (Permission, error) {
	if err := ctx.Err(); err != nil {
		return PermissionUndetermined, err
	}
	return permissionFor(l.allow), nil
}

func (l *StaticLocator) CurrentPosition(ctx context.Context) (models.Coordinates, error) {
	if err := ctx.Err(); err != nil {
		return models.Coordinates{}, err
	}
	if l.coords == nil {
		return models.Coordinates{}, fmt.Errorf("%w: no coordinates configured", ErrPositionUnavailable)
	}
	if err := l.coords.Validate(); err != nil {
		return models.Coordinates{}, fmt.Errorf("%w: %w", ErrPositionUnavailable, err)
	}
	return *l.coords, nil
}
