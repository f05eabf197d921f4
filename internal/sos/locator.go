package sos

import (
	"context"

	"github.com/boazAvami/Epi-Com-sub000/internal/models"
)

// DeviceIndex is the slice of the device repository the locator needs.
type DeviceIndex interface {
	OwnersWithin(ctx context.Context, point models.GeoPoint, radiusMeters float64) ([]uint, error)
}

// Locator answers "which distinct users own a tracked device within this
// radius". It is read-only and safe to call repeatedly with growing radii.
type Locator struct {
	devices DeviceIndex
}

// NewLocator creates a new Locator
func NewLocator(devices DeviceIndex) *Locator {
	return &Locator{devices: devices}
}

// FindNearbyHolders runs a radius query against the device-location index,
// collapses multiple devices per owner into one identity, and removes
// excludeUserID. Radius is in meters.
func (l *Locator) FindNearbyHolders(ctx context.Context, point models.GeoPoint, radiusMeters float64, excludeUserID uint) ([]uint, error) {
	owners, err := l.devices.OwnersWithin(ctx, point, radiusMeters)
	if err != nil {
		return nil, err
	}

	seen := make(map[uint]struct{}, len(owners))
	holders := make([]uint, 0, len(owners))
	for _, owner := range owners {
		if owner == excludeUserID {
			continue
		}
		if _, ok := seen[owner]; ok {
			continue
		}
		seen[owner] = struct{}{}
		holders = append(holders, owner)
	}
	return holders, nil
}
