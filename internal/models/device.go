package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// GeoJSONPoint is the GeoJSON form MongoDB's 2dsphere index expects.
// Coordinates are [longitude, latitude], in that order.
type GeoJSONPoint struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates"`
}

// NewGeoJSONPoint converts a client GeoPoint into GeoJSON.
func NewGeoJSONPoint(p GeoPoint) GeoJSONPoint {
	return GeoJSONPoint{Type: "Point", Coordinates: []float64{p.Longitude, p.Latitude}}
}

// Device is one tracked client device of an injector holder, stored in
// MongoDB. A user may own several devices; the proximity lookup collapses
// them into a single identity.
type Device struct {
	ID        primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	OwnerID   uint               `json:"owner_id" bson:"owner_id"`
	DeviceID  string             `json:"device_id" bson:"device_id"`
	Platform  string             `json:"platform" bson:"platform"`
	Location  GeoJSONPoint       `json:"location" bson:"location"`
	UpdatedAt time.Time          `json:"updated_at" bson:"updated_at"`
}

// UpsertDeviceRequest defines the request body for registering a device or
// refreshing its last known location
type UpsertDeviceRequest struct {
	DeviceID string   `json:"device_id" validate:"required"`
	Platform string   `json:"platform" validate:"omitempty,oneof=ios android"`
	Location GeoPoint `json:"location" validate:"required"`
}
