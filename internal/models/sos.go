package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// SOSStatus is the lifecycle state of an SOS request.
type SOSStatus string

const (
	SOSStatusActive SOSStatus = "ACTIVE"
	// SOSStatusResponded is part of the public schema; no transition
	// currently assigns it.
	SOSStatusResponded SOSStatus = "RESPONDED"
	SOSStatusStopped SOSStatus = "STOPPED"
)

// NotificationType tags the push payload sent to a recipient device.
type NotificationType string

const (
	NotificationSOSSent     NotificationType = "SOS_SENT"
	NotificationSOSResponse NotificationType = "SOS_RESPONSE"
	NotificationSOSStopped  NotificationType = "SOS_STOPPED"
)

// GeoPoint is a plain latitude/longitude pair as reported by the client.
type GeoPoint struct {
	Latitude  float64 `json:"latitude" bson:"latitude" validate:"latitude"`
	Longitude float64 `json:"longitude" bson:"longitude" validate:"longitude"`
}

// SOSRequest is the persisted record of one emergency broadcast, stored in
// MongoDB. Responders and NotifiedUserIDs are sets: they only grow, and every
// mutation goes through an atomic $addToSet update in the repository.
type SOSRequest struct {
	ID              primitive.ObjectID `json:"id,omitempty" bson:"_id,omitempty"`
	RequesterID     uint               `json:"requester_id" bson:"requester_id"`
	Location        GeoPoint           `json:"location" bson:"location"`
	Status          SOSStatus          `json:"status" bson:"status"`
	Responders      []uint             `json:"responders" bson:"responders"`
	NotifiedUserIDs []uint             `json:"notified_user_ids" bson:"notified_user_ids"`
	CreatedAt       time.Time          `json:"created_at" bson:"created_at"`
}

// SendSOSRequest defines the request body for raising a new alert
type SendSOSRequest struct {
	Location GeoPoint `json:"location" validate:"required"`
}

// ExpandSOSRequest defines the request body for widening the search radius
type ExpandSOSRequest struct {
	Location     GeoPoint `json:"location" validate:"required"`
	RadiusMeters float64  `json:"radius_meters" validate:"required,gt=0"`
}

// RespondSOSRequest defines the request body for agreeing to help
type RespondSOSRequest struct {
	Location GeoPoint `json:"location" validate:"required"`
}
