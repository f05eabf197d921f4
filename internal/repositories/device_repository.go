package repositories

import (
	"context"
	"time"

	"github.com/boazAvami/Epi-Com-sub000/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// DeviceRepository defines the interface for the device-location index
type DeviceRepository interface {
	UpsertDevice(ctx context.Context, device *models.Device) error
	OwnersWithin(ctx context.Context, point models.GeoPoint, radiusMeters float64) ([]uint, error)
	GetDevicesByOwner(ctx context.Context, ownerID uint) ([]models.Device, error)
	DeleteDevice(ctx context.Context, ownerID uint, deviceID string) error
}

// MongoDeviceRepository implements DeviceRepository on a 2dsphere-indexed
// MongoDB collection
type MongoDeviceRepository struct {
	collection *mongo.Collection
}

// NewMongoDeviceRepository creates a new MongoDeviceRepository
func NewMongoDeviceRepository(db *mongo.Database) *MongoDeviceRepository {
	return &MongoDeviceRepository{collection: db.Collection("devices")}
}

// EnsureIndexes creates the geospatial index and the per-owner device key
func (r *MongoDeviceRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "location", Value: "2dsphere"}},
		},
		{
			Keys: bson.D{
				{Key: "owner_id", Value: 1},
				{Key: "device_id", Value: 1},
			},
			Options: options.Index().SetUnique(true),
		},
	})
	return err
}

// UpsertDevice registers a device or refreshes its last known location,
// keyed by (owner_id, device_id)
func (r *MongoDeviceRepository) UpsertDevice(ctx context.Context, device *models.Device) error {
	device.UpdatedAt = time.Now()
	filter := bson.M{"owner_id": device.OwnerID, "device_id": device.DeviceID}
	update := bson.M{
		"$set": bson.M{
			"platform":   device.Platform,
			"location":   device.Location,
			"updated_at": device.UpdatedAt,
		},
		"$setOnInsert": bson.M{
			"owner_id":  device.OwnerID,
			"device_id": device.DeviceID,
		},
	}
	_, err := r.collection.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return err
}

// OwnersWithin returns the owner of every device within radiusMeters of the
// point. Owners with multiple devices in range appear once per device; the
// locator collapses them. Radius is in meters here, not kilometers.
func (r *MongoDeviceRepository) OwnersWithin(ctx context.Context, point models.GeoPoint, radiusMeters float64) ([]uint, error) {
	filter := bson.M{
		"location": bson.M{
			"$nearSphere": bson.M{
				"$geometry":    models.NewGeoJSONPoint(point),
				"$maxDistance": radiusMeters,
			},
		},
	}

	cursor, err := r.collection.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var devices []models.Device
	if err = cursor.All(ctx, &devices); err != nil {
		return nil, err
	}

	owners := make([]uint, 0, len(devices))
	for _, d := range devices {
		owners = append(owners, d.OwnerID)
	}
	return owners, nil
}

// GetDevicesByOwner retrieves all devices registered by a user
func (r *MongoDeviceRepository) GetDevicesByOwner(ctx context.Context, ownerID uint) ([]models.Device, error) {
	cursor, err := r.collection.Find(ctx, bson.M{"owner_id": ownerID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var devices []models.Device
	if err = cursor.All(ctx, &devices); err != nil {
		return nil, err
	}
	return devices, nil
}

// DeleteDevice removes a device from the location index
func (r *MongoDeviceRepository) DeleteDevice(ctx context.Context, ownerID uint, deviceID string) error {
	_, err := r.collection.DeleteOne(ctx, bson.M{"owner_id": ownerID, "device_id": deviceID})
	return err
}
