package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/boazAvami/Epi-Com-sub000/internal/models"
	"github.com/boazAvami/Epi-Com-sub000/pkg/e"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// SOSRepository defines the interface for SOS request persistence.
//
// AppendNotified, AddResponder and Stop are atomic: the set mutation happens
// in a single filtered update on the server, never as a load-mutate-save
// round trip, so concurrent appends cannot lose each other's writes. All
// three require the request to still be ACTIVE and return ErrInvalidState
// when it is not.
type SOSRepository interface {
	Create(ctx context.Context, req *models.SOSRequest) error
	FindByID(ctx context.Context, id string) (*models.SOSRequest, error)
	FindActiveByRequester(ctx context.Context, requesterID uint) (*models.SOSRequest, error)
	AppendNotified(ctx context.Context, id string, userIDs []uint) (*models.SOSRequest, error)
	AddResponder(ctx context.Context, id string, userID uint) (*models.SOSRequest, error)
	Stop(ctx context.Context, id string) (*models.SOSRequest, error)
}

// MongoSOSRepository implements SOSRepository for MongoDB
type MongoSOSRepository struct {
	collection *mongo.Collection
}

// NewMongoSOSRepository creates a new MongoSOSRepository
func NewMongoSOSRepository(db *mongo.Database) *MongoSOSRepository {
	return &MongoSOSRepository{collection: db.Collection("sos_requests")}
}

// EnsureIndexes creates the indexes backing FindActiveByRequester
func (r *MongoSOSRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "requester_id", Value: 1},
			{Key: "status", Value: 1},
			{Key: "created_at", Value: -1},
		},
	})
	return err
}

// Create inserts a new SOS request in MongoDB
func (r *MongoSOSRepository) Create(ctx context.Context, req *models.SOSRequest) error {
	req.ID = primitive.NewObjectID()
	req.Status = models.SOSStatusActive
	req.CreatedAt = time.Now()
	if req.Responders == nil {
		req.Responders = []uint{}
	}
	if req.NotifiedUserIDs == nil {
		req.NotifiedUserIDs = []uint{}
	}
	_, err := r.collection.InsertOne(ctx, req)
	return err
}

// FindByID retrieves an SOS request by ID from MongoDB
func (r *MongoSOSRepository) FindByID(ctx context.Context, id string) (*models.SOSRequest, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid SOS request ID format: %w", e.ErrNotFound)
	}

	var req models.SOSRequest
	err = r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&req)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, e.ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

// FindActiveByRequester retrieves the most recent ACTIVE request owned by a
// user. A requester can hold more than one active alert; callers act on the
// latest.
func (r *MongoSOSRepository) FindActiveByRequester(ctx context.Context, requesterID uint) (*models.SOSRequest, error) {
	filter := bson.M{
		"requester_id": requesterID,
		"status":       models.SOSStatusActive,
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var req models.SOSRequest
	err := r.collection.FindOne(ctx, filter, opts).Decode(&req)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, e.ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

// AppendNotified unions userIDs into notified_user_ids with a single
// $addToSet update. Callers have already established the request exists, so
// a missed filter means the status changed underneath them.
func (r *MongoSOSRepository) AppendNotified(ctx context.Context, id string, userIDs []uint) (*models.SOSRequest, error) {
	update := bson.M{
		"$addToSet": bson.M{"notified_user_ids": bson.M{"$each": userIDs}},
	}
	return r.updateActive(ctx, id, update)
}

// AddResponder unions a single responder into responders. Adding an identity
// that is already present succeeds without effect.
func (r *MongoSOSRepository) AddResponder(ctx context.Context, id string, userID uint) (*models.SOSRequest, error) {
	update := bson.M{
		"$addToSet": bson.M{"responders": userID},
	}
	return r.updateActive(ctx, id, update)
}

// Stop transitions ACTIVE -> STOPPED. The status precondition sits in the
// update filter, so two concurrent stops cannot both succeed.
func (r *MongoSOSRepository) Stop(ctx context.Context, id string) (*models.SOSRequest, error) {
	update := bson.M{
		"$set": bson.M{"status": models.SOSStatusStopped},
	}
	return r.updateActive(ctx, id, update)
}

func (r *MongoSOSRepository) updateActive(ctx context.Context, id string, update bson.M) (*models.SOSRequest, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("invalid SOS request ID format: %w", e.ErrNotFound)
	}

	filter := bson.M{"_id": objID, "status": models.SOSStatusActive}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var req models.SOSRequest
	err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&req)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, e.ErrInvalidState
		}
		return nil, err
	}
	return &req, nil
}
