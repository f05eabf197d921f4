package sos_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/boazAvami/Epi-Com-sub000/internal/models"
	"github.com/boazAvami/Epi-Com-sub000/internal/sos"
	"github.com/boazAvami/Epi-Com-sub000/pkg/e"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// fakeStore is an in-memory SOSRepository. Mutations take a single lock so
// they behave like the server-side atomic updates of the Mongo
// implementation: concurrent appends union, and an inactive request rejects
// every mutation.
type fakeStore struct {
	mu   sync.Mutex
	docs map[string]*models.SOSRequest
}

func newFakeStore() *fakeStore {
	return &fakeStore{docs: make(map[string]*models.SOSRequest)}
}

func cloneRequest(r *models.SOSRequest) *models.SOSRequest {
	cp := *r
	cp.Responders = append([]uint{}, r.Responders...)
	cp.NotifiedUserIDs = append([]uint{}, r.NotifiedUserIDs...)
	return &cp
}

func (s *fakeStore) Create(_ context.Context, req *models.SOSRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	req.ID = primitive.NewObjectID()
	req.Status = models.SOSStatusActive
	req.CreatedAt = time.Now()
	req.Responders = []uint{}
	req.NotifiedUserIDs = []uint{}
	s.docs[req.ID.Hex()] = cloneRequest(req)
	return nil
}

func (s *fakeStore) FindByID(_ context.Context, id string) (*models.SOSRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok {
		return nil, e.ErrNotFound
	}
	return cloneRequest(doc), nil
}

func (s *fakeStore) FindActiveByRequester(_ context.Context, requesterID uint) (*models.SOSRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.SOSRequest
	for _, doc := range s.docs {
		if doc.RequesterID != requesterID || doc.Status != models.SOSStatusActive {
			continue
		}
		if latest == nil || doc.CreatedAt.After(latest.CreatedAt) {
			latest = doc
		}
	}
	if latest == nil {
		return nil, e.ErrNotFound
	}
	return cloneRequest(latest), nil
}

func (s *fakeStore) AppendNotified(_ context.Context, id string, userIDs []uint) (*models.SOSRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok || doc.Status != models.SOSStatusActive {
		return nil, e.ErrInvalidState
	}
	for _, uid := range userIDs {
		if !containsUint(doc.NotifiedUserIDs, uid) {
			doc.NotifiedUserIDs = append(doc.NotifiedUserIDs, uid)
		}
	}
	return cloneRequest(doc), nil
}

func (s *fakeStore) AddResponder(_ context.Context, id string, userID uint) (*models.SOSRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok || doc.Status != models.SOSStatusActive {
		return nil, e.ErrInvalidState
	}
	if !containsUint(doc.Responders, userID) {
		doc.Responders = append(doc.Responders, userID)
	}
	return cloneRequest(doc), nil
}

func (s *fakeStore) Stop(_ context.Context, id string) (*models.SOSRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, ok := s.docs[id]
	if !ok || doc.Status != models.SOSStatusActive {
		return nil, e.ErrInvalidState
	}
	doc.Status = models.SOSStatusStopped
	return cloneRequest(doc), nil
}

func containsUint(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

// fakeDeviceIndex answers radius queries from a fixed table of distances.
// The query point is ignored; entries are distances from the test scenario's
// origin.
type fakeDeviceIndex struct {
	entries []deviceEntry
	err     error
}

type deviceEntry struct {
	owner          uint
	distanceMeters float64
}

func (f *fakeDeviceIndex) OwnersWithin(_ context.Context, _ models.GeoPoint, radiusMeters float64) ([]uint, error) {
	if f.err != nil {
		return nil, f.err
	}
	var owners []uint
	for _, entry := range f.entries {
		if entry.distanceMeters <= radiusMeters {
			owners = append(owners, entry.owner)
		}
	}
	return owners, nil
}

// fakeDirectory is an in-memory user directory.
type fakeDirectory struct {
	users map[uint]*models.User
}

func (f *fakeDirectory) Lookup(id uint) (*models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return user, nil
}

// fakePush records every accepted message and can be told to fail per token.
type fakePush struct {
	mu         sync.Mutex
	sent       []*messaging.Message
	attempts   map[string]int
	failFirst  map[string]int // token -> failures before accepting
	alwaysFail map[string]bool
}

func newFakePush() *fakePush {
	return &fakePush{
		attempts:   make(map[string]int),
		failFirst:  make(map[string]int),
		alwaysFail: make(map[string]bool),
	}
}

func (f *fakePush) Send(_ context.Context, msg *messaging.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts[msg.Token]++
	if f.alwaysFail[msg.Token] {
		return "", errors.New("gateway unavailable")
	}
	if f.failFirst[msg.Token] > 0 {
		f.failFirst[msg.Token]--
		return "", errors.New("gateway unavailable")
	}
	f.sent = append(f.sent, msg)
	return "projects/test/messages/1", nil
}

func (f *fakePush) deliveredTokens() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	tokens := make([]string, 0, len(f.sent))
	for _, msg := range f.sent {
		tokens = append(tokens, msg.Token)
	}
	return tokens
}

func testDispatchConfig() sos.DispatchConfig {
	return sos.DispatchConfig{
		PerSendTimeout: time.Second,
		OverallTimeout: 5 * time.Second,
		MaxAttempts:    1,
		RetryBackoff:   time.Millisecond,
	}
}

type fixture struct {
	store      *fakeStore
	devices    *fakeDeviceIndex
	directory  *fakeDirectory
	push       *fakePush
	dispatcher *sos.Dispatcher
	service    *sos.Service
}

func newFixture(devices *fakeDeviceIndex, directory *fakeDirectory) *fixture {
	return newFixtureWithConfig(devices, directory, testDispatchConfig())
}

func newFixtureWithConfig(devices *fakeDeviceIndex, directory *fakeDirectory, cfg sos.DispatchConfig) *fixture {
	store := newFakeStore()
	push := newFakePush()
	catalog, err := sos.NewCatalog()
	if err != nil {
		panic(err)
	}
	logger := zap.NewNop()
	dispatcher := sos.NewDispatcher(directory, push, store, catalog, logger, cfg)
	service := sos.NewService(store, sos.NewLocator(devices), dispatcher, logger)
	return &fixture{
		store:      store,
		devices:    devices,
		directory:  directory,
		push:       push,
		dispatcher: dispatcher,
		service:    service,
	}
}
