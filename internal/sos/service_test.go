package sos_test

import (
	"context"
	"sync"
	"testing"

	"github.com/boazAvami/Epi-Com-sub000/internal/models"
	"github.com/boazAvami/Epi-Com-sub000/internal/repositories"
	"github.com/boazAvami/Epi-Com-sub000/internal/sos"
	"github.com/boazAvami/Epi-Com-sub000/pkg/e"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

const requesterID uint = 100

// neighborhood reproduces the reference layout: h1 (id 1, token) and h2
// (id 2, no token) inside 1000 m of the requester, h3 (id 3, token) inside
// 5000 m but outside 1000 m.
func neighborhood() (*fakeDeviceIndex, *fakeDirectory) {
	devices := &fakeDeviceIndex{entries: []deviceEntry{
		{owner: 1, distanceMeters: 500},
		{owner: 2, distanceMeters: 800},
		{owner: 3, distanceMeters: 3000},
		{owner: 4, distanceMeters: 4000},
	}}
	directory := &fakeDirectory{users: map[uint]*models.User{
		requesterID: {ID: requesterID, Name: "Noa", PushToken: "token-requester", Locale: "en"},
		1:           {ID: 1, Name: "Holder One", PushToken: "token-1", Locale: "en"},
		2:           {ID: 2, Name: "Holder Two", PushToken: "", Locale: "en"},
		3:           {ID: 3, Name: "Holder Three", PushToken: "token-3", Locale: "he"},
		4:           {ID: 4, Name: "Holder Four", PushToken: "token-4", Locale: "en"},
	}}
	return devices, directory
}

func TestSendCreatesActiveRequestAndNotifiesNearbyHolders(t *testing.T) {
	f := newFixture(neighborhood())

	req, attempted, err := f.service.Send(context.Background(), requesterID, testPoint)
	require.NoError(t, err)

	assert.Equal(t, models.SOSStatusActive, req.Status)
	assert.Equal(t, requesterID, req.RequesterID)
	assert.Empty(t, req.Responders)
	assert.ElementsMatch(t, []uint{1, 2}, req.NotifiedUserIDs,
		"exactly the holders within 1000 m, requester excluded")
	assert.Equal(t, 1, attempted, "h2 has no token; only h1 counts")
	assert.NotContains(t, req.NotifiedUserIDs, requesterID)
}

func TestSendRejectsMalformedLocation(t *testing.T) {
	f := newFixture(neighborhood())

	_, _, err := f.service.Send(context.Background(), requesterID, models.GeoPoint{Latitude: 91, Longitude: 0})
	assert.ErrorIs(t, err, e.ErrValidation)
}

func TestSendAllowsSecondActiveRequest(t *testing.T) {
	f := newFixture(neighborhood())

	first, _, err := f.service.Send(context.Background(), requesterID, testPoint)
	require.NoError(t, err)
	second, _, err := f.service.Send(context.Background(), requesterID, testPoint)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
}

func TestExpandNotifiesOnlyNewlyInRangeHolders(t *testing.T) {
	f := newFixture(neighborhood())
	req, _, err := f.service.Send(context.Background(), requesterID, testPoint)
	require.NoError(t, err)

	attempted, err := f.service.Expand(context.Background(), requesterID, req.ID.Hex(), testPoint, 5000)
	require.NoError(t, err)
	assert.Equal(t, 2, attempted, "h3 and h4 are newly in range")

	stored, err := f.store.FindByID(context.Background(), req.ID.Hex())
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{1, 2, 3, 4}, stored.NotifiedUserIDs)

	// h1 and h2 were not re-sent: one initial delivery plus the two new ones.
	assert.ElementsMatch(t, []string{"token-1", "token-3", "token-4"}, f.push.deliveredTokens())
}

func TestExpandIsIdempotent(t *testing.T) {
	f := newFixture(neighborhood())
	req, _, err := f.service.Send(context.Background(), requesterID, testPoint)
	require.NoError(t, err)

	first, err := f.service.Expand(context.Background(), requesterID, req.ID.Hex(), testPoint, 5000)
	require.NoError(t, err)
	assert.Equal(t, 2, first)

	second, err := f.service.Expand(context.Background(), requesterID, req.ID.Hex(), testPoint, 5000)
	require.NoError(t, err)
	assert.Zero(t, second, "identical expand notifies no one new")
}

func TestExpandNeverShrinksNotifiedSet(t *testing.T) {
	f := newFixture(neighborhood())
	req, _, err := f.service.Send(context.Background(), requesterID, testPoint)
	require.NoError(t, err)

	_, err = f.service.Expand(context.Background(), requesterID, req.ID.Hex(), testPoint, 5000)
	require.NoError(t, err)

	// Shrinking the radius afterwards must not shrink the set.
	_, err = f.service.Expand(context.Background(), requesterID, req.ID.Hex(), testPoint, 1000)
	require.NoError(t, err)

	stored, err := f.store.FindByID(context.Background(), req.ID.Hex())
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{1, 2, 3, 4}, stored.NotifiedUserIDs)
}

func TestExpandPreconditions(t *testing.T) {
	f := newFixture(neighborhood())
	req, _, err := f.service.Send(context.Background(), requesterID, testPoint)
	require.NoError(t, err)

	t.Run("unknown request", func(t *testing.T) {
		_, err := f.service.Expand(context.Background(), requesterID, primitive.NewObjectID().Hex(), testPoint, 5000)
		assert.ErrorIs(t, err, e.ErrNotFound)
	})

	t.Run("non-positive radius", func(t *testing.T) {
		_, err := f.service.Expand(context.Background(), requesterID, req.ID.Hex(), testPoint, 0)
		assert.ErrorIs(t, err, e.ErrValidation)
	})

	t.Run("caller is not the requester", func(t *testing.T) {
		_, err := f.service.Expand(context.Background(), 1, req.ID.Hex(), testPoint, 5000)
		assert.ErrorIs(t, err, e.ErrUnauthorized)
	})

	t.Run("stopped request", func(t *testing.T) {
		require.NoError(t, f.service.Stop(context.Background(), requesterID))
		_, err := f.service.Expand(context.Background(), requesterID, req.ID.Hex(), testPoint, 5000)
		assert.ErrorIs(t, err, e.ErrInvalidState)
	})
}

func TestRespondAddsResponderAndNotifiesRequester(t *testing.T) {
	f := newFixture(neighborhood())
	req, _, err := f.service.Send(context.Background(), requesterID, testPoint)
	require.NoError(t, err)

	err = f.service.Respond(context.Background(), 1, req.ID.Hex(), testPoint)
	require.NoError(t, err)

	stored, err := f.store.FindByID(context.Background(), req.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, []uint{1}, stored.Responders)
	assert.Contains(t, f.push.deliveredTokens(), "token-requester")
}

func TestRespondIsIdempotent(t *testing.T) {
	f := newFixture(neighborhood())
	req, _, err := f.service.Send(context.Background(), requesterID, testPoint)
	require.NoError(t, err)

	require.NoError(t, f.service.Respond(context.Background(), 1, req.ID.Hex(), testPoint))
	require.NoError(t, f.service.Respond(context.Background(), 1, req.ID.Hex(), testPoint))

	stored, err := f.store.FindByID(context.Background(), req.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, []uint{1}, stored.Responders, "no duplicate, no error")
}

func TestRespondAllowedWithoutHavingBeenNotified(t *testing.T) {
	// Holder 4 is outside the initial radius and was never broadcast to,
	// e.g. they arrived via a shared link.
	f := newFixture(neighborhood())
	req, _, err := f.service.Send(context.Background(), requesterID, testPoint)
	require.NoError(t, err)

	err = f.service.Respond(context.Background(), 4, req.ID.Hex(), testPoint)
	require.NoError(t, err)

	stored, err := f.store.FindByID(context.Background(), req.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, []uint{4}, stored.Responders)
}

func TestRespondAfterStopIsInvalidState(t *testing.T) {
	f := newFixture(neighborhood())
	req, _, err := f.service.Send(context.Background(), requesterID, testPoint)
	require.NoError(t, err)
	require.NoError(t, f.service.Stop(context.Background(), requesterID))

	err = f.service.Respond(context.Background(), 1, req.ID.Hex(), testPoint)
	assert.ErrorIs(t, err, e.ErrInvalidState)

	stored, err := f.store.FindByID(context.Background(), req.ID.Hex())
	require.NoError(t, err)
	assert.Empty(t, stored.Responders, "no mutation after the terminal state")
}

func TestRespondUnknownRequest(t *testing.T) {
	f := newFixture(neighborhood())

	err := f.service.Respond(context.Background(), 1, primitive.NewObjectID().Hex(), testPoint)
	assert.ErrorIs(t, err, e.ErrNotFound)
}

func TestConcurrentRespondersBothRecorded(t *testing.T) {
	f := newFixture(neighborhood())
	req, _, err := f.service.Send(context.Background(), requesterID, testPoint)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for _, responder := range []uint{3, 4} {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			assert.NoError(t, f.service.Respond(context.Background(), id, req.ID.Hex(), testPoint))
		}(responder)
	}
	wg.Wait()

	stored, err := f.store.FindByID(context.Background(), req.ID.Hex())
	require.NoError(t, err)
	assert.ElementsMatch(t, []uint{3, 4}, stored.Responders, "no lost update")
}

func TestStopNotifiesRespondersAndIsTerminal(t *testing.T) {
	f := newFixture(neighborhood())
	req, _, err := f.service.Send(context.Background(), requesterID, testPoint)
	require.NoError(t, err)
	require.NoError(t, f.service.Respond(context.Background(), 1, req.ID.Hex(), testPoint))
	require.NoError(t, f.service.Respond(context.Background(), 3, req.ID.Hex(), testPoint))

	require.NoError(t, f.service.Stop(context.Background(), requesterID))

	stored, err := f.store.FindByID(context.Background(), req.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.SOSStatusStopped, stored.Status)

	// Both responders got the stop alert on top of their earlier ones.
	tokens := f.push.deliveredTokens()
	assert.GreaterOrEqual(t, countToken(tokens, "token-1"), 2)
	assert.GreaterOrEqual(t, countToken(tokens, "token-3"), 1)
}

func TestStopWithoutActiveRequest(t *testing.T) {
	f := newFixture(neighborhood())

	err := f.service.Stop(context.Background(), requesterID)
	assert.ErrorIs(t, err, e.ErrNotFound)
}

func TestStopTwice(t *testing.T) {
	f := newFixture(neighborhood())
	_, _, err := f.service.Send(context.Background(), requesterID, testPoint)
	require.NoError(t, err)

	require.NoError(t, f.service.Stop(context.Background(), requesterID))
	err = f.service.Stop(context.Background(), requesterID)
	assert.ErrorIs(t, err, e.ErrNotFound, "no ACTIVE request remains to stop")
}

func TestStopRejectsForeignRequest(t *testing.T) {
	// If the store ever hands back a request the caller does not own, the
	// transition must refuse rather than stop someone else's alert.
	f := newFixture(neighborhood())
	req, _, err := f.service.Send(context.Background(), requesterID, testPoint)
	require.NoError(t, err)

	foreign := &foreignStore{SOSRepository: f.store, doc: req}
	svc := sos.NewService(foreign, sos.NewLocator(f.devices), f.dispatcher, zap.NewNop())

	err = svc.Stop(context.Background(), 1)
	assert.ErrorIs(t, err, e.ErrUnauthorized)

	stored, err := f.store.FindByID(context.Background(), req.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, models.SOSStatusActive, stored.Status)
}

func TestGetRespondersRequiresOwnership(t *testing.T) {
	f := newFixture(neighborhood())
	req, _, err := f.service.Send(context.Background(), requesterID, testPoint)
	require.NoError(t, err)
	require.NoError(t, f.service.Respond(context.Background(), 1, req.ID.Hex(), testPoint))

	responders, err := f.service.Responders(context.Background(), requesterID, req.ID.Hex())
	require.NoError(t, err)
	assert.Equal(t, []uint{1}, responders)

	_, err = f.service.Responders(context.Background(), 2, req.ID.Hex())
	assert.ErrorIs(t, err, e.ErrUnauthorized)
}

func TestStoreStopRejectsSecondTransition(t *testing.T) {
	store := newFakeStore()
	req := &models.SOSRequest{RequesterID: requesterID, Location: testPoint}
	require.NoError(t, store.Create(context.Background(), req))

	_, err := store.Stop(context.Background(), req.ID.Hex())
	require.NoError(t, err)

	_, err = store.Stop(context.Background(), req.ID.Hex())
	assert.ErrorIs(t, err, e.ErrInvalidState, "STOPPED is terminal")
}

func countToken(tokens []string, token string) int {
	n := 0
	for _, t := range tokens {
		if t == token {
			n++
		}
	}
	return n
}

// foreignStore returns a fixed request from FindActiveByRequester no matter
// who asks, standing in for a buggy or adversarial lookup.
type foreignStore struct {
	repositories.SOSRepository
	doc *models.SOSRequest
}

func (s *foreignStore) FindActiveByRequester(_ context.Context, _ uint) (*models.SOSRequest, error) {
	return cloneRequest(s.doc), nil
}
