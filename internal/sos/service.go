package sos

import (
	"context"

	"github.com/boazAvami/Epi-Com-sub000/internal/models"
	"github.com/boazAvami/Epi-Com-sub000/internal/repositories"
	"github.com/boazAvami/Epi-Com-sub000/pkg/e"
	"go.uber.org/zap"
)

// DefaultRadiusMeters is the initial broadcast radius for a new alert.
const DefaultRadiusMeters = 1000

// Service orchestrates the SOS request lifecycle: send, expand, respond,
// stop. It holds no mutable state of its own; the request documents in the
// store are the sole source of truth, and every set mutation goes through
// the store's atomic updates.
type Service struct {
	store      repositories.SOSRepository
	locator    *Locator
	dispatcher *Dispatcher
	logger     *zap.Logger
}

// NewService creates a new Service
func NewService(store repositories.SOSRepository, locator *Locator, dispatcher *Dispatcher, logger *zap.Logger) *Service {
	return &Service{
		store:      store,
		locator:    locator,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Send creates a new ACTIVE request, alerts every injector holder within the
// default radius, and records them as notified. Returns the created request
// and how many holders a delivery was attempted for.
//
// A requester may hold more than one active alert at a time; Send does not
// reject a second call while an earlier alert is still ACTIVE.
func (s *Service) Send(ctx context.Context, requesterID uint, location models.GeoPoint) (*models.SOSRequest, int, error) {
	if err := validatePoint(location); err != nil {
		return nil, 0, err
	}

	req := &models.SOSRequest{
		RequesterID: requesterID,
		Location:    location,
	}
	if err := s.store.Create(ctx, req); err != nil {
		return nil, 0, e.Wrap("creating SOS request", err)
	}

	candidates, err := s.locator.FindNearbyHolders(ctx, location, DefaultRadiusMeters, requesterID)
	if err != nil {
		return nil, 0, e.Wrap("locating nearby holders", err)
	}
	candidates = PruneAlreadyNotified(candidates, req, requesterID)

	attempted, updated, err := s.dispatcher.DispatchAndRecord(ctx, candidates, req, location, requesterID)
	if err != nil {
		return nil, 0, err
	}

	s.logger.Info("SOS sent",
		zap.String("sos_id", updated.ID.Hex()),
		zap.Uint("requester_id", requesterID),
		zap.Int("candidates", len(candidates)),
		zap.Int("attempted", attempted))
	return updated, attempted, nil
}

// Expand re-runs the proximity query at a wider radius and alerts only the
// identities not yet considered. Calling it twice with the same arguments
// notifies no one new the second time.
func (s *Service) Expand(ctx context.Context, requesterID uint, sosID string, location models.GeoPoint, radiusMeters float64) (int, error) {
	if err := validatePoint(location); err != nil {
		return 0, err
	}
	if radiusMeters <= 0 {
		return 0, e.Wrap("radius must be positive", e.ErrValidation)
	}

	req, err := s.store.FindByID(ctx, sosID)
	if err != nil {
		return 0, err
	}
	if req.Status != models.SOSStatusActive {
		return 0, e.ErrInvalidState
	}
	if req.RequesterID != requesterID {
		return 0, e.ErrUnauthorized
	}

	candidates, err := s.locator.FindNearbyHolders(ctx, location, radiusMeters, requesterID)
	if err != nil {
		return 0, e.Wrap("locating nearby holders", err)
	}
	delta := PruneAlreadyNotified(candidates, req, requesterID)

	attempted, _, err := s.dispatcher.DispatchAndRecord(ctx, delta, req, location, requesterID)
	if err != nil {
		return 0, err
	}

	s.logger.Info("SOS radius expanded",
		zap.String("sos_id", sosID),
		zap.Float64("radius_meters", radiusMeters),
		zap.Int("newly_notified", len(delta)))
	return attempted, nil
}

// Respond records that responderID agreed to help and notifies the
// requester. Responding twice is not an error; the responder set holds one
// entry. Any authenticated identity may respond, including one that never
// received the broadcast (e.g. arriving via a shared link).
func (s *Service) Respond(ctx context.Context, responderID uint, sosID string, location models.GeoPoint) error {
	if err := validatePoint(location); err != nil {
		return err
	}

	req, err := s.store.FindByID(ctx, sosID)
	if err != nil {
		return err
	}
	if req.Status != models.SOSStatusActive {
		return e.ErrInvalidState
	}

	// The ACTIVE filter inside AddResponder closes the race with a
	// concurrent stop.
	updated, err := s.store.AddResponder(ctx, sosID, responderID)
	if err != nil {
		return err
	}

	s.dispatcher.Dispatch(ctx, []uint{updated.RequesterID}, updated, location, responderID, models.NotificationSOSResponse)

	s.logger.Info("responder joined",
		zap.String("sos_id", sosID),
		zap.Uint("responder_id", responderID))
	return nil
}

// Stop transitions the requester's current ACTIVE alert to STOPPED and
// tells every responder the emergency is over. STOPPED is terminal: no
// further mutation of the request is possible afterwards.
func (s *Service) Stop(ctx context.Context, requesterID uint) error {
	req, err := s.store.FindActiveByRequester(ctx, requesterID)
	if err != nil {
		return err
	}
	if req.RequesterID != requesterID {
		return e.ErrUnauthorized
	}
	if req.Status != models.SOSStatusActive {
		return e.ErrInvalidState
	}

	stopped, err := s.store.Stop(ctx, req.ID.Hex())
	if err != nil {
		return err
	}

	s.dispatcher.Dispatch(ctx, stopped.Responders, stopped, stopped.Location, requesterID, models.NotificationSOSStopped)

	s.logger.Info("SOS stopped",
		zap.String("sos_id", stopped.ID.Hex()),
		zap.Uint("requester_id", requesterID),
		zap.Int("responders", len(stopped.Responders)))
	return nil
}

// Responders returns who agreed to help. Only the requester may read the
// list.
func (s *Service) Responders(ctx context.Context, requesterID uint, sosID string) ([]uint, error) {
	req, err := s.store.FindByID(ctx, sosID)
	if err != nil {
		return nil, err
	}
	if req.RequesterID != requesterID {
		return nil, e.ErrUnauthorized
	}
	return req.Responders, nil
}

func validatePoint(p models.GeoPoint) error {
	if p.Latitude < -90 || p.Latitude > 90 || p.Longitude < -180 || p.Longitude > 180 {
		return e.Wrap("malformed location", e.ErrValidation)
	}
	return nil
}
