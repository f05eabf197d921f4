package sos

import (
	"context"
	"strconv"
	"time"

	"firebase.google.com/go/v4/messaging"
	"github.com/boazAvami/Epi-Com-sub000/internal/models"
	"github.com/boazAvami/Epi-Com-sub000/internal/repositories"
	"github.com/boazAvami/Epi-Com-sub000/pkg/e"
	"go.uber.org/zap"
)

// UserDirectory resolves a recipient's push token and locale.
type UserDirectory interface {
	Lookup(id uint) (*models.User, error)
}

// PushSender submits one message to the push gateway. Satisfied by
// *messaging.Client from the Firebase Admin SDK.
type PushSender interface {
	Send(ctx context.Context, message *messaging.Message) (string, error)
}

// DispatchConfig bounds how long a dispatch batch may stall the state
// transition that triggered it.
type DispatchConfig struct {
	PerSendTimeout time.Duration
	OverallTimeout time.Duration
	MaxAttempts    int
	RetryBackoff   time.Duration
}

func (c *DispatchConfig) applyDefaults() {
	if c.PerSendTimeout <= 0 {
		c.PerSendTimeout = 5 * time.Second
	}
	if c.OverallTimeout <= 0 {
		c.OverallTimeout = 30 * time.Second
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 3
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = 200 * time.Millisecond
	}
}

// Dispatcher fans a localized alert out to a set of recipients. Delivery is
// best effort: a failed send is retried with backoff, then logged and
// dropped. A failure for one recipient never aborts the batch, and no
// delivery failure ever propagates to the caller.
type Dispatcher struct {
	directory UserDirectory
	push      PushSender
	store     repositories.SOSRepository
	catalog   *Catalog
	logger    *zap.Logger
	cfg       DispatchConfig
}

// NewDispatcher creates a new Dispatcher
func NewDispatcher(directory UserDirectory, push PushSender, store repositories.SOSRepository, catalog *Catalog, logger *zap.Logger, cfg DispatchConfig) *Dispatcher {
	cfg.applyDefaults()
	return &Dispatcher{
		directory: directory,
		push:      push,
		store:     store,
		catalog:   catalog,
		logger:    logger,
		cfg:       cfg,
	}
}

// DispatchAndRecord sends the SOS_SENT alert to every candidate and then
// appends the ENTIRE candidate set to the request's notified set, token or
// no token. "Notified" means "considered for this alert": a token-less user
// must not be re-considered on every radius expansion. The store write is
// authoritative even when some sends fail.
//
// Returns the number of candidates a send was attempted for and the updated
// request.
func (d *Dispatcher) DispatchAndRecord(ctx context.Context, candidates []uint, req *models.SOSRequest, point models.GeoPoint, senderID uint) (int, *models.SOSRequest, error) {
	if len(candidates) == 0 {
		return 0, req, nil
	}

	attempted := d.Dispatch(ctx, candidates, req, point, senderID, models.NotificationSOSSent)

	updated, err := d.store.AppendNotified(ctx, req.ID.Hex(), candidates)
	if err != nil {
		return attempted, nil, e.Wrap("recording notified set", err)
	}
	return attempted, updated, nil
}

// Dispatch sends one notification type to each target and returns how many
// sends were attempted (targets with a registered token). It does not touch
// the notified set; respond/stop notifications are not recorded.
func (d *Dispatcher) Dispatch(ctx context.Context, targets []uint, req *models.SOSRequest, point models.GeoPoint, senderID uint, ntype models.NotificationType) int {
	if len(targets) == 0 {
		return 0
	}

	ctx, cancel := context.WithTimeout(ctx, d.cfg.OverallTimeout)
	defer cancel()

	senderName := d.senderName(senderID)

	attempted := 0
	for _, target := range targets {
		user, err := d.directory.Lookup(target)
		if err != nil {
			d.logger.Warn("recipient lookup failed, skipping delivery",
				zap.Uint("user_id", target), zap.Error(err))
			continue
		}
		if user.PushToken == "" {
			d.logger.Debug("recipient has no push token, skipping delivery",
				zap.Uint("user_id", target))
			continue
		}

		title, body := d.catalog.Format(ntype, user.Locale, senderName)
		msg := buildMessage(user.PushToken, title, body, req, point, senderID, ntype)

		attempted++
		d.sendWithRetry(ctx, target, msg)
	}
	return attempted
}

// sendWithRetry retries transport failures only. State-machine errors never
// reach this path.
func (d *Dispatcher) sendWithRetry(ctx context.Context, target uint, msg *messaging.Message) {
	var lastErr error
	for attempt := 1; attempt <= d.cfg.MaxAttempts; attempt++ {
		sendCtx, cancel := context.WithTimeout(ctx, d.cfg.PerSendTimeout)
		_, err := d.push.Send(sendCtx, msg)
		cancel()
		if err == nil {
			return
		}

		lastErr = &e.DispatchError{UserID: target, Err: err}
		if ctx.Err() != nil {
			break
		}
		select {
		case <-time.After(d.cfg.RetryBackoff * time.Duration(attempt)):
		case <-ctx.Done():
		}
	}
	d.logger.Warn("push delivery failed", zap.Uint("user_id", target), zap.Error(lastErr))
}

func (d *Dispatcher) senderName(senderID uint) string {
	sender, err := d.directory.Lookup(senderID)
	if err != nil || sender.Name == "" {
		return "Epi-Com"
	}
	return sender.Name
}

func buildMessage(token, title, body string, req *models.SOSRequest, point models.GeoPoint, senderID uint, ntype models.NotificationType) *messaging.Message {
	return &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: map[string]string{
			"type":      string(ntype),
			"sos_id":    req.ID.Hex(),
			"sender_id": strconv.FormatUint(uint64(senderID), 10),
			"latitude":  strconv.FormatFloat(point.Latitude, 'f', -1, 64),
			"longitude": strconv.FormatFloat(point.Longitude, 'f', -1, 64),
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		},
		Android: &messaging.AndroidConfig{Priority: "high"},
		APNS: &messaging.APNSConfig{
			Headers: map[string]string{"apns-priority": "10"},
		},
	}
}
