package push

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pitstop/config"
	"pitstop/internal/database"
	"pitstop/internal/events"
	"pitstop/internal/logger"
	"pitstop/internal/models"
	"pitstop/internal/repositories"
	"pitstop/internal/services"

	"github.com/sourcegraph/conc/pool"
)

// staleEndpointsKey is the cache set holding endpoints the push service
// reported gone. Cleanup drains it best-effort; losing an entry only means
// one extra failed delivery later.
const staleEndpointsKey = "push:stale_endpoints"

// Payload is the wire shape handed to the service worker on the device.
type Payload struct {
	Title  string `json:"title"`
	Body   string `json:"body"`
	URL    string `json:"url"`
	TaskID string `json:"taskId,omitempty"`
	Urgent bool   `json:"urgent"`
	Tag    string `json:"tag"`
}

// DispatchResult summarizes one notification's fan-out across the
// recipient's devices.
type DispatchResult struct {
	Subscriptions int `json:"subscriptions"`
	Delivered     int `json:"delivered"`
	Failed        int `json:"failed"`
	Gone          int `json:"gone"`
}

type DispatcherInterface interface {
	// Dispatch delivers a notification to every device the recipient has
	// registered. Devices settle independently; one dead endpoint never
	// blocks the others. Zero subscriptions is a successful no-op.
	Dispatch(ctx context.Context, notification *models.Notification) (DispatchResult, error)

	// Start subscribes the dispatcher to notification insert events.
	Start() error

	// CleanupStaleSubscriptions drains the gone-endpoint queue.
	CleanupStaleSubscriptions(ctx context.Context) (int, error)
}

type Dispatcher struct {
	subscriptionRepo repositories.PushSubscriptionRepository
	notificationRepo repositories.NotificationRepository
	db               database.DB
	eventBus         *events.EventBus
	transport        Transport
	retry            *services.RetryService
	config           config.Config
}

func NewDispatcher(
	repos repositories.Repository,
	db database.DB,
	eventBus *events.EventBus,
	transport Transport,
	retry *services.RetryService,
	config config.Config,
) DispatcherInterface {
	return &Dispatcher{
		subscriptionRepo: repos.PushSubscription,
		notificationRepo: repos.Notification,
		db:               db,
		eventBus:         eventBus,
		transport:        transport,
		retry:            retry,
		config:           config,
	}
}

func (d *Dispatcher) Start() error {
	if !d.config.PushEnabled {
		return nil
	}
	return d.eventBus.Subscribe(events.NOTIFICATION_CHANNEL, d.handleNotificationCreated)
}

func (d *Dispatcher) handleNotificationCreated(event events.Event) error {
	log := logger.New("pushDispatcher").Function("handleNotificationCreated")

	if event.Notification == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := d.Dispatch(ctx, event.Notification); err != nil {
		log.Warn("push dispatch failed", "notificationID", event.Notification.ID, "error", err)
	}

	return nil
}

func (d *Dispatcher) Dispatch(
	ctx context.Context,
	notification *models.Notification,
) (DispatchResult, error) {
	log := logger.NewWithContext(ctx, "pushDispatcher").Function("Dispatch")

	var result DispatchResult

	subscriptions, err := d.subscriptionRepo.ListByUser(ctx, d.db.SQL, notification.UserID)
	if err != nil {
		return result, log.Err("failed to load push subscriptions", err, "userID", notification.UserID)
	}

	result.Subscriptions = len(subscriptions)
	if len(subscriptions) == 0 {
		return result, nil
	}

	payload, err := json.Marshal(d.buildPayload(notification))
	if err != nil {
		return result, log.Err("failed to marshal push payload", err)
	}

	type outcome struct {
		endpoint string
		err      error
	}

	p := pool.NewWithResults[outcome]()
	for _, subscription := range subscriptions {
		sub := subscription
		p.Go(func() outcome {
			err := d.retry.Do(ctx, "push delivery", func(ctx context.Context) error {
				return d.transport.Deliver(ctx, sub, payload)
			})
			return outcome{endpoint: sub.Endpoint, err: err}
		})
	}

	for _, o := range p.Wait() {
		switch {
		case o.err == nil:
			result.Delivered++
		case errors.Is(o.err, ErrSubscriptionGone):
			result.Gone++
			d.queueStaleEndpoint(ctx, o.endpoint, log)
		default:
			result.Failed++
			log.Warn("push delivery failed", "endpoint", o.endpoint, "error", o.err)
		}
	}

	if result.Delivered > 0 {
		if err := d.notificationRepo.MarkDelivered(ctx, d.db.SQL, notification.ID); err != nil {
			log.Warn("failed to mark notification delivered", "notificationID", notification.ID, "error", err)
		}
	}

	return result, nil
}

func (d *Dispatcher) CleanupStaleSubscriptions(ctx context.Context) (int, error) {
	log := logger.NewWithContext(ctx, "pushDispatcher").Function("CleanupStaleSubscriptions")

	endpoints, err := database.NewCacheBuilder(d.db.Cache.General, staleEndpointsKey).
		WithContext(ctx).
		GetSetMembers()
	if err != nil {
		return 0, log.Err("failed to read stale endpoint queue", err)
	}

	removed := 0
	for _, endpoint := range endpoints {
		if err := d.subscriptionRepo.DeleteByEndpoint(ctx, d.db.SQL, endpoint); err != nil {
			log.Warn("failed to delete stale subscription", "endpoint", endpoint, "error", err)
			continue
		}
		removed++

		if err := database.NewCacheBuilder(d.db.Cache.General, staleEndpointsKey).
			WithContext(ctx).
			WithMember(endpoint).
			RemoveSetMember(); err != nil {
			log.Warn("failed to dequeue stale endpoint", "endpoint", endpoint, "error", err)
		}
	}

	return removed, nil
}

func (d *Dispatcher) buildPayload(notification *models.Notification) Payload {
	payload := Payload{
		Title:  notification.Title,
		Body:   notification.Message,
		URL:    d.config.AppBaseURL,
		Urgent: notification.Urgent,
		Tag:    string(notification.Type),
	}

	if notification.ReferenceID != nil {
		payload.TaskID = notification.ReferenceID.String()
		payload.URL = fmt.Sprintf("%s/tasks/%s", d.config.AppBaseURL, payload.TaskID)
	}

	return payload
}

// queueStaleEndpoint records a gone endpoint for deferred deletion. Best
// effort only; a lost entry is rediscovered on the next failed delivery.
func (d *Dispatcher) queueStaleEndpoint(ctx context.Context, endpoint string, log logger.Logger) {
	if err := database.NewCacheBuilder(d.db.Cache.General, staleEndpointsKey).
		WithContext(ctx).
		WithMember(endpoint).
		SetSadd(); err != nil {
		log.Warn("failed to queue stale endpoint", "endpoint", endpoint, "error", err)
	}
}
