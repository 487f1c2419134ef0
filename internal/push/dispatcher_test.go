package push

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"pitstop/config"
	"pitstop/internal/database"
	"pitstop/internal/models"
	"pitstop/internal/repositories"
	"pitstop/internal/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeSubscriptionRepo struct {
	repositories.PushSubscriptionRepository
	subscriptions []*models.PushSubscription
}

func (f *fakeSubscriptionRepo) ListByUser(
	ctx context.Context,
	tx *gorm.DB,
	userID uuid.UUID,
) ([]*models.PushSubscription, error) {
	return f.subscriptions, nil
}

type fakeNotificationRepo struct {
	repositories.NotificationRepository
	delivered []uuid.UUID
}

func (f *fakeNotificationRepo) MarkDelivered(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	f.delivered = append(f.delivered, id)
	return nil
}

// scriptedTransport fails or succeeds per endpoint and counts attempts.
type scriptedTransport struct {
	mu       sync.Mutex
	errs     map[string]error
	attempts map[string]int
	payloads [][]byte
}

func newScriptedTransport() *scriptedTransport {
	return &scriptedTransport{
		errs:     make(map[string]error),
		attempts: make(map[string]int),
	}
}

func (s *scriptedTransport) Deliver(
	ctx context.Context,
	subscription *models.PushSubscription,
	payload []byte,
) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts[subscription.Endpoint]++
	s.payloads = append(s.payloads, payload)
	return s.errs[subscription.Endpoint]
}

func subscription(endpoint string) *models.PushSubscription {
	return &models.PushSubscription{
		BaseUUIDModel: models.BaseUUIDModel{ID: uuid.New()},
		Endpoint:      endpoint,
		P256dhKey:     "p256dh-key",
		AuthKey:       "auth-secret",
	}
}

func newTestDispatcher(transport Transport) (*Dispatcher, *fakeSubscriptionRepo, *fakeNotificationRepo) {
	subscriptionRepo := &fakeSubscriptionRepo{}
	notificationRepo := &fakeNotificationRepo{}

	dispatcher := &Dispatcher{
		subscriptionRepo: subscriptionRepo,
		notificationRepo: notificationRepo,
		db:               database.DB{},
		transport:        transport,
		retry:            services.NewRetryServiceWithPolicy(3, time.Millisecond),
		config:           config.Config{PushEnabled: true, AppBaseURL: "https://pitstop.example"},
	}

	return dispatcher, subscriptionRepo, notificationRepo
}

func notificationFor(userID uuid.UUID) *models.Notification {
	referenceID := uuid.New()
	return &models.Notification{
		BaseUUIDModel: models.BaseUUIDModel{ID: uuid.New()},
		UserID:        userID,
		Title:         "שים לב: טיפול מתעכב",
		Message:       "החלפת מצמד",
		Type:          models.NotificationTaskDelayed,
		ReferenceID:   &referenceID,
		Urgent:        true,
	}
}

func TestDispatchNoSubscriptions(t *testing.T) {
	transport := newScriptedTransport()
	dispatcher, _, notificationRepo := newTestDispatcher(transport)

	result, err := dispatcher.Dispatch(context.Background(), notificationFor(uuid.New()))

	require.NoError(t, err)
	assert.Zero(t, result.Subscriptions)
	assert.Zero(t, result.Delivered)
	assert.Empty(t, transport.attempts, "transport is never touched")
	assert.Empty(t, notificationRepo.delivered)
}

func TestDispatchIndependentSettlement(t *testing.T) {
	transport := newScriptedTransport()
	transport.errs["https://push.example/gone"] = ErrSubscriptionGone
	transport.errs["https://push.example/flaky"] = fmt.Errorf("push service: 502")

	dispatcher, subscriptionRepo, notificationRepo := newTestDispatcher(transport)
	subscriptionRepo.subscriptions = []*models.PushSubscription{
		subscription("https://push.example/ok"),
		subscription("https://push.example/gone"),
		subscription("https://push.example/flaky"),
	}

	notification := notificationFor(uuid.New())
	result, err := dispatcher.Dispatch(context.Background(), notification)

	require.NoError(t, err, "per-device failures never fail the dispatch")
	assert.Equal(t, 3, result.Subscriptions)
	assert.Equal(t, 1, result.Delivered)
	assert.Equal(t, 1, result.Gone)
	assert.Equal(t, 1, result.Failed)

	// A gone endpoint is permanent; a 5xx is worth retrying.
	assert.Equal(t, 1, transport.attempts["https://push.example/gone"])
	assert.Equal(t, 3, transport.attempts["https://push.example/flaky"])
	assert.Equal(t, 1, transport.attempts["https://push.example/ok"])

	require.Len(t, notificationRepo.delivered, 1)
	assert.Equal(t, notification.ID, notificationRepo.delivered[0])
}

func TestDispatchAllFailedSkipsDeliveryMark(t *testing.T) {
	transport := newScriptedTransport()
	transport.errs["https://push.example/gone"] = ErrSubscriptionGone

	dispatcher, subscriptionRepo, notificationRepo := newTestDispatcher(transport)
	subscriptionRepo.subscriptions = []*models.PushSubscription{
		subscription("https://push.example/gone"),
	}

	result, err := dispatcher.Dispatch(context.Background(), notificationFor(uuid.New()))

	require.NoError(t, err)
	assert.Zero(t, result.Delivered)
	assert.Equal(t, 1, result.Gone)
	assert.Empty(t, notificationRepo.delivered)
}

func TestDispatchPayload(t *testing.T) {
	transport := newScriptedTransport()
	dispatcher, subscriptionRepo, _ := newTestDispatcher(transport)
	subscriptionRepo.subscriptions = []*models.PushSubscription{
		subscription("https://push.example/ok"),
	}

	notification := notificationFor(uuid.New())
	_, err := dispatcher.Dispatch(context.Background(), notification)
	require.NoError(t, err)

	require.Len(t, transport.payloads, 1)
	var payload Payload
	require.NoError(t, json.Unmarshal(transport.payloads[0], &payload))

	assert.Equal(t, notification.Title, payload.Title)
	assert.Equal(t, notification.Message, payload.Body)
	assert.Equal(t, notification.ReferenceID.String(), payload.TaskID)
	assert.Equal(t, "https://pitstop.example/tasks/"+payload.TaskID, payload.URL)
	assert.Equal(t, string(models.NotificationTaskDelayed), payload.Tag)
	assert.True(t, payload.Urgent)
}
