package events

import (
	"encoding/json"
	"sync/atomic"
	"testing"
	"time"

	"pitstop/config"
	"pitstop/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBus() (*EventBus, *atomic.Int32) {
	bus := New(nil, config.Config{})

	var listenerStarts atomic.Int32
	bus.startListener = func(channel Channel) {
		listenerStarts.Add(1)
	}

	return bus, &listenerStarts
}

func encodedEvent(t *testing.T) string {
	t.Helper()

	userID := uuid.New()
	payload, err := json.Marshal(Event{
		Type:         NOTIFICATION_CREATED,
		Channel:      NOTIFICATION_CHANNEL,
		UserID:       &userID,
		Notification: &models.Notification{UserID: userID, Title: "טיפול חדש"},
	})
	require.NoError(t, err)
	return string(payload)
}

func TestSubscribeSharesOneListenerPerChannel(t *testing.T) {
	bus, listenerStarts := newTestBus()

	// The notification channel carries three subscribers in production:
	// the feed maintainer, the websocket manager and the push dispatcher.
	var feed, socket, push atomic.Int32
	require.NoError(t, bus.Subscribe(NOTIFICATION_CHANNEL, func(event Event) error {
		feed.Add(1)
		return nil
	}))
	require.NoError(t, bus.Subscribe(NOTIFICATION_CHANNEL, func(event Event) error {
		socket.Add(1)
		return nil
	}))
	require.NoError(t, bus.Subscribe(NOTIFICATION_CHANNEL, func(event Event) error {
		push.Add(1)
		return nil
	}))

	require.EqualValues(t, 1, listenerStarts.Load(), "three subscriptions share one pub/sub connection")

	// The broker delivers each published message once per connection.
	payload := encodedEvent(t)
	for range int(listenerStarts.Load()) {
		bus.dispatchMessage(NOTIFICATION_CHANNEL, payload)
	}

	require.Eventually(t, func() bool {
		return feed.Load() == 1 && socket.Load() == 1 && push.Load() == 1
	}, time.Second, 5*time.Millisecond)

	// Settle and re-check so duplicate deliveries do not slip past.
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 1, feed.Load())
	assert.EqualValues(t, 1, socket.Load())
	assert.EqualValues(t, 1, push.Load())
}

func TestSubscribeStartsOneListenerPerDistinctChannel(t *testing.T) {
	bus, listenerStarts := newTestBus()

	require.NoError(t, bus.Subscribe(NOTIFICATION_CHANNEL, func(event Event) error { return nil }))
	require.NoError(t, bus.Subscribe(BROADCAST_CHANNEL, func(event Event) error { return nil }))
	require.NoError(t, bus.Subscribe(NOTIFICATION_CHANNEL, func(event Event) error { return nil }))

	assert.EqualValues(t, 2, listenerStarts.Load())
}

func TestDispatchMessageIgnoresMalformedPayload(t *testing.T) {
	bus, _ := newTestBus()

	var calls atomic.Int32
	require.NoError(t, bus.Subscribe(NOTIFICATION_CHANNEL, func(event Event) error {
		calls.Add(1)
		return nil
	}))

	bus.dispatchMessage(NOTIFICATION_CHANNEL, "{not json")

	time.Sleep(20 * time.Millisecond)
	assert.Zero(t, calls.Load())
}
