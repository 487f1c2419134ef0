package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"pitstop/config"
	"pitstop/internal/database"
	"pitstop/internal/logger"
	"pitstop/internal/models"

	"github.com/google/uuid"
	"github.com/valkey-io/valkey-go"
)

type Channel string

func (c Channel) String() string {
	return string(c)
}

const (
	// NOTIFICATION_CHANNEL carries one event per inserted notification row.
	// The feed maintainer, the websocket manager and the push dispatcher all
	// subscribe to it and react independently.
	NOTIFICATION_CHANNEL Channel = "notification.created"
	BROADCAST_CHANNEL    Channel = "broadcast"
)

type EventType string

const (
	NOTIFICATION_CREATED EventType = "notification_created"
	BROADCAST            EventType = "broadcast"
)

type Event struct {
	ID           string               `json:"id"`
	Type         EventType            `json:"type"`
	Channel      Channel              `json:"channel"`
	UserID       *uuid.UUID           `json:"userId,omitempty"`
	Notification *models.Notification `json:"notification,omitempty"`
	Data         map[string]any       `json:"data,omitempty"`
	Timestamp    time.Time            `json:"timestamp"`
}

type EventHandler func(event Event) error

type EventBus struct {
	client    database.CacheClient
	logger    logger.Logger
	config    config.Config
	handlers  map[Channel][]EventHandler
	listening map[Channel]bool
	// startListener spawns the pub/sub listener goroutine for a channel.
	// Replaceable so the subscription bookkeeping is testable without a
	// live valkey connection.
	startListener func(channel Channel)
	mutex         sync.RWMutex
	ctx           context.Context
	cancel        context.CancelFunc
}

func New(client database.CacheClient, config config.Config) *EventBus {
	ctx, cancel := context.WithCancel(context.Background())

	eb := &EventBus{
		client:    client,
		logger:    logger.New("EventBus"),
		config:    config,
		handlers:  make(map[Channel][]EventHandler),
		listening: make(map[Channel]bool),
		ctx:       ctx,
		cancel:    cancel,
	}
	eb.startListener = func(channel Channel) {
		go eb.listenToChannel(channel)
	}

	return eb
}

func (eb *EventBus) Publish(channel Channel, event Event) error {
	log := eb.logger.Function("Publish")

	if event.ID == "" {
		event.ID = uuid.New().String()
	}

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if event.Channel == "" {
		event.Channel = channel
	}

	eventData, err := json.Marshal(event)
	if err != nil {
		return log.Err("failed to marshal event", err, "eventID", event.ID)
	}

	ctx, cancel := context.WithTimeout(eb.ctx, 5*time.Second)
	defer cancel()

	err = eb.client.Do(ctx, eb.client.B().Publish().Channel(channel.String()).Message(string(eventData)).Build()).
		Error()
	if err != nil {
		return log.Err(
			"failed to publish event to valkey",
			err,
			"channel", channel,
			"eventID", event.ID,
		)
	}

	log.Debug("Event published", "channel", channel, "eventID", event.ID, "eventType", event.Type)

	return nil
}

// PublishNotificationCreated fans an inserted notification row out to every
// subscriber of the notification channel.
func (eb *EventBus) PublishNotificationCreated(notification *models.Notification) error {
	return eb.Publish(NOTIFICATION_CHANNEL, Event{
		Type:         NOTIFICATION_CREATED,
		UserID:       &notification.UserID,
		Notification: notification,
	})
}

// Subscribe registers handler for channel. The first subscription to a
// channel starts its single pub/sub listener; later subscriptions share it.
// One published event therefore reaches each handler exactly once, no
// matter how many handlers the channel carries.
func (eb *EventBus) Subscribe(channel Channel, handler EventHandler) error {
	log := eb.logger.Function("Subscribe")

	eb.mutex.Lock()
	eb.handlers[channel] = append(eb.handlers[channel], handler)
	newListener := !eb.listening[channel]
	eb.listening[channel] = true
	eb.mutex.Unlock()

	log.Info("Handler subscribed to channel", "channel", channel, "newListener", newListener)

	if newListener {
		eb.startListener(channel)
	}

	return nil
}

func (eb *EventBus) notifyLocalHandlers(channel Channel, event Event) {
	log := eb.logger.Function("notifyLocalHandlers")

	eb.mutex.RLock()
	handlers, exists := eb.handlers[channel]
	eb.mutex.RUnlock()

	if !exists || len(handlers) == 0 {
		return
	}

	for i, handler := range handlers {
		go func(h EventHandler, handlerIndex int) {
			if err := h(event); err != nil {
				log.Er(
					"handler failed",
					err,
					"channel", channel,
					"eventID", event.ID,
					"handlerIndex", handlerIndex,
				)
			}
		}(handler, i)
	}
}

// dispatchMessage decodes one wire message and hands it to every handler
// registered for the channel.
func (eb *EventBus) dispatchMessage(channel Channel, payload string) {
	log := eb.logger.Function("dispatchMessage")

	var event Event
	if err := json.Unmarshal([]byte(payload), &event); err != nil {
		log.Er("failed to unmarshal event", err, "channel", channel, "message", payload)
		return
	}

	eb.notifyLocalHandlers(channel, event)
}

func (eb *EventBus) listenToChannel(channel Channel) {
	log := eb.logger.Function("listenToChannel")

	ctx, cancel := context.WithCancel(eb.ctx)
	defer cancel()

	log.Info("Starting to listen to channel", "channel", channel)

	err := eb.client.Receive(
		ctx,
		eb.client.B().Subscribe().Channel(channel.String()).Build(),
		func(msg valkey.PubSubMessage) {
			eb.dispatchMessage(channel, msg.Message)
		},
	)
	if err != nil {
		log.Er("failed to listen to channel", err, "channel", channel)
	}
}

func (eb *EventBus) Close() error {
	log := eb.logger.Function("Close")

	eb.cancel()

	log.Info("EventBus closed")
	return nil
}
