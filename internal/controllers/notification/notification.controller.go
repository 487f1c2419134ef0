package notificationController

import (
	"context"
	"time"

	"pitstop/config"
	"pitstop/internal/apperrors"
	"pitstop/internal/database"
	"pitstop/internal/events"
	"pitstop/internal/logger"
	. "pitstop/internal/models"
	"pitstop/internal/repositories"

	"github.com/google/uuid"
)

const (
	// RecentFeedLimit caps the cached per-user feed.
	RecentFeedLimit = 20

	FEED_CACHE_PREFIX = "notification_feed"
	FEED_CACHE_EXPIRY = 24 * time.Hour
)

// NotificationInput describes a single-recipient notification.
type NotificationInput struct {
	OrgID       uuid.UUID
	UserID      uuid.UUID
	ActorID     *uuid.UUID
	Title       string
	Message     string
	Type        NotificationType
	ReferenceID *uuid.UUID
	Urgent      bool
}

// NotificationFeed is the paginated view returned to clients.
type NotificationFeed struct {
	Notifications []*Notification `json:"notifications"`
	UnreadCount   int64           `json:"unreadCount"`
}

type NotificationControllerInterface interface {
	// SendSystemNotification persists a single notification and fans it out.
	// Automated alert types are deduplicated by (ReferenceID, Type); a nil
	// result with nil error means the alert already existed and was skipped.
	SendSystemNotification(ctx context.Context, input NotificationInput) (*Notification, error)

	// NotifyMultiple inserts one notification per recipient as a single
	// batch. An empty recipient list is a no-op.
	NotifyMultiple(ctx context.Context, input NotificationInput, userIDs []uuid.UUID) ([]*Notification, error)

	RefreshNotifications(ctx context.Context, userID uuid.UUID, limit int) (*NotificationFeed, error)
	MarkNotificationRead(ctx context.Context, userID, notificationID uuid.UUID) error
	MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID) error

	// Start subscribes the feed-cache maintainer to the notification channel.
	Start() error
}

// eventBus is the slice of the event bus this controller needs; satisfied
// by *events.EventBus.
type eventBus interface {
	PublishNotificationCreated(notification *Notification) error
	Subscribe(channel events.Channel, handler events.EventHandler) error
}

type NotificationController struct {
	notificationRepo repositories.NotificationRepository
	db               database.DB
	eventBus         eventBus
	config           config.Config
}

func New(
	repos repositories.Repository,
	db database.DB,
	eventBus eventBus,
	config config.Config,
) NotificationControllerInterface {
	return &NotificationController{
		notificationRepo: repos.Notification,
		db:               db,
		eventBus:         eventBus,
		config:           config,
	}
}

// ShouldApplyRealtime implements the self-suppression rule: a user is never
// notified in realtime of an event they caused themselves.
func ShouldApplyRealtime(notification *Notification, viewerID uuid.UUID) bool {
	if notification == nil || notification.UserID != viewerID {
		return false
	}
	if notification.ActorID != nil && *notification.ActorID == viewerID {
		return false
	}
	return true
}

func (c *NotificationController) SendSystemNotification(
	ctx context.Context,
	input NotificationInput,
) (*Notification, error) {
	log := logger.NewWithContext(ctx, "notificationController").Function("SendSystemNotification")

	if err := validateInput(input, log); err != nil {
		return nil, err
	}

	duplicate, err := c.alreadySent(ctx, input, log)
	if err != nil {
		return nil, err
	}
	if duplicate {
		return nil, nil
	}

	notification := buildNotification(input)
	if err := c.notificationRepo.Create(ctx, c.db.SQL, notification); err != nil {
		return nil, log.ErrorWithType(apperrors.ErrCreation, "failed to persist notification", "error", err)
	}

	if err := c.eventBus.PublishNotificationCreated(notification); err != nil {
		// Fan-out is best-effort; the row is already durable and will appear
		// on the next refresh.
		log.Warn("failed to publish notification event", "notificationID", notification.ID, "error", err)
	}

	return notification, nil
}

func (c *NotificationController) NotifyMultiple(
	ctx context.Context,
	input NotificationInput,
	userIDs []uuid.UUID,
) ([]*Notification, error) {
	log := logger.NewWithContext(ctx, "notificationController").Function("NotifyMultiple")

	if len(userIDs) == 0 {
		return nil, nil
	}

	if err := validateBroadcastInput(input, log); err != nil {
		return nil, err
	}

	duplicate, err := c.alreadySent(ctx, input, log)
	if err != nil {
		return nil, err
	}
	if duplicate {
		return nil, nil
	}

	notifications := make([]*Notification, 0, len(userIDs))
	for _, userID := range userIDs {
		perUser := input
		perUser.UserID = userID
		notifications = append(notifications, buildNotification(perUser))
	}

	if err := c.notificationRepo.CreateBatch(ctx, c.db.SQL, notifications); err != nil {
		return nil, log.ErrorWithType(apperrors.ErrCreation, "failed to persist notification batch", "error", err)
	}

	for _, notification := range notifications {
		if err := c.eventBus.PublishNotificationCreated(notification); err != nil {
			log.Warn("failed to publish notification event", "notificationID", notification.ID, "error", err)
		}
	}

	return notifications, nil
}

// alreadySent applies the automated alert dedup policy: at most one alert
// per (reference, type) within the type's window. Alerts keyed once-ever
// use the zero window; the daily digest's window restarts at midnight.
func (c *NotificationController) alreadySent(
	ctx context.Context,
	input NotificationInput,
	log logger.Logger,
) (bool, error) {
	if !input.Type.IsAutomatedAlert() || input.ReferenceID == nil {
		return false, nil
	}

	exists, err := c.notificationRepo.ExistsByReferenceAndType(
		ctx,
		c.db.SQL,
		*input.ReferenceID,
		input.Type,
		input.Type.DedupSince(time.Now()),
	)
	if err != nil {
		return false, log.ErrorWithType(apperrors.ErrCreation, "dedup check failed", "error", err)
	}
	if exists {
		log.Info(
			"duplicate automated alert skipped",
			"referenceID", input.ReferenceID,
			"type", input.Type,
		)
	}

	return exists, nil
}

func (c *NotificationController) RefreshNotifications(
	ctx context.Context,
	userID uuid.UUID,
	limit int,
) (*NotificationFeed, error) {
	log := logger.NewWithContext(ctx, "notificationController").Function("RefreshNotifications")

	if limit <= 0 || limit > RecentFeedLimit {
		limit = RecentFeedLimit
	}

	var cached NotificationFeed
	found, err := database.NewCacheBuilder(c.db.Cache.User, userID).
		WithContext(ctx).
		WithHash(FEED_CACHE_PREFIX).
		Get(&cached)
	if err != nil {
		log.Warn("failed to read notification feed cache", "userID", userID, "error", err)
	}

	if found && len(cached.Notifications) >= limit {
		cached.Notifications = cached.Notifications[:limit]
		return &cached, nil
	}

	notifications, err := c.notificationRepo.ListByUser(ctx, c.db.SQL, userID, limit)
	if err != nil {
		return nil, log.ErrorWithType(apperrors.ErrUpdate, "failed to list notifications", "error", err)
	}

	unread, err := c.notificationRepo.CountUnread(ctx, c.db.SQL, userID)
	if err != nil {
		return nil, log.ErrorWithType(apperrors.ErrUpdate, "failed to count unread notifications", "error", err)
	}

	feed := &NotificationFeed{Notifications: notifications, UnreadCount: unread}
	c.cacheFeed(ctx, userID, feed, log)

	return feed, nil
}

func (c *NotificationController) MarkNotificationRead(
	ctx context.Context,
	userID, notificationID uuid.UUID,
) error {
	log := logger.NewWithContext(ctx, "notificationController").Function("MarkNotificationRead")

	if err := c.notificationRepo.MarkRead(ctx, c.db.SQL, notificationID); err != nil {
		return log.ErrorWithType(apperrors.ErrUpdate, "failed to mark notification read", "error", err)
	}

	c.invalidateFeed(ctx, userID, log)

	return nil
}

func (c *NotificationController) MarkAllNotificationsRead(
	ctx context.Context,
	userID uuid.UUID,
) error {
	log := logger.NewWithContext(ctx, "notificationController").Function("MarkAllNotificationsRead")

	if err := c.notificationRepo.MarkAllRead(ctx, c.db.SQL, userID); err != nil {
		return log.ErrorWithType(apperrors.ErrUpdate, "failed to mark all notifications read", "error", err)
	}

	c.invalidateFeed(ctx, userID, log)

	return nil
}

func (c *NotificationController) Start() error {
	return c.eventBus.Subscribe(events.NOTIFICATION_CHANNEL, c.handleNotificationCreated)
}

// handleNotificationCreated keeps the recipient's cached feed current as
// insert events arrive, applying the self-suppression rule.
func (c *NotificationController) handleNotificationCreated(event events.Event) error {
	log := logger.New("notificationController").Function("handleNotificationCreated")

	notification := event.Notification
	if notification == nil {
		return nil
	}

	if !ShouldApplyRealtime(notification, notification.UserID) {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var feed NotificationFeed
	found, err := database.NewCacheBuilder(c.db.Cache.User, notification.UserID).
		WithContext(ctx).
		WithHash(FEED_CACHE_PREFIX).
		Get(&feed)
	if err != nil {
		log.Warn("failed to read feed cache", "userID", notification.UserID, "error", err)
		return nil
	}

	if !found {
		// Nothing cached yet; the next refresh builds the feed from the store.
		return nil
	}

	feed.Notifications = append([]*Notification{notification}, feed.Notifications...)
	if len(feed.Notifications) > RecentFeedLimit {
		feed.Notifications = feed.Notifications[:RecentFeedLimit]
	}
	feed.UnreadCount++

	c.cacheFeed(ctx, notification.UserID, &feed, log)

	return nil
}

func (c *NotificationController) cacheFeed(
	ctx context.Context,
	userID uuid.UUID,
	feed *NotificationFeed,
	log logger.Logger,
) {
	if err := database.NewCacheBuilder(c.db.Cache.User, userID).
		WithContext(ctx).
		WithHash(FEED_CACHE_PREFIX).
		WithStruct(feed).
		WithTTL(FEED_CACHE_EXPIRY).
		Set(); err != nil {
		log.Warn("failed to cache notification feed", "userID", userID, "error", err)
	}
}

func (c *NotificationController) invalidateFeed(
	ctx context.Context,
	userID uuid.UUID,
	log logger.Logger,
) {
	if err := database.NewCacheBuilder(c.db.Cache.User, userID).
		WithContext(ctx).
		WithHash(FEED_CACHE_PREFIX).
		Delete(); err != nil {
		log.Warn("failed to invalidate notification feed cache", "userID", userID, "error", err)
	}
}

func buildNotification(input NotificationInput) *Notification {
	return &Notification{
		OrgID:       input.OrgID,
		UserID:      input.UserID,
		ActorID:     input.ActorID,
		Title:       input.Title,
		Message:     input.Message,
		Type:        input.Type,
		ReferenceID: input.ReferenceID,
		Urgent:      input.Urgent,
	}
}

func validateInput(input NotificationInput, log logger.Logger) error {
	if input.UserID == uuid.Nil {
		return log.ErrorWithType(apperrors.ErrValidation, "recipient is required")
	}
	return validateBroadcastInput(input, log)
}

func validateBroadcastInput(input NotificationInput, log logger.Logger) error {
	if input.OrgID == uuid.Nil {
		return log.ErrorWithType(apperrors.ErrValidation, "organization is required")
	}
	if input.Title == "" {
		return log.ErrorWithType(apperrors.ErrValidation, "title is required")
	}
	if input.Type == "" {
		return log.ErrorWithType(apperrors.ErrValidation, "notification type is required")
	}
	return nil
}
