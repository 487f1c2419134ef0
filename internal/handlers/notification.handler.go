package handlers

import (
	"pitstop/internal/app"
	notificationController "pitstop/internal/controllers/notification"
	"pitstop/internal/handlers/middleware"
	"pitstop/internal/logger"
	"pitstop/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type NotificationHandler struct {
	Handler
	controller   notificationController.NotificationControllerInterface
	tokenService *services.TokenService
}

func NewNotificationHandler(app app.App, router fiber.Router) *NotificationHandler {
	log := logger.New("handlers").File("notification_handler")
	return &NotificationHandler{
		controller:   app.Controller.Notification,
		tokenService: app.Services.Token,
		Handler: Handler{
			log:        log,
			router:     router,
			middleware: app.Middleware,
		},
	}
}

func (h *NotificationHandler) Register() {
	notifications := h.router.Group("/notifications", h.middleware.RequireAuth(h.tokenService))

	notifications.Get("/", h.refresh)
	notifications.Post("/:id/read", h.markRead)
	notifications.Post("/read-all", h.markAllRead)
}

func (h *NotificationHandler) refresh(c *fiber.Ctx) error {
	user := middleware.GetUser(c)

	limit := c.QueryInt("limit", notificationController.RecentFeedLimit)

	feed, err := h.controller.RefreshNotifications(c.UserContext(), user.ID, limit)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(feed)
}

func (h *NotificationHandler) markRead(c *fiber.Ctx) error {
	user := middleware.GetUser(c)

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid notification id"})
	}

	if err := h.controller.MarkNotificationRead(c.UserContext(), user.ID, id); err != nil {
		return errorResponse(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *NotificationHandler) markAllRead(c *fiber.Ctx) error {
	user := middleware.GetUser(c)

	if err := h.controller.MarkAllNotificationsRead(c.UserContext(), user.ID); err != nil {
		return errorResponse(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
