package handlers

import (
	"pitstop/internal/app"
	pushSubscriptionController "pitstop/internal/controllers/pushSubscription"
	"pitstop/internal/handlers/middleware"
	"pitstop/internal/logger"
	"pitstop/internal/services"

	"github.com/gofiber/fiber/v2"
)

type PushSubscriptionHandler struct {
	Handler
	controller   pushSubscriptionController.PushSubscriptionControllerInterface
	tokenService *services.TokenService
}

func NewPushSubscriptionHandler(app app.App, router fiber.Router) *PushSubscriptionHandler {
	log := logger.New("handlers").File("push_subscription_handler")
	return &PushSubscriptionHandler{
		controller:   app.Controller.PushSubscription,
		tokenService: app.Services.Token,
		Handler: Handler{
			log:        log,
			router:     router,
			middleware: app.Middleware,
		},
	}
}

func (h *PushSubscriptionHandler) Register() {
	subscriptions := h.router.Group("/push-subscriptions", h.middleware.RequireAuth(h.tokenService))

	subscriptions.Post("/", h.register)
	subscriptions.Delete("/", h.unregister)
}

func (h *PushSubscriptionHandler) register(c *fiber.Ctx) error {
	user := middleware.GetUser(c)

	var req pushSubscriptionController.RegisterSubscriptionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	subscription, err := h.controller.Register(c.UserContext(), user.ID, req)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"subscription": subscription})
}

func (h *PushSubscriptionHandler) unregister(c *fiber.Ctx) error {
	user := middleware.GetUser(c)

	var req struct {
		Endpoint string `json:"endpoint"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	if err := h.controller.Unregister(c.UserContext(), user.ID, req.Endpoint); err != nil {
		return errorResponse(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
