package handlers

import (
	"context"

	"pitstop/internal/app"
	appointmentController "pitstop/internal/controllers/appointment"
	"pitstop/internal/handlers/middleware"
	"pitstop/internal/logger"
	"pitstop/internal/models"
	"pitstop/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type AppointmentHandler struct {
	Handler
	controller   appointmentController.AppointmentControllerInterface
	tokenService *services.TokenService
}

func NewAppointmentHandler(app app.App, router fiber.Router) *AppointmentHandler {
	log := logger.New("handlers").File("appointment_handler")
	return &AppointmentHandler{
		controller:   app.Controller.Appointment,
		tokenService: app.Services.Token,
		Handler: Handler{
			log:        log,
			router:     router,
			middleware: app.Middleware,
		},
	}
}

func (h *AppointmentHandler) Register() {
	appointments := h.router.Group("/appointments", h.middleware.RequireAuth(h.tokenService))

	appointments.Post("/", h.createAppointment)
	appointments.Get("/mine", h.listMine)
	appointments.Get("/:id", h.getAppointment)

	managers := appointments.Group("/", h.middleware.RequireManager())
	managers.Get("/", h.listAppointments)
	managers.Post("/:id/approve", h.approveAppointment)
	managers.Post("/:id/reject", h.rejectAppointment)
	managers.Post("/:id/promote", h.promoteAppointment)

	appointments.Post("/:id/cancel", h.cancelAppointment)
}

func (h *AppointmentHandler) createAppointment(c *fiber.Ctx) error {
	user := middleware.GetUser(c)

	var req appointmentController.CreateAppointmentRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	appointment, err := h.controller.CreateAppointment(c.UserContext(), user, req)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"appointment": appointment})
}

func (h *AppointmentHandler) listMine(c *fiber.Ctx) error {
	user := middleware.GetUser(c)

	appointments, err := h.controller.ListMyAppointments(c.UserContext(), user.ID)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{"appointments": appointments})
}

func (h *AppointmentHandler) listAppointments(c *fiber.Ctx) error {
	user := middleware.GetUser(c)

	var status *models.AppointmentStatus
	if s := c.Query("status"); s != "" {
		parsed := models.AppointmentStatus(s)
		status = &parsed
	}

	appointments, err := h.controller.ListAppointments(c.UserContext(), user.OrgID, status)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{"appointments": appointments})
}

func (h *AppointmentHandler) getAppointment(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment id"})
	}

	appointment, err := h.controller.GetAppointment(c.UserContext(), id)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{"appointment": appointment})
}

func (h *AppointmentHandler) approveAppointment(c *fiber.Ctx) error {
	return h.setStatus(c, h.controller.ApproveAppointment)
}

func (h *AppointmentHandler) rejectAppointment(c *fiber.Ctx) error {
	return h.setStatus(c, h.controller.RejectAppointment)
}

func (h *AppointmentHandler) cancelAppointment(c *fiber.Ctx) error {
	return h.setStatus(c, h.controller.CancelAppointment)
}

func (h *AppointmentHandler) promoteAppointment(c *fiber.Ctx) error {
	user := middleware.GetUser(c)

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment id"})
	}

	task, err := h.controller.CreateTaskFromAppointment(c.UserContext(), user, id)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"task": task})
}

func (h *AppointmentHandler) setStatus(
	c *fiber.Ctx,
	action func(ctx context.Context, actor *models.User, id uuid.UUID) (*models.Appointment, error),
) error {
	user := middleware.GetUser(c)

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid appointment id"})
	}

	appointment, err := action(c.UserContext(), user, id)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{"appointment": appointment})
}
