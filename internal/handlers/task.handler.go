package handlers

import (
	"pitstop/internal/app"
	taskController "pitstop/internal/controllers/task"
	"pitstop/internal/handlers/middleware"
	"pitstop/internal/logger"
	"pitstop/internal/models"
	"pitstop/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type TaskHandler struct {
	Handler
	controller   taskController.TaskControllerInterface
	tokenService *services.TokenService
}

func NewTaskHandler(app app.App, router fiber.Router) *TaskHandler {
	log := logger.New("handlers").File("task_handler")
	return &TaskHandler{
		controller:   app.Controller.Task,
		tokenService: app.Services.Token,
		Handler: Handler{
			log:        log,
			router:     router,
			middleware: app.Middleware,
		},
	}
}

func (h *TaskHandler) Register() {
	tasks := h.router.Group("/tasks", h.middleware.RequireAuth(h.tokenService))

	tasks.Get("/", h.listTasks)
	tasks.Get("/:id", h.getTask)

	staff := tasks.Group("/", h.middleware.RequireStaff())
	staff.Post("/", h.createTask)
	staff.Post("/:id/claim", h.claimTask)
	staff.Post("/:id/release", h.releaseTask)
	staff.Patch("/:id/status", h.updateStatus)

	managers := tasks.Group("/", h.middleware.RequireManager())
	managers.Post("/:id/approve", h.approveTask)
	managers.Delete("/:id", h.deleteTask)
}

func (h *TaskHandler) listTasks(c *fiber.Ctx) error {
	user := middleware.GetUser(c)

	var status *models.TaskStatus
	if s := c.Query("status"); s != "" {
		parsed := models.TaskStatus(s)
		status = &parsed
	}

	tasks, err := h.controller.ListTasks(c.UserContext(), user.OrgID, status)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{"tasks": tasks})
}

func (h *TaskHandler) getTask(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid task id"})
	}

	task, err := h.controller.GetTask(c.UserContext(), id)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{"task": task})
}

func (h *TaskHandler) createTask(c *fiber.Ctx) error {
	user := middleware.GetUser(c)

	var req taskController.CreateTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	task, err := h.controller.CreateTask(c.UserContext(), user, req)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"task": task})
}

func (h *TaskHandler) claimTask(c *fiber.Ctx) error {
	user := middleware.GetUser(c)

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid task id"})
	}

	task, err := h.controller.ClaimTask(c.UserContext(), user, id)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{"task": task})
}

func (h *TaskHandler) releaseTask(c *fiber.Ctx) error {
	user := middleware.GetUser(c)

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid task id"})
	}

	task, err := h.controller.ReleaseTask(c.UserContext(), user, id)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{"task": task})
}

func (h *TaskHandler) updateStatus(c *fiber.Ctx) error {
	user := middleware.GetUser(c)

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid task id"})
	}

	var req struct {
		Status models.TaskStatus `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	task, err := h.controller.UpdateTaskStatus(c.UserContext(), user, id, req.Status)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{"task": task})
}

func (h *TaskHandler) approveTask(c *fiber.Ctx) error {
	user := middleware.GetUser(c)

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid task id"})
	}

	var req taskController.ApproveTaskRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	task, err := h.controller.ApproveTask(c.UserContext(), user, id, req)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{"task": task})
}

func (h *TaskHandler) deleteTask(c *fiber.Ctx) error {
	user := middleware.GetUser(c)

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid task id"})
	}

	if err := h.controller.DeleteTask(c.UserContext(), user, id); err != nil {
		return errorResponse(c, err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
