package handlers

import (
	"pitstop/internal/app"
	proposalController "pitstop/internal/controllers/proposal"
	"pitstop/internal/handlers/middleware"
	"pitstop/internal/logger"
	"pitstop/internal/services"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ProposalHandler struct {
	Handler
	controller   proposalController.ProposalControllerInterface
	tokenService *services.TokenService
}

func NewProposalHandler(app app.App, router fiber.Router) *ProposalHandler {
	log := logger.New("handlers").File("proposal_handler")
	return &ProposalHandler{
		controller:   app.Controller.Proposal,
		tokenService: app.Services.Token,
		Handler: Handler{
			log:        log,
			router:     router,
			middleware: app.Middleware,
		},
	}
}

func (h *ProposalHandler) Register() {
	proposals := h.router.Group("/proposals", h.middleware.RequireAuth(h.tokenService))

	proposals.Post("/", h.middleware.RequireStaff(), h.createProposal)
	proposals.Post("/:id/approve", h.middleware.RequireManager(), h.approveProposal)
	proposals.Post("/:id/accept", h.customerApprove)
	proposals.Post("/:id/reject", h.rejectProposal)

	h.router.Get(
		"/tasks/:taskId/proposals",
		h.middleware.RequireAuth(h.tokenService),
		h.listByTask,
	)
}

func (h *ProposalHandler) createProposal(c *fiber.Ctx) error {
	user := middleware.GetUser(c)

	var req proposalController.CreateProposalRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	proposal, err := h.controller.CreateProposal(c.UserContext(), user, req)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"proposal": proposal})
}

func (h *ProposalHandler) approveProposal(c *fiber.Ctx) error {
	user := middleware.GetUser(c)

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid proposal id"})
	}

	var req struct {
		Price decimal.Decimal `json:"price"`
	}
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid request body"})
	}

	proposal, err := h.controller.ApproveProposal(c.UserContext(), user, id, req.Price)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{"proposal": proposal})
}

func (h *ProposalHandler) customerApprove(c *fiber.Ctx) error {
	user := middleware.GetUser(c)

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid proposal id"})
	}

	proposal, err := h.controller.CustomerApproveProposal(c.UserContext(), user, id)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{"proposal": proposal})
}

func (h *ProposalHandler) rejectProposal(c *fiber.Ctx) error {
	user := middleware.GetUser(c)

	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid proposal id"})
	}

	proposal, err := h.controller.RejectProposal(c.UserContext(), user, id)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{"proposal": proposal})
}

func (h *ProposalHandler) listByTask(c *fiber.Ctx) error {
	taskID, err := uuid.Parse(c.Params("taskId"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid task id"})
	}

	proposals, err := h.controller.ListByTask(c.UserContext(), taskID)
	if err != nil {
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{"proposals": proposals})
}
