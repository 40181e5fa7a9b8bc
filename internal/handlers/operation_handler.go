package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"infra-registry/internal/middleware"
	"infra-registry/internal/models"
)

type OperationAPI interface {
	List(ctx context.Context, kind models.Kind, deviceID uuid.UUID) ([]models.DeviceOperation, error)
	Create(ctx context.Context, user *models.User, kind models.Kind, deviceID uuid.UUID, op *models.DeviceOperation) error
	Update(ctx context.Context, user *models.User, kind models.Kind, deviceID, id uuid.UUID, op *models.DeviceOperation) error
}

// OperationHandler serves the maintenance log of one real device kind.
type OperationHandler struct {
	base
	Kind    models.Kind
	Service OperationAPI
}

func NewOperationHandler(kind models.Kind, service OperationAPI, log *zap.Logger) *OperationHandler {
	return &OperationHandler{base: base{log: log}, Kind: kind, Service: service}
}

func (h *OperationHandler) Register(r fiber.Router) {
	r.Get("/:id/operations", h.List)
	r.Post("/:id/operations", h.Create)
	r.Put("/:id/operations/:op_id", h.Update)
}

func (h *OperationHandler) List(c *fiber.Ctx) error {
	deviceID, err := h.parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	ops, err := h.Service.List(c.UserContext(), h.Kind, deviceID)
	if err != nil {
		return h.fail(c, err)
	}
	out := make([]interface{}, len(ops))
	for i := range ops {
		out[i] = ops[i]
	}
	return h.respondList(c, out, int64(len(out)), 0, 0)
}

// Create handles POST /api/v1/{entity}/{id}/operations
// @Summary Log a maintenance operation
// @Tags operations
// @Accept json
// @Produce json
// @Param entity path string true "Real device kind"
// @Param id path string true "Device ID"
// @Param operation body models.DeviceOperation true "Operation"
// @Success 201 {object} models.DeviceOperation
// @Router /{entity}/{id}/operations [post]
func (h *OperationHandler) Create(c *fiber.Ctx) error {
	deviceID, err := h.parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	var op models.DeviceOperation
	if err := decode(c, &op); err != nil {
		return h.fail(c, err)
	}
	if err := h.Service.Create(c.UserContext(), middleware.CurrentUser(c), h.Kind, deviceID, &op); err != nil {
		return h.fail(c, err)
	}
	return h.respond(c, fiber.StatusCreated, &op)
}

// Update corrects a logged operation. Superusers only.
func (h *OperationHandler) Update(c *fiber.Ctx) error {
	deviceID, err := h.parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	opID, err := h.parseID(c, "op_id")
	if err != nil {
		return h.fail(c, err)
	}
	var op models.DeviceOperation
	if err := decode(c, &op); err != nil {
		return h.fail(c, err)
	}
	if err := h.Service.Update(c.UserContext(), middleware.CurrentUser(c), h.Kind, deviceID, opID, &op); err != nil {
		return h.fail(c, err)
	}
	return h.respond(c, fiber.StatusOK, &op)
}
