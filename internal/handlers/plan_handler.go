package handlers

import (
	"context"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"infra-registry/internal/apperrors"
	"infra-registry/internal/middleware"
	"infra-registry/internal/models"
	"infra-registry/internal/repository"
)

type PlanAPI interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	List(ctx context.Context, f repository.PlanFilter) ([]models.Plan, int64, error)
	Create(ctx context.Context, user *models.User, plan *models.Plan) error
	Update(ctx context.Context, user *models.User, plan *models.Plan) error
	SoftDelete(ctx context.Context, user *models.User, id uuid.UUID) error
}

// PlanHandler serves /api/v1/plans.
type PlanHandler struct {
	base
	Service PlanAPI
}

func NewPlanHandler(service PlanAPI, log *zap.Logger) *PlanHandler {
	return &PlanHandler{base: base{log: log}, Service: service}
}

func (h *PlanHandler) Register(r fiber.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/:id", h.Get)
	r.Put("/:id", h.Update)
	r.Patch("/:id", h.Patch)
	r.Delete("/:id", h.Delete)
}

// List handles GET /api/v1/plans
// @Summary List plans
// @Tags plans
// @Produce json
// @Param name query string false "Name contains"
// @Param decision_id query string false "Decision id"
// @Param diary_number query string false "Diary number"
// @Param geo_format query string false "ewkt (default) or geojson"
// @Success 200 {object} Page
// @Router /plans [get]
func (h *PlanHandler) List(c *fiber.Ctx) error {
	limit, offset, err := pagination(c)
	if err != nil {
		return h.fail(c, err)
	}
	f := repository.PlanFilter{
		Name:        c.Query("name"),
		DecisionID:  c.Query("decision_id"),
		DiaryNumber: c.Query("diary_number"),
		Limit:       limit,
		Offset:      offset,
	}
	plans, total, err := h.Service.List(c.UserContext(), f)
	if err != nil {
		return h.fail(c, err)
	}
	out := make([]interface{}, len(plans))
	for i := range plans {
		out[i] = plans[i]
	}
	return h.respondList(c, out, total, limit, offset)
}

// Get handles GET /api/v1/plans/{id}
// @Summary Get a plan
// @Tags plans
// @Produce json
// @Param id path string true "Plan ID"
// @Success 200 {object} models.Plan
// @Failure 404 {object} map[string]interface{} "Plan not found"
// @Router /plans/{id} [get]
func (h *PlanHandler) Get(c *fiber.Ctx) error {
	id, err := h.parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	plan, err := h.Service.Get(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return h.respond(c, fiber.StatusOK, plan)
}

// Create handles POST /api/v1/plans
// @Summary Create a plan
// @Tags plans
// @Accept json
// @Produce json
// @Param plan body models.Plan true "Plan"
// @Success 201 {object} models.Plan
// @Failure 400 {object} map[string]interface{} "Validation failed"
// @Router /plans [post]
func (h *PlanHandler) Create(c *fiber.Ctx) error {
	var plan models.Plan
	if err := decode(c, &plan); err != nil {
		return h.fail(c, err)
	}
	plan.ID = uuid.Nil
	if err := h.Service.Create(c.UserContext(), middleware.CurrentUser(c), &plan); err != nil {
		return h.fail(c, err)
	}
	h.log.Info("plan created", zap.String("id", plan.ID.String()), zap.String("decision_id", plan.DecisionID))
	return h.respond(c, fiber.StatusCreated, &plan)
}

func (h *PlanHandler) Update(c *fiber.Ctx) error {
	id, err := h.parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	var plan models.Plan
	if err := decode(c, &plan); err != nil {
		return h.fail(c, err)
	}
	return h.save(c, id, &plan)
}

func (h *PlanHandler) Patch(c *fiber.Ctx) error {
	id, err := h.parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	if middleware.CurrentUser(c) == nil {
		return h.fail(c, apperrors.Unauthorized())
	}
	existing, err := h.Service.Get(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	var plan models.Plan
	if err := merge(existing, c.Body(), &plan); err != nil {
		return h.fail(c, err)
	}
	return h.save(c, id, &plan)
}

func (h *PlanHandler) save(c *fiber.Ctx, id uuid.UUID, plan *models.Plan) error {
	plan.ID = id
	if err := h.Service.Update(c.UserContext(), middleware.CurrentUser(c), plan); err != nil {
		return h.fail(c, err)
	}
	return h.respond(c, fiber.StatusOK, plan)
}

func (h *PlanHandler) Delete(c *fiber.Ctx) error {
	id, err := h.parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.Service.SoftDelete(c.UserContext(), middleware.CurrentUser(c), id); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
