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

// DeviceAPI is the device service of one kind.
type DeviceAPI interface {
	Kind() models.Kind
	New() models.Device
	Get(ctx context.Context, id uuid.UUID) (models.Device, error)
	List(ctx context.Context, f repository.DeviceFilter) ([]models.Device, int64, error)
	Create(ctx context.Context, user *models.User, d models.Device) error
	Update(ctx context.Context, user *models.User, d models.Device) error
	SoftDelete(ctx context.Context, user *models.User, id uuid.UUID) error
	Replace(ctx context.Context, user *models.User, newID, oldID uuid.UUID) error
	UnlinkReplacement(ctx context.Context, user *models.User, newID uuid.UUID) error
	History(ctx context.Context, id uuid.UUID) ([]models.AuditLog, error)
}

// DeviceHandler serves /api/v1/<kind>s for one device kind.
type DeviceHandler struct {
	base
	Service DeviceAPI
}

func NewDeviceHandler(service DeviceAPI, log *zap.Logger) *DeviceHandler {
	return &DeviceHandler{base: base{log: log.With(zap.String("kind", service.Kind().String()))}, Service: service}
}

// Register mounts the routes of the kind under r.
func (h *DeviceHandler) Register(r fiber.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/:id", h.Get)
	r.Put("/:id", h.Update)
	r.Patch("/:id", h.Patch)
	r.Delete("/:id", h.Delete)
	r.Get("/:id/history", h.History)
	if h.Service.Kind().IsPlan() {
		r.Post("/:id/replacement", h.Replace)
		r.Delete("/:id/replacement", h.Unlink)
	}
}

func (h *DeviceHandler) filter(c *fiber.Ctx) (repository.DeviceFilter, error) {
	var f repository.DeviceFilter
	var err error
	if f.Limit, f.Offset, err = pagination(c); err != nil {
		return f, err
	}
	if f.PlanID, err = uuidQuery(c, "plan"); err != nil {
		return f, err
	}
	if f.DevicePlanID, err = uuidQuery(c, "device_plan"); err != nil {
		return f, err
	}
	if f.DeviceTypeID, err = uuidQuery(c, "device_type"); err != nil {
		return f, err
	}
	if f.ResponsibleEntityID, err = uuidQuery(c, "responsible_entity"); err != nil {
		return f, err
	}
	if f.IsReplaced, err = boolQuery(c, "is_replaced"); err != nil {
		return f, err
	}
	f.DeviceTypeCode = c.Query("device_type__code")
	f.SourceName = c.Query("source_name")
	f.SourceID = c.Query("source_id")
	f.Lifecycle = c.Query("lifecycle")
	return f, nil
}

// List handles GET /api/v1/{entity}
// @Summary List devices
// @Description Paginated list of active devices of one kind. Plan kinds hide replaced devices unless is_replaced is given.
// @Tags devices
// @Produce json
// @Param entity path string true "Device kind, e.g. trafficsignplans"
// @Param limit query int false "Page size (max 1000)"
// @Param offset query int false "Page offset"
// @Param geo_format query string false "ewkt (default) or geojson"
// @Param is_replaced query bool false "Filter plan devices by replacement state"
// @Success 200 {object} Page
// @Failure 400 {object} map[string]interface{} "Invalid filter"
// @Router /{entity} [get]
func (h *DeviceHandler) List(c *fiber.Ctx) error {
	f, err := h.filter(c)
	if err != nil {
		return h.fail(c, err)
	}
	items, total, err := h.Service.List(c.UserContext(), f)
	if err != nil {
		return h.fail(c, err)
	}
	out := make([]interface{}, len(items))
	for i, d := range items {
		out[i] = d
	}
	return h.respondList(c, out, total, f.Limit, f.Offset)
}

// Get handles GET /api/v1/{entity}/{id}
// @Summary Get a device
// @Tags devices
// @Produce json
// @Param entity path string true "Device kind"
// @Param id path string true "Device ID"
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{} "Not found or deleted"
// @Router /{entity}/{id} [get]
func (h *DeviceHandler) Get(c *fiber.Ctx) error {
	id, err := h.parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	d, err := h.Service.Get(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return h.respond(c, fiber.StatusOK, d)
}

// Create handles POST /api/v1/{entity}
// @Summary Create a device
// @Tags devices
// @Accept json
// @Produce json
// @Param entity path string true "Device kind"
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{} "Validation failed"
// @Failure 401 {object} map[string]interface{} "Authentication required"
// @Failure 403 {object} map[string]interface{} "Permission denied"
// @Router /{entity} [post]
func (h *DeviceHandler) Create(c *fiber.Ctx) error {
	d := h.Service.New()
	if err := decode(c, d); err != nil {
		return h.fail(c, err)
	}
	d.Core().ID = uuid.Nil
	if err := h.Service.Create(c.UserContext(), middleware.CurrentUser(c), d); err != nil {
		return h.fail(c, err)
	}
	h.log.Info("device created", zap.String("id", d.Core().ID.String()))
	return h.respond(c, fiber.StatusCreated, d)
}

// Update handles PUT /api/v1/{entity}/{id}
// @Summary Replace a device
// @Tags devices
// @Accept json
// @Produce json
// @Param entity path string true "Device kind"
// @Param id path string true "Device ID"
// @Success 200 {object} map[string]interface{}
// @Router /{entity}/{id} [put]
func (h *DeviceHandler) Update(c *fiber.Ctx) error {
	id, err := h.parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	d := h.Service.New()
	if err := decode(c, d); err != nil {
		return h.fail(c, err)
	}
	return h.save(c, id, d)
}

// Patch handles PATCH /api/v1/{entity}/{id}; absent fields keep their
// stored values.
func (h *DeviceHandler) Patch(c *fiber.Ctx) error {
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
	d := h.Service.New()
	if err := merge(existing, c.Body(), d); err != nil {
		return h.fail(c, err)
	}
	return h.save(c, id, d)
}

func (h *DeviceHandler) save(c *fiber.Ctx, id uuid.UUID, d models.Device) error {
	d.Core().ID = id
	if err := h.Service.Update(c.UserContext(), middleware.CurrentUser(c), d); err != nil {
		return h.fail(c, err)
	}
	return h.respond(c, fiber.StatusOK, d)
}

// Delete handles DELETE /api/v1/{entity}/{id}
// @Summary Soft-delete a device
// @Description Deactivates the device and its cascading children.
// @Tags devices
// @Param entity path string true "Device kind"
// @Param id path string true "Device ID"
// @Success 204
// @Router /{entity}/{id} [delete]
func (h *DeviceHandler) Delete(c *fiber.Ctx) error {
	id, err := h.parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.Service.SoftDelete(c.UserContext(), middleware.CurrentUser(c), id); err != nil {
		return h.fail(c, err)
	}
	h.log.Info("device deleted", zap.String("id", id.String()))
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *DeviceHandler) History(c *fiber.Ctx) error {
	id, err := h.parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	if _, err := h.Service.Get(c.UserContext(), id); err != nil {
		return h.fail(c, err)
	}
	logs, err := h.Service.History(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	out := make([]interface{}, len(logs))
	for i := range logs {
		out[i] = logs[i]
	}
	return h.respondList(c, out, int64(len(out)), 0, 0)
}

type replacementRequest struct {
	Replaces *uuid.UUID `json:"replaces"`
}

// Replace handles POST /api/v1/{entity}/{id}/replacement
// @Summary Mark a planned device as replacing another
// @Tags devices
// @Accept json
// @Produce json
// @Param entity path string true "Plan device kind"
// @Param id path string true "Replacing device ID"
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{} "Invalid replacement"
// @Router /{entity}/{id}/replacement [post]
func (h *DeviceHandler) Replace(c *fiber.Ctx) error {
	id, err := h.parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	var req replacementRequest
	if err := decode(c, &req); err != nil {
		return h.fail(c, err)
	}
	if req.Replaces == nil {
		return h.fail(c, apperrors.FieldError("replaces", "this field is required"))
	}
	if err := h.Service.Replace(c.UserContext(), middleware.CurrentUser(c), id, *req.Replaces); err != nil {
		return h.fail(c, err)
	}
	return h.Get(c)
}

// Unlink handles DELETE /api/v1/{entity}/{id}/replacement
func (h *DeviceHandler) Unlink(c *fiber.Ctx) error {
	id, err := h.parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.Service.UnlinkReplacement(c.UserContext(), middleware.CurrentUser(c), id); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
