package handlers

import (
	"context"
	"io"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"infra-registry/internal/apperrors"
	"infra-registry/internal/middleware"
	"infra-registry/internal/models"
)

// CatalogAPI is a lookup-table service: owners, responsible entities,
// mount types and operation types.
type CatalogAPI[M any] interface {
	List(ctx context.Context) ([]M, error)
	Get(ctx context.Context, id uuid.UUID) (*M, error)
	Create(ctx context.Context, user *models.User, m *M) error
	Update(ctx context.Context, user *models.User, id uuid.UUID, m *M) error
	Delete(ctx context.Context, user *models.User, id uuid.UUID) error
}

type CatalogHandler[M any] struct {
	base
	Service CatalogAPI[M]
}

func NewCatalogHandler[M any](service CatalogAPI[M], log *zap.Logger) *CatalogHandler[M] {
	return &CatalogHandler[M]{base: base{log: log}, Service: service}
}

func (h *CatalogHandler[M]) Register(r fiber.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/:id", h.Get)
	r.Put("/:id", h.Update)
	r.Delete("/:id", h.Delete)
}

func (h *CatalogHandler[M]) List(c *fiber.Ctx) error {
	items, err := h.Service.List(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	out := make([]interface{}, len(items))
	for i := range items {
		out[i] = items[i]
	}
	return h.respondList(c, out, int64(len(out)), 0, 0)
}

func (h *CatalogHandler[M]) Get(c *fiber.Ctx) error {
	id, err := h.parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	m, err := h.Service.Get(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return h.respond(c, fiber.StatusOK, m)
}

func (h *CatalogHandler[M]) Create(c *fiber.Ctx) error {
	m := new(M)
	if err := decode(c, m); err != nil {
		return h.fail(c, err)
	}
	if err := h.Service.Create(c.UserContext(), middleware.CurrentUser(c), m); err != nil {
		return h.fail(c, err)
	}
	return h.respond(c, fiber.StatusCreated, m)
}

func (h *CatalogHandler[M]) Update(c *fiber.Ctx) error {
	id, err := h.parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	m := new(M)
	if err := decode(c, m); err != nil {
		return h.fail(c, err)
	}
	// The path id wins over any id in the body.
	if err := merge(m, []byte(`{"id":"`+id.String()+`"}`), m); err != nil {
		return h.fail(c, err)
	}
	if err := h.Service.Update(c.UserContext(), middleware.CurrentUser(c), id, m); err != nil {
		return h.fail(c, err)
	}
	return h.respond(c, fiber.StatusOK, m)
}

func (h *CatalogHandler[M]) Delete(c *fiber.Ctx) error {
	id, err := h.parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.Service.Delete(c.UserContext(), middleware.CurrentUser(c), id); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type DeviceTypeAPI interface {
	Get(ctx context.Context, id uuid.UUID) (*models.DeviceType, error)
	List(ctx context.Context, targetModel string) ([]models.DeviceType, error)
	Create(ctx context.Context, user *models.User, dt *models.DeviceType) error
	Update(ctx context.Context, user *models.User, dt *models.DeviceType) error
	Delete(ctx context.Context, user *models.User, id uuid.UUID) error
}

// DeviceTypeHandler serves /api/v1/device-types.
type DeviceTypeHandler struct {
	base
	Service DeviceTypeAPI
}

func NewDeviceTypeHandler(service DeviceTypeAPI, log *zap.Logger) *DeviceTypeHandler {
	return &DeviceTypeHandler{base: base{log: log}, Service: service}
}

func (h *DeviceTypeHandler) Register(r fiber.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/:id", h.Get)
	r.Put("/:id", h.Update)
	r.Delete("/:id", h.Delete)
}

// List handles GET /api/v1/device-types
// @Summary List device types
// @Tags device-types
// @Produce json
// @Param target_model query string false "Only types usable by this device family"
// @Success 200 {object} Page
// @Router /device-types [get]
func (h *DeviceTypeHandler) List(c *fiber.Ctx) error {
	types, err := h.Service.List(c.UserContext(), c.Query("target_model"))
	if err != nil {
		return h.fail(c, err)
	}
	out := make([]interface{}, len(types))
	for i := range types {
		out[i] = types[i]
	}
	return h.respondList(c, out, int64(len(out)), 0, 0)
}

func (h *DeviceTypeHandler) Get(c *fiber.Ctx) error {
	id, err := h.parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	dt, err := h.Service.Get(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return h.respond(c, fiber.StatusOK, dt)
}

// Create handles POST /api/v1/device-types
// @Summary Create a device type
// @Description The content schema, when given, must be a valid JSON Schema object.
// @Tags device-types
// @Accept json
// @Produce json
// @Param device_type body models.DeviceType true "Device type"
// @Success 201 {object} models.DeviceType
// @Failure 400 {object} map[string]interface{} "Validation failed"
// @Router /device-types [post]
func (h *DeviceTypeHandler) Create(c *fiber.Ctx) error {
	var dt models.DeviceType
	if err := decode(c, &dt); err != nil {
		return h.fail(c, err)
	}
	dt.ID = uuid.Nil
	if err := h.Service.Create(c.UserContext(), middleware.CurrentUser(c), &dt); err != nil {
		return h.fail(c, err)
	}
	return h.respond(c, fiber.StatusCreated, &dt)
}

func (h *DeviceTypeHandler) Update(c *fiber.Ctx) error {
	id, err := h.parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	var dt models.DeviceType
	if err := decode(c, &dt); err != nil {
		return h.fail(c, err)
	}
	dt.ID = id
	if err := h.Service.Update(c.UserContext(), middleware.CurrentUser(c), &dt); err != nil {
		return h.fail(c, err)
	}
	return h.respond(c, fiber.StatusOK, &dt)
}

func (h *DeviceTypeHandler) Delete(c *fiber.Ctx) error {
	id, err := h.parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.Service.Delete(c.UserContext(), middleware.CurrentUser(c), id); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type IconAPI interface {
	List(ctx context.Context) ([]models.DeviceTypeIcon, error)
	Get(ctx context.Context, id uuid.UUID) (*models.DeviceTypeIcon, error)
	Save(ctx context.Context, user *models.User, filename string, svg io.Reader) (*models.DeviceTypeIcon, error)
	Delete(ctx context.Context, user *models.User, id uuid.UUID) error
}

// IconHandler serves /api/v1/device-type-icons. Uploads are SVG files; the
// PNG renditions are produced by the icon service.
type IconHandler struct {
	base
	Service IconAPI
}

func NewIconHandler(service IconAPI, log *zap.Logger) *IconHandler {
	return &IconHandler{base: base{log: log}, Service: service}
}

func (h *IconHandler) Register(r fiber.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Upload)
	r.Get("/:id", h.Get)
	r.Delete("/:id", h.Delete)
}

func (h *IconHandler) List(c *fiber.Ctx) error {
	icons, err := h.Service.List(c.UserContext())
	if err != nil {
		return h.fail(c, err)
	}
	out := make([]interface{}, len(icons))
	for i := range icons {
		out[i] = icons[i]
	}
	return h.respondList(c, out, int64(len(out)), 0, 0)
}

func (h *IconHandler) Get(c *fiber.Ctx) error {
	id, err := h.parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	icon, err := h.Service.Get(c.UserContext(), id)
	if err != nil {
		return h.fail(c, err)
	}
	return h.respond(c, fiber.StatusOK, icon)
}

// Upload handles POST /api/v1/device-type-icons
// @Summary Upload a device type icon
// @Tags device-type-icons
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "SVG icon"
// @Success 201 {object} models.DeviceTypeIcon
// @Failure 400 {object} map[string]interface{} "Bad request"
// @Router /device-type-icons [post]
func (h *IconHandler) Upload(c *fiber.Ctx) error {
	if middleware.CurrentUser(c) == nil {
		return h.fail(c, apperrors.Unauthorized())
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return h.fail(c, apperrors.FieldError("file", "failed to read file: "+err.Error()))
	}
	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".svg") {
		return h.fail(c, apperrors.FieldError("file", "only .svg files are supported"))
	}
	f, err := fileHeader.Open()
	if err != nil {
		return h.fail(c, err)
	}
	defer f.Close()

	icon, err := h.Service.Save(c.UserContext(), middleware.CurrentUser(c), filepath.Base(fileHeader.Filename), f)
	if err != nil {
		return h.fail(c, err)
	}
	h.log.Info("icon uploaded", zap.String("file", icon.File), zap.Int64("bytes", fileHeader.Size))
	return h.respond(c, fiber.StatusCreated, icon)
}

func (h *IconHandler) Delete(c *fiber.Ctx) error {
	id, err := h.parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.Service.Delete(c.UserContext(), middleware.CurrentUser(c), id); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
