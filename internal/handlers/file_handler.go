package handlers

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"infra-registry/internal/apperrors"
	"infra-registry/internal/middleware"
	"infra-registry/internal/models"
	"infra-registry/internal/services"
)

type FileAPI interface {
	List(ctx context.Context, user *models.User, kind models.Kind, deviceID uuid.UUID) ([]models.DeviceFile, error)
	Attach(ctx context.Context, user *models.User, kind models.Kind, deviceID uuid.UUID, uploads []services.Upload) ([]models.DeviceFile, error)
	Replace(ctx context.Context, user *models.User, kind models.Kind, deviceID, fileID uuid.UUID, u services.Upload) (*models.DeviceFile, error)
	Detach(ctx context.Context, user *models.User, kind models.Kind, deviceID, fileID uuid.UUID) error
	Open(ctx context.Context, user *models.User, kind models.Kind, deviceID, fileID uuid.UUID) (*models.DeviceFile, io.ReadCloser, error)
}

// FileHandler serves the attachments of one device kind under
// /{id}/files.
type FileHandler struct {
	base
	Kind    models.Kind
	Service FileAPI
}

func NewFileHandler(kind models.Kind, service FileAPI, log *zap.Logger) *FileHandler {
	return &FileHandler{base: base{log: log}, Kind: kind, Service: service}
}

func (h *FileHandler) Register(r fiber.Router) {
	r.Get("/:id/files", h.List)
	r.Post("/:id/files", h.Upload)
	r.Get("/:id/files/:file_id/download", h.Download)
	r.Patch("/:id/files/:file_id", h.Replace)
	r.Delete("/:id/files/:file_id", h.Delete)
}

func (h *FileHandler) ids(c *fiber.Ctx) (uuid.UUID, uuid.UUID, error) {
	deviceID, err := h.parseID(c, "id")
	if err != nil {
		return uuid.Nil, uuid.Nil, err
	}
	fileID, err := h.parseID(c, "file_id")
	return deviceID, fileID, err
}

func (h *FileHandler) List(c *fiber.Ctx) error {
	deviceID, err := h.parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	files, err := h.Service.List(c.UserContext(), middleware.CurrentUser(c), h.Kind, deviceID)
	if err != nil {
		return h.fail(c, err)
	}
	out := make([]interface{}, len(files))
	for i := range files {
		out[i] = files[i]
	}
	return h.respondList(c, out, int64(len(out)), 0, 0)
}

// Upload handles POST /api/v1/{entity}/{id}/files
// @Summary Attach files to a device
// @Description Accepts any number of parts named "file".
// @Tags files
// @Accept multipart/form-data
// @Produce json
// @Param entity path string true "Device kind"
// @Param id path string true "Device ID"
// @Param file formData file true "Files"
// @Param is_public formData bool false "Visible to anonymous readers (default true)"
// @Success 201 {object} Page
// @Failure 400 {object} map[string]interface{} "Bad request"
// @Router /{entity}/{id}/files [post]
func (h *FileHandler) Upload(c *fiber.Ctx) error {
	deviceID, err := h.parseID(c, "id")
	if err != nil {
		return h.fail(c, err)
	}
	form, err := c.MultipartForm()
	if err != nil {
		return h.fail(c, apperrors.FieldError("file", "failed to read multipart form: "+err.Error()))
	}
	isPublic, err := formBool(form, "is_public")
	if err != nil {
		return h.fail(c, err)
	}

	var uploads []services.Upload
	for _, fh := range form.File["file"] {
		f, err := fh.Open()
		if err != nil {
			return h.fail(c, err)
		}
		defer f.Close()
		uploads = append(uploads, services.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get(fiber.HeaderContentType),
			Size:        fh.Size,
			Body:        f,
			IsPublic:    isPublic,
		})
	}
	files, err := h.Service.Attach(c.UserContext(), middleware.CurrentUser(c), h.Kind, deviceID, uploads)
	if err != nil {
		return h.fail(c, err)
	}
	out := make([]interface{}, len(files))
	for i := range files {
		out[i] = files[i]
	}
	c.Status(fiber.StatusCreated)
	return h.respondList(c, out, int64(len(out)), 0, 0)
}

// Replace handles PATCH /api/v1/{entity}/{id}/files/{file_id}; the stored
// bytes are overwritten with the single uploaded file.
func (h *FileHandler) Replace(c *fiber.Ctx) error {
	deviceID, fileID, err := h.ids(c)
	if err != nil {
		return h.fail(c, err)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return h.fail(c, apperrors.FieldError("file", "failed to read file: "+err.Error()))
	}
	form, err := c.MultipartForm()
	if err != nil {
		return h.fail(c, err)
	}
	isPublic, err := formBool(form, "is_public")
	if err != nil {
		return h.fail(c, err)
	}
	f, err := fh.Open()
	if err != nil {
		return h.fail(c, err)
	}
	defer f.Close()

	file, err := h.Service.Replace(c.UserContext(), middleware.CurrentUser(c), h.Kind, deviceID, fileID, services.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Size:        fh.Size,
		Body:        f,
		IsPublic:    isPublic,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return h.respond(c, fiber.StatusOK, file)
}

func (h *FileHandler) Delete(c *fiber.Ctx) error {
	deviceID, fileID, err := h.ids(c)
	if err != nil {
		return h.fail(c, err)
	}
	if err := h.Service.Detach(c.UserContext(), middleware.CurrentUser(c), h.Kind, deviceID, fileID); err != nil {
		return h.fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// Download streams the stored bytes of an attachment.
func (h *FileHandler) Download(c *fiber.Ctx) error {
	deviceID, fileID, err := h.ids(c)
	if err != nil {
		return h.fail(c, err)
	}
	file, rc, err := h.Service.Open(c.UserContext(), middleware.CurrentUser(c), h.Kind, deviceID, fileID)
	if err != nil {
		return h.fail(c, err)
	}
	if file.ContentType != "" {
		c.Set(fiber.HeaderContentType, file.ContentType)
	} else {
		c.Set(fiber.HeaderContentType, "application/octet-stream")
	}
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", file.OriginalFilename))
	size := int(file.Size)
	if size <= 0 {
		size = -1
	}
	// fasthttp closes rc once the body has been written.
	return c.SendStream(rc, size)
}

func formBool(form *multipart.Form, name string) (*bool, error) {
	values := form.Value[name]
	if len(values) == 0 || values[0] == "" {
		return nil, nil
	}
	v, err := strconv.ParseBool(values[0])
	if err != nil {
		return nil, apperrors.FieldError(name, "must be a boolean")
	}
	return &v, nil
}
