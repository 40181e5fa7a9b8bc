package handlers

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"infra-registry/internal/apperrors"
	"infra-registry/internal/importexport"
	"infra-registry/internal/middleware"
	"infra-registry/internal/models"
	"infra-registry/internal/repository"
)

type ExportAPI interface {
	Export(ctx context.Context, k models.Kind, f repository.DeviceFilter) (*importexport.Dataset, error)
	PlanRealTemplate(ctx context.Context, planKind models.Kind, f repository.DeviceFilter) (*importexport.Dataset, error)
}

type ImportAPI interface {
	Import(ctx context.Context, k models.Kind, ds *importexport.Dataset, user *models.User, dryRun bool) (*importexport.Result, error)
}

// TransferHandler serves CSV/XLSX export and import of device tables.
type TransferHandler struct {
	base
	Exporter ExportAPI
	Importer ImportAPI
}

func NewTransferHandler(exporter ExportAPI, importer ImportAPI, log *zap.Logger) *TransferHandler {
	return &TransferHandler{base: base{log: log}, Exporter: exporter, Importer: importer}
}

func (h *TransferHandler) Register(api fiber.Router) {
	api.Get("/export/:entity", h.Export)
	api.Get("/export/:entity/real-template", h.RealTemplate)
	api.Post("/import/:entity", h.Import)
}

func (h *TransferHandler) kind(c *fiber.Ctx) (models.Kind, error) {
	k, ok := models.ParseKind(c.Params("entity"))
	if !ok {
		return models.Kind{}, apperrors.NotFound(c.Params("entity"))
	}
	return k, nil
}

func (h *TransferHandler) exportFilter(c *fiber.Ctx) (repository.DeviceFilter, error) {
	var f repository.DeviceFilter
	var err error
	f.PlanID, err = uuidQuery(c, "plan")
	return f, err
}

// Export handles GET /api/v1/export/{entity}
// @Summary Export a device table
// @Tags import-export
// @Produce text/csv
// @Param entity path string true "Device kind"
// @Param format query string false "csv (default) or xlsx"
// @Param plan query string false "Only devices of this plan"
// @Success 200 {file} file
// @Router /export/{entity} [get]
func (h *TransferHandler) Export(c *fiber.Ctx) error {
	k, err := h.kind(c)
	if err != nil {
		return h.fail(c, err)
	}
	f, err := h.exportFilter(c)
	if err != nil {
		return h.fail(c, err)
	}
	ds, err := h.Exporter.Export(c.UserContext(), k, f)
	if err != nil {
		return h.fail(c, err)
	}
	return h.send(c, ds, k.String())
}

// RealTemplate handles GET /api/v1/export/{entity}/real-template: the
// planned devices of entity laid out as an import file for the real kind.
func (h *TransferHandler) RealTemplate(c *fiber.Ctx) error {
	k, err := h.kind(c)
	if err != nil {
		return h.fail(c, err)
	}
	if !k.IsPlan() {
		return h.fail(c, apperrors.FieldError("entity", "must be a plan device kind"))
	}
	f, err := h.exportFilter(c)
	if err != nil {
		return h.fail(c, err)
	}
	ds, err := h.Exporter.PlanRealTemplate(c.UserContext(), k, f)
	if err != nil {
		return h.fail(c, err)
	}
	return h.send(c, ds, k.Counterpart().String()+"_template")
}

func (h *TransferHandler) send(c *fiber.Ctx, ds *importexport.Dataset, name string) error {
	format, err := importexport.ParseFormat(c.Query("format"))
	if err != nil {
		return h.fail(c, apperrors.FieldError("format", err.Error()))
	}
	var buf bytes.Buffer
	if err := ds.Write(format, &buf); err != nil {
		return h.fail(c, err)
	}
	filename := fmt.Sprintf("%s-%s.%s", name, time.Now().Format("20060102"), format)
	c.Set(fiber.HeaderContentType, format.ContentType())
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", filename))
	h.log.Info("dataset exported", zap.String("name", name), zap.Int("rows", len(ds.Rows)), zap.String("format", string(format)))
	return c.Send(buf.Bytes())
}

// Import handles POST /api/v1/import/{entity}
// @Summary Import a device table
// @Description Rows are applied one by one; rejected rows are reported and the rest are kept. With dry_run nothing is committed.
// @Tags import-export
// @Accept multipart/form-data
// @Produce json
// @Param entity path string true "Device kind"
// @Param file formData file true "CSV or XLSX file"
// @Param format query string false "csv or xlsx; defaults to the file extension"
// @Param dry_run query bool false "Validate without committing"
// @Success 200 {object} importexport.Result
// @Failure 400 {object} map[string]interface{} "Unreadable file"
// @Router /import/{entity} [post]
func (h *TransferHandler) Import(c *fiber.Ctx) error {
	k, err := h.kind(c)
	if err != nil {
		return h.fail(c, err)
	}
	dryRun, err := boolQuery(c, "dry_run")
	if err != nil {
		return h.fail(c, err)
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return h.fail(c, apperrors.FieldError("file", "failed to read file: "+err.Error()))
	}
	raw := c.Query("format")
	if raw == "" {
		raw = strings.TrimPrefix(strings.ToLower(filepath.Ext(fh.Filename)), ".")
	}
	format, err := importexport.ParseFormat(raw)
	if err != nil {
		return h.fail(c, apperrors.FieldError("format", err.Error()))
	}
	f, err := fh.Open()
	if err != nil {
		return h.fail(c, err)
	}
	defer f.Close()
	ds, err := importexport.Read(format, f)
	if err != nil {
		return h.fail(c, apperrors.FieldError("file", err.Error()))
	}

	res, err := h.Importer.Import(c.UserContext(), k, ds, middleware.CurrentUser(c), dryRun != nil && *dryRun)
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(res)
}
