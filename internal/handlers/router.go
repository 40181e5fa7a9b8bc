package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"infra-registry/internal/metrics"
	"infra-registry/internal/middleware"
	"infra-registry/internal/models"
)

// Deps are the services behind the HTTP surface. Nil optional services
// leave their routes unmounted.
type Deps struct {
	Devices    func(k models.Kind) DeviceAPI
	Plans      PlanAPI
	DeviceType DeviceTypeAPI
	Owners     CatalogAPI[models.Owner]
	Entities   CatalogAPI[models.ResponsibleEntity]
	MountTypes CatalogAPI[models.MountType]
	OpTypes    CatalogAPI[models.OperationType]
	Icons      IconAPI
	Files      FileAPI
	Operations OperationAPI
	Exporter   ExportAPI
	Importer   ImportAPI
	Features   FeatureSource

	Tokens      *middleware.TokenManager
	Users       middleware.UserLoader
	Metrics     *metrics.Metrics
	WFSMaxCount int
}

// Register mounts every route of the registry on app.
func Register(app *fiber.App, deps Deps, log *zap.Logger) {
	app.Use(middleware.Metrics(deps.Metrics))
	app.Use(middleware.Authenticate(deps.Tokens, deps.Users, log))
	app.Use(middleware.RequireUserForWrites(log))

	api := app.Group("/api/v1")
	api.Get("/health", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	for _, k := range models.AllKinds() {
		r := api.Group("/" + k.Slug() + "s")
		NewDeviceHandler(deps.Devices(k), log).Register(r)
		if deps.Files != nil {
			NewFileHandler(k, deps.Files, log).Register(r)
		}
		if deps.Operations != nil && !k.IsPlan() {
			NewOperationHandler(k, deps.Operations, log).Register(r)
		}
	}

	NewPlanHandler(deps.Plans, log).Register(api.Group("/plans"))
	NewDeviceTypeHandler(deps.DeviceType, log).Register(api.Group("/device-types"))
	NewCatalogHandler(deps.Owners, log).Register(api.Group("/owners"))
	NewCatalogHandler(deps.Entities, log).Register(api.Group("/responsible-entities"))
	NewCatalogHandler(deps.MountTypes, log).Register(api.Group("/mount-types"))
	NewCatalogHandler(deps.OpTypes, log).Register(api.Group("/operation-types"))
	if deps.Icons != nil {
		NewIconHandler(deps.Icons, log).Register(api.Group("/device-type-icons"))
	}
	if deps.Exporter != nil && deps.Importer != nil {
		NewTransferHandler(deps.Exporter, deps.Importer, log).Register(api)
	}
	if deps.Features != nil {
		app.Get("/wfs", NewWFSHandler(deps.Features, deps.WFSMaxCount, log).Handle)
	}
}
