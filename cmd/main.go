package main

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/swagger"
	"github.com/minio/minio-go/v7"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	_ "infra-registry/docs"
	"infra-registry/internal/config"
	"infra-registry/internal/conversion"
	"infra-registry/internal/geometry"
	"infra-registry/internal/handlers"
	"infra-registry/internal/importexport"
	"infra-registry/internal/logger"
	"infra-registry/internal/metrics"
	"infra-registry/internal/middleware"
	"infra-registry/internal/models"
	"infra-registry/internal/repository"
	"infra-registry/internal/services"
	"infra-registry/internal/storage"
	"infra-registry/internal/wfs"
)

const tokenExpiry = 24 * time.Hour

// @title City Infrastructure Registry API
// @version 1.0
// @description Planned and realized traffic control devices, plans and their import/export.
// @BasePath /api/v1
func main() {
	cfg := InitConfig()
	zlog, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat, "infra-registry")
	if err != nil {
		log.Fatalf("Logger initialization failed: %v", err)
	}
	defer func() { _ = zlog.Sync() }()

	db := ConnectDatabase(cfg, zlog)
	MigrateDatabase(db, zlog)
	minioClient := InitMinIOClient(cfg, zlog)

	m := metrics.New(prometheus.DefaultRegisterer)
	objects := storage.NewMinioStore(minioClient, cfg.MinioBucket, m.AddStorageBytes)

	store := repository.NewStore(db)
	users := repository.NewUserRepository(db)
	checker := services.NewPermissionChecker(users)
	opts := services.DeviceOptions{
		BBox:        geometry.BBox{MinX: cfg.BBoxMinX, MinY: cfg.BBoxMinY, MaxX: cfg.BBoxMaxX, MaxY: cfg.BBoxMaxY},
		PlanBuffer:  cfg.PlanLocationBuffer,
		MaxPageSize: cfg.APIMaxPageSize,
	}
	devices := services.NewDevices(store, checker, opts, zlog)

	deps := handlers.Deps{
		Devices:    func(k models.Kind) handlers.DeviceAPI { return devices.For(k) },
		Plans:      services.NewPlanService(store, checker, opts, zlog),
		DeviceType: services.NewDeviceTypeService(store, checker, zlog),
		Owners: services.NewCatalogService[models.Owner](
			repository.NewCatalogRepository[models.Owner](db), checker, "owner", "name_fi", services.ValidateOwner),
		Entities: services.NewCatalogService[models.ResponsibleEntity](
			repository.NewCatalogRepository[models.ResponsibleEntity](db), checker, "responsible_entity", "name", services.ValidateResponsibleEntity),
		MountTypes: services.NewCatalogService[models.MountType](
			repository.NewCatalogRepository[models.MountType](db), checker, "mount_type", "code", services.ValidateMountType),
		OpTypes: services.NewCatalogService[models.OperationType](
			repository.NewCatalogRepository[models.OperationType](db), checker, "operation_type", "name", services.ValidateOperationType),
		Icons: services.NewIconService(repository.NewCatalogRepository[models.DeviceTypeIcon](db), objects,
			conversion.SVGToPNG, checker,
			services.IconOptions{SVGRoot: cfg.IconSVGRoot, PNGRoot: cfg.IconPNGRoot, Sizes: cfg.IconPNGSizes},
			m.IncIconFailure, zlog),
		Files:       services.NewFileService(repository.NewFileRepository(db), store.Tables(), objects, checker, zlog),
		Operations:  services.NewOperationService(repository.NewOperationRepository(db), store.Tables(), store.Lookups(), checker),
		Exporter:    importexport.NewExporter(store, zlog),
		Importer:    importexport.NewImporter(store, devices, m, zlog),
		Features:    wfs.NewService(store, wfs.ParseAxisOrder(cfg.WFSAxisOrder), zlog),
		Tokens:      middleware.NewTokenManager(cfg.JWTSecret, tokenExpiry),
		Users:       users,
		Metrics:     m,
		WFSMaxCount: cfg.APIMaxPageSize,
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(zlog),
		BodyLimit:    64 * 1024 * 1024,
	})

	// Register Prometheus metrics endpoint
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/api/v1/swagger/*", swagger.HandlerDefault)

	handlers.Register(app, deps, zlog)

	for _, r := range app.GetRoutes(true) {
		zlog.Debug("route registered", zap.String("method", r.Method), zap.String("path", r.Path))
	}

	port := cfg.AppPort
	zlog.Info("server listening", zap.String("port", port))
	if err := app.Listen(":" + port); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}

func InitConfig() *config.Config {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Config error: %v", err)
	}
	return cfg
}

func ConnectDatabase(cfg *config.Config, zlog *zap.Logger) *gorm.DB {
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		zlog.Fatal("database connection failed", zap.Error(err))
	}
	return db
}

func MigrateDatabase(db *gorm.DB, zlog *zap.Logger) {
	if err := repository.Migrate(db); err != nil {
		zlog.Fatal("database migration failed", zap.Error(err))
	}
}

func InitMinIOClient(cfg *config.Config, zlog *zap.Logger) *minio.Client {
	minioClient, err := storage.NewMinioClient(cfg, zlog)
	if err != nil {
		zlog.Fatal("MinIO client initialization failed", zap.Error(err))
	}
	return minioClient
}
