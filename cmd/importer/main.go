// Command importer runs the batch jobs of the registry: scanner ingest,
// plan updates, plan-to-real matching and table import/export.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"infra-registry/internal/config"
	"infra-registry/internal/geometry"
	"infra-registry/internal/importexport"
	"infra-registry/internal/logger"
	"infra-registry/internal/metrics"
	"infra-registry/internal/repository"
	"infra-registry/internal/services"
	"infra-registry/internal/storage"
)

const lockTTL = 2 * time.Hour

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	if len(args) < 2 {
		usage(args)
		return 1
	}
	var cmd func(*env, []string) int
	rest := args[2:]
	switch args[1] {
	case "ingest":
		cmd = runIngest
	case "plans":
		if len(args) >= 3 {
			switch args[2] {
			case "update":
				cmd, rest = runPlanUpdate, args[3:]
			case "geometry":
				cmd, rest = runPlanGeometry, args[3:]
			}
		}
	case "match":
		cmd = runMatch
	case "enrich":
		cmd = runEnrich
	case "export":
		cmd = runExport
	case "import":
		cmd = runImport
	}
	if cmd == nil {
		usage(args)
		return 1
	}

	e, err := newEnv()
	if err != nil {
		fmt.Fprintf(os.Stderr, "setup: %v\n", err)
		return 1
	}
	defer e.close()
	return cmd(e, rest)
}

func usage(args []string) {
	name := "importer"
	if len(args) > 0 && args[0] != "" {
		name = filepath.Base(args[0])
	}
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  %s ingest (--mounts <csv> --signs <csv> [--additional <csv>] | --bundle <archive> | --feed-path <path>) [--update] [--report-dir <dir>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s plans update --file <csv|xlsx> --user <username> [--report-dir <dir>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s plans geometry --file <csv> [--dry-run] [--report-dir <dir>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s match --family <family> [--relation <column>] [--max-distance <m>] [--persist] [--out <csv>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s enrich permit-signs [--report-dir <dir>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s export --entity <kind> [--format csv|xlsx] [--plan <id>] [--real-template] [--out <file>]\n", name)
	fmt.Fprintf(os.Stderr, "  %s import --entity <kind> --file <csv|xlsx> --user <username> [--dry-run]\n", name)
}

// env holds the connections shared by every command.
type env struct {
	ctx     context.Context
	cancel  context.CancelFunc
	cfg     *config.Config
	log     *zap.Logger
	db      *gorm.DB
	store   *repository.GormStore
	users   *repository.UserRepository
	devices *services.Devices
	plans   *services.PlanService
	metrics *metrics.Metrics
	locker  storage.Locker
	redis   *storage.RedisClient
}

func newEnv() (*env, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	log, err := logger.NewLogger(cfg.LogLevel, cfg.LogFormat, "infra-registry-importer")
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	db, err := config.ConnectDatabase(cfg)
	if err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if err := repository.Migrate(db); err != nil {
		return nil, err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	e := &env{
		ctx:     ctx,
		cancel:  cancel,
		cfg:     cfg,
		log:     log,
		db:      db,
		store:   repository.NewStore(db),
		users:   repository.NewUserRepository(db),
		metrics: metrics.New(prometheus.NewRegistry()),
		locker:  storage.NoopLocker{},
	}
	checker := services.NewPermissionChecker(e.users)
	opts := services.DeviceOptions{
		BBox:        e.bbox(),
		PlanBuffer:  cfg.PlanLocationBuffer,
		MaxPageSize: cfg.APIMaxPageSize,
	}
	e.devices = services.NewDevices(e.store, checker, opts, log)
	e.plans = services.NewPlanService(e.store, checker, opts, log)

	if cfg.RedisHost != "" {
		e.redis, err = storage.NewRedisClient(cfg.RedisHost, cfg.RedisPort)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("redis: %w", err)
		}
		e.locker = e.redis
	} else {
		log.Warn("REDIS_HOST not set, running without a job lock")
	}
	return e, nil
}

func (e *env) bbox() geometry.BBox {
	return geometry.BBox{MinX: e.cfg.BBoxMinX, MinY: e.cfg.BBoxMinY, MaxX: e.cfg.BBoxMaxX, MaxY: e.cfg.BBoxMaxY}
}

func (e *env) close() {
	e.cancel()
	if e.redis != nil {
		_ = e.redis.Close()
	}
	if sqlDB, err := e.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	_ = e.log.Sync()
}

// readDataset reads a CSV or XLSX file, chosen by extension.
func readDataset(path string) (*importexport.Dataset, error) {
	format, err := importexport.ParseFormat(strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), "."))
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return importexport.Read(format, f)
}
