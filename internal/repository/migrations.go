package repository

import (
	"fmt"

	"gorm.io/gorm"

	"infra-registry/internal/models"
)

// Models lists every table managed by AutoMigrate.
func Models() []interface{} {
	out := []interface{}{
		&models.Owner{},
		&models.ResponsibleEntity{},
		&models.OperationalArea{},
		&models.User{},
		&models.DeviceTypeIcon{},
		&models.DeviceType{},
		&models.MountType{},
		&models.OperationType{},
		&models.Plan{},
		&models.PlanGeometryImportLog{},
		&models.DeviceFile{},
		&models.DeviceOperation{},
		&models.DeviceReplacement{},
		&models.AuditLog{},
	}
	for _, k := range models.AllKinds() {
		out = append(out, models.NewDevice(k))
	}
	return out
}

// IndexStatements returns the partial unique and spatial indexes that
// AutoMigrate cannot express. Uniqueness is scoped to active rows.
func IndexStatements() []string {
	stmts := []string{
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_plans_diary_number ON plans (diary_number) WHERE is_active AND diary_number <> ''`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_plans_source ON plans (source_name, source_id) WHERE is_active AND source_name <> '' AND source_id <> ''`,
		`CREATE INDEX IF NOT EXISTS idx_plans_location ON plans USING GIST (location)`,
		`CREATE INDEX IF NOT EXISTS idx_operational_areas_location ON operational_areas USING GIST (location)`,
	}
	for _, k := range models.AllKinds() {
		table := k.Table()
		stmts = append(stmts,
			fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS uniq_%s_source ON %s (%s) WHERE %s`,
				table, table, SourceConflictColumns, SourceConflictPredicate),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_location ON %s USING GIST (location)`, table, table),
		)
		if !k.IsPlan() {
			stmts = append(stmts, fmt.Sprintf(
				`CREATE UNIQUE INDEX IF NOT EXISTS uniq_%s_device_plan ON %s (device_plan_id) WHERE is_active AND device_plan_id IS NOT NULL`,
				table, table))
		}
	}
	return stmts
}

const (
	// SourceConflictColumns and SourceConflictPredicate identify the partial
	// unique index on source identity, also used as ON CONFLICT target.
	SourceConflictColumns   = "source_name, source_id"
	SourceConflictPredicate = "is_active AND source_name <> '' AND source_id <> ''"
)

// Migrate creates or updates the schema.
func Migrate(db *gorm.DB) error {
	if err := db.Exec("CREATE EXTENSION IF NOT EXISTS postgis").Error; err != nil {
		return fmt.Errorf("failed to enable postgis: %w", err)
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	for _, stmt := range IndexStatements() {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("failed to create index: %w", err)
		}
	}
	return nil
}
