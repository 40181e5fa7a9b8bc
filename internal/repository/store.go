package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"infra-registry/internal/geometry"
	"infra-registry/internal/models"
)

// DeviceStore is the kind-independent view of one device table.
type DeviceStore interface {
	Kind() models.Kind
	Get(ctx context.Context, id uuid.UUID) (models.Device, error)
	List(ctx context.Context, f DeviceFilter) ([]models.Device, int64, error)
	Create(ctx context.Context, d models.Device) error
	Save(ctx context.Context, d models.Device) error
	SoftDelete(ctx context.Context, id uuid.UUID, by *uuid.UUID, at time.Time) (bool, error)
	CreateIgnoringSource(ctx context.Context, items []models.Device) (int64, error)
	FindBySource(ctx context.Context, sourceName string, sourceIDs []string) ([]models.Device, error)
	UpdateColumns(ctx context.Context, id uuid.UUID, columns map[string]interface{}) error
}

// TableStore is implemented by *DeviceTables.
type TableStore interface {
	ActiveExists(ctx context.Context, k models.Kind, id uuid.UUID) (bool, error)
	SourceTaken(ctx context.Context, k models.Kind, name, sourceID string, exclude uuid.UUID) (bool, error)
	SoftDeleteChildren(ctx context.Context, k models.Kind, column string, parentID uuid.UUID, by *uuid.UUID, at time.Time) ([]uuid.UUID, error)
	ActiveRealFor(ctx context.Context, realKind models.Kind, planDeviceID uuid.UUID) (*uuid.UUID, error)
	RealsForPlans(ctx context.Context, realKind models.Kind, planDeviceIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error)
	MoveReals(ctx context.Context, realKind models.Kind, from, to uuid.UUID) error
	CountDeviceTypeReferences(ctx context.Context, k models.Kind, deviceTypeID uuid.UUID) (int64, error)
	PlanDeviceLocations(ctx context.Context, planID uuid.UUID) ([]geometry.Geometry, error)
	PlanIDOf(ctx context.Context, k models.Kind, id uuid.UUID) (*uuid.UUID, error)
}

// ReplacementStore is implemented by *ReplacementRepository.
type ReplacementStore interface {
	Create(ctx context.Context, edge *models.DeviceReplacement) error
	Predecessor(ctx context.Context, k models.Kind, id uuid.UUID) (*models.DeviceReplacement, error)
	Successor(ctx context.Context, k models.Kind, id uuid.UUID) (*models.DeviceReplacement, error)
	Delete(ctx context.Context, edge *models.DeviceReplacement) error
	EdgesFor(ctx context.Context, k models.Kind, ids []uuid.UUID) ([]models.DeviceReplacement, error)
}

// PlanStore is implemented by *PlanRepository.
type PlanStore interface {
	CreatePlan(ctx context.Context, plan *models.Plan) error
	GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error)
	FindByDiaryNumber(ctx context.Context, diaryNumber string) (*models.Plan, error)
	DiaryNumberTaken(ctx context.Context, diaryNumber string, exclude uuid.UUID) (bool, error)
	UpdatePlan(ctx context.Context, plan *models.Plan) error
	UpdateLocation(ctx context.Context, id uuid.UUID, location geometry.Geometry) error
	SoftDeletePlan(ctx context.Context, id uuid.UUID, by *uuid.UUID, at time.Time) (bool, error)
	ListPlans(ctx context.Context, f PlanFilter) ([]models.Plan, int64, error)
	DecisionIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error)
	CreateImportLog(ctx context.Context, entry *models.PlanGeometryImportLog) error
	FinishImportLog(ctx context.Context, entry *models.PlanGeometryImportLog) error
}

// DeviceTypeStore is implemented by *DeviceTypeRepository.
type DeviceTypeStore interface {
	Create(ctx context.Context, dt *models.DeviceType) error
	Get(ctx context.Context, id uuid.UUID) (*models.DeviceType, error)
	GetByCode(ctx context.Context, code string) (*models.DeviceType, error)
	List(ctx context.Context, targetModel string) ([]models.DeviceType, error)
	Update(ctx context.Context, dt *models.DeviceType) error
	Delete(ctx context.Context, id uuid.UUID) error
	Codes(ctx context.Context) (map[uuid.UUID]string, error)
}

// AuditStore is implemented by *AuditRepository.
type AuditStore interface {
	Record(ctx context.Context, contentType string, objectID uuid.UUID, action models.AuditAction, actor *uuid.UUID, changes interface{}) error
	History(ctx context.Context, contentType string, objectID uuid.UUID) ([]models.AuditLog, error)
}

// LookupStore resolves the human-readable keys of catalog rows.
type LookupStore interface {
	// Exists reports whether table has a row with id.
	Exists(ctx context.Context, table string, id uuid.UUID) (bool, error)
	// IDByKey returns the id of the row whose column equals value.
	IDByKey(ctx context.Context, table, column, value string) (*uuid.UUID, error)
	// Keys maps ids of table to the values of column.
	Keys(ctx context.Context, table, column string) (map[uuid.UUID]string, error)
}

// Store bundles the repositories of one unit of work.
type Store interface {
	// Transaction runs fn against a store bound to a transaction. Nested
	// calls use savepoints.
	Transaction(ctx context.Context, fn func(tx Store) error) error
	Devices(k models.Kind) DeviceStore
	Tables() TableStore
	Replacements() ReplacementStore
	Plans() PlanStore
	DeviceTypes() DeviceTypeStore
	Audit() AuditStore
	Lookups() LookupStore
}

// GormStore implements Store on a gorm connection or transaction.
type GormStore struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// DB returns the underlying connection.
func (s *GormStore) DB() *gorm.DB { return s.db }

func (s *GormStore) Transaction(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&GormStore{db: tx})
	})
}

func (s *GormStore) Tables() TableStore             { return NewDeviceTables(s.db) }
func (s *GormStore) Replacements() ReplacementStore { return NewReplacementRepository(s.db) }
func (s *GormStore) Plans() PlanStore               { return NewPlanRepository(s.db) }
func (s *GormStore) DeviceTypes() DeviceTypeStore   { return NewDeviceTypeRepository(s.db) }
func (s *GormStore) Audit() AuditStore              { return NewAuditRepository(s.db) }
func (s *GormStore) Lookups() LookupStore           { return &lookups{db: s.db} }

// Devices returns the store of kind k. It panics on an unknown kind.
func (s *GormStore) Devices(k models.Kind) DeviceStore {
	switch k {
	case models.BarrierPlanKind:
		return newDeviceTable[models.BarrierPlan](s.db, k)
	case models.BarrierRealKind:
		return newDeviceTable[models.BarrierReal](s.db, k)
	case models.RoadMarkingPlanKind:
		return newDeviceTable[models.RoadMarkingPlan](s.db, k)
	case models.RoadMarkingRealKind:
		return newDeviceTable[models.RoadMarkingReal](s.db, k)
	case models.SignpostPlanKind:
		return newDeviceTable[models.SignpostPlan](s.db, k)
	case models.SignpostRealKind:
		return newDeviceTable[models.SignpostReal](s.db, k)
	case models.MountPlanKind:
		return newDeviceTable[models.MountPlan](s.db, k)
	case models.MountRealKind:
		return newDeviceTable[models.MountReal](s.db, k)
	case models.TrafficLightPlanKind:
		return newDeviceTable[models.TrafficLightPlan](s.db, k)
	case models.TrafficLightRealKind:
		return newDeviceTable[models.TrafficLightReal](s.db, k)
	case models.TrafficSignPlanKind:
		return newDeviceTable[models.TrafficSignPlan](s.db, k)
	case models.TrafficSignRealKind:
		return newDeviceTable[models.TrafficSignReal](s.db, k)
	case models.AdditionalSignPlanKind:
		return newDeviceTable[models.AdditionalSignPlan](s.db, k)
	case models.AdditionalSignRealKind:
		return newDeviceTable[models.AdditionalSignReal](s.db, k)
	case models.FurnitureSignpostPlanKind:
		return newDeviceTable[models.FurnitureSignpostPlan](s.db, k)
	case models.FurnitureSignpostRealKind:
		return newDeviceTable[models.FurnitureSignpostReal](s.db, k)
	}
	panic(fmt.Sprintf("unknown device kind %q", k))
}

// deviceTable adapts DeviceRepository[M] to DeviceStore.
type deviceTable[M any, P interface {
	*M
	models.Device
}] struct {
	repo *DeviceRepository[M]
}

func newDeviceTable[M any, P interface {
	*M
	models.Device
}](db *gorm.DB, k models.Kind) DeviceStore {
	return &deviceTable[M, P]{repo: NewDeviceRepository[M](db, k)}
}

func (t *deviceTable[M, P]) Kind() models.Kind { return t.repo.kind }

func (t *deviceTable[M, P]) model(d models.Device) (*M, error) {
	p, ok := d.(P)
	if !ok {
		return nil, fmt.Errorf("%T is not a %s", d, t.repo.kind)
	}
	return (*M)(p), nil
}

func (t *deviceTable[M, P]) wrap(items []M) []models.Device {
	out := make([]models.Device, len(items))
	for i := range items {
		out[i] = P(&items[i])
	}
	return out
}

func (t *deviceTable[M, P]) Get(ctx context.Context, id uuid.UUID) (models.Device, error) {
	m, err := t.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return P(m), nil
}

func (t *deviceTable[M, P]) List(ctx context.Context, f DeviceFilter) ([]models.Device, int64, error) {
	items, total, err := t.repo.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return t.wrap(items), total, nil
}

func (t *deviceTable[M, P]) Create(ctx context.Context, d models.Device) error {
	m, err := t.model(d)
	if err != nil {
		return err
	}
	return t.repo.Create(ctx, m)
}

func (t *deviceTable[M, P]) Save(ctx context.Context, d models.Device) error {
	m, err := t.model(d)
	if err != nil {
		return err
	}
	return t.repo.Save(ctx, m)
}

func (t *deviceTable[M, P]) SoftDelete(ctx context.Context, id uuid.UUID, by *uuid.UUID, at time.Time) (bool, error) {
	return t.repo.SoftDelete(ctx, id, by, at)
}

func (t *deviceTable[M, P]) CreateIgnoringSource(ctx context.Context, items []models.Device) (int64, error) {
	rows := make([]M, 0, len(items))
	for _, d := range items {
		m, err := t.model(d)
		if err != nil {
			return 0, err
		}
		rows = append(rows, *m)
	}
	return t.repo.CreateIgnoringSource(ctx, rows)
}

func (t *deviceTable[M, P]) FindBySource(ctx context.Context, sourceName string, sourceIDs []string) ([]models.Device, error) {
	items, err := t.repo.FindBySource(ctx, sourceName, sourceIDs)
	if err != nil {
		return nil, err
	}
	return t.wrap(items), nil
}

func (t *deviceTable[M, P]) UpdateColumns(ctx context.Context, id uuid.UUID, columns map[string]interface{}) error {
	return t.repo.UpdateColumns(ctx, id, columns)
}

// lookups addresses catalog tables by name. Table and column names are
// fixed by callers, never taken from input.
type lookups struct {
	db *gorm.DB
}

func (l *lookups) Exists(ctx context.Context, table string, id uuid.UUID) (bool, error) {
	var n int64
	err := l.db.WithContext(ctx).Table(table).Where("id = ?", id).Count(&n).Error
	return n > 0, err
}

func (l *lookups) IDByKey(ctx context.Context, table, column, value string) (*uuid.UUID, error) {
	var ids []uuid.UUID
	err := l.db.WithContext(ctx).Table(table).Where(column+" = ?", value).Limit(1).Pluck("id", &ids).Error
	if err != nil || len(ids) == 0 {
		return nil, err
	}
	return &ids[0], nil
}

func (l *lookups) Keys(ctx context.Context, table, column string) (map[uuid.UUID]string, error) {
	var rows []struct {
		ID  uuid.UUID
		Key string
	}
	err := l.db.WithContext(ctx).Table(table).Select("id, " + column + " AS key").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]string, len(rows))
	for _, row := range rows {
		out[row.ID] = row.Key
	}
	return out, nil
}
