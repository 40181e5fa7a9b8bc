package repository

import (
	"context"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"infra-registry/internal/models"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)
	return db, mock
}

func TestSoftDeleteChildren(t *testing.T) {
	db, mock := newMockDB(t)
	parent := uuid.New()
	user := uuid.New()
	a1, a2 := uuid.New(), uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta(
		"UPDATE additional_sign_reals SET is_active = false, deleted_at = $1, deleted_by_id = $2, updated_at = $3 WHERE parent_id = $4 AND is_active RETURNING id")).
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(a1.String()).AddRow(a2.String()))

	ids, err := NewDeviceTables(db).SoftDeleteChildren(context.Background(), models.AdditionalSignRealKind, "parent_id", parent, &user, time.Now())
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{a1, a2}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestActiveExists(t *testing.T) {
	db, mock := newMockDB(t)
	id := uuid.New()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM mount_reals WHERE id = $1 AND is_active")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	ok, err := NewDeviceTables(db).ActiveExists(context.Background(), models.MountRealKind, id)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCountDeviceTypeReferences(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT count(*) FROM barrier_plans WHERE device_type_id = $1 AND is_active")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	n, err := NewDeviceTables(db).CountDeviceTypeReferences(context.Background(), models.BarrierPlanKind, uuid.New())
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestPlanDeviceLocationsUnionsEveryPlanTable(t *testing.T) {
	db, mock := newMockDB(t)
	planID := uuid.New()
	mock.ExpectQuery(`SELECT location FROM barrier_plans WHERE plan_id = \$1 .* UNION ALL .*furniture_signpost_plans`).
		WillReturnRows(sqlmock.NewRows([]string{"location"}).
			AddRow("SRID=3879;POINT Z (10 10 0)").
			AddRow("SRID=3879;POINT Z (100 100 0)"))

	locs, err := NewDeviceTables(db).PlanDeviceLocations(context.Background(), planID)
	require.NoError(t, err)
	require.Len(t, locs, 2)
	assert.Equal(t, "SRID=3879;POINT Z (10 10 0)", locs[0].EWKT())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMoveReals(t *testing.T) {
	db, mock := newMockDB(t)
	from, to := uuid.New(), uuid.New()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE traffic_sign_reals SET device_plan_id = $1, updated_at = $2 WHERE device_plan_id = $3 AND is_active")).
		WithArgs(to.String(), sqlmock.AnyArg(), from.String()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, NewDeviceTables(db).MoveReals(context.Background(), models.TrafficSignRealKind, from, to))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAncestorIDs(t *testing.T) {
	db, mock := newMockDB(t)
	child, parent := uuid.New(), uuid.New()
	mock.ExpectQuery(`WITH RECURSIVE chain AS`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(child.String()).AddRow(parent.String()))

	ids, err := NewUserRepository(db).AncestorIDs(context.Background(), child)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{child, parent}, ids)
}

func TestIndexStatements(t *testing.T) {
	stmts := strings.Join(IndexStatements(), "\n")
	assert.Contains(t, stmts, "uniq_plans_diary_number ON plans (diary_number) WHERE is_active")
	assert.Contains(t, stmts, "uniq_traffic_sign_plans_source ON traffic_sign_plans (source_name, source_id) WHERE is_active")
	assert.Contains(t, stmts, "uniq_mount_reals_device_plan ON mount_reals (device_plan_id) WHERE is_active")
	assert.NotContains(t, stmts, "uniq_mount_plans_device_plan")
}
