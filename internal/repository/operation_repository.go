package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"infra-registry/internal/models"
)

// OperationRepository stores the maintenance log of real devices.
type OperationRepository struct {
	db *gorm.DB
}

func NewOperationRepository(db *gorm.DB) *OperationRepository {
	return &OperationRepository{db: db}
}

// List returns the operations of a device ordered by operation date.
func (r *OperationRepository) List(ctx context.Context, kind models.Kind, deviceID uuid.UUID) ([]models.DeviceOperation, error) {
	var ops []models.DeviceOperation
	err := r.db.WithContext(ctx).
		Where("kind = ? AND device_id = ?", kind.String(), deviceID).
		Order("operation_date ASC, created_at ASC").
		Find(&ops).Error
	return ops, err
}

func (r *OperationRepository) Get(ctx context.Context, kind models.Kind, deviceID, id uuid.UUID) (*models.DeviceOperation, error) {
	var op models.DeviceOperation
	err := r.db.WithContext(ctx).
		Where("id = ? AND kind = ? AND device_id = ?", id, kind.String(), deviceID).
		First(&op).Error
	if err != nil {
		return nil, err
	}
	return &op, nil
}

func (r *OperationRepository) Create(ctx context.Context, op *models.DeviceOperation) error {
	return r.db.WithContext(ctx).Create(op).Error
}

func (r *OperationRepository) Update(ctx context.Context, op *models.DeviceOperation) error {
	return r.db.WithContext(ctx).Save(op).Error
}
