package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"infra-registry/internal/models"
)

// DeviceTypeRepository provides access to the device type catalog.
type DeviceTypeRepository struct {
	db *gorm.DB
}

func NewDeviceTypeRepository(db *gorm.DB) *DeviceTypeRepository {
	return &DeviceTypeRepository{db: db}
}

func (r *DeviceTypeRepository) WithTx(tx *gorm.DB) *DeviceTypeRepository {
	return &DeviceTypeRepository{db: tx}
}

func (r *DeviceTypeRepository) Create(ctx context.Context, dt *models.DeviceType) error {
	return r.db.WithContext(ctx).Create(dt).Error
}

func (r *DeviceTypeRepository) Get(ctx context.Context, id uuid.UUID) (*models.DeviceType, error) {
	var dt models.DeviceType
	if err := r.db.WithContext(ctx).First(&dt, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &dt, nil
}

// GetByCode looks up a type by code, falling back to the legacy code.
func (r *DeviceTypeRepository) GetByCode(ctx context.Context, code string) (*models.DeviceType, error) {
	var dt models.DeviceType
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&dt).Error
	if err == gorm.ErrRecordNotFound {
		err = r.db.WithContext(ctx).Where("legacy_code = ?", code).Order("code").First(&dt).Error
	}
	if err != nil {
		return nil, err
	}
	return &dt, nil
}

func (r *DeviceTypeRepository) List(ctx context.Context, targetModel string) ([]models.DeviceType, error) {
	q := r.db.WithContext(ctx).Order("code")
	if targetModel != "" {
		q = q.Where("target_model = ?", targetModel)
	}
	var out []models.DeviceType
	err := q.Find(&out).Error
	return out, err
}

func (r *DeviceTypeRepository) Update(ctx context.Context, dt *models.DeviceType) error {
	return r.db.WithContext(ctx).Save(dt).Error
}

func (r *DeviceTypeRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.DeviceType{}, "id = ?", id).Error
}

// Codes maps device type ids to codes.
func (r *DeviceTypeRepository) Codes(ctx context.Context) (map[uuid.UUID]string, error) {
	var all []models.DeviceType
	if err := r.db.WithContext(ctx).Select("id", "code").Find(&all).Error; err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]string, len(all))
	for _, dt := range all {
		out[dt.ID] = dt.Code
	}
	return out, nil
}
