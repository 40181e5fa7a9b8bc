package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"infra-registry/internal/models"
)

// FileRepository provides methods to interact with DeviceFile rows.
type FileRepository struct {
	db *gorm.DB
}

// NewFileRepository creates a new FileRepository with the provided GORM database connection.
func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{db: db}
}

// CreateFile creates a new DeviceFile in the database.
func (r *FileRepository) CreateFile(ctx context.Context, file *models.DeviceFile) error {
	return r.db.WithContext(ctx).Create(file).Error
}

// GetFile retrieves a file belonging to the given device.
func (r *FileRepository) GetFile(ctx context.Context, kind models.Kind, deviceID, fileID uuid.UUID) (*models.DeviceFile, error) {
	var file models.DeviceFile
	err := r.db.WithContext(ctx).
		Where("id = ? AND kind = ? AND device_id = ?", fileID, kind.String(), deviceID).
		First(&file).Error
	if err != nil {
		return nil, err
	}
	return &file, nil
}

// ListFiles retrieves the files of a device.
func (r *FileRepository) ListFiles(ctx context.Context, kind models.Kind, deviceID uuid.UUID) ([]models.DeviceFile, error) {
	var files []models.DeviceFile
	err := r.db.WithContext(ctx).
		Where("kind = ? AND device_id = ?", kind.String(), deviceID).
		Order("created_at").
		Find(&files).Error
	return files, err
}

// UpdateFile updates an existing DeviceFile in the database.
func (r *FileRepository) UpdateFile(ctx context.Context, file *models.DeviceFile) error {
	return r.db.WithContext(ctx).Save(file).Error
}

// DeleteFile deletes a DeviceFile by its ID from the database.
func (r *FileRepository) DeleteFile(ctx context.Context, id uuid.UUID) error {
	return r.db.WithContext(ctx).Delete(&models.DeviceFile{}, "id = ?", id).Error
}
