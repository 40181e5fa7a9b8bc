package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"infra-registry/internal/models"
)

// AuditRepository appends audit log rows.
type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) WithTx(tx *gorm.DB) *AuditRepository {
	return &AuditRepository{db: tx}
}

// Record writes one audit row. changes is stored as JSON and may be nil.
func (r *AuditRepository) Record(ctx context.Context, contentType string, objectID uuid.UUID, action models.AuditAction, actor *uuid.UUID, changes interface{}) error {
	entry := models.AuditLog{
		ContentType: contentType,
		ObjectID:    objectID,
		Action:      action,
		ActorID:     actor,
		Timestamp:   time.Now(),
	}
	if changes != nil {
		data, err := json.Marshal(changes)
		if err != nil {
			return err
		}
		entry.Changes = datatypes.JSON(data)
	}
	return r.db.WithContext(ctx).Create(&entry).Error
}

// History lists the audit rows of one object, oldest first.
func (r *AuditRepository) History(ctx context.Context, contentType string, objectID uuid.UUID) ([]models.AuditLog, error) {
	var out []models.AuditLog
	err := r.db.WithContext(ctx).
		Where("content_type = ? AND object_id = ?", contentType, objectID).
		Order("timestamp").
		Find(&out).Error
	return out, err
}
