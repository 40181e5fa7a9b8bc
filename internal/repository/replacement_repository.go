package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"infra-registry/internal/models"
)

// ReplacementRepository stores replacement edges between planned devices.
type ReplacementRepository struct {
	db *gorm.DB
}

func NewReplacementRepository(db *gorm.DB) *ReplacementRepository {
	return &ReplacementRepository{db: db}
}

func (r *ReplacementRepository) WithTx(tx *gorm.DB) *ReplacementRepository {
	return &ReplacementRepository{db: tx}
}

func (r *ReplacementRepository) Create(ctx context.Context, edge *models.DeviceReplacement) error {
	return r.db.WithContext(ctx).Create(edge).Error
}

// Predecessor returns the edge whose new end is id, or nil.
func (r *ReplacementRepository) Predecessor(ctx context.Context, k models.Kind, id uuid.UUID) (*models.DeviceReplacement, error) {
	return r.find(ctx, "kind = ? AND new_id = ?", k.String(), id)
}

// Successor returns the edge whose old end is id, or nil.
func (r *ReplacementRepository) Successor(ctx context.Context, k models.Kind, id uuid.UUID) (*models.DeviceReplacement, error) {
	return r.find(ctx, "kind = ? AND old_id = ?", k.String(), id)
}

func (r *ReplacementRepository) find(ctx context.Context, query string, args ...interface{}) (*models.DeviceReplacement, error) {
	var edge models.DeviceReplacement
	err := r.db.WithContext(ctx).Where(query, args...).First(&edge).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &edge, nil
}

func (r *ReplacementRepository) Delete(ctx context.Context, edge *models.DeviceReplacement) error {
	return r.db.WithContext(ctx).Delete(&models.DeviceReplacement{}, "id = ?", edge.ID).Error
}

// EdgesFor returns every edge touching one of ids.
func (r *ReplacementRepository) EdgesFor(ctx context.Context, k models.Kind, ids []uuid.UUID) ([]models.DeviceReplacement, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var edges []models.DeviceReplacement
	err := r.db.WithContext(ctx).
		Where("kind = ? AND (old_id IN ? OR new_id IN ?)", k.String(), ids, ids).
		Find(&edges).Error
	return edges, err
}
