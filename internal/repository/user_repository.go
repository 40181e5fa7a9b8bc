package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"infra-registry/internal/geometry"
	"infra-registry/internal/models"
)

// UserRepository loads principals and answers the spatial and tree
// questions behind permission checks.
type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db}
}

// GetUser loads a user with responsible entities and operational areas.
func (r *UserRepository) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Preload("ResponsibleEntities").
		Preload("OperationalAreas").
		First(&user, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).
		Preload("ResponsibleEntities").
		Preload("OperationalAreas").
		First(&user, "username = ?", username).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// AncestorIDs returns the responsible entity and all of its ancestors.
func (r *UserRepository) AncestorIDs(ctx context.Context, entityID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).Raw(`
		WITH RECURSIVE chain AS (
			SELECT id, parent_id FROM responsible_entities WHERE id = ?
			UNION
			SELECT re.id, re.parent_id FROM responsible_entities re
			JOIN chain c ON re.id = c.parent_id
		)
		SELECT id FROM chain`, entityID).Scan(&ids).Error
	return ids, err
}

// IntersectsOperationalArea reports whether g intersects one of the
// user's operational areas.
func (r *UserRepository) IntersectsOperationalArea(ctx context.Context, userID uuid.UUID, g geometry.Geometry) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Raw(`
		SELECT count(*) FROM operational_areas oa
		JOIN user_operational_areas uoa ON uoa.operational_area_id = oa.id
		WHERE uoa.user_id = ? AND ST_Intersects(oa.location, ST_Force2D(ST_GeomFromEWKT(?)))`,
		userID, g.EWKT()).Scan(&n).Error
	return n > 0, err
}
