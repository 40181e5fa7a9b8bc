package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CatalogRepository handles small lookup tables (owners, responsible
// entities, mount types, operation types, icons) that are hard-deleted.
type CatalogRepository[M any] struct {
	db *gorm.DB
}

func NewCatalogRepository[M any](db *gorm.DB) *CatalogRepository[M] {
	return &CatalogRepository[M]{db: db}
}

func (r *CatalogRepository[M]) Get(ctx context.Context, id uuid.UUID) (*M, error) {
	var m M
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

// FindBy returns the first row whose column equals value.
func (r *CatalogRepository[M]) FindBy(ctx context.Context, column string, value interface{}) (*M, error) {
	var m M
	if err := r.db.WithContext(ctx).Where(column+" = ?", value).First(&m).Error; err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *CatalogRepository[M]) List(ctx context.Context, orderBy string) ([]M, error) {
	var out []M
	err := r.db.WithContext(ctx).Order(orderBy).Find(&out).Error
	return out, err
}

func (r *CatalogRepository[M]) Create(ctx context.Context, m *M) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *CatalogRepository[M]) Save(ctx context.Context, m *M) error {
	return r.db.WithContext(ctx).Save(m).Error
}

func (r *CatalogRepository[M]) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Delete(new(M), "id = ?", id)
	return res.RowsAffected > 0, res.Error
}
