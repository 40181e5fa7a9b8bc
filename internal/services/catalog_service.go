package services

import (
	"context"

	"github.com/google/uuid"

	"infra-registry/internal/apperrors"
	"infra-registry/internal/models"
)

// CatalogStore is implemented by *repository.CatalogRepository[M].
type CatalogStore[M any] interface {
	Get(ctx context.Context, id uuid.UUID) (*M, error)
	FindBy(ctx context.Context, column string, value interface{}) (*M, error)
	List(ctx context.Context, orderBy string) ([]M, error)
	Create(ctx context.Context, m *M) error
	Save(ctx context.Context, m *M) error
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

// CatalogService serves a small lookup table. Everybody reads; writes need
// the resource permission.
type CatalogService[M any] struct {
	repo     CatalogStore[M]
	perms    *PermissionChecker
	resource string
	orderBy  string
	validate func(*M) error
}

func NewCatalogService[M any](repo CatalogStore[M], perms *PermissionChecker, resource, orderBy string, validate func(*M) error) *CatalogService[M] {
	return &CatalogService[M]{repo: repo, perms: perms, resource: resource, orderBy: orderBy, validate: validate}
}

func (s *CatalogService[M]) Resource() string { return s.resource }

func (s *CatalogService[M]) List(ctx context.Context) ([]M, error) {
	return s.repo.List(ctx, s.orderBy)
}

func (s *CatalogService[M]) Get(ctx context.Context, id uuid.UUID) (*M, error) {
	m, err := s.repo.Get(ctx, id)
	return m, apperrors.FromDB(err, s.resource)
}

// FindBy looks a row up by a natural key column.
func (s *CatalogService[M]) FindBy(ctx context.Context, column string, value interface{}) (*M, error) {
	m, err := s.repo.FindBy(ctx, column, value)
	return m, apperrors.FromDB(err, s.resource)
}

func (s *CatalogService[M]) Create(ctx context.Context, user *models.User, m *M) error {
	if err := s.check(user, m); err != nil {
		return err
	}
	return apperrors.FromDB(s.repo.Create(ctx, m), s.resource)
}

// Update saves m, which must carry the id of an existing row.
func (s *CatalogService[M]) Update(ctx context.Context, user *models.User, id uuid.UUID, m *M) error {
	if err := s.check(user, m); err != nil {
		return err
	}
	if _, err := s.repo.Get(ctx, id); err != nil {
		return apperrors.FromDB(err, s.resource)
	}
	return apperrors.FromDB(s.repo.Save(ctx, m), s.resource)
}

func (s *CatalogService[M]) Delete(ctx context.Context, user *models.User, id uuid.UUID) error {
	if err := s.check(user, nil); err != nil {
		return err
	}
	found, err := s.repo.Delete(ctx, id)
	if err != nil {
		return apperrors.FromDB(err, s.resource)
	}
	if !found {
		return apperrors.NotFound(s.resource)
	}
	return nil
}

func (s *CatalogService[M]) check(user *models.User, m *M) error {
	if user == nil {
		return apperrors.Unauthorized()
	}
	if !s.perms.CanWrite(user, s.resource) {
		return apperrors.Forbidden()
	}
	if m != nil && s.validate != nil {
		return s.validate(m)
	}
	return nil
}

// Catalog validators.

func ValidateOwner(o *models.Owner) error {
	if o.NameFi == "" {
		return apperrors.FieldError("name_fi", "this field is required")
	}
	return nil
}

func ValidateResponsibleEntity(e *models.ResponsibleEntity) error {
	fields := apperrors.Validation("validation failed")
	if e.Name == "" {
		fields.Add("name", "this field is required")
	}
	if e.OrganizationLevel != "" && !e.OrganizationLevel.Valid() {
		fields.Add("organization_level", string(e.OrganizationLevel)+" is not a valid choice")
	}
	if e.ParentID != nil && *e.ParentID == e.ID {
		fields.Add("parent", "an entity cannot be its own parent")
	}
	if fields.HasFields() {
		return fields
	}
	return nil
}

func ValidateMountType(m *models.MountType) error {
	if m.Code == "" {
		return apperrors.FieldError("code", "this field is required")
	}
	return nil
}

func ValidateOperationType(o *models.OperationType) error {
	if o.Name == "" {
		return apperrors.FieldError("name", "this field is required")
	}
	return nil
}
