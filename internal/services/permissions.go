package services

import (
	"context"

	"github.com/google/uuid"

	"infra-registry/internal/geometry"
	"infra-registry/internal/models"
)

// WildcardPermission grants write access to every resource.
const WildcardPermission = "*"

// PermissionStore answers the tree and spatial questions behind permission
// checks. Implemented by *repository.UserRepository.
type PermissionStore interface {
	AncestorIDs(ctx context.Context, entityID uuid.UUID) ([]uuid.UUID, error)
	IntersectsOperationalArea(ctx context.Context, userID uuid.UUID, g geometry.Geometry) (bool, error)
}

// PermissionChecker decides whether a user may write a resource.
type PermissionChecker struct {
	store PermissionStore
}

func NewPermissionChecker(store PermissionStore) *PermissionChecker {
	return &PermissionChecker{store: store}
}

// CanWrite reports whether user may modify resource, a kind name such as
// "traffic_sign_plan" or a catalog name such as "device_type".
func (p *PermissionChecker) CanWrite(user *models.User, resource string) bool {
	if user == nil {
		return false
	}
	if user.IsSuperuser {
		return true
	}
	for _, perm := range user.WritePermissions {
		if perm == WildcardPermission || perm == resource {
			return true
		}
	}
	return false
}

// CanUseResponsibleEntity reports whether user may assign or edit rows of
// the responsible entity. Membership of an ancestor grants access.
func (p *PermissionChecker) CanUseResponsibleEntity(ctx context.Context, user *models.User, entityID uuid.UUID) (bool, error) {
	if user == nil {
		return false, nil
	}
	if user.IsSuperuser || user.BypassResponsibleEntity {
		return true, nil
	}
	if len(user.ResponsibleEntities) == 0 {
		return false, nil
	}
	chain, err := p.store.AncestorIDs(ctx, entityID)
	if err != nil {
		return false, err
	}
	for _, member := range user.ResponsibleEntities {
		for _, id := range chain {
			if member.ID == id {
				return true, nil
			}
		}
	}
	return false, nil
}

// InOperationalArea reports whether g intersects one of the user's
// operational areas. Null geometries pass.
func (p *PermissionChecker) InOperationalArea(ctx context.Context, user *models.User, g geometry.Geometry) (bool, error) {
	if user == nil {
		return false, nil
	}
	if user.IsSuperuser || user.BypassOperationalArea || g.IsNull() {
		return true, nil
	}
	if len(user.OperationalAreas) == 0 {
		return false, nil
	}
	return p.store.IntersectsOperationalArea(ctx, user.ID, g)
}
