package services

import (
	"context"
	"errors"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"gorm.io/gorm"

	"infra-registry/internal/geometry"
	"infra-registry/internal/repository"
)

// recomputePlanLocation derives the location of a plan from its active
// planned devices. Plans without derive_location and deleted plans are
// left untouched.
func recomputePlanLocation(ctx context.Context, st repository.Store, planID uuid.UUID, buffer float64) error {
	plan, err := st.Plans().GetPlan(ctx, planID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return pkgerrors.Wrap(err, "loading plan")
	}
	if !plan.DeriveLocation {
		return nil
	}
	points, err := st.Tables().PlanDeviceLocations(ctx, planID)
	if err != nil {
		return pkgerrors.Wrap(err, "collecting plan device locations")
	}
	location, err := geometry.DerivePlanLocation(points, buffer)
	if err != nil {
		return pkgerrors.Wrap(err, "deriving plan location")
	}
	return pkgerrors.Wrap(st.Plans().UpdateLocation(ctx, planID, location), "updating plan location")
}

// recomputePlans recomputes each distinct non-nil plan once.
func recomputePlans(ctx context.Context, st repository.Store, buffer float64, ids ...*uuid.UUID) error {
	seen := make(map[uuid.UUID]bool)
	for _, id := range ids {
		if id == nil || seen[*id] {
			continue
		}
		seen[*id] = true
		if err := recomputePlanLocation(ctx, st, *id, buffer); err != nil {
			return err
		}
	}
	return nil
}
