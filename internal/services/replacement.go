package services

import (
	"context"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"infra-registry/internal/apperrors"
	"infra-registry/internal/models"
	"infra-registry/internal/repository"
)

func invalidReplacement(message string) error {
	return apperrors.FieldError("replaces", message)
}

// Replace records that the planned device newID supersedes oldID.
func (s *DeviceService) Replace(ctx context.Context, user *models.User, newID, oldID uuid.UUID) error {
	if !s.kind.IsPlan() {
		return apperrors.Validation(s.kind.String() + " does not support replacement")
	}
	if user == nil {
		return apperrors.Unauthorized()
	}
	d, err := s.store.Devices(s.kind).Get(ctx, newID)
	if err != nil {
		return apperrors.FromDB(err, s.kind.String())
	}
	if err := s.authorize(ctx, user, d, nil); err != nil {
		return err
	}
	return s.store.Transaction(ctx, func(tx repository.Store) error {
		if err := s.applyReplaces(ctx, tx, user, newID, &oldID); err != nil {
			return err
		}
		return tx.Audit().Record(ctx, s.kind.String(), newID, models.AuditUpdate, userID(user),
			map[string]Change{"replaces": {New: oldID}})
	})
}

// UnlinkReplacement removes the predecessor edge of newID.
func (s *DeviceService) UnlinkReplacement(ctx context.Context, user *models.User, newID uuid.UUID) error {
	if !s.kind.IsPlan() {
		return apperrors.Validation(s.kind.String() + " does not support replacement")
	}
	if user == nil {
		return apperrors.Unauthorized()
	}
	d, err := s.store.Devices(s.kind).Get(ctx, newID)
	if err != nil {
		return apperrors.FromDB(err, s.kind.String())
	}
	if err := s.authorize(ctx, user, d, nil); err != nil {
		return err
	}
	return s.store.Transaction(ctx, func(tx repository.Store) error {
		edge, err := tx.Replacements().Predecessor(ctx, s.kind, newID)
		if err != nil {
			return pkgerrors.Wrap(err, "loading replacement")
		}
		if edge == nil {
			return apperrors.NotFound("replacement")
		}
		if err := tx.Replacements().Delete(ctx, edge); err != nil {
			return pkgerrors.Wrap(err, "deleting replacement")
		}
		return tx.Audit().Record(ctx, s.kind.String(), newID, models.AuditUpdate, userID(user),
			map[string]Change{"replaces": {Old: edge.OldID}})
	})
}

// applyReplaces makes oldID the predecessor of newID, or removes the
// predecessor when oldID is nil.
func (s *DeviceService) applyReplaces(ctx context.Context, tx repository.Store, user *models.User, newID uuid.UUID, oldID *uuid.UUID) error {
	current, err := tx.Replacements().Predecessor(ctx, s.kind, newID)
	if err != nil {
		return pkgerrors.Wrap(err, "loading replacement")
	}
	if current != nil && oldID != nil && current.OldID == *oldID {
		return nil
	}
	if current != nil {
		if err := tx.Replacements().Delete(ctx, current); err != nil {
			return pkgerrors.Wrap(err, "deleting replacement")
		}
	}
	if oldID == nil {
		return nil
	}
	return s.link(ctx, tx, user, newID, *oldID)
}

// link creates the edge oldID -> newID and moves the real device of oldID
// to newID when newID has none.
func (s *DeviceService) link(ctx context.Context, tx repository.Store, user *models.User, newID, oldID uuid.UUID) error {
	if newID == oldID {
		return invalidReplacement("a device cannot replace itself")
	}
	ok, err := tx.Tables().ActiveExists(ctx, s.kind, oldID)
	if err != nil {
		return pkgerrors.Wrap(err, "checking replaced device")
	}
	if !ok {
		return invalidReplacement(oldID.String() + " does not exist")
	}
	successor, err := tx.Replacements().Successor(ctx, s.kind, oldID)
	if err != nil {
		return pkgerrors.Wrap(err, "loading replacement")
	}
	if successor != nil && successor.NewID != newID {
		return invalidReplacement(oldID.String() + " is already replaced by " + successor.NewID.String())
	}

	// Walking forward from newID must not reach oldID.
	visited := map[uuid.UUID]bool{newID: true}
	for cur := newID; ; {
		edge, err := tx.Replacements().Successor(ctx, s.kind, cur)
		if err != nil {
			return pkgerrors.Wrap(err, "loading replacement")
		}
		if edge == nil {
			break
		}
		if edge.NewID == oldID {
			return invalidReplacement("replacement would create a cycle")
		}
		if visited[edge.NewID] {
			break
		}
		visited[edge.NewID] = true
		cur = edge.NewID
	}

	edge := &models.DeviceReplacement{ID: uuid.New(), Kind: s.kind.String(), OldID: oldID, NewID: newID}
	edge.CreatedByID, edge.UpdatedByID = userID(user), userID(user)
	if err := tx.Replacements().Create(ctx, edge); err != nil {
		return apperrors.FromDB(err, "replacement")
	}

	realKind := s.kind.Counterpart()
	oldReal, err := tx.Tables().ActiveRealFor(ctx, realKind, oldID)
	if err != nil {
		return pkgerrors.Wrap(err, "loading real device")
	}
	if oldReal == nil {
		return nil
	}
	newReal, err := tx.Tables().ActiveRealFor(ctx, realKind, newID)
	if err != nil {
		return pkgerrors.Wrap(err, "loading real device")
	}
	if newReal != nil {
		return nil
	}
	s.log.Debug("moving real device to replacing plan",
		zap.String("real", oldReal.String()), zap.String("from", oldID.String()), zap.String("to", newID.String()))
	return pkgerrors.Wrap(tx.Tables().MoveReals(ctx, realKind, oldID, newID), "moving real device")
}

// unlinkOnDelete removes both replacement edges of a deleted planned
// device. Its real device moves back to the predecessor, and a successor
// no longer replaces anything.
func (s *DeviceService) unlinkOnDelete(ctx context.Context, tx repository.Store, id uuid.UUID, by *uuid.UUID) error {
	next, err := tx.Replacements().Successor(ctx, s.kind, id)
	if err != nil {
		return pkgerrors.Wrap(err, "loading replacement")
	}
	if next != nil {
		if err := tx.Replacements().Delete(ctx, next); err != nil {
			return pkgerrors.Wrap(err, "deleting replacement")
		}
		if err := tx.Audit().Record(ctx, s.kind.String(), next.NewID, models.AuditUpdate, by,
			map[string]Change{"replaces": {Old: id}}); err != nil {
			return pkgerrors.Wrap(err, "writing audit log")
		}
	}

	edge, err := tx.Replacements().Predecessor(ctx, s.kind, id)
	if err != nil {
		return pkgerrors.Wrap(err, "loading replacement")
	}
	if edge == nil {
		return nil
	}
	if err := tx.Replacements().Delete(ctx, edge); err != nil {
		return pkgerrors.Wrap(err, "deleting replacement")
	}
	realKind := s.kind.Counterpart()
	back, err := tx.Tables().ActiveRealFor(ctx, realKind, edge.OldID)
	if err != nil {
		return pkgerrors.Wrap(err, "loading real device")
	}
	if back != nil {
		return nil
	}
	return pkgerrors.Wrap(tx.Tables().MoveReals(ctx, realKind, id, edge.OldID), "moving real device")
}

// populateReplacements fills Replaces and ReplacedBy of planned devices.
func (s *DeviceService) populateReplacements(ctx context.Context, st repository.Store, items []models.Device) error {
	if !s.kind.IsPlan() || len(items) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(items))
	for i, d := range items {
		ids[i] = d.Core().ID
	}
	edges, err := st.Replacements().EdgesFor(ctx, s.kind, ids)
	if err != nil {
		return pkgerrors.Wrap(err, "loading replacements")
	}
	replaces := make(map[uuid.UUID]uuid.UUID, len(edges))
	replacedBy := make(map[uuid.UUID]uuid.UUID, len(edges))
	for _, e := range edges {
		replaces[e.NewID] = e.OldID
		replacedBy[e.OldID] = e.NewID
	}
	for _, d := range items {
		p, ok := d.(models.PlannedDevice)
		if !ok {
			continue
		}
		link := p.Planned()
		link.Replaces, link.ReplacedBy = nil, nil
		if old, ok := replaces[d.Core().ID]; ok {
			link.Replaces = &old
		}
		if next, ok := replacedBy[d.Core().ID]; ok {
			link.ReplacedBy = &next
		}
	}
	return nil
}
