package importexport

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"infra-registry/internal/content"
	"infra-registry/internal/models"
	"infra-registry/internal/repository"
)

const exportPageSize = 1000

// Exporter renders device tables as datasets.
type Exporter struct {
	store repository.Store
	log   *zap.Logger
}

func NewExporter(store repository.Store, log *zap.Logger) *Exporter {
	return &Exporter{store: store, log: log}
}

// Export returns the active devices of kind k matching f. A zero limit
// exports every matching row.
func (e *Exporter) Export(ctx context.Context, k models.Kind, f repository.DeviceFilter) (*Dataset, error) {
	res := NewResource(k)
	items, err := e.fetch(ctx, k, f)
	if err != nil {
		return nil, err
	}
	w := newRowWriter(e.store, res)

	replaces := map[uuid.UUID]uuid.UUID{}
	if k.IsPlan() {
		edges, err := e.store.Replacements().EdgesFor(ctx, k, deviceIDs(items))
		if err != nil {
			return nil, pkgerrors.Wrap(err, "loading replacements")
		}
		for _, edge := range edges {
			replaces[edge.NewID] = edge.OldID
		}
	}

	for _, d := range items {
		m, err := toMap(d)
		if err != nil {
			return nil, err
		}
		m["replaces"] = nil
		if old, ok := replaces[d.Core().ID]; ok {
			m["replaces"] = old.String()
		}
		if err := w.add(ctx, m, json.RawMessage(d.Core().ContentS)); err != nil {
			return nil, err
		}
	}
	e.log.Info("exported devices", zap.String("kind", k.String()), zap.Int("rows", len(items)))
	return w.dataset(), nil
}

// PlanRealTemplate returns a dataset shaped like the real variant of
// planKind, seeded from the current plans matching f:
//   - a plan with an active real device yields that device's id, so an
//     import updates it;
//   - parent columns point at the real device of the parent plan when one
//     exists;
//   - other rows get an integer placeholder id, and children of such rows
//     reference the placeholder so one import resolves them together.
//
// Parent rows are emitted before their children.
func (e *Exporter) PlanRealTemplate(ctx context.Context, planKind models.Kind, f repository.DeviceFilter) (*Dataset, error) {
	realKind := planKind.Counterpart()
	if !planKind.IsPlan() {
		return nil, pkgerrors.Errorf("%s is not a plan kind", planKind)
	}
	notReplaced := false
	if f.IsReplaced == nil {
		f.IsReplaced = &notReplaced
	}
	plans, err := e.fetch(ctx, planKind, f)
	if err != nil {
		return nil, err
	}
	plans = parentsFirst(plans, models.Info(planKind).Parents, planKind)

	reals, err := e.store.Tables().RealsForPlans(ctx, realKind, deviceIDs(plans))
	if err != nil {
		return nil, pkgerrors.Wrap(err, "loading real devices")
	}

	planParents := models.Info(planKind).Parents
	realParents := models.Info(realKind).Parents
	placeholders := map[uuid.UUID]int{}
	w := newRowWriter(e.store, NewResource(realKind))

	for _, plan := range plans {
		m, err := toMap(plan)
		if err != nil {
			return nil, err
		}
		id := plan.Core().ID
		delete(m, "plan")
		delete(m, "replaces")
		for _, k := range []string{"created_at", "updated_at", "created_by", "updated_by", "source_name", "source_id"} {
			delete(m, k)
		}
		m["device_plan"] = id.String()
		if realID, ok := reals[id]; ok {
			m["id"] = realID.String()
		} else {
			placeholders[id] = len(placeholders) + 1
			m["id"] = placeholders[id]
		}

		for i, ref := range planParents {
			value, _ := m[ref.Field].(string)
			delete(m, ref.Field)
			if i >= len(realParents) || value == "" {
				continue
			}
			parentPlan, err := uuid.Parse(value)
			if err != nil {
				continue
			}
			target := realParents[i]
			realParent, err := e.store.Tables().ActiveRealFor(ctx, target.Target, parentPlan)
			if err != nil {
				return nil, pkgerrors.Wrapf(err, "loading real %s", target.Field)
			}
			switch {
			case realParent != nil:
				m[target.Field] = realParent.String()
			case ref.Target == planKind && placeholders[parentPlan] > 0:
				m[target.Field] = placeholders[parentPlan]
			}
		}
		if err := w.add(ctx, m, json.RawMessage(plan.Core().ContentS)); err != nil {
			return nil, err
		}
	}
	e.log.Info("built real template", zap.String("kind", planKind.String()), zap.Int("rows", len(plans)))
	return w.dataset(), nil
}

func (e *Exporter) fetch(ctx context.Context, k models.Kind, f repository.DeviceFilter) ([]models.Device, error) {
	if f.Limit > 0 {
		items, _, err := e.store.Devices(k).List(ctx, f)
		return items, pkgerrors.Wrapf(err, "listing %s", k.Table())
	}
	var out []models.Device
	f.Limit = exportPageSize
	for {
		items, total, err := e.store.Devices(k).List(ctx, f)
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "listing %s", k.Table())
		}
		out = append(out, items...)
		f.Offset += len(items)
		if len(items) == 0 || int64(f.Offset) >= total {
			return out, nil
		}
	}
}

// parentsFirst orders items so a row referencing another row of the same
// kind comes after it. Relative order is kept otherwise.
func parentsFirst(items []models.Device, parents []models.ParentRef, k models.Kind) []models.Device {
	present := make(map[uuid.UUID]bool, len(items))
	for _, d := range items {
		present[d.Core().ID] = true
	}
	var sameKind []string
	for _, ref := range parents {
		if ref.Target == k {
			sameKind = append(sameKind, ref.Field)
		}
	}
	if len(sameKind) == 0 {
		return items
	}

	parentOf := make(map[uuid.UUID]uuid.UUID)
	for _, d := range items {
		m, err := toMap(d)
		if err != nil {
			continue
		}
		for _, field := range sameKind {
			if s, ok := m[field].(string); ok {
				if p, err := uuid.Parse(s); err == nil && present[p] && p != d.Core().ID {
					parentOf[d.Core().ID] = p
				}
			}
		}
	}

	out := make([]models.Device, 0, len(items))
	emitted := make(map[uuid.UUID]bool, len(items))
	for len(out) < len(items) {
		progress := false
		for _, d := range items {
			id := d.Core().ID
			if emitted[id] {
				continue
			}
			if p, ok := parentOf[id]; ok && !emitted[p] {
				continue
			}
			out = append(out, d)
			emitted[id] = true
			progress = true
		}
		if !progress {
			// A reference cycle; emit the rest as they come.
			for _, d := range items {
				if !emitted[d.Core().ID] {
					out = append(out, d)
					emitted[d.Core().ID] = true
				}
			}
		}
	}
	return out
}

func deviceIDs(items []models.Device) []uuid.UUID {
	out := make([]uuid.UUID, len(items))
	for i, d := range items {
		out[i] = d.Core().ID
	}
	return out
}

// rowWriter turns JSON maps of devices into dataset rows, resolving
// foreign keys and content columns.
type rowWriter struct {
	store   repository.Store
	res     *Resource
	keys    map[string]map[uuid.UUID]string
	types   map[uuid.UUID]*models.DeviceType
	rows    []map[string]string
	content []string
	seen    map[string]bool
}

func newRowWriter(store repository.Store, res *Resource) *rowWriter {
	return &rowWriter{
		store: store,
		res:   res,
		keys:  map[string]map[uuid.UUID]string{},
		types: map[uuid.UUID]*models.DeviceType{},
		seen:  map[string]bool{},
	}
}

func (w *rowWriter) keyOf(ctx context.Context, fk *ForeignKey, id uuid.UUID) (string, error) {
	keys, ok := w.keys[fk.Table]
	if !ok {
		var err error
		if fk.Table == "device_types" {
			keys, err = w.store.DeviceTypes().Codes(ctx)
		} else {
			keys, err = w.store.Lookups().Keys(ctx, fk.Table, fk.Key)
		}
		if err != nil {
			return "", pkgerrors.Wrapf(err, "loading %s", fk.Table)
		}
		w.keys[fk.Table] = keys
	}
	return keys[id], nil
}

func (w *rowWriter) deviceType(ctx context.Context, id uuid.UUID) (*models.DeviceType, error) {
	if dt, ok := w.types[id]; ok {
		return dt, nil
	}
	dt, err := w.store.DeviceTypes().Get(ctx, id)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "loading device type")
	}
	w.types[id] = dt
	return dt, nil
}

func (w *rowWriter) add(ctx context.Context, m map[string]interface{}, contentS json.RawMessage) error {
	row := make(map[string]string, len(w.res.columns))
	for _, c := range w.res.columns {
		v := m[c.Field]
		if c.FK == nil {
			row[c.Name] = encodeCell(v)
			continue
		}
		s, _ := v.(string)
		id, err := uuid.Parse(s)
		if err != nil {
			row[c.Name] = ""
			continue
		}
		key, err := w.keyOf(ctx, c.FK, id)
		if err != nil {
			return err
		}
		row[c.Name] = key
	}

	if s, ok := m["device_type"].(string); ok {
		if id, err := uuid.Parse(s); err == nil {
			dt, err := w.deviceType(ctx, id)
			if err != nil {
				return err
			}
			schema, err := content.ParseSchema(dt.ContentSchema)
			if err != nil {
				return pkgerrors.Wrapf(err, "device type %s", dt.Code)
			}
			cells, err := content.Destructure(contentS, schema)
			if err != nil {
				return pkgerrors.Wrapf(err, "device %v", m["id"])
			}
			if schema != nil {
				for i, p := range schema.Properties {
					col := p.Column()
					if !w.seen[col] {
						w.seen[col] = true
						w.content = append(w.content, col)
					}
					row[col] = cells[i]
				}
			}
		}
	}
	w.rows = append(w.rows, row)
	return nil
}

func (w *rowWriter) dataset() *Dataset {
	headers := append(w.res.Columns(), w.content...)
	d := NewDataset(headers)
	for _, row := range w.rows {
		d.Append(row)
	}
	return d
}
