package importexport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"infra-registry/internal/apperrors"
	"infra-registry/internal/content"
	"infra-registry/internal/metrics"
	"infra-registry/internal/models"
	"infra-registry/internal/repository"
	"infra-registry/internal/services"
)

var errDryRun = errors.New("dry run")

// Totals counts imported rows by outcome.
type Totals struct {
	New    int `json:"new"`
	Update int `json:"update"`
	Error  int `json:"error"`
}

// RowError describes one rejected row. Row is 1-based and does not count
// the header.
type RowError struct {
	Row     int                 `json:"row"`
	Message string              `json:"message"`
	Fields  map[string][]string `json:"fields,omitempty"`
	Values  map[string]string   `json:"values"`
}

// Result summarizes an import.
type Result struct {
	Kind   string     `json:"kind"`
	DryRun bool       `json:"dry_run"`
	Totals Totals     `json:"totals"`
	Errors []RowError `json:"errors"`
}

// Importer writes datasets into device tables through the device
// services, so imported rows pass the same validation as API writes.
type Importer struct {
	store   repository.Store
	devices *services.Devices
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewImporter(store repository.Store, devices *services.Devices, m *metrics.Metrics, log *zap.Logger) *Importer {
	return &Importer{store: store, devices: devices, metrics: m, log: log}
}

// Import applies every row of ds to kind k. Each row is its own
// transaction: a rejected row is reported and the others are kept. With
// dryRun nothing is committed but the result is the same.
func (im *Importer) Import(ctx context.Context, k models.Kind, ds *Dataset, user *models.User, dryRun bool) (*Result, error) {
	if user == nil {
		return nil, apperrors.Unauthorized()
	}
	if im.devices.For(k) == nil {
		return nil, apperrors.NotFound(k.String())
	}
	run := &importRun{
		im:           im,
		kind:         k,
		res:          NewResource(k),
		ds:           ds,
		user:         user,
		placeholders: map[int]uuid.UUID{},
		result:       &Result{Kind: k.String(), DryRun: dryRun, Errors: []RowError{}},
	}

	var err error
	if dryRun {
		err = im.store.Transaction(ctx, func(tx repository.Store) error {
			if err := run.rows(ctx, tx); err != nil {
				return err
			}
			return errDryRun
		})
		if errors.Is(err, errDryRun) {
			err = nil
		}
	} else {
		err = run.rows(ctx, im.store)
	}
	if err != nil {
		return nil, err
	}
	im.log.Info("import finished",
		zap.String("kind", k.String()),
		zap.Bool("dry_run", dryRun),
		zap.Int("new", run.result.Totals.New),
		zap.Int("update", run.result.Totals.Update),
		zap.Int("error", run.result.Totals.Error),
	)
	return run.result, nil
}

type importRun struct {
	im           *Importer
	kind         models.Kind
	res          *Resource
	ds           *Dataset
	user         *models.User
	placeholders map[int]uuid.UUID
	result       *Result
}

func (r *importRun) rows(ctx context.Context, base repository.Store) error {
	for i := range r.ds.Rows {
		record := r.ds.Record(i)
		var outcome string
		err := base.Transaction(ctx, func(tx repository.Store) error {
			var err error
			outcome, err = r.row(ctx, tx, record)
			return err
		})
		switch {
		case err == nil:
			if outcome == "new" {
				r.result.Totals.New++
			} else {
				r.result.Totals.Update++
			}
			r.im.metrics.IncImportRow(r.kind.String(), outcome)
		case apperrors.KindOf(err) != apperrors.KindInternal:
			r.result.Totals.Error++
			r.result.Errors = append(r.result.Errors, rowError(i+1, err, record))
			r.im.metrics.IncImportRow(r.kind.String(), "error")
		default:
			return pkgerrors.Wrapf(err, "importing row %d", i+1)
		}
	}
	return nil
}

func rowError(n int, err error, record map[string]string) RowError {
	out := RowError{Row: n, Message: err.Error(), Values: record}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		out.Message = appErr.Message
		out.Fields = appErr.Fields
	}
	return out
}

// row imports one record and reports "new" or "update".
func (r *importRun) row(ctx context.Context, tx repository.Store, record map[string]string) (string, error) {
	svc := r.im.devices.For(r.kind).WithStore(tx)
	fields := apperrors.Validation("validation failed")

	var (
		id       uuid.UUID
		existing models.Device
		slot     int
	)
	if raw := strings.TrimSpace(record["id"]); raw != "" {
		if n, ok := placeholder(raw); ok {
			if _, taken := r.placeholders[n]; taken {
				return "", apperrors.FieldError("id", fmt.Sprintf("placeholder %d is used by an earlier row", n))
			}
			slot = n
		} else if parsed, err := uuid.Parse(raw); err == nil {
			id = parsed
			d, err := svc.Get(ctx, id)
			switch {
			case err == nil:
				existing = d
			case !apperrors.Is(err, apperrors.KindNotFound):
				return "", err
			}
		} else {
			return "", apperrors.FieldError("id", "expected a uuid or a row placeholder")
		}
	}

	m := map[string]interface{}{}
	if existing != nil {
		var err error
		if m, err = toMap(existing); err != nil {
			return "", err
		}
	}

	for _, h := range r.ds.Headers {
		if h == "id" || exportOnly[h] || strings.HasPrefix(h, content.ColumnPrefix) {
			continue
		}
		c, ok := r.res.column(h)
		if !ok {
			continue
		}
		value, err := r.resolve(ctx, tx, c, record[h])
		if err != nil {
			if appErr, ok := err.(*apperrors.Error); ok {
				for field, messages := range appErr.Fields {
					for _, msg := range messages {
						fields.Add(field, msg)
					}
				}
				continue
			}
			return "", err
		}
		m[c.Field] = value
	}

	if err := r.content(ctx, tx, m, record, fields); err != nil {
		return "", err
	}
	if fields.HasFields() {
		return "", fields
	}

	data, err := json.Marshal(m)
	if err != nil {
		return "", err
	}
	d := models.NewDevice(r.kind)
	if err := json.Unmarshal(data, d); err != nil {
		return "", apperrors.Validation(err.Error())
	}
	d.Core().ID = id

	if existing != nil {
		return "update", svc.Update(ctx, r.user, d)
	}
	if err := svc.Create(ctx, r.user, d); err != nil {
		return "", err
	}
	if slot > 0 {
		r.placeholders[slot] = d.Core().ID
	}
	return "new", nil
}

// resolve converts one cell to the JSON value of column c. Foreign keys
// are looked up by their key; references accept row placeholders of
// earlier rows in the same dataset.
func (r *importRun) resolve(ctx context.Context, tx repository.Store, c column, cell string) (json.RawMessage, error) {
	cell = strings.TrimSpace(cell)
	if c.FK != nil {
		if cell == "" {
			return json.RawMessage("null"), nil
		}
		var (
			id  *uuid.UUID
			err error
		)
		if c.FK.Table == "device_types" {
			var dt *models.DeviceType
			dt, err = tx.DeviceTypes().GetByCode(ctx, cell)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				err = nil
			} else if err == nil {
				id = &dt.ID
			}
		} else {
			id, err = tx.Lookups().IDByKey(ctx, c.FK.Table, c.FK.Key, cell)
		}
		if err != nil {
			return nil, pkgerrors.Wrapf(err, "resolving %s", c.Name)
		}
		if id == nil {
			return nil, apperrors.FieldError(c.Name, fmt.Sprintf("%q does not exist", cell))
		}
		return json.Marshal(id.String())
	}

	if isReference(c.Type) && cell != "" {
		if n, ok := placeholder(cell); ok {
			if !r.placeholderAllowed(c.Field) {
				return nil, apperrors.FieldError(c.Name, "row placeholders can only reference rows of the same kind")
			}
			target, ok := r.placeholders[n]
			if !ok {
				return nil, apperrors.FieldError(c.Name, fmt.Sprintf("no earlier row has placeholder %d", n))
			}
			return json.Marshal(target.String())
		}
		if _, err := uuid.Parse(cell); err != nil {
			return nil, apperrors.FieldError(c.Name, "expected a uuid")
		}
	}

	value, err := decodeCell(cell, c.Type)
	if err != nil {
		return nil, apperrors.FieldError(c.Name, err.Error())
	}
	return value, nil
}

func (r *importRun) placeholderAllowed(field string) bool {
	if field == "replaces" {
		return true
	}
	for _, ref := range models.Info(r.kind).Parents {
		if ref.Field == field && ref.Target == r.kind {
			return true
		}
	}
	return false
}

// content rebuilds content_s from the content columns, using the schema
// of the row's device type.
func (r *importRun) content(ctx context.Context, tx repository.Store, m map[string]interface{}, record map[string]string, fields *apperrors.Error) error {
	cells := map[string]interface{}{}
	filled := false
	for h, v := range record {
		if strings.HasPrefix(h, content.ColumnPrefix) {
			cells[h] = v
			filled = filled || strings.TrimSpace(v) != ""
		}
	}
	if len(cells) == 0 {
		return nil
	}
	if jsonBool(m["missing_content"]) && !filled {
		m["content_s"] = nil
		return nil
	}

	typeID, _ := uuid.Parse(jsonString(m["device_type"]))
	if typeID == uuid.Nil {
		if filled {
			fields.Add("content_s", "content requires a device type")
		}
		return nil
	}
	dt, err := tx.DeviceTypes().Get(ctx, typeID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return pkgerrors.Wrap(err, "loading device type")
	}
	schema, err := content.ParseSchema(dt.ContentSchema)
	if err != nil {
		return pkgerrors.Wrapf(err, "device type %s", dt.Code)
	}
	if schema == nil {
		if filled {
			fields.Add("content_s", fmt.Sprintf("device type %s has no content schema", dt.Code))
		}
		m["content_s"] = nil
		return nil
	}
	obj, ok, errs := content.Reassemble(cells, schema)
	for _, e := range errs {
		field := "content_s"
		if e.Path != "" {
			field = content.ColumnPrefix + e.Path
		}
		fields.Add(field, e.Message)
	}
	if ok && len(errs) == 0 {
		m["content_s"] = obj
	}
	return nil
}

// jsonString reads a string from a row map value, which is either decoded
// JSON from the stored device or raw JSON from the dataset.
func jsonString(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case json.RawMessage:
		var s string
		if json.Unmarshal(x, &s) == nil {
			return s
		}
	}
	return ""
}

func jsonBool(v interface{}) bool {
	switch x := v.(type) {
	case bool:
		return x
	case json.RawMessage:
		var b bool
		return json.Unmarshal(x, &b) == nil && b
	}
	return false
}
