package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"infra-registry/internal/geometry"
	"infra-registry/internal/importexport"
	"infra-registry/internal/metrics"
	"infra-registry/internal/models"
	"infra-registry/internal/repository"
)

type ResultType string

const (
	ResultOK    ResultType = "ok"
	ResultSkip  ResultType = "skip"
	ResultError ResultType = "error"
)

// Result is the outcome of one scanned row.
type Result struct {
	ResultType ResultType `json:"result_type"`
	ObjectType string     `json:"object_type"`
	ObjectID   string     `json:"object_id"`
	Reason     string     `json:"reason"`
}

// Options configures an Ingester.
type Options struct {
	SourceName         string
	OwnerName          string
	TicketMachineCodes []string
	SignpostsEnabled   bool
	BBox               geometry.BBox
}

// Input holds the scanner files of one delivery. AdditionalSigns is
// optional; its rows are classified like sign rows.
type Input struct {
	Mounts          *importexport.Dataset
	Signs           *importexport.Dataset
	AdditionalSigns *importexport.Dataset
}

// Ingester creates and updates real devices from scanner deliveries. Rows
// are identified by (source_name, source_id) so repeated runs do not
// duplicate devices.
type Ingester struct {
	store      repository.Store
	opts       Options
	classifier Classifier
	metrics    *metrics.Metrics
	log        *zap.Logger
	now        func() time.Time
}

func New(store repository.Store, opts Options, m *metrics.Metrics, log *zap.Logger) *Ingester {
	return &Ingester{
		store:      store,
		opts:       opts,
		classifier: Classifier{TicketMachineCodes: opts.TicketMachineCodes},
		metrics:    m,
		log:        log,
		now:        time.Now,
	}
}

// field is one mapped column of a scanned device.
type field struct {
	column string
	value  interface{}
}

// JSON names of reference columns.
var refFields = map[string]string{
	"device_type_id": "device_type",
	"mount_type_id":  "mount_type",
	"mount_real_id":  "mount_real",
	"parent_id":      "parent",
}

func (f field) jsonName() string {
	if name, ok := refFields[f.column]; ok {
		return name
	}
	return f.column
}

type candidate struct {
	sourceID string
	fields   []field
}

// Run ingests input. With update set, devices already ingested are
// rewritten where their mapped fields differ; otherwise they are skipped.
func (in *Ingester) Run(ctx context.Context, input Input, update bool) ([]Result, error) {
	run := metrics.NewRunMetrics("ingest")
	defer func() {
		run.Finish()
		in.metrics.ObserveRun("ingest", run)
		in.log.Info("ingest finished", zap.String("summary", run.Summary()))
	}()

	ownerID, err := in.store.Lookups().IDByKey(ctx, "owners", "name_fi", in.opts.OwnerName)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "looking up owner")
	}
	if ownerID == nil {
		return nil, fmt.Errorf("owner %q does not exist", in.opts.OwnerName)
	}
	r := &ingestRun{in: in, ownerID: *ownerID, update: update, run: run}

	run.StartPhase("mounts")
	if err := r.mounts(ctx, input.Mounts); err != nil {
		return nil, err
	}
	run.EndPhase("mounts")

	order, rows := keyed(input.Signs)
	extraOrder, extra := keyed(input.AdditionalSigns)
	for _, id := range extraOrder {
		if _, ok := rows[id]; !ok {
			order = append(order, id)
		}
		rows[id] = extra[id]
	}
	byClass := map[Class][]row{}
	for _, id := range order {
		rw := rows[id]
		class := in.classifier.Classify(rw.get(colCode))
		if class == ClassIgnore {
			r.add(Result{ResultSkip, "sign", id, fmt.Sprintf("ignored sign code %q", rw.get(colCode))})
			continue
		}
		byClass[class] = append(byClass[class], rw)
	}

	run.StartPhase("signs")
	signs := append(byClass[ClassTrafficSign], byClass[ClassTicketMachine]...)
	if err := r.signs(ctx, models.TrafficSignRealKind, signs); err != nil {
		return nil, err
	}
	if in.opts.SignpostsEnabled {
		if err := r.signs(ctx, models.SignpostRealKind, byClass[ClassSignpost]); err != nil {
			return nil, err
		}
	} else {
		for _, rw := range byClass[ClassSignpost] {
			r.add(Result{ResultSkip, models.SignpostRealKind.String(), rw.get(colID), "signpost ingest is disabled"})
		}
	}
	run.EndPhase("signs")

	run.StartPhase("additional_signs")
	if err := r.additionalSigns(ctx, byClass[ClassAdditionalSign]); err != nil {
		return nil, err
	}
	run.EndPhase("additional_signs")
	return r.results, nil
}

type ingestRun struct {
	in      *Ingester
	ownerID uuid.UUID
	update  bool
	run     *metrics.RunMetrics
	results []Result
}

func (r *ingestRun) add(res Result) {
	r.results = append(r.results, res)
	r.run.Count(string(res.ResultType))
	r.in.metrics.IncIngestResult(res.ObjectType, string(res.ResultType))
}

func (r *ingestRun) fail(k models.Kind, sourceID string, err error) {
	r.add(Result{ResultError, k.String(), sourceID, err.Error()})
}

func (r *ingestRun) mounts(ctx context.Context, ds *importexport.Dataset) error {
	k := models.MountRealKind
	order, rows := keyed(ds)
	var cands []candidate
	for _, id := range order {
		rw := rows[id]
		fields, err := r.common(rw, "")
		if err != nil {
			r.fail(k, id, err)
			continue
		}
		mountType, err := r.mountType(ctx, rw.get(colMountType))
		if err != nil {
			r.fail(k, id, err)
			continue
		}
		fields = append(fields, field{"mount_type_id", mountType})
		cands = append(cands, candidate{sourceID: id, fields: fields})
	}
	return r.upsert(ctx, k, cands)
}

// signs ingests traffic signs or signposts.
func (r *ingestRun) signs(ctx context.Context, k models.Kind, rows []row) error {
	mounts, err := r.sourceIndex(ctx, models.MountRealKind, rows, colMountID)
	if err != nil {
		return err
	}
	var cands []candidate
	for _, rw := range rows {
		id := rw.get(colID)
		fields, _, err := r.signFields(ctx, rw, mounts)
		if err != nil {
			r.fail(k, id, err)
			continue
		}
		fields = append(fields,
			field{"txt", rw.get(colText)},
			field{"value", parseValue(rw.get(colNumberCode))},
		)
		cands = append(cands, candidate{sourceID: id, fields: fields})
	}
	return r.upsert(ctx, k, cands)
}

func (r *ingestRun) additionalSigns(ctx context.Context, rows []row) error {
	k := models.AdditionalSignRealKind
	mounts, err := r.sourceIndex(ctx, models.MountRealKind, rows, colMountID)
	if err != nil {
		return err
	}
	parents, err := r.sourceIndex(ctx, models.TrafficSignRealKind, rows, colParentSign)
	if err != nil {
		return err
	}
	var cands []candidate
	for _, rw := range rows {
		id := rw.get(colID)
		parentSource := rw.get(colParentSign)
		parent, ok := parents[parentSource]
		if !ok {
			r.fail(k, id, fmt.Errorf("parent traffic sign %q not found", parentSource))
			continue
		}
		fields, dt, err := r.signFields(ctx, rw, mounts)
		if err != nil {
			r.fail(k, id, err)
			continue
		}
		fields = append(fields,
			field{"parent_id", &parent},
			field{"additional_information", additionalInformation(rw)},
			field{"missing_content", dt.HasSchema()},
			field{"content_s", nil},
		)
		cands = append(cands, candidate{sourceID: id, fields: fields})
	}
	return r.upsert(ctx, k, cands)
}

// common maps the columns shared by every scanned row.
func (r *ingestRun) common(rw row, code string) ([]field, error) {
	location, err := parseLocation(rw)
	if err != nil {
		return nil, err
	}
	if err := r.in.opts.BBox.Validate(location, geometry.TypePoint); err != nil {
		return nil, err
	}
	scannedAt, err := parseScannedAt(rw.get(colScannedAt))
	if err != nil {
		return nil, err
	}
	return []field{
		{"location", location},
		{"scanned_at", scannedAt},
		{"location_specifier", locationSpecifier(rw.get(colLocationSpecifier), code)},
	}, nil
}

// signFields maps the columns shared by sign-like rows and returns the
// resolved device type.
func (r *ingestRun) signFields(ctx context.Context, rw row, mounts map[string]uuid.UUID) ([]field, *models.DeviceType, error) {
	code := rw.get(colCode)
	fields, err := r.common(rw, code)
	if err != nil {
		return nil, nil, err
	}
	dt, err := r.deviceType(ctx, code)
	if err != nil {
		return nil, nil, err
	}
	height, err := parseHeight(rw.get(colHeight))
	if err != nil {
		return nil, nil, err
	}
	direction, err := parseDirection(rw.get(colAzimuth))
	if err != nil {
		return nil, nil, err
	}
	var mount *uuid.UUID
	if src := rw.get(colMountID); src != "" {
		id, ok := mounts[src]
		if !ok {
			return nil, nil, fmt.Errorf("mount %q not found", src)
		}
		mount = &id
	}
	fields = append(fields,
		field{"device_type_id", &dt.ID},
		field{"mount_real_id", mount},
		field{"height", height},
		field{"direction", direction},
		field{"color", parseColor(rw.get(colColor))},
	)
	return fields, dt, nil
}

func (r *ingestRun) deviceType(ctx context.Context, code string) (*models.DeviceType, error) {
	dt, err := r.in.store.DeviceTypes().GetByCode(ctx, code)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("unknown device type %q", code)
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "looking up device type")
	}
	return dt, nil
}

func (r *ingestRun) mountType(ctx context.Context, code string) (*uuid.UUID, error) {
	if code == "" {
		return nil, nil
	}
	id, err := r.in.store.Lookups().IDByKey(ctx, "mount_types", "code", code)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "looking up mount type")
	}
	if id == nil {
		return nil, fmt.Errorf("unknown mount type %q", code)
	}
	return id, nil
}

// sourceIndex maps the source ids found in column col of rows to the
// active devices of kind k carrying them.
func (r *ingestRun) sourceIndex(ctx context.Context, k models.Kind, rows []row, col string) (map[string]uuid.UUID, error) {
	var ids []string
	for _, rw := range rows {
		if v := rw.get(col); v != "" {
			ids = append(ids, v)
		}
	}
	found, err := r.in.store.Devices(k).FindBySource(ctx, r.in.opts.SourceName, ids)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "loading %s", k.Table())
	}
	out := make(map[string]uuid.UUID, len(found))
	for _, d := range found {
		out[d.Core().SourceID] = d.Core().ID
	}
	return out, nil
}

// upsert writes the candidates of kind k in one transaction. New rows are
// bulk inserted, skipping source pairs that appeared concurrently.
func (r *ingestRun) upsert(ctx context.Context, k models.Kind, cands []candidate) error {
	if len(cands) == 0 {
		return nil
	}
	var results []Result
	err := r.in.store.Transaction(ctx, func(tx repository.Store) error {
		results = results[:0]
		ids := make([]string, len(cands))
		for i, c := range cands {
			ids[i] = c.sourceID
		}
		existing, err := tx.Devices(k).FindBySource(ctx, r.in.opts.SourceName, ids)
		if err != nil {
			return pkgerrors.Wrapf(err, "loading %s", k.Table())
		}
		bySource := make(map[string]models.Device, len(existing))
		for _, d := range existing {
			bySource[d.Core().SourceID] = d
		}

		now := r.in.now()
		var fresh []models.Device
		for _, c := range cands {
			current, ok := bySource[c.sourceID]
			if !ok {
				d, err := r.newDevice(k, c, now)
				if err != nil {
					return err
				}
				fresh = append(fresh, d)
				continue
			}
			if !r.update {
				results = append(results, Result{ResultSkip, k.String(), c.sourceID, "already imported"})
				continue
			}
			columns, err := changedColumns(current, c.fields)
			if err != nil {
				return err
			}
			reason := "unchanged"
			if len(columns) > 0 {
				reason = "updated"
			}
			for _, f := range c.fields {
				if f.column == "scanned_at" {
					columns["scanned_at"] = f.value
				}
			}
			columns["updated_at"] = now
			if err := tx.Devices(k).UpdateColumns(ctx, current.Core().ID, columns); err != nil {
				return pkgerrors.Wrapf(err, "updating %s %s", k, c.sourceID)
			}
			results = append(results, Result{ResultOK, k.String(), c.sourceID, reason})
		}

		inserted, err := tx.Devices(k).CreateIgnoringSource(ctx, fresh)
		if err != nil {
			return pkgerrors.Wrapf(err, "inserting %s", k.Table())
		}
		if int(inserted) < len(fresh) {
			r.in.log.Warn("source ids inserted concurrently",
				zap.String("kind", k.String()), zap.Int("skipped", len(fresh)-int(inserted)))
		}
		for _, d := range fresh {
			results = append(results, Result{ResultOK, k.String(), d.Core().SourceID, "created"})
		}
		return nil
	})
	if err != nil {
		r.in.log.Error("ingest batch failed", zap.String("kind", k.String()), zap.Error(err))
		for _, c := range cands {
			r.fail(k, c.sourceID, err)
		}
		return nil
	}
	for _, res := range results {
		r.add(res)
	}
	return nil
}

func (r *ingestRun) newDevice(k models.Kind, c candidate, now time.Time) (models.Device, error) {
	m := make(map[string]interface{}, len(c.fields))
	for _, f := range c.fields {
		if f.value != nil {
			m[f.jsonName()] = f.value
		}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, err
	}
	d := models.NewDevice(k)
	if err := json.Unmarshal(data, d); err != nil {
		return nil, pkgerrors.Wrapf(err, "mapping %s %s", k, c.sourceID)
	}
	base := d.Core()
	base.ID = uuid.New()
	base.CreatedAt, base.UpdatedAt = now, now
	base.IsActive = true
	base.OwnerID = r.ownerID
	base.Lifecycle = models.LifecycleActive
	base.SourceName, base.SourceID = r.in.opts.SourceName, c.sourceID
	return d, nil
}

// Fields of enriched additional signs that a rescan must not overwrite.
var contentFields = map[string]bool{
	"content_s": true, "missing_content": true, "additional_information": true,
}

// changedColumns compares the mapped fields with current through their JSON
// form and returns the columns that differ. scanned_at is not compared.
func changedColumns(current models.Device, fields []field) (map[string]interface{}, error) {
	data, err := json.Marshal(current)
	if err != nil {
		return nil, err
	}
	have := map[string]json.RawMessage{}
	if err := json.Unmarshal(data, &have); err != nil {
		return nil, err
	}
	enriched := len(current.Core().ContentS) > 0 && string(current.Core().ContentS) != "null"

	out := map[string]interface{}{}
	for _, f := range fields {
		if f.column == "scanned_at" || (enriched && contentFields[f.column]) {
			continue
		}
		want, err := json.Marshal(f.value)
		if err != nil {
			return nil, err
		}
		got := have[f.jsonName()]
		if len(got) == 0 {
			got = json.RawMessage("null")
		}
		if !bytes.Equal(compact(got), compact(want)) {
			out[f.column] = f.value
		}
	}
	return out, nil
}

func compact(raw []byte) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}
