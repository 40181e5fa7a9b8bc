// Package memstore is an in-memory repository.Store for tests. Rows are
// stored as JSON clones so callers never share memory with the store, and
// a failed Transaction restores the previous state.
package memstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"infra-registry/internal/geometry"
	"infra-registry/internal/models"
	"infra-registry/internal/repository"
)

type state struct {
	devices     map[models.Kind]map[uuid.UUID]models.Device
	seq         map[uuid.UUID]int
	edges       []models.DeviceReplacement
	plans       map[uuid.UUID]models.Plan
	logs        map[uuid.UUID]models.PlanGeometryImportLog
	deviceTypes map[uuid.UUID]models.DeviceType
	audit       []models.AuditLog
	catalog     map[string]map[uuid.UUID]map[string]string
	next        int
}

func (s *state) clone() *state {
	c := &state{
		devices:     make(map[models.Kind]map[uuid.UUID]models.Device, len(s.devices)),
		seq:         make(map[uuid.UUID]int, len(s.seq)),
		edges:       append([]models.DeviceReplacement(nil), s.edges...),
		plans:       make(map[uuid.UUID]models.Plan, len(s.plans)),
		logs:        make(map[uuid.UUID]models.PlanGeometryImportLog, len(s.logs)),
		deviceTypes: make(map[uuid.UUID]models.DeviceType, len(s.deviceTypes)),
		audit:       append([]models.AuditLog(nil), s.audit...),
		catalog:     make(map[string]map[uuid.UUID]map[string]string, len(s.catalog)),
		next:        s.next,
	}
	for k, rows := range s.devices {
		c.devices[k] = make(map[uuid.UUID]models.Device, len(rows))
		for id, d := range rows {
			c.devices[k][id] = d
		}
	}
	for id, n := range s.seq {
		c.seq[id] = n
	}
	for id, p := range s.plans {
		c.plans[id] = p
	}
	for id, l := range s.logs {
		c.logs[id] = l
	}
	for id, dt := range s.deviceTypes {
		c.deviceTypes[id] = dt
	}
	for table, rows := range s.catalog {
		c.catalog[table] = make(map[uuid.UUID]map[string]string, len(rows))
		for id, cols := range rows {
			c.catalog[table][id] = cols
		}
	}
	return c
}

// Store implements repository.Store in memory.
type Store struct {
	mu    *sync.Mutex
	state **state
	inTx  bool
}

func New() *Store {
	st := &state{
		devices:     make(map[models.Kind]map[uuid.UUID]models.Device),
		seq:         make(map[uuid.UUID]int),
		plans:       make(map[uuid.UUID]models.Plan),
		logs:        make(map[uuid.UUID]models.PlanGeometryImportLog),
		deviceTypes: make(map[uuid.UUID]models.DeviceType),
		catalog:     make(map[string]map[uuid.UUID]map[string]string),
	}
	return &Store{mu: &sync.Mutex{}, state: &st}
}

func (s *Store) st() *state { return *s.state }

// AddCatalogRow registers a row of a lookup table such as "owners" with
// its key columns.
func (s *Store) AddCatalogRow(table string, id uuid.UUID, columns map[string]string) {
	if columns == nil {
		columns = map[string]string{}
	}
	st := s.st()
	if st.catalog[table] == nil {
		st.catalog[table] = make(map[uuid.UUID]map[string]string)
	}
	st.catalog[table][id] = columns
}

// AuditLog returns every audit row written so far.
func (s *Store) AuditLog() []models.AuditLog {
	return append([]models.AuditLog(nil), s.st().audit...)
}

// Edges returns the stored replacement edges.
func (s *Store) Edges() []models.DeviceReplacement {
	return append([]models.DeviceReplacement(nil), s.st().edges...)
}

// Raw returns a stored device regardless of is_active.
func (s *Store) Raw(k models.Kind, id uuid.UUID) models.Device {
	d, ok := s.st().devices[k][id]
	if !ok {
		return nil
	}
	return cloneDevice(d)
}

// RawPlan returns a stored plan regardless of is_active.
func (s *Store) RawPlan(id uuid.UUID) (models.Plan, bool) {
	p, ok := s.st().plans[id]
	return p, ok
}

// ImportLogs returns the stored plan geometry import logs.
func (s *Store) ImportLogs() []models.PlanGeometryImportLog {
	var out []models.PlanGeometryImportLog
	for _, l := range s.st().logs {
		out = append(out, l)
	}
	return out
}

func (s *Store) Transaction(ctx context.Context, fn func(tx repository.Store) error) error {
	if !s.inTx {
		s.mu.Lock()
		defer s.mu.Unlock()
	}
	snapshot := s.st().clone()
	tx := &Store{mu: s.mu, state: s.state, inTx: true}
	if err := fn(tx); err != nil {
		*s.state = snapshot
		return err
	}
	return nil
}

func (s *Store) Devices(k models.Kind) repository.DeviceStore { return &devices{s: s, kind: k} }
func (s *Store) Tables() repository.TableStore                { return &tables{s: s} }
func (s *Store) Replacements() repository.ReplacementStore    { return &replacements{s: s} }
func (s *Store) Plans() repository.PlanStore                  { return &plans{s: s} }
func (s *Store) DeviceTypes() repository.DeviceTypeStore      { return &deviceTypes{s: s} }
func (s *Store) Audit() repository.AuditStore                 { return &audit{s: s} }
func (s *Store) Lookups() repository.LookupStore              { return &lookups{s: s} }

func cloneDevice(d models.Device) models.Device {
	out := models.NewDevice(d.Kind())
	data, err := json.Marshal(d)
	if err != nil {
		panic(err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		panic(err)
	}
	if p, ok := out.(models.PlannedDevice); ok {
		p.Planned().Replaces, p.Planned().ReplacedBy = nil, nil
	}
	return out
}

type devices struct {
	s    *Store
	kind models.Kind
}

func (d *devices) rows() map[uuid.UUID]models.Device {
	st := d.s.st()
	if st.devices[d.kind] == nil {
		st.devices[d.kind] = make(map[uuid.UUID]models.Device)
	}
	return st.devices[d.kind]
}

func (d *devices) Kind() models.Kind { return d.kind }

func (d *devices) Get(ctx context.Context, id uuid.UUID) (models.Device, error) {
	row, ok := d.rows()[id]
	if !ok || !row.Core().IsActive {
		return nil, gorm.ErrRecordNotFound
	}
	return cloneDevice(row), nil
}

func (d *devices) List(ctx context.Context, f repository.DeviceFilter) ([]models.Device, int64, error) {
	st := d.s.st()
	var matched []models.Device
	for _, row := range d.rows() {
		if d.match(row, f) {
			matched = append(matched, row)
		}
	}
	sort.Slice(matched, func(i, j int) bool {
		return st.seq[matched[i].Core().ID] < st.seq[matched[j].Core().ID]
	})
	total := int64(len(matched))
	if f.Offset > 0 {
		if f.Offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[f.Offset:]
		}
	}
	if f.Limit > 0 && len(matched) > f.Limit {
		matched = matched[:f.Limit]
	}
	out := make([]models.Device, len(matched))
	for i, row := range matched {
		out[i] = cloneDevice(row)
	}
	return out, total, nil
}

func (d *devices) match(row models.Device, f repository.DeviceFilter) bool {
	base := row.Core()
	if !base.IsActive {
		return false
	}
	if len(f.IDs) > 0 {
		found := false
		for _, id := range f.IDs {
			found = found || id == base.ID
		}
		if !found {
			return false
		}
	}
	if f.PlanID != nil {
		p, ok := row.(models.PlannedDevice)
		if !ok || p.Planned().PlanID == nil || *p.Planned().PlanID != *f.PlanID {
			return false
		}
	}
	if f.DevicePlanID != nil {
		r, ok := row.(models.RealDevice)
		if !ok || r.Realized().DevicePlanID == nil || *r.Realized().DevicePlanID != *f.DevicePlanID {
			return false
		}
	}
	if f.DeviceTypeID != nil && (base.DeviceTypeID == nil || *base.DeviceTypeID != *f.DeviceTypeID) {
		return false
	}
	if f.DeviceTypeCode != "" {
		dt, ok := d.s.st().deviceTypes[uuidOrNil(base.DeviceTypeID)]
		if !ok || dt.Code != f.DeviceTypeCode {
			return false
		}
	}
	if f.SourceName != "" && base.SourceName != f.SourceName {
		return false
	}
	if f.SourceID != "" && base.SourceID != f.SourceID {
		return false
	}
	if f.Lifecycle != "" && string(base.Lifecycle) != f.Lifecycle {
		return false
	}
	if f.ResponsibleEntityID != nil && (base.ResponsibleEntityID == nil || *base.ResponsibleEntityID != *f.ResponsibleEntityID) {
		return false
	}
	if f.IsReplaced != nil && d.kind.IsPlan() {
		replaced := false
		for _, e := range d.s.st().edges {
			replaced = replaced || (e.Kind == d.kind.String() && e.OldID == base.ID)
		}
		if replaced != *f.IsReplaced {
			return false
		}
	}
	return true
}

func (d *devices) sourceTaken(base *models.DeviceBase) bool {
	if !base.HasSource() {
		return false
	}
	for id, row := range d.rows() {
		other := row.Core()
		if id != base.ID && other.IsActive && other.SourceName == base.SourceName && other.SourceID == base.SourceID {
			return true
		}
	}
	return false
}

func (d *devices) Create(ctx context.Context, dev models.Device) error {
	base := dev.Core()
	if base.ID == uuid.Nil {
		base.ID = uuid.New()
	}
	if _, exists := d.rows()[base.ID]; exists || d.sourceTaken(base) {
		return gorm.ErrDuplicatedKey
	}
	if base.CreatedAt.IsZero() {
		base.CreatedAt = time.Now()
	}
	st := d.s.st()
	st.next++
	st.seq[base.ID] = st.next
	d.rows()[base.ID] = cloneDevice(dev)
	return nil
}

func (d *devices) Save(ctx context.Context, dev models.Device) error {
	base := dev.Core()
	if d.sourceTaken(base) {
		return gorm.ErrDuplicatedKey
	}
	if _, exists := d.rows()[base.ID]; !exists {
		return d.Create(ctx, dev)
	}
	d.rows()[base.ID] = cloneDevice(dev)
	return nil
}

func (d *devices) SoftDelete(ctx context.Context, id uuid.UUID, by *uuid.UUID, at time.Time) (bool, error) {
	row, ok := d.rows()[id]
	if !ok || !row.Core().IsActive {
		return false, nil
	}
	c := cloneDevice(row)
	base := c.Core()
	base.IsActive, base.DeletedAt, base.DeletedByID, base.UpdatedAt = false, &at, by, at
	d.rows()[id] = c
	return true, nil
}

func (d *devices) CreateIgnoringSource(ctx context.Context, items []models.Device) (int64, error) {
	var n int64
	for _, item := range items {
		if d.sourceTaken(item.Core()) {
			continue
		}
		if err := d.Create(ctx, item); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (d *devices) FindBySource(ctx context.Context, sourceName string, sourceIDs []string) ([]models.Device, error) {
	want := make(map[string]bool, len(sourceIDs))
	for _, id := range sourceIDs {
		want[id] = true
	}
	var out []models.Device
	for _, row := range d.rows() {
		base := row.Core()
		if base.IsActive && base.SourceName == sourceName && want[base.SourceID] {
			out = append(out, cloneDevice(row))
		}
	}
	return out, nil
}

// UpdateColumns applies columns through the JSON form of the row. Keys are
// JSON field names, which match the column names of plain fields.
func (d *devices) UpdateColumns(ctx context.Context, id uuid.UUID, columns map[string]interface{}) error {
	row, ok := d.rows()[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	data, err := json.Marshal(row)
	if err != nil {
		return err
	}
	m := make(map[string]interface{})
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}
	for k, v := range columns {
		m[jsonField(k)] = v
	}
	data, err = json.Marshal(m)
	if err != nil {
		return err
	}
	c := models.NewDevice(d.kind)
	if err := json.Unmarshal(data, c); err != nil {
		return err
	}
	d.rows()[id] = c
	return nil
}

var columnFields = map[string]string{
	"owner_id":              "owner",
	"device_type_id":        "device_type",
	"mount_type_id":         "mount_type",
	"responsible_entity_id": "responsible_entity",
	"device_plan_id":        "device_plan",
	"plan_id":               "plan",
	"parent_id":             "parent",
	"mount_real_id":         "mount_real",
	"mount_plan_id":         "mount_plan",
	"traffic_sign_plan_id":  "traffic_sign_plan",
	"traffic_sign_real_id":  "traffic_sign_real",
	"order_index":           "order",
	"created_by_id":         "created_by",
	"updated_by_id":         "updated_by",
	"deleted_by_id":         "deleted_by",
}

func uuidOrNil(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}

func jsonField(column string) string {
	if f, ok := columnFields[column]; ok {
		return f
	}
	return column
}

type tables struct {
	s *Store
}

func (t *tables) rows(k models.Kind) map[uuid.UUID]models.Device {
	return (&devices{s: t.s, kind: k}).rows()
}

func (t *tables) ActiveExists(ctx context.Context, k models.Kind, id uuid.UUID) (bool, error) {
	row, ok := t.rows(k)[id]
	return ok && row.Core().IsActive, nil
}

func (t *tables) SourceTaken(ctx context.Context, k models.Kind, name, sourceID string, exclude uuid.UUID) (bool, error) {
	base := &models.DeviceBase{ID: exclude, SourceIdentity: models.SourceIdentity{SourceName: name, SourceID: sourceID}}
	return (&devices{s: t.s, kind: k}).sourceTaken(base), nil
}

func (t *tables) SoftDeleteChildren(ctx context.Context, k models.Kind, column string, parentID uuid.UUID, by *uuid.UUID, at time.Time) ([]uuid.UUID, error) {
	field := jsonField(column)
	var ids []uuid.UUID
	for id, row := range t.rows(k) {
		if !row.Core().IsActive {
			continue
		}
		data, _ := json.Marshal(row)
		m := map[string]interface{}{}
		_ = json.Unmarshal(data, &m)
		if v, _ := m[field].(string); v == parentID.String() {
			c := cloneDevice(row)
			base := c.Core()
			base.IsActive, base.DeletedAt, base.DeletedByID, base.UpdatedAt = false, &at, by, at
			t.rows(k)[id] = c
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (t *tables) ActiveRealFor(ctx context.Context, realKind models.Kind, planDeviceID uuid.UUID) (*uuid.UUID, error) {
	for id, row := range t.rows(realKind) {
		r, ok := row.(models.RealDevice)
		if ok && row.Core().IsActive && r.Realized().DevicePlanID != nil && *r.Realized().DevicePlanID == planDeviceID {
			found := id
			return &found, nil
		}
	}
	return nil, nil
}

func (t *tables) RealsForPlans(ctx context.Context, realKind models.Kind, planDeviceIDs []uuid.UUID) (map[uuid.UUID]uuid.UUID, error) {
	out := make(map[uuid.UUID]uuid.UUID)
	for _, pid := range planDeviceIDs {
		id, _ := t.ActiveRealFor(ctx, realKind, pid)
		if id != nil {
			out[pid] = *id
		}
	}
	return out, nil
}

func (t *tables) MoveReals(ctx context.Context, realKind models.Kind, from, to uuid.UUID) error {
	for id, row := range t.rows(realKind) {
		r, ok := row.(models.RealDevice)
		if ok && row.Core().IsActive && r.Realized().DevicePlanID != nil && *r.Realized().DevicePlanID == from {
			c := cloneDevice(row)
			target := to
			c.(models.RealDevice).Realized().DevicePlanID = &target
			t.rows(realKind)[id] = c
		}
	}
	return nil
}

func (t *tables) CountDeviceTypeReferences(ctx context.Context, k models.Kind, deviceTypeID uuid.UUID) (int64, error) {
	var n int64
	for _, row := range t.rows(k) {
		base := row.Core()
		if base.IsActive && base.DeviceTypeID != nil && *base.DeviceTypeID == deviceTypeID {
			n++
		}
	}
	return n, nil
}

func (t *tables) PlanDeviceLocations(ctx context.Context, planID uuid.UUID) ([]geometry.Geometry, error) {
	var out []geometry.Geometry
	for _, k := range models.PlanKinds() {
		for _, row := range t.rows(k) {
			p := row.(models.PlannedDevice)
			if row.Core().IsActive && p.Planned().PlanID != nil && *p.Planned().PlanID == planID && !row.Core().Location.IsNull() {
				out = append(out, row.Core().Location)
			}
		}
	}
	return out, nil
}

func (t *tables) PlanIDOf(ctx context.Context, k models.Kind, id uuid.UUID) (*uuid.UUID, error) {
	row, ok := t.rows(k)[id]
	if !ok {
		return nil, nil
	}
	if p, ok := row.(models.PlannedDevice); ok {
		return p.Planned().PlanID, nil
	}
	return nil, nil
}

type replacements struct {
	s *Store
}

func (r *replacements) Create(ctx context.Context, edge *models.DeviceReplacement) error {
	for _, e := range r.s.st().edges {
		if e.Kind == edge.Kind && (e.OldID == edge.OldID || e.NewID == edge.NewID) {
			return gorm.ErrDuplicatedKey
		}
	}
	if edge.ID == uuid.Nil {
		edge.ID = uuid.New()
	}
	r.s.st().edges = append(r.s.st().edges, *edge)
	return nil
}

func (r *replacements) find(match func(models.DeviceReplacement) bool) *models.DeviceReplacement {
	for _, e := range r.s.st().edges {
		if match(e) {
			found := e
			return &found
		}
	}
	return nil
}

func (r *replacements) Predecessor(ctx context.Context, k models.Kind, id uuid.UUID) (*models.DeviceReplacement, error) {
	return r.find(func(e models.DeviceReplacement) bool { return e.Kind == k.String() && e.NewID == id }), nil
}

func (r *replacements) Successor(ctx context.Context, k models.Kind, id uuid.UUID) (*models.DeviceReplacement, error) {
	return r.find(func(e models.DeviceReplacement) bool { return e.Kind == k.String() && e.OldID == id }), nil
}

func (r *replacements) Delete(ctx context.Context, edge *models.DeviceReplacement) error {
	st := r.s.st()
	kept := st.edges[:0]
	for _, e := range st.edges {
		if e.ID != edge.ID {
			kept = append(kept, e)
		}
	}
	st.edges = kept
	return nil
}

func (r *replacements) EdgesFor(ctx context.Context, k models.Kind, ids []uuid.UUID) ([]models.DeviceReplacement, error) {
	want := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var out []models.DeviceReplacement
	for _, e := range r.s.st().edges {
		if e.Kind == k.String() && (want[e.OldID] || want[e.NewID]) {
			out = append(out, e)
		}
	}
	return out, nil
}

type plans struct {
	s *Store
}

func (p *plans) CreatePlan(ctx context.Context, plan *models.Plan) error {
	if plan.ID == uuid.Nil {
		plan.ID = uuid.New()
	}
	if taken, _ := p.DiaryNumberTaken(ctx, plan.DiaryNumber, plan.ID); taken && plan.DiaryNumber != "" {
		return gorm.ErrDuplicatedKey
	}
	st := p.s.st()
	st.next++
	st.seq[plan.ID] = st.next
	st.plans[plan.ID] = *plan
	return nil
}

func (p *plans) GetPlan(ctx context.Context, id uuid.UUID) (*models.Plan, error) {
	plan, ok := p.s.st().plans[id]
	if !ok || !plan.IsActive {
		return nil, gorm.ErrRecordNotFound
	}
	return &plan, nil
}

func (p *plans) FindByDiaryNumber(ctx context.Context, diaryNumber string) (*models.Plan, error) {
	for _, plan := range p.s.st().plans {
		if plan.IsActive && plan.DiaryNumber == diaryNumber {
			found := plan
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (p *plans) DiaryNumberTaken(ctx context.Context, diaryNumber string, exclude uuid.UUID) (bool, error) {
	for id, plan := range p.s.st().plans {
		if id != exclude && plan.IsActive && plan.DiaryNumber == diaryNumber {
			return true, nil
		}
	}
	return false, nil
}

func (p *plans) UpdatePlan(ctx context.Context, plan *models.Plan) error {
	p.s.st().plans[plan.ID] = *plan
	return nil
}

func (p *plans) UpdateLocation(ctx context.Context, id uuid.UUID, location geometry.Geometry) error {
	plan, ok := p.s.st().plans[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	plan.Location = location
	p.s.st().plans[id] = plan
	return nil
}

func (p *plans) SoftDeletePlan(ctx context.Context, id uuid.UUID, by *uuid.UUID, at time.Time) (bool, error) {
	plan, ok := p.s.st().plans[id]
	if !ok || !plan.IsActive {
		return false, nil
	}
	plan.IsActive, plan.DeletedAt, plan.DeletedByID = false, &at, by
	p.s.st().plans[id] = plan
	return true, nil
}

func (p *plans) ListPlans(ctx context.Context, f repository.PlanFilter) ([]models.Plan, int64, error) {
	st := p.s.st()
	var out []models.Plan
	for _, plan := range st.plans {
		if !plan.IsActive || (f.DecisionID != "" && plan.DecisionID != f.DecisionID) || (f.DiaryNumber != "" && plan.DiaryNumber != f.DiaryNumber) {
			continue
		}
		out = append(out, plan)
	}
	sort.Slice(out, func(i, j int) bool { return st.seq[out[i].ID] < st.seq[out[j].ID] })
	return out, int64(len(out)), nil
}

func (p *plans) DecisionIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string)
	for _, id := range ids {
		if plan, ok := p.s.st().plans[id]; ok {
			out[id] = plan.DecisionID
		}
	}
	return out, nil
}

func (p *plans) CreateImportLog(ctx context.Context, entry *models.PlanGeometryImportLog) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	p.s.st().logs[entry.ID] = *entry
	return nil
}

func (p *plans) FinishImportLog(ctx context.Context, entry *models.PlanGeometryImportLog) error {
	p.s.st().logs[entry.ID] = *entry
	return nil
}

type deviceTypes struct {
	s *Store
}

func (d *deviceTypes) Create(ctx context.Context, dt *models.DeviceType) error {
	if dt.ID == uuid.Nil {
		dt.ID = uuid.New()
	}
	for _, other := range d.s.st().deviceTypes {
		if other.Code == dt.Code {
			return gorm.ErrDuplicatedKey
		}
	}
	d.s.st().deviceTypes[dt.ID] = *dt
	return nil
}

func (d *deviceTypes) Get(ctx context.Context, id uuid.UUID) (*models.DeviceType, error) {
	dt, ok := d.s.st().deviceTypes[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return &dt, nil
}

func (d *deviceTypes) GetByCode(ctx context.Context, code string) (*models.DeviceType, error) {
	for _, dt := range d.s.st().deviceTypes {
		if dt.Code == code {
			found := dt
			return &found, nil
		}
	}
	for _, dt := range d.s.st().deviceTypes {
		if dt.LegacyCode == code {
			found := dt
			return &found, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (d *deviceTypes) List(ctx context.Context, targetModel string) ([]models.DeviceType, error) {
	var out []models.DeviceType
	for _, dt := range d.s.st().deviceTypes {
		if targetModel == "" || string(dt.TargetModel) == targetModel {
			out = append(out, dt)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out, nil
}

func (d *deviceTypes) Update(ctx context.Context, dt *models.DeviceType) error {
	d.s.st().deviceTypes[dt.ID] = *dt
	return nil
}

func (d *deviceTypes) Delete(ctx context.Context, id uuid.UUID) error {
	delete(d.s.st().deviceTypes, id)
	return nil
}

func (d *deviceTypes) Codes(ctx context.Context) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string)
	for id, dt := range d.s.st().deviceTypes {
		out[id] = dt.Code
	}
	return out, nil
}

type audit struct {
	s *Store
}

func (a *audit) Record(ctx context.Context, contentType string, objectID uuid.UUID, action models.AuditAction, actor *uuid.UUID, changes interface{}) error {
	entry := models.AuditLog{ID: uuid.New(), ContentType: contentType, ObjectID: objectID, Action: action, ActorID: actor, Timestamp: time.Now()}
	if changes != nil {
		data, err := json.Marshal(changes)
		if err != nil {
			return err
		}
		entry.Changes = data
	}
	a.s.st().audit = append(a.s.st().audit, entry)
	return nil
}

func (a *audit) History(ctx context.Context, contentType string, objectID uuid.UUID) ([]models.AuditLog, error) {
	var out []models.AuditLog
	for _, e := range a.s.st().audit {
		if e.ContentType == contentType && e.ObjectID == objectID {
			out = append(out, e)
		}
	}
	return out, nil
}

type lookups struct {
	s *Store
}

func (l *lookups) Exists(ctx context.Context, table string, id uuid.UUID) (bool, error) {
	_, ok := l.s.st().catalog[table][id]
	return ok, nil
}

func (l *lookups) IDByKey(ctx context.Context, table, column, value string) (*uuid.UUID, error) {
	for id, cols := range l.s.st().catalog[table] {
		if cols[column] == value {
			found := id
			return &found, nil
		}
	}
	return nil, nil
}

func (l *lookups) Keys(ctx context.Context, table, column string) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string)
	for id, cols := range l.s.st().catalog[table] {
		out[id] = cols[column]
	}
	return out, nil
}
