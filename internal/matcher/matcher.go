// Package matcher pairs realized devices with the planned devices they
// implement, by device type and distance.
package matcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"infra-registry/internal/geometry"
	"infra-registry/internal/importexport"
	"infra-registry/internal/metrics"
	"infra-registry/internal/models"
	"infra-registry/internal/repository"
)

const DefaultRelation = "device_plan_id"

const (
	ResultOK    = "ok"
	ResultSkip  = "skip"
	ResultError = "error"
)

// Options selects what to match.
type Options struct {
	Family models.Family
	// Relation is the column of the real table pointing at the plan
	// device. Defaults to device_plan_id.
	Relation    string
	MaxDistance float64
	Persist     bool
}

// Match is the outcome for one real device.
type Match struct {
	RealID     uuid.UUID  `json:"real_id"`
	PlanID     *uuid.UUID `json:"plan_id"`
	Distance   *float64   `json:"distance"`
	ResultType string     `json:"result_type"`
	Reason     string     `json:"reason"`
}

type Matcher struct {
	store   repository.Store
	metrics *metrics.Metrics
	log     *zap.Logger
	now     func() time.Time
}

func New(store repository.Store, m *metrics.Metrics, log *zap.Logger) *Matcher {
	return &Matcher{store: store, metrics: m, log: log, now: time.Now}
}

var relationPattern = regexp.MustCompile(`^[a-z][a-z_]*_id$`)

// device is the part of a real or plan row the matcher looks at.
type device struct {
	id       uuid.UUID
	key      string
	location geometry.Geometry
	relation *uuid.UUID
	decision decision
}

type candidate struct {
	plan     *device
	distance float64
}

// Run matches every active real device of the family that is not yet
// linked. Already linked plan devices are not offered again.
func (m *Matcher) Run(ctx context.Context, opts Options) ([]Match, error) {
	if opts.Relation == "" {
		opts.Relation = DefaultRelation
	}
	if !relationPattern.MatchString(opts.Relation) {
		return nil, fmt.Errorf("invalid relation column %q", opts.Relation)
	}
	if opts.MaxDistance <= 0 {
		return nil, fmt.Errorf("max distance must be positive, got %g", opts.MaxDistance)
	}
	realKind := models.Kind{Family: opts.Family, Variant: models.VariantReal}
	planKind := realKind.Counterpart()
	if models.Info(realKind).Kind != realKind {
		return nil, fmt.Errorf("unknown device family %q", opts.Family)
	}
	run := metrics.NewRunMetrics("match")

	run.StartPhase("load")
	reals, err := m.load(ctx, realKind, opts.Relation)
	if err != nil {
		return nil, err
	}
	plans, err := m.load(ctx, planKind, "")
	if err != nil {
		return nil, err
	}
	if err := m.decisions(ctx, plans); err != nil {
		return nil, err
	}
	run.EndPhase("load")

	taken := map[uuid.UUID]bool{}
	for _, r := range reals {
		if r.relation != nil {
			taken[*r.relation] = true
		}
	}
	byKey := map[string][]*device{}
	for _, p := range plans {
		if p.key != "" && !taken[p.id] && !p.location.IsNull() {
			byKey[p.key] = append(byKey[p.key], p)
		}
	}

	run.StartPhase("match")
	results := make([]Match, 0, len(reals))
	chosen := map[int]candidate{}
	claims := map[uuid.UUID][]int{}
	for _, r := range reals {
		i := len(results)
		results = append(results, Match{RealID: r.id})
		switch {
		case r.relation != nil:
			results[i].PlanID = r.relation
			results[i].ResultType, results[i].Reason = ResultSkip, "already linked"
			continue
		case r.key == "":
			results[i].ResultType, results[i].Reason = ResultSkip, "no device type"
			continue
		case r.location.IsNull():
			results[i].ResultType, results[i].Reason = ResultSkip, "no location"
			continue
		}
		best, ok := closest(r, byKey[r.key], opts.MaxDistance)
		if !ok {
			results[i].ResultType, results[i].Reason = ResultSkip, "no candidate"
			continue
		}
		chosen[i] = best
		claims[best.plan.id] = append(claims[best.plan.id], i)
	}

	for planID, idxs := range claims {
		winner := -1
		if len(idxs) == 1 {
			winner = idxs[0]
		} else {
			sort.SliceStable(idxs, func(a, b int) bool { return chosen[idxs[a]].distance < chosen[idxs[b]].distance })
			if chosen[idxs[0]].distance < chosen[idxs[1]].distance {
				winner = idxs[0]
			}
		}
		for _, i := range idxs {
			c := chosen[i]
			d := c.distance
			results[i].Distance = &d
			if i != winner {
				results[i].ResultType, results[i].Reason = ResultError, "ambiguous"
				continue
			}
			id := planID
			results[i].PlanID = &id
			results[i].ResultType, results[i].Reason = ResultOK, "matched"
		}
	}
	run.EndPhase("match")

	if opts.Persist {
		run.StartPhase("persist")
		for i := range results {
			if results[i].ResultType != ResultOK || results[i].Reason != "matched" {
				continue
			}
			if err := m.persist(ctx, realKind, opts.Relation, results[i]); err != nil {
				results[i].ResultType, results[i].Reason = ResultError, err.Error()
			}
		}
		run.EndPhase("persist")
	}

	for _, r := range results {
		run.Count(r.ResultType)
		m.metrics.IncMatchResult(realKind.String(), r.ResultType)
	}
	run.Finish()
	m.metrics.ObserveRun("match", run)
	m.log.Info("matching finished", zap.String("kind", realKind.String()), zap.String("summary", run.Summary()))
	return results, nil
}

// closest returns the nearest candidate within max. Equally near
// candidates are ordered by decision id, latest first.
func closest(r *device, plans []*device, max float64) (candidate, bool) {
	var cands []candidate
	for _, p := range plans {
		if d := geometry.Distance(r.location, p.location); d <= max {
			cands = append(cands, candidate{plan: p, distance: d})
		}
	}
	if len(cands) == 0 {
		return candidate{}, false
	}
	sort.SliceStable(cands, func(i, j int) bool {
		if cands[i].distance != cands[j].distance {
			return cands[i].distance < cands[j].distance
		}
		return cands[j].plan.decision.less(cands[i].plan.decision)
	})
	return cands[0], true
}

func (m *Matcher) persist(ctx context.Context, k models.Kind, relation string, match Match) error {
	return m.store.Transaction(ctx, func(tx repository.Store) error {
		err := tx.Devices(k).UpdateColumns(ctx, match.RealID, map[string]interface{}{
			relation:     *match.PlanID,
			"updated_at": m.now(),
		})
		return pkgerrors.Wrapf(err, "linking %s %s", k, match.RealID)
	})
}

// load reads the active devices of kind k. Replaced plan devices are left
// out.
func (m *Matcher) load(ctx context.Context, k models.Kind, relation string) ([]*device, error) {
	f := repository.DeviceFilter{}
	if k.IsPlan() {
		notReplaced := false
		f.IsReplaced = &notReplaced
	}
	items, _, err := m.store.Devices(k).List(ctx, f)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "listing %s", k.Table())
	}
	parentTypes, err := m.parentTypes(ctx, k, items)
	if err != nil {
		return nil, err
	}

	out := make([]*device, 0, len(items))
	for _, item := range items {
		base := item.Core()
		d := &device{id: base.ID, location: base.Location}
		fields, err := jsonFields(item)
		if err != nil {
			return nil, err
		}
		switch k.Family {
		case models.FamilyMount:
			d.key = idString(base.MountTypeID)
		case models.FamilyAdditionalSign:
			if base.DeviceTypeID != nil {
				d.key = base.DeviceTypeID.String() + "/" + parentTypes[fieldID(fields, "parent")]
			}
		default:
			d.key = idString(base.DeviceTypeID)
		}
		if relation != "" {
			if id := fieldID(fields, strings.TrimSuffix(relation, "_id")); id != uuid.Nil {
				d.relation = &id
			}
		}
		if k.IsPlan() {
			if p, ok := item.(models.PlannedDevice); ok && p.Planned().PlanID != nil {
				d.decision.planID = *p.Planned().PlanID
			}
		}
		out = append(out, d)
	}
	return out, nil
}

// parentTypes maps the parent traffic signs of additional signs to their
// device type ids.
func (m *Matcher) parentTypes(ctx context.Context, k models.Kind, items []models.Device) (map[uuid.UUID]string, error) {
	out := map[uuid.UUID]string{}
	if k.Family != models.FamilyAdditionalSign {
		return out, nil
	}
	var ids []uuid.UUID
	for _, item := range items {
		fields, err := jsonFields(item)
		if err != nil {
			return nil, err
		}
		if id := fieldID(fields, "parent"); id != uuid.Nil {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return out, nil
	}
	parentKind := models.Kind{Family: models.FamilyTrafficSign, Variant: k.Variant}
	parents, _, err := m.store.Devices(parentKind).List(ctx, repository.DeviceFilter{IDs: ids, IncludeReplaced: true})
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "listing %s", parentKind.Table())
	}
	for _, p := range parents {
		out[p.Core().ID] = idString(p.Core().DeviceTypeID)
	}
	return out, nil
}

func (m *Matcher) decisions(ctx context.Context, plans []*device) error {
	var ids []uuid.UUID
	for _, p := range plans {
		if p.decision.planID != uuid.Nil {
			ids = append(ids, p.decision.planID)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	byPlan, err := m.store.Plans().DecisionIDs(ctx, ids)
	if err != nil {
		return pkgerrors.Wrap(err, "loading decision ids")
	}
	for _, p := range plans {
		p.decision = parseDecision(p.decision.planID, byPlan[p.decision.planID])
	}
	return nil
}

// decision orders plans by their decision id "<year>-<number>".
// Unparsable ids sort before every parsable one.
type decision struct {
	planID uuid.UUID
	valid  bool
	year   int
	number int
}

func parseDecision(planID uuid.UUID, s string) decision {
	d := decision{planID: planID}
	parts := strings.SplitN(strings.TrimSpace(s), "-", 2)
	if len(parts) != 2 {
		return d
	}
	year, err1 := strconv.Atoi(parts[0])
	number, err2 := strconv.Atoi(parts[1])
	if err1 != nil || err2 != nil {
		return d
	}
	d.valid, d.year, d.number = true, year, number
	return d
}

func (d decision) less(o decision) bool {
	if d.valid != o.valid {
		return !d.valid
	}
	if d.year != o.year {
		return d.year < o.year
	}
	return d.number < o.number
}

func jsonFields(item models.Device) (map[string]json.RawMessage, error) {
	data, err := json.Marshal(item)
	if err != nil {
		return nil, err
	}
	out := map[string]json.RawMessage{}
	return out, json.Unmarshal(data, &out)
}

func fieldID(fields map[string]json.RawMessage, name string) uuid.UUID {
	var s string
	if err := json.Unmarshal(fields[name], &s); err != nil {
		return uuid.Nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}

func idString(id *uuid.UUID) string {
	if id == nil {
		return ""
	}
	return id.String()
}

// WriteCSV writes matches as a semicolon-separated report.
func WriteCSV(w io.Writer, matches []Match) error {
	ds := importexport.NewDataset([]string{"real_id", "plan_id", "distance", "result_type", "reason"})
	for _, m := range matches {
		row := map[string]string{
			"real_id":     m.RealID.String(),
			"result_type": m.ResultType,
			"reason":      m.Reason,
		}
		if m.PlanID != nil {
			row["plan_id"] = m.PlanID.String()
		}
		if m.Distance != nil {
			row["distance"] = strconv.FormatFloat(math.Round(*m.Distance*1000)/1000, 'f', -1, 64)
		}
		ds.Append(row)
	}
	return ds.WriteCSV(w)
}
