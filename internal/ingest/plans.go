package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"infra-registry/internal/apperrors"
	"infra-registry/internal/geometry"
	"infra-registry/internal/importexport"
	"infra-registry/internal/models"
	"infra-registry/internal/repository"
	"infra-registry/internal/services"
)

// Plan update file columns.
const (
	colDecisionNumber = "Päätösnumero"
	colDecisionDate   = "Päätöspäivä"
	colName           = "Nimi"
	colDiaryNumber    = "Diaarinumero"
	colDrawings       = "Piirustusnumerot"
	colLink           = "Linkki"
)

// Plan geometry file columns.
const (
	colWKT        = "wkt_geom"
	colDrawing    = "piirustusnumero"
	colDecisionID = "decision_id"
	colDiary      = "diaari"
)

const planObject = "plan"

// UpdatePlans creates or updates plans from a decision listing, matching
// rows to plans by diary number. Rows are applied through the plan service
// as user.
func UpdatePlans(ctx context.Context, plans *services.PlanService, ds *importexport.Dataset, user *models.User, log *zap.Logger) ([]Result, error) {
	if user == nil {
		return nil, apperrors.Unauthorized()
	}
	var results []Result
	for i := range ds.Rows {
		rw := row(ds.Record(i))
		diary := rw.get(colDiaryNumber)
		res, err := updatePlan(ctx, plans, rw, user)
		switch {
		case err == nil:
			results = append(results, res)
		case apperrors.KindOf(err) != apperrors.KindInternal:
			results = append(results, Result{ResultError, planObject, diary, err.Error()})
		default:
			return results, pkgerrors.Wrapf(err, "plan row %d", i+1)
		}
	}
	log.Info("plan update finished", zap.Int("rows", len(ds.Rows)))
	return results, nil
}

func updatePlan(ctx context.Context, plans *services.PlanService, rw row, user *models.User) (Result, error) {
	diary := rw.get(colDiaryNumber)
	if diary == "" {
		return Result{}, apperrors.FieldError(colDiaryNumber, "this field is required")
	}
	var date *models.Date
	if raw := rw.get(colDecisionDate); raw != "" {
		d, err := models.ParseDate(raw)
		if err != nil {
			return Result{}, apperrors.FieldError(colDecisionDate, err.Error())
		}
		date = &d
	}

	existing, err := plans.FindByDiaryNumber(ctx, diary)
	switch {
	case apperrors.Is(err, apperrors.KindNotFound):
		existing = nil
	case err != nil:
		return Result{}, err
	}
	plan := existing
	if plan == nil {
		plan = &models.Plan{DiaryNumber: diary}
	}
	plan.DecisionID = rw.get(colDecisionNumber)
	plan.DecisionDate = date
	plan.Name = rw.get(colName)
	plan.DecisionURL = rw.get(colLink)
	plan.DrawingNumbers = splitList(rw.get(colDrawings))

	if existing != nil {
		if err := plans.Update(ctx, user, plan); err != nil {
			return Result{}, err
		}
		return Result{ResultOK, planObject, diary, "updated"}, nil
	}
	if err := plans.Create(ctx, user, plan); err != nil {
		return Result{}, err
	}
	return Result{ResultOK, planObject, diary, "created"}, nil
}

func splitList(s string) pq.StringArray {
	out := pq.StringArray{}
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

var errDryRun = errors.New("dry run")

// GeometryImporter sets plan locations from drawn plan areas. Every run is
// recorded in the plan geometry import log.
type GeometryImporter struct {
	store repository.Store
	bbox  geometry.BBox
	log   *zap.Logger
	now   func() time.Time
}

func NewGeometryImporter(store repository.Store, bbox geometry.BBox, log *zap.Logger) *GeometryImporter {
	return &GeometryImporter{store: store, bbox: bbox, log: log, now: time.Now}
}

// Import groups the rows of ds by diary number and replaces the location
// of each matching plan with the union of its rows. Imported plans stop
// deriving their location from their devices. With dryRun nothing but the
// log entry is committed.
func (g *GeometryImporter) Import(ctx context.Context, filePath string, ds *importexport.Dataset, dryRun bool) ([]Result, error) {
	entry := &models.PlanGeometryImportLog{FilePath: filePath, StartTime: g.now(), DryRun: dryRun}
	if err := g.store.Plans().CreateImportLog(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(err, "creating import log")
	}

	type group struct {
		decisionID string
		drawings   []string
		geoms      []geometry.Geometry
		err        error
	}
	var order []string
	groups := map[string]*group{}
	for i := range ds.Rows {
		rw := row(ds.Record(i))
		diary := rw.get(colDiary)
		if diary == "" {
			continue
		}
		grp, ok := groups[diary]
		if !ok {
			grp = &group{}
			groups[diary] = grp
			order = append(order, diary)
		}
		if id := rw.get(colDecisionID); id != "" {
			grp.decisionID = id
		}
		if d := rw.get(colDrawing); d != "" {
			grp.drawings = append(grp.drawings, d)
		}
		gm, err := geometry.ParseEWKT(normalizeWKT(rw.get(colWKT)))
		if err != nil {
			if grp.err == nil {
				grp.err = fmt.Errorf("row %d: %v", i+1, err)
			}
			continue
		}
		grp.geoms = append(grp.geoms, geometry.Force3D(gm))
	}

	var results []Result
	err := g.store.Transaction(ctx, func(tx repository.Store) error {
		results = results[:0]
		for _, diary := range order {
			grp := groups[diary]
			res, err := g.apply(ctx, tx, diary, grp.decisionID, grp.drawings, grp.geoms, grp.err)
			if err != nil {
				return err
			}
			results = append(results, res)
		}
		if dryRun {
			return errDryRun
		}
		return nil
	})
	if err != nil && !errors.Is(err, errDryRun) {
		return nil, err
	}

	end := g.now()
	entry.EndTime = &end
	data, err := json.Marshal(Summarize(results))
	if err != nil {
		return nil, err
	}
	entry.Results = datatypes.JSON(data)
	if err := g.store.Plans().FinishImportLog(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(err, "finishing import log")
	}
	g.log.Info("plan geometry import finished",
		zap.String("file", filePath), zap.Bool("dry_run", dryRun), zap.Int("plans", len(results)))
	return results, nil
}

func (g *GeometryImporter) apply(ctx context.Context, tx repository.Store, diary, decisionID string, drawings []string, geoms []geometry.Geometry, rowErr error) (Result, error) {
	fail := func(reason string) (Result, error) {
		return Result{ResultError, planObject, diary, reason}, nil
	}
	if rowErr != nil {
		return fail(rowErr.Error())
	}
	plan, err := tx.Plans().FindByDiaryNumber(ctx, diary)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fail("plan not found")
	}
	if err != nil {
		return Result{}, pkgerrors.Wrapf(err, "loading plan %s", diary)
	}
	if decisionID != "" && plan.DecisionID != "" && decisionID != plan.DecisionID {
		return fail(fmt.Sprintf("decision_id %q does not match plan decision %q", decisionID, plan.DecisionID))
	}
	location, err := geometry.Collect(geoms...)
	if err != nil {
		return fail(err.Error())
	}
	if location.IsNull() {
		return fail("no geometry")
	}
	if err := g.bbox.Validate(location, geometry.TypeMultiPolygon); err != nil {
		return fail(err.Error())
	}
	for _, d := range drawings {
		if !contains(plan.DrawingNumbers, d) {
			plan.DrawingNumbers = append(plan.DrawingNumbers, d)
		}
	}
	plan.Location = location
	plan.DeriveLocation = false
	plan.UpdatedAt = g.now()
	if err := tx.Plans().UpdatePlan(ctx, plan); err != nil {
		return Result{}, pkgerrors.Wrapf(err, "updating plan %s", diary)
	}
	return Result{ResultOK, planObject, diary, "updated"}, nil
}

// normalizeWKT upper-cases the geometry keyword, which desktop GIS tools
// write in mixed case.
func normalizeWKT(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '('); i > 0 {
		return strings.ToUpper(s[:i]) + s[i:]
	}
	return s
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
