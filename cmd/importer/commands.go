package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"infra-registry/internal/importexport"
	"infra-registry/internal/ingest"
	"infra-registry/internal/matcher"
	"infra-registry/internal/models"
	"infra-registry/internal/repository"
)

func runIngest(e *env, args []string) int {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var mounts, signs, additional, bundle, feedPath, reportDir string
	var update bool
	fs.StringVar(&mounts, "mounts", "", "mount CSV")
	fs.StringVar(&signs, "signs", "", "sign CSV")
	fs.StringVar(&additional, "additional", "", "additional sign CSV (optional)")
	fs.StringVar(&bundle, "bundle", "", "zip or tar delivery")
	fs.StringVar(&feedPath, "feed-path", "", "delivery path on the vendor feed")
	fs.BoolVar(&update, "update", false, "rewrite devices already ingested")
	fs.StringVar(&reportDir, "report-dir", e.cfg.ReportDir, "report directory")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	var input ingest.Input
	var err error
	cleanup := func() {}
	switch {
	case feedPath != "":
		if e.cfg.IngestFeedURL == "" {
			fmt.Fprintln(os.Stderr, "INGEST_FEED_URL is not set")
			return 1
		}
		dir, tmpErr := os.MkdirTemp("", "delivery-")
		if tmpErr != nil {
			fmt.Fprintf(os.Stderr, "create temp dir: %v\n", tmpErr)
			return 1
		}
		defer os.RemoveAll(dir)
		client := ingest.NewFeedClient(e.cfg.IngestFeedURL, e.cfg.IngestFeedToken, e.log)
		if bundle, err = client.Download(e.ctx, feedPath, dir); err != nil {
			fmt.Fprintf(os.Stderr, "download: %v\n", err)
			return 1
		}
		input, cleanup, err = ingest.LoadBundle(e.ctx, bundle)
	case bundle != "":
		input, cleanup, err = ingest.LoadBundle(e.ctx, bundle)
	case mounts != "" && signs != "":
		input, err = ingest.LoadFiles(mounts, signs, additional)
	default:
		fmt.Fprintln(os.Stderr, "ingest requires --mounts and --signs, --bundle or --feed-path")
		return 1
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "load: %v\n", err)
		return 1
	}
	defer cleanup()

	in := ingest.New(e.store, ingest.Options{
		SourceName:         e.cfg.IngestSourceName,
		OwnerName:          e.cfg.IngestDefaultOwner,
		TicketMachineCodes: e.cfg.IngestTicketMachineCodes,
		SignpostsEnabled:   e.cfg.SignpostIngestEnabled,
		BBox:               e.bbox(),
	}, e.metrics, e.log)

	summary := ingest.Summary{Source: e.cfg.IngestSourceName, Started: time.Now(), Update: update}
	var results []ingest.Result
	err = ingest.Locked(e.ctx, e.locker, "ingest", lockTTL, func() error {
		var err error
		results, err = in.Run(e.ctx, input, update)
		return err
	})
	if err != nil {
		e.log.Error("ingest failed", zap.Error(err))
		return 1
	}
	return e.report(reportDir, "ingest", summary, results)
}

func runPlanUpdate(e *env, args []string) int {
	fs := flag.NewFlagSet("plans update", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var file, username, reportDir string
	fs.StringVar(&file, "file", "", "decision listing (csv or xlsx)")
	fs.StringVar(&username, "user", "", "user the plans are written as")
	fs.StringVar(&reportDir, "report-dir", e.cfg.ReportDir, "report directory")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if file == "" || username == "" {
		fmt.Fprintln(os.Stderr, "plans update requires --file and --user")
		return 1
	}
	user, err := e.users.GetByUsername(e.ctx, username)
	if err != nil {
		fmt.Fprintf(os.Stderr, "user %s: %v\n", username, err)
		return 1
	}
	ds, err := readDataset(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", file, err)
		return 1
	}

	summary := ingest.Summary{Source: file, Started: time.Now(), Update: true}
	var results []ingest.Result
	err = ingest.Locked(e.ctx, e.locker, "plans", lockTTL, func() error {
		var err error
		results, err = ingest.UpdatePlans(e.ctx, e.plans, ds, user, e.log)
		return err
	})
	if err != nil {
		e.log.Error("plan update failed", zap.Error(err))
		return 1
	}
	return e.report(reportDir, "plans", summary, results)
}

func runPlanGeometry(e *env, args []string) int {
	fs := flag.NewFlagSet("plans geometry", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var file, reportDir string
	var dryRun bool
	fs.StringVar(&file, "file", "", "plan area file with a wkt_geom column")
	fs.BoolVar(&dryRun, "dry-run", false, "validate without saving locations")
	fs.StringVar(&reportDir, "report-dir", e.cfg.ReportDir, "report directory")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if file == "" {
		fmt.Fprintln(os.Stderr, "plans geometry requires --file")
		return 1
	}
	ds, err := readDataset(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", file, err)
		return 1
	}

	summary := ingest.Summary{Source: file, Started: time.Now(), Update: !dryRun}
	var results []ingest.Result
	err = ingest.Locked(e.ctx, e.locker, "plans", lockTTL, func() error {
		var err error
		results, err = ingest.NewGeometryImporter(e.store, e.bbox(), e.log).Import(e.ctx, file, ds, dryRun)
		return err
	})
	if err != nil {
		e.log.Error("plan geometry import failed", zap.Error(err))
		return 1
	}
	return e.report(reportDir, "plan-geometry", summary, results)
}

func runMatch(e *env, args []string) int {
	fs := flag.NewFlagSet("match", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var family, relation, out string
	var maxDistance float64
	var persist bool
	fs.StringVar(&family, "family", "", "device family, e.g. traffic_sign")
	fs.StringVar(&relation, "relation", matcher.DefaultRelation, "real column pointing at the plan device")
	fs.Float64Var(&maxDistance, "max-distance", e.cfg.MatchMaxDistance, "largest accepted distance in meters")
	fs.BoolVar(&persist, "persist", false, "store accepted matches")
	fs.StringVar(&out, "out", "", "CSV report path (default stdout)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if family == "" {
		fmt.Fprintln(os.Stderr, "match requires --family")
		return 1
	}

	var matches []matcher.Match
	err := ingest.Locked(e.ctx, e.locker, "match:"+family, lockTTL, func() error {
		var err error
		matches, err = matcher.New(e.store, e.metrics, e.log).Run(e.ctx, matcher.Options{
			Family:      models.Family(family),
			Relation:    relation,
			MaxDistance: maxDistance,
			Persist:     persist,
		})
		return err
	})
	if err != nil {
		e.log.Error("match failed", zap.Error(err))
		return 1
	}
	return writeOutput(out, func(w io.Writer) error { return matcher.WriteCSV(w, matches) })
}

func runEnrich(e *env, args []string) int {
	if len(args) == 0 || args[0] != "permit-signs" {
		fmt.Fprintln(os.Stderr, "enrich supports: permit-signs")
		return 1
	}
	fs := flag.NewFlagSet("enrich permit-signs", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var reportDir string
	fs.StringVar(&reportDir, "report-dir", e.cfg.ReportDir, "report directory")
	if err := fs.Parse(args[1:]); err != nil {
		return 1
	}

	summary := ingest.Summary{Source: ingest.PermitSignCode, Started: time.Now(), Update: true}
	var results []ingest.Result
	err := ingest.Locked(e.ctx, e.locker, "ingest", lockTTL, func() error {
		var err error
		results, err = ingest.EnrichPermitSigns(e.ctx, e.store, e.log)
		return err
	})
	if err != nil {
		e.log.Error("enrichment failed", zap.Error(err))
		return 1
	}
	return e.report(reportDir, "enrich", summary, results)
}

func runExport(e *env, args []string) int {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var entity, format, plan, out string
	var template bool
	fs.StringVar(&entity, "entity", "", "device kind, e.g. traffic_sign_real")
	fs.StringVar(&format, "format", "csv", "csv or xlsx")
	fs.StringVar(&plan, "plan", "", "only devices of this plan")
	fs.BoolVar(&template, "real-template", false, "export plan devices as a real device import template")
	fs.StringVar(&out, "out", "", "output path (default stdout)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	k, ok := models.ParseKind(entity)
	if !ok {
		fmt.Fprintf(os.Stderr, "unknown entity %q\n", entity)
		return 1
	}
	f, err := importexport.ParseFormat(format)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	var filter repository.DeviceFilter
	if plan != "" {
		id, err := uuid.Parse(plan)
		if err != nil {
			fmt.Fprintf(os.Stderr, "invalid plan id %q\n", plan)
			return 1
		}
		filter.PlanID = &id
	}

	exporter := importexport.NewExporter(e.store, e.log)
	var ds *importexport.Dataset
	if template {
		ds, err = exporter.PlanRealTemplate(e.ctx, k, filter)
	} else {
		ds, err = exporter.Export(e.ctx, k, filter)
	}
	if err != nil {
		e.log.Error("export failed", zap.Error(err))
		return 1
	}
	return writeOutput(out, func(w io.Writer) error { return ds.Write(f, w) })
}

func runImport(e *env, args []string) int {
	fs := flag.NewFlagSet("import", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	var entity, file, username string
	var dryRun bool
	fs.StringVar(&entity, "entity", "", "device kind, e.g. traffic_sign_real")
	fs.StringVar(&file, "file", "", "csv or xlsx file")
	fs.StringVar(&username, "user", "", "user the rows are written as")
	fs.BoolVar(&dryRun, "dry-run", false, "validate without committing")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	k, ok := models.ParseKind(entity)
	if !ok || file == "" || username == "" {
		fmt.Fprintln(os.Stderr, "import requires a valid --entity, --file and --user")
		return 1
	}
	user, err := e.users.GetByUsername(e.ctx, username)
	if err != nil {
		fmt.Fprintf(os.Stderr, "user %s: %v\n", username, err)
		return 1
	}
	ds, err := readDataset(file)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read %s: %v\n", file, err)
		return 1
	}

	var res *importexport.Result
	err = ingest.Locked(e.ctx, e.locker, "import:"+k.String(), lockTTL, func() error {
		var err error
		res, err = importexport.NewImporter(e.store, e.devices, e.metrics, e.log).Import(e.ctx, k, ds, user, dryRun)
		return err
	})
	if err != nil {
		e.log.Error("import failed", zap.Error(err))
		return 1
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return 1
	}
	if res.Totals.Error > 0 {
		return 2
	}
	return 0
}

// report writes the run report and logs the totals. Rejected rows make the
// exit status 2.
func (e *env) report(dir, prefix string, summary ingest.Summary, results []ingest.Result) int {
	s := ingest.Summarize(results)
	s.Source, s.Started, s.Update = summary.Source, summary.Started, summary.Update
	s.Finished = time.Now()
	jsonPath, xlsxPath, err := ingest.WriteReport(dir, prefix, s, results)
	if err != nil {
		e.log.Error("failed to write report", zap.Error(err))
		return 1
	}
	e.log.Info("run finished",
		zap.String("run", prefix),
		zap.Int("results", len(results)),
		zap.Int("errors", len(s.Errors)),
		zap.String("summary", jsonPath),
		zap.String("sheet", xlsxPath),
	)
	if len(s.Errors) > 0 {
		return 2
	}
	return 0
}

func writeOutput(path string, write func(io.Writer) error) int {
	var w io.Writer = os.Stdout
	if path != "" {
		f, err := os.Create(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "create %s: %v\n", path, err)
			return 1
		}
		defer f.Close()
		w = f
	}
	if err := write(w); err != nil {
		fmt.Fprintf(os.Stderr, "write: %v\n", err)
		return 1
	}
	return 0
}
