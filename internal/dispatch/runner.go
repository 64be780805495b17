// Package dispatch orchestrates one bridge cycle: query due maintenance
// records, transform each into a workforce assignment, upload the batch,
// reconcile the results, and notify stakeholders.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/blue-raster/workforce-bridge/internal/assignment"
	"github.com/blue-raster/workforce-bridge/internal/codes"
	"github.com/blue-raster/workforce-bridge/internal/config"
	"github.com/blue-raster/workforce-bridge/internal/geometry"
	"github.com/blue-raster/workforce-bridge/internal/notify"
	"github.com/blue-raster/workforce-bridge/internal/runlog"
	"github.com/blue-raster/workforce-bridge/internal/timeutil"
	"github.com/blue-raster/workforce-bridge/pkg/arcgis"
	"github.com/blue-raster/workforce-bridge/pkg/mailer"
)

// Runner executes bridge cycles with injected collaborators.
type Runner struct {
	cfg      *config.Config
	client   arcgis.Client
	mail     mailer.Sender
	store    runlog.Store
	priority *codes.Lookup
	types    *codes.Lookup
	renderer *notify.Renderer

	// now is replaceable in tests.
	now func() time.Time
}

// New creates a Runner. The lookup tables and display zone come from
// configuration and are immutable afterwards.
func New(cfg *config.Config, client arcgis.Client, mail mailer.Sender, store runlog.Store) (*Runner, error) {
	priority, err := codes.New("priority", cfg.Codes.Priority)
	if err != nil {
		return nil, err
	}
	types, err := codes.New("assignmentType", cfg.Codes.AssignmentType)
	if err != nil {
		return nil, err
	}
	zone, err := timeutil.LoadZone(cfg.Notify.DisplayZone)
	if err != nil {
		return nil, err
	}
	return &Runner{
		cfg:      cfg,
		client:   client,
		mail:     mail,
		store:    store,
		priority: priority,
		types:    types,
		renderer: notify.NewRenderer(priority, types, zone),
		now:      time.Now,
	}, nil
}

// sourceRecord is the subset of a maintenance record the cycle carries
// from query to reconciliation.
type sourceRecord struct {
	ObjectID    int64
	FeatureRef  string
	TypeCode    int
	Priority    int
	DueDateMS   int64
	Description string
	Location    string
}

// Run executes one full cycle and records it in the run log. The window
// start extends back to the persisted checkpoint when earlier runs were
// missed, so no interval is silently dropped.
func (r *Runner) Run(ctx context.Context) (*runlog.Run, error) {
	log := zap.L()

	start, end := timeutil.Window(r.now(), r.cfg.Poll.Interval(), r.cfg.Poll.Lookback())
	cp, err := r.store.Checkpoint(ctx)
	if err != nil {
		return nil, err
	}
	if cp != nil && cp.Before(start) {
		log.Info("dispatch: extending window to checkpoint",
			zap.Time("checkpoint", *cp), zap.Time("floored_start", start))
		start = *cp
	}

	run, err := r.store.StartRun(ctx, start, end)
	if err != nil {
		return nil, err
	}
	log.Info("dispatch: run started",
		zap.String("run_id", run.ID),
		zap.Time("window_start", start),
		zap.Time("window_end", end))

	res, runErr := r.cycle(ctx, start, end)
	if runErr != nil {
		if failErr := r.store.FailRun(ctx, run.ID, runErr); failErr != nil {
			log.Warn("dispatch: record failed run", zap.Error(failErr))
		}
		return run, runErr
	}

	if err := r.store.CompleteRun(ctx, run.ID, *res); err != nil {
		return run, err
	}
	log.Info("dispatch: run complete",
		zap.String("run_id", run.ID),
		zap.Int("records", res.Records),
		zap.Int("uploaded", res.Uploaded),
		zap.Int("failed", res.Failed),
		zap.Int("skipped", res.Skipped))
	return run, nil
}

func (r *Runner) cycle(ctx context.Context, start, end time.Time) (*runlog.Result, error) {
	log := zap.L()
	f := r.cfg.Source.Fields

	where := fmt.Sprintf("%s = %d AND %s > date '%s' AND %s <= date '%s'",
		f.RecordType, r.cfg.Source.RecordType,
		f.Created, timeutil.QueryString(start),
		f.Created, timeutil.QueryString(end))
	resp, err := r.client.Query(ctx, r.cfg.Source.URL, arcgis.Query{
		Where: where,
		OutFields: []string{
			f.ObjectID, f.FeatureRef, f.Created, f.Type, f.Priority, f.DueDate, f.Description,
		},
	})
	if err != nil {
		return nil, &QueryError{Layer: "maintenance", Err: err}
	}
	log.Info("dispatch: maintenance records found", zap.Int("count", len(resp.Features)))

	res := runlog.Result{Records: len(resp.Features)}
	var batch []assignment.Assignment
	var sources []sourceRecord
	for i, feat := range resp.Features {
		src, built, procErr := r.processRecord(ctx, feat)
		if procErr != nil {
			log.Warn("dispatch: skipping record",
				zap.Int("index", i), zap.Error(procErr))
			res.Skipped++
			continue
		}
		batch = append(batch, built)
		sources = append(sources, src)
	}

	if len(batch) == 0 {
		log.Info("dispatch: no assignments to upload")
		return &res, nil
	}

	add, err := r.client.AddFeatures(ctx, r.cfg.Dispatch.URL, batch)
	if err != nil {
		return nil, &UploadError{Err: err}
	}

	uploaded, failed, err := r.reconcile(ctx, sources, add.AddResults)
	if err != nil {
		return nil, err
	}
	res.Uploaded = uploaded
	res.Failed = failed

	r.alertUrgent(ctx, sources)

	return &res, nil
}

// processRecord turns one maintenance record into a validated assignment:
// fetch the referenced feature, reduce its geometry to a point, resolve
// the location identifier, check the codes, build, validate.
func (r *Runner) processRecord(ctx context.Context, feat arcgis.Feature) (sourceRecord, assignment.Assignment, error) {
	f := r.cfg.Source.Fields
	src := sourceRecord{
		ObjectID:    attrInt64(feat.Attributes, f.ObjectID),
		FeatureRef:  attrString(feat.Attributes, f.FeatureRef),
		TypeCode:    attrInt(feat.Attributes, f.Type),
		Priority:    attrInt(feat.Attributes, f.Priority),
		DueDateMS:   attrInt64(feat.Attributes, f.DueDate),
		Description: attrString(feat.Attributes, f.Description),
	}
	if src.FeatureRef == "" {
		return src, assignment.Assignment{}, &TransformError{
			RecordID: src.ObjectID, Err: eris.New("missing feature reference"),
		}
	}
	if !r.types.Has(src.TypeCode) {
		return src, assignment.Assignment{}, &TransformError{
			RecordID: src.ObjectID, Err: eris.Errorf("unconfigured assignment type code %d", src.TypeCode),
		}
	}
	if src.Priority != 0 && !r.priority.Has(src.Priority) {
		return src, assignment.Assignment{}, &TransformError{
			RecordID: src.ObjectID, Err: eris.Errorf("unconfigured priority code %d", src.Priority),
		}
	}

	where := fmt.Sprintf("%s = '%s'", r.cfg.Features.KeyField, src.FeatureRef)
	resp, err := r.client.Query(ctx, r.cfg.Features.URL, arcgis.Query{
		Where:          where,
		OutFields:      []string{r.cfg.Features.IDField},
		ReturnGeometry: true,
	})
	if err != nil {
		return src, assignment.Assignment{}, &TransformError{RecordID: src.ObjectID, Err: err}
	}
	if len(resp.Features) == 0 {
		return src, assignment.Assignment{}, &TransformError{
			RecordID: src.ObjectID, Err: eris.Errorf("no feature matches %s", src.FeatureRef),
		}
	}

	target := resp.Features[0]
	var g geometry.Geometry
	if err := json.Unmarshal(target.Geometry, &g); err != nil {
		return src, assignment.Assignment{}, &TransformError{RecordID: src.ObjectID, Err: err}
	}
	pt, err := geometry.Reduce(resp.GeometryType, g)
	if err != nil {
		return src, assignment.Assignment{}, &TransformError{RecordID: src.ObjectID, Err: err}
	}
	src.Location = attrString(target.Attributes, r.cfg.Features.IDField)

	built := assignment.Build(assignment.Params{
		AssignmentType: src.TypeCode,
		Description:    src.Description,
		Priority:       src.Priority,
		DueDateMS:      src.DueDateMS,
		Location:       src.Location,
		X:              pt.X,
		Y:              pt.Y,
	})
	if v := assignment.Validate(built); !v.Success {
		return src, assignment.Assignment{}, &ValidationError{RecordID: src.ObjectID, Problems: v.Errors}
	}
	return src, built, nil
}

// alertUrgent sends one email listing every record in the batch whose
// priority code exceeds the configured urgent floor. Send failures are
// logged, never escalated.
func (r *Runner) alertUrgent(ctx context.Context, sources []sourceRecord) {
	var urgent []notify.Record
	for _, src := range sources {
		if src.Priority > r.cfg.Notify.UrgentPriorityFloor {
			urgent = append(urgent, r.urgentRecord(src))
		}
	}
	if len(urgent) == 0 {
		return
	}

	body, err := r.renderer.UrgentBody(urgent)
	if err != nil {
		zap.L().Error("dispatch: render urgent alert", zap.Error(err))
		return
	}
	if err := r.mail.Send(ctx, r.cfg.Notify.Subject, body); err != nil {
		zap.L().Error("dispatch: send urgent alert", zap.Error(err))
		return
	}
	zap.L().Info("dispatch: urgent alert sent", zap.Int("count", len(urgent)))
}

func (r *Runner) urgentRecord(src sourceRecord) notify.Record {
	rec := notify.Record{Location: src.Location}
	p := src.Priority
	rec.Priority = &p
	if src.DueDateMS != 0 {
		d := src.DueDateMS
		rec.DueDateMS = &d
	}
	return rec
}

// DigestDue reports whether the daily digest should run at the given
// time.
func (r *Runner) DigestDue(now time.Time) bool {
	return now.Hour() == r.cfg.Digest.Hour
}

// Digest queries the assignments created over the digest window and
// emails the daily total list.
func (r *Runner) Digest(ctx context.Context) error {
	log := zap.L()

	end := timeutil.Floor(r.now(), time.Hour)
	start := end.Add(-time.Duration(r.cfg.Digest.LookbackHours) * time.Hour)

	where := fmt.Sprintf("%s > date '%s' AND %s <= date '%s'",
		r.cfg.Dispatch.CreatedField, timeutil.QueryString(start),
		r.cfg.Dispatch.CreatedField, timeutil.QueryString(end))
	resp, err := r.client.Query(ctx, r.cfg.Dispatch.URL, arcgis.Query{
		Where: where,
		OutFields: []string{
			assignment.FieldPriority, assignment.FieldLocation, assignment.FieldDueDate,
		},
	})
	if err != nil {
		return &QueryError{Layer: "assignments", Err: err}
	}
	log.Info("dispatch: digest assignments found", zap.Int("count", len(resp.Features)))

	records := make([]notify.Record, 0, len(resp.Features))
	for _, feat := range resp.Features {
		rec := notify.Record{Location: attrString(feat.Attributes, assignment.FieldLocation)}
		if p, ok := attrIntOK(feat.Attributes, assignment.FieldPriority); ok {
			rec.Priority = &p
		}
		if d, ok := attrInt64OK(feat.Attributes, assignment.FieldDueDate); ok {
			rec.DueDateMS = &d
		}
		records = append(records, rec)
	}

	body, err := r.renderer.DigestBody(records)
	if err != nil {
		return eris.Wrap(err, "dispatch: render digest")
	}
	if err := r.mail.Send(ctx, r.cfg.Notify.Subject, body); err != nil {
		log.Error("dispatch: send digest", zap.Error(err))
		return nil
	}
	log.Info("dispatch: digest sent", zap.Int("count", len(records)))
	return nil
}

// Attribute extraction. Query responses decode JSON numbers as float64;
// absent and null attributes both read as the zero value.

func attrString(attrs map[string]any, key string) string {
	s, _ := attrs[key].(string)
	return s
}

func attrInt(attrs map[string]any, key string) int {
	v, _ := attrIntOK(attrs, key)
	return v
}

func attrIntOK(attrs map[string]any, key string) (int, bool) {
	f, ok := attrs[key].(float64)
	if !ok {
		return 0, false
	}
	return int(f), true
}

func attrInt64(attrs map[string]any, key string) int64 {
	v, _ := attrInt64OK(attrs, key)
	return v
}

func attrInt64OK(attrs map[string]any, key string) (int64, bool) {
	f, ok := attrs[key].(float64)
	if !ok {
		return 0, false
	}
	return int64(f), true
}
