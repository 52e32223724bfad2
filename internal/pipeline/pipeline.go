// Package pipeline runs the trip enrichment stages end to end: load trips and
// boundaries, filter, annotate, build the catalog, locate and resolve
// stations, join, summarise and optionally persist.
package pipeline

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/tripgeo/internal/enrich"
	"github.com/sells-group/tripgeo/internal/metrics"
	"github.com/sells-group/tripgeo/internal/neighbourhood"
	"github.com/sells-group/tripgeo/internal/station"
	"github.com/sells-group/tripgeo/internal/store"
	"github.com/sells-group/tripgeo/internal/summary"
	"github.com/sells-group/tripgeo/internal/trip"
)

// TripSource yields validated trip records and counts of rejected rows.
type TripSource interface {
	ReadTrips(ctx context.Context) ([]trip.Record, trip.IngestStats, error)
}

// BoundarySource yields raw neighbourhood boundaries.
type BoundarySource interface {
	ReadBoundaries(ctx context.Context) ([]neighbourhood.Boundary, error)
}

// Sink persists the output of a run. store.Store satisfies it.
type Sink interface {
	SaveRun(ctx context.Context, run *store.Run) error
	SaveStations(ctx context.Context, runID string, assignments []station.Assignment) error
	SaveTrips(ctx context.Context, runID string, trips []enrich.EnrichedTrip) (int64, error)
}

// Options configures a Pipeline.
type Options struct {
	Filter   trip.FilterOptions
	Catalog  neighbourhood.Options
	Resolver []station.Option

	// Metrics receives stage counters. Nil creates a private recorder.
	Metrics *metrics.Recorder
	// Sink persists results when set.
	Sink Sink

	// TripsPath and BoundariesPath label the persisted run.
	TripsPath      string
	BoundariesPath string
}

// Result holds the output of every stage of one run.
type Result struct {
	RunID      string
	Ingest     trip.IngestStats
	Trips      []trip.Trip
	Catalog    *neighbourhood.Catalog
	Locations  []station.Location
	Resolution *station.Resolution
	Enriched   []enrich.EnrichedTrip
	Report     enrich.Report
	Summary    summary.Summary
}

// Pipeline wires the sources to the enrichment stages.
type Pipeline struct {
	trips      TripSource
	boundaries BoundarySource
	opts       Options
	metrics    *metrics.Recorder
}

// New creates a Pipeline.
func New(trips TripSource, boundaries BoundarySource, opts Options) *Pipeline {
	rec := opts.Metrics
	if rec == nil {
		rec = metrics.New()
	}
	return &Pipeline{trips: trips, boundaries: boundaries, opts: opts, metrics: rec}
}

// Metrics returns the recorder the pipeline reports to.
func (p *Pipeline) Metrics() *metrics.Recorder {
	return p.metrics
}

// Run executes every stage once. Trips and boundaries are loaded in
// parallel; the remaining stages run in order on the previous stage's output.
// A catalog ConfigurationError aborts the run.
func (p *Pipeline) Run(ctx context.Context) (*Result, error) {
	res := &Result{RunID: uuid.New().String()}
	log := zap.L().With(zap.String("component", "pipeline"), zap.String("run_id", res.RunID))
	log.Info("pipeline: starting run")
	started := time.Now()

	stage := func(name string, fn func() error) error {
		start := time.Now()
		err := fn()
		elapsed := time.Since(start)
		p.metrics.ObserveStage(name, elapsed)
		if err != nil {
			log.Error("pipeline: stage failed", zap.String("stage", name), zap.Duration("elapsed", elapsed), zap.Error(err))
			return eris.Wrapf(err, "pipeline: %s", name)
		}
		log.Info("pipeline: stage complete", zap.String("stage", name), zap.Duration("elapsed", elapsed))
		return nil
	}
	// timed runs a stage that cannot fail.
	timed := func(name string, fn func()) {
		start := time.Now()
		fn()
		elapsed := time.Since(start)
		p.metrics.ObserveStage(name, elapsed)
		log.Info("pipeline: stage complete", zap.String("stage", name), zap.Duration("elapsed", elapsed))
	}

	// ===== Load =====
	var records []trip.Record
	var boundaries []neighbourhood.Boundary
	err := stage("load", func() error {
		g, gCtx := errgroup.WithContext(ctx)
		g.Go(func() error {
			var err error
			records, res.Ingest, err = p.trips.ReadTrips(gCtx)
			return err
		})
		g.Go(func() error {
			var err error
			boundaries, err = p.boundaries.ReadBoundaries(gCtx)
			return err
		})
		return g.Wait()
	})
	if err != nil {
		return nil, err
	}
	p.metrics.RowsRead(res.Ingest.Rows)
	for reason, n := range res.Ingest.Rejected {
		p.metrics.RowsRejected(reason, n)
	}

	// ===== Filter + annotate =====
	timed("filter", func() {
		kept := trip.Filter(records, p.opts.Filter)
		p.metrics.TripsFiltered(len(kept), len(records)-len(kept))
		res.Trips = trip.Annotate(kept)
		log.Info("pipeline: trips filtered",
			zap.Int("accepted", len(records)),
			zap.Int("kept", len(kept)),
		)
	})

	// ===== Catalog =====
	if err := stage("catalog", func() error {
		cat, err := neighbourhood.NewCatalog(boundaries, p.opts.Catalog)
		if err != nil {
			return err
		}
		res.Catalog = cat
		p.metrics.CatalogEntries(cat.Len())
		log.Info("pipeline: catalog built", zap.Int("boundaries", len(boundaries)), zap.Int("entries", cat.Len()))
		return nil
	}); err != nil {
		return nil, err
	}

	// ===== Stations =====
	if err := stage("stations", func() error {
		res.Locations = station.Locate(res.Trips)
		resolution, err := station.NewResolver(p.opts.Resolver...).Resolve(ctx, res.Locations, res.Catalog)
		if err != nil {
			return err
		}
		res.Resolution = resolution
		p.metrics.StationsResolved(resolution.Len(), len(resolution.Unresolved), len(resolution.Ambiguous))
		log.Info("pipeline: stations resolved",
			zap.Int("located", len(res.Locations)),
			zap.Int("resolved", resolution.Len()),
			zap.Int("unresolved", len(resolution.Unresolved)),
			zap.Int("ambiguous", len(resolution.Ambiguous)),
		)
		return nil
	}); err != nil {
		return nil, err
	}

	// ===== Enrich + summarise =====
	timed("enrich", func() {
		res.Enriched, res.Report = enrich.Enrich(res.Trips, res.Resolution)
		r := res.Report
		p.metrics.TripsEnriched(r.Output, r.UnresolvedStart, r.UnresolvedEnd, r.UnresolvedBoth)
		res.Summary = summary.Compute(res.Trips, res.Resolution.Len(), res.Catalog.Len())
		log.Info("pipeline: trips enriched", zap.Int("input", r.Input), zap.Int("output", r.Output), zap.Int("dropped", r.Dropped()))
	})

	// ===== Persist =====
	if p.opts.Sink != nil {
		if err := stage("persist", func() error { return p.persist(ctx, res) }); err != nil {
			return nil, err
		}
	}

	log.Info("pipeline: run complete",
		zap.Int("trips", len(res.Enriched)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return res, nil
}

func (p *Pipeline) persist(ctx context.Context, res *Result) error {
	run := &store.Run{
		ID:             res.RunID,
		TripsPath:      p.opts.TripsPath,
		BoundariesPath: p.opts.BoundariesPath,
		Ingest:         res.Ingest,
		Report:         res.Report,
		Summary:        res.Summary,
		Unresolved:     res.Resolution.Unresolved,
	}
	if err := p.opts.Sink.SaveRun(ctx, run); err != nil {
		return err
	}
	if err := p.opts.Sink.SaveStations(ctx, res.RunID, res.Resolution.Assignments()); err != nil {
		return err
	}
	n, err := p.opts.Sink.SaveTrips(ctx, res.RunID, res.Enriched)
	if err != nil {
		return err
	}
	zap.L().Debug("pipeline: run persisted", zap.String("run_id", res.RunID), zap.Int64("trips", n))
	return nil
}
