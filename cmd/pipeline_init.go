package main

import (
	"context"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tripgeo/internal/config"
	"github.com/sells-group/tripgeo/internal/fetcher"
	"github.com/sells-group/tripgeo/internal/metrics"
	"github.com/sells-group/tripgeo/internal/neighbourhood"
	"github.com/sells-group/tripgeo/internal/pipeline"
	"github.com/sells-group/tripgeo/internal/source"
	"github.com/sells-group/tripgeo/internal/station"
	"github.com/sells-group/tripgeo/internal/store"
	"github.com/sells-group/tripgeo/internal/trip"
)

// inputFlags are shared by every command that runs the pipeline.
type inputFlags struct {
	trips      string
	boundaries string
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.trips, "trips", "", "trip CSV or ZIP (default from config)")
	cmd.Flags().StringVar(&f.boundaries, "boundaries", "", "neighbourhood GeoJSON or shapefile (default from config)")
}

// apply overrides the configured input paths with any flags that were set.
func (f *inputFlags) apply(c *config.Config) {
	if f.trips != "" {
		c.Input.TripsPath = f.trips
	}
	if f.boundaries != "" {
		c.Input.BoundariesPath = f.boundaries
	}
}

// pipelineEnv holds the pipeline and the resources it was built with.
type pipelineEnv struct {
	Pipeline *pipeline.Pipeline
	Metrics  *metrics.Recorder
	Store    store.Store // nil unless persisting
}

// Close releases resources held by the pipeline environment.
func (pe *pipelineEnv) Close() {
	if pe.Store != nil {
		_ = pe.Store.Close()
	}
}

// initPipeline validates c and builds a Pipeline over its inputs. With
// persist set, the configured store is opened, migrated and used as the sink.
// Callers should defer env.Close().
func initPipeline(ctx context.Context, c *config.Config, persist bool) (*pipelineEnv, error) {
	if err := c.Validate(config.ModeRun); err != nil {
		return nil, err
	}

	tripsPath, boundariesPath, err := resolveInputs(ctx, c.Input)
	if err != nil {
		return nil, err
	}

	boundaries, err := source.OpenBoundaries(boundariesPath, c.Input.NeighbourhoodKey, c.Input.BoroughKey)
	if err != nil {
		return nil, err
	}

	resolverOpts := []station.Option{station.WithConcurrency(c.Pipeline.Concurrency)}
	if c.Pipeline.AuditAmbiguity {
		resolverOpts = append(resolverOpts, station.WithAmbiguityAudit())
	}

	env := &pipelineEnv{Metrics: metrics.New()}
	opts := pipeline.Options{
		Filter:         trip.FilterOptions{MinSameStationDuration: c.Pipeline.MinSameStationDuration},
		Catalog:        neighbourhood.Options{ExcludeBoroughs: c.Pipeline.ExcludeBoroughs},
		Resolver:       resolverOpts,
		Metrics:        env.Metrics,
		TripsPath:      c.Input.TripsPath,
		BoundariesPath: c.Input.BoundariesPath,
	}

	if persist {
		st, err := initStore(ctx, c)
		if err != nil {
			return nil, err
		}
		env.Store = st
		opts.Sink = st
	}

	env.Pipeline = pipeline.New(&source.TripCSV{Path: tripsPath}, boundaries, opts)

	zap.L().Debug("pipeline initialised",
		zap.String("trips", c.Input.TripsPath),
		zap.String("boundaries", c.Input.BoundariesPath),
		zap.Bool("persist", persist),
	)
	return env, nil
}

// resolveInputs downloads any http(s) input into the cache directory and
// returns local paths for both datasets.
func resolveInputs(ctx context.Context, in config.InputConfig) (string, string, error) {
	if !fetcher.IsRemote(in.TripsPath) && !fetcher.IsRemote(in.BoundariesPath) {
		return in.TripsPath, in.BoundariesPath, nil
	}

	cache := fetcher.NewCache(in.CacheDir, fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		Timeout: in.DownloadTimeout,
	}))

	trips, err := cache.Resolve(ctx, in.TripsPath)
	if err != nil {
		return "", "", err
	}
	boundaries, err := cache.Resolve(ctx, in.BoundariesPath)
	if err != nil {
		return "", "", err
	}
	return trips, boundaries, nil
}

// initStore opens and migrates the configured store.
func initStore(ctx context.Context, c *config.Config) (store.Store, error) {
	st, err := store.Open(ctx, c.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}
	return st, nil
}
