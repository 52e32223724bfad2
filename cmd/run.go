package main

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tripgeo/internal/config"
	"github.com/sells-group/tripgeo/internal/export"
	"github.com/sells-group/tripgeo/internal/pipeline"
	"github.com/sells-group/tripgeo/internal/summary"
)

// runOptions are the outputs requested from a pipeline run.
type runOptions struct {
	TripsOut        string
	StationsOut     string
	SummaryFormat   string
	MetricsTextfile string
	Persist         bool
}

var (
	runInputs  inputFlags
	runOutputs runOptions
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Enrich trips with start and end neighbourhoods",
	RunE: func(cmd *cobra.Command, args []string) error {
		runInputs.apply(cfg)
		opts := runOutputs
		if opts.TripsOut == "" {
			opts.TripsOut = cfg.Output.TripsPath
		}
		if opts.StationsOut == "" {
			opts.StationsOut = cfg.Output.StationsPath
		}
		if opts.SummaryFormat == "" {
			opts.SummaryFormat = cfg.Output.SummaryFormat
		}
		if opts.MetricsTextfile == "" {
			opts.MetricsTextfile = cfg.Metrics.TextfilePath
		}

		_, err := executeRun(cmd.Context(), cfg, opts, cmd.OutOrStdout())
		return err
	},
}

// executeRun runs the pipeline once and writes every requested output. The
// summary goes to w.
func executeRun(ctx context.Context, c *config.Config, opts runOptions, w io.Writer) (*pipeline.Result, error) {
	env, err := initPipeline(ctx, c, opts.Persist)
	if err != nil {
		return nil, err
	}
	defer env.Close()

	res, err := env.Pipeline.Run(ctx)
	if err != nil {
		return nil, err
	}

	if opts.TripsOut != "" {
		if err := writeFile(opts.TripsOut, func(f io.Writer) error {
			return export.WriteTripsCSV(f, res.Enriched)
		}); err != nil {
			return nil, err
		}
		zap.L().Info("trips written", zap.String("path", opts.TripsOut), zap.Int("trips", len(res.Enriched)))
	}

	if opts.StationsOut != "" {
		if err := writeStations(opts.StationsOut, res); err != nil {
			return nil, err
		}
		zap.L().Info("stations written", zap.String("path", opts.StationsOut), zap.Int("stations", res.Resolution.Len()))
	}

	if opts.MetricsTextfile != "" {
		if err := env.Metrics.WriteTextfile(opts.MetricsTextfile); err != nil {
			return nil, err
		}
	}

	if err := summary.Write(w, res.Summary, opts.SummaryFormat); err != nil {
		return nil, err
	}
	return res, nil
}

// writeStations picks the format from the file extension: .xlsx or CSV.
func writeStations(path string, res *pipeline.Result) error {
	if strings.EqualFold(filepath.Ext(path), ".xlsx") {
		return export.WriteStationsXLSX(path, res.Resolution.Assignments(), res.Resolution.Unresolved)
	}
	return writeFile(path, func(f io.Writer) error {
		return export.WriteStationsCSV(f, res.Resolution.Assignments())
	})
}

// writeFile creates path and hands it to fn, closing it afterwards.
func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "create %s", path)
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return err
	}
	return eris.Wrapf(f.Close(), "close %s", path)
}

func init() {
	runInputs.register(runCmd)
	runCmd.Flags().StringVar(&runOutputs.TripsOut, "out", "", "write enriched trips CSV to this path")
	runCmd.Flags().StringVar(&runOutputs.StationsOut, "stations-out", "", "write station assignments (.csv or .xlsx)")
	runCmd.Flags().StringVar(&runOutputs.SummaryFormat, "format", "", "summary format: json or yaml (default from config)")
	runCmd.Flags().StringVar(&runOutputs.MetricsTextfile, "metrics-textfile", "", "write Prometheus metrics to this textfile after the run")
	runCmd.Flags().BoolVar(&runOutputs.Persist, "persist", false, "save the run to the configured store")
	rootCmd.AddCommand(runCmd)
}
