package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tripgeo/internal/export"
)

var (
	stationsInputs inputFlags
	stationsOut    string
)

var stationsCmd = &cobra.Command{
	Use:   "stations",
	Short: "Print the station to neighbourhood table",
	Long:  "Resolves every start station to a neighbourhood with the ambiguity audit enabled and writes the table as CSV (or XLSX with an .xlsx --out).",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		stationsInputs.apply(cfg)
		cfg.Pipeline.AuditAmbiguity = true

		env, err := initPipeline(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Pipeline.Run(ctx)
		if err != nil {
			return err
		}

		for name, candidates := range res.Resolution.Ambiguous {
			zap.L().Warn("station inside several neighbourhoods",
				zap.String("station", name),
				zap.Strings("candidates", candidates),
			)
		}
		if n := len(res.Resolution.Unresolved); n > 0 {
			zap.L().Warn("stations outside every neighbourhood",
				zap.Int("count", n),
				zap.Strings("stations", res.Resolution.Unresolved),
			)
		}

		if stationsOut != "" {
			return writeStations(stationsOut, res)
		}
		return export.WriteStationsCSV(cmd.OutOrStdout(), res.Resolution.Assignments())
	},
}

func init() {
	stationsInputs.register(stationsCmd)
	stationsCmd.Flags().StringVar(&stationsOut, "out", "", "write the table to this path instead of stdout")
	rootCmd.AddCommand(stationsCmd)
}
