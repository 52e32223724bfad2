package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/tripgeo/internal/summary"
)

var (
	statsInputs inputFlags
	statsFormat string
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print summary statistics for a trip file",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		statsInputs.apply(cfg)

		env, err := initPipeline(ctx, cfg, false)
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Pipeline.Run(ctx)
		if err != nil {
			return err
		}

		format := statsFormat
		if format == "" {
			format = cfg.Output.SummaryFormat
		}
		return summary.Write(cmd.OutOrStdout(), res.Summary, format)
	},
}

func init() {
	statsInputs.register(statsCmd)
	statsCmd.Flags().StringVar(&statsFormat, "format", "", "output format: json or yaml (default from config)")
	rootCmd.AddCommand(statsCmd)
}
