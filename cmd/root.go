package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/tripgeo/internal/config"
)

var cfg *config.Config

// globalFlags override the loaded configuration for every subcommand.
type globalFlags struct {
	configFile string
	logLevel   string
	logFormat  string
}

var globals globalFlags

var rootCmd = &cobra.Command{
	Use:   "tripgeo",
	Short: "Place bike-share trips in their neighbourhoods",
	Long: `tripgeo reads a month of bike-share trips and a set of neighbourhood
boundaries, pins every station to the neighbourhood that contains it, and
writes each trip with its start and end neighbourhood, start borough and
great-circle distance. Runs can be persisted and served over HTTP.`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&globals.configFile, "config", "", "config file (default ./config.yaml if present)")
	pf.StringVar(&globals.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
	pf.StringVar(&globals.logFormat, "log-format", "", "override log.format (json, console)")
}

// setup loads configuration, applies the global flag overrides and installs
// the global logger before any subcommand runs.
func setup(cmd *cobra.Command, _ []string) error {
	c, err := config.LoadFile(globals.configFile)
	if err != nil {
		return eris.Wrap(err, "load config")
	}
	globals.apply(c)
	cfg = c

	if err := config.InitLogger(cfg.Log); err != nil {
		return eris.Wrap(err, "init logger")
	}
	zap.L().Debug("tripgeo: config loaded",
		zap.String("command", cmd.Name()),
		zap.String("config_file", globals.configFile),
		zap.String("store_driver", cfg.Store.Driver),
	)
	return nil
}

func (g globalFlags) apply(c *config.Config) {
	if g.logLevel != "" {
		c.Log.Level = g.logLevel
	}
	if g.logFormat != "" {
		c.Log.Format = g.logFormat
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
