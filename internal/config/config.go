package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Input    InputConfig    `yaml:"input" mapstructure:"input"`
	Pipeline PipelineConfig `yaml:"pipeline" mapstructure:"pipeline"`
	Store    StoreConfig    `yaml:"store" mapstructure:"store"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Metrics  MetricsConfig  `yaml:"metrics" mapstructure:"metrics"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// InputConfig locates the trip and boundary datasets.
type InputConfig struct {
	TripsPath        string `yaml:"trips_path" mapstructure:"trips_path"`
	BoundariesPath   string `yaml:"boundaries_path" mapstructure:"boundaries_path"`
	NeighbourhoodKey string `yaml:"neighbourhood_key" mapstructure:"neighbourhood_key"`
	BoroughKey       string `yaml:"borough_key" mapstructure:"borough_key"`
	// CacheDir holds datasets downloaded when a path is an http(s) URL.
	CacheDir        string        `yaml:"cache_dir" mapstructure:"cache_dir"`
	DownloadTimeout time.Duration `yaml:"download_timeout" mapstructure:"download_timeout"`
}

// PipelineConfig configures filtering and station resolution.
type PipelineConfig struct {
	MinSameStationDuration time.Duration `yaml:"min_same_station_duration" mapstructure:"min_same_station_duration"`
	ExcludeBoroughs        []string      `yaml:"exclude_boroughs" mapstructure:"exclude_boroughs"`
	Concurrency            int           `yaml:"concurrency" mapstructure:"concurrency"`
	AuditAmbiguity         bool          `yaml:"audit_ambiguity" mapstructure:"audit_ambiguity"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
}

// OutputConfig configures file exports.
type OutputConfig struct {
	TripsPath     string `yaml:"trips_path" mapstructure:"trips_path"`
	StationsPath  string `yaml:"stations_path" mapstructure:"stations_path"`
	SummaryFormat string `yaml:"summary_format" mapstructure:"summary_format"`
}

// ServerConfig configures the read-only API server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// MetricsConfig configures metric export after a batch run.
type MetricsConfig struct {
	TextfilePath string `yaml:"textfile_path" mapstructure:"textfile_path"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, ./config.yaml and environment.
func Load() (*Config, error) {
	return LoadFile("")
}

// LoadFile is Load with an explicit config file. An empty path searches the
// working directory for an optional config.yaml; a named file must exist.
func LoadFile(path string) (*Config, error) {
	// .env is optional; real environment variables take precedence.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	// Environment
	v.SetEnvPrefix("TRIPGEO")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("input.trips_path", "data/202403-citibike-tripdata.csv")
	v.SetDefault("input.boundaries_path", "data/nyc-neighbourhoods.geojson")
	v.SetDefault("input.neighbourhood_key", "neighborhood")
	v.SetDefault("input.borough_key", "borough")
	v.SetDefault("input.cache_dir", "data/cache")
	v.SetDefault("input.download_timeout", "5m")
	v.SetDefault("pipeline.min_same_station_duration", "5m")
	v.SetDefault("pipeline.exclude_boroughs", []string{"Staten Island"})
	v.SetDefault("pipeline.concurrency", 4)
	v.SetDefault("pipeline.audit_ambiguity", false)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "tripgeo.db")
	v.SetDefault("output.summary_format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

// Validation modes accepted by Validate.
const (
	ModeRun   = "run"
	ModeServe = "serve"
)

// Validate checks the settings required by a command mode.
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case ModeRun:
		if c.Input.TripsPath == "" {
			problems = append(problems, "input.trips_path is required")
		}
		if c.Input.BoundariesPath == "" {
			problems = append(problems, "input.boundaries_path is required")
		}
		if c.Pipeline.MinSameStationDuration < 0 {
			problems = append(problems, "pipeline.min_same_station_duration must be >= 0")
		}
		if c.Pipeline.Concurrency < 1 || c.Pipeline.Concurrency > 64 {
			problems = append(problems, "pipeline.concurrency must be between 1 and 64")
		}
	case ModeServe:
		if c.Server.Port <= 0 {
			problems = append(problems, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		problems = append(problems, "store.driver must be sqlite or postgres")
	}
	if c.Store.DatabaseURL == "" {
		problems = append(problems, "store.database_url is required")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: %s", strings.Join(problems, "; "))
	}
	return nil
}
