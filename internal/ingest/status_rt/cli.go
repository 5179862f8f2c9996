package status_rt

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"tarediiran-industries.com/ticketing-services/internal/common"
	"tarediiran-industries.com/ticketing-services/internal/config"
	"tarediiran-industries.com/ticketing-services/internal/db"
)

const (
	defaultInterval       = 30 * time.Second
	defaultDelayThreshold = 5 * time.Minute
)

type Config struct {
	Version        bool
	TomlConfigPath string

	Urls               []string
	DatabaseDriver     string
	DatabaseConnection string

	Interval         time.Duration
	DelayThreshold   time.Duration
	TelemetryAddress string
	// Once polls every feed a single time and exits.
	Once bool

	LogLevel  string
	LogFormat string
}

func ParseArgs(programName string, args []string, errOut io.Writer) (Config, error) {
	var cfg Config

	fs := flag.NewFlagSet(programName, flag.ContinueOnError)
	fs.SetOutput(errOut)

	fs.Usage = func() {
		fmt.Fprintf(errOut, "Usage: %s [options]\n\n", programName)
		fmt.Fprintln(errOut, "Options")
		fs.PrintDefaults()
	}

	fs.BoolVar(&cfg.Version, "version", false, "Prints CLI version")
	fs.StringVar(&cfg.TomlConfigPath, "toml", "", "Configuration file")
	fs.Func("url", "GTFS-realtime trip updates feed (repeatable)", func(value string) error {
		cfg.Urls = append(cfg.Urls, strings.TrimSpace(value))
		return nil
	})
	fs.StringVar(&cfg.DatabaseDriver, "driver", string(db.Postgres), "Database driver: pgx or sqlite")
	fs.StringVar(&cfg.DatabaseConnection, "database", "", "Database connection string")
	fs.DurationVar(&cfg.Interval, "interval", defaultInterval, "Polling interval")
	fs.DurationVar(&cfg.DelayThreshold, "delay-threshold", defaultDelayThreshold, "Smallest delay that marks a schedule delayed")
	fs.StringVar(&cfg.TelemetryAddress, "telemetry", "", "Address for /metrics and pprof; empty disables it")
	fs.BoolVar(&cfg.Once, "once", false, "Poll every feed once and exit")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", "auto", "Log format: auto, text, json")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.Version {
		fmt.Fprintf(errOut, "%s: version %s (%s)\n", programName, common.Version, common.GitCommit)
		return cfg, flag.ErrHelp
	}

	if cfg.TomlConfigPath != "" {
		file, err := config.Load(cfg.TomlConfigPath)
		if err != nil {
			return Config{}, fmt.Errorf("LoadConfigFromToml: %w", err)
		}
		cfg.applyFile(file, fs)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (cfg *Config) applyFile(file config.File, fs *flag.FlagSet) {
	explicit := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	if !explicit["url"] {
		cfg.Urls = file.Status.URLs
	}
	if !explicit["database"] && file.Database.DSN != "" {
		cfg.DatabaseConnection = file.Database.DSN
	}
	if !explicit["driver"] && file.Database.Driver != "" {
		cfg.DatabaseDriver = file.Database.Driver
	}
	if !explicit["interval"] && file.Status.Interval > 0 {
		cfg.Interval = file.Status.Interval
	}
	if !explicit["delay-threshold"] && file.Status.DelayThreshold > 0 {
		cfg.DelayThreshold = file.Status.DelayThreshold
	}
	if !explicit["telemetry"] && file.Status.TelemetryAddress != "" {
		cfg.TelemetryAddress = file.Status.TelemetryAddress
	}
	if !explicit["log-level"] && file.Log.Level != "" {
		cfg.LogLevel = file.Log.Level
	}
	if !explicit["log-format"] && file.Log.Format != "" {
		cfg.LogFormat = file.Log.Format
	}
}

func (cfg Config) Validate() error {
	if len(cfg.Urls) == 0 {
		return fmt.Errorf("need at least one URL to poll a realtime feed")
	}
	if cfg.DatabaseConnection == "" {
		return fmt.Errorf("missing required argument: database")
	}
	if _, err := db.ParseDialect(cfg.DatabaseDriver); err != nil {
		return err
	}
	if cfg.Interval <= 0 {
		return fmt.Errorf("-interval must be positive")
	}
	if cfg.DelayThreshold <= 0 {
		return fmt.Errorf("-delay-threshold must be positive")
	}
	return nil
}

func Main(programName string, args []string, out, errOut io.Writer) int {
	cfg, err := ParseArgs(programName, args, errOut)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(errOut, "Error:", err)
		return -1
	}

	return Run(cfg, errOut)
}
