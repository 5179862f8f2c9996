package ticketing_api

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/pflag"

	"tarediiran-industries.com/ticketing-services/internal/common"
	"tarediiran-industries.com/ticketing-services/internal/config"
	database "tarediiran-industries.com/ticketing-services/internal/db"
)

const (
	defaultListenAddress    = ":8080"
	defaultTelemetryAddress = ":9090"
	defaultSessionTTL       = 24 * time.Hour
	defaultRequestTimeout   = 15 * time.Second
)

type Config struct {
	Version bool

	// Toml config path. Values from the file are used for every flag that
	// was not given explicitly.
	TomlConfigPath string

	ListenAddress    string
	TelemetryAddress string

	DatabaseDriver     string
	DatabaseConnection string
	Migrate            bool

	SessionTTL     time.Duration
	RequestTimeout time.Duration

	LogLevel  string
	LogFormat string
}

func ParseArgs(programName string, args []string, errOut io.Writer) (Config, error) {
	var cfg Config

	fs := pflag.NewFlagSet(programName, pflag.ContinueOnError)
	fs.SetOutput(errOut)

	fs.Usage = func() {
		fmt.Fprintf(errOut, "Usage: %s [options]\n\n", programName)
		fmt.Fprintln(errOut, "Options")
		fs.PrintDefaults()
	}

	fs.BoolVar(&cfg.Version, "version", false, "Prints CLI version")
	fs.StringVar(&cfg.TomlConfigPath, "toml", "", "Read settings from this config file; explicit flags override it")

	fs.StringVar(&cfg.ListenAddress, "listen", defaultListenAddress, "Address the API listens on")
	fs.StringVar(&cfg.TelemetryAddress, "telemetry", defaultTelemetryAddress, "Address for /metrics and pprof; empty disables it")
	fs.StringVar(&cfg.DatabaseDriver, "driver", string(database.Postgres), "Database driver: pgx or sqlite")
	fs.StringVar(&cfg.DatabaseConnection, "database", "", "Database connection string (or SQLite file path)")
	fs.BoolVar(&cfg.Migrate, "migrate", false, "Apply the schema before serving")
	fs.DurationVar(&cfg.SessionTTL, "session-ttl", defaultSessionTTL, "Lifetime of login sessions")
	fs.DurationVar(&cfg.RequestTimeout, "request-timeout", defaultRequestTimeout, "Per-request deadline")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", "auto", "Log format: auto, text, json")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.Version {
		fmt.Fprintf(errOut, "%s: version %s (%s)\n", programName, common.Version, common.GitCommit)
		return Config{}, pflag.ErrHelp
	}

	if cfg.TomlConfigPath != "" {
		file, err := config.Load(cfg.TomlConfigPath)
		if err != nil {
			return Config{}, fmt.Errorf("LoadConfigFromToml: %w", err)
		}
		cfg.applyFile(file, fs.Changed)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (cfg *Config) applyFile(file config.File, explicit func(string) bool) {
	setString := func(flag string, target *string, value string) {
		if value != "" && !explicit(flag) {
			*target = value
		}
	}
	setDuration := func(flag string, target *time.Duration, value time.Duration) {
		if value != 0 && !explicit(flag) {
			*target = value
		}
	}

	setString("listen", &cfg.ListenAddress, file.API.ListenAddress)
	setString("telemetry", &cfg.TelemetryAddress, file.API.TelemetryAddress)
	setString("driver", &cfg.DatabaseDriver, file.Database.Driver)
	setString("database", &cfg.DatabaseConnection, file.Database.DSN)
	setString("log-level", &cfg.LogLevel, file.Log.Level)
	setString("log-format", &cfg.LogFormat, file.Log.Format)
	setDuration("session-ttl", &cfg.SessionTTL, file.API.SessionTTL)
	setDuration("request-timeout", &cfg.RequestTimeout, file.API.RequestTimeout)
	if file.API.Migrate && !explicit("migrate") {
		cfg.Migrate = true
	}
}

func (cfg Config) Validate() error {
	if cfg.DatabaseConnection == "" {
		return fmt.Errorf("-database must be specified")
	}
	if _, err := database.ParseDialect(cfg.DatabaseDriver); err != nil {
		return err
	}
	if cfg.ListenAddress == "" {
		return fmt.Errorf("-listen must not be empty")
	}
	if cfg.SessionTTL <= 0 {
		return fmt.Errorf("-session-ttl must be positive")
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("-request-timeout must be positive")
	}
	return nil
}

func Main(programName string, args []string, stdOut, errOut io.Writer) int {
	cfg, err := ParseArgs(programName, args, errOut)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(errOut, "Error:", err)
		return -1
	}

	return Run(cfg, errOut)
}
