package timetable

import (
	"errors"
	"flag"
	"fmt"
	"io"

	"tarediiran-industries.com/ticketing-services/internal/common"
	"tarediiran-industries.com/ticketing-services/internal/config"
	"tarediiran-industries.com/ticketing-services/internal/db"
)

type Config struct {
	Version bool

	// Toml config path. Database and default URL come from the file unless
	// given as flags.
	TomlConfigPath string

	// Input args - exactly one of zip, dir or url
	ZipPath string
	DirPath string
	Url     string

	// Output args - either can dry-run or write to a database connection
	DryRun             bool
	DatabaseDriver     string
	DatabaseConnection string
	Migrate            bool

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

	fs.StringVar(&cfg.TomlConfigPath, "toml", "", "Read database and default URL from this config file")
	fs.StringVar(&cfg.ZipPath, "zip", "", "Path to zip file for offline import")
	fs.StringVar(&cfg.DirPath, "dir", "", "Path to a directory of timetable CSV files")
	fs.StringVar(&cfg.Url, "url", "", "URL of a timetable zip for online import")

	fs.BoolVar(&cfg.DryRun, "dry-run", false, "If specified, shows what would be imported without performing any DB writes")
	fs.StringVar(&cfg.DatabaseDriver, "driver", string(db.Postgres), "Database driver: pgx or sqlite")
	fs.StringVar(&cfg.DatabaseConnection, "database", "", "Target database connection string")
	fs.BoolVar(&cfg.Migrate, "migrate", false, "Apply the schema before importing")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", "auto", "Log format: auto, text, json")

	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}

	if cfg.Version {
		fmt.Fprintf(errOut, "%s: version %s (%s)\n", programName, common.Version, common.GitCommit)
		return Config{}, flag.ErrHelp
	}

	if cfg.TomlConfigPath != "" {
		file, err := config.Load(cfg.TomlConfigPath)
		if err != nil {
			return Config{}, fmt.Errorf("LoadConfigFromToml: %w", err)
		}

		explicit := map[string]bool{}
		fs.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
		if cfg.ZipPath == "" && cfg.DirPath == "" && cfg.Url == "" {
			cfg.Url = file.Import.DefaultURL
		}
		if !explicit["database"] && !cfg.DryRun {
			cfg.DatabaseConnection = file.Database.DSN
		}
		if !explicit["driver"] && file.Database.Driver != "" {
			cfg.DatabaseDriver = file.Database.Driver
		}
		if !explicit["log-level"] && file.Log.Level != "" {
			cfg.LogLevel = file.Log.Level
		}
		if !explicit["log-format"] && file.Log.Format != "" {
			cfg.LogFormat = file.Log.Format
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (cfg Config) Validate() error {
	inputs := 0
	for _, input := range []string{cfg.ZipPath, cfg.DirPath, cfg.Url} {
		if input != "" {
			inputs++
		}
	}
	if inputs != 1 {
		return fmt.Errorf("exactly one of -zip, -dir or -url must be specified")
	}

	hasDatabaseConnection := cfg.DatabaseConnection != ""
	if hasDatabaseConnection == cfg.DryRun {
		return fmt.Errorf("exactly one of -dry-run or -database may be specified")
	}

	if _, err := db.ParseDialect(cfg.DatabaseDriver); err != nil {
		return err
	}

	return nil
}

func Main(programName string, args []string, stdOut, errOut io.Writer) int {
	cfg, err := ParseArgs(programName, args, errOut)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintln(errOut, "Error:", err)
		return -1
	}

	return Run(cfg, stdOut, errOut)
}
