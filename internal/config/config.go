package config

import (
	"fmt"
	"time"

	"github.com/BurntSushi/toml"
)

// File is the shared TOML configuration. Every binary reads the sections it
// needs; flags given on the command line win over file values.
type File struct {
	Database Database `toml:"database"`
	Log      Log      `toml:"log"`
	API      API      `toml:"api"`
	Import   Import   `toml:"import"`
	Status   Status   `toml:"status"`
}

type Database struct {
	Driver string `toml:"driver"`
	DSN    string `toml:"dsn"`
}

type Log struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

type API struct {
	ListenAddress    string        `toml:"listen_address"`
	TelemetryAddress string        `toml:"telemetry_address"`
	SessionTTL       time.Duration `toml:"session_ttl"`
	RequestTimeout   time.Duration `toml:"request_timeout"`
	Migrate          bool          `toml:"migrate"`
}

type Import struct {
	DefaultURL string `toml:"default_url"`
}

type Status struct {
	URLs             []string      `toml:"urls"`
	Interval         time.Duration `toml:"interval"`
	DelayThreshold   time.Duration `toml:"delay_threshold"`
	TelemetryAddress string        `toml:"telemetry_address"`
}

func Load(path string) (File, error) {
	var cfg File
	metadata, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return File{}, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if undecoded := metadata.Undecoded(); len(undecoded) > 0 {
		return File{}, fmt.Errorf("unknown keys in %s: %v", path, undecoded)
	}
	return cfg, nil
}
