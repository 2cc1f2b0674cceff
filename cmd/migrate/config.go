package main

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the CLI configuration, loaded from a TOML file and then
// overridden by MIGRATE_* environment variables and flags.
type Config struct {
	// Dir is the migration folder.
	Dir string `toml:"dir"`

	// Extension filters candidate files, e.g. ".sql". Empty accepts every
	// file and strips each file's own extension.
	Extension string `toml:"extension"`

	// Backend selects the history store: file, sqlite, postgres or mysql.
	Backend string `toml:"backend"`

	// DSN is the backend connection string. For the file backend it is the
	// path of the history document.
	DSN string `toml:"dsn"`

	// Check bounds how far back consistency validation walks.
	Check int `toml:"check"`

	// Wait bounds how long a run waits for a held lock.
	Wait duration `toml:"wait"`

	// RetryWait is the pause between lock attempts.
	RetryWait duration `toml:"retry_wait"`

	// MetricsAddr, when set, serves Prometheus metrics for the duration of
	// the command, e.g. ":9090".
	MetricsAddr string `toml:"metrics_addr"`
}

// duration lets TOML carry values like "10m".
type duration time.Duration

func (d *duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = duration(v)
	return nil
}

func defaultConfig() Config {
	return Config{
		Dir:       "migrations",
		Extension: ".sql",
		Backend:   "file",
		DSN:       ".migrate/history.json",
		Check:     50,
		Wait:      duration(10 * time.Minute),
		RetryWait: duration(500 * time.Millisecond),
	}
}

// loadConfig reads path when it exists. A missing file is only an error
// when the operator named it explicitly.
func loadConfig(path string, explicit bool) (Config, error) {
	config := defaultConfig()

	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) && !explicit {
			applyEnv(&config)
			return config, nil
		}
		return config, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if _, err := toml.DecodeFile(path, &config); err != nil {
		return config, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	applyEnv(&config)
	return config, nil
}

func applyEnv(config *Config) {
	if v := os.Getenv("MIGRATE_DIR"); v != "" {
		config.Dir = v
	}
	if v, ok := os.LookupEnv("MIGRATE_EXTENSION"); ok {
		config.Extension = v
	}
	if v := os.Getenv("MIGRATE_BACKEND"); v != "" {
		config.Backend = v
	}
	if v := os.Getenv("MIGRATE_DSN"); v != "" {
		config.DSN = v
	}
	if v := os.Getenv("MIGRATE_METRICS_ADDR"); v != "" {
		config.MetricsAddr = v
	}
}
