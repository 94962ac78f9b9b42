// Package config loads inspector settings from a YAML file, INSPECTOR_* environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/steveyegge/inspector/internal/data"
	"github.com/steveyegge/inspector/internal/instance"
	"github.com/steveyegge/inspector/internal/logging"
	"github.com/steveyegge/inspector/internal/scripts"
)

// EnvPrefix prefixes every environment override, e.g. INSPECTOR_INSTANCE_URL.
const EnvPrefix = "INSPECTOR"

// MaxConcurrency caps run.concurrency.
const MaxConcurrency = 64

// Output formats for reports.
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// Config is the complete inspector configuration.
type Config struct {
	Instance instance.Config `mapstructure:"instance"`
	Run      RunConfig       `mapstructure:"run"`
	Queries  QueryConfig     `mapstructure:"queries"`
	Scripts  ScriptsConfig   `mapstructure:"scripts"`
	Log      LogConfig       `mapstructure:"log"`
}

// RunConfig selects and schedules modules.
type RunConfig struct {
	// Concurrency is how many modules run at once. 1 runs them in order.
	Concurrency int      `mapstructure:"concurrency"`
	Modules     []string `mapstructure:"modules"`
	Format      string   `mapstructure:"format"`
}

// QueryConfig paces statements sent to the instance database.
type QueryConfig struct {
	PerSecond float64       `mapstructure:"per_second"`
	Burst     int           `mapstructure:"burst"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

// ScriptsConfig points at operator-supplied SQL that overrides the embedded scripts.
type ScriptsConfig struct {
	Dir string `mapstructure:"dir"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Instance: instance.Config{
			Database: data.Config{Driver: data.DriverSQLServer},
		},
		Run: RunConfig{
			Concurrency: 1,
			Format:      FormatText,
		},
		Queries: QueryConfig{Burst: 1},
		Log: LogConfig{
			Level:  "warn",
			Format: logging.FormatText,
		},
	}
}

// flagKeys maps command-line flag names onto configuration keys.
var flagKeys = map[string]string{
	"url":         "instance.url",
	"path":        "instance.path",
	"db-driver":   "instance.database.driver",
	"db-dsn":      "instance.database.dsn",
	"db-server":   "instance.database.server",
	"db-name":     "instance.database.name",
	"db-user":     "instance.database.user",
	"concurrency": "run.concurrency",
	"module":      "run.modules",
	"format":      "run.format",
	"qps":         "queries.per_second",
	"timeout":     "queries.timeout",
	"script-dir":  "scripts.dir",
	"log-level":   "log.level",
	"log-format":  "log.format",
}

// Load reads cfgFile, or inspector.yaml from the working directory or
// $HOME/.inspector when cfgFile is empty, then applies environment overrides and
// any flags in flags that were set. The result is validated.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("inspector")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".inspector"))
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag --%s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setDefaults registers every key so environment variables can reach it.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("instance.url", d.Instance.URL)
	v.SetDefault("instance.path", d.Instance.Path)
	v.SetDefault("instance.database.driver", d.Instance.Database.Driver)
	v.SetDefault("instance.database.dsn", d.Instance.Database.DSN)
	v.SetDefault("instance.database.server", d.Instance.Database.Server)
	v.SetDefault("instance.database.name", d.Instance.Database.Name)
	v.SetDefault("instance.database.user", d.Instance.Database.User)
	v.SetDefault("instance.database.password", d.Instance.Database.Password)
	v.SetDefault("run.concurrency", d.Run.Concurrency)
	v.SetDefault("run.modules", d.Run.Modules)
	v.SetDefault("run.format", d.Run.Format)
	v.SetDefault("queries.per_second", d.Queries.PerSecond)
	v.SetDefault("queries.burst", d.Queries.Burst)
	v.SetDefault("queries.timeout", d.Queries.Timeout)
	v.SetDefault("scripts.dir", d.Scripts.Dir)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// Validate checks value ranges. Errors are *instance.ConfigurationError.
func (c *Config) Validate() error {
	invalid := func(field string, format string, args ...any) error {
		return &instance.ConfigurationError{Field: field, Err: fmt.Errorf(format, args...)}
	}

	if c.Run.Concurrency < 1 || c.Run.Concurrency > MaxConcurrency {
		return invalid("run.concurrency", "must be between 1 and %d (got %d)", MaxConcurrency, c.Run.Concurrency)
	}
	switch strings.ToLower(c.Run.Format) {
	case FormatText, FormatJSON, FormatYAML:
	default:
		return invalid("run.format", "must be text, json or yaml (got %q)", c.Run.Format)
	}
	if c.Queries.PerSecond < 0 {
		return invalid("queries.per_second", "must not be negative (got %v)", c.Queries.PerSecond)
	}
	if c.Queries.Burst < 0 {
		return invalid("queries.burst", "must not be negative (got %d)", c.Queries.Burst)
	}
	if c.Queries.Timeout < 0 {
		return invalid("queries.timeout", "must not be negative (got %s)", c.Queries.Timeout)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return &instance.ConfigurationError{Field: "log.level", Err: err}
	}
	switch strings.ToLower(c.Log.Format) {
	case logging.FormatText, logging.FormatJSON:
	default:
		return invalid("log.format", "must be text or json (got %q)", c.Log.Format)
	}
	return nil
}

// InstanceConfig returns a copy of the instance settings.
func (c *Config) InstanceConfig() *instance.Config {
	ic := c.Instance
	return &ic
}

// DataOptions returns the data-access options for the configured pacing and scripts.
func (c *Config) DataOptions() data.Options {
	return data.Options{
		Scripts:          scripts.Default(c.Scripts.Dir),
		QueriesPerSecond: c.Queries.PerSecond,
		Burst:            c.Queries.Burst,
		QueryTimeout:     c.Queries.Timeout,
		Logger:           logging.L("data"),
	}
}

// String renders the configuration without credentials.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{URL: %q, Path: %q, Database: %s, Concurrency: %d, Format: %s, QPS: %v}",
		c.Instance.URL, c.Instance.Path, c.Instance.Database.Redacted(),
		c.Run.Concurrency, c.Run.Format, c.Queries.PerSecond,
	)
}
