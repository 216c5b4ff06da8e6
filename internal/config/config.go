// Package config loads the service configuration. A CUE or JSON file is
// unified with the embedded #Config schema, environment overrides are
// filled in, and the result must be concrete and valid.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/shopspring/decimal"

	"github.com/matthewbaird/opcost/internal/logger"
)

//go:embed schema.cue
var schemaSrc string

// Config is the service configuration.
type Config struct {
	Port            int       `json:"port"`
	DatabaseURL     string    `json:"database_url"`
	Currency        string    `json:"currency"`
	DirectTolerance string    `json:"direct_tolerance"`
	MaxParallel     int       `json:"max_parallel"`
	Log             LogConfig `json:"log"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level      string `json:"level"`
	Format     string `json:"format"`
	Output     string `json:"output"`
	TimeFormat string `json:"time_format"`
}

// Tolerance parses DirectTolerance.
func (c Config) Tolerance() decimal.Decimal {
	// The schema only admits decimal literals.
	return decimal.RequireFromString(c.DirectTolerance)
}

// Logger converts the log section for logger.Setup.
func (c Config) Logger() logger.LogConfig {
	return logger.LogConfig{
		Level:      c.Log.Level,
		Format:     c.Log.Format,
		Output:     c.Log.Output,
		TimeFormat: c.Log.TimeFormat,
	}
}

type override struct {
	env  string
	path string
	int  bool
}

var overrides = []override{
	{env: "PORT", path: "port", int: true},
	{env: "DATABASE_URL", path: "database_url"},
	{env: "CURRENCY", path: "currency"},
	{env: "DIRECT_TOLERANCE", path: "direct_tolerance"},
	{env: "MAX_PARALLEL", path: "max_parallel", int: true},
	{env: "LOG_LEVEL", path: "log.level"},
	{env: "LOG_FORMAT", path: "log.format"},
	{env: "LOG_OUTPUT", path: "log.output"},
}

// Load reads the optional file at path and applies overrides from the
// process environment.
func Load(path string) (Config, error) {
	return LoadWithEnv(path, os.Getenv)
}

// LoadWithEnv is Load with an explicit environment lookup.
func LoadWithEnv(path string, getenv func(string) string) (Config, error) {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSrc, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return Config{}, fmt.Errorf("compiling config schema: %w", err)
	}
	v := schema.LookupPath(cue.ParsePath("#Config"))

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config: %w", err)
		}
		file := ctx.CompileBytes(data, cue.Filename(path))
		if err := file.Err(); err != nil {
			return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
		}
		v = v.Unify(file)
	}

	for _, o := range overrides {
		raw := getenv(o.env)
		if raw == "" {
			continue
		}
		if o.int {
			n, err := strconv.Atoi(raw)
			if err != nil {
				return Config{}, fmt.Errorf("%s: %w", o.env, err)
			}
			v = v.FillPath(cue.ParsePath(o.path), n)
			continue
		}
		v = v.FillPath(cue.ParsePath(o.path), raw)
	}

	if err := v.Validate(cue.Concrete(true)); err != nil {
		return Config{}, fmt.Errorf("validating config: %w", err)
	}
	var cfg Config
	if err := v.Decode(&cfg); err != nil {
		return Config{}, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}
