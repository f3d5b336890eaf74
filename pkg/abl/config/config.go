// Package config loads engine configuration from YAML and ABL_ environment
// variables, and reads regression value tables.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cognicore/abl/pkg/abl/cost"
	"github.com/cognicore/abl/pkg/abl/internalerr"
	"github.com/cognicore/abl/pkg/abl/reasoner"
)

// Config is the full engine configuration.
type Config struct {
	KB       KBConfig       `koanf:"kb"`
	Reasoner ReasonerConfig `koanf:"reasoner"`
	Store    StoreConfig    `koanf:"store"`
	Logging  LoggingConfig  `koanf:"logging"`
	Metrics  MetricsConfig  `koanf:"metrics"`
}

// KBConfig selects and sizes the knowledge base.
type KBConfig struct {
	Name      string  `koanf:"name"`       // snapshot name, defaults to domain-kind
	Domain    string  `koanf:"domain"`     // add | formula
	Kind      string  `koanf:"kind"`       // class | regression
	MaxLen    int     `koanf:"max_len"`    // 0 builds a lazy class base
	Tolerance float64 `koanf:"tolerance"`  // regression match tolerance
	CacheSize int     `koanf:"cache_size"` // lazy base memo size
	Table     string  `koanf:"table"`      // regression value table, see LoadTable
}

// ReasonerConfig mirrors reasoner.Options. MaxRevision is "-1", an integer
// count or a fraction; quote fractions in YAML so 1.0 stays a fraction.
type ReasonerConfig struct {
	Cost                string   `koanf:"cost"`
	MaxRevision         string   `koanf:"max_revision"`
	RequireMoreRevision int      `koanf:"require_more_revision"`
	UseOptimizer        bool     `koanf:"use_optimizer"`
	OptimizerBudget     int      `koanf:"optimizer_budget"`
	Seed                uint64   `koanf:"seed"`
	Parallel            int      `koanf:"parallel"`
	Mapping             []string `koanf:"mapping"` // label index i maps to Mapping[i]
}

// StoreConfig locates the sqlite database. An empty path keeps everything
// in memory.
type StoreConfig struct {
	Path string `koanf:"path"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"` // json | console
}

// MetricsConfig configures the Prometheus endpoint. Empty disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.KB.Domain == "" {
		cfg.KB.Domain = "add"
	}
	if cfg.KB.Kind == "" {
		cfg.KB.Kind = "class"
	}
	if cfg.KB.Name == "" {
		cfg.KB.Name = cfg.KB.Domain + "-" + cfg.KB.Kind
	}
	if cfg.Reasoner.Cost == "" {
		cfg.Reasoner.Cost = string(cost.ModeConfidence)
	}
	if cfg.Reasoner.MaxRevision == "" {
		cfg.Reasoner.MaxRevision = "-1"
	}
	if cfg.Reasoner.OptimizerBudget == 0 {
		cfg.Reasoner.OptimizerBudget = reasoner.DefaultOptimizerBudget
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

// Validate checks every field and reports the first problem.
func (c *Config) Validate() error {
	switch c.KB.Domain {
	case "add", "formula":
	default:
		return invalid("kb.domain %q: want add or formula", c.KB.Domain)
	}
	switch c.KB.Kind {
	case "class", "regression":
	default:
		return invalid("kb.kind %q: want class or regression", c.KB.Kind)
	}
	if c.KB.MaxLen < 0 || c.KB.MaxLen == 1 {
		return invalid("kb.max_len %d: want 0 or at least 2", c.KB.MaxLen)
	}
	if c.KB.Kind == "regression" && c.KB.MaxLen == 0 && c.KB.Table == "" {
		return invalid("regression knowledge base needs kb.max_len or kb.table")
	}
	if c.KB.Tolerance < 0 {
		return invalid("kb.tolerance %v must be non-negative", c.KB.Tolerance)
	}
	if c.KB.CacheSize < 0 {
		return invalid("kb.cache_size %d must be non-negative", c.KB.CacheSize)
	}

	if _, err := cost.ParseMode(c.Reasoner.Cost); err != nil {
		return err
	}
	if _, err := reasoner.ParseRevisionLimit(c.Reasoner.MaxRevision); err != nil {
		return err
	}
	if c.Reasoner.RequireMoreRevision < 0 {
		return invalid("reasoner.require_more_revision %d must be non-negative", c.Reasoner.RequireMoreRevision)
	}
	if c.Reasoner.OptimizerBudget <= 0 {
		return invalid("reasoner.optimizer_budget %d must be positive", c.Reasoner.OptimizerBudget)
	}
	if c.Reasoner.Parallel < 0 {
		return invalid("reasoner.parallel %d must be non-negative", c.Reasoner.Parallel)
	}
	seen := make(map[string]int, len(c.Reasoner.Mapping))
	for i, s := range c.Reasoner.Mapping {
		if j, dup := seen[s]; dup {
			return invalid("reasoner.mapping: %q at %d and %d", s, j, i)
		}
		seen[s] = i
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return invalid("logging.level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "json", "console":
	default:
		return invalid("logging.format %q: want json or console", c.Logging.Format)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, internalerr.ErrInvalidConfig)...)
}

// Table is a regression value table.
type Table struct {
	Entries []TableEntry `yaml:"entries"`
}

// TableEntry is one sequence and its value. A missing value marks the
// sequence invalid.
type TableEntry struct {
	Sequence []string `yaml:"sequence"`
	Value    *float64 `yaml:"value"`
}

// LoadTable loads a regression value table from a YAML file
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var tbl Table
	if err := yaml.Unmarshal(data, &tbl); err != nil {
		return nil, fmt.Errorf("parse table %s: %w", path, err)
	}
	for i, e := range tbl.Entries {
		if len(e.Sequence) == 0 {
			return nil, fmt.Errorf("table %s: entry %d has no sequence: %w", path, i, internalerr.ErrInvalidInput)
		}
	}

	return &tbl, nil
}
