// Package config loads dedupescan's optional YAML configuration file:
// start from DefaultConfig, unmarshal a YAML file on top, then validate.
// CLI flags are layered on top of the result by the caller, since cobra
// flag defaults and YAML defaults would otherwise fight over which one
// "wins" when neither is set explicitly.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// ReportConfig holds the optional report-sidecar settings.
type ReportConfig struct {
	DBPath       string `yaml:"db_path"`
	SummaryTable bool   `yaml:"summary_table"`
}

// Config is dedupescan's full configuration, loadable from YAML.
type Config struct {
	ChecksumType string       `yaml:"checksum_type" validate:"oneof=MD5 SHA1 SHA256 SHA512"`
	MinBlocks    int          `yaml:"min_blocks" validate:"gte=1"`
	DumpVectors  bool         `yaml:"dump_vectors"`
	Report       ReportConfig `yaml:"report"`
}

// DefaultConfig returns the configuration used when no --config file is
// given.
func DefaultConfig() *Config {
	return &Config{
		ChecksumType: "MD5",
		MinBlocks:    2,
		DumpVectors:  false,
		Report: ReportConfig{
			DBPath:       "",
			SummaryTable: false,
		},
	}
}

var validate = validator.New()

// Load builds the effective configuration: defaults, overlaid by path's
// YAML contents if path is non-empty. It does not apply CLI flag
// overrides — see Overrides, which the caller applies afterward to give
// flags the highest precedence: defaults < config file < CLI flags.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		if err := validate.Struct(cfg); err != nil {
			return nil, fmt.Errorf("default config: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Overrides carries the subset of fields a CLI invocation may set
// explicitly; a nil pointer field means "flag not set, keep config value".
type Overrides struct {
	ChecksumType *string
	MinBlocks    *int
	DumpVectors  *bool
	DBPath       *string
	SummaryTable *bool
}

// Apply layers CLI-flag overrides on top of cfg and re-validates, giving
// flags the highest precedence over config-file and default values.
func (cfg *Config) Apply(o Overrides) error {
	if o.ChecksumType != nil {
		cfg.ChecksumType = *o.ChecksumType
	}
	if o.MinBlocks != nil {
		cfg.MinBlocks = *o.MinBlocks
	}
	if o.DumpVectors != nil {
		cfg.DumpVectors = *o.DumpVectors
	}
	if o.DBPath != nil {
		cfg.Report.DBPath = *o.DBPath
	}
	if o.SummaryTable != nil {
		cfg.Report.SummaryTable = *o.SummaryTable
	}
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config after flag overrides: %w", err)
	}
	return nil
}
