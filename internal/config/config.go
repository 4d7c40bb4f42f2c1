// Package config decodes the catalog/database configuration document
// into typed structs. internal/catalog compiles the result
// into an immutable, validated pattern catalog.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration document.
type Config struct {
	Database  DatabaseConfig            `yaml:"database"`
	FlowTypes map[string]FlowTypeConfig `yaml:"flux_types"`
}

// DatabaseConfig names the SQLite backing store.
type DatabaseConfig struct {
	URL  string `yaml:"url"`
	Echo bool   `yaml:"echo"`
}

// FlowTypeConfig is one configured flow type.
type FlowTypeConfig struct {
	Description   string                       `yaml:"description"`
	RequiredSteps []string                     `yaml:"required_steps"`
	OptionalSteps []string                     `yaml:"optional_steps"`
	Applications  map[string]ApplicationConfig `yaml:"applications"`
}

// ApplicationConfig is one application producing logs within a flow type.
type ApplicationConfig struct {
	Patterns map[string]PatternConfig `yaml:"patterns"`
}

// PatternConfig is the configured shape of one (flow type, application,
// stage) pattern. TimestampFormat uses Go's reference-time layout
// ("2006-01-02 15:04:05"), not a strptime-style format string.
type PatternConfig struct {
	Regex            string   `yaml:"regex"`
	TimestampFormat  string   `yaml:"timestamp_format"`
	IdentifierFields []string `yaml:"identifier_fields"`
	PayloadFields    []string `yaml:"payload_fields"`
	ReferenceLinks   []string `yaml:"reference_links"`
}

// Load reads and decodes a configuration file. YAML is a superset of
// JSON, so a .json config document decodes through the same path
// without a separate parser.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	for name, ft := range cfg.FlowTypes {
		if ft.RequiredSteps == nil {
			ft.RequiredSteps = []string{}
		}
		if ft.OptionalSteps == nil {
			ft.OptionalSteps = []string{}
		}
		cfg.FlowTypes[name] = ft
	}

	return &cfg, nil
}
