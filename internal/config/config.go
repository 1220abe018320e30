// Package config loads kicketl configuration from file, environment
// variables, and CLI flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	"github.com/dataforge-labs/kicketl/internal/fact"
	"github.com/dataforge-labs/kicketl/internal/warehouse"
)

// Default configuration values.
const (
	DefaultSourcePath    = "data/raw/ks-projects-201801.csv"
	DefaultLogFile       = "logs/kicketl.log"
	DefaultRunsPath      = ".kicketl/runs.db"
	DefaultWarehouse     = "duckdb"
	DefaultWarehousePath = "warehouse.duckdb"
	DefaultOnMissingKey  = "fail"
)

// WarehouseConfig selects the target store.
type WarehouseConfig struct {
	Type string `koanf:"type"`
	Path string `koanf:"path"`
}

// LoadConfig holds load-phase policies.
type LoadConfig struct {
	// OnMissingKey is "fail" or "unknown" (resolve misses to the sentinel
	// dimension members).
	OnMissingKey string `koanf:"on_missing_key"`
}

// Config holds all pipeline configuration.
type Config struct {
	SourcePath string          `koanf:"source_path"`
	LogFile    string          `koanf:"log_file"`
	RunsPath   string          `koanf:"runs_path"`
	Verbose    bool            `koanf:"verbose"`
	Warehouse  WarehouseConfig `koanf:"warehouse"`
	Load       LoadConfig      `koanf:"load"`
}

// ConfigFileName is the default config file name.
const ConfigFileName = "kicketl.yaml"

// ConfigFileNameAlt is the alternate config file name.
const ConfigFileNameAlt = "kicketl.yml"

// findConfigFile finds the config file to use.
// Priority: explicit path > kicketl.yaml > kicketl.yml.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	if _, err := os.Stat(ConfigFileName); err == nil {
		return ConfigFileName
	}
	if _, err := os.Stat(ConfigFileNameAlt); err == nil {
		return ConfigFileNameAlt
	}
	return ""
}

// Load loads configuration. cfgFile may be empty to search the working
// directory; flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]interface{}{
		"source_path":         DefaultSourcePath,
		"log_file":            DefaultLogFile,
		"runs_path":           DefaultRunsPath,
		"verbose":             false,
		"warehouse.type":      DefaultWarehouse,
		"warehouse.path":      DefaultWarehousePath,
		"load.on_missing_key": DefaultOnMissingKey,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Config file
	if path := findConfigFile(cfgFile); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", path, err)
		}
	} else if cfgFile != "" {
		return nil, fmt.Errorf("config file not found: %s", cfgFile)
	}

	// 3. Environment variables: KICKETL_WAREHOUSE_TYPE -> warehouse.type
	if err := k.Load(env.Provider("KICKETL_", ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, "KICKETL_"))
		return envKey(key)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags (highest priority)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			if !f.Changed {
				return "", nil
			}
			return flagKey(f.Name), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps a lowered env var suffix to its config key.
func envKey(key string) string {
	switch key {
	case "warehouse_type":
		return "warehouse.type"
	case "warehouse_path":
		return "warehouse.path"
	case "on_missing_key":
		return "load.on_missing_key"
	default:
		return key
	}
}

// flagKey maps a kebab-case flag name to its config key.
func flagKey(name string) string {
	switch name {
	case "source":
		return "source_path"
	case "warehouse-type":
		return "warehouse.type"
	case "warehouse-path":
		return "warehouse.path"
	case "on-missing-key":
		return "load.on_missing_key"
	default:
		return strings.ReplaceAll(name, "-", "_")
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.SourcePath == "" {
		return fmt.Errorf("source_path is required")
	}
	if !warehouse.IsRegistered(c.Warehouse.Type) {
		return &warehouse.UnknownAdapterError{
			Type:      c.Warehouse.Type,
			Available: warehouse.ListAdapters(),
		}
	}
	if _, err := fact.ParsePolicy(c.Load.OnMissingKey); err != nil {
		return err
	}
	return nil
}
