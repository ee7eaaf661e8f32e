// Package config resolves oracleplane's configuration surface: environment
// variables (optionally loaded from a .env file), layered over an optional
// oracleplane.toml holding static rule defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// DefaultExcludeObjectTypes is the sensible Oracle default for object types
// that rarely belong in a cross-environment schema deployment.
func DefaultExcludeObjectTypes() []string {
	return []string{
		"DATABASE LINK",
		"INDEX PARTITION",
		"JAVA CLASS",
		"JAVA SOURCE",
		"JOB",
		"LIBRARY",
		"SCHEDULE",
		"SYNONYM",
		"TABLE PARTITION",
		"TABLE SUBPARTITION",
	}
}

// RulesConfig holds the engine-wide default filter lists.
type RulesConfig struct {
	ExcludeObjectTypes []string `toml:"exclude_object_types"`
	ExcludeObjectNames []string `toml:"exclude_object_names"`
	DisabledDropTypes  []string `toml:"disabled_drop_types"`
	DisableAllDrops    bool     `toml:"disable_all_drops"`
}

// LogsConfig controls the structured logger: level, console encoding,
// and the optional file sink.
type LogsConfig struct {
	Level         string `toml:"level"`
	Dir           string `toml:"dir"`
	ConsoleFormat string `toml:"console_format"`
	FileEnabled   bool   `toml:"file_enabled"`
	ExtLevel      string `toml:"ext_level"`
}

// Config is the fully-resolved configuration: environment variables take
// precedence over the static oracleplane.toml, which in turn supplies
// defaults when absent.
type Config struct {
	DatabaseURL string
	Logs        LogsConfig
	Rules       RulesConfig
}

const tomlFileName = "oracleplane.toml"

type fileConfig struct {
	Rules RulesConfig `toml:"rules"`
	Logs  LogsConfig  `toml:"logs"`
}

// Load resolves Config from (in increasing precedence) oracleplane.toml,
// a .env file in the working directory, and the process environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Rules: RulesConfig{
			DisableAllDrops: true,
		},
	}

	if path, err := findConfigFile(); err == nil {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		fc := fileConfig{Rules: RulesConfig{DisableAllDrops: true}}
		if err := toml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		cfg.Rules = fc.Rules
		cfg.Logs = fc.Logs
	}

	cfg.DatabaseURL = os.Getenv("DATABASE__URL")

	if v := os.Getenv("LOGS__LEVEL"); v != "" {
		cfg.Logs.Level = v
	}
	if v := os.Getenv("LOGS__DIR"); v != "" {
		cfg.Logs.Dir = v
	}
	if v := os.Getenv("LOGS__CONSOLE_FORMAT"); v != "" {
		cfg.Logs.ConsoleFormat = v
	}
	if v := os.Getenv("LOGS__FILE_ENABLED"); v != "" {
		cfg.Logs.FileEnabled = v == "1" || strings.EqualFold(v, "true")
	}
	if v := os.Getenv("LOGS__EXT_LEVEL"); v != "" {
		cfg.Logs.ExtLevel = v
	}

	if v, ok := os.LookupEnv("RULES__EXCLUDE_OBJECT_TYPES"); ok {
		cfg.Rules.ExcludeObjectTypes = splitList(v)
	}
	if v, ok := os.LookupEnv("RULES__EXCLUDE_OBJECT_NAMES"); ok {
		cfg.Rules.ExcludeObjectNames = splitList(v)
	}
	if v, ok := os.LookupEnv("RULES__DISABLED_DROP_TYPES"); ok {
		cfg.Rules.DisabledDropTypes = splitList(v)
	}
	if v, ok := os.LookupEnv("RULES__DISABLE_ALL_DROPS"); ok {
		cfg.Rules.DisableAllDrops = v == "1" || strings.EqualFold(v, "true")
	}

	if len(cfg.Rules.ExcludeObjectTypes) == 0 {
		cfg.Rules.ExcludeObjectTypes = DefaultExcludeObjectTypes()
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "oracleplane.db"
	}

	return cfg, nil
}

// splitList parses a comma- or newline-separated list, trimming whitespace
// and dropping blanks, and dedupes preserving first-seen order.
func splitList(raw string) []string {
	fields := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == '\n' || r == '\r'
	})

	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		v := strings.TrimSpace(f)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// findConfigFile walks up from the working directory looking for
// oracleplane.toml, stopping at the first project boundary marker.
func findConfigFile() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		path := filepath.Join(dir, tomlFileName)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
		if isProjectRoot(dir) {
			break
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("%s not found", tomlFileName)
}

func isProjectRoot(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, ".git")); err == nil {
		return true
	}
	if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
		return true
	}
	return false
}
