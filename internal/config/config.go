package config

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/structs"
	"github.com/imdario/mergo"
	"github.com/spf13/cast"
	"gopkg.in/yaml.v3"

	"github.com/orrn/printsim/internal/core"
)

const EnvPrefix = "PRINTSIM_"

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Simulation SimulationConfig `yaml:"simulation"`
	Auth       AuthConfig       `yaml:"auth"`
	Webhooks   WebhookConfig    `yaml:"webhooks"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Logging    LoggingConfig    `yaml:"logging"`
}

type ServerConfig struct {
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

type DatabaseConfig struct {
	Path        string `yaml:"path"`
	ArchivePath string `yaml:"archive_path"`
	ArchiveDays int    `yaml:"archive_days"`
}

type SimulationConfig struct {
	TickPeriod      time.Duration   `yaml:"tick_period"`
	AutoProcess     bool            `yaml:"auto_process"`
	Seed            int64           `yaml:"seed"`
	HistoryCapacity int             `yaml:"history_capacity"`
	LogCapacity     int             `yaml:"log_capacity"`
	Printers        []PrinterConfig `yaml:"printers"`
}

type PrinterConfig struct {
	ID                 int64  `yaml:"id"`
	Name               string `yaml:"name"`
	Status             string `yaml:"status"`
	Efficiency         int    `yaml:"efficiency"`
	TotalJobsProcessed int64  `yaml:"total_jobs_processed"`
}

type AuthConfig struct {
	Enabled    bool          `yaml:"enabled"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type WebhookConfig struct {
	Workers    int           `yaml:"workers"`
	MaxRetries int           `yaml:"max_retries"`
	Timeout    time.Duration `yaml:"timeout"`
}

type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			ReadTimeout:  30 * time.Second,
			// Zero keeps /api/stream connections open.
			WriteTimeout: 0,
		},
		Database: DatabaseConfig{
			Path:        "./data/printsim.db",
			ArchivePath: "./data/archives",
			ArchiveDays: 30,
		},
		Simulation: SimulationConfig{
			TickPeriod:      core.DefaultTickPeriod,
			HistoryCapacity: core.DefaultHistoryCapacity,
			LogCapacity:     core.DefaultLogCapacity,
		},
		Auth: AuthConfig{
			Enabled:    true,
			SessionTTL: 24 * time.Hour,
		},
		Webhooks: WebhookConfig{
			Workers:    2,
			MaxRetries: 3,
			Timeout:    10 * time.Second,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 20,
			Burst:             40,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

func Default() *Config {
	return defaults()
}

func Load(configPath string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

func LoadFromEnv() (*Config, error) {
	cfg := defaults()
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Resolve loads the file at configPath, overlays PRINTSIM_* variables and
// validates the result.
func Resolve(configPath string) (*Config, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := ApplyEnv(cfg, os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

type LookupFunc func(key string) (string, bool)

// ApplyEnv merges environment overrides into cfg.
func ApplyEnv(cfg *Config, lookup LookupFunc) error {
	overlay := &Config{}
	get := func(name string) (string, bool) {
		v, ok := lookup(EnvPrefix + name)
		if !ok || strings.TrimSpace(v) == "" {
			return "", false
		}
		return strings.TrimSpace(v), true
	}

	if v, ok := get("PORT"); ok {
		port, err := cast.ToIntE(v)
		if err != nil {
			return fmt.Errorf("failed to parse %sPORT: %w", EnvPrefix, err)
		}
		overlay.Server.Port = port
	}
	if v, ok := get("DB_PATH"); ok {
		overlay.Database.Path = v
	}
	if v, ok := get("ARCHIVE_PATH"); ok {
		overlay.Database.ArchivePath = v
	}
	if v, ok := get("TICK_PERIOD"); ok {
		d, err := cast.ToDurationE(v)
		if err != nil {
			return fmt.Errorf("failed to parse %sTICK_PERIOD: %w", EnvPrefix, err)
		}
		overlay.Simulation.TickPeriod = d
	}
	if v, ok := get("SEED"); ok {
		seed, err := cast.ToInt64E(v)
		if err != nil {
			return fmt.Errorf("failed to parse %sSEED: %w", EnvPrefix, err)
		}
		overlay.Simulation.Seed = seed
	}
	if v, ok := get("LOG_LEVEL"); ok {
		overlay.Logging.Level = strings.ToLower(v)
	}
	if v, ok := get("LOG_FORMAT"); ok {
		overlay.Logging.Format = strings.ToLower(v)
	}

	// mergo skips zero values, so booleans are assigned after the merge.
	autoProcess, hasAutoProcess, err := envBool(get, "AUTO_PROCESS")
	if err != nil {
		return err
	}
	authEnabled, hasAuthEnabled, err := envBool(get, "AUTH_ENABLED")
	if err != nil {
		return err
	}

	if err := mergo.Merge(cfg, overlay, mergo.WithOverride); err != nil {
		return fmt.Errorf("failed to merge environment overrides: %w", err)
	}

	if hasAutoProcess {
		cfg.Simulation.AutoProcess = autoProcess
	}
	if hasAuthEnabled {
		cfg.Auth.Enabled = authEnabled
	}
	return nil
}

func envBool(get func(string) (string, bool), name string) (value, present bool, err error) {
	v, ok := get(name)
	if !ok {
		return false, false, nil
	}
	b, err := cast.ToBoolE(v)
	if err != nil {
		return false, false, fmt.Errorf("failed to parse %s%s: %w", EnvPrefix, name, err)
	}
	return b, true, nil
}

func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout < 0 {
		return fmt.Errorf("server read timeout must be non-negative")
	}

	if c.Server.WriteTimeout < 0 {
		return fmt.Errorf("server write timeout must be non-negative")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}

	if c.Database.ArchiveDays < 0 {
		return fmt.Errorf("archive days must be non-negative")
	}

	if c.Simulation.TickPeriod < core.MinTickPeriod || c.Simulation.TickPeriod > core.MaxTickPeriod {
		return fmt.Errorf("tick period must be between %s and %s, got %s", core.MinTickPeriod, core.MaxTickPeriod, c.Simulation.TickPeriod)
	}

	if c.Simulation.HistoryCapacity < 1 || c.Simulation.HistoryCapacity > core.DefaultHistoryCapacity {
		return fmt.Errorf("history capacity must be between 1 and %d, got %d", core.DefaultHistoryCapacity, c.Simulation.HistoryCapacity)
	}

	if c.Simulation.LogCapacity < 1 || c.Simulation.LogCapacity > core.DefaultLogCapacity {
		return fmt.Errorf("log capacity must be between 1 and %d, got %d", core.DefaultLogCapacity, c.Simulation.LogCapacity)
	}

	validStatuses := map[string]bool{
		"":                                    true,
		string(core.PrinterStatusOnline):      true,
		string(core.PrinterStatusOffline):     true,
		string(core.PrinterStatusMaintenance): true,
		string(core.PrinterStatusError):       true,
	}

	seen := make(map[int64]bool, len(c.Simulation.Printers))
	for _, p := range c.Simulation.Printers {
		if p.ID < 1 {
			return fmt.Errorf("printer id must be positive, got %d", p.ID)
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate printer id %d", p.ID)
		}
		seen[p.ID] = true
		if p.Efficiency < 0 || p.Efficiency > 100 {
			return fmt.Errorf("printer %d efficiency must be between 0 and 100, got %d", p.ID, p.Efficiency)
		}
		if !validStatuses[p.Status] {
			return fmt.Errorf("printer %d has invalid status: %s", p.ID, p.Status)
		}
	}

	if c.Auth.SessionTTL <= 0 {
		return fmt.Errorf("session ttl must be positive")
	}

	if c.Webhooks.Workers < 1 {
		return fmt.Errorf("webhook worker count must be at least 1")
	}

	if c.Webhooks.MaxRetries < 0 {
		return fmt.Errorf("webhook max retries must be non-negative")
	}

	if c.Webhooks.Timeout <= 0 {
		return fmt.Errorf("webhook timeout must be positive")
	}

	if c.RateLimit.RequestsPerSecond < 0 || c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate limit values must be non-negative")
	}

	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}

	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error)", c.Logging.Level)
	}

	validFormats := map[string]bool{
		"json":  true,
		"text":  true,
		"plain": true,
	}

	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (valid: json, text, plain)", c.Logging.Format)
	}

	return nil
}

// EnginePrinters converts the configured printer list, falling back to the
// built-in pool when none is configured.
func (c *Config) EnginePrinters() []core.Printer {
	if len(c.Simulation.Printers) == 0 {
		return core.DefaultPrinters()
	}
	out := make([]core.Printer, 0, len(c.Simulation.Printers))
	for _, p := range c.Simulation.Printers {
		out = append(out, core.Printer{
			ID:                 p.ID,
			Name:               p.Name,
			Status:             core.PrinterStatus(p.Status),
			Efficiency:         p.Efficiency,
			TotalJobsProcessed: p.TotalJobsProcessed,
		})
	}
	return out
}

// Flatten renders the configuration as dotted yaml keys, e.g.
// "simulation.tick_period".
func (c *Config) Flatten() map[string]interface{} {
	s := structs.New(c)
	s.TagName = "yaml"
	out := make(map[string]interface{})
	flattenInto(out, "", s.Map())
	return out
}

func flattenInto(out map[string]interface{}, prefix string, v interface{}) {
	switch val := v.(type) {
	case map[string]interface{}:
		for k, child := range val {
			flattenInto(out, joinKey(prefix, k), child)
		}
	case []interface{}:
		for i, child := range val {
			flattenInto(out, joinKey(prefix, cast.ToString(i)), child)
		}
	case time.Duration:
		out[prefix] = val.String()
	default:
		out[prefix] = val
	}
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func SortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
